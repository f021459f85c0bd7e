package tpuart

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/arloliu/go-tpuart/knx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type bytesReader struct {
	r *bytes.Reader
}

func newBytesReader(data []byte) *bytesReader {
	return &bytesReader{r: bytes.NewReader(data)}
}

func (b *bytesReader) ReadBytes(buf []byte) error {
	_, err := io.ReadFull(b.r, buf)
	return err
}

// decodeWire feeds wire through the decoder selected by its leading byte.
func decodeWire(t *testing.T, wire []byte) knx.Telegram {
	t.Helper()

	var buf [knx.MaxTelegramSize]byte
	r := newBytesReader(wire[1:])

	var (
		tg  knx.Telegram
		err error
	)
	switch Classify(wire[0]) {
	case CategoryDataStandard:
		tg, err = DecodeStandard(wire[0], r, &buf)
	case CategoryDataExtended:
		tg, err = DecodeExtended(wire[0], r, &buf)
	default:
		t.Fatalf("lead byte 0x%02X is not a data indication", wire[0])
	}
	require.NoError(t, err)
	require.Zero(t, r.r.Len(), "decoder left bytes unread")

	return tg.Clone()
}

func TestDecodeStandard_Canonical(t *testing.T) {
	tg := makeForeignTelegram(t, 0x0A03, 0x81)
	wire := standardWire(t, tg)

	// control, source, destination, npci, payload, tpci, checksum
	assert.Equal(t, []byte{0xAD, 0x11, 0x06, 0x0A, 0x03, 0xE2, 0x00, 0x81, 0x00, tg.Checksum()}, wire)

	got := decodeWire(t, wire)
	assert.True(t, tg.Equal(got), "got %s, want %s", got, tg)
	assert.Equal(t, byte(0xE0), got.ExtendedControl())
	assert.Equal(t, 2, got.PayloadLength())
	assert.NoError(t, got.Validate())
}

func TestDecodeStandard_MatchesExtended(t *testing.T) {
	for _, payload := range [][]byte{nil, {0x01}, bytes.Repeat([]byte{0x5A}, 15)} {
		std, err := knx.NewTelegram(0xAD, 0x60, 0x1101, 0x0001, payload, 0x80)
		require.NoError(t, err)

		// same telegram announced as extended
		ext := std.Clone()
		ext[0] = 0x3C
		ext[len(ext)-1] = ext.ComputeChecksum()

		gotStd := decodeWire(t, standardWire(t, std))
		gotExt := decodeWire(t, ext)

		assert.Equal(t, []byte(gotExt[1:len(gotExt)-1]), []byte(gotStd[1:len(gotStd)-1]))
		assert.Equal(t, len(payload), gotStd.PayloadLength())
		assert.Equal(t, len(payload)+knx.MinTelegramSize, len(gotStd))
	}
}

func TestDecodeStandard_ShortRead(t *testing.T) {
	var buf [knx.MaxTelegramSize]byte

	_, err := DecodeStandard(0xAD, newBytesReader([]byte{0x11, 0x06}), &buf)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrShortRead))

	// header complete, body missing its checksum
	_, err = DecodeStandard(0xAD, newBytesReader([]byte{0x11, 0x06, 0x0A, 0x03, 0xE1, 0x00, 0x00}), &buf)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrShortRead))
}

func TestDecodeExtended_LargePayload(t *testing.T) {
	tg, err := knx.NewTelegram(0x3C, 0xE5, 0x1101, 0x0A03, bytes.Repeat([]byte{0xA5}, knx.MaxPayloadLength), 0x00)
	require.NoError(t, err)

	wire, err := EncodeExtendedIndication(tg)
	require.NoError(t, err)
	assert.Equal(t, []byte(tg), wire)

	got := decodeWire(t, wire)
	assert.True(t, tg.Equal(got))
	assert.Equal(t, byte(0xE5), got.ExtendedControl())
}

func TestDecodeExtended_ShortRead(t *testing.T) {
	var buf [knx.MaxTelegramSize]byte

	_, err := DecodeExtended(0x3C, newBytesReader([]byte{0xE0, 0x11, 0x01, 0x0A, 0x03, 0x04, 0x00}), &buf)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrShortRead))
}

func TestEncodeStandardIndication_PayloadTooLarge(t *testing.T) {
	tg, err := knx.NewTelegram(0xAD, 0xE0, 0x1101, 0x0A03, make([]byte, 16), 0x00)
	require.NoError(t, err)

	_, err = EncodeStandardIndication(tg)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotStandardEncodable))

	_, err = EncodeStandardIndication(knx.Telegram{0xAD})
	assert.True(t, errors.Is(err, knx.ErrTelegramTooShort))
}

func TestAppendTransmission_Layout(t *testing.T) {
	tg, err := knx.NewTelegram(0x3C, 0xE0, 0x1105, 0x0A03, nil, 0x80)
	require.NoError(t, err)

	frames := EncodeTransmission(tg)
	require.Len(t, frames, len(tg)*3)

	for i := 0; i < len(tg)-1; i++ {
		assert.Equal(t, []byte{0x08, 0x80 | byte(i), tg[i]}, frames[i*3:i*3+3], "byte %d", i)
	}
	last := len(tg) - 1
	assert.Equal(t, []byte{0x08, UDataEndReq, tg[last]}, frames[last*3:])
}

func TestAppendTransmission_Windows(t *testing.T) {
	tg, err := knx.NewTelegram(0x3C, 0xE0, 0x1105, 0x0A03, bytes.Repeat([]byte{0x11}, 200), 0x00)
	require.NoError(t, err)
	require.Len(t, tg, 209)

	frames := EncodeTransmission(tg)

	group := func(i int) []byte { return frames[i*3 : i*3+3] }
	assert.Equal(t, []byte{0x08, 0xBF, tg[63]}, group(63))
	assert.Equal(t, []byte{0x09, 0x80, tg[64]}, group(64))
	assert.Equal(t, []byte{0x0A, 0x82, tg[130]}, group(130))
	assert.Equal(t, []byte{0x0B, 0x8F, tg[207]}, group(207))
	assert.Equal(t, []byte{0x0B, UDataEndReq, tg[208]}, group(208))
}

func TestAppendTransmission_ReusesBuffer(t *testing.T) {
	tg := makeOwnTelegram(t)
	buf := make([]byte, 0, knx.MaxTelegramSize*3)

	allocs := testing.AllocsPerRun(100, func() {
		buf = AppendTransmission(buf[:0], tg)
	})
	assert.Zero(t, allocs)
	assert.Equal(t, EncodeTransmission(tg), buf)
}

func TestDecodeTransmission_RoundTrip(t *testing.T) {
	for _, n := range []int{0, 1, 55, 56, 120, knx.MaxPayloadLength} {
		tg, err := knx.NewTelegram(0x3C, 0xE0, 0x1105, 0x0A03, bytes.Repeat([]byte{byte(n)}, n), 0x00)
		require.NoError(t, err)

		got, err := DecodeTransmission(EncodeTransmission(tg))
		require.NoError(t, err, "payload %d", n)
		assert.True(t, tg.Equal(got), "payload %d", n)
	}
}

func TestDecodeTransmission_Malformed(t *testing.T) {
	tg := makeOwnTelegram(t)
	good := EncodeTransmission(tg)

	with := func(i int, v byte) []byte {
		f := append([]byte(nil), good...)
		f[i] = v

		return f
	}

	tests := []struct {
		name   string
		frames []byte
	}{
		{name: "empty", frames: nil},
		{name: "partial group", frames: good[:len(good)-1]},
		{name: "missing end", frames: good[:len(good)-3]},
		{name: "bad selector", frames: with(0, 0x42)},
		{name: "wrong window", frames: with(3, 0x09)},
		{name: "index gap", frames: with(4, 0x82)},
		{name: "unknown command", frames: with(1, 0x01)},
		{name: "trailing bytes", frames: append(append([]byte(nil), good...), good[:3]...)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeTransmission(tt.frames)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedTransmission), "got %v", err)
		})
	}
}

func TestTransmissionAssembler_ResetsAfterError(t *testing.T) {
	tg := makeOwnTelegram(t)
	frames := EncodeTransmission(tg)

	var a TransmissionAssembler
	_, _, err := a.Add(frames[0], frames[1], frames[2])
	require.NoError(t, err)
	assert.Equal(t, 1, a.Pending())

	_, _, err = a.Add(0x42, 0x80, 0x00)
	require.Error(t, err)
	assert.Zero(t, a.Pending())

	for i := 0; i < len(frames); i += 3 {
		got, done, err := a.Add(frames[i], frames[i+1], frames[i+2])
		require.NoError(t, err)
		if done {
			assert.True(t, tg.Equal(got))
			assert.Equal(t, len(frames)-3, i)
		}
	}
}
