package knx

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// makeGroupWrite builds 1.1.5 -> 1/2/3 with a one-byte payload.
func makeGroupWrite(t *testing.T) Telegram {
	t.Helper()

	src, err := ParseIndividualAddress("1.1.5")
	require.NoError(t, err)
	dst, err := ParseGroupAddress("1/2/3")
	require.NoError(t, err)

	tg, err := NewTelegram(0xBC, 0xE0, src, uint16(dst), []byte{0x00, 0x81}, 0x00)
	require.NoError(t, err)

	return tg
}

func TestNewTelegram_Layout(t *testing.T) {
	tg := makeGroupWrite(t)

	require.NoError(t, tg.Validate())
	assert.Equal(t, 11, len(tg))
	assert.Equal(t, 11, tg.Len())
	assert.Equal(t, byte(0xBC), tg.Control())
	assert.Equal(t, byte(0xE0), tg.ExtendedControl())
	assert.Equal(t, "1.1.5", tg.Source().String())
	assert.Equal(t, "1/2/3", GroupAddress(tg.Destination()).String())
	assert.True(t, tg.IsGroupAddressed())
	assert.Equal(t, uint8(6), tg.HopCount())
	assert.Equal(t, PriorityLow, tg.Priority())
	assert.False(t, tg.IsRepeated())
	assert.Equal(t, 2, tg.PayloadLength())
	assert.Equal(t, []byte{0x00, 0x81}, tg.Payload())
	assert.Equal(t, byte(0x00), tg.TPCI())
	assert.NoError(t, tg.VerifyChecksum())
}

func TestNewTelegram_EmptyPayload(t *testing.T) {
	tg, err := NewTelegram(0xBC, 0x60, 0x1101, 0x0000, nil, 0x80)
	require.NoError(t, err)

	assert.Equal(t, MinTelegramSize, len(tg))
	assert.Empty(t, tg.Payload())
	assert.Equal(t, byte(0x80), tg.TPCI())
}

func TestNewTelegram_PayloadTooLarge(t *testing.T) {
	_, err := NewTelegram(0x3C, 0x60, 0x1101, 0x0001, make([]byte, MaxPayloadLength+1), 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPayloadTooLarge))
}

func TestTelegram_ComputeChecksum(t *testing.T) {
	tg := Telegram{0x01, 0x02, 0x04, 0x08}
	// 0x01^0x02^0x04 = 0x07, inverted.
	assert.Equal(t, byte(0xF8), tg.ComputeChecksum())
}

func TestTelegram_VerifyChecksum_Mismatch(t *testing.T) {
	tg := makeGroupWrite(t)
	tg[len(tg)-1] ^= 0xFF

	err := tg.VerifyChecksum()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrChecksumMismatch))
}

func TestTelegram_Validate(t *testing.T) {
	tests := []struct {
		name    string
		tg      Telegram
		wantErr error
	}{
		{name: "too short", tg: Telegram{0xBC, 0xE0, 0x11, 0x05}, wantErr: ErrTelegramTooShort},
		{name: "too large", tg: make(Telegram, MaxTelegramSize+1), wantErr: ErrTelegramTooLarge},
		{name: "length field mismatch", tg: Telegram{0xBC, 0xE0, 0x11, 0x05, 0x0A, 0x03, 0x05, 0x00, 0x00, 0x00}, wantErr: ErrLengthMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.tg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestTelegram_CloneIsIndependent(t *testing.T) {
	tg := makeGroupWrite(t)
	clone := tg.Clone()

	require.True(t, tg.Equal(clone))
	clone[0] = 0x00
	assert.False(t, tg.Equal(clone))
	assert.Equal(t, byte(0xBC), tg[0])
}

func TestTelegram_String(t *testing.T) {
	tg := Telegram{0xBC, 0x0A, 0xFF}
	assert.Equal(t, "BC 0A FF", tg.String())
}
