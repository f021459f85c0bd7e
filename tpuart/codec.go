package tpuart

import (
	"fmt"

	"github.com/arloliu/go-tpuart/knx"
)

// standard wire format geometry
const (
	stdHeaderLen     = 5 // source(2) destination(2) npci(1)
	stdMaxPayloadLen = 0x0F
	extHeaderLen     = 6 // extended control(1) source(2) destination(2) length(1)
	trailerLen       = 2 // tpci + checksum
)

// ByteReader reads exactly len(buf) bytes or fails. Transport implements it.
type ByteReader interface {
	ReadBytes(buf []byte) error
}

// DecodeStandard reads the remainder of a standard-format telegram whose leading
// control byte was already consumed, and rewrites it into canonical layout in buf.
//
// On the wire the length nibble shares its byte with the upper extended-control
// bits; the canonical form splits them into separate fields. The returned
// telegram aliases buf.
func DecodeStandard(lead byte, r ByteReader, buf *[knx.MaxTelegramSize]byte) (knx.Telegram, error) {
	buf[0] = lead
	if err := r.ReadBytes(buf[2 : 2+stdHeaderLen]); err != nil {
		return nil, fmt.Errorf("%w: standard header: %w", ErrShortRead, err)
	}

	npci := buf[6]
	payloadLen := int(npci & stdMaxPayloadLen)
	if err := r.ReadBytes(buf[7 : 7+payloadLen+trailerLen]); err != nil {
		return nil, fmt.Errorf("%w: standard body of %d bytes: %w", ErrShortRead, payloadLen+trailerLen, err)
	}

	buf[1] = npci & 0xF0
	buf[6] = byte(payloadLen)

	return knx.Telegram(buf[:payloadLen+knx.MinTelegramSize]), nil
}

// DecodeExtended reads the remainder of an extended-format telegram whose leading
// control byte was already consumed. The wire layout is the canonical layout.
func DecodeExtended(lead byte, r ByteReader, buf *[knx.MaxTelegramSize]byte) (knx.Telegram, error) {
	buf[0] = lead
	if err := r.ReadBytes(buf[1 : 1+extHeaderLen]); err != nil {
		return nil, fmt.Errorf("%w: extended header: %w", ErrShortRead, err)
	}

	payloadLen := int(buf[6])
	if err := r.ReadBytes(buf[7 : 7+payloadLen+trailerLen]); err != nil {
		return nil, fmt.Errorf("%w: extended body of %d bytes: %w", ErrShortRead, payloadLen+trailerLen, err)
	}

	return knx.Telegram(buf[:payloadLen+knx.MinTelegramSize]), nil
}

// EncodeStandardIndication returns t as the chip delivers it in standard format.
// Only telegrams with a payload of at most 15 bytes fit; the low nibble of the
// extended control field is lost.
func EncodeStandardIndication(t knx.Telegram) ([]byte, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}

	payloadLen := t.PayloadLength()
	if payloadLen > stdMaxPayloadLen {
		return nil, fmt.Errorf("%w: payload of %d bytes", ErrNotStandardEncodable, payloadLen)
	}

	out := make([]byte, 0, payloadLen+knx.MinTelegramSize-1)
	out = append(out, t[0])
	out = append(out, t[2:6]...)
	out = append(out, t.ExtendedControl()&0xF0|byte(payloadLen))
	out = append(out, t[7:]...)

	return out, nil
}

// EncodeExtendedIndication returns t as the chip delivers it in extended format.
func EncodeExtendedIndication(t knx.Telegram) ([]byte, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}

	return t.Clone(), nil
}

// AppendTransmission appends the chip framing of t to dst and returns the extended
// slice. Every telegram byte becomes three bytes: the window selector for its
// index, then either a continue command carrying the index within the window or,
// for the last byte, the end command, followed by the data byte itself.
func AppendTransmission(dst []byte, t knx.Telegram) []byte {
	last := len(t) - 1
	for i, b := range t {
		dst = append(dst, UDataOffsetReq|byte(i/windowSize))
		if i == last {
			dst = append(dst, UDataEndReq, b)
		} else {
			dst = append(dst, UDataStartContReq|byte(i&windowIndexMax), b)
		}
	}

	return dst
}

// EncodeTransmission returns the chip framing of t.
func EncodeTransmission(t knx.Telegram) []byte {
	return AppendTransmission(make([]byte, 0, len(t)*framesPerByte), t)
}

// TransmissionAssembler rebuilds telegrams from the framing produced by
// AppendTransmission, one three-byte group at a time.
type TransmissionAssembler struct {
	buf  [knx.MaxTelegramSize]byte
	next int
}

// IsWindowSelector reports whether b opens a framed telegram byte.
func IsWindowSelector(b byte) bool {
	return b&^0x07 == UDataOffsetReq
}

// Add consumes one framed byte. It returns the completed telegram, as an
// independent copy, once the end command arrives. Any framing error discards the
// partial telegram.
func (a *TransmissionAssembler) Add(selector, cmd, data byte) (knx.Telegram, bool, error) {
	if !IsWindowSelector(selector) {
		a.Reset()
		return nil, false, fmt.Errorf("%w: window selector 0x%02X", ErrMalformedTransmission, selector)
	}
	window := int(selector & 0x07)

	pos := a.next
	if pos >= knx.MaxTelegramSize || pos/windowSize != window {
		a.Reset()
		return nil, false, fmt.Errorf("%w: byte %d outside window %d", ErrMalformedTransmission, pos, window)
	}

	switch {
	case cmd == UDataEndReq:
		a.buf[pos] = data
		t := knx.Telegram(a.buf[:pos+1]).Clone()
		a.Reset()

		return t, true, nil

	case cmd&0xC0 == UDataStartContReq:
		if idx := int(cmd & windowIndexMax); window*windowSize+idx != pos {
			a.Reset()
			return nil, false, fmt.Errorf("%w: index %d, expected %d", ErrMalformedTransmission, window*windowSize+idx, pos)
		}
		a.buf[pos] = data
		a.next++

		return nil, false, nil

	default:
		a.Reset()
		return nil, false, fmt.Errorf("%w: command 0x%02X", ErrMalformedTransmission, cmd)
	}
}

// Pending returns the number of bytes collected for the telegram in progress.
func (a *TransmissionAssembler) Pending() int { return a.next }

// Reset discards a partially collected telegram.
func (a *TransmissionAssembler) Reset() { a.next = 0 }

// DecodeTransmission parses a complete framed telegram.
func DecodeTransmission(frames []byte) (knx.Telegram, error) {
	if len(frames) == 0 || len(frames)%framesPerByte != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a whole number of groups", ErrMalformedTransmission, len(frames))
	}

	var a TransmissionAssembler
	for i := 0; i < len(frames); i += framesPerByte {
		t, done, err := a.Add(frames[i], frames[i+1], frames[i+2])
		if err != nil {
			return nil, err
		}
		if done {
			if i+framesPerByte != len(frames) {
				return nil, fmt.Errorf("%w: trailing bytes after end command", ErrMalformedTransmission)
			}

			return t, nil
		}
	}

	return nil, fmt.Errorf("%w: missing end command", ErrMalformedTransmission)
}
