package knx

import (
	"bytes"
	"errors"
	"fmt"
)

// MaxTelegramSize is the largest canonical telegram the driver accepts, in bytes.
const MaxTelegramSize = 512

// MinTelegramSize is the size of a canonical telegram with an empty payload.
const MinTelegramSize = 9

// MaxPayloadLength is the largest payload the one-byte length field can describe.
const MaxPayloadLength = 0xFF

// Byte offsets of the canonical layout.
const (
	offControl    = 0
	offExtControl = 1
	offSource     = 2
	offDest       = 4
	offLength     = 6
	offPayload    = 7
)

// Control field bits.
const (
	// ControlStandardFrame marks a standard (non-extended) frame on the wire.
	ControlStandardFrame byte = 0x80
	// ControlRepeatFlag is cleared on repeated transmissions.
	ControlRepeatFlag byte = 0x20
	// ExtControlGroupAddress marks the destination as a group address.
	ExtControlGroupAddress byte = 0x80
)

// Priority is the two-bit telegram priority carried in the control field.
type Priority uint8

const (
	PrioritySystem Priority = iota
	PriorityNormal
	PriorityUrgent
	PriorityLow
)

func (p Priority) String() string {
	switch p {
	case PrioritySystem:
		return "system"
	case PriorityNormal:
		return "normal"
	case PriorityUrgent:
		return "urgent"
	case PriorityLow:
		return "low"
	default:
		return fmt.Sprintf("Priority(%d)", uint8(p))
	}
}

var (
	ErrTelegramTooShort = errors.New("knx: telegram too short")
	ErrTelegramTooLarge = errors.New("knx: telegram exceeds maximum size")
	ErrLengthMismatch   = errors.New("knx: telegram length field does not match buffer")
	ErrPayloadTooLarge  = errors.New("knx: payload exceeds length field range")
	ErrChecksumMismatch = errors.New("knx: checksum mismatch")
)

// Telegram is one complete field-bus message in canonical extended layout.
//
// Accessors assume a telegram that passed Validate; they do not bounds-check.
type Telegram []byte

// NewTelegram assembles a canonical telegram from its fields and appends the checksum.
func NewTelegram(control, extControl byte, src IndividualAddress, dst uint16, payload []byte, tpci byte) (Telegram, error) {
	if len(payload) > MaxPayloadLength {
		return nil, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(payload))
	}

	t := make(Telegram, len(payload)+MinTelegramSize)
	t[offControl] = control
	t[offExtControl] = extControl
	t[offSource] = byte(src >> 8)
	t[offSource+1] = byte(src)
	t[offDest] = byte(dst >> 8)
	t[offDest+1] = byte(dst)
	t[offLength] = byte(len(payload))
	copy(t[offPayload:], payload)
	t[len(t)-2] = tpci
	t[len(t)-1] = t.ComputeChecksum()

	return t, nil
}

// Len returns the canonical size derived from the length field.
func (t Telegram) Len() int {
	if len(t) <= offLength {
		return 0
	}

	return int(t[offLength]) + MinTelegramSize
}

// Validate checks the telegram's size invariants.
func (t Telegram) Validate() error {
	if len(t) < MinTelegramSize {
		return fmt.Errorf("%w: got %d bytes, want at least %d", ErrTelegramTooShort, len(t), MinTelegramSize)
	}
	if len(t) > MaxTelegramSize {
		return fmt.Errorf("%w: got %d bytes, limit %d", ErrTelegramTooLarge, len(t), MaxTelegramSize)
	}
	if t.Len() != len(t) {
		return fmt.Errorf("%w: length field says %d bytes, buffer has %d", ErrLengthMismatch, t.Len(), len(t))
	}

	return nil
}

// Control returns the control field: frame type, repeat flag and priority.
func (t Telegram) Control() byte { return t[offControl] }

// ExtendedControl returns the extended control field: address type and hop count.
func (t Telegram) ExtendedControl() byte { return t[offExtControl] }

// Priority returns the priority bits of the control field.
func (t Telegram) Priority() Priority {
	return Priority((t[offControl] >> 2) & 0x03)
}

// IsRepeated reports whether the repeat flag marks this as a repetition.
func (t Telegram) IsRepeated() bool {
	return t[offControl]&ControlRepeatFlag == 0
}

// IsGroupAddressed reports whether the destination is a group address.
func (t Telegram) IsGroupAddressed() bool {
	return t[offExtControl]&ExtControlGroupAddress != 0
}

// HopCount returns the routing counter from the extended control field.
func (t Telegram) HopCount() uint8 {
	return (t[offExtControl] >> 4) & 0x07
}

// Source returns the individual address of the sender.
func (t Telegram) Source() IndividualAddress {
	return IndividualAddress(uint16(t[offSource])<<8 | uint16(t[offSource+1]))
}

// Destination returns the raw destination address; interpret it with
// IsGroupAddressed.
func (t Telegram) Destination() uint16 {
	return uint16(t[offDest])<<8 | uint16(t[offDest+1])
}

// PayloadLength returns the value of the length field.
func (t Telegram) PayloadLength() int { return int(t[offLength]) }

// Payload returns the payload bytes without copying.
func (t Telegram) Payload() []byte {
	return t[offPayload : offPayload+t.PayloadLength()]
}

// TPCI returns the transport control byte that follows the payload.
func (t Telegram) TPCI() byte { return t[t.Len()-2] }

// Checksum returns the trailing checksum byte as received.
func (t Telegram) Checksum() byte { return t[t.Len()-1] }

// ComputeChecksum returns the bus checksum over every byte but the last:
// the bitwise NOT of their XOR.
func (t Telegram) ComputeChecksum() byte {
	var sum byte
	for _, b := range t[:len(t)-1] {
		sum ^= b
	}

	return ^sum
}

// VerifyChecksum compares the trailing checksum byte with ComputeChecksum.
func (t Telegram) VerifyChecksum() error {
	if got, want := t.Checksum(), t.ComputeChecksum(); got != want {
		return fmt.Errorf("%w: wire=0x%02X, computed=0x%02X", ErrChecksumMismatch, got, want)
	}

	return nil
}

// Clone returns an independent copy.
func (t Telegram) Clone() Telegram {
	out := make(Telegram, len(t))
	copy(out, t)

	return out
}

// Equal reports whether both telegrams hold the same bytes.
func (t Telegram) Equal(other Telegram) bool {
	return bytes.Equal(t, other)
}

// String returns the telegram as space-separated upper-case hex.
func (t Telegram) String() string {
	return fmt.Sprintf("% X", []byte(t))
}
