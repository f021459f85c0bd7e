package transport

import "fmt"

// Parity selects the parity bit of a serial line.
type Parity uint8

const (
	NoParity Parity = iota
	OddParity
	EvenParity
)

func (p Parity) String() string {
	switch p {
	case NoParity:
		return "N"
	case OddParity:
		return "O"
	case EvenParity:
		return "E"
	default:
		return fmt.Sprintf("Parity(%d)", uint8(p))
	}
}

// StopBits selects the number of stop bits of a serial line.
type StopBits uint8

const (
	OneStopBit StopBits = iota
	TwoStopBits
)

// LineConfig describes the serial framing of a line.
type LineConfig struct {
	BaudRate int
	DataBits int
	Parity   Parity
	StopBits StopBits
}

// String returns the conventional short form, e.g. "19200 8E1".
func (lc LineConfig) String() string {
	stop := 1
	if lc.StopBits == TwoStopBits {
		stop = 2
	}

	return fmt.Sprintf("%d %d%s%d", lc.BaudRate, lc.DataBits, lc.Parity, stop)
}

// Validate checks that the configuration can be applied to a UART.
func (lc LineConfig) Validate() error {
	if lc.BaudRate <= 0 {
		return fmt.Errorf("transport: invalid baud rate %d", lc.BaudRate)
	}
	if lc.DataBits < 5 || lc.DataBits > 8 {
		return fmt.Errorf("transport: invalid data bits %d", lc.DataBits)
	}
	if lc.Parity > EvenParity {
		return fmt.Errorf("transport: invalid parity %d", lc.Parity)
	}
	if lc.StopBits > TwoStopBits {
		return fmt.Errorf("transport: invalid stop bits %d", lc.StopBits)
	}

	return nil
}
