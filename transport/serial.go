package transport

import (
	"context"
	"fmt"
	"io"

	"go.bug.st/serial"
)

// NewSerialPort creates a Port on the local UART at path (e.g. /dev/ttyAMA0, COM3).
// The line configuration passed to Open is applied to the device.
func NewSerialPort(path string, opts ...PortOption) (*Port, error) {
	return NewPort(path, serialOpener(path), opts...)
}

// ListSerialPorts returns the names of the serial devices present on the system.
func ListSerialPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("transport: list serial ports: %w", err)
	}

	return ports, nil
}

func serialOpener(path string) Opener {
	return func(_ context.Context, lc LineConfig) (io.ReadWriteCloser, error) {
		port, err := serial.Open(path, serialMode(lc))
		if err != nil {
			return nil, err
		}

		// discard whatever the chip emitted before we were listening
		if err := port.ResetInputBuffer(); err != nil {
			_ = port.Close()
			return nil, err
		}

		return port, nil
	}
}

func serialMode(lc LineConfig) *serial.Mode {
	mode := &serial.Mode{
		BaudRate: lc.BaudRate,
		DataBits: lc.DataBits,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	switch lc.Parity {
	case OddParity:
		mode.Parity = serial.OddParity
	case EvenParity:
		mode.Parity = serial.EvenParity
	case NoParity:
	}

	if lc.StopBits == TwoStopBits {
		mode.StopBits = serial.TwoStopBits
	}

	return mode
}
