package transport

import (
	"context"
	"io"
	"net"
)

// NewTCPPort creates a Port connected to a serial-over-TCP bridge at addr ("host:port").
//
// The bridge owns the UART settings, so the line configuration given to
// Open is only validated, not transmitted.
func NewTCPPort(addr string, opts ...PortOption) (*Port, error) {
	return NewPort(addr, tcpOpener(addr), opts...)
}

func tcpOpener(addr string) Opener {
	return func(ctx context.Context, _ LineConfig) (io.ReadWriteCloser, error) {
		var d net.Dialer

		conn, err := d.DialContext(ctx, "tcp", addr)
		if err != nil {
			return nil, err
		}

		if tcp, ok := conn.(*net.TCPConn); ok {
			_ = tcp.SetNoDelay(true)
		}

		return conn, nil
	}
}

// NewConnPort wraps an already established stream, such as one end of net.Pipe.
// The first Open uses conn; later Opens fail because the stream cannot be re-created.
func NewConnPort(name string, conn io.ReadWriteCloser, opts ...PortOption) (*Port, error) {
	used := false

	return NewPort(name, func(context.Context, LineConfig) (io.ReadWriteCloser, error) {
		if used {
			return nil, io.ErrClosedPipe
		}
		used = true

		return conn, nil
	}, opts...)
}
