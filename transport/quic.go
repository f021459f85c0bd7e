package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"time"

	"github.com/quic-go/quic-go"
)

// QUICNextProto is the ALPN protocol identifier of the serial bridge.
const QUICNextProto = "tpuart-bridge"

const quicKeepAlive = 10 * time.Second

// NewQUICPort creates a Port that carries the chip byte stream over the first
// bidirectional stream of a QUIC connection to addr.
//
// If tlsConf has no NextProtos, QUICNextProto is used.
func NewQUICPort(addr string, tlsConf *tls.Config, opts ...PortOption) (*Port, error) {
	if tlsConf == nil {
		return nil, errors.New("transport: QUIC requires a TLS config")
	}

	conf := tlsConf.Clone()
	if len(conf.NextProtos) == 0 {
		conf.NextProtos = []string{QUICNextProto}
	}

	return NewPort(addr, quicOpener(addr, conf), opts...)
}

func quicOpener(addr string, tlsConf *tls.Config) Opener {
	return func(ctx context.Context, _ LineConfig) (io.ReadWriteCloser, error) {
		conn, err := quic.DialAddr(ctx, addr, tlsConf, &quic.Config{KeepAlivePeriod: quicKeepAlive})
		if err != nil {
			return nil, err
		}

		stream, err := conn.OpenStreamSync(ctx)
		if err != nil {
			_ = conn.CloseWithError(0, "failed to open stream")
			return nil, err
		}

		return &quicStream{conn: conn, Stream: stream}, nil
	}
}

// quicStream closes the owning connection together with the stream.
type quicStream struct {
	*quic.Stream
	conn *quic.Conn
}

func (s *quicStream) Close() error {
	err := s.Stream.Close()
	if cerr := s.conn.CloseWithError(0, "closed"); err == nil {
		err = cerr
	}

	return err
}
