package transport

import (
	"errors"
	"fmt"
	"time"

	"github.com/arloliu/go-tpuart/logger"
)

type portConfig struct {
	readTimeout  time.Duration
	openTimeout  time.Duration
	rxBufferSize int
	logger       logger.Logger
}

// PortOption is a functional option for configuring a Port.
type PortOption interface {
	apply(*portConfig) error
}

type portOptFunc func(*portConfig) error

func (f portOptFunc) apply(cfg *portConfig) error { return f(cfg) }

// WithReadTimeout sets the inter-byte timeout of ReadBytes.
// Zero disables the timeout, so ReadBytes waits until the bytes arrive or the port closes.
func WithReadTimeout(d time.Duration) PortOption {
	return portOptFunc(func(cfg *portConfig) error {
		if d < 0 || d > MaxReadTimeout {
			return fmt.Errorf("transport: read timeout %v out of range [0, %v]", d, MaxReadTimeout)
		}
		cfg.readTimeout = d

		return nil
	})
}

// WithOpenTimeout bounds how long Open waits for the underlying stream.
func WithOpenTimeout(d time.Duration) PortOption {
	return portOptFunc(func(cfg *portConfig) error {
		if d <= 0 {
			return errors.New("transport: open timeout must be positive")
		}
		cfg.openTimeout = d

		return nil
	})
}

// WithRxBufferSize sets how many received bytes may wait for the driver.
func WithRxBufferSize(size int) PortOption {
	return portOptFunc(func(cfg *portConfig) error {
		if size < MinRxBufferSize || size > MaxRxBufferSize {
			return fmt.Errorf("transport: rx buffer size %d out of range [%d, %d]", size, MinRxBufferSize, MaxRxBufferSize)
		}
		cfg.rxBufferSize = size

		return nil
	})
}

// WithLogger sets the logger of the port.
func WithLogger(l logger.Logger) PortOption {
	return portOptFunc(func(cfg *portConfig) error {
		if l == nil {
			return errors.New("transport: logger must not be nil")
		}
		cfg.logger = l

		return nil
	})
}
