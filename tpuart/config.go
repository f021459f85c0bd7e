package tpuart

import (
	"errors"
	"fmt"
	"time"

	"github.com/arloliu/go-tpuart/logger"
)

// NoTimeout disables a bounded wait; the driver then waits as long as the chip takes.
const NoTimeout time.Duration = 0

const (
	DefaultHandshakeTimeout = NoTimeout
	DefaultSendTimeout      = NoTimeout
	DefaultPollInterval     = time.Millisecond

	// DefaultQueueSize is the number of third-party telegrams held back while a send is pending.
	DefaultQueueSize       = 5
	DefaultSenderQueueSize = 10
)

const (
	MaxHandshakeTimeout = 60 * time.Second
	MaxSendTimeout      = 60 * time.Second
	MaxPollInterval     = 100 * time.Millisecond

	MinQueueSize = 1
	MaxQueueSize = 64

	MaxSenderQueueSize = 1024
)

// DriverConfig holds the configuration of a Driver.
type DriverConfig struct {
	// handshakeTimeout bounds each lifecycle wait: transport readiness, the reset,
	// set-address and stop-mode indications.
	handshakeTimeout time.Duration

	// sendTimeout bounds the wait for the echo or confirmation of a send.
	sendTimeout time.Duration

	// pollInterval is how long Run sleeps after a poll step found no input.
	pollInterval time.Duration

	queueSize       int
	senderQueueSize int

	// hexTrace logs every inbound and outbound byte sequence at debug level.
	hexTrace bool

	logger logger.Logger
}

// DriverOption is a functional option for configuring a Driver.
type DriverOption interface {
	apply(*DriverConfig) error
}

type driverOptFunc func(*DriverConfig) error

func (f driverOptFunc) apply(cfg *DriverConfig) error { return f(cfg) }

// NewDriverConfig returns the default configuration with opts applied.
func NewDriverConfig(opts ...DriverOption) (*DriverConfig, error) {
	cfg := &DriverConfig{
		handshakeTimeout: DefaultHandshakeTimeout,
		sendTimeout:      DefaultSendTimeout,
		pollInterval:     DefaultPollInterval,
		queueSize:        DefaultQueueSize,
		senderQueueSize:  DefaultSenderQueueSize,
		logger:           logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

func (cfg *DriverConfig) HandshakeTimeout() time.Duration { return cfg.handshakeTimeout }
func (cfg *DriverConfig) SendTimeout() time.Duration      { return cfg.sendTimeout }
func (cfg *DriverConfig) PollInterval() time.Duration     { return cfg.pollInterval }
func (cfg *DriverConfig) QueueSize() int                  { return cfg.queueSize }
func (cfg *DriverConfig) SenderQueueSize() int            { return cfg.senderQueueSize }
func (cfg *DriverConfig) HexTrace() bool                  { return cfg.hexTrace }
func (cfg *DriverConfig) Logger() logger.Logger           { return cfg.logger }

// WithHandshakeTimeout bounds every wait of Enable and Disable. NoTimeout waits forever.
func WithHandshakeTimeout(d time.Duration) DriverOption {
	return driverOptFunc(func(cfg *DriverConfig) error {
		if d < 0 || d > MaxHandshakeTimeout {
			return fmt.Errorf("tpuart: handshake timeout %v out of range [0, %v]", d, MaxHandshakeTimeout)
		}
		cfg.handshakeTimeout = d

		return nil
	})
}

// WithSendTimeout bounds how long Send waits for the chip to report the outcome.
// NoTimeout waits forever.
func WithSendTimeout(d time.Duration) DriverOption {
	return driverOptFunc(func(cfg *DriverConfig) error {
		if d < 0 || d > MaxSendTimeout {
			return fmt.Errorf("tpuart: send timeout %v out of range [0, %v]", d, MaxSendTimeout)
		}
		cfg.sendTimeout = d

		return nil
	})
}

// WithPollInterval sets the idle sleep of Run. Zero makes Run yield the processor instead.
func WithPollInterval(d time.Duration) DriverOption {
	return driverOptFunc(func(cfg *DriverConfig) error {
		if d < 0 || d > MaxPollInterval {
			return fmt.Errorf("tpuart: poll interval %v out of range [0, %v]", d, MaxPollInterval)
		}
		cfg.pollInterval = d

		return nil
	})
}

// WithQueueSize sets how many received telegrams are held back while a send is pending.
func WithQueueSize(size int) DriverOption {
	return driverOptFunc(func(cfg *DriverConfig) error {
		if size < MinQueueSize || size > MaxQueueSize {
			return fmt.Errorf("tpuart: queue size %d out of range [%d, %d]", size, MinQueueSize, MaxQueueSize)
		}
		cfg.queueSize = size

		return nil
	})
}

// WithSenderQueueSize sets the capacity of the Submit request channel.
func WithSenderQueueSize(size int) DriverOption {
	return driverOptFunc(func(cfg *DriverConfig) error {
		if size < 0 || size > MaxSenderQueueSize {
			return fmt.Errorf("tpuart: sender queue size %d out of range [0, %d]", size, MaxSenderQueueSize)
		}
		cfg.senderQueueSize = size

		return nil
	})
}

// WithHexTrace enables debug logging of raw bytes.
func WithHexTrace(enabled bool) DriverOption {
	return driverOptFunc(func(cfg *DriverConfig) error {
		cfg.hexTrace = enabled
		return nil
	})
}

// WithLogger sets the logger of the driver.
func WithLogger(l logger.Logger) DriverOption {
	return driverOptFunc(func(cfg *DriverConfig) error {
		if l == nil {
			return errors.New("tpuart: logger is nil")
		}
		cfg.logger = l

		return nil
	})
}
