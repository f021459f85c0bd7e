package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arloliu/go-tpuart/internal/pool"
	"github.com/arloliu/go-tpuart/logger"
)

const (
	DefaultReadTimeout  = 100 * time.Millisecond
	DefaultOpenTimeout  = 3 * time.Second
	DefaultRxBufferSize = 1024

	MaxReadTimeout  = 10 * time.Second
	MinRxBufferSize = 64
	MaxRxBufferSize = 64 * 1024

	pumpChunkSize = 256
)

var (
	ErrNotOpen     = errors.New("transport: port is not open")
	ErrAlreadyOpen = errors.New("transport: port is already open")
	ErrReadTimeout = errors.New("transport: inter-byte read timeout")
	ErrClosed      = errors.New("transport: port closed while reading")
)

// Opener produces the underlying byte stream of a Port.
type Opener func(ctx context.Context, lc LineConfig) (io.ReadWriteCloser, error)

// PortMetrics contains atomic byte counters of a Port.
type PortMetrics struct {
	BytesRead    atomic.Uint64
	BytesWritten atomic.Uint64
	OpenCount    atomic.Uint64
}

// Port is a polled byte channel backed by an Opener.
type Port struct {
	name   string
	opener Opener
	cfg    portConfig
	logger logger.Logger

	mu   sync.RWMutex
	rwc  io.ReadWriteCloser
	rx   chan byte
	done chan struct{}
	wg   sync.WaitGroup

	ready   atomic.Bool
	metrics PortMetrics
}

// NewPort creates a Port that obtains its stream from opener on Open.
// name is used in log messages only.
func NewPort(name string, opener Opener, opts ...PortOption) (*Port, error) {
	if opener == nil {
		return nil, errors.New("transport: opener is nil")
	}

	cfg := portConfig{
		readTimeout:  DefaultReadTimeout,
		openTimeout:  DefaultOpenTimeout,
		rxBufferSize: DefaultRxBufferSize,
		logger:       logger.GetLogger(),
	}
	for _, opt := range opts {
		if err := opt.apply(&cfg); err != nil {
			return nil, err
		}
	}

	return &Port{
		name:   name,
		opener: opener,
		cfg:    cfg,
		logger: cfg.logger.With("port", name),
	}, nil
}

// Name returns the name given at construction.
func (p *Port) Name() string { return p.name }

// GetMetrics returns the byte counters of the port.
func (p *Port) GetMetrics() *PortMetrics { return &p.metrics }

// Open opens the underlying stream and starts the receive pump.
func (p *Port) Open(lc LineConfig) error {
	if err := lc.Validate(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.rwc != nil {
		return ErrAlreadyOpen
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.openTimeout)
	defer cancel()

	rwc, err := p.opener(ctx, lc)
	if err != nil {
		return fmt.Errorf("transport: open %s: %w", p.name, err)
	}

	p.rwc = rwc
	p.rx = make(chan byte, p.cfg.rxBufferSize)
	p.done = make(chan struct{})
	p.metrics.OpenCount.Add(1)

	p.wg.Add(1)
	go p.pump(rwc, p.rx, p.done)

	p.ready.Store(true)
	p.logger.Debug("transport: port opened", "line", lc.String())

	return nil
}

// Close stops the pump and closes the underlying stream. Closing a port
// that is not open is a no-op.
func (p *Port) Close() error {
	p.mu.Lock()
	rwc := p.rwc
	if rwc == nil {
		p.mu.Unlock()
		return nil
	}

	p.ready.Store(false)
	close(p.done)
	p.rwc = nil
	p.rx = nil
	p.mu.Unlock()

	err := rwc.Close()
	p.wg.Wait()

	p.logger.Debug("transport: port closed")

	if err != nil && !errors.Is(err, io.ErrClosedPipe) {
		return fmt.Errorf("transport: close %s: %w", p.name, err)
	}

	return nil
}

// IsReady reports whether the port is open and its pump is running.
func (p *Port) IsReady() bool {
	return p.ready.Load()
}

// Available reports whether at least one byte can be read without blocking.
func (p *Port) Available() bool {
	rx, _ := p.channels()
	return rx != nil && len(rx) > 0
}

// TryReadByte returns the next byte if one has already arrived.
func (p *Port) TryReadByte() (byte, bool) {
	rx, _ := p.channels()
	if rx == nil {
		return 0, false
	}

	select {
	case b := <-rx:
		return b, true
	default:
		return 0, false
	}
}

// ReadBytes fills buf completely. Each byte must arrive within the read
// timeout of the previous one; a zero timeout waits forever.
func (p *Port) ReadBytes(buf []byte) error {
	rx, done := p.channels()
	if rx == nil {
		return ErrNotOpen
	}

	for i := range buf {
		b, err := p.waitByte(rx, done)
		if err != nil {
			return fmt.Errorf("%w: got %d of %d bytes", err, i, len(buf))
		}
		buf[i] = b
	}

	return nil
}

// Write writes all of data to the underlying stream.
func (p *Port) Write(data []byte) error {
	p.mu.RLock()
	rwc := p.rwc
	p.mu.RUnlock()

	if rwc == nil {
		return ErrNotOpen
	}

	for written := 0; written < len(data); {
		n, err := rwc.Write(data[written:])
		written += n
		p.metrics.BytesWritten.Add(uint64(n)) //nolint:gosec // n is never negative

		if err != nil {
			return fmt.Errorf("transport: write %s: %w", p.name, err)
		}
	}

	return nil
}

func (p *Port) channels() (chan byte, chan struct{}) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.rx, p.done
}

func (p *Port) waitByte(rx <-chan byte, done <-chan struct{}) (byte, error) {
	// a byte already buffered wins over a concurrent close
	select {
	case b := <-rx:
		return b, nil
	default:
	}

	deadline, release := pool.Deadline(p.cfg.readTimeout)
	defer release()

	select {
	case b := <-rx:
		return b, nil
	case <-done:
		return 0, ErrClosed
	case <-deadline:
		return 0, ErrReadTimeout
	}
}

// pump copies inbound bytes into rx until the stream fails or done is closed.
func (p *Port) pump(r io.Reader, rx chan<- byte, done <-chan struct{}) {
	defer p.wg.Done()

	buf := make([]byte, pumpChunkSize)
	for {
		n, err := r.Read(buf)
		p.metrics.BytesRead.Add(uint64(n)) //nolint:gosec // n is never negative

		for _, b := range buf[:n] {
			select {
			case rx <- b:
			case <-done:
				return
			}
		}

		if err != nil {
			select {
			case <-done:
			default:
				p.logger.Error("transport: receive pump stopped", "error", err)
				p.ready.Store(false)
			}

			return
		}
	}
}
