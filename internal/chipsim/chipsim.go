// Package chipsim emulates the host-facing side of a TP-UART transceiver over
// a byte stream. It answers the lifecycle handshakes, echoes transmitted
// telegrams followed by a confirmation and injects bus traffic on demand.
package chipsim

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/arloliu/go-tpuart/knx"
	"github.com/arloliu/go-tpuart/logger"
	"github.com/arloliu/go-tpuart/tpuart"
)

// ErrClosed is returned by Inject after Close.
var ErrClosed = errors.New("chipsim: simulator closed")

const transmittedBufferSize = 16

// Sim is an emulated transceiver serving one byte stream.
type Sim struct {
	rw     io.ReadWriteCloser
	logger logger.Logger

	writeMu sync.Mutex

	address    atomic.Uint32
	confirmOK  atomic.Bool
	echo       bool
	stopped    atomic.Bool
	closed     atomic.Bool
	resets     atomic.Uint64
	acks       atomic.Uint64
	transmits  atomic.Uint64
	transmitCh chan knx.Telegram

	wg sync.WaitGroup
}

// Option configures a Sim.
type Option interface {
	apply(*Sim)
}

type simOptFunc func(*Sim)

func (f simOptFunc) apply(s *Sim) { f(s) }

// WithLogger sets the logger of the simulator.
func WithLogger(l logger.Logger) Option {
	return simOptFunc(func(s *Sim) { s.logger = l })
}

// WithEcho selects whether transmissions are echoed before the confirmation.
// Without echo the simulator only answers with a standalone data confirmation.
func WithEcho(enabled bool) Option {
	return simOptFunc(func(s *Sim) { s.echo = enabled })
}

// WithConfirm sets whether transmissions are confirmed as successful.
func WithConfirm(success bool) Option {
	return simOptFunc(func(s *Sim) { s.confirmOK.Store(success) })
}

// New creates a simulator on rw. Call Start to begin serving.
func New(rw io.ReadWriteCloser, opts ...Option) *Sim {
	s := &Sim{
		rw:         rw,
		logger:     logger.GetLogger(),
		echo:       true,
		transmitCh: make(chan knx.Telegram, transmittedBufferSize),
	}
	s.confirmOK.Store(true)

	for _, opt := range opts {
		opt.apply(s)
	}
	s.logger = s.logger.With("component", "chipsim")

	return s
}

// Start serves host requests in a new goroutine until the stream fails or Close is called.
func (s *Sim) Start() {
	s.wg.Add(1)
	go s.serve()
}

// Close closes the stream and waits for the serving goroutine.
func (s *Sim) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	err := s.rw.Close()
	s.wg.Wait()

	return err
}

// Address returns the individual address last programmed by the host.
func (s *Sim) Address() knx.IndividualAddress {
	return knx.IndividualAddress(s.address.Load()) //nolint:gosec // stored from a uint16
}

// Stopped reports whether the host put the chip into stop mode.
func (s *Sim) Stopped() bool { return s.stopped.Load() }

func (s *Sim) Resets() uint64        { return s.resets.Load() }
func (s *Sim) AckRequests() uint64   { return s.acks.Load() }
func (s *Sim) Transmissions() uint64 { return s.transmits.Load() }

// SetConfirm changes the outcome reported for later transmissions.
func (s *Sim) SetConfirm(success bool) { s.confirmOK.Store(success) }

// Transmitted delivers the telegrams the host transmitted. Telegrams are
// dropped when nobody reads them.
func (s *Sim) Transmitted() <-chan knx.Telegram { return s.transmitCh }

// Inject sends t to the host as a data indication, in standard format when
// its control byte announces one and extended format otherwise.
func (s *Sim) Inject(t knx.Telegram) error {
	wire, err := indicationWire(t)
	if err != nil {
		return err
	}

	return s.write(wire)
}

// InjectRaw sends arbitrary bytes to the host.
func (s *Sim) InjectRaw(data ...byte) error {
	return s.write(data)
}

func indicationWire(t knx.Telegram) ([]byte, error) {
	if tpuart.Classify(t.Control()) == tpuart.CategoryDataStandard {
		return tpuart.EncodeStandardIndication(t)
	}

	return tpuart.EncodeExtendedIndication(t)
}

func (s *Sim) write(data []byte) error {
	if s.closed.Load() {
		return ErrClosed
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if _, err := s.rw.Write(data); err != nil {
		return fmt.Errorf("chipsim: write: %w", err)
	}

	return nil
}

func (s *Sim) serve() {
	defer s.wg.Done()

	r := bufio.NewReader(s.rw)
	var asm tpuart.TransmissionAssembler

	for {
		b, err := r.ReadByte()
		if err != nil {
			if !s.closed.Load() && !errors.Is(err, io.EOF) {
				s.logger.Debug("chipsim: stream read failed", "error", err)
			}

			return
		}

		if err := s.handle(r, &asm, b); err != nil {
			if !s.closed.Load() {
				s.logger.Debug("chipsim: request failed", "error", err)
			}

			return
		}
	}
}

func (s *Sim) handle(r *bufio.Reader, asm *tpuart.TransmissionAssembler, b byte) error {
	switch {
	case b == tpuart.UResetReq:
		s.resets.Add(1)
		s.address.Store(0)
		s.stopped.Store(false)
		asm.Reset()

		return s.write([]byte{tpuart.UResetInd})

	case b == tpuart.USetAddressReq:
		var args [3]byte
		if _, err := io.ReadFull(r, args[:]); err != nil {
			return err
		}
		s.address.Store(uint32(args[0])<<8 | uint32(args[1]))

		return s.write([]byte{tpuart.UConfigureInd | byte(tpuart.ConfigureAutoAcknowledge)})

	case b == tpuart.UStopModeReq:
		s.stopped.Store(true)
		return s.write([]byte{tpuart.UStopModeInd})

	case b == tpuart.UExitStopModeReq:
		s.stopped.Store(false)
		return s.write([]byte{tpuart.UResetInd})

	case b == tpuart.UStateReq:
		return s.write([]byte{tpuart.UStateInd})

	case b&^0x07 == tpuart.UAckReq:
		s.acks.Add(1)
		return nil

	case tpuart.IsWindowSelector(b):
		var rest [2]byte
		if _, err := io.ReadFull(r, rest[:]); err != nil {
			return err
		}

		t, done, err := asm.Add(b, rest[0], rest[1])
		if err != nil {
			s.logger.Warn("chipsim: discarding malformed transmission", "error", err)
			return nil
		}
		if done {
			return s.transmit(t)
		}

		return nil

	default:
		s.logger.Debug("chipsim: ignoring request", "byte", fmt.Sprintf("0x%02X", b))
		return nil
	}
}

func (s *Sim) transmit(t knx.Telegram) error {
	s.transmits.Add(1)

	select {
	case s.transmitCh <- t:
	default:
	}

	confirm := tpuart.LDataCon
	if s.confirmOK.Load() && !s.stopped.Load() {
		confirm |= tpuart.ConfirmSuccess
	}

	if !s.echo {
		return s.write([]byte{confirm})
	}

	wire, err := indicationWire(t)
	if err != nil {
		return err
	}

	return s.write(append(wire, confirm))
}
