package tpuart

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/arloliu/go-tpuart/knx"
	"github.com/arloliu/go-tpuart/transport"
	"github.com/stretchr/testify/require"
)

// fakeTransport is an in-memory Transport. Reads never block: ReadBytes fails
// when fewer bytes are queued than requested.
type fakeTransport struct {
	mu         sync.Mutex
	rx         []byte
	written    [][]byte
	open       bool
	openErr    error
	writeErr   error
	line       transport.LineConfig
	closeCount int
	// stalled hides queued bytes from Available, as if they were still in flight.
	stalled bool

	// onWrite runs after every successful write, without the lock held.
	onWrite func(f *fakeTransport, data []byte)
}

var _ Transport = (*fakeTransport)(nil)

func (f *fakeTransport) Open(lc transport.LineConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.openErr != nil {
		return f.openErr
	}
	f.open = true
	f.line = lc

	return nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.open = false
	f.closeCount++

	return nil
}

func (f *fakeTransport) IsReady() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.open
}

func (f *fakeTransport) Available() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.rx) > 0 && !f.stalled
}

func (f *fakeTransport) TryReadByte() (byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.rx) == 0 {
		return 0, false
	}
	b := f.rx[0]
	f.rx = f.rx[1:]

	return b, true
}

func (f *fakeTransport) ReadBytes(buf []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.rx) < len(buf) {
		n := copy(buf, f.rx)
		f.rx = f.rx[n:]

		return fmt.Errorf("%w: got %d of %d bytes", transport.ErrReadTimeout, n, len(buf))
	}
	copy(buf, f.rx)
	f.rx = f.rx[len(buf):]

	return nil
}

func (f *fakeTransport) Write(data []byte) error {
	f.mu.Lock()
	if !f.open {
		f.mu.Unlock()
		return transport.ErrNotOpen
	}
	if f.writeErr != nil {
		f.mu.Unlock()
		return f.writeErr
	}
	f.written = append(f.written, append([]byte(nil), data...))
	hook := f.onWrite
	f.mu.Unlock()

	if hook != nil {
		hook(f, data)
	}

	return nil
}

// push queues bytes as if the chip had sent them.
func (f *fakeTransport) push(data ...byte) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.rx = append(f.rx, data...)
}

func (f *fakeTransport) writes() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([][]byte(nil), f.written...)
}

func (f *fakeTransport) resetWrites() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.written = nil
}

func (f *fakeTransport) setStalled(stalled bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.stalled = stalled
}

func (f *fakeTransport) setOnWrite(fn func(f *fakeTransport, data []byte)) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.onWrite = fn
}

// handshakeChip answers reset, set address and stop mode requests.
func handshakeChip(f *fakeTransport, data []byte) {
	switch data[0] {
	case UResetReq:
		f.push(UResetInd)
	case USetAddressReq:
		f.push(UConfigureInd)
	case UStopModeReq:
		f.push(UStopModeInd)
	}
}

// echoChip answers handshakes and echoes transmissions followed by the given
// confirmation byte. before is queued ahead of the echo.
func echoChip(t *testing.T, confirm byte, before ...[]byte) func(f *fakeTransport, data []byte) {
	t.Helper()

	return func(f *fakeTransport, data []byte) {
		if !IsWindowSelector(data[0]) {
			handshakeChip(f, data)
			return
		}

		tg, err := DecodeTransmission(data)
		if err != nil {
			t.Errorf("echoChip: %v", err)
			return
		}
		for _, b := range before {
			f.push(b...)
		}
		f.push(tg...)
		f.push(confirm)
	}
}

// recordingSink collects delivered telegrams.
type recordingSink struct {
	mu        sync.Mutex
	telegrams []knx.Telegram
	onReceive func(t knx.Telegram)
}

func (s *recordingSink) TelegramReceived(t knx.Telegram) {
	s.mu.Lock()
	s.telegrams = append(s.telegrams, t)
	fn := s.onReceive
	s.mu.Unlock()

	if fn != nil {
		fn(t)
	}
}

func (s *recordingSink) received() []knx.Telegram {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]knx.Telegram(nil), s.telegrams...)
}

// newTestDriver creates a driver over a fresh fake transport answering handshakes.
func newTestDriver(t *testing.T, addr knx.IndividualAddress, opts ...DriverOption) (*Driver, *fakeTransport, *recordingSink) {
	t.Helper()

	ft := &fakeTransport{onWrite: handshakeChip}
	sink := &recordingSink{}

	d, err := NewDriver(ft, StaticDevice(addr), sink, opts...)
	require.NoError(t, err)

	return d, ft, sink
}

// newEnabledDriver is newTestDriver followed by a successful Enable; the
// handshake writes are cleared.
func newEnabledDriver(t *testing.T, addr knx.IndividualAddress, opts ...DriverOption) (*Driver, *fakeTransport, *recordingSink) {
	t.Helper()

	d, ft, sink := newTestDriver(t, addr, opts...)
	require.NoError(t, d.Enable(context.Background()))
	ft.resetWrites()

	return d, ft, sink
}

// pollAll runs Poll until no input is left.
func pollAll(d *Driver) int {
	n := 0
	for d.Poll() {
		n++
	}

	return n
}

const testAddress = knx.IndividualAddress(0x1105) // 1.1.5

// makeOwnTelegram is an extended-format telegram from testAddress to 1/2/3.
func makeOwnTelegram(t *testing.T) knx.Telegram {
	t.Helper()

	tg, err := knx.NewTelegram(0x3C, 0xE0, testAddress, 0x0A03, []byte{0x00, 0x81}, 0x00)
	require.NoError(t, err)

	return tg
}

// makeForeignTelegram is a standard-format telegram from 1.1.6 to dst.
func makeForeignTelegram(t *testing.T, dst uint16, value byte) knx.Telegram {
	t.Helper()

	tg, err := knx.NewTelegram(0xAD, 0xE0, 0x1106, dst, []byte{0x00, value}, 0x00)
	require.NoError(t, err)

	return tg
}

func standardWire(t *testing.T, tg knx.Telegram) []byte {
	t.Helper()

	wire, err := EncodeStandardIndication(tg)
	require.NoError(t, err)

	return wire
}
