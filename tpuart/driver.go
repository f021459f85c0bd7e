package tpuart

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"github.com/arloliu/go-tpuart/internal/pool"
	"github.com/arloliu/go-tpuart/knx"
	"github.com/arloliu/go-tpuart/logger"
	"github.com/arloliu/go-tpuart/transport"
)

// Transport is the byte channel between the driver and the chip.
// *transport.Port implements it.
type Transport interface {
	Open(lc transport.LineConfig) error
	Close() error
	IsReady() bool
	// Available reports whether a byte can be taken without waiting.
	Available() bool
	// TryReadByte returns the next byte if one has already arrived.
	TryReadByte() (byte, bool)
	ReadBytes(buf []byte) error
	Write(data []byte) error
}

// Device supplies the individual address the chip answers to.
type Device interface {
	IndividualAddress() knx.IndividualAddress
}

// StaticDevice is a Device with a fixed address.
type StaticDevice knx.IndividualAddress

// IndividualAddress returns the fixed address.
func (d StaticDevice) IndividualAddress() knx.IndividualAddress { return knx.IndividualAddress(d) }

// TelegramSink receives every telegram the driver accepts from the bus. The
// telegram is owned by the sink.
type TelegramSink interface {
	TelegramReceived(t knx.Telegram)
}

// TelegramSinkFunc adapts a function to TelegramSink.
type TelegramSinkFunc func(t knx.Telegram)

func (f TelegramSinkFunc) TelegramReceived(t knx.Telegram) { f(t) }

type sendRequest struct {
	ctx      context.Context //nolint:containedctx // carried to the Run goroutine
	telegram knx.Telegram
	result   chan sendResult
}

type sendResult struct {
	ok  bool
	err error
}

// Driver is the data link layer over a TP-UART transceiver.
//
// Poll, Send, Enable and Disable must be called from a single goroutine,
// usually the one executing Run; the sink is invoked on that goroutine and may
// call Send itself. Other goroutines use Submit. State and GetMetrics are safe
// from any goroutine.
type Driver struct {
	cfg       *DriverConfig
	logger    logger.Logger
	transport Transport
	device    Device
	sink      TelegramSink

	state      atomicChipState
	dispatcher dispatcher
	metrics    *DriverMetrics

	rxBuf   [knx.MaxTelegramSize]byte
	txBuf   [knx.MaxTelegramSize * framesPerByte]byte
	pending pendingSend
	queue   *pendingQueue
	sending bool

	sendReqs chan sendRequest
}

// NewDriver creates a disabled driver. Call Enable to bring the chip up.
func NewDriver(tr Transport, dev Device, sink TelegramSink, opts ...DriverOption) (*Driver, error) {
	if tr == nil {
		return nil, errors.New("tpuart: transport is nil")
	}
	if dev == nil {
		return nil, errors.New("tpuart: device is nil")
	}
	if sink == nil {
		return nil, errors.New("tpuart: telegram sink is nil")
	}

	cfg, err := NewDriverConfig(opts...)
	if err != nil {
		return nil, err
	}

	d := &Driver{
		cfg:       cfg,
		logger:    cfg.logger.With("component", "tpuart"),
		transport: tr,
		device:    dev,
		sink:      sink,
		metrics:   newDriverMetrics(),
		queue:     newPendingQueue(cfg.queueSize),
		sendReqs:  make(chan sendRequest, cfg.senderQueueSize),
	}
	d.dispatcher = dispatcher{rules: indicationRules, handlers: d.indicationHandlers()}

	return d, nil
}

func (d *Driver) indicationHandlers() [numCategories]indicationHandler {
	return [numCategories]indicationHandler{
		CategoryUnexpected:   d.handleUnexpected,
		CategoryDataStandard: func(b byte) { d.handleData(b, DecodeStandard) },
		CategoryDataExtended: func(b byte) { d.handleData(b, DecodeExtended) },
		CategoryDataConfirm:  d.handleDataConfirm,
		CategoryPollData:     d.handlePollData,
		CategoryAck:          d.handleAck,
		CategoryReset:        d.handleReset,
		CategoryState:        d.handleState,
		CategoryFrameState:   d.handleFrameState,
		CategoryConfigure:    d.handleConfigure,
		CategoryFrameEnd:     d.handleFrameEnd,
		CategoryStopMode:     d.handleStopMode,
		CategorySystemStatus: d.handleSystemStatus,
	}
}

// GetConfig returns the configuration of the driver.
func (d *Driver) GetConfig() *DriverConfig { return d.cfg }

// GetMetrics returns the metrics of the driver.
func (d *Driver) GetMetrics() *DriverMetrics { return d.metrics }

// State returns the current chip lifecycle state.
func (d *Driver) State() ChipState { return d.state.Get() }

// Enabled reports whether the chip is up and the driver processes indications.
func (d *Driver) Enabled() bool { return d.state.IsEnabled() }

// Poll performs one step: if the driver is enabled and a byte has arrived, it
// classifies the byte and runs the handler of its category, which may read the
// rest of the indication. It reports whether a byte was processed and never
// waits for input.
func (d *Driver) Poll() bool {
	if !d.state.IsEnabled() {
		return false
	}

	if !d.transport.Available() {
		return false
	}

	b, ok := d.transport.TryReadByte()
	if !ok {
		return false
	}
	d.traceRx(b)

	c := d.dispatcher.classify(b)
	d.metrics.incIndication(c)
	d.dispatcher.handle(c, b)

	return true
}

// Run polls the chip and serves Submit requests until ctx is done or the driver
// is disabled.
func (d *Driver) Run(ctx context.Context) error {
	d.logger.Debug("tpuart: poll loop started")
	defer d.logger.Debug("tpuart: poll loop stopped")

	for {
		if !d.state.IsEnabled() {
			return ErrNotEnabled
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case req := <-d.sendReqs:
			ok, err := d.Send(req.ctx, req.telegram)
			req.result <- sendResult{ok: ok, err: err}

			continue
		default:
		}

		if !d.Poll() {
			d.idle(ctx)
		}
	}
}

// Submit hands t to the goroutine executing Run and waits for the send outcome.
// It is safe for concurrent use.
func (d *Driver) Submit(ctx context.Context, t knx.Telegram) (bool, error) {
	if err := t.Validate(); err != nil {
		return false, err
	}

	req := sendRequest{ctx: ctx, telegram: t.Clone(), result: make(chan sendResult, 1)}

	select {
	case d.sendReqs <- req:
	case <-ctx.Done():
		return false, ctx.Err()
	}

	select {
	case r := <-req.result:
		return r.ok, r.err
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

func (d *Driver) idle(ctx context.Context) {
	if d.cfg.pollInterval == 0 {
		runtime.Gosched()
		return
	}

	timer := pool.GetTimer(d.cfg.pollInterval)
	defer pool.PutTimer(timer)

	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func (d *Driver) handleData(lead byte, decode func(byte, ByteReader, *[knx.MaxTelegramSize]byte) (knx.Telegram, error)) {
	t, err := decode(lead, d.transport, &d.rxBuf)
	if err != nil {
		d.metrics.incDecodeErrCount()
		d.logger.Warn("tpuart: dropping incomplete telegram", "lead", hexByte(lead), "error", err)

		return
	}
	d.metrics.incTelegramRecvCount()
	d.traceTelegram(t)

	if d.pending.active {
		if d.pending.matches(t) {
			d.confirmEcho()
			return
		}

		if !d.queue.Enqueue(t) {
			d.metrics.incTelegramDropCount()
			d.logger.Warn("tpuart: pending queue full, dropping telegram", "telegram", t.String())
		}

		return
	}

	if d.pending.isLateEcho(t) {
		d.consumeLateEcho()
		return
	}

	d.deliver(t)
}

// confirmEcho reads the confirmation byte that follows the echo of our own telegram.
func (d *Driver) confirmEcho() {
	var con [1]byte
	if err := d.transport.ReadBytes(con[:]); err != nil {
		d.logger.Warn("tpuart: echo without confirmation byte", "error", err)
		return
	}
	d.traceRx(con[0])

	d.resolveSend(con[0]&ConfirmSuccess != 0)
}

func (d *Driver) handleDataConfirm(b byte) {
	if !d.pending.active {
		if d.pending.lateConfirm {
			d.pending.lateEcho = false
			d.pending.lateConfirm = false
			d.metrics.incLateOutcomeCount()
			d.logger.Debug("tpuart: late confirmation of abandoned send", "byte", hexByte(b))

			return
		}

		d.logger.Warn("tpuart: unexpected data confirmation", "byte", hexByte(b))

		return
	}

	d.resolveSend(b&ConfirmSuccess != 0)
}

func (d *Driver) flushQueue() {
	if n := d.queue.Flush(d.deliver); n > 0 {
		d.logger.Debug("tpuart: delivered held back telegrams", "count", n)
	}
}

// deliver hands t to the sink. A device without an individual address gets no
// automatic acknowledgement from the chip, so broadcasts are acknowledged here.
func (d *Driver) deliver(t knx.Telegram) {
	if !d.device.IndividualAddress().IsSet() && t.Destination() == 0 {
		d.metrics.incAckRequestCount()
		if err := d.write([]byte{UAckReq | AckAddressed}); err != nil {
			d.logger.Warn("tpuart: failed to write acknowledge request", "error", err)
		}
	}

	d.metrics.incTelegramDeliverCount()
	d.sink.TelegramReceived(t.Clone())
}

func (d *Driver) handlePollData(b byte) {
	d.logger.Debug("tpuart: got poll data indication", "byte", hexByte(b))
}

func (d *Driver) handleAck(b byte) {
	d.logger.Debug("tpuart: got ack indication", "byte", hexByte(b))
}

func (d *Driver) handleReset(b byte) {
	d.logger.Info("tpuart: got reset indication", "byte", hexByte(b))
}

func (d *Driver) handleState(b byte) {
	flags := StateFlags(b &^ UStateInd)
	if flags.HasErrors() {
		d.logger.Warn("tpuart: got state indication", "byte", hexByte(b), "flags", flags.String())
		return
	}
	d.logger.Debug("tpuart: got state indication", "byte", hexByte(b))
}

func (d *Driver) handleFrameState(b byte) {
	flags := FrameStateFlags(b &^ UFrameStateMask)
	if flags.HasErrors() {
		d.logger.Warn("tpuart: got frame state indication", "byte", hexByte(b), "flags", flags.String())
		return
	}
	d.logger.Debug("tpuart: got frame state indication", "byte", hexByte(b))
}

func (d *Driver) handleConfigure(b byte) {
	d.logger.Debug("tpuart: got configure indication", "byte", hexByte(b), "flags", ConfigureFlags(b&^UConfigureMask).String())
}

func (d *Driver) handleFrameEnd(b byte) {
	d.logger.Debug("tpuart: got frame end indication", "byte", hexByte(b))
}

func (d *Driver) handleStopMode(b byte) {
	d.logger.Debug("tpuart: got stop mode indication", "byte", hexByte(b))
}

func (d *Driver) handleSystemStatus(b byte) {
	var status [1]byte
	if err := d.transport.ReadBytes(status[:]); err != nil {
		d.logger.Warn("tpuart: system status indication without status byte", "error", err)
		return
	}
	d.traceRx(status[0])

	d.logger.Debug("tpuart: got system status indication", "byte", hexByte(b), "status", hexByte(status[0]))
}

func (d *Driver) handleUnexpected(b byte) {
	d.metrics.incUnexpectedByteCount()
	d.logger.Warn("tpuart: got unexpected byte", "byte", hexByte(b))
}

func (d *Driver) write(data []byte) error {
	if d.cfg.hexTrace {
		d.logger.Debug("tpuart: tx", "data", fmt.Sprintf("% X", data))
	}

	return d.transport.Write(data)
}

func (d *Driver) traceRx(b byte) {
	if d.cfg.hexTrace {
		d.logger.Debug("tpuart: rx", "byte", hexByte(b))
	}
}

func (d *Driver) traceTelegram(t knx.Telegram) {
	if d.cfg.hexTrace {
		d.logger.Debug("tpuart: rx telegram", "telegram", t.String())
	}
}

func hexByte(b byte) string {
	return fmt.Sprintf("0x%02X", b)
}
