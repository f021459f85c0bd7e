package tpuart

import (
	"bytes"
	"context"
	"fmt"
	"runtime"

	"github.com/arloliu/go-tpuart/internal/pool"
	"github.com/arloliu/go-tpuart/knx"
)

// pendingSend is the telegram awaiting its echo or confirmation. It lives in
// a fixed buffer; its length is always derived from the length field.
//
// After an abandoned send the chip may still report the outcome. lateEcho and
// lateConfirm mark the echo and the confirmation byte that are still owed, so
// they are consumed instead of being delivered or reported as unexpected.
type pendingSend struct {
	buf         [knx.MaxTelegramSize]byte
	active      bool
	success     bool
	lateEcho    bool
	lateConfirm bool
}

func (p *pendingSend) begin(t knx.Telegram) {
	copy(p.buf[:], t)
	p.active = true
	p.success = false
	p.lateEcho = false
	p.lateConfirm = false
}

func (p *pendingSend) telegram() knx.Telegram {
	return knx.Telegram(p.buf[:knx.Telegram(p.buf[:]).Len()])
}

// matches reports whether t is the echo of the pending telegram.
func (p *pendingSend) matches(t knx.Telegram) bool {
	return p.active && bytes.Equal(p.telegram(), t)
}

func (p *pendingSend) resolve(success bool) {
	p.active = false
	p.success = success
}

func (p *pendingSend) clear() {
	p.active = false
	p.success = false
	p.lateEcho = false
	p.lateConfirm = false
}

// abandon stops waiting but keeps the telegram to recognize its late echo.
func (p *pendingSend) abandon() {
	p.active = false
	p.success = false
	p.lateEcho = true
	p.lateConfirm = true
}

// isLateEcho reports whether t is the echo of an abandoned send.
func (p *pendingSend) isLateEcho(t knx.Telegram) bool {
	return !p.active && p.lateEcho && bytes.Equal(p.telegram(), t)
}

// Send transmits t and polls the chip until the outcome is known: either the
// echo of t followed by its confirmation byte, or a standalone data
// confirmation. Telegrams from other devices that arrive meanwhile are held back
// and delivered once the outcome is known. It returns whether the chip
// confirmed the transmission.
//
// Send may be called from the sink, but not while another Send is waiting.
// An error means the outcome is unknown or the telegram was never written.
func (d *Driver) Send(ctx context.Context, t knx.Telegram) (bool, error) {
	if d.sending {
		return false, ErrSendInProgress
	}
	if !d.state.IsEnabled() {
		return false, ErrNotEnabled
	}
	if err := t.Validate(); err != nil {
		return false, err
	}
	// a caller that already gave up must not put the telegram on the bus
	if err := ctx.Err(); err != nil {
		return false, err
	}

	d.sending = true
	defer func() { d.sending = false }()

	d.pending.begin(t)
	if err := d.write(AppendTransmission(d.txBuf[:0], t)); err != nil {
		d.pending.clear()
		return false, fmt.Errorf("tpuart: write telegram: %w", err)
	}
	d.metrics.incSendCount()

	deadline, release := pool.Deadline(d.cfg.sendTimeout)
	defer release()

	for d.pending.active {
		if !d.state.IsEnabled() {
			d.abandonSend("driver disabled")
			return false, ErrNotEnabled
		}

		select {
		case <-ctx.Done():
			d.abandonSend("context done")
			return false, ctx.Err()
		case <-deadline:
			d.abandonSend("timeout")
			return false, fmt.Errorf("%w: no outcome within %v", ErrSendTimeout, d.cfg.sendTimeout)
		default:
		}

		if !d.Poll() {
			runtime.Gosched()
		}
	}

	if !d.pending.success {
		d.logger.Debug("tpuart: chip reported transmission failure", "telegram", t.String())
	}

	return d.pending.success, nil
}

// resolveSend records the outcome of the pending send and releases the
// telegrams held back meanwhile.
func (d *Driver) resolveSend(success bool) {
	d.pending.resolve(success)
	d.metrics.incSendResult(success)
	d.flushQueue()
}

func (d *Driver) abandonSend(reason string) {
	d.logger.Warn("tpuart: abandoning pending send", "reason", reason, "telegram", d.pending.telegram().String())
	d.pending.abandon()
	d.metrics.incSendAbandonCount()
	d.flushQueue()
}

// consumeLateEcho swallows the echo of an abandoned send and the confirmation
// byte that follows it.
func (d *Driver) consumeLateEcho() {
	d.pending.lateEcho = false
	d.metrics.incLateOutcomeCount()

	var con [1]byte
	if err := d.transport.ReadBytes(con[:]); err != nil {
		d.logger.Debug("tpuart: late echo without confirmation byte", "error", err)
		return
	}
	d.traceRx(con[0])
	d.pending.lateConfirm = false

	d.logger.Debug("tpuart: late outcome of abandoned send",
		"telegram", d.pending.telegram().String(), "success", con[0]&ConfirmSuccess != 0)
}
