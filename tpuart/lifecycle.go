package tpuart

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"github.com/arloliu/go-tpuart/internal/pool"
	"github.com/arloliu/go-tpuart/knx"
)

// Enable opens the transport, resets the chip and programs the device's
// individual address. Enabling an enabled driver is a no-op. On failure the
// transport is closed and the driver stays disabled.
func (d *Driver) Enable(ctx context.Context) error {
	if !d.state.To(ChipDisabled, ChipResetting) {
		if d.state.IsEnabled() {
			return nil
		}

		return fmt.Errorf("%w: state %s", ErrLifecycleBusy, d.state.Get())
	}

	addr := d.device.IndividualAddress()
	if err := d.enable(ctx, addr); err != nil {
		if closeErr := d.transport.Close(); closeErr != nil {
			d.logger.Debug("tpuart: close transport after failed enable", "error", closeErr)
		}
		d.state.Set(ChipDisabled)
		d.logger.Error("tpuart: failed to enable chip", "error", err)

		return err
	}

	// the reset dropped any outcome still owed for an earlier send
	d.pending.clear()
	d.state.Set(ChipEnabled)
	d.logger.Info("tpuart: chip enabled", "address", addr.String())

	return nil
}

func (d *Driver) enable(ctx context.Context, addr knx.IndividualAddress) error {
	if err := d.transport.Open(ChipLineConfig()); err != nil {
		return fmt.Errorf("tpuart: open transport: %w", err)
	}
	if err := d.awaitReady(ctx); err != nil {
		return err
	}
	if err := d.reset(ctx); err != nil {
		return err
	}

	d.state.Set(ChipAddressConfiguring)

	return d.assignAddress(ctx, addr)
}

// Disable puts the chip into stop mode and closes the transport. The driver
// stops processing indications before the stop request is written, and the
// transport is closed even if the chip does not answer. Disabling a disabled
// driver is a no-op.
func (d *Driver) Disable(ctx context.Context) error {
	if !d.state.To(ChipEnabled, ChipStopping) {
		if d.state.IsDisabled() {
			return nil
		}

		return fmt.Errorf("%w: state %s", ErrLifecycleBusy, d.state.Get())
	}

	stopErr := d.stop(ctx)

	var closeErr error
	if err := d.transport.Close(); err != nil {
		closeErr = fmt.Errorf("tpuart: close transport: %w", err)
	}
	d.state.Set(ChipDisabled)

	if err := errors.Join(stopErr, closeErr); err != nil {
		d.logger.Warn("tpuart: chip disabled with errors", "error", err)
		return err
	}
	d.logger.Info("tpuart: chip disabled")

	return nil
}

// reset requests a chip reset and waits for the reset indication.
func (d *Driver) reset(ctx context.Context) error {
	if err := d.write([]byte{UResetReq}); err != nil {
		return fmt.Errorf("tpuart: write reset request: %w", err)
	}
	if err := d.awaitIndication(ctx, "reset indication", func(b byte) bool { return b == UResetInd }); err != nil {
		return err
	}
	d.metrics.incResetCount()

	return nil
}

// assignAddress programs addr into the chip so it acknowledges telegrams for
// the device on its own. The unset address is not programmed.
func (d *Driver) assignAddress(ctx context.Context, addr knx.IndividualAddress) error {
	if !addr.IsSet() {
		d.logger.Debug("tpuart: no individual address to assign")
		return nil
	}

	// the last byte is ignored by the chip
	cmd := []byte{USetAddressReq, byte(addr >> 8), byte(addr), 0x00}
	if err := d.write(cmd); err != nil {
		return fmt.Errorf("tpuart: write set address request: %w", err)
	}

	return d.awaitIndication(ctx, "configure indication", func(b byte) bool {
		return b&UConfigureMask == UConfigureInd
	})
}

// stop requests stop mode and waits for the stop mode indication.
func (d *Driver) stop(ctx context.Context) error {
	if err := d.write([]byte{UStopModeReq}); err != nil {
		return fmt.Errorf("tpuart: write stop mode request: %w", err)
	}

	return d.awaitIndication(ctx, "stop mode indication", func(b byte) bool { return b == UStopModeInd })
}

func (d *Driver) awaitReady(ctx context.Context) error {
	deadline, release := pool.Deadline(d.cfg.handshakeTimeout)
	defer release()

	for !d.transport.IsReady() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline:
			return fmt.Errorf("%w: transport not ready", ErrHandshakeTimeout)
		default:
			runtime.Gosched()
		}
	}

	return nil
}

// awaitIndication reads bytes until match accepts one. Bytes read meanwhile are
// discarded.
func (d *Driver) awaitIndication(ctx context.Context, what string, match func(byte) bool) error {
	deadline, release := pool.Deadline(d.cfg.handshakeTimeout)
	defer release()

	for {
		if b, ok := d.transport.TryReadByte(); ok {
			d.traceRx(b)
			if match(b) {
				return nil
			}
			d.logger.Debug("tpuart: discarding byte during handshake", "awaiting", what, "byte", hexByte(b))

			continue
		}

		if !d.transport.IsReady() {
			return fmt.Errorf("%w: while awaiting %s", ErrTransportNotReady, what)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline:
			return fmt.Errorf("%w: no %s within %v", ErrHandshakeTimeout, what, d.cfg.handshakeTimeout)
		default:
			runtime.Gosched()
		}
	}
}
