// Package transport provides the byte channels the tpuart driver talks to the
// transceiver chip through.
//
// A Port wraps any io.ReadWriteCloser produced by an Opener and runs a
// background pump that moves inbound bytes into a bounded buffer. This gives
// the driver the polling contract it needs:
//
//   - Available reports whether a byte is waiting, without blocking.
//   - TryReadByte returns one byte or reports that none is available yet.
//   - ReadBytes blocks until the requested number of bytes has arrived, bounded
//     by the inter-byte read timeout (WithReadTimeout).
//   - Write sends a byte sequence as one unit.
//
// Three openers are provided:
//
//   - NewSerialPort opens a local UART with the requested line configuration.
//   - NewTCPPort connects to a serial-over-TCP bridge (ser2net style).
//   - NewQUICPort connects to a serial bridge over a single QUIC stream.
//
// Port is safe to Close from another goroutine, but the read side is meant
// to be consumed by a single driver goroutine.
package transport
