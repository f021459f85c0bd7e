package tpuart

import "errors"

var (
	// Lifecycle errors.
	ErrNotEnabled        = errors.New("tpuart: driver is not enabled")
	ErrLifecycleBusy     = errors.New("tpuart: chip lifecycle transition in progress")
	ErrHandshakeTimeout  = errors.New("tpuart: chip handshake timeout")
	ErrTransportNotReady = errors.New("tpuart: transport is not ready")

	// Send errors.
	ErrSendInProgress = errors.New("tpuart: send already in progress")
	ErrSendTimeout    = errors.New("tpuart: send confirmation timeout")

	// Codec errors.
	ErrShortRead             = errors.New("tpuart: short read while decoding telegram")
	ErrMalformedTransmission = errors.New("tpuart: malformed transmission framing")
	ErrNotStandardEncodable  = errors.New("tpuart: telegram cannot use the standard wire format")
)
