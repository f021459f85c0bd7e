package tpuart

import "sync/atomic"

// ChipState is the driver's view of the transceiver lifecycle.
//
//	Disabled -> Resetting -> AddressConfiguring -> Enabled -> Stopping -> Disabled
type ChipState uint32

const (
	ChipDisabled ChipState = iota
	ChipResetting
	ChipAddressConfiguring
	ChipEnabled
	ChipStopping
)

func (s ChipState) String() string {
	switch s {
	case ChipDisabled:
		return "Disabled"
	case ChipResetting:
		return "Resetting"
	case ChipAddressConfiguring:
		return "AddressConfiguring"
	case ChipEnabled:
		return "Enabled"
	case ChipStopping:
		return "Stopping"
	default:
		return "Unknown"
	}
}

// atomicChipState lets monitoring goroutines read the state while the driver goroutine changes it.
type atomicChipState struct {
	state atomic.Uint32
}

func (st *atomicChipState) Get() ChipState {
	return ChipState(st.state.Load())
}

func (st *atomicChipState) Set(state ChipState) {
	st.state.Store(uint32(state))
}

func (st *atomicChipState) IsEnabled() bool {
	return st.Get() == ChipEnabled
}

func (st *atomicChipState) IsDisabled() bool {
	return st.Get() == ChipDisabled
}

// To moves from one state to the next, failing if the current state is not from.
func (st *atomicChipState) To(from, to ChipState) bool {
	return st.state.CompareAndSwap(uint32(from), uint32(to))
}
