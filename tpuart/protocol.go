package tpuart

import (
	"strings"

	"github.com/arloliu/go-tpuart/transport"
)

// Host to chip services. The data-transmission commands carry an index or a
// window number in their low bits.
const (
	UResetReq         byte = 0x01
	UStateReq         byte = 0x02
	USetBusyReq       byte = 0x03
	UQuitBusyReq      byte = 0x04
	UBusmonReq        byte = 0x05
	USetAddressReq    byte = 0xF1
	USetRepetitionReq byte = 0xF2
	UDataOffsetReq    byte = 0x08 // 0x08-0x0C, low bits select the 64-byte window
	USystemStateReq   byte = 0x0D
	UStopModeReq      byte = 0x0E
	UExitStopModeReq  byte = 0x0F
	UAckReq           byte = 0x10 // 0x10-0x17
	UConfigureReq     byte = 0x18
	UIntRegWrReq      byte = 0x28
	UIntRegRdReq      byte = 0x38
	UPollingStateReq  byte = 0xE0
	UDataStartContReq byte = 0x80 // 0x80-0xBF, low 6 bits carry the byte index
	UDataEndReq       byte = 0x47
)

// Acknowledge request flags, or'ed into UAckReq.
const (
	AckAddressed byte = 0x01
	AckBusy      byte = 0x02
	AckNack      byte = 0x04
)

// Chip to host services.
const (
	LDataStandardInd byte = 0x81
	LDataExtendedInd byte = 0x10
	LDataMask        byte = 0xD3
	LPollDataInd     byte = 0xF0

	LAckInd  byte = 0x00
	LAckMask byte = 0x33

	LDataCon       byte = 0x0B
	LDataConMask   byte = 0x7F
	ConfirmSuccess byte = 0x80

	UResetInd       byte = 0x03
	UStateInd       byte = 0x07
	UFrameStateInd  byte = 0x13
	UFrameStateMask byte = 0x17
	UConfigureInd   byte = 0x01
	UConfigureMask  byte = 0x83
	UFrameEndInd    byte = 0xCB
	UStopModeInd    byte = 0x2B
	USystemStatInd  byte = 0x4B
)

// transmission framing geometry
const (
	windowSize     = 64
	windowIndexMax = 0x3F
	framesPerByte  = 3
)

// ChipLineConfig returns the fixed UART settings of the transceiver: 19200 baud, 8E1.
func ChipLineConfig() transport.LineConfig {
	return transport.LineConfig{
		BaudRate: 19200,
		DataBits: 8,
		Parity:   transport.EvenParity,
		StopBits: transport.OneStopBit,
	}
}

// StateFlags are the status bits of a state indication.
type StateFlags byte

const (
	StateSlaveCollision     StateFlags = 0x80
	StateReceiveError       StateFlags = 0x40
	StateTransmitError      StateFlags = 0x20
	StateProtocolError      StateFlags = 0x10
	StateTemperatureWarning StateFlags = 0x08
)

// HasErrors reports whether any status bit is set.
func (f StateFlags) HasErrors() bool {
	return f&(StateSlaveCollision|StateReceiveError|StateTransmitError|StateProtocolError|StateTemperatureWarning) != 0
}

func (f StateFlags) String() string {
	return flagNames(byte(f), []flagName{
		{byte(StateSlaveCollision), "slave collision"},
		{byte(StateReceiveError), "receive error"},
		{byte(StateTransmitError), "transmit error"},
		{byte(StateProtocolError), "protocol error"},
		{byte(StateTemperatureWarning), "temperature warning"},
	})
}

// FrameStateFlags are the error bits of a frame-state indication.
type FrameStateFlags byte

const (
	FrameParityBitError      FrameStateFlags = 0x80
	FrameChecksumLengthError FrameStateFlags = 0x40
	FrameTimingError         FrameStateFlags = 0x20
)

// HasErrors reports whether any parity, checksum or timing bit is set.
func (f FrameStateFlags) HasErrors() bool {
	return f&(FrameParityBitError|FrameChecksumLengthError|FrameTimingError) != 0
}

func (f FrameStateFlags) String() string {
	return flagNames(byte(f), []flagName{
		{byte(FrameParityBitError), "parity bit error"},
		{byte(FrameChecksumLengthError), "checksum/length error"},
		{byte(FrameTimingError), "timing error"},
	})
}

// ConfigureFlags are the option bits reported by a configure indication.
type ConfigureFlags byte

const (
	ConfigureCRCCCITT           ConfigureFlags = 0x80
	ConfigureFrameEndWithMarker ConfigureFlags = 0x40
	ConfigureAutoAcknowledge    ConfigureFlags = 0x20
	ConfigureAutoPolling        ConfigureFlags = 0x10
)

func (f ConfigureFlags) String() string {
	return flagNames(byte(f), []flagName{
		{byte(ConfigureCRCCCITT), "crc-ccitt"},
		{byte(ConfigureFrameEndWithMarker), "frame end with marker"},
		{byte(ConfigureAutoAcknowledge), "auto acknowledge"},
		{byte(ConfigureAutoPolling), "auto polling"},
	})
}

type flagName struct {
	bit  byte
	name string
}

func flagNames(v byte, names []flagName) string {
	var set []string
	for _, n := range names {
		if v&n.bit != 0 {
			set = append(set, n.name)
		}
	}
	if len(set) == 0 {
		return "none"
	}

	return strings.Join(set, ", ")
}
