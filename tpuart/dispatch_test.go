package tpuart

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		b    byte
		want Category
	}{
		{0x81, CategoryDataStandard},
		{0xAD, CategoryDataStandard},
		{0x10, CategoryDataExtended},
		{0x3C, CategoryDataExtended},
		{0x8B, CategoryDataConfirm},
		{0x0B, CategoryDataConfirm},
		{0xF0, CategoryPollData},
		{0x00, CategoryAck},
		{0xC0, CategoryAck},
		{0x03, CategoryReset},
		{0x07, CategoryState},
		{0xC7, CategoryState},
		{0x13, CategoryFrameState},
		{0x93, CategoryFrameState},
		{0x01, CategoryConfigure},
		{0x21, CategoryConfigure},
		{0xCB, CategoryFrameEnd},
		{0x2B, CategoryStopMode},
		{0x4B, CategorySystemStatus},
		{0x02, CategoryUnexpected},
		{0x42, CategoryUnexpected},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.b), "byte 0x%02X", tt.b)
	}
}

func TestIndicationRules_NoOverlap(t *testing.T) {
	for i := 0; i < 256; i++ {
		b := byte(i)

		var matched []Category
		for _, r := range IndicationRules() {
			if r.Match(b) {
				matched = append(matched, r.Category)
			}
		}
		assert.LessOrEqual(t, len(matched), 1, "byte 0x%02X matches %v", b, matched)
	}
}

func TestIndicationRules_ReturnsCopy(t *testing.T) {
	rules := IndicationRules()
	rules[0].Mask = 0x00

	assert.Equal(t, CategoryDataStandard, Classify(0x81))
	assert.Equal(t, LDataMask, IndicationRules()[0].Mask)
}

func TestDispatcher_FirstMatchWins(t *testing.T) {
	var got []string

	d := dispatcher{
		rules: []IndicationRule{
			{Category: CategoryReset, Mask: 0xF0, Value: 0x80},
			{Category: CategoryState, Mask: 0x0F, Value: 0x01},
		},
	}
	d.handlers[CategoryReset] = func(b byte) { got = append(got, "high") }
	d.handlers[CategoryState] = func(b byte) { got = append(got, "low") }
	d.handlers[CategoryUnexpected] = func(b byte) { got = append(got, "unexpected") }

	assert.Equal(t, CategoryReset, d.dispatch(0x81)) // matches both rules
	assert.Equal(t, CategoryState, d.dispatch(0x01))
	assert.Equal(t, CategoryUnexpected, d.dispatch(0x02))
	assert.Equal(t, []string{"high", "low", "unexpected"}, got)
}

func TestDispatcher_MissingHandler(t *testing.T) {
	d := dispatcher{rules: indicationRules}

	assert.NotPanics(t, func() {
		assert.Equal(t, CategoryReset, d.dispatch(UResetInd))
	})
}

func TestCategory_String(t *testing.T) {
	assert.Equal(t, "data standard", CategoryDataStandard.String())
	assert.Equal(t, "system status", CategorySystemStatus.String())
	assert.Equal(t, "unexpected", CategoryUnexpected.String())
	assert.Equal(t, "Category(200)", Category(200).String())
}

func TestFlags_String(t *testing.T) {
	assert.Equal(t, "none", StateFlags(0).String())
	assert.Equal(t, "slave collision, temperature warning", (StateSlaveCollision | StateTemperatureWarning).String())
	assert.True(t, StateReceiveError.HasErrors())
	assert.False(t, StateFlags(0x07).HasErrors())

	assert.Equal(t, "parity bit error, timing error", (FrameParityBitError | FrameTimingError).String())
	assert.False(t, FrameStateFlags(0x13).HasErrors())

	assert.Equal(t, "auto acknowledge", ConfigureAutoAcknowledge.String())
}

func TestChipState_String(t *testing.T) {
	assert.Equal(t, "Disabled", ChipDisabled.String())
	assert.Equal(t, "AddressConfiguring", ChipAddressConfiguring.String())
	assert.Equal(t, "Unknown", ChipState(42).String())

	var st atomicChipState
	assert.True(t, st.IsDisabled())
	assert.True(t, st.To(ChipDisabled, ChipResetting))
	assert.False(t, st.To(ChipDisabled, ChipResetting))
	assert.Equal(t, ChipResetting, st.Get())
}
