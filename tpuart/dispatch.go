package tpuart

import "fmt"

// Category is the kind of chip indication a leading byte announces.
type Category uint8

const (
	CategoryUnexpected Category = iota
	CategoryDataStandard
	CategoryDataExtended
	CategoryDataConfirm
	CategoryPollData
	CategoryAck
	CategoryReset
	CategoryState
	CategoryFrameState
	CategoryConfigure
	CategoryFrameEnd
	CategoryStopMode
	CategorySystemStatus

	numCategories
)

func (c Category) String() string {
	switch c {
	case CategoryUnexpected:
		return "unexpected"
	case CategoryDataStandard:
		return "data standard"
	case CategoryDataExtended:
		return "data extended"
	case CategoryDataConfirm:
		return "data confirm"
	case CategoryPollData:
		return "poll data"
	case CategoryAck:
		return "ack"
	case CategoryReset:
		return "reset"
	case CategoryState:
		return "state"
	case CategoryFrameState:
		return "frame state"
	case CategoryConfigure:
		return "configure"
	case CategoryFrameEnd:
		return "frame end"
	case CategoryStopMode:
		return "stop mode"
	case CategorySystemStatus:
		return "system status"
	default:
		return fmt.Sprintf("Category(%d)", uint8(c))
	}
}

// IndicationRule matches a leading byte when b&Mask == Value.
type IndicationRule struct {
	Category Category
	Mask     byte
	Value    byte
}

// Match reports whether b belongs to the rule's category.
func (r IndicationRule) Match(b byte) bool {
	return b&r.Mask == r.Value
}

// indicationRules is ordered by priority; the first matching rule wins.
var indicationRules = []IndicationRule{
	{Category: CategoryDataStandard, Mask: LDataMask, Value: LDataStandardInd},
	{Category: CategoryDataExtended, Mask: LDataMask, Value: LDataExtendedInd},
	{Category: CategoryDataConfirm, Mask: LDataConMask, Value: LDataCon},
	{Category: CategoryPollData, Mask: 0xFF, Value: LPollDataInd},
	{Category: CategoryAck, Mask: LAckMask, Value: LAckInd},
	{Category: CategoryReset, Mask: 0xFF, Value: UResetInd},
	{Category: CategoryState, Mask: UStateInd, Value: UStateInd},
	{Category: CategoryFrameState, Mask: UFrameStateMask, Value: UFrameStateInd},
	{Category: CategoryConfigure, Mask: UConfigureMask, Value: UConfigureInd},
	{Category: CategoryFrameEnd, Mask: 0xFF, Value: UFrameEndInd},
	{Category: CategoryStopMode, Mask: 0xFF, Value: UStopModeInd},
	{Category: CategorySystemStatus, Mask: 0xFF, Value: USystemStatInd},
}

// IndicationRules returns a copy of the classification table in priority order.
func IndicationRules() []IndicationRule {
	return append([]IndicationRule(nil), indicationRules...)
}

// Classify returns the category of the indication led by b.
func Classify(b byte) Category {
	return classify(indicationRules, b)
}

func classify(rules []IndicationRule, b byte) Category {
	for _, r := range rules {
		if r.Match(b) {
			return r.Category
		}
	}

	return CategoryUnexpected
}

// indicationHandler processes the indication led by b; it may read further bytes.
type indicationHandler func(b byte)

// dispatcher routes a leading byte to the handler of its category.
type dispatcher struct {
	rules    []IndicationRule
	handlers [numCategories]indicationHandler
}

func (d *dispatcher) classify(b byte) Category {
	return classify(d.rules, b)
}

func (d *dispatcher) handle(c Category, b byte) {
	if h := d.handlers[c]; h != nil {
		h(b)
	}
}

func (d *dispatcher) dispatch(b byte) Category {
	c := d.classify(b)
	d.handle(c, b)

	return c
}
