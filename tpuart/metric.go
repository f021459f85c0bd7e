package tpuart

import (
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"
)

// DriverMetrics contains atomic metrics of a Driver.
// Metrics can be used as the value of a prometheus CounterFunc or GaugeFunc.
type DriverMetrics struct {
	// TelegramRecvCount indicates the number of telegrams decoded from the bus.
	TelegramRecvCount atomic.Uint64
	// TelegramDeliverCount indicates the number of telegrams handed to the sink.
	TelegramDeliverCount atomic.Uint64
	// TelegramDropCount indicates the number of telegrams dropped because the pending queue was full.
	TelegramDropCount atomic.Uint64
	// DecodeErrCount indicates the number of telegrams that could not be read completely.
	DecodeErrCount atomic.Uint64

	// SendCount indicates the number of telegrams written to the chip.
	SendCount atomic.Uint64
	// SendSuccessCount indicates the number of sends the chip confirmed.
	SendSuccessCount atomic.Uint64
	// SendFailCount indicates the number of sends the chip rejected.
	SendFailCount atomic.Uint64
	// SendAbandonCount indicates the number of sends given up by timeout or cancellation.
	SendAbandonCount atomic.Uint64
	// LateOutcomeCount indicates the number of echoes or confirmations of abandoned sends that were consumed.
	LateOutcomeCount atomic.Uint64

	// UnexpectedByteCount indicates the number of bytes matching no indication.
	UnexpectedByteCount atomic.Uint64
	// AckRequestCount indicates the number of acknowledge requests written on behalf of an unaddressed device.
	AckRequestCount atomic.Uint64
	// ResetCount indicates the number of completed chip resets.
	ResetCount atomic.Uint64

	indications *xsync.MapOf[Category, uint64]
}

func newDriverMetrics() *DriverMetrics {
	return &DriverMetrics{
		indications: xsync.NewMapOf[Category, uint64](),
	}
}

// IndicationCount returns how many leading bytes were classified as c.
func (m *DriverMetrics) IndicationCount(c Category) uint64 {
	n, _ := m.indications.Load(c)
	return n
}

// IndicationCounts returns a snapshot of the per-category counters.
func (m *DriverMetrics) IndicationCounts() map[Category]uint64 {
	out := make(map[Category]uint64, numCategories)
	m.indications.Range(func(c Category, n uint64) bool {
		out[c] = n
		return true
	})

	return out
}

func (m *DriverMetrics) incIndication(c Category) {
	m.indications.Compute(c, func(old uint64, _ bool) (uint64, bool) {
		return old + 1, false
	})
}

func (m *DriverMetrics) incTelegramRecvCount() {
	m.TelegramRecvCount.Add(1)
}

func (m *DriverMetrics) incTelegramDeliverCount() {
	m.TelegramDeliverCount.Add(1)
}

func (m *DriverMetrics) incTelegramDropCount() {
	m.TelegramDropCount.Add(1)
}

func (m *DriverMetrics) incDecodeErrCount() {
	m.DecodeErrCount.Add(1)
}

func (m *DriverMetrics) incSendCount() {
	m.SendCount.Add(1)
}

func (m *DriverMetrics) incSendResult(success bool) {
	if success {
		m.SendSuccessCount.Add(1)
	} else {
		m.SendFailCount.Add(1)
	}
}

func (m *DriverMetrics) incSendAbandonCount() {
	m.SendAbandonCount.Add(1)
}

func (m *DriverMetrics) incLateOutcomeCount() {
	m.LateOutcomeCount.Add(1)
}

func (m *DriverMetrics) incUnexpectedByteCount() {
	m.UnexpectedByteCount.Add(1)
}

func (m *DriverMetrics) incAckRequestCount() {
	m.AckRequestCount.Add(1)
}

func (m *DriverMetrics) incResetCount() {
	m.ResetCount.Add(1)
}
