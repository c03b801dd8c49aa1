package obs

import (
	"sync/atomic"
	"time"

	"bookstrat/internal/schema"
)

// Anomaly is a data-quality problem found while applying an event.
type Anomaly uint16

const (
	AnomalyUnknown Anomaly = iota
	AnomalyUnknownPriceOnDelete
	AnomalyNonPositiveSize
	AnomalyUnknownBookSide
	AnomalyUnknownOrderSide
	AnomalyEmptyBookSide
)

const maxAnomaly = int(AnomalyEmptyBookSide)

func (a Anomaly) String() string {
	switch a {
	case AnomalyUnknownPriceOnDelete:
		return "unknown_price_on_delete"
	case AnomalyNonPositiveSize:
		return "non_positive_size"
	case AnomalyUnknownBookSide:
		return "unknown_book_side"
	case AnomalyUnknownOrderSide:
		return "unknown_order_side"
	case AnomalyEmptyBookSide:
		return "empty_book_side"
	default:
		return "unknown"
	}
}

// Metrics collects lightweight counters and latency stats.
type Metrics struct {
	eventCounts   [int(schema.MaxEventType) + 1]uint64
	anomalyCounts [maxAnomaly + 1]uint64
	intents       uint64
	shutdowns     uint64
	handleErrors  uint64
	queueDrops    uint64
	queueClosed   uint64

	handleLatency LatencyStats
}

// LatencyStats aggregates duration samples in nanoseconds.
type LatencyStats struct {
	count uint64
	sum   uint64
	min   uint64
	max   uint64
}

// LatencySnapshot is a point-in-time view of latency stats.
type LatencySnapshot struct {
	Count uint64
	Min   time.Duration
	Max   time.Duration
	Avg   time.Duration
}

// Snapshot captures the current metrics values.
type Snapshot struct {
	EventCounts   map[schema.EventType]uint64
	AnomalyCounts map[Anomaly]uint64
	Intents       uint64
	Shutdowns     uint64
	HandleErrors  uint64
	QueueDrops    uint64
	QueueClosed   uint64
	HandleLatency LatencySnapshot
}

// NewMetrics allocates a metrics container.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// ObserveEvent increments the counter of the event kind.
func (m *Metrics) ObserveEvent(kind schema.EventType) {
	if m == nil {
		return
	}
	idx := int(kind)
	if idx >= 0 && idx < len(m.eventCounts) {
		atomic.AddUint64(&m.eventCounts[idx], 1)
	}
}

// IncAnomaly records a data-quality anomaly.
func (m *Metrics) IncAnomaly(a Anomaly) {
	if m == nil {
		return
	}
	idx := int(a)
	if idx >= 0 && idx < len(m.anomalyCounts) {
		atomic.AddUint64(&m.anomalyCounts[idx], 1)
	}
}

// IncIntent records an emitted order intent.
func (m *Metrics) IncIntent() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.intents, 1)
}

// IncShutdown records a shutdown request issued by risk.
func (m *Metrics) IncShutdown() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.shutdowns, 1)
}

// IncHandleError records an event whose handling returned an error.
func (m *Metrics) IncHandleError() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.handleErrors, 1)
}

// IncQueueDrop records a queue drop.
func (m *Metrics) IncQueueDrop() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.queueDrops, 1)
}

// IncQueueClosed records a closed-queue publish attempt.
func (m *Metrics) IncQueueClosed() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.queueClosed, 1)
}

// ObserveHandle measures the time spent handling one event.
func (m *Metrics) ObserveHandle(d time.Duration) {
	if m == nil {
		return
	}
	m.handleLatency.Observe(d)
}

// Snapshot returns a copy of the current metrics values.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	eventCounts := make(map[schema.EventType]uint64)
	for i := range m.eventCounts {
		if v := atomic.LoadUint64(&m.eventCounts[i]); v > 0 {
			eventCounts[schema.EventType(i)] = v
		}
	}
	anomalyCounts := make(map[Anomaly]uint64)
	for i := range m.anomalyCounts {
		if v := atomic.LoadUint64(&m.anomalyCounts[i]); v > 0 {
			anomalyCounts[Anomaly(i)] = v
		}
	}
	return Snapshot{
		EventCounts:   eventCounts,
		AnomalyCounts: anomalyCounts,
		Intents:       atomic.LoadUint64(&m.intents),
		Shutdowns:     atomic.LoadUint64(&m.shutdowns),
		HandleErrors:  atomic.LoadUint64(&m.handleErrors),
		QueueDrops:    atomic.LoadUint64(&m.queueDrops),
		QueueClosed:   atomic.LoadUint64(&m.queueClosed),
		HandleLatency: m.handleLatency.Snapshot(),
	}
}

// Observe records a duration sample.
func (l *LatencyStats) Observe(d time.Duration) {
	if d < 0 {
		return
	}
	nanos := uint64(d)
	atomic.AddUint64(&l.count, 1)
	atomic.AddUint64(&l.sum, nanos)

	for {
		min := atomic.LoadUint64(&l.min)
		if min != 0 && nanos >= min {
			break
		}
		if atomic.CompareAndSwapUint64(&l.min, min, nanos) {
			break
		}
	}

	for {
		max := atomic.LoadUint64(&l.max)
		if nanos <= max {
			break
		}
		if atomic.CompareAndSwapUint64(&l.max, max, nanos) {
			break
		}
	}
}

// Snapshot returns the aggregated latency stats.
func (l *LatencyStats) Snapshot() LatencySnapshot {
	count := atomic.LoadUint64(&l.count)
	if count == 0 {
		return LatencySnapshot{}
	}
	sum := atomic.LoadUint64(&l.sum)
	min := atomic.LoadUint64(&l.min)
	max := atomic.LoadUint64(&l.max)
	return LatencySnapshot{
		Count: count,
		Min:   time.Duration(min),
		Max:   time.Duration(max),
		Avg:   time.Duration(sum / count),
	}
}
