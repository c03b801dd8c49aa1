package state

import (
	"sync"

	"bookstrat/internal/schema"
	"bookstrat/pkg/exception"

	"github.com/shopspring/decimal"
)

// PositionTracker folds fills into a signed net position per instrument.
// Positive is net long. Entries are created on first reference and never removed.
//
// Replaying the same fill twice counts it twice; at-most-once delivery of fills
// is the transport's job.
type PositionTracker struct {
	mu        sync.RWMutex
	positions map[schema.Instrument]decimal.Decimal
}

// NewPositionTracker creates an empty tracker.
func NewPositionTracker() *PositionTracker {
	return &PositionTracker{positions: make(map[schema.Instrument]decimal.Decimal)}
}

// ApplyFill adds execSize for a buy and subtracts it for a sell, returning the new position.
func (t *PositionTracker) ApplyFill(instrument schema.Instrument, side schema.OrderSide, execSize decimal.Decimal) (decimal.Decimal, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	current := t.positions[instrument]
	var next decimal.Decimal
	switch side {
	case schema.OrderSideBuy:
		next = current.Add(execSize)
	case schema.OrderSideSell:
		next = current.Sub(execSize)
	default:
		t.positions[instrument] = current
		return current, exception.ErrOrderUnknownSide
	}
	t.positions[instrument] = next
	return next, nil
}

// Set replaces the position with a value reported by the platform.
func (t *PositionTracker) Set(instrument schema.Instrument, qty decimal.Decimal) {
	t.mu.Lock()
	t.positions[instrument] = qty
	t.mu.Unlock()
}

// ApplySnapshot loads the entries of a snapshot on top of the current positions.
func (t *PositionTracker) ApplySnapshot(snapshot Snapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, entry := range snapshot.Positions {
		t.positions[entry.Instrument] = entry.Qty
	}
}

// Position returns the current position and whether the instrument was ever referenced.
func (t *PositionTracker) Position(instrument schema.Instrument) (decimal.Decimal, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	qty, ok := t.positions[instrument]
	return qty, ok
}

// Count returns the number of tracked instruments.
func (t *PositionTracker) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.positions)
}
