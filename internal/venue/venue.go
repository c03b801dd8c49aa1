// Package venue holds the order-submission collaborators. Placement is fire-and-forget:
// the venue reports back later through acknowledge, fill, cancel and reject events.
package venue

import (
	"sync"

	"bookstrat/internal/schema"
	"bookstrat/pkg/exception"
)

// Venue accepts order intents.
type Venue interface {
	PlaceOrder(intent schema.OrderIntent) error
}

// Dispatcher receives events produced by an in-process venue.
type Dispatcher interface {
	Dispatch(evt schema.Event) error
}

func validate(intent schema.OrderIntent) error {
	if intent.Instrument == "" || intent.RequestID == 0 || !intent.Size.IsPositive() {
		return exception.ErrOrderInvalidIntent
	}
	if intent.Side != schema.OrderSideBuy && intent.Side != schema.OrderSideSell {
		return exception.ErrOrderInvalidIntent
	}
	return nil
}

// Recording keeps every intent it receives and places nothing.
type Recording struct {
	mu      sync.Mutex
	intents []schema.OrderIntent
}

func NewRecording() *Recording {
	return &Recording{}
}

func (r *Recording) PlaceOrder(intent schema.OrderIntent) error {
	r.mu.Lock()
	r.intents = append(r.intents, intent)
	r.mu.Unlock()
	return nil
}

// Intents returns a copy of the received intents in arrival order.
func (r *Recording) Intents() []schema.OrderIntent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]schema.OrderIntent, len(r.intents))
	copy(out, r.intents)
	return out
}
