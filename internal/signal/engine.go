package signal

import (
	"bookstrat/internal/book"
	"bookstrat/internal/schema"
	"bookstrat/pkg/exception"

	"github.com/shopspring/decimal"
)

// Gate stops new intents once trading is halted.
type Gate interface {
	Halted() bool
}

// Config sets the shape of emitted orders.
type Config struct {
	OrderSize   decimal.Decimal
	OrderType   schema.OrderType
	TimeInForce schema.TimeInForce
}

func (c Config) withDefaults() Config {
	if c.OrderSize.IsZero() {
		c.OrderSize = decimal.NewFromInt(1)
	}
	if c.OrderType == schema.OrderTypeUnknown {
		c.OrderType = schema.OrderTypeLimit
	}
	if c.TimeInForce == schema.TimeInForceUnknown {
		c.TimeInForce = schema.TimeInForceDay
	}
	return c
}

// Engine decides whether an applied book update warrants an order.
//
// The update price is compared with the post-update best of the same side, not the
// opposite side. After an upsert on a side the update can never beat the new best, so
// in practice the rule fires when a delete removes the top level and the deleted price
// is above (bid) or below (ask) what remains.
// TODO: confirm with strategy owners whether a cross-side check against the opposite best was intended.
type Engine struct {
	cfg  Config
	seq  *Sequencer
	gate Gate
}

// NewEngine creates an engine sharing seq with every other lane.
func NewEngine(cfg Config, seq *Sequencer, gate Gate) *Engine {
	if seq == nil {
		seq = NewSequencer()
	}
	return &Engine{cfg: cfg.withDefaults(), seq: seq, gate: gate}
}

// Sequencer returns the request id source.
func (e *Engine) Sequencer() *Sequencer {
	return e.seq
}

// Evaluate inspects update against the already updated book. It returns at most one
// intent; ok is false when no order should be sent. ErrEmptyBookSide means no signal
// was possible.
func (e *Engine) Evaluate(update schema.BookUpdate, ob *book.OrderBook) (intent schema.OrderIntent, ok bool, err error) {
	if !update.Incremental() {
		return schema.OrderIntent{}, false, nil
	}
	if e.gate != nil && e.gate.Halted() {
		return schema.OrderIntent{}, false, nil
	}

	best, err := ob.Best(update.Side)
	if err != nil {
		return schema.OrderIntent{}, false, err
	}

	var side schema.OrderSide
	switch update.Side {
	case schema.BookSideBid:
		if !update.Price.GreaterThan(best.Price) {
			return schema.OrderIntent{}, false, nil
		}
		side = schema.OrderSideBuy
	case schema.BookSideAsk:
		if !update.Price.LessThan(best.Price) {
			return schema.OrderIntent{}, false, nil
		}
		side = schema.OrderSideSell
	default:
		return schema.OrderIntent{}, false, exception.ErrUnknownBookSide
	}

	return schema.OrderIntent{
		Instrument:  update.Instrument,
		Side:        side,
		Price:       update.Price,
		Size:        e.cfg.OrderSize,
		Type:        e.cfg.OrderType,
		TimeInForce: e.cfg.TimeInForce,
		RequestID:   e.seq.Next(),
	}, true, nil
}
