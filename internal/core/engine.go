package core

import (
	stderrors "errors"
	"time"

	"bookstrat/internal/book"
	"bookstrat/internal/obs"
	"bookstrat/internal/risk"
	"bookstrat/internal/schema"
	"bookstrat/internal/signal"
	"bookstrat/internal/state"
	"bookstrat/internal/venue"
	"bookstrat/pkg/exception"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

// Sink records events and intents for audit.
type Sink interface {
	Record(source uint16, v any) error
}

// Sinks fans a record out to every sink. The first error is returned after all sinks ran.
type Sinks []Sink

func (s Sinks) Record(source uint16, v any) error {
	var first error
	for _, sink := range s {
		if sink == nil {
			continue
		}
		if err := sink.Record(source, v); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Deps are the collaborators an Engine routes into.
type Deps struct {
	Books     *book.Books
	Signal    *signal.Engine
	Positions *state.PositionTracker
	Risk      *risk.Controller
	Venue     venue.Venue
	Sink      Sink
	Metrics   *obs.Metrics
}

// Engine applies events to in-memory state. Handle is safe for concurrent use
// as long as each instrument's events arrive from a single goroutine.
type Engine struct {
	books     *book.Books
	signal    *signal.Engine
	positions *state.PositionTracker
	risk      *risk.Controller
	venue     venue.Venue
	sink      Sink
	metrics   *obs.Metrics
}

// NewEngine validates deps and builds an engine. Sink and Metrics are optional.
func NewEngine(d Deps) (*Engine, error) {
	if d.Books == nil || d.Signal == nil || d.Positions == nil || d.Risk == nil {
		return nil, errors.Wrap(exception.ErrNilInstance, "engine deps")
	}
	if d.Venue == nil {
		return nil, exception.ErrOrderNilVenue
	}
	return &Engine{
		books:     d.Books,
		signal:    d.Signal,
		positions: d.Positions,
		risk:      d.Risk,
		venue:     d.Venue,
		sink:      d.Sink,
		metrics:   d.Metrics,
	}, nil
}

// Handle routes one event. Errors are scoped to the event; the caller logs and moves on.
func (e *Engine) Handle(source uint16, evt schema.Event) error {
	if evt == nil {
		return exception.ErrNilEvent
	}
	start := time.Now()
	defer func() { e.metrics.ObserveHandle(time.Since(start)) }()

	e.metrics.ObserveEvent(evt.Kind())
	e.record(source, evt)

	switch x := evt.(type) {
	case schema.BookUpdate:
		return e.onBookUpdate(x)
	case schema.Fill:
		return e.onFill(x)
	case schema.PositionSnapshot:
		e.onPositionSnapshot(x)
	case schema.StateUpdate:
		logs.Infof("state update received, state: %s, strategy: %s, error code: %d, reason: %s", x.State, x.StrategyID, x.ErrorCode, x.ErrorReason)
	case schema.ParameterUpdate:
		logs.Infof("parameter update received, parameters: %v", x.Parameters)
	case schema.TradePrint:
		logs.Infof("trade received, symbol: %s, price: %s, size: %s", x.Instrument, x.Price, x.Size)
	case schema.Bar:
		logs.Infof("bar received, symbol: %s, close: %s, volume: %s", x.Instrument, x.Close, x.Volume)
	case schema.InstrumentStatus:
		logs.Infof("instrument status received, symbol: %s, status: %s, request status: %s", x.Instrument, x.Status, x.RequestStatus)
	case schema.PreAcknowledge:
		logs.Infof("pre-ack received, req id: %d, order: %s", x.RequestID, x.OrderID)
	case schema.Acknowledge:
		logs.Infof("ack received, symbol: %s, order: %s, state: %s", x.Instrument, x.OrderID, x.OrderState)
	case schema.Cancel:
		logs.Infof("cancel received, symbol: %s, order: %s, remaining: %s", x.Instrument, x.OrderID, x.RemainingSize)
	case schema.Reject:
		logs.Warnf("reject received, symbol: %s, order: %s, code: %d, reason: %s", x.Instrument, x.OrderID, x.RejectionCode, x.RejectionReason)
	case schema.OrderDetails:
		logs.Infof("order details received, symbol: %s, order: %s, state: %s", x.Instrument, x.OrderID, x.OrderState)
	default:
		return errors.Wrapf(exception.ErrUnknownEvent, "%T", evt)
	}
	return nil
}

func (e *Engine) onBookUpdate(u schema.BookUpdate) error {
	ob := e.books.Get(u.Instrument)
	if err := ob.Apply(u.Side, u.Action, u.Price, u.Size); err != nil {
		if a, ok := anomalyOf(err); ok {
			e.metrics.IncAnomaly(a)
			logs.Warnf("book update dropped, symbol: %s, side: %s, action: %s, price: %s, size: %s, err: %+v",
				u.Instrument, u.Side, u.Action, u.Price, u.Size, err)
			return nil
		}
		return errors.Wrapf(err, "apply book update %s", u.Instrument)
	}

	intent, ok, err := e.signal.Evaluate(u, ob)
	if err != nil {
		if stderrors.Is(err, exception.ErrEmptyBookSide) {
			e.metrics.IncAnomaly(obs.AnomalyEmptyBookSide)
			return nil
		}
		return errors.Wrapf(err, "evaluate %s", u.Instrument)
	}
	if !ok {
		return nil
	}

	e.metrics.IncIntent()
	e.record(schema.SourceStrategy, intent)
	logs.Infof("order intent, symbol: %s, side: %s, price: %s, size: %s, req id: %d",
		intent.Instrument, intent.Side, intent.Price, intent.Size, intent.RequestID)
	if err := e.venue.PlaceOrder(intent); err != nil {
		return errors.Wrapf(err, "place order %d", intent.RequestID)
	}
	return nil
}

func (e *Engine) onFill(f schema.Fill) error {
	logs.Infof("fill received, symbol: %s, order: %s, side: %s, exec price: %s, exec size: %s",
		f.Instrument, f.OrderID, f.Side, f.ExecPrice, f.ExecSize)

	pos, err := e.positions.ApplyFill(f.Instrument, f.Side, f.ExecSize)
	if err != nil {
		e.metrics.IncAnomaly(obs.AnomalyUnknownOrderSide)
		logs.Warnf("fill ignored, symbol: %s, order: %s, err: %+v", f.Instrument, f.OrderID, err)
		return nil
	}
	e.risk.Check(f.Instrument, pos)
	return nil
}

func (e *Engine) onPositionSnapshot(p schema.PositionSnapshot) {
	logs.Infof("position snapshot received, symbol: %s, position: %s, status: %s", p.Instrument, p.Position, p.Status)
	if !p.Succeeded() {
		return
	}
	e.positions.Set(p.Instrument, p.Position)
}

func (e *Engine) record(source uint16, v any) {
	if e.sink == nil {
		return
	}
	if err := e.sink.Record(source, v); err != nil {
		logs.Warnf("record %T, err: %+v", v, err)
	}
}

func anomalyOf(err error) (obs.Anomaly, bool) {
	switch {
	case stderrors.Is(err, exception.ErrUnknownPriceOnDelete):
		return obs.AnomalyUnknownPriceOnDelete, true
	case stderrors.Is(err, exception.ErrNonPositiveSize):
		return obs.AnomalyNonPositiveSize, true
	case stderrors.Is(err, exception.ErrUnknownBookSide):
		return obs.AnomalyUnknownBookSide, true
	default:
		return 0, false
	}
}
