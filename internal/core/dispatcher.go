package core

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"bookstrat/internal/bus"
	"bookstrat/internal/obs"
	"bookstrat/internal/schema"
	"bookstrat/pkg/exception"

	"github.com/sourcegraph/conc"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

const defaultLaneQueueSize = 1024

// processLane carries events that belong to no instrument.
const processLane schema.Instrument = ""

// Handler processes one event.
type Handler interface {
	Handle(source uint16, evt schema.Event) error
}

// ExposureGuard halts trading when the position of an instrument can no longer be
// trusted.
type ExposureGuard interface {
	Halt(instrument schema.Instrument, reason string) bool
}

// DispatcherConfig sizes the lanes.
type DispatcherConfig struct {
	LaneQueueSize int `mapstructure:"laneQueueSize"`
}

// Dispatcher is the single entry point for inbound events. Each instrument gets
// its own lane, so events of one instrument are handled in arrival order while
// different instruments proceed in parallel. Dispatch never blocks.
type Dispatcher struct {
	handler   Handler
	metrics   *obs.Metrics
	guard     ExposureGuard
	queueSize int

	mu      sync.Mutex
	ctx     context.Context
	lanes   map[schema.Instrument]*bus.Queue
	started bool
	closed  bool
	wg      conc.WaitGroup
}

// NewDispatcher creates a dispatcher. Call Start before dispatching.
func NewDispatcher(cfg DispatcherConfig, handler Handler, metrics *obs.Metrics) (*Dispatcher, error) {
	if handler == nil {
		return nil, errors.Wrap(exception.ErrNilInstance, "dispatcher handler")
	}
	size := cfg.LaneQueueSize
	if size <= 0 {
		size = defaultLaneQueueSize
	}
	return &Dispatcher{
		handler:   handler,
		metrics:   metrics,
		queueSize: size,
		lanes:     make(map[schema.Instrument]*bus.Queue),
	}, nil
}

// WithGuard sets the guard told about dropped fills and position snapshots.
func (d *Dispatcher) WithGuard(guard ExposureGuard) *Dispatcher {
	d.guard = guard
	return d
}

// Start enables dispatching. Lanes stop when ctx is done or on Close.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return exception.ErrDispatcherClosed
	}
	if d.started {
		return nil
	}
	d.ctx = ctx
	d.started = true
	return nil
}

// Dispatch routes evt to its instrument's lane. Order reports are tagged as venue
// records; everything else as feed records.
func (d *Dispatcher) Dispatch(evt schema.Event) error {
	if evt == nil {
		return exception.ErrNilEvent
	}
	return d.DispatchFrom(sourceOf(evt.Kind()), evt)
}

// DispatchFrom routes evt with an explicit record source.
func (d *Dispatcher) DispatchFrom(source uint16, evt schema.Event) error {
	if evt == nil {
		return exception.ErrNilEvent
	}
	q, err := d.lane(laneOf(evt))
	if err != nil {
		if stderrors.Is(err, exception.ErrDispatcherClosed) {
			d.metrics.IncQueueClosed()
		}
		return err
	}

	err = q.TryPublish(bus.Item{Event: evt, Source: source, RecvNano: time.Now().UnixNano()})
	switch {
	case err == nil:
		return nil
	case stderrors.Is(err, exception.ErrLaneQueueFull):
		d.metrics.IncQueueDrop()
		logs.Warnf("dispatch: lane %q full, dropped %s", evt.Symbol(), evt.Kind())
		d.dropped(evt)
	case stderrors.Is(err, exception.ErrDispatcherClosed):
		d.metrics.IncQueueClosed()
	}
	return err
}

// dropped halts trading when the lost event changes a position, which is unknown
// from then on.
func (d *Dispatcher) dropped(evt schema.Event) {
	switch evt.Kind() {
	case schema.EventFill, schema.EventPositionSnapshot:
	default:
		return
	}
	if d.guard == nil {
		logs.Errorf("dispatch: dropped %s for %q with no exposure guard, position is now unknown", evt.Kind(), evt.Symbol())
		return
	}
	d.guard.Halt(evt.Symbol(), "dropped "+evt.Kind().String())
}

// Lanes returns the number of lanes created so far.
func (d *Dispatcher) Lanes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.lanes)
}

// Close stops accepting events, lets every lane drain and waits for them.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, q := range d.lanes {
		q.Close()
	}
	d.mu.Unlock()

	d.wg.Wait()
}

func (d *Dispatcher) lane(inst schema.Instrument) (*bus.Queue, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, exception.ErrDispatcherClosed
	}
	if !d.started {
		return nil, exception.ErrDispatcherNotStarted
	}
	if q, ok := d.lanes[inst]; ok {
		return q, nil
	}

	q := bus.NewQueue(d.queueSize)
	d.lanes[inst] = q
	ctx := d.ctx
	d.wg.Go(func() {
		q.Run(ctx, d.handle)
	})
	return q, nil
}

func (d *Dispatcher) handle(item bus.Item) {
	defer func() {
		if r := recover(); r != nil {
			d.metrics.IncHandleError()
			logs.Errorf("dispatch: handle %s %s panicked: %v", item.Event.Symbol(), item.Event.Kind(), r)
		}
	}()

	if err := d.handler.Handle(item.Source, item.Event); err != nil {
		d.metrics.IncHandleError()
		logs.Errorf("dispatch: handle %s %s, err: %+v", item.Event.Symbol(), item.Event.Kind(), err)
	}
}

func laneOf(evt schema.Event) schema.Instrument {
	switch evt.(type) {
	case schema.StateUpdate, schema.ParameterUpdate, schema.PreAcknowledge:
		return processLane
	}
	return evt.Symbol()
}

func sourceOf(kind schema.EventType) uint16 {
	switch kind {
	case schema.EventPreAcknowledge, schema.EventAcknowledge, schema.EventFill,
		schema.EventCancel, schema.EventReject, schema.EventOrderDetails:
		return schema.SourceVenue
	default:
		return schema.SourceFeed
	}
}

func (d *Dispatcher) OnStateUpdate(evt schema.StateUpdate) error { return d.Dispatch(evt) }

func (d *Dispatcher) OnParameterUpdate(evt schema.ParameterUpdate) error { return d.Dispatch(evt) }

func (d *Dispatcher) OnTradePrint(evt schema.TradePrint) error { return d.Dispatch(evt) }

func (d *Dispatcher) OnBar(evt schema.Bar) error { return d.Dispatch(evt) }

func (d *Dispatcher) OnBookUpdate(evt schema.BookUpdate) error { return d.Dispatch(evt) }

func (d *Dispatcher) OnInstrumentStatus(evt schema.InstrumentStatus) error { return d.Dispatch(evt) }

func (d *Dispatcher) OnPositionSnapshot(evt schema.PositionSnapshot) error { return d.Dispatch(evt) }

func (d *Dispatcher) OnPreAcknowledge(evt schema.PreAcknowledge) error { return d.Dispatch(evt) }

func (d *Dispatcher) OnAcknowledge(evt schema.Acknowledge) error { return d.Dispatch(evt) }

func (d *Dispatcher) OnFill(evt schema.Fill) error { return d.Dispatch(evt) }

func (d *Dispatcher) OnCancel(evt schema.Cancel) error { return d.Dispatch(evt) }

func (d *Dispatcher) OnReject(evt schema.Reject) error { return d.Dispatch(evt) }

func (d *Dispatcher) OnOrderDetails(evt schema.OrderDetails) error { return d.Dispatch(evt) }
