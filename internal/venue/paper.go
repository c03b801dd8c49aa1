package venue

import (
	"sync"
	"sync/atomic"
	"time"

	"bookstrat/internal/schema"
	"bookstrat/pkg/exception"

	"github.com/google/uuid"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

// PaperConfig controls the simulated venue.
type PaperConfig struct {
	AccountID  string `mapstructure:"accountId"`
	StrategyID string `mapstructure:"strategyId"`
	ClientID   string `mapstructure:"clientId"`
	// AutoFill fills every acknowledged order in full at its sent price.
	AutoFill bool `mapstructure:"autoFill"`
}

// Paper simulates a venue in-process. Each accepted intent produces a
// pre-acknowledge, an acknowledge and, with AutoFill, a full fill, all
// delivered through the attached dispatcher.
type Paper struct {
	cfg PaperConfig

	mu        sync.Mutex
	state     *StateMachine
	pending   map[uuid.UUID]schema.OrderIntent
	connected bool

	out    atomic.Pointer[dispatcherHolder]
	closed atomic.Bool
	now    func() time.Time
}

type dispatcherHolder struct {
	d Dispatcher
}

// NewPaper creates a connected paper venue.
func NewPaper(cfg PaperConfig) *Paper {
	return &Paper{
		cfg:       cfg,
		state:     NewStateMachine(),
		pending:   make(map[uuid.UUID]schema.OrderIntent),
		connected: true,
		now:       time.Now,
	}
}

// Attach sets the dispatcher that receives the venue's reports.
func (p *Paper) Attach(d Dispatcher) {
	p.out.Store(&dispatcherHolder{d: d})
}

// Order returns a copy of the venue's view of an order.
func (p *Paper) Order(id uuid.UUID) (Order, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	o, ok := p.state.Order(id)
	if !ok {
		return Order{}, false
	}
	return *o, true
}

func (p *Paper) PlaceOrder(intent schema.OrderIntent) error {
	if p.closed.Load() {
		return exception.ErrOrderVenueClosed
	}
	if err := validate(intent); err != nil {
		return err
	}

	id := uuid.New()
	ref := p.ref(intent.Instrument, id)

	p.mu.Lock()
	if _, err := p.state.Open(id, intent); err != nil {
		p.mu.Unlock()
		return err
	}
	p.pending[id] = intent
	if !p.connected {
		p.mu.Unlock()
		return nil
	}
	events := p.ackLocked(id, intent, ref)
	p.mu.Unlock()

	p.emit(events...)
	return nil
}

// Cancel cancels an open order and reports it.
func (p *Paper) Cancel(id uuid.UUID) error {
	p.mu.Lock()
	o, err := p.state.Cancel(id)
	if err != nil {
		p.mu.Unlock()
		return errors.Wrapf(err, "cancel %s", id)
	}
	delete(p.pending, id)
	cancel := schema.Cancel{
		OrderRef:      p.ref(o.Intent.Instrument, id),
		SentPrice:     o.Intent.Price,
		SentSize:      o.Intent.Size,
		RemainingSize: o.Leaves,
		OrderState:    o.State.String(),
	}
	p.mu.Unlock()

	p.emit(cancel)
	return nil
}

// Disconnect stops acknowledging new orders. Intents placed while
// disconnected stay pending until Reconnect.
func (p *Paper) Disconnect() {
	p.mu.Lock()
	p.connected = false
	p.mu.Unlock()
}

// Reconnect resumes acknowledging and replays every order still waiting
// for an acknowledge. It returns how many were resent.
func (p *Paper) Reconnect() int {
	p.mu.Lock()
	p.connected = true
	var events []schema.Event
	resent := 0
	for id, intent := range p.pending {
		o, ok := p.state.Order(id)
		if !ok || o.State != OrderStateSent {
			continue
		}
		events = append(events, p.ackLocked(id, intent, p.ref(intent.Instrument, id))...)
		resent++
	}
	p.mu.Unlock()

	p.emit(events...)
	return resent
}

// Close rejects further intents.
func (p *Paper) Close() error {
	p.closed.Store(true)
	return nil
}

func (p *Paper) ackLocked(id uuid.UUID, intent schema.OrderIntent, ref schema.OrderRef) []schema.Event {
	events := []schema.Event{schema.PreAcknowledge{RequestID: intent.RequestID, OrderID: id}}

	o, err := p.state.Ack(id)
	if err != nil {
		logs.Warnf("paper venue: ack %s, err: %+v", id, err)
		return events
	}
	events = append(events, schema.Acknowledge{
		OrderRef:   ref,
		Side:       intent.Side,
		SentPrice:  intent.Price,
		SentSize:   intent.Size,
		OrderState: o.State.String(),
	})
	if !p.cfg.AutoFill {
		return events
	}

	o, err = p.state.Fill(id, intent.Size)
	if err != nil {
		logs.Warnf("paper venue: fill %s, err: %+v", id, err)
		return events
	}
	delete(p.pending, id)
	return append(events, schema.Fill{
		OrderRef:   ref,
		Side:       intent.Side,
		SentPrice:  intent.Price,
		SentSize:   intent.Size,
		ExecPrice:  intent.Price,
		ExecSize:   intent.Size,
		OrderState: o.State.String(),
	})
}

func (p *Paper) ref(inst schema.Instrument, id uuid.UUID) schema.OrderRef {
	return schema.OrderRef{
		Timestamp:  p.now().UnixNano(),
		AccountID:  p.cfg.AccountID,
		StrategyID: p.cfg.StrategyID,
		ClientID:   p.cfg.ClientID,
		Instrument: inst,
		OrderID:    id,
	}
}

func (p *Paper) emit(events ...schema.Event) {
	h := p.out.Load()
	if h == nil || h.d == nil {
		return
	}
	for _, evt := range events {
		if err := h.d.Dispatch(evt); err != nil {
			logs.Warnf("paper venue: dispatch %s, err: %+v", evt.Kind(), err)
		}
	}
}
