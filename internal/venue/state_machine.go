package venue

import (
	"bookstrat/internal/schema"
	"bookstrat/pkg/exception"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderState tracks the lifecycle of an order on the venue side.
type OrderState uint16

const (
	OrderStateUnknown OrderState = iota
	OrderStateSent
	OrderStateAcked
	OrderStatePartFilled
	OrderStateFilled
	OrderStateCanceled
	OrderStateRejected
)

func (s OrderState) String() string {
	switch s {
	case OrderStateSent:
		return "SENT"
	case OrderStateAcked:
		return "ACKNOWLEDGED"
	case OrderStatePartFilled:
		return "PARTIALLY_FILLED"
	case OrderStateFilled:
		return "FILLED"
	case OrderStateCanceled:
		return "CANCELLED"
	case OrderStateRejected:
		return "REJECTED"
	default:
		return "UNKNOWN"
	}
}

// Order holds the venue's view of an order.
type Order struct {
	ID        uuid.UUID
	RequestID uint64
	Intent    schema.OrderIntent
	Leaves    decimal.Decimal
	State     OrderState
}

// StateMachine moves orders through sent, acked, filled and the other terminal states.
type StateMachine struct {
	orders map[uuid.UUID]*Order
}

// NewStateMachine creates an empty state machine.
func NewStateMachine() *StateMachine {
	return &StateMachine{orders: make(map[uuid.UUID]*Order)}
}

// Order returns the current order state.
func (m *StateMachine) Order(id uuid.UUID) (*Order, bool) {
	o, ok := m.orders[id]
	return o, ok
}

// Len returns the number of known orders.
func (m *StateMachine) Len() int {
	return len(m.orders)
}

// Open creates a new order in Sent state.
func (m *StateMachine) Open(id uuid.UUID, intent schema.OrderIntent) (*Order, error) {
	if _, ok := m.orders[id]; ok {
		return nil, exception.ErrOrderDuplicate
	}
	o := &Order{
		ID:        id,
		RequestID: intent.RequestID,
		Intent:    intent,
		Leaves:    intent.Size,
		State:     OrderStateSent,
	}
	m.orders[id] = o
	return o, nil
}

// Ack marks a sent order as acknowledged.
func (m *StateMachine) Ack(id uuid.UUID) (*Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, exception.ErrOrderUnknown
	}
	if o.State != OrderStateSent {
		return o, exception.ErrOrderInvalidState
	}
	o.State = OrderStateAcked
	return o, nil
}

// Fill executes size against the order's leaves quantity.
func (m *StateMachine) Fill(id uuid.UUID, size decimal.Decimal) (*Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, exception.ErrOrderUnknown
	}
	if isTerminal(o.State) {
		return o, exception.ErrOrderInvalidState
	}
	if !size.IsPositive() || size.GreaterThan(o.Leaves) {
		return o, exception.ErrOrderInvalidFillSize
	}
	o.Leaves = o.Leaves.Sub(size)
	if o.Leaves.IsZero() {
		o.State = OrderStateFilled
	} else {
		o.State = OrderStatePartFilled
	}
	return o, nil
}

// Cancel closes an open order.
func (m *StateMachine) Cancel(id uuid.UUID) (*Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, exception.ErrOrderUnknown
	}
	if isTerminal(o.State) {
		return o, exception.ErrOrderInvalidState
	}
	o.State = OrderStateCanceled
	return o, nil
}

// Reject refuses a sent order.
func (m *StateMachine) Reject(id uuid.UUID) (*Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, exception.ErrOrderUnknown
	}
	if o.State != OrderStateSent {
		return o, exception.ErrOrderInvalidState
	}
	o.State = OrderStateRejected
	return o, nil
}

func isTerminal(state OrderState) bool {
	switch state {
	case OrderStateFilled, OrderStateCanceled, OrderStateRejected:
		return true
	default:
		return false
	}
}
