package schema

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event is the closed set of records delivered by the transport and venue collaborators.
// Only types in this package implement it.
type Event interface {
	Kind() EventType
	Symbol() Instrument
	isEvent()
}

// StateUpdate reports a strategy state transition on the platform side.
type StateUpdate struct {
	RowIndex    int64  `json:"row_index"`
	State       string `json:"state"`
	StrategyID  string `json:"strategy_id"`
	ClientID    string `json:"client_id"`
	ErrorCode   int64  `json:"error_code"`
	ErrorReason string `json:"error_reason"`
}

// ParameterUpdate carries strategy parameters pushed by the platform.
type ParameterUpdate struct {
	Parameters []string `json:"parameters"`
}

// TradePrint is a public trade on an instrument.
type TradePrint struct {
	Timestamp    int64           `json:"timestamp"`
	Instrument   Instrument      `json:"symbol"`
	Price        decimal.Decimal `json:"price"`
	Size         decimal.Decimal `json:"size"`
	OpenInterest decimal.Decimal `json:"open_interest"`
}

// Bar is an OHLCV aggregate.
type Bar struct {
	StartTs      int64           `json:"start_ts"`
	EndTs        int64           `json:"end_ts"`
	Instrument   Instrument      `json:"symbol"`
	Open         decimal.Decimal `json:"open"`
	High         decimal.Decimal `json:"high"`
	Low          decimal.Decimal `json:"low"`
	Close        decimal.Decimal `json:"close"`
	Volume       decimal.Decimal `json:"volume"`
	OpenInterest decimal.Decimal `json:"open_interest"`
}

// BookUpdate is a single price level change on one side of the book.
type BookUpdate struct {
	Timestamp  int64           `json:"timestamp"`
	Instrument Instrument      `json:"symbol"`
	Status     string          `json:"status"`
	Price      decimal.Decimal `json:"price"`
	Size       decimal.Decimal `json:"size"`
	Action     BookAction      `json:"data_action"`
	Side       BookSide        `json:"side"`
	DataType   DataType        `json:"data_type"`
}

// Incremental reports whether the update is a delta rather than part of a snapshot load.
func (u BookUpdate) Incremental() bool {
	return u.DataType == DataTypeIncremental
}

// InstrumentStatus reports the trading status of an instrument.
type InstrumentStatus struct {
	Instrument    Instrument `json:"symbol"`
	Status        string     `json:"symbol_status"`
	Timestamp     int64      `json:"timestamp"`
	RequestStatus string     `json:"req_status"`
}

const PositionStatusSuccess = "SUCCESS"

// PositionSnapshot is the platform's view of a position.
type PositionSnapshot struct {
	AccountID  string          `json:"account_id"`
	StrategyID string          `json:"strategy_id"`
	ClientID   string          `json:"client_id"`
	Instrument Instrument      `json:"symbol"`
	Position   decimal.Decimal `json:"position"`
	Status     string          `json:"status"`
}

// Succeeded reports whether the snapshot may refresh tracked positions.
func (p PositionSnapshot) Succeeded() bool {
	return p.Status == PositionStatusSuccess
}

// PreAcknowledge links a request id to the venue order id before the order is acknowledged.
type PreAcknowledge struct {
	RequestID uint64    `json:"req_id"`
	OrderID   uuid.UUID `json:"uuid"`
}

// OrderRef holds the fields shared by every venue order event.
type OrderRef struct {
	Timestamp        int64      `json:"ts"`
	AccountID        string     `json:"account_id"`
	StrategyID       string     `json:"strategy_id"`
	ClientID         string     `json:"client_id"`
	Instrument       Instrument `json:"symbol"`
	OrderID          uuid.UUID  `json:"uuid"`
	ThirdPartyManual bool       `json:"is_third_party_manual"`
}

func (r OrderRef) Symbol() Instrument { return r.Instrument }

// Acknowledge confirms the venue accepted one of our orders.
type Acknowledge struct {
	OrderRef
	Side       OrderSide       `json:"side"`
	SentPrice  decimal.Decimal `json:"sent_price"`
	SentSize   decimal.Decimal `json:"sent_size"`
	OrderState string          `json:"order_state"`
}

// Fill is an execution against one of our orders.
type Fill struct {
	OrderRef
	Side       OrderSide       `json:"side"`
	SentPrice  decimal.Decimal `json:"sent_price"`
	SentSize   decimal.Decimal `json:"sent_size"`
	StopPrice  decimal.Decimal `json:"stop_price"`
	ExecPrice  decimal.Decimal `json:"exec_price"`
	ExecSize   decimal.Decimal `json:"exec_size"`
	OrderState string          `json:"order_state"`
}

// Cancel reports that one of our orders was cancelled, with its unfilled size.
type Cancel struct {
	OrderRef
	SentPrice     decimal.Decimal `json:"sent_price"`
	SentSize      decimal.Decimal `json:"sent_size"`
	StopPrice     decimal.Decimal `json:"stop_price"`
	RemainingSize decimal.Decimal `json:"remaining_size"`
	OrderState    string          `json:"order_state"`
}

// Reject reports that the venue refused one of our orders.
type Reject struct {
	OrderRef
	SentPrice       decimal.Decimal `json:"sent_price"`
	StopPrice       decimal.Decimal `json:"stop_price"`
	OrderState      string          `json:"order_state"`
	RejectionCode   int64           `json:"rejection_code"`
	RejectionReason string          `json:"rejection_reason"`
}

// OrderDetails is the venue's full view of one of our orders.
type OrderDetails struct {
	OrderRef
	Side        OrderSide       `json:"side"`
	SentPrice   decimal.Decimal `json:"sent_price"`
	SentSize    decimal.Decimal `json:"sent_size"`
	StopPrice   decimal.Decimal `json:"stop_price"`
	OrderState  string          `json:"order_state"`
	ExecPrice   decimal.Decimal `json:"exec_price"`
	ExecSize    decimal.Decimal `json:"exec_size"`
	Type        OrderType       `json:"price_type"`
	TimeInForce TimeInForce     `json:"time_in_force"`
}

func (StateUpdate) Kind() EventType      { return EventStateUpdate }
func (ParameterUpdate) Kind() EventType  { return EventParameterUpdate }
func (TradePrint) Kind() EventType       { return EventTradePrint }
func (Bar) Kind() EventType              { return EventBar }
func (BookUpdate) Kind() EventType       { return EventBookUpdate }
func (InstrumentStatus) Kind() EventType { return EventInstrumentStatus }
func (PositionSnapshot) Kind() EventType { return EventPositionSnapshot }
func (PreAcknowledge) Kind() EventType   { return EventPreAcknowledge }
func (Acknowledge) Kind() EventType      { return EventAcknowledge }
func (Fill) Kind() EventType             { return EventFill }
func (Cancel) Kind() EventType           { return EventCancel }
func (Reject) Kind() EventType           { return EventReject }
func (OrderDetails) Kind() EventType     { return EventOrderDetails }

func (StateUpdate) Symbol() Instrument        { return "" }
func (ParameterUpdate) Symbol() Instrument    { return "" }
func (e TradePrint) Symbol() Instrument       { return e.Instrument }
func (e Bar) Symbol() Instrument              { return e.Instrument }
func (e BookUpdate) Symbol() Instrument       { return e.Instrument }
func (e InstrumentStatus) Symbol() Instrument { return e.Instrument }
func (e PositionSnapshot) Symbol() Instrument { return e.Instrument }
func (PreAcknowledge) Symbol() Instrument     { return "" }

func (StateUpdate) isEvent()      {}
func (ParameterUpdate) isEvent()  {}
func (TradePrint) isEvent()       {}
func (Bar) isEvent()              {}
func (BookUpdate) isEvent()       {}
func (InstrumentStatus) isEvent() {}
func (PositionSnapshot) isEvent() {}
func (PreAcknowledge) isEvent()   {}
func (Acknowledge) isEvent()      {}
func (Fill) isEvent()             {}
func (Cancel) isEvent()           {}
func (Reject) isEvent()           {}
func (OrderDetails) isEvent()     {}
