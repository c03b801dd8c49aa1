package schema

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Instrument is the opaque symbol all per-instrument state is keyed by.
type Instrument string

func (i Instrument) String() string { return string(i) }

// BookSide selects one side of an order book.
type BookSide uint16

const (
	BookSideUnknown BookSide = iota
	BookSideBid
	BookSideAsk
)

func (s BookSide) String() string {
	switch s {
	case BookSideBid:
		return "BID"
	case BookSideAsk:
		return "ASK"
	default:
		return "UNKNOWN"
	}
}

func (s BookSide) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *BookSide) UnmarshalText(b []byte) error {
	switch strings.ToUpper(string(b)) {
	case "BID":
		*s = BookSideBid
	case "ASK":
		*s = BookSideAsk
	default:
		*s = BookSideUnknown
	}
	return nil
}

// OrderSide describes order direction.
type OrderSide uint16

const (
	OrderSideUnknown OrderSide = iota
	OrderSideBuy
	OrderSideSell
)

func (s OrderSide) String() string {
	switch s {
	case OrderSideBuy:
		return "BUY"
	case OrderSideSell:
		return "SELL"
	default:
		return "UNKNOWN"
	}
}

func (s OrderSide) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *OrderSide) UnmarshalText(b []byte) error {
	switch strings.ToUpper(string(b)) {
	case "BUY":
		*s = OrderSideBuy
	case "SELL":
		*s = OrderSideSell
	default:
		*s = OrderSideUnknown
	}
	return nil
}

// BookAction is the mutation carried by a book update. Anything but DELETE upserts.
type BookAction uint16

const (
	BookActionUpsert BookAction = iota
	BookActionDelete
)

func (a BookAction) String() string {
	if a == BookActionDelete {
		return "DELETE"
	}
	return "UPSERT"
}

func (a BookAction) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

func (a *BookAction) UnmarshalText(b []byte) error {
	if strings.EqualFold(string(b), "DELETE") {
		*a = BookActionDelete
	} else {
		*a = BookActionUpsert
	}
	return nil
}

// DataType tells a snapshot load apart from an incremental delta.
type DataType uint16

const (
	DataTypeUnknown DataType = iota
	DataTypeSnapshot
	DataTypeIncremental
)

func (t DataType) String() string {
	switch t {
	case DataTypeSnapshot:
		return "SNAPSHOT"
	case DataTypeIncremental:
		return "INCREMENTAL"
	default:
		return "UNKNOWN"
	}
}

func (t DataType) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

func (t *DataType) UnmarshalText(b []byte) error {
	switch strings.ToUpper(string(b)) {
	case "SNAPSHOT":
		*t = DataTypeSnapshot
	case "INCREMENTAL":
		*t = DataTypeIncremental
	default:
		*t = DataTypeUnknown
	}
	return nil
}

// OrderType describes order type.
type OrderType uint16

const (
	OrderTypeUnknown OrderType = iota
	OrderTypeLimit
	OrderTypeMarket
)

func (t OrderType) String() string {
	switch t {
	case OrderTypeLimit:
		return "LIMIT"
	case OrderTypeMarket:
		return "MARKET"
	default:
		return "UNKNOWN"
	}
}

func (t OrderType) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

func (t *OrderType) UnmarshalText(b []byte) error {
	switch strings.ToUpper(string(b)) {
	case "LIMIT":
		*t = OrderTypeLimit
	case "MARKET":
		*t = OrderTypeMarket
	default:
		*t = OrderTypeUnknown
	}
	return nil
}

// TimeInForce describes order time-in-force.
type TimeInForce uint16

const (
	TimeInForceUnknown TimeInForce = iota
	TimeInForceDay
	TimeInForceGTC
	TimeInForceIOC
	TimeInForceFOK
)

func (t TimeInForce) String() string {
	switch t {
	case TimeInForceDay:
		return "DAY"
	case TimeInForceGTC:
		return "GTC"
	case TimeInForceIOC:
		return "IOC"
	case TimeInForceFOK:
		return "FOK"
	default:
		return "UNKNOWN"
	}
}

func (t TimeInForce) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

func (t *TimeInForce) UnmarshalText(b []byte) error {
	switch strings.ToUpper(string(b)) {
	case "DAY":
		*t = TimeInForceDay
	case "GTC":
		*t = TimeInForceGTC
	case "IOC":
		*t = TimeInForceIOC
	case "FOK":
		*t = TimeInForceFOK
	default:
		*t = TimeInForceUnknown
	}
	return nil
}

// OrderIntent is an order the strategy wants placed, before any venue acknowledgement.
type OrderIntent struct {
	Instrument  Instrument      `json:"symbol"`
	Side        OrderSide       `json:"side"`
	Price       decimal.Decimal `json:"price"`
	Size        decimal.Decimal `json:"size"`
	Type        OrderType       `json:"priceType"`
	TimeInForce TimeInForce     `json:"timeInForce"`
	RequestID   uint64          `json:"reqId"`
}
