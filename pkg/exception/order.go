package exception

import "errors"

var (
	ErrOrderNilVenue        = errors.New("order: nil venue")
	ErrOrderInvalidIntent   = errors.New("order: invalid intent")
	ErrOrderVenueClosed     = errors.New("order: venue closed")
	ErrOrderDuplicate       = errors.New("order: order already exists")
	ErrOrderUnknown         = errors.New("order: order not found")
	ErrOrderInvalidState    = errors.New("order: invalid order state transition")
	ErrOrderInvalidFillSize = errors.New("order: invalid fill size")
)

var ErrOrderUnknownSide = errors.New("order: unknown order side")
