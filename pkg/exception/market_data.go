package exception

import "errors"

var (
	ErrFeedEmptyURL    = errors.New("market data: empty feed url")
	ErrFeedNilConsumer = errors.New("market data: nil consumer")
)
