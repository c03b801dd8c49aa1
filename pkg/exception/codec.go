package exception

import "errors"

var (
	ErrUnknownEventType = errors.New("codec: unknown event type")
	ErrEmptyPayload     = errors.New("codec: empty payload")
)
