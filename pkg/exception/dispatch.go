package exception

import "errors"

var (
	ErrDispatcherClosed     = errors.New("dispatch: dispatcher closed")
	ErrDispatcherNotStarted = errors.New("dispatch: dispatcher not started")
	ErrLaneQueueFull        = errors.New("dispatch: lane queue full")
	ErrNilEvent             = errors.New("dispatch: nil event")
	ErrUnknownEvent         = errors.New("dispatch: unknown event kind")
)
