package exception

import "errors"

// ErrShutdownAlreadyRequested is absorbed by the risk controller and never surfaced to lanes.
var ErrShutdownAlreadyRequested = errors.New("risk: shutdown already requested")
