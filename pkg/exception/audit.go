package exception

import "errors"

var (
	ErrAuditClosed    = errors.New("audit: store closed")
	ErrAuditQueueFull = errors.New("audit: queue full")
)
