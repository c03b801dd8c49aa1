package core

import (
	"context"
	"sync"

	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"
)

// Closer is stopped when the run loop unwinds.
type Closer interface {
	Close()
}

// Lifecycle owns the run loop. RequestShutdown may be called from any lane.
type Lifecycle struct {
	once   sync.Once
	done   chan struct{}
	reason string
	mu     sync.Mutex
}

// NewLifecycle creates a running lifecycle.
func NewLifecycle() *Lifecycle {
	return &Lifecycle{done: make(chan struct{})}
}

// RequestShutdown unwinds the run loop. Only the first call has an effect.
func (l *Lifecycle) RequestShutdown() {
	l.requestShutdown("risk")
}

func (l *Lifecycle) requestShutdown(reason string) {
	l.once.Do(func() {
		l.mu.Lock()
		l.reason = reason
		l.mu.Unlock()
		close(l.done)
	})
}

// Done is closed once shutdown was requested.
func (l *Lifecycle) Done() <-chan struct{} {
	return l.done
}

// Reason reports what stopped the run loop, empty while running.
func (l *Lifecycle) Reason() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.reason
}

// Run blocks until ctx ends, the process receives a termination signal or
// shutdown is requested, then closes every closer in order.
func (l *Lifecycle) Run(ctx context.Context, closers ...Closer) {
	select {
	case <-ctx.Done():
		l.requestShutdown("context")
	case <-sys.Shutdown():
		l.requestShutdown("signal")
	case <-l.done:
	}

	logs.Infof("shutting down, reason: %s", l.Reason())
	for _, c := range closers {
		if c != nil {
			c.Close()
		}
	}
}
