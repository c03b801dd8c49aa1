package risk

import (
	"sync/atomic"

	"bookstrat/internal/obs"
	"bookstrat/internal/schema"
	"bookstrat/pkg/exception"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/logs"
)

// DefaultPositionLimit is the absolute position above which trading halts.
var DefaultPositionLimit = decimal.NewFromInt(5)

// Config defines the risk limit.
type Config struct {
	// PositionLimit is compared against the absolute net position of a single
	// instrument. It is a position magnitude, not a fill count. Zero, explicit or
	// unset, selects DefaultPositionLimit. ops.Load rejects values <= 0.
	PositionLimit decimal.Decimal
}

func (c Config) withDefaults() Config {
	if c.PositionLimit.IsZero() {
		c.PositionLimit = DefaultPositionLimit
	}
	return c
}

// State is the process-wide trading state.
type State int32

const (
	StateRunning State = iota
	StateShuttingDown
)

func (s State) String() string {
	if s == StateShuttingDown {
		return "shutting-down"
	}
	return "running"
}

// ShutdownRequester is the process lifecycle collaborator.
type ShutdownRequester interface {
	RequestShutdown()
}

// Controller halts trading once any instrument's absolute position exceeds the limit.
// The transition is one-way; it does not cancel orders or flatten positions.
type Controller struct {
	cfg       Config
	state     atomic.Int32
	requester ShutdownRequester
	metrics   *obs.Metrics
}

// NewController creates a controller in the running state.
func NewController(cfg Config, requester ShutdownRequester, metrics *obs.Metrics) *Controller {
	return &Controller{
		cfg:       cfg.withDefaults(),
		requester: requester,
		metrics:   metrics,
	}
}

// Limit returns the configured absolute position limit.
func (c *Controller) Limit() decimal.Decimal {
	return c.cfg.PositionLimit
}

// State returns the current trading state.
func (c *Controller) State() State {
	return State(c.state.Load())
}

// Halted reports whether a shutdown has been requested.
func (c *Controller) Halted() bool {
	return c.State() == StateShuttingDown
}

// Check compares the updated position against the limit and requests shutdown on the
// first breach. It reports whether this call issued the request; once shutting down
// it is a no-op.
func (c *Controller) Check(instrument schema.Instrument, position decimal.Decimal) bool {
	if c.Halted() {
		return false
	}
	if !position.Abs().GreaterThan(c.cfg.PositionLimit) {
		return false
	}
	return c.halt(func() {
		logs.Errorf("risk limit breached, symbol: %s, position: %s, limit: %s, requesting shutdown",
			instrument, position, c.cfg.PositionLimit)
	})
}

// Halt requests shutdown regardless of the position, for when the position of
// instrument can no longer be trusted. It reports whether this call issued the request.
func (c *Controller) Halt(instrument schema.Instrument, reason string) bool {
	return c.halt(func() {
		logs.Errorf("risk halt, symbol: %s, reason: %s, requesting shutdown", instrument, reason)
	})
}

func (c *Controller) halt(report func()) bool {
	if err := c.trip(); err != nil {
		return false
	}
	report()
	c.metrics.IncShutdown()
	if c.requester != nil {
		c.requester.RequestShutdown()
	}
	return true
}

func (c *Controller) trip() error {
	if !c.state.CompareAndSwap(int32(StateRunning), int32(StateShuttingDown)) {
		return exception.ErrShutdownAlreadyRequested
	}
	return nil
}
