// Package chaos perturbs a recorded journal so replays can exercise feed faults:
// lost, duplicated, late and out-of-order records.
package chaos

import (
	"math/rand"
	"time"

	"bookstrat/internal/schema"

	"github.com/yanun0323/errors"
)

// Record is one journaled record passing through the engine.
type Record struct {
	Header  schema.EventHeader
	Payload []byte
}

// Config controls fault injection.
type Config struct {
	Seed          int64
	DropRate      float64
	DuplicateRate float64
	ReorderWindow int
	MaxDelay      time.Duration
	// Kinds limits faults to these record types. Empty means every type.
	// Order intents are never perturbed; they are the strategy's own output.
	Kinds []schema.EventType
}

func (c Config) Validate() error {
	if c.DropRate < 0 || c.DropRate > 1 {
		return errors.Errorf("chaos: dropRate must be between 0 and 1, got %v", c.DropRate)
	}
	if c.DuplicateRate < 0 || c.DuplicateRate > 1 {
		return errors.Errorf("chaos: duplicateRate must be between 0 and 1, got %v", c.DuplicateRate)
	}
	if c.ReorderWindow <= 0 {
		return errors.New("chaos: reorderWindow must be >= 1")
	}
	if c.MaxDelay < 0 {
		return errors.New("chaos: maxDelay must be >= 0")
	}
	return nil
}

// Stats counts what the engine did.
type Stats struct {
	In         uint64
	Out        uint64
	Dropped    uint64
	Duplicated uint64
	Delayed    uint64
}

// Engine applies the configured faults. It is not safe for concurrent use.
type Engine struct {
	cfg     Config
	kinds   map[schema.EventType]struct{}
	rng     *rand.Rand
	pending []Record
	stats   Stats
}

func NewEngine(cfg Config) (*Engine, error) {
	if cfg.ReorderWindow == 0 {
		cfg.ReorderWindow = 1
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UTC().UnixNano()
	}
	e := &Engine{
		cfg: cfg,
		rng: rand.New(rand.NewSource(cfg.Seed)),
	}
	if len(cfg.Kinds) != 0 {
		e.kinds = make(map[schema.EventType]struct{}, len(cfg.Kinds))
		for _, k := range cfg.Kinds {
			e.kinds[k] = struct{}{}
		}
	}
	return e, nil
}

// Process feeds one record and returns the records to emit now.
func (e *Engine) Process(rec Record) []Record {
	e.stats.In++
	if !e.targeted(rec.Header.Type) {
		return e.emit(rec)
	}
	if e.cfg.DropRate > 0 && e.rng.Float64() < e.cfg.DropRate {
		e.stats.Dropped++
		return nil
	}
	rec = e.delay(rec)
	if e.cfg.ReorderWindow <= 1 {
		return e.emit(e.duplicate(rec)...)
	}

	e.pending = append(e.pending, rec)
	if len(e.pending) < e.cfg.ReorderWindow {
		return nil
	}
	return e.emit(e.duplicate(e.takePending())...)
}

// Flush releases records still held for reordering.
func (e *Engine) Flush() []Record {
	var out []Record
	for len(e.pending) > 0 {
		out = append(out, e.emit(e.duplicate(e.takePending())...)...)
	}
	return out
}

func (e *Engine) Stats() Stats {
	return e.stats
}

func (e *Engine) targeted(t schema.EventType) bool {
	if t == schema.EventOrderIntent {
		return false
	}
	if e.kinds == nil {
		return true
	}
	_, ok := e.kinds[t]
	return ok
}

func (e *Engine) takePending() Record {
	idx := e.rng.Intn(len(e.pending))
	rec := e.pending[idx]
	e.pending = append(e.pending[:idx], e.pending[idx+1:]...)
	return rec
}

func (e *Engine) duplicate(rec Record) []Record {
	if e.cfg.DuplicateRate > 0 && e.rng.Float64() < e.cfg.DuplicateRate {
		e.stats.Duplicated++
		return []Record{rec, rec}
	}
	return []Record{rec}
}

func (e *Engine) delay(rec Record) Record {
	if e.cfg.MaxDelay <= 0 {
		return rec
	}
	d := e.rng.Int63n(e.cfg.MaxDelay.Nanoseconds() + 1)
	if d == 0 {
		return rec
	}
	base := rec.Header.TsRecv
	if base <= 0 {
		base = rec.Header.TsEvent
	}
	if base <= 0 {
		return rec
	}
	rec.Header.TsRecv = base + d
	e.stats.Delayed++
	return rec
}

func (e *Engine) emit(recs ...Record) []Record {
	e.stats.Out += uint64(len(recs))
	return recs
}
