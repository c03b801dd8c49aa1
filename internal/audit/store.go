// Package audit persists every recorded event and intent to a relational table
// for after-the-fact inspection. Writes are batched off the caller's goroutine.
package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"bookstrat/internal/codec"
	"bookstrat/internal/schema"
	"bookstrat/pkg/exception"

	"github.com/google/uuid"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"gorm.io/gorm"
)

const (
	defaultBatchSize     = 256
	defaultQueueSize     = 8192
	defaultFlushInterval = 200 * time.Millisecond
)

// Record is one audited row.
type Record struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement"`
	RunID     string `gorm:"size:36;index"`
	Seq       uint64 `gorm:"index"`
	Source    uint16
	Kind      string `gorm:"size:32;index"`
	Symbol    string `gorm:"size:64;index"`
	Payload   []byte
	CreatedAt time.Time
}

func (Record) TableName() string {
	return "audit_events"
}

// Config tunes batching.
type Config struct {
	BatchSize     int           `mapstructure:"batchSize"`
	QueueSize     int           `mapstructure:"queueSize"`
	FlushInterval time.Duration `mapstructure:"flushInterval"`
}

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = defaultBatchSize
	}
	if c.QueueSize <= 0 {
		c.QueueSize = defaultQueueSize
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = defaultFlushInterval
	}
	return c
}

// Store queues records and inserts them in batches.
type Store struct {
	db    *gorm.DB
	cfg   Config
	runID string
	seq   atomic.Uint64

	mu      sync.RWMutex
	closed  bool
	queue   chan Record
	done    chan struct{}
	dropped atomic.Uint64
	written atomic.Uint64
	now     func() time.Time
}

// NewStore migrates the table and starts the batching loop.
func NewStore(db *gorm.DB, cfg Config) (*Store, error) {
	if db == nil {
		return nil, exception.ErrNilInstance
	}
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, errors.Wrap(err, "migrate audit table")
	}
	cfg = cfg.withDefaults()
	s := &Store{
		db:    db,
		cfg:   cfg,
		runID: uuid.NewString(),
		queue: make(chan Record, cfg.QueueSize),
		done:  make(chan struct{}),
		now:   time.Now,
	}
	go s.loop()
	return s, nil
}

// RunID identifies this process's rows.
func (s *Store) RunID() string {
	return s.runID
}

// Record queues an event or intent. It never blocks; a full queue drops the record.
func (s *Store) Record(source uint16, v any) error {
	typ, payload, err := codec.Encode(v)
	if err != nil {
		return err
	}
	rec := Record{
		RunID:     s.runID,
		Seq:       s.seq.Add(1),
		Source:    source,
		Kind:      typ.String(),
		Symbol:    string(symbolOf(v)),
		Payload:   payload,
		CreatedAt: s.now().UTC(),
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return exception.ErrAuditClosed
	}
	select {
	case s.queue <- rec:
		return nil
	default:
		s.dropped.Add(1)
		return exception.ErrAuditQueueFull
	}
}

// Dropped returns how many records were lost to a full queue.
func (s *Store) Dropped() uint64 {
	return s.dropped.Load()
}

// Written returns how many records reached the database.
func (s *Store) Written() uint64 {
	return s.written.Load()
}

// Close flushes queued records and stops the loop.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()

	<-s.done
	return nil
}

// Records loads this run's rows of kind in sequence order. EventUnknown loads all kinds.
func (s *Store) Records(ctx context.Context, kind schema.EventType) ([]Record, error) {
	q := s.db.WithContext(ctx).Where("run_id = ?", s.runID)
	if kind != schema.EventUnknown {
		q = q.Where("kind = ?", kind.String())
	}
	var out []Record
	if err := q.Order("seq").Find(&out).Error; err != nil {
		return nil, errors.Wrap(err, "query audit records")
	}
	return out, nil
}

func (s *Store) loop() {
	defer close(s.done)

	ticker := time.NewTicker(s.cfg.FlushInterval)
	defer ticker.Stop()

	batch := make([]Record, 0, s.cfg.BatchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := s.db.CreateInBatches(batch, s.cfg.BatchSize).Error; err != nil {
			logs.Errorf("audit: insert %d records, err: %+v", len(batch), err)
		} else {
			s.written.Add(uint64(len(batch)))
		}
		batch = make([]Record, 0, s.cfg.BatchSize)
	}

	for {
		select {
		case rec, ok := <-s.queue:
			if !ok {
				flush()
				return
			}
			batch = append(batch, rec)
			if len(batch) >= s.cfg.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

func symbolOf(v any) schema.Instrument {
	switch x := v.(type) {
	case schema.Event:
		return x.Symbol()
	case schema.OrderIntent:
		return x.Instrument
	}
	return ""
}
