package recorder

import (
	"context"
	"sync/atomic"
	"time"

	"bookstrat/internal/codec"
	"bookstrat/internal/obs"
	"bookstrat/internal/schema"

	"github.com/yanun0323/errors"
)

// Journal records every inbound event and every emitted intent as an auditable,
// replayable log. Record never blocks.
type Journal struct {
	w     *Writer
	seq   atomic.Uint64
	trace *obs.TraceGenerator
}

// OpenJournal creates the writer and starts its loop.
func OpenJournal(ctx context.Context, cfg Config) (*Journal, error) {
	w, err := NewWriter(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "new journal writer")
	}
	if err := w.Start(ctx); err != nil {
		return nil, errors.Wrap(err, "start journal writer")
	}
	return &Journal{w: w, trace: obs.NewTraceGenerator(0)}, nil
}

// Record appends an event or intent. source is one of the schema.Source constants.
func (j *Journal) Record(source uint16, v any) error {
	typ, payload, err := codec.Encode(v)
	if err != nil {
		return err
	}
	now := time.Now().UTC().UnixNano()
	header := schema.NewHeader(typ, source, j.seq.Add(1), eventTime(v, now), now)
	header.TraceID = j.trace.Next()
	return j.w.TryAppend(header, payload)
}

// Seq returns the sequence number of the last record.
func (j *Journal) Seq() uint64 {
	return j.seq.Load()
}

// Stats reports written and dropped records.
func (j *Journal) Stats() WriterStats {
	return j.w.Stats()
}

// Close flushes and closes the current segment.
func (j *Journal) Close() error {
	return j.w.Close()
}

func eventTime(v any, fallback int64) int64 {
	var ts int64
	switch x := v.(type) {
	case schema.BookUpdate:
		ts = x.Timestamp
	case schema.TradePrint:
		ts = x.Timestamp
	case schema.Bar:
		ts = x.EndTs
	case schema.InstrumentStatus:
		ts = x.Timestamp
	case schema.Acknowledge:
		ts = x.Timestamp
	case schema.Fill:
		ts = x.Timestamp
	case schema.Cancel:
		ts = x.Timestamp
	case schema.Reject:
		ts = x.Timestamp
	case schema.OrderDetails:
		ts = x.Timestamp
	}
	if ts <= 0 {
		return fallback
	}
	return ts
}

// Append copies an already journaled record, renumbering it into this journal's sequence.
func (j *Journal) Append(header schema.EventHeader, payload []byte) error {
	header.Seq = j.seq.Add(1)
	if header.Version == 0 {
		header.Version = schema.SchemaVersion
	}
	if header.TraceID == 0 {
		header.TraceID = j.trace.Next()
	}
	cp := make([]byte, len(payload))
	copy(cp, payload)
	return j.w.TryAppend(header, cp)
}
