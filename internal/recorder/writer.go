package recorder

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	stderrors "errors"

	"bookstrat/internal/schema"
	"bookstrat/pkg/exception"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

const segmentExt = ".jnl"

// WriterStats counts what happened to appended records.
type WriterStats struct {
	Written  uint64
	Dropped  uint64
	Segments uint64
}

// Writer appends records to rotating segment files from a bounded queue.
// TryAppend never blocks; a full queue drops the record and reports ErrJournalQueueFull.
type Writer struct {
	cfg   Config
	queue chan pending
	done  sync.WaitGroup
	fail  atomic.Pointer[error]

	started atomic.Bool
	closed  atomic.Bool

	written  atomic.Uint64
	dropped  atomic.Uint64
	segments atomic.Uint64
}

type pending struct {
	header  schema.EventHeader
	payload []byte
}

// NewWriter validates cfg and creates the journal directory.
func NewWriter(cfg Config) (*Writer, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create journal dir %s", cfg.Dir)
	}
	return &Writer{
		cfg:   cfg,
		queue: make(chan pending, cfg.QueueSize),
	}, nil
}

// Start runs the write loop until Close, or until ctx ends.
func (w *Writer) Start(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return exception.ErrJournalAlreadyStarted
	}
	w.done.Add(1)
	go func() {
		defer w.done.Done()
		w.loop(ctx)
	}()
	return nil
}

// Close drains the queue, then flushes, syncs and closes the open segment.
func (w *Writer) Close() error {
	if w.closed.CompareAndSwap(false, true) {
		close(w.queue)
	}
	w.done.Wait()
	return w.Err()
}

// Err reports the first I/O failure. After a failure every append is rejected.
func (w *Writer) Err() error {
	if p := w.fail.Load(); p != nil {
		return *p
	}
	return nil
}

func (w *Writer) Stats() WriterStats {
	return WriterStats{
		Written:  w.written.Load(),
		Dropped:  w.dropped.Load(),
		Segments: w.segments.Load(),
	}
}

// TryAppend queues one record. The payload must not be modified afterwards.
func (w *Writer) TryAppend(header schema.EventHeader, payload []byte) error {
	switch {
	case w.closed.Load():
		return exception.ErrJournalClosed
	case !w.started.Load():
		return exception.ErrJournalNotStarted
	case len(payload) > maxPayload:
		w.dropped.Add(1)
		return exception.ErrJournalPayloadTooLarge
	}
	if err := w.Err(); err != nil {
		return err
	}
	if header.Version == 0 {
		header.Version = schema.SchemaVersion
	}

	select {
	case w.queue <- pending{header: header, payload: payload}:
		return nil
	default:
		w.dropped.Add(1)
		return exception.ErrJournalQueueFull
	}
}

func (w *Writer) setErr(err error) {
	if err != nil {
		w.fail.CompareAndSwap(nil, &err)
	}
}

func (w *Writer) loop(ctx context.Context) {
	var flushC, syncC <-chan time.Time
	if w.cfg.FlushEvery > 0 {
		t := time.NewTicker(w.cfg.FlushEvery)
		defer t.Stop()
		flushC = t.C
	}
	if w.cfg.SyncEvery > 0 {
		t := time.NewTicker(w.cfg.SyncEvery)
		defer t.Stop()
		syncC = t.C
	}

	seg := &segment{cfg: w.cfg}
	defer func() {
		if err := seg.close(); err != nil {
			w.setErr(err)
		}
	}()

	write := func(p pending) bool {
		rotated, err := seg.write(p, time.Now().UTC())
		if err != nil {
			w.setErr(err)
			logs.Errorf("journal: write seq %d, err: %+v", p.header.Seq, err)
			return false
		}
		if rotated {
			w.segments.Add(1)
		}
		w.written.Add(1)
		return true
	}

	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case p, ok := <-w.queue:
					if !ok || !write(p) {
						return
					}
				default:
					return
				}
			}
		case p, ok := <-w.queue:
			if !ok || !write(p) {
				return
			}
		case <-flushC:
			if err := seg.flush(false); err != nil {
				w.setErr(err)
				return
			}
		case <-syncC:
			if err := seg.flush(true); err != nil {
				w.setErr(err)
				return
			}
		}
	}
}

// segment is the file currently being written. Only the write loop touches it.
type segment struct {
	cfg      Config
	id       uint64
	file     *os.File
	buf      *bufio.Writer
	size     int64
	openedAt time.Time
	header   []byte
	trailer  [trailerSize]byte
}

func (s *segment) write(p pending, now time.Time) (rotated bool, err error) {
	n := int64(recordOverhead + len(p.payload))
	if s.file == nil || s.size+n > s.cfg.MaxSegmentBytes ||
		(s.cfg.MaxSegmentAge > 0 && now.Sub(s.openedAt) >= s.cfg.MaxSegmentAge) {
		if err := s.rotate(now); err != nil {
			return false, err
		}
		rotated = true
	}

	s.header = putHeader(s.header, p.header, len(p.payload))
	le.PutUint32(s.trailer[:], crcOf(s.header, p.payload))

	if _, err := s.buf.Write(s.header); err != nil {
		return rotated, errors.Wrapf(err, "write header to %s", s.file.Name())
	}
	if _, err := s.buf.Write(p.payload); err != nil {
		return rotated, errors.Wrapf(err, "write payload to %s", s.file.Name())
	}
	if _, err := s.buf.Write(s.trailer[:]); err != nil {
		return rotated, errors.Wrapf(err, "write checksum to %s", s.file.Name())
	}
	s.size += n
	return rotated, nil
}

func (s *segment) rotate(now time.Time) error {
	if err := s.close(); err != nil {
		return err
	}
	stamp := now.Format("20060102-150405")
	for {
		s.id++
		path := filepath.Join(s.cfg.Dir, fmt.Sprintf("%s-%s-%06d%s", s.cfg.Prefix, stamp, s.id, segmentExt))
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
		if stderrors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return errors.Wrapf(err, "open segment %s", path)
		}
		s.file = f
		s.buf = bufio.NewWriterSize(f, s.cfg.BufferSize)
		s.size = 0
		s.openedAt = now
		return nil
	}
}

func (s *segment) flush(sync bool) error {
	if s.file == nil {
		return nil
	}
	if err := s.buf.Flush(); err != nil {
		return errors.Wrapf(err, "flush %s", s.file.Name())
	}
	if sync {
		if err := s.file.Sync(); err != nil {
			return errors.Wrapf(err, "sync %s", s.file.Name())
		}
	}
	return nil
}

func (s *segment) close() error {
	if s.file == nil {
		return nil
	}
	err := s.flush(true)
	if cerr := s.file.Close(); err == nil && cerr != nil {
		err = errors.Wrapf(cerr, "close %s", s.file.Name())
	}
	s.file, s.buf = nil, nil
	return err
}
