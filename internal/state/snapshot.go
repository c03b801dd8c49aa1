package state

import (
	"bytes"
	"sort"
	"strconv"
	"time"

	"bookstrat/internal/schema"

	"github.com/cockroachdb/pebble"
	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"
)

// Snapshot captures position quantities at a point in time.
type Snapshot struct {
	Timestamp int64           `json:"timestamp"`
	Positions []PositionEntry `json:"positions"`
}

// PositionEntry is a single instrument position entry.
type PositionEntry struct {
	Instrument schema.Instrument `json:"symbol"`
	Qty        decimal.Decimal   `json:"qty"`
}

// Snapshot builds a snapshot from current positions, sorted by instrument.
func (t *PositionTracker) Snapshot() Snapshot {
	t.mu.RLock()
	entries := make([]PositionEntry, 0, len(t.positions))
	for inst, qty := range t.positions {
		entries = append(entries, PositionEntry{Instrument: inst, Qty: qty})
	}
	t.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Instrument < entries[j].Instrument
	})
	return Snapshot{
		Timestamp: time.Now().UTC().UnixNano(),
		Positions: entries,
	}
}

var (
	positionPrefix = []byte("position/")
	positionUpper  = []byte("position/\xff")
	timestampKey   = []byte("meta/timestamp")
)

// SnapshotStore persists position snapshots in a pebble database.
type SnapshotStore struct {
	db *pebble.DB
}

// OpenSnapshotStore opens or creates the store in dir.
func OpenSnapshotStore(dir string) (*SnapshotStore, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, errors.Wrapf(err, "open pebble at %s", dir)
	}
	return &SnapshotStore{db: db}, nil
}

// Close closes the underlying database.
func (s *SnapshotStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Save replaces the stored snapshot atomically.
func (s *SnapshotStore) Save(snapshot Snapshot) error {
	batch := s.db.NewBatch()
	defer batch.Close()

	if err := batch.DeleteRange(positionPrefix, positionUpper, nil); err != nil {
		return errors.Wrap(err, "clear positions")
	}
	for _, entry := range snapshot.Positions {
		key := append(append([]byte{}, positionPrefix...), string(entry.Instrument)...)
		if err := batch.Set(key, []byte(entry.Qty.String()), nil); err != nil {
			return errors.Wrapf(err, "set position %s", entry.Instrument)
		}
	}
	ts := strconv.FormatInt(snapshot.Timestamp, 10)
	if err := batch.Set(timestampKey, []byte(ts), nil); err != nil {
		return errors.Wrap(err, "set timestamp")
	}
	return batch.Commit(pebble.Sync)
}

// Load reads the stored snapshot. An empty store yields an empty snapshot.
func (s *SnapshotStore) Load() (Snapshot, error) {
	var snap Snapshot

	val, closer, err := s.db.Get(timestampKey)
	switch {
	case err == nil:
		ts, perr := strconv.ParseInt(string(val), 10, 64)
		_ = closer.Close()
		if perr != nil {
			return Snapshot{}, errors.Wrap(perr, "parse timestamp")
		}
		snap.Timestamp = ts
	case err == pebble.ErrNotFound:
	default:
		return Snapshot{}, errors.Wrap(err, "get timestamp")
	}

	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: positionPrefix,
		UpperBound: positionUpper,
	})
	if err != nil {
		return Snapshot{}, errors.Wrap(err, "new iter")
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		inst := string(bytes.TrimPrefix(iter.Key(), positionPrefix))
		qty, err := decimal.NewFromString(string(iter.Value()))
		if err != nil {
			return Snapshot{}, errors.Wrapf(err, "parse position %s", inst)
		}
		snap.Positions = append(snap.Positions, PositionEntry{
			Instrument: schema.Instrument(inst),
			Qty:        qty,
		})
	}
	return snap, iter.Error()
}
