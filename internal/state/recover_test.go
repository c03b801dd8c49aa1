package state

import (
	"context"
	"testing"
	"time"

	"bookstrat/internal/recorder"
	"bookstrat/internal/schema"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fill(inst schema.Instrument, side schema.OrderSide, size int64) schema.Fill {
	return schema.Fill{
		OrderRef: schema.OrderRef{Instrument: inst, OrderID: uuid.New()},
		Side:     side,
		ExecSize: d(size),
	}
}

func TestRecoverReplaysFillsAfterSnapshot(t *testing.T) {
	dir := t.TempDir()
	j, err := recorder.OpenJournal(context.Background(), recorder.DefaultConfig(dir))
	require.NoError(t, err)

	require.NoError(t, j.Record(schema.SourceVenue, fill("ESH24", schema.OrderSideBuy, 3)))
	time.Sleep(time.Millisecond)
	cut := time.Now().UTC().UnixNano()
	time.Sleep(time.Millisecond)
	require.NoError(t, j.Record(schema.SourceVenue, fill("ESH24", schema.OrderSideBuy, 2)))
	require.NoError(t, j.Record(schema.SourceFeed, schema.BookUpdate{Instrument: "ESH24"}))
	require.NoError(t, j.Record(schema.SourceVenue, fill("RTYH24", schema.OrderSideSell, 1)))
	require.NoError(t, j.Record(schema.SourceVenue, fill("RTYH24", schema.OrderSideUnknown, 1)))
	require.NoError(t, j.Record(schema.SourceVenue, schema.PositionSnapshot{Instrument: "NQH24", Position: d(9), Status: "FAILED"}))
	require.NoError(t, j.Record(schema.SourceVenue, schema.PositionSnapshot{Instrument: "NQH24", Position: d(4), Status: schema.PositionStatusSuccess}))
	require.NoError(t, j.Close())

	tracker := NewPositionTracker()
	snap := Snapshot{Timestamp: cut, Positions: []PositionEntry{{Instrument: "ESH24", Qty: d(3)}}}
	res, err := Recover(context.Background(), tracker, snap, recorder.PlaybackConfig{Dir: dir})
	require.NoError(t, err)

	assert.Equal(t, 2, res.Fills)
	assert.Equal(t, 1, res.Snapshots)
	assert.Equal(t, 3, res.Skipped)
	assert.Positive(t, res.LastRecv)

	es, _ := tracker.Position("ESH24")
	assert.True(t, es.Equal(d(5)), "got %s", es)
	rty, _ := tracker.Position("RTYH24")
	assert.True(t, rty.Equal(d(-1)), "got %s", rty)
	nq, _ := tracker.Position("NQH24")
	assert.True(t, nq.Equal(d(4)), "got %s", nq)
}

func TestRecoverMissingJournal(t *testing.T) {
	tracker := NewPositionTracker()
	snap := Snapshot{Positions: []PositionEntry{{Instrument: "ESH24", Qty: d(1)}}}
	_, err := Recover(context.Background(), tracker, snap, recorder.PlaybackConfig{Dir: t.TempDir() + "/nope"})
	assert.Error(t, err)

	es, ok := tracker.Position("ESH24")
	assert.True(t, ok)
	assert.True(t, es.Equal(d(1)))
}
