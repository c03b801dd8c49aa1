package state

import (
	"context"

	"bookstrat/internal/codec"
	"bookstrat/internal/recorder"
	"bookstrat/internal/schema"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

// RecoverResult describes what Recover folded into the tracker.
type RecoverResult struct {
	Fills     int
	Snapshots int
	Skipped   int
	// LastRecv is the receive time of the last record applied, zero if none.
	LastRecv int64
}

// Recover loads snapshot into t, then replays the journaled fills and successful
// position snapshots received after it. This restores positions when the process
// died before it could save a snapshot at shutdown. Records at or before the
// snapshot time are already reflected in it and are skipped.
func Recover(ctx context.Context, t *PositionTracker, snapshot Snapshot, journal recorder.PlaybackConfig) (RecoverResult, error) {
	t.ApplySnapshot(snapshot)

	var res RecoverResult
	pb, err := recorder.NewPlayback(journal)
	if err != nil {
		return res, errors.Wrap(err, "new playback")
	}

	err = pb.Run(ctx, func(h schema.EventHeader, payload []byte) error {
		if h.Type != schema.EventFill && h.Type != schema.EventPositionSnapshot {
			return nil
		}
		if h.TsRecv <= snapshot.Timestamp {
			res.Skipped++
			return nil
		}

		evt, err := codec.DecodeEvent(h.Type, payload)
		if err != nil {
			res.Skipped++
			logs.Warnf("recover: decode seq %d, err: %+v", h.Seq, err)
			return nil
		}
		switch x := evt.(type) {
		case schema.Fill:
			if _, err := t.ApplyFill(x.Instrument, x.Side, x.ExecSize); err != nil {
				res.Skipped++
				return nil
			}
			res.Fills++
		case schema.PositionSnapshot:
			if !x.Succeeded() {
				res.Skipped++
				return nil
			}
			t.Set(x.Instrument, x.Position)
			res.Snapshots++
		}
		res.LastRecv = h.TsRecv
		return nil
	})
	if err != nil {
		return res, errors.Wrap(err, "replay journal")
	}
	return res, nil
}
