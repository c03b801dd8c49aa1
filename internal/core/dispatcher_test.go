package core

import (
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"bookstrat/internal/obs"
	"bookstrat/internal/schema"
	"bookstrat/internal/venue"
	"bookstrat/pkg/exception"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type handlerFunc func(source uint16, evt schema.Event) error

func (f handlerFunc) Handle(source uint16, evt schema.Event) error { return f(source, evt) }

func TestDispatcherLifecycleErrors(t *testing.T) {
	disp, err := NewDispatcher(DispatcherConfig{}, handlerFunc(func(uint16, schema.Event) error { return nil }), nil)
	require.NoError(t, err)

	assert.ErrorIs(t, disp.Dispatch(schema.TradePrint{Instrument: "X"}), exception.ErrDispatcherNotStarted)
	assert.ErrorIs(t, disp.Dispatch(nil), exception.ErrNilEvent)

	require.NoError(t, disp.Start(t.Context()))
	require.NoError(t, disp.OnTradePrint(schema.TradePrint{Instrument: "X"}))
	disp.Close()
	disp.Close()

	assert.ErrorIs(t, disp.OnTradePrint(schema.TradePrint{Instrument: "X"}), exception.ErrDispatcherClosed)
	assert.ErrorIs(t, disp.Start(t.Context()), exception.ErrDispatcherClosed)

	_, err = NewDispatcher(DispatcherConfig{}, nil, nil)
	assert.Error(t, err)
}

func TestDispatcherPreservesPerInstrumentOrder(t *testing.T) {
	var mu sync.Mutex
	seen := map[schema.Instrument][]int64{}
	disp, err := NewDispatcher(DispatcherConfig{LaneQueueSize: 4096}, handlerFunc(func(_ uint16, evt schema.Event) error {
		tp := evt.(schema.TradePrint)
		mu.Lock()
		seen[tp.Instrument] = append(seen[tp.Instrument], tp.Timestamp)
		mu.Unlock()
		return nil
	}), nil)
	require.NoError(t, err)
	require.NoError(t, disp.Start(t.Context()))

	const perInstrument = 500
	instruments := []schema.Instrument{"A", "B", "C", "D"}
	var wg sync.WaitGroup
	for _, inst := range instruments {
		wg.Add(1)
		go func(inst schema.Instrument) {
			defer wg.Done()
			for i := int64(1); i <= perInstrument; i++ {
				assert.NoError(t, disp.OnTradePrint(schema.TradePrint{Instrument: inst, Timestamp: i}))
			}
		}(inst)
	}
	wg.Wait()
	disp.Close()

	assert.Equal(t, len(instruments), disp.Lanes())
	for _, inst := range instruments {
		got := seen[inst]
		require.Len(t, got, perInstrument)
		for i, ts := range got {
			assert.Equal(t, int64(i+1), ts)
		}
	}
}

func TestDispatcherProcessLane(t *testing.T) {
	var mu sync.Mutex
	var sources []uint16
	disp, err := NewDispatcher(DispatcherConfig{}, handlerFunc(func(source uint16, _ schema.Event) error {
		mu.Lock()
		sources = append(sources, source)
		mu.Unlock()
		return nil
	}), nil)
	require.NoError(t, err)
	require.NoError(t, disp.Start(t.Context()))

	require.NoError(t, disp.OnStateUpdate(schema.StateUpdate{}))
	require.NoError(t, disp.OnParameterUpdate(schema.ParameterUpdate{}))
	require.NoError(t, disp.OnPreAcknowledge(schema.PreAcknowledge{RequestID: 1}))
	assert.Equal(t, 1, disp.Lanes())
	disp.Close()

	assert.Equal(t, []uint16{schema.SourceFeed, schema.SourceFeed, schema.SourceVenue}, sources)
}

func TestDispatcherLaneFull(t *testing.T) {
	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	metrics := obs.NewMetrics()
	disp, err := NewDispatcher(DispatcherConfig{LaneQueueSize: 1}, handlerFunc(func(uint16, schema.Event) error {
		select {
		case entered <- struct{}{}:
		default:
		}
		<-release
		return nil
	}), metrics)
	require.NoError(t, err)
	require.NoError(t, disp.Start(t.Context()))

	require.NoError(t, disp.OnTradePrint(schema.TradePrint{Instrument: "X"}))
	<-entered
	require.NoError(t, disp.OnTradePrint(schema.TradePrint{Instrument: "X"}))
	assert.ErrorIs(t, disp.OnTradePrint(schema.TradePrint{Instrument: "X"}), exception.ErrLaneQueueFull)
	assert.NoError(t, disp.OnTradePrint(schema.TradePrint{Instrument: "Y"}))

	close(release)
	disp.Close()
	assert.Equal(t, uint64(1), metrics.Snapshot().QueueDrops)
}

func TestDispatcherContainsHandlerFailures(t *testing.T) {
	metrics := obs.NewMetrics()
	var mu sync.Mutex
	var handled []int64
	disp, err := NewDispatcher(DispatcherConfig{}, handlerFunc(func(_ uint16, evt schema.Event) error {
		tp := evt.(schema.TradePrint)
		switch tp.Timestamp {
		case 1:
			panic("malformed")
		case 2:
			return fmt.Errorf("bad event")
		}
		mu.Lock()
		handled = append(handled, tp.Timestamp)
		mu.Unlock()
		return nil
	}), metrics)
	require.NoError(t, err)
	require.NoError(t, disp.Start(t.Context()))

	for i := int64(1); i <= 3; i++ {
		require.NoError(t, disp.OnTradePrint(schema.TradePrint{Instrument: "X", Timestamp: i}))
	}
	disp.Close()

	assert.Equal(t, []int64{3}, handled)
	assert.Equal(t, uint64(2), metrics.Snapshot().HandleErrors)
}

func TestDispatcherRequestIDsAcrossLanes(t *testing.T) {
	h := newHarness(t, nil)
	disp, err := NewDispatcher(DispatcherConfig{LaneQueueSize: 4096}, h.engine, h.metrics)
	require.NoError(t, err)
	require.NoError(t, disp.Start(t.Context()))

	const cycles = 50
	instruments := []schema.Instrument{"A", "B", "C", "D", "E"}
	var wg sync.WaitGroup
	for _, inst := range instruments {
		wg.Add(1)
		go func(inst schema.Instrument) {
			defer wg.Done()
			assert.NoError(t, disp.OnBookUpdate(level(inst, schema.BookSideBid, schema.BookActionUpsert, 100, 1)))
			for i := 0; i < cycles; i++ {
				assert.NoError(t, disp.OnBookUpdate(level(inst, schema.BookSideBid, schema.BookActionUpsert, 101, 1)))
				assert.NoError(t, disp.OnBookUpdate(level(inst, schema.BookSideBid, schema.BookActionDelete, 101, 0)))
			}
		}(inst)
	}
	wg.Wait()
	disp.Close()

	intents := h.venue.Intents()
	require.Len(t, intents, cycles*len(instruments))

	ids := make([]uint64, 0, len(intents))
	for _, in := range intents {
		ids = append(ids, in.RequestID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for i, id := range ids {
		assert.Equal(t, uint64(i+1), id)
	}
}

func TestDispatcherPaperVenueRoundTrip(t *testing.T) {
	paper := venue.NewPaper(venue.PaperConfig{AccountID: "acc", AutoFill: true})
	h := newHarness(t, paper)
	disp, err := NewDispatcher(DispatcherConfig{LaneQueueSize: 4096}, h.engine, h.metrics)
	require.NoError(t, err)
	paper.Attach(disp)
	require.NoError(t, disp.Start(t.Context()))

	require.NoError(t, disp.OnBookUpdate(level("X", schema.BookSideBid, schema.BookActionUpsert, 100, 1)))
	for i := 0; i < 6; i++ {
		require.NoError(t, disp.OnBookUpdate(level("X", schema.BookSideBid, schema.BookActionUpsert, 101, 1)))
		require.NoError(t, disp.OnBookUpdate(level("X", schema.BookSideBid, schema.BookActionDelete, 101, 0)))
	}

	select {
	case <-h.life.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("risk shutdown not requested")
	}
	disp.Close()

	snap := h.metrics.Snapshot()
	assert.Equal(t, uint64(1), snap.Shutdowns)
	assert.Equal(t, uint64(6), snap.Intents)
	assert.Equal(t, uint64(6), snap.EventCounts[schema.EventFill])
	assert.Equal(t, uint64(6), snap.EventCounts[schema.EventPreAcknowledge])

	pos, ok := h.positions.Position("X")
	require.True(t, ok)
	assert.True(t, pos.Equal(d(6)))
}

func TestDispatcherDroppedFillHaltsTrading(t *testing.T) {
	h := newHarness(t, nil)
	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	gated := handlerFunc(func(source uint16, evt schema.Event) error {
		select {
		case entered <- struct{}{}:
		default:
		}
		<-release
		return h.engine.Handle(source, evt)
	})
	disp, err := NewDispatcher(DispatcherConfig{LaneQueueSize: 1}, gated, h.metrics)
	require.NoError(t, err)
	disp.WithGuard(h.risk)
	require.NoError(t, disp.Start(t.Context()))

	require.NoError(t, disp.OnFill(fill("X", schema.OrderSideBuy, 1)))
	<-entered
	require.NoError(t, disp.OnFill(fill("X", schema.OrderSideBuy, 1)))

	assert.ErrorIs(t, disp.OnTradePrint(schema.TradePrint{Instrument: "X"}), exception.ErrLaneQueueFull)
	assert.False(t, h.risk.Halted())

	for i := 0; i < 6; i++ {
		assert.ErrorIs(t, disp.OnFill(fill("X", schema.OrderSideBuy, 1)), exception.ErrLaneQueueFull)
	}
	assert.True(t, h.risk.Halted())
	select {
	case <-h.life.Done():
	default:
		t.Fatal("shutdown not requested after a dropped fill")
	}

	close(release)
	disp.Close()

	snap := h.metrics.Snapshot()
	assert.Equal(t, uint64(7), snap.QueueDrops)
	assert.Equal(t, uint64(1), snap.Shutdowns)
	pos, ok := h.positions.Position("X")
	require.True(t, ok)
	assert.True(t, pos.Equal(d(2)))
}

func TestDispatcherDroppedPositionSnapshotHaltsTrading(t *testing.T) {
	h := newHarness(t, nil)
	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	disp, err := NewDispatcher(DispatcherConfig{LaneQueueSize: 1}, handlerFunc(func(uint16, schema.Event) error {
		select {
		case entered <- struct{}{}:
		default:
		}
		<-release
		return nil
	}), h.metrics)
	require.NoError(t, err)
	disp.WithGuard(h.risk)
	require.NoError(t, disp.Start(t.Context()))

	snapshot := schema.PositionSnapshot{Instrument: "X", Position: d(1)}
	require.NoError(t, disp.OnPositionSnapshot(snapshot))
	<-entered
	require.NoError(t, disp.OnPositionSnapshot(snapshot))
	assert.ErrorIs(t, disp.OnPositionSnapshot(snapshot), exception.ErrLaneQueueFull)

	close(release)
	disp.Close()
	assert.True(t, h.risk.Halted())
	assert.Equal(t, "risk", h.life.Reason())
}
