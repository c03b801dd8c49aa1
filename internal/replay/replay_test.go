package replay

import (
	"context"
	"testing"

	"bookstrat/internal/recorder"
	"bookstrat/internal/schema"
	"bookstrat/internal/venue"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func bid(action schema.BookAction, price int64) schema.BookUpdate {
	return schema.BookUpdate{
		Instrument: "X",
		Side:       schema.BookSideBid,
		Action:     action,
		Price:      d(price),
		Size:       d(1),
		DataType:   schema.DataTypeIncremental,
	}
}

func writeSession(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	j, err := recorder.OpenJournal(context.Background(), recorder.DefaultConfig(dir))
	require.NoError(t, err)

	records := []struct {
		source uint16
		v      any
	}{
		{schema.SourceFeed, bid(schema.BookActionUpsert, 100)},
		{schema.SourceFeed, bid(schema.BookActionUpsert, 101)},
		{schema.SourceFeed, bid(schema.BookActionDelete, 101)},
		{schema.SourceStrategy, schema.OrderIntent{Instrument: "X", Side: schema.OrderSideBuy, Price: d(101), Size: d(1), RequestID: 1}},
		{schema.SourceVenue, schema.Fill{OrderRef: schema.OrderRef{Instrument: "X", OrderID: uuid.New()}, Side: schema.OrderSideBuy, ExecSize: d(6)}},
		{schema.SourceFeed, schema.TradePrint{Instrument: "X", Price: d(101), Size: d(2)}},
	}
	for _, r := range records {
		require.NoError(t, j.Record(r.source, r.v))
	}
	require.NoError(t, j.Close())
	return dir
}

func TestRunReplay(t *testing.T) {
	dir := writeSession(t)

	report, err := Run(context.Background(), Config{Playback: recorder.PlaybackConfig{Dir: dir}})
	require.NoError(t, err)

	assert.Equal(t, ModeReplay, report.Mode)
	assert.Equal(t, uint64(6), report.Records)
	assert.Equal(t, uint64(1), report.RecordedIntents)
	assert.Equal(t, uint64(5), report.Applied)
	assert.Equal(t, uint64(0), report.Failed)
	require.Len(t, report.Intents, 1)
	assert.Equal(t, uint64(1), report.Intents[0].RequestID)
	assert.True(t, report.Intents[0].Price.Equal(d(101)))

	require.Len(t, report.Positions.Positions, 1)
	assert.True(t, report.Positions.Positions[0].Qty.Equal(d(6)))
	assert.True(t, report.Halted)
	assert.Equal(t, uint64(1), report.Metrics.Shutdowns)
}

func TestRunReplayStopOnHalt(t *testing.T) {
	dir := writeSession(t)

	report, err := Run(context.Background(), Config{Playback: recorder.PlaybackConfig{Dir: dir}, StopOnHalt: true})
	require.NoError(t, err)
	assert.True(t, report.Halted)
	assert.Equal(t, uint64(5), report.Records)
	assert.Equal(t, uint64(4), report.Applied)
}

func TestRunPaper(t *testing.T) {
	dir := writeSession(t)
	out := recorder.DefaultConfig(t.TempDir())

	report, err := Run(context.Background(), Config{
		Playback: recorder.PlaybackConfig{Dir: dir},
		Mode:     ModePaper,
		Paper:    venue.PaperConfig{AutoFill: true},
		Output:   &out,
	})
	require.NoError(t, err)

	assert.Equal(t, ModePaper, report.Mode)
	assert.Equal(t, uint64(1), report.Skipped)
	assert.Equal(t, uint64(4), report.Applied)
	require.Len(t, report.Intents, 1)
	require.Len(t, report.Positions.Positions, 1)
	assert.True(t, report.Positions.Positions[0].Qty.Equal(d(1)))
	assert.False(t, report.Halted)
	assert.Equal(t, uint64(1), report.Metrics.EventCounts[schema.EventFill])

	pb, err := recorder.NewPlayback(recorder.PlaybackConfig{Dir: out.Dir})
	require.NoError(t, err)
	var types []schema.EventType
	require.NoError(t, pb.Run(context.Background(), func(h schema.EventHeader, _ []byte) error {
		types = append(types, h.Type)
		return nil
	}))
	assert.Equal(t, []schema.EventType{
		schema.EventBookUpdate,
		schema.EventBookUpdate,
		schema.EventBookUpdate,
		schema.EventOrderIntent,
		schema.EventPreAcknowledge,
		schema.EventAcknowledge,
		schema.EventFill,
		schema.EventTradePrint,
	}, types)
}

func TestRunRequiresDir(t *testing.T) {
	_, err := Run(context.Background(), Config{})
	assert.Error(t, err)
}
