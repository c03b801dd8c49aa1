package recorder

import (
	"context"
	"testing"

	"bookstrat/internal/codec"
	"bookstrat/internal/schema"
	"bookstrat/pkg/exception"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJournalPlayback(t *testing.T) {
	dir := t.TempDir()
	j, err := OpenJournal(context.Background(), DefaultConfig(dir))
	require.NoError(t, err)

	events := []any{
		schema.BookUpdate{Timestamp: 10, Instrument: "X", Price: decimal.NewFromInt(100), Size: decimal.NewFromInt(1),
			Side: schema.BookSideBid, DataType: schema.DataTypeIncremental},
		schema.OrderIntent{Instrument: "X", Side: schema.OrderSideBuy, Price: decimal.NewFromInt(100),
			Size: decimal.NewFromInt(1), RequestID: 1},
		schema.StateUpdate{State: "RUNNING"},
	}
	for _, e := range events {
		require.NoError(t, j.Record(schema.SourceFeed, e))
	}
	require.NoError(t, j.Close())
	assert.Equal(t, uint64(3), j.Seq())

	pb, err := NewPlayback(PlaybackConfig{Dir: dir})
	require.NoError(t, err)

	var types []schema.EventType
	var seqs []uint64
	err = pb.Run(context.Background(), func(h schema.EventHeader, payload []byte) error {
		types = append(types, h.Type)
		seqs = append(seqs, h.Seq)
		if h.Type == schema.EventOrderIntent {
			intent, err := codec.DecodeIntent(payload)
			require.NoError(t, err)
			assert.Equal(t, uint64(1), intent.RequestID)
			return nil
		}
		evt, err := codec.DecodeEvent(h.Type, payload)
		require.NoError(t, err)
		assert.Equal(t, h.Type, evt.Kind())
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []schema.EventType{schema.EventBookUpdate, schema.EventOrderIntent, schema.EventStateUpdate}, types)
	assert.Equal(t, []uint64{1, 2, 3}, seqs)
}

func TestJournalRejectsAfterClose(t *testing.T) {
	j, err := OpenJournal(context.Background(), DefaultConfig(t.TempDir()))
	require.NoError(t, err)
	require.NoError(t, j.Close())

	assert.ErrorIs(t, j.Record(schema.SourceFeed, schema.StateUpdate{}), exception.ErrJournalClosed)
}

func TestConfigValidate(t *testing.T) {
	assert.Error(t, Config{}.withDefaults().Validate())
	assert.NoError(t, DefaultConfig("x").Validate())
}

func TestJournalAppendRenumbers(t *testing.T) {
	dir := t.TempDir()
	j, err := OpenJournal(context.Background(), DefaultConfig(dir))
	require.NoError(t, err)

	payload := []byte(`{"state":"RUNNING"}`)
	require.NoError(t, j.Append(schema.EventHeader{Type: schema.EventStateUpdate, Source: schema.SourceReplay, Seq: 42, TsEvent: 7}, payload))
	require.NoError(t, j.Append(schema.EventHeader{Type: schema.EventStateUpdate, Source: schema.SourceReplay, Seq: 42, TsEvent: 8}, payload))
	payload[0] = 'x'
	require.NoError(t, j.Close())

	pb, err := NewPlayback(PlaybackConfig{Dir: dir})
	require.NoError(t, err)

	var headers []schema.EventHeader
	var bodies []string
	require.NoError(t, pb.Run(context.Background(), func(h schema.EventHeader, p []byte) error {
		headers = append(headers, h)
		bodies = append(bodies, string(p))
		return nil
	}))
	require.Len(t, headers, 2)
	assert.Equal(t, uint64(1), headers[0].Seq)
	assert.Equal(t, uint64(2), headers[1].Seq)
	assert.Equal(t, schema.SchemaVersion, headers[0].Version)
	assert.NotZero(t, headers[0].TraceID)
	assert.Equal(t, schema.SourceReplay, headers[1].Source)
	assert.Equal(t, []string{`{"state":"RUNNING"}`, `{"state":"RUNNING"}`}, bodies)
}
