package audit

import (
	"context"
	"path/filepath"
	"testing"

	"bookstrat/internal/codec"
	"bookstrat/internal/schema"
	"bookstrat/pkg/conn"
	"bookstrat/pkg/exception"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openStore(t *testing.T, cfg Config) *Store {
	t.Helper()
	client, err := conn.Open(sqlite.Open(filepath.Join(t.TempDir(), "audit.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	s, err := NewStore(client.DB(), cfg)
	require.NoError(t, err)
	return s
}

func TestStoreRecordsEventsAndIntents(t *testing.T) {
	s := openStore(t, Config{BatchSize: 2})

	require.NoError(t, s.Record(schema.SourceFeed, schema.TradePrint{Instrument: "ESZ4", Price: decimal.NewFromInt(101), Size: decimal.NewFromInt(3)}))
	require.NoError(t, s.Record(schema.SourceFeed, schema.StateUpdate{State: "RUNNING"}))
	require.NoError(t, s.Record(schema.SourceStrategy, schema.OrderIntent{Instrument: "ESZ4", Side: schema.OrderSideBuy, RequestID: 1}))
	require.NoError(t, s.Close())
	assert.Equal(t, uint64(3), s.Written())

	all, err := s.Records(context.Background(), schema.EventUnknown)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []uint64{1, 2, 3}, []uint64{all[0].Seq, all[1].Seq, all[2].Seq})
	assert.Equal(t, "trade_print", all[0].Kind)
	assert.Equal(t, "ESZ4", all[0].Symbol)
	assert.Equal(t, "", all[1].Symbol)
	assert.Equal(t, s.RunID(), all[2].RunID)

	intents, err := s.Records(context.Background(), schema.EventOrderIntent)
	require.NoError(t, err)
	require.Len(t, intents, 1)
	assert.Equal(t, schema.SourceStrategy, intents[0].Source)

	got, err := codec.DecodeIntent(intents[0].Payload)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), got.RequestID)
}

func TestStoreClosed(t *testing.T) {
	s := openStore(t, Config{})
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Record(schema.SourceFeed, schema.StateUpdate{}), exception.ErrAuditClosed)
}

func TestStoreRejectsUnknownValue(t *testing.T) {
	s := openStore(t, Config{})
	defer s.Close()
	assert.ErrorIs(t, s.Record(schema.SourceFeed, "nope"), exception.ErrUnknownEventType)
}

func TestNewStoreNilDB(t *testing.T) {
	_, err := NewStore(nil, Config{})
	assert.ErrorIs(t, err, exception.ErrNilInstance)
}
