package conn

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptionDSN(t *testing.T) {
	dsn, err := Option{}.dsn()
	require.NoError(t, err)
	assert.Equal(t, "postgres://localhost:5432?sslmode=disable", dsn)

	dsn, err = Option{
		Host:     "db",
		Port:     6543,
		User:     "trader",
		Password: "secret",
		Database: "audit",
		Params:   map[string]string{"application_name": "bookstrat", "": "skip"},
	}.dsn()
	require.NoError(t, err)
	assert.Equal(t, "postgres://trader:secret@db:6543/audit?application_name=bookstrat&sslmode=disable", dsn)

	dsn, err = Option{ConnString: "postgres://x/y"}.dsn()
	require.NoError(t, err)
	assert.Equal(t, "postgres://x/y", dsn)

	_, err = Option{Port: 70000}.dsn()
	assert.Error(t, err)
}

func TestOptionEmpty(t *testing.T) {
	assert.True(t, Option{}.Empty())
	assert.False(t, Option{Host: "db"}.Empty())
}

func TestOpenSQLite(t *testing.T) {
	c, err := Open(sqlite.Open(filepath.Join(t.TempDir(), "conn.db")), nil)
	require.NoError(t, err)
	require.NotNil(t, c.DB())
	require.NoError(t, c.DB().Exec("SELECT 1").Error)
	require.NoError(t, c.Tune(Pool{MaxOpen: 1, MaxIdle: 1, MaxLifetime: time.Minute}))
	require.NoError(t, c.Ping(t.Context()))
	assert.Equal(t, 1, mustSQL(t, c).Stats().MaxOpenConnections)
	require.NoError(t, c.Close())

	var nilClient *Client
	assert.Nil(t, nilClient.DB())
	assert.NoError(t, nilClient.Close())
}

func mustSQL(t *testing.T, c *Client) *sql.DB {
	t.Helper()
	db, err := c.DB().DB()
	require.NoError(t, err)
	return db
}
