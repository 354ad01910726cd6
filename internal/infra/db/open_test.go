package db

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearPoolEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"DB_MAX_OPEN_CONNS", "DB_MAX_IDLE_CONNS", "DB_CONN_MAX_LIFETIME", "DB_CONN_MAX_IDLE_TIME"} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

/* ───────── PoolConfigFromEnv ───────── */

func TestPoolConfigFromEnv_Defaults(t *testing.T) {
	clearPoolEnv(t)

	cfg, err := PoolConfigFromEnv()

	require.NoError(t, err)
	assert.Equal(t, PoolConfig{
		MaxOpenConns:    25,
		MaxIdleConns:    10,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 30 * time.Minute,
	}, cfg)
}

func TestPoolConfigFromEnv_Overrides(t *testing.T) {
	clearPoolEnv(t)
	t.Setenv("DB_MAX_OPEN_CONNS", "50")
	t.Setenv("DB_CONN_MAX_LIFETIME", "15m")

	cfg, err := PoolConfigFromEnv()

	require.NoError(t, err)
	assert.Equal(t, 50, cfg.MaxOpenConns)
	assert.Equal(t, 10, cfg.MaxIdleConns)
	assert.Equal(t, 15*time.Minute, cfg.ConnMaxLifetime)
}

func TestPoolConfigFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"TC-1: not a number", "DB_MAX_OPEN_CONNS", "lots"},
		{"TC-2: zero", "DB_MAX_IDLE_CONNS", "0"},
		{"TC-3: negative", "DB_MAX_OPEN_CONNS", "-5"},
		{"TC-4: bad duration", "DB_CONN_MAX_IDLE_TIME", "half an hour"},
		{"TC-5: negative duration", "DB_CONN_MAX_LIFETIME", "-1h"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearPoolEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := PoolConfigFromEnv()

			assert.ErrorContains(t, err, "pool config")
		})
	}
}

/* ───────── Open ───────── */

func TestOpenPostgres_MissingDSN(t *testing.T) {
	db, err := OpenPostgres(context.Background(), "")

	assert.Nil(t, db)
	assert.EqualError(t, err, "DATABASE_URL not set")
}

func TestOpenSQLite_EmptyPath(t *testing.T) {
	db, err := OpenSQLite(context.Background(), "  ")

	assert.Nil(t, db)
	assert.Error(t, err)
}

func TestOpenSQLite_CreatesFileInWALMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "notifications.db")

	db, err := OpenSQLite(context.Background(), path)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	_, err = os.Stat(path)
	require.NoError(t, err)

	var mode string
	require.NoError(t, db.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)

	var busy int
	require.NoError(t, db.QueryRow("PRAGMA busy_timeout").Scan(&busy))
	assert.Equal(t, 5000, busy)
}

func TestSQLiteDSN(t *testing.T) {
	assert.Equal(t,
		"file:data/n.db?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)",
		sqliteDSN("data/n.db"))
}
