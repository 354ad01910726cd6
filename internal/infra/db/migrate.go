package db

import (
	"database/sql"
	"fmt"
)

// MigrateUp creates the notification_records table for the given dialect.
// It is idempotent and safe to run on every startup.
func MigrateUp(db *sql.DB, dialect string) error {
	var stmts []string
	switch dialect {
	case DialectPostgres:
		stmts = []string{`
CREATE TABLE IF NOT EXISTS notification_records (
    item_id            TEXT PRIMARY KEY,
    last_notified_at   TIMESTAMPTZ,
    notification_count INTEGER NOT NULL DEFAULT 0 CHECK (notification_count >= 0),
    snapshot           JSONB,
    revision           TEXT NOT NULL,
    created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
			`CREATE INDEX IF NOT EXISTS idx_notification_records_last_notified_at ON notification_records(last_notified_at DESC)`,
		}
	case DialectSQLite:
		// タイムスタンプは UTC のミリ秒で保存する
		stmts = []string{`
CREATE TABLE IF NOT EXISTS notification_records (
    item_id            TEXT PRIMARY KEY,
    last_notified_at   INTEGER,
    notification_count INTEGER NOT NULL DEFAULT 0 CHECK (notification_count >= 0),
    snapshot           TEXT,
    revision           TEXT NOT NULL,
    created_at         INTEGER NOT NULL,
    updated_at         INTEGER NOT NULL
)`,
			`CREATE INDEX IF NOT EXISTS idx_notification_records_last_notified_at ON notification_records(last_notified_at DESC)`,
		}
	default:
		return fmt.Errorf("unsupported dialect %q", dialect)
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
