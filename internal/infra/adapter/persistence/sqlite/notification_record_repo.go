package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"vaxslot-notifier/internal/domain/entity"
	"vaxslot-notifier/internal/observability/metrics"
	"vaxslot-notifier/internal/pkg/id"
	"vaxslot-notifier/internal/repository"
)

// DBTX is the subset of *sql.DB used by the repository.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type NotificationRecordRepo struct {
	db    DBTX
	newID func() string
	now   func() time.Time
}

func NewNotificationRecordRepo(db DBTX) repository.NotificationRecordRepository {
	return &NotificationRecordRepo{db: db, newID: id.New, now: time.Now}
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

func (repo *NotificationRecordRepo) Get(ctx context.Context, itemID string) (*entity.NotificationRecord, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("get_record", time.Since(start)) }()

	const query = `
SELECT item_id, last_notified_at, notification_count, snapshot, revision
FROM notification_records
WHERE item_id = ?
LIMIT 1`
	var (
		rec      entity.NotificationRecord
		notified sql.NullInt64
		snapshot sql.NullString
	)
	err := repo.db.QueryRowContext(ctx, query, itemID).Scan(
		&rec.ItemID, &notified, &rec.NotificationCount, &snapshot, &rec.Revision,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("Get: QueryRowContext: %w", err)
	}
	if notified.Valid {
		t := fromMillis(notified.Int64)
		rec.LastNotifiedAt = &t
	}
	if snapshot.Valid {
		rec.Snapshot = []byte(snapshot.String)
	}
	return &rec, nil
}

func (repo *NotificationRecordRepo) Put(ctx context.Context, rec *entity.NotificationRecord) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("Put: %w", err)
	}

	var (
		query string
		args  []interface{}
		op    string
	)
	revision := repo.newID()
	now := toMillis(repo.now())

	if rec.IsNew() {
		op = "create_record"
		query = `
INSERT INTO notification_records
    (item_id, last_notified_at, notification_count, snapshot, revision, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (item_id) DO NOTHING`
		args = []interface{}{
			rec.ItemID, millisOrNil(rec.LastNotifiedAt), rec.NotificationCount,
			textOrNil(rec.Snapshot), revision, now, now,
		}
	} else {
		op = "update_record"
		query = `
UPDATE notification_records
SET last_notified_at = ?, notification_count = ?, snapshot = ?, revision = ?, updated_at = ?
WHERE item_id = ? AND revision = ?`
		args = []interface{}{
			millisOrNil(rec.LastNotifiedAt), rec.NotificationCount, textOrNil(rec.Snapshot),
			revision, now, rec.ItemID, rec.Revision,
		}
	}

	start := time.Now()
	res, err := repo.db.ExecContext(ctx, query, args...)
	metrics.RecordDBQuery(op, time.Since(start))
	if err != nil {
		return fmt.Errorf("Put: ExecContext: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("Put: RowsAffected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("Put: %w", entity.ErrConflict)
	}
	rec.Revision = revision
	return nil
}

func millisOrNil(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return toMillis(*t)
}

func textOrNil(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
