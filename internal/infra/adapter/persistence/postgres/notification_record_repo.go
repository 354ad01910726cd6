package postgres

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
// *circuitbreaker.DB satisfies it as well.
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

func (repo *NotificationRecordRepo) Get(ctx context.Context, itemID string) (*entity.NotificationRecord, error) {
	defer observe("get_record", time.Now())

	const query = `
SELECT item_id, last_notified_at, notification_count, snapshot, revision
FROM notification_records
WHERE item_id = $1
LIMIT 1`
	var (
		rec      entity.NotificationRecord
		notified sql.NullTime
		snapshot []byte
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
		t := notified.Time.UTC()
		rec.LastNotifiedAt = &t
	}
	rec.Snapshot = snapshot
	return &rec, nil
}

func (repo *NotificationRecordRepo) Put(ctx context.Context, rec *entity.NotificationRecord) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("Put: %w", err)
	}
	if rec.IsNew() {
		return repo.create(ctx, rec)
	}
	return repo.update(ctx, rec)
}

func (repo *NotificationRecordRepo) create(ctx context.Context, rec *entity.NotificationRecord) error {
	defer observe("create_record", time.Now())

	const query = `
INSERT INTO notification_records
    (item_id, last_notified_at, notification_count, snapshot, revision, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $6)
ON CONFLICT (item_id) DO NOTHING`
	revision := repo.newID()
	res, err := repo.db.ExecContext(ctx, query,
		rec.ItemID, nullableTime(rec.LastNotifiedAt), rec.NotificationCount,
		nullableJSON(rec.Snapshot), revision, repo.now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("Create: ExecContext: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("Create: RowsAffected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("Create: %w", entity.ErrConflict)
	}
	rec.Revision = revision
	return nil
}

func (repo *NotificationRecordRepo) update(ctx context.Context, rec *entity.NotificationRecord) error {
	defer observe("update_record", time.Now())

	const query = `
UPDATE notification_records
SET last_notified_at   = $1,
    notification_count = $2,
    snapshot           = $3,
    revision           = $4,
    updated_at         = $5
WHERE item_id = $6 AND revision = $7`
	revision := repo.newID()
	res, err := repo.db.ExecContext(ctx, query,
		nullableTime(rec.LastNotifiedAt), rec.NotificationCount, nullableJSON(rec.Snapshot),
		revision, repo.now().UTC(), rec.ItemID, rec.Revision,
	)
	if err != nil {
		return fmt.Errorf("Update: ExecContext: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("Update: RowsAffected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("Update: %w", entity.ErrConflict)
	}
	rec.Revision = revision
	return nil
}

func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC()
}

// nullableJSON passes the snapshot as text so the driver casts it to JSONB.
func nullableJSON(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}

func observe(operation string, start time.Time) {
	metrics.RecordDBQuery(operation, time.Since(start))
}
