package repository

import (
	"context"

	"vaxslot-notifier/internal/domain/entity"
)

// NotificationRecordRepository persists per-session notification history.
//
// Get returns entity.ErrNotFound when no record exists for itemID.
//
// Put creates the record when rec.Revision is empty and fails with
// entity.ErrConflict if the id already exists. With a non-empty revision it
// updates conditionally and fails with entity.ErrConflict when the stored
// revision differs. On success the new revision is written back to rec.
type NotificationRecordRepository interface {
	Get(ctx context.Context, itemID string) (*entity.NotificationRecord, error)
	Put(ctx context.Context, rec *entity.NotificationRecord) error
}
