package entity

import "time"

// NotificationRecord is the durable per-session notification history.
// One record exists per session id; it is created on the first notification
// attempt and never deleted.
type NotificationRecord struct {
	ItemID            string
	LastNotifiedAt    *time.Time
	NotificationCount int
	Snapshot          []byte

	// Revision is assigned by the store on every accepted write.
	// An empty revision means the record has not been persisted yet.
	Revision string
}

// NewNotificationRecord returns an unsaved record for itemID.
func NewNotificationRecord(itemID string) *NotificationRecord {
	return &NotificationRecord{ItemID: itemID}
}

// IsNew reports whether the record has never been written.
func (r *NotificationRecord) IsNew() bool {
	return r.Revision == ""
}

// PriorCount returns the notification count of rec, treating nil as zero.
func PriorCount(rec *NotificationRecord) int {
	if rec == nil {
		return 0
	}
	return rec.NotificationCount
}

// MarkNotified applies one notification attempt at time at.
// The count is incremented and LastNotifiedAt never moves backwards.
func (r *NotificationRecord) MarkNotified(at time.Time, snapshot []byte) {
	if r.LastNotifiedAt != nil && at.Before(*r.LastNotifiedAt) {
		at = *r.LastNotifiedAt
	}
	t := at.UTC()
	r.LastNotifiedAt = &t
	r.NotificationCount++
	if snapshot != nil {
		r.Snapshot = snapshot
	}
}

// Validate checks the invariants a store relies on before writing.
func (r *NotificationRecord) Validate() error {
	if r.ItemID == "" {
		return &ValidationError{Field: "item_id", Message: "item id is required"}
	}
	if r.NotificationCount < 0 {
		return &ValidationError{Field: "notification_count", Message: "must not be negative"}
	}
	return nil
}
