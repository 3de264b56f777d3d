package models

import "time"

// NotificationStatus marks whether a stored notification has been read.
type NotificationStatus string

const (
	NotificationUnread NotificationStatus = "unread"
	NotificationRead   NotificationStatus = "read"
)

// Notification is a persisted, per-user copy of a lifecycle event so that
// clients disconnected from the realtime feed can reconcile later.
type Notification struct {
	ID        string             `db:"id" json:"id"`
	UserID    string             `db:"user_id" json:"user_id"`
	Type      string             `db:"type" json:"type"`
	Content   string             `db:"content" json:"content"`
	Status    NotificationStatus `db:"status" json:"status"`
	CreatedAt time.Time          `db:"created_at" json:"created_at"`
	ReadAt    *time.Time         `db:"read_at" json:"read_at,omitempty"`
}
