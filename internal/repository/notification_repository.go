package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/lifeshare/bloodlink-api/internal/models"
)

// NotificationRepository manages persisted per-user notifications.
type NotificationRepository struct {
	db *sqlx.DB
}

// NewNotificationRepository constructs a NotificationRepository.
func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create inserts a notification for a user.
func (r *NotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	if n.Status == "" {
		n.Status = models.NotificationUnread
	}

	const query = `INSERT INTO notifications (id, user_id, type, content, status, created_at)
		VALUES (:id, :user_id, :type, :content, :status, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, n); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

// ListByUser returns a user's notifications, unread first then newest first.
func (r *NotificationRepository) ListByUser(ctx context.Context, userID string, limit int) ([]models.Notification, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	query := fmt.Sprintf(`SELECT id, user_id, type, content, status, created_at, read_at FROM notifications
		WHERE user_id = $1 ORDER BY status DESC, created_at DESC LIMIT %d`, limit)
	var notifications []models.Notification
	if err := r.db.SelectContext(ctx, &notifications, query, userID); err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return notifications, nil
}

// MarkRead flags a notification as read, scoped to its owner. Returns false
// when no matching unread notification exists.
func (r *NotificationRepository) MarkRead(ctx context.Context, id, userID string, now time.Time) (bool, error) {
	const query = `UPDATE notifications SET status = $3, read_at = $4 WHERE id = $1 AND user_id = $2 AND status = $5`
	res, err := r.db.ExecContext(ctx, query, id, userID, models.NotificationRead, now, models.NotificationUnread)
	if err != nil {
		return false, fmt.Errorf("mark notification read: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark notification rows: %w", err)
	}
	return affected == 1, nil
}
