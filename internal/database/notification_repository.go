package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
)

// NotificationRepository handles escalation notification audit rows
type NotificationRepository struct {
	BaseRepository
	logger *slog.Logger
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(db *sqlx.DB, logger *slog.Logger) *NotificationRepository {
	return &NotificationRepository{
		BaseRepository: BaseRepository{db: db},
		logger:         logger,
	}
}

// Create creates a new notification record
func (r *NotificationRepository) Create(ctx context.Context, n *Notification) error {
	query := `
		INSERT INTO notifications (
			id, fault_id, channel, recipient, subject, content, status,
			sent_at, error, created_at
		) VALUES (
			:id, :fault_id, :channel, :recipient, :subject, :content, :status,
			:sent_at, :error, :created_at
		)`

	n.CreatedAt = time.Now()

	if _, err := r.db.NamedExecContext(ctx, query, n); err != nil {
		r.logger.Error("Failed to create notification", "notification_id", n.ID, "error", err)
		return fmt.Errorf("failed to create notification: %w", err)
	}

	return nil
}

// MarkSent marks a notification as sent
func (r *NotificationRepository) MarkSent(ctx context.Context, id string, sentAt time.Time) error {
	query := `
		UPDATE notifications SET status = $2, sent_at = $3
		WHERE id = $1`

	if _, err := r.db.ExecContext(ctx, query, id, NotificationSent, sentAt); err != nil {
		r.logger.Error("Failed to mark notification sent", "notification_id", id, "error", err)
		return fmt.Errorf("failed to mark notification sent: %w", err)
	}
	return nil
}

// MarkFailed marks a notification as failed with its error
func (r *NotificationRepository) MarkFailed(ctx context.Context, id string, sendErr error) error {
	query := `
		UPDATE notifications SET status = $2, error = $3
		WHERE id = $1`

	msg := sendErr.Error()
	if _, err := r.db.ExecContext(ctx, query, id, NotificationFailed, msg); err != nil {
		r.logger.Error("Failed to mark notification failed", "notification_id", id, "error", err)
		return fmt.Errorf("failed to mark notification failed: %w", err)
	}
	return nil
}

// ListByFault retrieves the notifications dispatched for a fault
func (r *NotificationRepository) ListByFault(ctx context.Context, faultID string) ([]*Notification, error) {
	query := `
		SELECT * FROM notifications
		WHERE fault_id = $1
		ORDER BY created_at DESC`

	var notifications []*Notification
	if err := r.db.SelectContext(ctx, &notifications, query, faultID); err != nil {
		r.logger.Error("Failed to list notifications by fault", "fault_id", faultID, "error", err)
		return nil, fmt.Errorf("failed to list notifications by fault: %w", err)
	}

	return notifications, nil
}
