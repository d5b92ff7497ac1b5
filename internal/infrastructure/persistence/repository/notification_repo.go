package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/medikos/caseflow/internal/application/port"
	"github.com/medikos/caseflow/internal/domain/entity"
)

// NotificationRepository implements port.NotificationRepository
type NotificationRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(db *sql.DB, logger *zap.Logger) port.NotificationRepository {
	return &NotificationRepository{db: db, logger: logger}
}

// Create inserts a notification row
func (r *NotificationRepository) Create(ctx context.Context, n *entity.Notification) error {
	query := `
		INSERT INTO notifications (recipient, case_id, version, category, message, read, created_at)
		VALUES (?, ?, ?, ?, ?, 0, CURRENT_TIMESTAMP)
	`

	result, err := getExecutor(ctx, r.db).ExecContext(ctx, query,
		n.Recipient, n.CaseID, n.Version, n.Category, n.Message,
	)
	if err != nil {
		r.logger.Error("Failed to create notification",
			zap.String("recipient", n.Recipient), zap.Int64("case_id", n.CaseID), zap.Error(err))
		return fmt.Errorf("failed to create notification: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	n.ID = id
	return nil
}

// ListUnread retrieves unread notifications for any of the recipient keys,
// newest first
func (r *NotificationRepository) ListUnread(ctx context.Context, recipients []string, limit int) ([]*entity.Notification, error) {
	if len(recipients) == 0 {
		return []*entity.Notification{}, nil
	}

	query := `
		SELECT id, recipient, case_id, version, category, message, read, created_at
		FROM notifications
		WHERE read = 0 AND recipient IN (` + placeholders(len(recipients)) + `)
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`

	args := toArgs(recipients)
	args = append(args, limit)

	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list unread notifications", zap.Error(err))
		return nil, fmt.Errorf("failed to list unread notifications: %w", err)
	}
	defer rows.Close()

	var notifications []*entity.Notification
	for rows.Next() {
		var n entity.Notification
		if err := rows.Scan(
			&n.ID, &n.Recipient, &n.CaseID, &n.Version,
			&n.Category, &n.Message, &n.Read, &n.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		notifications = append(notifications, &n)
	}
	return notifications, rows.Err()
}

// CountUnread counts unread notifications across the recipient keys
func (r *NotificationRepository) CountUnread(ctx context.Context, recipients []string) (int, error) {
	if len(recipients) == 0 {
		return 0, nil
	}

	query := `
		SELECT COUNT(*) FROM notifications
		WHERE read = 0 AND recipient IN (` + placeholders(len(recipients)) + `)
	`

	var count int
	if err := getExecutor(ctx, r.db).QueryRowContext(ctx, query, toArgs(recipients)...).Scan(&count); err != nil {
		r.logger.Error("Failed to count unread notifications", zap.Error(err))
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return count, nil
}

// MarkRead marks the given notifications read, scoped to the recipient keys so
// a user cannot mark rows addressed to someone else
func (r *NotificationRepository) MarkRead(ctx context.Context, ids []int64, recipients []string) error {
	if len(ids) == 0 || len(recipients) == 0 {
		return nil
	}

	query := `
		UPDATE notifications SET read = 1
		WHERE id IN (` + placeholders(len(ids)) + `)
		AND recipient IN (` + placeholders(len(recipients)) + `)
	`

	args := make([]interface{}, 0, len(ids)+len(recipients))
	for _, id := range ids {
		args = append(args, id)
	}
	args = append(args, toArgs(recipients)...)

	if _, err := getExecutor(ctx, r.db).ExecContext(ctx, query, args...); err != nil {
		r.logger.Error("Failed to mark notifications read", zap.Error(err))
		return fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return nil
}

// MarkAllRead marks every unread notification for the recipient keys read
func (r *NotificationRepository) MarkAllRead(ctx context.Context, recipients []string) error {
	if len(recipients) == 0 {
		return nil
	}

	query := `
		UPDATE notifications SET read = 1
		WHERE read = 0 AND recipient IN (` + placeholders(len(recipients)) + `)
	`

	if _, err := getExecutor(ctx, r.db).ExecContext(ctx, query, toArgs(recipients)...); err != nil {
		r.logger.Error("Failed to mark all notifications read", zap.Error(err))
		return fmt.Errorf("failed to mark all notifications read: %w", err)
	}
	return nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func toArgs(recipients []string) []interface{} {
	args := make([]interface{}, len(recipients))
	for i, rec := range recipients {
		args[i] = rec
	}
	return args
}

// Verify interface compliance
var _ port.NotificationRepository = (*NotificationRepository)(nil)
