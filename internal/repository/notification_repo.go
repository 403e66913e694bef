package repository

import (
	"context"
	"fmt"

	"projectflow/internal/model"
	"projectflow/pkg/mq"
	"projectflow/pkg/outbox"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type NotificationRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewNotificationRepository(db *pgxpool.Pool, logger *zap.Logger) *NotificationRepository {
	return &NotificationRepository{db: db, logger: logger}
}

// Create 写入通知，并在同一事务中写入 notification.created outbox 事件
func (r *NotificationRepository) Create(ctx context.Context, n *model.Notification, traceID string) error {
	r.logger.Debug("Inserting notification",
		zap.Int64("user_id", n.UserID),
		zap.String("kind", n.Kind),
	)

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
        INSERT INTO notifications (user_id, project_id, task_id, kind, message)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id, is_read, created_at
    `, n.UserID, n.ProjectID, n.TaskID, n.Kind, n.Message).Scan(&n.ID, &n.IsRead, &n.CreatedAt)
	if err != nil {
		r.logger.Error("Failed to insert notification", zap.Error(err))
		return err
	}

	payload := model.NotificationCreatedPayload{
		NotificationID: n.ID,
		UserID:         n.UserID,
		ProjectID:      n.ProjectID,
		TaskID:         n.TaskID,
		Kind:           n.Kind,
		Message:        n.Message,
		CreatedAt:      n.CreatedAt,
		TraceID:        traceID,
	}
	if _, err := outbox.Enqueue(ctx, tx, "notification", &n.ID, mq.RoutingNotificationCreated, payload); err != nil {
		r.logger.Error("Failed to enqueue notification event", zap.Int64("notification_id", n.ID), zap.Error(err))
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit notification: %w", err)
	}

	r.logger.Info("Notification inserted successfully",
		zap.Int64("id", n.ID),
		zap.Int64("user_id", n.UserID),
	)
	return nil
}

func (r *NotificationRepository) ListByUser(ctx context.Context, userID int64, unreadOnly bool, limit int) ([]model.Notification, error) {
	rows, err := r.db.Query(ctx, `
        SELECT id, user_id, project_id, task_id, kind, message, is_read, created_at
        FROM notifications
        WHERE user_id = $1 AND (NOT $2 OR is_read = FALSE)
        ORDER BY created_at DESC, id DESC
        LIMIT $3
    `, userID, unreadOnly, limit)
	if err != nil {
		r.logger.Error("Failed to list notifications", zap.Int64("user_id", userID), zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	out := make([]model.Notification, 0)
	for rows.Next() {
		var n model.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.ProjectID, &n.TaskID, &n.Kind, &n.Message, &n.IsRead, &n.CreatedAt); err != nil {
			r.logger.Error("Failed to scan notification", zap.Error(err))
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (r *NotificationRepository) FindByID(ctx context.Context, id int64) (*model.Notification, error) {
	var n model.Notification
	err := r.db.QueryRow(ctx, `
        SELECT id, user_id, project_id, task_id, kind, message, is_read, created_at
        FROM notifications WHERE id = $1
    `, id).Scan(&n.ID, &n.UserID, &n.ProjectID, &n.TaskID, &n.Kind, &n.Message, &n.IsRead, &n.CreatedAt)
	if err != nil {
		return nil, translate(err)
	}
	return &n, nil
}

// MarkRead 只能标记自己的通知
func (r *NotificationRepository) MarkRead(ctx context.Context, userID, id int64) error {
	tag, err := r.db.Exec(ctx, `UPDATE notifications SET is_read = TRUE WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		r.logger.Error("Failed to mark notification read", zap.Int64("id", id), zap.Error(err))
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	tag, err := r.db.Exec(ctx, `UPDATE notifications SET is_read = TRUE WHERE user_id = $1 AND is_read = FALSE`, userID)
	if err != nil {
		r.logger.Error("Failed to mark notifications read", zap.Int64("user_id", userID), zap.Error(err))
		return 0, err
	}
	return tag.RowsAffected(), nil
}
