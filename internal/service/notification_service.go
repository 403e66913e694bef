package service

import (
	"context"

	"go.uber.org/zap"

	"projectflow/internal/model"
	"projectflow/pkg/trace"
)

// DefaultNotificationLimit 列表默认条数
const DefaultNotificationLimit = 50

type NotificationService struct {
	store  NotificationStore
	logger *zap.Logger
}

func NewNotificationService(store NotificationStore, logger *zap.Logger) *NotificationService {
	return &NotificationService{store: store, logger: logger}
}

// Notify 写入通知和 outbox 事件，转发由 notifier 进程完成
func (s *NotificationService) Notify(ctx context.Context, n *model.Notification) error {
	if err := s.store.Create(ctx, n, trace.FromContext(ctx)); err != nil {
		s.logger.Error("Failed to create notification",
			zap.Int64("user_id", n.UserID),
			zap.String("kind", n.Kind),
			zap.Error(err))
		return err
	}
	return nil
}

func (s *NotificationService) List(ctx context.Context, userID int64, unreadOnly bool, limit int) ([]model.Notification, error) {
	if limit <= 0 || limit > 200 {
		limit = DefaultNotificationLimit
	}
	return s.store.ListByUser(ctx, userID, unreadOnly, limit)
}

func (s *NotificationService) MarkRead(ctx context.Context, userID, id int64) error {
	return notFound(s.store.MarkRead(ctx, userID, id))
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	return s.store.MarkAllRead(ctx, userID)
}
