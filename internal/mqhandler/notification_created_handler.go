package mqhandler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"projectflow/internal/model"
	"projectflow/internal/repository"
	"projectflow/pkg/logger"
	"projectflow/pkg/metrics"
	"projectflow/pkg/trace"
	"projectflow/pkg/util"
)

const handlerName = "notification_created"

type UserFinder interface {
	FindByID(ctx context.Context, id int64) (*model.User, error)
}

// Deduper 由 util.Deduper 实现
type Deduper interface {
	AcquireOnce(ctx context.Context, handler string, id int64) bool
	Release(ctx context.Context, handler string, id int64)
}

// RealtimePublisher 由 realtime.Hub 实现
type RealtimePublisher interface {
	Publish(ctx context.Context, n *model.Notification) (int64, error)
}

type NotificationCreatedHandler struct {
	users    UserFinder
	deduper  Deduper
	senders  map[string]Sender
	realtime RealtimePublisher
	logger   *zap.Logger
}

// NewNotificationCreatedHandler senders 以渠道名为 key（whatsapp / email）
func NewNotificationCreatedHandler(
	users UserFinder,
	deduper Deduper,
	senders map[string]Sender,
	realtime RealtimePublisher,
	logger *zap.Logger,
) *NotificationCreatedHandler {
	return &NotificationCreatedHandler{
		users:    users,
		deduper:  deduper,
		senders:  senders,
		realtime: realtime,
		logger:   logger,
	}
}

// Handle 按用户偏好转发通知，然后推送到实时频道。
// 转发和推送失败只记录，不重试；消息格式错误和用户不存在进入 DLQ。
func (h *NotificationCreatedHandler) Handle(ctx context.Context, raw json.RawMessage) error {
	var p model.NotificationCreatedPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		logger.WithTrace(ctx, h.logger).Error("Failed to unmarshal NotificationCreatedPayload", zap.Error(err))
		return err
	}
	ctx, _ = trace.Ensure(ctx, p.TraceID)
	log := logger.WithTrace(ctx, h.logger)

	// 先占位，多个 notifier 实例同时收到重复消息时只处理一次
	if !h.deduper.AcquireOnce(ctx, handlerName, p.NotificationID) {
		return nil
	}

	u, err := h.users.FindByID(ctx, p.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: user %d not found", util.ErrPermanent, p.UserID)
		}
		h.deduper.Release(ctx, handlerName, p.NotificationID)
		return err
	}

	log.Info("Handling notification.created event",
		zap.Int64("notification_id", p.NotificationID),
		zap.Int64("user_id", p.UserID),
		zap.String("channel", u.NotificationChannel))

	h.forward(ctx, log, u, &p)

	n := &model.Notification{
		ID:        p.NotificationID,
		UserID:    p.UserID,
		ProjectID: p.ProjectID,
		TaskID:    p.TaskID,
		Kind:      p.Kind,
		Message:   p.Message,
		CreatedAt: p.CreatedAt,
	}
	if _, err := h.realtime.Publish(ctx, n); err != nil {
		log.Warn("Realtime push failed", zap.Int64("notification_id", p.NotificationID), zap.Error(err))
	}
	return nil
}

func (h *NotificationCreatedHandler) forward(ctx context.Context, log *zap.Logger, u *model.User, p *model.NotificationCreatedPayload) {
	channel := u.NotificationChannel
	sender, ok := h.senders[channel]
	if channel == "" || channel == model.ChannelNone || !ok {
		metrics.IncrementNotificationForwarded(model.ChannelNone, "skipped")
		return
	}

	if err := sender.Send(ctx, u, p); err != nil {
		metrics.IncrementNotificationForwarded(channel, "failed")
		log.Warn("Failed to forward notification",
			zap.Int64("notification_id", p.NotificationID),
			zap.String("channel", channel),
			zap.Error(err))
		return
	}
	metrics.IncrementNotificationForwarded(channel, "sent")
}
