// Package realtime 通过 Redis pub/sub 把通知推送给在线的浏览器会话
package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"projectflow/internal/model"
)

// Channel 用户的通知频道
func Channel(userID int64) string {
	return fmt.Sprintf("notifications:user:%d", userID)
}

type Hub struct {
	rdb    *redis.Client
	logger *zap.Logger
}

func NewHub(rdb *redis.Client, logger *zap.Logger) *Hub {
	return &Hub{rdb: rdb, logger: logger}
}

// Publish 推送通知，返回收到消息的订阅者数量
func (h *Hub) Publish(ctx context.Context, n *model.Notification) (int64, error) {
	data, err := json.Marshal(n)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal notification: %w", err)
	}
	receivers, err := h.rdb.Publish(ctx, Channel(n.UserID), data).Result()
	if err != nil {
		h.logger.Error("Failed to publish realtime notification",
			zap.Int64("user_id", n.UserID),
			zap.Int64("notification_id", n.ID),
			zap.Error(err))
		return 0, err
	}
	h.logger.Debug("Realtime notification published",
		zap.Int64("user_id", n.UserID),
		zap.Int64("notification_id", n.ID),
		zap.Int64("receivers", receivers))
	return receivers, nil
}

// Subscribe 订阅用户频道。调用方负责 Close。
func (h *Hub) Subscribe(ctx context.Context, userID int64) (*redis.PubSub, error) {
	sub := h.rdb.Subscribe(ctx, Channel(userID))
	// 等待订阅确认，连接失败时尽早返回错误
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", Channel(userID), err)
	}
	return sub, nil
}
