package handler

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"projectflow/internal/realtime"
	"projectflow/internal/service"
	"projectflow/pkg/i18n"
)

// keepAliveInterval SSE 心跳间隔，避免代理断开空闲连接
const keepAliveInterval = 25 * time.Second

type NotificationHandler struct {
	notificationService *service.NotificationService
	hub                 *realtime.Hub
	logger              *zap.Logger
}

func NewNotificationHandler(notificationService *service.NotificationService, hub *realtime.Hub, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{notificationService: notificationService, hub: hub, logger: logger}
}

// List GET /notifications?unread=true&limit=50
func (h *NotificationHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	unread := c.Query("unread") == "true"

	items, err := h.notificationService.List(c.Request.Context(), actor(c).UserID, unread, limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": items})
}

func (h *NotificationHandler) MarkRead(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.notificationService.MarkRead(c.Request.Context(), actor(c).UserID, id); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	n, err := h.notificationService.MarkAllRead(c.Request.Context(), actor(c).UserID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": n})
}

// Stream GET /notifications/stream，单向推送，不确认、不重放
func (h *NotificationHandler) Stream(c *gin.Context) {
	userID := actor(c).UserID
	ctx := c.Request.Context()

	sub, err := h.hub.Subscribe(ctx, userID)
	if err != nil {
		h.logger.Error("Failed to open notification stream", zap.Int64("user_id", userID), zap.Error(err))
		AbortWithCode(c, http.StatusServiceUnavailable, i18n.CodeInternal)
		return
	}
	defer sub.Close()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	h.logger.Info("Notification stream opened", zap.Int64("user_id", userID))
	messages := sub.Channel()
	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case msg, ok := <-messages:
			if !ok {
				return false
			}
			c.SSEvent("notification", msg.Payload)
			return true
		case <-ticker.C:
			c.SSEvent("ping", time.Now().UTC().Format(time.RFC3339))
			return true
		}
	})
	h.logger.Info("Notification stream closed", zap.Int64("user_id", userID))
}
