package mqhandler

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"projectflow/internal/model"
)

// ErrNoPhone 用户选择了 WhatsApp 但没有手机号
var ErrNoPhone = errors.New("user has no phone number")

// Sender 把通知转发到外部渠道
type Sender interface {
	Send(ctx context.Context, u *model.User, p *model.NotificationCreatedPayload) error
}

// WhatsAppSender 尚未接入 WhatsApp Business API，只记录日志
type WhatsAppSender struct {
	logger *zap.Logger
}

func NewWhatsAppSender(logger *zap.Logger) *WhatsAppSender {
	return &WhatsAppSender{logger: logger}
}

func (s *WhatsAppSender) Send(_ context.Context, u *model.User, p *model.NotificationCreatedPayload) error {
	if u.Phone == "" {
		return ErrNoPhone
	}
	s.logger.Info("WhatsApp message queued (integration not configured)",
		zap.Int64("user_id", u.ID),
		zap.Int64("notification_id", p.NotificationID),
		zap.String("kind", p.Kind))
	return nil
}

// EmailSender 邮件渠道占位实现
type EmailSender struct {
	logger *zap.Logger
}

func NewEmailSender(logger *zap.Logger) *EmailSender {
	return &EmailSender{logger: logger}
}

func (s *EmailSender) Send(_ context.Context, u *model.User, p *model.NotificationCreatedPayload) error {
	s.logger.Info("Email notification queued (integration not configured)",
		zap.Int64("user_id", u.ID),
		zap.Int64("notification_id", p.NotificationID),
		zap.String("kind", p.Kind))
	return nil
}
