package model

import "time"

// 用户状态
const (
	UserStatusActive   = "active"
	UserStatusInactive = "inactive"
)

// 通知渠道
const (
	ChannelNone     = "none"
	ChannelWhatsApp = "whatsapp"
	ChannelEmail    = "email"
)

type User struct {
	ID                  int64     `json:"id"`
	Name                string    `json:"name"`
	Email               string    `json:"email"`
	PasswordHash        string    `json:"-"`
	Role                string    `json:"role"`   // admin / manager / member
	Status              string    `json:"status"` // active / inactive
	NotificationChannel string    `json:"notification_channel"`
	Phone               string    `json:"phone,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// IsActive 是否允许登录
func (u *User) IsActive() bool {
	return u.Status == UserStatusActive
}

// UserRef 嵌入到项目/任务中的用户摘要
type UserRef struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}
