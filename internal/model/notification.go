package model

import "time"

// 通知类型
const (
	NotificationTaskAssigned = "task_assigned"
	NotificationTeamAdded    = "team_added"
)

type Notification struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	ProjectID *int64    `json:"project_id,omitempty"`
	TaskID    *int64    `json:"task_id,omitempty"`
	Kind      string    `json:"kind"`
	Message   string    `json:"message"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

// NotificationCreatedPayload notification.created 事件内容
type NotificationCreatedPayload struct {
	NotificationID int64     `json:"notification_id"`
	UserID         int64     `json:"user_id"`
	ProjectID      *int64    `json:"project_id,omitempty"`
	TaskID         *int64    `json:"task_id,omitempty"`
	Kind           string    `json:"kind"`
	Message        string    `json:"message"`
	CreatedAt      time.Time `json:"created_at"`
	TraceID        string    `json:"trace_id,omitempty"`
}
