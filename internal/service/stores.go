package service

import (
	"context"

	"projectflow/internal/model"
)

// 以下接口由 internal/repository 实现，测试中使用内存实现

type UserStore interface {
	Create(ctx context.Context, u *model.User) error
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByID(ctx context.Context, id int64) (*model.User, error)
	List(ctx context.Context) ([]model.User, error)
	Count(ctx context.Context) (int64, error)
	UpdateRoleStatus(ctx context.Context, id int64, role, status string) error
	UpdateNotificationPreference(ctx context.Context, id int64, channel, phone string) error
}

type ProjectStore interface {
	Insert(ctx context.Context, p *model.Project) error
	FindByID(ctx context.Context, id int64) (*model.Project, error)
	List(ctx context.Context) ([]*model.Project, error)
	ListForUser(ctx context.Context, userID int64) ([]*model.Project, error)
	Update(ctx context.Context, p *model.Project) error
	UpdateConfig(ctx context.Context, id int64, cfg model.ProjectConfig) error
	UpdateKPIs(ctx context.Context, id int64, kpis map[string]any) error
	Delete(ctx context.Context, id int64) error
	UpsertMember(ctx context.Context, projectID, userID int64, role string) (bool, error)
	RemoveMember(ctx context.Context, projectID, userID int64) error
}

type TaskStore interface {
	Insert(ctx context.Context, t *model.Task) error
	FindByID(ctx context.Context, id int64) (*model.Task, error)
	ListByProject(ctx context.Context, projectID int64) ([]model.Task, error)
	Update(ctx context.Context, t *model.Task, changes []model.TaskChange) error
	UpdateRefs(ctx context.Context, id int64, dependencies []int64, parentID *int64) error
	Delete(ctx context.Context, projectID, id int64) error
	Reorder(ctx context.Context, projectID int64, orderedIDs []int64) error
	SetCritical(ctx context.Context, projectID int64, criticalIDs []int64, userID int64, justification string) error
	ListChanges(ctx context.Context, taskID int64) ([]model.TaskChange, error)
}

type NotificationStore interface {
	Create(ctx context.Context, n *model.Notification, traceID string) error
	ListByUser(ctx context.Context, userID int64, unreadOnly bool, limit int) ([]model.Notification, error)
	MarkRead(ctx context.Context, userID, id int64) error
	MarkAllRead(ctx context.Context, userID int64) (int64, error)
}

// Notifier 创建站内通知
type Notifier interface {
	Notify(ctx context.Context, n *model.Notification) error
}
