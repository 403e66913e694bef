package service

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"projectflow/internal/csvio"
	"projectflow/internal/kpi"
	"projectflow/internal/model"
	"projectflow/pkg/rbac"
)

type ProjectService struct {
	projects ProjectStore
	tasks    TaskStore
	users    UserStore
	notifier Notifier
	logger   *zap.Logger
	now      func() time.Time
}

func NewProjectService(projects ProjectStore, tasks TaskStore, users UserStore, notifier Notifier, logger *zap.Logger) *ProjectService {
	return &ProjectService{
		projects: projects,
		tasks:    tasks,
		users:    users,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// ProjectInput 创建/修改项目的字段，日期为 2006-01-02、02/01/2006 或 RFC3339
type ProjectInput struct {
	Name          string  `json:"name" binding:"required,max=200"`
	Description   string  `json:"description"`
	ManagerID     *int64  `json:"manager_id"`
	PlannedStart  string  `json:"planned_start"`
	PlannedEnd    string  `json:"planned_end"`
	ActualStart   string  `json:"actual_start"`
	ActualEnd     string  `json:"actual_end"`
	PlannedBudget float64 `json:"planned_budget"`
	ActualCost    float64 `json:"actual_cost"`
}

func (in ProjectInput) apply(p *model.Project) error {
	p.Name = strings.TrimSpace(in.Name)
	if p.Name == "" || len(p.Name) > 200 {
		return invalid("name is required and must be at most 200 characters")
	}
	p.Description = in.Description

	var err error
	if p.PlannedStart, err = parseDateField("planned_start", in.PlannedStart); err != nil {
		return err
	}
	if p.PlannedEnd, err = parseDateField("planned_end", in.PlannedEnd); err != nil {
		return err
	}
	if p.ActualStart, err = parseDateField("actual_start", in.ActualStart); err != nil {
		return err
	}
	if p.ActualEnd, err = parseDateField("actual_end", in.ActualEnd); err != nil {
		return err
	}
	if p.PlannedStart != nil && p.PlannedEnd != nil && p.PlannedEnd.Before(*p.PlannedStart) {
		return invalid("planned_end must not be before planned_start")
	}

	if in.PlannedBudget < 0 || in.ActualCost < 0 || math.IsNaN(in.PlannedBudget) || math.IsNaN(in.ActualCost) {
		return invalid("budget and cost must be non-negative numbers")
	}
	p.PlannedBudget = in.PlannedBudget
	p.ActualCost = in.ActualCost
	return nil
}

func parseDateField(field, raw string) (*time.Time, error) {
	d, err := csvio.ParseDate(strings.TrimSpace(raw))
	if err != nil {
		return nil, invalid("%s: %v", field, err)
	}
	return d, nil
}

func (s *ProjectService) Create(ctx context.Context, actor Actor, in ProjectInput) (*model.Project, error) {
	if !rbac.HasPermission(actor.Role, rbac.PermissionCreateProject) {
		return nil, ErrForbidden
	}

	p := &model.Project{ManagerID: actor.UserID, KPIs: map[string]any{}}
	if err := in.apply(p); err != nil {
		return nil, err
	}
	if in.ManagerID != nil && *in.ManagerID != actor.UserID {
		if !actor.IsAdmin() {
			return nil, ErrForbidden
		}
		if _, err := s.users.FindByID(ctx, *in.ManagerID); err != nil {
			return nil, invalid("manager not found")
		}
		p.ManagerID = *in.ManagerID
	}
	if err := ValidateConfig(&p.Config); err != nil {
		return nil, err
	}

	if err := s.projects.Insert(ctx, p); err != nil {
		return nil, err
	}
	s.logger.Info("Project created",
		zap.Int64("project_id", p.ID),
		zap.Int64("manager_id", p.ManagerID),
		zap.Int64("created_by", actor.UserID))
	return s.projects.FindByID(ctx, p.ID)
}

// Get 返回项目、团队和按位置排序的任务
func (s *ProjectService) Get(ctx context.Context, actor Actor, id int64) (*model.Project, error) {
	p, err := loadProject(ctx, s.projects, actor, id, rbac.PermissionReadProject)
	if err != nil {
		return nil, err
	}
	tasks, err := s.tasks.ListByProject(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Tasks = tasks
	return p, nil
}

func (s *ProjectService) List(ctx context.Context, actor Actor) ([]*model.Project, error) {
	if actor.IsAdmin() {
		return s.projects.List(ctx)
	}
	return s.projects.ListForUser(ctx, actor.UserID)
}

// Update 最后写入者生效，不做版本检查
func (s *ProjectService) Update(ctx context.Context, actor Actor, id int64, in ProjectInput) (*model.Project, error) {
	p, err := loadProject(ctx, s.projects, actor, id, rbac.PermissionManageProject)
	if err != nil {
		return nil, err
	}
	if err := in.apply(p); err != nil {
		return nil, err
	}
	if in.ManagerID != nil && *in.ManagerID != p.ManagerID {
		if !actor.IsAdmin() {
			return nil, ErrForbidden
		}
		if _, err := s.users.FindByID(ctx, *in.ManagerID); err != nil {
			return nil, invalid("manager not found")
		}
		p.ManagerID = *in.ManagerID
	}

	if err := s.projects.Update(ctx, p); err != nil {
		return nil, notFound(err)
	}
	return s.projects.FindByID(ctx, id)
}

func (s *ProjectService) Delete(ctx context.Context, actor Actor, id int64) error {
	if _, err := loadProject(ctx, s.projects, actor, id, rbac.PermissionManageProject); err != nil {
		return err
	}
	if err := s.projects.Delete(ctx, id); err != nil {
		return notFound(err)
	}
	s.logger.Info("Project deleted", zap.Int64("project_id", id), zap.Int64("deleted_by", actor.UserID))
	return nil
}

// AddMember 添加成员或修改其角色；新成员会收到通知
func (s *ProjectService) AddMember(ctx context.Context, actor Actor, projectID, userID int64, role string) (*model.Project, error) {
	p, err := loadProject(ctx, s.projects, actor, projectID, rbac.PermissionManageProject)
	if err != nil {
		return nil, err
	}
	if _, err := s.users.FindByID(ctx, userID); err != nil {
		return nil, invalid("user not found")
	}

	inserted, err := s.projects.UpsertMember(ctx, projectID, userID, strings.TrimSpace(role))
	if err != nil {
		return nil, err
	}
	if inserted && userID != actor.UserID {
		n := &model.Notification{
			UserID:    userID,
			ProjectID: &p.ID,
			Kind:      model.NotificationTeamAdded,
			Message:   fmt.Sprintf("You were added to project %q", p.Name),
		}
		if err := s.notifier.Notify(ctx, n); err != nil {
			s.logger.Warn("Team member added but notification failed", zap.Int64("user_id", userID), zap.Error(err))
		}
	}
	return s.projects.FindByID(ctx, projectID)
}

func (s *ProjectService) RemoveMember(ctx context.Context, actor Actor, projectID, userID int64) error {
	if _, err := loadProject(ctx, s.projects, actor, projectID, rbac.PermissionManageProject); err != nil {
		return err
	}
	return notFound(s.projects.RemoveMember(ctx, projectID, userID))
}

func (s *ProjectService) GetConfig(ctx context.Context, actor Actor, projectID int64) (*model.ProjectConfig, error) {
	p, err := loadProject(ctx, s.projects, actor, projectID, rbac.PermissionReadProject)
	if err != nil {
		return nil, err
	}
	cfg := p.Config
	cfg.Statuses = cfg.EffectiveStatuses()
	return &cfg, nil
}

// UpdateConfig 整体替换配置。状态被删除时已有任务不改写。
func (s *ProjectService) UpdateConfig(ctx context.Context, actor Actor, projectID int64, cfg model.ProjectConfig) (*model.ProjectConfig, error) {
	if _, err := loadProject(ctx, s.projects, actor, projectID, rbac.PermissionManageProject); err != nil {
		return nil, err
	}
	if err := ValidateConfig(&cfg); err != nil {
		return nil, err
	}
	if err := s.projects.UpdateConfig(ctx, projectID, cfg); err != nil {
		return nil, notFound(err)
	}
	s.logger.Info("Project config updated",
		zap.Int64("project_id", projectID),
		zap.Int("statuses", len(cfg.Statuses)),
		zap.Int("alert_rules", len(cfg.AlertRules)))
	return &cfg, nil
}

// UpdateKPIs 替换自由格式指标
func (s *ProjectService) UpdateKPIs(ctx context.Context, actor Actor, projectID int64, kpis map[string]any) error {
	if _, err := loadProject(ctx, s.projects, actor, projectID, rbac.PermissionManageProject); err != nil {
		return err
	}
	return notFound(s.projects.UpdateKPIs(ctx, projectID, kpis))
}

// KPIs 计算指标与自由格式指标合并
func (s *ProjectService) KPIs(ctx context.Context, actor Actor, projectID int64) (map[string]any, error) {
	p, err := loadProject(ctx, s.projects, actor, projectID, rbac.PermissionReadProject)
	if err != nil {
		return nil, err
	}
	tasks, err := s.tasks.ListByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return kpi.Merge(p.KPIs, kpi.Compute(p, tasks, s.now())), nil
}
