package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"projectflow/internal/model"
	"projectflow/internal/tasktree"
	"projectflow/pkg/rbac"
)

// MaxTaskNameLength 任务名最大长度
const MaxTaskNameLength = 200

type TaskService struct {
	projects ProjectStore
	tasks    TaskStore
	users    UserStore
	notifier Notifier
	logger   *zap.Logger
}

func NewTaskService(projects ProjectStore, tasks TaskStore, users UserStore, notifier Notifier, logger *zap.Logger) *TaskService {
	return &TaskService{
		projects: projects,
		tasks:    tasks,
		users:    users,
		notifier: notifier,
		logger:   logger,
	}
}

// TaskInput 创建/修改任务的可编辑字段。修改为整体替换；CustomFields 为 nil 时保持原值。
type TaskInput struct {
	Name               string         `json:"name" binding:"required"`
	Description        string         `json:"description"`
	AssigneeID         *int64         `json:"assignee_id"`
	Status             string         `json:"status"`
	Priority           string         `json:"priority"`
	Progress           int            `json:"progress"`
	PlannedStart       string         `json:"planned_start"`
	PlannedEnd         string         `json:"planned_end"`
	ActualStart        string         `json:"actual_start"`
	ActualEnd          string         `json:"actual_end"`
	PlannedEffortHours float64        `json:"planned_effort_hours"`
	ActualEffortHours  float64        `json:"actual_effort_hours"`
	Dependencies       []int64        `json:"dependencies"`
	ParentID           *int64         `json:"parent_id"`
	IsMilestone        bool           `json:"is_milestone"`
	IsCritical         bool           `json:"is_critical"`
	CustomFields       map[string]any `json:"custom_fields"`
	// Justification 记录到变更历史
	Justification string `json:"justification"`
}

func (in TaskInput) apply(t *model.Task) error {
	t.Name = strings.TrimSpace(in.Name)
	t.Description = in.Description
	t.AssigneeID = in.AssigneeID
	t.Status = strings.TrimSpace(in.Status)
	t.Priority = strings.ToLower(strings.TrimSpace(in.Priority))
	t.Progress = in.Progress
	t.PlannedEffortHours = in.PlannedEffortHours
	t.ActualEffortHours = in.ActualEffortHours
	t.Dependencies = in.Dependencies
	t.ParentID = in.ParentID
	t.IsMilestone = in.IsMilestone
	t.IsCritical = in.IsCritical
	if in.CustomFields != nil {
		t.CustomFields = in.CustomFields
	}

	var err error
	if t.PlannedStart, err = parseDateField("planned_start", in.PlannedStart); err != nil {
		return err
	}
	if t.PlannedEnd, err = parseDateField("planned_end", in.PlannedEnd); err != nil {
		return err
	}
	if t.ActualStart, err = parseDateField("actual_start", in.ActualStart); err != nil {
		return err
	}
	if t.ActualEnd, err = parseDateField("actual_end", in.ActualEnd); err != nil {
		return err
	}
	return nil
}

// validateTask 校验单个任务；siblings 为同项目的全部任务（修改时包含自身旧值）
func validateTask(t *model.Task, cfg model.ProjectConfig, siblings []model.Task) error {
	if t.Name == "" || len(t.Name) > MaxTaskNameLength {
		return invalid("name is required and must be at most %d characters", MaxTaskNameLength)
	}
	if t.Status == "" {
		t.Status = cfg.DefaultStatus()
	}
	if !cfg.HasStatus(t.Status) {
		return wrapf(ErrInvalidStatus, "%q", t.Status)
	}
	if t.Priority == "" {
		t.Priority = model.PriorityMedium
	}
	if !model.ValidPriority(t.Priority) {
		return invalid("unknown priority %q", t.Priority)
	}
	if t.Progress < 0 || t.Progress > 100 {
		return invalid("progress must be between 0 and 100")
	}
	if t.PlannedStart != nil && t.PlannedEnd != nil && t.PlannedEnd.Before(*t.PlannedStart) {
		return invalid("planned_end must not be before planned_start")
	}
	if t.ActualStart != nil && t.ActualEnd != nil && t.ActualEnd.Before(*t.ActualStart) {
		return invalid("actual_end must not be before actual_start")
	}
	for _, h := range []float64{t.PlannedEffortHours, t.ActualEffortHours} {
		if h < 0 || math.IsNaN(h) || math.IsInf(h, 0) {
			return invalid("effort hours must be non-negative numbers")
		}
	}

	byID := make(map[int64]bool, len(siblings))
	for _, s := range siblings {
		byID[s.ID] = true
	}

	if t.ParentID != nil {
		if *t.ParentID == t.ID || !byID[*t.ParentID] {
			return wrapf(ErrInvalidParent, "task %d", *t.ParentID)
		}
		if t.ID != 0 && tasktree.CreatesParentCycle(siblings, t.ID, *t.ParentID) {
			return wrapf(ErrInvalidParent, "task %d would become its own ancestor", t.ID)
		}
	}

	t.Dependencies = dedupIDs(t.Dependencies)
	for _, dep := range t.Dependencies {
		if dep == t.ID || !byID[dep] {
			return wrapf(ErrInvalidDependency, "task %d", dep)
		}
	}
	if t.ID != 0 && tasktree.CreatesDependencyCycle(siblings, t.ID, t.Dependencies) {
		return ErrDependencyCycle
	}

	return validateCustomValues(t.CustomFields, cfg)
}

// validateCustomValues 已配置字段按类型校验，未配置的 key 原样保留
func validateCustomValues(values map[string]any, cfg model.ProjectConfig) error {
	for key, v := range values {
		f, ok := cfg.FindCustomField(key)
		if !ok || v == nil {
			continue
		}
		switch f.Type {
		case model.FieldTypeNumber:
			if _, ok := v.(float64); !ok {
				return invalid("custom field %q must be a number", key)
			}
		case model.FieldTypeSelect:
			sv, ok := v.(string)
			if !ok || !contains(f.Options, sv) {
				return invalid("custom field %q must be one of %v", key, f.Options)
			}
		case model.FieldTypeDate, model.FieldTypeText:
			if _, ok := v.(string); !ok {
				return invalid("custom field %q must be a string", key)
			}
		}
	}
	return nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func dedupIDs(ids []int64) []int64 {
	out := make([]int64, 0, len(ids))
	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func (s *TaskService) checkAssignee(ctx context.Context, id *int64) error {
	if id == nil {
		return nil
	}
	if _, err := s.users.FindByID(ctx, *id); err != nil {
		if errors.Is(notFound(err), ErrNotFound) {
			return invalid("assignee %d not found", *id)
		}
		return err
	}
	return nil
}

// List 项目的全部任务，按位置排序
func (s *TaskService) List(ctx context.Context, actor Actor, projectID int64) ([]model.Task, error) {
	if _, err := loadProject(ctx, s.projects, actor, projectID, rbac.PermissionReadProject); err != nil {
		return nil, err
	}
	return s.tasks.ListByProject(ctx, projectID)
}

// Tree 以父子层级返回任务，可按名称和状态过滤
func (s *TaskService) Tree(ctx context.Context, actor Actor, projectID int64, c tasktree.Criteria) ([]*tasktree.Node, error) {
	tasks, err := s.List(ctx, actor, projectID)
	if err != nil {
		return nil, err
	}
	return tasktree.Filter(tasktree.Build(tasks), c), nil
}

// loadTask 读取任务并检查所在项目的权限
func (s *TaskService) loadTask(ctx context.Context, actor Actor, taskID int64, permission string) (*model.Task, *model.Project, error) {
	t, err := s.tasks.FindByID(ctx, taskID)
	if err != nil {
		return nil, nil, notFound(err)
	}
	p, err := loadProject(ctx, s.projects, actor, t.ProjectID, permission)
	if err != nil {
		return nil, nil, err
	}
	return t, p, nil
}

func (s *TaskService) Get(ctx context.Context, actor Actor, taskID int64) (*model.Task, error) {
	t, _, err := s.loadTask(ctx, actor, taskID, rbac.PermissionReadProject)
	return t, err
}

func (s *TaskService) Create(ctx context.Context, actor Actor, projectID int64, in TaskInput) (*model.Task, error) {
	p, err := loadProject(ctx, s.projects, actor, projectID, rbac.PermissionWriteTask)
	if err != nil {
		return nil, err
	}
	siblings, err := s.tasks.ListByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	t := &model.Task{ProjectID: projectID}
	if err := in.apply(t); err != nil {
		return nil, err
	}
	if err := validateTask(t, p.Config, siblings); err != nil {
		return nil, err
	}
	if err := s.checkAssignee(ctx, t.AssigneeID); err != nil {
		return nil, err
	}

	if err := s.tasks.Insert(ctx, t); err != nil {
		return nil, err
	}
	s.logger.Info("Task created",
		zap.Int64("task_id", t.ID),
		zap.Int64("project_id", projectID),
		zap.Int64("created_by", actor.UserID))

	s.notifyAssignment(ctx, actor, p, t, nil)
	return s.tasks.FindByID(ctx, t.ID)
}

// Update 整体替换可编辑字段，每个变化的字段写一条变更历史
func (s *TaskService) Update(ctx context.Context, actor Actor, taskID int64, in TaskInput) (*model.Task, error) {
	old, p, err := s.loadTask(ctx, actor, taskID, rbac.PermissionWriteTask)
	if err != nil {
		return nil, err
	}
	siblings, err := s.tasks.ListByProject(ctx, p.ID)
	if err != nil {
		return nil, err
	}

	updated := *old
	updated.CustomFields = copyMap(old.CustomFields)
	if err := in.apply(&updated); err != nil {
		return nil, err
	}
	if err := validateTask(&updated, p.Config, siblings); err != nil {
		return nil, err
	}
	if !sameID(old.AssigneeID, updated.AssigneeID) {
		if err := s.checkAssignee(ctx, updated.AssigneeID); err != nil {
			return nil, err
		}
	}

	changes := diffTask(old, &updated, actor.UserID, strings.TrimSpace(in.Justification))
	if err := s.tasks.Update(ctx, &updated, changes); err != nil {
		return nil, notFound(err)
	}

	s.logger.Info("Task updated",
		zap.Int64("task_id", taskID),
		zap.Int("changed_fields", len(changes)),
		zap.Int64("updated_by", actor.UserID))

	s.notifyAssignment(ctx, actor, p, &updated, old.AssigneeID)
	return s.tasks.FindByID(ctx, taskID)
}

func (s *TaskService) notifyAssignment(ctx context.Context, actor Actor, p *model.Project, t *model.Task, previous *int64) {
	if t.AssigneeID == nil || sameID(previous, t.AssigneeID) || *t.AssigneeID == actor.UserID {
		return
	}
	n := &model.Notification{
		UserID:    *t.AssigneeID,
		ProjectID: &p.ID,
		TaskID:    &t.ID,
		Kind:      model.NotificationTaskAssigned,
		Message:   fmt.Sprintf("You were assigned to task %q in project %q", t.Name, p.Name),
	}
	if err := s.notifier.Notify(ctx, n); err != nil {
		s.logger.Warn("Task assigned but notification failed",
			zap.Int64("task_id", t.ID),
			zap.Int64("assignee_id", *t.AssigneeID),
			zap.Error(err))
	}
}

// Delete 子任务变为根任务，其它任务的依赖中移除该任务
func (s *TaskService) Delete(ctx context.Context, actor Actor, taskID int64) error {
	t, _, err := s.loadTask(ctx, actor, taskID, rbac.PermissionDeleteTask)
	if err != nil {
		return err
	}
	if err := s.tasks.Delete(ctx, t.ProjectID, taskID); err != nil {
		return notFound(err)
	}
	s.logger.Info("Task deleted", zap.Int64("task_id", taskID), zap.Int64("deleted_by", actor.UserID))
	return nil
}

// Reorder 看板/甘特图拖拽后的新顺序。必须包含项目的全部任务，且不能重复。
func (s *TaskService) Reorder(ctx context.Context, actor Actor, projectID int64, orderedIDs []int64) ([]model.Task, error) {
	if _, err := loadProject(ctx, s.projects, actor, projectID, rbac.PermissionWriteTask); err != nil {
		return nil, err
	}
	current, err := s.tasks.ListByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if len(orderedIDs) != len(current) {
		return nil, invalid("order must list all %d tasks", len(current))
	}
	want := make([]int64, 0, len(current))
	for _, t := range current {
		want = append(want, t.ID)
	}
	got := append([]int64{}, orderedIDs...)
	sort.Slice(want, func(i, j int) bool { return want[i] < want[j] })
	sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })
	for i := range want {
		if want[i] != got[i] {
			return nil, invalid("order must contain each task of the project exactly once")
		}
	}

	if err := s.tasks.Reorder(ctx, projectID, orderedIDs); err != nil {
		return nil, err
	}
	return s.tasks.ListByProject(ctx, projectID)
}

func (s *TaskService) History(ctx context.Context, actor Actor, taskID int64) ([]model.TaskChange, error) {
	if _, _, err := s.loadTask(ctx, actor, taskID, rbac.PermissionReadProject); err != nil {
		return nil, err
	}
	return s.tasks.ListChanges(ctx, taskID)
}

// AddAttachment 附件只保存名称和链接，文件本身不经过本服务
func (s *TaskService) AddAttachment(ctx context.Context, actor Actor, taskID int64, name, url string) (*model.Attachment, error) {
	t, _, err := s.loadTask(ctx, actor, taskID, rbac.PermissionWriteTask)
	if err != nil {
		return nil, err
	}
	name, url = strings.TrimSpace(name), strings.TrimSpace(url)
	if name == "" || url == "" {
		return nil, invalid("attachment name and url are required")
	}

	a := model.Attachment{
		ID:         uuid.NewString(),
		Name:       name,
		URL:        url,
		UploadedBy: actor.UserID,
		UploadedAt: time.Now().UTC(),
	}
	updated := *t
	updated.Attachments = append(append([]model.Attachment{}, t.Attachments...), a)
	change := model.TaskChange{Field: "attachments", NewValue: name, UserID: actor.UserID}
	if err := s.tasks.Update(ctx, &updated, []model.TaskChange{change}); err != nil {
		return nil, notFound(err)
	}
	return &a, nil
}

func (s *TaskService) RemoveAttachment(ctx context.Context, actor Actor, taskID int64, attachmentID string) error {
	t, _, err := s.loadTask(ctx, actor, taskID, rbac.PermissionWriteTask)
	if err != nil {
		return err
	}

	kept := make([]model.Attachment, 0, len(t.Attachments))
	var removed *model.Attachment
	for i := range t.Attachments {
		if t.Attachments[i].ID == attachmentID {
			removed = &t.Attachments[i]
			continue
		}
		kept = append(kept, t.Attachments[i])
	}
	if removed == nil {
		return ErrNotFound
	}

	updated := *t
	updated.Attachments = kept
	change := model.TaskChange{Field: "attachments", OldValue: removed.Name, UserID: actor.UserID}
	return notFound(s.tasks.Update(ctx, &updated, []model.TaskChange{change}))
}

// SetCustomFields 替换自定义字段的值
func (s *TaskService) SetCustomFields(ctx context.Context, actor Actor, taskID int64, values map[string]any) (*model.Task, error) {
	t, p, err := s.loadTask(ctx, actor, taskID, rbac.PermissionWriteTask)
	if err != nil {
		return nil, err
	}
	if values == nil {
		values = map[string]any{}
	}
	if err := validateCustomValues(values, p.Config); err != nil {
		return nil, err
	}

	updated := *t
	updated.CustomFields = values
	changes := diffTask(t, &updated, actor.UserID, "")
	if err := s.tasks.Update(ctx, &updated, changes); err != nil {
		return nil, notFound(err)
	}
	return s.tasks.FindByID(ctx, taskID)
}

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func sameID(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// diffTask 比较被跟踪的字段，返回变更记录
func diffTask(old, updated *model.Task, userID int64, justification string) []model.TaskChange {
	var changes []model.TaskChange
	add := func(field, before, after string) {
		if before == after {
			return
		}
		changes = append(changes, model.TaskChange{
			TaskID:        old.ID,
			Field:         field,
			OldValue:      before,
			NewValue:      after,
			UserID:        userID,
			Justification: justification,
		})
	}

	add("name", old.Name, updated.Name)
	add("description", old.Description, updated.Description)
	add("assignee_id", optionalID(old.AssigneeID), optionalID(updated.AssigneeID))
	add("status", old.Status, updated.Status)
	add("priority", old.Priority, updated.Priority)
	add("progress", strconv.Itoa(old.Progress), strconv.Itoa(updated.Progress))
	add("planned_start", optionalDate(old.PlannedStart), optionalDate(updated.PlannedStart))
	add("planned_end", optionalDate(old.PlannedEnd), optionalDate(updated.PlannedEnd))
	add("actual_start", optionalDate(old.ActualStart), optionalDate(updated.ActualStart))
	add("actual_end", optionalDate(old.ActualEnd), optionalDate(updated.ActualEnd))
	add("planned_effort_hours", formatHours(old.PlannedEffortHours), formatHours(updated.PlannedEffortHours))
	add("actual_effort_hours", formatHours(old.ActualEffortHours), formatHours(updated.ActualEffortHours))
	add("dependencies", joinIDs(old.Dependencies), joinIDs(updated.Dependencies))
	add("parent_id", optionalID(old.ParentID), optionalID(updated.ParentID))
	add("is_milestone", strconv.FormatBool(old.IsMilestone), strconv.FormatBool(updated.IsMilestone))
	add("is_critical", strconv.FormatBool(old.IsCritical), strconv.FormatBool(updated.IsCritical))

	keys := make([]string, 0)
	seen := map[string]bool{}
	for k := range old.CustomFields {
		keys = append(keys, k)
		seen[k] = true
	}
	for k := range updated.CustomFields {
		if !seen[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		add("custom:"+k, formatAny(old.CustomFields[k]), formatAny(updated.CustomFields[k]))
	}
	return changes
}

func optionalID(id *int64) string {
	if id == nil {
		return ""
	}
	return strconv.FormatInt(*id, 10)
}

func optionalDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}

func formatHours(h float64) string {
	return strconv.FormatFloat(h, 'f', -1, 64)
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ";")
}

func formatAny(v any) string {
	if v == nil {
		return ""
	}
	if f, ok := v.(float64); ok {
		return formatHours(f)
	}
	return fmt.Sprint(v)
}
