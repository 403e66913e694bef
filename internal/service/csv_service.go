package service

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"projectflow/internal/csvio"
	"projectflow/internal/model"
	"projectflow/internal/tasktree"
	"projectflow/pkg/rbac"
)

type CSVService struct {
	projects ProjectStore
	tasks    TaskStore
	users    UserStore
	logger   *zap.Logger
}

func NewCSVService(projects ProjectStore, tasks TaskStore, users UserStore, logger *zap.Logger) *CSVService {
	return &CSVService{projects: projects, tasks: tasks, users: users, logger: logger}
}

// ImportResult 导入结果；Errors 中的行未被创建，或创建后引用未能解析
type ImportResult struct {
	Created         int                 `json:"created"`
	TaskIDs         []int64             `json:"task_ids"`
	Errors          []csvio.RowError    `json:"errors"`
	NewCustomFields []model.CustomField `json:"new_custom_fields"`
}

// Export 按项目中的顺序导出任务
func (s *CSVService) Export(ctx context.Context, actor Actor, projectID int64, w io.Writer) (*model.Project, error) {
	p, err := loadProject(ctx, s.projects, actor, projectID, rbac.PermissionReadProject)
	if err != nil {
		return nil, err
	}
	tasks, err := s.tasks.ListByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if err := csvio.Export(w, tasks, p.Config, nil); err != nil {
		return nil, err
	}
	s.logger.Info("Tasks exported", zap.Int64("project_id", projectID), zap.Int("tasks", len(tasks)))
	return p, nil
}

func (s *CSVService) Preview(ctx context.Context, actor Actor, projectID int64, r io.Reader) (*csvio.Preview, error) {
	p, err := loadProject(ctx, s.projects, actor, projectID, rbac.PermissionWriteTask)
	if err != nil {
		return nil, err
	}
	preview, err := csvio.BuildPreview(r, p.Config)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCSV, err)
	}
	return preview, nil
}

type pendingRefs struct {
	row    int
	taskID int64
	deps   []string
	parent string
}

// Import 创建合法行；依赖与父任务在全部行创建后第二遍解析。
// 创建开始后出错时同时返回部分结果和错误。
func (s *CSVService) Import(ctx context.Context, actor Actor, projectID int64, r io.Reader, mapping map[string]string) (*ImportResult, error) {
	p, err := loadProject(ctx, s.projects, actor, projectID, rbac.PermissionWriteTask)
	if err != nil {
		return nil, err
	}

	plan, err := csvio.Parse(r, mapping, p.Config)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCSV, err)
	}

	result := &ImportResult{
		TaskIDs:         []int64{},
		Errors:          append([]csvio.RowError{}, plan.Errors...),
		NewCustomFields: plan.NewCustomFields,
	}

	cfg := p.Config
	if len(plan.NewCustomFields) > 0 {
		cfg.CustomFields = append(append([]model.CustomField{}, cfg.CustomFields...), plan.NewCustomFields...)
		if err := ValidateConfig(&cfg); err != nil {
			return nil, err
		}
		if err := s.projects.UpdateConfig(ctx, projectID, cfg); err != nil {
			return nil, err
		}
		s.logger.Info("Custom fields created by import",
			zap.Int64("project_id", projectID),
			zap.Int("count", len(plan.NewCustomFields)))
	}

	existing, err := s.tasks.ListByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	all := append([]model.Task{}, existing...)
	resolver := csvio.NewResolver(existing)
	emails := map[string]*int64{}

	// 已有任务被创建后出错时，返回部分结果，调用方仍能拿到已创建的 id
	abort := func(err error) (*ImportResult, error) {
		result.Created = len(result.TaskIDs)
		s.logger.Error("Task import aborted",
			zap.Int64("project_id", projectID),
			zap.Int64s("created_task_ids", result.TaskIDs),
			zap.Error(err))
		return result, err
	}

	var pending []pendingRefs
	for _, row := range plan.Rows {
		t := row.Task
		t.ProjectID = projectID

		if row.AssigneeEmail != "" {
			id, err := s.lookupEmail(ctx, emails, row.AssigneeEmail)
			if err != nil {
				return abort(err)
			}
			if id == nil {
				result.Errors = append(result.Errors, csvio.RowError{Row: row.Row, Message: fmt.Sprintf("unknown assignee %q", row.AssigneeEmail)})
				continue
			}
			t.AssigneeID = id
		}

		if err := validateTask(&t, cfg, nil); err != nil {
			result.Errors = append(result.Errors, csvio.RowError{Row: row.Row, Message: err.Error()})
			continue
		}
		if err := s.tasks.Insert(ctx, &t); err != nil {
			return abort(err)
		}

		resolver.AddImported(row.SourceID, t.Name, t.ID)
		all = append(all, t)
		result.TaskIDs = append(result.TaskIDs, t.ID)
		if len(row.DependencyTokens) > 0 || row.ParentToken != "" {
			pending = append(pending, pendingRefs{row: row.Row, taskID: t.ID, deps: row.DependencyTokens, parent: row.ParentToken})
		}
	}
	result.Created = len(result.TaskIDs)

	index := make(map[int64]int, len(all))
	for i := range all {
		index[all[i].ID] = i
	}

	for _, pr := range pending {
		deps := make([]int64, 0, len(pr.deps))
		for _, tok := range pr.deps {
			id, ok := resolver.Resolve(tok)
			if !ok || id == pr.taskID {
				result.Errors = append(result.Errors, csvio.RowError{Row: pr.row, Column: csvio.FieldDependencies, Message: fmt.Sprintf("unresolved dependency %q", tok)})
				continue
			}
			deps = dedupIDs(append(deps, id))
		}
		if tasktree.CreatesDependencyCycle(all, pr.taskID, deps) {
			result.Errors = append(result.Errors, csvio.RowError{Row: pr.row, Column: csvio.FieldDependencies, Message: ErrDependencyCycle.Error()})
			deps = []int64{}
		}

		var parentID *int64
		if pr.parent != "" {
			id, ok := resolver.Resolve(pr.parent)
			switch {
			case !ok || id == pr.taskID:
				result.Errors = append(result.Errors, csvio.RowError{Row: pr.row, Column: csvio.FieldParentID, Message: fmt.Sprintf("unresolved parent %q", pr.parent)})
			case tasktree.CreatesParentCycle(all, pr.taskID, id):
				result.Errors = append(result.Errors, csvio.RowError{Row: pr.row, Column: csvio.FieldParentID, Message: ErrInvalidParent.Error()})
			default:
				parentID = &id
			}
		}

		if err := s.tasks.UpdateRefs(ctx, pr.taskID, deps, parentID); err != nil {
			return abort(err)
		}
		t := &all[index[pr.taskID]]
		t.Dependencies = deps
		t.ParentID = parentID
	}

	s.logger.Info("Tasks imported",
		zap.Int64("project_id", projectID),
		zap.Int("created", result.Created),
		zap.Int("errors", len(result.Errors)),
		zap.Int64("imported_by", actor.UserID))
	return result, nil
}

func (s *CSVService) lookupEmail(ctx context.Context, cache map[string]*int64, email string) (*int64, error) {
	if id, ok := cache[email]; ok {
		return id, nil
	}
	u, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(notFound(err), ErrNotFound) {
			cache[email] = nil
			return nil, nil
		}
		return nil, err
	}
	cache[email] = &u.ID
	return &u.ID, nil
}
