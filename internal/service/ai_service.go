package service

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"

	"projectflow/internal/ai"
	"projectflow/internal/model"
	"projectflow/pkg/rbac"
)

// portfolioConcurrency 组合摘要并发读取任务的上限
const portfolioConcurrency = 4

// Analyzer 由 internal/ai.Analyzer 实现
type Analyzer interface {
	SummarizeStatus(ctx context.Context, project *model.Project, tasks []model.Task, lang language.Tag) (*ai.StatusSummary, error)
	PredictRisks(ctx context.Context, project *model.Project, tasks []model.Task, lang language.Tag) (*ai.RiskReport, error)
	LessonsLearned(ctx context.Context, project *model.Project, tasks []model.Task, lang language.Tag) (*ai.LessonsLearned, error)
	AnalyzeCriticalPath(ctx context.Context, project *model.Project, tasks []model.Task, lang language.Tag) (*ai.CriticalPath, error)
	SummarizeAllProjects(ctx context.Context, entries []ai.PortfolioEntry, lang language.Tag) (*ai.PortfolioSummary, error)
}

type AIService struct {
	projects ProjectStore
	tasks    TaskStore
	analyzer Analyzer
	logger   *zap.Logger
}

func NewAIService(projects ProjectStore, tasks TaskStore, analyzer Analyzer, logger *zap.Logger) *AIService {
	return &AIService{projects: projects, tasks: tasks, analyzer: analyzer, logger: logger}
}

func (s *AIService) load(ctx context.Context, actor Actor, projectID int64) (*model.Project, []model.Task, error) {
	p, err := loadProject(ctx, s.projects, actor, projectID, rbac.PermissionUseAI)
	if err != nil {
		return nil, nil, err
	}
	tasks, err := s.tasks.ListByProject(ctx, projectID)
	if err != nil {
		return nil, nil, err
	}
	return p, tasks, nil
}

func (s *AIService) SummarizeStatus(ctx context.Context, actor Actor, projectID int64, lang language.Tag) (*ai.StatusSummary, error) {
	p, tasks, err := s.load(ctx, actor, projectID)
	if err != nil {
		return nil, err
	}
	return s.analyzer.SummarizeStatus(ctx, p, tasks, lang)
}

func (s *AIService) PredictRisks(ctx context.Context, actor Actor, projectID int64, lang language.Tag) (*ai.RiskReport, error) {
	p, tasks, err := s.load(ctx, actor, projectID)
	if err != nil {
		return nil, err
	}
	return s.analyzer.PredictRisks(ctx, p, tasks, lang)
}

func (s *AIService) LessonsLearned(ctx context.Context, actor Actor, projectID int64, lang language.Tag) (*ai.LessonsLearned, error) {
	p, tasks, err := s.load(ctx, actor, projectID)
	if err != nil {
		return nil, err
	}
	return s.analyzer.LessonsLearned(ctx, p, tasks, lang)
}

// CriticalPathJustification 写回关键路径时变更历史中的说明
const CriticalPathJustification = "AI critical path"

// AnalyzeCriticalPath apply 为 true 时把结果写回任务的 is_critical（需要项目管理权限）
func (s *AIService) AnalyzeCriticalPath(ctx context.Context, actor Actor, projectID int64, apply bool, lang language.Tag) (*ai.CriticalPath, error) {
	p, tasks, err := s.load(ctx, actor, projectID)
	if err != nil {
		return nil, err
	}
	if apply && !canAccess(actor, p, rbac.PermissionManageProject) {
		return nil, ErrForbidden
	}

	cp, err := s.analyzer.AnalyzeCriticalPath(ctx, p, tasks, lang)
	if err != nil {
		return nil, err
	}
	if apply {
		if err := s.tasks.SetCritical(ctx, projectID, cp.TaskIDs, actor.UserID, CriticalPathJustification); err != nil {
			return nil, err
		}
		s.logger.Info("Critical path applied",
			zap.Int64("project_id", projectID),
			zap.Int64s("task_ids", cp.TaskIDs))
	}
	return cp, nil
}

// SummarizeAllProjects 对用户可见的全部项目生成组合摘要，任务并发读取
func (s *AIService) SummarizeAllProjects(ctx context.Context, actor Actor, lang language.Tag) (*ai.PortfolioSummary, error) {
	if !actor.IsAdmin() && !rbac.HasPermission(actor.Role, rbac.PermissionUseAI) {
		return nil, ErrForbidden
	}
	var projects []*model.Project
	var err error
	if actor.IsAdmin() {
		projects, err = s.projects.List(ctx)
	} else {
		projects, err = s.projects.ListForUser(ctx, actor.UserID)
	}
	if err != nil {
		return nil, err
	}
	if len(projects) == 0 {
		return &ai.PortfolioSummary{Projects: []ai.ProjectHealth{}}, nil
	}

	entries := make([]ai.PortfolioEntry, len(projects))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(portfolioConcurrency)
	for i, p := range projects {
		i, p := i, p
		g.Go(func() error {
			tasks, err := s.tasks.ListByProject(gctx, p.ID)
			if err != nil {
				return err
			}
			entries[i] = ai.PortfolioEntry{Project: p, Tasks: tasks}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.logger.Error("Failed to load portfolio tasks", zap.Error(err))
		return nil, err
	}

	return s.analyzer.SummarizeAllProjects(ctx, entries, lang)
}
