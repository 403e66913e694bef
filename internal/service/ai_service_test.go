package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/text/language"

	"projectflow/internal/ai"
	"projectflow/internal/model"
)

type stubAnalyzer struct {
	mu        sync.Mutex
	critical  []int64
	portfolio []ai.PortfolioEntry
	err       error
}

func (s *stubAnalyzer) SummarizeStatus(_ context.Context, p *model.Project, tasks []model.Task, _ language.Tag) (*ai.StatusSummary, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &ai.StatusSummary{Summary: p.Name}, nil
}

func (s *stubAnalyzer) PredictRisks(context.Context, *model.Project, []model.Task, language.Tag) (*ai.RiskReport, error) {
	return &ai.RiskReport{Risks: []ai.Risk{}}, s.err
}

func (s *stubAnalyzer) LessonsLearned(context.Context, *model.Project, []model.Task, language.Tag) (*ai.LessonsLearned, error) {
	return &ai.LessonsLearned{WentWell: []string{"ok"}}, s.err
}

func (s *stubAnalyzer) AnalyzeCriticalPath(context.Context, *model.Project, []model.Task, language.Tag) (*ai.CriticalPath, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &ai.CriticalPath{TaskIDs: s.critical, Explanation: "longest chain"}, nil
}

func (s *stubAnalyzer) SummarizeAllProjects(_ context.Context, entries []ai.PortfolioEntry, _ language.Tag) (*ai.PortfolioSummary, error) {
	s.mu.Lock()
	s.portfolio = entries
	s.mu.Unlock()
	return &ai.PortfolioSummary{Summary: "all good", Projects: []ai.ProjectHealth{}}, nil
}

func TestAIService_CriticalPathApply(t *testing.T) {
	env := newTaskEnv(t)
	ctx := context.Background()
	a := env.create(t, TaskInput{Name: "A"})
	b := env.create(t, TaskInput{Name: "B", Dependencies: []int64{a.ID}})
	c := env.create(t, TaskInput{Name: "C", IsCritical: true})

	analyzer := &stubAnalyzer{critical: []int64{a.ID, b.ID}}
	svc := NewAIService(env.projects, env.tasks, analyzer, zap.NewNop())

	_, err := svc.AnalyzeCriticalPath(ctx, env.member, env.project.ID, true, language.English)
	assert.ErrorIs(t, err, ErrForbidden)

	cp, err := svc.AnalyzeCriticalPath(ctx, env.member, env.project.ID, false, language.English)
	require.NoError(t, err)
	assert.Equal(t, []int64{a.ID, b.ID}, cp.TaskIDs)

	_, err = svc.AnalyzeCriticalPath(ctx, env.manager, env.project.ID, true, language.English)
	require.NoError(t, err)
	tasks, err := env.tasks.ListByProject(ctx, env.project.ID)
	require.NoError(t, err)
	critical := map[string]bool{}
	for _, task := range tasks {
		critical[task.Name] = task.IsCritical
	}
	assert.Equal(t, map[string]bool{"A": true, "B": true, "C": false}, critical)

	criticalChanges := func(taskID int64) []model.TaskChange {
		changes, err := env.tasks.ListChanges(ctx, taskID)
		require.NoError(t, err)
		out := make([]model.TaskChange, 0)
		for _, c := range changes {
			if c.Field == "is_critical" {
				out = append(out, c)
			}
		}
		return out
	}
	history := criticalChanges(a.ID)
	require.Len(t, history, 1)
	assert.Equal(t, "false", history[0].OldValue)
	assert.Equal(t, "true", history[0].NewValue)
	assert.Equal(t, env.manager.UserID, history[0].UserID)
	assert.Equal(t, CriticalPathJustification, history[0].Justification)
	cleared := criticalChanges(c.ID)
	require.Len(t, cleared, 1)
	assert.Equal(t, "true", cleared[0].OldValue)
	assert.Equal(t, "false", cleared[0].NewValue)

	_, err = svc.AnalyzeCriticalPath(ctx, env.manager, env.project.ID, true, language.English)
	require.NoError(t, err)
	assert.Len(t, criticalChanges(a.ID), 1, "unchanged flags add no history")
}

func TestAIService_AccessAndErrors(t *testing.T) {
	env := newTaskEnv(t)
	ctx := context.Background()
	svc := NewAIService(env.projects, env.tasks, &stubAnalyzer{err: ai.ErrUnavailable}, zap.NewNop())

	_, err := svc.SummarizeStatus(ctx, env.outsider, env.project.ID, language.English)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.SummarizeStatus(ctx, env.member, env.project.ID, language.English)
	assert.ErrorIs(t, err, ai.ErrUnavailable)
}

func TestAIService_SummarizeAllProjects(t *testing.T) {
	env := newTaskEnv(t)
	ctx := context.Background()
	env.create(t, TaskInput{Name: "A"})
	_, err := env.svc.Create(ctx, env.admin, ProjectInput{Name: "Internal"})
	require.NoError(t, err)

	analyzer := &stubAnalyzer{}
	svc := NewAIService(env.projects, env.tasks, analyzer, zap.NewNop())

	_, err = svc.SummarizeAllProjects(ctx, env.member, language.English)
	require.NoError(t, err)
	require.Len(t, analyzer.portfolio, 1)
	assert.Equal(t, "Website", analyzer.portfolio[0].Project.Name)
	assert.Len(t, analyzer.portfolio[0].Tasks, 1)

	_, err = svc.SummarizeAllProjects(ctx, env.admin, language.English)
	require.NoError(t, err)
	assert.Len(t, analyzer.portfolio, 2)

	summary, err := svc.SummarizeAllProjects(ctx, Actor{UserID: 999, Role: "member"}, language.English)
	require.NoError(t, err)
	assert.Empty(t, summary.Projects)
}

func TestAlertService_Evaluate(t *testing.T) {
	env := newTaskEnv(t)
	ctx := context.Background()
	_, err := env.svc.UpdateConfig(ctx, env.manager, env.project.ID, model.ProjectConfig{
		AlertRules: []model.AlertRule{
			{Metric: model.MetricBudgetUsage, Condition: model.ConditionExceedsPercentage, Value: "20"},
			{Metric: model.MetricTaskPriority, Condition: model.ConditionIs, Value: "critical"},
		},
	})
	require.NoError(t, err)
	env.create(t, TaskInput{Name: "Hotfix", Priority: "critical"})

	svc := NewAlertService(env.projects, env.tasks, zap.NewNop())
	alerts, err := svc.Evaluate(ctx, env.member, env.project.ID)
	require.NoError(t, err)
	require.Len(t, alerts, 2)
	assert.Equal(t, model.MetricBudgetUsage, alerts[0].Metric)
	assert.Equal(t, `Task "Hotfix" has priority "critical"`, alerts[1].Message)

	_, err = svc.Evaluate(ctx, env.outsider, env.project.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
