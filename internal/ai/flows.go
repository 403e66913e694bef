package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/language"

	"projectflow/internal/alert"
	"projectflow/internal/model"
	"projectflow/internal/tasktree"
	"projectflow/pkg/i18n"
	"projectflow/pkg/metrics"
)

// Analyzer 提供各个分析流程：渲染提示词、调用模型、校验结果
type Analyzer struct {
	gen    Generator
	cache  Cache
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time
}

// NewAnalyzer cache 可以为 nil，ttl <= 0 时不缓存
func NewAnalyzer(gen Generator, cache Cache, ttl time.Duration, logger *zap.Logger) *Analyzer {
	return &Analyzer{gen: gen, cache: cache, ttl: ttl, logger: logger, now: time.Now}
}

// PortfolioEntry 组合摘要的一个项目
type PortfolioEntry struct {
	Project *model.Project
	Tasks   []model.Task
}

type projectContext struct {
	ID            int64          `json:"id"`
	Name          string         `json:"name"`
	Description   string         `json:"description,omitempty"`
	PlannedStart  string         `json:"planned_start,omitempty"`
	PlannedEnd    string         `json:"planned_end,omitempty"`
	ActualStart   string         `json:"actual_start,omitempty"`
	ActualEnd     string         `json:"actual_end,omitempty"`
	PlannedBudget float64        `json:"planned_budget"`
	ActualCost    float64        `json:"actual_cost"`
	CompletionPct float64        `json:"completion_pct"`
	TaskCount     int            `json:"task_count"`
	KPIs          map[string]any `json:"kpis,omitempty"`
}

type taskContext struct {
	ID                 int64   `json:"id"`
	Name               string  `json:"name"`
	Status             string  `json:"status"`
	Priority           string  `json:"priority"`
	Progress           int     `json:"progress"`
	PlannedStart       string  `json:"planned_start,omitempty"`
	PlannedEnd         string  `json:"planned_end,omitempty"`
	ActualStart        string  `json:"actual_start,omitempty"`
	ActualEnd          string  `json:"actual_end,omitempty"`
	PlannedEffortHours float64 `json:"planned_effort_hours,omitempty"`
	ActualEffortHours  float64 `json:"actual_effort_hours,omitempty"`
	Dependencies       []int64 `json:"dependencies,omitempty"`
	ParentID           *int64  `json:"parent_id,omitempty"`
	IsMilestone        bool    `json:"is_milestone,omitempty"`
	Assignee           string  `json:"assignee,omitempty"`
}

type promptData struct {
	Language string
	Project  *projectContext
	Tasks    []taskContext
	Projects []portfolioContext
}

type portfolioContext struct {
	projectContext
	OverdueTasks []string `json:"overdue_tasks,omitempty"`
}

func (a *Analyzer) SummarizeStatus(ctx context.Context, project *model.Project, tasks []model.Task, lang language.Tag) (*StatusSummary, error) {
	out := &StatusSummary{}
	if err := a.run(ctx, FlowSummarizeStatus, project.ID, newPromptData(project, tasks, lang), statusSummarySchema, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (a *Analyzer) PredictRisks(ctx context.Context, project *model.Project, tasks []model.Task, lang language.Tag) (*RiskReport, error) {
	out := &RiskReport{}
	if err := a.run(ctx, FlowPredictRisks, project.ID, newPromptData(project, tasks, lang), riskReportSchema, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (a *Analyzer) LessonsLearned(ctx context.Context, project *model.Project, tasks []model.Task, lang language.Tag) (*LessonsLearned, error) {
	out := &LessonsLearned{}
	if err := a.run(ctx, FlowLessonsLearned, project.ID, newPromptData(project, tasks, lang), lessonsSchema, out); err != nil {
		return nil, err
	}
	return out, nil
}

// AnalyzeCriticalPath 关键路径完全由模型推断，本地不做 CPM 计算。
// 返回的 id 原样信任，只剔除不在任务列表中的 id。
func (a *Analyzer) AnalyzeCriticalPath(ctx context.Context, project *model.Project, tasks []model.Task, lang language.Tag) (*CriticalPath, error) {
	out := &CriticalPath{}
	data := newPromptData(project, tasks, lang)
	data.Project = nil
	if err := a.run(ctx, FlowCriticalPath, project.ID, data, criticalPathSchema, out); err != nil {
		return nil, err
	}

	known := make(map[int64]struct{}, len(tasks))
	for _, t := range tasks {
		known[t.ID] = struct{}{}
	}
	kept := make([]int64, 0, len(out.TaskIDs))
	seen := make(map[int64]struct{}, len(out.TaskIDs))
	for _, id := range out.TaskIDs {
		if _, ok := known[id]; !ok {
			out.DroppedIDs = append(out.DroppedIDs, id)
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		kept = append(kept, id)
	}
	if len(out.DroppedIDs) > 0 {
		a.logger.Warn("Critical path contains unknown task ids",
			zap.Int64("project_id", project.ID),
			zap.Int64s("dropped_ids", out.DroppedIDs))
	}
	out.TaskIDs = kept
	return out, nil
}

// SummarizeAllProjects 组合摘要；模型返回的未知项目会被丢弃
func (a *Analyzer) SummarizeAllProjects(ctx context.Context, entries []PortfolioEntry, lang language.Tag) (*PortfolioSummary, error) {
	data := promptData{Language: i18n.LanguageName(lang)}
	names := make(map[int64]string, len(entries))
	now := a.now()
	for _, e := range entries {
		pc := portfolioContext{projectContext: *newProjectContext(e.Project, e.Tasks)}
		for i := range e.Tasks {
			t := &e.Tasks[i]
			if alert.IsOverdue(t, e.Project.Config, now) {
				pc.OverdueTasks = append(pc.OverdueTasks, t.Name)
			}
		}
		data.Projects = append(data.Projects, pc)
		names[e.Project.ID] = e.Project.Name
	}

	out := &PortfolioSummary{}
	if err := a.run(ctx, FlowSummarizeAllProjects, 0, data, portfolioSchema, out); err != nil {
		return nil, err
	}

	kept := out.Projects[:0]
	for _, p := range out.Projects {
		name, ok := names[p.ProjectID]
		if !ok {
			continue
		}
		p.Name = name
		kept = append(kept, p)
	}
	out.Projects = kept
	return out, nil
}

func (a *Analyzer) run(ctx context.Context, flow string, projectID int64, data promptData, schema *Schema, out result) error {
	prompt, err := render(flow, data)
	if err != nil {
		return err
	}

	key := cacheKey(flow, projectID, prompt)
	if a.cacheEnabled() {
		cached, ok, err := a.cache.Get(ctx, key)
		if err != nil {
			a.logger.Warn("Failed to read ai cache", zap.String("flow", flow), zap.Error(err))
		} else if ok && json.Unmarshal(cached, out) == nil && out.validate() == nil {
			metrics.IncrementAICacheHit(flow)
			a.logger.Debug("AI cache hit", zap.String("flow", flow), zap.Int64("project_id", projectID))
			return nil
		}
	}

	raw, err := a.gen.Generate(ctx, flow, prompt, schema)
	if err != nil {
		a.logger.Error("AI flow failed", zap.String("flow", flow), zap.Int64("project_id", projectID), zap.Error(err))
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	if err := out.validate(); err != nil {
		a.logger.Warn("AI response failed validation", zap.String("flow", flow), zap.Error(err))
		return err
	}

	if a.cacheEnabled() {
		if err := a.cache.Set(ctx, key, raw, a.ttl); err != nil {
			a.logger.Warn("Failed to write ai cache", zap.String("flow", flow), zap.Error(err))
		}
	}
	return nil
}

func (a *Analyzer) cacheEnabled() bool {
	return a.cache != nil && a.ttl > 0
}

func newPromptData(project *model.Project, tasks []model.Task, lang language.Tag) promptData {
	data := promptData{
		Language: i18n.LanguageName(lang),
		Project:  newProjectContext(project, tasks),
		Tasks:    make([]taskContext, 0, len(tasks)),
	}
	for i := range tasks {
		data.Tasks = append(data.Tasks, newTaskContext(&tasks[i]))
	}
	return data
}

func newProjectContext(p *model.Project, tasks []model.Task) *projectContext {
	return &projectContext{
		ID:            p.ID,
		Name:          p.Name,
		Description:   p.Description,
		PlannedStart:  formatDate(p.PlannedStart),
		PlannedEnd:    formatDate(p.PlannedEnd),
		ActualStart:   formatDate(p.ActualStart),
		ActualEnd:     formatDate(p.ActualEnd),
		PlannedBudget: p.PlannedBudget,
		ActualCost:    p.ActualCost,
		CompletionPct: tasktree.Completion(tasks),
		TaskCount:     len(tasks),
		KPIs:          p.KPIs,
	}
}

func newTaskContext(t *model.Task) taskContext {
	tc := taskContext{
		ID:                 t.ID,
		Name:               t.Name,
		Status:             t.Status,
		Priority:           t.Priority,
		Progress:           t.Progress,
		PlannedStart:       formatDate(t.PlannedStart),
		PlannedEnd:         formatDate(t.PlannedEnd),
		ActualStart:        formatDate(t.ActualStart),
		ActualEnd:          formatDate(t.ActualEnd),
		PlannedEffortHours: t.PlannedEffortHours,
		ActualEffortHours:  t.ActualEffortHours,
		Dependencies:       t.Dependencies,
		ParentID:           t.ParentID,
		IsMilestone:        t.IsMilestone,
	}
	if t.Assignee != nil {
		tc.Assignee = t.Assignee.Name
	}
	return tc
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}

func toJSON(v any) (string, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}
