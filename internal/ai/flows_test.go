package ai

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/text/language"

	"projectflow/internal/model"
)

type fakeGenerator struct {
	responses map[string]string
	err       error
	calls     int
	prompts   []string
}

func (f *fakeGenerator) Generate(_ context.Context, flow, prompt string, _ *Schema) ([]byte, error) {
	f.calls++
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return nil, f.err
	}
	return []byte(f.responses[flow]), nil
}

type memoryCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemoryCache() *memoryCache {
	return &memoryCache{data: make(map[string][]byte)}
}

func (m *memoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memoryCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func sampleProject() (*model.Project, []model.Task) {
	p := &model.Project{ID: 9, Name: "Website", PlannedBudget: 100, ActualCost: 40}
	tasks := []model.Task{
		{ID: 1, Name: "Design", Status: "Done", Progress: 100},
		{ID: 2, Name: "Build", Status: "In Progress", Progress: 30, Dependencies: []int64{1}},
	}
	return p, tasks
}

func TestSummarizeStatus_UsesCache(t *testing.T) {
	gen := &fakeGenerator{responses: map[string]string{FlowSummarizeStatus: `{"summary":"on track","highlights":["design done"],"next_steps":[]}`}}
	a := NewAnalyzer(gen, newMemoryCache(), time.Hour, zap.NewNop())
	p, tasks := sampleProject()

	first, err := a.SummarizeStatus(context.Background(), p, tasks, language.English)
	require.NoError(t, err)
	second, err := a.SummarizeStatus(context.Background(), p, tasks, language.English)
	require.NoError(t, err)

	assert.Equal(t, "on track", first.Summary)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, gen.calls)
	assert.Contains(t, gen.prompts[0], "Answer in English")
	assert.Contains(t, gen.prompts[0], `"name": "Website"`)
}

func TestSummarizeStatus_LanguageChangesPrompt(t *testing.T) {
	gen := &fakeGenerator{responses: map[string]string{FlowSummarizeStatus: `{"summary":"ok"}`}}
	a := NewAnalyzer(gen, nil, 0, zap.NewNop())
	p, tasks := sampleProject()

	_, err := a.SummarizeStatus(context.Background(), p, tasks, language.BrazilianPortuguese)

	require.NoError(t, err)
	assert.Contains(t, gen.prompts[0], "Answer in Brazilian Portuguese")
}

func TestSummarizeStatus_EmptySummaryRejected(t *testing.T) {
	gen := &fakeGenerator{responses: map[string]string{FlowSummarizeStatus: `{"summary":"  "}`}}
	cache := newMemoryCache()
	a := NewAnalyzer(gen, cache, time.Hour, zap.NewNop())
	p, tasks := sampleProject()

	_, err := a.SummarizeStatus(context.Background(), p, tasks, language.English)

	assert.ErrorIs(t, err, ErrBadResponse)
	assert.Empty(t, cache.data)
}

func TestPredictRisks_NormalizesLevels(t *testing.T) {
	gen := &fakeGenerator{responses: map[string]string{FlowPredictRisks: `{"risks":[{"title":"Scope creep","description":"d","likelihood":"High","impact":" medium ","mitigation":"m","task_ids":[2]}]}`}}
	a := NewAnalyzer(gen, nil, 0, zap.NewNop())
	p, tasks := sampleProject()

	report, err := a.PredictRisks(context.Background(), p, tasks, language.English)

	require.NoError(t, err)
	require.Len(t, report.Risks, 1)
	assert.Equal(t, RiskHigh, report.Risks[0].Likelihood)
	assert.Equal(t, RiskMedium, report.Risks[0].Impact)
}

func TestPredictRisks_InvalidLevel(t *testing.T) {
	gen := &fakeGenerator{responses: map[string]string{FlowPredictRisks: `{"risks":[{"title":"x","likelihood":"extreme","impact":"low"}]}`}}
	a := NewAnalyzer(gen, nil, 0, zap.NewNop())
	p, tasks := sampleProject()

	_, err := a.PredictRisks(context.Background(), p, tasks, language.English)

	assert.ErrorIs(t, err, ErrBadResponse)
}

func TestLessonsLearned(t *testing.T) {
	gen := &fakeGenerator{responses: map[string]string{FlowLessonsLearned: `{"went_well":["a"],"improvements":[],"recommendations":["b"]}`}}
	a := NewAnalyzer(gen, nil, 0, zap.NewNop())
	p, tasks := sampleProject()

	out, err := a.LessonsLearned(context.Background(), p, tasks, language.English)

	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, out.WentWell)
	assert.Equal(t, []string{"b"}, out.Recommendations)
}

func TestAnalyzeCriticalPath_DropsUnknownIDs(t *testing.T) {
	gen := &fakeGenerator{responses: map[string]string{FlowCriticalPath: `{"task_ids":[1,42,2,1],"explanation":"design blocks build"}`}}
	a := NewAnalyzer(gen, nil, 0, zap.NewNop())
	p, tasks := sampleProject()

	cp, err := a.AnalyzeCriticalPath(context.Background(), p, tasks, language.English)

	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, cp.TaskIDs)
	assert.Equal(t, []int64{42}, cp.DroppedIDs)
	assert.Equal(t, "design blocks build", cp.Explanation)
	assert.True(t, strings.Contains(gen.prompts[0], `"dependencies": [`))
}

func TestSummarizeAllProjects(t *testing.T) {
	gen := &fakeGenerator{responses: map[string]string{FlowSummarizeAllProjects: `{"summary":"mixed","projects":[{"project_id":9,"health":"AT_RISK","note":"n"},{"project_id":77,"health":"on_track","note":"ghost"}]}`}}
	a := NewAnalyzer(gen, nil, 0, zap.NewNop())
	p, tasks := sampleProject()

	out, err := a.SummarizeAllProjects(context.Background(), []PortfolioEntry{{Project: p, Tasks: tasks}}, language.English)

	require.NoError(t, err)
	require.Len(t, out.Projects, 1)
	assert.Equal(t, HealthAtRisk, out.Projects[0].Health)
	assert.Equal(t, "Website", out.Projects[0].Name)
}

func TestSummarizeAllProjects_OverdueStartsTomorrow(t *testing.T) {
	gen := &fakeGenerator{responses: map[string]string{FlowSummarizeAllProjects: `{"summary":"ok","projects":[]}`}}
	a := NewAnalyzer(gen, nil, 0, zap.NewNop())
	a.now = func() time.Time {
		return time.Date(2026, 3, 10, 10, 0, 0, 0, time.FixedZone("UTC-3", -3*3600))
	}
	today := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	yesterday := today.AddDate(0, 0, -1)
	p := &model.Project{ID: 9, Name: "Website"}
	tasks := []model.Task{
		{ID: 1, Name: "due today", Status: "In Progress", PlannedEnd: &today},
		{ID: 2, Name: "slipped", Status: "In Progress", PlannedEnd: &yesterday},
		{ID: 3, Name: "finished late", Status: "Done", PlannedEnd: &yesterday},
	}

	_, err := a.SummarizeAllProjects(context.Background(), []PortfolioEntry{{Project: p, Tasks: tasks}}, language.English)

	require.NoError(t, err)
	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], `"slipped"`)
	assert.NotContains(t, gen.prompts[0], `"due today"`)
	assert.NotContains(t, gen.prompts[0], `"finished late"`)
}

func TestFlowPropagatesGeneratorError(t *testing.T) {
	gen := &fakeGenerator{err: ErrUnavailable}
	a := NewAnalyzer(gen, nil, 0, zap.NewNop())
	p, tasks := sampleProject()

	_, err := a.SummarizeStatus(context.Background(), p, tasks, language.English)

	assert.True(t, errors.Is(err, ErrUnavailable))
}
