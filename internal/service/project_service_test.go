package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"projectflow/internal/kpi"
	"projectflow/internal/model"
	"projectflow/pkg/rbac"
)

type projectEnv struct {
	*fixture
	svc      *ProjectService
	admin    Actor
	manager  Actor
	member   Actor
	outsider Actor
	project  *model.Project
}

func newProjectEnv(t *testing.T) *projectEnv {
	t.Helper()
	f := newFixture()
	env := &projectEnv{
		fixture:  f,
		svc:      NewProjectService(f.projects, f.tasks, f.users, f.notifier, zap.NewNop()),
		admin:    Actor{UserID: f.users.add("Admin", rbac.RoleAdmin), Role: rbac.RoleAdmin},
		manager:  Actor{UserID: f.users.add("Manager", rbac.RoleManager), Role: rbac.RoleManager},
		member:   Actor{UserID: f.users.add("Member", rbac.RoleMember), Role: rbac.RoleMember},
		outsider: Actor{UserID: f.users.add("Outsider", rbac.RoleMember), Role: rbac.RoleMember},
	}
	p, err := env.svc.Create(context.Background(), env.manager, ProjectInput{
		Name:          "Website",
		PlannedStart:  "2026-01-01",
		PlannedEnd:    "31/03/2026",
		PlannedBudget: 1000,
		ActualCost:    250,
	})
	require.NoError(t, err)
	_, err = env.svc.AddMember(context.Background(), env.manager, p.ID, env.member.UserID, "developer")
	require.NoError(t, err)
	env.project = p
	return env
}

func TestProjectCreate(t *testing.T) {
	env := newProjectEnv(t)
	ctx := context.Background()

	assert.Equal(t, env.manager.UserID, env.project.ManagerID)
	assert.Equal(t, "2026-03-31", env.project.PlannedEnd.Format("2006-01-02"))
	assert.Len(t, env.project.Config.Statuses, 3)

	_, err := env.svc.Create(ctx, env.member, ProjectInput{Name: "Nope"})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = env.svc.Create(ctx, env.manager, ProjectInput{Name: "Dates", PlannedStart: "2026-02-01", PlannedEnd: "2026-01-01"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = env.svc.Create(ctx, env.manager, ProjectInput{Name: "Money", PlannedBudget: -1})
	assert.ErrorIs(t, err, ErrInvalidInput)

	otherManager := env.member.UserID
	_, err = env.svc.Create(ctx, env.manager, ProjectInput{Name: "Delegated", ManagerID: &otherManager})
	assert.ErrorIs(t, err, ErrForbidden)

	p, err := env.svc.Create(ctx, env.admin, ProjectInput{Name: "Delegated", ManagerID: &otherManager})
	require.NoError(t, err)
	assert.Equal(t, otherManager, p.ManagerID)
}

func TestProjectVisibility(t *testing.T) {
	env := newProjectEnv(t)
	ctx := context.Background()

	_, err := env.svc.Get(ctx, env.outsider, env.project.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	p, err := env.svc.Get(ctx, env.member, env.project.ID)
	require.NoError(t, err)
	assert.Equal(t, "Website", p.Name)

	list, err := env.svc.List(ctx, env.outsider)
	require.NoError(t, err)
	assert.Empty(t, list)

	list, err = env.svc.List(ctx, env.admin)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestProjectUpdateRequiresManager(t *testing.T) {
	env := newProjectEnv(t)
	ctx := context.Background()

	_, err := env.svc.Update(ctx, env.member, env.project.ID, ProjectInput{Name: "Renamed"})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = env.svc.Update(ctx, env.outsider, env.project.ID, ProjectInput{Name: "Renamed"})
	assert.ErrorIs(t, err, ErrNotFound)

	p, err := env.svc.Update(ctx, env.manager, env.project.ID, ProjectInput{Name: "Renamed", ActualCost: 300})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", p.Name)
	assert.Equal(t, 300.0, p.ActualCost)
	assert.Nil(t, p.PlannedStart)

	require.NoError(t, env.svc.Delete(ctx, env.admin, env.project.ID))
	_, err = env.svc.Get(ctx, env.admin, env.project.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAddMember_NotifiesOnlyNewMembers(t *testing.T) {
	env := newProjectEnv(t)
	ctx := context.Background()

	require.Len(t, env.notifier.sent, 1)
	n := env.notifier.sent[0]
	assert.Equal(t, env.member.UserID, n.UserID)
	assert.Equal(t, model.NotificationTeamAdded, n.Kind)
	assert.Equal(t, env.project.ID, *n.ProjectID)

	p, err := env.svc.AddMember(ctx, env.manager, env.project.ID, env.member.UserID, "tester")
	require.NoError(t, err)
	assert.Len(t, env.notifier.sent, 1)
	require.Len(t, p.Team, 1)
	assert.Equal(t, "tester", p.Team[0].Role)

	_, err = env.svc.AddMember(ctx, env.manager, env.project.ID, 999, "ghost")
	assert.ErrorIs(t, err, ErrInvalidInput)

	require.NoError(t, env.svc.RemoveMember(ctx, env.manager, env.project.ID, env.member.UserID))
	_, err = env.svc.Get(ctx, env.member, env.project.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestProjectConfig(t *testing.T) {
	env := newProjectEnv(t)
	ctx := context.Background()

	cfg, err := env.svc.GetConfig(ctx, env.member, env.project.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DefaultStatuses(), cfg.Statuses)

	_, err = env.svc.UpdateConfig(ctx, env.member, env.project.ID, model.ProjectConfig{})
	assert.ErrorIs(t, err, ErrForbidden)

	bad := model.ProjectConfig{Statuses: []model.StatusDefinition{{Name: "Open"}, {Name: "Open"}}}
	_, err = env.svc.UpdateConfig(ctx, env.manager, env.project.ID, bad)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	good := model.ProjectConfig{
		Statuses:     []model.StatusDefinition{{Name: " Backlog "}, {Name: "Shipped", IsCompleted: true}},
		CustomFields: []model.CustomField{{Key: "sprint", Type: model.FieldTypeNumber}},
		CustomCharts: []model.CustomChart{{Title: "By status", Type: "bar", Metric: "task_count"}},
		AlertRules:   []model.AlertRule{{Metric: model.MetricBudgetUsage, Condition: model.ConditionExceedsPercentage, Value: "80"}},
	}
	saved, err := env.svc.UpdateConfig(ctx, env.manager, env.project.ID, good)
	require.NoError(t, err)
	assert.Equal(t, "Backlog", saved.Statuses[0].Name)
	assert.NotEmpty(t, saved.CustomCharts[0].ID)
	assert.NotEmpty(t, saved.AlertRules[0].ID)
}

func TestProjectKPIs(t *testing.T) {
	env := newProjectEnv(t)
	ctx := context.Background()
	env.svc.now = func() time.Time { return time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC) }

	require.NoError(t, env.svc.UpdateKPIs(ctx, env.manager, env.project.ID, map[string]any{"nps": 72.0, kpi.KeyTaskCount: 99}))
	assert.ErrorIs(t, env.svc.UpdateKPIs(ctx, env.member, env.project.ID, map[string]any{}), ErrForbidden)

	require.NoError(t, env.tasks.Insert(ctx, &model.Task{ProjectID: env.project.ID, Name: "A", Status: "Done", Progress: 100}))
	require.NoError(t, env.tasks.Insert(ctx, &model.Task{ProjectID: env.project.ID, Name: "B", Status: "To Do"}))

	kpis, err := env.svc.KPIs(ctx, env.member, env.project.ID)
	require.NoError(t, err)
	assert.Equal(t, 72.0, kpis["nps"])
	assert.Equal(t, 2, kpis[kpi.KeyTaskCount])
	assert.Equal(t, 25.0, kpis[kpi.KeyBudgetUsagePct])
}
