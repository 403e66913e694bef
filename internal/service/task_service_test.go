package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"projectflow/internal/model"
	"projectflow/internal/tasktree"
)

type taskEnv struct {
	*projectEnv
	tasksSvc *TaskService
}

func newTaskEnv(t *testing.T) *taskEnv {
	env := newProjectEnv(t)
	env.notifier.sent = nil
	return &taskEnv{
		projectEnv: env,
		tasksSvc:   NewTaskService(env.projects, env.tasks, env.users, env.notifier, zap.NewNop()),
	}
}

func (e *taskEnv) create(t *testing.T, in TaskInput) *model.Task {
	t.Helper()
	task, err := e.tasksSvc.Create(context.Background(), e.manager, e.project.ID, in)
	require.NoError(t, err)
	return task
}

func TestTaskCreate_Defaults(t *testing.T) {
	env := newTaskEnv(t)

	task := env.create(t, TaskInput{Name: "  Design  "})

	assert.Equal(t, "Design", task.Name)
	assert.Equal(t, "To Do", task.Status)
	assert.Equal(t, model.PriorityMedium, task.Priority)
	assert.Equal(t, 0, task.Position)
	assert.Equal(t, 1, env.create(t, TaskInput{Name: "Build"}).Position)
}

func TestTaskCreate_AssigneeLookup(t *testing.T) {
	env := newTaskEnv(t)
	ctx := context.Background()
	missing := int64(9999)

	_, err := env.tasksSvc.Create(ctx, env.manager, env.project.ID, TaskInput{Name: "A", AssigneeID: &missing})
	assert.ErrorIs(t, err, ErrInvalidInput)

	svc := NewTaskService(env.projects, env.tasks, unreachableUsers{env.users}, env.notifier, zap.NewNop())
	assignee := env.member.UserID
	_, err = svc.Create(ctx, env.manager, env.project.ID, TaskInput{Name: "A", AssigneeID: &assignee})
	assert.ErrorIs(t, err, errStoreDown)
	assert.NotErrorIs(t, err, ErrInvalidInput)
}

func TestTaskCreate_Validation(t *testing.T) {
	env := newTaskEnv(t)
	ctx := context.Background()
	pid := env.project.ID
	missing := int64(999)

	cases := []struct {
		name string
		in   TaskInput
		want error
	}{
		{"unknown status", TaskInput{Name: "A", Status: "Blocked"}, ErrInvalidStatus},
		{"unknown priority", TaskInput{Name: "A", Priority: "urgent"}, ErrInvalidInput},
		{"progress out of range", TaskInput{Name: "A", Progress: 101}, ErrInvalidInput},
		{"dates reversed", TaskInput{Name: "A", PlannedStart: "2026-02-02", PlannedEnd: "2026-02-01"}, ErrInvalidInput},
		{"bad date", TaskInput{Name: "A", PlannedStart: "tomorrow"}, ErrInvalidInput},
		{"missing parent", TaskInput{Name: "A", ParentID: &missing}, ErrInvalidParent},
		{"missing dependency", TaskInput{Name: "A", Dependencies: []int64{missing}}, ErrInvalidDependency},
		{"missing assignee", TaskInput{Name: "A", AssigneeID: &missing}, ErrInvalidInput},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.tasksSvc.Create(ctx, env.manager, pid, tc.in)
			assert.ErrorIs(t, err, tc.want)
		})
	}

	_, err := env.tasksSvc.Create(ctx, env.outsider, pid, TaskInput{Name: "A"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTaskCreate_CustomFieldTypes(t *testing.T) {
	env := newTaskEnv(t)
	ctx := context.Background()
	_, err := env.svc.UpdateConfig(ctx, env.manager, env.project.ID, model.ProjectConfig{
		CustomFields: []model.CustomField{
			{Key: "points", Type: model.FieldTypeNumber},
			{Key: "team", Type: model.FieldTypeSelect, Options: []string{"Core", "QA"}},
		},
	})
	require.NoError(t, err)

	_, err = env.tasksSvc.Create(ctx, env.manager, env.project.ID, TaskInput{Name: "A", CustomFields: map[string]any{"points": "three"}})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = env.tasksSvc.Create(ctx, env.manager, env.project.ID, TaskInput{Name: "A", CustomFields: map[string]any{"team": "Ops"}})
	assert.ErrorIs(t, err, ErrInvalidInput)

	task := env.create(t, TaskInput{Name: "A", CustomFields: map[string]any{"points": 3.0, "team": "QA", "free": "kept"}})
	assert.Equal(t, "kept", task.CustomFields["free"])
}

func TestTaskUpdate_RecordsHistory(t *testing.T) {
	env := newTaskEnv(t)
	ctx := context.Background()
	task := env.create(t, TaskInput{Name: "Design"})

	updated, err := env.tasksSvc.Update(ctx, env.member, task.ID, TaskInput{
		Name:          "Design",
		Status:        "In Progress",
		Progress:      40,
		Justification: "kickoff done",
	})
	require.NoError(t, err)
	assert.Equal(t, "In Progress", updated.Status)

	history, err := env.tasksSvc.History(ctx, env.member, task.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "status", history[0].Field)
	assert.Equal(t, "To Do", history[0].OldValue)
	assert.Equal(t, "In Progress", history[0].NewValue)
	assert.Equal(t, "kickoff done", history[0].Justification)
	assert.Equal(t, env.member.UserID, history[0].UserID)
	assert.Equal(t, "progress", history[1].Field)

	_, err = env.tasksSvc.Update(ctx, env.member, task.ID, TaskInput{Name: "Design", Status: "In Progress", Progress: 40})
	require.NoError(t, err)
	history, err = env.tasksSvc.History(ctx, env.member, task.ID)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestTaskAssignment_Notifications(t *testing.T) {
	env := newTaskEnv(t)
	ctx := context.Background()
	memberID := env.member.UserID

	task := env.create(t, TaskInput{Name: "Design", AssigneeID: &memberID})
	require.Len(t, env.notifier.sent, 1)
	n := env.notifier.sent[0]
	assert.Equal(t, memberID, n.UserID)
	assert.Equal(t, model.NotificationTaskAssigned, n.Kind)
	assert.Equal(t, task.ID, *n.TaskID)

	// 负责人未变化时不再通知
	_, err := env.tasksSvc.Update(ctx, env.manager, task.ID, TaskInput{Name: "Design v2", AssigneeID: &memberID})
	require.NoError(t, err)
	assert.Len(t, env.notifier.sent, 1)

	// 自己指派给自己不通知
	managerID := env.manager.UserID
	_, err = env.tasksSvc.Update(ctx, env.manager, task.ID, TaskInput{Name: "Design v2", AssigneeID: &managerID})
	require.NoError(t, err)
	assert.Len(t, env.notifier.sent, 1)
}

func TestTaskUpdate_RejectsCycles(t *testing.T) {
	env := newTaskEnv(t)
	ctx := context.Background()
	a := env.create(t, TaskInput{Name: "A"})
	b := env.create(t, TaskInput{Name: "B", Dependencies: []int64{a.ID, a.ID}, ParentID: &a.ID})
	assert.Equal(t, []int64{a.ID}, b.Dependencies)

	_, err := env.tasksSvc.Update(ctx, env.manager, a.ID, TaskInput{Name: "A", Dependencies: []int64{b.ID}})
	assert.ErrorIs(t, err, ErrDependencyCycle)

	_, err = env.tasksSvc.Update(ctx, env.manager, a.ID, TaskInput{Name: "A", ParentID: &b.ID})
	assert.ErrorIs(t, err, ErrInvalidParent)

	_, err = env.tasksSvc.Update(ctx, env.manager, a.ID, TaskInput{Name: "A", Dependencies: []int64{a.ID}})
	assert.ErrorIs(t, err, ErrInvalidDependency)
}

func TestTaskDelete(t *testing.T) {
	env := newTaskEnv(t)
	ctx := context.Background()
	a := env.create(t, TaskInput{Name: "A"})
	b := env.create(t, TaskInput{Name: "B", Dependencies: []int64{a.ID}, ParentID: &a.ID})

	assert.ErrorIs(t, env.tasksSvc.Delete(ctx, env.member, a.ID), ErrForbidden)
	require.NoError(t, env.tasksSvc.Delete(ctx, env.manager, a.ID))

	got, err := env.tasksSvc.Get(ctx, env.member, b.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Dependencies)
	assert.Nil(t, got.ParentID)

	_, err = env.tasksSvc.Get(ctx, env.member, a.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTaskReorder(t *testing.T) {
	env := newTaskEnv(t)
	ctx := context.Background()
	a := env.create(t, TaskInput{Name: "A"})
	b := env.create(t, TaskInput{Name: "B"})
	c := env.create(t, TaskInput{Name: "C"})

	_, err := env.tasksSvc.Reorder(ctx, env.member, env.project.ID, []int64{c.ID, a.ID})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = env.tasksSvc.Reorder(ctx, env.member, env.project.ID, []int64{c.ID, a.ID, a.ID})
	assert.ErrorIs(t, err, ErrInvalidInput)

	tasks, err := env.tasksSvc.Reorder(ctx, env.member, env.project.ID, []int64{c.ID, a.ID, b.ID})
	require.NoError(t, err)
	require.Len(t, tasks, 3)
	assert.Equal(t, []string{"C", "A", "B"}, []string{tasks[0].Name, tasks[1].Name, tasks[2].Name})
}

func TestTaskTree(t *testing.T) {
	env := newTaskEnv(t)
	ctx := context.Background()
	a := env.create(t, TaskInput{Name: "Phase 1"})
	env.create(t, TaskInput{Name: "Wireframes", ParentID: &a.ID})
	env.create(t, TaskInput{Name: "Phase 2"})

	nodes, err := env.tasksSvc.Tree(ctx, env.member, env.project.ID, tasktree.Criteria{})
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	require.Len(t, nodes[0].Children, 1)
	assert.Equal(t, "Wireframes", nodes[0].Children[0].Task.Name)
}

func TestTaskAttachments(t *testing.T) {
	env := newTaskEnv(t)
	ctx := context.Background()
	task := env.create(t, TaskInput{Name: "A"})

	_, err := env.tasksSvc.AddAttachment(ctx, env.member, task.ID, "spec.pdf", "")
	assert.ErrorIs(t, err, ErrInvalidInput)

	att, err := env.tasksSvc.AddAttachment(ctx, env.member, task.ID, "spec.pdf", "https://files.example.com/spec.pdf")
	require.NoError(t, err)
	got, err := env.tasksSvc.Get(ctx, env.member, task.ID)
	require.NoError(t, err)
	require.Len(t, got.Attachments, 1)
	assert.Equal(t, env.member.UserID, got.Attachments[0].UploadedBy)

	assert.ErrorIs(t, env.tasksSvc.RemoveAttachment(ctx, env.member, task.ID, "nope"), ErrNotFound)
	require.NoError(t, env.tasksSvc.RemoveAttachment(ctx, env.member, task.ID, att.ID))
	got, err = env.tasksSvc.Get(ctx, env.member, task.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Attachments)
}

func TestSetCustomFields(t *testing.T) {
	env := newTaskEnv(t)
	ctx := context.Background()
	task := env.create(t, TaskInput{Name: "A", CustomFields: map[string]any{"sprint": "3"}})

	got, err := env.tasksSvc.SetCustomFields(ctx, env.member, task.ID, map[string]any{"sprint": "4"})
	require.NoError(t, err)
	assert.Equal(t, "4", got.CustomFields["sprint"])

	history, err := env.tasksSvc.History(ctx, env.member, task.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "custom:sprint", history[0].Field)
}
