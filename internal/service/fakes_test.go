package service

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"projectflow/internal/model"
	"projectflow/internal/repository"
)

var errStoreDown = errors.New("connection reset by peer")

type memUsers struct {
	mu     sync.Mutex
	nextID int64
	byID   map[int64]*model.User
}

func newMemUsers() *memUsers {
	return &memUsers{byID: map[int64]*model.User{}}
}

func (m *memUsers) Create(_ context.Context, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.byID {
		if strings.EqualFold(existing.Email, u.Email) {
			return repository.ErrDuplicate
		}
	}
	m.nextID++
	u.ID = m.nextID
	u.CreatedAt = time.Now()
	cp := *u
	m.byID[u.ID] = &cp
	return nil
}

func (m *memUsers) FindByEmail(_ context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memUsers) FindByID(_ context.Context, id int64) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) List(_ context.Context) ([]model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.User, 0, len(m.byID))
	for _, u := range m.byID {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memUsers) Count(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.byID)), nil
}

func (m *memUsers) UpdateRoleStatus(_ context.Context, id int64, role, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.Role, u.Status = role, status
	return nil
}

func (m *memUsers) UpdateNotificationPreference(_ context.Context, id int64, channel, phone string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.NotificationChannel, u.Phone = channel, phone
	return nil
}

// add 直接插入用户，返回 id
func (m *memUsers) add(name, role string) int64 {
	u := &model.User{Name: name, Email: strings.ToLower(name) + "@example.com", Role: role, Status: model.UserStatusActive}
	_ = m.Create(context.Background(), u)
	return u.ID
}

type memProjects struct {
	mu     sync.Mutex
	nextID int64
	byID   map[int64]*model.Project
	users  *memUsers
}

func newMemProjects(users *memUsers) *memProjects {
	return &memProjects{byID: map[int64]*model.Project{}, users: users}
}

func cloneProject(p *model.Project) *model.Project {
	cp := *p
	cp.Team = append([]model.TeamMember{}, p.Team...)
	cp.KPIs = map[string]any{}
	for k, v := range p.KPIs {
		cp.KPIs[k] = v
	}
	return &cp
}

func (m *memProjects) Insert(_ context.Context, p *model.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	p.ID = m.nextID
	m.byID[p.ID] = cloneProject(p)
	return nil
}

func (m *memProjects) FindByID(_ context.Context, id int64) (*model.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneProject(p), nil
}

func (m *memProjects) List(_ context.Context) ([]*model.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.Project, 0)
	for _, p := range m.byID {
		out = append(out, cloneProject(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memProjects) ListForUser(ctx context.Context, userID int64) ([]*model.Project, error) {
	all, _ := m.List(ctx)
	out := make([]*model.Project, 0)
	for _, p := range all {
		if p.HasMember(userID) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memProjects) Update(_ context.Context, p *model.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.byID[p.ID]
	if !ok {
		return repository.ErrNotFound
	}
	cp := cloneProject(p)
	cp.Config, cp.KPIs, cp.Team = old.Config, old.KPIs, old.Team
	m.byID[p.ID] = cp
	return nil
}

func (m *memProjects) UpdateConfig(_ context.Context, id int64, cfg model.ProjectConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	p.Config = cfg
	return nil
}

func (m *memProjects) UpdateKPIs(_ context.Context, id int64, kpis map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	p.KPIs = kpis
	return nil
}

func (m *memProjects) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.byID, id)
	return nil
}

func (m *memProjects) UpsertMember(ctx context.Context, projectID, userID int64, role string) (bool, error) {
	u, err := m.users.FindByID(ctx, userID)
	if err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.byID[projectID]
	for i := range p.Team {
		if p.Team[i].User.ID == userID {
			p.Team[i].Role = role
			return false, nil
		}
	}
	p.Team = append(p.Team, model.TeamMember{User: model.UserRef{ID: u.ID, Name: u.Name, Email: u.Email}, Role: role})
	return true, nil
}

func (m *memProjects) RemoveMember(_ context.Context, projectID, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.byID[projectID]
	for i := range p.Team {
		if p.Team[i].User.ID == userID {
			p.Team = append(p.Team[:i], p.Team[i+1:]...)
			return nil
		}
	}
	return repository.ErrNotFound
}

type memTasks struct {
	mu      sync.Mutex
	nextID  int64
	byID    map[int64]*model.Task
	changes []model.TaskChange
	users   *memUsers
}

func newMemTasks(users *memUsers) *memTasks {
	return &memTasks{byID: map[int64]*model.Task{}, users: users}
}

func cloneTask(t *model.Task) model.Task {
	cp := *t
	cp.Dependencies = append([]int64{}, t.Dependencies...)
	cp.Attachments = append([]model.Attachment{}, t.Attachments...)
	cp.CustomFields = map[string]any{}
	for k, v := range t.CustomFields {
		cp.CustomFields[k] = v
	}
	return cp
}

func (m *memTasks) Insert(_ context.Context, t *model.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	t.ID = m.nextID
	pos := 0
	for _, other := range m.byID {
		if other.ProjectID == t.ProjectID && other.Position >= pos {
			pos = other.Position + 1
		}
	}
	t.Position = pos
	cp := cloneTask(t)
	m.byID[t.ID] = &cp
	return nil
}

func (m *memTasks) FindByID(_ context.Context, id int64) (*model.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := cloneTask(t)
	return &cp, nil
}

func (m *memTasks) ListByProject(_ context.Context, projectID int64) ([]model.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Task, 0)
	for _, t := range m.byID {
		if t.ProjectID == projectID {
			out = append(out, cloneTask(t))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *memTasks) Update(_ context.Context, t *model.Task, changes []model.TaskChange) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[t.ID]; !ok {
		return repository.ErrNotFound
	}
	cp := cloneTask(t)
	m.byID[t.ID] = &cp
	for _, c := range changes {
		c.TaskID = t.ID
		c.ID = int64(len(m.changes) + 1)
		m.changes = append(m.changes, c)
	}
	return nil
}

func (m *memTasks) UpdateRefs(_ context.Context, id int64, deps []int64, parentID *int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	t.Dependencies = append([]int64{}, deps...)
	t.ParentID = parentID
	return nil
}

func (m *memTasks) Delete(_ context.Context, projectID, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.byID, id)
	for _, t := range m.byID {
		if t.ParentID != nil && *t.ParentID == id {
			t.ParentID = nil
		}
		if t.ProjectID != projectID {
			continue
		}
		kept := t.Dependencies[:0]
		for _, d := range t.Dependencies {
			if d != id {
				kept = append(kept, d)
			}
		}
		t.Dependencies = kept
	}
	return nil
}

func (m *memTasks) Reorder(_ context.Context, projectID int64, ids []int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, id := range ids {
		if t, ok := m.byID[id]; ok && t.ProjectID == projectID {
			t.Position = i
		}
	}
	return nil
}

func (m *memTasks) SetCritical(_ context.Context, projectID int64, ids []int64, userID int64, justification string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	critical := map[int64]bool{}
	for _, id := range ids {
		critical[id] = true
	}
	for _, t := range m.byID {
		if t.ProjectID != projectID || t.IsCritical == critical[t.ID] {
			continue
		}
		m.changes = append(m.changes, model.TaskChange{
			ID:            int64(len(m.changes) + 1),
			TaskID:        t.ID,
			Field:         "is_critical",
			OldValue:      strconv.FormatBool(t.IsCritical),
			NewValue:      strconv.FormatBool(critical[t.ID]),
			UserID:        userID,
			Justification: justification,
		})
		t.IsCritical = critical[t.ID]
	}
	return nil
}

func (m *memTasks) ListChanges(_ context.Context, taskID int64) ([]model.TaskChange, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.TaskChange, 0)
	for _, c := range m.changes {
		if c.TaskID == taskID {
			out = append(out, c)
		}
	}
	return out, nil
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []model.Notification
}

func (r *recordingNotifier) Notify(_ context.Context, n *model.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, *n)
	return nil
}

// fixture 一组共享内存存储的服务
type fixture struct {
	users    *memUsers
	projects *memProjects
	tasks    *memTasks
	notifier *recordingNotifier
}

func newFixture() *fixture {
	users := newMemUsers()
	return &fixture{
		users:    users,
		projects: newMemProjects(users),
		tasks:    newMemTasks(users),
		notifier: &recordingNotifier{},
	}
}

// unreachableUsers 模拟用户存储不可用
type unreachableUsers struct {
	*memUsers
}

func (unreachableUsers) FindByID(context.Context, int64) (*model.User, error) {
	return nil, errStoreDown
}
