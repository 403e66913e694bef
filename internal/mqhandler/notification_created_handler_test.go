package mqhandler

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"projectflow/internal/model"
	"projectflow/internal/repository"
	"projectflow/pkg/trace"
	"projectflow/pkg/util"
)

type fakeUsers map[int64]*model.User

func (f fakeUsers) FindByID(_ context.Context, id int64) (*model.User, error) {
	u, ok := f[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return u, nil
}

type failingUsers struct{}

func (failingUsers) FindByID(context.Context, int64) (*model.User, error) {
	return nil, errors.New("connection reset by peer")
}

type memDeduper struct {
	seen map[int64]bool
}

func (d *memDeduper) AcquireOnce(_ context.Context, _ string, id int64) bool {
	if d.seen[id] {
		return false
	}
	d.seen[id] = true
	return true
}

func (d *memDeduper) Release(_ context.Context, _ string, id int64) {
	delete(d.seen, id)
}

type recordingSender struct {
	calls []int64
	err   error
}

func (s *recordingSender) Send(_ context.Context, _ *model.User, p *model.NotificationCreatedPayload) error {
	s.calls = append(s.calls, p.NotificationID)
	return s.err
}

type recordingHub struct {
	published []*model.Notification
	traces    []string
	err       error
}

func (h *recordingHub) Publish(ctx context.Context, n *model.Notification) (int64, error) {
	h.published = append(h.published, n)
	h.traces = append(h.traces, trace.FromContext(ctx))
	return 1, h.err
}

type handlerEnv struct {
	handler  *NotificationCreatedHandler
	whatsapp *recordingSender
	email    *recordingSender
	hub      *recordingHub
}

func newHandlerEnv(users UserFinder) *handlerEnv {
	env := &handlerEnv{
		whatsapp: &recordingSender{},
		email:    &recordingSender{},
		hub:      &recordingHub{},
	}
	env.handler = NewNotificationCreatedHandler(
		users,
		&memDeduper{seen: map[int64]bool{}},
		map[string]Sender{
			model.ChannelWhatsApp: env.whatsapp,
			model.ChannelEmail:    env.email,
		},
		env.hub,
		zap.NewNop(),
	)
	return env
}

func payload(t *testing.T, id, userID int64) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(model.NotificationCreatedPayload{
		NotificationID: id,
		UserID:         userID,
		Kind:           "task_assigned",
		Message:        "You were assigned to \"Design\"",
		CreatedAt:      time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		TraceID:        "trace-abc",
	})
	require.NoError(t, err)
	return raw
}

func defaultUsers() fakeUsers {
	return fakeUsers{
		1: {ID: 1, Name: "Ana", NotificationChannel: model.ChannelWhatsApp, Phone: "+5511999990000"},
		2: {ID: 2, Name: "Bruno", NotificationChannel: model.ChannelEmail},
		3: {ID: 3, Name: "Carla", NotificationChannel: model.ChannelNone},
	}
}

func TestHandle_RoutesByPreference(t *testing.T) {
	env := newHandlerEnv(defaultUsers())
	ctx := context.Background()

	require.NoError(t, env.handler.Handle(ctx, payload(t, 10, 1)))
	require.NoError(t, env.handler.Handle(ctx, payload(t, 11, 2)))
	require.NoError(t, env.handler.Handle(ctx, payload(t, 12, 3)))

	assert.Equal(t, []int64{10}, env.whatsapp.calls)
	assert.Equal(t, []int64{11}, env.email.calls)

	// 无论渠道如何都推送到实时频道
	require.Len(t, env.hub.published, 3)
	assert.Equal(t, int64(12), env.hub.published[2].ID)
	assert.Equal(t, int64(3), env.hub.published[2].UserID)
	assert.Equal(t, "task_assigned", env.hub.published[0].Kind)
}

func TestHandle_Duplicate(t *testing.T) {
	env := newHandlerEnv(defaultUsers())
	ctx := context.Background()

	require.NoError(t, env.handler.Handle(ctx, payload(t, 20, 1)))
	require.NoError(t, env.handler.Handle(ctx, payload(t, 20, 1)))

	assert.Len(t, env.whatsapp.calls, 1)
	assert.Len(t, env.hub.published, 1)
}

func TestHandle_TraceFromPayload(t *testing.T) {
	env := newHandlerEnv(defaultUsers())

	require.NoError(t, env.handler.Handle(context.Background(), payload(t, 30, 2)))
	require.NoError(t, env.handler.Handle(trace.WithContext(context.Background(), "from-header"), payload(t, 31, 2)))

	assert.Equal(t, []string{"trace-abc", "from-header"}, env.hub.traces)
}

func TestHandle_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("malformed payload is permanent", func(t *testing.T) {
		env := newHandlerEnv(defaultUsers())
		err := env.handler.Handle(ctx, json.RawMessage(`{"notification_id":`))
		require.Error(t, err)
		retryable, _ := util.IsRetryableError(err)
		assert.False(t, retryable)
	})

	t.Run("unknown user is permanent", func(t *testing.T) {
		env := newHandlerEnv(defaultUsers())
		err := env.handler.Handle(ctx, payload(t, 40, 99))
		require.ErrorIs(t, err, util.ErrPermanent)
		assert.Empty(t, env.hub.published)
	})

	t.Run("lookup failure is retried", func(t *testing.T) {
		env := newHandlerEnv(failingUsers{})
		err := env.handler.Handle(ctx, payload(t, 41, 1))
		require.Error(t, err)
		assert.NotErrorIs(t, err, util.ErrPermanent)

		// 占位已释放，重投时会再次尝试
		err = env.handler.Handle(ctx, payload(t, 41, 1))
		assert.Error(t, err)
	})

	t.Run("sender and hub failures are swallowed", func(t *testing.T) {
		env := newHandlerEnv(defaultUsers())
		env.whatsapp.err = ErrNoPhone
		env.hub.err = errors.New("redis down")
		require.NoError(t, env.handler.Handle(ctx, payload(t, 42, 1)))
		assert.Len(t, env.whatsapp.calls, 1)
	})
}

func TestWhatsAppSender_RequiresPhone(t *testing.T) {
	s := NewWhatsAppSender(zap.NewNop())
	p := &model.NotificationCreatedPayload{NotificationID: 1}

	err := s.Send(context.Background(), &model.User{ID: 1}, p)
	assert.ErrorIs(t, err, ErrNoPhone)
	assert.NoError(t, s.Send(context.Background(), &model.User{ID: 1, Phone: "+5511988887777"}, p))
}
