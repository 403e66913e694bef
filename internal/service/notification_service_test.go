package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"projectflow/internal/model"
	"projectflow/internal/repository"
	"projectflow/pkg/trace"
)

type memNotifications struct {
	items     []model.Notification
	traceIDs  []string
	lastLimit int
}

func (m *memNotifications) Create(_ context.Context, n *model.Notification, traceID string) error {
	n.ID = int64(len(m.items) + 1)
	m.items = append(m.items, *n)
	m.traceIDs = append(m.traceIDs, traceID)
	return nil
}

func (m *memNotifications) ListByUser(_ context.Context, userID int64, unreadOnly bool, limit int) ([]model.Notification, error) {
	m.lastLimit = limit
	out := []model.Notification{}
	for _, n := range m.items {
		if n.UserID == userID && (!unreadOnly || !n.IsRead) {
			out = append(out, n)
		}
	}
	return out, nil
}

func (m *memNotifications) MarkRead(_ context.Context, userID, id int64) error {
	for i := range m.items {
		if m.items[i].ID == id && m.items[i].UserID == userID {
			m.items[i].IsRead = true
			return nil
		}
	}
	return repository.ErrNotFound
}

func (m *memNotifications) MarkAllRead(_ context.Context, userID int64) (int64, error) {
	var n int64
	for i := range m.items {
		if m.items[i].UserID == userID && !m.items[i].IsRead {
			m.items[i].IsRead = true
			n++
		}
	}
	return n, nil
}

func TestNotificationService(t *testing.T) {
	store := &memNotifications{}
	svc := NewNotificationService(store, zap.NewNop())
	ctx := trace.WithContext(context.Background(), "trace-1")

	require.NoError(t, svc.Notify(ctx, &model.Notification{UserID: 1, Kind: model.NotificationTeamAdded, Message: "a"}))
	require.NoError(t, svc.Notify(ctx, &model.Notification{UserID: 1, Kind: model.NotificationTaskAssigned, Message: "b"}))
	require.NoError(t, svc.Notify(ctx, &model.Notification{UserID: 2, Kind: model.NotificationTaskAssigned, Message: "c"}))
	assert.Equal(t, []string{"trace-1", "trace-1", "trace-1"}, store.traceIDs)

	list, err := svc.List(ctx, 1, false, 1000)
	require.NoError(t, err)
	assert.Len(t, list, 2)
	assert.Equal(t, DefaultNotificationLimit, store.lastLimit)

	require.NoError(t, svc.MarkRead(ctx, 1, 1))
	assert.ErrorIs(t, svc.MarkRead(ctx, 1, 3), ErrNotFound)

	unread, err := svc.List(ctx, 1, true, 10)
	require.NoError(t, err)
	require.Len(t, unread, 1)
	assert.Equal(t, "b", unread[0].Message)

	n, err := svc.MarkAllRead(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
