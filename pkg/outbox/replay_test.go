package outbox

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeReplayStore struct {
	failed    []*Event
	lastLimit int
	reset     []int64
	broken    map[int64]bool
}

func (s *fakeReplayStore) GetFailedEvents(_ context.Context, limit int) ([]*Event, error) {
	s.lastLimit = limit
	return s.failed, nil
}

func (s *fakeReplayStore) ResetForReplay(_ context.Context, eventID int64) error {
	if s.broken[eventID] {
		return errors.New("deadlock detected")
	}
	for _, e := range s.failed {
		if e.ID == eventID {
			s.reset = append(s.reset, eventID)
			return nil
		}
	}
	return ErrEventNotFound
}

func TestReplayService_ReplayEvent(t *testing.T) {
	store := &fakeReplayStore{failed: []*Event{{ID: 1, Status: StatusFailed}}}
	svc := NewReplayService(store, zap.NewNop())

	require.NoError(t, svc.ReplayEvent(context.Background(), 1))
	assert.Equal(t, []int64{1}, store.reset)

	assert.ErrorIs(t, svc.ReplayEvent(context.Background(), 99), ErrEventNotFound)
}

func TestReplayService_ReplayFailedEvents(t *testing.T) {
	store := &fakeReplayStore{
		failed: []*Event{{ID: 1}, {ID: 2}, {ID: 3}},
		broken: map[int64]bool{2: true},
	}
	svc := NewReplayService(store, zap.NewNop())

	n, err := svc.ReplayFailedEvents(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []int64{1, 3}, store.reset)
	assert.Equal(t, MaxReplayBatch, store.lastLimit)

	_, err = svc.ListFailed(context.Background(), 20)
	require.NoError(t, err)
	assert.Equal(t, 20, store.lastLimit)
}

func TestReplayService_StopsOnCancel(t *testing.T) {
	store := &fakeReplayStore{failed: []*Event{{ID: 1}, {ID: 2}}}
	svc := NewReplayService(store, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	n, err := svc.ReplayFailedEvents(ctx, 10)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, n)
	assert.Empty(t, store.reset)
}
