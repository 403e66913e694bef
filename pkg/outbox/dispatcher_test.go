package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"projectflow/pkg/trace"
)

type fakeStore struct {
	pending []*Event
	sent    []int64
	failed  []int64
}

func (s *fakeStore) GetPendingEvents(ctx context.Context, limit int) ([]*Event, error) {
	return s.pending, nil
}

func (s *fakeStore) MarkAsSent(ctx context.Context, eventID int64) error {
	s.sent = append(s.sent, eventID)
	return nil
}

func (s *fakeStore) MarkAsFailed(ctx context.Context, eventID int64, maxRetries int) error {
	s.failed = append(s.failed, eventID)
	return nil
}

type published struct {
	routingKey string
	body       []byte
	traceID    string
}

type fakePublisher struct {
	failKeys map[string]bool
	out      []published
}

func (p *fakePublisher) PublishWithContext(ctx context.Context, routingKey string, payload any) error {
	if p.failKeys[routingKey] {
		return errors.New("broker down")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	p.out = append(p.out, published{routingKey: routingKey, body: body, traceID: trace.FromContext(ctx)})
	return nil
}

func TestDispatcher_DispatchOnce(t *testing.T) {
	store := &fakeStore{pending: []*Event{
		{ID: 1, RoutingKey: "notification.created", Payload: json.RawMessage(`{"notification_id":7,"trace_id":"t-1"}`)},
		{ID: 2, RoutingKey: "broken", Payload: json.RawMessage(`{}`)},
	}}
	pub := &fakePublisher{failKeys: map[string]bool{"broken": true}}

	sent := NewDispatcher(store, pub, zap.NewNop()).DispatchOnce(context.Background())

	assert.Equal(t, 1, sent)
	assert.Equal(t, []int64{1}, store.sent)
	assert.Equal(t, []int64{2}, store.failed)
	require.Len(t, pub.out, 1)
	assert.JSONEq(t, `{"notification_id":7,"trace_id":"t-1"}`, string(pub.out[0].body))
	assert.Equal(t, "t-1", pub.out[0].traceID)
}

func TestNextAttempt(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	status, next := nextAttempt(1, 5, now)
	assert.Equal(t, StatusPending, status)
	require.NotNil(t, next)
	assert.Equal(t, now.Add(5*time.Second), *next)

	_, next = nextAttempt(3, 5, now)
	assert.Equal(t, now.Add(20*time.Second), *next)

	status, next = nextAttempt(5, 5, now)
	assert.Equal(t, StatusFailed, status)
	assert.Nil(t, next)
}
