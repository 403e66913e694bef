package outbox

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// MaxReplayBatch 单次批量重放的上限
const MaxReplayBatch = 500

// ReplayStore 由 Repository 实现
type ReplayStore interface {
	GetFailedEvents(ctx context.Context, limit int) ([]*Event, error)
	ResetForReplay(ctx context.Context, eventID int64) error
}

// ReplayService 管理员重放 failed 状态的 outbox 事件
type ReplayService struct {
	store  ReplayStore
	logger *zap.Logger
}

func NewReplayService(store ReplayStore, logger *zap.Logger) *ReplayService {
	return &ReplayService{store: store, logger: logger}
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > MaxReplayBatch {
		return MaxReplayBatch
	}
	return limit
}

func (s *ReplayService) ListFailed(ctx context.Context, limit int) ([]*Event, error) {
	return s.store.GetFailedEvents(ctx, clampLimit(limit))
}

// ReplayEvent 把事件重新放回待发送队列，由 Dispatcher 负责发布
func (s *ReplayService) ReplayEvent(ctx context.Context, eventID int64) error {
	if err := s.store.ResetForReplay(ctx, eventID); err != nil {
		if errors.Is(err, ErrEventNotFound) {
			return err
		}
		return fmt.Errorf("failed to replay event %d: %w", eventID, err)
	}
	s.logger.Info("Outbox event queued for replay", zap.Int64("event_id", eventID))
	return nil
}

// ReplayFailedEvents 逐个重置失败事件，返回重新排队的数量。
// 单个事件失败只记录；ctx 取消时停止并返回已完成的数量。
func (s *ReplayService) ReplayFailedEvents(ctx context.Context, limit int) (int, error) {
	events, err := s.store.GetFailedEvents(ctx, clampLimit(limit))
	if err != nil {
		return 0, fmt.Errorf("failed to get failed events: %w", err)
	}

	count := 0
	for _, event := range events {
		if err := ctx.Err(); err != nil {
			return count, err
		}
		if err := s.ReplayEvent(ctx, event.ID); err != nil {
			s.logger.Warn("Failed to replay event", zap.Int64("event_id", event.ID), zap.Error(err))
			continue
		}
		count++
	}
	s.logger.Info("Failed outbox events replayed", zap.Int("requested", len(events)), zap.Int("replayed", count))
	return count, nil
}
