package util

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Deduper 基于 Redis SETNX 的消费去重。Redis 不可用时放行（fail-open）。
type Deduper struct {
	rdb    redis.Cmdable
	ttl    time.Duration
	logger *zap.Logger
}

func NewDeduperWithLogger(rdb redis.Cmdable, ttl time.Duration, logger *zap.Logger) *Deduper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Deduper{rdb: rdb, ttl: ttl, logger: logger}
}

func dedupKey(handler string, id int64) string {
	return fmt.Sprintf("projectflow:dedup:%s:%d", handler, id)
}

// AcquireOnce 第一次处理返回 true，重复消息返回 false
func (d *Deduper) AcquireOnce(ctx context.Context, handler string, id int64) bool {
	key := dedupKey(handler, id)

	ok, err := d.rdb.SetNX(ctx, key, time.Now().Unix(), d.ttl).Result()
	if err != nil {
		d.logger.Warn("Redis dedup check failed, allowing processing",
			zap.String("handler", handler),
			zap.Int64("id", id),
			zap.Error(err),
		)
		return true
	}
	if !ok {
		d.logger.Info("Skipped duplicated event",
			zap.String("handler", handler),
			zap.Int64("id", id),
			zap.String("dedup_key", key),
		)
	}
	return ok
}

// Release 处理失败且需要重投时释放占位，让下一次投递可以重新处理
func (d *Deduper) Release(ctx context.Context, handler string, id int64) {
	if err := d.rdb.Del(ctx, dedupKey(handler, id)).Err(); err != nil {
		d.logger.Warn("Failed to release dedup key",
			zap.String("handler", handler),
			zap.Int64("id", id),
			zap.Error(err),
		)
	}
}
