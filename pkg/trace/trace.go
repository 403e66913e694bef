// Package trace 在 HTTP 请求、outbox 事件和 MQ 消息之间传递 trace id
package trace

import (
	"context"

	"github.com/google/uuid"
)

// Header trace id 使用的 HTTP / AMQP 头
const Header = "X-Trace-ID"

// maxLen 外部传入 trace id 的最大长度
const maxLen = 64

type ctxKey struct{}

func GenerateTraceID() string {
	return uuid.NewString()
}

func FromContext(ctx context.Context) string {
	if traceID, ok := ctx.Value(ctxKey{}).(string); ok {
		return traceID
	}
	return ""
}

func WithContext(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, traceID)
}

// Sanitize 外部传入的 trace id 只接受 [A-Za-z0-9._-]，超长或含其它字符时返回空串，
// 防止把任意内容写进日志
func Sanitize(id string) string {
	if id == "" || len(id) > maxLen {
		return ""
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_', c == '.':
		default:
			return ""
		}
	}
	return id
}

// Ensure 保证 ctx 带 trace id。已有则不变；否则取第一个合法的候选值，都没有时生成新的。
func Ensure(ctx context.Context, candidates ...string) (context.Context, string) {
	if id := FromContext(ctx); id != "" {
		return ctx, id
	}
	for _, c := range candidates {
		if id := Sanitize(c); id != "" {
			return WithContext(ctx, id), id
		}
	}
	id := GenerateTraceID()
	return WithContext(ctx, id), id
}
