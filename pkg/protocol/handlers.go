package protocol

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// 内置消息类型
const (
	TypeEvent = "EVENT"
	TypeReq   = "REQ"
	TypeClose = "CLOSE"
)

// EventPayload EVENT 消息的事件体，仅解析记录日志所需字段
type EventPayload struct {
	ID        string `json:"id"`
	PubKey    string `json:"pubkey"`
	Kind      int    `json:"kind"`
	CreatedAt int64  `json:"created_at"`
}

// RegisterDefaults 注册 EVENT / REQ / CLOSE 的日志处理器
func (r *Router) RegisterDefaults() error {
	if err := Handle(r, TypeEvent, r.logEvent); err != nil {
		return err
	}
	if err := Handle(r, TypeReq, r.logRequest); err != nil {
		return err
	}
	return Handle(r, TypeClose, r.logClose)
}

func (r *Router) logEvent(ctx context.Context, msg *Message, ev EventPayload) error {
	r.log.InfoContext(ctx, "event received",
		zap.String("event_id", ev.ID),
		zap.Int("kind", ev.Kind),
		zap.Time("created_at", time.Unix(ev.CreatedAt, 0)),
	)
	return nil
}

func (r *Router) logRequest(ctx context.Context, msg *Message, subscriptionID string) error {
	r.log.InfoContext(ctx, "request received",
		zap.String("subscription_id", subscriptionID),
		zap.Int("filters", len(msg.Elements)-1),
	)
	return nil
}

func (r *Router) logClose(ctx context.Context, _ *Message, subscriptionID string) error {
	r.log.InfoContext(ctx, "close received", zap.String("subscription_id", subscriptionID))
	return nil
}

// Logging 记录每条消息处理耗时的中间件
func (r *Router) Logging() MiddlewareFunc {
	return func(ctx context.Context, msg *Message, next NextFunc) error {
		start := time.Now()
		err := next()
		r.log.DebugContext(ctx, "message handled",
			zap.String("type", msg.Type),
			zap.Duration("latency", time.Since(start)),
			zap.Error(err),
		)
		return err
	}
}
