package logger

import "context"

// contextKey 日志上下文键
type contextKey string

const (
	traceIDKey      contextKey = "trace_id"
	connectionIDKey contextKey = "connection_id"
)

// WithTraceID 在 context 中记录 TraceID
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// WithConnectionID 在 context 中记录连接 ID，日志自动携带 connection_id 字段
func WithConnectionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, connectionIDKey, id)
}

// ConnectionIDFrom 读取 context 中的连接 ID
func ConnectionIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(connectionIDKey).(string)
	return id
}
