package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/tokmz/relay"

// Span 属性键
const (
	AttrConnectionID = attribute.Key("relay.connection_id")
	AttrFrameSize    = attribute.Key("relay.frame_size")
	AttrRejectReason = attribute.Key("relay.reject_reason")
	AttrMessageType  = attribute.Key("relay.message_type")
)

// StartSpan 启动新 Span
// 每次调用时获取 tracer，Provider 晚于组件初始化时也能生效
func StartSpan(ctx context.Context, spanName string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, spanName, opts...)
}

// StartFrameSpan 单个入站帧的 Span
func StartFrameSpan(ctx context.Context, connectionID string, size int) (context.Context, trace.Span) {
	return StartSpan(ctx, "relay.frame",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			AttrConnectionID.String(connectionID),
			AttrFrameSize.Int(size),
		),
	)
}

// StartRouteSpan 协议层分发的 Span
func StartRouteSpan(ctx context.Context, connectionID, messageType string) (context.Context, trace.Span) {
	return StartSpan(ctx, "relay.route",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			AttrConnectionID.String(connectionID),
			AttrMessageType.String(messageType),
		),
	)
}

// MarkRejected 标记帧被拒绝，拒绝属于正常流程，不设置 Error 状态
func MarkRejected(span trace.Span, reason string) {
	span.SetAttributes(AttrRejectReason.String(reason))
	span.AddEvent("frame rejected")
}

// RecordError 记录错误到 Span
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
