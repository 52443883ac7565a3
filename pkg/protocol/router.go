package protocol

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tokmz/relay/pkg/bus"
	"github.com/tokmz/relay/pkg/logger"
	"github.com/tokmz/relay/pkg/tracing"
	"github.com/tokmz/relay/pkg/ws"
)

// Handler 消息处理器
type Handler func(ctx context.Context, msg *Message) error

// NextFunc 中间件下一步函数
type NextFunc func() error

// MiddlewareFunc 中间件函数
type MiddlewareFunc func(ctx context.Context, msg *Message, next NextFunc) error

// Router 消息路由器
type Router struct {
	handlers   map[string]Handler
	middleware []MiddlewareFunc
	compiled   map[string]Handler // 预编译的处理器链
	mu         sync.RWMutex
	frozen     bool
	log        logger.Logger
}

// Option 路由器选项
type Option func(*Router)

// WithLogger 设置日志
func WithLogger(l logger.Logger) Option {
	return func(r *Router) {
		r.log = l
	}
}

// NewRouter 创建路由器
func NewRouter(opts ...Option) *Router {
	r := &Router{
		handlers: make(map[string]Handler),
		log:      logger.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register 注册处理器
func (r *Router) Register(kind string, handler Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return ErrRouterFrozen
	}
	if _, exists := r.handlers[kind]; exists {
		return ErrHandlerExists
	}

	r.handlers[kind] = handler
	return nil
}

// Use 添加中间件，冻结后调用无效
func (r *Router) Use(middleware ...MiddlewareFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return
	}
	r.middleware = append(r.middleware, middleware...)
}

// Freeze 冻结路由器并预编译处理器链
func (r *Router) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.frozen = true
	r.compiled = make(map[string]Handler, len(r.handlers))
	for kind, handler := range r.handlers {
		r.compiled[kind] = chain(r.middleware, handler)
	}
}

// chain 从后向前包装中间件
func chain(middleware []MiddlewareFunc, handler Handler) Handler {
	final := handler
	for i := len(middleware) - 1; i >= 0; i-- {
		mw, next := middleware[i], final
		final = func(ctx context.Context, m *Message) error {
			return mw(ctx, m, func() error {
				return next(ctx, m)
			})
		}
	}
	return final
}

// Route 路由消息，未注册的类型返回 ErrUnknownType
func (r *Router) Route(ctx context.Context, msg *Message) (err error) {
	ctx, span := tracing.StartRouteSpan(ctx, msg.ConnectionID, msg.Type)
	defer func() {
		tracing.RecordError(span, err)
		span.End()
	}()

	r.mu.RLock()
	if r.frozen {
		handler, exists := r.compiled[msg.Type]
		r.mu.RUnlock()
		if !exists {
			return ErrUnknownType
		}
		return handler(ctx, msg)
	}

	handler, exists := r.handlers[msg.Type]
	middleware := append([]MiddlewareFunc(nil), r.middleware...)
	r.mu.RUnlock()

	if !exists {
		return ErrUnknownType
	}
	return chain(middleware, handler)(ctx, msg)
}

// Dispatch 解析并路由一条原始消息
func (r *Router) Dispatch(ctx context.Context, connectionID, raw string) error {
	msg, err := Parse(connectionID, raw, time.Now())
	if err != nil {
		return err
	}
	return r.Route(ctx, msg)
}

// Attach 订阅 message-received 并路由
// 路由失败只记录日志，不影响连接服务
func (r *Router) Attach(b *bus.Bus) *bus.Subscription {
	return bus.On(b, func(e ws.MessageReceived) error {
		ctx := logger.WithConnectionID(context.Background(), e.ConnectionID)

		msg, err := Parse(e.ConnectionID, e.Message, e.Timestamp)
		if err == nil {
			err = r.Route(ctx, msg)
		}
		if err != nil {
			r.log.WarnContext(ctx, "route failed", zap.Error(err))
		}
		return nil
	})
}

// Handle 注册带类型参数的处理器，首个参数解码为 T
func Handle[T any](r *Router, kind string, fn func(ctx context.Context, msg *Message, arg T) error) error {
	return r.Register(kind, func(ctx context.Context, msg *Message) error {
		var arg T
		if err := msg.Decode(0, &arg); err != nil {
			return err
		}
		return fn(ctx, msg, arg)
	})
}
