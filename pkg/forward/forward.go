// Package forward 将通过校验的入站消息转发到下游消息系统。
//
// Forwarder 订阅 message-received，把事件序列化为 JSON 后放入有界队列，
// 由固定数量的 worker 交给 Publisher。队列满时直接丢弃并计数，
// 不会阻塞连接服务的读协程。
package forward

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/tokmz/relay/pkg/bus"
	"github.com/tokmz/relay/pkg/logger"
	"github.com/tokmz/relay/pkg/ws"
)

// Record 待转发的记录
type Record struct {
	Key       string // 分区/路由键，取连接 ID
	Payload   []byte // JSON: {connectionId, message, timestamp}
	Timestamp time.Time
}

// Publisher 下游发布者
type Publisher interface {
	Publish(ctx context.Context, rec Record) error
	Close() error
}

// Stats 转发统计
type Stats struct {
	Forwarded int64 `json:"forwarded"`
	Dropped   int64 `json:"dropped"`
	Failed    int64 `json:"failed"`
}

// Forwarder 消息转发器
type Forwarder struct {
	pub            Publisher
	publishTimeout time.Duration
	log            logger.Logger

	mu     sync.RWMutex // 保护 queue 的关闭
	queue  chan Record
	closed bool
	wg     sync.WaitGroup
	subs   []*bus.Subscription

	forwarded atomic.Int64
	dropped   atomic.Int64
	failed    atomic.Int64
}

// Option 转发器选项
type Option func(*Forwarder)

// WithLogger 设置日志
func WithLogger(l logger.Logger) Option {
	return func(f *Forwarder) {
		f.log = l
	}
}

// WithPublishTimeout 单次发布超时
func WithPublishTimeout(d time.Duration) Option {
	return func(f *Forwarder) {
		f.publishTimeout = d
	}
}

// New 创建转发器并启动 worker
func New(pub Publisher, queueSize, workers int, opts ...Option) *Forwarder {
	if queueSize <= 0 {
		queueSize = 1024
	}
	if workers <= 0 {
		workers = 4
	}

	f := &Forwarder{
		pub:            pub,
		publishTimeout: 5 * time.Second,
		log:            logger.NewNop(),
		queue:          make(chan Record, queueSize),
	}
	for _, opt := range opts {
		opt(f)
	}

	for i := 0; i < workers; i++ {
		f.wg.Add(1)
		go f.worker()
	}
	return f
}

// Attach 订阅 message-received
func (f *Forwarder) Attach(b *bus.Bus) {
	sub := bus.On(b, func(e ws.MessageReceived) error {
		f.Enqueue(e)
		return nil
	})

	f.mu.Lock()
	f.subs = append(f.subs, sub)
	f.mu.Unlock()
}

// Enqueue 非阻塞入队，队列满或已关闭时丢弃并返回 false
func (f *Forwarder) Enqueue(e ws.MessageReceived) bool {
	payload, err := json.Marshal(e)
	if err != nil {
		f.failed.Add(1)
		return false
	}
	rec := Record{Key: e.ConnectionID, Payload: payload, Timestamp: e.Timestamp}

	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.closed {
		f.dropped.Add(1)
		return false
	}
	select {
	case f.queue <- rec:
		return true
	default:
		f.dropped.Add(1)
		return false
	}
}

// worker 工作协程
func (f *Forwarder) worker() {
	defer f.wg.Done()
	for rec := range f.queue {
		f.publish(rec)
	}
}

func (f *Forwarder) publish(rec Record) {
	ctx, cancel := context.WithTimeout(context.Background(), f.publishTimeout)
	defer cancel()

	if err := f.pub.Publish(ctx, rec); err != nil {
		f.failed.Add(1)
		f.log.Warn("forward failed", zap.String("connection_id", rec.Key), zap.Error(err))
		return
	}
	f.forwarded.Add(1)
}

// Stats 当前统计
func (f *Forwarder) Stats() Stats {
	return Stats{
		Forwarded: f.forwarded.Load(),
		Dropped:   f.dropped.Load(),
		Failed:    f.failed.Load(),
	}
}

// Close 取消订阅，排空队列后关闭 Publisher
// ctx 到期时不再等待剩余记录
func (f *Forwarder) Close(ctx context.Context) error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	for _, sub := range f.subs {
		sub.Unsubscribe()
	}
	close(f.queue)
	f.mu.Unlock()

	done := make(chan struct{})
	go func() {
		f.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		f.log.Warn("forwarder closed before queue drained", zap.Int("pending", len(f.queue)))
	}

	return f.pub.Close()
}
