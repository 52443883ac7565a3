// Package bus 提供进程内按主题分发的同步发布/订阅总线。
//
// 投递在发布者的 goroutine 中同步完成，发给发布时刻订阅该主题的所有处理器，
// 处理器之间不保证顺序。处理器返回错误或 panic 只会被记录，不会影响其他处理器，
// 也不会传回发布者。
package bus

import (
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/tokmz/relay/pkg/logger"
)

// Topic 主题名称
type Topic string

// Event 总线事件，每种事件类型绑定一个固定主题
type Event interface {
	Topic() Topic
}

// Handler 事件处理器
type Handler func(Event) error

// Bus 事件总线，零值可直接使用
type Bus struct {
	mu     sync.RWMutex
	topics map[Topic]map[uint64]*Subscription
	nextID atomic.Uint64
	log    logger.Logger
}

// Option 总线选项
type Option func(*Bus)

// WithLogger 设置处理器失败时使用的 Logger
func WithLogger(l logger.Logger) Option {
	return func(b *Bus) {
		b.log = l
	}
}

// New 创建事件总线
func New(opts ...Option) *Bus {
	b := &Bus{}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscription 订阅凭证，持有者可凭此取消订阅
type Subscription struct {
	bus     *Bus
	topic   Topic
	id      uint64
	handler Handler
}

// Topic 订阅的主题
func (s *Subscription) Topic() Topic {
	return s.topic
}

// Unsubscribe 取消订阅，可重复调用
func (s *Subscription) Unsubscribe() {
	s.bus.Unsubscribe(s)
}

// Subscribe 订阅主题
func (b *Bus) Subscribe(topic Topic, handler Handler) *Subscription {
	sub := &Subscription{
		bus:     b,
		topic:   topic,
		id:      b.nextID.Add(1),
		handler: handler,
	}
	b.add(sub)
	return sub
}

// SubscribeOnce 订阅主题，处理器最多执行一次
// 处理器执行前先取消订阅，处理器内部再次发布同一主题不会重复触发
func (b *Bus) SubscribeOnce(topic Topic, handler Handler) *Subscription {
	var fired atomic.Bool
	sub := &Subscription{
		bus:   b,
		topic: topic,
		id:    b.nextID.Add(1),
	}
	sub.handler = func(e Event) error {
		if !fired.CompareAndSwap(false, true) {
			return nil
		}
		b.Unsubscribe(sub)
		return handler(e)
	}
	b.add(sub)
	return sub
}

func (b *Bus) add(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.topics == nil {
		b.topics = make(map[Topic]map[uint64]*Subscription)
	}
	set, ok := b.topics[sub.topic]
	if !ok {
		set = make(map[uint64]*Subscription)
		b.topics[sub.topic] = set
	}
	set[sub.id] = sub
}

// Unsubscribe 取消订阅，主题没有订阅者时从索引中删除
func (b *Bus) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	set, ok := b.topics[sub.topic]
	if !ok {
		return
	}
	delete(set, sub.id)
	if len(set) == 0 {
		delete(b.topics, sub.topic)
	}
}

// RemoveAll 删除指定主题的全部订阅；不传主题时清空整个总线
func (b *Bus) RemoveAll(topics ...Topic) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(topics) == 0 {
		b.topics = nil
		return
	}
	for _, topic := range topics {
		delete(b.topics, topic)
	}
}

// Publish 同步发布事件
func (b *Bus) Publish(event Event) {
	topic := event.Topic()

	// 先在读锁内取快照，投递时不持锁，处理器可以重入订阅/发布
	b.mu.RLock()
	set := b.topics[topic]
	handlers := make([]Handler, 0, len(set))
	for _, sub := range set {
		handlers = append(handlers, sub.handler)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		if err := b.deliver(h, event); err != nil {
			b.logger().Error("event handler failed",
				zap.String("topic", string(topic)),
				zap.Error(err),
			)
		}
	}
}

// deliver 执行单个处理器，panic 转换为错误
func (b *Bus) deliver(h Handler, event Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h(event)
}

// ListenerCount 主题订阅者数量
func (b *Bus) ListenerCount(topic Topic) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics[topic])
}

// HasListeners 主题是否有订阅者
func (b *Bus) HasListeners(topic Topic) bool {
	return b.ListenerCount(topic) > 0
}

// Topics 当前有订阅者的主题列表（无序）
func (b *Bus) Topics() []Topic {
	b.mu.RLock()
	defer b.mu.RUnlock()
	topics := make([]Topic, 0, len(b.topics))
	for topic := range b.topics {
		topics = append(topics, topic)
	}
	return topics
}

func (b *Bus) logger() logger.Logger {
	if b.log == nil {
		return logger.NewNop()
	}
	return b.log
}

// On 以具体事件类型订阅，主题取自 T 的零值
func On[T Event](b *Bus, handler func(T) error) *Subscription {
	var zero T
	return b.Subscribe(zero.Topic(), func(e Event) error {
		typed, ok := e.(T)
		if !ok {
			return fmt.Errorf("unexpected payload %T on topic %s", e, zero.Topic())
		}
		return handler(typed)
	})
}

// Once 以具体事件类型订阅一次
func Once[T Event](b *Bus, handler func(T) error) *Subscription {
	var zero T
	return b.SubscribeOnce(zero.Topic(), func(e Event) error {
		typed, ok := e.(T)
		if !ok {
			return fmt.Errorf("unexpected payload %T on topic %s", e, zero.Topic())
		}
		return handler(typed)
	})
}
