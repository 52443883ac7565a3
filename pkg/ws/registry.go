package ws

import (
	"sync"
	"time"
)

// Registry 连接注册表
// 单把读写锁保护映射及记录上的可变字段，锁内不做任何 I/O
type Registry struct {
	mu       sync.RWMutex
	conns    map[string]*Connection
	maxConns int
}

// NewRegistry 创建注册表
func NewRegistry(maxConns int) *Registry {
	return &Registry{
		conns:    make(map[string]*Connection),
		maxConns: maxConns,
	}
}

// Register 注册连接
// 已达上限返回 ErrCapacityExceeded，ID 冲突返回 ErrConnectionExists
func (r *Registry) Register(c *Connection) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.conns) >= r.maxConns {
		return ErrCapacityExceeded
	}
	if _, exists := r.conns[c.ID]; exists {
		return ErrConnectionExists
	}
	r.conns[c.ID] = c
	return nil
}

// Unregister 移除连接，不存在时返回 false
// 移除后调用方独占该记录
func (r *Registry) Unregister(id string) (*Connection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conns[id]
	if ok {
		delete(r.conns, id)
	}
	return c, ok
}

// Get 获取连接
func (r *Registry) Get(id string) (*Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.conns[id]
	return c, ok
}

// Info 获取连接快照
func (r *Registry) Info(id string) (ConnectionInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.conns[id]
	if !ok {
		return ConnectionInfo{}, false
	}
	return c.info(), true
}

// ForEach 返回满足 filter 的连接快照，filter 为 nil 时返回全部
// filter 在锁内执行，不得回调 Registry
func (r *Registry) ForEach(filter func(ConnectionInfo) bool) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make([]*Connection, 0, len(r.conns))
	for _, c := range r.conns {
		if filter == nil || filter(c.info()) {
			conns = append(conns, c)
		}
	}
	return conns
}

// Size 当前连接数
func (r *Registry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Touch 记录存活应答
func (r *Registry) Touch(id string, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conns[id]
	if !ok {
		return false
	}
	c.alive = true
	c.lastLivenessAt = now
	return true
}

// IncrementMessages 消息计数加一，返回新计数
func (r *Registry) IncrementMessages(id string) (int64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conns[id]
	if !ok {
		return 0, false
	}
	c.messageCount++
	return c.messageCount, true
}

// Sweep 一轮存活判定
// 未应答上轮探测或空闲超过 idleTimeout 的连接被移除并返回在 evicted 中；
// 其余连接标记为未应答并返回在 probe 中，由调用方在锁外发送探测
func (r *Registry) Sweep(now time.Time, idleTimeout time.Duration) (evicted, probe []*Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, c := range r.conns {
		if !c.alive || now.Sub(c.lastLivenessAt) > idleTimeout {
			delete(r.conns, id)
			evicted = append(evicted, c)
			continue
		}
		c.alive = false
		probe = append(probe, c)
	}
	return evicted, probe
}

// Clear 清空注册表，返回被移除的连接
func (r *Registry) Clear() []*Connection {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns := make([]*Connection, 0, len(r.conns))
	for _, c := range r.conns {
		conns = append(conns, c)
	}
	r.conns = make(map[string]*Connection)
	return conns
}
