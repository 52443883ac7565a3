package ws

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tokmz/relay/pkg/logger"
)

// SweepResult 一轮巡检结果
type SweepResult struct {
	Evicted int // 超时剔除
	Probed  int // 成功发送探测
	Failed  int // 探测发送失败并剔除
}

// LivenessMonitor 存活巡检
// 每个周期：上轮未应答或空闲超时的连接以 1000 关闭并移除，其余连接发送 ping
type LivenessMonitor struct {
	registry    *Registry
	interval    time.Duration
	idleTimeout time.Duration
	concurrency int
	now         func() time.Time
	log         logger.Logger

	onEvict        func(c *Connection, reason string)
	onProbeFailure func(c *Connection, err error)
}

// MonitorOption 巡检选项
type MonitorOption func(*LivenessMonitor)

// WithMonitorLogger 设置日志
func WithMonitorLogger(l logger.Logger) MonitorOption {
	return func(m *LivenessMonitor) {
		m.log = l
	}
}

// WithMonitorClock 替换时钟（测试用）
func WithMonitorClock(now func() time.Time) MonitorOption {
	return func(m *LivenessMonitor) {
		m.now = now
	}
}

// WithProbeConcurrency 探测并发上限
func WithProbeConcurrency(n int) MonitorOption {
	return func(m *LivenessMonitor) {
		m.concurrency = n
	}
}

// OnEvict 连接被剔除后回调（已移除并关闭）
func OnEvict(fn func(c *Connection, reason string)) MonitorOption {
	return func(m *LivenessMonitor) {
		m.onEvict = fn
	}
}

// OnProbeFailure 探测发送失败回调（已移除并关闭）
func OnProbeFailure(fn func(c *Connection, err error)) MonitorOption {
	return func(m *LivenessMonitor) {
		m.onProbeFailure = fn
	}
}

// NewLivenessMonitor 创建巡检器
func NewLivenessMonitor(registry *Registry, interval, idleTimeout time.Duration, opts ...MonitorOption) *LivenessMonitor {
	m := &LivenessMonitor{
		registry:    registry,
		interval:    interval,
		idleTimeout: idleTimeout,
		concurrency: 64,
		now:         time.Now,
		log:         logger.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Run 按周期巡检，直到 ctx 取消
func (m *LivenessMonitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			res := m.Sweep()
			if res.Evicted > 0 || res.Failed > 0 {
				m.log.Info("liveness sweep",
					zap.Int("evicted", res.Evicted),
					zap.Int("probed", res.Probed),
					zap.Int("failed", res.Failed),
					zap.Int("active", m.registry.Size()),
				)
			}
		}
	}
}

// Sweep 执行一轮巡检
func (m *LivenessMonitor) Sweep() SweepResult {
	evicted, probe := m.registry.Sweep(m.now(), m.idleTimeout)

	// 关闭与探测共用并发上限，单个阻塞的对端不拖慢整轮
	var (
		g       errgroup.Group
		failed  = make([]error, len(probe))
		removed = make([]bool, len(probe))
	)
	g.SetLimit(m.concurrency)
	for _, c := range evicted {
		g.Go(func() error {
			_ = c.Close(CloseTimeout, ReasonTimeout)
			return nil
		})
	}
	for i, c := range probe {
		g.Go(func() error {
			if failed[i] = c.ping(); failed[i] == nil {
				return nil
			}
			// 其他路径可能已移除
			if _, ok := m.registry.Unregister(c.ID); ok {
				removed[i] = true
				_ = c.Close(CloseInternal, closeReasonInternal)
			}
			return nil
		})
	}
	_ = g.Wait()

	res := SweepResult{Evicted: len(evicted)}
	if m.onEvict != nil {
		for _, c := range evicted {
			m.onEvict(c, ReasonTimeout)
		}
	}
	for i, err := range failed {
		if err == nil {
			res.Probed++
			continue
		}
		res.Failed++
		if removed[i] && m.onProbeFailure != nil {
			m.onProbeFailure(probe[i], err)
		}
	}
	return res
}
