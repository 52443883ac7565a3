package ws

import "time"

// Metrics 监控接口
type Metrics interface {
	// 连接指标
	IncrementConnections()
	DecrementConnections()
	SetConnectionCount(count int)
	IncrementRejectedConnections()

	// 消息指标
	IncrementMessageCount(msgType string)
	IncrementInvalidMessages(reason string)

	// 心跳指标
	IncrementEvictions(reason string)

	// 广播指标
	RecordBroadcastLatency(duration time.Duration)

	// 错误指标
	IncrementReadErrors()
	IncrementWriteErrors()
}

// NoopMetrics 空实现（默认）
type NoopMetrics struct{}

func (NoopMetrics) IncrementConnections()                {}
func (NoopMetrics) DecrementConnections()                {}
func (NoopMetrics) SetConnectionCount(int)               {}
func (NoopMetrics) IncrementRejectedConnections()        {}
func (NoopMetrics) IncrementMessageCount(string)         {}
func (NoopMetrics) IncrementInvalidMessages(string)      {}
func (NoopMetrics) IncrementEvictions(string)            {}
func (NoopMetrics) RecordBroadcastLatency(time.Duration) {}
func (NoopMetrics) IncrementReadErrors()                 {}
func (NoopMetrics) IncrementWriteErrors()                {}

// MetricsSnapshot 服务运行时指标快照
type MetricsSnapshot struct {
	TotalConnections  int64         `json:"totalConnections"`
	TotalMessages     int64         `json:"totalMessages"`
	RejectedMessages  int64         `json:"rejectedMessages"`
	Errors            int64         `json:"errors"`
	LastError         error         `json:"-"`
	LastErrorMessage  string        `json:"lastError,omitempty"`
	Uptime            time.Duration `json:"uptime"`
	ActiveConnections int           `json:"activeConnections"`
}
