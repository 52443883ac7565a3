package ws

import (
	"time"

	"github.com/tokmz/relay/pkg/bus"
)

// 事件主题
const (
	// TopicConnectionOpened 连接建立
	TopicConnectionOpened bus.Topic = "connection-opened"
	// TopicConnectionClosed 连接断开（对端关闭、超时剔除、传输失败）
	TopicConnectionClosed bus.Topic = "connection-closed"
	// TopicMessageReceived 收到通过校验的消息
	TopicMessageReceived bus.Topic = "message-received"
	// TopicConnectionError 连接错误
	TopicConnectionError bus.Topic = "connection-error"
)

// 断开原因
const (
	ReasonPeerClosed     = "peer closed"
	ReasonTimeout        = "Connection timeout"
	ReasonTransportError = "transport error"
)

// ConnectionOpened 连接建立事件
type ConnectionOpened struct {
	ConnectionID string    `json:"connectionId"`
	Timestamp    time.Time `json:"timestamp"`
}

func (ConnectionOpened) Topic() bus.Topic { return TopicConnectionOpened }

// ConnectionClosed 连接断开事件
type ConnectionClosed struct {
	ConnectionID string    `json:"connectionId"`
	Timestamp    time.Time `json:"timestamp"`
	MessageCount int64     `json:"messageCount"`
	Reason       string    `json:"reason,omitempty"`
}

func (ConnectionClosed) Topic() bus.Topic { return TopicConnectionClosed }

// MessageReceived 消息事件，Message 为原始文本
type MessageReceived struct {
	ConnectionID string    `json:"connectionId"`
	Message      string    `json:"message"`
	Timestamp    time.Time `json:"timestamp"`
}

func (MessageReceived) Topic() bus.Topic { return TopicMessageReceived }

// ConnectionError 连接错误事件
type ConnectionError struct {
	ConnectionID string    `json:"connectionId"`
	Err          error     `json:"-"`
	Timestamp    time.Time `json:"timestamp"`
}

func (ConnectionError) Topic() bus.Topic { return TopicConnectionError }
