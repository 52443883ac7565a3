package ws

import (
	"time"
)

// Connection 连接记录
// ID、ConnectedAt 及元数据创建后不可变；
// lastLivenessAt、alive、messageCount 只能在 Registry 锁内读写
type Connection struct {
	ID          string
	ConnectedAt time.Time
	RemoteAddr  string
	Origin      string

	transport Transport

	lastLivenessAt time.Time
	alive          bool
	messageCount   int64
}

// ConnectionInfo 连接记录快照
type ConnectionInfo struct {
	ID             string    `json:"id"`
	ConnectedAt    time.Time `json:"connectedAt"`
	RemoteAddr     string    `json:"remoteAddr,omitempty"`
	Origin         string    `json:"origin,omitempty"`
	LastLivenessAt time.Time `json:"lastLivenessAt"`
	Alive          bool      `json:"alive"`
	MessageCount   int64     `json:"messageCount"`
}

// ConnectionOption 连接选项
type ConnectionOption func(*Connection)

// WithRemoteAddr 设置对端地址
func WithRemoteAddr(addr string) ConnectionOption {
	return func(c *Connection) {
		c.RemoteAddr = addr
	}
}

// WithOrigin 设置握手 Origin
func WithOrigin(origin string) ConnectionOption {
	return func(c *Connection) {
		c.Origin = origin
	}
}

// NewConnection 创建连接记录，初始为存活状态
func NewConnection(id string, t Transport, now time.Time, opts ...ConnectionOption) *Connection {
	c := &Connection{
		ID:             id,
		ConnectedAt:    now,
		transport:      t,
		lastLivenessAt: now,
		alive:          true,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Send 发送原始文本帧
func (c *Connection) Send(data []byte) error {
	if err := c.transport.WriteText(data); err != nil {
		return ErrTransport.WithError(err)
	}
	return nil
}

// SendFrame 发送控制帧
func (c *Connection) SendFrame(f ControlFrame) error {
	data, err := f.Encode()
	if err != nil {
		return err
	}
	return c.Send(data)
}

// Close 关闭底层传输，可重复调用
func (c *Connection) Close(code int, reason string) error {
	return c.transport.Close(code, reason)
}

// ping 发送存活探测
func (c *Connection) ping() error {
	if err := c.transport.Ping(); err != nil {
		return ErrTransport.WithError(err)
	}
	return nil
}

// info 生成快照，调用方需持有 Registry 锁或已独占记录
func (c *Connection) info() ConnectionInfo {
	return ConnectionInfo{
		ID:             c.ID,
		ConnectedAt:    c.ConnectedAt,
		RemoteAddr:     c.RemoteAddr,
		Origin:         c.Origin,
		LastLivenessAt: c.lastLivenessAt,
		Alive:          c.alive,
		MessageCount:   c.messageCount,
	}
}
