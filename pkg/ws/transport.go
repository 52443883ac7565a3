package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Transport 单个连接的底层传输
// 实现需保证并发写安全
type Transport interface {
	// WriteText 发送文本帧
	WriteText(data []byte) error
	// Ping 发送 ping 控制帧
	Ping() error
	// Close 发送关闭帧并释放连接，可重复调用
	Close(code int, reason string) error
	// RemoteAddr 对端地址
	RemoteAddr() string
}

// wsTransport gorilla/websocket 实现
type wsTransport struct {
	conn      *websocket.Conn
	writeWait time.Duration

	mu        sync.Mutex // gorilla 不支持并发写数据帧
	closeOnce sync.Once
	closeErr  error
}

func newWSTransport(conn *websocket.Conn, writeWait time.Duration) *wsTransport {
	return &wsTransport{
		conn:      conn,
		writeWait: writeWait,
	}
}

func (t *wsTransport) WriteText(data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.conn.SetWriteDeadline(time.Now().Add(t.writeWait)); err != nil {
		return err
	}
	return t.conn.WriteMessage(websocket.TextMessage, data)
}

// Ping WriteControl 可与数据帧并发调用
func (t *wsTransport) Ping() error {
	return t.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(t.writeWait))
}

func (t *wsTransport) Close(code int, reason string) error {
	t.closeOnce.Do(func() {
		msg := websocket.FormatCloseMessage(code, reason)
		// 对端可能已断开，关闭帧发送失败不影响释放
		_ = t.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(t.writeWait))
		t.closeErr = t.conn.Close()
	})
	return t.closeErr
}

func (t *wsTransport) RemoteAddr() string {
	return t.conn.RemoteAddr().String()
}
