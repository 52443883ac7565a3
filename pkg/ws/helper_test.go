package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/tokmz/relay/pkg/bus"
)

// fakeTransport 记录写入的内存传输
type fakeTransport struct {
	mu       sync.Mutex
	writes   [][]byte
	pings    int
	closed   bool
	code     int
	reason   string
	writeErr error
	pingErr  error

	closeDelay time.Duration // 模拟阻塞的对端
}

func (f *fakeTransport) WriteText(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.writes = append(f.writes, append([]byte(nil), data...))
	return nil
}

func (f *fakeTransport) Ping() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pingErr != nil {
		return f.pingErr
	}
	f.pings++
	return nil
}

func (f *fakeTransport) Close(code int, reason string) error {
	time.Sleep(f.closeDelay)
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed, f.code, f.reason = true, code, reason
	}
	return nil
}

func (f *fakeTransport) RemoteAddr() string { return "fake" }

func (f *fakeTransport) state() (closed bool, code int, reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed, f.code, f.reason
}

func (f *fakeTransport) pingCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pings
}

func (f *fakeTransport) written() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.writes...)
}

// newFakeConnection 创建挂在 fakeTransport 上的连接
func newFakeConnection(id string, now time.Time) (*Connection, *fakeTransport) {
	ft := &fakeTransport{}
	return NewConnection(id, ft, now), ft
}

// testServer 在 httptest 上运行 Service 的处理器
type testServer struct {
	svc *Service
	srv *httptest.Server
	url string
}

func newTestServer(t *testing.T, opts ...Option) *testServer {
	t.Helper()

	svc, err := NewService(opts...)
	require.NoError(t, err)

	srv := httptest.NewServer(svc.Handler())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = svc.Shutdown(ctx)
		srv.Close()
	})

	return &testServer{
		svc: svc,
		srv: srv,
		url: "ws" + strings.TrimPrefix(srv.URL, "http") + svc.config.Path,
	}
}

// dial 建立连接并读取 CONNECTED 帧，返回连接 ID
func (ts *testServer) dial(t *testing.T) (*websocket.Conn, string) {
	t.Helper()

	conn, _, err := websocket.DefaultDialer.Dial(ts.url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	frame := readFrame(t, conn)
	require.Equal(t, FrameConnected, frame.Type)

	var payload ConnectedPayload
	require.NoError(t, json.Unmarshal(frame.Payload, &payload))
	return conn, payload.ConnectionID
}

type wireFrame struct {
	Type    FrameType       `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func readFrame(t *testing.T, conn *websocket.Conn) wireFrame {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var f wireFrame
	require.NoError(t, json.Unmarshal(data, &f))
	return f
}

// collect 订阅主题并把事件写入缓冲 channel
func collect[T bus.Event](b *bus.Bus) chan T {
	ch := make(chan T, 16)
	bus.On(b, func(e T) error {
		ch <- e
		return nil
	})
	return ch
}

func waitFor[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		var zero T
		return zero
	}
}
