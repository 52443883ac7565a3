package main

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tokmz/relay/pkg/config"
	"github.com/tokmz/relay/pkg/logger"
	"github.com/tokmz/relay/pkg/ws"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func TestConfigCommand(t *testing.T) {
	t.Chdir(t.TempDir())

	out, err := execute(t, "config")
	require.NoError(t, err)
	assert.Contains(t, out, "port: 8080")
	assert.Contains(t, out, "max_connections: 10000")
}

func TestConfigCommand_FlagOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("RELAY_SERVER_PORT", "9100")

	out, err := execute(t, "config", "--port", "9200", "--log-level", "debug")
	require.NoError(t, err)
	assert.Contains(t, out, "port: 9200")
	assert.Contains(t, out, "level: debug")
}

func TestConfigCommand_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relay.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 7000\n"), 0o644))

	out, err := execute(t, "config", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "port: 7000")
}

func TestConfigCommand_Invalid(t *testing.T) {
	_, err := execute(t, "config", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, config.ErrConfigNotFound)
}

func TestServe(t *testing.T) {
	t.Chdir(t.TempDir())
	loader := config.NewSettingsLoader("")
	require.NoError(t, loader.Load())
	loader.Set("server.port", 0)
	loader.Set("server.host", "127.0.0.1")
	loader.Set("metrics.enabled", true)
	loader.Set("metrics.log_interval", 10*time.Millisecond)
	loader.Set("log.level", "error")
	settings, err := loader.Settings()
	require.NoError(t, err)

	log := logger.NewNop()
	svcOpts := serviceOptions(settings, log)
	assert.NotEmpty(t, svcOpts)

	// 服务内部自行命名为 ws，这里传入根 Logger
	cfg := ws.DefaultConfig()
	for _, opt := range svcOpts {
		opt(cfg)
	}
	assert.Same(t, log, cfg.Logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, loader, settings) }()

	// serve 没有暴露监听地址，这里只验证生命周期
	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after cancel")
	}
}

func TestServe_ConnectedFrame(t *testing.T) {
	t.Chdir(t.TempDir())
	loader := config.NewSettingsLoader("")
	require.NoError(t, loader.Load())
	loader.Set("server.host", "127.0.0.1")
	port := freePort(t)
	loader.Set("server.port", port)
	loader.Set("log.level", "error")
	settings, err := loader.Settings()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, loader, settings) }()
	defer func() {
		cancel()
		<-done
	}()

	var conn *websocket.Conn
	require.Eventually(t, func() bool {
		c, _, err := websocket.DefaultDialer.Dial(fmt.Sprintf("ws://127.0.0.1:%d/", port), nil)
		if err != nil {
			return false
		}
		conn = c
		return true
	}, 3*time.Second, 50*time.Millisecond)
	defer conn.Close()

	var frame struct {
		Type string `json:"type"`
	}
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, "CONNECTED", frame.Type)
}
