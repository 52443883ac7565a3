package logger

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// captureHook 记录写入的日志条目
type captureHook struct {
	mu      sync.Mutex
	entries []zapcore.Entry
	fields  [][]zapcore.Field
}

func (h *captureHook) OnWrite(entry zapcore.Entry, fields []zapcore.Field) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, entry)
	h.fields = append(h.fields, fields)
	return nil
}

func (h *captureHook) fieldMap(i int) map[string]string {
	h.mu.Lock()
	defer h.mu.Unlock()
	m := make(map[string]string)
	for _, f := range h.fields[i] {
		m[f.Key] = f.String
	}
	return m
}

// TestNew 测试创建 Logger
func TestNew(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		config  *Config
		wantErr bool
	}{
		{name: "nil config", config: nil},
		{name: "console output", config: &Config{Level: InfoLevel, Format: JSONFormat, Console: true}},
		{name: "rotate output", config: &Config{Rotate: &RotateConfig{Filename: filepath.Join(dir, "relay.log")}}},
		{name: "sampled", config: &Config{Sampling: &SamplingConfig{}}},
		{name: "invalid format", config: &Config{Format: "xml"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.config)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			l.Info("hello")
			_ = l.Sync()
		})
	}
}

// TestSetLevel 测试动态调整级别
func TestSetLevel(t *testing.T) {
	hook := &captureHook{}
	l, err := NewWithOptions(WithLevel(InfoLevel), WithHook(hook))
	require.NoError(t, err)

	l.Debug("dropped")
	l.SetLevel(DebugLevel)
	l.Debug("kept")

	assert.Equal(t, DebugLevel, l.Level())
	require.Len(t, hook.entries, 1)
	assert.Equal(t, "kept", hook.entries[0].Message)
}

// TestContextFields 测试从 Context 提取连接 ID 与 TraceID
func TestContextFields(t *testing.T) {
	hook := &captureHook{}
	l, err := NewWithOptions(WithHook(hook))
	require.NoError(t, err)

	ctx := WithConnectionID(context.Background(), "abc123")
	ctx = WithTraceID(ctx, "trace-1")
	l.InfoContext(ctx, "frame accepted", zap.String("type", "EVENT"))

	require.Len(t, hook.entries, 1)
	fields := hook.fieldMap(0)
	assert.Equal(t, "abc123", fields["connection_id"])
	assert.Equal(t, "trace-1", fields["trace_id"])
	assert.Equal(t, "EVENT", fields["type"])
}

// TestParseLevel 测试级别解析
func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("warn")
	require.NoError(t, err)
	assert.Equal(t, WarnLevel, lvl)

	_, err = ParseLevel("loud")
	assert.Error(t, err)
}

func TestNop(t *testing.T) {
	l := NewNop()
	l.Error("nothing")
	assert.NoError(t, l.With(zap.Int("n", 1)).Named("x").Sync())
}

func TestRotateOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relay.log")
	l, err := NewWithOptions(
		WithConsole(false),
		WithRotate(RotateConfig{Filename: path, MaxSize: 1}),
		WithSampling(10, 10),
	)
	require.NoError(t, err)

	l.Info("connection opened", zap.String("connection_id", "abc"))
	require.NoError(t, l.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"connection opened"`)
	assert.Contains(t, string(data), `"connection_id":"abc"`)
}
