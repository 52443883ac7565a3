package config

import (
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	relayerrors "github.com/tokmz/relay/pkg/errors"
	"github.com/tokmz/relay/pkg/forward"
	"github.com/tokmz/relay/pkg/logger"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	s, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "localhost", s.Server.Host)
	assert.Equal(t, 8080, s.Server.Port)
	assert.Equal(t, "/", s.Server.Path)
	assert.Equal(t, 10000, s.Relay.MaxConnections)
	assert.Equal(t, 1024*1024, s.Relay.MaxMessageSize)
	assert.Equal(t, 30*time.Second, s.Relay.LivenessInterval)
	assert.Equal(t, 120*time.Second, s.Relay.IdleTimeout)
	assert.Equal(t, "info", s.Log.Level)
	assert.False(t, s.Metrics.Enabled)
	assert.Equal(t, 10*time.Second, s.Metrics.LogInterval)
	assert.False(t, s.Tracing.Enabled)
	assert.Equal(t, forward.BackendNone, s.Forward.Backend)
}

func TestLoad_File(t *testing.T) {
	path := writeFile(t, "relay.yaml", `
server:
  port: 9001
  path: /relay
  allowed_origins:
    - https://example.com
relay:
  max_connections: 5
  idle_timeout: 90s
log:
  level: debug
  format: console
forward:
  backend: kafka
  kafka:
    brokers: [k1:9092, k2:9092]
    topic: events
`)

	s, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9001, s.Server.Port)
	assert.Equal(t, "/relay", s.Server.Path)
	assert.Equal(t, []string{"https://example.com"}, s.Server.AllowedOrigins)
	assert.Equal(t, 5, s.Relay.MaxConnections)
	assert.Equal(t, 90*time.Second, s.Relay.IdleTimeout)
	// 文件未覆盖的键保持默认
	assert.Equal(t, 30*time.Second, s.Relay.LivenessInterval)
	assert.Equal(t, "debug", s.Log.Level)
	assert.Equal(t, forward.BackendKafka, s.Forward.Backend)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, s.Forward.Kafka.Brokers)
	assert.Equal(t, "events", s.Forward.Kafka.Topic)
	assert.Equal(t, "relay", s.Forward.Kafka.ClientID)
}

func TestLoad_Env(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("RELAY_SERVER_PORT", "9100")
	t.Setenv("RELAY_RELAY_LIVENESS_INTERVAL", "5s")
	t.Setenv("RELAY_LOG_LEVEL", "warn")

	s, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 9100, s.Server.Port)
	assert.Equal(t, 5*time.Second, s.Relay.LivenessInterval)
	assert.Equal(t, "warn", s.Log.Level)
}

func TestLoad_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.True(t, errors.Is(err, ErrConfigNotFound))
	})

	t.Run("malformed file", func(t *testing.T) {
		path := writeFile(t, "bad.yaml", "server: [port\n")
		_, err := Load(path)
		assert.True(t, errors.Is(err, ErrConfigReadFailed))
	})

	t.Run("invalid level", func(t *testing.T) {
		path := writeFile(t, "level.yaml", "log:\n  level: loud\n")
		_, err := Load(path)
		assert.True(t, errors.Is(err, relayerrors.ErrInvalidConfig))
	})

	t.Run("invalid format", func(t *testing.T) {
		path := writeFile(t, "format.yaml", "log:\n  format: xml\n")
		_, err := Load(path)
		assert.True(t, errors.Is(err, relayerrors.ErrInvalidConfig))
	})
}

func TestLoader_Required(t *testing.T) {
	l := NewLoader(
		WithConfigName("absent"),
		WithConfigType("yaml"),
		WithConfigPaths(t.TempDir()),
	)
	err := l.Load()
	assert.True(t, errors.Is(err, ErrConfigNotFound))
}

func TestLoader_NoFile(t *testing.T) {
	l := NewLoader(WithDefaults(map[string]any{"a.b": "c"}))
	require.NoError(t, l.Load())
	assert.Equal(t, "c", l.GetString("a.b"))
	assert.Empty(t, l.ConfigFileUsed())

	l.Set("a.b", "d")
	assert.Equal(t, "d", l.GetString("a.b"))
}

func TestSettings_LoggerOptions(t *testing.T) {
	s := &Settings{Log: LogSettings{
		Level:              "error",
		Format:             "console",
		File:               "/var/log/relay.log",
		MaxSize:            50,
		MaxBackups:         3,
		Caller:             true,
		SamplingInitial:    10,
		SamplingThereafter: 5,
	}}

	opts, err := s.LoggerOptions()
	require.NoError(t, err)

	var cfg logger.Config
	for _, opt := range opts {
		opt(&cfg)
	}
	assert.Equal(t, logger.ErrorLevel, cfg.Level)
	assert.Equal(t, logger.ConsoleFormat, cfg.Format)
	assert.True(t, cfg.EnableCaller)
	require.NotNil(t, cfg.Rotate)
	assert.Equal(t, "/var/log/relay.log", cfg.Rotate.Filename)
	assert.Equal(t, 50, cfg.Rotate.MaxSize)
	assert.Equal(t, 3, cfg.Rotate.MaxBackups)
	require.NotNil(t, cfg.Sampling)
	assert.Equal(t, 10, cfg.Sampling.Initial)
	assert.Equal(t, 5, cfg.Sampling.Thereafter)

	s.Log.File = ""
	s.Log.SamplingInitial = 0
	opts, err = s.LoggerOptions()
	require.NoError(t, err)
	cfg = logger.Config{}
	for _, opt := range opts {
		opt(&cfg)
	}
	assert.Nil(t, cfg.Rotate)
	assert.Nil(t, cfg.Sampling)

	s.Log.Level = "loud"
	_, err = s.LoggerOptions()
	assert.Error(t, err)
}

func TestSettings_YAML(t *testing.T) {
	t.Chdir(t.TempDir())
	s, err := Load("")
	require.NoError(t, err)

	out, err := s.YAML()
	require.NoError(t, err)
	assert.Contains(t, string(out), "port: 8080")
	assert.Contains(t, string(out), "max_connections: 10000")
	assert.Contains(t, string(out), "backend:")
}

func TestLoader_Watch(t *testing.T) {
	path := writeFile(t, "relay.yaml", "log:\n  level: info\n")

	var changed atomic.Int32
	l := NewSettingsLoader(path,
		WithAutoWatch(true),
		WithOnChange(func() { changed.Add(1) }),
	)
	require.NoError(t, l.Load())

	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: debug\n"), 0o644))

	assert.Eventually(t, func() bool { return changed.Load() > 0 }, 5*time.Second, 50*time.Millisecond)

	s, err := l.Settings()
	require.NoError(t, err)
	assert.Equal(t, "debug", s.Log.Level)

	l.StopWatch()
}
