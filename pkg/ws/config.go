package ws

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tokmz/relay/pkg/bus"
	relayerrors "github.com/tokmz/relay/pkg/errors"
	"github.com/tokmz/relay/pkg/logger"
)

// AcceptFunc 升级前的准入判断，返回 false 时响应 401
type AcceptFunc func(r *http.Request) bool

// Config 连接服务配置
type Config struct {
	// 监听配置
	Host string // 监听地址（默认 localhost）
	Port int    // 监听端口（默认 8080，0 表示随机端口）
	Path string // 升级路径（默认 /）

	// 连接配置
	MaxConnections   int           // 最大连接数
	MaxMessageSize   int           // 单帧最大字节数
	ReadLimit        int64         // 传输层读上限，超过直接断开（默认 MaxMessageSize 的 2 倍）
	HandshakeTimeout time.Duration // 握手超时时间
	WriteWait        time.Duration // 单次写超时

	// 心跳配置
	LivenessInterval time.Duration // 巡检间隔
	IdleTimeout      time.Duration // 空闲超时

	// 广播配置
	BroadcastConcurrency int // 广播/探测并发上限

	// 准入配置
	AllowedOrigins []string   // Origin 白名单，为空且 Accept 为空时放行全部
	Accept         AcceptFunc // 自定义准入判断，优先于白名单

	// Upgrader 配置
	ReadBufferSize    int
	WriteBufferSize   int
	EnableCompression bool

	// 运维端点
	MetricsPath string // 为空则不暴露
	HealthPath  string // 为空则不暴露

	// 监控
	Metrics Metrics

	// 依赖
	Logger logger.Logger // 默认 Nop
	Bus    *bus.Bus      // 默认新建
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		Host:                 "localhost",
		Port:                 8080,
		Path:                 "/",
		MaxConnections:       10000,
		MaxMessageSize:       1024 * 1024, // 1MB
		HandshakeTimeout:     10 * time.Second,
		WriteWait:            10 * time.Second,
		LivenessInterval:     30 * time.Second,
		IdleTimeout:          120 * time.Second,
		BroadcastConcurrency: 100,
		ReadBufferSize:       1024,
		WriteBufferSize:      1024,
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return relayerrors.ErrInvalidConfig.WithMessage(fmt.Sprintf(format, args...))
	}

	if c.Port < 0 || c.Port > 65535 {
		return invalid("Port out of range, got %d", c.Port)
	}
	if !strings.HasPrefix(c.Path, "/") {
		return invalid("Path must start with '/', got %q", c.Path)
	}
	if c.MaxConnections <= 0 {
		return invalid("MaxConnections must be positive, got %d", c.MaxConnections)
	}
	if c.MaxMessageSize <= 0 {
		return invalid("MaxMessageSize must be positive, got %d", c.MaxMessageSize)
	}
	if c.ReadLimit != 0 && c.ReadLimit < int64(c.MaxMessageSize) {
		return invalid("ReadLimit (%d) must not be below MaxMessageSize (%d)", c.ReadLimit, c.MaxMessageSize)
	}
	if c.HandshakeTimeout <= 0 {
		return invalid("HandshakeTimeout must be positive, got %v", c.HandshakeTimeout)
	}
	if c.WriteWait <= 0 {
		return invalid("WriteWait must be positive, got %v", c.WriteWait)
	}
	if c.LivenessInterval <= 0 {
		return invalid("LivenessInterval must be positive, got %v", c.LivenessInterval)
	}
	if c.IdleTimeout <= c.LivenessInterval {
		return invalid("IdleTimeout (%v) must be greater than LivenessInterval (%v)",
			c.IdleTimeout, c.LivenessInterval)
	}
	if c.BroadcastConcurrency <= 0 {
		return invalid("BroadcastConcurrency must be positive, got %d", c.BroadcastConcurrency)
	}
	if c.ReadBufferSize <= 0 || c.WriteBufferSize <= 0 {
		return invalid("buffer sizes must be positive, got %d/%d", c.ReadBufferSize, c.WriteBufferSize)
	}
	for _, p := range []string{c.MetricsPath, c.HealthPath} {
		if p != "" && p == c.Path {
			return invalid("operational path %q collides with upgrade path", p)
		}
	}
	return nil
}

// readLimit 传输层读上限
func (c *Config) readLimit() int64 {
	if c.ReadLimit > 0 {
		return c.ReadLimit
	}
	return int64(c.MaxMessageSize) * 2
}

// acceptFunc 组合出最终的准入判断
func (c *Config) acceptFunc() AcceptFunc {
	if c.Accept != nil {
		return c.Accept
	}
	if len(c.AllowedOrigins) > 0 {
		return createWhitelistChecker(c.AllowedOrigins)
	}
	return allowAll
}

// Option 配置选项
type Option func(*Config)

// WithHost 设置监听地址
func WithHost(host string) Option {
	return func(c *Config) {
		c.Host = host
	}
}

// WithPort 设置监听端口
func WithPort(port int) Option {
	return func(c *Config) {
		c.Port = port
	}
}

// WithPath 设置升级路径
func WithPath(path string) Option {
	return func(c *Config) {
		c.Path = path
	}
}

// WithMaxConnections 设置最大连接数
func WithMaxConnections(max int) Option {
	return func(c *Config) {
		c.MaxConnections = max
	}
}

// WithMaxMessageSize 设置单帧最大字节数
func WithMaxMessageSize(size int) Option {
	return func(c *Config) {
		c.MaxMessageSize = size
	}
}

// WithLivenessInterval 设置巡检间隔
func WithLivenessInterval(interval time.Duration) Option {
	return func(c *Config) {
		c.LivenessInterval = interval
	}
}

// WithIdleTimeout 设置空闲超时
func WithIdleTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.IdleTimeout = timeout
	}
}

// WithWriteWait 设置写超时
func WithWriteWait(wait time.Duration) Option {
	return func(c *Config) {
		c.WriteWait = wait
	}
}

// WithAccept 设置准入判断
func WithAccept(fn AcceptFunc) Option {
	return func(c *Config) {
		c.Accept = fn
	}
}

// WithAllowedOrigins 设置 Origin 白名单
// 示例：WithAllowedOrigins([]string{"https://example.com"})
func WithAllowedOrigins(origins []string) Option {
	return func(c *Config) {
		c.AllowedOrigins = origins
	}
}

// WithBroadcastConcurrency 设置广播并发上限
func WithBroadcastConcurrency(n int) Option {
	return func(c *Config) {
		c.BroadcastConcurrency = n
	}
}

// WithEnableCompression 启用压缩
func WithEnableCompression(enable bool) Option {
	return func(c *Config) {
		c.EnableCompression = enable
	}
}

// WithMetrics 设置监控
func WithMetrics(metrics Metrics) Option {
	return func(c *Config) {
		c.Metrics = metrics
	}
}

// WithLogger 设置日志
func WithLogger(l logger.Logger) Option {
	return func(c *Config) {
		c.Logger = l
	}
}

// WithBus 使用外部事件总线
func WithBus(b *bus.Bus) Option {
	return func(c *Config) {
		c.Bus = b
	}
}

// WithMetricsPath 暴露 Prometheus 指标端点（需配合 PrometheusMetrics）
func WithMetricsPath(path string) Option {
	return func(c *Config) {
		c.MetricsPath = path
	}
}

// WithHealthPath 暴露健康检查端点
func WithHealthPath(path string) Option {
	return func(c *Config) {
		c.HealthPath = path
	}
}

// allowAll 放行全部请求
func allowAll(*http.Request) bool {
	return true
}

// createWhitelistChecker 创建白名单检查器
func createWhitelistChecker(allowedOrigins []string) AcceptFunc {
	whitelist := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		whitelist[strings.TrimSpace(origin)] = struct{}{}
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			// 非浏览器客户端不带 Origin，按本机处理
			origin = "localhost"
		}
		_, ok := whitelist[origin]
		return ok
	}
}
