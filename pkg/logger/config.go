package logger

import "go.uber.org/zap/zapcore"

// Format 日志格式
type Format string

const (
	// JSONFormat JSON 格式，默认
	JSONFormat Format = "json"
	// ConsoleFormat 控制台格式，本地调试用
	ConsoleFormat Format = "console"
)

func (f Format) String() string {
	return string(f)
}

// IsValid 检查格式是否有效
func (f Format) IsValid() bool {
	return f == JSONFormat || f == ConsoleFormat
}

// Hook 日志写入钩子，返回的错误不会阻止写入
type Hook interface {
	OnWrite(entry zapcore.Entry, fields []zapcore.Field) error
}

// Config 日志配置
type Config struct {
	Level  Level  // 零值即 InfoLevel
	Format Format // 默认 json

	Console bool          // 输出到 stdout；未配置文件时强制开启
	Rotate  *RotateConfig // 文件输出，按大小轮转

	Sampling *SamplingConfig // nil 不采样

	EnableCaller     bool
	EnableStacktrace bool // Error 及以上附带堆栈

	Hooks []Hook
}

func (c *Config) setDefaults() {
	if c.Format == "" {
		c.Format = JSONFormat
	}
	if c.Rotate == nil {
		c.Console = true
	}
}

// RotateConfig 文件轮转配置（lumberjack）
type RotateConfig struct {
	Filename   string
	MaxSize    int // MB，默认 100
	MaxAge     int // 天，默认 30
	MaxBackups int // 默认 10
	LocalTime  bool
	Compress   bool
}

func (r *RotateConfig) setDefaults() {
	if r.MaxSize <= 0 {
		r.MaxSize = 100
	}
	if r.MaxAge <= 0 {
		r.MaxAge = 30
	}
	if r.MaxBackups <= 0 {
		r.MaxBackups = 10
	}
}

// SamplingConfig 每秒前 Initial 条全部记录，之后每 Thereafter 条记录 1 条
// 连接风暴时限制 per-connection 日志量
type SamplingConfig struct {
	Initial    int
	Thereafter int
}

func (s *SamplingConfig) setDefaults() {
	if s.Initial <= 0 {
		s.Initial = 100
	}
	if s.Thereafter <= 0 {
		s.Thereafter = 100
	}
}
