package logger

// Option 配置选项函数
type Option func(*Config)

// WithLevel 设置日志级别
func WithLevel(level Level) Option {
	return func(c *Config) {
		c.Level = level
	}
}

// WithFormat 设置日志格式
func WithFormat(format Format) Option {
	return func(c *Config) {
		c.Format = format
	}
}

// WithConsole 是否输出到 stdout
func WithConsole(enable bool) Option {
	return func(c *Config) {
		c.Console = enable
	}
}

// WithRotate 输出到轮转文件
func WithRotate(rotate RotateConfig) Option {
	return func(c *Config) {
		c.Rotate = &rotate
	}
}

// WithSampling 开启采样
func WithSampling(initial, thereafter int) Option {
	return func(c *Config) {
		c.Sampling = &SamplingConfig{Initial: initial, Thereafter: thereafter}
	}
}

// WithCaller 记录调用位置
func WithCaller(enable bool) Option {
	return func(c *Config) {
		c.EnableCaller = enable
	}
}

// WithStacktrace Error 及以上记录堆栈
func WithStacktrace(enable bool) Option {
	return func(c *Config) {
		c.EnableStacktrace = enable
	}
}

// WithHook 追加写入钩子
func WithHook(hooks ...Hook) Option {
	return func(c *Config) {
		c.Hooks = append(c.Hooks, hooks...)
	}
}
