package config

import "strings"

// Option 加载器选项
type Option func(*Loader)

// WithConfigFile 指定配置文件完整路径，文件不存在时 Load 返回 ErrConfigNotFound
func WithConfigFile(path string) Option {
	return func(l *Loader) {
		l.configFile = path
	}
}

// WithConfigName 设置配置文件名（不含扩展名），在搜索路径中查找
func WithConfigName(name string) Option {
	return func(l *Loader) {
		l.configName = name
	}
}

// WithConfigType 设置配置文件类型（如 yaml, json, toml）
func WithConfigType(typ string) Option {
	return func(l *Loader) {
		l.configType = typ
	}
}

// WithConfigPaths 设置配置文件搜索路径
func WithConfigPaths(paths ...string) Option {
	return func(l *Loader) {
		l.configPaths = paths
	}
}

// WithOptional 搜索不到配置文件时仅使用默认值和环境变量
func WithOptional(optional bool) Option {
	return func(l *Loader) {
		l.optional = optional
	}
}

// WithAutoWatch 加载后自动开启文件监控
func WithAutoWatch(watch bool) Option {
	return func(l *Loader) {
		l.autoWatch = watch
	}
}

// WithOnChange 设置配置变更回调函数
func WithOnChange(fn func()) Option {
	return func(l *Loader) {
		l.onChange = fn
	}
}

// WithDefaults 设置默认配置值
func WithDefaults(defaults map[string]any) Option {
	return func(l *Loader) {
		l.defaults = defaults
	}
}

// WithEnvPrefix 设置环境变量前缀
func WithEnvPrefix(prefix string) Option {
	return func(l *Loader) {
		l.envPrefix = prefix
	}
}

// WithEnvKeyReplacer 设置环境变量键名替换器
func WithEnvKeyReplacer(r *strings.Replacer) Option {
	return func(l *Loader) {
		l.envKeyReplacer = r
	}
}
