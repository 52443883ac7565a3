// Package config 基于 viper 加载配置：默认值、配置文件与环境变量依次覆盖。
package config

import (
	"errors"
	"io/fs"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Loader 配置加载器
type Loader struct {
	viper *viper.Viper // viper 实例
	mu    sync.RWMutex // 并发保护锁

	// 配置文件相关
	configFile  string   // 配置文件完整路径
	configName  string   // 配置文件名（不含扩展名）
	configType  string   // 配置文件类型
	configPaths []string // 配置文件搜索路径
	optional    bool     // 找不到配置文件时不报错

	// 监控相关
	autoWatch bool   // 是否自动开启文件监控
	watching  bool   // 是否正在监控
	onChange  func() // 配置变更回调

	// 其他选项
	defaults       map[string]any    // 默认配置值
	envPrefix      string            // 环境变量前缀
	envKeyReplacer *strings.Replacer // 环境变量键名替换器
}

// NewLoader 创建配置加载器
func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		viper: viper.New(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load 加载配置
func (l *Loader) Load() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for k, v := range l.defaults {
		l.viper.SetDefault(k, v)
	}

	if l.envPrefix != "" {
		l.viper.SetEnvPrefix(l.envPrefix)
		l.viper.AutomaticEnv()
	}
	if l.envKeyReplacer != nil {
		l.viper.SetEnvKeyReplacer(l.envKeyReplacer)
	}

	if l.configFile != "" {
		l.viper.SetConfigFile(l.configFile)
	} else {
		if l.configName == "" {
			// 仅默认值与环境变量
			return nil
		}
		l.viper.SetConfigName(l.configName)
		if l.configType != "" {
			l.viper.SetConfigType(l.configType)
		}
		for _, path := range l.configPaths {
			l.viper.AddConfigPath(path)
		}
	}

	if err := l.viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			if l.optional {
				return nil
			}
			return ErrConfigNotFound.WithError(err)
		}
		if l.configFile != "" && errors.Is(err, fs.ErrNotExist) {
			return ErrConfigNotFound.WithError(err)
		}
		return ErrConfigReadFailed.WithError(err)
	}

	if l.autoWatch {
		l.startWatch()
	}
	return nil
}

// Unmarshal 将配置反序列化到结构体（mapstructure 标签）
func (l *Loader) Unmarshal(rawVal any) error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.viper.Unmarshal(rawVal)
}

// GetString 获取字符串配置值
func (l *Loader) GetString(key string) string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.viper.GetString(key)
}

// Set 设置配置值（优先级最高）
func (l *Loader) Set(key string, value any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.viper.Set(key, value)
}

// ConfigFileUsed 实际使用的配置文件，未读取文件时为空
func (l *Loader) ConfigFileUsed() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.viper.ConfigFileUsed()
}

// StartWatch 开始监控配置文件变更，已在监控或未使用配置文件时不做任何事
func (l *Loader) StartWatch() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.watching || l.viper.ConfigFileUsed() == "" {
		return
	}
	l.startWatch()
}

// startWatch 调用方需持有写锁
// viper 在回调前已重新读取文件
func (l *Loader) startWatch() {
	l.viper.OnConfigChange(func(fsnotify.Event) {
		l.mu.RLock()
		watching, onChange := l.watching, l.onChange
		l.mu.RUnlock()

		if watching && onChange != nil {
			onChange()
		}
	})
	l.viper.WatchConfig()
	l.watching = true
}

// OnChange 设置变更回调并开始监控
func (l *Loader) OnChange(fn func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onChange = fn
	if !l.watching && l.viper.ConfigFileUsed() != "" {
		l.startWatch()
	}
}

// StopWatch 停止触发变更回调
// viper 未提供停止底层 fsnotify watcher 的方法，这里仅标记状态
func (l *Loader) StopWatch() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.watching = false
}
