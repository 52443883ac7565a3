package config

import relayerrors "github.com/tokmz/relay/pkg/errors"

// 配置包专用错误定义
var (
	// ErrConfigNotFound 配置文件未找到
	ErrConfigNotFound = relayerrors.New(relayerrors.KindConfig, "CONFIG_NOT_FOUND", "config file not found")
	// ErrConfigReadFailed 配置读取失败
	ErrConfigReadFailed = relayerrors.New(relayerrors.KindConfig, "CONFIG_READ_FAILED", "config read failed")
)
