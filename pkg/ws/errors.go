package ws

import (
	relayerrors "github.com/tokmz/relay/pkg/errors"
)

// 错误定义
var (
	// ErrCapacityExceeded 连接数已达上限
	ErrCapacityExceeded = relayerrors.ErrCapacityExceeded
	// ErrConnectionExists 连接 ID 冲突
	ErrConnectionExists = relayerrors.New(relayerrors.KindValidation, "CONNECTION_EXISTS", "ws: connection id already exists")
	// ErrTransport 单个连接收发失败
	ErrTransport = relayerrors.ErrTransport
	// ErrStartup 监听启动失败
	ErrStartup = relayerrors.ErrStartup
	// ErrInvalidConfig 配置非法
	ErrInvalidConfig = relayerrors.ErrInvalidConfig

	// ErrAlreadyStarted 重复启动
	ErrAlreadyStarted = relayerrors.New(relayerrors.KindStartup, "ALREADY_STARTED", "ws: service already started")
	// ErrServiceClosed 服务已关闭
	ErrServiceClosed = relayerrors.New(relayerrors.KindStartup, "SERVICE_CLOSED", "ws: service closed")
)
