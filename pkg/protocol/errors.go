package protocol

import "errors"

// 错误定义
var (
	ErrUnknownType     = errors.New("protocol: unknown message type")
	ErrHandlerExists   = errors.New("protocol: handler already exists")
	ErrRouterFrozen    = errors.New("protocol: router is frozen")
	ErrMissingArgument = errors.New("protocol: missing argument")
)
