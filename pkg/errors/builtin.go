package errors

/*
	内置错误码
*/

var (
	// ErrCapacityExceeded 连接数已达上限
	ErrCapacityExceeded = New(KindCapacity, "CAPACITY_EXCEEDED", "maximum connections reached")
	// ErrValidation 入站消息格式非法
	ErrValidation = New(KindValidation, "INVALID_FORMAT", "invalid message format")
	// ErrTransport 连接收发失败
	ErrTransport = New(KindTransport, "TRANSPORT_ERROR", "transport failure")
	// ErrStartup 监听启动失败
	ErrStartup = New(KindStartup, "STARTUP_ERROR", "listener failed to start")
	// ErrInvalidConfig 配置非法
	ErrInvalidConfig = New(KindConfig, "INVALID_CONFIG", "invalid config")
)
