package logger

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Middleware 创建 HTTP 访问日志中间件
// 成功请求（含升级握手）记为 Debug，4xx 为 Warn，5xx 为 Error
func Middleware(logger Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		// 处理请求
		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		fields := []zap.Field{
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", status),
			zap.Duration("latency", latency),
			zap.String("ip", c.ClientIP()),
		}

		ctx := c.Request.Context()

		// 根据状态码选择日志级别
		switch {
		case status >= 500:
			logger.ErrorContext(ctx, "HTTP Request", fields...)
		case status >= 400:
			logger.WarnContext(ctx, "HTTP Request", fields...)
		default:
			logger.DebugContext(ctx, "HTTP Request", fields...)
		}
	}
}
