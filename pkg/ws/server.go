package ws

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/tokmz/relay/pkg/logger"
	"github.com/tokmz/relay/pkg/tracing"
)

// newEngine 构建 HTTP 边界
// 升级路径之外一律 404；准入失败 401；非升级请求 426
func (s *Service) newEngine() *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery(), logger.Middleware(s.log.Named("http")), tracing.Middleware(tracing.WithFilter(func(c *gin.Context) bool {
		return c.Request.URL.Path != s.config.HealthPath
	})))

	engine.Any(s.config.Path, s.handleUpgrade)

	if s.config.HealthPath != "" {
		engine.GET(s.config.HealthPath, s.handleHealth)
	}
	if s.config.MetricsPath != "" {
		if h, ok := s.metrics.(metricsHandler); ok {
			engine.GET(s.config.MetricsPath, gin.WrapH(h.Handler()))
		} else {
			s.log.Warn("metrics path configured but metrics implementation exposes no handler",
				zap.String("path", s.config.MetricsPath))
		}
	}

	engine.NoRoute(func(c *gin.Context) {
		c.String(http.StatusNotFound, "Not found")
	})
	return engine
}

// handleUpgrade 升级请求入口
func (s *Service) handleUpgrade(c *gin.Context) {
	r := c.Request

	if !s.accept(r) {
		c.String(http.StatusUnauthorized, "Unauthorized")
		return
	}
	if !websocket.IsWebSocketUpgrade(r) {
		c.String(http.StatusUpgradeRequired, "Expected WebSocket upgrade")
		return
	}
	if s.closing.Load() {
		c.String(http.StatusServiceUnavailable, "Server shutting down")
		return
	}

	conn, err := s.upgrader.Upgrade(c.Writer, r, nil)
	if err != nil {
		// Upgrader 已写入错误响应
		s.recordError(err)
		s.log.Warn("upgrade failed", zap.String("remote", c.ClientIP()), zap.Error(err))
		return
	}
	s.handleConnection(conn, r)
}

// handleHealth 健康检查，返回指标快照
func (s *Service) handleHealth(c *gin.Context) {
	status := http.StatusOK
	if s.closing.Load() {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, s.GetMetrics())
}
