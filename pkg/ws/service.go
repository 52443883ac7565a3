package ws

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tokmz/relay/pkg/bus"
	"github.com/tokmz/relay/pkg/gate"
	"github.com/tokmz/relay/pkg/logger"
	"github.com/tokmz/relay/pkg/tracing"
)

// processStart 进程启动时间，用于计算 Uptime
var processStart = time.Now()

// Service 连接服务
// 负责监听、升级、注册、入站校验、事件发布、广播与优雅关闭
type Service struct {
	// 核心组件
	registry *Registry
	monitor  *LivenessMonitor
	bus      *bus.Bus

	// 配置
	config   *Config
	accept   AcceptFunc
	upgrader websocket.Upgrader
	engine   *gin.Engine

	// 监听
	server   *http.Server
	listener net.Listener

	// 生命周期
	ctx          context.Context
	cancel       context.CancelFunc
	monitorDone  chan struct{}
	conns        sync.WaitGroup // 读协程
	trackMu      sync.Mutex     // 保证 conns.Add 先于 Shutdown 中的 Wait
	started      atomic.Bool
	closing      atomic.Bool
	shutdownOnce sync.Once
	shutdownErr  error

	// 统计
	totalConnections atomic.Int64
	totalMessages    atomic.Int64
	rejectedMessages atomic.Int64
	errorCount       atomic.Int64
	lastErr          atomic.Pointer[errorHolder]

	// 监控
	metrics Metrics
	log     logger.Logger
}

type errorHolder struct {
	err error
}

// NewService 创建连接服务
func NewService(opts ...Option) (*Service, error) {
	config := DefaultConfig()
	for _, opt := range opts {
		opt(config)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	// 默认依赖
	if config.Metrics == nil {
		config.Metrics = NoopMetrics{}
	}
	if config.Logger == nil {
		config.Logger = logger.NewNop()
	}
	if config.Bus == nil {
		config.Bus = bus.New(bus.WithLogger(config.Logger.Named("bus")))
	}

	ctx, cancel := context.WithCancel(context.Background())

	s := &Service{
		registry: NewRegistry(config.MaxConnections),
		bus:      config.Bus,
		config:   config,
		accept:   config.acceptFunc(),
		upgrader: websocket.Upgrader{
			HandshakeTimeout:  config.HandshakeTimeout,
			ReadBufferSize:    config.ReadBufferSize,
			WriteBufferSize:   config.WriteBufferSize,
			EnableCompression: config.EnableCompression,
			// 准入已在升级前判断
			CheckOrigin: allowAll,
		},
		ctx:         ctx,
		cancel:      cancel,
		monitorDone: make(chan struct{}),
		metrics:     config.Metrics,
		log:         config.Logger.Named("ws"),
	}

	s.monitor = NewLivenessMonitor(s.registry, config.LivenessInterval, config.IdleTimeout,
		WithMonitorLogger(s.log.Named("liveness")),
		WithProbeConcurrency(config.BroadcastConcurrency),
		OnEvict(s.onEvict),
		OnProbeFailure(s.onProbeFailure),
	)
	s.engine = s.newEngine()

	return s, nil
}

// Start 监听并开始接受连接，监听就绪后返回
func (s *Service) Start(ctx context.Context) error {
	if s.closing.Load() {
		return ErrServiceClosed
	}
	if !s.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	addr := net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		s.started.Store(false)
		s.recordError(err)
		return ErrStartup.WithError(err)
	}

	s.listener = ln
	s.server = &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: s.config.HandshakeTimeout,
	}

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.recordError(err)
			s.log.Error("listener stopped", zap.Error(err))
		}
	}()

	go func() {
		defer close(s.monitorDone)
		s.monitor.Run(s.ctx)
	}()

	s.log.Info("relay listening",
		zap.String("addr", ln.Addr().String()),
		zap.String("path", s.config.Path),
		zap.Int("max_connections", s.config.MaxConnections),
	)
	return nil
}

// Addr 实际监听地址，未启动时返回 nil
func (s *Service) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Handler 返回 HTTP 处理器，可挂载到外部 http.Server
func (s *Service) Handler() http.Handler {
	return s.engine
}

// Bus 事件总线
func (s *Service) Bus() *bus.Bus {
	return s.bus
}

// Registry 连接注册表
func (s *Service) Registry() *Registry {
	return s.registry
}

// Monitor 存活巡检器
func (s *Service) Monitor() *LivenessMonitor {
	return s.monitor
}

// track 为读协程占位，关闭开始后返回 false
func (s *Service) track() bool {
	s.trackMu.Lock()
	defer s.trackMu.Unlock()
	if s.closing.Load() {
		return false
	}
	s.conns.Add(1)
	return true
}

// handleConnection 接管已升级的连接
func (s *Service) handleConnection(conn *websocket.Conn, r *http.Request) {
	t := newWSTransport(conn, s.config.WriteWait)
	if !s.track() {
		_ = t.Close(CloseShutdown, closeReasonShutdown)
		return
	}
	reading := false
	defer func() {
		if !reading {
			s.conns.Done()
		}
	}()

	c := NewConnection(NewConnectionID(), t, time.Now(),
		WithRemoteAddr(t.RemoteAddr()),
		WithOrigin(r.Header.Get("Origin")),
	)

	if err := s.registry.Register(c); err != nil {
		if errors.Is(err, ErrCapacityExceeded) {
			s.metrics.IncrementRejectedConnections()
			s.log.Warn("connection rejected", zap.String("remote", c.RemoteAddr), zap.Error(err))
			_ = t.Close(CloseCapacity, closeReasonCapacity)
			return
		}
		s.reportError(c.ID, err)
		_ = t.Close(CloseInternal, closeReasonInternal)
		return
	}

	// 关闭过程中到达的连接
	if s.closing.Load() {
		s.registry.Unregister(c.ID)
		_ = t.Close(CloseShutdown, closeReasonShutdown)
		return
	}

	s.totalConnections.Add(1)
	s.metrics.IncrementConnections()

	conn.SetReadLimit(s.config.readLimit())
	conn.SetPongHandler(func(string) error {
		s.registry.Touch(c.ID, time.Now())
		return nil
	})

	if err := c.SendFrame(NewConnectedFrame(c.ID)); err != nil {
		s.dropConnection(c, err)
		return
	}

	s.bus.Publish(ConnectionOpened{ConnectionID: c.ID, Timestamp: c.ConnectedAt})
	s.log.Debug("connection opened", zap.String("connection_id", c.ID), zap.String("remote", c.RemoteAddr))

	reading = true
	go func() {
		defer s.conns.Done()
		s.readLoop(c, conn)
	}()
}

// readLoop 按到达顺序处理入站帧
func (s *Service) readLoop(c *Connection, conn *websocket.Conn) {
	ctx := logger.WithConnectionID(s.ctx, c.ID)
	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			s.handleReadError(ctx, c, err)
			return
		}
		s.handleFrame(ctx, c, mt, data)
	}
}

// handleFrame 校验并分发单个入站帧
func (s *Service) handleFrame(ctx context.Context, c *Connection, mt int, data []byte) {
	ctx, span := tracing.StartFrameSpan(ctx, c.ID, len(data))
	defer span.End()

	// 二进制帧以 []byte 进入校验，被判定为非文本
	var raw any = data
	if mt == websocket.TextMessage {
		raw = string(data)
	}

	res := gate.Validate(raw, s.config.MaxMessageSize)
	if !res.Accepted {
		s.rejectedMessages.Add(1)
		s.metrics.IncrementInvalidMessages(string(res.Reason))
		tracing.MarkRejected(span, string(res.Reason))

		var echo string
		if text, ok := raw.(string); ok {
			echo = text
		}
		if err := c.SendFrame(NewErrorFrame(string(res.Reason), echo, CodeInvalidFormat)); err != nil {
			tracing.RecordError(span, err)
			s.dropConnection(c, err)
		}
		s.log.DebugContext(ctx, "frame rejected", zap.String("reason", string(res.Reason)))
		return
	}

	if _, ok := s.registry.IncrementMessages(c.ID); !ok {
		// 已被剔除
		return
	}
	s.totalMessages.Add(1)

	msgType := s.messageType(res.Payload)
	s.metrics.IncrementMessageCount(msgType)
	span.SetAttributes(tracing.AttrMessageType.String(msgType))

	s.bus.Publish(MessageReceived{
		ConnectionID: c.ID,
		Message:      res.Payload,
		Timestamp:    time.Now(),
	})
}

// messageType 指标标签，只取已知类型避免高基数
func (s *Service) messageType(payload string) string {
	kind, err := gate.Discriminator(payload)
	if err != nil {
		return "other"
	}
	switch kind {
	case "EVENT", "REQ", "CLOSE", "AUTH", "COUNT":
		return kind
	default:
		return "other"
	}
}

// handleReadError 读失败即连接结束
func (s *Service) handleReadError(ctx context.Context, c *Connection, err error) {
	if s.closing.Load() {
		return
	}
	if _, ok := s.registry.Get(c.ID); !ok {
		// 剔除、广播失败已处理
		return
	}

	// 收到关闭帧即为对端关闭，不论关闭码；1006 表示未收到关闭帧
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) && closeErr.Code != websocket.CloseAbnormalClosure {
		s.closeConnection(c, ReasonPeerClosed)
		return
	}

	s.metrics.IncrementReadErrors()
	s.log.WarnContext(ctx, "read failed", zap.Error(err))
	s.dropConnection(c, err)
}

// closeConnection 移除连接并发布断开事件，仅首次调用生效
func (s *Service) closeConnection(c *Connection, reason string) bool {
	if _, ok := s.registry.Unregister(c.ID); !ok {
		return false
	}
	_ = c.Close(websocket.CloseNormalClosure, "")
	s.metrics.DecrementConnections()
	s.publishClosed(c, reason)
	return true
}

// dropConnection 传输失败：记录错误并移除连接
func (s *Service) dropConnection(c *Connection, err error) {
	if !errors.Is(err, ErrTransport) {
		err = ErrTransport.WithError(err)
	}
	s.reportError(c.ID, err)

	if _, ok := s.registry.Unregister(c.ID); !ok {
		return
	}
	_ = c.Close(CloseInternal, closeReasonInternal)
	s.metrics.DecrementConnections()
	s.publishClosed(c, ReasonTransportError)
}

func (s *Service) publishClosed(c *Connection, reason string) {
	info := c.info()
	s.bus.Publish(ConnectionClosed{
		ConnectionID: c.ID,
		Timestamp:    time.Now(),
		MessageCount: info.MessageCount,
		Reason:       reason,
	})
	s.log.Debug("connection closed",
		zap.String("connection_id", c.ID),
		zap.String("reason", reason),
		zap.Int64("messages", info.MessageCount),
	)
}

// onEvict 巡检剔除回调
func (s *Service) onEvict(c *Connection, reason string) {
	s.metrics.IncrementEvictions("timeout")
	s.metrics.DecrementConnections()
	s.publishClosed(c, reason)
}

// onProbeFailure 探测发送失败回调
func (s *Service) onProbeFailure(c *Connection, err error) {
	s.metrics.IncrementEvictions("probe_failed")
	s.metrics.IncrementWriteErrors()
	s.metrics.DecrementConnections()
	s.reportError(c.ID, err)
	s.publishClosed(c, ReasonTransportError)
}

// recordError 更新错误计数与最近错误
func (s *Service) recordError(err error) {
	s.errorCount.Add(1)
	s.lastErr.Store(&errorHolder{err: err})
}

// reportError 记录并发布连接错误
func (s *Service) reportError(connectionID string, err error) {
	s.recordError(err)
	s.bus.Publish(ConnectionError{
		ConnectionID: connectionID,
		Err:          err,
		Timestamp:    time.Now(),
	})
	s.log.Error("connection error", zap.String("connection_id", connectionID), zap.Error(err))
}

// Broadcast 向满足 filter 的连接并发发送消息，filter 为 nil 时发送给全部连接
// 单个连接发送失败只移除该连接；返回成功发送数，ctx 取消时返回 ctx.Err()
func (s *Service) Broadcast(ctx context.Context, msg any, filter func(ConnectionInfo) bool) (int, error) {
	data, err := encodeMessage(msg)
	if err != nil {
		return 0, err
	}

	start := time.Now()
	targets := s.registry.ForEach(filter)

	var (
		g    errgroup.Group
		sent atomic.Int64
	)
	g.SetLimit(s.config.BroadcastConcurrency)
	for _, c := range targets {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := c.Send(data); err != nil {
				s.metrics.IncrementWriteErrors()
				s.dropConnection(c, err)
				return nil
			}
			sent.Add(1)
			return nil
		})
	}
	err = g.Wait()

	s.metrics.RecordBroadcastLatency(time.Since(start))
	return int(sent.Load()), err
}

// Shutdown 优雅关闭：停止巡检、停止监听、以 1001 关闭全部连接并清空注册表
// 可重复调用
func (s *Service) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() {
		s.trackMu.Lock()
		s.closing.Store(true)
		s.trackMu.Unlock()
		s.cancel()

		if s.started.Load() {
			<-s.monitorDone
			if err := s.server.Shutdown(ctx); err != nil {
				s.shutdownErr = err
			}
		}

		conns := s.registry.Clear()
		s.metrics.SetConnectionCount(0)

		// 并发关闭并等待读协程退出，受 ctx 截止时间约束
		done := make(chan struct{})
		go func() {
			var g errgroup.Group
			g.SetLimit(s.config.BroadcastConcurrency)
			for _, c := range conns {
				g.Go(func() error {
					_ = c.Close(CloseShutdown, closeReasonShutdown)
					return nil
				})
			}
			_ = g.Wait()
			s.conns.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			if s.shutdownErr == nil {
				s.shutdownErr = ctx.Err()
			}
		}

		s.log.Info("relay stopped", zap.Int("closed", len(conns)))
	})
	return s.shutdownErr
}

// GetMetrics 运行时指标快照
func (s *Service) GetMetrics() MetricsSnapshot {
	snap := MetricsSnapshot{
		TotalConnections:  s.totalConnections.Load(),
		TotalMessages:     s.totalMessages.Load(),
		RejectedMessages:  s.rejectedMessages.Load(),
		Errors:            s.errorCount.Load(),
		Uptime:            time.Since(processStart),
		ActiveConnections: s.registry.Size(),
	}
	if h := s.lastErr.Load(); h != nil {
		snap.LastError = h.err
		snap.LastErrorMessage = h.err.Error()
	}
	return snap
}
