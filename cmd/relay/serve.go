package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tokmz/relay/pkg/config"
	"github.com/tokmz/relay/pkg/forward"
	"github.com/tokmz/relay/pkg/logger"
	"github.com/tokmz/relay/pkg/protocol"
	"github.com/tokmz/relay/pkg/tracing"
	"github.com/tokmz/relay/pkg/ws"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Accept WebSocket connections and relay inbound messages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			loader, settings, err := opts.load(cmd.Flags())
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, loader, settings)
		},
	}
}

func serve(ctx context.Context, loader *config.Loader, settings *config.Settings) error {
	logOpts, err := settings.LoggerOptions()
	if err != nil {
		return err
	}
	log, err := logger.NewWithOptions(logOpts...)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	if log.Level() > logger.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}

	// 热更新日志级别，其余配置需重启生效
	loader.OnChange(func() {
		next, err := loader.Settings()
		if err != nil {
			log.Warn("config reload rejected", zap.Error(err))
			return
		}
		level, err := logger.ParseLevel(next.Log.Level)
		if err != nil {
			return
		}
		if level != log.Level() {
			log.SetLevel(level)
			log.Info("log level changed", zap.String("level", level.String()))
		}
	})

	if _, err := tracing.Setup(ctx, &settings.Tracing); err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracing.Shutdown(sctx); err != nil {
			log.Warn("tracing shutdown failed", zap.Error(err))
		}
	}()

	svc, err := ws.NewService(serviceOptions(settings, log)...)
	if err != nil {
		return err
	}

	router := protocol.NewRouter(protocol.WithLogger(log.Named("protocol")))
	router.Use(router.Logging())
	if err := router.RegisterDefaults(); err != nil {
		return err
	}
	router.Freeze()
	router.Attach(svc.Bus())

	fwd, err := openForwarder(ctx, settings.Forward, log)
	if err != nil {
		return err
	}
	if fwd != nil {
		fwd.Attach(svc.Bus())
	}

	if err := svc.Start(ctx); err != nil {
		if fwd != nil {
			_ = fwd.Close(context.Background())
		}
		return err
	}
	log.Info("relay started",
		zap.String("addr", svc.Addr().String()),
		zap.String("path", settings.Server.Path),
		zap.String("forward", settings.Forward.Backend),
	)

	if settings.Metrics.LogInterval > 0 {
		go logMetrics(ctx, svc, fwd, log, settings.Metrics.LogInterval)
	}

	<-ctx.Done()
	log.Info("shutting down")

	sctx, cancel := context.WithTimeout(context.Background(), settings.Server.ShutdownTimeout)
	defer cancel()

	err = svc.Shutdown(sctx)
	if fwd != nil {
		if ferr := fwd.Close(sctx); ferr != nil {
			log.Warn("forwarder close failed", zap.Error(ferr))
		}
	}
	return err
}

func serviceOptions(s *config.Settings, log logger.Logger) []ws.Option {
	opts := []ws.Option{
		ws.WithHost(s.Server.Host),
		ws.WithPort(s.Server.Port),
		ws.WithPath(s.Server.Path),
		ws.WithHealthPath(s.Server.HealthPath),
		ws.WithAllowedOrigins(s.Server.AllowedOrigins),
		ws.WithMaxConnections(s.Relay.MaxConnections),
		ws.WithMaxMessageSize(s.Relay.MaxMessageSize),
		ws.WithLivenessInterval(s.Relay.LivenessInterval),
		ws.WithIdleTimeout(s.Relay.IdleTimeout),
		ws.WithWriteWait(s.Relay.WriteWait),
		ws.WithBroadcastConcurrency(s.Relay.BroadcastConcurrency),
		ws.WithEnableCompression(s.Relay.EnableCompression),
		ws.WithLogger(log),
	}
	if s.Metrics.Enabled {
		opts = append(opts,
			ws.WithMetrics(ws.NewPrometheusMetrics()),
			ws.WithMetricsPath(s.Metrics.Path),
		)
	}
	return opts
}

func openForwarder(ctx context.Context, cfg forward.Config, log logger.Logger) (*forward.Forwarder, error) {
	pub, err := forward.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if pub == nil {
		return nil, nil
	}
	return forward.New(pub, cfg.QueueSize, cfg.Workers,
		forward.WithLogger(log.Named("forward")),
		forward.WithPublishTimeout(cfg.PublishTimeout),
	), nil
}

func logMetrics(ctx context.Context, svc *ws.Service, fwd *forward.Forwarder, log logger.Logger, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m := svc.GetMetrics()
			fields := []zap.Field{
				zap.Int("active_connections", m.ActiveConnections),
				zap.Int64("total_connections", m.TotalConnections),
				zap.Int64("total_messages", m.TotalMessages),
				zap.Int64("rejected_messages", m.RejectedMessages),
				zap.Int64("errors", m.Errors),
				zap.Duration("uptime", m.Uptime),
			}
			if m.LastErrorMessage != "" {
				fields = append(fields, zap.String("last_error", m.LastErrorMessage))
			}
			if fwd != nil {
				st := fwd.Stats()
				fields = append(fields,
					zap.Int64("forwarded", st.Forwarded),
					zap.Int64("forward_dropped", st.Dropped),
					zap.Int64("forward_failed", st.Failed),
				)
			}
			log.Info("relay metrics", fields...)
		}
	}
}
