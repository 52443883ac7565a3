// Package ws implements the WebSocket front door of the relay: it accepts
// connections, validates every inbound text frame and announces what happens
// on an event bus. It never interprets accepted messages.
//
// # Features
//
//   - Bounded connection registry (default 10,000 connections)
//   - Ping/pong liveness monitor with idle eviction
//   - Structural validation of inbound frames (JSON array with a string discriminator)
//   - Lifecycle events: connection-opened, connection-closed, message-received, connection-error
//   - Concurrent broadcast with per-connection failure isolation
//   - Origin allow-list or custom accept predicate
//   - Prometheus metrics and a JSON health endpoint
//   - Graceful shutdown with close code 1001
//
// # Basic Usage
//
//	svc, err := ws.NewService(
//	    ws.WithPort(8080),
//	    ws.WithMaxConnections(10000),
//	    ws.WithAllowedOrigins([]string{"https://example.com"}),
//	    ws.WithHealthPath("/healthz"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	bus.On(svc.Bus(), func(e ws.MessageReceived) error {
//	    fmt.Println(e.ConnectionID, e.Message)
//	    return nil
//	})
//
//	if err := svc.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
//	// Graceful shutdown
//	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
//	defer cancel()
//	svc.Shutdown(ctx)
//
// # Wire Format
//
// Control frames sent by the service are JSON objects:
//
//	{"type":"CONNECTED","payload":{"connectionId":"<64 hex chars>"}}
//	{"type":"ERROR","payload":{"error":"not valid JSON","message":"...","code":"INVALID_FORMAT"}}
//
// Close codes:
//
//	1013  maximum connections reached (no record is created)
//	1000  connection timeout (liveness)
//	1001  server shutting down
//	1011  internal error (failed probe or send)
//
// # Broadcast
//
// Broadcast sends to every connection matching the filter concurrently and
// waits for all sends. A failed send drops that connection only:
//
//	n, err := svc.Broadcast(ctx, []any{"NOTICE", "maintenance"}, func(c ws.ConnectionInfo) bool {
//	    return c.MessageCount > 0
//	})
//
// # Monitoring
//
// Pass a Metrics implementation with WithMetrics. PrometheusMetrics is
// exposed on the metrics path when one is configured:
//
//	svc, _ := ws.NewService(
//	    ws.WithMetrics(ws.NewPrometheusMetrics()),
//	    ws.WithMetricsPath("/metrics"),
//	)
//
// GetMetrics returns a snapshot of the service-wide counters at any time.
package ws
