// Package server is the session controller and websocket front end.
//
// # Architecture
//
//   - Controller: turns connection events and inbound messages into
//     admission decisions (pkg/session), simulation calls (pkg/simulation)
//     and notifications
//   - Dispatcher: encodes envelopes as LZ4 binary frames and fans them out
//     to connection sinks; failures are logged and counted, never retried
//   - Server: chi router serving /ws, /healthz, /status and /metrics
//
// # Connection Lifecycle
//
// Each websocket connection runs two goroutines:
//   - readLoop: reads messages, applies the per-connection rate limit and
//     hands them to Controller.HandleFrame
//   - writePump: drains the connection's bounded send queue and pings
//
// When the read loop ends the connection is disconnected from the
// controller, which frees whatever it held and notifies the connections
// its departure affects.
//
// # Middleware
//
// Message handling can be wrapped with Middleware (see pkg/middleware for
// Prometheus and OpenTelemetry implementations):
//
//	ctrl := server.NewController(registry, provider,
//	    server.WithMiddleware(middleware.Prometheus(), middleware.OpenTelemetry()),
//	)
package server
