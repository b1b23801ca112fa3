// Package middleware provides message middleware for the session
// controller.
//
// This package includes:
//   - Prometheus metrics for inbound messages plus server and registry gauges
//   - OpenTelemetry tracing of inbound messages
//
// # Prometheus Metrics
//
//	ctrl := server.NewController(registry, provider,
//	    server.WithMiddleware(middleware.Prometheus(middleware.WithNamespace("simgate"))),
//	)
//	srv := server.New(cfg, ctrl, collector)
//	middleware.RegisterServerMetrics(srv)
//
// # OpenTelemetry Middleware
//
// Every inbound message becomes a server span named after its type. The
// span context is passed to the handler, so outbound calls made while
// loading a simulation (fetching a model over HTTP, reading from S3) can be
// traced as children.
//
//	middleware.OpenTelemetry(
//	    middleware.WithTracerName("simgate"),
//	    middleware.WithMessageFilter(func(req *server.Request) bool {
//	        return req.Type() != protocol.InVersion
//	    }),
//	)
//
// The tracer comes from the global provider; configure it with
// otel.SetTracerProvider before building the controller.
package middleware
