package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/simgate-dev/simgate/pkg/server"
)

const defaultTracerName = "simgate"

// OTelConfig configures the OpenTelemetry middleware.
type OTelConfig struct {
	// TracerName is the name of the tracer (default: "simgate").
	TracerName string

	// IncludeRequestID records the client-supplied request id on each span.
	// Disabled by default.
	IncludeRequestID bool

	// Filter determines which messages to trace.
	// If nil, all messages are traced.
	Filter func(req *server.Request) bool

	// AttributeExtractor returns extra attributes for each traced message.
	AttributeExtractor func(req *server.Request) []attribute.KeyValue

	tracer trace.Tracer
}

// OTelOption configures the OpenTelemetry middleware.
type OTelOption func(*OTelConfig)

// WithTracerName sets the tracer name.
func WithTracerName(name string) OTelOption {
	return func(c *OTelConfig) {
		c.TracerName = name
	}
}

// WithIncludeRequestID enables recording request ids on spans.
func WithIncludeRequestID(include bool) OTelOption {
	return func(c *OTelConfig) {
		c.IncludeRequestID = include
	}
}

// WithMessageFilter sets a filter function for messages.
func WithMessageFilter(filter func(req *server.Request) bool) OTelOption {
	return func(c *OTelConfig) {
		c.Filter = filter
	}
}

// WithAttributeExtractor sets a custom attribute extractor.
func WithAttributeExtractor(extractor func(req *server.Request) []attribute.KeyValue) OTelOption {
	return func(c *OTelConfig) {
		c.AttributeExtractor = extractor
	}
}

func defaultOTelConfig() OTelConfig {
	return OTelConfig{
		TracerName: defaultTracerName,
	}
}

// OpenTelemetry creates middleware that traces every inbound message.
//
// The middleware:
//   - Creates a server span per message with connection id, message type
//     and the connection's run mode before and after handling
//   - Passes the span context to the handler for downstream calls
//   - Records errors and sets span status
func OpenTelemetry(opts ...OTelOption) server.Middleware {
	config := defaultOTelConfig()
	for _, opt := range opts {
		opt(&config)
	}
	config.tracer = otel.Tracer(config.TracerName)

	return func(next server.HandlerFunc) server.HandlerFunc {
		return func(ctx context.Context, req *server.Request) error {
			if config.Filter != nil && !config.Filter(req) {
				return next(ctx, req)
			}

			attrs := []attribute.KeyValue{
				attribute.String("simgate.conn_id", req.ConnID()),
				attribute.String("simgate.message_type", typeLabel(req.Type())),
				attribute.String("simgate.run_mode", req.Conn.Mode().String()),
			}
			if config.IncludeRequestID && req.RequestID() != "" {
				attrs = append(attrs, attribute.String("simgate.request_id", req.RequestID()))
			}
			if config.AttributeExtractor != nil {
				attrs = append(attrs, config.AttributeExtractor(req)...)
			}

			spanCtx, span := config.tracer.Start(ctx, spanName(req),
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(attrs...),
			)
			defer span.End()

			err := next(spanCtx, req)

			span.SetAttributes(attribute.String("simgate.run_mode_after", req.Conn.Mode().String()))
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			} else {
				span.SetStatus(codes.Ok, "")
			}
			return err
		}
	}
}

func spanName(req *server.Request) string {
	return "simgate." + typeLabel(req.Type())
}
