package middleware

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/simgate-dev/simgate/internal/errors"
	"github.com/simgate-dev/simgate/pkg/protocol"
	"github.com/simgate-dev/simgate/pkg/server"
	"github.com/simgate-dev/simgate/pkg/simulation"
)

// MetricsConfig configures the Prometheus metrics middleware.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "simgate").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for message duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus metrics middleware.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "simgate",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

func newMetricsConfig(opts []MetricsOption) MetricsConfig {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}
	return config
}

type metrics struct {
	messagesTotal   *prometheus.CounterVec
	messageDuration *prometheus.HistogramVec
	messageErrors   *prometheus.CounterVec
}

// globalMetrics is created on the first call to Prometheus.
var (
	globalMetrics   *metrics
	globalMetricsMu sync.Mutex
)

func initMetrics(config MetricsConfig) *metrics {
	factory := promauto.With(config.Registry)

	return &metrics{
		messagesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "messages_total",
			Help:        "Total number of inbound messages handled",
			ConstLabels: config.ConstLabels,
		}, []string{"type", "status"}),

		messageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "message_duration_seconds",
			Help:        "Inbound message handling duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"type"}),

		messageErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "message_errors_total",
			Help:        "Total number of inbound message handling errors",
			ConstLabels: config.ConstLabels,
		}, []string{"type", "error_type"}),
	}
}

// Prometheus creates middleware that collects Prometheus metrics for
// inbound messages.
//
// Metrics collected:
//   - simgate_messages_total: Counter of messages by type and status
//   - simgate_message_duration_seconds: Histogram of handling duration
//   - simgate_message_errors_total: Counter of errors by type and error type
//
// Types clients may not send are counted as "unknown" so that arbitrary
// input cannot grow label cardinality.
func Prometheus(opts ...MetricsOption) server.Middleware {
	config := newMetricsConfig(opts)

	globalMetricsMu.Lock()
	if globalMetrics == nil {
		globalMetrics = initMetrics(config)
	}
	m := globalMetrics
	globalMetricsMu.Unlock()

	return func(next server.HandlerFunc) server.HandlerFunc {
		return func(ctx context.Context, req *server.Request) error {
			typ := typeLabel(req.Type())
			start := time.Now()

			err := next(ctx, req)

			m.messageDuration.WithLabelValues(typ).Observe(time.Since(start).Seconds())
			status := "success"
			if err != nil {
				status = "error"
				m.messageErrors.WithLabelValues(typ, categorizeError(err)).Inc()
			}
			m.messagesTotal.WithLabelValues(typ, status).Inc()
			return err
		}
	}
}

func typeLabel(t protocol.MessageType) string {
	if t.IsInbound() {
		return string(t)
	}
	return "unknown"
}

// categorizeError maps an error to a low-cardinality label.
func categorizeError(err error) string {
	switch {
	case stderrors.Is(err, simulation.ErrNotLoaded):
		return "not_loaded"
	case stderrors.Is(err, simulation.ErrMalformedURL):
		return "malformed_url"
	case stderrors.Is(err, simulation.ErrUnsupportedScheme):
		return "unsupported_scheme"
	case stderrors.Is(err, server.ErrUnknownConnection):
		return "unknown_connection"
	case stderrors.Is(err, context.DeadlineExceeded):
		return "timeout"
	}
	var coded *errors.Error
	if stderrors.As(err, &coded) && coded.Category != "" {
		return string(coded.Category)
	}
	return "internal"
}

// RegisterServerMetrics exposes the server's counters and the registry's
// current stats as Prometheus metrics:
//
//   - simgate_connections, simgate_controllers, simgate_waiting,
//     simgate_observers: gauges read from the registry
//   - simgate_connections_accepted_total, simgate_notifications_sent_total,
//     simgate_delivery_failures_total, simgate_messages_dropped_total,
//     simgate_bytes_sent_total, simgate_bytes_received_total: counters read
//     from the server's MetricsCollector
func RegisterServerMetrics(srv *server.Server, opts ...MetricsOption) {
	config := newMetricsConfig(opts)
	factory := promauto.With(config.Registry)

	gauge := func(name, help string, read func(*server.ServerMetrics) int) {
		factory.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        name,
			Help:        help,
			ConstLabels: config.ConstLabels,
		}, func() float64 { return float64(read(srv.Metrics())) })
	}
	counter := func(name, help string, read func(*server.ServerMetrics) int64) {
		factory.NewCounterFunc(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        name,
			Help:        help,
			ConstLabels: config.ConstLabels,
		}, func() float64 { return float64(read(srv.Metrics())) })
	}

	gauge("connections", "Number of live connections",
		func(m *server.ServerMetrics) int { return m.Registry.Connections })
	gauge("controllers", "Number of connections controlling a simulation",
		func(m *server.ServerMetrics) int { return m.Registry.Controllers })
	gauge("waiting", "Number of connections queued for simulator capacity",
		func(m *server.ServerMetrics) int { return m.Registry.Waiting })
	gauge("observers", "Number of connections observing the shared simulation",
		func(m *server.ServerMetrics) int { return m.Registry.Observers })

	counter("connections_accepted_total", "Total number of accepted connections",
		func(m *server.ServerMetrics) int64 { return m.ConnectionsAccepted })
	counter("notifications_sent_total", "Total number of frames handed to connections",
		func(m *server.ServerMetrics) int64 { return m.NotificationsSent })
	counter("delivery_failures_total", "Total number of frames a connection refused",
		func(m *server.ServerMetrics) int64 { return m.DeliveryFailures })
	counter("messages_dropped_total", "Total number of inbound messages dropped by rate limiting",
		func(m *server.ServerMetrics) int64 { return m.MessagesDropped })
	counter("bytes_sent_total", "Total bytes of frames handed to connections",
		func(m *server.ServerMetrics) int64 { return m.BytesSent })
	counter("bytes_received_total", "Total bytes of inbound messages",
		func(m *server.ServerMetrics) int64 { return m.BytesReceived })
}
