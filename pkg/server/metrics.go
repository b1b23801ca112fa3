package server

import (
	"sync/atomic"
	"time"

	"github.com/simgate-dev/simgate/pkg/session"
)

// ServerMetrics aggregates metrics across the server.
type ServerMetrics struct {
	// Connections
	ConnectionsAccepted int64 `json:"connectionsAccepted"`
	ConnectionsClosed   int64 `json:"connectionsClosed"`

	// Inbound
	MessagesReceived int64 `json:"messagesReceived"`
	MessagesDropped  int64 `json:"messagesDropped"`
	DecodeErrors     int64 `json:"decodeErrors"`

	// Outbound
	NotificationsSent int64 `json:"notificationsSent"`
	DeliveryFailures  int64 `json:"deliveryFailures"`

	// Network
	BytesSent     int64 `json:"bytesSent"`
	BytesReceived int64 `json:"bytesReceived"`

	// Errors
	WriteErrors int64 `json:"writeErrors"`
	ReadErrors  int64 `json:"readErrors"`

	// Registry is filled in by Server.Metrics.
	Registry session.Stats `json:"registry"`

	CollectedAt time.Time `json:"collectedAt"`
}

// MetricsCollector counts server events. All methods are safe for
// concurrent use; a nil collector ignores every call.
type MetricsCollector struct {
	connectionsAccepted atomic.Int64
	connectionsClosed   atomic.Int64
	messagesReceived    atomic.Int64
	messagesDropped     atomic.Int64
	decodeErrors        atomic.Int64
	notificationsSent   atomic.Int64
	deliveryFailures    atomic.Int64
	bytesSent           atomic.Int64
	bytesReceived       atomic.Int64
	writeErrors         atomic.Int64
	readErrors          atomic.Int64
}

// NewMetricsCollector creates a new MetricsCollector.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{}
}

// RecordConnect records an accepted connection.
func (m *MetricsCollector) RecordConnect() {
	if m != nil {
		m.connectionsAccepted.Add(1)
	}
}

// RecordDisconnect records a connection leaving.
func (m *MetricsCollector) RecordDisconnect() {
	if m != nil {
		m.connectionsClosed.Add(1)
	}
}

// RecordMessageReceived records an inbound message of n bytes.
func (m *MetricsCollector) RecordMessageReceived(n int) {
	if m != nil {
		m.messagesReceived.Add(1)
		m.bytesReceived.Add(int64(n))
	}
}

// RecordMessageDropped records an inbound message dropped by rate limiting.
func (m *MetricsCollector) RecordMessageDropped() {
	if m != nil {
		m.messagesDropped.Add(1)
	}
}

// RecordDecodeError records an inbound message that could not be decoded.
func (m *MetricsCollector) RecordDecodeError() {
	if m != nil {
		m.decodeErrors.Add(1)
	}
}

// RecordNotification records a frame of n bytes handed to a sink.
func (m *MetricsCollector) RecordNotification(n int) {
	if m != nil {
		m.notificationsSent.Add(1)
		m.bytesSent.Add(int64(n))
	}
}

// RecordDeliveryFailure records a frame a sink refused.
func (m *MetricsCollector) RecordDeliveryFailure() {
	if m != nil {
		m.deliveryFailures.Add(1)
	}
}

// RecordWriteError records a websocket write error.
func (m *MetricsCollector) RecordWriteError() {
	if m != nil {
		m.writeErrors.Add(1)
	}
}

// RecordReadError records a websocket read error.
func (m *MetricsCollector) RecordReadError() {
	if m != nil {
		m.readErrors.Add(1)
	}
}

// Snapshot returns current metrics.
func (m *MetricsCollector) Snapshot() *ServerMetrics {
	if m == nil {
		return &ServerMetrics{CollectedAt: time.Now()}
	}
	return &ServerMetrics{
		ConnectionsAccepted: m.connectionsAccepted.Load(),
		ConnectionsClosed:   m.connectionsClosed.Load(),
		MessagesReceived:    m.messagesReceived.Load(),
		MessagesDropped:     m.messagesDropped.Load(),
		DecodeErrors:        m.decodeErrors.Load(),
		NotificationsSent:   m.notificationsSent.Load(),
		DeliveryFailures:    m.deliveryFailures.Load(),
		BytesSent:           m.bytesSent.Load(),
		BytesReceived:       m.bytesReceived.Load(),
		WriteErrors:         m.writeErrors.Load(),
		ReadErrors:          m.readErrors.Load(),
		CollectedAt:         time.Now(),
	}
}

// Reset resets all counters.
func (m *MetricsCollector) Reset() {
	if m == nil {
		return
	}
	m.connectionsAccepted.Store(0)
	m.connectionsClosed.Store(0)
	m.messagesReceived.Store(0)
	m.messagesDropped.Store(0)
	m.decodeErrors.Store(0)
	m.notificationsSent.Store(0)
	m.deliveryFailures.Store(0)
	m.bytesSent.Store(0)
	m.bytesReceived.Store(0)
	m.writeErrors.Store(0)
	m.readErrors.Store(0)
}
