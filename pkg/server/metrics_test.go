package server

import "testing"

func TestMetricsCollector(t *testing.T) {
	m := NewMetricsCollector()
	m.RecordConnect()
	m.RecordConnect()
	m.RecordDisconnect()
	m.RecordMessageReceived(10)
	m.RecordMessageDropped()
	m.RecordNotification(100)
	m.RecordDeliveryFailure()
	m.RecordWriteError()
	m.RecordReadError()

	s := m.Snapshot()
	if s.ConnectionsAccepted != 2 || s.ConnectionsClosed != 1 {
		t.Errorf("connections = %d/%d", s.ConnectionsAccepted, s.ConnectionsClosed)
	}
	if s.MessagesReceived != 1 || s.BytesReceived != 10 || s.MessagesDropped != 1 {
		t.Errorf("inbound = %+v", s)
	}
	if s.NotificationsSent != 1 || s.BytesSent != 100 || s.DeliveryFailures != 1 {
		t.Errorf("outbound = %+v", s)
	}
	if s.WriteErrors != 1 || s.ReadErrors != 1 {
		t.Errorf("errors = %+v", s)
	}

	m.Reset()
	if s := m.Snapshot(); s.ConnectionsAccepted != 0 || s.BytesSent != 0 {
		t.Errorf("after Reset = %+v", s)
	}
}

func TestNilMetricsCollector(t *testing.T) {
	var m *MetricsCollector
	m.RecordConnect()
	m.RecordNotification(1)
	m.Reset()
	if s := m.Snapshot(); s.ConnectionsAccepted != 0 {
		t.Errorf("nil snapshot = %+v", s)
	}
}
