package server

import (
	"log/slog"

	"github.com/simgate-dev/simgate/pkg/protocol"
	"github.com/simgate-dev/simgate/pkg/session"
)

// Dispatcher encodes notifications and hands them to connection sinks.
//
// Delivery is at most once. A failing sink is logged and counted; it never
// stops delivery to the remaining targets and is never retried.
type Dispatcher struct {
	metrics *MetricsCollector
	logger  *slog.Logger
}

// NewDispatcher creates a Dispatcher. metrics may be nil.
func NewDispatcher(metrics *MetricsCollector, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		metrics: metrics,
		logger:  logger.With("component", "dispatcher"),
	}
}

// Notify sends one envelope to target.
func (d *Dispatcher) Notify(requestID string, target *session.Connection, typ protocol.MessageType, data string) error {
	frame, err := protocol.EncodeFrame(protocol.NewEnvelope(requestID, typ, data))
	if err != nil {
		d.logger.Error("encode failed", "type", typ, "error", err)
		return err
	}
	return d.send(target, typ, frame)
}

// NotifyAll sends the same envelope to every target and returns how many
// deliveries failed.
func (d *Dispatcher) NotifyAll(targets []*session.Connection, typ protocol.MessageType, data string) int {
	if len(targets) == 0 {
		return 0
	}
	frame, err := protocol.EncodeFrame(protocol.NewEnvelope("", typ, data))
	if err != nil {
		d.logger.Error("encode failed", "type", typ, "error", err)
		return len(targets)
	}
	failed := 0
	for _, t := range targets {
		if d.send(t, typ, frame) != nil {
			failed++
		}
	}
	return failed
}

// Deliver sends the notices of an admission decision in order.
func (d *Dispatcher) Deliver(notices []session.Notice) int {
	failed := 0
	for _, n := range notices {
		if d.Notify("", n.Target, n.Type, n.Data) != nil {
			failed++
		}
	}
	return failed
}

func (d *Dispatcher) send(target *session.Connection, typ protocol.MessageType, frame []byte) error {
	if err := target.Sink().Send(frame); err != nil {
		d.metrics.RecordDeliveryFailure()
		d.logger.Warn("delivery failed", "conn_id", target.ID(), "type", typ, "error", err)
		return NewConnectionError(target.ID(), "send "+string(typ), err)
	}
	d.metrics.RecordNotification(len(frame))
	return nil
}
