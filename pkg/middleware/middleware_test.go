package middleware

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/simgate-dev/simgate/pkg/protocol"
	"github.com/simgate-dev/simgate/pkg/server"
	"github.com/simgate-dev/simgate/pkg/session"
	"github.com/simgate-dev/simgate/pkg/simulation"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

type nopSink struct{}

func (nopSink) Send([]byte) error { return nil }

func newRequest(id string, typ protocol.MessageType) *server.Request {
	return &server.Request{
		Conn:     session.NewConnection(id, nopSink{}),
		Envelope: &protocol.Envelope{RequestID: "r1", Type: typ},
	}
}

func okHandler(context.Context, *server.Request) error { return nil }

func errHandler(err error) server.HandlerFunc {
	return func(context.Context, *server.Request) error { return err }
}

func newTestServer(t *testing.T, mode session.BehaviorMode, capacity int) (*server.Server, *server.Controller) {
	t.Helper()
	logger := testLogger()
	cfg := session.NewServerConfig(mode, capacity, "testsim")
	registry := session.NewRegistry(cfg, logger)
	provider := simulation.NewSharedProvider(simulation.NewLocal("testsim", capacity, nil, simulation.WithLogger(logger)))
	collector := server.NewMetricsCollector()
	ctrl := server.NewController(registry, provider,
		server.WithMetrics(collector),
		server.WithLogger(logger),
	)
	srv := server.New(&server.Config{}, ctrl, collector)
	srv.SetLogger(logger)
	return srv, ctrl
}

// findMetric returns the metric named name whose labels include want.
func findMetric(t *testing.T, reg *prometheus.Registry, name string, want map[string]string) *dto.Metric {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	next:
		for _, m := range mf.GetMetric() {
			labels := make(map[string]string)
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			for k, v := range want {
				if labels[k] != v {
					continue next
				}
			}
			return m
		}
	}
	return nil
}

func metricCounterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	m := findMetric(t, reg, name, labels)
	if m == nil || m.GetCounter() == nil {
		return 0
	}
	return m.GetCounter().GetValue()
}

func metricGaugeValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	m := findMetric(t, reg, name, nil)
	if m == nil || m.GetGauge() == nil {
		t.Fatalf("gauge %s not found", name)
	}
	return m.GetGauge().GetValue()
}

func metricHistogramCount(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) uint64 {
	t.Helper()
	m := findMetric(t, reg, name, labels)
	if m == nil || m.GetHistogram() == nil {
		return 0
	}
	return m.GetHistogram().GetSampleCount()
}
