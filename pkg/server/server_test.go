package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/simgate-dev/simgate/pkg/protocol"
	"github.com/simgate-dev/simgate/pkg/session"
	"github.com/simgate-dev/simgate/pkg/simulation"
)

func newTestServer(t *testing.T, mode session.BehaviorMode, capacity int, cfg *Config) (*Server, *httptest.Server) {
	t.Helper()

	registry := session.NewRegistry(session.NewServerConfig(mode, capacity, "testsim"), testLogger())
	svc := simulation.NewLocal("testsim", capacity, nil,
		simulation.WithTickInterval(time.Hour), simulation.WithLogger(testLogger()))
	metrics := NewMetricsCollector()
	ctrl := NewController(registry, simulation.NewSharedProvider(svc),
		WithLogger(testLogger()), WithMetrics(metrics), WithVersion("1.2.3"))

	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.NewRegistry()
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}
	srv := New(cfg, ctrl, metrics)
	srv.SetLogger(testLogger())

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) *protocol.Envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	mt, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}
	if mt != websocket.BinaryMessage {
		t.Fatalf("message type = %d, want binary", mt)
	}
	env, err := protocol.DecodeFrame(true, data)
	if err != nil {
		t.Fatalf("DecodeFrame() error = %v", err)
	}
	return env
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestWebSocketSession(t *testing.T) {
	srv, ts := newTestServer(t, session.Observe, 1, nil)
	conn := dial(t, ts)

	if env := readEnvelope(t, conn); env.Type != protocol.OutClientID || env.Data == "" {
		t.Fatalf("first message = %+v, want client_id", env)
	}
	if env := readEnvelope(t, conn); env.Type != protocol.OutReadURLParameters {
		t.Fatalf("second message = %+v, want read_url_parameters", env)
	}

	// Text frames carry plain JSON.
	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"requestID":"1","type":"GEPPETTO_VERSION"}`)); err != nil {
		t.Fatal(err)
	}
	if env := readEnvelope(t, conn); env.Type != protocol.OutVersion || env.Data != "1.2.3" || env.RequestID != "1" {
		t.Errorf("version reply = %+v", env)
	}

	// Binary frames are LZ4 compressed.
	frame, _ := protocol.EncodeFrame(protocol.NewEnvelope("2", protocol.InInitSim, testModel))
	if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		t.Fatal(err)
	}
	seen := map[protocol.MessageType]bool{}
	for !seen[protocol.OutScriptsAvailable] {
		seen[readEnvelope(t, conn).Type] = true
	}
	if !seen[protocol.OutSimulationLoaded] || !seen[protocol.OutLoadModel] {
		t.Errorf("load replies = %v", seen)
	}

	if got := srv.Metrics().Registry.Connections; got != 1 {
		t.Errorf("Connections = %d, want 1", got)
	}

	conn.Close()
	waitFor(t, "disconnect", func() bool { return srv.Metrics().Registry.Connections == 0 })
	if loaded := srv.controller.Registry().Config().SimulationLoaded(); loaded {
		t.Error("controller departure should clear the loaded flag")
	}
}

func TestWebSocketObserverNotifiedWhenControllerLeaves(t *testing.T) {
	_, ts := newTestServer(t, session.Observe, 1, nil)

	ctrl := dial(t, ts)
	readEnvelope(t, ctrl)
	readEnvelope(t, ctrl)
	obs := dial(t, ts)
	readEnvelope(t, obs)
	readEnvelope(t, obs)

	if err := ctrl.WriteMessage(websocket.TextMessage, mustJSON(t, protocol.NewEnvelope("", protocol.InInitSim, testModel))); err != nil {
		t.Fatal(err)
	}
	if env := readEnvelope(t, obs); env.Type != protocol.OutServerUnavailable {
		t.Fatalf("observer got %s, want server_unavailable", env.Type)
	}

	ctrl.Close()
	if env := readEnvelope(t, obs); env.Type != protocol.OutServerAvailable {
		t.Errorf("observer got %s, want server_available", env.Type)
	}
}

func TestWebSocketRateLimit(t *testing.T) {
	srv, ts := newTestServer(t, session.Observe, 1, &Config{MessagesPerSecond: 0.001, Burst: 1})
	conn := dial(t, ts)
	readEnvelope(t, conn)
	readEnvelope(t, conn)

	msg := []byte(`{"type":"geppetto_version"}`)
	for i := 0; i < 3; i++ {
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			t.Fatal(err)
		}
	}
	if env := readEnvelope(t, conn); env.Type != protocol.OutVersion {
		t.Fatalf("got %s", env.Type)
	}
	waitFor(t, "dropped messages", func() bool { return srv.Metrics().MessagesDropped == 2 })
}

func TestHTTPRoutes(t *testing.T) {
	_, ts := newTestServer(t, session.Multiuser, 4, nil)

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || string(body) != "ok" {
		t.Errorf("/healthz = %d %q", resp.StatusCode, body)
	}

	resp, err = http.Get(ts.URL + "/status")
	if err != nil {
		t.Fatal(err)
	}
	var status Status
	err = json.NewDecoder(resp.Body).Decode(&status)
	resp.Body.Close()
	if err != nil {
		t.Fatal(err)
	}
	if status.Mode != "MULTIUSER" || status.Capacity != 4 || status.SimulatorName != "testsim" {
		t.Errorf("status = %+v", status)
	}

	resp, err = http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("/metrics status = %d", resp.StatusCode)
	}
}

func TestMetricsRouteDisabled(t *testing.T) {
	ctrl := NewController(session.NewRegistry(nil, testLogger()),
		simulation.NewSharedProvider(simulation.NewLocal("x", 1, nil)), WithLogger(testLogger()))
	srv := New(&Config{Gatherer: prometheus.NewRegistry()}, ctrl, nil)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("/metrics status = %d, want 404 with no metrics path", rec.Code)
	}
}

func TestSinkQueueFull(t *testing.T) {
	sink := newWSSink(nil, &Config{SendQueue: 1, ReadTimeout: time.Minute}, nil, testLogger())

	if err := sink.Send([]byte("a")); err != nil {
		t.Fatalf("first Send() error = %v", err)
	}
	if err := sink.Send([]byte("b")); !errors.Is(err, ErrSendQueueFull) {
		t.Errorf("second Send() error = %v, want ErrSendQueueFull", err)
	}
	sink.Close()
	sink.Close()
	if err := sink.Send([]byte("c")); !errors.Is(err, ErrConnectionClosed) {
		t.Errorf("Send() after Close error = %v, want ErrConnectionClosed", err)
	}
}

func TestRunAndShutdown(t *testing.T) {
	registry := session.NewRegistry(nil, testLogger())
	ctrl := NewController(registry, simulation.NewSharedProvider(simulation.NewLocal("x", 1, nil)), WithLogger(testLogger()))
	srv := New(&Config{Address: "127.0.0.1:0", Gatherer: prometheus.NewRegistry()}, ctrl, nil)
	srv.SetLogger(testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}

func mustJSON(t *testing.T, env *protocol.Envelope) []byte {
	t.Helper()
	data, err := env.Encode()
	if err != nil {
		t.Fatal(err)
	}
	return data
}
