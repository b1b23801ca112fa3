package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/simgate-dev/simgate/pkg/protocol"
	"github.com/simgate-dev/simgate/pkg/session"
	"github.com/simgate-dev/simgate/pkg/simulation"
)

const testModel = `{
	"name": "pendulum",
	"scene": {"entities":["bob"]},
	"scripts": ["http://example.com/setup.js"],
	"watchable": [{"name":"bob.x"},{"name":"bob.v"}],
	"forceable": [{"name":"bob.f"}]
}`

const testScene = `{"entities":["bob"]}`

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// recordingSink decodes and keeps every frame it is sent.
type recordingSink struct {
	mu     sync.Mutex
	envs   []*protocol.Envelope
	err    error
	closed bool
}

func (s *recordingSink) Send(frame []byte) error {
	if s.err != nil {
		return s.err
	}
	env, err := protocol.DecodeFrame(true, frame)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.envs = append(s.envs, env)
	s.mu.Unlock()
	return nil
}

func (s *recordingSink) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *recordingSink) types() []protocol.MessageType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]protocol.MessageType, 0, len(s.envs))
	for _, e := range s.envs {
		out = append(out, e.Type)
	}
	return out
}

func (s *recordingSink) find(typ protocol.MessageType) (*protocol.Envelope, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.envs {
		if e.Type == typ {
			return e, true
		}
	}
	return nil, false
}

func (s *recordingSink) count(typ protocol.MessageType) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.envs {
		if e.Type == typ {
			n++
		}
	}
	return n
}

func (s *recordingSink) reset() {
	s.mu.Lock()
	s.envs = nil
	s.mu.Unlock()
}

func (s *recordingSink) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.envs)
}

var errSinkBroken = errors.New("sink broken")

type testController struct {
	*Controller
	t       *testing.T
	metrics *MetricsCollector
	sinks   map[string]*recordingSink
}

func newTestController(t *testing.T, mode session.BehaviorMode, capacity int, opts ...ControllerOption) *testController {
	t.Helper()

	registry := session.NewRegistry(session.NewServerConfig(mode, capacity, "testsim"), testLogger())
	factory := func() simulation.Service {
		return simulation.NewLocal("testsim", capacity, nil,
			simulation.WithTickInterval(time.Hour),
			simulation.WithLogger(testLogger()))
	}
	var provider *simulation.Provider
	if mode == session.Observe {
		provider = simulation.NewSharedProvider(factory())
	} else {
		provider = simulation.NewPerConnectionProvider(factory, testLogger())
	}
	return newTestControllerWith(t, registry, provider, opts...)
}

// newTestControllerWith builds a testController around the given provider.
func newTestControllerWith(t *testing.T, registry *session.Registry, provider *simulation.Provider, opts ...ControllerOption) *testController {
	t.Helper()

	n := 0
	metrics := NewMetricsCollector()
	base := []ControllerOption{
		WithLogger(testLogger()),
		WithMetrics(metrics),
		WithVersion("1.2.3"),
		WithIDGenerator(func() string {
			n++
			return fmt.Sprintf("c%d", n)
		}),
	}
	return &testController{
		Controller: NewController(registry, provider, append(base, opts...)...),
		t:          t,
		metrics:    metrics,
		sinks:      make(map[string]*recordingSink),
	}
}

func newTestLocal() *simulation.Local {
	return simulation.NewLocal("testsim", 1, nil,
		simulation.WithTickInterval(time.Hour),
		simulation.WithLogger(testLogger()))
}

// gatedService holds Init until release is closed.
type gatedService struct {
	simulation.Service
	entered chan struct{}
	release chan struct{}
}

func newGatedService(svc simulation.Service) *gatedService {
	return &gatedService{
		Service: svc,
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (g *gatedService) Init(ctx context.Context, src simulation.Source, l simulation.Listener) error {
	select {
	case <-g.entered:
	default:
		close(g.entered)
	}
	<-g.release
	return g.Service.Init(ctx, src, l)
}

// connect opens a connection and returns its id.
func (tc *testController) connect() string {
	tc.t.Helper()
	sink := &recordingSink{}
	conn, err := tc.Connect(sink)
	if err != nil {
		tc.t.Fatalf("Connect() error = %v", err)
	}
	tc.sinks[conn.ID()] = sink
	return conn.ID()
}

func (tc *testController) sink(id string) *recordingSink {
	return tc.sinks[id]
}

// send delivers a plain JSON envelope from connection id.
func (tc *testController) send(id string, typ protocol.MessageType, data string) error {
	raw, err := json.Marshal(protocol.Envelope{RequestID: "r1", Type: typ, Data: data})
	if err != nil {
		tc.t.Fatal(err)
	}
	return tc.HandleMessage(context.Background(), id, raw)
}

// load initializes the test model for connection id and clears its sink.
func (tc *testController) load(id string) {
	tc.t.Helper()
	if err := tc.send(id, protocol.InInitSim, testModel); err != nil {
		tc.t.Fatalf("init_sim from %s: %v", id, err)
	}
}

func (tc *testController) resetSinks() {
	for _, s := range tc.sinks {
		s.reset()
	}
}

func hasType(types []protocol.MessageType, typ protocol.MessageType) bool {
	for _, t := range types {
		if t == typ {
			return true
		}
	}
	return false
}

func indexOf(types []protocol.MessageType, typ protocol.MessageType) int {
	for i, t := range types {
		if t == typ {
			return i
		}
	}
	return -1
}
