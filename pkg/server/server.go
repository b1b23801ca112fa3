package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

// Server is the HTTP/WebSocket front end of a Controller.
type Server struct {
	config     *Config
	controller *Controller
	metrics    *MetricsCollector
	upgrader   websocket.Upgrader
	router     chi.Router

	mu         sync.Mutex
	sinks      map[string]*wsSink
	httpServer *http.Server

	logger *slog.Logger
}

// New creates a Server. Unset config fields take their defaults. metrics
// should be the collector the controller was built with; nil disables
// counting.
func New(config *Config, controller *Controller, metrics *MetricsCollector) *Server {
	config = config.withDefaults()
	s := &Server{
		config:     config,
		controller: controller,
		metrics:    metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		sinks:  make(map[string]*wsSink),
		logger: slog.Default().With("component", "server"),
	}
	s.router = s.routes()
	return s
}

// SetLogger sets the server logger.
func (s *Server) SetLogger(logger *slog.Logger) {
	s.logger = logger.With("component", "server")
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/ws", s.HandleWebSocket)
	r.Get("/healthz", s.handleHealth)
	r.Get("/status", s.handleStatus)
	if s.config.MetricsPath != "" {
		r.Handle(s.config.MetricsPath, promhttp.HandlerFor(s.config.Gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

// Handler returns the HTTP handler serving every route.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// HandleWebSocket upgrades the request and runs the connection until the
// client goes away.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	sink := newWSSink(conn, s.config, s.metrics, s.logger)
	go sink.writePump()

	c, err := s.controller.Connect(sink)
	if err != nil {
		s.logger.Error("connect failed", "error", err)
		sink.Close()
		return
	}
	id := c.ID()
	logger := s.logger.With("conn_id", id, "remote", r.RemoteAddr)

	s.mu.Lock()
	s.sinks[id] = sink
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		s.mu.Lock()
		delete(s.sinks, id)
		s.mu.Unlock()
		s.controller.Disconnect(id)
		sink.Close()
	}()

	s.readLoop(ctx, conn, id, logger)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("ok"))
}

// Status is the body of GET /status.
type Status struct {
	Mode          string         `json:"mode"`
	Capacity      int            `json:"capacity"`
	SimulatorName string         `json:"simulatorName"`
	Loaded        bool           `json:"simulationLoaded"`
	Metrics       *ServerMetrics `json:"metrics"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	cfg := s.controller.Registry().Config()
	status := Status{
		Mode:          cfg.Mode.String(),
		Capacity:      cfg.Capacity,
		SimulatorName: cfg.SimulatorName,
		Loaded:        cfg.SimulationLoaded(),
		Metrics:       s.Metrics(),
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(status); err != nil {
		s.logger.Error("status encode failed", "error", err)
	}
}

// Metrics returns counters plus current registry stats.
func (s *Server) Metrics() *ServerMetrics {
	m := s.metrics.Snapshot()
	m.Registry = s.controller.Registry().Stats()
	return m
}

// Run serves until ctx is cancelled or the listener fails, then shuts down.
func (s *Server) Run(ctx context.Context) error {
	s.mu.Lock()
	s.httpServer = &http.Server{
		Addr:              s.config.Address,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	httpServer := s.httpServer
	s.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("server starting", "address", s.config.Address)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// Shutdown closes every connection and stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	sinks := make([]*wsSink, 0, len(s.sinks))
	for _, sink := range s.sinks {
		sinks = append(sinks, sink)
	}
	httpServer := s.httpServer
	s.mu.Unlock()

	for _, sink := range sinks {
		sink.Close()
	}

	if httpServer != nil {
		if err := httpServer.Shutdown(ctx); err != nil {
			s.logger.Error("shutdown error", "error", err)
			return err
		}
	}
	s.logger.Info("server shutdown complete")
	return nil
}
