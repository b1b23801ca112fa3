package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"github.com/simgate-dev/simgate/pkg/protocol"
	"github.com/simgate-dev/simgate/pkg/session"
	"github.com/simgate-dev/simgate/pkg/simulation"
)

// Controller is the session controller: it turns connection events and
// inbound messages into admission decisions, simulation calls and
// notifications.
//
// One Controller is built at startup and shared by every transport
// goroutine. Registry state changes happen under the registry's lock;
// simulation calls and sends happen after it is released.
type Controller struct {
	registry   *session.Registry
	provider   *simulation.Provider
	fetcher    *simulation.Fetcher
	dispatcher *Dispatcher
	metrics    *MetricsCollector
	version    string
	newID      func() string

	middleware []Middleware
	handlers   map[protocol.MessageType]HandlerFunc
	handle     HandlerFunc

	logger *slog.Logger
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithVersion sets the version reported for geppetto_version requests.
func WithVersion(v string) ControllerOption {
	return func(c *Controller) {
		c.version = v
	}
}

// WithFetcher sets the fetcher used for run_script requests.
func WithFetcher(f *simulation.Fetcher) ControllerOption {
	return func(c *Controller) {
		c.fetcher = f
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *MetricsCollector) ControllerOption {
	return func(c *Controller) {
		c.metrics = m
	}
}

// WithMiddleware wraps message handling with mws, outermost first.
func WithMiddleware(mws ...Middleware) ControllerOption {
	return func(c *Controller) {
		c.middleware = append(c.middleware, mws...)
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ControllerOption {
	return func(c *Controller) {
		c.logger = logger
	}
}

// WithIDGenerator replaces the uuid connection id generator.
func WithIDGenerator(fn func() string) ControllerOption {
	return func(c *Controller) {
		c.newID = fn
	}
}

// NewController creates a Controller over registry and provider.
func NewController(registry *session.Registry, provider *simulation.Provider, opts ...ControllerOption) *Controller {
	c := &Controller{
		registry: registry,
		provider: provider,
		version:  "dev",
		newID:    uuid.NewString,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.fetcher == nil {
		c.fetcher = simulation.NewFetcher()
	}
	c.logger = c.logger.With("component", "controller")
	c.dispatcher = NewDispatcher(c.metrics, c.logger)
	c.handlers = map[protocol.MessageType]HandlerFunc{
		protocol.InVersion:            c.handleVersion,
		protocol.InInitURL:            c.handleInitURL,
		protocol.InInitSim:            c.handleInitSim,
		protocol.InRunScript:          c.handleRunScript,
		protocol.InSimulationConfig:   c.handleSimulationConfig,
		protocol.InStart:              c.handleStart,
		protocol.InPause:              c.handlePause,
		protocol.InStop:               c.handleStop,
		protocol.InObserve:            c.handleObserve,
		protocol.InListWatchVariables: c.handleListWatchVariables,
		protocol.InListForceVariables: c.handleListForceVariables,
		protocol.InSetWatchLists:      c.handleSetWatchLists,
		protocol.InGetWatchLists:      c.handleGetWatchLists,
		protocol.InStartWatch:         c.handleStartWatch,
		protocol.InStopWatch:          c.handleStopWatch,
		protocol.InClearWatchLists:    c.handleClearWatchLists,
	}
	c.handle = Chain(c.route, c.middleware...)
	return c
}

// Registry returns the connection registry.
func (c *Controller) Registry() *session.Registry {
	return c.registry
}

// Dispatcher returns the notification dispatcher.
func (c *Controller) Dispatcher() *Dispatcher {
	return c.dispatcher
}

// Connect registers a new connection writing to sink, sends it its id and
// delivers the admission notices.
func (c *Controller) Connect(sink session.Sink) (*session.Connection, error) {
	conn := session.NewConnection(c.newID(), sink)
	d, err := c.registry.Connect(conn)
	if err != nil {
		return nil, NewConnectionError(conn.ID(), "connect", err)
	}
	c.metrics.RecordConnect()
	c.logger.Info("connection admitted",
		"conn_id", conn.ID(),
		"outcome", d.Outcome.String(),
		"queue_position", d.QueuePosition)

	_ = c.dispatcher.Notify("", conn, protocol.OutClientID, conn.ID())
	c.dispatcher.Deliver(d.Notices)
	return conn, nil
}

// Disconnect removes connection id, stops a simulation it was running and
// tells whoever its departure affects. Calling it twice is harmless.
func (c *Controller) Disconnect(id string) {
	d := c.registry.Disconnect(id)
	if d.Outcome == session.OutcomeNone {
		return
	}
	c.metrics.RecordDisconnect()

	if d.StopSimulation && c.provider.Shared() {
		svc := c.provider.ServiceFor(id)
		if svc.IsRunning() {
			if err := svc.Stop(); err != nil {
				c.logger.Warn("stop on disconnect failed", "conn_id", id, "error", err)
			}
		}
	}
	c.provider.Release(id)

	c.logger.Info("connection closed", "conn_id", id, "outcome", d.Outcome.String())
	if d.Promoted != nil {
		c.logger.Info("queued connection promoted", "conn_id", d.Promoted.ID())
	}
	c.dispatcher.Deliver(d.Notices)
}

// Disable forcibly removes connection id and closes its sink if it can be
// closed.
func (c *Controller) Disable(id string) {
	conn, ok := c.registry.Get(id)
	c.Disconnect(id)
	if !ok {
		return
	}
	if closer, ok := conn.Sink().(io.Closer); ok {
		_ = closer.Close()
	}
}

// HandleMessage handles a plain JSON envelope from connection id.
func (c *Controller) HandleMessage(ctx context.Context, id string, raw []byte) error {
	env, err := protocol.DecodeEnvelope(raw)
	if err != nil {
		c.metrics.RecordDecodeError()
		return NewConnectionError(id, "decode", err)
	}
	return c.dispatch(ctx, id, env)
}

// HandleFrame handles a websocket message; binary messages are LZ4
// compressed.
func (c *Controller) HandleFrame(ctx context.Context, id string, binary bool, data []byte) error {
	env, err := protocol.DecodeFrame(binary, data)
	if err != nil {
		c.metrics.RecordDecodeError()
		return NewConnectionError(id, "decode", err)
	}
	return c.dispatch(ctx, id, env)
}

func (c *Controller) dispatch(ctx context.Context, id string, env *protocol.Envelope) error {
	conn, ok := c.registry.Get(id)
	if !ok {
		return NewConnectionError(id, string(env.Type), ErrUnknownConnection)
	}
	return c.handle(ctx, &Request{Conn: conn, Envelope: env})
}

func (c *Controller) route(ctx context.Context, req *Request) error {
	h, ok := c.handlers[req.Type()]
	if !ok {
		c.logger.Debug("ignoring message", "conn_id", req.ConnID(), "type", req.Type())
		return nil
	}
	return h(ctx, req)
}

func (c *Controller) reply(req *Request, typ protocol.MessageType, data string) {
	_ = c.dispatcher.Notify(req.RequestID(), req.Conn, typ, data)
}

func (c *Controller) replyJSON(req *Request, typ protocol.MessageType, v any) error {
	data, err := protocol.MarshalPayload(v)
	if err != nil {
		c.replyError(req, err)
		return err
	}
	c.reply(req, typ, data)
	return nil
}

// replyError sends the generic error notification carrying err's message.
func (c *Controller) replyError(req *Request, err error) {
	data, mErr := protocol.MarshalPayload(protocol.ErrorPayload{Message: err.Error()})
	if mErr != nil {
		data = ""
	}
	c.reply(req, protocol.OutError, data)
}

func (c *Controller) service(req *Request) simulation.Service {
	return c.provider.ServiceFor(req.ConnID())
}

func (c *Controller) handleVersion(_ context.Context, req *Request) error {
	c.reply(req, protocol.OutVersion, c.version)
	return nil
}

func (c *Controller) handleInitURL(ctx context.Context, req *Request) error {
	u, err := simulation.ParseSourceURL(req.Data())
	if err != nil {
		c.reply(req, protocol.OutErrorLoadingSimulation, "")
		return err
	}
	return c.load(ctx, req, simulation.FromURL(u))
}

func (c *Controller) handleInitSim(ctx context.Context, req *Request) error {
	return c.load(ctx, req, simulation.FromContent(req.Data()))
}

// load runs a load request through admission, initializes the service and
// reports the result.
func (c *Controller) load(ctx context.Context, req *Request, src simulation.Source) error {
	id := req.ConnID()
	ld := c.registry.BeginLoad(id)
	if ld.Outcome == session.LoadIgnored {
		c.logger.Debug("load ignored", "conn_id", id, "mode", req.Conn.Mode())
		return nil
	}
	// Observers clear their canvas before the reload starts.
	c.dispatcher.Deliver(ld.Notices)

	svc := c.service(req)
	initErr := svc.Init(ctx, src, &connListener{controller: c, connID: id})
	d := c.registry.CompleteLoad(id, initErr == nil)
	if _, ok := c.registry.Get(id); !ok {
		c.logger.Info("connection left during load", "conn_id", id, "source", src.String())
		return initErr
	}
	if initErr != nil {
		c.logger.Warn("load failed", "conn_id", id, "source", src.String(), "error", initErr)
		c.reply(req, protocol.OutErrorLoadingSimulation, "")
		return initErr
	}

	c.reply(req, protocol.OutSimulationLoaded, "")
	if scripts := svc.Scripts(); len(scripts) > 0 {
		payload := protocol.Scripts{Scripts: make([]protocol.Script, 0, len(scripts))}
		for _, s := range scripts {
			payload.Scripts = append(payload.Scripts, protocol.Script{Script: s})
		}
		if err := c.replyJSON(req, protocol.OutScriptsAvailable, payload); err != nil {
			return err
		}
	}
	c.dispatcher.Deliver(d.Notices)
	return nil
}

func (c *Controller) handleRunScript(ctx context.Context, req *Request) error {
	u, err := simulation.ParseSourceURL(req.Data())
	if err != nil {
		c.reply(req, protocol.OutErrorReadingScript, "")
		return err
	}
	script, err := c.fetcher.Fetch(ctx, u)
	if err != nil {
		c.reply(req, protocol.OutErrorReadingScript, "")
		return err
	}
	c.reply(req, protocol.OutRunScript, string(script))
	return nil
}

func (c *Controller) handleSimulationConfig(ctx context.Context, req *Request) error {
	u, err := simulation.ParseSourceURL(req.Data())
	if err != nil {
		c.reply(req, protocol.OutErrorLoadingConfig, "")
		return err
	}
	cfg, err := c.service(req).SimulationConfig(ctx, u)
	if err != nil {
		c.reply(req, protocol.OutErrorLoadingConfig, "")
		return err
	}
	c.reply(req, protocol.OutSimulationConfig, cfg)
	return nil
}

// control runs a start/pause/stop request. Only a controlling connection
// may drive its simulation; requests from anyone else are ignored.
func (c *Controller) control(req *Request, op func(simulation.Service) error, done protocol.MessageType) error {
	if !c.registry.CanControl(req.ConnID()) {
		c.logger.Debug("control request ignored", "conn_id", req.ConnID(), "type", req.Type(), "mode", req.Conn.Mode())
		return nil
	}
	if err := op(c.service(req)); err != nil {
		c.replyError(req, err)
		return err
	}
	c.reply(req, done, "")
	return nil
}

func (c *Controller) handleStart(_ context.Context, req *Request) error {
	return c.control(req, simulation.Service.Start, protocol.OutSimulationStarted)
}

func (c *Controller) handlePause(_ context.Context, req *Request) error {
	return c.control(req, simulation.Service.Pause, protocol.OutSimulationPaused)
}

func (c *Controller) handleStop(_ context.Context, req *Request) error {
	return c.control(req, simulation.Service.Stop, protocol.OutSimulationStopped)
}

func (c *Controller) handleObserve(_ context.Context, req *Request) error {
	if !c.registry.Observe(req.ConnID()) {
		c.logger.Debug("observe ignored", "conn_id", req.ConnID(), "mode", req.Conn.Mode())
		return nil
	}
	if !c.service(req).IsRunning() {
		c.reply(req, protocol.OutLoadModel, c.registry.Config().LoadedScene())
	}
	c.reply(req, protocol.OutObserverMode, "")
	return nil
}

func (c *Controller) handleListWatchVariables(_ context.Context, req *Request) error {
	vars, err := c.service(req).ListWatchableVariables()
	if err != nil {
		c.replyError(req, err)
		return err
	}
	return c.replyJSON(req, protocol.OutWatchVariables, vars)
}

func (c *Controller) handleListForceVariables(_ context.Context, req *Request) error {
	vars, err := c.service(req).ListForceableVariables()
	if err != nil {
		c.replyError(req, err)
		return err
	}
	return c.replyJSON(req, protocol.OutForceVariables, vars)
}

func (c *Controller) handleSetWatchLists(_ context.Context, req *Request) error {
	var lists []simulation.WatchList
	if err := json.Unmarshal([]byte(req.Data()), &lists); err != nil {
		c.reply(req, protocol.OutErrorAddingWatchList, "")
		return fmt.Errorf("server: decode watch lists: %w", err)
	}
	if err := c.service(req).AddWatchLists(lists); err != nil {
		c.reply(req, protocol.OutErrorAddingWatchList, "")
		return err
	}
	c.reply(req, protocol.OutWatchListsSet, "")
	return nil
}

func (c *Controller) handleGetWatchLists(_ context.Context, req *Request) error {
	return c.replyJSON(req, protocol.OutWatchLists, c.service(req).WatchLists())
}

func (c *Controller) handleStartWatch(_ context.Context, req *Request) error {
	svc := c.service(req)
	if err := svc.StartWatch(); err != nil {
		c.replyError(req, err)
		return err
	}
	return c.replyJSON(req, protocol.OutWatchStarted, svc.WatchLists())
}

func (c *Controller) handleStopWatch(_ context.Context, req *Request) error {
	if err := c.service(req).StopWatch(); err != nil {
		c.replyError(req, err)
		return err
	}
	c.reply(req, protocol.OutWatchStopped, "")
	return nil
}

func (c *Controller) handleClearWatchLists(_ context.Context, req *Request) error {
	if err := c.service(req).ClearWatchLists(); err != nil {
		c.replyError(req, err)
		return err
	}
	c.reply(req, protocol.OutWatchListsCleared, "")
	return nil
}

// connListener routes simulation output for the service a connection
// loaded. In OBSERVE mode the controller and every observer receive it and
// the scene is kept for late joiners; in MULTIUSER mode only the owner does.
// Output for a connection that no longer controls is dropped.
type connListener struct {
	controller *Controller
	connID     string
}

func (l *connListener) SceneLoaded(scene string) {
	l.publish(protocol.OutLoadModel, scene, true)
}

func (l *connListener) StateUpdated(update string) {
	l.publish(protocol.OutSceneUpdate, update, false)
}

func (l *connListener) publish(typ protocol.MessageType, data string, scene bool) {
	c := l.controller
	if c.registry.Config().Mode == session.Observe {
		var (
			targets []*session.Connection
			ok      bool
		)
		if scene {
			targets, ok = c.registry.PublishScene(l.connID, data)
		} else {
			targets, ok = c.registry.ControlledAudience(l.connID)
		}
		if !ok {
			c.logger.Debug("dropping simulation output", "conn_id", l.connID, "type", typ)
			return
		}
		c.dispatcher.NotifyAll(targets, typ, data)
		return
	}
	if conn, ok := c.registry.Get(l.connID); ok {
		_ = c.dispatcher.Notify("", conn, typ, data)
	}
}
