package session

import (
	"errors"
	"log/slog"
	"sync"
)

// ErrDuplicateConnection is returned by Add when the identity is taken.
var ErrDuplicateConnection = errors.New("session: duplicate connection")

// Registry is the directory of live connections together with the wait
// queue, the observer set and the shared control slot.
//
// One mutex guards all of it so that admission decisions are linearizable:
// two connects racing for the last slot are ordered, never both admitted.
// Nothing under the lock performs I/O; decisions are returned as values and
// delivered by the caller after the lock is released.
type Registry struct {
	mu sync.RWMutex

	config *ServerConfig

	conns     map[string]*Connection
	queue     []*Connection
	observers map[string]*Connection

	// controller holds the control slot in Observe mode, including while
	// its first load is still in flight.
	controller *Connection

	logger *slog.Logger
}

// Stats is a point-in-time view of the registry.
type Stats struct {
	Connections int `json:"connections"`
	Controllers int `json:"controllers"`
	Waiting     int `json:"waiting"`
	Observers   int `json:"observers"`
}

// NewRegistry creates an empty registry.
func NewRegistry(config *ServerConfig, logger *slog.Logger) *Registry {
	if config == nil {
		config = NewServerConfig(Observe, 1, "")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		config:    config,
		conns:     make(map[string]*Connection),
		observers: make(map[string]*Connection),
		logger:    logger.With("component", "registry"),
	}
}

// Config returns the server configuration the registry admits against.
func (r *Registry) Config() *ServerConfig {
	return r.config
}

// Add inserts a connection keyed by its identity.
func (r *Registry) Add(conn *Connection) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.addLocked(conn)
}

func (r *Registry) addLocked(conn *Connection) error {
	if _, ok := r.conns[conn.ID()]; ok {
		return ErrDuplicateConnection
	}
	r.conns[conn.ID()] = conn
	return nil
}

// Remove deletes a connection. It reports whether anything was removed;
// removing an unknown id is not an error.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.removeLocked(id) != nil
}

// removeLocked drops id from the map, the queue and the observer set and
// returns the removed connection, or nil.
func (r *Registry) removeLocked(id string) *Connection {
	conn, ok := r.conns[id]
	if !ok {
		return nil
	}
	delete(r.conns, id)
	delete(r.observers, id)
	r.dequeueLocked(id)
	return conn
}

func (r *Registry) dequeueLocked(id string) {
	for i, c := range r.queue {
		if c.ID() == id {
			r.queue = append(r.queue[:i:i], r.queue[i+1:]...)
			return
		}
	}
}

// Get returns the connection with the given id.
func (r *Registry) Get(id string) (*Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.conns[id]
	return conn, ok
}

// List returns a snapshot of all connections in no particular order.
func (r *Registry) List() []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.listLocked()
}

func (r *Registry) listLocked() []*Connection {
	out := make([]*Connection, 0, len(r.conns))
	for _, c := range r.conns {
		out = append(out, c)
	}
	return out
}

// Len returns the number of live connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Observers returns a snapshot of the observer set.
func (r *Registry) Observers() []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.observersLocked()
}

func (r *Registry) observersLocked() []*Connection {
	out := make([]*Connection, 0, len(r.observers))
	for _, c := range r.observers {
		out = append(out, c)
	}
	return out
}

// Queue returns a snapshot of the wait queue in admission order.
func (r *Registry) Queue() []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Connection, len(r.queue))
	copy(out, r.queue)
	return out
}

// Controller returns the holder of the shared control slot in Observe mode.
func (r *Registry) Controller() (*Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.controller, r.controller != nil
}

// Stats returns current counts.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s := Stats{
		Connections: len(r.conns),
		Waiting:     len(r.queue),
		Observers:   len(r.observers),
	}
	for _, c := range r.conns {
		if c.Mode() == Controlling {
			s.Controllers++
		}
	}
	return s
}

// transitionLocked applies a validated transition and logs rejections.
// Callers only request transitions from the table, so a rejection means a
// bookkeeping bug; it is contained here instead of surfacing to the client.
func (r *Registry) transitionLocked(conn *Connection, to RunMode) bool {
	if err := conn.transition(to); err != nil {
		r.logger.Error("run mode transition rejected", "conn_id", conn.ID(), "error", err)
		return false
	}
	return true
}
