package session

import (
	"sync"
	"time"
)

// Sink delivers encoded frames to a client. Send must not block on the
// network; implementations queue or fail fast.
type Sink interface {
	Send(frame []byte) error
}

// Connection is one live client session.
//
// The run mode is only changed through transition, which validates it
// against the transition table; callers outside this package can read it
// but never set it.
type Connection struct {
	id        string
	sink      Sink
	createdAt time.Time

	mu        sync.Mutex
	mode      RunMode
	simLoaded bool
}

// NewConnection creates a connection in OBSERVING mode.
func NewConnection(id string, sink Sink) *Connection {
	return &Connection{
		id:        id,
		sink:      sink,
		createdAt: time.Now(),
		mode:      Observing,
	}
}

// ID returns the connection identity.
func (c *Connection) ID() string {
	return c.id
}

// Sink returns the transport sink.
func (c *Connection) Sink() Sink {
	return c.sink
}

// CreatedAt returns when the connection was accepted.
func (c *Connection) CreatedAt() time.Time {
	return c.createdAt
}

// Mode returns the current run mode.
func (c *Connection) Mode() RunMode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// SimulationLoaded reports whether this connection has loaded a simulation.
func (c *Connection) SimulationLoaded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.simLoaded
}

func (c *Connection) setSimulationLoaded(v bool) {
	c.mu.Lock()
	c.simLoaded = v
	c.mu.Unlock()
}

// transition moves the connection to mode to, or returns a *TransitionError.
func (c *Connection) transition(to RunMode) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !CanTransition(c.mode, to) {
		return &TransitionError{ConnID: c.id, From: c.mode, To: to}
	}
	c.mode = to
	return nil
}
