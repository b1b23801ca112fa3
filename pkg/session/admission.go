package session

import (
	"github.com/simgate-dev/simgate/pkg/protocol"
)

// Notice is one notification an admission decision asks the caller to send.
// Notices never carry a request id: they are unsolicited.
type Notice struct {
	Target *Connection
	Type   protocol.MessageType
	Data   string
}

// Outcome classifies an admission decision.
type Outcome int

const (
	// OutcomeNone means nothing changed (unknown connection, duplicate event).
	OutcomeNone Outcome = iota

	// OutcomeAdmitted means the connection may go on to load a simulation.
	OutcomeAdmitted

	// OutcomeUnavailable means another connection controls the simulation.
	OutcomeUnavailable

	// OutcomeQueued means the connection waits for capacity.
	OutcomeQueued

	// OutcomeRemoved means the connection left without freeing anything.
	OutcomeRemoved

	// OutcomeReleased means the departing connection held the control slot.
	OutcomeReleased

	// OutcomePromoted means a departure let the head of the queue in.
	OutcomePromoted

	// OutcomeControlling means a load completed and the connection now controls.
	OutcomeControlling
)

var outcomeNames = [...]string{"none", "admitted", "unavailable", "queued", "removed", "released", "promoted", "controlling"}

// String returns the outcome name used in logs and metrics labels.
func (o Outcome) String() string {
	if int(o) < len(outcomeNames) {
		return outcomeNames[o]
	}
	return "unknown"
}

// Decision is the result of an admission event.
type Decision struct {
	Outcome Outcome

	// Conn is the connection the event was about.
	Conn *Connection

	// Notices lists what to send once the registry lock is released.
	Notices []Notice

	// QueuePosition is set when Outcome is OutcomeQueued (1-based).
	QueuePosition int

	// Promoted is the connection taken off the queue, if any.
	Promoted *Connection

	// StopSimulation asks the caller to stop the departing connection's
	// simulation if it is running.
	StopSimulation bool
}

// LoadOutcome classifies a load request.
type LoadOutcome int

const (
	// LoadIgnored means the request is dropped without a reply.
	LoadIgnored LoadOutcome = iota

	// LoadProceed means the caller should initialize the simulation.
	LoadProceed

	// LoadReload means the current controller reloads; observers were told
	// to clear their canvas.
	LoadReload
)

// LoadDecision is the result of BeginLoad.
type LoadDecision struct {
	Outcome LoadOutcome
	Notices []Notice
}

// Connect registers conn and decides how it is admitted.
func (r *Registry) Connect(conn *Connection) (Decision, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.addLocked(conn); err != nil {
		return Decision{}, err
	}

	d := Decision{Conn: conn}
	switch r.config.Mode {
	case Observe:
		if r.controller == nil {
			d.Outcome = OutcomeAdmitted
			d.Notices = []Notice{{Target: conn, Type: protocol.OutReadURLParameters}}
			break
		}
		r.observers[conn.ID()] = conn
		d.Outcome = OutcomeUnavailable
		d.Notices = []Notice{{Target: conn, Type: protocol.OutServerUnavailable}}

	case Multiuser:
		// Capacity bounds live connections, not controllers.
		n, capacity := len(r.conns), r.config.Capacity
		if n > capacity && capacity > 1 && r.transitionLocked(conn, Waiting) {
			r.queue = append(r.queue, conn)
			d.Outcome = OutcomeQueued
			d.QueuePosition = n - capacity
			d.Notices = []Notice{{
				Target: conn,
				Type:   protocol.OutSimulatorFull,
				Data:   simulatorFullPayload(r.config.SimulatorName, d.QueuePosition),
			}}
			break
		}
		d.Outcome = OutcomeAdmitted
		d.Notices = []Notice{{Target: conn, Type: protocol.OutReadURLParameters}}
	}
	return d, nil
}

// Disconnect removes the connection and decides what its departure frees.
// A second disconnect for the same id returns OutcomeNone and no notices.
func (r *Registry) Disconnect(id string) Decision {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn := r.removeLocked(id)
	if conn == nil {
		return Decision{}
	}

	d := Decision{Outcome: OutcomeRemoved, Conn: conn}
	switch r.config.Mode {
	case Observe:
		if r.controller != conn {
			break
		}
		r.controller = nil
		r.config.SetSimulationLoaded(false)
		r.config.SetLoadedScene("")
		d.Outcome = OutcomeReleased
		d.StopSimulation = true
		for _, obs := range r.observers {
			d.Notices = append(d.Notices, Notice{Target: obs, Type: protocol.OutServerAvailable})
		}

	case Multiuser:
		d.StopSimulation = conn.Mode() == Controlling
		if len(r.conns) != r.config.Capacity || len(r.queue) == 0 {
			break
		}
		head := r.queue[0]
		r.queue = r.queue[1:]
		if !r.transitionLocked(head, Controlling) {
			break
		}
		d.Outcome = OutcomePromoted
		d.Promoted = head
		d.Notices = []Notice{{Target: head, Type: protocol.OutServerAvailable}}
	}
	return d
}

// BeginLoad decides whether connection id may load a simulation.
//
// In Observe mode a connection that finds the simulation uncontrolled
// reserves the control slot here, before any I/O, so that a concurrent load
// from another connection is ignored. The reservation is confirmed or
// released by CompleteLoad.
func (r *Registry) BeginLoad(id string) LoadDecision {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.conns[id]
	if !ok || conn.Mode() == Waiting {
		return LoadDecision{}
	}

	if r.config.Mode == Multiuser {
		conn.setSimulationLoaded(false)
		return LoadDecision{Outcome: LoadProceed}
	}

	switch {
	case r.controller == conn:
		if conn.Mode() != Controlling {
			// First load still in flight.
			return LoadDecision{}
		}
		r.config.SetSimulationLoaded(false)
		conn.setSimulationLoaded(false)
		d := LoadDecision{Outcome: LoadReload}
		for _, obs := range r.observers {
			d.Notices = append(d.Notices, Notice{Target: obs, Type: protocol.OutReloadCanvas})
		}
		return d

	case r.controller != nil:
		return LoadDecision{}

	default:
		r.controller = conn
		delete(r.observers, id)
		r.config.SetSimulationLoaded(false)
		return LoadDecision{Outcome: LoadProceed}
	}
}

// CompleteLoad records the result of a load BeginLoad allowed.
//
// On success the connection becomes CONTROLLING. In Observe mode the first
// successful load also tells every other connection that controls are
// unavailable and adds them to the observer set. A failed first load in
// Observe mode gives the control slot back.
func (r *Registry) CompleteLoad(id string, loaded bool) Decision {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.conns[id]
	if !ok {
		return Decision{}
	}
	d := Decision{Conn: conn}

	if !loaded {
		if conn.Mode() == Controlling {
			// Failed reload: the previous model is still in place.
			conn.setSimulationLoaded(true)
			if r.config.Mode == Observe && r.controller == conn {
				r.config.SetSimulationLoaded(true)
			}
			return d
		}
		if r.config.Mode == Observe && r.controller == conn {
			r.controller = nil
		}
		return d
	}

	if r.config.Mode == Observe && r.controller != conn {
		return d
	}

	first := conn.Mode() != Controlling
	if !r.transitionLocked(conn, Controlling) {
		return d
	}
	conn.setSimulationLoaded(true)
	delete(r.observers, id)
	d.Outcome = OutcomeControlling

	if r.config.Mode == Observe {
		r.config.SetSimulationLoaded(true)
		if first {
			for otherID, other := range r.conns {
				if other == conn {
					continue
				}
				if other.Mode() == Observing {
					r.observers[otherID] = other
				}
				d.Notices = append(d.Notices, Notice{Target: other, Type: protocol.OutServerUnavailable})
			}
		}
	}
	return d
}

// Observe adds connection id to the observer set. Controllers and queued
// connections cannot become observers this way; Observe reports false for
// them and for unknown ids.
func (r *Registry) Observe(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.conns[id]
	if !ok || r.controller == conn || conn.Mode() != Observing {
		return false
	}
	r.observers[id] = conn
	return true
}

// CanControl reports whether connection id may start, pause or stop its
// simulation.
func (r *Registry) CanControl(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.conns[id]
	return ok && conn.Mode() == Controlling
}

// SceneAudience returns who receives simulation updates in Observe mode:
// the controller followed by every observer.
func (r *Registry) SceneAudience() []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sceneAudienceLocked()
}

func (r *Registry) sceneAudienceLocked() []*Connection {
	out := make([]*Connection, 0, len(r.observers)+1)
	if r.controller != nil {
		out = append(out, r.controller)
	}
	return append(out, r.observersLocked()...)
}

// IsController reports whether id holds the Observe-mode control slot,
// including a slot reserved by a first load still in flight.
func (r *Registry) IsController(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.controller != nil && r.controller.ID() == id
}

// ControlledAudience returns SceneAudience if id holds the control slot.
// It reports false once id has lost the slot.
func (r *Registry) ControlledAudience(id string) ([]*Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.controller == nil || r.controller.ID() != id {
		return nil, false
	}
	return r.sceneAudienceLocked(), true
}

// PublishScene records scene for late observers and returns who should
// receive it, provided id still holds the control slot. Output from a
// controller that has already left is refused.
func (r *Registry) PublishScene(id, scene string) ([]*Connection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.controller == nil || r.controller.ID() != id {
		return nil, false
	}
	r.config.SetLoadedScene(scene)
	return r.sceneAudienceLocked(), true
}

func simulatorFullPayload(name string, position int) string {
	data, err := protocol.MarshalPayload(protocol.SimulatorFull{SimulatorName: name, QueuePosition: position})
	if err != nil {
		return ""
	}
	return data
}
