// Package session tracks live client connections and decides who may
// control a simulation.
//
// A Connection has a run mode: OBSERVING (the initial mode), CONTROLLING
// or WAITING. The Registry owns every connection together with the FIFO
// wait queue, the observer set and, in Observe mode, the single control
// slot. Admission events (Connect, BeginLoad, CompleteLoad, Observe,
// Disconnect) are decided under one lock and returned as Decision values
// listing the notices to deliver; the registry never performs I/O.
//
// # Behavior modes
//
// Observe runs one shared simulation. The first connection to load it
// controls it; everyone else is told controls are unavailable and watches.
// When the controller leaves, every observer is told the server is
// available again.
//
// Multiuser runs up to Capacity simulations side by side. Connections
// beyond capacity are queued and told their position; when a departure
// brings the live count back to exactly Capacity the head of the queue is
// promoted.
//
// # Run mode transitions
//
//	OBSERVING   -> CONTROLLING | WAITING
//	CONTROLLING -> OBSERVING   | WAITING
//	WAITING     -> CONTROLLING
//
// Transitions are applied only by the registry, through a validating
// function; a rejected transition is logged and leaves the mode unchanged.
package session
