package session

import (
	"strings"
	"sync"
)

// BehaviorMode is the server-wide admission policy.
type BehaviorMode int

const (
	// Observe runs one shared simulation with at most one controller.
	Observe BehaviorMode = iota

	// Multiuser runs up to Capacity independent simulations.
	Multiuser
)

// String returns the name of the behavior mode.
func (m BehaviorMode) String() string {
	if m == Multiuser {
		return "MULTIUSER"
	}
	return "OBSERVE"
}

// ParseBehaviorMode parses "observe" or "multiuser" (any case).
func ParseBehaviorMode(s string) (BehaviorMode, bool) {
	switch strings.ToLower(s) {
	case "observe":
		return Observe, true
	case "multiuser":
		return Multiuser, true
	}
	return Observe, false
}

// ServerConfig holds the server-wide settings the admission rules read,
// plus the loaded flag and scene snapshot for late joiners.
type ServerConfig struct {
	Mode          BehaviorMode
	Capacity      int
	SimulatorName string

	mu     sync.RWMutex
	loaded bool
	scene  string
}

// NewServerConfig creates a ServerConfig. Capacity below 1 is raised to 1.
func NewServerConfig(mode BehaviorMode, capacity int, simulatorName string) *ServerConfig {
	if capacity < 1 {
		capacity = 1
	}
	return &ServerConfig{
		Mode:          mode,
		Capacity:      capacity,
		SimulatorName: simulatorName,
	}
}

// SimulationLoaded reports whether the shared simulation is loaded.
func (c *ServerConfig) SimulationLoaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded
}

// SetSimulationLoaded sets the loaded flag.
func (c *ServerConfig) SetSimulationLoaded(v bool) {
	c.mu.Lock()
	c.loaded = v
	c.mu.Unlock()
}

// LoadedScene returns the scene snapshot sent to late joiners.
func (c *ServerConfig) LoadedScene() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.scene
}

// SetLoadedScene records the scene snapshot.
func (c *ServerConfig) SetLoadedScene(scene string) {
	c.mu.Lock()
	c.scene = scene
	c.mu.Unlock()
}
