package simulation

import (
	"log/slog"
	"sync"
)

// Factory creates a fresh Service.
type Factory func() Service

// Provider hands out the Service a connection talks to.
//
// A shared provider returns the same Service to everyone. A per-connection
// provider creates one Service per connection on first use and stops it on
// Release.
type Provider struct {
	shared  Service
	factory Factory

	mu       sync.Mutex
	services map[string]Service

	logger *slog.Logger
}

// NewSharedProvider returns a provider that always hands out svc.
func NewSharedProvider(svc Service) *Provider {
	return &Provider{shared: svc, logger: slog.Default()}
}

// NewPerConnectionProvider returns a provider that creates a Service per
// connection with factory.
func NewPerConnectionProvider(factory Factory, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{
		factory:  factory,
		services: make(map[string]Service),
		logger:   logger.With("component", "simulation-provider"),
	}
}

// Shared reports whether every connection gets the same Service.
func (p *Provider) Shared() bool {
	return p.shared != nil
}

// ServiceFor returns the Service for connection connID.
func (p *Provider) ServiceFor(connID string) Service {
	if p.shared != nil {
		return p.shared
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	svc, ok := p.services[connID]
	if !ok {
		svc = p.factory()
		p.services[connID] = svc
	}
	return svc
}

// Release forgets connection connID. A per-connection Service that is still
// running is stopped. The shared Service is left alone.
func (p *Provider) Release(connID string) {
	if p.shared != nil {
		return
	}
	p.mu.Lock()
	svc, ok := p.services[connID]
	delete(p.services, connID)
	p.mu.Unlock()

	if ok && svc.IsRunning() {
		if err := svc.Stop(); err != nil {
			p.logger.Warn("stop on release failed", "conn_id", connID, "error", err)
		}
	}
}

// Len returns the number of per-connection services alive.
func (p *Provider) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.services)
}
