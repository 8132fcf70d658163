package service

import (
	"log/slog"
	"sync"

	"github.com/rongwang/tripsync/internal/gateway"
)

// Registry keeps one engine per trip for long-running processes
type Registry struct {
	gw     gateway.Gateway
	logger *slog.Logger

	mu      sync.Mutex
	engines map[string]*Engine
}

// NewRegistry creates an empty registry sharing one gateway
func NewRegistry(gw gateway.Gateway, logger *slog.Logger) *Registry {
	return &Registry{
		gw:      gw,
		logger:  logger,
		engines: make(map[string]*Engine),
	}
}

// For returns the engine of tripID, creating it on first use
func (r *Registry) For(tripID string) *Engine {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.engines[tripID]; ok {
		return e
	}
	e := NewEngine(r.gw, tripID, r.logger)
	r.engines[tripID] = e
	return e
}

// Close closes every engine and waits for their background refreshes
func (r *Registry) Close() {
	r.mu.Lock()
	engines := make([]*Engine, 0, len(r.engines))
	for id, e := range r.engines {
		engines = append(engines, e)
		delete(r.engines, id)
	}
	r.mu.Unlock()

	for _, e := range engines {
		e.Close()
		e.Wait()
	}
}
