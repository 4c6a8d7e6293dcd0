package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/attendly/callline/internal/telephony"
	"github.com/attendly/callline/pkg/provider/llm"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Registry maps provider names to their constructor functions for each
// provider type. It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	llm       map[string]func(ProviderEntry) (llm.Provider, error)
	telephony map[string]func(ProviderEntry) (telephony.Gateway, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		llm:       make(map[string]func(ProviderEntry) (llm.Provider, error)),
		telephony: make(map[string]func(ProviderEntry) (telephony.Gateway, error)),
	}
}

// RegisterLLM registers an LLM provider factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterLLM(name string, factory func(ProviderEntry) (llm.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.llm[name] = factory
}

// RegisterTelephony registers a telephony gateway factory under name.
func (r *Registry) RegisterTelephony(name string, factory func(ProviderEntry) (telephony.Gateway, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.telephony[name] = factory
}

// CreateLLM instantiates an LLM provider using the factory registered under entry.Name.
// Returns [ErrProviderNotRegistered] if no factory has been registered for that name.
func (r *Registry) CreateLLM(entry ProviderEntry) (llm.Provider, error) {
	r.mu.RLock()
	factory, ok := r.llm[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: llm/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateTelephony instantiates a telephony gateway using the factory registered under entry.Name.
func (r *Registry) CreateTelephony(entry ProviderEntry) (telephony.Gateway, error) {
	r.mu.RLock()
	factory, ok := r.telephony[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: telephony/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}
