package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/asrlabs/voxgate/pkg/provider/recognizer"
	"github.com/asrlabs/voxgate/pkg/provider/vad"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Registry maps provider names to their constructor functions for each
// provider type. It is safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	vad        map[string]func(ProviderEntry) (vad.Engine, error)
	recognizer map[string]func(ProviderEntry) (recognizer.Provider, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		vad:        make(map[string]func(ProviderEntry) (vad.Engine, error)),
		recognizer: make(map[string]func(ProviderEntry) (recognizer.Provider, error)),
	}
}

// RegisterVAD registers a VAD engine factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterVAD(name string, factory func(ProviderEntry) (vad.Engine, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.vad[name] = factory
}

// RegisterRecognizer registers a recognition provider factory under name.
func (r *Registry) RegisterRecognizer(name string, factory func(ProviderEntry) (recognizer.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recognizer[name] = factory
}

// CreateVAD instantiates a VAD engine using the factory registered under
// entry.Name. Returns [ErrProviderNotRegistered] if no factory has been
// registered for that name.
func (r *Registry) CreateVAD(entry ProviderEntry) (vad.Engine, error) {
	r.mu.RLock()
	factory, ok := r.vad[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: vad/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateRecognizer instantiates a recognition provider using the factory
// registered under entry.Name.
func (r *Registry) CreateRecognizer(entry ProviderEntry) (recognizer.Provider, error) {
	r.mu.RLock()
	factory, ok := r.recognizer[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: recognizer/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}
