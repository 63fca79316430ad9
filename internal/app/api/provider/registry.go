package provider

import (
	"sync"

	apperrors "voicepipe/internal/app/errors"
)

// DefaultRegistry is a thread-safe in-memory Registry.
type DefaultRegistry struct {
	mu          sync.RWMutex
	providers   map[string]TranscriptionProvider
	defaultName string
}

// NewRegistry creates an empty provider registry
func NewRegistry() *DefaultRegistry {
	return &DefaultRegistry{providers: make(map[string]TranscriptionProvider)}
}

func (r *DefaultRegistry) Register(name string, p TranscriptionProvider) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.providers[name]; exists {
		return apperrors.Newf(apperrors.KindConflict, "provider %q already registered", name)
	}
	r.providers[name] = p
	// First registration becomes the default until overridden.
	if r.defaultName == "" {
		r.defaultName = name
	}
	return nil
}

func (r *DefaultRegistry) Get(name string) (TranscriptionProvider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	if !ok {
		return nil, apperrors.Newf(apperrors.KindNotFound, "provider %q not registered", name)
	}
	return p, nil
}

func (r *DefaultRegistry) ListProviders() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	return names
}

func (r *DefaultRegistry) GetDefault() (TranscriptionProvider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.defaultName == "" {
		return nil, apperrors.New(apperrors.KindNotFound, "no providers registered")
	}
	return r.providers[r.defaultName], nil
}

func (r *DefaultRegistry) SetDefault(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.providers[name]; !ok {
		return apperrors.Newf(apperrors.KindNotFound, "provider %q not registered", name)
	}
	r.defaultName = name
	return nil
}
