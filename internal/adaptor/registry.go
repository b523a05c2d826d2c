package adaptor

import (
	"context"
	"fmt"
	"sync"

	"creatorlab/internal/domain"
)

// Registry maps adaptor ids to constructors and catalogs. One registry is
// shared by the whole process; registration happens once at startup and the
// table is read-only afterwards. Tests construct a fresh registry per case
// instead of resetting shared state.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]registryEntry
}

type registryEntry struct {
	desc Descriptor
	ctor Constructor
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]registryEntry)}
}

// Register adds an adaptor. Registering an id twice is a hard error: the
// closed set of adaptors is wired exactly once per process lifetime.
func (r *Registry) Register(desc Descriptor, ctor Constructor) error {
	if desc.ID == "" {
		return fmt.Errorf("adaptor id is required")
	}
	if ctor == nil {
		return fmt.Errorf("adaptor %q: constructor is required", desc.ID)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[desc.ID]; exists {
		return &domain.DuplicateAdaptorError{ID: desc.ID}
	}
	r.entries[desc.ID] = registryEntry{desc: desc, ctor: ctor}
	return nil
}

// Instantiate constructs the adaptor and validates its config before
// returning it. Any failure surfaces as an AdaptorInitError naming id and
// model.
func (r *Registry) Instantiate(ctx context.Context, id, modelID string, creds Credentials, cfg GenerationConfig) (Adaptor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entry, err := r.entry(id)
	if err != nil {
		return nil, err
	}
	if _, ok := entry.desc.Model(modelID); !ok {
		return nil, &domain.ModelNotFoundError{AdaptorID: id, ModelID: modelID}
	}
	instance, err := entry.ctor(modelID, creds, cfg)
	if err != nil {
		return nil, &domain.AdaptorInitError{ID: id, Model: modelID, Cause: err}
	}
	if err := instance.ValidateConfig(cfg); err != nil {
		return nil, &domain.AdaptorInitError{ID: id, Model: modelID, Cause: err}
	}
	return instance, nil
}

// ListModels returns the static catalog for an adaptor in registration order.
func (r *Registry) ListModels(id string) ([]ModelInfo, error) {
	entry, err := r.entry(id)
	if err != nil {
		return nil, err
	}
	models := make([]ModelInfo, len(entry.desc.Models))
	copy(models, entry.desc.Models)
	return models, nil
}

// ModelInfo returns one catalog entry.
func (r *Registry) ModelInfo(id, modelID string) (ModelInfo, error) {
	entry, err := r.entry(id)
	if err != nil {
		return ModelInfo{}, err
	}
	info, ok := entry.desc.Model(modelID)
	if !ok {
		return ModelInfo{}, &domain.ModelNotFoundError{AdaptorID: id, ModelID: modelID}
	}
	return info, nil
}

// Descriptors lists every registered adaptor descriptor, for catalog
// endpoints. Order is unspecified.
func (r *Registry) Descriptors() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	descs := make([]Descriptor, 0, len(r.entries))
	for _, entry := range r.entries {
		descs = append(descs, entry.desc)
	}
	return descs
}

func (r *Registry) entry(id string) (registryEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[id]
	if !ok {
		return registryEntry{}, fmt.Errorf("adaptor %q: %w", id, domain.ErrNotFound)
	}
	return entry, nil
}
