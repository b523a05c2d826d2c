package adaptor

import (
	"context"
	"errors"
	"fmt"

	"creatorlab/internal/domain"
)

// StageConfigSource yields the adaptor/model configured for one tenant's
// pipeline stage. domain.ErrNotFound means the tenant has no override and
// the template's default model config applies.
type StageConfigSource interface {
	StageConfig(ctx context.Context, tenantID, stage string, capability domain.Capability) (*domain.ModelConfig, error)
}

// Resolver turns (tenant, stage, capability) into a ready adaptor instance.
// Credentials are injected per vendor at construction time and handed to
// adaptors as opaque config.
type Resolver struct {
	registry *Registry
	stages   StageConfigSource
	creds    map[string]Credentials
}

// NewResolver wires a resolver over the shared registry.
func NewResolver(registry *Registry, stages StageConfigSource, creds map[string]Credentials) *Resolver {
	if creds == nil {
		creds = map[string]Credentials{}
	}
	return &Resolver{registry: registry, stages: stages, creds: creds}
}

// ForStage resolves the configured adaptor for a stage, falling back to the
// template's default model config when the tenant carries no override.
func (r *Resolver) ForStage(ctx context.Context, tenantID, stage string, capability domain.Capability, fallback domain.ModelConfig) (Adaptor, error) {
	cfg := fallback
	if r.stages != nil {
		override, err := r.stages.StageConfig(ctx, tenantID, stage, capability)
		switch {
		case err == nil && override != nil:
			cfg = *override
		case err != nil && !errors.Is(err, domain.ErrNotFound):
			return nil, fmt.Errorf("stage config for tenant %q stage %q: %w", tenantID, stage, err)
		}
	}
	if cfg.AdaptorID == "" || cfg.ModelID == "" {
		return nil, fmt.Errorf("tenant %q stage %q: no adaptor configured: %w", tenantID, stage, domain.ErrNotFound)
	}

	info, err := r.registry.ModelInfo(cfg.AdaptorID, cfg.ModelID)
	if err != nil {
		return nil, err
	}
	if !info.Supports(capability) {
		return nil, &domain.ModelNotFoundError{AdaptorID: cfg.AdaptorID, ModelID: cfg.ModelID}
	}

	return r.registry.Instantiate(ctx, cfg.AdaptorID, cfg.ModelID, r.creds[cfg.AdaptorID], GenerationConfig{
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		TopP:        cfg.TopP,
	})
}
