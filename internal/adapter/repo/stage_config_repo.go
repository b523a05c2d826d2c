package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"creatorlab/internal/domain"
)

// StageConfigRepositoryPG resolves per-tenant adaptor overrides for pipeline
// stages. No row means the template's default model applies, signalled with
// domain.ErrNotFound.
type StageConfigRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewStageConfigRepository creates a new stage config repository backed by PostgreSQL.
func NewStageConfigRepository(pool *pgxpool.Pool) *StageConfigRepositoryPG {
	return &StageConfigRepositoryPG{pool: pool}
}

// StageConfig returns the tenant's override for one stage and capability.
func (r *StageConfigRepositoryPG) StageConfig(ctx context.Context, tenantID, stage string, capability domain.Capability) (*domain.ModelConfig, error) {
	query := `
SELECT adaptor_id, model_id, temperature, max_tokens, top_p
FROM stage_configs
WHERE tenant_id = $1 AND stage = $2 AND capability = $3;
`
	row := r.pool.QueryRow(ctx, query, tenantID, stage, capability)

	var cfg domain.ModelConfig
	if err := row.Scan(
		&cfg.AdaptorID,
		&cfg.ModelID,
		&cfg.Temperature,
		&cfg.MaxTokens,
		&cfg.TopP,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &cfg, nil
}
