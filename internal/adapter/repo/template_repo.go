package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"creatorlab/internal/domain"
)

// TemplateRepositoryPG loads prompt templates from PostgreSQL. A tenant row
// shadows the global row with the same id; the highest version wins.
type TemplateRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewTemplateRepository creates a new template repository backed by PostgreSQL.
func NewTemplateRepository(pool *pgxpool.Pool) *TemplateRepositoryPG {
	return &TemplateRepositoryPG{pool: pool}
}

// Template fetches the latest version of a template visible to the tenant.
func (r *TemplateRepositoryPG) Template(ctx context.Context, tenantID, templateID string) (*domain.PromptTemplate, error) {
	query := `
SELECT id, version, capability, system_prompt, user_prompt, variables, output, default_model
FROM prompt_templates
WHERE id = $2 AND (tenant_id = $1 OR tenant_id IS NULL)
ORDER BY (tenant_id IS NOT NULL) DESC, version DESC
LIMIT 1;
`
	row := r.pool.QueryRow(ctx, query, tenantID, templateID)

	var (
		tpl          domain.PromptTemplate
		variables    []byte
		defaultModel []byte
	)
	if err := row.Scan(
		&tpl.ID,
		&tpl.Version,
		&tpl.Capability,
		&tpl.SystemPrompt,
		&tpl.UserPrompt,
		&variables,
		&tpl.Output,
		&defaultModel,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("template %q: %w", templateID, domain.ErrNotFound)
		}
		return nil, err
	}

	if len(variables) > 0 {
		if err := json.Unmarshal(variables, &tpl.Variables); err != nil {
			return nil, fmt.Errorf("template %q: decode variables: %w", templateID, err)
		}
	}
	if len(defaultModel) > 0 {
		if err := json.Unmarshal(defaultModel, &tpl.DefaultModel); err != nil {
			return nil, fmt.Errorf("template %q: decode default model: %w", templateID, err)
		}
	}
	return &tpl, nil
}
