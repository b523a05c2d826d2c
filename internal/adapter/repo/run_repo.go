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

// QueuedRun is one claimed queue entry. Request holds the submitted run
// payload verbatim; the worker decodes it.
type QueuedRun struct {
	ID       string
	TenantID string
	Pipeline string
	Request  json.RawMessage
}

// RunRepositoryPG stores pipeline runs as jsonb documents, one row per run.
type RunRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewRunRepository creates a new run repository backed by PostgreSQL.
func NewRunRepository(pool *pgxpool.Pool) *RunRepositoryPG {
	return &RunRepositoryPG{pool: pool}
}

// Enqueue records a queued run for the worker to claim.
func (r *RunRepositoryPG) Enqueue(ctx context.Context, id, tenantID, pipeline string, request json.RawMessage) error {
	query := `
INSERT INTO pipeline_runs (id, tenant_id, pipeline, status, request)
VALUES ($1, $2, $3, $4, $5);
`
	_, err := r.pool.Exec(ctx, query, id, tenantID, pipeline, domain.RunStatusQueued, request)
	return err
}

// ClaimQueued atomically claims the oldest queued run and marks it running.
// domain.ErrNotFound means the queue is empty.
func (r *RunRepositoryPG) ClaimQueued(ctx context.Context) (*QueuedRun, error) {
	query := `
WITH next_run AS (
    SELECT id
    FROM pipeline_runs
    WHERE status = $1
    ORDER BY created_at ASC
    FOR UPDATE SKIP LOCKED
    LIMIT 1
),
claimed AS (
    UPDATE pipeline_runs
    SET status = $2, updated_at = now()
    WHERE id IN (SELECT id FROM next_run)
    RETURNING id, tenant_id, pipeline, request
)
SELECT id, tenant_id, pipeline, request FROM claimed;
`
	row := r.pool.QueryRow(ctx, query, domain.RunStatusQueued, domain.RunStatusRunning)

	var run QueuedRun
	if err := row.Scan(&run.ID, &run.TenantID, &run.Pipeline, &run.Request); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &run, nil
}

// PersistRun upserts the whole run document in one merge-style statement.
// The document column keeps any previously written keys that the new
// document does not carry.
func (r *RunRepositoryPG) PersistRun(ctx context.Context, run *domain.PipelineRun) error {
	document, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("encode run %s: %w", run.ID, err)
	}

	query := `
INSERT INTO pipeline_runs (id, tenant_id, pipeline, status, document)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO UPDATE
SET status     = EXCLUDED.status,
    document   = COALESCE(pipeline_runs.document, '{}'::jsonb) || EXCLUDED.document,
    updated_at = now();
`
	_, err = r.pool.Exec(ctx, query, run.ID, run.TenantID, run.Pipeline, run.Status, document)
	return err
}

// MarkFailed records a terminal failure for a claimed run that never produced
// a document, so the queue cannot wedge on a poisoned entry.
func (r *RunRepositoryPG) MarkFailed(ctx context.Context, id, message string) error {
	query := `
UPDATE pipeline_runs
SET status = $2, document = COALESCE(document, '{}'::jsonb) || jsonb_build_object('error_message', $3::text), updated_at = now()
WHERE id = $1;
`
	_, err := r.pool.Exec(ctx, query, id, domain.RunStatusFailed, message)
	return err
}

// Get fetches one run document.
func (r *RunRepositoryPG) Get(ctx context.Context, id string) (*domain.PipelineRun, error) {
	query := `
SELECT status, document
FROM pipeline_runs
WHERE id = $1;
`
	row := r.pool.QueryRow(ctx, query, id)

	var (
		status   domain.RunStatus
		document []byte
	)
	if err := row.Scan(&status, &document); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("run %q: %w", id, domain.ErrNotFound)
		}
		return nil, err
	}

	run := &domain.PipelineRun{ID: id, Status: status}
	if len(document) > 0 {
		if err := json.Unmarshal(document, run); err != nil {
			return nil, fmt.Errorf("run %q: decode document: %w", id, err)
		}
	}
	run.ID = id
	run.Status = status
	return run, nil
}
