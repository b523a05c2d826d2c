// Package handlers carries the HTTP surface: run submission with SSE
// streaming, the queued-run path, adaptor catalogs, and health.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"creatorlab/internal/adaptor"
	"creatorlab/internal/domain"
	"creatorlab/internal/pipeline"
)

// Runner executes a pipeline run, streaming events to the channel.
type Runner interface {
	Run(ctx context.Context, req pipeline.RunRequest, events chan<- pipeline.Event) (*domain.PipelineRun, error)
}

// RunStore is the subset of the run repository the API needs.
type RunStore interface {
	Enqueue(ctx context.Context, id, tenantID, pipeline string, request json.RawMessage) error
	Get(ctx context.Context, id string) (*domain.PipelineRun, error)
}

// HealthProbe is one adaptor's liveness check, bound to real credentials at
// startup.
type HealthProbe struct {
	ID    string
	Check func(ctx context.Context) adaptor.Health
}

// App is the handler container. Everything is injected; handlers hold no
// globals.
type App struct {
	Logger       zerolog.Logger
	Registry     *adaptor.Registry
	Orchestrator Runner
	Runs         RunStore
	Pipelines    map[string]pipeline.Definition
	Probes       []HealthProbe
}

// NewApp wires the handler container.
func NewApp(logger zerolog.Logger, registry *adaptor.Registry, orchestrator Runner, runs RunStore, pipelines map[string]pipeline.Definition, probes []HealthProbe) *App {
	return &App{
		Logger:       logger,
		Registry:     registry,
		Orchestrator: orchestrator,
		Runs:         runs,
		Pipelines:    pipelines,
		Probes:       probes,
	}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) jsonError(w http.ResponseWriter, code int, message string) {
	a.json(w, code, map[string]string{"error": message})
}
