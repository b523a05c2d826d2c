package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"creatorlab/internal/domain"
	"creatorlab/internal/middleware"
	"creatorlab/internal/pipeline"
)

type runPayload struct {
	Variables map[string]any `json:"variables"`
}

// tenantID reads the tenant from its header. Resolving the tenant from a
// session is an outer concern; the API trusts the header it is handed.
func tenantID(r *http.Request) string {
	if tenant := r.Header.Get("X-Tenant-ID"); tenant != "" {
		return tenant
	}
	return "public"
}

// runVariables merges the submitted variables with ambient defaults. The
// request locale is available to every template as {{locale}} unless the
// caller set one explicitly.
func runVariables(r *http.Request, payload runPayload) map[string]any {
	vars := payload.Variables
	if vars == nil {
		vars = make(map[string]any)
	}
	if _, ok := vars["locale"]; !ok {
		vars["locale"] = middleware.LocaleFromContext(r.Context())
	}
	return vars
}

// StreamRun handles POST /v1/pipelines/{pipeline}/runs. The run executes on
// the request and its events stream back as SSE frames.
func (a *App) StreamRun(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "pipeline")
	def, ok := a.Pipelines[name]
	if !ok {
		a.jsonError(w, http.StatusNotFound, fmt.Sprintf("unknown pipeline %q", name))
		return
	}

	var payload runPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		a.jsonError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		a.jsonError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	req := pipeline.RunRequest{
		TenantID:  tenantID(r),
		Pipeline:  def,
		Variables: runVariables(r, payload),
	}

	events := make(chan pipeline.Event, 16)
	go func() {
		defer close(events)
		if _, err := a.Orchestrator.Run(r.Context(), req, events); err != nil {
			a.Logger.Warn().Err(err).Str("pipeline", name).Msg("api: streamed run failed")
		}
	}()

	for ev := range events {
		writeSSE(w, ev)
		flusher.Flush()
	}
}

// EnqueueRun handles POST /v1/runs: the run is persisted as queued and
// picked up by the worker.
func (a *App) EnqueueRun(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Pipeline  string         `json:"pipeline"`
		Variables map[string]any `json:"variables"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		a.jsonError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if _, ok := a.Pipelines[payload.Pipeline]; !ok {
		a.jsonError(w, http.StatusNotFound, fmt.Sprintf("unknown pipeline %q", payload.Pipeline))
		return
	}

	request, err := json.Marshal(runPayload{Variables: runVariables(r, runPayload{Variables: payload.Variables})})
	if err != nil {
		a.jsonError(w, http.StatusInternalServerError, "encode request")
		return
	}

	id := uuid.NewString()
	if err := a.Runs.Enqueue(r.Context(), id, tenantID(r), payload.Pipeline, request); err != nil {
		a.Logger.Error().Err(err).Msg("api: enqueue run failed")
		a.jsonError(w, http.StatusInternalServerError, "enqueue run")
		return
	}

	a.json(w, http.StatusAccepted, map[string]string{
		"run_id": id,
		"status": string(domain.RunStatusQueued),
	})
}

// GetRun handles GET /v1/runs/{id}.
func (a *App) GetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	run, err := a.Runs.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.jsonError(w, http.StatusNotFound, "run not found")
			return
		}
		a.Logger.Error().Err(err).Str("run_id", id).Msg("api: load run failed")
		a.jsonError(w, http.StatusInternalServerError, "load run")
		return
	}
	a.json(w, http.StatusOK, run)
}

func writeSSE(w http.ResponseWriter, ev pipeline.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
}
