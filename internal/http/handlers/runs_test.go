package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"creatorlab/internal/adaptor"
	"creatorlab/internal/domain"
	"creatorlab/internal/pipeline"
)

type fakeRunner struct {
	req    pipeline.RunRequest
	events []pipeline.Event
	err    error
}

func (f *fakeRunner) Run(ctx context.Context, req pipeline.RunRequest, events chan<- pipeline.Event) (*domain.PipelineRun, error) {
	f.req = req
	for _, ev := range f.events {
		ev.RunID = "run-1"
		ev.Pipeline = req.Pipeline.Name
		select {
		case events <- ev:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return &domain.PipelineRun{ID: "run-1"}, f.err
}

type fakeRunStore struct {
	enqueued map[string]json.RawMessage
	runs     map[string]*domain.PipelineRun
}

func newFakeRunStore() *fakeRunStore {
	return &fakeRunStore{
		enqueued: make(map[string]json.RawMessage),
		runs:     make(map[string]*domain.PipelineRun),
	}
}

func (f *fakeRunStore) Enqueue(_ context.Context, id, tenantID, pipelineName string, request json.RawMessage) error {
	f.enqueued[id] = request
	return nil
}

func (f *fakeRunStore) Get(_ context.Context, id string) (*domain.PipelineRun, error) {
	run, ok := f.runs[id]
	if !ok {
		return nil, fmt.Errorf("run %q: %w", id, domain.ErrNotFound)
	}
	return run, nil
}

func testApp(runner Runner, store RunStore) *App {
	return NewApp(zerolog.Nop(), adaptor.NewRegistry(), runner, store, map[string]pipeline.Definition{
		"idea-board": {
			Name:            "idea-board",
			BatchTemplateID: "batch",
			ItemTemplateID:  "item-image",
			AssetCapability: domain.CapabilityImage,
		},
	}, nil)
}

func newRouter(app *App) chi.Router {
	r := chi.NewRouter()
	r.Post("/v1/pipelines/{pipeline}/runs", app.StreamRun)
	r.Post("/v1/runs", app.EnqueueRun)
	r.Get("/v1/runs/{id}", app.GetRun)
	r.Get("/v1/adaptors", app.ListAdaptors)
	r.Get("/healthz", app.Health)
	return r
}

func TestStreamRunWritesSSEFrames(t *testing.T) {
	runner := &fakeRunner{events: []pipeline.Event{
		{Type: pipeline.EventStart},
		{Type: pipeline.EventProgress, Progress: 50},
		{Type: pipeline.EventComplete, Progress: 100, ItemCount: 2, SuccessCount: 2},
	}}
	app := testApp(runner, newFakeRunStore())

	body := strings.NewReader(`{"variables":{"topic":"coffee"}}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/pipelines/idea-board/runs", body)
	req.Header.Set("X-Tenant-ID", "t1")
	rec := httptest.NewRecorder()
	newRouter(app).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	out := rec.Body.String()
	assert.Contains(t, out, "event: start\n")
	assert.Contains(t, out, "event: progress\n")
	assert.Contains(t, out, "event: complete\n")
	assert.Contains(t, out, `"success_count":2`)

	assert.Equal(t, "t1", runner.req.TenantID)
	assert.Equal(t, "coffee", runner.req.Variables["topic"])
	assert.Equal(t, "en", runner.req.Variables["locale"], "default locale injected")
}

func TestStreamRunUnknownPipeline(t *testing.T) {
	app := testApp(&fakeRunner{}, newFakeRunStore())

	req := httptest.NewRequest(http.MethodPost, "/v1/pipelines/nope/runs", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	newRouter(app).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStreamRunKeepsCallerLocale(t *testing.T) {
	runner := &fakeRunner{}
	app := testApp(runner, newFakeRunStore())

	body := strings.NewReader(`{"variables":{"locale":"ja"}}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/pipelines/idea-board/runs", body)
	rec := httptest.NewRecorder()
	newRouter(app).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ja", runner.req.Variables["locale"])
}

func TestEnqueueRun(t *testing.T) {
	store := newFakeRunStore()
	app := testApp(&fakeRunner{}, store)

	body := strings.NewReader(`{"pipeline":"idea-board","variables":{"topic":"coffee"}}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/runs", body)
	rec := httptest.NewRecorder()
	newRouter(app).ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "queued", resp["status"])
	require.NotEmpty(t, resp["run_id"])

	raw, ok := store.enqueued[resp["run_id"]]
	require.True(t, ok)
	var stored runPayload
	require.NoError(t, json.Unmarshal(raw, &stored))
	assert.Equal(t, "coffee", stored.Variables["topic"])
}

func TestEnqueueRunUnknownPipeline(t *testing.T) {
	app := testApp(&fakeRunner{}, newFakeRunStore())

	body := strings.NewReader(`{"pipeline":"nope"}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/runs", body)
	rec := httptest.NewRecorder()
	newRouter(app).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetRun(t *testing.T) {
	store := newFakeRunStore()
	store.runs["run-1"] = &domain.PipelineRun{
		ID:           "run-1",
		Status:       domain.RunStatusCompleted,
		SuccessCount: 3,
	}
	app := testApp(&fakeRunner{}, store)

	req := httptest.NewRequest(http.MethodGet, "/v1/runs/run-1", nil)
	rec := httptest.NewRecorder()
	newRouter(app).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var run domain.PipelineRun
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))
	assert.Equal(t, domain.RunStatusCompleted, run.Status)
	assert.Equal(t, 3, run.SuccessCount)
}

func TestGetRunNotFound(t *testing.T) {
	app := testApp(&fakeRunner{}, newFakeRunStore())

	req := httptest.NewRequest(http.MethodGet, "/v1/runs/missing", nil)
	rec := httptest.NewRecorder()
	newRouter(app).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthAggregatesProbes(t *testing.T) {
	app := testApp(&fakeRunner{}, newFakeRunStore())
	app.Probes = []HealthProbe{
		{ID: "static", Check: func(context.Context) adaptor.Health { return adaptor.Health{Healthy: true} }},
		{ID: "gemini", Check: func(context.Context) adaptor.Health {
			return adaptor.Health{Healthy: false, Detail: "timeout"}
		}},
	}

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	newRouter(app).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Status   string                    `json:"status"`
		Adaptors map[string]adaptor.Health `json:"adaptors"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "degraded", resp.Status)
	assert.False(t, resp.Adaptors["gemini"].Healthy)
	assert.True(t, resp.Adaptors["static"].Healthy)
}

func TestStreamRunFailureStillStreamsErrorEvent(t *testing.T) {
	runner := &fakeRunner{
		events: []pipeline.Event{
			{Type: pipeline.EventStart},
			{Type: pipeline.EventError, Message: "missing required variable"},
		},
		err: errors.New("missing required variable"),
	}
	app := testApp(runner, newFakeRunStore())

	req := httptest.NewRequest(http.MethodPost, "/v1/pipelines/idea-board/runs", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	newRouter(app).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "event: error\n")
	assert.Contains(t, rec.Body.String(), "missing required variable")
}
