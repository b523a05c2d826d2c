// Package pipeline runs two-stage generation pipelines: one batch text call
// that yields a JSON array of items, then a per-item asset sub-step. A run is
// single-threaded internally; concurrency happens across runs, never inside
// one, which keeps event order and progress trivially correct.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"creatorlab/internal/adaptor"
	"creatorlab/internal/domain"
	"creatorlab/internal/metrics"
	"creatorlab/internal/template"
)

// Stage names used for tenant adaptor overrides.
const (
	StageBatch = "batch"
	StageAsset = "asset"
)

// Definition names a pipeline and binds its two stages to templates.
type Definition struct {
	Name            string            `json:"name"`
	BatchTemplateID string            `json:"batch_template_id"`
	ItemTemplateID  string            `json:"item_template_id"`
	AssetCapability domain.Capability `json:"asset_capability"`
}

// RunRequest is one orchestration invocation.
type RunRequest struct {
	RunID     string
	TenantID  string
	Pipeline  Definition
	Variables map[string]any
}

// TemplateSource loads prompt templates by id for a tenant.
type TemplateSource interface {
	Template(ctx context.Context, tenantID, templateID string) (*domain.PromptTemplate, error)
}

// ResultPersister writes the finished run document in one call. The
// orchestrator persists exactly once per run, at the end.
type ResultPersister interface {
	PersistRun(ctx context.Context, run *domain.PipelineRun) error
}

// ArtifactStore rewrites inline data URIs to durable URLs. Non-data URLs
// pass through unchanged.
type ArtifactStore interface {
	StoreDataURI(ctx context.Context, runID, itemID, rawURL string) (string, error)
}

// Orchestrator wires template resolution, adaptor selection, storage and
// persistence into the run loop.
type Orchestrator struct {
	templates TemplateSource
	adaptors  *adaptor.Resolver
	store     ArtifactStore
	persister ResultPersister
	logger    zerolog.Logger
}

// New builds an orchestrator. store may be nil when no durable storage is
// configured; data URIs then pass through unrewritten.
func New(templates TemplateSource, adaptors *adaptor.Resolver, store ArtifactStore, persister ResultPersister, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		templates: templates,
		adaptors:  adaptors,
		store:     store,
		persister: persister,
		logger:    logger,
	}
}

// Run executes the pipeline and streams events to the channel as they occur.
// The channel may be nil for callers that only want the returned document.
// The returned run reflects the terminal state even when err is non-nil.
func (o *Orchestrator) Run(ctx context.Context, req RunRequest, events chan<- Event) (*domain.PipelineRun, error) {
	run := &domain.PipelineRun{
		ID:        req.RunID,
		TenantID:  req.TenantID,
		Pipeline:  req.Pipeline.Name,
		Status:    domain.RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	log := o.logger.With().Str("run_id", run.ID).Str("pipeline", run.Pipeline).Str("tenant_id", run.TenantID).Logger()

	emit := func(ev Event) {
		if events == nil {
			return
		}
		ev.RunID = run.ID
		ev.Pipeline = run.Pipeline
		select {
		case events <- ev:
		case <-ctx.Done():
		}
	}
	fatal := func(err error) (*domain.PipelineRun, error) {
		run.Status = domain.RunStatusFailed
		run.ErrorMessage = err.Error()
		run.FinishedAt = time.Now().UTC()
		log.Error().Err(err).Msg("pipeline: run failed")
		metrics.ObserveRun(run.Pipeline, string(run.Status))
		emit(Event{Type: EventError, Progress: run.Progress, Message: err.Error()})
		return run, err
	}

	emit(Event{Type: EventStart})

	items, err := o.batchStage(ctx, req)
	if err != nil {
		return fatal(err)
	}
	if tpl, tplErr := o.templates.Template(ctx, req.TenantID, req.Pipeline.ItemTemplateID); tplErr == nil {
		items = dropIncomplete(*tpl, req.Variables, items)
		if len(items) == 0 {
			return fatal(&domain.MalformedOutputError{Detail: "no item in output array satisfies the asset template"})
		}
	}
	run.Items = items
	o.advance(run, 10, emit)
	log.Info().Int("items", len(items)).Msg("pipeline: batch stage parsed")

	for i := range run.Items {
		item := &run.Items[i]
		emit(Event{Type: EventItem, Item: copyItem(*item), Progress: run.Progress})

		o.assetStage(ctx, req, run, item)
		if item.Error != "" {
			log.Warn().Str("item_id", item.ItemID).Str("error", item.Error).Msg("pipeline: item failed")
			metrics.ObserveItem(run.Pipeline, "failed")
		} else {
			metrics.ObserveItem(run.Pipeline, "succeeded")
		}

		emit(Event{Type: EventAsset, Item: copyItem(*item), Progress: run.Progress})
		o.advance(run, 10+90*(i+1)/len(run.Items), emit)
	}

	run.Recount()
	run.Status = domain.RunStatusCompleted
	run.FinishedAt = time.Now().UTC()
	o.advance(run, 100, emit)

	if o.persister != nil {
		if err := o.persister.PersistRun(ctx, run); err != nil {
			return fatal(fmt.Errorf("persist run %s: %w", run.ID, err))
		}
	}
	metrics.ObserveRun(run.Pipeline, string(run.Status))
	log.Info().Int("succeeded", run.SuccessCount).Int("failed", run.ErrorCount).Msg("pipeline: run completed")
	emit(Event{
		Type:         EventComplete,
		Progress:     run.Progress,
		ItemCount:    len(run.Items),
		SuccessCount: run.SuccessCount,
		ErrorCount:   run.ErrorCount,
	})
	return run, nil
}

// batchStage resolves the batch template, makes the single text call and
// parses its output into items.
func (o *Orchestrator) batchStage(ctx context.Context, req RunRequest) ([]domain.ItemResult, error) {
	tpl, err := o.templates.Template(ctx, req.TenantID, req.Pipeline.BatchTemplateID)
	if err != nil {
		return nil, fmt.Errorf("load template %q: %w", req.Pipeline.BatchTemplateID, err)
	}

	resolved, err := template.Resolve(*tpl, req.Variables)
	if err != nil {
		return nil, err
	}

	gen, err := o.adaptors.ForStage(ctx, req.TenantID, StageBatch, domain.CapabilityText, tpl.DefaultModel)
	if err != nil {
		return nil, err
	}

	res, err := gen.GenerateText(ctx, adaptor.TextRequest{
		SystemPrompt: resolved.SystemPrompt,
		UserPrompt:   resolved.UserPrompt,
	})
	if err != nil {
		return nil, err
	}

	return parseItems(res.Text)
}

// assetStage runs the per-item sub-step. Failures land on the item, never on
// the run.
func (o *Orchestrator) assetStage(ctx context.Context, req RunRequest, run *domain.PipelineRun, item *domain.ItemResult) {
	tpl, err := o.templates.Template(ctx, req.TenantID, req.Pipeline.ItemTemplateID)
	if err != nil {
		item.Error = fmt.Sprintf("load template %q: %v", req.Pipeline.ItemTemplateID, err)
		return
	}

	vars := itemVariables(req.Variables, *item)
	resolved, err := template.Resolve(*tpl, vars)
	if err != nil {
		item.Error = err.Error()
		return
	}

	gen, err := o.adaptors.ForStage(ctx, req.TenantID, StageAsset, req.Pipeline.AssetCapability, tpl.DefaultModel)
	if err != nil {
		item.Error = err.Error()
		return
	}

	var (
		rawURL string
		format domain.OutputFormat
	)
	switch req.Pipeline.AssetCapability {
	case domain.CapabilityImage:
		res, genErr := gen.GenerateImage(ctx, adaptor.ImageRequest{
			Prompt:      resolved.UserPrompt,
			AspectRatio: template.Stringify(vars["aspect_ratio"]),
		})
		if genErr != nil {
			item.Error = genErr.Error()
			return
		}
		rawURL, format = res.URL, domain.OutputImage
	case domain.CapabilityVideo:
		res, genErr := gen.GenerateVideo(ctx, adaptor.VideoRequest{Prompt: resolved.UserPrompt})
		if genErr != nil {
			item.Error = genErr.Error()
			return
		}
		rawURL, format = res.URL, domain.OutputVideo
	default:
		item.Error = fmt.Sprintf("pipeline %q: unsupported asset capability %q", req.Pipeline.Name, req.Pipeline.AssetCapability)
		return
	}

	url := rawURL
	if o.store != nil {
		url, err = o.store.StoreDataURI(ctx, run.ID, item.ItemID, rawURL)
		if err != nil {
			item.Error = fmt.Sprintf("store artifact: %v", err)
			return
		}
	}

	item.Artifact = &domain.GeneratedArtifact{
		URL:         url,
		AdaptorID:   gen.ID(),
		ModelID:     gen.ModelID(),
		Format:      format,
		GeneratedAt: time.Now().UTC(),
	}
}

// advance raises progress monotonically and emits a progress event when the
// value moved.
func (o *Orchestrator) advance(run *domain.PipelineRun, progress int, emit func(Event)) {
	if progress <= run.Progress {
		return
	}
	run.Progress = progress
	emit(Event{Type: EventProgress, Progress: progress})
}

// parseItems decodes the batch output as a JSON array of objects, tolerating
// code fences and prose around the array. Elements that are not objects are
// dropped; an output with zero surviving items is malformed.
func parseItems(raw string) ([]domain.ItemResult, error) {
	fragment := template.ExtractJSONFragment(raw)
	if fragment == "" {
		return nil, &domain.MalformedOutputError{Detail: "no JSON fragment in output"}
	}

	var elements []json.RawMessage
	if err := json.Unmarshal([]byte(fragment), &elements); err != nil {
		return nil, &domain.MalformedOutputError{Detail: err.Error()}
	}

	items := make([]domain.ItemResult, 0, len(elements))
	for _, element := range elements {
		var fields map[string]any
		if err := json.Unmarshal(element, &fields); err != nil {
			continue
		}
		items = append(items, domain.ItemResult{
			ItemID:  uuid.NewString(),
			Index:   len(items),
			Fields:  fields,
			Payload: element,
		})
	}
	if len(items) == 0 {
		return nil, &domain.MalformedOutputError{Detail: "no items in output array"}
	}
	return items, nil
}

// dropIncomplete removes items whose fields cannot fill the asset template's
// required variables. The model emitting an element without the fields the
// asset prompt needs is an output defect, not an item failure, so such
// elements leave the batch here. Indexes re-pack over the survivors.
func dropIncomplete(tpl domain.PromptTemplate, base map[string]any, items []domain.ItemResult) []domain.ItemResult {
	kept := make([]domain.ItemResult, 0, len(items))
	for _, item := range items {
		if _, err := template.Resolve(tpl, itemVariables(base, item)); errors.Is(err, domain.ErrMissingVariable) {
			continue
		}
		item.Index = len(kept)
		kept = append(kept, item)
	}
	return kept
}

// itemVariables merges the run's variables with the item's own scalar fields.
// Item fields win, so each asset prompt reflects its element.
func itemVariables(base map[string]any, item domain.ItemResult) map[string]any {
	vars := make(map[string]any, len(base)+len(item.Fields))
	for name, value := range base {
		vars[name] = value
	}
	for name, value := range template.FlattenOutput(string(item.Payload)) {
		vars[name] = value
	}
	return vars
}

func copyItem(item domain.ItemResult) *domain.ItemResult {
	clone := item
	if item.Artifact != nil {
		artifact := *item.Artifact
		clone.Artifact = &artifact
	}
	return &clone
}
