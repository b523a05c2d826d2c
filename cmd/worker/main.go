package main

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"creatorlab/internal/adapter/repo"
	"creatorlab/internal/adaptor"
	"creatorlab/internal/adaptor/gemini"
	"creatorlab/internal/adaptor/openai"
	"creatorlab/internal/adaptor/static"
	"creatorlab/internal/domain"
	"creatorlab/internal/infra"
	"creatorlab/internal/pipeline"
	"creatorlab/internal/poller"
	"creatorlab/internal/storage"
)

type worker struct {
	runs         *repo.RunRepositoryPG
	orchestrator *pipeline.Orchestrator
	pipelines    map[string]pipeline.Definition
	logger       infra.Logger
	claimEvery   time.Duration
}

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv, "worker")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: db connection failed")
	}
	defer pool.Close()

	registry := adaptor.NewRegistry()
	jobPoller := poller.New(logger)
	if err := registry.Register(gemini.Descriptor(), gemini.NewConstructor(gemini.Options{
		Logger:       logger,
		Poller:       jobPoller,
		PollInterval: cfg.PollInterval,
		MaxWait:      cfg.PollMaxWait,
	})); err != nil {
		logger.Fatal().Err(err).Msg("worker: register gemini")
	}
	if err := registry.Register(openai.Descriptor(), openai.NewConstructor(openai.Options{Logger: logger})); err != nil {
		logger.Fatal().Err(err).Msg("worker: register openai")
	}
	if err := registry.Register(static.Descriptor(), static.NewConstructor()); err != nil {
		logger.Fatal().Err(err).Msg("worker: register static")
	}

	fileStore, err := storage.NewFileStore(cfg.StoragePath, cfg.StorageBaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to configure storage")
	}

	pipelines, err := pipeline.LoadDefinitions(cfg.PipelinesPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to load pipeline definitions")
	}

	creds := map[string]adaptor.Credentials{
		gemini.AdaptorID: {APIKey: cfg.GeminiAPIKey, BaseURL: cfg.GeminiBaseURL},
		openai.AdaptorID: {APIKey: cfg.OpenAIAPIKey, BaseURL: cfg.OpenAIBaseURL},
	}

	runs := repo.NewRunRepository(pool)
	resolver := adaptor.NewResolver(registry, repo.NewStageConfigRepository(pool), creds)
	w := &worker{
		runs:         runs,
		orchestrator: pipeline.New(repo.NewTemplateRepository(pool), resolver, fileStore, runs, logger),
		pipelines:    pipelines,
		logger:       logger,
		claimEvery:   cfg.WorkerClaimInterval,
	}

	logger.Info().Int("concurrency", cfg.WorkerConcurrency).Msg("worker: started")
	w.loop(ctx, cfg.WorkerConcurrency)
	logger.Info().Msg("worker: stopped")
}

// loop claims queued runs until the context ends. Runs execute concurrently
// up to the limit; each run is single-threaded internally.
func (w *worker) loop(ctx context.Context, concurrency int) {
	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(concurrency)

	for {
		if ctx.Err() != nil {
			break
		}

		claimed, err := w.runs.ClaimQueued(ctx)
		if err != nil {
			if !errors.Is(err, domain.ErrNotFound) && ctx.Err() == nil {
				w.logger.Error().Err(err).Msg("worker: claim failed")
			}
			w.sleep(ctx)
			continue
		}

		group.Go(func() error {
			w.execute(ctx, claimed)
			return nil
		})
	}

	_ = group.Wait()
}

func (w *worker) execute(ctx context.Context, claimed *repo.QueuedRun) {
	log := w.logger.With().Str("run_id", claimed.ID).Str("pipeline", claimed.Pipeline).Logger()

	def, ok := w.pipelines[claimed.Pipeline]
	if !ok {
		log.Error().Msg("worker: unknown pipeline")
		w.markFailed(claimed.ID, "unknown pipeline "+claimed.Pipeline)
		return
	}

	var payload struct {
		Variables map[string]any `json:"variables"`
	}
	if err := json.Unmarshal(claimed.Request, &payload); err != nil {
		log.Error().Err(err).Msg("worker: malformed run request")
		w.markFailed(claimed.ID, "malformed run request: "+err.Error())
		return
	}

	req := pipeline.RunRequest{
		RunID:     claimed.ID,
		TenantID:  claimed.TenantID,
		Pipeline:  def,
		Variables: payload.Variables,
	}
	if _, err := w.orchestrator.Run(ctx, req, nil); err != nil {
		log.Warn().Err(err).Msg("worker: run failed")
		w.markFailed(claimed.ID, err.Error())
		return
	}
	log.Info().Msg("worker: run completed")
}

// markFailed uses a fresh context so a cancelled claim context cannot leave
// a run stuck in running state.
func (w *worker) markFailed(id, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := w.runs.MarkFailed(ctx, id, message); err != nil {
		w.logger.Error().Err(err).Str("run_id", id).Msg("worker: mark failed errored")
	}
}

func (w *worker) sleep(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(w.claimEvery):
	}
}
