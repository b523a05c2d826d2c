package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"creatorlab/internal/adapter/repo"
	"creatorlab/internal/adaptor"
	"creatorlab/internal/adaptor/gemini"
	"creatorlab/internal/adaptor/openai"
	"creatorlab/internal/adaptor/static"
	"creatorlab/internal/http/handlers"
	"creatorlab/internal/http/httpapi"
	"creatorlab/internal/infra"
	"creatorlab/internal/infra/geoip"
	"creatorlab/internal/middleware"
	"creatorlab/internal/pipeline"
	"creatorlab/internal/poller"
	"creatorlab/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv, "api")

	ctx := context.Background()
	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer pool.Close()

	registry := adaptor.NewRegistry()
	creds := vendorCredentials(cfg)
	if err := registerAdaptors(registry, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("failed to register adaptors")
	}

	fileStore, err := storage.NewFileStore(cfg.StoragePath, cfg.StorageBaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure storage")
	}

	runs := repo.NewRunRepository(pool)
	resolver := adaptor.NewResolver(registry, repo.NewStageConfigRepository(pool), creds)
	orchestrator := pipeline.New(repo.NewTemplateRepository(pool), resolver, fileStore, runs, logger)

	pipelines, err := pipeline.LoadDefinitions(cfg.PipelinesPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load pipeline definitions")
	}

	var lookup middleware.CountryLookup
	countryResolver, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip database unavailable, locale falls back to headers")
	} else if countryResolver != nil {
		lookup = countryResolver.CountryCode
	}

	app := handlers.NewApp(logger, registry, orchestrator, runs, pipelines, healthProbes(ctx, registry, creds, logger))
	router := httpapi.NewRouter(app, httpapi.Options{
		Config:        cfg,
		CountryLookup: lookup,
		StaticDir:     cfg.StoragePath,
	})

	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}

func vendorCredentials(cfg *infra.Config) map[string]adaptor.Credentials {
	return map[string]adaptor.Credentials{
		gemini.AdaptorID: {APIKey: cfg.GeminiAPIKey, BaseURL: cfg.GeminiBaseURL},
		openai.AdaptorID: {APIKey: cfg.OpenAIAPIKey, BaseURL: cfg.OpenAIBaseURL},
		static.AdaptorID: {},
	}
}

func registerAdaptors(registry *adaptor.Registry, cfg *infra.Config, logger infra.Logger) error {
	jobPoller := poller.New(logger)

	if err := registry.Register(gemini.Descriptor(), gemini.NewConstructor(gemini.Options{
		Logger:       logger,
		Poller:       jobPoller,
		PollInterval: cfg.PollInterval,
		MaxWait:      cfg.PollMaxWait,
	})); err != nil {
		return err
	}
	if err := registry.Register(openai.Descriptor(), openai.NewConstructor(openai.Options{
		Logger: logger,
	})); err != nil {
		return err
	}
	return registry.Register(static.Descriptor(), static.NewConstructor())
}

// healthProbes instantiates one probe per adaptor with live credentials.
// Vendors without a key are skipped rather than reported forever-red.
func healthProbes(ctx context.Context, registry *adaptor.Registry, creds map[string]adaptor.Credentials, logger infra.Logger) []handlers.HealthProbe {
	probeModels := map[string]string{
		gemini.AdaptorID: "gemini-2.5-flash",
		openai.AdaptorID: "gpt-4o-mini",
		static.AdaptorID: static.ModelID,
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var probes []handlers.HealthProbe
	for id, modelID := range probeModels {
		if id != static.AdaptorID && creds[id].APIKey == "" {
			continue
		}
		instance, err := registry.Instantiate(ctx, id, modelID, creds[id], adaptor.GenerationConfig{})
		if err != nil {
			logger.Warn().Err(err).Str("adaptor", id).Msg("health probe unavailable")
			continue
		}
		probes = append(probes, handlers.HealthProbe{ID: id, Check: instance.HealthCheck})
	}
	return probes
}
