// Package httpapi assembles the chi router over the handler container.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"creatorlab/internal/http/handlers"
	"creatorlab/internal/infra"
	"creatorlab/internal/middleware"
)

// Options carry the router's cross-cutting dependencies.
type Options struct {
	Config        *infra.Config
	CountryLookup middleware.CountryLookup
	StaticDir     string
}

// NewRouter builds the full route table with the standard middleware chain.
func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(app.Logger),
	)

	defaultLocale := "en"
	rateLimit := 30
	if opts.Config != nil {
		defaultLocale = opts.Config.DefaultLocale
		rateLimit = opts.Config.RateLimitPerMin
		if len(opts.Config.CORSAllowedOrigins) > 0 {
			r.Use(middleware.CORS(opts.Config.CORSAllowedOrigins))
		}
	}
	r.Use(middleware.Locale(defaultLocale, opts.CountryLookup))

	r.Get("/healthz", app.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/adaptors", app.ListAdaptors)
		r.Get("/adaptors/{id}/models", app.ListModels)
		r.Get("/pipelines", app.ListPipelines)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(rateLimit, time.Minute))
			r.Post("/pipelines/{pipeline}/runs", app.StreamRun)
			r.Post("/runs", app.EnqueueRun)
		})
		r.Get("/runs/{id}", app.GetRun)
	})

	if opts.StaticDir != "" {
		fs := http.StripPrefix("/static/", http.FileServer(http.Dir(opts.StaticDir)))
		r.Get("/static/*", fs.ServeHTTP)
	}

	return r
}
