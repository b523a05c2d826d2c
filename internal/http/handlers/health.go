package handlers

import (
	"context"
	"net/http"
	"time"
)

const probeTimeout = 5 * time.Second

// Health handles GET /healthz. Adaptor probes are advisory: a degraded
// vendor turns the report yellow, never the status code red, so orchestrated
// restarts don't flap on upstream hiccups.
func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	adaptors := make(map[string]any, len(a.Probes))
	allHealthy := true
	for _, probe := range a.Probes {
		ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
		health := probe.Check(ctx)
		cancel()

		adaptors[probe.ID] = health
		if !health.Healthy {
			allHealthy = false
		}
	}

	status := "ok"
	if !allHealthy {
		status = "degraded"
	}
	a.json(w, http.StatusOK, map[string]any{
		"status":   status,
		"adaptors": adaptors,
	})
}
