package handlers

import (
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"creatorlab/internal/domain"
)

// ListAdaptors handles GET /v1/adaptors.
func (a *App) ListAdaptors(w http.ResponseWriter, r *http.Request) {
	descs := a.Registry.Descriptors()
	sort.Slice(descs, func(i, j int) bool { return descs[i].ID < descs[j].ID })
	a.json(w, http.StatusOK, map[string]any{"adaptors": descs})
}

// ListModels handles GET /v1/adaptors/{id}/models.
func (a *App) ListModels(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	models, err := a.Registry.ListModels(id)
	if err != nil {
		a.jsonError(w, http.StatusNotFound, "unknown adaptor "+id)
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"adaptor": id,
		"models":  models,
	})
}

// ListPipelines handles GET /v1/pipelines.
func (a *App) ListPipelines(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(a.Pipelines))
	capabilities := make(map[string]domain.Capability, len(a.Pipelines))
	for name, def := range a.Pipelines {
		names = append(names, name)
		capabilities[name] = def.AssetCapability
	}
	sort.Strings(names)

	out := make([]map[string]any, 0, len(names))
	for _, name := range names {
		out = append(out, map[string]any{
			"name":             name,
			"asset_capability": capabilities[name],
		})
	}
	a.json(w, http.StatusOK, map[string]any{"pipelines": out})
}
