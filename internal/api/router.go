package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/starford/presetcat/internal/presetservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *presetservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Catalog.
	r.Get("/presets", h.ListPresets)
	r.Get("/presets/*", h.GetPreset)
	r.Post("/scan", h.Scan)
	r.Get("/facets", h.Facets)
	r.Get("/search", h.Search)
	r.Post("/backup", h.Backup)

	// Edits.
	r.Post("/cluster", h.SetCluster)
	r.Post("/group", h.SetGroup)
	r.Post("/fix-groups", h.FixGroups)

	// Smart detection.
	r.Get("/smart-detection", h.SmartDetection)
	r.Post("/smart-detection", h.StartSmartDetection)
	r.Delete("/smart-detection", h.ResetSmartDetection)
	r.Post("/smart-detection/apply", h.ApplySmartDetection)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
