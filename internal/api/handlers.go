package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/starford/presetcat/internal/apperr"
	"github.com/starford/presetcat/internal/index"
	"github.com/starford/presetcat/internal/presetservice"
)

const maxBodyBytes = 1 << 20

// Handler holds API route handlers.
type Handler struct {
	svc *presetservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *presetservice.Service) *Handler {
	return &Handler{svc: svc}
}

// Validate checks the edit request shape. Value rules live in the service.
func (req EditRequest) Validate() error {
	return validation.ValidateStruct(&req,
		validation.Field(&req.Paths, validation.Required, validation.Each(validation.Required)),
	)
}

// Validate checks the repair request shape.
func (req FixGroupsRequest) Validate() error {
	return validation.ValidateStruct(&req,
		validation.Field(&req.Paths, validation.Required, validation.Each(validation.Required)),
	)
}

// Validate checks the apply request shape.
func (req ApplyRequest) Validate() error {
	return validation.ValidateStruct(&req,
		validation.Field(&req.Paths, validation.Each(validation.Required)),
	)
}

// presetPath extracts the preset path from the URL (everything after /presets/).
// Supports encoded slashes from OpenAPI clients (e.g. Portraits%2FWarm.xmp).
func presetPath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// decodeBody reads a JSON body into v and validates it. It writes the 400
// response itself and reports whether the handler may continue.
func decodeBody(w http.ResponseWriter, r *http.Request, v validation.Validatable) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return false
	}
	if err := v.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return false
	}
	return true
}

// writeServiceError maps domain errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, apperr.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, apperr.ErrConflict):
		writeJSON(w, http.StatusConflict, errorBody(err.Error()))
	default:
		slog.Error(op+" failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

// ListPresets handles GET /api/presets.
//
//	@Summary		List catalog presets with optional filtering and pagination
//	@Tags			presets
//	@Produce		json
//	@Param			cluster	query		string	false	"Filter by cluster"
//	@Param			group	query		string	false	"Filter by group"
//	@Param			limit	query		int		false	"Page size"
//	@Param			offset	query		int		false	"Page offset"
//	@Success		200		{object}	PresetListResponse
//	@Security		BearerAuth
//	@Router			/presets [get]
func (h *Handler) ListPresets(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	f := index.ListFilter{
		Cluster: q.Get("cluster"),
		Group:   q.Get("group"),
		Limit:   limit,
		Offset:  offset,
	}

	items, total, err := h.svc.ListPresets(r.Context(), f)
	if err != nil {
		writeServiceError(w, "list presets", err)
		return
	}
	writeJSON(w, http.StatusOK, PresetListResponse{Presets: items, Total: total})
}

// GetPreset handles GET /api/presets/*.
//
//	@Summary		Re-read a single preset from disk
//	@Tags			presets
//	@Produce		json
//	@Param			path	path		string	true	"Preset path relative to the presets root"
//	@Success		200		{object}	PresetDetail
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/presets/{path} [get]
func (h *Handler) GetPreset(w http.ResponseWriter, r *http.Request) {
	path := presetPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	p, err := h.svc.GetPreset(r.Context(), path)
	if err != nil {
		writeServiceError(w, "get preset", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Scan handles POST /api/scan.
//
//	@Summary		Rescan the presets root and rebuild the catalog
//	@Tags			catalog
//	@Produce		json
//	@Success		200	{object}	ScanResponse
//	@Security		BearerAuth
//	@Router			/scan [post]
func (h *Handler) Scan(w http.ResponseWriter, r *http.Request) {
	recs, err := h.svc.Scan(r.Context())
	if err != nil {
		writeServiceError(w, "scan", err)
		return
	}
	resp := ScanResponse{Presets: len(recs)}
	for _, p := range recs {
		if p.Unreadable() {
			resp.Unreadable++
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// Facets handles GET /api/facets.
//
//	@Summary		Distinct cluster and group values with counts
//	@Tags			catalog
//	@Produce		json
//	@Success		200	{object}	FacetsResponse
//	@Security		BearerAuth
//	@Router			/facets [get]
func (h *Handler) Facets(w http.ResponseWriter, r *http.Request) {
	clusters, groups, err := h.svc.Facets(r.Context())
	if err != nil {
		writeServiceError(w, "facets", err)
		return
	}
	writeJSON(w, http.StatusOK, FacetsResponse{Clusters: clusters, Groups: groups})
}

// Search handles GET /api/search.
//
//	@Summary		Search presets by name, cluster or group
//	@Tags			catalog
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		writeServiceError(w, "search", err)
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}

// SetCluster handles POST /api/cluster.
//
//	@Summary		Write a cluster value into the selected presets
//	@Tags			edits
//	@Accept			json
//	@Produce		json
//	@Param			body	body		EditRequest	true	"Presets and value"
//	@Success		200		{object}	BatchResult
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/cluster [post]
func (h *Handler) SetCluster(w http.ResponseWriter, r *http.Request) {
	var req EditRequest
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := h.svc.SetCluster(r.Context(), req.Paths, req.Value, req.DryRun)
	if err != nil {
		writeServiceError(w, "set cluster", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// SetGroup handles POST /api/group.
//
//	@Summary		Write a group value into the selected presets
//	@Tags			edits
//	@Accept			json
//	@Produce		json
//	@Param			body	body		EditRequest	true	"Presets and value"
//	@Success		200		{object}	BatchResult
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/group [post]
func (h *Handler) SetGroup(w http.ResponseWriter, r *http.Request) {
	var req EditRequest
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := h.svc.SetGroup(r.Context(), req.Paths, req.Value, req.DryRun)
	if err != nil {
		writeServiceError(w, "set group", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// FixGroups handles POST /api/fix-groups.
//
//	@Summary		Rewrite malformed group tags in canonical form
//	@Tags			edits
//	@Accept			json
//	@Produce		json
//	@Param			body	body		FixGroupsRequest	true	"Presets to repair"
//	@Success		200		{object}	BatchResult
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/fix-groups [post]
func (h *Handler) FixGroups(w http.ResponseWriter, r *http.Request) {
	var req FixGroupsRequest
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := h.svc.FixGroups(r.Context(), req.Paths, req.DryRun)
	if err != nil {
		writeServiceError(w, "fix groups", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// SmartDetection handles GET /api/smart-detection.
//
//	@Summary		Current smart detection session
//	@Tags			smart-detection
//	@Produce		json
//	@Success		200	{object}	SmartState
//	@Security		BearerAuth
//	@Router			/smart-detection [get]
func (h *Handler) SmartDetection(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.SmartDetection())
}

// StartSmartDetection handles POST /api/smart-detection.
//
//	@Summary		Infer cluster and group from folder positions
//	@Tags			smart-detection
//	@Produce		json
//	@Success		200	{object}	SmartState
//	@Security		BearerAuth
//	@Router			/smart-detection [post]
func (h *Handler) StartSmartDetection(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.StartSmartDetection(r.Context())
	if err != nil {
		writeServiceError(w, "start smart detection", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// ResetSmartDetection handles DELETE /api/smart-detection.
//
//	@Summary		Discard the smart detection session
//	@Tags			smart-detection
//	@Success		204	"Session discarded"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/smart-detection [delete]
func (h *Handler) ResetSmartDetection(w http.ResponseWriter, _ *http.Request) {
	if !h.svc.ResetSmartDetection() {
		writeJSON(w, http.StatusNotFound, errorBody("smart detection is not active"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ApplySmartDetection handles POST /api/smart-detection/apply.
//
//	@Summary		Write smart detection suggestions
//	@Tags			smart-detection
//	@Accept			json
//	@Produce		json
//	@Param			body	body		ApplyRequest	false	"Presets to apply; empty applies all"
//	@Success		200		{object}	ApplyResponse
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/smart-detection/apply [post]
func (h *Handler) ApplySmartDetection(w http.ResponseWriter, r *http.Request) {
	var req ApplyRequest
	if r.ContentLength != 0 && !decodeBody(w, r, &req) {
		return
	}
	res, err := h.svc.ApplySmartDetection(r.Context(), req.Paths, req.DryRun)
	if err != nil {
		writeServiceError(w, "apply smart detection", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Backup handles POST /api/backup.
//
//	@Summary		Archive every preset into a timestamped ZIP
//	@Tags			catalog
//	@Produce		json
//	@Success		201	{object}	BackupResponse
//	@Failure		400	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/backup [post]
func (h *Handler) Backup(w http.ResponseWriter, r *http.Request) {
	sum, err := h.svc.Backup(r.Context())
	if err != nil {
		writeServiceError(w, "backup", err)
		return
	}
	writeJSON(w, http.StatusCreated, sum)
}
