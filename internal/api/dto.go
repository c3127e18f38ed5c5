package api

import (
	"github.com/starford/presetcat/internal/backup"
	"github.com/starford/presetcat/internal/engine"
	"github.com/starford/presetcat/internal/models"
	"github.com/starford/presetcat/internal/presetservice"
)

// EditRequest is the request body for cluster and group edits.
type EditRequest struct {
	Paths  []string `json:"paths" example:"Portraits/Warm Fade.xmp" validate:"required"`
	Value  string   `json:"value" example:"Portraits"`
	DryRun bool     `json:"dry_run"`
}

// FixGroupsRequest is the request body for group tag repair.
type FixGroupsRequest struct {
	Paths  []string `json:"paths" example:"Portraits" validate:"required"`
	DryRun bool     `json:"dry_run"`
}

// ApplyRequest selects smart detection suggestions to apply. Empty paths
// apply every pending suggestion.
type ApplyRequest struct {
	Paths  []string `json:"paths,omitempty"`
	DryRun bool     `json:"dry_run"`
}

// PresetDetail is the full preset response type (aliased from the domain layer).
type PresetDetail = presetservice.PresetDetail

// SmartState is the smart detection session (aliased from the domain layer).
type SmartState = presetservice.SmartState

// BatchResult is a batch edit summary (aliased from the engine).
type BatchResult = engine.Result

// PresetListResponse wraps paginated preset listings.
type PresetListResponse struct {
	Presets []models.Preset `json:"presets" validate:"required"`
	Total   int             `json:"total" example:"42" validate:"required"`
}

// FacetsResponse lists distinct cluster and group values with counts.
type FacetsResponse struct {
	Clusters []models.Facet `json:"clusters" validate:"required"`
	Groups   []models.Facet `json:"groups" validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []models.Preset `json:"results" validate:"required"`
}

// ScanResponse reports the size of a fresh catalog.
type ScanResponse struct {
	Presets    int `json:"presets" example:"128" validate:"required"`
	Unreadable int `json:"unreadable" example:"1"`
}

// ApplyResponse reports both passes of a smart detection apply.
type ApplyResponse = presetservice.ApplyResult

// BackupResponse describes a written archive.
type BackupResponse = backup.Summary
