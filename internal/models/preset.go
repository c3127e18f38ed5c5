// Package models defines the domain types for presetcat.
package models

import "time"

// ErrorValue marks a field that could not be read from its file.
const ErrorValue = "(error)"

// Preset is the metadata record of one scanned preset file.
type Preset struct {
	Path        string    `json:"path"`
	Filename    string    `json:"filename"`
	DisplayName string    `json:"display_name"`
	Cluster     string    `json:"cluster"`
	Group       string    `json:"group"`
	Checksum    string    `json:"checksum,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Unreadable reports whether the record was produced from an undecodable file.
func (p Preset) Unreadable() bool {
	return p.Cluster == ErrorValue && p.Group == ErrorValue
}

// PresetFile is a lightweight entry returned by storage listings.
type PresetFile struct {
	Path      string    `json:"path"`
	Rel       string    `json:"rel"`
	Size      int64     `json:"size"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Suggestion pairs a record's current values with the values inferred from
// its folder position.
type Suggestion struct {
	Path               string `json:"path"`
	CurrentCluster     string `json:"current_cluster"`
	CurrentGroup       string `json:"current_group"`
	SuggestedCluster   string `json:"suggested_cluster"`
	SuggestedGroup     string `json:"suggested_group"`
	NeedsClusterUpdate bool   `json:"needs_cluster_update"`
	NeedsGroupUpdate   bool   `json:"needs_group_update"`
}

// Actionable reports whether applying the suggestion would change anything.
func (s Suggestion) Actionable() bool {
	return s.NeedsClusterUpdate || s.NeedsGroupUpdate
}

// Facet is a distinct field value with the number of presets carrying it.
type Facet struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}
