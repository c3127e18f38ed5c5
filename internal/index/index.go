package index

import "github.com/starford/presetcat/internal/models"

// PresetIndex defines the interface for catalog operations.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with mocks.
type PresetIndex interface {
	Upsert(p models.Preset) error
	Delete(path string) error
	Replace(presets []models.Preset) error
	Get(path string) (*models.Preset, error)
	List(f ListFilter) ([]models.Preset, int, error)
	Facets() (clusters, groups []models.Facet, err error)
	Search(query string, limit int) ([]models.Preset, error)
	AllChecksums() (map[string]string, error)
	Close() error
}

// Verify *DB satisfies PresetIndex at compile time.
var _ PresetIndex = (*DB)(nil)
