// Package storage defines the presets file-system abstraction.
package storage

import (
	"errors"

	"github.com/starford/presetcat/internal/models"
)

// ErrOutsideRoot is returned for paths that resolve outside the presets root.
var ErrOutsideRoot = errors.New("storage: path escapes presets root")

// Provider is the interface for preset file operations. Paths may be absolute
// (inside the root) or relative to the root.
type Provider interface {
	// Root returns the absolute presets root.
	Root() string
	// List returns every .xmp file under dir, recursing when asked.
	List(dir string, recursive bool) ([]models.PresetFile, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically replaces the file at path with content.
	Write(path string, content []byte) error
}
