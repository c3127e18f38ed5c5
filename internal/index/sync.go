package index

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/starford/presetcat/internal/engine"
	"github.com/starford/presetcat/internal/models"
)

// Sync rescans the presets root and replaces the catalog wholesale with the
// new records. Unreadable files are kept with the error sentinel.
func Sync(ctx context.Context, db PresetIndex, eng *engine.Engine, recursive bool, logger *slog.Logger) ([]models.Preset, error) {
	recs, err := eng.Scan(ctx, "", recursive)
	if err != nil {
		return nil, err
	}
	if err := db.Replace(recs); err != nil {
		return nil, err
	}
	logger.Info("sync: catalog replaced", slog.Int("presets", len(recs)))
	return recs, nil
}

// Reindex re-extracts one preset from disk and upserts it. A file that can no
// longer be read is reported with engine.ErrIO and left to the caller.
func Reindex(db PresetIndex, eng *engine.Engine, path string) (models.Preset, error) {
	rec, err := eng.Extract(path)
	if errors.Is(err, engine.ErrIO) {
		return rec, err
	}
	if info, statErr := os.Stat(rec.Path); statErr == nil {
		rec.UpdatedAt = info.ModTime()
	}
	return rec, db.Upsert(rec)
}
