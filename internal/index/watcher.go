package index

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/presetcat/internal/engine"
	"github.com/starford/presetcat/internal/storage"
)

// EventCallback is called after a watcher-driven catalog change.
// kind is one of "created", "updated", "deleted"; path is absolute.
type EventCallback func(kind string, path string)

// Watch starts an fsnotify watcher on the presets root and keeps the catalog
// in step with preset files until ctx is cancelled. It calls cb (if non-nil)
// after each successful catalog mutation.
//
// In recursive mode new directories are added to the watch list as they
// appear. Rename events trigger a debounced full resync that removes stale
// entries and picks up the new names.
func Watch(ctx context.Context, db PresetIndex, eng *engine.Engine, recursive bool, logger *slog.Logger, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	root := eng.Root()
	if recursive {
		err = addDirsRecursive(w, root)
	} else {
		err = w.Add(root)
	}
	if err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", root), slog.Bool("recursive", recursive))

	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time

	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(200 * time.Millisecond)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(200 * time.Millisecond)
		}
	}

	notify := func(kind, path string) {
		if cb != nil {
			cb(kind, path)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-reconcileCh:
			reconcile(ctx, db, eng, recursive, logger, notify)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			absPath := ev.Name

			if ev.Op&fsnotify.Create != 0 && recursive {
				if info, statErr := os.Stat(absPath); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, absPath); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", absPath),
							slog.String("error", addErr.Error()))
					}
					indexNewDir(db, eng, absPath, logger, notify)
					continue
				}
			}

			if !storage.IsPreset(absPath) {
				continue
			}

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				// Atomic writes land as a Create on an already indexed path.
				_, getErr := db.Get(absPath)
				if _, idxErr := Reindex(db, eng, absPath); idxErr != nil {
					logger.Warn("watcher: index failed", slog.String("path", absPath), slog.String("error", idxErr.Error()))
					continue
				}
				kind := "updated"
				if getErr != nil {
					kind = "created"
				}
				logger.Debug("watcher: indexed", slog.String("path", absPath), slog.String("op", kind))
				notify(kind, absPath)

			case ev.Op&fsnotify.Remove != 0:
				if delErr := db.Delete(absPath); delErr != nil {
					logger.Warn("watcher: delete failed", slog.String("path", absPath), slog.String("error", delErr.Error()))
					continue
				}
				logger.Debug("watcher: deleted", slog.String("path", absPath))
				notify("deleted", absPath)

			case ev.Op&fsnotify.Rename != 0:
				// fsnotify reports Rename on the old name only; the new name
				// arrives as a Create if it stays inside a watched dir.
				if delErr := db.Delete(absPath); delErr == nil {
					notify("deleted", absPath)
				}
				scheduleReconcile()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// reconcile diffs the catalog checksums against a fresh scan and reports
// created and deleted presets.
func reconcile(ctx context.Context, db PresetIndex, eng *engine.Engine, recursive bool, logger *slog.Logger, notify func(kind, path string)) {
	before, err := db.AllChecksums()
	if err != nil {
		logger.Warn("reconcile: all checksums failed", slog.String("error", err.Error()))
		return
	}
	recs, err := Sync(ctx, db, eng, recursive, logger)
	if err != nil {
		logger.Warn("reconcile: sync failed", slog.String("error", err.Error()))
		return
	}
	seen := make(map[string]struct{}, len(recs))
	for _, r := range recs {
		seen[r.Path] = struct{}{}
		cs, ok := before[r.Path]
		switch {
		case !ok:
			notify("created", r.Path)
		case cs != r.Checksum:
			notify("updated", r.Path)
		}
	}
	for p := range before {
		if _, ok := seen[p]; !ok {
			notify("deleted", p)
		}
	}
}

// indexNewDir indexes any presets already inside a newly created directory.
func indexNewDir(db PresetIndex, eng *engine.Engine, dirPath string, logger *slog.Logger, notify func(kind, path string)) {
	_ = filepath.WalkDir(dirPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !storage.IsPreset(path) {
			return nil
		}
		if _, idxErr := Reindex(db, eng, path); idxErr == nil {
			logger.Debug("watcher: indexed from new dir", slog.String("path", path))
			notify("created", path)
		}
		return nil
	})
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}
