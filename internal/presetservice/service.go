// Package presetservice coordinates the engine, the catalog index and the
// event broker behind the CLI, HTTP and MCP surfaces.
package presetservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/starford/presetcat/internal/apperr"
	"github.com/starford/presetcat/internal/backup"
	"github.com/starford/presetcat/internal/engine"
	"github.com/starford/presetcat/internal/index"
	"github.com/starford/presetcat/internal/models"
	"github.com/starford/presetcat/internal/sse"
	"github.com/starford/presetcat/internal/storage"
	"github.com/starford/presetcat/internal/xmp"
)

// PresetDetail is a preset re-read from disk, with its raw content.
type PresetDetail struct {
	models.Preset
	Encoding   xmp.Encoding       `json:"encoding,omitempty"`
	Content    string             `json:"content"`
	Suggestion *models.Suggestion `json:"suggestion,omitempty"`
}

// Events receives catalog change notifications. *sse.Broker satisfies it.
type Events interface {
	PublishPresetEvent(kind, path string)
	Publish(event sse.Event)
}

// Service coordinates storage, engine and index operations.
type Service struct {
	eng       *engine.Engine
	store     storage.Provider
	db        index.PresetIndex
	logger    *slog.Logger
	events    Events
	recursive bool
	backupDir string
	now       func() time.Time

	// edit serializes batch edits.
	edit sync.Mutex

	mu      sync.Mutex
	records []models.Preset
	smart   *smartSession
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithEvents sets the change notification sink.
func WithEvents(e Events) Option {
	return func(s *Service) {
		s.events = e
	}
}

// WithRecursive sets whether scans descend into subfolders.
func WithRecursive(recursive bool) Option {
	return func(s *Service) {
		s.recursive = recursive
	}
}

// WithBackupDir sets the directory ZIP backups are written to.
func WithBackupDir(dir string) Option {
	return func(s *Service) {
		s.backupDir = dir
	}
}

// NewService creates a new preset service.
func NewService(eng *engine.Engine, store storage.Provider, db index.PresetIndex, opts ...Option) *Service {
	s := &Service{
		eng:       eng,
		store:     store,
		db:        db,
		logger:    slog.Default(),
		recursive: true,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Root returns the presets root.
func (s *Service) Root() string {
	return s.store.Root()
}

// Scan rescans the presets root, replaces the catalog and ends any smart
// detection session, since its suggestions refer to the old snapshot.
func (s *Service) Scan(ctx context.Context) ([]models.Preset, error) {
	recs, err := index.Sync(ctx, s.db, s.eng, s.recursive, s.logger)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.records = recs
	wasActive := s.smart != nil
	s.smart = nil
	s.mu.Unlock()

	if wasActive {
		s.publish(sse.Event{Type: sse.TypeSmartDetection, Data: map[string]any{"active": false}})
	}
	s.publish(sse.Event{Type: sse.TypeCatalogUpdated, Data: map[string]int{"presets": len(recs)}})
	return recs, nil
}

// Records returns the last scan snapshot.
func (s *Service) Records() []models.Preset {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Preset, len(s.records))
	copy(out, s.records)
	return out
}

// snapshot returns the scan snapshot, scanning first if there is none.
func (s *Service) snapshot(ctx context.Context) ([]models.Preset, error) {
	s.mu.Lock()
	recs := s.records
	s.mu.Unlock()
	if recs != nil {
		return recs, nil
	}
	return s.Scan(ctx)
}

// ListPresets returns one page of the catalog.
func (s *Service) ListPresets(_ context.Context, f index.ListFilter) ([]models.Preset, int, error) {
	return s.db.List(f)
}

// Facets returns cluster and group counts from the catalog.
func (s *Service) Facets(_ context.Context) (clusters, groups []models.Facet, err error) {
	return s.db.Facets()
}

// Search looks presets up by name, cluster or group.
func (s *Service) Search(_ context.Context, query string, limit int) ([]models.Preset, error) {
	if query == "" {
		return nil, fmt.Errorf("%w: empty query", apperr.ErrInvalidInput)
	}
	return s.db.Search(query, limit)
}

// GetPreset re-reads one preset from disk. Each call reads the file again so
// the result never reflects a stale scan.
func (s *Service) GetPreset(_ context.Context, path string) (*PresetDetail, error) {
	rec, err := s.eng.Extract(path)
	if err != nil && errors.Is(err, engine.ErrIO) {
		if errors.Is(err, storage.ErrOutsideRoot) {
			return nil, fmt.Errorf("%w: %w", apperr.ErrInvalidInput, err)
		}
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	detail := &PresetDetail{Preset: rec}
	if info, statErr := os.Stat(rec.Path); statErr == nil {
		detail.UpdatedAt = info.ModTime()
	}
	if err == nil {
		data, readErr := s.store.Read(rec.Path)
		if readErr != nil {
			return nil, readErr
		}
		detail.Content, detail.Encoding, _ = xmp.Decode(data)
	}

	s.mu.Lock()
	if s.smart != nil {
		if sg, ok := s.smart.suggestions[rec.Path]; ok {
			detail.Suggestion = &sg
		}
	}
	s.mu.Unlock()
	return detail, nil
}

// SetCluster writes value as the cluster of every preset in paths.
// Directories expand to the presets they contain.
func (s *Service) SetCluster(ctx context.Context, paths []string, value string, dryRun bool) (engine.Result, error) {
	return s.manualEdit(ctx, "cluster", paths, value, dryRun, xmp.ValidateCluster, func(e *engine.Engine, files []string) (engine.Result, error) {
		return e.UpdateCluster(ctx, files, value)
	})
}

// SetGroup writes value as the group of every preset in paths.
func (s *Service) SetGroup(ctx context.Context, paths []string, value string, dryRun bool) (engine.Result, error) {
	return s.manualEdit(ctx, "group", paths, value, dryRun, xmp.ValidateGroup, func(e *engine.Engine, files []string) (engine.Result, error) {
		return e.UpdateGroup(ctx, files, value)
	})
}

// FixGroups rewrites malformed group tags in canonical form.
func (s *Service) FixGroups(ctx context.Context, paths []string, dryRun bool) (engine.Result, error) {
	files, err := s.expand(paths)
	if err != nil {
		return engine.Result{}, err
	}
	s.edit.Lock()
	defer s.edit.Unlock()
	res := s.engine(dryRun).NormalizeGroupTags(ctx, files)
	s.afterEdit("fix-groups", res)
	return res, nil
}

// manualEdit runs a free-text edit. Free-text edits are refused while smart
// detection is active.
func (s *Service) manualEdit(ctx context.Context, field string, paths []string, value string, dryRun bool,
	validate func(string) error, run func(*engine.Engine, []string) (engine.Result, error)) (engine.Result, error) {
	if s.SmartDetection().Active {
		return engine.Result{}, fmt.Errorf("%w: smart detection is active; apply or reset it first", apperr.ErrConflict)
	}
	if err := validate(value); err != nil {
		return engine.Result{}, fmt.Errorf("%w: %w", apperr.ErrInvalidInput, err)
	}
	files, err := s.expand(paths)
	if err != nil {
		return engine.Result{}, err
	}

	s.edit.Lock()
	defer s.edit.Unlock()
	res, err := run(s.engine(dryRun), files)
	if err != nil {
		return res, fmt.Errorf("%w: %w", apperr.ErrInvalidInput, err)
	}
	s.afterEdit("set-"+field, res)
	return res, nil
}

func (s *Service) engine(dryRun bool) *engine.Engine {
	if dryRun {
		return s.eng.Preview()
	}
	return s.eng
}

// Expand resolves paths to preset files: directories expand to the presets
// they contain, honoring the recursive setting.
func (s *Service) Expand(paths []string) ([]string, error) {
	return s.expand(paths)
}

func (s *Service) expand(paths []string) ([]string, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: no paths given", apperr.ErrInvalidInput)
	}
	var out []string
	seen := make(map[string]struct{})
	add := func(p string) {
		if _, ok := seen[p]; !ok {
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}
	for _, p := range paths {
		abs := p
		if !filepath.IsAbs(abs) {
			abs = filepath.Join(s.store.Root(), p)
		}
		abs = filepath.Clean(abs)
		info, err := os.Stat(abs)
		if err != nil || !info.IsDir() {
			add(abs)
			continue
		}
		files, err := s.store.List(abs, s.recursive)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", apperr.ErrInvalidInput, err)
		}
		for _, f := range files {
			add(f.Path)
		}
	}
	return out, nil
}

// afterEdit refreshes the catalog rows of changed presets and publishes the
// batch summary. Dry runs change nothing.
func (s *Service) afterEdit(op string, res engine.Result) {
	if res.DryRun {
		return
	}
	for _, p := range res.ChangedPaths() {
		rec, err := index.Reindex(s.db, s.eng, p)
		if err != nil {
			s.logger.Warn("reindex failed", slog.String("path", p), slog.String("error", err.Error()))
			continue
		}
		s.replaceRecord(rec)
		s.publishPreset("updated", p)
	}
	s.publish(sse.Event{Type: sse.TypeBatchCompleted, Data: map[string]any{
		"op":        op,
		"attempted": res.Attempted,
		"succeeded": res.Succeeded,
		"changed":   res.Changed,
		"skipped":   res.Skipped,
		"failed":    res.Failed,
		"canceled":  res.Canceled,
	}})
}

func (s *Service) replaceRecord(rec models.Preset) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.records {
		if s.records[i].Path == rec.Path {
			rec.DisplayName = s.records[i].DisplayName
			s.records[i] = rec
			return
		}
	}
}

// Backup archives every scanned preset into the backup directory.
func (s *Service) Backup(ctx context.Context) (backup.Summary, error) {
	if s.backupDir == "" {
		return backup.Summary{}, fmt.Errorf("%w: no backup directory configured", apperr.ErrInvalidInput)
	}
	recs, err := s.snapshot(ctx)
	if err != nil {
		return backup.Summary{}, err
	}
	if len(recs) == 0 {
		return backup.Summary{}, fmt.Errorf("%w: no presets to back up", apperr.ErrInvalidInput)
	}
	files := make([]string, len(recs))
	for i, r := range recs {
		files[i] = r.Path
	}
	sum, err := backup.Create(ctx, s.store.Root(), files, s.backupDir, s.now())
	if err != nil {
		return backup.Summary{}, err
	}
	s.logger.Info("backup created", slog.String("path", sum.Path), slog.Int("files", sum.Files))
	return sum, nil
}

func (s *Service) publish(ev sse.Event) {
	if s.events != nil {
		s.events.Publish(ev)
	}
}

func (s *Service) publishPreset(kind, path string) {
	if s.events != nil {
		s.events.PublishPresetEvent(kind, path)
	}
}
