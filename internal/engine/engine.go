// Package engine applies the xmp field writers to batches of preset files,
// isolating per-file failures and folding them into a Result.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/starford/presetcat/internal/diff"
	"github.com/starford/presetcat/internal/models"
	"github.com/starford/presetcat/internal/storage"
	"github.com/starford/presetcat/internal/xmp"
)

const (
	// DefaultRootName is the presets folder name that never counts as a group.
	DefaultRootName = "Settings"
	// DefaultBatchSize is the number of files between progress reports.
	DefaultBatchSize = 20
)

// ProgressFunc receives the number of processed files after every chunk.
type ProgressFunc func(done, total int)

// Engine runs extraction and batch edits against a storage.Provider.
type Engine struct {
	store     storage.Provider
	log       *slog.Logger
	rootName  string
	batchSize int
	progress  ProgressFunc
	dryRun    bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger for per-file diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithPresetsRootName sets the folder name excluded from the group fallback.
func WithPresetsRootName(name string) Option {
	return func(e *Engine) {
		if name != "" {
			e.rootName = name
		}
	}
}

// WithBatchSize sets how many files are processed between progress reports.
func WithBatchSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.batchSize = n
		}
	}
}

// WithProgress registers a progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(e *Engine) {
		e.progress = fn
	}
}

// New creates an Engine over store.
func New(store storage.Provider, opts ...Option) *Engine {
	e := &Engine{
		store:     store,
		log:       slog.Default(),
		rootName:  DefaultRootName,
		batchSize: DefaultBatchSize,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Preview returns a copy of e that computes changes and diffs without writing.
func (e *Engine) Preview() *Engine {
	c := *e
	c.dryRun = true
	return &c
}

// DryRun reports whether e is a preview engine.
func (e *Engine) DryRun() bool {
	return e.dryRun
}

// Root returns the presets root of the underlying store.
func (e *Engine) Root() string {
	return e.store.Root()
}

func (e *Engine) resolve(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(e.store.Root(), path)
}

func (e *Engine) rel(path string) string {
	r, err := filepath.Rel(e.store.Root(), path)
	if err != nil {
		return filepath.Base(path)
	}
	return filepath.ToSlash(r)
}

// Scan lists the presets under dir and extracts their fields. Unreadable
// files are kept in the result with the error sentinel in both fields.
func (e *Engine) Scan(ctx context.Context, dir string, recursive bool) ([]models.Preset, error) {
	files, err := e.store.List(dir, recursive)
	if err != nil {
		return nil, err
	}
	out := make([]models.Preset, 0, len(files))
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		rec, err := e.Extract(f.Path)
		if err != nil {
			e.log.Warn("extract failed", "path", f.Path, "error", err)
		}
		rec.DisplayName = filepath.ToSlash(f.Rel)
		rec.UpdatedAt = f.UpdatedAt
		out = append(out, rec)
	}
	e.log.Debug("scan complete", "dir", dir, "recursive", recursive, "files", len(out))
	return out, nil
}

// Extract reads the cluster and group of one file.
func (e *Engine) Extract(path string) (models.Preset, error) {
	abs := e.resolve(path)
	rec := models.Preset{
		Path:        abs,
		Filename:    filepath.Base(abs),
		DisplayName: e.rel(abs),
	}
	data, err := e.store.Read(abs)
	if err != nil {
		rec.Cluster, rec.Group = models.ErrorValue, models.ErrorValue
		return rec, fmt.Errorf("%w: %w", ErrIO, err)
	}
	rec.Checksum = storage.Checksum(data)
	doc, enc, err := xmp.Decode(data)
	if err != nil {
		rec.Cluster, rec.Group = models.ErrorValue, models.ErrorValue
		return rec, fmt.Errorf("engine: extract %s: %w", rec.Filename, err)
	}
	if enc != xmp.EncodingUTF8 {
		e.log.Debug("decoded with fallback encoding", "path", abs, "encoding", enc)
	}
	rec.Cluster = xmp.ExtractCluster(doc)
	rec.Group = xmp.ExtractGroup(doc)
	return rec, nil
}

// Suggest infers cluster and group for every readable record from its folder
// position under base, keeping only records where at least one field would
// change. A field needs updating when its inferred value is non-empty and
// differs from the current one.
func Suggest(records []models.Preset, base string) []models.Suggestion {
	var out []models.Suggestion
	for _, r := range records {
		if r.Unreadable() {
			continue
		}
		cluster, group := xmp.InferClusterGroup(r.Path, base)
		s := models.Suggestion{
			Path:               r.Path,
			CurrentCluster:     r.Cluster,
			CurrentGroup:       r.Group,
			SuggestedCluster:   cluster,
			SuggestedGroup:     group,
			NeedsClusterUpdate: cluster != "" && cluster != r.Cluster,
			NeedsGroupUpdate:   group != "" && group != r.Group,
		}
		if s.Actionable() {
			out = append(out, s)
		}
	}
	return out
}

// UpdateCluster sets the cluster of every file, repairing group tags first.
// An invalid value is rejected before any file is touched.
func (e *Engine) UpdateCluster(ctx context.Context, paths []string, value string) (Result, error) {
	if err := xmp.ValidateCluster(value); err != nil {
		return Result{}, err
	}
	return e.run(ctx, "update cluster", jobsFor(paths, e.clusterEdit(value))), nil
}

// UpdateGroup replaces every group occurrence with one canonical block.
func (e *Engine) UpdateGroup(ctx context.Context, paths []string, value string) (Result, error) {
	if err := xmp.ValidateGroup(value); err != nil {
		return Result{}, err
	}
	return e.run(ctx, "update group", jobsFor(paths, groupEdit(value))), nil
}

// NormalizeGroupTags rewrites each file's group in canonical form using the
// recovered value. Files without a recoverable value are skipped.
func (e *Engine) NormalizeGroupTags(ctx context.Context, paths []string) Result {
	return e.run(ctx, "normalize group tags", jobsFor(paths, e.repairGroup))
}

// ApplySuggestions writes the suggested cluster and group of each
// suggestion, only for the fields that need updating.
func (e *Engine) ApplySuggestions(ctx context.Context, suggestions []models.Suggestion) (cluster, group Result) {
	var clusterJobs, groupJobs []job
	for _, s := range suggestions {
		if s.NeedsClusterUpdate {
			clusterJobs = append(clusterJobs, job{path: s.Path, edit: validated(xmp.ValidateCluster, s.SuggestedCluster, e.clusterEdit(s.SuggestedCluster))})
		}
		if s.NeedsGroupUpdate {
			groupJobs = append(groupJobs, job{path: s.Path, edit: validated(xmp.ValidateGroup, s.SuggestedGroup, groupEdit(s.SuggestedGroup))})
		}
	}
	cluster = e.run(ctx, "apply suggested clusters", clusterJobs)
	group = e.run(ctx, "apply suggested groups", groupJobs)
	return cluster, group
}

// editFunc computes the new content of the document at path.
type editFunc func(path, doc string) (string, error)

type job struct {
	path string
	edit editFunc
}

func jobsFor(paths []string, edit editFunc) []job {
	jobs := make([]job, len(paths))
	for i, p := range paths {
		jobs[i] = job{path: p, edit: edit}
	}
	return jobs
}

func validated(validate func(string) error, value string, edit editFunc) editFunc {
	return func(path, doc string) (string, error) {
		if err := validate(value); err != nil {
			return doc, err
		}
		return edit(path, doc)
	}
}

func (e *Engine) clusterEdit(value string) editFunc {
	return func(path, doc string) (string, error) {
		return e.repairThenWrite(path, doc, func(d string) (string, error) {
			return xmp.SetCluster(d, value)
		})
	}
}

func groupEdit(value string) editFunc {
	return func(_, doc string) (string, error) {
		return xmp.SetGroup(doc, value)
	}
}

// repairThenWrite normalizes an existing group occurrence and then applies
// write to the result. A group that cannot be repaired is left as is and does
// not block the write.
func (e *Engine) repairThenWrite(path, doc string, write func(string) (string, error)) (string, error) {
	repaired := doc
	if xmp.HasGroup(doc) {
		fixed, err := e.repairGroup(path, doc)
		switch {
		case err == nil:
			repaired = fixed
		case errors.Is(err, xmp.ErrNoRecoverableValue), errors.Is(err, xmp.ErrStructureMissing):
			e.log.Debug("group repair skipped", "path", path, "error", err)
		default:
			return doc, err
		}
	}
	return write(repaired)
}

// repairGroup recovers the group value from the document, falling back to
// the parent folder name, and rewrites the group in canonical form.
func (e *Engine) repairGroup(path, doc string) (string, error) {
	value, ok := xmp.RecoverGroup(doc)
	if !ok {
		value = e.folderGroup(path)
	}
	if value == "" {
		return doc, fmt.Errorf("%w: %s", xmp.ErrNoRecoverableValue, filepath.Base(path))
	}
	return xmp.NormalizeGroup(doc, value)
}

// folderGroup returns the parent folder name unless it is the presets root.
func (e *Engine) folderGroup(path string) string {
	dir := filepath.Dir(path)
	name := filepath.Base(dir)
	// The root is skipped whatever it is called: a root opened under another
	// name than rootName must not leak its folder name into groups.
	if dir == e.store.Root() || name == e.rootName || name == "." || name == string(filepath.Separator) {
		return ""
	}
	return name
}

func (e *Engine) run(ctx context.Context, op string, jobs []job) Result {
	res := Result{DryRun: e.dryRun, Outcomes: make([]Outcome, 0, len(jobs))}
	total := len(jobs)
	for i, j := range jobs {
		if err := ctx.Err(); err != nil {
			res.Canceled = true
			e.log.Info("batch canceled", "op", op, "done", i, "total", total)
			break
		}
		res.add(e.apply(j))
		done := i + 1
		if done%e.batchSize == 0 || done == total {
			e.log.Debug("batch progress", "op", op, "done", done, "total", total)
			if e.progress != nil {
				e.progress(done, total)
			}
		}
	}
	if total > 0 {
		e.log.Info(op,
			"attempted", res.Attempted,
			"succeeded", res.Succeeded,
			"changed", res.Changed,
			"skipped", res.Skipped,
			"failed", res.Failed,
			"dry_run", res.DryRun,
		)
	}
	return res
}

// apply runs one read-modify-write cycle. The file is written only when its
// content changed and never in dry-run mode.
func (e *Engine) apply(j job) Outcome {
	path := e.resolve(j.path)
	o := Outcome{Path: path}

	data, err := e.store.Read(path)
	if err != nil {
		return e.fail(o, fmt.Errorf("%w: %w", ErrIO, err))
	}
	doc, err := xmp.DecodeUTF8(data)
	if err != nil {
		return e.fail(o, err)
	}

	updated, err := j.edit(path, doc)
	if err != nil {
		if errors.Is(err, xmp.ErrNoRecoverableValue) {
			e.log.Info("preset skipped", "path", path, "error", err)
			o.Status, o.Err = StatusSkipped, err
			return o
		}
		return e.fail(o, err)
	}
	if updated == doc {
		o.Status = StatusUnchanged
		return o
	}
	if e.dryRun {
		o.Status = StatusUpdated
		o.Diff = diff.Unified(e.rel(path), doc, updated, diff.DefaultContext)
		return o
	}
	if err := e.store.Write(path, []byte(updated)); err != nil {
		return e.fail(o, fmt.Errorf("%w: %w", ErrIO, err))
	}
	e.log.Debug("preset updated", "path", path)
	o.Status = StatusUpdated
	return o
}

func (e *Engine) fail(o Outcome, err error) Outcome {
	e.log.Warn("preset failed", "path", o.Path, "error", err)
	o.Status, o.Err = StatusFailed, err
	return o
}
