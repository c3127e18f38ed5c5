package internal

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/starford/presetcat/internal/engine"
	"github.com/starford/presetcat/internal/index"
	"github.com/starford/presetcat/internal/presetservice"
	"github.com/starford/presetcat/internal/storage"
)

// ErrLocked reports that another presetcat process holds the writer lock.
var ErrLocked = errors.New("another presetcat process is running")

// Stack is the wired preset service together with the resources it owns.
type Stack struct {
	Config  *Config
	Logger  *slog.Logger
	Engine  *engine.Engine
	Service *presetservice.Service

	db   *index.DB
	lock *flock.Flock
}

// Open builds the storage, catalog, engine and service from the configured
// options and takes the single-writer lock next to the catalog database.
// events may be nil.
func Open(events presetservice.Events, opts ...Option) (*Stack, error) {
	app := newApplication(opts)
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	cfg := app.config
	logger := app.logger
	if logger == nil {
		logger = slog.Default()
	}

	store, err := storage.NewFS(cfg.Presets.Root)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	if dir := filepath.Dir(cfg.SQLite.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create catalog dir: %w", err)
		}
	}
	lock := flock.New(cfg.SQLite.LockPath())
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: lock %s is held", ErrLocked, cfg.SQLite.LockPath())
	}

	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("init index: %w", err)
	}

	engOpts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithPresetsRootName(cfg.Presets.RootName),
		engine.WithBatchSize(cfg.Presets.BatchSize),
	}
	if app.progress != nil {
		engOpts = append(engOpts, engine.WithProgress(app.progress))
	}
	eng := engine.New(store, engOpts...)

	svcOpts := []presetservice.Option{
		presetservice.WithLogger(logger),
		presetservice.WithRecursive(cfg.Presets.Recursive),
		presetservice.WithBackupDir(cfg.Backup.DirOrDefault()),
	}
	if events != nil {
		svcOpts = append(svcOpts, presetservice.WithEvents(events))
	}

	return &Stack{
		Config:  cfg,
		Logger:  logger,
		Engine:  eng,
		Service: presetservice.NewService(eng, store, db, svcOpts...),
		db:      db,
		lock:    lock,
	}, nil
}

// Close releases the catalog and the writer lock.
func (s *Stack) Close() error {
	err := s.db.Close()
	if uerr := s.lock.Unlock(); uerr != nil && err == nil {
		err = uerr
	}
	return err
}
