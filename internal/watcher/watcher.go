// Package watcher keeps the index and entity configuration of a vault in
// step with the files on disk.
//
// It is used by `mondo watch` to refresh a related panel live.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/marcopeg/mondo-sub000/internal/index"
	"github.com/marcopeg/mondo-sub000/internal/paths"
	"github.com/marcopeg/mondo-sub000/internal/vault"
)

// Watcher monitors a vault directory and reindexes changed notes.
type Watcher struct {
	store         *vault.Store
	db            *index.Database
	entitiesFile  string
	debounceDelay time.Duration
	log           *zap.Logger

	fsWatcher *fsnotify.Watcher
	pending   map[string]pendingChange
	mu        sync.Mutex

	onChange         func(ids []string)
	onEntitiesChange func()
}

type pendingChange struct {
	at      time.Time
	removed bool
}

// Config holds configuration options for the Watcher.
type Config struct {
	Store    *vault.Store
	Database *index.Database

	// EntitiesFile is the absolute path of the entity configuration.
	// Changes to it call OnEntitiesChange.
	EntitiesFile string

	DebounceDelay time.Duration // Default: 100ms
	Logger        *zap.Logger

	// OnChange receives the IDs reindexed or removed in one debounce batch.
	OnChange         func(ids []string)
	OnEntitiesChange func()
}

// New creates a new Watcher with the given configuration.
func New(cfg Config) (*Watcher, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.Database == nil {
		return nil, fmt.Errorf("database is required")
	}

	debounce := cfg.DebounceDelay
	if debounce == 0 {
		debounce = 100 * time.Millisecond
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return &Watcher{
		store:            cfg.Store,
		db:               cfg.Database,
		entitiesFile:     cfg.EntitiesFile,
		debounceDelay:    debounce,
		log:              log.Named("watcher"),
		pending:          make(map[string]pendingChange),
		onChange:         cfg.OnChange,
		onEntitiesChange: cfg.OnEntitiesChange,
	}, nil
}

// Start begins watching the vault for file changes.
// It blocks until the context is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	var err error
	w.fsWatcher, err = fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer w.fsWatcher.Close()

	if err := w.addWatchRecursive(w.store.Root()); err != nil {
		return fmt.Errorf("failed to watch vault: %w", err)
	}
	if w.entitiesFile != "" {
		if err := w.fsWatcher.Add(filepath.Dir(w.entitiesFile)); err != nil {
			w.log.Debug("not watching entity configuration", zap.Error(err))
		}
	}
	w.log.Debug("watching vault", zap.String("path", w.store.Root()))

	go w.processDebounced(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watcher error", zap.Error(err))
		}
	}
}

// ReindexFile reads one note and writes it to the index.
func (w *Watcher) ReindexFile(ctx context.Context, id string) error {
	full, err := paths.ToFile(w.store.Root(), id)
	if err != nil {
		return err
	}
	stat, err := os.Stat(full)
	if err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}
	n, err := w.store.ReadNote(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to read note: %w", err)
	}
	if err := w.db.Upsert(ctx, index.Entry{Note: n, Mtime: stat.ModTime()}); err != nil {
		return fmt.Errorf("failed to index note: %w", err)
	}
	return nil
}

// handleEvent processes a single filesystem event.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	path := event.Name

	if w.entitiesFile != "" && filepath.Clean(path) == filepath.Clean(w.entitiesFile) {
		w.schedule(w.entitiesFile, false)
		return
	}

	id, err := paths.ToID(w.store.Root(), path)
	if err != nil || !w.store.IsNoteFile(id) {
		if event.Op&fsnotify.Create != 0 {
			if info, err := os.Stat(path); err == nil && info.IsDir() {
				_ = w.addWatchRecursive(path)
			}
		}
		return
	}

	w.log.Debug("event", zap.Stringer("op", event.Op), zap.String("id", id))

	switch {
	case event.Op&fsnotify.Write != 0, event.Op&fsnotify.Create != 0:
		w.schedule(id, false)
	case event.Op&fsnotify.Remove != 0, event.Op&fsnotify.Rename != 0:
		w.schedule(id, true)
	}
}

// schedule queues a change; a later event for the same key restarts its
// debounce delay.
func (w *Watcher) schedule(key string, removed bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending[key] = pendingChange{at: time.Now(), removed: removed}
}

func (w *Watcher) processDebounced(ctx context.Context) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.processPending(ctx, time.Now())
		}
	}
}

// processPending applies changes older than the debounce delay.
func (w *Watcher) processPending(ctx context.Context, now time.Time) {
	w.mu.Lock()
	ready := map[string]pendingChange{}
	for key, change := range w.pending {
		if now.Sub(change.at) >= w.debounceDelay {
			ready[key] = change
			delete(w.pending, key)
		}
	}
	w.mu.Unlock()
	if len(ready) == 0 {
		return
	}

	keys := make([]string, 0, len(ready))
	for key := range ready {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var changed []string
	for _, key := range keys {
		if w.entitiesFile != "" && key == w.entitiesFile {
			if w.onEntitiesChange != nil {
				w.onEntitiesChange()
			}
			continue
		}
		if err := w.apply(ctx, key, ready[key].removed); err != nil {
			w.log.Warn("failed to reindex", zap.String("id", key), zap.Error(err))
			continue
		}
		changed = append(changed, key)
	}
	if len(changed) > 0 && w.onChange != nil {
		w.onChange(changed)
	}
}

func (w *Watcher) apply(ctx context.Context, id string, removed bool) error {
	if !removed {
		err := w.ReindexFile(ctx, id)
		if err == nil || !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	return w.db.Delete(ctx, id)
}

// addWatchRecursive adds a directory and all subdirectories to the watcher.
func (w *Watcher) addWatchRecursive(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			return nil
		}
		if path != w.store.Root() && vault.SkipDir(info.Name()) {
			return filepath.SkipDir
		}
		if err := w.fsWatcher.Add(path); err != nil {
			w.log.Debug("failed to watch", zap.String("path", path), zap.Error(err))
		}
		return nil
	})
}
