// Package watcher reports batches of changed Lua files below a root.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/phobologic/astsync/internal/lang"
)

// DefaultDelay is the quiet period used when none is configured.
const DefaultDelay = 500 * time.Millisecond

// ChangeEvent is one file system notification.
type ChangeEvent struct {
	Path      string
	Operation string
	Timestamp time.Time
}

// Handler receives the sorted paths changed during one quiet period.
type Handler func(paths []string) error

// Watcher watches a directory tree for Lua file changes.
type Watcher struct {
	watcher     *fsnotify.Watcher
	watchedDirs map[string]bool
	debouncer   *debouncer
	logger      *slog.Logger
}

// New returns a watcher that batches events separated by less than delay.
func New(delay time.Duration, logger *slog.Logger) (*Watcher, error) {
	if delay <= 0 {
		delay = DefaultDelay
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	return &Watcher{
		watcher:     fsw,
		watchedDirs: make(map[string]bool),
		debouncer:   newDebouncer(delay, logger),
		logger:      logger,
	}, nil
}

// Watch adds root and its subdirectories and delivers change batches to
// handler until ctx is done.
func (w *Watcher) Watch(ctx context.Context, root string, handler Handler) error {
	if err := w.addPath(root); err != nil {
		return fmt.Errorf("failed to watch path %s: %w", root, err)
	}
	w.logger.Info("watching", "root", root, "dirs", len(w.watchedDirs))

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event, handler)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("file watcher error", "error", err)
		}
	}
}

func (w *Watcher) addPath(path string) error {
	return filepath.WalkDir(path, func(walkPath string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if walkPath != path && shouldSkipDir(walkPath) {
			return filepath.SkipDir
		}
		if !w.watchedDirs[walkPath] {
			if err := w.watcher.Add(walkPath); err != nil {
				return fmt.Errorf("failed to add directory %s to watcher: %w", walkPath, err)
			}
			w.watchedDirs[walkPath] = true
		}
		return nil
	})
}

func (w *Watcher) handleEvent(event fsnotify.Event, handler Handler) {
	// New directories need their own watch.
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addPath(event.Name); err != nil {
				w.logger.Warn("cannot watch new directory", "path", event.Name, "error", err)
			}
			return
		}
	}
	if !isLuaFile(event.Name) || shouldSkipFile(event.Name) {
		return
	}
	w.debouncer.add(ChangeEvent{
		Path:      event.Name,
		Operation: opString(event.Op),
		Timestamp: time.Now(),
	}, handler)
}

func isLuaFile(path string) bool {
	return lang.ForPath(path) == lang.Lua
}

func shouldSkipDir(path string) bool {
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") {
		return true
	}
	switch name {
	case "lua_modules", "node_modules", "build", "dist", "tmp":
		return true
	}
	return false
}

func shouldSkipFile(path string) bool {
	name := filepath.Base(path)
	return strings.HasPrefix(name, ".") ||
		strings.HasSuffix(name, "~") ||
		strings.HasSuffix(name, ".swp") ||
		strings.HasSuffix(name, ".tmp")
}

func opString(op fsnotify.Op) string {
	switch {
	case op.Has(fsnotify.Create):
		return "CREATE"
	case op.Has(fsnotify.Write):
		return "WRITE"
	case op.Has(fsnotify.Remove):
		return "REMOVE"
	case op.Has(fsnotify.Rename):
		return "RENAME"
	case op.Has(fsnotify.Chmod):
		return "CHMOD"
	default:
		return "UNKNOWN"
	}
}

// Close stops the watcher. Pending batches are dropped.
func (w *Watcher) Close() error {
	w.debouncer.stop()
	return w.watcher.Close()
}

// WatchedDirs returns the number of directories being watched.
func (w *Watcher) WatchedDirs() int {
	return len(w.watchedDirs)
}
