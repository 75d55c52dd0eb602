// Package watcher reports debounced batches of changed files under a
// directory tree.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the tree must stay quiet before a batch is
// delivered.
const DefaultDebounce = 200 * time.Millisecond

var skipDirs = map[string]bool{
	".git":         true,
	".gradle":      true,
	".idea":        true,
	".lintfix":     true,
	"node_modules": true,
}

// Watcher watches root recursively. Only files accepted by Match are
// reported; Match receives the slash-separated path relative to root.
type Watcher struct {
	root     string
	match    func(rel string) bool
	debounce time.Duration
	fsw      *fsnotify.Watcher
	logger   *slog.Logger
}

// New creates a watcher. A zero debounce uses DefaultDebounce.
func New(root string, match func(rel string) bool, debounce time.Duration, logger *slog.Logger) (*Watcher, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	return &Watcher{root: abs, match: match, debounce: debounce, fsw: fsw, logger: logger}, nil
}

// Run blocks until ctx is done. Each batch of changed files is passed to
// onChange on its own goroutine, so a slow handler never delays the next
// batch.
func (w *Watcher) Run(ctx context.Context, onChange func(ctx context.Context, paths []string)) error {
	defer w.fsw.Close()

	if _, err := w.addTree(w.root); err != nil {
		return err
	}
	w.logger.Debug("watching", "root", w.root)

	pending := make(map[string]bool)
	timer := time.NewTimer(w.debounce)
	timer.Stop()
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			for _, p := range w.handle(ev) {
				pending[p] = true
			}
			if len(pending) > 0 {
				timer.Reset(w.debounce)
				fire = timer.C
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "error", err)

		case <-fire:
			fire = nil
			batch := make([]string, 0, len(pending))
			for p := range pending {
				batch = append(batch, p)
			}
			sort.Strings(batch)
			clear(pending)
			go onChange(ctx, batch)
		}
	}
}

// handle returns the matching files an event touched.
func (w *Watcher) handle(ev fsnotify.Event) []string {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Rename) {
		return nil
	}
	info, err := os.Stat(ev.Name)
	if err != nil {
		// Renamed away or already deleted.
		return nil
	}
	if info.IsDir() {
		if !ev.Has(fsnotify.Create) {
			return nil
		}
		files, err := w.addTree(ev.Name)
		if err != nil {
			w.logger.Warn("watching new directory", "path", ev.Name, "error", err)
		}
		return files
	}
	if w.accept(ev.Name) {
		return []string{ev.Name}
	}
	return nil
}

// addTree watches dir and its subdirectories and returns the matching
// files already present, which covers files created before the watch
// on a new directory was in place.
func (w *Watcher) addTree(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			if dir != w.root && w.accept(p) {
				files = append(files, p)
			}
			return nil
		}
		if p != w.root && skipDirs[d.Name()] {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(p); err != nil {
			return fmt.Errorf("watching %s: %w", p, err)
		}
		return nil
	})
	return files, err
}

func (w *Watcher) accept(path string) bool {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return false
	}
	return w.match == nil || w.match(filepath.ToSlash(rel))
}
