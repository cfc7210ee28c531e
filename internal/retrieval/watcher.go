// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package retrieval

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// =============================================================================
// FILE WATCHER
// =============================================================================

// ChangeFunc is called with a watched file's path and tags after it changes.
type ChangeFunc func(ctx context.Context, path string, tags []string) error

// Watcher re-runs a callback when watched files are written. Parent
// directories are watched rather than the files themselves so editors that
// save by rename keep being tracked.
type Watcher struct {
	watcher  *fsnotify.Watcher
	onChange ChangeFunc
	debounce time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	files   map[string][]string  // path -> tags
	dirs    map[string]int       // dir -> watched file count
	pending map[string]time.Time // path -> last change time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWatcher creates a watcher and starts its event goroutines.
func NewWatcher(debounce time.Duration, onChange ChangeFunc, logger *zap.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &Watcher{
		watcher:  fsw,
		onChange: onChange,
		debounce: debounce,
		logger:   logger,
		files:    make(map[string][]string),
		dirs:     make(map[string]int),
		pending:  make(map[string]time.Time),
		ctx:      ctx,
		cancel:   cancel,
	}

	w.wg.Add(2)
	go w.processEvents()
	go w.processPending()
	return w, nil
}

// Add starts watching path; tags are passed to the callback.
func (w *Watcher) Add(path string, tags []string) error {
	path = filepath.Clean(path)
	dir := filepath.Dir(path)

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.files[path]; !ok {
		if w.dirs[dir] == 0 {
			if err := w.watcher.Add(dir); err != nil {
				return fmt.Errorf("failed to watch %s: %w", dir, err)
			}
		}
		w.dirs[dir]++
	}
	w.files[path] = append([]string(nil), tags...)
	return nil
}

// Remove stops watching path. It reports whether path was watched.
func (w *Watcher) Remove(path string) bool {
	path = filepath.Clean(path)
	dir := filepath.Dir(path)

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.files[path]; !ok {
		return false
	}
	delete(w.files, path)
	delete(w.pending, path)
	w.dirs[dir]--
	if w.dirs[dir] <= 0 {
		delete(w.dirs, dir)
		_ = w.watcher.Remove(dir)
	}
	return true
}

// Watched returns the watched paths, sorted.
func (w *Watcher) Watched() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make([]string, 0, len(w.files))
	for p := range w.files {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Close stops watching and waits for the event goroutines to exit.
func (w *Watcher) Close() error {
	w.cancel()
	err := w.watcher.Close()
	w.wg.Wait()
	return err
}

// processEvents records writes to watched files.
func (w *Watcher) processEvents() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			path := filepath.Clean(event.Name)
			w.mu.Lock()
			if _, watched := w.files[path]; watched {
				w.pending[path] = time.Now()
			}
			w.mu.Unlock()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("file watcher error", zap.Error(err))
		}
	}
}

// processPending runs the callback once a file has been quiet for the
// debounce period.
func (w *Watcher) processPending() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.debounce / 4)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return

		case <-ticker.C:
			now := time.Now()
			type job struct {
				path string
				tags []string
			}
			var jobs []job

			w.mu.Lock()
			for path, changed := range w.pending {
				if now.Sub(changed) >= w.debounce {
					jobs = append(jobs, job{path: path, tags: w.files[path]})
					delete(w.pending, path)
				}
			}
			w.mu.Unlock()

			for _, j := range jobs {
				if err := w.onChange(w.ctx, j.path, j.tags); err != nil {
					w.logger.Warn("re-embedding changed file failed", zap.String("path", j.path), zap.Error(err))
					continue
				}
				w.logger.Info("re-embedded changed file", zap.String("path", j.path))
			}
		}
	}
}
