// Package watch keeps derived views fresh while other processes append to
// the event logs. It watches every stream's status directory and, after a
// short debounce, rematerializes the snapshot (and legacy views, phase
// permitting) for each stream whose log changed.
package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Priivacy-ai/spec-kitty-sub010/internal/emit"
	"github.com/Priivacy-ai/spec-kitty-sub010/internal/logging"
	"github.com/Priivacy-ai/spec-kitty-sub010/internal/store"
)

// defaultDebounce collects the burst of events an append (or a git checkout
// touching many logs) produces before rematerializing once.
const defaultDebounce = 200 * time.Millisecond

// Watcher rematerializes streams as their logs change on disk.
type Watcher struct {
	root     string
	emitter  *emit.Emitter
	log      *logging.Logger
	watcher  *fsnotify.Watcher
	debounce time.Duration

	mu      sync.Mutex
	pending map[string]bool // stream ids with unprocessed log changes
}

// New creates a Watcher over the repository's status tree. The status
// directory does not need to exist yet; stream directories created later are
// picked up as they appear.
func New(root string, emitter *emit.Emitter, log *logging.Logger) (*Watcher, error) {
	if log == nil {
		log = logging.NopLogger()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		root:     root,
		emitter:  emitter,
		log:      log,
		watcher:  fsw,
		debounce: defaultDebounce,
		pending:  make(map[string]bool),
	}, nil
}

// Run watches until ctx is canceled. On entry every existing stream is
// materialized once so the derived views start fresh.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	statusDir := filepath.Join(w.root, filepath.FromSlash(store.StatusDirName))
	if err := os.MkdirAll(statusDir, 0755); err != nil {
		return err
	}
	if err := w.watcher.Add(statusDir); err != nil {
		return err
	}

	streams, err := store.ListStreams(w.root)
	if err != nil {
		return err
	}
	for _, stream := range streams {
		_ = w.watcher.Add(store.StreamDir(w.root, stream))
		w.materialize(stream)
	}

	debounceTimer := time.NewTimer(0)
	if !debounceTimer.Stop() {
		<-debounceTimer.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if w.handleEvent(ev) {
				debounceTimer.Reset(w.debounce)
			}

		case <-debounceTimer.C:
			w.flush()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watch error", "error", err)
		}
	}
}

// handleEvent records a pending stream for a relevant event and reports
// whether the debounce timer should restart.
func (w *Watcher) handleEvent(ev fsnotify.Event) bool {
	if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return false
	}

	// A new directory directly under the status root is a new stream. Its
	// log may have been written before the watch was in place, so queue a
	// materialization rather than waiting for the next write.
	if ev.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			_ = w.watcher.Add(ev.Name)
			w.mu.Lock()
			w.pending[filepath.Base(ev.Name)] = true
			w.mu.Unlock()
			return true
		}
	}

	if filepath.Base(ev.Name) != store.LogFileName {
		return false
	}
	stream := filepath.Base(filepath.Dir(ev.Name))

	w.mu.Lock()
	w.pending[stream] = true
	w.mu.Unlock()
	return true
}

// flush materializes every stream that changed since the last flush.
func (w *Watcher) flush() {
	w.mu.Lock()
	pending := w.pending
	w.pending = make(map[string]bool)
	w.mu.Unlock()

	for stream := range pending {
		w.materialize(stream)
	}
}

func (w *Watcher) materialize(stream string) {
	result := w.emitter.Materialize(stream)
	log := w.log.WithWorkStream(stream)
	if !result.OK {
		for _, err := range result.Errs {
			log.Error("rematerialization failed", "error", err)
		}
		return
	}
	for _, warning := range result.Warnings {
		log.Warn(warning)
	}
	log.Debug("stream rematerialized")
}
