package schema

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"caseforge/internal/logging"
)

// Watcher re-indexes the master schema file when it changes on disk.
// Edits are debounced so that editors writing in several syscalls trigger
// a single reload. On a parse failure the previous index stays installed.
type Watcher struct {
	mu          sync.Mutex
	watcher     *fsnotify.Watcher
	schemaFile  string
	onReload    func(*Index)
	debounceMap map[string]time.Time
	debounceDur time.Duration
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool

	stats WatcherStats
}

// WatcherStats tracks watcher activity for tests and debugging.
type WatcherStats struct {
	EventsSeen     int
	Reloads        int
	ReloadFailures int
	LastEventTime  time.Time
}

// NewWatcher creates a watcher over the given schema file. onReload is
// called with each successfully rebuilt index; installing it is the
// caller's business (the server swaps it under its own lock).
func NewWatcher(schemaFile string, onReload func(*Index)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		watcher:     fsw,
		schemaFile:  schemaFile,
		onReload:    onReload,
		debounceMap: make(map[string]time.Time),
		debounceDur: 500 * time.Millisecond,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// Start begins watching. Non-blocking; the event loop runs in a goroutine.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	// Watch the directory, not the file: most editors replace the file
	// via rename, which drops a direct file watch.
	dir := filepath.Dir(w.schemaFile)
	if err := w.watcher.Add(dir); err != nil {
		return err
	}
	logging.Watcher("surveillance du schema maître: %s", w.schemaFile)

	go w.run(ctx)
	return nil
}

// Stop stops the watcher and waits for the event loop to drain.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh
	if err := w.watcher.Close(); err != nil {
		logging.Get(logging.CategoryWatcher).Error("fermeture du watcher: %v", err)
	}
}

// Stats returns a copy of the activity counters.
func (w *Watcher) Stats() WatcherStats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.schemaFile) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.mu.Lock()
			w.stats.EventsSeen++
			w.stats.LastEventTime = time.Now()
			w.debounceMap[event.Name] = time.Now()
			w.mu.Unlock()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Get(logging.CategoryWatcher).Warn("erreur fsnotify: %v", err)
		case <-ticker.C:
			w.flushSettled()
		}
	}
}

// flushSettled reloads the schema once the last event is older than the
// debounce window.
func (w *Watcher) flushSettled() {
	w.mu.Lock()
	pending := false
	for name, at := range w.debounceMap {
		if time.Since(at) >= w.debounceDur {
			delete(w.debounceMap, name)
			pending = true
		}
	}
	w.mu.Unlock()
	if !pending {
		return
	}

	idx, err := Load(w.schemaFile)
	if err != nil {
		w.mu.Lock()
		w.stats.ReloadFailures++
		w.mu.Unlock()
		logging.Get(logging.CategoryWatcher).Error("rechargement du schema refusé, index précédent conservé: %v", err)
		return
	}
	w.mu.Lock()
	w.stats.Reloads++
	w.mu.Unlock()
	logging.Watcher("schema maître rechargé: %d feuilles", idx.LeafCount())
	if w.onReload != nil {
		w.onReload(idx)
	}
}
