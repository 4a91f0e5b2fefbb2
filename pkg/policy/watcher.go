package policy

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher re-synchronizes a policies file whenever it changes on disk.
// The parent directory is watched rather than the file itself so that
// editors which save by renaming a temp file are still noticed.
type Watcher struct {
	source   *Source
	watcher  *fsnotify.Watcher
	debounce *Debouncer
	logger   *slog.Logger

	// OnSync is called after every debounced sync attempt. Optional.
	OnSync func(*SyncResult, error)

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewWatcher creates a watcher for the source's file. A debounce of zero
// defaults to 100ms.
func NewWatcher(source *Source, debounce time.Duration, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if debounce <= 0 {
		debounce = 100 * time.Millisecond
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &Watcher{
		source:   source,
		watcher:  fsw,
		debounce: NewDebouncer(debounce),
		logger:   logger.With("component", "policy.watcher", "path", source.Path()),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Watch blocks until ctx is cancelled or Stop is called.
func (w *Watcher) Watch(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("watcher already running")
	}
	w.running = true
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		close(w.doneCh)
	}()

	target, err := filepath.Abs(w.source.Path())
	if err != nil {
		return fmt.Errorf("failed to resolve policy path: %w", err)
	}
	if err := w.watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("failed to watch path: %w", err)
	}

	w.logger.Info("policy watcher started")

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("policy watcher stopped (context cancelled)")
			return nil

		case <-w.stopCh:
			w.logger.Info("policy watcher stopped")
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if !shouldProcessEvent(event, target) {
				continue
			}

			w.logger.Debug("policy file event", "op", event.Op.String())

			w.debounce.Trigger(func() {
				result, err := w.source.Sync(ctx)
				if err != nil {
					w.logger.Error("policy sync failed", "error", err)
				}
				if w.OnSync != nil {
					w.OnSync(result, err)
				}
			})

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			w.logger.Error("policy watcher error", "error", err)
		}
	}
}

// Stop stops the watcher and releases the fsnotify handle.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	running := w.running
	w.mu.Unlock()

	if running {
		close(w.stopCh)
		<-w.doneCh
	}

	w.debounce.Stop()

	if err := w.watcher.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}
	return nil
}

// shouldProcessEvent keeps write, create and rename events for the target file.
func shouldProcessEvent(event fsnotify.Event, target string) bool {
	if event.Op&fsnotify.Chmod == fsnotify.Chmod {
		return false
	}
	name, err := filepath.Abs(event.Name)
	if err != nil {
		return false
	}
	return name == target
}

// Debouncer collects rapid events and runs the last callback once the
// interval passes without a new event.
type Debouncer struct {
	interval time.Duration
	timer    *time.Timer
	mu       sync.Mutex
	callback func()
	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewDebouncer creates a new debouncer.
func NewDebouncer(interval time.Duration) *Debouncer {
	return &Debouncer{
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Trigger schedules callback, replacing any pending one.
func (d *Debouncer) Trigger(callback func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.callback = callback
	if d.timer != nil {
		d.timer.Stop()
	}

	d.timer = time.AfterFunc(d.interval, func() {
		select {
		case <-d.stopCh:
			return
		default:
		}
		d.mu.Lock()
		cb := d.callback
		d.mu.Unlock()
		if cb != nil {
			cb()
		}
	})
}

// Stop cancels any pending callback. It is safe to call more than once.
func (d *Debouncer) Stop() {
	d.stopOnce.Do(func() { close(d.stopCh) })

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.callback = nil
}
