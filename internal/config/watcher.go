package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads the config file when it changes on disk.
// It watches the parent directory so editors that replace the file
// (write to temp + rename) are still observed.
type Watcher struct {
	path        string
	watcher     *fsnotify.Watcher
	debounceDur time.Duration
	onChange    func(*Config)
	onError     func(error)

	mu      sync.Mutex
	timer   *time.Timer
	done    chan struct{}
	stopped bool
	wg      sync.WaitGroup
}

// NewWatcher creates a watcher for the config file at path.
func NewWatcher(path string, onChange func(*Config), onError func(error)) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	dir := filepath.Dir(path)
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	if onError == nil {
		onError = func(error) {}
	}

	return &Watcher{
		path:        filepath.Clean(path),
		watcher:     w,
		debounceDur: 200 * time.Millisecond,
		onChange:    onChange,
		onError:     onError,
		done:        make(chan struct{}),
	}, nil
}

// Start begins processing file events until ctx is cancelled or Close is called.
func (w *Watcher) Start(ctx context.Context) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case <-w.done:
				return
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				w.handleEvent(event)
			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				w.onError(err)
			}
		}
	}()
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != w.path {
		return
	}
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounceDur, w.reload)
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		w.onError(err)
		return
	}
	if err := cfg.Validate(); err != nil {
		w.onError(err)
		return
	}
	if w.onChange != nil {
		w.onChange(cfg)
	}
}

// Close stops the watcher and waits for the event loop to exit.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.stopped = true
	if w.timer != nil {
		w.timer.Stop()
	}
	close(w.done)
	w.mu.Unlock()

	err := w.watcher.Close()
	w.wg.Wait()
	return err
}
