package config

import (
	"context"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher reloads Config from disk whenever its backing YAML file
// changes and passes the reloaded Config to its onReload callback; it
// does not apply the new values to running services itself (gofriqd's
// callback only logs the reload). Grounded on the teacher's
// MangleWatcher (fsnotify + debounce-then-act loop), simplified to a
// single watched file instead of a directory of many.
type Watcher struct {
	mu       sync.Mutex
	path     string
	watcher  *fsnotify.Watcher
	onReload func(*Config)
	log      *zap.SugaredLogger
	debounce time.Duration
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewWatcher returns a Watcher for path. onReload is called with the
// freshly validated Config after each debounced change; a reload that
// fails Validate is logged and discarded, leaving the last-good Config
// in effect rather than crashing the process over a bad edit.
func NewWatcher(path string, onReload func(*Config), log *zap.SugaredLogger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(path); err != nil {
		_ = fw.Close()
		return nil, err
	}
	return &Watcher{
		path:     path,
		watcher:  fw,
		onReload: onReload,
		log:      log,
		debounce: 500 * time.Millisecond,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Start begins watching in a background goroutine. Non-blocking.
func (w *Watcher) Start(ctx context.Context) {
	go w.run(ctx)
}

// Stop halts the watcher and closes the underlying fsnotify handle.
func (w *Watcher) Stop() {
	close(w.stopCh)
	<-w.doneCh
	_ = w.watcher.Close()
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	var pending bool
	var last time.Time
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
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				pending = true
				last = time.Now()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			if w.log != nil {
				w.log.Warnw("config watcher error", "error", err)
			}
		case <-ticker.C:
			if pending && time.Since(last) >= w.debounce {
				pending = false
				w.reload()
			}
		}
	}
}

func (w *Watcher) reload() {
	w.mu.Lock()
	defer w.mu.Unlock()

	cfg, err := Load(w.path)
	if err != nil {
		if w.log != nil {
			w.log.Warnw("config reload failed, keeping previous config", "path", w.path, "error", err)
		}
		return
	}
	if w.log != nil {
		w.log.Infow("config reloaded", "path", w.path)
	}
	w.onReload(cfg)
}
