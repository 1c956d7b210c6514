package watcher

import (
	"context"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/agenshield/skillcore/pkg/events"
)

// startFsNotifier sets up a recursive filesystem watch on the deploy root
// (fsnotify is not natively recursive, so every existing and subsequently
// created directory under the root gets its own watch) and begins
// processing notifications in a background goroutine.
func (w *Watcher) startFsNotifier(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	if err := addRecursiveWatches(fsw, w.deployRoot); err != nil {
		fsw.Close()
		return err
	}

	w.mu.Lock()
	w.fsWatcher = fsw
	w.mu.Unlock()

	w.wg.Add(1)
	go w.fsNotifyLoop(ctx, fsw)

	return nil
}

func addRecursiveWatches(fsw *fsnotify.Watcher, root string) error {
	return filepath.Walk(root, func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info != nil && info.IsDir() {
			_ = fsw.Add(path)
		}
		return nil
	})
}

func (w *Watcher) fsNotifyLoop(ctx context.Context, fsw *fsnotify.Watcher) {
	defer w.wg.Done()

	for {
		select {
		case <-w.stopCh:
			return
		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			if event.Op&fsnotify.Create == fsnotify.Create {
				_ = fsw.Add(event.Name)
			}
			rel, err := filepath.Rel(w.deployRoot, event.Name)
			if err != nil {
				continue
			}
			slug := slugFromRelPath(rel)
			if slug == "" || slug == "." {
				continue
			}
			w.scheduleDebouncedEvaluation(ctx, slug)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.handleFsNotifierError(ctx, err)
			return
		}
	}
}

// scheduleDebouncedEvaluation coalesces all notifications for slug within
// the debounce window into a single handleFsChange call.
func (w *Watcher) scheduleDebouncedEvaluation(ctx context.Context, slug string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.suppressed[slug] {
		return
	}

	if t, ok := w.debounceTimers[slug]; ok {
		t.Stop()
	}
	w.debounceTimers[slug] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.debounceTimers, slug)
		w.mu.Unlock()
		w.handleFsChange(ctx, slug)
	})
}

// handleFsNotifierError logs the failure, tears down the current notifier,
// marks the watcher degraded, and schedules a restart after fsRestartDelay.
func (w *Watcher) handleFsNotifierError(ctx context.Context, fsErr error) {
	w.publish(&events.Event{Kind: events.KindWatcherError, Error: fsErr.Error()})

	w.mu.Lock()
	if w.fsWatcher != nil {
		w.fsWatcher.Close()
		w.fsWatcher = nil
	}
	w.state = StateDegraded
	w.mu.Unlock()

	time.AfterFunc(fsRestartDelay, func() {
		w.mu.Lock()
		stopped := false
		select {
		case <-w.stopCh:
			stopped = true
		default:
		}
		w.mu.Unlock()
		if stopped {
			return
		}
		if err := w.startFsNotifier(ctx); err != nil {
			w.publish(&events.Event{Kind: events.KindWatcherError, Error: err.Error()})
			return
		}
		w.mu.Lock()
		w.state = StateWatching
		w.mu.Unlock()
	})
}
