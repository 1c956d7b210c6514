package watcher

import "time"

// SuppressSlug must be called before any lifecycle operation (install,
// uninstall, reinstall, quarantine move, backup-authored write) performs
// writes inside a skill's deployed directory. While suppressed, filesystem
// notifications for slug are ignored and any pending debounce timer for it
// is cancelled.
func (w *Watcher) SuppressSlug(slug string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.suppressed[slug] = true
	if t, ok := w.debounceTimers[slug]; ok {
		t.Stop()
		delete(w.debounceTimers, slug)
	}
}

// UnsuppressSlug releases suppression for slug after debounce*2, long
// enough to drain any filesystem notifications already in flight from the
// writes SuppressSlug was guarding.
func (w *Watcher) UnsuppressSlug(slug string) {
	drain := w.debounce * 2
	time.AfterFunc(drain, func() {
		w.mu.Lock()
		delete(w.suppressed, slug)
		w.mu.Unlock()
	})
}

func (w *Watcher) isSuppressed(slug string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.suppressed[slug]
}
