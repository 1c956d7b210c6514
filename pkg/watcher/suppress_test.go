package watcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWatcher(t *testing.T) *Watcher {
	t.Helper()
	w, err := New(nil, nil, nil, nil, Options{
		DeployRoot: t.TempDir(),
		Debounce:   10 * time.Millisecond,
	})
	require.NoError(t, err)
	return w
}

func TestSuppressSlug_BlocksIsSuppressed(t *testing.T) {
	w := newTestWatcher(t)
	assert.False(t, w.isSuppressed("pdf-tools"))
	w.SuppressSlug("pdf-tools")
	assert.True(t, w.isSuppressed("pdf-tools"))
}

func TestSuppressSlug_CancelsPendingDebounce(t *testing.T) {
	w := newTestWatcher(t)
	fired := false
	w.mu.Lock()
	w.debounceTimers["pdf-tools"] = time.AfterFunc(time.Hour, func() { fired = true })
	w.mu.Unlock()

	w.SuppressSlug("pdf-tools")

	w.mu.Lock()
	_, stillPending := w.debounceTimers["pdf-tools"]
	w.mu.Unlock()
	assert.False(t, stillPending)
	assert.False(t, fired)
}

func TestUnsuppressSlug_ReleasesAfterDrainWindow(t *testing.T) {
	w := newTestWatcher(t)
	w.SuppressSlug("pdf-tools")
	require.True(t, w.isSuppressed("pdf-tools"))

	w.UnsuppressSlug("pdf-tools")
	assert.True(t, w.isSuppressed("pdf-tools"), "should still be suppressed immediately after Unsuppress is called")

	assert.Eventually(t, func() bool {
		return !w.isSuppressed("pdf-tools")
	}, time.Second, 5*time.Millisecond)
}
