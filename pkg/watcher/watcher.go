// Package watcher implements the Integrity Watcher (spec §4.7): an
// event-driven and poll-driven monitor that verifies every active
// installation's on-disk bytes against its registered manifest, quarantines
// unknown drops, and recovers tampered installations per policy.
package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"github.com/agenshield/skillcore/pkg/backup"
	"github.com/agenshield/skillcore/pkg/deploy"
	"github.com/agenshield/skillcore/pkg/events"
	"github.com/agenshield/skillcore/pkg/storage"
	"github.com/agenshield/skillcore/pkg/types"
)

// State is the watcher's coarse operating state.
type State string

const (
	StateIdle     State = "idle"
	StateWatching State = "watching"
	StateDegraded State = "degraded"
)

const (
	defaultDebounce     = 500 * time.Millisecond
	defaultPollInterval = 30 * time.Second
	fsRestartDelay      = 5 * time.Second
)

// Options configures a Watcher.
type Options struct {
	DeployRoot     string
	QuarantineRoot string // empty: delete instead of move on quarantine
	Debounce       time.Duration
	PollInterval   time.Duration
	DefaultPolicy  types.Policy
	// PolicyFor resolves a per-installation override, merged over
	// DefaultPolicy. May be nil to always use DefaultPolicy.
	PolicyFor func(installationID string) types.Policy
}

// Watcher is the Integrity Watcher.
type Watcher struct {
	repo           storage.Repository
	deploySvc      *deploy.Service
	backupStore    *backup.Store
	bus            *events.Bus
	deployRoot     string
	quarantineRoot string
	debounce       time.Duration
	pollInterval   time.Duration
	defaultPolicy  types.Policy
	policyFor      func(string) types.Policy

	mu             sync.Mutex
	state          State
	fsWatcher      *fsnotify.Watcher
	stopCh         chan struct{}
	debounceTimers map[string]*time.Timer
	suppressed     map[string]bool
	wg             sync.WaitGroup
}

// New creates a Watcher. DeployRoot and QuarantineRoot are resolved to
// absolute paths at construction, per spec §4.7's relative-path-correctness
// requirement — filesystem notifications carry paths relative to whatever
// root fsnotify was told about, and must be reconciled against the same
// resolved root consistently for the life of the process.
func New(repo storage.Repository, deploySvc *deploy.Service, backupStore *backup.Store, bus *events.Bus, opts Options) (*Watcher, error) {
	deployRoot, err := filepath.Abs(opts.DeployRoot)
	if err != nil {
		return nil, fmt.Errorf("resolve deploy root: %w", err)
	}
	quarantineRoot := opts.QuarantineRoot
	if quarantineRoot != "" {
		quarantineRoot, err = filepath.Abs(quarantineRoot)
		if err != nil {
			return nil, fmt.Errorf("resolve quarantine root: %w", err)
		}
	}

	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	pollInterval := opts.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	policy := opts.DefaultPolicy.Merge(types.DefaultPolicy())

	return &Watcher{
		repo: repo, deploySvc: deploySvc, backupStore: backupStore, bus: bus,
		deployRoot: deployRoot, quarantineRoot: quarantineRoot,
		debounce: debounce, pollInterval: pollInterval,
		defaultPolicy: policy, policyFor: opts.PolicyFor,
		state:          StateIdle,
		debounceTimers: make(map[string]*time.Timer),
		suppressed:     make(map[string]bool),
		stopCh:         make(chan struct{}),
	}, nil
}

// State returns the watcher's current operating state.
func (w *Watcher) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Start is idempotent: begins the interval poll and the filesystem
// notifier.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.state == StateWatching || w.state == StateDegraded {
		w.mu.Unlock()
		return nil
	}
	w.stopCh = make(chan struct{})
	w.state = StateWatching
	w.mu.Unlock()

	if err := os.MkdirAll(w.deployRoot, 0o755); err != nil {
		return fmt.Errorf("ensure deploy root exists: %w", err)
	}

	if err := w.startFsNotifier(ctx); err != nil {
		return fmt.Errorf("start filesystem notifier: %w", err)
	}

	w.wg.Add(1)
	go w.pollLoop(ctx)

	w.publish(&events.Event{Kind: events.KindWatcherStarted})
	return nil
}

// Stop cancels both detection sources and clears debounce state and
// suppressions.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if w.state == StateIdle {
		w.mu.Unlock()
		return
	}
	close(w.stopCh)
	for _, t := range w.debounceTimers {
		t.Stop()
	}
	w.debounceTimers = make(map[string]*time.Timer)
	w.suppressed = make(map[string]bool)
	if w.fsWatcher != nil {
		w.fsWatcher.Close()
		w.fsWatcher = nil
	}
	w.state = StateIdle
	w.mu.Unlock()

	w.wg.Wait()
	w.publish(&events.Event{Kind: events.KindWatcherStopped})
}

func (w *Watcher) publish(e *events.Event) {
	if w.bus == nil {
		return
	}
	w.bus.Publish(e)
}

// resolvedPolicy returns the effective policy for an installation.
func (w *Watcher) resolvedPolicy(installationID string) types.Policy {
	if w.policyFor == nil {
		return w.defaultPolicy
	}
	return w.policyFor(installationID).Merge(w.defaultPolicy)
}

func (w *Watcher) newOperationID() string { return uuid.NewString() }

func slugFromRelPath(rel string) string {
	rel = filepath.ToSlash(rel)
	rel = strings.TrimPrefix(rel, "/")
	if i := strings.Index(rel, "/"); i >= 0 {
		return rel[:i]
	}
	return rel
}
