// Package manager implements the Manager façade (spec §4.9): a single
// constructed object wiring the Repository to every service and adapter,
// optionally starting the Integrity Watcher and bridging internal events
// onto an external Event Bus with identity preservation (spec §6).
package manager

import (
	"context"
	"fmt"

	"github.com/agenshield/skillcore/pkg/analyze"
	"github.com/agenshield/skillcore/pkg/backup"
	"github.com/agenshield/skillcore/pkg/deploy"
	"github.com/agenshield/skillcore/pkg/events"
	"github.com/agenshield/skillcore/pkg/lifecycle"
	"github.com/agenshield/skillcore/pkg/remote"
	"github.com/agenshield/skillcore/pkg/storage"
	"github.com/agenshield/skillcore/pkg/sync"
	"github.com/agenshield/skillcore/pkg/types"
	"github.com/agenshield/skillcore/pkg/watcher"
)

// Options configures a Manager at construction time.
type Options struct {
	DatabasePath string
	BackupDir    string

	DeployAdapters  []deploy.Adapter
	AnalyzeAdapters []analyze.Adapter
	SyncAdapters    []sync.Adapter
	RemoteClient    remote.Client

	WatcherOptions   watcher.Options
	AutoStartWatcher bool

	// ExternalBus, if non-nil, receives the bridged public event set
	// (spec §6). The Manager's internal event bus remains private.
	ExternalBus *events.Bus
}

// Manager is the single public entry point to the skill lifecycle core.
type Manager struct {
	repo        storage.Repository
	backupStore *backup.Store
	bus         *events.Bus
	externalBus *events.Bus

	deploySvc  *deploy.Service
	analyzeSvc *analyze.Service
	uploadSvc  *lifecycle.UploadService
	installSvc *lifecycle.InstallService
	uninstSvc  *lifecycle.UninstallService
	updateSvc  *lifecycle.UpdateService
	syncOrch   *sync.Orchestrator
	watcher    *watcher.Watcher

	syncAdapters []sync.Adapter
}

// New constructs a Manager: opens the Repository and Backup Store, wires
// every service against them, configures the Integrity Watcher, and
// optionally starts it and bridges events.
func New(ctx context.Context, opts Options) (*Manager, error) {
	repo, err := storage.Open(opts.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open repository: %w", err)
	}

	backupStore, err := backup.Open(opts.BackupDir)
	if err != nil {
		repo.Close()
		return nil, fmt.Errorf("open backup store: %w", err)
	}

	bus := events.NewBus()
	bus.Start()

	deploySvc := deploy.NewService(repo, bus, opts.DeployAdapters, backupStore.LoadFiles)
	analyzeSvc := analyze.NewService(repo, bus, opts.AnalyzeAdapters)
	uploadSvc := lifecycle.NewUploadService(repo, backupStore, bus)
	installSvc := lifecycle.NewInstallService(repo, deploySvc, analyzeSvc, opts.RemoteClient, backupStore, bus)
	uninstSvc := lifecycle.NewUninstallService(repo, deploySvc, bus)
	updateSvc := lifecycle.NewUpdateService(repo, deploySvc, opts.RemoteClient, backupStore, bus)
	syncOrch := sync.NewOrchestrator(repo, deploySvc, uploadSvc, bus)

	w, err := watcher.New(repo, deploySvc, backupStore, bus, opts.WatcherOptions)
	if err != nil {
		repo.Close()
		return nil, fmt.Errorf("configure watcher: %w", err)
	}

	m := &Manager{
		repo: repo, backupStore: backupStore, bus: bus, externalBus: opts.ExternalBus,
		deploySvc: deploySvc, analyzeSvc: analyzeSvc, uploadSvc: uploadSvc,
		installSvc: installSvc, uninstSvc: uninstSvc, updateSvc: updateSvc,
		syncOrch: syncOrch, watcher: w, syncAdapters: opts.SyncAdapters,
	}

	if opts.ExternalBus != nil {
		go m.bridgeEvents(bus.Subscribe())
	}

	if opts.AutoStartWatcher {
		if err := w.Start(ctx); err != nil {
			repo.Close()
			return nil, fmt.Errorf("start watcher: %w", err)
		}
	}

	return m, nil
}

// Close stops the watcher, stops the internal event bus, and closes the
// Repository. Safe to call once at process shutdown.
func (m *Manager) Close() error {
	m.watcher.Stop()
	m.bus.Stop()
	return m.repo.Close()
}

// Upload registers a skill version from raw file bytes.
func (m *Manager) Upload(ctx context.Context, in lifecycle.UploadInput) (*types.Skill, *types.SkillVersion, error) {
	return m.uploadSvc.Run(ctx, in)
}

// Install resolves and deploys a skill version to a target.
func (m *Manager) Install(ctx context.Context, in lifecycle.InstallInput) (*types.SkillInstallation, error) {
	return m.installSvc.Run(ctx, in)
}

// Uninstall undeploys and removes an installation.
func (m *Manager) Uninstall(ctx context.Context, installationID string) error {
	return m.uninstSvc.Run(ctx, installationID)
}

// CheckForUpdates reports marketplace drift for every remote-backed skill
// with at least one auto-updatable installation.
func (m *Manager) CheckForUpdates(ctx context.Context) ([]lifecycle.UpdateCheckResult, error) {
	return m.updateSvc.CheckPending(ctx)
}

// ApplyUpdates installs the given pending updates.
func (m *Manager) ApplyUpdates(ctx context.Context, pending []lifecycle.UpdateCheckResult) error {
	return m.updateSvc.ApplyPendingUpdates(ctx, pending)
}

// Analyze runs every configured analyze adapter against a version's files.
func (m *Manager) Analyze(ctx context.Context, slug string, version *types.SkillVersion, files []types.FileContent) (types.AnalysisResult, error) {
	return m.analyzeSvc.Analyze(ctx, slug, version, files)
}

// SyncSource reconciles one registered sync adapter by id against target.
func (m *Manager) SyncSource(ctx context.Context, sourceID, target string) (*sync.Result, error) {
	for _, a := range m.syncAdapters {
		if a.ID() == sourceID {
			return m.syncOrch.SyncSource(ctx, a, target)
		}
	}
	return nil, fmt.Errorf("no sync adapter registered with id %q", sourceID)
}

// SyncAll reconciles every registered sync adapter against target.
func (m *Manager) SyncAll(ctx context.Context, target string) (*sync.Result, error) {
	return m.syncOrch.SyncAll(ctx, m.syncAdapters, target)
}

// StartWatcher starts the Integrity Watcher if not already running.
func (m *Manager) StartWatcher(ctx context.Context) error {
	return m.watcher.Start(ctx)
}

// StopWatcher stops the Integrity Watcher.
func (m *Manager) StopWatcher() {
	m.watcher.Stop()
}

// GetSkill returns a skill by slug.
func (m *Manager) GetSkill(ctx context.Context, slug string) (*types.Skill, error) {
	return m.repo.GetBySlug(ctx, slug)
}

// GetSkills returns every skill matching filter.
func (m *Manager) GetSkills(ctx context.Context, filter storage.GetAllFilter) ([]*types.Skill, error) {
	return m.repo.GetAll(ctx, filter)
}

// GetInstallations returns every currently active installation.
func (m *Manager) GetInstallations(ctx context.Context) ([]*types.SkillInstallation, error) {
	return m.repo.GetActiveInstallations(ctx)
}

// Repo exposes the underlying Repository, for callers (the metrics
// Collector, CLI inspection commands) that need direct read access beyond
// what the façade methods expose.
func (m *Manager) Repo() storage.Repository {
	return m.repo
}

// Subscribe returns a raw subscription to the Manager's internal event bus,
// for in-process consumers that want the full, unbridged event taxonomy.
func (m *Manager) Subscribe() events.Subscriber {
	return m.bus.Subscribe()
}
