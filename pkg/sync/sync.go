// Package sync implements the Sync Orchestrator (spec §4.8): reconciling a
// Source Adapter's desired skill set for a target against what's currently
// installed for that source, installing new skills, updating ones whose
// content changed, and removing orphans.
package sync

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/agenshield/skillcore/pkg/deploy"
	"github.com/agenshield/skillcore/pkg/events"
	"github.com/agenshield/skillcore/pkg/lifecycle"
	"github.com/agenshield/skillcore/pkg/metrics"
	"github.com/agenshield/skillcore/pkg/storage"
	"github.com/agenshield/skillcore/pkg/types"
)

// FileEntry is one file in a SkillDefinition.
type FileEntry struct {
	Name    string // relative path
	Content []byte
}

// SkillDefinition is what a Source Adapter reports a target should have
// installed.
type SkillDefinition struct {
	SkillID     string // doubles as the skill's slug
	Name        string
	Description string
	Version     string
	SHA         string // canonical content hash, see ContentHash
	Files       []FileEntry
	Trusted     bool
}

// Adapter reports the desired skill set for a target and exposes the raw
// material (tools, binaries, file contents, usage instructions) an agent
// runtime needs to actually use a synced skill.
type Adapter interface {
	ID() string
	GetSkillsFor(ctx context.Context, target string) ([]SkillDefinition, error)
	GetTools(ctx context.Context, target string) ([]string, error)
	GetBins(ctx context.Context, target string) ([]string, error)
	GetSkillFiles(ctx context.Context, target, skillID string) ([]FileEntry, error)
	GetInstructions(ctx context.Context, target, skillID string) (string, error)
	IsAvailable(ctx context.Context) bool
}

// ContentHash computes a SkillDefinition's canonical sha: identical to the
// Repository's contentHash (SHA-256 over sorted per-file hashes), so an
// adapter-reported identity matches stored identity bit-for-bit.
func ContentHash(files []FileEntry) string {
	skillFiles := make([]types.SkillFile, len(files))
	for i, f := range files {
		skillFiles[i] = types.SkillFile{RelativePath: f.Name, FileHash: storage.HashBytes(f.Content)}
	}
	return storage.ComputeContentHash(skillFiles)
}

// Result is the outcome of one syncSource/syncAll run.
type Result struct {
	Installed []string
	Updated   []string
	Removed   []string
	Errors    map[string]string // slug -> error message
}

func newResult() *Result {
	return &Result{Errors: make(map[string]string)}
}

func (r *Result) merge(other *Result) {
	r.Installed = append(r.Installed, other.Installed...)
	r.Updated = append(r.Updated, other.Updated...)
	r.Removed = append(r.Removed, other.Removed...)
	for k, v := range other.Errors {
		r.Errors[k] = v
	}
}

// Orchestrator reconciles Source Adapters against the Repository.
type Orchestrator struct {
	repo   storage.Repository
	deploy *deploy.Service
	upload *lifecycle.UploadService
	bus    *events.Bus
}

// NewOrchestrator creates a sync Orchestrator.
func NewOrchestrator(repo storage.Repository, deploySvc *deploy.Service, uploadSvc *lifecycle.UploadService, bus *events.Bus) *Orchestrator {
	return &Orchestrator{repo: repo, deploy: deploySvc, upload: uploadSvc, bus: bus}
}

// SyncSource reconciles one adapter's desired state for target.
func (o *Orchestrator) SyncSource(ctx context.Context, adapter Adapter, target string) (*Result, error) {
	operationID := uuid.NewString()
	o.publish(&events.Event{Kind: events.KindSyncStarted, OperationID: operationID, Details: map[string]any{"sourceId": adapter.ID(), "target": target}})

	result := newResult()

	desired, err := adapter.GetSkillsFor(ctx, target)
	if err != nil {
		o.publish(&events.Event{Kind: events.KindSyncError, OperationID: operationID, Error: err.Error()})
		metrics.SyncTotal.WithLabelValues(adapter.ID(), "error").Inc()
		return nil, fmt.Errorf("get skills for target %q: %w", target, err)
	}

	existing, err := o.installedForSource(ctx, adapter.ID())
	if err != nil {
		o.publish(&events.Event{Kind: events.KindSyncError, OperationID: operationID, Error: err.Error()})
		metrics.SyncTotal.WithLabelValues(adapter.ID(), "error").Inc()
		return nil, fmt.Errorf("load installed skills for source %q: %w", adapter.ID(), err)
	}

	desiredSlugs := make(map[string]bool, len(desired))
	for _, def := range desired {
		desiredSlugs[def.SkillID] = true

		skill, ok := existing[def.SkillID]
		if !ok {
			if err := o.installNew(ctx, adapter.ID(), def); err != nil {
				result.Errors[def.SkillID] = err.Error()
				continue
			}
			result.Installed = append(result.Installed, def.SkillID)
			o.publish(&events.Event{Kind: events.KindSyncProgress, OperationID: operationID, Slug: def.SkillID, Details: map[string]any{"action": "installed"}})
			continue
		}

		latest, err := o.repo.GetLatestVersion(ctx, skill.ID)
		if err != nil {
			result.Errors[def.SkillID] = err.Error()
			continue
		}
		if latest.ContentHash == def.SHA {
			continue
		}
		if err := o.updateExisting(ctx, skill, def); err != nil {
			result.Errors[def.SkillID] = err.Error()
			continue
		}
		result.Updated = append(result.Updated, def.SkillID)
		o.publish(&events.Event{Kind: events.KindSyncProgress, OperationID: operationID, Slug: def.SkillID, Details: map[string]any{"action": "updated"}})
	}

	for slug, skill := range existing {
		if desiredSlugs[slug] {
			continue
		}
		if err := o.removeOrphan(ctx, skill); err != nil {
			result.Errors[slug] = err.Error()
			continue
		}
		result.Removed = append(result.Removed, slug)
		o.publish(&events.Event{Kind: events.KindSyncProgress, OperationID: operationID, Slug: slug, Details: map[string]any{"action": "removed"}})
	}

	o.publish(&events.Event{Kind: events.KindSyncCompleted, OperationID: operationID, Details: map[string]any{
		"installed": result.Installed, "updated": result.Updated, "removed": result.Removed,
	}})

	syncResult := "success"
	if len(result.Errors) > 0 {
		syncResult = "partial_error"
	}
	metrics.SyncTotal.WithLabelValues(adapter.ID(), syncResult).Inc()

	return result, nil
}

// SyncAll reconciles every adapter against target, merging their results.
func (o *Orchestrator) SyncAll(ctx context.Context, adapters []Adapter, target string) (*Result, error) {
	total := newResult()
	for _, adapter := range adapters {
		if !adapter.IsAvailable(ctx) {
			continue
		}
		r, err := o.SyncSource(ctx, adapter, target)
		if err != nil {
			total.Errors[adapter.ID()] = err.Error()
			continue
		}
		total.merge(r)
	}
	return total, nil
}

// installedForSource returns every skill tagged source=integration with the
// given remoteId, keyed by slug.
func (o *Orchestrator) installedForSource(ctx context.Context, sourceID string) (map[string]*types.Skill, error) {
	skills, err := o.repo.GetAll(ctx, storage.GetAllFilter{Source: types.SourceIntegration})
	if err != nil {
		return nil, err
	}
	out := make(map[string]*types.Skill, len(skills))
	for _, s := range skills {
		if s.RemoteID == sourceID {
			out[s.Slug] = s
		}
	}
	return out, nil
}

func (o *Orchestrator) installNew(ctx context.Context, sourceID string, def SkillDefinition) error {
	skill, version, err := o.upload.Run(ctx, lifecycle.UploadInput{
		Name: firstNonEmpty(def.Name, def.SkillID), Slug: def.SkillID, Version: def.Version,
		Files: toFileContents(def.Files), Source: types.SourceIntegration, RemoteID: sourceID,
	})
	if err != nil {
		return fmt.Errorf("upload %q: %w", def.SkillID, err)
	}
	if def.Trusted {
		if err := o.repo.ApproveVersion(ctx, version.ID); err != nil {
			return fmt.Errorf("approve %q: %w", def.SkillID, err)
		}
	}

	inst, err := o.repo.Install(ctx, storage.InstallInput{
		SkillVersionID: version.ID, Status: types.InstallActive, TargetID: skill.Slug,
	})
	if err != nil {
		return fmt.Errorf("install %q: %w", def.SkillID, err)
	}

	if result, err := o.deploy.Deploy(ctx, inst, version, skill); err != nil {
		_ = o.repo.UpdateInstallationStatus(ctx, inst.ID, types.InstallDisabled)
		return fmt.Errorf("deploy %q: %w", def.SkillID, err)
	} else if result != nil && result.WrapperPath != "" {
		_ = o.repo.UpdateWrapperPath(ctx, inst.ID, result.WrapperPath)
	}

	return nil
}

// updateExisting uploads def as a new version of skill and re-deploys every
// active installation currently pointed at the old version, propagating the
// update in place.
func (o *Orchestrator) updateExisting(ctx context.Context, skill *types.Skill, def SkillDefinition) error {
	oldVersion, err := o.repo.GetLatestVersion(ctx, skill.ID)
	if err != nil {
		return fmt.Errorf("load current version of %q: %w", skill.Slug, err)
	}

	_, newVersion, err := o.upload.Run(ctx, lifecycle.UploadInput{
		Name: skill.Name, Slug: skill.Slug, Version: def.Version,
		Files: toFileContents(def.Files), Source: types.SourceIntegration, RemoteID: skill.RemoteID,
	})
	if err != nil {
		return fmt.Errorf("upload update for %q: %w", skill.Slug, err)
	}
	if def.Trusted {
		if err := o.repo.ApproveVersion(ctx, newVersion.ID); err != nil {
			return fmt.Errorf("approve update for %q: %w", skill.Slug, err)
		}
	}

	installations, err := o.repo.GetInstallations(ctx, oldVersion.ID)
	if err != nil {
		return fmt.Errorf("load installations for %q: %w", skill.Slug, err)
	}
	for _, inst := range installations {
		if inst.Status != types.InstallActive {
			continue
		}
		if err := o.repo.UpdateInstallationVersion(ctx, inst.ID, newVersion.ID); err != nil {
			continue
		}
		inst.SkillVersionID = newVersion.ID
		if _, err := o.deploy.Deploy(ctx, inst, newVersion, skill); err != nil {
			_ = o.repo.UpdateInstallationStatus(ctx, inst.ID, types.InstallDisabled)
			o.publish(&events.Event{
				Kind: events.KindSyncError, InstallationID: inst.ID, Slug: skill.Slug, VersionID: newVersion.ID,
				Error: err.Error(),
			})
		}
	}

	return nil
}

func (o *Orchestrator) removeOrphan(ctx context.Context, skill *types.Skill) error {
	versions, err := o.repo.GetVersions(ctx, skill.ID)
	if err != nil {
		return fmt.Errorf("load versions for %q: %w", skill.Slug, err)
	}
	for _, v := range versions {
		installations, err := o.repo.GetInstallations(ctx, v.ID)
		if err != nil {
			continue
		}
		for _, inst := range installations {
			if inst.Status != types.InstallActive {
				continue
			}
			_ = o.deploy.Undeploy(ctx, inst, v, skill)
			_ = o.repo.Uninstall(ctx, inst.ID)
		}
	}
	return o.repo.DeleteSkill(ctx, skill.ID)
}

func (o *Orchestrator) publish(e *events.Event) {
	if o.bus == nil {
		return
	}
	o.bus.Publish(e)
}

func toFileContents(files []FileEntry) []types.FileContent {
	out := make([]types.FileContent, len(files))
	for i, f := range files {
		out[i] = types.FileContent{RelativePath: f.Name, Bytes: f.Content}
	}
	return out
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
