// Package deploy implements the Deploy Adapter contract and the
// DeployService that orchestrates deploying a skill version to a target
// (spec §4.4): adapter selection, delegation, and the hash-reconciliation
// pass that keeps the repository's file manifest truthful after an adapter
// rewrites content during deploy.
package deploy

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/agenshield/skillcore/pkg/events"
	"github.com/agenshield/skillcore/pkg/metrics"
	"github.com/agenshield/skillcore/pkg/storage"
	"github.com/agenshield/skillcore/pkg/types"
)

// Context is everything an adapter needs to deploy or check a skill
// version. FileContents, when non-nil, is the Backup Store's authoritative
// byte source; adapters MUST prefer it over reading Version.FolderPath.
type Context struct {
	Skill        *types.Skill
	Version      *types.SkillVersion
	Files        []types.SkillFile
	Installation *types.SkillInstallation
	FileContents map[string][]byte // relativePath -> bytes, optional
}

// Result is what an adapter returns from a successful Deploy.
type Result struct {
	DeployedPath string
	DeployedHash string
	WrapperPath  string // empty if none
}

// IntegrityResult is the outcome of comparing a deployed directory against
// a version's file manifest.
type IntegrityResult struct {
	Intact          bool
	ModifiedFiles   []string
	MissingFiles    []string
	UnexpectedFiles []string
	CurrentHash     string
	ExpectedHash    string
	// CurrentFileHashes holds the freshly computed SHA-256 for every file
	// the check read from disk, keyed by relativePath. Populated for at
	// least every entry in ModifiedFiles; used by the deploy service's
	// hash-reconciliation pass.
	CurrentFileHashes map[string]string
}

// Adapter deploys skill versions to one kind of target (a workspace
// directory, a sandboxed container mount, a remote host — the reference
// implementation here is the workspace filesystem adapter).
type Adapter interface {
	ID() string
	DisplayName() string
	// CanDeploy reports whether this adapter handles the given profile.
	// An empty profileID means "default"; the reference adapter accepts it.
	CanDeploy(profileID string) bool
	Deploy(ctx context.Context, dc Context) (Result, error)
	Undeploy(ctx context.Context, inst *types.SkillInstallation, version *types.SkillVersion, skill *types.Skill) error
	CheckIntegrity(ctx context.Context, inst *types.SkillInstallation, version *types.SkillVersion, files []types.SkillFile) (IntegrityResult, error)
}

// Service orchestrates deploy/undeploy across a set of adapters, backed by
// the Repository for file manifests and hash reconciliation, an event Bus
// for progress, and an optional Backup Store for recovery bytes.
type Service struct {
	repo     storage.Repository
	bus      *events.Bus
	adapters []Adapter
	loadBackup func(versionID string, expectedHashes map[string]string) (map[string][]byte, error)
}

// NewService creates a deploy Service. loadBackup may be nil if no backup
// store is configured; it is consulted only when FileContents would
// otherwise be empty.
func NewService(repo storage.Repository, bus *events.Bus, adapters []Adapter, loadBackup func(string, map[string]string) (map[string][]byte, error)) *Service {
	return &Service{repo: repo, bus: bus, adapters: adapters, loadBackup: loadBackup}
}

// AdapterFor returns the adapter that would handle profileID, if any.
func (s *Service) AdapterFor(profileID string) (Adapter, bool) {
	a := s.selectAdapter(profileID)
	return a, a != nil
}

func (s *Service) selectAdapter(profileID string) Adapter {
	for _, a := range s.adapters {
		if a.CanDeploy(profileID) {
			return a
		}
	}
	return nil
}

func hashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// Deploy runs the full deploy pipeline for installation against version and
// skill: select adapter, delegate, then reconcile hashes. A nil return with
// no error means no adapter matched the installation's profile — a no-op.
func (s *Service) Deploy(ctx context.Context, installation *types.SkillInstallation, version *types.SkillVersion, skill *types.Skill) (*Result, error) {
	adapter := s.selectAdapter(installation.ProfileID)
	if adapter == nil {
		return nil, nil
	}

	files, err := s.repo.GetFiles(ctx, version.ID)
	if err != nil {
		return nil, fmt.Errorf("load file manifest: %w", err)
	}

	var fileContents map[string][]byte
	if s.loadBackup != nil {
		expected := make(map[string]string, len(files))
		for _, f := range files {
			expected[f.RelativePath] = f.FileHash
		}
		if loaded, err := s.loadBackup(version.ID, expected); err == nil {
			fileContents = loaded
		}
	}

	operationID := uuid.NewString()
	s.publish(&events.Event{
		Kind: events.KindDeployStarted, OperationID: operationID,
		InstallationID: installation.ID, Slug: skill.Slug, VersionID: version.ID, AdapterID: adapter.ID(),
	})

	result, err := adapter.Deploy(ctx, Context{
		Skill: skill, Version: version, Files: files, Installation: installation, FileContents: fileContents,
	})
	if err != nil {
		s.publish(&events.Event{
			Kind: events.KindDeployError, OperationID: operationID,
			InstallationID: installation.ID, Slug: skill.Slug, VersionID: version.ID, AdapterID: adapter.ID(),
			Error: err.Error(),
		})
		metrics.DeploysTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("adapter %q deploy: %w", adapter.ID(), err)
	}

	if err := s.reconcileHashes(ctx, adapter, installation, version, files); err != nil {
		s.publish(&events.Event{
			Kind: events.KindDeployError, OperationID: operationID,
			InstallationID: installation.ID, Slug: skill.Slug, VersionID: version.ID, AdapterID: adapter.ID(),
			Error: err.Error(),
		})
		metrics.DeploysTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("reconcile hashes: %w", err)
	}

	s.publish(&events.Event{
		Kind: events.KindDeployCompleted, OperationID: operationID,
		InstallationID: installation.ID, Slug: skill.Slug, VersionID: version.ID, AdapterID: adapter.ID(),
	})
	metrics.DeploysTotal.WithLabelValues("success").Inc()

	return &result, nil
}

// reconcileHashes re-reads every deployed file via the adapter's integrity
// check, and for any file whose bytes diverge from its registered hash,
// updates the repository's file hash and recomputes the version's content
// hash. This keeps future integrity checks honest after an adapter that
// rewrites content (e.g. templating an env var) during deploy.
func (s *Service) reconcileHashes(ctx context.Context, adapter Adapter, installation *types.SkillInstallation, version *types.SkillVersion, files []types.SkillFile) error {
	check, err := adapter.CheckIntegrity(ctx, installation, version, files)
	if err != nil {
		return fmt.Errorf("post-deploy integrity check: %w", err)
	}
	if len(check.ModifiedFiles) == 0 {
		return nil
	}

	modified := make(map[string]bool, len(check.ModifiedFiles))
	for _, relPath := range check.ModifiedFiles {
		modified[relPath] = true
	}

	recompute := false
	for _, f := range files {
		if !modified[f.RelativePath] {
			continue
		}
		newHash, ok := check.CurrentFileHashes[f.RelativePath]
		if !ok {
			continue
		}
		recompute = true
		if err := s.repo.UpdateFileHash(ctx, f.ID, newHash); err != nil {
			return fmt.Errorf("update file hash for %q: %w", f.RelativePath, err)
		}
	}

	if recompute {
		if _, err := s.repo.RecomputeContentHash(ctx, version.ID); err != nil {
			return fmt.Errorf("recompute content hash: %w", err)
		}
	}

	return nil
}

// Undeploy delegates to the matching adapter and emits undeploy:*.
func (s *Service) Undeploy(ctx context.Context, installation *types.SkillInstallation, version *types.SkillVersion, skill *types.Skill) error {
	adapter := s.selectAdapter(installation.ProfileID)
	if adapter == nil {
		return nil
	}

	operationID := uuid.NewString()
	s.publish(&events.Event{
		Kind: events.KindUndeployStarted, OperationID: operationID,
		InstallationID: installation.ID, Slug: skill.Slug, VersionID: version.ID, AdapterID: adapter.ID(),
	})

	if err := adapter.Undeploy(ctx, installation, version, skill); err != nil {
		s.publish(&events.Event{
			Kind: events.KindUndeployError, OperationID: operationID,
			InstallationID: installation.ID, Slug: skill.Slug, VersionID: version.ID, AdapterID: adapter.ID(),
			Error: err.Error(),
		})
		return fmt.Errorf("adapter %q undeploy: %w", adapter.ID(), err)
	}

	s.publish(&events.Event{
		Kind: events.KindUndeployCompleted, OperationID: operationID,
		InstallationID: installation.ID, Slug: skill.Slug, VersionID: version.ID, AdapterID: adapter.ID(),
	})
	return nil
}

// CheckIntegrity runs the matching adapter's integrity check for a single
// installation/version. Returns (IntegrityResult{}, false, nil) if no
// adapter matches the installation's profile.
func (s *Service) CheckIntegrity(ctx context.Context, installation *types.SkillInstallation, version *types.SkillVersion, files []types.SkillFile) (IntegrityResult, bool, error) {
	adapter := s.selectAdapter(installation.ProfileID)
	if adapter == nil {
		return IntegrityResult{}, false, nil
	}
	result, err := adapter.CheckIntegrity(ctx, installation, version, files)
	if err != nil {
		return IntegrityResult{}, true, fmt.Errorf("adapter %q check integrity: %w", adapter.ID(), err)
	}
	return result, true, nil
}

// CheckAllIntegrity returns per-installation integrity results for every
// active installation.
func (s *Service) CheckAllIntegrity(ctx context.Context) (map[string]IntegrityResult, error) {
	installations, err := s.repo.GetActiveInstallations(ctx)
	if err != nil {
		return nil, fmt.Errorf("load active installations: %w", err)
	}

	results := make(map[string]IntegrityResult, len(installations))
	for _, inst := range installations {
		version, err := s.repo.GetVersionByID(ctx, inst.SkillVersionID)
		if err != nil {
			continue
		}
		files, err := s.repo.GetFiles(ctx, version.ID)
		if err != nil {
			continue
		}
		adapter := s.selectAdapter(inst.ProfileID)
		if adapter == nil {
			continue
		}
		check, err := adapter.CheckIntegrity(ctx, inst, version, files)
		if err != nil {
			continue
		}
		results[inst.ID] = check
	}
	return results, nil
}

func (s *Service) publish(e *events.Event) {
	if s.bus == nil {
		return
	}
	e.Timestamp = time.Now()
	s.bus.Publish(e)
}
