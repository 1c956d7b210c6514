package lifecycle

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/agenshield/skillcore/pkg/backup"
	"github.com/agenshield/skillcore/pkg/deploy"
	"github.com/agenshield/skillcore/pkg/events"
	"github.com/agenshield/skillcore/pkg/remote"
	"github.com/agenshield/skillcore/pkg/storage"
	"github.com/agenshield/skillcore/pkg/types"
)

// UpdateCheckResult reports that a skill has a newer version upstream than
// what's locally recorded, and at least one installation is eligible to
// receive it automatically.
type UpdateCheckResult struct {
	SkillID       string
	Slug          string
	LocalVersion  string
	RemoteVersion string
}

// UpdateService checks the marketplace for drift on every remote-backed
// skill and can apply pending updates to auto-updatable installations.
type UpdateService struct {
	repo   storage.Repository
	deploy *deploy.Service
	remote remote.Client
	backup *backup.Store
	bus    *events.Bus
}

// NewUpdateService creates an UpdateService. backupStore may be nil if no
// backup store is configured.
func NewUpdateService(repo storage.Repository, deploySvc *deploy.Service, remoteClient remote.Client, backupStore *backup.Store, bus *events.Bus) *UpdateService {
	return &UpdateService{repo: repo, deploy: deploySvc, remote: remoteClient, backup: backupStore, bus: bus}
}

// CheckPending returns an UpdateCheckResult for every remote-backed skill
// whose marketplace version differs from the locally recorded latest and
// which has at least one auto-updatable installation.
func (s *UpdateService) CheckPending(ctx context.Context) ([]UpdateCheckResult, error) {
	operationID := uuid.NewString()
	s.publish(&events.Event{Kind: events.KindUpdateChecking, OperationID: operationID})

	if s.remote == nil {
		return nil, nil
	}

	skills, err := s.repo.GetAll(ctx, storage.GetAllFilter{Source: types.SourceMarketplace})
	if err != nil {
		s.publish(&events.Event{Kind: events.KindUpdateError, OperationID: operationID, Error: err.Error()})
		return nil, fmt.Errorf("list marketplace skills: %w", err)
	}

	var results []UpdateCheckResult
	for _, skill := range skills {
		if skill.RemoteID == "" {
			continue
		}

		latestLocal, err := s.repo.GetLatestVersion(ctx, skill.ID)
		if err != nil {
			continue
		}

		remoteVersion, err := s.remote.GetLatestVersion(ctx, skill.RemoteID)
		if err != nil || remoteVersion == latestLocal.Version {
			continue
		}

		autoUpdatable, err := s.repo.GetAutoUpdatable(ctx, skill.ID)
		if err != nil || len(autoUpdatable) == 0 {
			continue
		}

		result := UpdateCheckResult{
			SkillID: skill.ID, Slug: skill.Slug,
			LocalVersion: latestLocal.Version, RemoteVersion: remoteVersion,
		}
		results = append(results, result)
		s.publish(&events.Event{
			Kind: events.KindUpdateFound, OperationID: operationID, Slug: skill.Slug,
			Details: map[string]any{"localVersion": result.LocalVersion, "remoteVersion": result.RemoteVersion},
		})
	}

	s.publish(&events.Event{Kind: events.KindUpdateCompleted, OperationID: operationID})
	return results, nil
}

// ApplyPendingUpdates downloads and records a new version for every pending
// result, then re-deploys each auto-updatable installation onto it.
func (s *UpdateService) ApplyPendingUpdates(ctx context.Context, pending []UpdateCheckResult) error {
	operationID := uuid.NewString()
	s.publish(&events.Event{Kind: events.KindUpdateApplying, OperationID: operationID})

	for _, p := range pending {
		if err := s.applyOne(ctx, operationID, p); err != nil {
			s.publish(&events.Event{Kind: events.KindUpdateError, OperationID: operationID, Slug: p.Slug, Error: err.Error()})
			continue
		}
		s.publish(&events.Event{Kind: events.KindUpdateSkillDone, OperationID: operationID, Slug: p.Slug})
	}

	s.publish(&events.Event{Kind: events.KindUpdateCompleted, OperationID: operationID})
	return nil
}

func (s *UpdateService) applyOne(ctx context.Context, operationID string, p UpdateCheckResult) error {
	skill, err := s.repo.GetByID(ctx, p.SkillID)
	if err != nil {
		return fmt.Errorf("find skill: %w", err)
	}

	files, err := s.remote.Download(ctx, skill.RemoteID, p.RemoteVersion)
	if err != nil {
		return fmt.Errorf("download new version: %w", err)
	}

	newVersion, err := s.repo.AddVersion(ctx, storage.AddVersionInput{SkillID: skill.ID, Version: p.RemoteVersion})
	if err != nil {
		return fmt.Errorf("add new version: %w", err)
	}

	fileRecords := make([]types.SkillFile, 0, len(files))
	expectedHashes := make(map[string]string, len(files))
	for _, f := range files {
		h := sha256Hex(f.Bytes)
		fileRecords = append(fileRecords, types.SkillFile{
			RelativePath: f.RelativePath, FileHash: h, SizeBytes: int64(len(f.Bytes)),
		})
		expectedHashes[f.RelativePath] = h
	}
	if err := s.repo.RegisterFiles(ctx, newVersion.ID, fileRecords); err != nil {
		return fmt.Errorf("register files: %w", err)
	}
	if _, err := s.repo.RecomputeContentHash(ctx, newVersion.ID); err != nil {
		return fmt.Errorf("compute content hash: %w", err)
	}

	if s.backup != nil {
		if err := s.backup.SaveFiles(newVersion.ID, files, expectedHashes); err != nil {
			return fmt.Errorf("save backup: %w", err)
		}
	}

	autoUpdatable, err := s.repo.GetAutoUpdatable(ctx, skill.ID)
	if err != nil {
		return fmt.Errorf("list auto-updatable installations: %w", err)
	}

	for _, inst := range autoUpdatable {
		if err := s.repo.UpdateInstallationVersion(ctx, inst.ID, newVersion.ID); err != nil {
			continue
		}
		inst.SkillVersionID = newVersion.ID
		if _, err := s.deploy.Deploy(ctx, inst, newVersion, skill); err != nil {
			_ = s.repo.UpdateInstallationStatus(ctx, inst.ID, types.InstallDisabled)
			s.publish(&events.Event{
				Kind: events.KindUpdateError, InstallationID: inst.ID, Slug: skill.Slug, VersionID: newVersion.ID,
				Error: err.Error(),
			})
		}
	}

	return nil
}

func (s *UpdateService) publish(e *events.Event) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(e)
}
