package lifecycle

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/agenshield/skillcore/pkg/analyze"
	"github.com/agenshield/skillcore/pkg/backup"
	"github.com/agenshield/skillcore/pkg/deploy"
	"github.com/agenshield/skillcore/pkg/events"
	"github.com/agenshield/skillcore/pkg/metrics"
	"github.com/agenshield/skillcore/pkg/remote"
	"github.com/agenshield/skillcore/pkg/storage"
	"github.com/agenshield/skillcore/pkg/types"
)

// InstallInput resolves to a (skill, version) pair by either RemoteID (fetch
// from the marketplace) or SkillID (+ optional Version, default latest).
type InstallInput struct {
	RemoteID     string
	SkillID      string
	Version      string
	ProfileID    string
	TargetID     string
	UserUsername string
	AutoUpdate   bool
}

// InstallService resolves a skill version and deploys it to a target.
type InstallService struct {
	repo    storage.Repository
	deploy  *deploy.Service
	analyze *analyze.Service
	remote  remote.Client
	backup  *backup.Store
	bus     *events.Bus
}

// NewInstallService creates an InstallService. remoteClient may be nil if
// only local-skillId installs are needed; backupStore may be nil if no
// backup store is configured.
func NewInstallService(repo storage.Repository, deploySvc *deploy.Service, analyzeSvc *analyze.Service, remoteClient remote.Client, backupStore *backup.Store, bus *events.Bus) *InstallService {
	return &InstallService{repo: repo, deploy: deploySvc, analyze: analyzeSvc, remote: remoteClient, backup: backupStore, bus: bus}
}

// Run resolves in to a version, creates a pending installation, deploys it,
// and marks the installation active or disabled.
func (s *InstallService) Run(ctx context.Context, in InstallInput) (*types.SkillInstallation, error) {
	operationID := uuid.NewString()
	s.publish(&events.Event{Kind: events.KindInstallStarted, OperationID: operationID})

	skill, version, err := s.resolve(ctx, operationID, in)
	if err != nil {
		s.publish(&events.Event{Kind: events.KindInstallError, OperationID: operationID, Error: err.Error()})
		metrics.InstallsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	s.publish(&events.Event{Kind: events.KindInstallRegistering, OperationID: operationID, Slug: skill.Slug, VersionID: version.ID})

	targetID := in.TargetID
	if targetID == "" {
		targetID = skill.Slug
	}

	s.publish(&events.Event{Kind: events.KindInstallCreating, OperationID: operationID, Slug: skill.Slug, VersionID: version.ID})

	installation, err := s.repo.Install(ctx, storage.InstallInput{
		SkillVersionID: version.ID,
		Status:         types.InstallPending,
		AutoUpdate:     in.AutoUpdate,
		ProfileID:      in.ProfileID,
		TargetID:       targetID,
		UserUsername:   in.UserUsername,
	})
	if err != nil {
		s.publish(&events.Event{Kind: events.KindInstallError, OperationID: operationID, Slug: skill.Slug, Error: err.Error()})
		return nil, fmt.Errorf("create installation: %w", err)
	}

	result, err := s.deploy.Deploy(ctx, installation, version, skill)
	if err != nil {
		_ = s.repo.UpdateInstallationStatus(ctx, installation.ID, types.InstallDisabled)
		s.publish(&events.Event{
			Kind: events.KindInstallError, OperationID: operationID,
			InstallationID: installation.ID, Slug: skill.Slug, VersionID: version.ID, Error: err.Error(),
		})
		metrics.InstallsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("deploy: %w", err)
	}

	if err := s.repo.UpdateInstallationStatus(ctx, installation.ID, types.InstallActive); err != nil {
		metrics.InstallsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("mark installation active: %w", err)
	}
	installation.Status = types.InstallActive

	if result != nil && result.WrapperPath != "" {
		if err := s.repo.UpdateWrapperPath(ctx, installation.ID, result.WrapperPath); err != nil {
			return nil, fmt.Errorf("record wrapper path: %w", err)
		}
		installation.WrapperPath = result.WrapperPath
	}

	s.publish(&events.Event{
		Kind: events.KindInstallCompleted, OperationID: operationID,
		InstallationID: installation.ID, Slug: skill.Slug, VersionID: version.ID,
	})
	metrics.InstallsTotal.WithLabelValues("success").Inc()
	return installation, nil
}

func (s *InstallService) resolve(ctx context.Context, operationID string, in InstallInput) (*types.Skill, *types.SkillVersion, error) {
	if in.RemoteID != "" {
		return s.resolveFromRemote(ctx, operationID, in)
	}
	return s.resolveLocal(ctx, in)
}

func (s *InstallService) resolveLocal(ctx context.Context, in InstallInput) (*types.Skill, *types.SkillVersion, error) {
	skill, err := s.repo.GetByID(ctx, in.SkillID)
	if err != nil {
		return nil, nil, fmt.Errorf("find skill: %w", err)
	}
	if in.Version != "" {
		version, err := s.repo.GetVersion(ctx, skill.ID, in.Version)
		if err != nil {
			return nil, nil, fmt.Errorf("find version: %w", err)
		}
		return skill, version, nil
	}
	version, err := s.repo.GetLatestVersion(ctx, skill.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("find latest version: %w", err)
	}
	return skill, version, nil
}

func (s *InstallService) resolveFromRemote(ctx context.Context, operationID string, in InstallInput) (*types.Skill, *types.SkillVersion, error) {
	if s.remote == nil {
		return nil, nil, fmt.Errorf("install from remoteId %q: no remote client configured", in.RemoteID)
	}

	s.publish(&events.Event{Kind: events.KindInstallDownloading, OperationID: operationID})

	skill, err := s.repo.GetByRemoteID(ctx, in.RemoteID)
	if err != nil {
		desc, err := s.remote.GetDescriptor(ctx, in.RemoteID)
		if err != nil {
			return nil, nil, fmt.Errorf("fetch remote descriptor: %w", err)
		}
		skill, err = s.repo.CreateSkill(ctx, storage.CreateSkillInput{
			Slug: desc.RemoteID, Name: desc.Name, Author: desc.Author,
			Description: desc.Description, Tags: desc.Tags,
			Source: types.SourceMarketplace, RemoteID: desc.RemoteID, IsPublic: desc.IsPublic,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("create skill from remote descriptor: %w", err)
		}
	}

	version := in.Version
	if version == "" {
		latest, err := s.remote.GetLatestVersion(ctx, in.RemoteID)
		if err != nil {
			return nil, nil, fmt.Errorf("fetch latest remote version: %w", err)
		}
		version = latest
	}

	existingVersion, err := s.repo.GetVersion(ctx, skill.ID, version)
	if err == nil {
		return skill, existingVersion, nil
	}

	files, err := s.remote.Download(ctx, in.RemoteID, version)
	if err != nil {
		return nil, nil, fmt.Errorf("download remote version: %w", err)
	}

	s.publish(&events.Event{Kind: events.KindInstallAnalyzing, OperationID: operationID, Slug: skill.Slug})

	fileRecords := make([]types.SkillFile, 0, len(files))
	expectedHashes := make(map[string]string, len(files))
	for _, f := range files {
		h := sha256Hex(f.Bytes)
		fileRecords = append(fileRecords, types.SkillFile{
			RelativePath: f.RelativePath, FileHash: h, SizeBytes: int64(len(f.Bytes)),
		})
		expectedHashes[f.RelativePath] = h
	}

	newVersion, err := s.repo.AddVersion(ctx, storage.AddVersionInput{SkillID: skill.ID, Version: version})
	if err != nil {
		return nil, nil, fmt.Errorf("add downloaded version: %w", err)
	}
	if err := s.repo.RegisterFiles(ctx, newVersion.ID, fileRecords); err != nil {
		return nil, nil, fmt.Errorf("register downloaded files: %w", err)
	}
	contentHash, err := s.repo.RecomputeContentHash(ctx, newVersion.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("compute content hash: %w", err)
	}
	newVersion.ContentHash = contentHash

	if s.backup != nil {
		if err := s.backup.SaveFiles(newVersion.ID, files, expectedHashes); err != nil {
			return nil, nil, fmt.Errorf("save backup: %w", err)
		}
	}

	if s.analyze != nil {
		if _, err := s.analyze.Analyze(ctx, skill.Slug, newVersion, files); err != nil {
			return nil, nil, fmt.Errorf("analyze downloaded version: %w", err)
		}
	}

	return skill, newVersion, nil
}

func (s *InstallService) publish(e *events.Event) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(e)
}
