// Package lifecycle implements the Upload, Install, Uninstall, and Update
// services (spec §4.6): the operations that move a skill version between
// "bytes somewhere" and "registered, deployed, and tracked by the
// repository."
package lifecycle

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"

	"github.com/agenshield/skillcore/pkg/backup"
	"github.com/agenshield/skillcore/pkg/events"
	"github.com/agenshield/skillcore/pkg/storage"
	"github.com/agenshield/skillcore/pkg/types"
)

// UploadInput is the input to Upload.Run. Source and RemoteID default to
// manual/empty; the sync orchestrator sets them to integration/sourceId.
type UploadInput struct {
	Name     string
	Slug     string
	Version  string
	Files    []types.FileContent
	Source   types.Source
	RemoteID string
}

// UploadService registers a brand-new or existing skill's version from raw
// file bytes: hash every file, compute the version's content hash, upsert
// the skill by slug, register the version and its files, and save backup
// bytes.
type UploadService struct {
	repo   storage.Repository
	backup *backup.Store
	bus    *events.Bus
}

// NewUploadService creates an UploadService. backupStore may be nil if no
// backup store is configured.
func NewUploadService(repo storage.Repository, backupStore *backup.Store, bus *events.Bus) *UploadService {
	return &UploadService{repo: repo, backup: backupStore, bus: bus}
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// Run executes the upload: the returned version's ContentHash and
// ApprovalUnknown reflect the freshly-registered state.
func (s *UploadService) Run(ctx context.Context, in UploadInput) (*types.Skill, *types.SkillVersion, error) {
	operationID := uuid.NewString()
	s.publish(&events.Event{Kind: events.KindUploadHashing, OperationID: operationID, Slug: in.Slug})

	fileRecords := make([]types.SkillFile, 0, len(in.Files))
	expectedHashes := make(map[string]string, len(in.Files))
	for _, f := range in.Files {
		h := sha256Hex(f.Bytes)
		fileRecords = append(fileRecords, types.SkillFile{
			RelativePath: f.RelativePath, FileHash: h, SizeBytes: int64(len(f.Bytes)),
		})
		expectedHashes[f.RelativePath] = h
	}

	s.publish(&events.Event{Kind: events.KindUploadRegistering, OperationID: operationID, Slug: in.Slug})

	skill, err := s.upsertSkill(ctx, in)
	if err != nil {
		s.publish(&events.Event{Kind: events.KindUploadError, OperationID: operationID, Slug: in.Slug, Error: err.Error()})
		return nil, nil, err
	}

	version, err := s.repo.AddVersion(ctx, storage.AddVersionInput{SkillID: skill.ID, Version: in.Version})
	if err != nil {
		s.publish(&events.Event{Kind: events.KindUploadError, OperationID: operationID, Slug: in.Slug, Error: err.Error()})
		return nil, nil, fmt.Errorf("add version: %w", err)
	}

	if err := s.repo.RegisterFiles(ctx, version.ID, fileRecords); err != nil {
		s.publish(&events.Event{Kind: events.KindUploadError, OperationID: operationID, Slug: in.Slug, Error: err.Error()})
		return nil, nil, fmt.Errorf("register files: %w", err)
	}

	contentHash, err := s.repo.RecomputeContentHash(ctx, version.ID)
	if err != nil {
		s.publish(&events.Event{Kind: events.KindUploadError, OperationID: operationID, Slug: in.Slug, Error: err.Error()})
		return nil, nil, fmt.Errorf("compute content hash: %w", err)
	}
	version.ContentHash = contentHash

	if s.backup != nil {
		if err := s.backup.SaveFiles(version.ID, in.Files, expectedHashes); err != nil {
			s.publish(&events.Event{Kind: events.KindUploadError, OperationID: operationID, Slug: in.Slug, Error: err.Error()})
			return nil, nil, fmt.Errorf("save backup: %w", err)
		}
	}

	s.publish(&events.Event{Kind: events.KindUploadCompleted, OperationID: operationID, Slug: in.Slug, VersionID: version.ID})
	return skill, version, nil
}

func (s *UploadService) upsertSkill(ctx context.Context, in UploadInput) (*types.Skill, error) {
	existing, err := s.repo.GetBySlug(ctx, in.Slug)
	if err == nil {
		return existing, nil
	}
	source := in.Source
	if source == "" {
		source = types.SourceManual
	}
	return s.repo.CreateSkill(ctx, storage.CreateSkillInput{
		Slug: in.Slug, Name: in.Name, Source: source, RemoteID: in.RemoteID,
	})
}

func (s *UploadService) publish(e *events.Event) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(e)
}
