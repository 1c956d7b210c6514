// Package storage is the Repository: the sole mutator of persistent skill
// lifecycle state (spec §4.1). It owns the relational schema, enforces
// uniqueness invariants, and is the canonical definition of a
// SkillVersion's content hash.
package storage

import (
	"context"
	"time"

	"github.com/agenshield/skillcore/pkg/types"
)

// CreateSkillInput is the input to CreateSkill.
type CreateSkillInput struct {
	Slug        string
	Name        string
	Author      string
	Description string
	Tags        []string
	Source      types.Source
	RemoteID    string
	IsPublic    bool
}

// AddVersionInput is the input to AddVersion. ContentHash may be empty; the
// caller must follow up with RegisterFiles + RecomputeContentHash.
type AddVersionInput struct {
	SkillID     string
	Version     string
	FolderPath  string
	ContentHash string
	Trusted     bool
}

// InstallInput is the input to Install.
type InstallInput struct {
	SkillVersionID string
	Status         types.InstallStatus
	AutoUpdate     bool
	ProfileID      string
	TargetID       string
	UserUsername   string
}

// GetAllFilter narrows Repository.GetAll.
type GetAllFilter struct {
	Source types.Source // zero value: no filter
}

// AnalysisUpdate is the input to UpdateAnalysis.
type AnalysisUpdate struct {
	Status     types.AnalysisStatus
	JSON       string
	AnalyzedAt *time.Time
}

// Repository is the single authority for mutating and reading skill
// lifecycle state. Every multi-statement operation executes inside one
// transaction; failures roll back all statements within it.
type Repository interface {
	// Mutations

	CreateSkill(ctx context.Context, in CreateSkillInput) (*types.Skill, error)
	AddVersion(ctx context.Context, in AddVersionInput) (*types.SkillVersion, error)
	RegisterFiles(ctx context.Context, versionID string, files []types.SkillFile) error
	RecomputeContentHash(ctx context.Context, versionID string) (string, error)
	UpdateFileHash(ctx context.Context, fileID, newHash string) error
	ApproveVersion(ctx context.Context, versionID string) error
	QuarantineVersion(ctx context.Context, versionID string) error

	Install(ctx context.Context, in InstallInput) (*types.SkillInstallation, error)
	UpdateInstallationStatus(ctx context.Context, id string, status types.InstallStatus) error
	UpdateWrapperPath(ctx context.Context, id, wrapperPath string) error
	UpdateInstallationVersion(ctx context.Context, id, newVersionID string) error
	SetAutoUpdate(ctx context.Context, id string, autoUpdate bool) error
	PinVersion(ctx context.Context, id, version string) error
	UnpinVersion(ctx context.Context, id string) error
	Uninstall(ctx context.Context, id string) error

	UpdateAnalysis(ctx context.Context, versionID string, in AnalysisUpdate) error

	DeleteSkill(ctx context.Context, skillID string) error

	// Reads

	GetBySlug(ctx context.Context, slug string) (*types.Skill, error)
	GetByRemoteID(ctx context.Context, remoteID string) (*types.Skill, error)
	GetByID(ctx context.Context, id string) (*types.Skill, error)
	GetAll(ctx context.Context, filter GetAllFilter) ([]*types.Skill, error)

	GetVersions(ctx context.Context, skillID string) ([]*types.SkillVersion, error)
	GetVersion(ctx context.Context, skillID, version string) (*types.SkillVersion, error)
	GetLatestVersion(ctx context.Context, skillID string) (*types.SkillVersion, error)
	GetVersionByID(ctx context.Context, id string) (*types.SkillVersion, error)

	GetFiles(ctx context.Context, versionID string) ([]types.SkillFile, error)

	GetInstallations(ctx context.Context, skillVersionID string) ([]*types.SkillInstallation, error)
	GetAllInstallations(ctx context.Context) ([]*types.SkillInstallation, error)
	GetActiveInstallations(ctx context.Context) ([]*types.SkillInstallation, error)
	GetInstallationByID(ctx context.Context, id string) (*types.SkillInstallation, error)
	GetAutoUpdatable(ctx context.Context, skillID string) ([]*types.SkillInstallation, error)

	GetMeta(ctx context.Context, key string) (string, bool, error)
	SetMeta(ctx context.Context, key, value string) error

	Close() error
}
