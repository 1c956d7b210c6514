package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agenshield/skillcore/pkg/skillerr"
	"github.com/agenshield/skillcore/pkg/types"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "skillcore.db")
	repo, err := Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestCreateSkill_SlugConflict(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.CreateSkill(ctx, CreateSkillInput{Slug: "pdf-tools", Name: "PDF Tools", Source: types.SourceManual})
	require.NoError(t, err)

	_, err = repo.CreateSkill(ctx, CreateSkillInput{Slug: "pdf-tools", Name: "Other", Source: types.SourceManual})
	require.Error(t, err)
	require.True(t, errors.Is(err, skillerr.ErrSlugConflict))
}

func TestAddVersion_VersionConflict(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	skill, err := repo.CreateSkill(ctx, CreateSkillInput{Slug: "pdf-tools", Name: "PDF Tools", Source: types.SourceManual})
	require.NoError(t, err)

	_, err = repo.AddVersion(ctx, AddVersionInput{SkillID: skill.ID, Version: "1.0.0"})
	require.NoError(t, err)

	_, err = repo.AddVersion(ctx, AddVersionInput{SkillID: skill.ID, Version: "1.0.0"})
	require.Error(t, err)
	require.True(t, errors.Is(err, skillerr.ErrVersionConflict))
}

func TestRegisterFilesAndRecomputeContentHash(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	skill, err := repo.CreateSkill(ctx, CreateSkillInput{Slug: "pdf-tools", Name: "PDF Tools", Source: types.SourceManual})
	require.NoError(t, err)
	version, err := repo.AddVersion(ctx, AddVersionInput{SkillID: skill.ID, Version: "1.0.0"})
	require.NoError(t, err)

	files := []types.SkillFile{
		{RelativePath: "SKILL.md", FileHash: hashBytes([]byte("skill content")), SizeBytes: 13},
		{RelativePath: "scripts/run.sh", FileHash: hashBytes([]byte("#!/bin/sh")), SizeBytes: 9},
	}
	require.NoError(t, repo.RegisterFiles(ctx, version.ID, files))

	hash, err := repo.RecomputeContentHash(ctx, version.ID)
	require.NoError(t, err)
	require.Len(t, hash, 64)

	got, err := repo.GetVersionByID(ctx, version.ID)
	require.NoError(t, err)
	require.Equal(t, hash, got.ContentHash)
	require.NotZero(t, got.HashUpdatedAt)

	storedFiles, err := repo.GetFiles(ctx, version.ID)
	require.NoError(t, err)
	require.Len(t, storedFiles, 2)
}

func TestInstallLifecycle(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	skill, err := repo.CreateSkill(ctx, CreateSkillInput{Slug: "pdf-tools", Name: "PDF Tools", Source: types.SourceManual})
	require.NoError(t, err)
	version, err := repo.AddVersion(ctx, AddVersionInput{SkillID: skill.ID, Version: "1.0.0"})
	require.NoError(t, err)

	installation, err := repo.Install(ctx, InstallInput{
		SkillVersionID: version.ID,
		Status:         types.InstallActive,
		AutoUpdate:     true,
		ProfileID:      "profile-1",
	})
	require.NoError(t, err)
	require.Equal(t, types.InstallActive, installation.Status)

	require.NoError(t, repo.UpdateWrapperPath(ctx, installation.ID, "/opt/skills/pdf-tools/run"))
	require.NoError(t, repo.SetAutoUpdate(ctx, installation.ID, false))
	require.NoError(t, repo.PinVersion(ctx, installation.ID, "1.0.0"))

	got, err := repo.GetInstallationByID(ctx, installation.ID)
	require.NoError(t, err)
	require.Equal(t, "/opt/skills/pdf-tools/run", got.WrapperPath)
	require.False(t, got.AutoUpdate)
	require.Equal(t, "1.0.0", got.PinnedVersion)

	autoUpdatable, err := repo.GetAutoUpdatable(ctx, skill.ID)
	require.NoError(t, err)
	require.Empty(t, autoUpdatable)

	require.NoError(t, repo.UnpinVersion(ctx, installation.ID))
	require.NoError(t, repo.SetAutoUpdate(ctx, installation.ID, true))
	autoUpdatable, err = repo.GetAutoUpdatable(ctx, skill.ID)
	require.NoError(t, err)
	require.Len(t, autoUpdatable, 1)

	require.NoError(t, repo.Uninstall(ctx, installation.ID))
	_, err = repo.GetInstallationByID(ctx, installation.ID)
	require.True(t, errors.Is(err, skillerr.ErrInstallationNotFound))
}

func TestDeleteSkill_CascadesVersionsFilesInstallations(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	skill, err := repo.CreateSkill(ctx, CreateSkillInput{Slug: "pdf-tools", Name: "PDF Tools", Source: types.SourceManual})
	require.NoError(t, err)
	version, err := repo.AddVersion(ctx, AddVersionInput{SkillID: skill.ID, Version: "1.0.0"})
	require.NoError(t, err)
	require.NoError(t, repo.RegisterFiles(ctx, version.ID, []types.SkillFile{
		{RelativePath: "SKILL.md", FileHash: "aaaa"},
	}))
	installation, err := repo.Install(ctx, InstallInput{SkillVersionID: version.ID, Status: types.InstallActive})
	require.NoError(t, err)

	require.NoError(t, repo.DeleteSkill(ctx, skill.ID))

	_, err = repo.GetVersionByID(ctx, version.ID)
	require.True(t, errors.Is(err, skillerr.ErrVersionNotFound))

	files, err := repo.GetFiles(ctx, version.ID)
	require.NoError(t, err)
	require.Empty(t, files)

	_, err = repo.GetInstallationByID(ctx, installation.ID)
	require.True(t, errors.Is(err, skillerr.ErrInstallationNotFound))
}

func TestMetaKV(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	_, ok, err := repo.GetMeta(ctx, "last_sync")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, repo.SetMeta(ctx, "last_sync", "2026-07-29T00:00:00Z"))
	value, ok, err := repo.GetMeta(ctx, "last_sync")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "2026-07-29T00:00:00Z", value)

	require.NoError(t, repo.SetMeta(ctx, "last_sync", "2026-07-29T01:00:00Z"))
	value, _, err = repo.GetMeta(ctx, "last_sync")
	require.NoError(t, err)
	require.Equal(t, "2026-07-29T01:00:00Z", value)
}

func TestGetAll_FiltersBySource(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.CreateSkill(ctx, CreateSkillInput{Slug: "a", Name: "A", Source: types.SourceManual})
	require.NoError(t, err)
	_, err = repo.CreateSkill(ctx, CreateSkillInput{Slug: "b", Name: "B", Source: types.SourceMarketplace})
	require.NoError(t, err)

	all, err := repo.GetAll(ctx, GetAllFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)

	manual, err := repo.GetAll(ctx, GetAllFilter{Source: types.SourceManual})
	require.NoError(t, err)
	require.Len(t, manual, 1)
	require.Equal(t, "a", manual[0].Slug)
}
