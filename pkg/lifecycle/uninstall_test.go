package lifecycle

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agenshield/skillcore/pkg/skillerr"
	"github.com/agenshield/skillcore/pkg/storage"
	"github.com/agenshield/skillcore/pkg/types"
)

func TestUninstallService_Run_RemovesInstallation(t *testing.T) {
	installSvc, repo, deploySvc, _ := newTestInstallService(t)
	ctx := context.Background()

	skill, err := repo.CreateSkill(ctx, storage.CreateSkillInput{Slug: "pdf-tools", Name: "PDF Tools", Source: types.SourceManual})
	require.NoError(t, err)
	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "SKILL.md"), []byte("content"), 0o644))
	version, err := repo.AddVersion(ctx, storage.AddVersionInput{SkillID: skill.ID, Version: "1.0.0", FolderPath: src})
	require.NoError(t, err)
	require.NoError(t, repo.RegisterFiles(ctx, version.ID, []types.SkillFile{
		{RelativePath: "SKILL.md", FileHash: sha256Hex([]byte("content"))},
	}))

	installation, err := installSvc.Run(ctx, InstallInput{SkillID: skill.ID, ProfileID: "filesystem"})
	require.NoError(t, err)

	uninstallSvc := NewUninstallService(repo, deploySvc, nil)
	require.NoError(t, uninstallSvc.Run(ctx, installation.ID))

	_, err = repo.GetInstallationByID(ctx, installation.ID)
	require.True(t, errors.Is(err, skillerr.ErrInstallationNotFound))
}

func TestUninstallService_Run_NotFound(t *testing.T) {
	_, repo, deploySvc, _ := newTestInstallService(t)
	uninstallSvc := NewUninstallService(repo, deploySvc, nil)
	err := uninstallSvc.Run(context.Background(), "does-not-exist")
	require.Error(t, err)
}
