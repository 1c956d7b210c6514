package deploy

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agenshield/skillcore/pkg/events"
	"github.com/agenshield/skillcore/pkg/storage"
	"github.com/agenshield/skillcore/pkg/types"
)

func setupVersionWithFiles(t *testing.T, repo *storage.SQLiteRepository, content string) (*types.Skill, *types.SkillVersion) {
	t.Helper()
	ctx := context.Background()

	skill, err := repo.CreateSkill(ctx, storage.CreateSkillInput{Slug: "pdf-tools", Name: "PDF Tools", Source: types.SourceManual})
	require.NoError(t, err)
	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "SKILL.md"), []byte(content), 0o644))
	version, err := repo.AddVersion(ctx, storage.AddVersionInput{SkillID: skill.ID, Version: "1.0.0", FolderPath: src})
	require.NoError(t, err)

	require.NoError(t, repo.RegisterFiles(ctx, version.ID, []types.SkillFile{
		{RelativePath: "SKILL.md", FileHash: hashFileBytes([]byte(content))},
	}))
	_, err = repo.RecomputeContentHash(ctx, version.ID)
	require.NoError(t, err)

	version, err = repo.GetVersionByID(ctx, version.ID)
	require.NoError(t, err)
	return skill, version
}

func TestService_Deploy_NoMatchingAdapterIsNoop(t *testing.T) {
	repo, err := storage.Open(filepath.Join(t.TempDir(), "db.sqlite"))
	require.NoError(t, err)
	defer repo.Close()

	bus := events.NewBus()
	bus.Start()
	defer bus.Stop()

	adapter := NewFilesystemAdapter(t.TempDir(), "")
	svc := NewService(repo, bus, []Adapter{adapter}, nil)

	skill, version := setupVersionWithFiles(t, repo, "# Doc")
	inst, err := repo.Install(context.Background(), storage.InstallInput{
		SkillVersionID: version.ID, ProfileID: "nonexistent-adapter",
	})
	require.NoError(t, err)

	result, err := svc.Deploy(context.Background(), inst, version, skill)
	require.NoError(t, err)
	require.Nil(t, result)
}

func TestService_Deploy_Succeeds(t *testing.T) {
	repo, err := storage.Open(filepath.Join(t.TempDir(), "db.sqlite"))
	require.NoError(t, err)
	defer repo.Close()

	bus := events.NewBus()
	bus.Start()
	defer bus.Stop()

	workspace := t.TempDir()
	adapter := NewFilesystemAdapter(workspace, "")
	svc := NewService(repo, bus, []Adapter{adapter}, nil)

	sub := bus.Subscribe()
	defer bus.Unsubscribe(sub)

	skill, version := setupVersionWithFiles(t, repo, "# Doc")
	inst, err := repo.Install(context.Background(), storage.InstallInput{
		SkillVersionID: version.ID, ProfileID: "filesystem", TargetID: skill.Slug,
	})
	require.NoError(t, err)

	result, err := svc.Deploy(context.Background(), inst, version, skill)
	require.NoError(t, err)
	require.NotNil(t, result)
	require.Equal(t, filepath.Join(workspace, "pdf-tools"), result.DeployedPath)

	var sawCompleted bool
	for i := 0; i < 10; i++ {
		select {
		case e := <-sub:
			if e.Kind == events.KindDeployCompleted {
				sawCompleted = true
			}
		default:
		}
	}
	require.True(t, sawCompleted)
}
