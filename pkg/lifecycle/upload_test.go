package lifecycle

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agenshield/skillcore/pkg/backup"
	"github.com/agenshield/skillcore/pkg/events"
	"github.com/agenshield/skillcore/pkg/storage"
	"github.com/agenshield/skillcore/pkg/types"
)

func TestUploadService_Run_CreatesSkillVersionAndBackup(t *testing.T) {
	repo, err := storage.Open(filepath.Join(t.TempDir(), "db.sqlite"))
	require.NoError(t, err)
	defer repo.Close()

	backupStore, err := backup.Open(t.TempDir())
	require.NoError(t, err)

	bus := events.NewBus()
	bus.Start()
	defer bus.Stop()

	svc := NewUploadService(repo, backupStore, bus)

	skill, version, err := svc.Run(context.Background(), UploadInput{
		Name: "PDF Tools", Slug: "pdf-tools", Version: "1.0.0",
		Files: []types.FileContent{
			{RelativePath: "SKILL.md", Bytes: []byte("# PDF Tools")},
		},
	})
	require.NoError(t, err)
	require.Equal(t, "pdf-tools", skill.Slug)
	require.NotEmpty(t, version.ContentHash)
	require.True(t, backupStore.HasBackup(version.ID))
}

func TestUploadService_Run_ReusesExistingSkillBySlug(t *testing.T) {
	repo, err := storage.Open(filepath.Join(t.TempDir(), "db.sqlite"))
	require.NoError(t, err)
	defer repo.Close()

	svc := NewUploadService(repo, nil, nil)

	skill1, _, err := svc.Run(context.Background(), UploadInput{
		Name: "PDF Tools", Slug: "pdf-tools", Version: "1.0.0",
		Files: []types.FileContent{{RelativePath: "SKILL.md", Bytes: []byte("v1")}},
	})
	require.NoError(t, err)

	skill2, version2, err := svc.Run(context.Background(), UploadInput{
		Name: "PDF Tools", Slug: "pdf-tools", Version: "2.0.0",
		Files: []types.FileContent{{RelativePath: "SKILL.md", Bytes: []byte("v2")}},
	})
	require.NoError(t, err)
	require.Equal(t, skill1.ID, skill2.ID)
	require.Equal(t, "2.0.0", version2.Version)
}
