package sync

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenshield/skillcore/pkg/backup"
	"github.com/agenshield/skillcore/pkg/deploy"
	"github.com/agenshield/skillcore/pkg/events"
	"github.com/agenshield/skillcore/pkg/lifecycle"
	"github.com/agenshield/skillcore/pkg/storage"
)

type fakeAdapter struct {
	id   string
	defs []SkillDefinition
}

func (a *fakeAdapter) ID() string { return a.id }
func (a *fakeAdapter) GetSkillsFor(ctx context.Context, target string) ([]SkillDefinition, error) {
	return a.defs, nil
}
func (a *fakeAdapter) GetTools(ctx context.Context, target string) ([]string, error)  { return nil, nil }
func (a *fakeAdapter) GetBins(ctx context.Context, target string) ([]string, error)   { return nil, nil }
func (a *fakeAdapter) GetSkillFiles(ctx context.Context, target, skillID string) ([]FileEntry, error) {
	return nil, nil
}
func (a *fakeAdapter) GetInstructions(ctx context.Context, target, skillID string) (string, error) {
	return "", nil
}
func (a *fakeAdapter) IsAvailable(ctx context.Context) bool { return true }

func newTestOrchestrator(t *testing.T) (*Orchestrator, storage.Repository) {
	t.Helper()
	repo, err := storage.Open(filepath.Join(t.TempDir(), "db.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	bus := events.NewBus()
	bus.Start()
	t.Cleanup(bus.Stop)

	backupStore, err := backup.Open(t.TempDir())
	require.NoError(t, err)

	deploySvc := deploy.NewService(repo, bus, []deploy.Adapter{deploy.NewFilesystemAdapter(t.TempDir(), "")}, backupStore.LoadFiles)
	uploadSvc := lifecycle.NewUploadService(repo, backupStore, bus)

	return NewOrchestrator(repo, deploySvc, uploadSvc, bus), repo
}

func TestSyncSource_Idempotent(t *testing.T) {
	orch, repo := newTestOrchestrator(t)
	ctx := context.Background()

	files := []FileEntry{{Name: "SKILL.md", Content: []byte("x")}}
	adapter := &fakeAdapter{id: "src-a", defs: []SkillDefinition{
		{SkillID: "x", Name: "X", Version: "1.0.0", SHA: ContentHash(files), Files: files, Trusted: true},
	}}

	result, err := orch.SyncSource(ctx, adapter, "env-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, result.Installed)
	assert.Empty(t, result.Updated)
	assert.Empty(t, result.Removed)
	assert.Empty(t, result.Errors)

	skill, err := repo.GetBySlug(ctx, "x")
	require.NoError(t, err)
	require.NotNil(t, skill)

	result2, err := orch.SyncSource(ctx, adapter, "env-1")
	require.NoError(t, err)
	assert.Empty(t, result2.Installed)
	assert.Empty(t, result2.Updated)
	assert.Empty(t, result2.Removed)
}

func TestSyncSource_DetectsContentChangeAndUpdates(t *testing.T) {
	orch, repo := newTestOrchestrator(t)
	ctx := context.Background()

	v1Files := []FileEntry{{Name: "SKILL.md", Content: []byte("v1")}}
	adapter := &fakeAdapter{id: "src-a", defs: []SkillDefinition{
		{SkillID: "x", Name: "X", Version: "1.0.0", SHA: ContentHash(v1Files), Files: v1Files, Trusted: true},
	}}
	_, err := orch.SyncSource(ctx, adapter, "env-1")
	require.NoError(t, err)

	v2Files := []FileEntry{{Name: "SKILL.md", Content: []byte("v2")}}
	adapter.defs[0].Version = "1.0.1"
	adapter.defs[0].SHA = ContentHash(v2Files)
	adapter.defs[0].Files = v2Files

	result, err := orch.SyncSource(ctx, adapter, "env-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, result.Updated)

	skill, err := repo.GetBySlug(ctx, "x")
	require.NoError(t, err)
	latest, err := repo.GetLatestVersion(ctx, skill.ID)
	require.NoError(t, err)
	assert.Equal(t, ContentHash(v2Files), latest.ContentHash)
}

func TestSyncSource_RemovesOrphans(t *testing.T) {
	orch, repo := newTestOrchestrator(t)
	ctx := context.Background()

	files := []FileEntry{{Name: "SKILL.md", Content: []byte("x")}}
	adapter := &fakeAdapter{id: "src-a", defs: []SkillDefinition{
		{SkillID: "x", Name: "X", Version: "1.0.0", SHA: ContentHash(files), Files: files, Trusted: true},
	}}
	_, err := orch.SyncSource(ctx, adapter, "env-1")
	require.NoError(t, err)

	adapter.defs = nil
	result, err := orch.SyncSource(ctx, adapter, "env-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, result.Removed)

	_, err = repo.GetBySlug(ctx, "x")
	assert.Error(t, err, "orphaned skill should have been deleted")
}

func TestContentHash_MatchesRepositoryContentHash(t *testing.T) {
	files := []FileEntry{
		{Name: "b.sh", Content: []byte("bbb")},
		{Name: "a.sh", Content: []byte("aaa")},
	}
	h1 := ContentHash(files)
	h2 := ContentHash([]FileEntry{files[1], files[0]})
	assert.Equal(t, h1, h2, "order of input files must not affect the canonical sha")
}
