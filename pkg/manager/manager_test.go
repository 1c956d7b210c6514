package manager

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenshield/skillcore/pkg/deploy"
	"github.com/agenshield/skillcore/pkg/events"
	"github.com/agenshield/skillcore/pkg/lifecycle"
	"github.com/agenshield/skillcore/pkg/storage"
	"github.com/agenshield/skillcore/pkg/types"
	"github.com/agenshield/skillcore/pkg/watcher"
)

func newTestManager(t *testing.T, externalBus *events.Bus) *Manager {
	t.Helper()
	ctx := context.Background()
	workspace := t.TempDir()

	m, err := New(ctx, Options{
		DatabasePath:   filepath.Join(t.TempDir(), "db.sqlite"),
		BackupDir:      t.TempDir(),
		DeployAdapters: []deploy.Adapter{deploy.NewFilesystemAdapter(workspace, "")},
		WatcherOptions: watcher.Options{DeployRoot: workspace, PollInterval: time.Hour},
		ExternalBus:    externalBus,
	})
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	return m
}

func TestManager_UploadInstallUninstall(t *testing.T) {
	m := newTestManager(t, nil)
	ctx := context.Background()

	skill, version, err := m.Upload(ctx, lifecycle.UploadInput{
		Name: "PDF Tools", Slug: "pdf-tools", Version: "1.0.0",
		Files: []types.FileContent{{RelativePath: "SKILL.md", Bytes: []byte("# PDF Tools")}},
		Source: types.SourceManual,
	})
	require.NoError(t, err)
	require.NotNil(t, skill)
	require.NotNil(t, version)

	inst, err := m.Install(ctx, lifecycle.InstallInput{SkillID: skill.ID, ProfileID: "filesystem"})
	require.NoError(t, err)
	assert.Equal(t, types.InstallActive, inst.Status)

	active, err := m.GetInstallations(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 1)

	require.NoError(t, m.Uninstall(ctx, inst.ID))

	active, err = m.GetInstallations(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestManager_BridgesInstallEventsToExternalBus(t *testing.T) {
	externalBus := events.NewBus()
	externalBus.Start()
	defer externalBus.Stop()
	sub := externalBus.Subscribe()

	m := newTestManager(t, externalBus)
	ctx := context.Background()

	skill, _, err := m.Upload(ctx, lifecycle.UploadInput{
		Name: "PDF Tools", Slug: "pdf-tools", Version: "1.0.0",
		Files: []types.FileContent{{RelativePath: "SKILL.md", Bytes: []byte("# PDF Tools")}},
		Source: types.SourceManual,
	})
	require.NoError(t, err)

	_, err = m.Install(ctx, lifecycle.InstallInput{SkillID: skill.ID, ProfileID: "filesystem"})
	require.NoError(t, err)

	var sawInstalled bool
	for i := 0; i < 50 && !sawInstalled; i++ {
		select {
		case e := <-sub:
			if string(e.Kind) == "skills:installed" {
				sawInstalled = true
			}
		case <-time.After(100 * time.Millisecond):
		}
	}
	assert.True(t, sawInstalled, "expected a bridged skills:installed event")
}
