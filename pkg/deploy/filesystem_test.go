package deploy

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agenshield/skillcore/pkg/types"
)

func TestFilesystemAdapter_DeployFromFileContents(t *testing.T) {
	workspace := t.TempDir()
	adapter := NewFilesystemAdapter(workspace, "")

	skill := &types.Skill{ID: "s1", Slug: "pdf-tools"}
	version := &types.SkillVersion{ID: "v1", SkillID: "s1", ContentHash: "abc123"}
	files := []types.SkillFile{{RelativePath: "SKILL.md", FileHash: hashFileBytes([]byte("# Doc"))}}
	inst := &types.SkillInstallation{ID: "i1", TargetID: "pdf-tools"}

	result, err := adapter.Deploy(context.Background(), Context{
		Skill: skill, Version: version, Files: files, Installation: inst,
		FileContents: map[string][]byte{"SKILL.md": []byte("# Doc")},
	})
	require.NoError(t, err)
	require.Equal(t, filepath.Join(workspace, "pdf-tools"), result.DeployedPath)

	content, err := os.ReadFile(filepath.Join(workspace, "pdf-tools", "SKILL.md"))
	require.NoError(t, err)
	require.Equal(t, "# Doc", string(content))
}

func TestFilesystemAdapter_DeployWritesWrapper(t *testing.T) {
	workspace := t.TempDir()
	binDir := t.TempDir()
	adapter := NewFilesystemAdapter(workspace, binDir)

	skill := &types.Skill{ID: "s1", Slug: "pdf-tools"}
	version := &types.SkillVersion{ID: "v1", SkillID: "s1"}
	files := []types.SkillFile{{RelativePath: "SKILL.md", FileHash: hashFileBytes([]byte("content"))}}

	result, err := adapter.Deploy(context.Background(), Context{
		Skill: skill, Version: version, Files: files,
		FileContents: map[string][]byte{"SKILL.md": []byte("content")},
	})
	require.NoError(t, err)
	require.Equal(t, filepath.Join(binDir, "pdf-tools"), result.WrapperPath)

	info, err := os.Stat(result.WrapperPath)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o755), info.Mode().Perm())
}

func TestFilesystemAdapter_CheckIntegrity_DetectsAllCases(t *testing.T) {
	workspace := t.TempDir()
	adapter := NewFilesystemAdapter(workspace, "")

	deployedPath := filepath.Join(workspace, "pdf-tools")
	require.NoError(t, os.MkdirAll(deployedPath, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(deployedPath, "SKILL.md"), []byte("modified"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(deployedPath, "extra.txt"), []byte("surprise"), 0o644))

	version := &types.SkillVersion{ID: "v1", ContentHash: "expected-hash"}
	files := []types.SkillFile{
		{RelativePath: "SKILL.md", FileHash: hashFileBytes([]byte("original"))},
		{RelativePath: "missing.txt", FileHash: "deadbeef"},
	}
	inst := &types.SkillInstallation{ID: "i1", TargetID: "pdf-tools"}

	result, err := adapter.CheckIntegrity(context.Background(), inst, version, files)
	require.NoError(t, err)
	require.False(t, result.Intact)
	require.Contains(t, result.ModifiedFiles, "SKILL.md")
	require.Contains(t, result.MissingFiles, "missing.txt")
	require.Contains(t, result.UnexpectedFiles, "extra.txt")
}

func TestFilesystemAdapter_CheckIntegrity_Intact(t *testing.T) {
	workspace := t.TempDir()
	adapter := NewFilesystemAdapter(workspace, "")

	deployedPath := filepath.Join(workspace, "pdf-tools")
	require.NoError(t, os.MkdirAll(deployedPath, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(deployedPath, "SKILL.md"), []byte("original"), 0o644))

	version := &types.SkillVersion{ID: "v1"}
	files := []types.SkillFile{{RelativePath: "SKILL.md", FileHash: hashFileBytes([]byte("original"))}}
	inst := &types.SkillInstallation{ID: "i1", TargetID: "pdf-tools"}

	result, err := adapter.CheckIntegrity(context.Background(), inst, version, files)
	require.NoError(t, err)
	require.True(t, result.Intact)
	require.Empty(t, result.ModifiedFiles)
	require.Empty(t, result.MissingFiles)
	require.Empty(t, result.UnexpectedFiles)
}

func TestFilesystemAdapter_Undeploy(t *testing.T) {
	workspace := t.TempDir()
	adapter := NewFilesystemAdapter(workspace, "")

	deployedPath := filepath.Join(workspace, "pdf-tools")
	require.NoError(t, os.MkdirAll(deployedPath, 0o755))

	skill := &types.Skill{ID: "s1", Slug: "pdf-tools"}
	version := &types.SkillVersion{ID: "v1"}
	inst := &types.SkillInstallation{ID: "i1"}

	require.NoError(t, adapter.Undeploy(context.Background(), inst, version, skill))
	_, err := os.Stat(deployedPath)
	require.True(t, os.IsNotExist(err))
}

func TestFilesystemAdapter_CanDeploy(t *testing.T) {
	adapter := NewFilesystemAdapter(t.TempDir(), "")
	require.True(t, adapter.CanDeploy(""))
	require.True(t, adapter.CanDeploy("filesystem"))
	require.False(t, adapter.CanDeploy("kubernetes"))
}
