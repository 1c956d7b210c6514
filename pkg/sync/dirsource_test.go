package sync

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSkillFolder(t *testing.T, root, slug string, files map[string]string) {
	t.Helper()
	dir := filepath.Join(root, slug)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
}

func TestDirectorySource_GetSkillsFor_ListsEachSubdirAsASkill(t *testing.T) {
	root := t.TempDir()
	writeSkillFolder(t, root, "pdf-tools", map[string]string{"SKILL.md": "# PDF Tools"})
	writeSkillFolder(t, root, "csv-tools", map[string]string{"SKILL.md": "# CSV Tools"})

	src := NewDirectorySource("local-drop", root)
	defs, err := src.GetSkillsFor(context.Background(), "agent-1")
	require.NoError(t, err)
	require.Len(t, defs, 2)
	assert.Equal(t, "csv-tools", defs[0].SkillID)
	assert.Equal(t, "pdf-tools", defs[1].SkillID)
	assert.NotEmpty(t, defs[0].SHA)
}

func TestDirectorySource_GetSkillsFor_ExcludesSidecarFiles(t *testing.T) {
	root := t.TempDir()
	writeSkillFolder(t, root, "pdf-tools", map[string]string{
		"SKILL.md":        "# PDF Tools",
		"INSTRUCTIONS.md": "use carefully",
		"tools.txt":       "pdftotext\n",
	})

	src := NewDirectorySource("local-drop", root)
	files, err := src.GetSkillFiles(context.Background(), "agent-1", "pdf-tools")
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "SKILL.md", files[0].Name)
}

func TestDirectorySource_GetInstructionsAndTools(t *testing.T) {
	root := t.TempDir()
	writeSkillFolder(t, root, "pdf-tools", map[string]string{
		"SKILL.md":        "# PDF Tools",
		"INSTRUCTIONS.md": "use carefully",
		"tools.txt":       "pdftotext\npdfinfo\n",
		"bins.txt":        "pdftotext\n",
	})

	src := NewDirectorySource("local-drop", root)
	ctx := context.Background()

	instructions, err := src.GetInstructions(ctx, "agent-1", "pdf-tools")
	require.NoError(t, err)
	assert.Equal(t, "use carefully", instructions)

	tools, err := src.GetTools(ctx, "agent-1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"pdftotext", "pdfinfo"}, tools)

	bins, err := src.GetBins(ctx, "agent-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"pdftotext"}, bins)
}

func TestDirectorySource_IsAvailable(t *testing.T) {
	root := t.TempDir()
	src := NewDirectorySource("local-drop", root)
	assert.True(t, src.IsAvailable(context.Background()))

	missing := NewDirectorySource("local-drop", filepath.Join(root, "does-not-exist"))
	assert.False(t, missing.IsAvailable(context.Background()))
}
