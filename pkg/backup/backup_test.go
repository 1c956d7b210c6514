package backup

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agenshield/skillcore/pkg/skillerr"
	"github.com/agenshield/skillcore/pkg/types"
)

func sha(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func TestSaveAndLoadFiles_RoundTrip(t *testing.T) {
	store, err := Open(t.TempDir())
	require.NoError(t, err)

	files := []types.FileContent{
		{RelativePath: "SKILL.md", Bytes: []byte("# My Skill")},
		{RelativePath: "scripts/run.sh", Bytes: []byte("#!/bin/sh\necho hi")},
	}
	hashes := map[string]string{
		"SKILL.md":       sha(files[0].Bytes),
		"scripts/run.sh": sha(files[1].Bytes),
	}

	require.NoError(t, store.SaveFiles("v1", files, hashes))
	require.True(t, store.HasBackup("v1"))

	loaded, err := store.LoadFiles("v1", hashes)
	require.NoError(t, err)
	require.Equal(t, files[0].Bytes, loaded["SKILL.md"])
	require.Equal(t, files[1].Bytes, loaded["scripts/run.sh"])
}

func TestSaveFiles_RejectsHashMismatch(t *testing.T) {
	store, err := Open(t.TempDir())
	require.NoError(t, err)

	files := []types.FileContent{{RelativePath: "SKILL.md", Bytes: []byte("content")}}
	hashes := map[string]string{"SKILL.md": "not-the-real-hash"}

	err = store.SaveFiles("v1", files, hashes)
	require.Error(t, err)
	require.False(t, store.HasBackup("v1") && fileExists(filepath.Join(store.versionDir("v1"), "SKILL.md")))
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func TestLoadFiles_DetectsTamper(t *testing.T) {
	store, err := Open(t.TempDir())
	require.NoError(t, err)

	files := []types.FileContent{{RelativePath: "SKILL.md", Bytes: []byte("original")}}
	hashes := map[string]string{"SKILL.md": sha(files[0].Bytes)}
	require.NoError(t, store.SaveFiles("v1", files, hashes))

	tamperedPath := filepath.Join(store.versionDir("v1"), "SKILL.md")
	require.NoError(t, os.WriteFile(tamperedPath, []byte("tampered"), 0o600))

	_, err = store.LoadFiles("v1", hashes)
	require.Error(t, err)
	var tamperErr *skillerr.BackupTamperError
	require.True(t, errors.As(err, &tamperErr))
	require.Equal(t, "v1", tamperErr.VersionID)
}

func TestLoadFiles_MissingFileIsTamper(t *testing.T) {
	store, err := Open(t.TempDir())
	require.NoError(t, err)

	_, err = store.LoadFiles("never-saved", map[string]string{"SKILL.md": "deadbeef"})
	require.Error(t, err)
	var tamperErr *skillerr.BackupTamperError
	require.True(t, errors.As(err, &tamperErr))
}

func TestLoadSkillMd(t *testing.T) {
	store, err := Open(t.TempDir())
	require.NoError(t, err)

	files := []types.FileContent{
		{RelativePath: "SKILL.md", Bytes: []byte("# Doc")},
		{RelativePath: "scripts/run.sh", Bytes: []byte("#!/bin/sh")},
	}
	hashes := map[string]string{
		"SKILL.md":       sha(files[0].Bytes),
		"scripts/run.sh": sha(files[1].Bytes),
	}
	require.NoError(t, store.SaveFiles("v1", files, hashes))

	content, ok, err := store.LoadSkillMd("v1", hashes)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "# Doc", content)
}

func TestLoadSkillMd_AbsentWhenNoManifest(t *testing.T) {
	store, err := Open(t.TempDir())
	require.NoError(t, err)

	_, ok, err := store.LoadSkillMd("v1", map[string]string{"scripts/run.sh": "deadbeef"})
	require.NoError(t, err)
	require.False(t, ok)
}

func TestDeleteBackup(t *testing.T) {
	store, err := Open(t.TempDir())
	require.NoError(t, err)

	files := []types.FileContent{{RelativePath: "SKILL.md", Bytes: []byte("x")}}
	hashes := map[string]string{"SKILL.md": sha(files[0].Bytes)}
	require.NoError(t, store.SaveFiles("v1", files, hashes))
	require.True(t, store.HasBackup("v1"))

	require.NoError(t, store.DeleteBackup("v1"))
	require.False(t, store.HasBackup("v1"))
}
