// Package backup implements the Backup Store: a content-addressed,
// hash-verified blob store holding every registered skill version's file
// set, used as recovery ground truth by the integrity watcher's reinstall
// path (spec §4.3). It is the exclusive owner of the backup directory;
// nothing else writes there.
package backup

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/agenshield/skillcore/pkg/skillerr"
	"github.com/agenshield/skillcore/pkg/types"
)

// Store is the Backup Store. Root is laid out as root/<versionID>/<relativePath>,
// mirroring each version's file tree under a directory named by its id.
type Store struct {
	root string
}

// Open creates (if needed) and returns a Store rooted at dir. The directory
// is created mode 0700: backups hold the authoritative bytes for every
// installed skill, so only the daemon's own user may read or write them.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create backup root: %w", err)
	}
	return &Store{root: dir}, nil
}

func (s *Store) versionDir(versionID string) string {
	return filepath.Join(s.root, versionID)
}

func hashFile(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// SaveFiles atomically writes every file in files for versionID: each file
// is staged to a temp path in the destination directory and renamed into
// place, so a crash mid-write never leaves a partially-written backup file
// visible. expectedHashes maps relativePath to the registered fileHash; a
// byte stream that doesn't match its expected hash aborts the whole call
// before any file is renamed into place.
func (s *Store) SaveFiles(versionID string, files []types.FileContent, expectedHashes map[string]string) error {
	dir := s.versionDir(versionID)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create version backup dir: %w", err)
	}

	for _, f := range files {
		want, ok := expectedHashes[f.RelativePath]
		if !ok {
			return fmt.Errorf("no registered hash for %q: refusing to back up unregistered file", f.RelativePath)
		}
		if got := hashFile(f.Bytes); got != want {
			return fmt.Errorf("hash mismatch for %q: expected %s, got %s", f.RelativePath, want, got)
		}
	}

	for _, f := range files {
		dest := filepath.Join(dir, filepath.FromSlash(f.RelativePath))
		if err := os.MkdirAll(filepath.Dir(dest), 0o700); err != nil {
			return fmt.Errorf("create backup subdir for %q: %w", f.RelativePath, err)
		}
		tmp := dest + ".tmp-stage"
		if err := os.WriteFile(tmp, f.Bytes, 0o600); err != nil {
			return fmt.Errorf("stage %q: %w", f.RelativePath, err)
		}
		if err := os.Rename(tmp, dest); err != nil {
			os.Remove(tmp)
			return fmt.Errorf("commit %q: %w", f.RelativePath, err)
		}
	}

	return nil
}

// HasBackup reports whether a backup directory exists for versionID.
func (s *Store) HasBackup(versionID string) bool {
	info, err := os.Stat(s.versionDir(versionID))
	return err == nil && info.IsDir()
}

// LoadFiles returns every backed-up file for versionID, verified against
// expectedHashes. Any file whose on-disk SHA-256 no longer matches its
// registered fileHash fails the whole call with a BackupTamperError — a
// partially-trustworthy backup is treated as fully untrustworthy.
func (s *Store) LoadFiles(versionID string, expectedHashes map[string]string) (map[string][]byte, error) {
	dir := s.versionDir(versionID)
	out := make(map[string][]byte, len(expectedHashes))

	for relPath, want := range expectedHashes {
		full := filepath.Join(dir, filepath.FromSlash(relPath))
		b, err := os.ReadFile(full)
		if err != nil {
			return nil, &skillerr.BackupTamperError{VersionID: versionID, RelativePath: relPath}
		}
		if got := hashFile(b); got != want {
			return nil, &skillerr.BackupTamperError{VersionID: versionID, RelativePath: relPath}
		}
		out[relPath] = b
	}

	return out, nil
}

// LoadSkillMd is a convenience that returns the backed-up SKILL.md contents
// for versionID, verified the same way as LoadFiles, or ("", false) if no
// such backup entry exists.
func (s *Store) LoadSkillMd(versionID string, expectedHashes map[string]string) (string, bool, error) {
	var skillMdPath string
	for relPath := range expectedHashes {
		if strings.EqualFold(filepath.Base(relPath), "SKILL.md") {
			skillMdPath = relPath
			break
		}
	}
	if skillMdPath == "" {
		return "", false, nil
	}

	files, err := s.LoadFiles(versionID, map[string]string{skillMdPath: expectedHashes[skillMdPath]})
	if err != nil {
		return "", false, err
	}
	return string(files[skillMdPath]), true, nil
}

// DeleteBackup removes the entire backup directory for versionID. Callers
// must ensure no live installation still references versionID before
// calling this (spec §4.3 invariant d: backup lifetime >= any live
// installation's version).
func (s *Store) DeleteBackup(versionID string) error {
	if err := os.RemoveAll(s.versionDir(versionID)); err != nil {
		return fmt.Errorf("delete backup for version %q: %w", versionID, err)
	}
	return nil
}
