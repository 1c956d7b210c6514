package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"

	"github.com/agenshield/skillcore/pkg/types"
)

// sortFilesForHash orders files by RelativePath using Go's default
// lexicographic byte-wise string comparison. This is the one and only
// ordering used to compute a SkillVersion's content hash; every caller
// (RecomputeContentHash here, the sync orchestrator's desired-state hash)
// goes through this function so the two can never diverge.
func sortFilesForHash(files []types.SkillFile) []types.SkillFile {
	sorted := make([]types.SkillFile, len(files))
	copy(sorted, files)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].RelativePath < sorted[j].RelativePath
	})
	return sorted
}

// computeContentHash is the canonical SkillVersion content hash: sort files
// by relative path, concatenate their lowercase-hex fileHashes in that
// order, then SHA-256 the concatenation. Two versions with identical files
// produce the same hash regardless of upload order; an added or removed
// file, or a rename that changes the files' sorted order, changes it. Paths
// themselves are not hashed, so a rename that keeps the order does not.
func computeContentHash(files []types.SkillFile) string {
	sorted := sortFilesForHash(files)
	h := sha256.New()
	for _, f := range sorted {
		h.Write([]byte(f.FileHash))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// hashBytes is the per-file hash used when registering a SkillFile: plain
// SHA-256 over the file's bytes, lowercase hex.
func hashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// ComputeContentHash is the exported form of computeContentHash, for callers
// outside this package (the Integrity Watcher's unknown-drop registration,
// the Sync Orchestrator's desired-state comparison) that must derive the
// exact same content hash a Repository would assign.
func ComputeContentHash(files []types.SkillFile) string {
	return computeContentHash(files)
}

// HashBytes is the exported form of hashBytes.
func HashBytes(b []byte) string {
	return hashBytes(b)
}
