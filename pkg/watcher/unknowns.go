package watcher

import (
	"context"
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/agenshield/skillcore/pkg/events"
	"github.com/agenshield/skillcore/pkg/storage"
	"github.com/agenshield/skillcore/pkg/types"
)

// dropMeta is the optional sidecar a drop may carry to declare its own
// identity. Absent a sidecar, the directory name becomes the slug and name,
// and the version falls back to 0.0.0.
type dropMeta struct {
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Version     string `json:"version"`
	Description string `json:"description"`
}

// scanForNewSkills walks every top-level directory under the deploy root
// that the Repository has no record of (or that exists but is not
// installed) and registers it as a new, quarantined version — untrusted
// until an operator approves it.
func (w *Watcher) scanForNewSkills(ctx context.Context) {
	entries, err := os.ReadDir(w.deployRoot)
	if err != nil {
		return
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		slug := entry.Name()
		if w.isSuppressed(slug) {
			continue
		}
		w.SuppressSlug(slug)
		w.registerDrop(ctx, slug)
		w.UnsuppressSlug(slug)
	}
}

func (w *Watcher) registerDrop(ctx context.Context, dirName string) {
	dropPath := filepath.Join(w.deployRoot, dirName)

	files, fileBytes, err := readDropFiles(dropPath)
	if err != nil || len(files) == 0 {
		return
	}

	contentHash := storage.ComputeContentHash(files)
	meta := readDropMeta(dropPath)
	slug := firstNonEmpty(meta.Slug, dirName)
	version := firstNonEmpty(meta.Version, "0.0.0")

	skill, err := w.repo.GetBySlug(ctx, slug)
	if err == nil && skill != nil {
		if w.skillHasActiveInstallation(ctx, skill) {
			// Already installed and tracked; a bare directory match with no
			// active installation falls through below to re-register it.
			return
		}
		if dropAlreadyQuarantined(ctx, w.repo, skill.ID, contentHash) {
			return
		}
	}

	if skill == nil || err != nil {
		skill, err = w.repo.CreateSkill(ctx, storage.CreateSkillInput{
			Slug:        slug,
			Name:        firstNonEmpty(meta.Name, slug),
			Description: meta.Description,
			Source:      types.SourceWatcher,
			IsPublic:    false,
		})
		if err != nil {
			return
		}
	}

	newVersion, err := w.repo.AddVersion(ctx, storage.AddVersionInput{
		SkillID:    skill.ID,
		Version:    version,
		FolderPath: dropPath,
		Trusted:    false,
	})
	if err != nil {
		return
	}

	if err := w.repo.RegisterFiles(ctx, newVersion.ID, files); err != nil {
		return
	}
	if _, err := w.repo.RecomputeContentHash(ctx, newVersion.ID); err != nil {
		return
	}
	if err := w.repo.QuarantineVersion(ctx, newVersion.ID); err != nil {
		return
	}

	if w.backupStore != nil {
		expected := make(map[string]string, len(files))
		for _, f := range files {
			expected[f.RelativePath] = f.FileHash
		}
		_ = w.backupStore.SaveFiles(newVersion.ID, fileContentList(fileBytes), expected)
	}

	quarantinePath := w.quarantineDropDirectory(dropPath, dirName)

	w.publish(&events.Event{
		Kind: events.KindWatcherSkillDetected, Slug: slug, VersionID: newVersion.ID,
		Details: map[string]any{
			"contentHash":    contentHash,
			"version":        version,
			"quarantinePath": quarantinePath,
			"reason":         "Skill not in approved list",
		},
	})
}

// quarantineDropDirectory moves (or removes) the raw drop so a second poll
// cycle doesn't re-detect the same directory, returning the path it ended
// up at ("" if it was removed outright with no quarantine root configured).
func (w *Watcher) quarantineDropDirectory(dropPath, slug string) string {
	dest, err := moveOrRemove(dropPath, w.quarantineRoot, slug)
	if err != nil {
		return ""
	}
	return dest
}

func dropAlreadyQuarantined(ctx context.Context, repo storage.Repository, skillID, contentHash string) bool {
	versions, err := repo.GetVersions(ctx, skillID)
	if err != nil {
		return false
	}
	for _, v := range versions {
		if v.Approval == types.ApprovalQuarantined && v.ContentHash == contentHash {
			return true
		}
	}
	return false
}

func readDropMeta(dropPath string) dropMeta {
	raw, err := os.ReadFile(filepath.Join(dropPath, "_meta.json"))
	if err != nil {
		return dropMeta{}
	}
	var m dropMeta
	_ = json.Unmarshal(raw, &m)
	return m
}

func readDropFiles(dropPath string) ([]types.SkillFile, map[string][]byte, error) {
	var files []types.SkillFile
	contents := make(map[string][]byte)

	err := filepath.Walk(dropPath, func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info == nil || info.IsDir() {
			return nil
		}
		if info.Name() == "_meta.json" {
			return nil
		}
		rel, relErr := filepath.Rel(dropPath, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		content, readErr := os.ReadFile(path)
		if readErr != nil {
			return nil
		}
		files = append(files, types.SkillFile{
			RelativePath: rel,
			FileHash:     storage.HashBytes(content),
			SizeBytes:    info.Size(),
		})
		contents[rel] = content
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return files, contents, nil
}

func fileContentList(m map[string][]byte) []types.FileContent {
	out := make([]types.FileContent, 0, len(m))
	for rel, b := range m {
		out = append(out, types.FileContent{RelativePath: rel, Bytes: b})
	}
	return out
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func deployedDirFor(deployRoot, slug string) string {
	return filepath.Join(deployRoot, slug)
}

// moveOrRemove relocates path under quarantineRoot/slug-<n> (de-duplicating
// on collision), or deletes it outright when no quarantine root is
// configured. Returns the final destination path ("" when removed outright).
func moveOrRemove(path, quarantineRoot, slug string) (string, error) {
	if quarantineRoot == "" {
		return "", os.RemoveAll(path)
	}
	if err := os.MkdirAll(quarantineRoot, 0o700); err != nil {
		return "", err
	}
	dest := filepath.Join(quarantineRoot, slug)
	for i := 1; ; i++ {
		if _, err := os.Stat(dest); os.IsNotExist(err) {
			break
		}
		dest = filepath.Join(quarantineRoot, slug) + "-" + strconv.Itoa(i)
	}
	if err := os.Rename(path, dest); err != nil {
		return "", err
	}
	return dest, nil
}
