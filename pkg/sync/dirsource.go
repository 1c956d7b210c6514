package sync

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DirectorySource is a Source Adapter over a directory of skill folders: one
// subdirectory per skill, its name doubling as the skill's slug. A skill
// folder may contain a manifest.yaml-free SKILL.md plus any number of
// supporting files; an optional INSTRUCTIONS.md holds agent-facing usage
// text, and optional tools.txt/bins.txt list one tool or binary name per
// line. This is the filesystem-drop Source Adapter referenced by the
// Sync Orchestrator's pluggable-source design: a human or a provisioning
// script lays skill folders down on disk, and syncing reconciles them the
// same way a remote marketplace source would.
type DirectorySource struct {
	id   string
	root string
}

// NewDirectorySource creates a DirectorySource scanning root for skill
// folders, identifying itself to the Sync Orchestrator as id.
func NewDirectorySource(id, root string) *DirectorySource {
	return &DirectorySource{id: id, root: root}
}

func (s *DirectorySource) ID() string { return s.id }

func (s *DirectorySource) IsAvailable(ctx context.Context) bool {
	info, err := os.Stat(s.root)
	return err == nil && info.IsDir()
}

func (s *DirectorySource) skillDirs() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("read source root %s: %w", s.root, err)
	}
	var slugs []string
	for _, e := range entries {
		if e.IsDir() {
			slugs = append(slugs, e.Name())
		}
	}
	sort.Strings(slugs)
	return slugs, nil
}

// GetSkillsFor ignores target: a DirectorySource reports the same desired
// set for every target, the way a shared host-wide skill drop would.
func (s *DirectorySource) GetSkillsFor(ctx context.Context, target string) ([]SkillDefinition, error) {
	slugs, err := s.skillDirs()
	if err != nil {
		return nil, err
	}

	defs := make([]SkillDefinition, 0, len(slugs))
	for _, slug := range slugs {
		files, err := s.GetSkillFiles(ctx, target, slug)
		if err != nil {
			return nil, err
		}
		if len(files) == 0 {
			continue
		}
		defs = append(defs, SkillDefinition{
			SkillID: slug,
			Name:    slug,
			Version: "1.0.0",
			SHA:     ContentHash(files),
			Files:   files,
			Trusted: true,
		})
	}
	return defs, nil
}

func (s *DirectorySource) GetSkillFiles(ctx context.Context, target, skillID string) ([]FileEntry, error) {
	skillDir := filepath.Join(s.root, skillID)
	var files []FileEntry
	err := filepath.Walk(skillDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		name := info.Name()
		if name == "INSTRUCTIONS.md" || name == "tools.txt" || name == "bins.txt" {
			return nil
		}
		rel, err := filepath.Rel(skillDir, path)
		if err != nil {
			return err
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		files = append(files, FileEntry{Name: filepath.ToSlash(rel), Content: content})
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read skill folder %s: %w", skillDir, err)
	}
	return files, nil
}

func (s *DirectorySource) GetInstructions(ctx context.Context, target, skillID string) (string, error) {
	b, err := os.ReadFile(filepath.Join(s.root, skillID, "INSTRUCTIONS.md"))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	return string(b), nil
}

func (s *DirectorySource) GetTools(ctx context.Context, target string) ([]string, error) {
	return s.readLinesAcrossSkills(target, "tools.txt")
}

func (s *DirectorySource) GetBins(ctx context.Context, target string) ([]string, error) {
	return s.readLinesAcrossSkills(target, "bins.txt")
}

func (s *DirectorySource) readLinesAcrossSkills(target, filename string) ([]string, error) {
	slugs, err := s.skillDirs()
	if err != nil {
		return nil, err
	}
	var out []string
	for _, slug := range slugs {
		b, err := os.ReadFile(filepath.Join(s.root, slug, filename))
		if err != nil {
			continue
		}
		for _, line := range strings.Split(string(b), "\n") {
			line = strings.TrimSpace(line)
			if line != "" {
				out = append(out, line)
			}
		}
	}
	return out, nil
}
