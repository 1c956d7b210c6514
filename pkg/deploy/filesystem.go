package deploy

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/agenshield/skillcore/pkg/types"
)

// FilesystemAdapter deploys a version's files into {workspace}/{slug} on the
// local filesystem. It is the default adapter: CanDeploy("") is true. When a
// binDir is configured it also writes an executable wrapper script that
// execs into the deployed directory.
type FilesystemAdapter struct {
	id        string
	workspace string
	binDir    string // empty: no wrapper script
}

// NewFilesystemAdapter creates the reference workspace filesystem adapter.
func NewFilesystemAdapter(workspace, binDir string) *FilesystemAdapter {
	return &FilesystemAdapter{id: "filesystem", workspace: workspace, binDir: binDir}
}

func (a *FilesystemAdapter) ID() string          { return a.id }
func (a *FilesystemAdapter) DisplayName() string { return "Workspace Filesystem" }

func (a *FilesystemAdapter) CanDeploy(profileID string) bool {
	return profileID == "" || profileID == a.id
}

func (a *FilesystemAdapter) deployedPath(slug string) string {
	return filepath.Join(a.workspace, slug)
}

func hashFileBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func (a *FilesystemAdapter) Deploy(ctx context.Context, dc Context) (Result, error) {
	deployedPath := a.deployedPath(dc.Skill.Slug)
	if err := os.MkdirAll(deployedPath, 0o755); err != nil {
		return Result{}, fmt.Errorf("create deploy dir: %w", err)
	}

	if dc.FileContents != nil {
		for relPath, content := range dc.FileContents {
			if err := writeDeployedFile(deployedPath, relPath, content); err != nil {
				return Result{}, err
			}
		}
	} else {
		for _, f := range dc.Files {
			src := filepath.Join(dc.Version.FolderPath, filepath.FromSlash(f.RelativePath))
			content, err := os.ReadFile(src)
			if err != nil {
				return Result{}, fmt.Errorf("read source file %q: %w", f.RelativePath, err)
			}
			if err := writeDeployedFile(deployedPath, f.RelativePath, content); err != nil {
				return Result{}, err
			}
		}
	}

	result := Result{DeployedPath: deployedPath, DeployedHash: dc.Version.ContentHash}

	if a.binDir != "" {
		wrapperPath, err := a.writeWrapper(dc.Skill.Slug, deployedPath)
		if err != nil {
			return Result{}, fmt.Errorf("write wrapper script: %w", err)
		}
		result.WrapperPath = wrapperPath
	}

	return result, nil
}

func writeDeployedFile(deployedPath, relPath string, content []byte) error {
	dest := filepath.Join(deployedPath, filepath.FromSlash(relPath))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create subdir for %q: %w", relPath, err)
	}
	if err := os.WriteFile(dest, content, 0o644); err != nil {
		return fmt.Errorf("write %q: %w", relPath, err)
	}
	return nil
}

func (a *FilesystemAdapter) writeWrapper(slug, deployedPath string) (string, error) {
	wrapperPath := filepath.Join(a.binDir, slug)
	script := fmt.Sprintf("#!/bin/sh\ncd %q && exec \"$@\"\n", deployedPath)
	if err := os.MkdirAll(a.binDir, 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(wrapperPath, []byte(script), 0o755); err != nil {
		return "", err
	}
	return wrapperPath, nil
}

func (a *FilesystemAdapter) Undeploy(ctx context.Context, inst *types.SkillInstallation, version *types.SkillVersion, skill *types.Skill) error {
	if err := os.RemoveAll(a.deployedPath(skill.Slug)); err != nil {
		return fmt.Errorf("remove deployed dir: %w", err)
	}
	if inst.WrapperPath != "" {
		if err := os.Remove(inst.WrapperPath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove wrapper script: %w", err)
		}
	}
	return nil
}

// CheckIntegrity resolves the deployed directory from inst.TargetID, which
// InstallService.Run defaults to the owning skill's slug when it creates the
// installation — the same name Deploy derives deployedPath from.
func (a *FilesystemAdapter) CheckIntegrity(ctx context.Context, inst *types.SkillInstallation, version *types.SkillVersion, files []types.SkillFile) (IntegrityResult, error) {
	deployedPath := a.deployedPath(inst.TargetID)

	manifest := make(map[string]string, len(files))
	for _, f := range files {
		manifest[f.RelativePath] = f.FileHash
	}

	result := IntegrityResult{Intact: true, CurrentFileHashes: make(map[string]string)}

	for relPath, expectedHash := range manifest {
		full := filepath.Join(deployedPath, filepath.FromSlash(relPath))
		content, err := os.ReadFile(full)
		if err != nil {
			result.Intact = false
			result.MissingFiles = append(result.MissingFiles, relPath)
			continue
		}
		currentHash := hashFileBytes(content)
		result.CurrentFileHashes[relPath] = currentHash
		if currentHash != expectedHash {
			result.Intact = false
			result.ModifiedFiles = append(result.ModifiedFiles, relPath)
		}
	}

	_ = filepath.Walk(deployedPath, func(path string, info fs.FileInfo, err error) error {
		if err != nil || info == nil || info.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(deployedPath, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if _, known := manifest[rel]; !known {
			result.Intact = false
			result.UnexpectedFiles = append(result.UnexpectedFiles, rel)
		}
		return nil
	})

	result.ExpectedHash = version.ContentHash
	return result, nil
}
