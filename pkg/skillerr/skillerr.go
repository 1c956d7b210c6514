// Package skillerr defines the error taxonomy of the skill lifecycle core
// (spec §7). Each kind is a sentinel wrapped with context via fmt.Errorf's
// %w verb, inspected with errors.Is/errors.As — never a bare string
// comparison, and never a panic across a package boundary.
package skillerr

import (
	"errors"
	"fmt"
)

// Sentinel kinds. Compare with errors.Is, not equality.
var (
	ErrSlugConflict         = errors.New("slug conflict")
	ErrVersionConflict      = errors.New("version conflict")
	ErrSkillNotFound        = errors.New("skill not found")
	ErrVersionNotFound      = errors.New("version not found")
	ErrInstallationNotFound = errors.New("installation not found")
	ErrRemoteSkillNotFound  = errors.New("remote skill not found")
)

// SlugConflict wraps ErrSlugConflict with the offending slug.
func SlugConflict(slug string) error {
	return fmt.Errorf("%w: %q", ErrSlugConflict, slug)
}

// VersionConflict wraps ErrVersionConflict with the offending (skillID, version) pair.
func VersionConflict(skillID, version string) error {
	return fmt.Errorf("%w: skill %q version %q", ErrVersionConflict, skillID, version)
}

// SkillNotFound wraps ErrSkillNotFound with the lookup key.
func SkillNotFound(key string) error {
	return fmt.Errorf("%w: %q", ErrSkillNotFound, key)
}

// VersionNotFound wraps ErrVersionNotFound with the lookup key.
func VersionNotFound(key string) error {
	return fmt.Errorf("%w: %q", ErrVersionNotFound, key)
}

// InstallationNotFound wraps ErrInstallationNotFound with the installation id.
func InstallationNotFound(id string) error {
	return fmt.Errorf("%w: %q", ErrInstallationNotFound, id)
}

// RemoteAPIError is any non-2xx response from the remote marketplace or
// analyzer. It carries the HTTP status code and response body so callers
// can decide whether to retry.
type RemoteAPIError struct {
	StatusCode int
	Body       string
}

func (e *RemoteAPIError) Error() string {
	return fmt.Sprintf("remote API error: status %d: %s", e.StatusCode, e.Body)
}

// AnalysisError is produced by an analyze adapter. Where possible it is
// captured into an AnalysisResult{Status: error, Error: message} instead of
// being returned as a Go error (spec §4.5/§7).
type AnalysisError struct {
	StatusCode int // 0 if not HTTP-derived
	Message    string
}

func (e *AnalysisError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("analysis error (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("analysis error: %s", e.Message)
}

// BackupTamperError means a backup's on-disk bytes no longer match the
// registered fileHash. Fatal for the reinstall attempt that discovered it;
// operator intervention required.
type BackupTamperError struct {
	VersionID    string
	RelativePath string
}

func (e *BackupTamperError) Error() string {
	return fmt.Sprintf("backup tamper detected: version %q file %q no longer matches its registered hash", e.VersionID, e.RelativePath)
}

// ConfigTamperError indicates the vault-supplied config-integrity HMAC did
// not verify. The collaborating control plane falls back to a deny-all
// policy set; this core only needs to be able to recognize and propagate
// the condition.
type ConfigTamperError struct {
	Reason string
}

func (e *ConfigTamperError) Error() string {
	return fmt.Sprintf("config integrity check failed: %s", e.Reason)
}
