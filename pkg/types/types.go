// Package types defines the core entities of the skill lifecycle: skills,
// their content-addressed versions, the per-file manifest, installations
// that deploy a version to a target, and the value objects the services
// pass between each other.
package types

import "time"

// Source identifies where a Skill originated.
type Source string

const (
	SourceMarketplace Source = "marketplace"
	SourceManual      Source = "manual"
	SourceWatcher     Source = "watcher"
	SourceIntegration Source = "integration"
	SourceUnknown     Source = "unknown"
)

// Approval is the trust state of a SkillVersion.
type Approval string

const (
	ApprovalUnknown     Approval = "unknown"
	ApprovalApproved    Approval = "approved"
	ApprovalQuarantined Approval = "quarantined"
)

// AnalysisStatus is the lifecycle state of a version's content analysis.
type AnalysisStatus string

const (
	AnalysisPending  AnalysisStatus = "pending"
	AnalysisComplete AnalysisStatus = "complete"
	AnalysisError    AnalysisStatus = "error"
)

// InstallStatus is the lifecycle state of a SkillInstallation.
type InstallStatus string

const (
	InstallPending     InstallStatus = "pending"
	InstallActive      InstallStatus = "active"
	InstallDisabled    InstallStatus = "disabled"
	InstallQuarantined InstallStatus = "quarantined"
)

// PolicyAction is the watcher's response to a detected integrity violation.
type PolicyAction string

const (
	ActionReinstall  PolicyAction = "reinstall"
	ActionQuarantine PolicyAction = "quarantine"
)

// Skill is the logical identity of a named, agent-callable directory.
type Skill struct {
	ID          string
	Slug        string
	Name        string
	Author      string
	Description string
	Tags        []string
	Source      Source
	RemoteID    string // optional: foreign reference into the originating source
	IsPublic    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// SkillVersion is one content-addressed revision of a Skill.
type SkillVersion struct {
	ID                string
	SkillID           string
	Version           string // not parsed semantically by the core
	FolderPath        string // provenance / source path, never a deploy path
	ContentHash       string // SHA-256 over sorted per-file hashes, see storage.ComputeContentHash
	HashUpdatedAt     time.Time
	Approval          Approval
	ApprovedAt        *time.Time
	Trusted           bool
	AnalysisStatus    AnalysisStatus
	AnalysisJSON      string // opaque merged AnalysisResult, JSON-encoded
	AnalyzedAt        *time.Time
	RequiredBins      []string
	RequiredEnv       []string
	ExtractedCommands []string
	MetadataJSON      string
	CreatedAt         time.Time
}

// SkillFile is one entry in a SkillVersion's manifest.
type SkillFile struct {
	ID             string
	SkillVersionID string
	RelativePath   string // forward-slash normalized
	FileHash       string // SHA-256 of the file's bytes
	SizeBytes      int64
}

// SkillInstallation is a decision to deploy a specific version to a specific target.
type SkillInstallation struct {
	ID             string
	SkillVersionID string
	ProfileID      string // optional: routes to a deploy adapter; empty means default adapter
	TargetID       string
	UserUsername   string
	Status         InstallStatus
	AutoUpdate     bool
	PinnedVersion  string
	WrapperPath    string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// FileContent is a single file's relative path and raw bytes, used wherever
// the core passes an in-memory file set around (upload payloads, backup
// restores, sync-source definitions).
type FileContent struct {
	RelativePath string
	Bytes        []byte
}

// AdapterStatus is a single analyze adapter's verdict, ordered
// success < warning < error for worst-wins merging across adapters.
type AdapterStatus string

const (
	AdapterSuccess AdapterStatus = "success"
	AdapterWarning AdapterStatus = "warning"
	AdapterError   AdapterStatus = "error"
)

// AnalysisResult is the output of one analyze adapter, or the merged
// worst-wins result of every adapter that ran against a version.
type AnalysisResult struct {
	Status            AdapterStatus
	Data              any
	RequiredBins      []string
	RequiredEnv       []string
	ExtractedCommands []string
	Error             string
}

// Policy governs how the Integrity Watcher reacts to a detected violation.
// The zero value (empty strings) means "inherit from the process-wide
// default"; per-installation overrides merge field-wise over the default.
type Policy struct {
	OnModified PolicyAction
	OnDeleted  PolicyAction
}

// Merge returns a copy of p with empty fields filled in from def.
func (p Policy) Merge(def Policy) Policy {
	out := p
	if out.OnModified == "" {
		out.OnModified = def.OnModified
	}
	if out.OnDeleted == "" {
		out.OnDeleted = def.OnDeleted
	}
	return out
}

// DefaultPolicy is the process-wide fallback policy.
func DefaultPolicy() Policy {
	return Policy{OnModified: ActionReinstall, OnDeleted: ActionReinstall}
}
