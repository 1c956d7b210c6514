package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	_ "modernc.org/sqlite"

	"github.com/agenshield/skillcore/pkg/skillerr"
	"github.com/agenshield/skillcore/pkg/types"
)

// SQLiteRepository implements Repository on top of modernc.org/sqlite, the
// pure-Go driver (no CGO). SQLite allows only one writer at a time; writeMu
// serializes this process's write statements so concurrent callers (e.g. the
// watcher's reinstall path racing an operator-initiated update) don't trip
// SQLITE_BUSY under load, on top of the busy_timeout pragma.
type SQLiteRepository struct {
	db      *sql.DB
	writeMu sync.Mutex
}

var _ Repository = (*SQLiteRepository)(nil)

// Open creates or opens a SQLite-backed Repository at dbPath, applying
// pragmas and running any pending migrations.
func Open(dbPath string) (*SQLiteRepository, error) {
	if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA temp_store=MEMORY",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("configure database (%s): %w", p, err)
		}
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error { return r.db.Close() }

func jsonList(v []string) string {
	if v == nil {
		v = []string{}
	}
	b, _ := json.Marshal(v)
	return string(b)
}

func parseList(s string) []string {
	if s == "" {
		return nil
	}
	var v []string
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil
	}
	return v
}

func timeOrNil(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTimePtr(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return nil
	}
	return &t
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

// CreateSkill inserts a new skill row. The caller is responsible for slug
// uniqueness checking via GetBySlug beforehand; the UNIQUE constraint is the
// backstop that turns a race into skillerr.ErrSlugConflict.
func (r *SQLiteRepository) CreateSkill(ctx context.Context, in CreateSkillInput) (*types.Skill, error) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	now := time.Now().UTC()
	id := uuid.NewString()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO skills (id, slug, name, author, description, tags, source, remote_id, is_public, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, id, in.Slug, in.Name, in.Author, in.Description, jsonList(in.Tags), string(in.Source), in.RemoteID, in.IsPublic,
		now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: skills.slug") {
			return nil, skillerr.SlugConflict(in.Slug)
		}
		return nil, fmt.Errorf("insert skill: %w", err)
	}

	return &types.Skill{
		ID: id, Slug: in.Slug, Name: in.Name, Author: in.Author, Description: in.Description,
		Tags: in.Tags, Source: in.Source, RemoteID: in.RemoteID, IsPublic: in.IsPublic,
		CreatedAt: now, UpdatedAt: now,
	}, nil
}

func (r *SQLiteRepository) AddVersion(ctx context.Context, in AddVersionInput) (*types.SkillVersion, error) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	now := time.Now().UTC()
	id := uuid.NewString()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO skill_versions (id, skill_id, version, folder_path, content_hash, trusted, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, id, in.SkillID, in.Version, in.FolderPath, in.ContentHash, in.Trusted, now.Format(time.RFC3339Nano))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: skill_versions.skill_id, skill_versions.version") {
			return nil, skillerr.VersionConflict(in.SkillID, in.Version)
		}
		return nil, fmt.Errorf("insert version: %w", err)
	}

	return &types.SkillVersion{
		ID: id, SkillID: in.SkillID, Version: in.Version, FolderPath: in.FolderPath,
		ContentHash: in.ContentHash, Approval: types.ApprovalUnknown, Trusted: in.Trusted,
		AnalysisStatus: types.AnalysisPending, CreatedAt: now,
	}, nil
}

func (r *SQLiteRepository) RegisterFiles(ctx context.Context, versionID string, files []types.SkillFile) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM skill_files WHERE skill_version_id = ?`, versionID); err != nil {
		return fmt.Errorf("clear existing files: %w", err)
	}

	for _, f := range files {
		id := f.ID
		if id == "" {
			id = uuid.NewString()
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO skill_files (id, skill_version_id, relative_path, file_hash, size_bytes)
			VALUES (?, ?, ?, ?, ?)
		`, id, versionID, f.RelativePath, f.FileHash, f.SizeBytes); err != nil {
			return fmt.Errorf("insert file %q: %w", f.RelativePath, err)
		}
	}

	return tx.Commit()
}

// RecomputeContentHash recomputes and persists a version's content hash from
// its currently registered files, using the single canonical algorithm in
// hash.go. Returns the new hash.
func (r *SQLiteRepository) RecomputeContentHash(ctx context.Context, versionID string) (string, error) {
	files, err := r.GetFiles(ctx, versionID)
	if err != nil {
		return "", err
	}

	hash := computeContentHash(files)

	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := r.db.ExecContext(ctx, `
		UPDATE skill_versions SET content_hash = ?, hash_updated_at = ? WHERE id = ?
	`, hash, now, versionID); err != nil {
		return "", fmt.Errorf("update content hash: %w", err)
	}
	return hash, nil
}

func (r *SQLiteRepository) UpdateFileHash(ctx context.Context, fileID, newHash string) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	_, err := r.db.ExecContext(ctx, `UPDATE skill_files SET file_hash = ? WHERE id = ?`, newHash, fileID)
	if err != nil {
		return fmt.Errorf("update file hash: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ApproveVersion(ctx context.Context, versionID string) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := r.db.ExecContext(ctx, `
		UPDATE skill_versions SET approval = ?, approved_at = ? WHERE id = ?
	`, string(types.ApprovalApproved), now, versionID)
	if err != nil {
		return fmt.Errorf("approve version: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) QuarantineVersion(ctx context.Context, versionID string) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	_, err := r.db.ExecContext(ctx, `
		UPDATE skill_versions SET approval = ? WHERE id = ?
	`, string(types.ApprovalQuarantined), versionID)
	if err != nil {
		return fmt.Errorf("quarantine version: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Install(ctx context.Context, in InstallInput) (*types.SkillInstallation, error) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	now := time.Now().UTC()
	id := uuid.NewString()
	status := in.Status
	if status == "" {
		status = types.InstallPending
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO skill_installations
			(id, skill_version_id, profile_id, target_id, user_username, status, auto_update, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, id, in.SkillVersionID, in.ProfileID, in.TargetID, in.UserUsername, string(status), in.AutoUpdate,
		now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("insert installation: %w", err)
	}

	return &types.SkillInstallation{
		ID: id, SkillVersionID: in.SkillVersionID, ProfileID: in.ProfileID, TargetID: in.TargetID,
		UserUsername: in.UserUsername, Status: status, AutoUpdate: in.AutoUpdate,
		CreatedAt: now, UpdatedAt: now,
	}, nil
}

func (r *SQLiteRepository) touchInstallation(ctx context.Context, query string, args ...any) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		id, _ := args[len(args)-1].(string)
		return skillerr.InstallationNotFound(id)
	}
	return nil
}

func (r *SQLiteRepository) UpdateInstallationStatus(ctx context.Context, id string, status types.InstallStatus) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	return r.touchInstallation(ctx, `
		UPDATE skill_installations SET status = ?, updated_at = ? WHERE id = ?
	`, string(status), now, id)
}

func (r *SQLiteRepository) UpdateWrapperPath(ctx context.Context, id, wrapperPath string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	return r.touchInstallation(ctx, `
		UPDATE skill_installations SET wrapper_path = ?, updated_at = ? WHERE id = ?
	`, wrapperPath, now, id)
}

func (r *SQLiteRepository) UpdateInstallationVersion(ctx context.Context, id, newVersionID string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	return r.touchInstallation(ctx, `
		UPDATE skill_installations SET skill_version_id = ?, updated_at = ? WHERE id = ?
	`, newVersionID, now, id)
}

func (r *SQLiteRepository) SetAutoUpdate(ctx context.Context, id string, autoUpdate bool) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	return r.touchInstallation(ctx, `
		UPDATE skill_installations SET auto_update = ?, updated_at = ? WHERE id = ?
	`, autoUpdate, now, id)
}

func (r *SQLiteRepository) PinVersion(ctx context.Context, id, version string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	return r.touchInstallation(ctx, `
		UPDATE skill_installations SET pinned_version = ?, updated_at = ? WHERE id = ?
	`, version, now, id)
}

func (r *SQLiteRepository) UnpinVersion(ctx context.Context, id string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	return r.touchInstallation(ctx, `
		UPDATE skill_installations SET pinned_version = '', updated_at = ? WHERE id = ?
	`, now, id)
}

func (r *SQLiteRepository) Uninstall(ctx context.Context, id string) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	res, err := r.db.ExecContext(ctx, `DELETE FROM skill_installations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete installation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return skillerr.InstallationNotFound(id)
	}
	return nil
}

func (r *SQLiteRepository) UpdateAnalysis(ctx context.Context, versionID string, in AnalysisUpdate) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	_, err := r.db.ExecContext(ctx, `
		UPDATE skill_versions SET analysis_status = ?, analysis_json = ?, analyzed_at = ? WHERE id = ?
	`, string(in.Status), in.JSON, timeOrNil(in.AnalyzedAt), versionID)
	if err != nil {
		return fmt.Errorf("update analysis: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteSkill(ctx context.Context, skillID string) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	res, err := r.db.ExecContext(ctx, `DELETE FROM skills WHERE id = ?`, skillID)
	if err != nil {
		return fmt.Errorf("delete skill: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return skillerr.SkillNotFound(skillID)
	}
	return nil
}

const skillColumns = `id, slug, name, author, description, tags, source, remote_id, is_public, created_at, updated_at`

func scanSkill(row interface{ Scan(...any) error }) (*types.Skill, error) {
	var s types.Skill
	var tags, source string
	var isPublic bool
	var createdAt, updatedAt string
	if err := row.Scan(&s.ID, &s.Slug, &s.Name, &s.Author, &s.Description, &tags, &source, &s.RemoteID,
		&isPublic, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	s.Tags = parseList(tags)
	s.Source = types.Source(source)
	s.IsPublic = isPublic
	s.CreatedAt = parseTime(createdAt)
	s.UpdatedAt = parseTime(updatedAt)
	return &s, nil
}

func (r *SQLiteRepository) GetBySlug(ctx context.Context, slug string) (*types.Skill, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+skillColumns+` FROM skills WHERE slug = ?`, slug)
	s, err := scanSkill(row)
	if err == sql.ErrNoRows {
		return nil, skillerr.SkillNotFound(slug)
	}
	if err != nil {
		return nil, fmt.Errorf("get skill by slug: %w", err)
	}
	return s, nil
}

func (r *SQLiteRepository) GetByRemoteID(ctx context.Context, remoteID string) (*types.Skill, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+skillColumns+` FROM skills WHERE remote_id = ?`, remoteID)
	s, err := scanSkill(row)
	if err == sql.ErrNoRows {
		return nil, skillerr.SkillNotFound(remoteID)
	}
	if err != nil {
		return nil, fmt.Errorf("get skill by remote id: %w", err)
	}
	return s, nil
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*types.Skill, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+skillColumns+` FROM skills WHERE id = ?`, id)
	s, err := scanSkill(row)
	if err == sql.ErrNoRows {
		return nil, skillerr.SkillNotFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("get skill by id: %w", err)
	}
	return s, nil
}

func (r *SQLiteRepository) GetAll(ctx context.Context, filter GetAllFilter) ([]*types.Skill, error) {
	query := `SELECT ` + skillColumns + ` FROM skills`
	var args []any
	if filter.Source != "" {
		query += ` WHERE source = ?`
		args = append(args, string(filter.Source))
	}
	query += ` ORDER BY created_at ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get all skills: %w", err)
	}
	defer rows.Close()

	var out []*types.Skill
	for rows.Next() {
		s, err := scanSkill(rows)
		if err != nil {
			return nil, fmt.Errorf("scan skill: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

const versionColumns = `id, skill_id, version, folder_path, content_hash, hash_updated_at, approval, approved_at,
	trusted, analysis_status, analysis_json, analyzed_at, required_bins, required_env, extracted_commands,
	metadata_json, created_at`

func scanVersion(row interface{ Scan(...any) error }) (*types.SkillVersion, error) {
	var v types.SkillVersion
	var hashUpdatedAt, approvedAt, analyzedAt sql.NullString
	var approval, analysisStatus, createdAt string
	var requiredBins, requiredEnv, extractedCommands string
	if err := row.Scan(&v.ID, &v.SkillID, &v.Version, &v.FolderPath, &v.ContentHash, &hashUpdatedAt,
		&approval, &approvedAt, &v.Trusted, &analysisStatus, &v.AnalysisJSON, &analyzedAt,
		&requiredBins, &requiredEnv, &extractedCommands, &v.MetadataJSON, &createdAt); err != nil {
		return nil, err
	}
	if hashUpdatedAt.Valid {
		v.HashUpdatedAt = parseTime(hashUpdatedAt.String)
	}
	v.Approval = types.Approval(approval)
	v.ApprovedAt = parseTimePtr(approvedAt)
	v.AnalysisStatus = types.AnalysisStatus(analysisStatus)
	v.AnalyzedAt = parseTimePtr(analyzedAt)
	v.RequiredBins = parseList(requiredBins)
	v.RequiredEnv = parseList(requiredEnv)
	v.ExtractedCommands = parseList(extractedCommands)
	v.CreatedAt = parseTime(createdAt)
	return &v, nil
}

func (r *SQLiteRepository) GetVersions(ctx context.Context, skillID string) ([]*types.SkillVersion, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+versionColumns+` FROM skill_versions WHERE skill_id = ? ORDER BY created_at ASC`, skillID)
	if err != nil {
		return nil, fmt.Errorf("get versions: %w", err)
	}
	defer rows.Close()

	var out []*types.SkillVersion
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan version: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) GetVersion(ctx context.Context, skillID, version string) (*types.SkillVersion, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+versionColumns+` FROM skill_versions WHERE skill_id = ? AND version = ?`, skillID, version)
	v, err := scanVersion(row)
	if err == sql.ErrNoRows {
		return nil, skillerr.VersionNotFound(skillID + "@" + version)
	}
	if err != nil {
		return nil, fmt.Errorf("get version: %w", err)
	}
	return v, nil
}

func (r *SQLiteRepository) GetLatestVersion(ctx context.Context, skillID string) (*types.SkillVersion, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+versionColumns+` FROM skill_versions WHERE skill_id = ? ORDER BY created_at DESC LIMIT 1`, skillID)
	v, err := scanVersion(row)
	if err == sql.ErrNoRows {
		return nil, skillerr.VersionNotFound(skillID)
	}
	if err != nil {
		return nil, fmt.Errorf("get latest version: %w", err)
	}
	return v, nil
}

func (r *SQLiteRepository) GetVersionByID(ctx context.Context, id string) (*types.SkillVersion, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+versionColumns+` FROM skill_versions WHERE id = ?`, id)
	v, err := scanVersion(row)
	if err == sql.ErrNoRows {
		return nil, skillerr.VersionNotFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("get version by id: %w", err)
	}
	return v, nil
}

func (r *SQLiteRepository) GetFiles(ctx context.Context, versionID string) ([]types.SkillFile, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, skill_version_id, relative_path, file_hash, size_bytes
		FROM skill_files WHERE skill_version_id = ? ORDER BY relative_path ASC
	`, versionID)
	if err != nil {
		return nil, fmt.Errorf("get files: %w", err)
	}
	defer rows.Close()

	var out []types.SkillFile
	for rows.Next() {
		var f types.SkillFile
		if err := rows.Scan(&f.ID, &f.SkillVersionID, &f.RelativePath, &f.FileHash, &f.SizeBytes); err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

const installationColumns = `id, skill_version_id, profile_id, target_id, user_username, status, auto_update,
	pinned_version, wrapper_path, created_at, updated_at`

func scanInstallation(row interface{ Scan(...any) error }) (*types.SkillInstallation, error) {
	var i types.SkillInstallation
	var status, createdAt, updatedAt string
	if err := row.Scan(&i.ID, &i.SkillVersionID, &i.ProfileID, &i.TargetID, &i.UserUsername, &status,
		&i.AutoUpdate, &i.PinnedVersion, &i.WrapperPath, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	i.Status = types.InstallStatus(status)
	i.CreatedAt = parseTime(createdAt)
	i.UpdatedAt = parseTime(updatedAt)
	return &i, nil
}

func (r *SQLiteRepository) GetInstallations(ctx context.Context, skillVersionID string) ([]*types.SkillInstallation, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+installationColumns+` FROM skill_installations WHERE skill_version_id = ? ORDER BY created_at ASC`, skillVersionID)
	if err != nil {
		return nil, fmt.Errorf("get installations: %w", err)
	}
	defer rows.Close()
	return scanInstallations(rows)
}

func (r *SQLiteRepository) GetAllInstallations(ctx context.Context) ([]*types.SkillInstallation, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+installationColumns+` FROM skill_installations ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("get all installations: %w", err)
	}
	defer rows.Close()
	return scanInstallations(rows)
}

func (r *SQLiteRepository) GetActiveInstallations(ctx context.Context) ([]*types.SkillInstallation, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+installationColumns+` FROM skill_installations WHERE status = ? ORDER BY created_at ASC`, string(types.InstallActive))
	if err != nil {
		return nil, fmt.Errorf("get active installations: %w", err)
	}
	defer rows.Close()
	return scanInstallations(rows)
}

func scanInstallations(rows *sql.Rows) ([]*types.SkillInstallation, error) {
	var out []*types.SkillInstallation
	for rows.Next() {
		i, err := scanInstallation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan installation: %w", err)
		}
		out = append(out, i)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) GetInstallationByID(ctx context.Context, id string) (*types.SkillInstallation, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+installationColumns+` FROM skill_installations WHERE id = ?`, id)
	i, err := scanInstallation(row)
	if err == sql.ErrNoRows {
		return nil, skillerr.InstallationNotFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("get installation by id: %w", err)
	}
	return i, nil
}

// GetAutoUpdatable returns installations for skillID whose auto_update is set
// and which are not pinned to a specific version — the candidate set for an
// update run (spec §4.8).
func (r *SQLiteRepository) GetAutoUpdatable(ctx context.Context, skillID string) ([]*types.SkillInstallation, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+installationColumnsPrefixed("si")+`
		FROM skill_installations si
		JOIN skill_versions sv ON sv.id = si.skill_version_id
		WHERE sv.skill_id = ? AND si.auto_update = 1 AND si.pinned_version = ''
		ORDER BY si.created_at ASC
	`, skillID)
	if err != nil {
		return nil, fmt.Errorf("get auto-updatable installations: %w", err)
	}
	defer rows.Close()
	return scanInstallations(rows)
}

func installationColumnsPrefixed(alias string) string {
	cols := strings.Split(installationColumns, ",")
	for i, c := range cols {
		cols[i] = alias + "." + strings.TrimSpace(c)
	}
	return strings.Join(cols, ", ")
}

func (r *SQLiteRepository) GetMeta(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get meta: %w", err)
	}
	return value, true, nil
}

func (r *SQLiteRepository) SetMeta(ctx context.Context, key, value string) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("set meta: %w", err)
	}
	return nil
}
