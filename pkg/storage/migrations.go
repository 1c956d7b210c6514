package storage

import (
	"database/sql"
	"fmt"
)

// Migrations apply in fixed numeric order; each is either applied or not,
// tracked by a row in schema_version. This is a deliberately dull,
// stable subsystem (spec §9's design notes call out migrations as "don't
// elaborate it").
const currentSchemaVersion = 1

func runMigrations(db *sql.DB) error {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at TEXT NOT NULL DEFAULT (datetime('now'))
		)
	`); err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	current := getSchemaVersion(db)

	if current < 1 {
		if err := migrateToV1(db); err != nil {
			return fmt.Errorf("migrate to v1: %w", err)
		}
	}

	return nil
}

func getSchemaVersion(db *sql.DB) int {
	var version int
	if err := db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&version); err != nil {
		return 0
	}
	return version
}

func setSchemaVersion(tx *sql.Tx, version int) error {
	_, err := tx.Exec(`INSERT INTO schema_version (version) VALUES (?)`, version)
	return err
}

// migrateToV1 creates the full skill lifecycle schema: skills, versions,
// files, installations, and the meta KV table, with cascading deletes from
// skill -> version -> file/installation per spec §3.
func migrateToV1(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	schema := `
		CREATE TABLE IF NOT EXISTS skills (
			id TEXT PRIMARY KEY,
			slug TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			author TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			tags TEXT NOT NULL DEFAULT '[]',
			source TEXT NOT NULL,
			remote_id TEXT NOT NULL DEFAULT '',
			is_public INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL DEFAULT (datetime('now')),
			updated_at TEXT NOT NULL DEFAULT (datetime('now'))
		);
		CREATE INDEX IF NOT EXISTS idx_skills_remote_id ON skills(remote_id);
		CREATE INDEX IF NOT EXISTS idx_skills_source ON skills(source);

		CREATE TABLE IF NOT EXISTS skill_versions (
			id TEXT PRIMARY KEY,
			skill_id TEXT NOT NULL REFERENCES skills(id) ON DELETE CASCADE,
			version TEXT NOT NULL,
			folder_path TEXT NOT NULL DEFAULT '',
			content_hash TEXT NOT NULL DEFAULT '',
			hash_updated_at TEXT,
			approval TEXT NOT NULL DEFAULT 'unknown',
			approved_at TEXT,
			trusted INTEGER NOT NULL DEFAULT 0,
			analysis_status TEXT NOT NULL DEFAULT 'pending',
			analysis_json TEXT NOT NULL DEFAULT '',
			analyzed_at TEXT,
			required_bins TEXT NOT NULL DEFAULT '[]',
			required_env TEXT NOT NULL DEFAULT '[]',
			extracted_commands TEXT NOT NULL DEFAULT '[]',
			metadata_json TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL DEFAULT (datetime('now')),
			UNIQUE(skill_id, version)
		);
		CREATE INDEX IF NOT EXISTS idx_versions_skill ON skill_versions(skill_id);
		CREATE INDEX IF NOT EXISTS idx_versions_analysis_status ON skill_versions(analysis_status);

		CREATE TABLE IF NOT EXISTS skill_files (
			id TEXT PRIMARY KEY,
			skill_version_id TEXT NOT NULL REFERENCES skill_versions(id) ON DELETE CASCADE,
			relative_path TEXT NOT NULL,
			file_hash TEXT NOT NULL,
			size_bytes INTEGER NOT NULL DEFAULT 0,
			UNIQUE(skill_version_id, relative_path)
		);
		CREATE INDEX IF NOT EXISTS idx_files_version ON skill_files(skill_version_id);

		CREATE TABLE IF NOT EXISTS skill_installations (
			id TEXT PRIMARY KEY,
			skill_version_id TEXT NOT NULL REFERENCES skill_versions(id) ON DELETE CASCADE,
			profile_id TEXT NOT NULL DEFAULT '',
			target_id TEXT NOT NULL DEFAULT '',
			user_username TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'pending',
			auto_update INTEGER NOT NULL DEFAULT 1,
			pinned_version TEXT NOT NULL DEFAULT '',
			wrapper_path TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL DEFAULT (datetime('now')),
			updated_at TEXT NOT NULL DEFAULT (datetime('now'))
		);
		CREATE INDEX IF NOT EXISTS idx_installations_version ON skill_installations(skill_version_id);
		CREATE INDEX IF NOT EXISTS idx_installations_status ON skill_installations(status);

		CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`
	if _, err := tx.Exec(schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	if err := setSchemaVersion(tx, 1); err != nil {
		return fmt.Errorf("set schema version: %w", err)
	}

	return tx.Commit()
}
