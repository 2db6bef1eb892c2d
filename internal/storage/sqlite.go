// Package storage owns the SQLite database behind the stub controller.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// OpenSQLite opens (and creates if needed) the SQLite database at path and
// ensures the controller tables exist.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is empty")
	}
	if err := checkLocalFilesystem(path); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer keeps cycle writes serialized without SQLITE_BUSY churn.
	db.SetMaxOpenConns(1)

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	for _, pragma := range []string{
		"PRAGMA foreign_keys = ON;",
		"PRAGMA busy_timeout = 5000;",
		"PRAGMA journal_mode = WAL;",
	} {
		if _, err := db.ExecContext(pctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}
	if err := BootstrapSQLite(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// BootstrapSQLite creates tables and indexes if missing.
func BootstrapSQLite(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS workspaces (
  workspace_id  TEXT PRIMARY KEY,
  name          TEXT NOT NULL,
  root          TEXT NOT NULL UNIQUE,
  languages     JSON NOT NULL DEFAULT '[]',
  directories   JSON NOT NULL DEFAULT '{}',
  commit_policy JSON NOT NULL DEFAULT '{}',
  created_at    TEXT NOT NULL
);`,
		`CREATE TABLE IF NOT EXISTS settings (
  key   TEXT PRIMARY KEY,
  value TEXT NOT NULL
);`,
		`CREATE TABLE IF NOT EXISTS artifacts (
  artifact_id   TEXT PRIMARY KEY,
  workspace_id  TEXT NOT NULL REFERENCES workspaces(workspace_id),
  artifact_type TEXT NOT NULL,
  body_hash     TEXT NOT NULL,
  path          TEXT NOT NULL,
  meta          JSON NOT NULL DEFAULT '{}',
  version       TEXT NOT NULL,
  status        TEXT NOT NULL,
  intent_id     TEXT,
  document      JSON NOT NULL,
  created_at    TEXT NOT NULL,
  updated_at    TEXT NOT NULL
);`,
		`CREATE TABLE IF NOT EXISTS reports (
  run_id       TEXT PRIMARY KEY,
  workspace_id TEXT NOT NULL REFERENCES workspaces(workspace_id),
  report       JSON NOT NULL,
  report_path  TEXT NOT NULL,
  gap_map      TEXT,
  backlog      TEXT,
  created_at   TEXT NOT NULL
);`,
		`CREATE TABLE IF NOT EXISTS runs (
  run_id             TEXT PRIMARY KEY,
  workspace_id       TEXT NOT NULL REFERENCES workspaces(workspace_id),
  bundle_artifact_id TEXT,
  status             TEXT NOT NULL,
  current_step       TEXT,
  attempt            INTEGER NOT NULL DEFAULT 1,
  retry_count        INTEGER NOT NULL DEFAULT 0,
  canceled           INTEGER NOT NULL DEFAULT 0,
  started_at         TEXT NOT NULL,
  settles_at         TEXT NOT NULL,
  ended_at           TEXT,
  errors             JSON NOT NULL DEFAULT '[]',
  last_error         TEXT
);`,
		`CREATE TABLE IF NOT EXISTS llm_configs (
  config_id               TEXT PRIMARY KEY,
  workspace_id            TEXT NOT NULL REFERENCES workspaces(workspace_id),
  model                   TEXT NOT NULL,
  prompt_template_version TEXT NOT NULL,
  prompt_version          TEXT NOT NULL,
  model_id                TEXT,
  model_version           TEXT,
  created_at              TEXT NOT NULL
);`,
		`CREATE TABLE IF NOT EXISTS target_state (
  workspace_id TEXT NOT NULL REFERENCES workspaces(workspace_id),
  target       TEXT NOT NULL,
  state        JSON NOT NULL,
  updated_at   TEXT NOT NULL,
  PRIMARY KEY (workspace_id, target)
);`,
		`CREATE INDEX IF NOT EXISTS artifacts_workspace_type_idx ON artifacts(workspace_id, artifact_type);`,
		`CREATE INDEX IF NOT EXISTS reports_workspace_idx ON reports(workspace_id, run_id);`,
		`CREATE INDEX IF NOT EXISTS llm_configs_workspace_idx ON llm_configs(workspace_id, created_at);`,
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("bootstrap sqlite: %w", err)
		}
	}
	return nil
}
