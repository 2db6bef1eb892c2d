package stubserver

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mattjoyce/ctlstudio/internal/remote"
)

// Run states.
const (
	StatusPending    = "pending"
	StatusRunning    = "running"
	StatusCancelling = "cancelling"
	StatusCancelled  = "cancelled"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// runRecord is a run row plus the moment it completes on its own.
type runRecord struct {
	remote.RunStatus
	SettlesAt time.Time
}

// InsertRun records a new run.
func (s *Store) InsertRun(ctx context.Context, rec runRecord) error {
	errs, err := json.Marshal(nonNil(rec.Errors))
	if err != nil {
		return fmt.Errorf("encode run errors: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO runs (run_id, workspace_id, bundle_artifact_id, status, current_step, attempt, retry_count,
  canceled, started_at, settles_at, ended_at, errors, last_error)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`,
		rec.RunID, deref(rec.WorkspaceID), rec.BundleArtifactID, rec.Status, rec.CurrentStep, rec.Attempt,
		rec.RetryCount, rec.Canceled, rec.StartedAt, rec.SettlesAt.Format(time.RFC3339Nano), rec.EndedAt,
		string(errs), rec.LastError)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", rec.RunID, err)
	}
	return nil
}

// GetRun loads a run. A non-empty workspaceID scopes the lookup.
func (s *Store) GetRun(ctx context.Context, workspaceID, runID string) (*runRecord, error) {
	query := `
SELECT run_id, workspace_id, bundle_artifact_id, status, current_step, attempt, retry_count,
  canceled, started_at, settles_at, ended_at, errors, last_error
FROM runs WHERE run_id = ?`
	args := []any{runID}
	if workspaceID != "" {
		query += ` AND workspace_id = ?`
		args = append(args, workspaceID)
	}

	var (
		rec                            runRecord
		wsID                           string
		bundleID, step, ended, lastErr sql.NullString
		settles, errs                  string
	)
	err := s.db.QueryRowContext(ctx, query+";", args...).Scan(
		&rec.RunID, &wsID, &bundleID, &rec.Status, &step, &rec.Attempt, &rec.RetryCount,
		&rec.Canceled, &rec.StartedAt, &settles, &ended, &errs, &lastErr)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan run: %w", err)
	}
	rec.WorkspaceID = &wsID
	rec.BundleArtifactID = nullString(bundleID)
	rec.CurrentStep = nullString(step)
	rec.EndedAt = nullString(ended)
	rec.LastError = nullString(lastErr)
	if rec.SettlesAt, err = time.Parse(time.RFC3339Nano, settles); err != nil {
		return nil, fmt.Errorf("decode settles_at: %w", err)
	}
	if err := json.Unmarshal([]byte(errs), &rec.Errors); err != nil {
		return nil, fmt.Errorf("decode run errors: %w", err)
	}
	return &rec, nil
}

// UpdateRun persists the mutable run fields.
func (s *Store) UpdateRun(ctx context.Context, rec *runRecord) error {
	errs, err := json.Marshal(nonNil(rec.Errors))
	if err != nil {
		return fmt.Errorf("encode run errors: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
UPDATE runs SET status = ?, current_step = ?, canceled = ?, ended_at = ?, errors = ?, last_error = ?
WHERE run_id = ?;`,
		rec.Status, rec.CurrentStep, rec.Canceled, rec.EndedAt, string(errs), rec.LastError, rec.RunID)
	if err != nil {
		return fmt.Errorf("update run %s: %w", rec.RunID, err)
	}
	return nil
}

func nonNil(ss []string) []string {
	if ss == nil {
		return []string{}
	}
	return ss
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// --- LLM configs ---

// CreateLLMConfig stores a model configuration for workspaceID.
func (s *Store) CreateLLMConfig(ctx context.Context, workspaceID string, req remote.LLMConfigRequest) (*remote.LLMConfig, error) {
	cfg := remote.LLMConfig{
		ConfigID:              "llm-" + uuid.NewString()[:8],
		Model:                 req.Model,
		PromptTemplateVersion: req.PromptTemplateVersion,
		PromptVersion:         req.PromptVersion,
		CreatedAt:             s.timestamp(),
	}
	if cfg.PromptVersion == "" {
		cfg.PromptVersion = req.PromptTemplateVersion
	}
	if req.ModelID != "" {
		cfg.ModelID = &req.ModelID
	}
	if req.ModelVersion != "" {
		cfg.ModelVersion = &req.ModelVersion
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO llm_configs (config_id, workspace_id, model, prompt_template_version, prompt_version, model_id, model_version, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?);`,
		cfg.ConfigID, workspaceID, cfg.Model, cfg.PromptTemplateVersion, cfg.PromptVersion,
		cfg.ModelID, cfg.ModelVersion, cfg.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert llm config: %w", err)
	}
	return &cfg, nil
}

// ListLLMConfigs returns the workspace's configs, oldest first.
func (s *Store) ListLLMConfigs(ctx context.Context, workspaceID string) ([]remote.LLMConfig, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT config_id, model, prompt_template_version, prompt_version, model_id, model_version, created_at
FROM llm_configs WHERE workspace_id = ? ORDER BY created_at, config_id;`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list llm configs: %w", err)
	}
	defer rows.Close()

	out := []remote.LLMConfig{}
	for rows.Next() {
		cfg, err := scanLLMConfig(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *cfg)
	}
	return out, rows.Err()
}

// GetLLMConfig loads one config from workspaceID.
func (s *Store) GetLLMConfig(ctx context.Context, workspaceID, configID string) (*remote.LLMConfig, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT config_id, model, prompt_template_version, prompt_version, model_id, model_version, created_at
FROM llm_configs WHERE workspace_id = ? AND config_id = ?;`, workspaceID, configID)
	return scanLLMConfig(row)
}

func scanLLMConfig(row scanner) (*remote.LLMConfig, error) {
	var (
		cfg              remote.LLMConfig
		modelID, version sql.NullString
	)
	err := row.Scan(&cfg.ConfigID, &cfg.Model, &cfg.PromptTemplateVersion, &cfg.PromptVersion,
		&modelID, &version, &cfg.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("llm config: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan llm config: %w", err)
	}
	cfg.ModelID = nullString(modelID)
	cfg.ModelVersion = nullString(version)
	return &cfg, nil
}
