package stubserver

import (
	"context"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"

	"github.com/mattjoyce/ctlstudio/internal/document"
	"github.com/mattjoyce/ctlstudio/internal/remote"
)

// ErrNotFound is returned when a row does not exist in the requested scope.
var ErrNotFound = errors.New("not found")

const currentWorkspaceKey = "current_workspace"

// Store persists controller state in SQLite.
type Store struct {
	db *sql.DB

	clockMu sync.RWMutex
	clock   func() time.Time
}

// NewStore wraps an already bootstrapped database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, clock: time.Now}
}

// SetClock replaces the time source. Tests use it to pin run ids and to
// move runs past their settle time.
func (s *Store) SetClock(clock func() time.Time) {
	s.clockMu.Lock()
	s.clock = clock
	s.clockMu.Unlock()
}

func (s *Store) now() time.Time {
	s.clockMu.RLock()
	defer s.clockMu.RUnlock()
	return s.clock().UTC()
}

func (s *Store) timestamp() string {
	return s.now().Format(time.RFC3339Nano)
}

// --- Workspaces ---

// MountWorkspace registers root as a workspace, or returns the existing one.
// The id is derived from the absolute root so mounting is idempotent.
func (s *Store) MountWorkspace(ctx context.Context, root string) (*remote.Workspace, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace root: %w", err)
	}
	ws := remote.Workspace{
		ID:        "ws-" + hashHex([]byte(abs))[:12],
		Name:      filepath.Base(abs),
		Root:      abs,
		Languages: []string{},
		Directories: map[string]string{
			"artifacts": filepath.Join(abs, ".tm", "artifacts"),
			"runs":      filepath.Join(abs, ".tm", "runs"),
		},
		CommitPolicy: remote.CommitPolicy{Required: []string{}, Optional: []string{}},
	}
	languages, _ := json.Marshal(ws.Languages)
	dirs, _ := json.Marshal(ws.Directories)
	policy, _ := json.Marshal(ws.CommitPolicy)
	_, err = s.db.ExecContext(ctx, `
INSERT INTO workspaces (workspace_id, name, root, languages, directories, commit_policy, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(workspace_id) DO NOTHING;`,
		ws.ID, ws.Name, ws.Root, string(languages), string(dirs), string(policy), s.timestamp())
	if err != nil {
		return nil, fmt.Errorf("insert workspace: %w", err)
	}
	return s.GetWorkspace(ctx, ws.ID)
}

// ListWorkspaces returns every mounted workspace ordered by name.
func (s *Store) ListWorkspaces(ctx context.Context) ([]remote.Workspace, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT workspace_id, name, root, languages, directories, commit_policy
FROM workspaces ORDER BY name, workspace_id;`)
	if err != nil {
		return nil, fmt.Errorf("list workspaces: %w", err)
	}
	defer rows.Close()

	out := []remote.Workspace{}
	for rows.Next() {
		ws, err := scanWorkspace(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *ws)
	}
	return out, rows.Err()
}

// GetWorkspace loads one workspace.
func (s *Store) GetWorkspace(ctx context.Context, id string) (*remote.Workspace, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT workspace_id, name, root, languages, directories, commit_policy
FROM workspaces WHERE workspace_id = ?;`, id)
	return scanWorkspace(row)
}

// CurrentWorkspace returns the selected workspace, or nil when none is.
func (s *Store) CurrentWorkspace(ctx context.Context) (*remote.Workspace, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?;`, currentWorkspaceKey).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read current workspace: %w", err)
	}
	ws, err := s.GetWorkspace(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return ws, err
}

// SelectWorkspace marks id as current.
func (s *Store) SelectWorkspace(ctx context.Context, id string) (*remote.Workspace, error) {
	ws, err := s.GetWorkspace(ctx, id)
	if err != nil {
		return nil, err
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO settings (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value;`, currentWorkspaceKey, id)
	if err != nil {
		return nil, fmt.Errorf("select workspace: %w", err)
	}
	return ws, nil
}

// ResolveWorkspace maps an optional workspace id to a workspace: an explicit
// id must exist; an empty id falls back to the current workspace.
func (s *Store) ResolveWorkspace(ctx context.Context, id string) (*remote.Workspace, error) {
	if id != "" {
		return s.GetWorkspace(ctx, id)
	}
	ws, err := s.CurrentWorkspace(ctx)
	if err != nil {
		return nil, err
	}
	if ws == nil {
		return nil, fmt.Errorf("no workspace selected: %w", ErrNotFound)
	}
	return ws, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanWorkspace(row scanner) (*remote.Workspace, error) {
	var (
		ws                          remote.Workspace
		languages, dirs, commitJSON string
	)
	err := row.Scan(&ws.ID, &ws.Name, &ws.Root, &languages, &dirs, &commitJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("workspace: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan workspace: %w", err)
	}
	if err := json.Unmarshal([]byte(languages), &ws.Languages); err != nil {
		return nil, fmt.Errorf("decode languages: %w", err)
	}
	if err := json.Unmarshal([]byte(dirs), &ws.Directories); err != nil {
		return nil, fmt.Errorf("decode directories: %w", err)
	}
	if err := json.Unmarshal([]byte(commitJSON), &ws.CommitPolicy); err != nil {
		return nil, fmt.Errorf("decode commit policy: %w", err)
	}
	return &ws, nil
}

// --- Artifacts ---

// Artifact type names.
const (
	TypeIntent      = "intent"
	TypeAgentBundle = "agent_bundle"
	TypeSnapshot    = "env_snapshot"
	TypePlan        = "proposed_change_plan"
	TypeExecution   = "execution_report"
)

var artifactTypes = map[string]string{
	TypeIntent:      "intent",
	TypeAgentBundle: "bundle",
	TypeSnapshot:    "snapshot",
	TypePlan:        "plan",
	TypeExecution:   "exec",
}

// ValidArtifactType reports whether t is a known artifact type.
func ValidArtifactType(t string) bool {
	_, ok := artifactTypes[t]
	return ok
}

// CreateArtifact stores a new artifact in workspaceID.
func (s *Store) CreateArtifact(ctx context.Context, workspaceID, artifactType string, body document.Document) (*remote.ArtifactDetail, error) {
	prefix, ok := artifactTypes[artifactType]
	if !ok {
		return nil, fmt.Errorf("unknown artifact type %q", artifactType)
	}
	id := prefix + "-" + uuid.NewString()[:8]
	if body == nil {
		body = document.Document{}
	}
	now := s.timestamp()
	entry := remote.ArtifactEntry{
		ArtifactID:   id,
		ArtifactType: artifactType,
		BodyHash:     bodyHash(body),
		Path:         filepath.Join(".tm", "artifacts", artifactType, id+".yaml"),
		Meta:         document.Document{"workspace_id": workspaceID},
		Version:      "v0",
		CreatedAt:    now,
		Status:       "candidate",
	}
	if intentID, ok := body.String("intent_id"); ok {
		entry.IntentID = &intentID
	}
	doc := remote.ArtifactDocument{Envelope: envelopeFor(entry), Body: body}
	if err := s.writeArtifact(ctx, workspaceID, entry, doc, now, true); err != nil {
		return nil, err
	}
	return &remote.ArtifactDetail{Entry: entry, Document: doc}, nil
}

// UpdateArtifact replaces the body of an existing artifact and rehashes it.
func (s *Store) UpdateArtifact(ctx context.Context, workspaceID, artifactID string, body document.Document) (*remote.ArtifactDetail, error) {
	detail, err := s.GetArtifact(ctx, workspaceID, artifactID)
	if err != nil {
		return nil, err
	}
	if body == nil {
		body = document.Document{}
	}
	entry := detail.Entry
	entry.BodyHash = bodyHash(body)
	if intentID, ok := body.String("intent_id"); ok {
		entry.IntentID = &intentID
	}
	doc := remote.ArtifactDocument{Envelope: envelopeFor(entry), Body: body}
	if err := s.writeArtifact(ctx, workspaceID, entry, doc, s.timestamp(), false); err != nil {
		return nil, err
	}
	return &remote.ArtifactDetail{Entry: entry, Document: doc}, nil
}

func (s *Store) writeArtifact(ctx context.Context, workspaceID string, entry remote.ArtifactEntry, doc remote.ArtifactDocument, now string, insert bool) error {
	meta, err := json.Marshal(entry.Meta)
	if err != nil {
		return fmt.Errorf("encode meta: %w", err)
	}
	docJSON, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode artifact: %w", err)
	}
	if insert {
		_, err = s.db.ExecContext(ctx, `
INSERT INTO artifacts (artifact_id, workspace_id, artifact_type, body_hash, path, meta, version, status, intent_id, document, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`,
			entry.ArtifactID, workspaceID, entry.ArtifactType, entry.BodyHash, entry.Path, string(meta),
			entry.Version, entry.Status, entry.IntentID, string(docJSON), entry.CreatedAt, now)
	} else {
		_, err = s.db.ExecContext(ctx, `
UPDATE artifacts SET body_hash = ?, intent_id = ?, document = ?, updated_at = ?
WHERE artifact_id = ?;`,
			entry.BodyHash, entry.IntentID, string(docJSON), now, entry.ArtifactID)
	}
	if err != nil {
		return fmt.Errorf("write artifact %s: %w", entry.ArtifactID, err)
	}
	return nil
}

// GetArtifact loads an artifact. A non-empty workspaceID scopes the lookup.
func (s *Store) GetArtifact(ctx context.Context, workspaceID, artifactID string) (*remote.ArtifactDetail, error) {
	query := `
SELECT artifact_id, workspace_id, artifact_type, body_hash, path, meta, version, status, intent_id, created_at, document
FROM artifacts WHERE artifact_id = ?`
	args := []any{artifactID}
	if workspaceID != "" {
		query += ` AND workspace_id = ?`
		args = append(args, workspaceID)
	}
	row := s.db.QueryRowContext(ctx, query+";", args...)

	var (
		entry         remote.ArtifactEntry
		wsID          string
		meta, docJSON string
		intentID      sql.NullString
	)
	err := row.Scan(&entry.ArtifactID, &wsID, &entry.ArtifactType, &entry.BodyHash, &entry.Path, &meta,
		&entry.Version, &entry.Status, &intentID, &entry.CreatedAt, &docJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("artifact %s: %w", artifactID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan artifact: %w", err)
	}
	if err := json.Unmarshal([]byte(meta), &entry.Meta); err != nil {
		return nil, fmt.Errorf("decode meta: %w", err)
	}
	if entry.Meta == nil {
		entry.Meta = document.Document{"workspace_id": wsID}
	}
	if intentID.Valid {
		entry.IntentID = &intentID.String
	}
	detail := &remote.ArtifactDetail{Entry: entry}
	if err := json.Unmarshal([]byte(docJSON), &detail.Document); err != nil {
		return nil, fmt.Errorf("decode artifact document: %w", err)
	}
	return detail, nil
}

// ListArtifacts returns entries in workspaceID, optionally of one type.
func (s *Store) ListArtifacts(ctx context.Context, workspaceID, artifactType string) ([]remote.ArtifactEntry, error) {
	query := `
SELECT artifact_id FROM artifacts WHERE workspace_id = ?`
	args := []any{workspaceID}
	if artifactType != "" {
		query += ` AND artifact_type = ?`
		args = append(args, artifactType)
	}
	rows, err := s.db.QueryContext(ctx, query+` ORDER BY created_at, artifact_id;`, args...)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan artifact id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]remote.ArtifactEntry, 0, len(ids))
	for _, id := range ids {
		detail, err := s.GetArtifact(ctx, workspaceID, id)
		if err != nil {
			return nil, err
		}
		out = append(out, detail.Entry)
	}
	return out, nil
}

func envelopeFor(entry remote.ArtifactEntry) document.Document {
	env := document.Document{
		"artifact_id":   entry.ArtifactID,
		"artifact_type": entry.ArtifactType,
		"version":       entry.Version,
		"status":        entry.Status,
		"created_at":    entry.CreatedAt,
		"body_hash":     entry.BodyHash,
	}
	if entry.IntentID != nil {
		env["intent_id"] = *entry.IntentID
	}
	return env
}

// bodyHash is the blake3 digest of the canonical JSON encoding of body.
// encoding/json sorts map keys, which makes the encoding canonical.
func bodyHash(body document.Document) string {
	data, err := json.Marshal(body)
	if err != nil {
		return ""
	}
	return hashHex(data)
}

func hashHex(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// --- Reports ---

// PutReport records a cycle report.
func (s *Store) PutReport(ctx context.Context, workspaceID string, summary remote.ReportSummary) error {
	report, err := json.Marshal(summary.Report)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO reports (run_id, workspace_id, report, report_path, gap_map, backlog, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?);`,
		summary.RunID, workspaceID, string(report), summary.ReportPath, summary.GapMap, summary.Backlog, s.timestamp())
	if err != nil {
		return fmt.Errorf("insert report %s: %w", summary.RunID, err)
	}
	return nil
}

// ListReports returns the workspace's reports ordered by run id.
func (s *Store) ListReports(ctx context.Context, workspaceID string) ([]remote.ReportSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT run_id, report, report_path, gap_map, backlog
FROM reports WHERE workspace_id = ? ORDER BY run_id;`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	out := []remote.ReportSummary{}
	for rows.Next() {
		var (
			summary         remote.ReportSummary
			report          string
			gapMap, backlog sql.NullString
		)
		if err := rows.Scan(&summary.RunID, &report, &summary.ReportPath, &gapMap, &backlog); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		if err := json.Unmarshal([]byte(report), &summary.Report); err != nil {
			return nil, fmt.Errorf("decode report %s: %w", summary.RunID, err)
		}
		summary.GapMap = nullString(gapMap)
		summary.Backlog = nullString(backlog)
		out = append(out, summary)
	}
	return out, rows.Err()
}

// RunExists reports whether runID is already taken.
func (s *Store) RunExists(ctx context.Context, runID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
SELECT (SELECT COUNT(1) FROM reports WHERE run_id = ?) + (SELECT COUNT(1) FROM runs WHERE run_id = ?);`,
		runID, runID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check run id: %w", err)
	}
	return n > 0, nil
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}

// --- Target state ---

// TargetState returns the applied state per target for a workspace.
func (s *Store) TargetState(ctx context.Context, workspaceID string) (map[string]any, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT target, state FROM target_state WHERE workspace_id = ?;`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("read target state: %w", err)
	}
	defer rows.Close()

	out := map[string]any{}
	for rows.Next() {
		var target, raw string
		if err := rows.Scan(&target, &raw); err != nil {
			return nil, fmt.Errorf("scan target state: %w", err)
		}
		var state any
		if err := json.Unmarshal([]byte(raw), &state); err != nil {
			return nil, fmt.Errorf("decode target state %s: %w", target, err)
		}
		out[target] = state
	}
	return out, rows.Err()
}

// ApplyTargetState records the state a live cycle applied.
func (s *Store) ApplyTargetState(ctx context.Context, workspaceID string, states map[string]any) error {
	now := s.timestamp()
	for target, state := range states {
		raw, err := json.Marshal(state)
		if err != nil {
			return fmt.Errorf("encode target state %s: %w", target, err)
		}
		_, err = s.db.ExecContext(ctx, `
INSERT INTO target_state (workspace_id, target, state, updated_at) VALUES (?, ?, ?, ?)
ON CONFLICT(workspace_id, target) DO UPDATE SET state = excluded.state, updated_at = excluded.updated_at;`,
			workspaceID, target, string(raw), now)
		if err != nil {
			return fmt.Errorf("apply target state %s: %w", target, err)
		}
	}
	return nil
}
