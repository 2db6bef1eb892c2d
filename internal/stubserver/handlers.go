package stubserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mattjoyce/ctlstudio/internal/events"
	"github.com/mattjoyce/ctlstudio/internal/remote"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// HealthzResponse is returned by GET /healthz.
type HealthzResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

type mountRequest struct {
	Path string `json:"path"`
}

type selectRequest struct {
	WorkspaceID string `json:"workspace_id"`
}

type diffRequest struct {
	BaseID    string `json:"base_id"`
	CompareID string `json:"compare_id"`
}

// PromptTemplates is the fixed template catalogue.
var PromptTemplates = []remote.PromptTemplate{
	{Version: "plan-v1", Title: "Plan synthesis", Description: ptr("Derive a change plan from the snapshot and bundle contracts.")},
	{Version: "plan-v2", Title: "Plan synthesis with rollback", Description: ptr("As plan-v1, with explicit rollback steps per effect.")},
}

func ptr(s string) *string { return &s }

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, HealthzResponse{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
	})
}

// --- Workspaces ---

func (s *Server) handleListWorkspaces(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.ListWorkspaces(r.Context())
	if err != nil {
		s.storeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, list)
}

func (s *Server) handleCurrentWorkspace(w http.ResponseWriter, r *http.Request) {
	ws, err := s.store.CurrentWorkspace(r.Context())
	if err != nil {
		s.storeError(w, err)
		return
	}
	// nil encodes as JSON null.
	respondJSON(w, http.StatusOK, ws)
}

func (s *Server) handleMountWorkspace(w http.ResponseWriter, r *http.Request) {
	var req mountRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Path) == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}
	ws, err := s.store.MountWorkspace(r.Context(), req.Path)
	if err != nil {
		s.storeError(w, err)
		return
	}
	s.logger.Info("workspace mounted", "workspace_id", ws.ID, "root", ws.Root)
	respondJSON(w, http.StatusOK, ws)
}

func (s *Server) handleSelectWorkspace(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if !decodeBody(w, r, &req) {
		return
	}
	ws, err := s.store.SelectWorkspace(r.Context(), req.WorkspaceID)
	if err != nil {
		s.storeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, ws)
}

// --- Artifacts ---

func (s *Server) handleListBundles(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspaceFor(w, r, r.URL.Query().Get("workspace_id"))
	if !ok {
		return
	}
	list, err := s.store.ListArtifacts(r.Context(), ws, TypeAgentBundle)
	if err != nil {
		s.storeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, list)
}

func (s *Server) handleListArtifacts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	artifactType := q.Get("artifact_type")
	if artifactType != "" && !ValidArtifactType(artifactType) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("%q is not a valid artifact type", artifactType))
		return
	}
	ws, ok := s.workspaceFor(w, r, q.Get("workspace_id"))
	if !ok {
		return
	}
	list, err := s.store.ListArtifacts(r.Context(), ws, artifactType)
	if err != nil {
		s.storeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetArtifact(w http.ResponseWriter, r *http.Request) {
	detail, err := s.store.GetArtifact(r.Context(), r.URL.Query().Get("workspace_id"), chi.URLParam(r, "artifactID"))
	if err != nil {
		s.storeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, detail)
}

func (s *Server) handleCreateArtifact(w http.ResponseWriter, r *http.Request) {
	var req remote.ArtifactPayload
	if !decodeBody(w, r, &req) {
		return
	}
	if !ValidArtifactType(req.ArtifactType) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("%q is not a valid artifact type", req.ArtifactType))
		return
	}
	ws, ok := s.workspaceFor(w, r, r.URL.Query().Get("workspace_id"))
	if !ok {
		return
	}
	detail, err := s.store.CreateArtifact(r.Context(), ws, req.ArtifactType, req.Body)
	if err != nil {
		s.storeError(w, err)
		return
	}
	s.logger.Info("artifact created", "artifact_id", detail.Entry.ArtifactID, "artifact_type", req.ArtifactType)
	respondJSON(w, http.StatusCreated, detail)
}

func (s *Server) handleUpdateArtifact(w http.ResponseWriter, r *http.Request) {
	var req remote.ArtifactPayload
	if !decodeBody(w, r, &req) {
		return
	}
	id := chi.URLParam(r, "artifactID")
	detail, err := s.store.UpdateArtifact(r.Context(), r.URL.Query().Get("workspace_id"), id, req.Body)
	if err != nil {
		s.storeError(w, err)
		return
	}
	if req.ArtifactType != "" && req.ArtifactType != detail.Entry.ArtifactType {
		s.logger.Warn("artifact type change ignored", "artifact_id", id, "requested", req.ArtifactType)
	}
	respondJSON(w, http.StatusOK, detail)
}

func (s *Server) handleDiffArtifacts(w http.ResponseWriter, r *http.Request) {
	var req diffRequest
	if !decodeBody(w, r, &req) {
		return
	}
	ws := r.URL.Query().Get("workspace_id")
	base, err := s.store.GetArtifact(r.Context(), ws, req.BaseID)
	if err != nil {
		s.storeError(w, err)
		return
	}
	compare, err := s.store.GetArtifact(r.Context(), ws, req.CompareID)
	if err != nil {
		s.storeError(w, err)
		return
	}

	// Compare the documents as plain JSON values.
	baseValue, err := toJSONValue(base.Document)
	if err != nil {
		s.storeError(w, err)
		return
	}
	compareValue, err := toJSONValue(compare.Document)
	if err != nil {
		s.storeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, remote.DiffResult{
		BaseID:    req.BaseID,
		CompareID: req.CompareID,
		Diff:      DiffDocuments(baseValue, compareValue),
	})
}

func toJSONValue(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return out, nil
}

// --- Reports & cycles ---

func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspaceFor(w, r, r.URL.Query().Get("workspace_id"))
	if !ok {
		return
	}
	list, err := s.store.ListReports(r.Context(), ws)
	if err != nil {
		s.storeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspaceFor(w, r, r.URL.Query().Get("workspace_id"))
	if !ok {
		return
	}
	runID := chi.URLParam(r, "runID")
	list, err := s.store.ListReports(r.Context(), ws)
	if err != nil {
		s.storeError(w, err)
		return
	}
	for _, report := range list {
		if report.RunID == runID {
			respondJSON(w, http.StatusOK, report.Report)
			return
		}
	}
	writeError(w, http.StatusNotFound, "report not found")
}

func (s *Server) handleRunCycle(w http.ResponseWriter, r *http.Request) {
	var req remote.CycleRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.BundleArtifactID == "" {
		writeError(w, http.StatusBadRequest, "bundle_artifact_id is required")
		return
	}
	if req.Mode == "" {
		req.Mode = remote.ModeLive
	}
	if req.Mode != remote.ModeLive && req.Mode != remote.ModeDry {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown mode %q", req.Mode))
		return
	}

	ctx := r.Context()
	ws, err := s.store.ResolveWorkspace(ctx, req.WorkspaceID)
	if err != nil {
		s.storeError(w, err)
		return
	}
	bundle, err := s.store.GetArtifact(ctx, ws.ID, req.BundleArtifactID)
	if err != nil || bundle.Entry.ArtifactType != TypeAgentBundle {
		writeError(w, http.StatusNotFound, "bundle not registered")
		return
	}
	var llm *remote.LLMConfig
	if req.LLMConfigID != "" {
		if llm, err = s.store.GetLLMConfig(ctx, ws.ID, req.LLMConfigID); err != nil {
			s.storeError(w, err)
			return
		}
	}

	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()

	started := s.store.now()
	runID, err := s.allocateRunID(ctx, bundle.Entry.ArtifactID, req.RunID, started)
	if err != nil {
		s.storeError(w, err)
		return
	}
	run, err := s.runCycle(ctx, cycleInput{
		Workspace: ws,
		Bundle:    bundle,
		RunID:     runID,
		Mode:      req.Mode,
		DryRun:    req.DryRun,
		Approval:  req.ApprovalToken,
		LLM:       llm,
		Started:   started,
	})
	if err != nil {
		s.logger.Error("cycle failed", "run_id", runID, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := s.trackRun(ctx, ws.ID, bundle.Entry.ArtifactID, run, started); err != nil {
		s.storeError(w, err)
		return
	}

	s.logger.Info("cycle completed",
		"run_id", run.RunID,
		"workspace_id", ws.ID,
		"mode", req.Mode,
		"dry_run", req.DryRun,
		"success", run.Success)
	s.events.Publish(events.TypeRun, events.RunNotice{
		RunID:       run.RunID,
		Mode:        string(req.Mode),
		WorkspaceID: ws.ID,
		Success:     run.Success,
	})
	respondJSON(w, http.StatusOK, run)
}

// allocateRunID appends a counter when the derived id is already taken.
// Callers hold cycleMu.
func (s *Server) allocateRunID(ctx context.Context, bundleID, override string, at time.Time) (string, error) {
	base := makeRunID(bundleID, override, at)
	candidate := base
	for n := 2; ; n++ {
		taken, err := s.store.RunExists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, n)
	}
}

func (s *Server) trackRun(ctx context.Context, wsID, bundleID string, run *remote.CycleRun, started time.Time) error {
	rec := runRecord{
		RunStatus: remote.RunStatus{
			RunID:            run.RunID,
			WorkspaceID:      &wsID,
			BundleArtifactID: &bundleID,
			Attempt:          1,
			StartedAt:        started.Format(time.RFC3339Nano),
			Errors:           run.Errors,
		},
		SettlesAt: started.Add(s.config.Settle),
	}
	switch {
	case !run.Success:
		// A cycle that could not plan never runs.
		rec.SettlesAt = started
		settleAs(&rec, StatusFailed)
		if len(run.Errors) > 0 {
			last := run.Errors[len(run.Errors)-1]
			rec.LastError = &last
		}
	case s.config.Settle > 0:
		rec.Status = StatusRunning
		step := "execute"
		rec.CurrentStep = &step
	default:
		settle(&rec)
	}
	return s.store.InsertRun(ctx, rec)
}

// settle completes a run at its settle time.
func settle(rec *runRecord) {
	status := StatusCompleted
	if len(rec.Errors) > 0 {
		status = StatusFailed
	}
	settleAs(rec, status)
}

func settleAs(rec *runRecord, status string) {
	ended := rec.SettlesAt.Format(time.RFC3339Nano)
	rec.Status = status
	rec.CurrentStep = nil
	rec.EndedAt = &ended
}

// --- Runs ---

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	rec, err := s.loadRun(r.Context(), r.URL.Query().Get("workspace_id"), chi.URLParam(r, "runID"))
	if err != nil {
		s.storeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, rec.RunStatus)
}

// loadRun reads a run and settles it if its time has passed.
func (s *Server) loadRun(ctx context.Context, wsID, runID string) (*runRecord, error) {
	rec, err := s.store.GetRun(ctx, wsID, runID)
	if err != nil {
		return nil, err
	}
	if rec.Status == StatusRunning && !s.store.now().Before(rec.SettlesAt) {
		settle(rec)
		if err := s.store.UpdateRun(ctx, rec); err != nil {
			return nil, err
		}
		s.publishRunStatus(rec)
	}
	return rec, nil
}

func (s *Server) handleCancelRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()

	rec, err := s.loadRun(ctx, r.URL.Query().Get("workspace_id"), chi.URLParam(r, "runID"))
	if err != nil {
		s.storeError(w, err)
		return
	}
	switch rec.Status {
	case StatusRunning, StatusPending, StatusCancelling:
	default:
		writeError(w, http.StatusConflict, fmt.Sprintf("run is %s and cannot be cancelled", rec.Status))
		return
	}
	if rec.Canceled {
		writeError(w, http.StatusConflict, "run is already cancelled")
		return
	}

	ended := s.store.timestamp()
	reason := "cancelled by operator"
	rec.Status = StatusCancelled
	rec.Canceled = true
	rec.CurrentStep = nil
	rec.EndedAt = &ended
	rec.LastError = &reason
	if err := s.store.UpdateRun(ctx, rec); err != nil {
		s.storeError(w, err)
		return
	}
	s.logger.Info("run cancelled", "run_id", rec.RunID)
	s.publishRunStatus(rec)
	respondJSON(w, http.StatusOK, rec.RunStatus)
}

func (s *Server) publishRunStatus(rec *runRecord) {
	notice := events.RunStatusNotice{RunID: rec.RunID, Status: rec.Status, Canceled: rec.Canceled}
	if rec.LastError != nil {
		notice.Error = *rec.LastError
	}
	s.events.Publish(events.TypeRunStatus, notice)
}

// --- LLM ---

func (s *Server) handlePromptTemplates(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, PromptTemplates)
}

func (s *Server) handleListLLMConfigs(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspaceFor(w, r, r.URL.Query().Get("workspace_id"))
	if !ok {
		return
	}
	list, err := s.store.ListLLMConfigs(r.Context(), ws)
	if err != nil {
		s.storeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, list)
}

func (s *Server) handleCreateLLMConfig(w http.ResponseWriter, r *http.Request) {
	var req remote.LLMConfigRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Model) == "" || strings.TrimSpace(req.PromptTemplateVersion) == "" {
		writeError(w, http.StatusBadRequest, "model and prompt_template_version are required")
		return
	}
	ws, ok := s.workspaceFor(w, r, r.URL.Query().Get("workspace_id"))
	if !ok {
		return
	}
	cfg, err := s.store.CreateLLMConfig(r.Context(), ws, req)
	if err != nil {
		s.storeError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, cfg)
}

// --- helpers ---

// workspaceFor resolves the request's workspace, writing the error response
// itself when it cannot.
func (s *Server) workspaceFor(w http.ResponseWriter, r *http.Request, id string) (string, bool) {
	ws, err := s.store.ResolveWorkspace(r.Context(), id)
	if err != nil {
		s.storeError(w, err)
		return "", false
	}
	return ws.ID, true
}

func (s *Server) storeError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	s.logger.Error("request failed", "error", err)
	writeError(w, http.StatusInternalServerError, err.Error())
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, ErrorResponse{Detail: message})
}
