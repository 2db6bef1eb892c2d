// Package studio coordinates the controller workflow for one operator.
//
// A Session owns the client-side state of the wizard: the current workspace,
// the bundle and model selections, the preview and live runs, the approval
// token, the reconciled review, and the run history. The remote controller
// owns everything durable; the session only sequences calls against it and
// enforces the order in which they may happen.
//
// Mutating operations (preview, live run, replay, workspace changes) are
// mutually exclusive. A second one issued while the first is in flight fails
// immediately with ErrBusy rather than queueing.
package studio

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/mattjoyce/ctlstudio/internal/events"
	"github.com/mattjoyce/ctlstudio/internal/reconcile"
	"github.com/mattjoyce/ctlstudio/internal/remote"
)

//go:generate mockgen -destination=mocks/mock_remote.go -package=mocks github.com/mattjoyce/ctlstudio/internal/studio Remote

// Remote is the controller API surface the session drives.
type Remote interface {
	ListWorkspaces(ctx context.Context) ([]remote.Workspace, error)
	CurrentWorkspace(ctx context.Context) (*remote.Workspace, error)
	MountWorkspace(ctx context.Context, path string) (*remote.Workspace, error)
	SelectWorkspace(ctx context.Context, workspaceID string) (*remote.Workspace, error)
	ListBundles(ctx context.Context, workspaceID string) ([]remote.Bundle, error)
	RunCycle(ctx context.Context, req remote.CycleRequest) (*remote.CycleRun, error)
	ListReports(ctx context.Context, workspaceID string) ([]remote.ReportSummary, error)
	GetArtifactDocument(ctx context.Context, artifactID, workspaceID string) (*remote.ArtifactDocument, error)
	DiffArtifacts(ctx context.Context, baseID, compareID, workspaceID string) (*remote.DiffResult, error)
	ListPromptTemplates(ctx context.Context, workspaceID string) ([]remote.PromptTemplate, error)
	ListLLMConfigs(ctx context.Context, workspaceID string) ([]remote.LLMConfig, error)
	CreateLLMConfig(ctx context.Context, req remote.LLMConfigRequest, workspaceID string) (*remote.LLMConfig, error)
}

const approvalPrefix = "approved-"

// ReplayRunID is the run id requested when replaying historicalRunID.
func ReplayRunID(historicalRunID string) string {
	return "replay-" + historicalRunID
}

// Options configures a Session.
type Options struct {
	Logger    *slog.Logger
	Publisher events.Publisher
	// NewToken mints approval tokens. Defaults to approved-<uuid>.
	NewToken func() string
}

// Session is the workflow coordinator.
type Session struct {
	remote     Remote
	reconciler *reconcile.Reconciler
	gate       *Gate
	logger     *slog.Logger
	publisher  events.Publisher
	newToken   func() string

	mu    sync.Mutex
	state state
}

type state struct {
	workspaces []remote.Workspace
	current    *remote.Workspace

	bundles          []remote.Bundle
	selectedBundleID string

	templates []remote.PromptTemplate
	configs   []remote.LLMConfig
	llm       reconcile.LLMSelection

	previewCompleted  bool
	previewedBundleID string
	latestRun         *remote.CycleRun
	finalRun          *remote.CycleRun
	planApproved      bool
	approvalToken     string
	approvedBundleID  string
	review            *reconcile.Result

	reports          []remote.ReportSummary
	selectedReportID string
	replayNotice     string

	busy      bool
	statusMsg string
	errorMsg  string
}

// New creates a session with no workspace loaded. Call RefreshWorkspaces to
// pick up the server's current workspace.
func New(r Remote, opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	var publisher events.Publisher = events.Nop{}
	if opts.Publisher != nil {
		publisher = opts.Publisher
	}
	newToken := opts.NewToken
	if newToken == nil {
		newToken = func() string { return approvalPrefix + uuid.NewString() }
	}
	return &Session{
		remote:     r,
		reconciler: reconcile.New(r, logger),
		gate:       NewGate(),
		logger:     logger,
		publisher:  publisher,
		newToken:   newToken,
	}
}

// --- Navigation ---

// Advance moves the wizard forward if the active stage is complete.
func (s *Session) Advance() (Stage, error) {
	snap := s.Snapshot()
	stage, err := s.gate.Advance(snap.Predicates())
	if err != nil {
		s.setError(err)
		return stage, err
	}
	s.clearError()
	return stage, nil
}

// Retreat moves the wizard back one stage.
func (s *Session) Retreat() Stage {
	return s.gate.Retreat()
}

// JumpTo moves to an unlocked stage.
func (s *Session) JumpTo(stage Stage) error {
	if err := s.gate.JumpTo(stage); err != nil {
		s.setError(err)
		return err
	}
	return nil
}

// --- Workspaces ---

// RefreshWorkspaces reloads the workspace list and the server's current
// workspace. A change of current workspace resets the workflow, so the
// refresh is rejected with ErrBusy while another action is in flight.
func (s *Session) RefreshWorkspaces(ctx context.Context) error {
	if err := s.begin("Refreshing workspaces…"); err != nil {
		return err
	}
	defer s.end()
	return s.refreshWorkspaces(ctx)
}

func (s *Session) refreshWorkspaces(ctx context.Context) error {
	list, err := s.remote.ListWorkspaces(ctx)
	if err != nil {
		s.setError(err)
		return fmt.Errorf("list workspaces: %w", err)
	}
	current, err := s.remote.CurrentWorkspace(ctx)
	if err != nil {
		s.setError(err)
		return fmt.Errorf("current workspace: %w", err)
	}
	s.mu.Lock()
	s.state.workspaces = list
	s.mu.Unlock()
	return s.setCurrent(ctx, current)
}

// MountWorkspace registers a workspace root with the controller.
func (s *Session) MountWorkspace(ctx context.Context, path string) (*remote.Workspace, error) {
	if err := s.begin("Mounting workspace…"); err != nil {
		return nil, err
	}
	defer s.end()

	ws, err := s.remote.MountWorkspace(ctx, path)
	if err != nil {
		s.setError(err)
		return nil, fmt.Errorf("mount workspace: %w", err)
	}
	s.logger.Info("workspace mounted", "workspace_id", ws.ID, "root", ws.Root)
	if err := s.refreshWorkspaces(ctx); err != nil {
		return ws, err
	}
	return ws, nil
}

// SelectWorkspace makes workspaceID current on the controller and loads it.
func (s *Session) SelectWorkspace(ctx context.Context, workspaceID string) (*remote.Workspace, error) {
	if err := s.begin("Switching workspace…"); err != nil {
		return nil, err
	}
	defer s.end()

	ws, err := s.remote.SelectWorkspace(ctx, workspaceID)
	if err != nil {
		s.setError(err)
		return nil, fmt.Errorf("select workspace: %w", err)
	}
	if err := s.setCurrent(ctx, ws); err != nil {
		return ws, err
	}
	list, err := s.remote.ListWorkspaces(ctx)
	if err != nil {
		s.setError(err)
		return ws, fmt.Errorf("list workspaces: %w", err)
	}
	s.mu.Lock()
	s.state.workspaces = list
	s.mu.Unlock()
	return ws, nil
}

// setCurrent records ws as current. When its identity differs from the
// previous workspace all downstream state is cleared and reloaded.
func (s *Session) setCurrent(ctx context.Context, ws *remote.Workspace) error {
	s.mu.Lock()
	prevID := workspaceID(s.state.current)
	nextID := workspaceID(ws)
	s.state.current = ws
	if prevID == nextID {
		s.mu.Unlock()
		return nil
	}
	s.resetLocked()
	s.mu.Unlock()

	s.gate.Reset()
	s.logger.Info("workspace changed", "from", prevID, "to", nextID)
	s.publisher.Publish(events.TypeWorkspace, map[string]string{"workspace_id": nextID})

	if nextID == "" {
		return nil
	}
	return s.loadWorkspace(ctx, nextID)
}

// resetLocked clears every piece of state that depends on the workspace.
func (s *Session) resetLocked() {
	busy := s.state.busy
	status := s.state.statusMsg
	s.state = state{
		workspaces: s.state.workspaces,
		current:    s.state.current,
		busy:       busy,
		statusMsg:  status,
	}
}

// loadWorkspace fetches bundles, history, prompt templates, and LLM configs.
// Every list is loaded even when an earlier one fails; the first error is
// returned.
func (s *Session) loadWorkspace(ctx context.Context, wsID string) error {
	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if bundles, err := s.remote.ListBundles(ctx, wsID); err != nil {
		s.setError(err)
		keep(fmt.Errorf("list bundles: %w", err))
	} else {
		s.mu.Lock()
		if workspaceID(s.state.current) == wsID {
			s.state.bundles = bundles
			if !containsBundle(bundles, s.state.selectedBundleID) {
				s.state.selectedBundleID = ""
				if len(bundles) > 0 {
					s.state.selectedBundleID = bundles[0].ArtifactID
				}
			}
		}
		s.mu.Unlock()
	}

	keep(s.refreshReports(ctx, wsID))
	keep(s.refreshTemplates(ctx, wsID))
	keep(s.refreshConfigs(ctx, wsID))
	return firstErr
}

func (s *Session) refreshReports(ctx context.Context, wsID string) error {
	reports, err := s.remote.ListReports(ctx, wsID)
	if err != nil {
		s.setError(err)
		return fmt.Errorf("list reports: %w", err)
	}
	s.mu.Lock()
	if workspaceID(s.state.current) != wsID {
		s.mu.Unlock()
		return nil
	}
	s.state.reports = reports
	if s.state.selectedReportID != "" && !containsReport(reports, s.state.selectedReportID) {
		s.state.selectedReportID = ""
	}
	s.mu.Unlock()
	if len(reports) > 0 {
		s.gate.Unlock(StageHistory)
	}
	return nil
}

// RefreshHistory reloads the report timeline of the current workspace.
func (s *Session) RefreshHistory(ctx context.Context) error {
	wsID := s.WorkspaceID()
	if wsID == "" {
		return ErrNoWorkspace
	}
	return s.refreshReports(ctx, wsID)
}

func (s *Session) refreshTemplates(ctx context.Context, wsID string) error {
	templates, err := s.remote.ListPromptTemplates(ctx, wsID)
	if err != nil {
		s.setError(err)
		return fmt.Errorf("list prompt templates: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if workspaceID(s.state.current) != wsID {
		return nil
	}
	s.state.templates = templates
	if s.state.llm.PromptTemplateVersion == "" && len(templates) > 0 {
		s.state.llm.PromptTemplateVersion = templates[0].Version
	}
	return nil
}

func (s *Session) refreshConfigs(ctx context.Context, wsID string) error {
	configs, err := s.remote.ListLLMConfigs(ctx, wsID)
	if err != nil {
		s.setError(err)
		return fmt.Errorf("list llm configs: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if workspaceID(s.state.current) == wsID {
		s.state.configs = configs
	}
	return nil
}

// WorkspaceID returns the current workspace id or "".
func (s *Session) WorkspaceID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return workspaceID(s.state.current)
}

// --- Selections ---

// SelectBundle picks the bundle to run. Picking a different bundle withdraws
// any approval.
func (s *Session) SelectBundle(bundleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.current == nil {
		return ErrNoWorkspace
	}
	if !containsBundle(s.state.bundles, bundleID) {
		return ErrUnknownBundle
	}
	if bundleID != s.state.selectedBundleID {
		s.state.selectedBundleID = bundleID
		s.clearApprovalLocked()
	}
	return nil
}

// SelectReport picks a history entry for replay.
func (s *Session) SelectReport(runID string) error {
	s.mu.Lock()
	if !containsReport(s.state.reports, runID) {
		s.mu.Unlock()
		return ErrUnknownReport
	}
	s.state.selectedReportID = runID
	s.mu.Unlock()
	s.gate.Unlock(StageReplay)
	return nil
}

// SetLLMForm replaces the model fields. The selected config id is kept.
func (s *Session) SetLLMForm(form reconcile.LLMSelection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	form.ConfigID = s.state.llm.ConfigID
	s.state.llm = form
}

// SelectLLMConfig picks a recorded config and copies it into the form. An
// empty id clears the selection.
func (s *Session) SelectLLMConfig(configID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if configID == "" {
		s.state.llm.ConfigID = ""
		return nil
	}
	idx := slices.IndexFunc(s.state.configs, func(c remote.LLMConfig) bool { return c.ConfigID == configID })
	if idx < 0 {
		return ErrUnknownLLMConfig
	}
	s.state.llm = selectionFromConfig(s.state.configs[idx])
	return nil
}

// CreateLLMConfig records the form as a new config and selects it.
func (s *Session) CreateLLMConfig(ctx context.Context) (*remote.LLMConfig, error) {
	s.mu.Lock()
	wsID := workspaceID(s.state.current)
	form := s.state.llm
	s.mu.Unlock()
	if wsID == "" {
		s.setError(ErrNoWorkspace)
		return nil, ErrNoWorkspace
	}

	entry, err := s.remote.CreateLLMConfig(ctx, remote.LLMConfigRequest{
		Model:                 form.Model,
		PromptTemplateVersion: form.PromptTemplateVersion,
		PromptVersion:         form.PromptVersion,
		ModelID:               form.ModelID,
		ModelVersion:          form.ModelVersion,
	}, wsID)
	if err != nil {
		s.setError(err)
		return nil, fmt.Errorf("create llm config: %w", err)
	}
	if err := s.refreshConfigs(ctx, wsID); err != nil {
		return entry, err
	}
	s.mu.Lock()
	s.state.llm = selectionFromConfig(*entry)
	s.state.errorMsg = ""
	s.mu.Unlock()
	s.logger.Info("llm config created", "config_id", entry.ConfigID, "model", entry.Model)
	return entry, nil
}

func selectionFromConfig(c remote.LLMConfig) reconcile.LLMSelection {
	sel := reconcile.LLMSelection{
		ConfigID:              c.ConfigID,
		Model:                 c.Model,
		PromptTemplateVersion: c.PromptTemplateVersion,
		PromptVersion:         c.PromptVersion,
	}
	if c.ModelID != nil {
		sel.ModelID = *c.ModelID
	}
	if c.ModelVersion != nil {
		sel.ModelVersion = *c.ModelVersion
	}
	return sel
}

// --- Run lifecycle ---

// Preview issues a dry run of the selected bundle. Any existing approval is
// withdrawn first, whether or not the run succeeds.
func (s *Session) Preview(ctx context.Context) (*remote.CycleRun, error) {
	s.mu.Lock()
	if s.state.busy {
		s.mu.Unlock()
		return nil, ErrBusy
	}
	s.clearApprovalLocked()
	wsID := workspaceID(s.state.current)
	bundleID := s.state.selectedBundleID
	configID := s.state.llm.ConfigID
	if wsID == "" || bundleID == "" {
		s.state.errorMsg = ErrNoBundle.Error()
		s.mu.Unlock()
		return nil, ErrNoBundle
	}
	s.startLocked("Running preview cycle (dry run)…")
	s.mu.Unlock()
	defer s.end()

	run, err := s.remote.RunCycle(ctx, remote.CycleRequest{
		BundleArtifactID: bundleID,
		Mode:             remote.ModeLive,
		DryRun:           true,
		WorkspaceID:      wsID,
		LLMConfigID:      configID,
	})
	if err != nil {
		s.setError(err)
		return nil, fmt.Errorf("preview cycle: %w", err)
	}

	s.publishRun(run, "preview", wsID)
	if !s.storeRun(wsID, func(st *state) {
		st.previewCompleted = true
		st.previewedBundleID = bundleID
		st.latestRun = run
	}) {
		return run, s.discardRun(run, wsID)
	}

	s.applyReview(ctx, run, wsID)
	s.gate.Unlock(StageReviewPlan)
	_ = s.refreshReports(ctx, wsID)
	return run, nil
}

// ApprovePlan mints the approval token for the latest preview. Approving an
// already approved plan returns the existing token.
func (s *Session) ApprovePlan() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.busy {
		return "", ErrBusy
	}
	if s.state.latestRun == nil || s.state.previewedBundleID != s.state.selectedBundleID {
		s.state.errorMsg = ErrNoPreview.Error()
		return "", ErrNoPreview
	}
	if s.state.planApproved && s.state.approvalToken != "" {
		return s.state.approvalToken, nil
	}
	s.state.approvalToken = s.newToken()
	s.state.planApproved = true
	s.state.approvedBundleID = s.state.selectedBundleID
	s.state.errorMsg = ""
	s.state.statusMsg = "Plan marked as approved; you may now run a live cycle."
	s.logger.Info("plan approved", "run_id", s.state.latestRun.RunID, "bundle_id", s.state.selectedBundleID)
	s.publisher.Publish(events.TypeStatus, events.Message{Text: s.state.statusMsg})
	return s.state.approvalToken, nil
}

// RunLive executes the approved plan.
func (s *Session) RunLive(ctx context.Context) (*remote.CycleRun, error) {
	s.mu.Lock()
	if s.state.busy {
		s.mu.Unlock()
		return nil, ErrBusy
	}
	if !s.approvedLocked() {
		s.state.errorMsg = ErrNotApproved.Error()
		s.mu.Unlock()
		return nil, ErrNotApproved
	}
	wsID := workspaceID(s.state.current)
	bundleID := s.state.selectedBundleID
	if wsID == "" || bundleID == "" {
		s.state.errorMsg = ErrNoBundle.Error()
		s.mu.Unlock()
		return nil, ErrNoBundle
	}
	token := s.state.approvalToken
	configID := s.state.llm.ConfigID
	s.startLocked("Approving plan and executing real run…")
	s.mu.Unlock()
	defer s.end()

	run, err := s.remote.RunCycle(ctx, remote.CycleRequest{
		BundleArtifactID: bundleID,
		Mode:             remote.ModeLive,
		DryRun:           false,
		WorkspaceID:      wsID,
		ApprovalToken:    token,
		LLMConfigID:      configID,
	})
	if err != nil {
		s.setError(err)
		return nil, fmt.Errorf("live cycle: %w", err)
	}

	s.publishRun(run, "live", wsID)
	if !s.storeRun(wsID, func(st *state) {
		st.finalRun = run
		st.latestRun = run
	}) {
		return run, s.discardRun(run, wsID)
	}

	s.applyReview(ctx, run, wsID)
	s.gate.Unlock(StageApprove)
	_ = s.refreshReports(ctx, wsID)
	return run, nil
}

// Replay re-runs the bundle under a run id derived from the selected history
// entry.
func (s *Session) Replay(ctx context.Context) (*remote.CycleRun, error) {
	s.mu.Lock()
	if s.state.busy {
		s.mu.Unlock()
		return nil, ErrBusy
	}
	historicalID := s.state.selectedReportID
	if historicalID == "" {
		s.state.errorMsg = ErrNoReportSelected.Error()
		s.mu.Unlock()
		return nil, ErrNoReportSelected
	}
	if !s.approvedLocked() {
		s.state.errorMsg = errReplayNotApproved.Error()
		s.mu.Unlock()
		return nil, errReplayNotApproved
	}
	wsID := workspaceID(s.state.current)
	bundleID := s.state.selectedBundleID
	if wsID == "" || bundleID == "" {
		s.state.errorMsg = ErrNoBundle.Error()
		s.mu.Unlock()
		return nil, ErrNoBundle
	}
	token := s.state.approvalToken
	configID := s.state.llm.ConfigID
	s.startLocked("Replaying selected report…")
	s.mu.Unlock()
	defer s.end()

	run, err := s.remote.RunCycle(ctx, remote.CycleRequest{
		BundleArtifactID: bundleID,
		Mode:             remote.ModeLive,
		DryRun:           false,
		RunID:            ReplayRunID(historicalID),
		WorkspaceID:      wsID,
		ApprovalToken:    token,
		LLMConfigID:      configID,
	})
	if err != nil {
		s.setError(err)
		return nil, fmt.Errorf("replay %s: %w", historicalID, err)
	}

	notice := fmt.Sprintf("Replayed %s → %s", historicalID, run.RunID)
	s.publishRun(run, "replay", wsID)
	if !s.storeRun(wsID, func(st *state) {
		st.latestRun = run
		st.finalRun = run
		st.replayNotice = notice
	}) {
		return run, s.discardRun(run, wsID)
	}
	s.publisher.Publish(events.TypeStatus, events.Message{Text: notice})

	s.applyReview(ctx, run, wsID)
	_ = s.refreshReports(ctx, wsID)
	return run, nil
}

// applyReview reconciles run and stores the result if the workspace is still
// the one the run belongs to.
func (s *Session) applyReview(ctx context.Context, run *remote.CycleRun, wsID string) {
	s.mu.Lock()
	prior := s.state.llm
	s.mu.Unlock()

	review := s.reconciler.Reconcile(ctx, run, wsID, prior)

	s.mu.Lock()
	if workspaceID(s.state.current) != wsID {
		s.mu.Unlock()
		return
	}
	s.state.review = review
	s.state.llm = review.LLM
	s.mu.Unlock()

	s.publisher.Publish(events.TypeReview, map[string]any{
		"run_id":       review.RunID,
		"diff_entries": diffLen(review.Diff),
		"allowed":      review.Summary.Allowed,
		"denied":       review.Summary.Denied,
		"fetch_errors": len(review.FetchErrors),
	})
	if review.LLMBackfilled {
		_ = s.refreshConfigs(ctx, wsID)
	}
}

// storeRun applies store while wsID is still the current workspace.
func (s *Session) storeRun(wsID string, store func(*state)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if workspaceID(s.state.current) != wsID {
		return false
	}
	store(&s.state)
	return true
}

func (s *Session) discardRun(run *remote.CycleRun, wsID string) error {
	s.logger.Warn("run result discarded", "run_id", run.RunID, "workspace_id", wsID, "current", s.WorkspaceID())
	s.setError(ErrWorkspaceChanged)
	return ErrWorkspaceChanged
}

// approvedLocked reports whether the token covers the selected bundle.
func (s *Session) approvedLocked() bool {
	return s.state.planApproved && s.state.approvalToken != "" &&
		s.state.approvedBundleID == s.state.selectedBundleID
}

func (s *Session) clearApprovalLocked() {
	s.state.planApproved = false
	s.state.approvalToken = ""
	s.state.approvedBundleID = ""
}

// --- Busy flag and messages ---

func (s *Session) begin(status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.busy {
		return ErrBusy
	}
	s.startLocked(status)
	return nil
}

func (s *Session) startLocked(status string) {
	s.state.busy = true
	s.state.errorMsg = ""
	s.state.statusMsg = status
	s.publisher.Publish(events.TypeStatus, events.Message{Text: status})
}

func (s *Session) end() {
	s.mu.Lock()
	s.state.busy = false
	s.state.statusMsg = ""
	s.mu.Unlock()
}

func (s *Session) setError(err error) {
	s.mu.Lock()
	s.state.errorMsg = err.Error()
	s.mu.Unlock()
	s.logger.Warn("studio action failed", "error", err)
	s.publisher.Publish(events.TypeError, events.Message{Text: err.Error()})
}

func (s *Session) clearError() {
	s.mu.Lock()
	s.state.errorMsg = ""
	s.mu.Unlock()
}

// ClearMessages drops the status and error lines.
func (s *Session) ClearMessages() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.errorMsg = ""
	if !s.state.busy {
		s.state.statusMsg = ""
	}
}

func (s *Session) publishRun(run *remote.CycleRun, mode, wsID string) {
	s.logger.Info("cycle run finished", "run_id", run.RunID, "mode", mode, "workspace_id", wsID, "success", run.Success)
	s.publisher.Publish(events.TypeRun, events.RunNotice{
		RunID:       run.RunID,
		Mode:        mode,
		WorkspaceID: wsID,
		Success:     run.Success,
	})
}

// --- helpers ---

func workspaceID(ws *remote.Workspace) string {
	if ws == nil {
		return ""
	}
	return ws.ID
}

func containsBundle(bundles []remote.Bundle, id string) bool {
	if id == "" {
		return false
	}
	return slices.ContainsFunc(bundles, func(b remote.Bundle) bool { return b.ArtifactID == id })
}

func containsReport(reports []remote.ReportSummary, id string) bool {
	if id == "" {
		return false
	}
	return slices.ContainsFunc(reports, func(r remote.ReportSummary) bool { return r.RunID == id })
}

func diffLen(d *remote.DiffResult) int {
	if d == nil {
		return 0
	}
	return len(d.Diff)
}
