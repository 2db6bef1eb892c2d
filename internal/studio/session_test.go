package studio

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/ctlstudio/internal/document"
	"github.com/mattjoyce/ctlstudio/internal/events"
	"github.com/mattjoyce/ctlstudio/internal/reconcile"
	"github.com/mattjoyce/ctlstudio/internal/remote"
	"github.com/mattjoyce/ctlstudio/internal/studio/mocks"
)

var (
	ws1 = remote.Workspace{ID: "ws1", Name: "alpha", Root: "/srv/alpha"}
	ws2 = remote.Workspace{ID: "ws2", Name: "beta", Root: "/srv/beta"}
)

type harness struct {
	ctx     context.Context
	remote  *mocks.MockRemote
	session *Session
	hub     *events.Hub
}

func newHarness(t *testing.T) *harness {
	ctrl := gomock.NewController(t)
	m := mocks.NewMockRemote(ctrl)
	hub := events.NewHub(64)
	tokens := 0
	s := New(m, Options{
		Publisher: hub,
		NewToken: func() string {
			tokens++
			return "approved-" + string(rune('0'+tokens))
		},
	})
	return &harness{ctx: context.Background(), remote: m, session: s, hub: hub}
}

// expectWorkspaceLoad registers the list calls made when ws becomes current.
func (h *harness) expectWorkspaceLoad(ws remote.Workspace, bundles []remote.Bundle, reports []remote.ReportSummary) {
	h.remote.EXPECT().ListBundles(gomock.Any(), ws.ID).Return(bundles, nil)
	h.remote.EXPECT().ListReports(gomock.Any(), ws.ID).Return(reports, nil)
	h.remote.EXPECT().ListPromptTemplates(gomock.Any(), ws.ID).Return([]remote.PromptTemplate{{Version: "tpl-v1", Title: "Default"}}, nil)
	h.remote.EXPECT().ListLLMConfigs(gomock.Any(), ws.ID).Return(nil, nil)
}

func (h *harness) load(t *testing.T, reports []remote.ReportSummary) {
	t.Helper()
	h.remote.EXPECT().ListWorkspaces(gomock.Any()).Return([]remote.Workspace{ws1, ws2}, nil)
	h.remote.EXPECT().CurrentWorkspace(gomock.Any()).Return(&ws1, nil)
	h.expectWorkspaceLoad(ws1, []remote.Bundle{{ArtifactID: "b1"}, {ArtifactID: "b2"}}, reports)
	require.NoError(t, h.session.RefreshWorkspaces(h.ctx))
}

// preview runs a preview whose report references no artifacts.
func (h *harness) preview(t *testing.T, runID string) {
	t.Helper()
	h.remote.EXPECT().RunCycle(gomock.Any(), gomock.Any()).Return(&remote.CycleRun{RunID: runID, Success: true, Report: document.Document{}}, nil)
	h.remote.EXPECT().ListReports(gomock.Any(), "ws1").Return(nil, nil)
	_, err := h.session.Preview(h.ctx)
	require.NoError(t, err)
}

func TestRefreshWorkspacesLoadsCurrent(t *testing.T) {
	h := newHarness(t)
	h.load(t, nil)

	snap := h.session.Snapshot()
	require.NotNil(t, snap.Workspace)
	assert.Equal(t, "ws1", snap.Workspace.ID)
	assert.Len(t, snap.Workspaces, 2)
	assert.Equal(t, "b1", snap.SelectedBundleID, "first bundle is auto-selected")
	assert.Equal(t, "tpl-v1", snap.LLM.PromptTemplateVersion)
	assert.Equal(t, StageSelectBundle, snap.MaxUnlocked)
	assert.True(t, snap.CanAdvance())
}

func TestPreviewScenarioUnlocksReview(t *testing.T) {
	h := newHarness(t)
	h.load(t, nil)

	run := &remote.CycleRun{
		RunID:   "r1",
		Success: true,
		Report:  document.Document{"proposed_change_plan": "p1", "env_snapshot": "s1"},
	}
	h.remote.EXPECT().RunCycle(gomock.Any(), remote.CycleRequest{
		BundleArtifactID: "b1",
		Mode:             remote.ModeLive,
		DryRun:           true,
		WorkspaceID:      "ws1",
	}).Return(run, nil)
	h.remote.EXPECT().GetArtifactDocument(gomock.Any(), "p1", "ws1").Return(&remote.ArtifactDocument{Body: document.Document{"plan_id": "p1"}}, nil)
	h.remote.EXPECT().DiffArtifacts(gomock.Any(), "s1", "p1", "ws1").Return(&remote.DiffResult{
		BaseID:    "s1",
		CompareID: "p1",
		Diff:      []remote.DiffItem{{Path: "/x", Kind: "changed", Base: 1, Compare: 2}},
	}, nil)
	h.remote.EXPECT().ListReports(gomock.Any(), "ws1").Return([]remote.ReportSummary{{RunID: "r1"}}, nil)

	got, err := h.session.Preview(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, "r1", got.RunID)

	snap := h.session.Snapshot()
	assert.True(t, snap.PreviewCompleted)
	assert.Equal(t, "r1", snap.LatestRun.RunID)
	assert.Nil(t, snap.FinalRun)
	require.NotNil(t, snap.Diff())
	assert.Len(t, snap.Diff().Diff, 1)
	assert.False(t, snap.Busy)
	assert.Empty(t, snap.Error)
	assert.GreaterOrEqual(t, snap.MaxUnlocked, StageHistory, "non-empty history unlocks the timeline")

	require.NoError(t, h.session.JumpTo(StageReviewPlan))
	stage, err := h.session.Advance()
	require.NoError(t, err)
	assert.Equal(t, StageApprove, stage)
}

func TestAdvanceFromReviewFailsWithoutDiff(t *testing.T) {
	h := newHarness(t)
	h.load(t, nil)
	h.preview(t, "r1")

	require.NoError(t, h.session.JumpTo(StageReviewPlan))
	stage, err := h.session.Advance()
	assert.ErrorIs(t, err, ErrStageIncomplete)
	assert.Equal(t, StageReviewPlan, stage)
	snap := h.session.Snapshot()
	assert.Equal(t, StageReviewPlan, snap.Stage)
	assert.Equal(t, "Finish the current step before continuing.", snap.Error)
}

func TestApproveWithoutRun(t *testing.T) {
	h := newHarness(t)
	h.load(t, nil)

	token, err := h.session.ApprovePlan()
	require.ErrorIs(t, err, ErrNoPreview)
	assert.Equal(t, "Run a preview cycle before approving the plan.", err.Error())
	assert.Empty(t, token)

	snap := h.session.Snapshot()
	assert.False(t, snap.PlanApproved)
	assert.Empty(t, snap.ApprovalToken)
	assert.Equal(t, "Run a preview cycle before approving the plan.", snap.Error)
}

func TestRunLiveRequiresToken(t *testing.T) {
	h := newHarness(t)
	h.load(t, nil)

	_, err := h.session.RunLive(h.ctx)
	assert.ErrorIs(t, err, ErrNotApproved)

	h.preview(t, "r1")
	require.True(t, h.session.Snapshot().PreviewCompleted)

	_, err = h.session.RunLive(h.ctx)
	require.ErrorIs(t, err, ErrNotApproved)
	assert.Equal(t, "Approve the latest plan before running the live cycle.", h.session.Snapshot().Error)
}

func TestApproveThenRunLiveSendsToken(t *testing.T) {
	h := newHarness(t)
	h.load(t, nil)
	h.preview(t, "r1")

	token, err := h.session.ApprovePlan()
	require.NoError(t, err)
	assert.Equal(t, "approved-1", token)

	again, err := h.session.ApprovePlan()
	require.NoError(t, err)
	assert.Equal(t, token, again, "second approval keeps the original token")

	h.remote.EXPECT().RunCycle(gomock.Any(), remote.CycleRequest{
		BundleArtifactID: "b1",
		Mode:             remote.ModeLive,
		DryRun:           false,
		WorkspaceID:      "ws1",
		ApprovalToken:    "approved-1",
	}).Return(&remote.CycleRun{RunID: "r2", Success: true, Report: document.Document{}}, nil)
	h.remote.EXPECT().ListReports(gomock.Any(), "ws1").Return([]remote.ReportSummary{{RunID: "r2"}, {RunID: "r1"}}, nil)

	run, err := h.session.RunLive(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, "r2", run.RunID)

	snap := h.session.Snapshot()
	assert.Equal(t, "r2", snap.FinalRun.RunID)
	assert.Equal(t, "r2", snap.LatestRun.RunID)
	assert.GreaterOrEqual(t, snap.MaxUnlocked, StageApprove)
	assert.Len(t, snap.Reports, 2)
}

func TestPreviewClearsApproval(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		h := newHarness(t)
		h.load(t, nil)
		h.preview(t, "r1")
		_, err := h.session.ApprovePlan()
		require.NoError(t, err)

		h.preview(t, "r2")

		snap := h.session.Snapshot()
		assert.False(t, snap.PlanApproved)
		assert.Empty(t, snap.ApprovalToken)

		token, err := h.session.ApprovePlan()
		require.NoError(t, err)
		assert.Equal(t, "approved-2", token, "a new preview allows a fresh token")
	})

	t.Run("failure", func(t *testing.T) {
		h := newHarness(t)
		h.load(t, nil)
		h.preview(t, "r1")
		_, err := h.session.ApprovePlan()
		require.NoError(t, err)

		h.remote.EXPECT().RunCycle(gomock.Any(), gomock.Any()).Return(nil, &remote.APIError{StatusCode: 500, Message: "boom"})
		_, err = h.session.Preview(h.ctx)
		require.Error(t, err)
		assert.Equal(t, 500, remote.AsAPIError(err).StatusCode)

		snap := h.session.Snapshot()
		assert.False(t, snap.PlanApproved)
		assert.Empty(t, snap.ApprovalToken)
		assert.Equal(t, "500 boom", snap.Error)
		assert.Equal(t, "r1", snap.LatestRun.RunID, "failed preview keeps the prior run")
		assert.False(t, snap.Busy)
	})
}

func TestPreviewWithoutBundle(t *testing.T) {
	h := newHarness(t)
	_, err := h.session.Preview(h.ctx)
	assert.ErrorIs(t, err, ErrNoBundle)
	assert.False(t, h.session.Snapshot().PreviewCompleted)
}

func TestBundleChangeWithdrawsApproval(t *testing.T) {
	h := newHarness(t)
	h.load(t, nil)
	h.preview(t, "r1")
	_, err := h.session.ApprovePlan()
	require.NoError(t, err)

	require.NoError(t, h.session.SelectBundle("b1"))
	assert.True(t, h.session.Snapshot().PlanApproved, "reselecting the same bundle is a no-op")

	require.NoError(t, h.session.SelectBundle("b2"))
	snap := h.session.Snapshot()
	assert.False(t, snap.PlanApproved)
	assert.Empty(t, snap.ApprovalToken)

	assert.ErrorIs(t, h.session.SelectBundle("nope"), ErrUnknownBundle)
}

func TestApprovalCoversOnlyThePreviewedBundle(t *testing.T) {
	h := newHarness(t)
	h.load(t, nil)
	h.preview(t, "r1")
	require.NoError(t, h.session.SelectBundle("b2"))

	_, err := h.session.ApprovePlan()
	assert.ErrorIs(t, err, ErrNoPreview, "b2 was never previewed")
	assert.False(t, h.session.Snapshot().PlanApproved)
	_, err = h.session.RunLive(h.ctx)
	assert.ErrorIs(t, err, ErrNotApproved)

	h.preview(t, "r2")
	token, err := h.session.ApprovePlan()
	require.NoError(t, err)

	h.remote.EXPECT().RunCycle(gomock.Any(), remote.CycleRequest{
		BundleArtifactID: "b2",
		Mode:             remote.ModeLive,
		WorkspaceID:      "ws1",
		ApprovalToken:    token,
	}).Return(&remote.CycleRun{RunID: "r3", Success: true, Report: document.Document{}}, nil)
	h.remote.EXPECT().ListReports(gomock.Any(), "ws1").Return(nil, nil)
	_, err = h.session.RunLive(h.ctx)
	require.NoError(t, err)

	// A token recorded for another bundle is not honoured.
	h.session.mu.Lock()
	h.session.state.selectedBundleID = "b1"
	h.session.mu.Unlock()
	_, err = h.session.RunLive(h.ctx)
	assert.ErrorIs(t, err, ErrNotApproved)
}

func TestWorkspaceSwitchResetsWorkflow(t *testing.T) {
	h := newHarness(t)
	h.load(t, nil)

	run := &remote.CycleRun{
		RunID:  "r1",
		Report: document.Document{"proposed_change_plan": "p1", "env_snapshot": "s1", "policy_decisions": []any{map[string]any{"effect": "e", "allowed": true}}},
	}
	h.remote.EXPECT().RunCycle(gomock.Any(), gomock.Any()).Return(run, nil)
	h.remote.EXPECT().GetArtifactDocument(gomock.Any(), "p1", "ws1").Return(&remote.ArtifactDocument{}, nil)
	h.remote.EXPECT().DiffArtifacts(gomock.Any(), "s1", "p1", "ws1").Return(&remote.DiffResult{Diff: []remote.DiffItem{{Path: "a", Kind: "added"}}}, nil)
	h.remote.EXPECT().ListReports(gomock.Any(), "ws1").Return(nil, nil)
	_, err := h.session.Preview(h.ctx)
	require.NoError(t, err)
	_, err = h.session.ApprovePlan()
	require.NoError(t, err)

	h.remote.EXPECT().RunCycle(gomock.Any(), gomock.Any()).Return(&remote.CycleRun{RunID: "r2", Report: document.Document{}}, nil)
	h.remote.EXPECT().ListReports(gomock.Any(), "ws1").Return(nil, nil)
	_, err = h.session.RunLive(h.ctx)
	require.NoError(t, err)

	before := h.session.Snapshot()
	require.NotNil(t, before.FinalRun)
	require.GreaterOrEqual(t, before.MaxUnlocked, StageApprove)

	h.remote.EXPECT().SelectWorkspace(gomock.Any(), "ws2").Return(&ws2, nil)
	h.expectWorkspaceLoad(ws2, nil, nil)
	h.remote.EXPECT().ListWorkspaces(gomock.Any()).Return([]remote.Workspace{ws1, ws2}, nil)

	_, err = h.session.SelectWorkspace(h.ctx, "ws2")
	require.NoError(t, err)

	snap := h.session.Snapshot()
	assert.Equal(t, "ws2", snap.WorkspaceID())
	assert.Equal(t, StageSelectBundle, snap.MaxUnlocked)
	assert.Equal(t, StageSelectBundle, snap.Stage)
	assert.Nil(t, snap.LatestRun)
	assert.Nil(t, snap.FinalRun)
	assert.Nil(t, snap.Review)
	assert.Nil(t, snap.Diff())
	assert.False(t, snap.PreviewCompleted)
	assert.False(t, snap.PlanApproved)
	assert.Empty(t, snap.ApprovalToken)
	assert.Empty(t, snap.SelectedBundleID)
	assert.Empty(t, snap.SelectedReportID)
	assert.False(t, snap.Busy)
}

func TestReplayScenario(t *testing.T) {
	h := newHarness(t)
	h.load(t, []remote.ReportSummary{{RunID: "h1"}})
	assert.Equal(t, StageHistory, h.session.Snapshot().MaxUnlocked)

	_, err := h.session.Replay(h.ctx)
	assert.ErrorIs(t, err, ErrNoReportSelected)

	require.NoError(t, h.session.SelectReport("h1"))
	assert.Equal(t, StageReplay, h.session.Snapshot().MaxUnlocked)

	_, err = h.session.Replay(h.ctx)
	require.ErrorIs(t, err, ErrNotApproved)
	assert.Equal(t, "Approve the plan before replaying the cycle.", err.Error())

	h.remote.EXPECT().RunCycle(gomock.Any(), gomock.Any()).Return(&remote.CycleRun{RunID: "r1", Report: document.Document{}}, nil)
	h.remote.EXPECT().ListReports(gomock.Any(), "ws1").Return([]remote.ReportSummary{{RunID: "r1"}, {RunID: "h1"}}, nil)
	_, err = h.session.Preview(h.ctx)
	require.NoError(t, err)
	_, err = h.session.ApprovePlan()
	require.NoError(t, err)

	h.remote.EXPECT().RunCycle(gomock.Any(), remote.CycleRequest{
		BundleArtifactID: "b1",
		Mode:             remote.ModeLive,
		RunID:            "replay-h1",
		WorkspaceID:      "ws1",
		ApprovalToken:    "approved-1",
	}).Return(&remote.CycleRun{RunID: "replay-h1", Success: true, Report: document.Document{}}, nil)
	h.remote.EXPECT().ListReports(gomock.Any(), "ws1").Return([]remote.ReportSummary{{RunID: "replay-h1"}, {RunID: "r1"}, {RunID: "h1"}}, nil)

	run, err := h.session.Replay(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, "replay-h1", run.RunID)

	snap := h.session.Snapshot()
	assert.Equal(t, "Replayed h1 → replay-h1", snap.ReplayNotice)
	assert.Equal(t, "replay-h1", snap.FinalRun.RunID)
	ids := make([]string, 0, len(snap.Reports))
	for _, r := range snap.Reports {
		ids = append(ids, r.RunID)
	}
	assert.Contains(t, ids, "replay-h1")
	assert.Equal(t, "h1", snap.SelectedReport().RunID)
}

func TestMutatingActionsRejectedWhileBusy(t *testing.T) {
	h := newHarness(t)
	h.load(t, nil)

	release := make(chan struct{})
	h.remote.EXPECT().RunCycle(gomock.Any(), gomock.Any()).DoAndReturn(func(ctx context.Context, _ remote.CycleRequest) (*remote.CycleRun, error) {
		<-release
		return &remote.CycleRun{RunID: "r1", Report: document.Document{}}, nil
	})
	h.remote.EXPECT().ListReports(gomock.Any(), "ws1").Return(nil, nil)

	done := make(chan error, 1)
	go func() {
		_, err := h.session.Preview(h.ctx)
		done <- err
	}()
	require.Eventually(t, func() bool { return h.session.Snapshot().Busy }, 2*time.Second, 5*time.Millisecond)

	_, err := h.session.Preview(h.ctx)
	assert.ErrorIs(t, err, ErrBusy)
	_, err = h.session.RunLive(h.ctx)
	assert.ErrorIs(t, err, ErrBusy)
	_, err = h.session.Replay(h.ctx)
	assert.ErrorIs(t, err, ErrBusy)
	_, err = h.session.SelectWorkspace(h.ctx, "ws2")
	assert.ErrorIs(t, err, ErrBusy)
	_, err = h.session.ApprovePlan()
	assert.ErrorIs(t, err, ErrBusy)
	assert.Equal(t, "Running preview cycle (dry run)…", h.session.Snapshot().Status)

	close(release)
	require.NoError(t, <-done)
	snap := h.session.Snapshot()
	assert.False(t, snap.Busy)
	assert.Empty(t, snap.Status)
	assert.True(t, snap.PreviewCompleted)
}

func TestRunResultDiscardedAfterWorkspaceSwitch(t *testing.T) {
	switchDuring := func(h *harness) func(context.Context, remote.CycleRequest) (*remote.CycleRun, error) {
		return func(ctx context.Context, req remote.CycleRequest) (*remote.CycleRun, error) {
			assert.Equal(t, "ws1", req.WorkspaceID)
			h.expectWorkspaceLoad(ws2, []remote.Bundle{{ArtifactID: "b9"}}, nil)
			require.NoError(t, h.session.setCurrent(ctx, &ws2))
			return &remote.CycleRun{RunID: "r-old", Success: true, Report: document.Document{"proposed_change_plan": "p1"}}, nil
		}
	}

	t.Run("preview", func(t *testing.T) {
		h := newHarness(t)
		h.load(t, nil)
		h.remote.EXPECT().RunCycle(gomock.Any(), gomock.Any()).DoAndReturn(switchDuring(h))

		run, err := h.session.Preview(h.ctx)
		require.ErrorIs(t, err, ErrWorkspaceChanged)
		assert.Equal(t, "r-old", run.RunID)

		snap := h.session.Snapshot()
		assert.Equal(t, "ws2", snap.WorkspaceID())
		assert.Equal(t, "b9", snap.SelectedBundleID)
		assert.False(t, snap.PreviewCompleted)
		assert.Nil(t, snap.LatestRun)
		assert.Nil(t, snap.Review)
		assert.Equal(t, StageSelectBundle, snap.MaxUnlocked)
		assert.Equal(t, ErrWorkspaceChanged.Error(), snap.Error)
		assert.False(t, snap.Busy)

		_, err = h.session.ApprovePlan()
		assert.ErrorIs(t, err, ErrNoPreview)
	})

	t.Run("live", func(t *testing.T) {
		h := newHarness(t)
		h.load(t, nil)
		h.preview(t, "r1")
		_, err := h.session.ApprovePlan()
		require.NoError(t, err)
		h.remote.EXPECT().RunCycle(gomock.Any(), gomock.Any()).DoAndReturn(switchDuring(h))

		_, err = h.session.RunLive(h.ctx)
		require.ErrorIs(t, err, ErrWorkspaceChanged)

		snap := h.session.Snapshot()
		assert.Equal(t, "ws2", snap.WorkspaceID())
		assert.Nil(t, snap.FinalRun)
		assert.Nil(t, snap.LatestRun)
		assert.False(t, snap.PlanApproved)
		assert.Equal(t, StageSelectBundle, snap.MaxUnlocked)
	})
}

func TestRefreshWorkspacesRejectedWhileBusy(t *testing.T) {
	h := newHarness(t)
	h.load(t, nil)

	h.remote.EXPECT().RunCycle(gomock.Any(), gomock.Any()).DoAndReturn(func(ctx context.Context, _ remote.CycleRequest) (*remote.CycleRun, error) {
		assert.ErrorIs(t, h.session.RefreshWorkspaces(ctx), ErrBusy)
		return &remote.CycleRun{RunID: "r1", Report: document.Document{}}, nil
	})
	h.remote.EXPECT().ListReports(gomock.Any(), "ws1").Return(nil, nil)

	_, err := h.session.Preview(h.ctx)
	require.NoError(t, err)
	snap := h.session.Snapshot()
	assert.Equal(t, "ws1", snap.WorkspaceID())
	assert.True(t, snap.PreviewCompleted)
	assert.Equal(t, "r1", snap.LatestRun.RunID)
}

func TestPreviewBackfillsLLMSelection(t *testing.T) {
	h := newHarness(t)
	h.load(t, nil)
	h.session.SetLLMForm(reconcile.LLMSelection{Model: "typed", PromptTemplateVersion: "tpl-v1", PromptVersion: "p-1"})

	h.remote.EXPECT().RunCycle(gomock.Any(), gomock.Any()).Return(&remote.CycleRun{
		RunID:  "r1",
		Report: document.Document{"proposed_change_plan": "p1"},
	}, nil)
	h.remote.EXPECT().GetArtifactDocument(gomock.Any(), "p1", "ws1").Return(&remote.ArtifactDocument{Body: document.Document{
		"llm_metadata": map[string]any{"config_id": "cfg-7", "model": "recorded"},
	}}, nil)
	h.remote.EXPECT().ListLLMConfigs(gomock.Any(), "ws1").Return([]remote.LLMConfig{{ConfigID: "cfg-7", Model: "recorded"}}, nil)
	h.remote.EXPECT().ListReports(gomock.Any(), "ws1").Return(nil, nil)

	_, err := h.session.Preview(h.ctx)
	require.NoError(t, err)

	snap := h.session.Snapshot()
	assert.Equal(t, "cfg-7", snap.LLM.ConfigID)
	assert.Equal(t, "recorded", snap.LLM.Model)
	assert.Equal(t, "p-1", snap.LLM.PromptVersion)
	assert.Len(t, snap.LLMConfigs, 1)
}

func TestCreateAndSelectLLMConfig(t *testing.T) {
	h := newHarness(t)
	h.load(t, nil)
	h.session.SetLLMForm(reconcile.LLMSelection{Model: "m", PromptTemplateVersion: "tpl-v1"})

	modelID := "mid"
	created := remote.LLMConfig{ConfigID: "cfg-1", Model: "m", PromptTemplateVersion: "tpl-v1", PromptVersion: "1", ModelID: &modelID}
	h.remote.EXPECT().CreateLLMConfig(gomock.Any(), remote.LLMConfigRequest{Model: "m", PromptTemplateVersion: "tpl-v1"}, "ws1").Return(&created, nil)
	h.remote.EXPECT().ListLLMConfigs(gomock.Any(), "ws1").Return([]remote.LLMConfig{created}, nil)

	entry, err := h.session.CreateLLMConfig(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, "cfg-1", entry.ConfigID)

	snap := h.session.Snapshot()
	assert.Equal(t, "cfg-1", snap.LLM.ConfigID)
	assert.Equal(t, "mid", snap.LLM.ModelID)

	require.NoError(t, h.session.SelectLLMConfig(""))
	assert.Empty(t, h.session.Snapshot().LLM.ConfigID)
	require.NoError(t, h.session.SelectLLMConfig("cfg-1"))
	assert.Equal(t, "cfg-1", h.session.Snapshot().LLM.ConfigID)
	assert.ErrorIs(t, h.session.SelectLLMConfig("cfg-x"), ErrUnknownLLMConfig)
}

func TestCreateLLMConfigNeedsWorkspace(t *testing.T) {
	h := newHarness(t)
	_, err := h.session.CreateLLMConfig(h.ctx)
	assert.ErrorIs(t, err, ErrNoWorkspace)
}

func TestSessionPublishesEvents(t *testing.T) {
	h := newHarness(t)
	h.load(t, nil)
	h.preview(t, "r1")

	var sawRun, sawReview bool
	for _, ev := range h.hub.SnapshotSince(0) {
		switch ev.Type {
		case events.TypeRun:
			var notice events.RunNotice
			require.NoError(t, ev.Decode(&notice))
			assert.Equal(t, "r1", notice.RunID)
			assert.Equal(t, "preview", notice.Mode)
			sawRun = true
		case events.TypeReview:
			sawReview = true
		}
	}
	assert.True(t, sawRun)
	assert.True(t, sawReview)
}

func TestRefreshWorkspacesSurfacesErrors(t *testing.T) {
	h := newHarness(t)
	h.remote.EXPECT().ListWorkspaces(gomock.Any()).Return(nil, errors.New("dial tcp: connection refused"))

	err := h.session.RefreshWorkspaces(h.ctx)
	require.Error(t, err)
	assert.Equal(t, "dial tcp: connection refused", h.session.Snapshot().Error)
}
