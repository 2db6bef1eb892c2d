package studio

import (
	"slices"

	"github.com/mattjoyce/ctlstudio/internal/reconcile"
	"github.com/mattjoyce/ctlstudio/internal/remote"
)

// Snapshot is a read-only copy of the session for rendering.
type Snapshot struct {
	Stage       Stage
	MaxUnlocked Stage

	Workspaces []remote.Workspace
	Workspace  *remote.Workspace

	Bundles          []remote.Bundle
	SelectedBundleID string

	PromptTemplates []remote.PromptTemplate
	LLMConfigs      []remote.LLMConfig
	LLM             reconcile.LLMSelection

	PreviewCompleted bool
	LatestRun        *remote.CycleRun
	FinalRun         *remote.CycleRun
	PlanApproved     bool
	ApprovalToken    string
	Review           *reconcile.Result

	Reports          []remote.ReportSummary
	SelectedReportID string
	ReplayNotice     string

	Busy   bool
	Status string
	Error  string
}

// Snapshot copies the session state. Runs and reviews are shared; the
// session replaces them but never mutates them in place.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	st := s.state
	snap := Snapshot{
		Workspaces:       slices.Clone(st.workspaces),
		Bundles:          slices.Clone(st.bundles),
		SelectedBundleID: st.selectedBundleID,
		PromptTemplates:  slices.Clone(st.templates),
		LLMConfigs:       slices.Clone(st.configs),
		LLM:              st.llm,
		PreviewCompleted: st.previewCompleted,
		LatestRun:        st.latestRun,
		FinalRun:         st.finalRun,
		PlanApproved:     st.planApproved,
		ApprovalToken:    st.approvalToken,
		Review:           st.review,
		Reports:          slices.Clone(st.reports),
		SelectedReportID: st.selectedReportID,
		ReplayNotice:     st.replayNotice,
		Busy:             st.busy,
		Status:           st.statusMsg,
		Error:            st.errorMsg,
	}
	if st.current != nil {
		ws := *st.current
		snap.Workspace = &ws
	}
	s.mu.Unlock()

	snap.Stage = s.gate.Active()
	snap.MaxUnlocked = s.gate.MaxUnlocked()
	return snap
}

// Predicates derives the stage guards from the snapshot.
func (s Snapshot) Predicates() Predicates {
	return Predicates{
		WorkspaceSelected: s.Workspace != nil,
		BundleSelected:    s.SelectedBundleID != "",
		PreviewCompleted:  s.PreviewCompleted,
		DiffEntries:       diffLen(s.Diff()),
		HasLiveRun:        s.FinalRun != nil,
		HistoryEntries:    len(s.Reports),
		ReportSelected:    s.SelectedReportID != "",
	}
}

// CanAdvance reports whether the active stage is complete.
func (s Snapshot) CanAdvance() bool {
	return CanAdvance(s.Stage, s.Predicates())
}

// Diff returns the reconciled diff, if any.
func (s Snapshot) Diff() *remote.DiffResult {
	if s.Review == nil {
		return nil
	}
	return s.Review.Diff
}

// SelectedReport returns the selected history entry.
func (s Snapshot) SelectedReport() *remote.ReportSummary {
	for i := range s.Reports {
		if s.Reports[i].RunID == s.SelectedReportID {
			return &s.Reports[i]
		}
	}
	return nil
}

// SelectedBundle returns the selected bundle entry.
func (s Snapshot) SelectedBundle() *remote.Bundle {
	for i := range s.Bundles {
		if s.Bundles[i].ArtifactID == s.SelectedBundleID {
			return &s.Bundles[i]
		}
	}
	return nil
}

// WorkspaceID returns the current workspace id or "".
func (s Snapshot) WorkspaceID() string {
	return workspaceID(s.Workspace)
}
