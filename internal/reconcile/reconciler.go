// Package reconcile joins the documents produced by one cycle run into a
// single review model.
//
// The report of a run references up to four artifacts: the environment
// snapshot, the proposed plan, the execution report, and the originating
// bundle. Each is fetched into its own slot; a slot that fails stays nil and
// never blocks the others. The result is always fully populated so a display
// layer can render it without nil checks beyond the documented slots.
package reconcile

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/mattjoyce/ctlstudio/internal/document"
	"github.com/mattjoyce/ctlstudio/internal/policy"
	"github.com/mattjoyce/ctlstudio/internal/remote"
)

// Report keys holding artifact identifiers.
const (
	KeySnapshot  = "env_snapshot"
	KeyPlan      = "proposed_change_plan"
	KeyExecution = "execution_report"
	KeyBundle    = "bundle_artifact_id"
	KeyPolicy    = "policy_decisions"
	KeyLLMMeta   = "llm_metadata"
)

// Fetcher is the slice of the controller API the reconciler needs.
type Fetcher interface {
	GetArtifactDocument(ctx context.Context, artifactID, workspaceID string) (*remote.ArtifactDocument, error)
	DiffArtifacts(ctx context.Context, baseID, compareID, workspaceID string) (*remote.DiffResult, error)
}

// Refs are the artifact identifiers found in a report.
type Refs struct {
	SnapshotID  string
	PlanID      string
	ExecutionID string
	BundleID    string
}

// ExtractRefs reads artifact identifiers from a report. Missing or non-string
// values are left empty.
func ExtractRefs(report document.Document) Refs {
	return Refs{
		SnapshotID:  report.StringOr(KeySnapshot, ""),
		PlanID:      report.StringOr(KeyPlan, ""),
		ExecutionID: report.StringOr(KeyExecution, ""),
		BundleID:    report.StringOr(KeyBundle, ""),
	}
}

// LLMSelection is the model configuration chosen for a run.
type LLMSelection struct {
	ConfigID              string
	Model                 string
	PromptTemplateVersion string
	PromptVersion         string
	ModelID               string
	ModelVersion          string
}

// SlotError records a fetch that degraded to an empty slot.
type SlotError struct {
	Slot       string
	ArtifactID string
	Err        string
}

// Result is the reconciled review of one run.
type Result struct {
	RunID string
	Refs  Refs

	Plan      *remote.ArtifactDocument
	Execution *remote.ArtifactDocument
	Bundle    *remote.ArtifactDocument
	Diff      *remote.DiffResult

	PlanOverview PlanOverview
	Decisions    []policy.Decision
	Policies     []PolicyRow
	Effects      []EffectRow
	Evidence     []Evidence
	Summary      policy.Summary

	LLM           LLMSelection
	LLMBackfilled bool

	FetchErrors []SlotError
}

// HasDiff reports whether the run produced at least one diff entry.
func (r *Result) HasDiff() bool {
	return r != nil && r.Diff != nil && len(r.Diff.Diff) > 0
}

// PlanOverview is the header of the plan document.
type PlanOverview struct {
	PlanID     string
	Summary    string
	SnapshotID string
}

// Reconciler builds Results.
type Reconciler struct {
	fetcher Fetcher
	logger  *slog.Logger
}

// New creates a reconciler.
func New(fetcher Fetcher, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{fetcher: fetcher, logger: logger}
}

// Reconcile fetches and joins the documents referenced by run. prior is the
// model selection currently entered by the operator.
func (r *Reconciler) Reconcile(ctx context.Context, run *remote.CycleRun, workspaceID string, prior LLMSelection) *Result {
	res := &Result{
		LLM:       prior,
		Decisions: []policy.Decision{},
		Policies:  []PolicyRow{},
		Effects:   []EffectRow{},
		Evidence:  []Evidence{},
	}
	if run == nil {
		return res
	}
	res.RunID = run.RunID
	res.Refs = ExtractRefs(run.Report)

	var (
		planErr, execErr, bundleErr error
	)
	var g errgroup.Group
	g.Go(func() error {
		res.Plan, planErr = r.fetch(ctx, res.Refs.PlanID, workspaceID)
		return nil
	})
	g.Go(func() error {
		res.Execution, execErr = r.fetch(ctx, res.Refs.ExecutionID, workspaceID)
		return nil
	})
	g.Go(func() error {
		res.Bundle, bundleErr = r.fetch(ctx, res.Refs.BundleID, workspaceID)
		return nil
	})
	_ = g.Wait()

	r.noteSlot(res, "plan", res.Refs.PlanID, planErr)
	r.noteSlot(res, "execution", res.Refs.ExecutionID, execErr)
	r.noteSlot(res, "bundle", res.Refs.BundleID, bundleErr)

	if res.Plan != nil {
		res.PlanOverview = PlanOverview{
			PlanID:     res.Plan.Body.StringOr("plan_id", ""),
			Summary:    res.Plan.Body.StringOr("summary", ""),
			SnapshotID: res.Plan.Body.StringOr("snapshot_id", ""),
		}
		if meta, ok := res.Plan.Body.Map(KeyLLMMeta); ok {
			res.LLM = BackfillLLM(prior, meta)
			res.LLMBackfilled = true
		}
	}

	if res.Refs.SnapshotID != "" && res.Refs.PlanID != "" {
		diff, err := r.fetcher.DiffArtifacts(ctx, res.Refs.SnapshotID, res.Refs.PlanID, workspaceID)
		if err != nil {
			r.logger.Warn("diff failed",
				"run_id", res.RunID,
				"base_id", res.Refs.SnapshotID,
				"compare_id", res.Refs.PlanID,
				"error", err)
			res.FetchErrors = append(res.FetchErrors, SlotError{Slot: "diff", ArtifactID: res.Refs.PlanID, Err: err.Error()})
		} else {
			res.Diff = diff
		}
	}

	raw, _ := run.Report.Value(KeyPolicy)
	res.Decisions = policy.Normalize(raw)
	res.Summary = policy.Summarize(res.Decisions)

	index := BuildEffectIndex(res.Bundle)
	res.Policies = JoinPolicies(res.Decisions, index)
	if rows := BuildEffectRows(res.Plan, index, res.Decisions); rows != nil {
		res.Effects = rows
	}
	if ev := BuildEvidence(res.Execution); ev != nil {
		res.Evidence = ev
	}
	return res
}

func (r *Reconciler) fetch(ctx context.Context, artifactID, workspaceID string) (*remote.ArtifactDocument, error) {
	if artifactID == "" {
		return nil, nil
	}
	return r.fetcher.GetArtifactDocument(ctx, artifactID, workspaceID)
}

func (r *Reconciler) noteSlot(res *Result, slot, artifactID string, err error) {
	if err == nil {
		return
	}
	r.logger.Warn("artifact fetch failed",
		"run_id", res.RunID,
		"slot", slot,
		"artifact_id", artifactID,
		"error", err)
	res.FetchErrors = append(res.FetchErrors, SlotError{Slot: slot, ArtifactID: artifactID, Err: err.Error()})
}

// BackfillLLM overlays non-empty metadata fields on prior. The config id is
// taken from the metadata as-is: a plan that records no config clears it.
func BackfillLLM(prior LLMSelection, meta document.Document) LLMSelection {
	return LLMSelection{
		ConfigID:              meta.StringOr("config_id", ""),
		Model:                 meta.StringOr("model", prior.Model),
		PromptTemplateVersion: meta.StringOr("prompt_template_version", prior.PromptTemplateVersion),
		PromptVersion:         meta.StringOr("prompt_version", prior.PromptVersion),
		ModelID:               meta.StringOr("model_id", prior.ModelID),
		ModelVersion:          meta.StringOr("model_version", prior.ModelVersion),
	}
}
