package studio

import "sync"

// Stage is a 1-based wizard step.
type Stage int

const (
	StageSelectBundle Stage = iota + 1
	StageConfigureModel
	StageRunPreview
	StageReviewPlan
	StageApprove
	StageHistory
	StageReplay
)

// FirstStage and LastStage bound the wizard.
const (
	FirstStage = StageSelectBundle
	LastStage  = StageReplay
)

// StageInfo is the display text of a stage.
type StageInfo struct {
	Stage   Stage
	Title   string
	Summary string
}

// Stages lists every stage in order.
var Stages = []StageInfo{
	{StageSelectBundle, "Select bundle", "Mount or pick a workspace and choose an accepted bundle."},
	{StageConfigureModel, "Configure LLM", "Pick or create a recorded config so the server knows which model + prompt template to use."},
	{StageRunPreview, "Run preview cycle", "Generate a preview cycle to capture the proposed plan."},
	{StageReviewPlan, "Review plan diff", "Inspect hashes, policy decisions, evidence, and plan diff."},
	{StageApprove, "Approve & act", "Commit the approved plan so the controller writes artifacts + reports."},
	{StageHistory, "Report timeline", "Browse recorded runs that the controller persists."},
	{StageReplay, "Replay", "Replay a past report without editing YAML or CLI."},
}

// Info returns the display text of s.
func (s Stage) Info() StageInfo {
	if !s.Valid() {
		return StageInfo{Stage: s}
	}
	return Stages[s-1]
}

// Valid reports whether s is a wizard stage.
func (s Stage) Valid() bool {
	return s >= FirstStage && s <= LastStage
}

// Predicates is the workflow state the stage guards read.
type Predicates struct {
	WorkspaceSelected bool
	BundleSelected    bool
	PreviewCompleted  bool
	DiffEntries       int
	HasLiveRun        bool
	HistoryEntries    int
	ReportSelected    bool
}

// Gate tracks the active stage and the furthest unlocked stage.
//
// The watermark only grows between resets. Background events can raise it
// without moving the active stage.
type Gate struct {
	mu          sync.Mutex
	active      Stage
	maxUnlocked Stage
}

// NewGate starts at the first stage with nothing else unlocked.
func NewGate() *Gate {
	return &Gate{active: FirstStage, maxUnlocked: FirstStage}
}

// CanAdvance evaluates the guard of stage against p.
func CanAdvance(stage Stage, p Predicates) bool {
	switch stage {
	case StageSelectBundle:
		return p.WorkspaceSelected && p.BundleSelected
	case StageConfigureModel:
		return true
	case StageRunPreview:
		return p.PreviewCompleted
	case StageReviewPlan:
		return p.DiffEntries > 0
	case StageApprove:
		return p.HasLiveRun
	case StageHistory:
		return p.HistoryEntries > 0
	case StageReplay:
		return p.ReportSelected
	default:
		return false
	}
}

// Active returns the current stage.
func (g *Gate) Active() Stage {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.active
}

// MaxUnlocked returns the watermark.
func (g *Gate) MaxUnlocked() Stage {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.maxUnlocked
}

// Advance moves to the next stage when the active stage's guard holds.
func (g *Gate) Advance(p Predicates) (Stage, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !CanAdvance(g.active, p) {
		return g.active, ErrStageIncomplete
	}
	if g.active < LastStage {
		g.active++
	}
	if g.active > g.maxUnlocked {
		g.maxUnlocked = g.active
	}
	return g.active, nil
}

// Retreat moves back one stage, stopping at the first.
func (g *Gate) Retreat() Stage {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.active > FirstStage {
		g.active--
	}
	return g.active
}

// JumpTo moves to any unlocked stage.
func (g *Gate) JumpTo(stage Stage) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !stage.Valid() || stage > g.maxUnlocked {
		return ErrStageLocked
	}
	g.active = stage
	return nil
}

// Unlock raises the watermark to at least stage.
func (g *Gate) Unlock(stage Stage) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if stage > LastStage {
		stage = LastStage
	}
	if stage > g.maxUnlocked {
		g.maxUnlocked = stage
	}
}

// Reset returns to the first stage and drops the watermark.
func (g *Gate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.active = FirstStage
	g.maxUnlocked = FirstStage
}
