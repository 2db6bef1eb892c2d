package studio

import "errors"

// Precondition failures. The text is shown to the operator verbatim, hence
// the sentence case and trailing periods.
var (
	ErrNoWorkspace      = errors.New("Select a workspace first.")
	ErrNoBundle         = errors.New("Select a workspace and bundle first.")
	ErrNoPreview        = errors.New("Run a preview cycle before approving the plan.")
	ErrNotApproved      = errors.New("Approve the latest plan before running the live cycle.")
	ErrNoReportSelected = errors.New("Select a timeline entry to replay it.")
	ErrStageIncomplete  = errors.New("Finish the current step before continuing.")
	ErrStageLocked      = errors.New("That step is still locked.")
	ErrBusy             = errors.New("Another action is still in progress.")
	ErrWorkspaceChanged = errors.New("The workspace changed while the action was running; its result was discarded.")
	ErrUnknownBundle    = errors.New("Bundle is not part of the current workspace.")
	ErrUnknownReport    = errors.New("Report is not part of the timeline.")
	ErrUnknownLLMConfig = errors.New("LLM config is not part of the current workspace.")
)

// errReplayNotApproved carries the replay wording but matches ErrNotApproved.
var errReplayNotApproved = &notApprovedError{msg: "Approve the plan before replaying the cycle."}

type notApprovedError struct{ msg string }

func (e *notApprovedError) Error() string { return e.msg }

func (e *notApprovedError) Is(target error) bool { return target == ErrNotApproved }
