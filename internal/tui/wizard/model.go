// Package wizard is the interactive terminal front end for a studio session.
//
// The model never holds workflow state of its own. Every keypress that
// changes the workflow calls into the studio.Session (blocking calls run as
// tea.Cmds), and every frame is rendered from a fresh session snapshot plus
// the run poller snapshot.
package wizard

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/mattjoyce/ctlstudio/internal/events"
	"github.com/mattjoyce/ctlstudio/internal/reconcile"
	"github.com/mattjoyce/ctlstudio/internal/remote"
	"github.com/mattjoyce/ctlstudio/internal/render"
	"github.com/mattjoyce/ctlstudio/internal/runstatus"
	"github.com/mattjoyce/ctlstudio/internal/studio"
	"github.com/mattjoyce/ctlstudio/internal/tui"
)

// actionTimeout bounds a single session call issued from the UI.
const actionTimeout = 2 * time.Minute

// activityLimit is how many notices the activity feed keeps.
const activityLimit = 4

// Notifier wakes the model when the run poller changes state. Pass its Notify
// method as runstatus.Options.OnUpdate.
type Notifier chan struct{}

// NewNotifier returns a notifier with room for one pending wake-up.
func NewNotifier() Notifier { return make(Notifier, 1) }

// Notify never blocks; wake-ups coalesce.
func (n Notifier) Notify(runstatus.Snapshot) {
	select {
	case n <- struct{}{}:
	default:
	}
}

// Options configures the model.
type Options struct {
	Session *studio.Session
	Poller  *runstatus.Poller
	Wake    Notifier
	// Events is the hub the session and poller publish to. Optional; when
	// set the wizard shows an activity feed built from it.
	Events *events.Hub
	Logger *slog.Logger
	// Styled renders the review with glamour. Off in tests and dumb terminals.
	Styled bool
}

// Input modes.
type inputMode int

const (
	modeNormal inputMode = iota
	modeMount
	modeLLMForm
)

// llm form fields, in tab order.
const (
	fieldModel = iota
	fieldTemplate
	fieldPromptVersion
	fieldModelID
	fieldModelVersion
	fieldCount
)

// Model is the bubbletea model for the wizard.
type Model struct {
	session *studio.Session
	poller  *runstatus.Poller
	wake    Notifier
	logger  *slog.Logger
	styled  bool
	theme   tui.Theme

	events      <-chan events.Event
	unsubscribe func()
	activity    []string

	width  int
	height int

	snap studio.Snapshot
	run  runstatus.Snapshot

	// cursors per list stage
	cursor map[studio.Stage]int

	mode       inputMode
	mountInput textinput.Model
	llmInputs  []textinput.Model
	llmFocus   int

	review       viewport.Model
	reviewSource *reconcile.Result

	keys     KeyMap
	help     help.Model
	spin     spinner.Model
	pending  int
	flash    string
	quitting bool
}

// --- Message types ---

// actionDoneMsg reports the end of a session call.
type actionDoneMsg struct {
	action string
	run    *remote.CycleRun
	err    error
}

// wakeMsg means the poller has a new snapshot.
type wakeMsg struct{}

// eventMsg carries one hub event.
type eventMsg events.Event

// New builds the model. Session and Poller are required.
func New(opts Options) Model {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	mount := textinput.New()
	mount.Placeholder = "/path/to/workspace"
	mount.CharLimit = 512

	labels := []string{"model", "prompt template version", "prompt version", "model id", "model version"}
	inputs := make([]textinput.Model, fieldCount)
	for i := range inputs {
		in := textinput.New()
		in.Placeholder = labels[i]
		in.CharLimit = 128
		inputs[i] = in
	}

	h := help.New()
	h.ShowAll = false

	m := Model{
		session:    opts.Session,
		poller:     opts.Poller,
		wake:       opts.Wake,
		logger:     logger,
		styled:     opts.Styled,
		theme:      tui.NewDefaultTheme(),
		cursor:     make(map[studio.Stage]int),
		mountInput: mount,
		llmInputs:  inputs,
		review:     viewport.New(80, 20),
		keys:       DefaultKeyMap(),
		help:       h,
		spin:       spinner.New(spinner.WithSpinner(spinner.Dot)),
	}
	if opts.Events != nil {
		m.events, m.unsubscribe = opts.Events.Subscribe()
	}
	m.sync()
	return m
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		m.refresh(),
		m.spin.Tick,
		tea.EnterAltScreen,
	}
	if m.wake != nil {
		cmds = append(cmds, waitForWake(m.wake))
	}
	if m.events != nil {
		cmds = append(cmds, waitForEvent(m.events))
	}
	return tea.Batch(cmds...)
}

// --- Commands ---

// perform runs fn as a command and reports the result as actionDoneMsg.
func (m *Model) perform(action string, fn func(ctx context.Context) (*remote.CycleRun, error)) tea.Cmd {
	m.pending++
	m.flash = ""
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		run, err := fn(ctx)
		return actionDoneMsg{action: action, run: run, err: err}
	}
}

func (m *Model) refresh() tea.Cmd {
	s := m.session
	return m.perform("refresh", func(ctx context.Context) (*remote.CycleRun, error) {
		return nil, s.RefreshWorkspaces(ctx)
	})
}

func waitForWake(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-ch
		return wakeMsg{}
	}
}

// waitForEvent yields nil once the subscription is closed.
func waitForEvent(ch <-chan events.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return nil
		}
		return eventMsg(ev)
	}
}

// --- Update ---

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.review.Width = max(msg.Width-6, 20)
		m.review.Height = max(msg.Height-14, 5)
		m.reviewSource = nil
		m.sync()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case wakeMsg:
		m.run = m.poller.Snapshot()
		return m, waitForWake(m.wake)

	case eventMsg:
		m.recordEvent(events.Event(msg))
		return m, waitForEvent(m.events)

	case actionDoneMsg:
		return m.handleDone(msg), nil

	case tea.KeyMsg:
		switch m.mode {
		case modeMount:
			return m.updateMount(msg)
		case modeLLMForm:
			return m.updateLLMForm(msg)
		}
		return m.updateNormal(msg)
	}
	return m, nil
}

func (m Model) handleDone(msg actionDoneMsg) Model {
	if m.pending > 0 {
		m.pending--
	}
	if msg.err != nil {
		m.flash = errorText(msg.err)
		m.logger.Warn("action failed", "action", msg.action, "error", msg.err)
	}
	if msg.err == nil && msg.run != nil && (msg.action == "preview" || msg.action == "live" || msg.action == "replay") {
		m.poller.Attach(msg.run.RunID, m.session.WorkspaceID())
	}
	if msg.action == "cancel" && msg.err == nil {
		m.flash = "Cancel requested."
	}
	m.sync()
	return m
}

func (m Model) updateNormal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	stage := m.snap.Stage
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		m.poller.Stop()
		if m.unsubscribe != nil {
			m.unsubscribe()
		}
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil

	case key.Matches(msg, m.keys.Next):
		m.flash = ""
		if _, err := m.session.Advance(); err != nil {
			m.flash = errorText(err)
		}

	case key.Matches(msg, m.keys.Back):
		m.flash = ""
		m.session.Retreat()

	case key.Matches(msg, m.keys.Jump):
		m.flash = ""
		target := studio.Stage(msg.String()[0] - '0')
		if err := m.session.JumpTo(target); err != nil {
			m.flash = errorText(err)
		}

	case key.Matches(msg, m.keys.Up):
		if stage == studio.StageReviewPlan {
			m.review.ScrollUp(1)
			return m, nil
		}
		m.moveCursor(-1)
		return m, nil

	case key.Matches(msg, m.keys.Down):
		if stage == studio.StageReviewPlan {
			m.review.ScrollDown(1)
			return m, nil
		}
		m.moveCursor(1)
		return m, nil

	case key.Matches(msg, m.keys.Refresh):
		return m, m.refresh()

	case key.Matches(msg, m.keys.Mount):
		m.mode = modeMount
		m.mountInput.SetValue("")
		return m, m.mountInput.Focus()

	case key.Matches(msg, m.keys.Workspace):
		return m, m.cycleWorkspace()

	case key.Matches(msg, m.keys.Cancel):
		return m, m.cancelRun()

	case key.Matches(msg, m.keys.Approve):
		m.flash = ""
		if _, err := m.session.ApprovePlan(); err != nil {
			m.flash = errorText(err)
		}

	case key.Matches(msg, m.keys.Run):
		if cmd := m.runAction(stage); cmd != nil {
			return m, cmd
		}

	case key.Matches(msg, m.keys.Edit):
		if stage == studio.StageConfigureModel {
			m.openLLMForm()
			return m, m.llmInputs[m.llmFocus].Focus()
		}

	case key.Matches(msg, m.keys.Select):
		if cmd := m.selectAction(stage); cmd != nil {
			return m, cmd
		}
	}
	m.sync()
	return m, nil
}

// selectAction is the enter key for the active stage.
func (m *Model) selectAction(stage studio.Stage) tea.Cmd {
	m.flash = ""
	s := m.session
	switch stage {
	case studio.StageSelectBundle:
		if b, ok := pick(m.snap.Bundles, m.cursor[stage]); ok {
			if err := s.SelectBundle(b.ArtifactID); err != nil {
				m.flash = errorText(err)
			}
		}
	case studio.StageConfigureModel:
		// Row 0 clears the selection; config rows follow.
		idx := m.cursor[stage]
		id := ""
		if c, ok := pick(m.snap.LLMConfigs, idx-1); ok {
			id = c.ConfigID
		}
		if err := s.SelectLLMConfig(id); err != nil {
			m.flash = errorText(err)
		}
	case studio.StageRunPreview:
		return m.perform("preview", s.Preview)
	case studio.StageReviewPlan:
		if _, err := s.Advance(); err != nil {
			m.flash = errorText(err)
		}
	case studio.StageApprove:
		return m.runAction(stage)
	case studio.StageHistory:
		if r, ok := pick(m.snap.Reports, m.cursor[stage]); ok {
			if err := s.SelectReport(r.RunID); err != nil {
				m.flash = errorText(err)
			}
		}
	case studio.StageReplay:
		return m.runAction(stage)
	}
	return nil
}

// runAction is the r key: live run on the approval stage, replay elsewhere
// once a report is selected.
func (m *Model) runAction(stage studio.Stage) tea.Cmd {
	s := m.session
	switch {
	case stage == studio.StageApprove:
		return m.perform("live", s.RunLive)
	case stage == studio.StageReplay || stage == studio.StageHistory:
		return m.perform("replay", s.Replay)
	}
	m.flash = "Nothing to run on this step."
	return nil
}

func (m *Model) cancelRun() tea.Cmd {
	if m.run.RunID == "" {
		m.flash = "No run is being tracked."
		return nil
	}
	if !m.poller.Cancelable() {
		m.flash = "The tracked run cannot be cancelled."
		return nil
	}
	p := m.poller
	return m.perform("cancel", func(ctx context.Context) (*remote.CycleRun, error) {
		_, err := p.RequestCancel(ctx)
		return nil, err
	})
}

// cycleWorkspace selects the workspace after the current one.
func (m *Model) cycleWorkspace() tea.Cmd {
	list := m.snap.Workspaces
	if len(list) == 0 {
		m.flash = "No workspaces mounted. Press m to mount one."
		return nil
	}
	next := 0
	current := m.snap.WorkspaceID()
	for i, ws := range list {
		if ws.ID == current {
			next = (i + 1) % len(list)
			break
		}
	}
	if list[next].ID == current {
		return nil
	}
	s := m.session
	id := list[next].ID
	return m.perform("workspace", func(ctx context.Context) (*remote.CycleRun, error) {
		_, err := s.SelectWorkspace(ctx, id)
		return nil, err
	})
}

func (m *Model) moveCursor(delta int) {
	stage := m.snap.Stage
	n := m.listLen(stage)
	if n == 0 {
		return
	}
	c := m.cursor[stage] + delta
	c = min(max(c, 0), n-1)
	m.cursor[stage] = c
}

func (m Model) listLen(stage studio.Stage) int {
	switch stage {
	case studio.StageSelectBundle:
		return len(m.snap.Bundles)
	case studio.StageConfigureModel:
		return len(m.snap.LLMConfigs) + 1
	case studio.StageHistory:
		return len(m.snap.Reports)
	}
	return 0
}

// --- Text input modes ---

func (m Model) updateMount(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.mode = modeNormal
		m.mountInput.Blur()
		return m, nil
	case tea.KeyEnter:
		path := strings.TrimSpace(m.mountInput.Value())
		m.mode = modeNormal
		m.mountInput.Blur()
		if path == "" {
			m.flash = "Workspace path is required."
			return m, nil
		}
		s := m.session
		return m, m.perform("mount", func(ctx context.Context) (*remote.CycleRun, error) {
			_, err := s.MountWorkspace(ctx, path)
			return nil, err
		})
	}
	var cmd tea.Cmd
	m.mountInput, cmd = m.mountInput.Update(msg)
	return m, cmd
}

func (m *Model) openLLMForm() {
	llm := m.snap.LLM
	values := []string{llm.Model, llm.PromptTemplateVersion, llm.PromptVersion, llm.ModelID, llm.ModelVersion}
	if values[fieldTemplate] == "" && len(m.snap.PromptTemplates) > 0 {
		values[fieldTemplate] = m.snap.PromptTemplates[0].Version
	}
	for i := range m.llmInputs {
		m.llmInputs[i].SetValue(values[i])
		m.llmInputs[i].Blur()
	}
	m.llmFocus = 0
	m.mode = modeLLMForm
}

func (m Model) formSelection() reconcile.LLMSelection {
	v := func(i int) string { return strings.TrimSpace(m.llmInputs[i].Value()) }
	return reconcile.LLMSelection{
		Model:                 v(fieldModel),
		PromptTemplateVersion: v(fieldTemplate),
		PromptVersion:         v(fieldPromptVersion),
		ModelID:               v(fieldModelID),
		ModelVersion:          v(fieldModelVersion),
	}
}

func (m Model) updateLLMForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.Type == tea.KeyEsc:
		m.closeLLMForm()
		m.session.SetLLMForm(m.formSelection())
		m.sync()
		return m, nil
	case key.Matches(msg, m.keys.Save):
		m.closeLLMForm()
		form := m.formSelection()
		if form.Model == "" || form.PromptTemplateVersion == "" {
			m.flash = "Model and prompt template version are required."
			return m, nil
		}
		m.session.SetLLMForm(form)
		s := m.session
		return m, m.perform("llm", func(ctx context.Context) (*remote.CycleRun, error) {
			_, err := s.CreateLLMConfig(ctx)
			return nil, err
		})
	case msg.Type == tea.KeyTab, msg.Type == tea.KeyDown, msg.Type == tea.KeyEnter:
		return m, m.focusField(m.llmFocus + 1)
	case msg.Type == tea.KeyShiftTab, msg.Type == tea.KeyUp:
		return m, m.focusField(m.llmFocus - 1)
	}
	var cmd tea.Cmd
	m.llmInputs[m.llmFocus], cmd = m.llmInputs[m.llmFocus].Update(msg)
	return m, cmd
}

func (m *Model) focusField(i int) tea.Cmd {
	m.llmInputs[m.llmFocus].Blur()
	m.llmFocus = (i + fieldCount) % fieldCount
	return m.llmInputs[m.llmFocus].Focus()
}

func (m *Model) closeLLMForm() {
	m.llmInputs[m.llmFocus].Blur()
	m.mode = modeNormal
}

// --- State sync ---

// sync refreshes the snapshots and everything derived from them.
func (m *Model) sync() {
	m.snap = m.session.Snapshot()
	m.run = m.poller.Snapshot()

	// A workspace switch orphans the tracked run.
	if m.run.RunID != "" && m.run.WorkspaceID != "" && m.run.WorkspaceID != m.snap.WorkspaceID() {
		m.poller.Stop()
		m.run = m.poller.Snapshot()
	}

	for stage := range m.cursor {
		if n := m.listLen(stage); m.cursor[stage] >= n {
			m.cursor[stage] = max(n-1, 0)
		}
	}

	if m.snap.Review != m.reviewSource || m.reviewSource == nil {
		m.reviewSource = m.snap.Review
		content := render.NoEffectsText
		if m.snap.Review != nil {
			content = render.Markdown(render.ReviewMarkdown(m.snap.Review), m.review.Width, m.styled)
		}
		m.review.SetContent(content)
	}
}

func pick[T any](items []T, i int) (T, bool) {
	var zero T
	if i < 0 || i >= len(items) {
		return zero, false
	}
	return items[i], true
}

// recordEvent folds a hub event into the model. Workspace changes resync so
// an orphaned run is detached; run status notices refresh the run panel.
func (m *Model) recordEvent(ev events.Event) {
	switch ev.Type {
	case events.TypeWorkspace:
		m.sync()
	case events.TypeRunStatus:
		m.run = m.poller.Snapshot()
	}
	line := describeEvent(ev)
	if line == "" {
		return
	}
	m.activity = append(m.activity, ev.At.Local().Format("15:04:05")+" "+line)
	if n := len(m.activity); n > activityLimit {
		m.activity = m.activity[n-activityLimit:]
	}
}

// describeEvent is the feed line for ev, or "" for events the feed skips.
func describeEvent(ev events.Event) string {
	switch ev.Type {
	case events.TypeStatus, events.TypeError:
		var msg events.Message
		if err := ev.Decode(&msg); err != nil || msg.Text == "" {
			return ""
		}
		if ev.Type == events.TypeError {
			return "error: " + msg.Text
		}
		return msg.Text
	case events.TypeRun:
		var n events.RunNotice
		if err := ev.Decode(&n); err != nil {
			return ""
		}
		result := "failed"
		if n.Success {
			result = "success"
		}
		return fmt.Sprintf("%s run %s: %s", n.Mode, n.RunID, result)
	case events.TypeWorkspace:
		var p map[string]string
		if err := ev.Decode(&p); err != nil {
			return ""
		}
		if p["workspace_id"] == "" {
			return "no workspace selected"
		}
		return "workspace " + p["workspace_id"]
	case events.TypeRunStatus:
		var n events.RunStatusNotice
		if err := ev.Decode(&n); err != nil {
			return ""
		}
		return fmt.Sprintf("run %s: %s", n.RunID, n.Status)
	}
	return ""
}

// errorText is the operator-facing text of err. API errors render as the
// status code followed by the server's message.
func errorText(err error) string {
	if apiErr := remote.AsAPIError(err); apiErr != nil {
		return apiErr.Error()
	}
	return err.Error()
}

var _ tea.Model = Model{}
