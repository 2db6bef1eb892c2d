// Package watch is a full-screen monitor for a single controller run. It
// combines the run status poller with the controller's event stream.
package watch

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/ctlstudio/internal/events"
	"github.com/mattjoyce/ctlstudio/internal/runstatus"
	"github.com/mattjoyce/ctlstudio/internal/tui"
)

// maxEventLog bounds the retained event history.
const maxEventLog = 50

// Options configures the watcher.
type Options struct {
	APIURL      string
	Token       string
	RunID       string
	WorkspaceID string
	Poller      *runstatus.Poller
	// Wake receives a value whenever the poller changes state.
	Wake <-chan struct{}
	// Now defaults to time.Now.
	Now func() time.Time
}

// Model is the main BubbleTea model for the watch TUI.
type Model struct {
	apiURL      string
	token       string
	runID       string
	workspaceID string
	poller      *runstatus.Poller
	wake        <-chan struct{}
	now         func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	width  int
	height int

	// State
	run      runstatus.Snapshot
	stream   StreamState
	eventLog []events.Event

	// Live indicators
	ticker Ticker
	pulse  Pulse
	theme  tui.Theme

	// Communication
	hubEvents chan events.Event

	lastError string
	notice    string
}

// New creates a watch model. The poller is attached in Init.
func New(opts Options) Model {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	ctx, cancel := context.WithCancel(context.Background())
	return Model{
		apiURL:      opts.APIURL,
		token:       opts.Token,
		runID:       opts.RunID,
		workspaceID: opts.WorkspaceID,
		poller:      opts.Poller,
		wake:        opts.Wake,
		now:         now,
		ctx:         ctx,
		cancel:      cancel,
		eventLog:    make([]events.Event, 0),
		hubEvents:   make(chan events.Event, 100),
		ticker:      NewTicker(),
		theme:       tui.NewDefaultTheme(),
	}
}

func (m Model) Init() tea.Cmd {
	m.poller.Attach(m.runID, m.workspaceID)
	cmds := []tea.Cmd{
		subscribeToEvents(m.ctx, m.apiURL, m.token, 0, m.hubEvents),
		receiveNextEvent(m.hubEvents),
		tick(),
		tea.EnterAltScreen,
	}
	if m.wake != nil {
		cmds = append(cmds, waitForWake(m.wake))
	}
	return tea.Batch(cmds...)
}

type cancelDoneMsg struct{ err error }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.cancel()
			m.poller.Stop()
			return m, tea.Quit
		case "c":
			if !m.poller.Cancelable() {
				m.notice = "Run is not cancelable."
				return m, nil
			}
			m.notice = "Cancelling…"
			p, ctx := m.poller, m.ctx
			return m, func() tea.Msg {
				_, err := p.RequestCancel(ctx)
				return cancelDoneMsg{err: err}
			}
		case "r":
			p, ctx := m.poller, m.ctx
			return m, func() tea.Msg {
				p.Refresh(ctx)
				return wakeMsg{}
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		m.ticker.Tick()
		m.pulse.Decay(m.now())
		return m, tick()

	case wakeMsg:
		m.run = m.poller.Snapshot()
		m.pulse.Hit(m.now())
		if m.wake != nil {
			return m, waitForWake(m.wake)
		}

	case cancelDoneMsg:
		m.notice = "Cancel requested."
		if msg.err != nil {
			m.notice = ""
			m.lastError = msg.err.Error()
		}
		m.run = m.poller.Snapshot()

	case eventMsg:
		e := events.Event(msg)
		m.stream.Connected = true
		if e.ID > m.stream.LastID {
			m.stream.LastID = e.ID
		}
		m.lastError = ""
		if relevant(e, m.runID) {
			// Newest first
			m.eventLog = append([]events.Event{e}, m.eventLog...)
			if len(m.eventLog) > maxEventLog {
				m.eventLog = m.eventLog[:maxEventLog]
			}
			m.pulse.Hit(m.now())
		}
		return m, receiveNextEvent(m.hubEvents)

	case sseDisconnectedMsg:
		m.stream.Connected = false
		if m.ctx.Err() != nil {
			return m, nil
		}
		m.lastError = "Event stream disconnected, reconnecting..."
		// The pending receiveNextEvent keeps reading the same channel, so the
		// new subscription feeds it directly.
		return m, tea.Tick(3*time.Second, func(time.Time) tea.Msg {
			return reconnectMsg{}
		})

	case reconnectMsg:
		return m, subscribeToEvents(m.ctx, m.apiURL, m.token, m.stream.LastID, m.hubEvents)

	case errMsg:
		m.lastError = msg.Error()
		return m, tea.Tick(5*time.Second, func(time.Time) tea.Msg {
			return reconnectMsg{}
		})
	}

	return m, nil
}

func (m Model) View() string {
	if m.width == 0 {
		return "Initializing run watch..."
	}

	header := renderHeader(m.runID, m.stream, m.ticker, m.pulse, m.theme, m.width, m.now())
	runPanel := tui.RunPanel(m.theme, m.run, m.width)
	if runPanel == "" {
		runPanel = m.theme.Dim.Render(" Waiting for run status...")
	}
	eventStream := renderEventStream(m.eventLog, m.theme, m.width)

	parts := []string{header, runPanel, eventStream}
	if m.notice != "" {
		parts = append(parts, m.theme.Highlight.Render(" "+m.notice))
	}
	if m.lastError != "" {
		parts = append(parts, m.theme.StatusFailed.Render(fmt.Sprintf(" ⚠ %s", m.lastError)))
	}
	parts = append(parts, m.theme.Help.Render(" [q] Quit • [c] Cancel run • [r] Refresh"))

	return lipgloss.NewStyle().Margin(1, 2).Render(
		lipgloss.JoinVertical(lipgloss.Left, parts...),
	)
}
