package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/ctlstudio/internal/render"
	"github.com/mattjoyce/ctlstudio/internal/runstatus"
)

// RunPanel renders a poller snapshot. Empty when no run is attached.
func RunPanel(theme Theme, run runstatus.Snapshot, width int) string {
	if run.RunID == "" {
		return ""
	}
	status := "…"
	step, started, ended := render.Placeholder, render.Placeholder, render.Placeholder
	var lastErr string
	attempt := 0
	if st := run.Status; st != nil {
		status = theme.StatusStyle(st.Status).Render(st.Status)
		step = render.Deref(st.CurrentStep)
		started = render.FormatTime(st.StartedAt)
		ended = render.FormatTimePtr(st.EndedAt)
		attempt = st.Attempt
		if st.LastError != nil {
			lastErr = *st.LastError
		}
	}
	lines := []string{
		theme.Title.Render("RUN " + run.RunID),
		fmt.Sprintf(" %s  step %s  attempt %d  started %s  ended %s", status, step, attempt, started, ended),
	}
	if run.Canceling {
		lines = append(lines, theme.StatusRunning.Render(" cancel requested…"))
	}
	if lastErr != "" {
		lines = append(lines, theme.StatusFailed.Render(" last error: "+lastErr))
	}
	if run.Err != "" {
		lines = append(lines, theme.StatusFailed.Render(" ⚠ "+run.Err))
	}
	if run.Cancelable {
		lines = append(lines, theme.Dim.Render(" c cancel"))
	}
	return theme.Border.Width(width - 4).Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}
