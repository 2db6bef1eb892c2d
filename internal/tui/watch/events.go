package watch

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/ctlstudio/internal/events"
	"github.com/mattjoyce/ctlstudio/internal/tui"
)

// maxEventLines is how many events the stream panel shows.
const maxEventLines = 10

// runEvent is the subset of run notices the watcher reads.
type runEvent struct {
	RunID    string `json:"run_id"`
	Mode     string `json:"mode"`
	Status   string `json:"status"`
	Success  *bool  `json:"success"`
	Canceled bool   `json:"canceled"`
	Error    string `json:"error"`
	Text     string `json:"text"`
}

func decodeRunEvent(e events.Event) runEvent {
	var ev runEvent
	_ = e.Decode(&ev)
	return ev
}

// relevant keeps events about runID plus notices without a run id.
func relevant(e events.Event, runID string) bool {
	ev := decodeRunEvent(e)
	return ev.RunID == "" || ev.RunID == runID
}

func renderEventStream(eventLog []events.Event, theme tui.Theme, width int) string {
	innerWidth := width - 4

	if len(eventLog) == 0 {
		content := lipgloss.JoinVertical(lipgloss.Left,
			theme.Title.Render("EVENT STREAM"),
			theme.Dim.Render("  Waiting for events..."),
		)
		return theme.Border.Width(innerWidth).Render(content)
	}

	var lines []string
	for i, e := range eventLog {
		if i >= maxEventLines {
			break
		}
		lines = append(lines, formatEvent(e, theme))
	}

	eventsText := lipgloss.NewStyle().Padding(0, 1).Render(strings.Join(lines, "\n"))
	content := lipgloss.JoinVertical(lipgloss.Left,
		theme.Title.Render("EVENT STREAM"),
		eventsText,
	)

	return theme.Border.Width(innerWidth).Render(content)
}

func formatEvent(e events.Event, theme tui.Theme) string {
	ts := theme.Dim.Render(e.At.Format("15:04:05"))
	ev := decodeRunEvent(e)

	typeStyle := theme.Dim
	switch {
	case e.Type == events.TypeRunStatus:
		typeStyle = theme.StatusStyle(ev.Status)
	case e.Type == events.TypeError:
		typeStyle = theme.StatusFailed
	case e.Type == events.TypeRun && ev.Success != nil && !*ev.Success:
		typeStyle = theme.StatusFailed
	case e.Type == events.TypeRun:
		typeStyle = theme.StatusOK
	}

	typeName := typeStyle.Render(fmt.Sprintf("%-14s", e.Type))
	return fmt.Sprintf("%s %s %s", ts, typeName, describe(e, ev))
}

func describe(e events.Event, ev runEvent) string {
	var parts []string
	if ev.Mode != "" {
		parts = append(parts, ev.Mode)
	}
	if ev.Status != "" {
		parts = append(parts, ev.Status)
	}
	if ev.Success != nil {
		parts = append(parts, map[bool]string{true: "success", false: "failed"}[*ev.Success])
	}
	if ev.Canceled {
		parts = append(parts, "canceled")
	}
	if ev.Error != "" {
		parts = append(parts, ev.Error)
	}
	if ev.Text != "" {
		parts = append(parts, ev.Text)
	}

	if len(parts) == 0 {
		raw := string(e.Data)
		if len(raw) > 60 {
			raw = raw[:60] + "..."
		}
		return raw
	}
	return strings.Join(parts, " ")
}
