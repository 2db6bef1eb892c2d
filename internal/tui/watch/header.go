package watch

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/ctlstudio/internal/tui"
)

// StreamState tracks the event stream connection.
type StreamState struct {
	Connected bool
	LastID    int64
}

func renderHeader(runID string, stream StreamState, ticker Ticker, pulse Pulse, theme tui.Theme, width int, now time.Time) string {
	innerWidth := width - 4

	tickerStr := theme.Highlight.Render(ticker.Current())
	clock := theme.Dim.Render(now.Format("15:04:05"))
	titleText := fmt.Sprintf(" RUN WATCH %s %s", theme.Header.Render(runID), tickerStr)

	titleWidth := lipgloss.Width(titleText)
	clockWidth := lipgloss.Width(clock)
	pad := max(innerWidth-titleWidth-clockWidth-4, 1)
	titleLine := titleText + strings.Repeat(" ", pad) + clock + " "

	streamText := theme.StatusOK.Render("stream connected")
	if !stream.Connected {
		streamText = theme.StatusFailed.Render("stream connecting")
	}

	lastSeen := "never"
	if !pulse.LastSeen().IsZero() {
		lastSeen = tui.FormatDuration(now.Sub(pulse.LastSeen())) + " ago"
	}
	activityLine := fmt.Sprintf(" %s  Last update: %s %s", streamText, lastSeen, pulse.Render(theme))

	return theme.Border.Width(innerWidth).Render(
		lipgloss.JoinVertical(lipgloss.Left, titleLine, activityLine),
	)
}
