package wizard

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/ctlstudio/internal/render"
	"github.com/mattjoyce/ctlstudio/internal/studio"
	"github.com/mattjoyce/ctlstudio/internal/tui"
)

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	width := m.width
	if width == 0 {
		width = render.TerminalWidth()
	}

	parts := []string{
		m.renderHeader(width),
		m.renderStepper(),
		m.renderStage(width),
	}
	if runView := m.renderRun(width); runView != "" {
		parts = append(parts, runView)
	}
	if bar := m.renderStatus(); bar != "" {
		parts = append(parts, bar)
	}
	if feed := m.renderActivity(); feed != "" {
		parts = append(parts, feed)
	}
	parts = append(parts, m.theme.Help.Render(m.help.View(m.keys)))

	return lipgloss.NewStyle().Margin(1, 2).Render(
		lipgloss.JoinVertical(lipgloss.Left, parts...),
	)
}

func (m Model) renderHeader(width int) string {
	ws := m.theme.Dim.Render("no workspace")
	if m.snap.Workspace != nil {
		ws = m.theme.Highlight.Render(m.snap.Workspace.Name) + m.theme.Dim.Render(" "+m.snap.Workspace.Root)
	}
	bundle := m.theme.Dim.Render("no bundle")
	if b := m.snap.SelectedBundle(); b != nil {
		bundle = m.theme.Highlight.Render(b.ArtifactID)
	}
	approval := m.theme.StatusQueued.Render("not approved")
	if m.snap.PlanApproved {
		approval = m.theme.StatusOK.Render("approved")
	}
	title := m.theme.Title.Render("CONTROLLER STUDIO")
	line := fmt.Sprintf(" %s  bundle %s  plan %s", ws, bundle, approval)
	return m.theme.Border.Width(width - 4).Render(lipgloss.JoinVertical(lipgloss.Left, title, line))
}

// renderStepper lists the seven steps with lock state.
func (m Model) renderStepper() string {
	var cells []string
	for _, info := range studio.Stages {
		label := fmt.Sprintf("%d %s", info.Stage, info.Title)
		switch {
		case info.Stage == m.snap.Stage:
			label = m.theme.Selected.Render(" " + label + " ")
		case info.Stage <= m.snap.MaxUnlocked:
			label = m.theme.Header.Render(label)
		default:
			label = m.theme.Dim.Render(label)
		}
		cells = append(cells, label)
	}
	return " " + strings.Join(cells, m.theme.Dim.Render(" › "))
}

func (m Model) renderStage(width int) string {
	info := m.snap.Stage.Info()
	var body string
	switch m.snap.Stage {
	case studio.StageSelectBundle:
		body = m.viewBundles()
	case studio.StageConfigureModel:
		body = m.viewModel()
	case studio.StageRunPreview:
		body = m.viewPreview()
	case studio.StageReviewPlan:
		body = m.review.View()
	case studio.StageApprove:
		body = m.viewApprove()
	case studio.StageHistory:
		body = m.viewHistory()
	case studio.StageReplay:
		body = m.viewReplay()
	}
	if m.mode == modeMount {
		body = lipgloss.JoinVertical(lipgloss.Left, body, "",
			m.theme.Header.Render("Mount workspace root:"),
			m.mountInput.View(),
			m.theme.Dim.Render("enter to mount • esc to cancel"),
		)
	}

	ready := m.theme.StatusQueued.Render("incomplete")
	if m.snap.CanAdvance() {
		ready = m.theme.StatusOK.Render("ready to continue")
	}
	title := m.theme.Title.Render(fmt.Sprintf("%d. %s", info.Stage, info.Title)) + " " + ready
	content := lipgloss.JoinVertical(lipgloss.Left,
		title,
		m.theme.Dim.Render(" "+info.Summary),
		"",
		body,
	)
	return m.theme.Border.Width(width - 4).Render(content)
}

func (m Model) viewBundles() string {
	if m.snap.Workspace == nil {
		return m.theme.Dim.Render(" No workspace selected. Press m to mount one or w to switch.")
	}
	if len(m.snap.Bundles) == 0 {
		return m.theme.Dim.Render(" This workspace has no agent bundles.")
	}
	rows := make([]string, 0, len(m.snap.Bundles))
	for i, b := range m.snap.Bundles {
		marker := "  "
		if b.ArtifactID == m.snap.SelectedBundleID {
			marker = m.theme.StatusOK.Render("● ")
		}
		line := fmt.Sprintf("%s%-20s %s  %s", marker, b.ArtifactID, b.Status, render.FormatTime(b.CreatedAt))
		rows = append(rows, m.cursorLine(studio.StageSelectBundle, i, line))
	}
	return strings.Join(rows, "\n")
}

func (m Model) viewModel() string {
	if m.mode == modeLLMForm {
		labels := []string{"Model", "Prompt template", "Prompt version", "Model id", "Model version"}
		var rows []string
		for i, in := range m.llmInputs {
			rows = append(rows, fmt.Sprintf(" %-16s %s", labels[i], in.View()))
		}
		var templates []string
		for _, t := range m.snap.PromptTemplates {
			templates = append(templates, t.Version)
		}
		rows = append(rows, "",
			m.theme.Dim.Render(" templates: "+orDash(strings.Join(templates, ", "))),
			m.theme.Dim.Render(" tab next field • esc keep form • ctrl+s save as config"),
		)
		return strings.Join(rows, "\n")
	}

	llm := m.snap.LLM
	var b strings.Builder
	fmt.Fprintf(&b, " Model: %s  Template: %s  Prompt: %s\n",
		orDash(llm.Model), orDash(llm.PromptTemplateVersion), orDash(llm.PromptVersion))
	fmt.Fprintf(&b, " Model id: %s  Model version: %s\n\n", orDash(llm.ModelID), orDash(llm.ModelVersion))

	none := "  (no recorded config)"
	if llm.ConfigID == "" {
		none = m.theme.StatusOK.Render("● ") + "(no recorded config)"
	}
	rows := []string{m.cursorLine(studio.StageConfigureModel, 0, none)}
	for i, c := range m.snap.LLMConfigs {
		marker := "  "
		if c.ConfigID == llm.ConfigID {
			marker = m.theme.StatusOK.Render("● ")
		}
		line := fmt.Sprintf("%s%-14s %s  %s/%s  %s", marker, c.ConfigID, c.Model,
			c.PromptTemplateVersion, c.PromptVersion, render.FormatTime(c.CreatedAt))
		rows = append(rows, m.cursorLine(studio.StageConfigureModel, i+1, line))
	}
	b.WriteString(strings.Join(rows, "\n"))
	b.WriteString("\n\n" + m.theme.Dim.Render(" enter select • e edit form"))
	return b.String()
}

func (m Model) viewPreview() string {
	if run := m.snap.LatestRun; run != nil && m.snap.PreviewCompleted {
		return fmt.Sprintf(" Last run %s: %s\n\n%s", run.RunID, m.successLabel(run.Success),
			m.theme.Dim.Render(" enter to run another preview • n to review"))
	}
	return m.theme.Dim.Render(" Press enter to run a dry-run preview of the selected bundle.")
}

func (m Model) viewApprove() string {
	var b strings.Builder
	if run := m.snap.LatestRun; run != nil {
		fmt.Fprintf(&b, " Latest run: %s (%s)\n", run.RunID, m.successLabel(run.Success))
	}
	if m.snap.PlanApproved {
		fmt.Fprintf(&b, " Approval token: %s\n", m.theme.Highlight.Render(m.snap.ApprovalToken))
	} else {
		b.WriteString(" Press a to approve the plan.\n")
	}
	if run := m.snap.FinalRun; run != nil {
		fmt.Fprintf(&b, " Live run: %s (%s)\n", run.RunID, m.successLabel(run.Success))
		for _, e := range run.Errors {
			b.WriteString(m.theme.StatusFailed.Render("   "+e) + "\n")
		}
	}
	b.WriteString("\n" + m.theme.Dim.Render(" a approve • r run live"))
	return b.String()
}

func (m Model) viewHistory() string {
	if len(m.snap.Reports) == 0 {
		return m.theme.Dim.Render(" No runs recorded yet.")
	}
	rows := make([]string, 0, len(m.snap.Reports))
	for i, r := range m.snap.Reports {
		marker := "  "
		if r.RunID == m.snap.SelectedReportID {
			marker = m.theme.StatusOK.Render("● ")
		}
		rows = append(rows, m.cursorLine(studio.StageHistory, i, marker+render.ReportLine(r)))
	}
	return strings.Join(rows, "\n")
}

func (m Model) viewReplay() string {
	r := m.snap.SelectedReport()
	if r == nil {
		return m.theme.Dim.Render(" Select a timeline entry on step 6 first.")
	}
	var b strings.Builder
	fmt.Fprintf(&b, " Selected: %s\n", render.ReportLine(*r))
	fmt.Fprintf(&b, " Replay id: %s\n", studio.ReplayRunID(r.RunID))
	if m.snap.ReplayNotice != "" {
		b.WriteString(" " + m.theme.StatusOK.Render(m.snap.ReplayNotice) + "\n")
	}
	b.WriteString("\n" + m.theme.Dim.Render(" r replay"))
	return b.String()
}

func (m Model) renderRun(width int) string {
	return tui.RunPanel(m.theme, m.run, width)
}

func (m Model) renderStatus() string {
	var parts []string
	if m.snap.Busy || m.pending > 0 {
		text := m.snap.Status
		if text == "" {
			text = "Working…"
		}
		parts = append(parts, m.spin.View()+" "+text)
	} else if m.snap.Status != "" {
		parts = append(parts, m.theme.Dim.Render(" "+m.snap.Status))
	}
	errText := m.flash
	if errText == "" {
		errText = m.snap.Error
	}
	if errText != "" {
		parts = append(parts, m.theme.StatusFailed.Render(" ⚠ "+errText))
	}
	return strings.Join(parts, "\n")
}

func (m Model) renderActivity() string {
	if len(m.activity) == 0 {
		return ""
	}
	lines := make([]string, len(m.activity))
	for i, line := range m.activity {
		lines[i] = m.theme.Dim.Render(" · " + line)
	}
	return strings.Join(lines, "\n")
}

func (m Model) cursorLine(stage studio.Stage, i int, line string) string {
	if m.snap.Stage == stage && m.cursor[stage] == i && m.mode == modeNormal {
		return m.theme.Selected.Render("›" + line)
	}
	return " " + line
}

func (m Model) successLabel(ok bool) string {
	if ok {
		return m.theme.StatusOK.Render("success")
	}
	return m.theme.StatusFailed.Render("failed")
}

func orDash(s string) string {
	if s == "" {
		return render.Placeholder
	}
	return s
}
