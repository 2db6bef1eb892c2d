package render

import (
	"fmt"
	"strings"

	"github.com/mattjoyce/ctlstudio/internal/reconcile"
	"github.com/mattjoyce/ctlstudio/internal/remote"
)

// Texts shown when a review section has nothing to display.
const (
	NoEffectsText   = "No effect decisions available yet; run a preview cycle to generate a plan."
	NoEvidenceText  = "No execution evidence captured yet."
	NoDiffText      = "Run a preview cycle to inspect the diff between the snapshot and proposed plan."
	NoPoliciesText  = "No policy decisions yet."
	NoPoliciesHint  = "Preview a plan to populate policy decisions."
	bundleUnknown   = "bundle unknown"
	emptyDiffText   = "Snapshot and plan are identical."
	missingPlanText = "No plan summary provided."
)

// ReviewMarkdown renders a reconciled run as a markdown document with the
// plan overview, effects, policy, evidence and diff sections.
func ReviewMarkdown(res *reconcile.Result) string {
	var b strings.Builder
	writeOverview(&b, res)
	writeEffects(&b, res)
	writePolicies(&b, res)
	writeEvidence(&b, res)
	writeDiff(&b, res)
	if res != nil && len(res.FetchErrors) > 0 {
		b.WriteString("\n## Unavailable\n\n")
		for _, fe := range res.FetchErrors {
			fmt.Fprintf(&b, "- %s `%s`: %s\n", fe.Slot, fe.ArtifactID, fe.Err)
		}
	}
	return b.String()
}

func writeOverview(b *strings.Builder, res *reconcile.Result) {
	b.WriteString("# Plan overview\n\n")
	if res == nil {
		b.WriteString(NoEffectsText + "\n")
		return
	}
	ov := res.PlanOverview
	fmt.Fprintf(b, "- **Run:** `%s`\n", orPlaceholder(res.RunID))
	fmt.Fprintf(b, "- **Plan:** `%s`\n", orPlaceholder(ov.PlanID))
	fmt.Fprintf(b, "- **Snapshot:** `%s`\n", orPlaceholder(ov.SnapshotID))
	summary := ov.Summary
	if summary == "" {
		summary = missingPlanText
	}
	fmt.Fprintf(b, "\n%s\n", summary)
	if res.LLM.ConfigID != "" || res.LLM.Model != "" {
		fmt.Fprintf(b, "\n_LLM: %s (config %s, prompt %s)_\n",
			orPlaceholder(res.LLM.Model), orPlaceholder(res.LLM.ConfigID), orPlaceholder(res.LLM.PromptVersion))
	}
}

func writeEffects(b *strings.Builder, res *reconcile.Result) {
	b.WriteString("\n## Effects\n\n")
	if res == nil || len(res.Effects) == 0 {
		b.WriteString(NoEffectsText + "\n")
		return
	}
	b.WriteString("| Effect | Target | Params | Idempotency | Rollback | Policy |\n")
	b.WriteString("|---|---|---|---|---|---|\n")
	for _, row := range res.Effects {
		verdict := row.PolicyNote
		if row.Policy != nil {
			verdict = policyVerdict(row.Policy.Allowed, row.Policy.Reason)
		}
		fmt.Fprintf(b, "| %s | %s | %s | %s | %s | %s |\n",
			cell(row.EffectRef), cell(row.Target), cell(Pretty(row.Params)),
			cell(row.Idempotency), cell(row.Rollback), cell(verdict))
	}
}

func writePolicies(b *strings.Builder, res *reconcile.Result) {
	b.WriteString("\n## Policy decisions\n\n")
	if res == nil || len(res.Policies) == 0 {
		b.WriteString(NoPoliciesText + " " + NoPoliciesHint + "\n")
		return
	}
	fmt.Fprintf(b, "%s\n\n", PolicySummary(res))
	for _, p := range res.Policies {
		fmt.Fprintf(b, "- **%s** %s: %s (rollback: %s)\n",
			policyLabel(p.Allowed), p.TargetLabel, orPlaceholder(p.Reason), p.Rollback)
	}
}

// PolicySummary renders the allowed and denied counts.
func PolicySummary(res *reconcile.Result) string {
	if res == nil {
		return "0 allowed, 0 denied"
	}
	return fmt.Sprintf("%d allowed, %d denied", res.Summary.Allowed, res.Summary.Denied)
}

func writeEvidence(b *strings.Builder, res *reconcile.Result) {
	b.WriteString("\n## Execution evidence\n\n")
	if res == nil || len(res.Evidence) == 0 {
		b.WriteString(NoEvidenceText + "\n")
		return
	}
	for _, ev := range res.Evidence {
		fmt.Fprintf(b, "- **%s:** %s\n", ev.Agent, Pretty(ev.Value))
	}
}

func writeDiff(b *strings.Builder, res *reconcile.Result) {
	b.WriteString("\n## Snapshot ↔ Plan diff\n\n")
	if res == nil || res.Diff == nil {
		b.WriteString(NoDiffText + "\n")
		return
	}
	b.WriteString(DiffMarkdown(res.Diff))
}

// DiffMarkdown renders a structural diff as a table.
func DiffMarkdown(diff *remote.DiffResult) string {
	if diff == nil {
		return NoDiffText + "\n"
	}
	if len(diff.Diff) == 0 {
		return emptyDiffText + "\n"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "`%s` → `%s`\n\n", diff.BaseID, diff.CompareID)
	b.WriteString("| Path | Change | Base | Compare |\n")
	b.WriteString("|---|---|---|---|\n")
	for _, item := range diff.Diff {
		fmt.Fprintf(&b, "| %s | %s | %s | %s |\n",
			cell(item.Path), cell(item.Kind), cell(Pretty(item.Base)), cell(Pretty(item.Compare)))
	}
	return b.String()
}

// ReportLine renders one timeline entry on a single line.
func ReportLine(r remote.ReportSummary) string {
	start, ok := r.Report.Value("start_time")
	if !ok {
		start, _ = r.Report.Value("generated_at")
	}
	end, _ := r.Report.Value("end_time")
	bundle := r.Report.StringOr(reconcile.KeyBundle, bundleUnknown)

	outcome := "pending"
	if success, present := r.Report.Bool("success"); present {
		outcome = "failed"
		if success {
			outcome = "success"
		}
	}
	line := fmt.Sprintf("%s  %s  %s  %s → %s", r.RunID, outcome, bundle, FormatTime(start), FormatTime(end))
	if secs, ok := r.Report.Number("duration_seconds"); ok {
		line += fmt.Sprintf("  (%.1fs)", secs)
	}
	return line
}

func policyVerdict(allowed bool, reason string) string {
	if reason == "" {
		return policyLabel(allowed)
	}
	return policyLabel(allowed) + ": " + reason
}

func policyLabel(allowed bool) string {
	if allowed {
		return "allowed"
	}
	return "denied"
}

func orPlaceholder(s string) string {
	if s == "" {
		return Placeholder
	}
	return s
}

var cellEscaper = strings.NewReplacer("|", `\|`, "\n", " ", "\r", "")

func cell(s string) string {
	if s == "" {
		return Placeholder
	}
	return cellEscaper.Replace(s)
}
