package stubserver

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/mattjoyce/ctlstudio/internal/document"
	"github.com/mattjoyce/ctlstudio/internal/remote"
)

// CycleError is a bundle the controller cannot plan from. The cycle still
// produces a failure report with gap map and backlog paths.
type CycleError struct {
	Errors []string
}

func (e *CycleError) Error() string {
	return "controller cycle failed: " + strings.Join(e.Errors, "; ")
}

// declaredEffect is one entry of agents[].contract.effects[].
type declaredEffect struct {
	Agent       string
	Name        string
	Target      string
	Rollback    string
	Idempotency string
	Desired     any
}

// cycleInput is everything a cycle reads.
type cycleInput struct {
	Workspace *remote.Workspace
	Bundle    *remote.ArtifactDetail
	RunID     string
	Mode      remote.CycleMode
	DryRun    bool
	Approval  string
	LLM       *remote.LLMConfig
	Started   time.Time
}

// runCycle plans the bundle against the workspace's current target state,
// records snapshot/plan/execution artifacts, and applies the plan when the
// cycle is live and not a dry run.
func (s *Server) runCycle(ctx context.Context, in cycleInput) (*remote.CycleRun, error) {
	wsID := in.Workspace.ID
	runDir := filepath.Join(in.Workspace.Root, ".tm", "runs", in.RunID)
	reportPath := filepath.Join(runDir, "cycle_report.yaml")

	run := &remote.CycleRun{
		RunID:       in.RunID,
		ReportPath:  reportPath,
		Errors:      []string{},
		WorkspaceID: &wsID,
	}
	if in.LLM != nil {
		run.LLMConfigID = &in.LLM.ConfigID
		run.LLMConfig = llmDocument(in.LLM)
	}

	effects, err := declaredEffects(in.Bundle.Document.Body)
	if err != nil {
		var cycleErr *CycleError
		if !errors.As(err, &cycleErr) {
			return nil, err
		}
		gap := filepath.Join(runDir, "gap_map.yaml")
		backlog := filepath.Join(runDir, "backlog.yaml")
		run.Errors = cycleErr.Errors
		run.GapMap = &gap
		run.Backlog = &backlog
		run.Report = document.Document{
			"run_id":             in.RunID,
			"mode":               string(in.Mode),
			"dry_run":            in.DryRun,
			"success":            false,
			"generated_at":       in.Started.Format(time.RFC3339Nano),
			"bundle_artifact_id": in.Bundle.Entry.ArtifactID,
			"errors":             toAnySlice(cycleErr.Errors),
			"gap_map":            gap,
			"backlog":            backlog,
		}
		return run, s.recordReport(ctx, wsID, run)
	}

	current, err := s.store.TargetState(ctx, wsID)
	if err != nil {
		return nil, err
	}

	snapshotBody := document.Document{
		"workspace_id": wsID,
		"captured_at":  in.Started.Format(time.RFC3339Nano),
		"state":        snapshotState(effects, current),
	}
	snapshot, err := s.store.CreateArtifact(ctx, wsID, TypeSnapshot, snapshotBody)
	if err != nil {
		return nil, err
	}

	policy := policyFrom(in.Bundle.Document.Body)
	decisions := make([]any, 0, len(effects))
	planned := make([]any, 0, len(effects))
	desired := map[string]any{}
	allowed := map[string]any{}
	for _, eff := range effects {
		ok, reason := policy.decide(eff, in)
		decisions = append(decisions, map[string]any{
			"effect":  eff.Name,
			"target":  eff.Target,
			"allowed": ok,
			"reason":  reason,
		})
		planned = append(planned, map[string]any{
			"effect_ref":      eff.Name,
			"target_state":    eff.Desired,
			"idempotency_key": eff.Idempotency,
		})
		desired[eff.Target] = eff.Desired
		if ok {
			allowed[eff.Target] = eff.Desired
		}
	}

	planBody := document.Document{
		"snapshot_id": snapshot.Entry.ArtifactID,
		"summary":     planSummary(in.Bundle, effects),
		"decisions":   planned,
		"state":       desired,
	}
	if in.LLM != nil {
		planBody["llm_metadata"] = llmDocument(in.LLM)
	}
	plan, err := s.store.CreateArtifact(ctx, wsID, TypePlan, planBody)
	if err != nil {
		return nil, err
	}
	// The plan records its own id for display.
	planBody["plan_id"] = plan.Entry.ArtifactID
	if plan, err = s.store.UpdateArtifact(ctx, wsID, plan.Entry.ArtifactID, planBody); err != nil {
		return nil, err
	}

	live := in.Mode == remote.ModeLive && !in.DryRun
	execBody := document.Document{
		"plan_id":   plan.Entry.ArtifactID,
		"applied":   live,
		"artifacts": executionEvidence(effects, allowed, live),
	}
	execution, err := s.store.CreateArtifact(ctx, wsID, TypeExecution, execBody)
	if err != nil {
		return nil, err
	}
	if live && len(allowed) > 0 {
		if err := s.store.ApplyTargetState(ctx, wsID, allowed); err != nil {
			return nil, err
		}
	}

	ended := s.store.now()
	run.Success = true
	run.Report = document.Document{
		"run_id":               in.RunID,
		"mode":                 string(in.Mode),
		"dry_run":              in.DryRun,
		"success":              true,
		"generated_at":         ended.Format(time.RFC3339Nano),
		"bundle_artifact_id":   in.Bundle.Entry.ArtifactID,
		"env_snapshot":         snapshot.Entry.ArtifactID,
		"proposed_change_plan": plan.Entry.ArtifactID,
		"execution_report":     execution.Entry.ArtifactID,
		"start_time":           in.Started.Format(time.RFC3339Nano),
		"end_time":             ended.Format(time.RFC3339Nano),
		"duration_seconds":     ended.Sub(in.Started).Seconds(),
		"policy_decisions":     decisions,
		"errors":               []any{},
		"artifact_output_dir":  filepath.Join(runDir, "controller_artifacts"),
	}
	if in.Approval != "" {
		run.Report["approval_token"] = in.Approval
	}
	return run, s.recordReport(ctx, wsID, run)
}

func (s *Server) recordReport(ctx context.Context, wsID string, run *remote.CycleRun) error {
	return s.store.PutReport(ctx, wsID, remote.ReportSummary{
		RunID:      run.RunID,
		Report:     run.Report,
		ReportPath: run.ReportPath,
		GapMap:     run.GapMap,
		Backlog:    run.Backlog,
	})
}

// declaredEffects reads the bundle's effect contracts. A bundle with no
// agents or no effects cannot be planned.
func declaredEffects(body document.Document) ([]declaredEffect, error) {
	agents, ok := body.List("agents")
	if !ok || len(agents) == 0 {
		return nil, &CycleError{Errors: []string{"bundle declares no agents"}}
	}
	var (
		out  []declaredEffect
		gaps []string
	)
	for i, raw := range agents {
		agent, ok := document.AsDocument(raw)
		if !ok {
			gaps = append(gaps, fmt.Sprintf("agents[%d] is not an object", i))
			continue
		}
		agentID := agent.StringOr("agent_id", fmt.Sprintf("agent-%d", i))
		contract, _ := agent.Map("contract")
		effects, _ := contract.List("effects")
		for j, rawEffect := range effects {
			effect, ok := document.AsDocument(rawEffect)
			if !ok {
				continue
			}
			target, ok := effect.String("target")
			if !ok {
				gaps = append(gaps, fmt.Sprintf("%s effect %d has no target", agentID, j))
				continue
			}
			eff := declaredEffect{
				Agent:    agentID,
				Name:     effect.StringOr("name", target),
				Target:   target,
				Rollback: effect.StringOr("rollback", ""),
			}
			eff.Idempotency = idempotencyKey(effect, eff)
			if v, ok := effect.Value("desired_state"); ok {
				eff.Desired = v
			} else {
				eff.Desired = map[string]any{"present": true}
			}
			out = append(out, eff)
		}
	}
	if len(gaps) > 0 {
		return nil, &CycleError{Errors: gaps}
	}
	if len(out) == 0 {
		return nil, &CycleError{Errors: []string{"bundle declares no effects"}}
	}
	return out, nil
}

func idempotencyKey(effect document.Document, eff declaredEffect) string {
	if idem, ok := effect.Map("idempotency"); ok {
		if key, ok := idem.String("key"); ok {
			return key
		}
		if kind, ok := idem.String("type"); ok {
			return kind + ":" + eff.Target
		}
	}
	return eff.Agent + ":" + eff.Name
}

func snapshotState(effects []declaredEffect, current map[string]any) map[string]any {
	state := map[string]any{}
	for _, eff := range effects {
		if v, ok := current[eff.Target]; ok {
			state[eff.Target] = v
		} else {
			state[eff.Target] = nil
		}
	}
	return state
}

func planSummary(bundle *remote.ArtifactDetail, effects []declaredEffect) string {
	if summary, ok := bundle.Document.Body.String("summary"); ok {
		return summary
	}
	targets := make([]string, 0, len(effects))
	for _, eff := range effects {
		targets = append(targets, eff.Target)
	}
	slices.Sort(targets)
	targets = slices.Compact(targets)
	return fmt.Sprintf("Converge %d effect(s) on %s", len(effects), strings.Join(targets, ", "))
}

func executionEvidence(effects []declaredEffect, allowed map[string]any, live bool) map[string]any {
	verb := "simulated"
	if live {
		verb = "applied"
	}
	byAgent := map[string][]any{}
	for _, eff := range effects {
		status := "skipped: denied by policy"
		if _, ok := allowed[eff.Target]; ok {
			status = verb
		}
		byAgent[eff.Agent] = append(byAgent[eff.Agent], map[string]any{
			"effect": eff.Name,
			"target": eff.Target,
			"status": status,
		})
	}
	out := make(map[string]any, len(byAgent))
	for agent, entries := range byAgent {
		out[agent] = map[string]any{"effects": entries}
	}
	return out
}

// cyclePolicy is the bundle's optional policy block:
// {"allow": [...], "deny": [...], "require_approval": bool}.
type cyclePolicy struct {
	allow           []string
	deny            []string
	requireApproval bool
}

func policyFrom(body document.Document) cyclePolicy {
	block, _ := body.Map("policy")
	p := cyclePolicy{
		allow: stringList(block, "allow"),
		deny:  stringList(block, "deny"),
	}
	p.requireApproval, _ = block.Bool("require_approval")
	return p
}

func (p cyclePolicy) decide(eff declaredEffect, in cycleInput) (bool, string) {
	if slices.Contains(p.deny, eff.Name) || slices.Contains(p.deny, eff.Target) {
		return false, "denied by policy"
	}
	if len(p.allow) > 0 && !slices.Contains(p.allow, eff.Name) && !slices.Contains(p.allow, eff.Target) {
		return false, "target not in allow list"
	}
	if p.requireApproval && in.Mode == remote.ModeLive && !in.DryRun && in.Approval == "" {
		return false, "approval required for live execution"
	}
	return true, "allowed by policy"
}

func stringList(d document.Document, key string) []string {
	raw, ok := d.List(key)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func llmDocument(cfg *remote.LLMConfig) document.Document {
	doc := document.Document{
		"config_id":               cfg.ConfigID,
		"model":                   cfg.Model,
		"prompt_template_version": cfg.PromptTemplateVersion,
		"prompt_version":          cfg.PromptVersion,
	}
	if cfg.ModelID != nil {
		doc["model_id"] = *cfg.ModelID
	}
	if cfg.ModelVersion != nil {
		doc["model_version"] = *cfg.ModelVersion
	}
	return doc
}

func toAnySlice(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

// slug lowercases value and collapses anything but letters, digits and '-'.
func slug(value string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(value)) {
		if ('a' <= r && r <= 'z') || ('0' <= r && r <= '9') || r == '-' {
			b.WriteRune(r)
		} else {
			b.WriteRune('-')
		}
	}
	parts := strings.FieldsFunc(b.String(), func(r rune) bool { return r == '-' })
	return strings.Join(parts, "-")
}

// makeRunID derives "<slug>-<UTC timestamp>" from the requested id or the
// bundle id.
func makeRunID(bundleID, override string, at time.Time) string {
	candidate := slug(override)
	if candidate == "" {
		candidate = slug(bundleID)
	}
	if candidate == "" {
		candidate = "cycle"
	}
	return candidate + "-" + at.UTC().Format("20060102T150405Z")
}
