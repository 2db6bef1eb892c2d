package reconcile

import (
	"fmt"
	"slices"

	"github.com/mattjoyce/ctlstudio/internal/document"
	"github.com/mattjoyce/ctlstudio/internal/policy"
	"github.com/mattjoyce/ctlstudio/internal/remote"
)

const (
	rollbackMissing = "not provided"
	policyPending   = "pending policy review"
)

// EffectMeta is what a bundle declares about one effect.
type EffectMeta struct {
	Name     string
	Target   string
	Rollback string
}

// EffectIndex maps effect names and targets to their declared metadata.
type EffectIndex map[string]EffectMeta

// BuildEffectIndex collects agents[].contract.effects[] from a bundle body.
// Entries without a string target are skipped.
func BuildEffectIndex(bundle *remote.ArtifactDocument) EffectIndex {
	index := EffectIndex{}
	if bundle == nil {
		return index
	}
	agents, ok := bundle.Body.List("agents")
	if !ok {
		return index
	}
	for _, rawAgent := range agents {
		agent, ok := document.AsDocument(rawAgent)
		if !ok {
			continue
		}
		contract, ok := agent.Map("contract")
		if !ok {
			continue
		}
		effects, ok := contract.List("effects")
		if !ok {
			continue
		}
		for _, rawEffect := range effects {
			effect, ok := document.AsDocument(rawEffect)
			if !ok {
				continue
			}
			target, ok := effect.String("target")
			if !ok {
				continue
			}
			meta := EffectMeta{
				Name:     effect.StringOr("name", ""),
				Target:   target,
				Rollback: effect.StringOr("rollback", ""),
			}
			index[target] = meta
			if meta.Name != "" {
				if _, taken := index[meta.Name]; !taken {
					index[meta.Name] = meta
				}
			}
		}
	}
	return index
}

// Lookup resolves an effect by name or target.
func (ix EffectIndex) Lookup(keys ...string) (EffectMeta, bool) {
	for _, key := range keys {
		if key == "" {
			continue
		}
		if meta, ok := ix[key]; ok {
			return meta, true
		}
	}
	return EffectMeta{}, false
}

// PolicyRow is a normalized decision joined with bundle metadata.
type PolicyRow struct {
	policy.Decision
	TargetLabel string
	Rollback    string
	Declared    bool
}

// JoinPolicies annotates decisions with rollback hints and canonical target
// labels. Undeclared effects degrade to their bare identifier.
func JoinPolicies(decisions []policy.Decision, index EffectIndex) []PolicyRow {
	rows := make([]PolicyRow, 0, len(decisions))
	for _, d := range decisions {
		row := PolicyRow{Decision: d, Rollback: rollbackMissing}
		meta, ok := index.Lookup(d.Effect, d.Target)
		if ok {
			row.Declared = true
			row.TargetLabel = meta.Target
			if meta.Rollback != "" {
				row.Rollback = meta.Rollback
			}
		} else {
			row.TargetLabel = d.Effect
		}
		rows = append(rows, row)
	}
	return rows
}

// EffectRow is one decision of a proposed plan.
type EffectRow struct {
	Key         string
	EffectRef   string
	Target      string
	Params      any
	Idempotency string
	Rollback    string
	Policy      *policy.Decision
	PolicyNote  string
}

// BuildEffectRows turns plan body.decisions[] into review rows.
func BuildEffectRows(plan *remote.ArtifactDocument, index EffectIndex, decisions []policy.Decision) []EffectRow {
	if plan == nil {
		return nil
	}
	raw, ok := plan.Body.List("decisions")
	if !ok {
		return nil
	}

	byEffect := make(map[string]policy.Decision, len(decisions))
	for _, d := range decisions {
		if _, seen := byEffect[d.Effect]; !seen {
			byEffect[d.Effect] = d
		}
	}

	rows := make([]EffectRow, 0, len(raw))
	for i, entry := range raw {
		decision, _ := document.AsDocument(entry)
		effectRef, ok := decision.String("effect_ref")
		if !ok {
			effectRef = fmt.Sprintf("decision-%02d", i)
		}
		idempotency, hasKey := decision.String("idempotency_key")
		params, _ := decision.Value("target_state")

		row := EffectRow{
			EffectRef:   effectRef,
			Target:      effectRef,
			Params:      params,
			Idempotency: "—",
			Rollback:    rollbackMissing,
			PolicyNote:  policyPending,
		}
		if hasKey {
			row.Idempotency = idempotency
			row.Key = effectRef + "-" + idempotency
		} else {
			row.Key = fmt.Sprintf("%s-%d", effectRef, i)
		}
		policyKey := effectRef
		if meta, ok := index.Lookup(effectRef); ok {
			row.Target = meta.Target
			if meta.Rollback != "" {
				row.Rollback = meta.Rollback
			}
			if _, direct := byEffect[effectRef]; !direct && meta.Name != "" {
				policyKey = meta.Name
			}
		}
		if d, ok := byEffect[policyKey]; ok {
			row.Policy = &d
			row.PolicyNote = d.Reason
		}
		rows = append(rows, row)
	}
	return rows
}

// Evidence is one agent's execution evidence.
type Evidence struct {
	Agent string
	Value any
}

// BuildEvidence lists execution body.artifacts entries in key order.
func BuildEvidence(execution *remote.ArtifactDocument) []Evidence {
	if execution == nil {
		return nil
	}
	artifacts, ok := execution.Body.Map("artifacts")
	if !ok {
		return nil
	}
	keys := make([]string, 0, len(artifacts))
	for k := range artifacts {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	out := make([]Evidence, 0, len(keys))
	for _, k := range keys {
		out = append(out, Evidence{Agent: k, Value: artifacts[k]})
	}
	return out
}
