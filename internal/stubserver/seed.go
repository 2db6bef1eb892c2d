package stubserver

import (
	"context"
	"fmt"

	"github.com/mattjoyce/ctlstudio/internal/document"
	"github.com/mattjoyce/ctlstudio/internal/remote"
)

// DemoBundle is the agent bundle Seed registers in an empty workspace. One
// effect is allowed and one is denied so reviews show both outcomes.
func DemoBundle() document.Document {
	return document.Document{
		"summary": "Keep the demo service configured and announce changes",
		"agents": []any{
			map[string]any{
				"agent_id": "config-writer",
				"contract": map[string]any{
					"effects": []any{
						map[string]any{
							"name":          "write-config",
							"target":        "config/app.yaml",
							"rollback":      "restore previous revision",
							"idempotency":   map[string]any{"type": "content-hash"},
							"desired_state": map[string]any{"replicas": 2, "log_level": "info"},
						},
					},
				},
			},
			map[string]any{
				"agent_id": "notifier",
				"contract": map[string]any{
					"effects": []any{
						map[string]any{
							"name":          "post-notice",
							"target":        "chat/deploys",
							"desired_state": map[string]any{"message": "config updated"},
						},
					},
				},
			},
		},
		"policy": map[string]any{"deny": []any{"chat/deploys"}},
	}
}

// Seed mounts and selects root and registers the demo bundle when the
// workspace has none.
func Seed(ctx context.Context, store *Store, root string) (*remote.Workspace, error) {
	ws, err := store.MountWorkspace(ctx, root)
	if err != nil {
		return nil, err
	}
	if _, err := store.SelectWorkspace(ctx, ws.ID); err != nil {
		return nil, err
	}
	bundles, err := store.ListArtifacts(ctx, ws.ID, TypeAgentBundle)
	if err != nil {
		return nil, err
	}
	if len(bundles) > 0 {
		return ws, nil
	}
	if _, err := store.CreateArtifact(ctx, ws.ID, TypeIntent, document.Document{
		"intent_id": "keep-demo-configured",
		"goal":      "The demo service runs with two replicas.",
	}); err != nil {
		return nil, fmt.Errorf("seed intent: %w", err)
	}
	body := DemoBundle()
	body["intent_id"] = "keep-demo-configured"
	if _, err := store.CreateArtifact(ctx, ws.ID, TypeAgentBundle, body); err != nil {
		return nil, fmt.Errorf("seed bundle: %w", err)
	}
	return ws, nil
}
