package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/ctlstudio/internal/log"
	"github.com/mattjoyce/ctlstudio/internal/remote"
	"github.com/mattjoyce/ctlstudio/internal/storage"
	"github.com/mattjoyce/ctlstudio/internal/stubserver"
)

type harness struct {
	t          *testing.T
	url        string
	configPath string
	store      *stubserver.Store
	ws         *remote.Workspace
}

func newHarness(t *testing.T, settle time.Duration) *harness {
	t.Helper()
	ctx := context.Background()
	db, err := storage.OpenSQLite(ctx, filepath.Join(t.TempDir(), "stub.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store := stubserver.NewStore(db)
	ws, err := stubserver.Seed(ctx, store, t.TempDir())
	require.NoError(t, err)

	srv := stubserver.New(stubserver.Config{Settle: settle}, store, log.Discard())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	configPath := filepath.Join(t.TempDir(), "config.yaml")
	cfg := fmt.Sprintf("server:\n  url: %s\nlog:\n  level: error\n  format: text\n", ts.URL)
	require.NoError(t, os.WriteFile(configPath, []byte(cfg), 0o600))

	return &harness{t: t, url: ts.URL, configPath: configPath, store: store, ws: ws}
}

func (h *harness) exec(stdin io.Reader, args ...string) (int, string, string) {
	h.t.Helper()
	if stdin == nil {
		stdin = strings.NewReader("")
	}
	var out, errOut bytes.Buffer
	full := append([]string{"--config", h.configPath}, args...)
	code := runCLI(full, stdin, &out, &errOut)
	return code, out.String(), errOut.String()
}

func (h *harness) bundleID() string {
	h.t.Helper()
	bundles, err := h.store.ListArtifacts(context.Background(), h.ws.ID, stubserver.TypeAgentBundle)
	require.NoError(h.t, err)
	require.NotEmpty(h.t, bundles)
	return bundles[0].ArtifactID
}

func TestVersionJSON(t *testing.T) {
	var out, errOut bytes.Buffer
	code := runCLI([]string{"version", "--json", "--config", "/does/not/exist.yaml"}, nil, &out, &errOut)
	require.Equal(t, 0, code, errOut.String())

	var info versionInfo
	require.NoError(t, json.Unmarshal(out.Bytes(), &info))
	assert.NotEmpty(t, info.Version)
	assert.NotEmpty(t, info.Commit)
}

func TestBadConfigFails(t *testing.T) {
	var out, errOut bytes.Buffer
	code := runCLI([]string{"--config", filepath.Join(t.TempDir(), "missing.yaml"), "workspace", "list"}, nil, &out, &errOut)
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut.String(), "config file not found")
}

func TestWorkspaceList(t *testing.T) {
	h := newHarness(t, 0)

	code, out, stderr := h.exec(nil, "workspace", "list", "--json")
	require.Equal(t, 0, code, stderr)
	var list []remote.Workspace
	require.NoError(t, json.Unmarshal([]byte(out), &list))
	require.Len(t, list, 1)
	assert.Equal(t, h.ws.ID, list[0].ID)

	code, out, stderr = h.exec(nil, "workspace", "list")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, out, "* "+h.ws.ID)
}

func TestWorkspaceMountAndSelect(t *testing.T) {
	h := newHarness(t, 0)
	root := t.TempDir()

	code, out, stderr := h.exec(nil, "workspace", "mount", root, "--json")
	require.Equal(t, 0, code, stderr)
	var ws remote.Workspace
	require.NoError(t, json.Unmarshal([]byte(out), &ws))
	assert.Equal(t, root, ws.Root)

	code, _, stderr = h.exec(nil, "workspace", "select", ws.ID)
	require.Equal(t, 0, code, stderr)

	code, out, stderr = h.exec(nil, "workspace", "current")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, out, ws.ID)
}

func TestBundleList(t *testing.T) {
	h := newHarness(t, 0)
	code, out, stderr := h.exec(nil, "bundle", "list")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, out, h.bundleID())
	assert.Contains(t, out, stubserver.TypeAgentBundle)
}

func TestLLMCreateAndList(t *testing.T) {
	h := newHarness(t, 0)

	code, out, stderr := h.exec(nil, "llm", "templates")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, out, "plan-v1")

	code, out, stderr = h.exec(nil, "llm", "create", "--model", "gpt-test", "--template", "plan-v1", "--json")
	require.Equal(t, 0, code, stderr)
	var cfg remote.LLMConfig
	require.NoError(t, json.Unmarshal([]byte(out), &cfg))
	assert.Equal(t, "gpt-test", cfg.Model)

	code, out, stderr = h.exec(nil, "llm", "configs")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, out, cfg.ConfigID)

	code, out, stderr = h.exec(nil, "cycle", "preview", "--llm-config", cfg.ConfigID, "--no-review")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, out, ": success")
}

func TestLLMCreateRequiresModel(t *testing.T) {
	h := newHarness(t, 0)
	code, _, stderr := h.exec(nil, "llm", "create", "--template", "plan-v1")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "model")
}

var runLine = regexp.MustCompile(`run (\S+): (success|failed)`)

func TestCycleRunAndReplay(t *testing.T) {
	h := newHarness(t, 0)

	code, out, stderr := h.exec(nil, "cycle", "run", "--yes")
	require.Equal(t, 0, code, stderr)
	m := runLine.FindStringSubmatch(out)
	require.NotNil(t, m, out)
	assert.Equal(t, "success", m[2])
	assert.Contains(t, out, "# ", "review is printed as markdown")
	liveID := m[1]

	code, out, stderr = h.exec(nil, "report", "list")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, out, liveID)
	assert.Len(t, strings.Split(strings.TrimSpace(out), "\n"), 2, "preview and live run")

	code, out, stderr = h.exec(nil, "cycle", "replay", liveID, "--yes", "--no-review")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, out, "Replayed "+liveID)
	assert.Contains(t, out, "run "+strings.ToLower("replay-"+liveID))
}

func TestCycleRunRefusesWithoutConfirmation(t *testing.T) {
	h := newHarness(t, 0)
	code, _, stderr := h.exec(nil, "cycle", "run")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "--yes")

	reports, err := h.store.ListReports(context.Background(), h.ws.ID)
	require.NoError(t, err)
	assert.Empty(t, reports, "nothing runs before confirmation")
}

func TestCycleUnknownBundle(t *testing.T) {
	h := newHarness(t, 0)
	code, _, stderr := h.exec(nil, "cycle", "preview", "--bundle", "bundle-nope")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "bundle-nope")
}

func TestArtifactCreateShowDiff(t *testing.T) {
	h := newHarness(t, 0)

	code, out, stderr := h.exec(strings.NewReader("intent_id: scale-up\ngoal: three replicas\n"),
		"artifact", "create", "--type", stubserver.TypeIntent, "--json")
	require.Equal(t, 0, code, stderr)
	var first remote.ArtifactDetail
	require.NoError(t, json.Unmarshal([]byte(out), &first))
	assert.Equal(t, stubserver.TypeIntent, first.Entry.ArtifactType)

	bodyFile := filepath.Join(t.TempDir(), "intent.json")
	require.NoError(t, os.WriteFile(bodyFile, []byte(`{"intent_id":"scale-up","goal":"four replicas"}`), 0o600))
	code, out, stderr = h.exec(nil, "artifact", "create", "--type", stubserver.TypeIntent, "-f", bodyFile, "--json")
	require.Equal(t, 0, code, stderr)
	var second remote.ArtifactDetail
	require.NoError(t, json.Unmarshal([]byte(out), &second))

	code, out, stderr = h.exec(nil, "artifact", "show", first.Entry.ArtifactID)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, out, "goal: three replicas")

	code, out, stderr = h.exec(nil, "artifact", "diff", first.Entry.ArtifactID, second.Entry.ArtifactID)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, out, "goal")
	assert.Contains(t, out, "four replicas")

	code, out, stderr = h.exec(nil, "artifact", "list", "--type", stubserver.TypeIntent)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, out, first.Entry.ArtifactID)
	assert.Contains(t, out, second.Entry.ArtifactID)
}

func TestArtifactCreateRejectsEmptyBody(t *testing.T) {
	h := newHarness(t, 0)
	code, _, stderr := h.exec(strings.NewReader(""), "artifact", "create", "--type", stubserver.TypeIntent)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "body is empty")
}

func TestRunStatusAndCancel(t *testing.T) {
	h := newHarness(t, time.Hour)
	client := remote.New(remote.Options{BaseURL: h.url})
	run, err := client.RunCycle(context.Background(), remote.CycleRequest{
		BundleArtifactID: h.bundleID(),
		Mode:             remote.ModeLive,
		WorkspaceID:      h.ws.ID,
		ApprovalToken:    "approved-test",
	})
	require.NoError(t, err)

	code, out, stderr := h.exec(nil, "run", "status", run.RunID)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, out, "status:   running")

	code, out, stderr = h.exec(nil, "run", "cancel", run.RunID, "--json")
	require.Equal(t, 0, code, stderr)
	var st remote.RunStatus
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	assert.Equal(t, "cancelled", st.Status)
	assert.True(t, st.Canceled)

	code, _, stderr = h.exec(nil, "run", "cancel", run.RunID)
	assert.Equal(t, 1, code)
	assert.NotEmpty(t, stderr)
}

func TestRunStatusUnknownRun(t *testing.T) {
	h := newHarness(t, 0)
	code, _, stderr := h.exec(nil, "run", "status", "no-such-run")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "404")
}
