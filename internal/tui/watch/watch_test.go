package watch

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/ctlstudio/internal/events"
	"github.com/mattjoyce/ctlstudio/internal/log"
	"github.com/mattjoyce/ctlstudio/internal/remote"
	"github.com/mattjoyce/ctlstudio/internal/runstatus"
	"github.com/mattjoyce/ctlstudio/internal/storage"
	"github.com/mattjoyce/ctlstudio/internal/stubserver"
)

func TestReadSSE(t *testing.T) {
	stream := strings.Join([]string{
		": keep-alive",
		"",
		"id: 3",
		"event: run.status",
		`data: {"run_id":"r1","status":"running"}`,
		"",
		"id: 4",
		"event: studio.run",
		`data: {"run_id":"r1",`,
		`data: "success":true}`,
		"",
	}, "\n")

	var got []events.Event
	require.NoError(t, readSSE(strings.NewReader(stream), func(e events.Event) { got = append(got, e) }))
	require.Len(t, got, 2)

	assert.Equal(t, int64(3), got[0].ID)
	assert.Equal(t, events.TypeRunStatus, got[0].Type)
	assert.Equal(t, "running", decodeRunEvent(got[0]).Status)

	assert.Equal(t, int64(4), got[1].ID)
	ev := decodeRunEvent(got[1])
	require.NotNil(t, ev.Success)
	assert.True(t, *ev.Success)
}

func TestRelevantFiltersOtherRuns(t *testing.T) {
	mk := func(data string) events.Event { return events.Event{Data: []byte(data)} }
	assert.True(t, relevant(mk(`{"run_id":"r1"}`), "r1"))
	assert.False(t, relevant(mk(`{"run_id":"r2"}`), "r1"))
	assert.True(t, relevant(mk(`{"text":"hello"}`), "r1"))
}

func TestPulseDecay(t *testing.T) {
	start := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	var p Pulse
	p.Hit(start)
	assert.Equal(t, 5, p.dots)
	p.Decay(start.Add(3 * time.Second))
	assert.Equal(t, 4, p.dots)
	p.Decay(start.Add(11 * time.Second))
	assert.Equal(t, 0, p.dots)
	assert.Equal(t, start, p.LastSeen())
}

func TestFormatEvent(t *testing.T) {
	theme := newModel(t, nil).theme
	data, err := json.Marshal(events.RunStatusNotice{RunID: "r1", Status: "cancelled", Canceled: true})
	require.NoError(t, err)
	line := formatEvent(events.Event{Type: events.TypeRunStatus, At: time.Now(), Data: data}, theme)
	assert.Contains(t, line, "run.status")
	assert.Contains(t, line, "cancelled canceled")
}

func newModel(t *testing.T, poller *runstatus.Poller) Model {
	t.Helper()
	if poller == nil {
		poller = runstatus.New(remote.New(remote.Options{}), runstatus.Options{Logger: log.Discard()})
	}
	m := New(Options{RunID: "r1", Poller: poller})
	t.Cleanup(m.cancel)
	return m
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	out, ok := next.(Model)
	require.True(t, ok)
	return out, cmd
}

func TestEventLogKeepsNewestFirst(t *testing.T) {
	m := newModel(t, nil)
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 30})

	for i, run := range []string{"r1", "r2", "r1"} {
		data, err := json.Marshal(events.RunNotice{RunID: run, Mode: "live", Success: true})
		require.NoError(t, err)
		m, _ = update(t, m, eventMsg{ID: int64(i + 1), Type: events.TypeRun, At: time.Now(), Data: data})
	}

	require.Len(t, m.eventLog, 2, "events for other runs are dropped")
	assert.Equal(t, int64(3), m.eventLog[0].ID)
	assert.Equal(t, int64(3), m.stream.LastID)
	assert.True(t, m.stream.Connected)
	assert.Contains(t, m.View(), "EVENT STREAM")
	assert.Contains(t, m.View(), "RUN WATCH")
}

func TestDisconnectSchedulesReconnect(t *testing.T) {
	m := newModel(t, nil)
	m, cmd := update(t, m, sseDisconnectedMsg{})
	assert.False(t, m.stream.Connected)
	assert.NotEmpty(t, m.lastError)
	assert.NotNil(t, cmd)

	m.cancel()
	_, cmd = update(t, m, sseDisconnectedMsg{})
	assert.Nil(t, cmd, "no reconnect after quit")
}

func TestWatchTracksAndCancelsRun(t *testing.T) {
	db := openStubDB(t)
	store := stubserver.NewStore(db)
	ws, err := stubserver.Seed(context.Background(), store, t.TempDir())
	require.NoError(t, err)

	srv := stubserver.New(stubserver.Config{Settle: time.Hour}, store, log.Discard())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	client := remote.New(remote.Options{BaseURL: ts.URL})

	bundles, err := client.ListBundles(context.Background(), ws.ID)
	require.NoError(t, err)
	require.NotEmpty(t, bundles)
	run, err := client.RunCycle(context.Background(), remote.CycleRequest{
		BundleArtifactID: bundles[0].ArtifactID,
		Mode:             remote.ModeLive,
		WorkspaceID:      ws.ID,
		ApprovalToken:    "approved-test",
	})
	require.NoError(t, err)

	wake := make(chan struct{}, 1)
	poller := runstatus.New(client, runstatus.Options{
		Interval: time.Hour,
		Logger:   log.Discard(),
		OnUpdate: func(runstatus.Snapshot) {
			select {
			case wake <- struct{}{}:
			default:
			}
		},
	})
	t.Cleanup(poller.Stop)

	m := New(Options{APIURL: ts.URL, RunID: run.RunID, WorkspaceID: ws.ID, Poller: poller, Wake: wake})
	t.Cleanup(m.cancel)
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})
	_ = m.Init()

	require.Eventually(t, func() bool {
		s := poller.Snapshot()
		return s.Status != nil && s.Status.Status == "running"
	}, 5*time.Second, 10*time.Millisecond)
	m, _ = update(t, m, wakeMsg{})
	assert.Contains(t, m.View(), "RUN "+run.RunID)

	// The stream replays the hub backlog, including the run notice.
	go func() { _ = subscribeToEvents(m.ctx, ts.URL, "", 0, m.hubEvents)() }()
	select {
	case ev := <-m.hubEvents:
		m, _ = update(t, m, eventMsg(ev))
	case <-time.After(5 * time.Second):
		t.Fatal("no event received")
	}
	require.NotEmpty(t, m.eventLog)

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("c")})
	require.NotNil(t, cmd)
	m, _ = update(t, m, cmd())
	assert.Equal(t, "Cancel requested.", m.notice)
	require.NotNil(t, m.run.Status)
	assert.Equal(t, "cancelled", m.run.Status.Status)

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("c")})
	assert.Equal(t, "Run is not cancelable.", m.notice)
}

func openStubDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := storage.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "stub.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}
