package stubserver_test

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/ctlstudio/internal/events"
	"github.com/mattjoyce/ctlstudio/internal/log"
	"github.com/mattjoyce/ctlstudio/internal/remote"
	"github.com/mattjoyce/ctlstudio/internal/runstatus"
	"github.com/mattjoyce/ctlstudio/internal/storage"
	"github.com/mattjoyce/ctlstudio/internal/stubserver"
	"github.com/mattjoyce/ctlstudio/internal/studio"
)

func startStub(t *testing.T, cfg stubserver.Config) (*remote.Client, *stubserver.Store) {
	t.Helper()
	db, err := storage.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "stub.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store := stubserver.NewStore(db)
	_, err = stubserver.Seed(context.Background(), store, t.TempDir())
	require.NoError(t, err)

	ts := httptest.NewServer(stubserver.New(cfg, store, log.Discard()).Handler())
	t.Cleanup(ts.Close)
	return remote.New(remote.Options{BaseURL: ts.URL}), store
}

func TestGuidedWorkflowEndToEnd(t *testing.T) {
	client, _ := startStub(t, stubserver.Config{})
	ctx := context.Background()
	hub := events.NewHub(64)
	sess := studio.New(client, studio.Options{Logger: log.Discard(), Publisher: hub})

	require.NoError(t, sess.RefreshWorkspaces(ctx))
	snap := sess.Snapshot()
	require.NotNil(t, snap.Workspace)
	require.NotEmpty(t, snap.SelectedBundleID, "first bundle is selected on load")
	assert.Equal(t, studio.StageSelectBundle, snap.Stage)

	stage, err := sess.Advance()
	require.NoError(t, err)
	assert.Equal(t, studio.StageConfigureModel, stage)
	stage, err = sess.Advance()
	require.NoError(t, err)
	assert.Equal(t, studio.StageRunPreview, stage)

	_, err = sess.Advance()
	assert.ErrorIs(t, err, studio.ErrStageIncomplete)
	_, err = sess.ApprovePlan()
	assert.ErrorIs(t, err, studio.ErrNoPreview)

	preview, err := sess.Preview(ctx)
	require.NoError(t, err)
	assert.True(t, preview.Success)

	snap = sess.Snapshot()
	require.NotNil(t, snap.Review)
	assert.Empty(t, snap.Review.FetchErrors)
	assert.NotEmpty(t, snap.Review.Effects)
	assert.Equal(t, 1, snap.Review.Summary.Allowed)
	assert.Equal(t, 1, snap.Review.Summary.Denied)
	require.NotNil(t, snap.Diff())
	assert.NotEmpty(t, snap.Diff().Diff)

	stage, err = sess.Advance()
	require.NoError(t, err)
	assert.Equal(t, studio.StageReviewPlan, stage)
	stage, err = sess.Advance()
	require.NoError(t, err)
	assert.Equal(t, studio.StageApprove, stage)

	_, err = sess.RunLive(ctx)
	assert.ErrorIs(t, err, studio.ErrNotApproved)

	token, err := sess.ApprovePlan()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(token, "approved-"))

	live, err := sess.RunLive(ctx)
	require.NoError(t, err)
	assert.True(t, live.Success)
	assert.Equal(t, token, live.Report.StringOr("approval_token", ""))

	stage, err = sess.Advance()
	require.NoError(t, err)
	assert.Equal(t, studio.StageHistory, stage)

	snap = sess.Snapshot()
	require.Len(t, snap.Reports, 2)
	require.NoError(t, sess.SelectReport(preview.RunID))
	stage, err = sess.Advance()
	require.NoError(t, err)
	assert.Equal(t, studio.StageReplay, stage)

	replay, err := sess.Replay(ctx)
	require.NoError(t, err)
	// The controller slugs the requested id and appends a timestamp.
	assert.True(t, strings.HasPrefix(replay.RunID, strings.ToLower(studio.ReplayRunID(preview.RunID))))
	snap = sess.Snapshot()
	assert.Equal(t, "Replayed "+preview.RunID+" → "+replay.RunID, snap.ReplayNotice)
	assert.Len(t, snap.Reports, 3)

	var runEvents int
	for _, ev := range hub.SnapshotSince(0) {
		if ev.Type == events.TypeRun {
			runEvents++
		}
	}
	assert.Equal(t, 3, runEvents)
}

func TestPollerTracksAndCancelsLiveRun(t *testing.T) {
	client, _ := startStub(t, stubserver.Config{Settle: time.Hour})
	ctx := context.Background()

	sess := studio.New(client, studio.Options{Logger: log.Discard()})
	require.NoError(t, sess.RefreshWorkspaces(ctx))
	_, err := sess.Preview(ctx)
	require.NoError(t, err)
	_, err = sess.ApprovePlan()
	require.NoError(t, err)
	live, err := sess.RunLive(ctx)
	require.NoError(t, err)

	var (
		mu      sync.Mutex
		updates []runstatus.Snapshot
	)
	poller := runstatus.New(client, runstatus.Options{
		Interval: 20 * time.Millisecond,
		Logger:   log.Discard(),
		OnUpdate: func(s runstatus.Snapshot) {
			mu.Lock()
			updates = append(updates, s)
			mu.Unlock()
		},
	})
	defer poller.Stop()

	poller.Attach(live.RunID, sess.WorkspaceID())
	require.Eventually(t, func() bool {
		snap := poller.Snapshot()
		return snap.Status != nil && snap.Status.Status == stubserver.StatusRunning
	}, 2*time.Second, 10*time.Millisecond)
	assert.True(t, poller.Cancelable())

	status, err := poller.RequestCancel(ctx)
	require.NoError(t, err)
	assert.True(t, status.Canceled)

	// Later polls keep the cancellation sticky.
	time.Sleep(60 * time.Millisecond)
	snap := poller.Snapshot()
	require.NotNil(t, snap.Status)
	assert.Equal(t, stubserver.StatusCancelled, snap.Status.Status)
	assert.False(t, poller.Cancelable())
	assert.Empty(t, snap.Err)

	_, err = poller.RequestCancel(ctx)
	assert.ErrorIs(t, err, runstatus.ErrNotCancelable)

	mu.Lock()
	assert.NotEmpty(t, updates)
	mu.Unlock()
}
