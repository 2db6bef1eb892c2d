package runstatus

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/ctlstudio/internal/events"
	"github.com/mattjoyce/ctlstudio/internal/remote"
)

type fakeRuns struct {
	mu         sync.Mutex
	statuses   map[string]*remote.RunStatus
	errs       map[string]error
	gates      map[string]chan struct{}
	cancelGate chan struct{}
	cancelResp *remote.RunStatus
	cancelErr  error
	gets       map[string]int
	cancels    int
}

func newFakeRuns() *fakeRuns {
	return &fakeRuns{
		statuses: map[string]*remote.RunStatus{},
		errs:     map[string]error{},
		gates:    map[string]chan struct{}{},
		gets:     map[string]int{},
	}
}

func (f *fakeRuns) set(runID string, status *remote.RunStatus, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[runID] = status
	f.errs[runID] = err
}

func (f *fakeRuns) getCount(runID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gets[runID]
}

func (f *fakeRuns) GetRunStatus(ctx context.Context, runID, _ string) (*remote.RunStatus, error) {
	f.mu.Lock()
	f.gets[runID]++
	gate := f.gates[runID]
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs[runID]; err != nil {
		return nil, err
	}
	if st := f.statuses[runID]; st != nil {
		copied := *st
		return &copied, nil
	}
	return nil, &remote.APIError{StatusCode: 404, Message: "run not found"}
}

func (f *fakeRuns) CancelRun(ctx context.Context, _ string, _ string) (*remote.RunStatus, error) {
	f.mu.Lock()
	f.cancels++
	gate := f.cancelGate
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cancelErr != nil {
		return nil, f.cancelErr
	}
	copied := *f.cancelResp
	return &copied, nil
}

func newTestPoller(f Fetcher, hub events.Publisher) *Poller {
	return New(f, Options{Interval: time.Hour, Publisher: hub})
}

func waitForStatus(t *testing.T, p *Poller, want string) {
	t.Helper()
	require.Eventually(t, func() bool {
		snap := p.Snapshot()
		return snap.Status != nil && snap.Status.Status == want
	}, 2*time.Second, 5*time.Millisecond)
}

func TestAttachFetchesImmediately(t *testing.T) {
	f := newFakeRuns()
	f.set("r1", &remote.RunStatus{RunID: "r1", Status: "running"}, nil)
	p := newTestPoller(f, nil)
	defer p.Stop()

	p.Attach("r1", "ws1")
	waitForStatus(t, p, "running")

	snap := p.Snapshot()
	assert.Equal(t, "r1", snap.RunID)
	assert.Equal(t, "ws1", snap.WorkspaceID)
	assert.True(t, snap.Cancelable)
	assert.Empty(t, snap.Err)
}

func TestAttachSameBindingIsNoop(t *testing.T) {
	f := newFakeRuns()
	f.set("r1", &remote.RunStatus{RunID: "r1", Status: "running"}, nil)
	p := newTestPoller(f, nil)
	defer p.Stop()

	p.Attach("r1", "ws1")
	waitForStatus(t, p, "running")
	p.Attach("r1", "ws1")

	assert.Equal(t, 1, f.getCount("r1"))
}

func TestCancelIsStickyAcrossPolls(t *testing.T) {
	f := newFakeRuns()
	f.set("r1", &remote.RunStatus{RunID: "r1", Status: "running", Canceled: false}, nil)
	f.cancelResp = &remote.RunStatus{RunID: "r1", Status: "cancelled", Canceled: true}
	hub := events.NewHub(16)
	p := newTestPoller(f, hub)
	defer p.Stop()

	p.Attach("r1", "")
	waitForStatus(t, p, "running")
	require.True(t, p.Cancelable())

	status, err := p.RequestCancel(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "cancelled", status.Status)
	assert.True(t, status.Canceled)
	assert.False(t, p.Cancelable())

	// A later poll that reports the run as live again cannot revive it.
	f.set("r1", &remote.RunStatus{RunID: "r1", Status: "running", Canceled: false}, nil)
	p.Refresh(context.Background())

	snap := p.Snapshot()
	require.NotNil(t, snap.Status)
	assert.Equal(t, "running", snap.Status.Status)
	assert.True(t, snap.Status.Canceled)
	assert.False(t, snap.Cancelable)

	_, err = p.RequestCancel(context.Background())
	assert.ErrorIs(t, err, ErrNotCancelable)
	assert.Equal(t, 1, f.cancels)

	var sawCanceled bool
	for _, ev := range hub.SnapshotSince(0) {
		var notice events.RunStatusNotice
		require.NoError(t, ev.Decode(&notice))
		if notice.Canceled {
			sawCanceled = true
		}
	}
	assert.True(t, sawCanceled)
}

func TestRequestCancelRejectsNonCancelableStates(t *testing.T) {
	f := newFakeRuns()
	p := newTestPoller(f, nil)

	_, err := p.RequestCancel(context.Background())
	assert.ErrorIs(t, err, ErrNotCancelable, "no run attached")

	f.set("r1", &remote.RunStatus{RunID: "r1", Status: "succeeded"}, nil)
	p.Attach("r1", "")
	defer p.Stop()
	waitForStatus(t, p, "succeeded")

	_, err = p.RequestCancel(context.Background())
	assert.ErrorIs(t, err, ErrNotCancelable)
	assert.Equal(t, 0, f.cancels)
}

func TestConcurrentCancelRejected(t *testing.T) {
	f := newFakeRuns()
	f.set("r1", &remote.RunStatus{RunID: "r1", Status: "pending"}, nil)
	f.cancelGate = make(chan struct{})
	f.cancelResp = &remote.RunStatus{RunID: "r1", Status: "cancelling", Canceled: true}
	p := newTestPoller(f, nil)
	defer p.Stop()

	p.Attach("r1", "")
	waitForStatus(t, p, "pending")

	done := make(chan error, 1)
	go func() {
		_, err := p.RequestCancel(context.Background())
		done <- err
	}()
	require.Eventually(t, func() bool { return p.Snapshot().Canceling }, 2*time.Second, 5*time.Millisecond)
	assert.False(t, p.Cancelable())

	_, err := p.RequestCancel(context.Background())
	assert.ErrorIs(t, err, ErrCancelInFlight)

	close(f.cancelGate)
	require.NoError(t, <-done)
	assert.False(t, p.Snapshot().Canceling)
	assert.Equal(t, 1, f.cancels)
}

func TestCancelFailureKeepsStatus(t *testing.T) {
	f := newFakeRuns()
	f.set("r1", &remote.RunStatus{RunID: "r1", Status: "running"}, nil)
	f.cancelErr = &remote.APIError{StatusCode: 409, Message: "already finished"}
	p := newTestPoller(f, nil)
	defer p.Stop()

	p.Attach("r1", "")
	waitForStatus(t, p, "running")

	_, err := p.RequestCancel(context.Background())
	require.Error(t, err)
	assert.Equal(t, 409, remote.AsAPIError(err).StatusCode)

	snap := p.Snapshot()
	assert.Equal(t, "409 already finished", snap.Err)
	assert.Equal(t, "running", snap.Status.Status)
	assert.True(t, snap.Cancelable)
}

func TestFetchErrorsDoNotStopPolling(t *testing.T) {
	f := newFakeRuns()
	f.set("r1", nil, errors.New("connection refused"))
	p := New(f, Options{Interval: 10 * time.Millisecond})
	defer p.Stop()

	p.Attach("r1", "")
	require.Eventually(t, func() bool { return p.Snapshot().Err == "connection refused" }, 2*time.Second, 5*time.Millisecond)

	f.set("r1", &remote.RunStatus{RunID: "r1", Status: "running"}, nil)
	waitForStatus(t, p, "running")
	assert.Empty(t, p.Snapshot().Err)
	assert.GreaterOrEqual(t, f.getCount("r1"), 2)
}

func TestStaleResultIsDiscarded(t *testing.T) {
	f := newFakeRuns()
	f.set("r1", &remote.RunStatus{RunID: "r1", Status: "running"}, nil)
	f.set("r2", &remote.RunStatus{RunID: "r2", Status: "pending"}, nil)
	p := newTestPoller(f, nil)
	defer p.Stop()

	p.Attach("r1", "ws1")
	waitForStatus(t, p, "running")

	gate := make(chan struct{})
	f.mu.Lock()
	f.gates["r1"] = gate
	f.mu.Unlock()

	refreshed := make(chan struct{})
	go func() {
		p.Refresh(context.Background())
		close(refreshed)
	}()
	require.Eventually(t, func() bool { return f.getCount("r1") == 2 }, 2*time.Second, 5*time.Millisecond)

	p.Attach("r2", "ws1")
	waitForStatus(t, p, "pending")

	f.set("r1", &remote.RunStatus{RunID: "r1", Status: "failed"}, nil)
	close(gate)
	<-refreshed

	snap := p.Snapshot()
	assert.Equal(t, "r2", snap.RunID)
	assert.Equal(t, "pending", snap.Status.Status)
}

func TestStopClearsBinding(t *testing.T) {
	f := newFakeRuns()
	f.set("r1", &remote.RunStatus{RunID: "r1", Status: "running"}, nil)
	var updates int
	var mu sync.Mutex
	p := New(f, Options{Interval: time.Hour, OnUpdate: func(Snapshot) {
		mu.Lock()
		updates++
		mu.Unlock()
	}})

	p.Attach("r1", "")
	waitForStatus(t, p, "running")
	p.Stop()
	p.Stop()

	snap := p.Snapshot()
	assert.Empty(t, snap.RunID)
	assert.Nil(t, snap.Status)
	assert.False(t, p.Cancelable())

	mu.Lock()
	assert.GreaterOrEqual(t, updates, 1)
	mu.Unlock()
}
