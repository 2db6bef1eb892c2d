// Package runstatus observes one in-flight run at a time.
//
// A Poller is bound to a (run id, workspace id) pair by Attach. It fetches the
// run status immediately and then on every interval until it is detached, by
// Stop or by attaching to a different pair. Results that arrive for a binding
// that is no longer current are dropped.
package runstatus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mattjoyce/ctlstudio/internal/events"
	"github.com/mattjoyce/ctlstudio/internal/remote"
)

// DefaultInterval is the refresh period when none is configured.
const DefaultInterval = 3 * time.Second

var (
	// ErrNotCancelable is returned when the last observed status does not
	// permit cancellation.
	ErrNotCancelable = errors.New("run is not cancelable")
	// ErrCancelInFlight is returned while a cancel request is outstanding.
	ErrCancelInFlight = errors.New("a cancel request is already in flight")
)

// cancelableStates are the statuses from which a run may be cancelled.
var cancelableStates = map[string]bool{
	"running":    true,
	"pending":    true,
	"cancelling": true,
}

// Fetcher is the slice of the controller API the poller needs.
type Fetcher interface {
	GetRunStatus(ctx context.Context, runID, workspaceID string) (*remote.RunStatus, error)
	CancelRun(ctx context.Context, runID, workspaceID string) (*remote.RunStatus, error)
}

// Snapshot is a point-in-time copy of the poller state.
type Snapshot struct {
	RunID       string
	WorkspaceID string
	Status      *remote.RunStatus
	Err         string
	Canceling   bool
	Cancelable  bool
	UpdatedAt   time.Time
}

// Options configures a Poller.
type Options struct {
	Interval  time.Duration
	Logger    *slog.Logger
	Publisher events.Publisher
	// OnUpdate is called after every state change, outside the poller lock.
	// It must not block and must not call Attach or Stop.
	OnUpdate func(Snapshot)
}

// Poller tracks the status of one run.
type Poller struct {
	fetcher   Fetcher
	interval  time.Duration
	logger    *slog.Logger
	publisher events.Publisher
	onUpdate  func(Snapshot)

	mu          sync.Mutex
	generation  uint64
	runID       string
	workspaceID string
	status      *remote.RunStatus
	lastErr     string
	canceling   bool
	updatedAt   time.Time
	canceled    map[string]bool
	stopLoop    context.CancelFunc
	wg          sync.WaitGroup
}

// New creates an idle poller.
func New(fetcher Fetcher, opts Options) *Poller {
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	var publisher events.Publisher = events.Nop{}
	if opts.Publisher != nil {
		publisher = opts.Publisher
	}
	return &Poller{
		fetcher:   fetcher,
		interval:  interval,
		logger:    logger,
		publisher: publisher,
		onUpdate:  opts.OnUpdate,
		canceled:  make(map[string]bool),
	}
}

// Attach binds the poller to a run. Attaching to the current binding is a
// no-op; an empty run id only detaches.
func (p *Poller) Attach(runID, workspaceID string) {
	p.mu.Lock()
	if p.stopLoop != nil && p.runID == runID && p.workspaceID == workspaceID {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	p.Stop()
	if runID == "" {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.mu.Lock()
	p.generation++
	gen := p.generation
	p.runID = runID
	p.workspaceID = workspaceID
	p.stopLoop = cancel
	p.wg.Add(1)
	p.mu.Unlock()

	p.logger.Debug("run poller attached", "run_id", runID, "workspace_id", workspaceID)
	go p.loop(ctx, gen, runID, workspaceID)
}

// Stop detaches the poller and waits for its loop to exit. A fetch that is
// still in flight is abandoned and its result discarded.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel := p.stopLoop
	if cancel == nil {
		p.mu.Unlock()
		return
	}
	p.stopLoop = nil
	p.generation++
	runID := p.runID
	p.runID = ""
	p.workspaceID = ""
	p.status = nil
	p.lastErr = ""
	p.canceling = false
	p.mu.Unlock()

	cancel()
	p.wg.Wait()
	p.logger.Debug("run poller detached", "run_id", runID)
}

// Snapshot returns the current state.
func (p *Poller) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

// Cancelable reports whether RequestCancel would be accepted.
func (p *Poller) Cancelable() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancelableLocked() && !p.canceling
}

// Refresh fetches the status once outside the regular schedule.
func (p *Poller) Refresh(ctx context.Context) {
	p.mu.Lock()
	gen, runID, workspaceID := p.generation, p.runID, p.workspaceID
	p.mu.Unlock()
	if runID == "" {
		return
	}
	p.refresh(ctx, gen, runID, workspaceID)
}

// RequestCancel asks the controller to cancel the attached run and replaces
// the local status with the server's answer.
func (p *Poller) RequestCancel(ctx context.Context) (*remote.RunStatus, error) {
	p.mu.Lock()
	if p.canceling {
		p.mu.Unlock()
		return nil, ErrCancelInFlight
	}
	if !p.cancelableLocked() {
		p.mu.Unlock()
		return nil, ErrNotCancelable
	}
	p.canceling = true
	p.lastErr = ""
	gen, runID, workspaceID := p.generation, p.runID, p.workspaceID
	p.mu.Unlock()
	p.notify()

	status, err := p.fetcher.CancelRun(ctx, runID, workspaceID)

	p.mu.Lock()
	if gen != p.generation {
		p.mu.Unlock()
		if err != nil {
			return nil, fmt.Errorf("cancel run %s: %w", runID, err)
		}
		return status, nil
	}
	p.canceling = false
	if err != nil {
		p.lastErr = err.Error()
		p.mu.Unlock()
		p.logger.Warn("cancel run failed", "run_id", runID, "error", err)
		p.notify()
		return nil, fmt.Errorf("cancel run %s: %w", runID, err)
	}
	p.applyLocked(status)
	p.mu.Unlock()

	p.logger.Info("run cancel requested", "run_id", runID, "status", status.Status)
	p.notify()
	return status, nil
}

func (p *Poller) loop(ctx context.Context, gen uint64, runID, workspaceID string) {
	defer p.wg.Done()

	p.refresh(ctx, gen, runID, workspaceID)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.refresh(ctx, gen, runID, workspaceID)
		case <-ctx.Done():
			return
		}
	}
}

func (p *Poller) refresh(ctx context.Context, gen uint64, runID, workspaceID string) {
	status, err := p.fetcher.GetRunStatus(ctx, runID, workspaceID)

	p.mu.Lock()
	if gen != p.generation || ctx.Err() != nil {
		p.mu.Unlock()
		return
	}
	if err != nil {
		p.lastErr = err.Error()
		p.updatedAt = time.Now()
		p.mu.Unlock()
		p.logger.Warn("run status fetch failed", "run_id", runID, "error", err)
		p.notify()
		return
	}
	p.lastErr = ""
	p.applyLocked(status)
	p.mu.Unlock()
	p.notify()
}

// applyLocked stores status, keeping the canceled flag sticky per run id.
func (p *Poller) applyLocked(status *remote.RunStatus) {
	if status == nil {
		return
	}
	copied := *status
	if copied.Canceled {
		p.canceled[p.runID] = true
	} else if p.canceled[p.runID] {
		copied.Canceled = true
	}
	p.status = &copied
	p.updatedAt = time.Now()
}

func (p *Poller) cancelableLocked() bool {
	if p.runID == "" || p.status == nil {
		return false
	}
	if p.status.Canceled || p.canceled[p.runID] {
		return false
	}
	return cancelableStates[p.status.Status]
}

func (p *Poller) snapshotLocked() Snapshot {
	snap := Snapshot{
		RunID:       p.runID,
		WorkspaceID: p.workspaceID,
		Err:         p.lastErr,
		Canceling:   p.canceling,
		Cancelable:  p.cancelableLocked() && !p.canceling,
		UpdatedAt:   p.updatedAt,
	}
	if p.status != nil {
		copied := *p.status
		snap.Status = &copied
	}
	return snap
}

func (p *Poller) notify() {
	p.mu.Lock()
	snap := p.snapshotLocked()
	p.mu.Unlock()

	notice := events.RunStatusNotice{RunID: snap.RunID, Error: snap.Err}
	if snap.Status != nil {
		notice.Status = snap.Status.Status
		notice.Canceled = snap.Status.Canceled
	}
	p.publisher.Publish(events.TypeRunStatus, notice)
	if p.onUpdate != nil {
		p.onUpdate(snap)
	}
}
