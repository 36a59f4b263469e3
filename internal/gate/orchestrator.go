package gate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"gatewarden/internal/access"
	"gatewarden/internal/barrier"
	"gatewarden/internal/logging"
	"gatewarden/internal/pending"
	"gatewarden/internal/plate"
	"gatewarden/internal/services"
	"gatewarden/internal/tracking"
)

// Orchestrator is the access-control core for one gate.
type Orchestrator struct {
	logger           *slog.Logger
	clock            barrier.Clock
	threshold        int
	credentialWindow time.Duration
	pendingTimeout   time.Duration
	policy           TimeoutPolicy
	credentials      map[string][]string

	lanesMu sync.RWMutex
	lanes   map[string]*lane
	cameras []Camera

	mu      sync.Mutex
	queue   *pending.Queue
	barrier *barrier.Controller
	tracker *tracking.Tracker
	// stale holds approvals already reported past the pending timeout,
	// keyed by plate.
	stale   map[string]time.Time

	observersMu      sync.RWMutex
	barrierObservers []func(access.BarrierStatus)
	// deliverMu serializes barrier delivery; delivered is the highest
	// revision handed to observers.
	deliverMu        sync.Mutex
	delivered        uint64
	pendingObservers []func(access.PendingApproval)
	entryObservers   []func(access.LogEntry)
}

// New builds an orchestrator. The barrier starts CLOSED and the log empty;
// call Restore to load a persisted journal.
func New(opts Options) (*Orchestrator, error) {
	clock := opts.Clock
	if clock == nil {
		clock = barrier.SystemClock{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	policy := opts.TimeoutPolicy
	if policy == "" {
		policy = PolicyStay
	}
	if _, err := ParseTimeoutPolicy(string(policy)); err != nil {
		return nil, err
	}

	o := &Orchestrator{
		logger:           logging.NewComponentLogger(logger, "gate"),
		clock:            clock,
		threshold:        opts.StabilityThreshold,
		credentialWindow: opts.CredentialWindow,
		pendingTimeout:   opts.PendingTimeout,
		policy:           policy,
		credentials:      normalizeCredentials(opts.Credentials),
		lanes:            make(map[string]*lane),
		queue:            pending.New(),
		stale:            make(map[string]time.Time),
		tracker:          tracking.New(opts.Journal, clock.Now),
	}
	o.barrier = barrier.New(opts.AutoCloseDelay, clock, o.autoClose)

	for _, cam := range opts.Cameras {
		id := strings.TrimSpace(cam.ID)
		if id == "" {
			return nil, fmt.Errorf("%w: camera id is required", services.ErrValidation)
		}
		if cam.Direction != access.DirectionEnter && cam.Direction != access.DirectionExit {
			return nil, fmt.Errorf("%w: camera %q has invalid direction %q", services.ErrValidation, id, cam.Direction)
		}
		if _, dup := o.lanes[id]; dup {
			return nil, fmt.Errorf("%w: duplicate camera id %q", services.ErrValidation, id)
		}
		o.lanes[id] = newLane(id, cam.Direction, o.threshold)
		o.cameras = append(o.cameras, Camera{ID: id, Direction: cam.Direction})
	}
	return o, nil
}

func normalizeCredentials(in map[string][]string) map[string][]string {
	out := make(map[string][]string, len(in))
	for user, plates := range in {
		user = strings.TrimSpace(user)
		if user == "" {
			continue
		}
		for _, p := range plates {
			if n := plate.Normalize(p); n != "" {
				out[user] = append(out[user], n)
			}
		}
	}
	return out
}

// Restore loads the persisted access log, rebuilding occupancy.
func (o *Orchestrator) Restore(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.tracker.Restore(ctx); err != nil {
		return services.Wrap(services.ErrStorage, "gate", "restore", "load access log", err)
	}
	o.logger.Info("access log restored",
		logging.Int("entries", o.tracker.Len()),
		logging.Int("inside", len(o.tracker.Inside())),
	)
	return nil
}

// Close cancels the auto-close timer. The barrier state is left unchanged.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.barrier.Shutdown()
}

// Cameras returns the configured cameras.
func (o *Orchestrator) Cameras() []Camera {
	out := make([]Camera, len(o.cameras))
	copy(out, o.cameras)
	return out
}

// OnBarrierChange registers fn to receive every committed barrier status.
func (o *Orchestrator) OnBarrierChange(fn func(access.BarrierStatus)) {
	o.observersMu.Lock()
	defer o.observersMu.Unlock()
	o.barrierObservers = append(o.barrierObservers, fn)
}

// OnPending registers fn to receive every newly enqueued approval.
func (o *Orchestrator) OnPending(fn func(access.PendingApproval)) {
	o.observersMu.Lock()
	defer o.observersMu.Unlock()
	o.pendingObservers = append(o.pendingObservers, fn)
}

// OnLogEntry registers fn to receive every committed log entry.
func (o *Orchestrator) OnLogEntry(fn func(access.LogEntry)) {
	o.observersMu.Lock()
	defer o.observersMu.Unlock()
	o.entryObservers = append(o.entryObservers, fn)
}

// events collects notifications produced under the mutex for delivery after
// it is released.
type events struct {
	barrier *access.BarrierStatus
	pending []access.PendingApproval
	entries []access.LogEntry
}

func (e *events) barrierChanged(status access.BarrierStatus) {
	e.barrier = &status
}

func (o *Orchestrator) dispatch(ev events) {
	if ev.barrier == nil && len(ev.pending) == 0 && len(ev.entries) == 0 {
		return
	}
	o.observersMu.RLock()
	barrierObs := o.barrierObservers
	pendingObs := o.pendingObservers
	entryObs := o.entryObservers
	o.observersMu.RUnlock()

	for _, entry := range ev.entries {
		for _, fn := range entryObs {
			fn(entry)
		}
	}
	for _, item := range ev.pending {
		for _, fn := range pendingObs {
			fn(item)
		}
	}
	if ev.barrier != nil {
		o.deliverBarrier(*ev.barrier, barrierObs)
	}
}

// deliverBarrier hands status to observers one commit at a time. A status
// overtaken by a newer commit before its turn is dropped, so observers never
// finish on a state the barrier has already left.
func (o *Orchestrator) deliverBarrier(status access.BarrierStatus, observers []func(access.BarrierStatus)) {
	o.deliverMu.Lock()
	defer o.deliverMu.Unlock()
	if status.Revision <= o.delivered {
		o.logger.Debug("superseded barrier status dropped",
			logging.Uint64("revision", status.Revision),
			logging.Uint64("delivered", o.delivered),
		)
		return
	}
	o.delivered = status.Revision
	for _, fn := range observers {
		fn(status)
	}
}

// Pending returns the pending approvals in insertion order.
func (o *Orchestrator) Pending() []access.PendingApproval {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.queue.List()
}

// Barrier returns the current barrier status.
func (o *Orchestrator) Barrier() access.BarrierStatus {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.barrier.Status()
}

// Occupancy returns every known plate's occupancy.
func (o *Orchestrator) Occupancy() map[string]access.Occupancy {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.tracker.Occupancy()
}

// OccupancyOf returns the occupancy for a single plate.
func (o *Orchestrator) OccupancyOf(raw string) access.Occupancy {
	p := plate.Normalize(raw)
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.tracker.OccupancyOf(p)
}

// LogCount returns the number of committed log entries.
func (o *Orchestrator) LogCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.tracker.Len()
}

// Logs returns up to limit log entries, most recent first.
func (o *Orchestrator) Logs(limit int) []access.LogEntry {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.tracker.Recent(limit)
}
