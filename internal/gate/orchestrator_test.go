package gate_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"gatewarden/internal/access"
	"gatewarden/internal/gate"
	"gatewarden/internal/services"
	"gatewarden/internal/testsupport"
)

var epoch = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

type flakyJournal struct {
	mu      sync.Mutex
	entries []access.LogEntry
	fail    error
}

func (j *flakyJournal) Append(_ context.Context, entry access.LogEntry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.fail != nil {
		return j.fail
	}
	j.entries = append(j.entries, entry)
	return nil
}

func (j *flakyJournal) Load(context.Context) ([]access.LogEntry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]access.LogEntry, len(j.entries))
	copy(out, j.entries)
	return out, nil
}

func (j *flakyJournal) setFail(err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.fail = err
}

type harness struct {
	orch    *gate.Orchestrator
	clock   *testsupport.FakeClock
	journal *flakyJournal
}

func newHarness(t *testing.T, mutate ...func(*gate.Options)) *harness {
	t.Helper()
	clock := testsupport.NewFakeClock(epoch)
	journal := &flakyJournal{}
	opts := gate.Options{
		Cameras: []gate.Camera{
			{ID: "gate-in", Direction: access.DirectionEnter},
			{ID: "gate-out", Direction: access.DirectionExit},
		},
		StabilityThreshold: 5,
		AutoCloseDelay:     10 * time.Second,
		CredentialWindow:   20 * time.Second,
		Journal:            journal,
		Clock:              clock,
	}
	for _, fn := range mutate {
		fn(&opts)
	}
	orch, err := gate.New(opts)
	if err != nil {
		t.Fatalf("gate.New failed: %v", err)
	}
	t.Cleanup(orch.Close)
	return &harness{orch: orch, clock: clock, journal: journal}
}

func (h *harness) feed(t *testing.T, camera, plate string, frames int) gate.IngestResult {
	t.Helper()
	var last gate.IngestResult
	for i := 0; i < frames; i++ {
		res, err := h.orch.Ingest(context.Background(), access.Reading{CameraID: camera, Plate: plate, At: h.clock.Now()}, "")
		if err != nil {
			t.Fatalf("Ingest failed: %v", err)
		}
		last = res
	}
	return last
}

func (h *harness) enqueue(t *testing.T, camera, plate string) {
	t.Helper()
	res := h.feed(t, camera, plate, 5)
	if !res.Enqueued {
		t.Fatalf("expected %s to be enqueued, got %+v", plate, res)
	}
}

func TestStableDetectionEnqueuesOnce(t *testing.T) {
	h := newHarness(t)
	for i := 0; i < 4; i++ {
		res := h.feed(t, "gate-in", "123TUN45", 1)
		if res.Emitted {
			t.Fatalf("emitted early at frame %d", i+1)
		}
	}
	res := h.feed(t, "gate-in", "123 TUN 45", 1)
	if !res.Emitted || !res.Enqueued {
		t.Fatalf("expected fifth frame to enqueue, got %+v", res)
	}
	h.feed(t, "gate-in", "123TUN45", 10)

	items := h.orch.Pending()
	if len(items) != 1 {
		t.Fatalf("expected a single pending approval, got %+v", items)
	}
	if items[0].Plate != "123TUN45" || items[0].Direction != access.DirectionEnter || items[0].CameraID != "gate-in" {
		t.Fatalf("unexpected pending approval: %+v", items[0])
	}
}

func TestApproveThenSecondResolveIsNotFound(t *testing.T) {
	h := newHarness(t)
	h.enqueue(t, "gate-in", "123TUN45")
	ctx := context.Background()

	entry, err := h.orch.Resolve(ctx, "123TUN45", access.DecisionApprove, "guard1")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if entry.Action != access.ActionEnter || entry.ResolvedBy != "guard1" {
		t.Fatalf("unexpected log entry: %+v", entry)
	}
	barrier := h.orch.Barrier()
	if barrier.State != access.BarrierOpen || barrier.OpenedFor != "123TUN45" {
		t.Fatalf("unexpected barrier: %+v", barrier)
	}
	if got := h.orch.OccupancyOf("123TUN45"); got != access.Inside {
		t.Fatalf("expected INSIDE, got %s", got)
	}

	_, err = h.orch.Resolve(ctx, "123TUN45", access.DecisionApprove, "guard2")
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	logs := h.orch.Logs(0)
	if len(logs) != 1 {
		t.Fatalf("second resolve must not log, got %+v", logs)
	}
}

func TestRejectLeavesBarrierAndOccupancy(t *testing.T) {
	h := newHarness(t)
	h.enqueue(t, "gate-in", "123TUN45")

	entry, err := h.orch.Resolve(context.Background(), "123TUN45", access.DecisionReject, "guard1")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if entry.Action != access.ActionRejected {
		t.Fatalf("expected REJECTED, got %s", entry.Action)
	}
	if h.orch.Barrier().State != access.BarrierClosed {
		t.Fatal("reject must not open the barrier")
	}
	if h.orch.OccupancyOf("123TUN45") != access.Outside {
		t.Fatal("reject must not change occupancy")
	}
	if len(h.orch.Pending()) != 0 {
		t.Fatal("reject must remove the pending approval")
	}
}

func TestExitApprovalMarksOutside(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.enqueue(t, "gate-in", "123TUN45")
	if _, err := h.orch.Resolve(ctx, "123TUN45", access.DecisionApprove, "g"); err != nil {
		t.Fatalf("approve enter: %v", err)
	}
	h.enqueue(t, "gate-out", "123TUN45")
	entry, err := h.orch.Resolve(ctx, "123TUN45", access.DecisionApprove, "g")
	if err != nil {
		t.Fatalf("approve exit: %v", err)
	}
	if entry.Action != access.ActionExit {
		t.Fatalf("expected EXIT, got %s", entry.Action)
	}
	if h.orch.OccupancyOf("123TUN45") != access.Outside {
		t.Fatal("expected OUTSIDE after exit approval")
	}
}

func TestUnknownDecisionRejectedAtBoundary(t *testing.T) {
	h := newHarness(t)
	h.enqueue(t, "gate-in", "123TUN45")
	_, err := h.orch.Resolve(context.Background(), "123TUN45", access.Decision("MAYBE"), "g")
	if !errors.Is(err, services.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if len(h.orch.Pending()) != 1 {
		t.Fatal("invalid decision must not remove the pending approval")
	}
}

func TestCrossCameraDuplicateIsNoOp(t *testing.T) {
	h := newHarness(t)
	h.enqueue(t, "gate-in", "123TUN45")
	res := h.feed(t, "gate-out", "123TUN45", 5)
	if !res.Emitted || res.Enqueued {
		t.Fatalf("expected detection without enqueue, got %+v", res)
	}
	items := h.orch.Pending()
	if len(items) != 1 || items[0].CameraID != "gate-in" {
		t.Fatalf("original pending entry must be kept, got %+v", items)
	}
}

func TestIngestRouting(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if _, err := h.orch.Ingest(ctx, access.Reading{CameraID: "roof", Plate: "A1"}, ""); !errors.Is(err, services.ErrUnknownCamera) {
		t.Fatalf("expected ErrUnknownCamera, got %v", err)
	}
	if _, err := h.orch.Ingest(ctx, access.Reading{Plate: "A1"}, ""); !errors.Is(err, services.ErrUnknownCamera) {
		t.Fatalf("expected ErrUnknownCamera without camera or direction, got %v", err)
	}

	res, err := h.orch.Ingest(ctx, access.Reading{Plate: "A1"}, access.DirectionExit)
	if err != nil {
		t.Fatalf("Ingest by direction failed: %v", err)
	}
	if res.CameraID != "gate-out" {
		t.Fatalf("expected routing to gate-out, got %s", res.CameraID)
	}

	res, err = h.orch.Ingest(ctx, access.Reading{CameraID: "side-gate", Plate: "A1"}, access.DirectionEnter)
	if err != nil {
		t.Fatalf("ad-hoc lane failed: %v", err)
	}
	if res.CameraID != "side-gate" {
		t.Fatalf("unexpected lane: %+v", res)
	}
	lanes := h.orch.Lanes()
	if len(lanes) != 3 || lanes[2].CameraID != "side-gate" {
		t.Fatalf("unexpected lanes: %+v", lanes)
	}
}

func TestFailedLogAppendCommitsNothing(t *testing.T) {
	h := newHarness(t)
	h.enqueue(t, "gate-in", "123TUN45")
	boom := errors.New("database is locked")
	h.journal.setFail(boom)

	_, err := h.orch.Resolve(context.Background(), "123TUN45", access.DecisionApprove, "guard1")
	if !errors.Is(err, boom) || !errors.Is(err, services.ErrStorage) {
		t.Fatalf("expected storage error wrapping journal failure, got %v", err)
	}
	if services.ErrorKind(err) != services.KindStorage {
		t.Fatalf("unexpected error kind %q", services.ErrorKind(err))
	}
	if h.orch.Barrier().State != access.BarrierClosed {
		t.Fatal("barrier must stay closed when the log append fails")
	}
	if len(h.orch.Pending()) != 1 {
		t.Fatal("pending approval must survive a failed append")
	}
	if h.orch.OccupancyOf("123TUN45") != access.Outside || len(h.orch.Logs(0)) != 0 {
		t.Fatal("failed append leaked into occupancy or log")
	}

	if _, err := h.orch.ForceOpen(context.Background(), "guard1"); !errors.Is(err, services.ErrStorage) {
		t.Fatalf("expected ForceOpen to fail with storage error, got %v", err)
	}
	if h.orch.Barrier().State != access.BarrierClosed {
		t.Fatal("failed force open must not move the barrier")
	}

	h.journal.setFail(nil)
	if _, err := h.orch.Resolve(context.Background(), "123TUN45", access.DecisionApprove, "guard1"); err != nil {
		t.Fatalf("retry after recovery failed: %v", err)
	}
}

func TestForceOpenAutoClosesWithAutoCloseEntry(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if _, err := h.orch.ForceOpen(ctx, "guard1"); err != nil {
		t.Fatalf("ForceOpen failed: %v", err)
	}
	status := h.orch.Barrier()
	if status.State != access.BarrierOpen || status.AutoCloseAt == nil {
		t.Fatalf("unexpected status after force open: %+v", status)
	}

	h.clock.Advance(11 * time.Second)

	if h.orch.Barrier().State != access.BarrierClosed {
		t.Fatal("expected auto-close")
	}
	logs := h.orch.Logs(0)
	if len(logs) != 2 || logs[0].Action != access.ActionAutoClose || logs[1].Action != access.ActionForcedOpen {
		t.Fatalf("unexpected log: %+v", logs)
	}
}

func TestForceOpenWhileOpenDoesNotDoubleLog(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if _, err := h.orch.ForceOpen(ctx, "g"); err != nil {
		t.Fatalf("ForceOpen failed: %v", err)
	}
	h.clock.Advance(8 * time.Second)
	status, err := h.orch.ForceOpen(ctx, "g")
	if err != nil {
		t.Fatalf("second ForceOpen failed: %v", err)
	}
	if !status.AutoCloseAt.Equal(epoch.Add(18 * time.Second)) {
		t.Fatalf("deadline not refreshed: %v", status.AutoCloseAt)
	}
	h.clock.Advance(5 * time.Second)
	if h.orch.Barrier().State != access.BarrierOpen {
		t.Fatal("superseded timer closed the barrier")
	}
	if n := len(h.orch.Logs(0)); n != 1 {
		t.Fatalf("expected a single FORCED_OPEN entry, got %d", n)
	}
}

func TestStaleAutoCloseAfterManualReopen(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if _, err := h.orch.ForceOpen(ctx, "g"); err != nil {
		t.Fatalf("ForceOpen failed: %v", err)
	}
	stale := h.clock.Capture()
	if _, err := h.orch.ForceClose(ctx, "g"); err != nil {
		t.Fatalf("ForceClose failed: %v", err)
	}
	if _, err := h.orch.ForceOpen(ctx, "g"); err != nil {
		t.Fatalf("ForceOpen failed: %v", err)
	}
	for _, fn := range stale {
		fn()
	}
	if h.orch.Barrier().State != access.BarrierOpen {
		t.Fatal("stale timer closed a reopened barrier")
	}
	for _, entry := range h.orch.Logs(0) {
		if entry.Action == access.ActionAutoClose {
			t.Fatalf("stale timer logged: %+v", entry)
		}
	}
}

func TestAutoCloseFailureKeepsBarrierOpen(t *testing.T) {
	h := newHarness(t)
	if _, err := h.orch.ForceOpen(context.Background(), "g"); err != nil {
		t.Fatalf("ForceOpen failed: %v", err)
	}
	h.journal.setFail(errors.New("disk full"))
	h.clock.Advance(10 * time.Second)
	if h.orch.Barrier().State != access.BarrierOpen {
		t.Fatal("barrier closed without a committed log entry")
	}

	h.journal.setFail(nil)
	h.clock.Advance(10 * time.Second)
	if h.orch.Barrier().State != access.BarrierClosed {
		t.Fatal("expected rescheduled auto-close to succeed")
	}
}

func TestApprovalWhileOpenStillLogs(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if _, err := h.orch.ForceOpen(ctx, "g"); err != nil {
		t.Fatalf("ForceOpen failed: %v", err)
	}
	h.enqueue(t, "gate-in", "123TUN45")
	if _, err := h.orch.Resolve(ctx, "123TUN45", access.DecisionApprove, "g"); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if got := h.orch.Barrier().OpenedFor; got != "123TUN45" {
		t.Fatalf("expected opened_for to follow approval, got %q", got)
	}
	logs := h.orch.Logs(0)
	if len(logs) != 2 || logs[0].Action != access.ActionEnter {
		t.Fatalf("unexpected log: %+v", logs)
	}
}

func TestExpirePendingPolicies(t *testing.T) {
	t.Run("stay", func(t *testing.T) {
		h := newHarness(t, func(o *gate.Options) { o.PendingTimeout = 30 * time.Second })
		h.enqueue(t, "gate-in", "A1")
		entries, err := h.orch.ExpirePending(context.Background(), epoch.Add(time.Hour))
		if err != nil || len(entries) != 0 {
			t.Fatalf("stay policy must not expire: %+v %v", entries, err)
		}
		if len(h.orch.Pending()) != 1 {
			t.Fatal("stay policy removed a pending approval")
		}
	})

	t.Run("reject", func(t *testing.T) {
		h := newHarness(t, func(o *gate.Options) {
			o.PendingTimeout = 30 * time.Second
			o.TimeoutPolicy = gate.PolicyReject
		})
		h.enqueue(t, "gate-in", "A1")
		h.clock.Advance(20 * time.Second)
		h.enqueue(t, "gate-in", "B2")

		entries, err := h.orch.ExpirePending(context.Background(), epoch.Add(35*time.Second))
		if err != nil {
			t.Fatalf("ExpirePending failed: %v", err)
		}
		if len(entries) != 1 || entries[0].Plate != "A1" || entries[0].Action != access.ActionRejected || entries[0].ResolvedBy != "" {
			t.Fatalf("unexpected expiry entries: %+v", entries)
		}
		items := h.orch.Pending()
		if len(items) != 1 || items[0].Plate != "B2" {
			t.Fatalf("unexpected remaining pending: %+v", items)
		}
	})
}

func TestResolveByCredential(t *testing.T) {
	h := newHarness(t, func(o *gate.Options) {
		o.Credentials = map[string][]string{"u-42": {"123 tun 45"}}
	})
	ctx := context.Background()

	if _, err := h.orch.ResolveByCredential(ctx, "u-42"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound without pending plate, got %v", err)
	}

	h.enqueue(t, "gate-in", "123TUN45")
	h.clock.Advance(25 * time.Second)
	if _, err := h.orch.ResolveByCredential(ctx, "u-42"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound outside window, got %v", err)
	}

	if _, err := h.orch.Resolve(ctx, "123TUN45", access.DecisionReject, "g"); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	h.enqueue(t, "gate-in", "XX")
	h.enqueue(t, "gate-in", "123TUN45")
	entry, err := h.orch.ResolveByCredential(ctx, "u-42")
	if err != nil {
		t.Fatalf("ResolveByCredential failed: %v", err)
	}
	if entry.ResolvedBy != "credential:u-42" || entry.Action != access.ActionEnter {
		t.Fatalf("unexpected entry: %+v", entry)
	}
	if _, err := h.orch.ResolveByCredential(ctx, "nobody"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown user, got %v", err)
	}
}

func TestConcurrentResolversFirstWins(t *testing.T) {
	h := newHarness(t)
	h.enqueue(t, "gate-in", "123TUN45")

	var wins, notFound atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			decision := access.DecisionApprove
			if i%2 == 1 {
				decision = access.DecisionReject
			}
			_, err := h.orch.Resolve(context.Background(), "123TUN45", decision, "guard")
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, services.ErrNotFound):
				notFound.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()
	if wins.Load() != 1 || notFound.Load() != 15 {
		t.Fatalf("expected exactly one winner, got wins=%d notFound=%d", wins.Load(), notFound.Load())
	}
	if n := len(h.orch.Logs(0)); n != 1 {
		t.Fatalf("expected one log entry, got %d", n)
	}
}

func TestConcurrentCameraLanes(t *testing.T) {
	h := newHarness(t)
	var wg sync.WaitGroup
	for _, cam := range []string{"gate-in", "gate-out"} {
		wg.Add(1)
		go func(cam string) {
			defer wg.Done()
			for i := 0; i < 5; i++ {
				if _, err := h.orch.Ingest(context.Background(), access.Reading{CameraID: cam, Plate: cam + "-P", At: epoch}, ""); err != nil {
					t.Errorf("Ingest failed: %v", err)
				}
			}
		}(cam)
	}
	wg.Wait()
	if n := len(h.orch.Pending()); n != 2 {
		t.Fatalf("expected one pending plate per camera, got %d", n)
	}
}

func TestObserversReceiveCommittedChanges(t *testing.T) {
	h := newHarness(t)
	var barrierStates []access.BarrierState
	var pendingPlates []string
	var actions []access.Action
	h.orch.OnBarrierChange(func(s access.BarrierStatus) { barrierStates = append(barrierStates, s.State) })
	h.orch.OnPending(func(p access.PendingApproval) { pendingPlates = append(pendingPlates, p.Plate) })
	h.orch.OnLogEntry(func(e access.LogEntry) { actions = append(actions, e.Action) })

	h.enqueue(t, "gate-in", "123TUN45")
	if _, err := h.orch.Resolve(context.Background(), "123TUN45", access.DecisionApprove, "g"); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	h.clock.Advance(10 * time.Second)

	if len(pendingPlates) != 1 || pendingPlates[0] != "123TUN45" {
		t.Fatalf("unexpected pending notifications: %v", pendingPlates)
	}
	if len(barrierStates) != 2 || barrierStates[0] != access.BarrierOpen || barrierStates[1] != access.BarrierClosed {
		t.Fatalf("unexpected barrier notifications: %v", barrierStates)
	}
	if len(actions) != 2 || actions[0] != access.ActionEnter || actions[1] != access.ActionAutoClose {
		t.Fatalf("unexpected log notifications: %v", actions)
	}
}

func TestRestoreRebuildsOccupancy(t *testing.T) {
	h := newHarness(t)
	h.enqueue(t, "gate-in", "123TUN45")
	if _, err := h.orch.Resolve(context.Background(), "123TUN45", access.DecisionApprove, "g"); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	restored, err := gate.New(gate.Options{Journal: h.journal, Clock: h.clock})
	if err != nil {
		t.Fatalf("gate.New failed: %v", err)
	}
	defer restored.Close()
	if err := restored.Restore(context.Background()); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if restored.OccupancyOf("123TUN45") != access.Inside {
		t.Fatal("restore did not rebuild occupancy")
	}
	if restored.Barrier().State != access.BarrierClosed {
		t.Fatal("restored orchestrator must start with a closed barrier")
	}
}

func TestNewRejectsBadCameras(t *testing.T) {
	cases := []gate.Options{
		{Cameras: []gate.Camera{{ID: "", Direction: access.DirectionEnter}}},
		{Cameras: []gate.Camera{{ID: "a", Direction: "SIDEWAYS"}}},
		{Cameras: []gate.Camera{{ID: "a", Direction: access.DirectionEnter}, {ID: "a", Direction: access.DirectionExit}}},
		{TimeoutPolicy: "approve"},
	}
	for i, opts := range cases {
		if _, err := gate.New(opts); !errors.Is(err, services.ErrValidation) {
			t.Fatalf("case %d: expected ErrValidation, got %v", i, err)
		}
	}
}

func TestBarrierObserverEndsOnLatestState(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	entered := make(chan struct{})
	release := make(chan struct{})
	var releaseOnce sync.Once
	t.Cleanup(func() { releaseOnce.Do(func() { close(release) }) })

	var mu sync.Mutex
	var delivered []access.BarrierStatus
	var calls atomic.Int32
	h.orch.OnBarrierChange(func(s access.BarrierStatus) {
		if calls.Add(1) == 1 {
			close(entered)
			<-release
		}
		mu.Lock()
		delivered = append(delivered, s)
		mu.Unlock()
	})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if _, err := h.orch.ForceOpen(ctx, "guard-1"); err != nil {
			t.Errorf("ForceOpen failed: %v", err)
		}
	}()
	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("observer never saw the open")
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if _, err := h.orch.ForceClose(ctx, "guard-2"); err != nil {
			t.Errorf("ForceClose failed: %v", err)
		}
	}()
	deadline := time.Now().Add(2 * time.Second)
	for h.orch.Barrier().State != access.BarrierClosed {
		if time.Now().After(deadline) {
			t.Fatal("force close never committed")
		}
		time.Sleep(time.Millisecond)
	}

	releaseOnce.Do(func() { close(release) })
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(delivered) == 0 {
		t.Fatal("no barrier notifications delivered")
	}
	final := h.orch.Barrier()
	if last := delivered[len(delivered)-1]; last.State != final.State || last.Revision != final.Revision {
		t.Fatalf("observers ended on %s rev %d, barrier is %s rev %d", last.State, last.Revision, final.State, final.Revision)
	}
	for i := 1; i < len(delivered); i++ {
		if delivered[i].Revision <= delivered[i-1].Revision {
			t.Fatalf("revisions delivered out of order: %+v", delivered)
		}
	}
}

func TestStalePendingReportsOnce(t *testing.T) {
	h := newHarness(t, func(o *gate.Options) { o.PendingTimeout = 30 * time.Second })
	h.enqueue(t, "gate-in", "A1")
	h.clock.Advance(20 * time.Second)
	h.enqueue(t, "gate-out", "B2")

	if got := h.orch.StalePending(epoch.Add(10 * time.Second)); len(got) != 0 {
		t.Fatalf("nothing is past the timeout yet: %+v", got)
	}
	got := h.orch.StalePending(epoch.Add(35 * time.Second))
	if len(got) != 1 || got[0].Plate != "A1" {
		t.Fatalf("expected A1 reported, got %+v", got)
	}
	if got := h.orch.StalePending(epoch.Add(40 * time.Second)); len(got) != 0 {
		t.Fatalf("A1 must be reported once: %+v", got)
	}
	got = h.orch.StalePending(epoch.Add(time.Hour))
	if len(got) != 1 || got[0].Plate != "B2" {
		t.Fatalf("expected only B2 newly reported, got %+v", got)
	}
	if len(h.orch.Pending()) != 2 {
		t.Fatal("stale approvals must stay pending")
	}

	if _, err := h.orch.Resolve(context.Background(), "A1", access.DecisionReject, "g"); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	h.feed(t, "gate-in", "", 1)
	h.enqueue(t, "gate-in", "A1")
	got = h.orch.StalePending(h.clock.Now().Add(time.Minute))
	if len(got) != 1 || got[0].Plate != "A1" {
		t.Fatalf("re-enqueued A1 should be reported again, got %+v", got)
	}
}

func TestStalePendingSilentUnderReject(t *testing.T) {
	h := newHarness(t, func(o *gate.Options) {
		o.PendingTimeout = 30 * time.Second
		o.TimeoutPolicy = gate.PolicyReject
	})
	h.enqueue(t, "gate-in", "A1")
	if got := h.orch.StalePending(epoch.Add(time.Hour)); len(got) != 0 {
		t.Fatalf("reject policy expires instead of reporting: %+v", got)
	}
}

func TestLogCountTracksCommittedEntries(t *testing.T) {
	h := newHarness(t)
	if n := h.orch.LogCount(); n != 0 {
		t.Fatalf("expected empty log, got %d", n)
	}
	if _, err := h.orch.ForceOpen(context.Background(), "g"); err != nil {
		t.Fatalf("ForceOpen failed: %v", err)
	}
	h.journal.setFail(errors.New("disk full"))
	if _, err := h.orch.ForceClose(context.Background(), "g"); err == nil {
		t.Fatal("expected ForceClose to fail")
	}
	if n := h.orch.LogCount(); n != 1 || n != len(h.orch.Logs(0)) {
		t.Fatalf("expected one committed entry, got %d", n)
	}
}
