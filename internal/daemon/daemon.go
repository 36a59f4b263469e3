package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"gatewarden/internal/access"
	"gatewarden/internal/actuator"
	"gatewarden/internal/config"
	"gatewarden/internal/detector"
	"gatewarden/internal/gate"
	"gatewarden/internal/journal"
	"gatewarden/internal/logging"
	"gatewarden/internal/notifications"
	"gatewarden/internal/preflight"
)

// Deps are the collaborators the daemon coordinates. Gate and Journal are
// required; the rest are optional.
type Deps struct {
	Gate     *gate.Orchestrator
	Journal  *journal.Journal
	Relay    *actuator.Relay
	Hotplug  *actuator.HotplugMonitor
	Poller   *detector.Poller
	Notifier notifications.Service
	LogHub   *logging.StreamHub
	LogPath  string
}

// Daemon coordinates the background services and enforces single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	gate     *gate.Orchestrator
	journal  *journal.Journal
	relay    *actuator.Relay
	hotplug  *actuator.HotplugMonitor
	poller   *detector.Poller
	notifier notifications.Service
	logHub   *logging.StreamHub
	logPath  string
	now      func() time.Time

	lockPath string
	lock     *flock.Flock
	api      *apiServer

	mu        sync.Mutex
	checks    []preflight.Result
	startedAt time.Time

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Status represents daemon runtime information.
type Status struct {
	Running       bool
	PID           int
	StartedAt     time.Time
	JournalPath   string
	SchemaVersion uint
	LockFilePath  string
	LogPath       string
	Barrier       access.BarrierStatus
	Pending       int
	Inside        int
	LogEntries    int
	Lanes         []gate.LaneStatus
	Relay         *actuator.Status
	Checks        []preflight.Result
}

// New constructs a daemon and subscribes the relay and notifier to gate events.
func New(cfg *config.Config, logger *slog.Logger, deps Deps) (*Daemon, error) {
	if cfg == nil || deps.Gate == nil || deps.Journal == nil {
		return nil, errors.New("daemon requires config, gate and journal")
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = notifications.NewService(nil)
	}
	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		gate:     deps.Gate,
		journal:  deps.Journal,
		relay:    deps.Relay,
		hotplug:  deps.Hotplug,
		poller:   deps.Poller,
		notifier: notifier,
		logHub:   deps.LogHub,
		logPath:  deps.LogPath,
		now:      time.Now,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}

	if d.relay != nil {
		d.gate.OnBarrierChange(d.relay.Apply)
	}
	d.gate.OnBarrierChange(func(status access.BarrierStatus) {
		d.notify("barrier", func(ctx context.Context) error { return d.notifier.NotifyBarrierChanged(ctx, status) })
	})
	d.gate.OnPending(func(p access.PendingApproval) {
		d.notify("pending", func(ctx context.Context) error { return d.notifier.NotifyPendingApproval(ctx, p) })
	})
	return d, nil
}

// notify runs a notification off the caller's goroutine.
func (d *Daemon) notify(kind string, send func(context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), d.cfg.NotificationTimeout()+time.Second)
		defer cancel()
		if err := send(ctx); err != nil {
			d.logger.Warn("notification failed",
				logging.Error(err),
				logging.String("notification", kind),
				logging.String(logging.FieldEventType, "notification_failed"),
				logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
				logging.String(logging.FieldImpact, "phone alert not delivered"),
			)
		}
	}()
}

// reportError logs err and pushes an error notification.
func (d *Daemon) reportError(err error, label string) {
	d.notify("error", func(ctx context.Context) error { return d.notifier.NotifyError(ctx, err, label) })
}

// Start acquires the daemon lock, starts the API server and launches the
// background loops.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}
	if err := os.MkdirAll(d.cfg.Paths.StateDir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another gatewarden daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	api, err := newAPIServer(d.cfg, d, d.logger)
	if err != nil {
		cancel()
		_ = d.lock.Unlock()
		return err
	}
	if err := api.start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return err
	}
	d.api = api
	d.cancel = cancel

	checks := preflight.RunAll(runCtx, d.cfg)
	for _, failed := range preflight.Failed(checks) {
		logging.WarnWithContext(d.logger, "preflight check failed", "preflight_failed",
			logging.String("check", failed.Name),
			logging.String("detail", failed.Detail),
			logging.String(logging.FieldImpact, "gate runs without this integration until it recovers"),
		)
	}
	d.mu.Lock()
	d.checks = checks
	d.startedAt = d.now()
	d.mu.Unlock()

	if d.relay != nil {
		d.relay.Apply(d.gate.Barrier())
		d.goRun(func() { d.relay.Run(runCtx) })
	}
	if d.hotplug != nil {
		if err := d.hotplug.Start(runCtx); err != nil {
			d.logger.Warn("relay hotplug monitor failed to start", logging.Error(err))
		}
	}
	if d.poller != nil {
		d.goRun(func() { d.poller.Run(runCtx) })
	}
	d.goRun(func() { d.sweep(runCtx) })

	d.running.Store(true)
	d.logger.Info("gatewarden daemon started",
		logging.String("lock", d.lockPath),
		logging.String("journal", d.journal.Path()),
		logging.Int("cameras", len(d.gate.Cameras())),
		logging.String(logging.FieldEventType, "daemon_started"),
	)
	return nil
}

func (d *Daemon) goRun(fn func()) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		fn()
	}()
}

// sweep applies the pending timeout policy on the configured interval.
// Rejected approvals are logged as expired; under policy stay, approvals past
// the timeout are reported once and left pending.
func (d *Daemon) sweep(ctx context.Context) {
	if d.cfg.PendingTimeout() <= 0 {
		return
	}
	ticker := time.NewTicker(d.cfg.SweepInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			entries, err := d.gate.ExpirePending(ctx, d.now())
			if err != nil {
				logging.ErrorWithContext(d.logger, "pending expiry failed", "pending_expiry_failed",
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "check journal database access"),
				)
				d.reportError(err, "pending expiry")
				continue
			}
			for _, entry := range entries {
				d.logger.Info("pending approval expired",
					logging.String(logging.FieldPlate, entry.Plate),
					logging.String(logging.FieldEventType, "pending_expired"),
				)
			}
			for _, item := range d.gate.StalePending(d.now()) {
				logging.WarnWithContext(d.logger, "pending approval past timeout", "pending_stale",
					logging.String(logging.FieldPlate, item.Plate),
					logging.String("camera", item.CameraID),
					logging.Any("detected_at", item.DetectedAt),
					logging.String(logging.FieldImpact, "vehicle still waiting at the gate"),
					logging.String(logging.FieldErrorHint, "approve or reject the plate"),
				)
			}
		}
	}
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.api.stop()
	d.api = nil
	d.hotplug.Stop()
	d.wg.Wait()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("gatewarden daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close stops the daemon and releases the gate and journal.
func (d *Daemon) Close() error {
	d.Stop()
	d.gate.Close()
	return d.journal.Close()
}

// Gate exposes the orchestrator.
func (d *Daemon) Gate() *gate.Orchestrator { return d.gate }

// LogStream returns the in-memory daemon log hub, if any.
func (d *Daemon) LogStream() *logging.StreamHub { return d.logHub }

// LogPath returns the path to the daemon log file.
func (d *Daemon) LogPath() string { return d.logPath }

// APIAddr returns the address the API server is listening on.
func (d *Daemon) APIAddr() string {
	if d.api == nil || d.api.listener == nil {
		return ""
	}
	return d.api.listener.Addr().String()
}

// TestNotification triggers a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	if err := d.notifier.TestNotification(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	d.mu.Lock()
	checks := append([]preflight.Result(nil), d.checks...)
	startedAt := d.startedAt
	d.mu.Unlock()

	version, _, err := d.journal.SchemaVersion()
	if err != nil {
		d.logger.Debug("schema version unavailable", logging.Error(err))
	}
	inside := 0
	for _, occ := range d.gate.Occupancy() {
		if occ == access.Inside {
			inside++
		}
	}
	status := Status{
		Running:       d.running.Load(),
		PID:           os.Getpid(),
		StartedAt:     startedAt,
		JournalPath:   d.journal.Path(),
		SchemaVersion: version,
		LockFilePath:  d.lockPath,
		LogPath:       d.logPath,
		Barrier:       d.gate.Barrier(),
		Pending:       len(d.gate.Pending()),
		Inside:        inside,
		LogEntries:    d.gate.LogCount(),
		Lanes:         d.gate.Lanes(),
		Checks:        checks,
	}
	if d.relay != nil {
		relay := d.relay.Status()
		status.Relay = &relay
	}
	return status
}
