package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"gatewarden/internal/access"
	"gatewarden/internal/actuator"
	"gatewarden/internal/config"
	"gatewarden/internal/daemon"
	"gatewarden/internal/daemonctl"
	"gatewarden/internal/detector"
	"gatewarden/internal/gate"
	"gatewarden/internal/journal"
	"gatewarden/internal/logging"
	"gatewarden/internal/notifications"
)

const currentLogName = "gatewardend.log"

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Run starts the gatewarden daemon and blocks until SIGINT, SIGTERM or
// cancellation of cmdCtx.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return errors.New("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	startedAt := time.Now()
	logPath := logging.DaemonLogPath(cfg.Paths.LogDir, startedAt)
	logHub := logging.NewStreamHub(4096)

	loggerOpts := logging.OptionsFromConfig(cfg)
	if level := strings.TrimSpace(opts.LogLevel); level != "" {
		loggerOpts.Level = level
	}
	loggerOpts.FilePath = logPath
	loggerOpts.Development = opts.Development
	loggerOpts.Stream = logHub
	loggerOpts.SessionID = uuid.NewString()
	logger, err := logging.New(loggerOpts)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update %s link: %v\n", currentLogName, err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays, cfg.Paths.LogDir, logging.DaemonLogPattern, logPath)

	pidPath := cfg.PIDPath()
	if err := daemonctl.WritePID(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := journal.OpenInDir(cfg.Paths.StateDir, logger)
	if err != nil {
		logging.ErrorWithContext(logger, "open access journal", "journal_open_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check state_dir permissions and disk space"),
		)
		return err
	}

	deps, err := buildDeps(cfg, store, logger)
	if err != nil {
		_ = store.Close()
		return err
	}
	deps.LogHub = logHub
	deps.LogPath = logPath

	d, err := daemon.New(cfg, logger, deps)
	if err != nil {
		deps.Gate.Close()
		_ = store.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	logConfigSnapshot(logger, cfg)
	if err := d.Start(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check for another running gatewardend and the api_bind address"),
			logging.String(logging.FieldImpact, "gate is not serving requests"),
		)
		return err
	}

	<-signalCtx.Done()
	logger.Info("gatewarden daemon shutting down", logging.String(logging.FieldEventType, "daemon_shutdown"))
	return nil
}

// buildDeps assembles the gate and the optional integrations enabled in cfg.
func buildDeps(cfg *config.Config, store *journal.Journal, logger *slog.Logger) (daemon.Deps, error) {
	gopts, err := gate.OptionsFromConfig(cfg)
	if err != nil {
		return daemon.Deps{}, err
	}
	gopts.Journal = store
	gopts.Logger = logger
	g, err := gate.New(gopts)
	if err != nil {
		return daemon.Deps{}, fmt.Errorf("create gate: %w", err)
	}
	if err := g.Restore(context.Background()); err != nil {
		g.Close()
		return daemon.Deps{}, err
	}

	deps := daemon.Deps{
		Gate:     g,
		Journal:  store,
		Notifier: notifications.NewService(cfg),
	}

	if cfg.Actuator.Enabled {
		relay, err := newRelay(cfg, logger)
		if err != nil {
			g.Close()
			return daemon.Deps{}, err
		}
		deps.Relay = relay
		if cfg.Actuator.WatchHotplug {
			deps.Hotplug = actuator.ForRelay(cfg.Actuator.Device, logger, relay)
		}
	}

	if cfg.Detector.Enabled {
		deps.Poller = newPoller(cfg, g, logger)
	}
	return deps, nil
}

func newRelay(cfg *config.Config, logger *slog.Logger) (*actuator.Relay, error) {
	openCmd, err := config.DecodeHex(cfg.Actuator.OpenCommand)
	if err != nil {
		return nil, fmt.Errorf("actuator.open_command: %w", err)
	}
	closeCmd, err := config.DecodeHex(cfg.Actuator.CloseCommand)
	if err != nil {
		return nil, fmt.Errorf("actuator.close_command: %w", err)
	}
	return actuator.New(actuator.Options{
		Device: cfg.Actuator.Device,
		Port: actuator.PortOptions{
			BaudRate: cfg.Actuator.BaudRate,
			DataBits: cfg.Actuator.DataBits,
			StopBits: cfg.Actuator.StopBits,
			Parity:   cfg.Actuator.Parity,
		},
		OpenCommand:   openCmd,
		CloseCommand:  closeCmd,
		RetryInterval: cfg.ActuatorRetryInterval(),
		Logger:        logger,
	})
}

func newPoller(cfg *config.Config, g *gate.Orchestrator, logger *slog.Logger) *detector.Poller {
	cameras := make([]detector.Camera, 0, len(cfg.Cameras))
	for _, cam := range cfg.Cameras {
		direction, _ := access.ParseDirection(cam.Direction)
		cameras = append(cameras, detector.Camera{ID: cam.ID, Direction: direction, StreamURL: cam.URL})
	}
	sink := func(ctx context.Context, reading access.Reading, direction access.Direction) error {
		_, err := g.Ingest(ctx, reading, direction)
		return err
	}
	return detector.NewPoller(detector.NewClient(cfg.Detector.BaseURL, cfg.DetectorTimeout()), sink, detector.Options{
		Cameras:  cameras,
		Interval: cfg.PollInterval(),
		MaxAge:   cfg.MaxReadingAge(),
		Logger:   logger,
	})
}

// ensureCurrentLogPointer points gatewardend.log at the active run's file.
func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, currentLogName)
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

// CurrentLogPath returns the stable path of the active daemon log.
func CurrentLogPath(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.LogDir, currentLogName)
}

func logConfigSnapshot(logger *slog.Logger, cfg *config.Config) {
	cameras := make([]string, 0, len(cfg.Cameras))
	for _, cam := range cfg.Cameras {
		cameras = append(cameras, cam.ID+"="+cam.Direction)
	}
	logger.Info("configuration snapshot",
		logging.String(logging.FieldEventType, "config_snapshot"),
		logging.String("cameras", strings.Join(cameras, ",")),
		logging.Int("stability_threshold", cfg.Gate.StabilityThreshold),
		logging.Duration("auto_close_delay", cfg.AutoCloseDelay()),
		logging.Duration("pending_timeout", cfg.PendingTimeout()),
		logging.String("pending_timeout_policy", cfg.Pending.TimeoutPolicy),
		logging.Int("credentials", len(cfg.Credentials)),
		logging.Bool("detector_enabled", cfg.Detector.Enabled),
		logging.Bool("actuator_enabled", cfg.Actuator.Enabled),
		logging.Bool("ntfy_configured", strings.TrimSpace(cfg.Notifications.NtfyTopic) != ""),
		logging.Bool("api_token_set", cfg.Paths.APIToken != ""),
	)
}
