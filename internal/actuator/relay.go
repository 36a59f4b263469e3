package actuator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"go.bug.st/serial"

	"gatewarden/internal/access"
	"gatewarden/internal/logging"
)

// Port is the subset of serial.Port the relay needs.
type Port interface {
	io.Writer
	Close() error
}

// OpenFunc opens the relay device.
type OpenFunc func(device string, mode *serial.Mode) (Port, error)

func openSerial(device string, mode *serial.Mode) (Port, error) {
	return serial.Open(device, mode)
}

// Options configures a Relay.
type Options struct {
	Device        string
	Port          PortOptions
	OpenCommand   []byte
	CloseCommand  []byte
	RetryInterval time.Duration
	Logger        *slog.Logger
	Open          OpenFunc
}

// Status is a snapshot of the relay driver.
type Status struct {
	Device    string              `json:"device"`
	Online    bool                `json:"online"`
	Desired   access.BarrierState `json:"desired,omitempty"`
	Applied   access.BarrierState `json:"applied,omitempty"`
	LastError string              `json:"last_error,omitempty"`
	Writes    int                 `json:"writes"`
}

// Relay mirrors barrier state onto a serial relay board.
type Relay struct {
	device   string
	mode     *serial.Mode
	commands map[access.BarrierState][]byte
	retry    time.Duration
	open     OpenFunc
	logger   *slog.Logger
	wake     chan struct{}

	// port is owned by the driver goroutine.
	port Port

	mu       sync.Mutex
	revision uint64
	desired  access.BarrierState
	applied  access.BarrierState
	reset    bool
	online   bool
	lastErr  string
	writes   int
	degraded bool
}

// New validates options and returns an idle relay; call Run to start driving it.
func New(opts Options) (*Relay, error) {
	if opts.Device == "" {
		return nil, errors.New("actuator: device is required")
	}
	if len(opts.OpenCommand) == 0 || len(opts.CloseCommand) == 0 {
		return nil, errors.New("actuator: open and close commands are required")
	}
	mode, err := opts.Port.SerialMode()
	if err != nil {
		return nil, fmt.Errorf("actuator: %w", err)
	}
	retry := opts.RetryInterval
	if retry <= 0 {
		retry = 2 * time.Second
	}
	open := opts.Open
	if open == nil {
		open = openSerial
	}
	return &Relay{
		device: opts.Device,
		mode:   mode,
		commands: map[access.BarrierState][]byte{
			access.BarrierOpen:   append([]byte(nil), opts.OpenCommand...),
			access.BarrierClosed: append([]byte(nil), opts.CloseCommand...),
		},
		retry:  retry,
		open:   open,
		logger: logging.NewComponentLogger(opts.Logger, "actuator"),
		wake:   make(chan struct{}, 1),
	}, nil
}

// Apply records the barrier state the board should show. It never blocks.
// A status older than one already applied is ignored; revision zero is
// always taken.
func (r *Relay) Apply(status access.BarrierStatus) {
	r.mu.Lock()
	if status.Revision != 0 && status.Revision < r.revision {
		r.mu.Unlock()
		r.logger.Debug("stale barrier status ignored",
			logging.Uint64("revision", status.Revision),
			logging.Uint64("current", r.revision),
		)
		return
	}
	if status.Revision != 0 {
		r.revision = status.Revision
	}
	r.desired = status.State
	r.mu.Unlock()
	r.signal()
}

// Reconnect drops the current port so the next sync reopens the device and
// rewrites the desired state.
func (r *Relay) Reconnect() {
	r.mu.Lock()
	r.reset = true
	r.applied = ""
	r.mu.Unlock()
	r.signal()
}

// Disconnect marks the device gone.
func (r *Relay) Disconnect() {
	r.mu.Lock()
	r.reset = true
	r.applied = ""
	r.online = false
	r.mu.Unlock()
}

// Status returns a snapshot of the driver state.
func (r *Relay) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Status{
		Device:    r.device,
		Online:    r.online,
		Desired:   r.desired,
		Applied:   r.applied,
		LastError: r.lastErr,
		Writes:    r.writes,
	}
}

func (r *Relay) signal() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// Run drives the relay until ctx is cancelled, then closes the port.
func (r *Relay) Run(ctx context.Context) {
	ticker := time.NewTicker(r.retry)
	defer ticker.Stop()
	defer r.closePort()

	r.logger.Info("barrier relay driver started",
		logging.String("device", r.device),
		logging.Int("baud_rate", r.mode.BaudRate),
		logging.String(logging.FieldEventType, "actuator_started"),
	)
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.wake:
		case <-ticker.C:
		}
		_ = r.sync()
	}
}

// sync writes the desired state when it differs from what the board shows.
func (r *Relay) sync() error {
	r.mu.Lock()
	desired, applied, reset := r.desired, r.applied, r.reset
	r.reset = false
	r.mu.Unlock()

	if reset {
		r.closePort()
	}
	if desired == "" || desired == applied {
		return nil
	}

	if r.port == nil {
		port, err := r.open(r.device, r.mode)
		if err != nil {
			r.fail(fmt.Errorf("open %s: %w", r.device, err))
			return err
		}
		r.port = port
	}
	if _, err := r.port.Write(r.commands[desired]); err != nil {
		r.closePort()
		r.fail(fmt.Errorf("write %s command: %w", desired, err))
		return err
	}

	r.mu.Lock()
	r.applied = desired
	r.online = true
	r.lastErr = ""
	r.writes++
	recovered := r.degraded
	r.degraded = false
	r.mu.Unlock()

	if recovered {
		r.logger.Info("barrier relay recovered",
			logging.String("device", r.device),
			logging.String(logging.FieldEventType, "actuator_recovered"),
		)
	}
	r.logger.Debug("barrier relay command written", logging.String("state", string(desired)))
	return nil
}

func (r *Relay) fail(err error) {
	r.mu.Lock()
	r.online = false
	r.lastErr = err.Error()
	first := !r.degraded
	r.degraded = true
	r.mu.Unlock()

	if first {
		logging.WarnWithContext(r.logger, "barrier relay unavailable", "actuator_unavailable",
			logging.Error(err),
			logging.String("device", r.device),
			logging.String(logging.FieldErrorHint, "check the relay USB cable and that the daemon user is in the dialout group"),
			logging.String(logging.FieldImpact, "barrier motor does not follow gate state until the relay is back"),
		)
		return
	}
	r.logger.Debug("barrier relay retry failed", logging.Error(err))
}

func (r *Relay) closePort() {
	if r.port == nil {
		return
	}
	_ = r.port.Close()
	r.port = nil
}
