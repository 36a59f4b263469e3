package actuator

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pilebones/go-udev/netlink"

	"gatewarden/internal/logging"
)

// HotplugMonitor listens for udev netlink events on the tty subsystem and
// tells the relay when its device disappears or comes back.
type HotplugMonitor struct {
	device   string
	resolved string
	logger   *slog.Logger
	onAdd    func()
	onRemove func()

	mu      sync.Mutex
	conn    *netlink.UEventConn
	quit    chan struct{}
	running bool
}

// NewHotplugMonitor creates a monitor for device. Stable symlinks such as
// /dev/serial/by-id/... are resolved so kernel events naming /dev/ttyUSB0
// still match. It returns nil when device is empty.
func NewHotplugMonitor(device string, logger *slog.Logger, onAdd, onRemove func()) *HotplugMonitor {
	device = strings.TrimSpace(device)
	if device == "" {
		return nil
	}
	m := &HotplugMonitor{
		device:   device,
		logger:   logging.NewComponentLogger(logger, "relay-hotplug"),
		onAdd:    onAdd,
		onRemove: onRemove,
	}
	m.refreshResolved()
	return m
}

// ForRelay wires a monitor to a relay's Reconnect and Disconnect.
func ForRelay(device string, logger *slog.Logger, relay *Relay) *HotplugMonitor {
	if relay == nil {
		return nil
	}
	return NewHotplugMonitor(device, logger, relay.Reconnect, relay.Disconnect)
}

func (m *HotplugMonitor) refreshResolved() {
	if target, err := filepath.EvalSymlinks(m.device); err == nil {
		m.mu.Lock()
		m.resolved = target
		m.mu.Unlock()
	}
}

// Start begins listening for udev netlink events. Failing to open the netlink
// socket is logged and not returned; the relay still retries on its interval.
func (m *HotplugMonitor) Start(ctx context.Context) error {
	if m == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return nil
	}

	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		m.logger.Warn("failed to connect to netlink socket; relay reconnects will rely on retries",
			logging.Error(err),
			logging.String(logging.FieldEventType, "netlink_connect_failed"),
			logging.String(logging.FieldErrorHint, "ensure the daemon has permission to access netlink sockets"),
			logging.String(logging.FieldImpact, "relay replug is noticed only on the next retry"),
		)
		return nil
	}

	m.conn = conn
	m.quit = make(chan struct{})
	m.running = true

	quit := m.quit
	go m.monitorLoop(ctx, conn, quit)

	m.logger.Info("relay hotplug monitor started",
		logging.String(logging.FieldEventType, "hotplug_monitor_started"),
		logging.String("device", m.device),
	)
	return nil
}

// Stop shuts down the monitor.
func (m *HotplugMonitor) Stop() {
	if m == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}
	if m.quit != nil {
		close(m.quit)
		m.quit = nil
	}
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	m.running = false

	m.logger.Info("relay hotplug monitor stopped",
		logging.String(logging.FieldEventType, "hotplug_monitor_stopped"),
	)
}

// Running reports whether the monitor is active.
func (m *HotplugMonitor) Running() bool {
	if m == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *HotplugMonitor) monitorLoop(ctx context.Context, conn *netlink.UEventConn, quit <-chan struct{}) {
	queue := make(chan netlink.UEvent)
	errs := make(chan error)
	monitorQuit := conn.Monitor(queue, errs, m.buildMatcher())

	for {
		select {
		case <-ctx.Done():
			close(monitorQuit)
			return
		case <-quit:
			close(monitorQuit)
			return
		case uevent := <-queue:
			m.handleEvent(uevent)
		case err := <-errs:
			m.logger.Warn("netlink monitor error",
				logging.Error(err),
				logging.String(logging.FieldEventType, "netlink_monitor_error"),
				logging.String(logging.FieldErrorHint, "check kernel netlink subsystem"),
				logging.String(logging.FieldImpact, "relay replug detection may be affected"),
			)
		}
	}
}

// buildMatcher matches SUBSYSTEM=tty with ACTION=add|remove.
func (m *HotplugMonitor) buildMatcher() netlink.Matcher {
	action := "add|remove"
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &action,
		Env: map[string]string{
			"SUBSYSTEM": "tty",
		},
	})
	return rules
}

func (m *HotplugMonitor) handleEvent(uevent netlink.UEvent) {
	devname := extractDeviceName(uevent)
	if devname == "" {
		m.logger.Debug("ignoring event without device name",
			logging.String("action", string(uevent.Action)),
			logging.String("kobj", uevent.KObj),
		)
		return
	}

	if uevent.Action == netlink.ADD {
		m.refreshResolved()
	}
	if !m.matches(devname) {
		m.logger.Debug("ignoring event for other tty",
			logging.String("device", devname),
			logging.String("configured_device", m.device),
		)
		return
	}

	switch uevent.Action {
	case netlink.ADD:
		m.logger.Info("barrier relay connected",
			logging.String(logging.FieldEventType, "relay_connected"),
			logging.String("device", devname),
		)
		if m.onAdd != nil {
			m.onAdd()
		}
	case netlink.REMOVE:
		logging.WarnWithContext(m.logger, "barrier relay disconnected", "relay_disconnected",
			logging.String("device", devname),
			logging.String(logging.FieldErrorHint, "reconnect the relay USB cable"),
			logging.String(logging.FieldImpact, "barrier motor does not follow gate state"),
		)
		if m.onRemove != nil {
			m.onRemove()
		}
	}
}

func (m *HotplugMonitor) matches(devname string) bool {
	m.mu.Lock()
	resolved := m.resolved
	m.mu.Unlock()
	return devname == m.device || (resolved != "" && devname == resolved)
}

// extractDeviceName gets the device path from a uevent.
func extractDeviceName(uevent netlink.UEvent) string {
	if devname := uevent.Env["DEVNAME"]; devname != "" {
		if !strings.HasPrefix(devname, "/") {
			devname = "/dev/" + devname
		}
		return devname
	}

	devpath := uevent.Env["DEVPATH"]
	if devpath == "" {
		return ""
	}
	parts := strings.Split(devpath, "/")
	return "/dev/" + parts[len(parts)-1]
}
