package config

import (
	_ "embed"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	StateDir string `toml:"state_dir"`
	LogDir   string `toml:"log_dir"`
	APIBind  string `toml:"api_bind"`
	APIToken string `toml:"api_token"`
}

// Gate contains the access-control core tunables.
type Gate struct {
	StabilityThreshold      int `toml:"stability_threshold"`
	AutoCloseDelaySeconds   int `toml:"auto_close_delay_seconds"`
	CredentialWindowSeconds int `toml:"credential_window_seconds"`
}

// Pending controls what happens to approvals nobody resolves.
type Pending struct {
	TimeoutSeconds  int    `toml:"timeout_seconds"`
	TimeoutPolicy   string `toml:"timeout_policy"`
	SweepIntervalMS int    `toml:"sweep_interval_ms"`
}

// Camera binds a camera stream to the direction it watches.
type Camera struct {
	ID        string `toml:"id"`
	Direction string `toml:"direction"`
	URL       string `toml:"url"`
}

// Detector configures polling of the plate-reading sidecar.
type Detector struct {
	Enabled              bool   `toml:"enabled"`
	BaseURL              string `toml:"base_url"`
	PollIntervalMS       int    `toml:"poll_interval_ms"`
	RequestTimeoutMS     int    `toml:"request_timeout_ms"`
	MaxReadingAgeSeconds int    `toml:"max_reading_age_seconds"`
}

// Actuator configures the serial relay board that drives the barrier motor.
type Actuator struct {
	Enabled         bool   `toml:"enabled"`
	Device          string `toml:"device"`
	BaudRate        int    `toml:"baud_rate"`
	DataBits        int    `toml:"data_bits"`
	StopBits        int    `toml:"stop_bits"`
	Parity          string `toml:"parity"`
	OpenCommand     string `toml:"open_command"`
	CloseCommand    string `toml:"close_command"`
	WatchHotplug    bool   `toml:"watch_hotplug"`
	RetryIntervalMS int    `toml:"retry_interval_ms"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Pending        bool   `toml:"pending"`
	Barrier        bool   `toml:"barrier"`
	Errors         bool   `toml:"errors"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Credential registers the plates a user may open the gate for by presenting
// their credential (QR code) at the reader.
type Credential struct {
	UserID string   `toml:"user_id"`
	Plates []string `toml:"plates"`
}

// Config encapsulates all configuration values for gatewarden.
//
// Sections:
//   - Paths: state and log directories, API bind address and token
//   - Gate: stabilization threshold, auto-close delay, credential window
//   - Pending: unresolved approval timeout policy
//   - Cameras: camera id to direction bindings
//   - Detector: plate-reading sidecar polling
//   - Actuator: serial relay board
//   - Notifications: ntfy push notifications
//   - Logging: log format, level and retention
//   - Credentials: user credential to plate bindings
type Config struct {
	Paths         Paths         `toml:"paths"`
	Gate          Gate          `toml:"gate"`
	Pending       Pending       `toml:"pending"`
	Cameras       []Camera      `toml:"cameras"`
	Detector      Detector      `toml:"detector"`
	Actuator      Actuator      `toml:"actuator"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
	Credentials   []Credential  `toml:"credentials"`
}

// DefaultConfigPath returns the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, normalizes and validates a configuration file. It
// returns the config, the resolved path, and whether the file existed.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}
	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			var strict *toml.StrictMissingError
			if errors.As(err, &strict) {
				return nil, "", false, fmt.Errorf("parse config: unknown keys:\n%s", strict.String())
			}
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("gatewarden.toml")
	if err != nil {
		return "", false, err
	}
	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	return defaultPath, false, nil
}

// EnsureDirectories creates the state and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// LockPath is the daemon single-instance lock file.
func (c *Config) LockPath() string { return filepath.Join(c.Paths.StateDir, "gatewardend.lock") }

// PIDPath is the daemon PID file.
func (c *Config) PIDPath() string { return filepath.Join(c.Paths.StateDir, "gatewardend.pid") }

// AutoCloseDelay returns the barrier auto-close delay; zero disables it.
func (c *Config) AutoCloseDelay() time.Duration {
	return time.Duration(c.Gate.AutoCloseDelaySeconds) * time.Second
}

// CredentialWindow bounds how old a detection may be for credential approval.
func (c *Config) CredentialWindow() time.Duration {
	return time.Duration(c.Gate.CredentialWindowSeconds) * time.Second
}

// PendingTimeout returns the pending approval timeout; zero disables expiry.
func (c *Config) PendingTimeout() time.Duration {
	return time.Duration(c.Pending.TimeoutSeconds) * time.Second
}

// SweepInterval is how often expired approvals are checked.
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.Pending.SweepIntervalMS) * time.Millisecond
}

// PollInterval is the per-camera detector polling cadence.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Detector.PollIntervalMS) * time.Millisecond
}

// DetectorTimeout bounds a single sidecar request.
func (c *Config) DetectorTimeout() time.Duration {
	return time.Duration(c.Detector.RequestTimeoutMS) * time.Millisecond
}

// MaxReadingAge is the oldest sidecar result still treated as current.
func (c *Config) MaxReadingAge() time.Duration {
	return time.Duration(c.Detector.MaxReadingAgeSeconds) * time.Second
}

// ActuatorRetryInterval is the delay between serial reconnect attempts.
func (c *Config) ActuatorRetryInterval() time.Duration {
	return time.Duration(c.Actuator.RetryIntervalMS) * time.Millisecond
}

// NotificationTimeout bounds a single ntfy request.
func (c *Config) NotificationTimeout() time.Duration {
	return time.Duration(c.Notifications.RequestTimeout) * time.Second
}

// CredentialMap returns user ID to plates.
func (c *Config) CredentialMap() map[string][]string {
	out := make(map[string][]string, len(c.Credentials))
	for _, cred := range c.Credentials {
		out[cred.UserID] = append(out[cred.UserID], cred.Plates...)
	}
	return out
}

// DecodeHex parses a relay command written as hex, ignoring spaces and an
// optional 0x prefix.
func DecodeHex(value string) ([]byte, error) {
	cleaned := strings.NewReplacer(" ", "", ":", "", "-", "").Replace(strings.TrimSpace(value))
	cleaned = strings.TrimPrefix(strings.TrimPrefix(cleaned, "0x"), "0X")
	if cleaned == "" {
		return nil, errors.New("empty command")
	}
	out, err := hex.DecodeString(cleaned)
	if err != nil {
		return nil, fmt.Errorf("decode %q: %w", value, err)
	}
	return out, nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}

// ExpandPath exposes the path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes the sample configuration file to path.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
