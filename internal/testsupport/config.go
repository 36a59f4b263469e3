package testsupport

import (
	"path/filepath"
	"testing"

	"gatewarden/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test,
// two cameras (gate-in/ENTER, gate-out/EXIT) and the detector and actuator
// disabled. Options are applied in order.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Cameras = []config.Camera{
		{ID: "gate-in", Direction: "ENTER"},
		{ID: "gate-out", Direction: "EXIT"},
	}

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}
	if err := builder.cfg.Validate(); err != nil {
		t.Fatalf("test config invalid: %v", err)
	}
	return builder.cfg
}

// WithAPIToken sets the bearer token required by the daemon API.
func WithAPIToken(token string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.APIToken = token
	}
}

// WithThreshold overrides the stability threshold.
func WithThreshold(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Gate.StabilityThreshold = n
	}
}

// WithAutoCloseSeconds overrides the barrier auto-close delay.
func WithAutoCloseSeconds(seconds int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Gate.AutoCloseDelaySeconds = seconds
	}
}

// WithPendingTimeout enables pending expiry with the given policy.
func WithPendingTimeout(seconds int, policy string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Pending.TimeoutSeconds = seconds
		b.cfg.Pending.TimeoutPolicy = policy
	}
}

// WithCredential registers plates for a user credential.
func WithCredential(userID string, plates ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Credentials = append(b.cfg.Credentials, config.Credential{UserID: userID, Plates: plates})
	}
}

// WithDetector enables sidecar polling against baseURL.
func WithDetector(baseURL string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Detector.Enabled = true
		b.cfg.Detector.BaseURL = baseURL
		b.cfg.Detector.PollIntervalMS = 10
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
