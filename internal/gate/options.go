package gate

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gatewarden/internal/access"
	"gatewarden/internal/barrier"
	"gatewarden/internal/services"
	"gatewarden/internal/tracking"
)

// TimeoutPolicy decides what happens to pending approvals that outlive the
// configured timeout.
type TimeoutPolicy string

const (
	// PolicyStay leaves expired approvals pending until an operator acts.
	PolicyStay TimeoutPolicy = "stay"
	// PolicyReject rejects expired approvals and logs REJECTED.
	PolicyReject TimeoutPolicy = "reject"
)

// ParseTimeoutPolicy validates a policy name. Empty selects PolicyStay.
func ParseTimeoutPolicy(value string) (TimeoutPolicy, error) {
	switch TimeoutPolicy(strings.ToLower(strings.TrimSpace(value))) {
	case "", PolicyStay:
		return PolicyStay, nil
	case PolicyReject:
		return PolicyReject, nil
	default:
		return "", fmt.Errorf("%w: unknown pending timeout policy %q", services.ErrValidation, value)
	}
}

// Camera describes one configured camera lane.
type Camera struct {
	ID        string
	Direction access.Direction
}

// Options configures an Orchestrator.
type Options struct {
	Cameras            []Camera
	StabilityThreshold int
	AutoCloseDelay     time.Duration
	CredentialWindow   time.Duration
	PendingTimeout     time.Duration
	TimeoutPolicy      TimeoutPolicy
	// Credentials maps a user identifier to the plates registered to them.
	Credentials map[string][]string
	Journal     tracking.Journal
	Clock       barrier.Clock
	Logger      *slog.Logger
}
