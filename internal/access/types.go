package access

import (
	"fmt"
	"strings"
	"time"

	"gatewarden/internal/services"
)

// Direction is the travel direction a camera watches.
type Direction string

const (
	DirectionEnter Direction = "ENTER"
	DirectionExit  Direction = "EXIT"
)

// ParseDirection converts user or config input into a Direction.
func ParseDirection(value string) (Direction, error) {
	switch Direction(strings.ToUpper(strings.TrimSpace(value))) {
	case DirectionEnter:
		return DirectionEnter, nil
	case DirectionExit:
		return DirectionExit, nil
	default:
		return "", fmt.Errorf("%w: unknown direction %q", services.ErrInvalidTransition, value)
	}
}

// Decision is an operator's resolution of a pending approval.
type Decision string

const (
	DecisionApprove Decision = "APPROVE"
	DecisionReject  Decision = "REJECT"
)

// ParseDecision converts user input into a Decision. Unknown values are
// rejected here so they never reach the state machine.
func ParseDecision(value string) (Decision, error) {
	switch Decision(strings.ToUpper(strings.TrimSpace(value))) {
	case DecisionApprove:
		return DecisionApprove, nil
	case DecisionReject:
		return DecisionReject, nil
	default:
		return "", fmt.Errorf("%w: unknown decision %q", services.ErrInvalidTransition, value)
	}
}

// Action tags an access log entry.
type Action string

const (
	ActionEnter       Action = "ENTER"
	ActionExit        Action = "EXIT"
	ActionRejected    Action = "REJECTED"
	ActionForcedOpen  Action = "FORCED_OPEN"
	ActionForcedClose Action = "FORCED_CLOSE"
	ActionAutoClose   Action = "AUTO_CLOSE"
)

// ApprovalAction returns the log action recorded when a detection travelling
// in direction d is approved.
func ApprovalAction(d Direction) Action {
	if d == DirectionExit {
		return ActionExit
	}
	return ActionEnter
}

// Occupancy reports whether a plate is on the premises.
type Occupancy string

const (
	Inside  Occupancy = "INSIDE"
	Outside Occupancy = "OUTSIDE"
)

// BarrierState is the physical gate position.
type BarrierState string

const (
	BarrierClosed BarrierState = "CLOSED"
	BarrierOpen   BarrierState = "OPEN"
)

// Reading is a single sample from the plate detector for one camera. An empty
// Plate means the detector saw nothing (or failed) during that interval.
type Reading struct {
	CameraID string
	Plate    string
	At       time.Time
}

// StableDetection is emitted once per stability episode.
type StableDetection struct {
	Plate      string    `json:"plate"`
	Direction  Direction `json:"direction"`
	CameraID   string    `json:"camera_id"`
	DetectedAt time.Time `json:"detected_at"`
}

// PendingApproval is a stable detection waiting for an operator.
type PendingApproval struct {
	Plate      string    `json:"plate"`
	Direction  Direction `json:"direction"`
	CameraID   string    `json:"camera_id,omitempty"`
	DetectedAt time.Time `json:"detected_at"`
}

// BarrierStatus is a read-only snapshot of the barrier.
type BarrierStatus struct {
	State       BarrierState `json:"state"`
	OpenedFor   string       `json:"opened_for,omitempty"`
	AutoCloseAt *time.Time   `json:"auto_close_at,omitempty"`
	ChangedAt   time.Time    `json:"changed_at"`
	// Revision increases with every committed barrier command. Consumers
	// receiving statuses out of order keep the highest revision.
	Revision    uint64       `json:"revision"`
}

// LogEntry is one append-only record of the access log.
type LogEntry struct {
	ID         int64     `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	Plate      string    `json:"plate,omitempty"`
	Direction  Direction `json:"direction,omitempty"`
	Action     Action    `json:"action"`
	ResolvedBy string    `json:"resolved_by,omitempty"`
	CameraID   string    `json:"camera_id,omitempty"`
	Reason     string    `json:"reason,omitempty"`
}

// MovesOccupancy reports whether the entry changes a plate's occupancy.
func (e LogEntry) MovesOccupancy() bool {
	return e.Plate != "" && (e.Action == ActionEnter || e.Action == ActionExit)
}

// OccupancyAfter returns the occupancy implied by an ENTER or EXIT entry.
func (e LogEntry) OccupancyAfter() Occupancy {
	if e.Action == ActionEnter {
		return Inside
	}
	return Outside
}
