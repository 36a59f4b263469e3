// Package stabilizer debounces per-frame plate readings from one camera into
// stable detections.
//
// A plate must be read in Threshold consecutive samples before it is trusted.
// A single disagreeing or empty sample discards the run. Each camera gets its
// own Stabilizer and the camera's lane is the only goroutine that touches it.
package stabilizer

import (
	"time"

	"gatewarden/internal/access"
	"gatewarden/internal/plate"
)

// DefaultThreshold is the number of consecutive matching readings required.
const DefaultThreshold = 5

// State is the observable stabilization state of one camera.
type State struct {
	LastPlate string `json:"last_plate,omitempty"`
	Count     int    `json:"count"`
	Threshold int    `json:"threshold"`
	Emitted   bool   `json:"emitted"`
}

// Stabilizer tracks one camera's current stability episode.
type Stabilizer struct {
	cameraID  string
	direction access.Direction
	threshold int

	lastPlate string
	count     int
	emitted   bool
}

// New builds a stabilizer for cameraID. A threshold below 1 falls back to
// DefaultThreshold.
func New(cameraID string, direction access.Direction, threshold int) *Stabilizer {
	if threshold < 1 {
		threshold = DefaultThreshold
	}
	return &Stabilizer{cameraID: cameraID, direction: direction, threshold: threshold}
}

// CameraID returns the camera this stabilizer belongs to.
func (s *Stabilizer) CameraID() string { return s.cameraID }

// Direction returns the camera's configured direction.
func (s *Stabilizer) Direction() access.Direction { return s.direction }

// Observe feeds one reading. It returns a detection exactly when the current
// plate's run first reaches the threshold.
func (s *Stabilizer) Observe(raw string, at time.Time) (access.StableDetection, bool) {
	text := plate.Normalize(raw)
	if text == "" {
		s.reset()
		return access.StableDetection{}, false
	}

	if text == s.lastPlate {
		s.count++
	} else {
		s.lastPlate = text
		s.count = 1
		s.emitted = false
	}

	if s.emitted || s.count < s.threshold {
		return access.StableDetection{}, false
	}
	s.emitted = true
	return access.StableDetection{
		Plate:      s.lastPlate,
		Direction:  s.direction,
		CameraID:   s.cameraID,
		DetectedAt: at,
	}, true
}

// Reset discards the current episode.
func (s *Stabilizer) Reset() { s.reset() }

// State returns a copy of the current state.
func (s *Stabilizer) State() State {
	return State{
		LastPlate: s.lastPlate,
		Count:     s.count,
		Threshold: s.threshold,
		Emitted:   s.emitted,
	}
}

func (s *Stabilizer) reset() {
	s.lastPlate = ""
	s.count = 0
	s.emitted = false
}
