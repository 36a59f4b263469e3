package gate

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"gatewarden/internal/access"
	"gatewarden/internal/logging"
	"gatewarden/internal/services"
	"gatewarden/internal/stabilizer"
)

// lane serializes readings for one camera.
type lane struct {
	mu   sync.Mutex
	stab *stabilizer.Stabilizer
}

func newLane(id string, direction access.Direction, threshold int) *lane {
	return &lane{stab: stabilizer.New(id, direction, threshold)}
}

// LaneStatus is a snapshot of one camera lane.
type LaneStatus struct {
	CameraID  string           `json:"camera_id"`
	Direction access.Direction `json:"direction"`
	State     stabilizer.State `json:"state"`
}

// IngestResult describes what a reading produced.
type IngestResult struct {
	CameraID  string                 `json:"camera_id"`
	Detection access.StableDetection `json:"detection"`
	Emitted   bool                   `json:"emitted"`
	Enqueued  bool                   `json:"enqueued"`
}

// Ingest routes a reading to its camera lane. direction is only consulted
// when the reading names no configured camera: an unconfigured camera with a
// direction gets an ad-hoc lane, a reading without a camera goes to the first
// configured camera watching that direction. Without either, the reading is
// rejected with services.ErrUnknownCamera. For configured cameras the
// configured direction always wins.
func (o *Orchestrator) Ingest(ctx context.Context, reading access.Reading, direction access.Direction) (IngestResult, error) {
	l, err := o.laneFor(strings.TrimSpace(reading.CameraID), direction)
	if err != nil {
		return IngestResult{}, err
	}
	at := reading.At
	if at.IsZero() {
		at = o.clock.Now()
	}

	l.mu.Lock()
	det, emitted := l.stab.Observe(reading.Plate, at)
	l.mu.Unlock()

	result := IngestResult{CameraID: l.stab.CameraID(), Detection: det, Emitted: emitted}
	if !emitted {
		return result, nil
	}

	var ev events
	o.mu.Lock()
	result.Enqueued = o.queue.Enqueue(det)
	if result.Enqueued {
		item, _ := o.queue.Get(det.Plate)
		ev.pending = append(ev.pending, item)
	}
	o.mu.Unlock()

	logger := logging.WithContext(services.WithPlate(services.WithCamera(ctx, det.CameraID), det.Plate), o.logger)
	if result.Enqueued {
		logger.Info("plate awaiting approval",
			logging.String(logging.FieldEventType, "pending_enqueued"),
			logging.String("direction", string(det.Direction)),
		)
	} else {
		logger.Debug("plate already pending", logging.String("direction", string(det.Direction)))
	}
	o.dispatch(ev)
	return result, nil
}

func (o *Orchestrator) laneFor(cameraID string, direction access.Direction) (*lane, error) {
	if cameraID == "" {
		if direction == "" {
			return nil, fmt.Errorf("%w: reading has neither camera nor direction", services.ErrUnknownCamera)
		}
		for _, cam := range o.cameras {
			if cam.Direction == direction {
				cameraID = cam.ID
				break
			}
		}
		if cameraID == "" {
			cameraID = "input-" + strings.ToLower(string(direction))
		}
	}

	o.lanesMu.RLock()
	l, ok := o.lanes[cameraID]
	o.lanesMu.RUnlock()
	if ok {
		return l, nil
	}
	if direction == "" {
		return nil, fmt.Errorf("%w: %q", services.ErrUnknownCamera, cameraID)
	}
	if direction != access.DirectionEnter && direction != access.DirectionExit {
		return nil, fmt.Errorf("%w: unknown direction %q", services.ErrInvalidTransition, direction)
	}

	o.lanesMu.Lock()
	defer o.lanesMu.Unlock()
	if l, ok := o.lanes[cameraID]; ok {
		return l, nil
	}
	l = newLane(cameraID, direction, o.threshold)
	o.lanes[cameraID] = l
	o.logger.Info("ad-hoc camera lane created",
		logging.String(logging.FieldCameraID, cameraID),
		logging.String("direction", string(direction)),
	)
	return l, nil
}

// Lanes returns a snapshot of every camera lane, configured ones first.
func (o *Orchestrator) Lanes() []LaneStatus {
	o.lanesMu.RLock()
	defer o.lanesMu.RUnlock()

	seen := make(map[string]struct{}, len(o.lanes))
	out := make([]LaneStatus, 0, len(o.lanes))
	add := func(id string, l *lane) {
		l.mu.Lock()
		out = append(out, LaneStatus{CameraID: id, Direction: l.stab.Direction(), State: l.stab.State()})
		l.mu.Unlock()
		seen[id] = struct{}{}
	}
	for _, cam := range o.cameras {
		add(cam.ID, o.lanes[cam.ID])
	}
	var extra []string
	for id := range o.lanes {
		if _, ok := seen[id]; !ok {
			extra = append(extra, id)
		}
	}
	sort.Strings(extra)
	for _, id := range extra {
		add(id, o.lanes[id])
	}
	return out
}
