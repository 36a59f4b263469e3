package detector

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"gatewarden/internal/access"
	"gatewarden/internal/logging"
	"gatewarden/internal/services"
)

// Camera is one stream the poller watches.
type Camera struct {
	ID        string
	Direction access.Direction
	StreamURL string
}

// Sink receives one raw reading per camera per tick.
type Sink func(ctx context.Context, reading access.Reading, direction access.Direction) error

// Source fetches the latest sidecar result for a stream.
type Source interface {
	Latest(ctx context.Context, streamURL string) (Result, error)
}

// Options configures a Poller.
type Options struct {
	Cameras  []Camera
	Interval time.Duration
	MaxAge   time.Duration
	Now      func() time.Time
	Logger   *slog.Logger
}

// Poller drives one polling loop per camera.
type Poller struct {
	source   Source
	sink     Sink
	cameras  []Camera
	interval time.Duration
	maxAge   time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

// NewPoller constructs a poller. Cameras without a stream URL are polled by
// their ID.
func NewPoller(source Source, sink Sink, opts Options) *Poller {
	interval := opts.Interval
	if interval <= 0 {
		interval = time.Second
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	cameras := make([]Camera, len(opts.Cameras))
	copy(cameras, opts.Cameras)
	for i := range cameras {
		if cameras[i].StreamURL == "" {
			cameras[i].StreamURL = cameras[i].ID
		}
	}
	return &Poller{
		source:   source,
		sink:     sink,
		cameras:  cameras,
		interval: interval,
		maxAge:   opts.MaxAge,
		now:      now,
		logger:   logging.NewComponentLogger(opts.Logger, "detector"),
	}
}

// Run polls every camera until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, cam := range p.cameras {
		wg.Add(1)
		go func(cam Camera) {
			defer wg.Done()
			p.runCamera(ctx, cam)
		}(cam)
	}
	p.logger.Info("detector polling started",
		logging.Int("cameras", len(p.cameras)),
		logging.Duration("interval", p.interval),
		logging.String(logging.FieldEventType, "detector_started"),
	)
	wg.Wait()
}

func (p *Poller) runCamera(ctx context.Context, cam Camera) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	state := &cameraHealth{}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.poll(ctx, cam, state)
		}
	}
}

// cameraHealth throttles upstream warnings to state transitions and keeps
// the freshness verdict of the result last seen.
type cameraHealth struct {
	failing  bool
	failures int

	last      Result
	lastFresh bool
}

// poll performs one fetch for cam and forwards the resulting reading.
func (p *Poller) poll(ctx context.Context, cam Camera, health *cameraHealth) {
	if health == nil {
		health = &cameraHealth{}
	}
	logger := p.logger.With(logging.String(logging.FieldCameraID, cam.ID))
	reading := access.Reading{CameraID: cam.ID, At: p.now()}

	result, err := p.source.Latest(ctx, cam.StreamURL)
	switch {
	case err != nil:
		if ctx.Err() != nil {
			return
		}
		health.failures++
		health.last = Result{}
		if !health.failing {
			health.failing = true
			logging.WarnWithContext(logger, "detector unreachable; treating as no plate", "detector_unreachable",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check that the OCR sidecar is running at detector.base_url"),
				logging.String(logging.FieldImpact, "camera produces null readings until the sidecar recovers"),
			)
		} else {
			logger.Debug("detector still unreachable", logging.Error(err), logging.Int("failures", health.failures))
		}
	default:
		if health.failing {
			logger.Info("detector reachable again",
				logging.Int("failures", health.failures),
				logging.String(logging.FieldEventType, "detector_recovered"),
			)
			health.failing = false
			health.failures = 0
		}
		if p.fresh(result, health) {
			reading.Plate = result.PlateText
		}
	}

	if err := p.sink(ctx, reading, cam.Direction); err != nil && services.ErrorKind(err) != services.KindValidation {
		logging.ErrorWithContext(logger, "reading rejected by gate", "reading_rejected",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "inspect gate logs for the failing operation"),
		)
	}
}

// fresh reports whether result counts as a plate reading. The sidecar only
// restamps a result when its text changes, so the timestamp is judged once,
// when the result is first seen, and an unchanged result keeps that verdict.
func (p *Poller) fresh(result Result, health *cameraHealth) bool {
	if result.Empty() {
		health.last = Result{}
		return false
	}
	if p.maxAge <= 0 {
		return true
	}
	if result.PlateText == health.last.PlateText && result.Timestamp.Equal(health.last.Timestamp) {
		return health.lastFresh
	}
	health.last = result
	health.lastFresh = p.now().Sub(result.Timestamp) <= p.maxAge
	return health.lastFresh
}
