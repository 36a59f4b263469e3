package preflight

import (
	"context"

	"gatewarden/internal/config"
)

// CheckDetectorFromConfig evaluates detector status from config and connectivity.
func CheckDetectorFromConfig(ctx context.Context, cfg *config.Config) Result {
	const name = "Plate detector"

	if cfg == nil {
		return Result{Name: name, Detail: "Unknown"}
	}
	if !cfg.Detector.Enabled {
		return Result{Name: name, Passed: true, Detail: "Disabled"}
	}
	return CheckDetector(ctx, cfg.Detector.BaseURL, cfg.DetectorTimeout())
}

// CheckActuatorFromConfig evaluates relay device status from config.
func CheckActuatorFromConfig(cfg *config.Config) Result {
	const name = "Barrier relay"

	if cfg == nil {
		return Result{Name: name, Detail: "Unknown"}
	}
	if !cfg.Actuator.Enabled {
		return Result{Name: name, Passed: true, Detail: "Disabled"}
	}
	return CheckSerialDevice(name, cfg.Actuator.Device)
}
