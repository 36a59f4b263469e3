package gate

import (
	"fmt"

	"gatewarden/internal/access"
	"gatewarden/internal/config"
	"gatewarden/internal/services"
)

// OptionsFromConfig translates daemon configuration into orchestrator
// options. Journal, Clock and Logger are left for the caller to set.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	if cfg == nil {
		return Options{}, fmt.Errorf("%w: config is required", services.ErrValidation)
	}
	policy, err := ParseTimeoutPolicy(cfg.Pending.TimeoutPolicy)
	if err != nil {
		return Options{}, err
	}
	cameras := make([]Camera, 0, len(cfg.Cameras))
	for _, cam := range cfg.Cameras {
		direction, err := access.ParseDirection(cam.Direction)
		if err != nil {
			return Options{}, fmt.Errorf("camera %q: %w", cam.ID, err)
		}
		cameras = append(cameras, Camera{ID: cam.ID, Direction: direction})
	}
	return Options{
		Cameras:            cameras,
		StabilityThreshold: cfg.Gate.StabilityThreshold,
		AutoCloseDelay:     cfg.AutoCloseDelay(),
		CredentialWindow:   cfg.CredentialWindow(),
		PendingTimeout:     cfg.PendingTimeout(),
		TimeoutPolicy:      policy,
		Credentials:        cfg.CredentialMap(),
	}, nil
}
