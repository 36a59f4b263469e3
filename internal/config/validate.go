package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"gatewarden/internal/access"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateGate(); err != nil {
		return err
	}
	if err := c.validateCameras(); err != nil {
		return err
	}
	if err := c.validateDetector(); err != nil {
		return err
	}
	if err := c.validateActuator(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return c.validateCredentials()
}

func (c *Config) validatePaths() error {
	if c.Paths.StateDir == "" {
		return errors.New("paths.state_dir must be set")
	}
	if c.Paths.LogDir == "" {
		return errors.New("paths.log_dir must be set")
	}
	if _, _, err := net.SplitHostPort(c.Paths.APIBind); err != nil {
		return fmt.Errorf("paths.api_bind %q must be host:port: %w", c.Paths.APIBind, err)
	}
	return nil
}

func (c *Config) validateGate() error {
	if c.Gate.StabilityThreshold < 1 {
		return errors.New("gate.stability_threshold must be at least 1")
	}
	if c.Gate.AutoCloseDelaySeconds < 0 {
		return errors.New("gate.auto_close_delay_seconds must be >= 0")
	}
	if c.Gate.CredentialWindowSeconds < 0 {
		return errors.New("gate.credential_window_seconds must be >= 0")
	}
	if c.Pending.TimeoutSeconds < 0 {
		return errors.New("pending.timeout_seconds must be >= 0")
	}
	switch c.Pending.TimeoutPolicy {
	case "stay", "reject":
	default:
		return fmt.Errorf("pending.timeout_policy must be stay or reject, got %q", c.Pending.TimeoutPolicy)
	}
	return nil
}

func (c *Config) validateCameras() error {
	seen := make(map[string]struct{}, len(c.Cameras))
	for i, cam := range c.Cameras {
		if cam.ID == "" {
			return fmt.Errorf("cameras[%d].id must be set", i)
		}
		if _, dup := seen[cam.ID]; dup {
			return fmt.Errorf("cameras[%d].id %q is duplicated", i, cam.ID)
		}
		seen[cam.ID] = struct{}{}
		if _, err := access.ParseDirection(cam.Direction); err != nil {
			return fmt.Errorf("cameras[%d].direction must be ENTER or EXIT, got %q", i, cam.Direction)
		}
		if cam.URL != "" {
			if _, err := url.Parse(cam.URL); err != nil {
				return fmt.Errorf("cameras[%d].url: %w", i, err)
			}
		}
	}
	return nil
}

func (c *Config) validateDetector() error {
	if !c.Detector.Enabled {
		return nil
	}
	if len(c.Cameras) == 0 {
		return errors.New("detector.enabled requires at least one [[cameras]] entry")
	}
	parsed, err := url.Parse(c.Detector.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("detector.base_url must be an absolute URL, got %q", c.Detector.BaseURL)
	}
	return nil
}

func (c *Config) validateActuator() error {
	if !c.Actuator.Enabled {
		return nil
	}
	if c.Actuator.Device == "" {
		return errors.New("actuator.device must be set when actuator.enabled is true")
	}
	if c.Actuator.BaudRate <= 0 {
		return errors.New("actuator.baud_rate must be positive")
	}
	switch c.Actuator.DataBits {
	case 5, 6, 7, 8:
	default:
		return fmt.Errorf("actuator.data_bits must be 5-8, got %d", c.Actuator.DataBits)
	}
	switch c.Actuator.StopBits {
	case 1, 2:
	default:
		return fmt.Errorf("actuator.stop_bits must be 1 or 2, got %d", c.Actuator.StopBits)
	}
	switch c.Actuator.Parity {
	case "none", "odd", "even", "mark", "space":
	default:
		return fmt.Errorf("actuator.parity must be none, odd, even, mark or space, got %q", c.Actuator.Parity)
	}
	if _, err := DecodeHex(c.Actuator.OpenCommand); err != nil {
		return fmt.Errorf("actuator.open_command: %w", err)
	}
	if _, err := DecodeHex(c.Actuator.CloseCommand); err != nil {
		return fmt.Errorf("actuator.close_command: %w", err)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	return nil
}

func (c *Config) validateCredentials() error {
	for i, cred := range c.Credentials {
		if cred.UserID == "" {
			return fmt.Errorf("credentials[%d].user_id must be set", i)
		}
		if len(cred.Plates) == 0 {
			return fmt.Errorf("credentials[%d] (%s) must list at least one plate", i, strings.TrimSpace(cred.UserID))
		}
	}
	return nil
}
