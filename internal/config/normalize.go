package config

import (
	"fmt"
	"os"
	"strings"

	"gatewarden/internal/plate"
)

func (c *Config) normalize() error {
	var err error
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("state_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.APIToken == "" {
		c.Paths.APIToken = strings.TrimSpace(os.Getenv(APITokenEnv))
	}

	c.Pending.TimeoutPolicy = strings.ToLower(strings.TrimSpace(c.Pending.TimeoutPolicy))
	if c.Pending.TimeoutPolicy == "" {
		c.Pending.TimeoutPolicy = defaultTimeoutPolicy
	}
	if c.Pending.SweepIntervalMS <= 0 {
		c.Pending.SweepIntervalMS = defaultSweepIntervalMS
	}

	for i := range c.Cameras {
		c.Cameras[i].ID = strings.TrimSpace(c.Cameras[i].ID)
		c.Cameras[i].Direction = strings.ToUpper(strings.TrimSpace(c.Cameras[i].Direction))
		c.Cameras[i].URL = strings.TrimSpace(c.Cameras[i].URL)
	}

	c.Detector.BaseURL = strings.TrimRight(strings.TrimSpace(c.Detector.BaseURL), "/")
	if c.Detector.BaseURL == "" {
		c.Detector.BaseURL = defaultDetectorBaseURL
	}
	if c.Detector.PollIntervalMS <= 0 {
		c.Detector.PollIntervalMS = defaultPollIntervalMS
	}
	if c.Detector.RequestTimeoutMS <= 0 {
		c.Detector.RequestTimeoutMS = defaultRequestTimeoutMS
	}
	if c.Detector.MaxReadingAgeSeconds < 0 {
		c.Detector.MaxReadingAgeSeconds = 0
	}

	if c.Actuator.Device, err = expandPath(strings.TrimSpace(c.Actuator.Device)); err != nil {
		return fmt.Errorf("actuator.device: %w", err)
	}
	c.Actuator.Parity = strings.ToLower(strings.TrimSpace(c.Actuator.Parity))
	if c.Actuator.Parity == "" {
		c.Actuator.Parity = defaultParity
	}
	if c.Actuator.RetryIntervalMS <= 0 {
		c.Actuator.RetryIntervalMS = defaultRetryIntervalMS
	}

	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyTimeout
	}

	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}

	for i := range c.Credentials {
		c.Credentials[i].UserID = strings.TrimSpace(c.Credentials[i].UserID)
		plates := make([]string, 0, len(c.Credentials[i].Plates))
		for _, raw := range c.Credentials[i].Plates {
			if normalized := plate.Normalize(raw); normalized != "" {
				plates = append(plates, normalized)
			}
		}
		c.Credentials[i].Plates = plates
	}
	return nil
}
