package config

const (
	defaultConfigPath = "~/.config/gatewarden/config.toml"
	defaultStateDir   = "~/.local/share/gatewarden"
	defaultLogDir     = "~/.local/share/gatewarden/logs"
	defaultAPIBind    = "127.0.0.1:7490"

	defaultStabilityThreshold      = 5
	defaultAutoCloseDelaySeconds   = 10
	defaultCredentialWindowSeconds = 20

	defaultTimeoutPolicy   = "stay"
	defaultSweepIntervalMS = 1000

	defaultDetectorBaseURL      = "http://127.0.0.1:8081"
	defaultPollIntervalMS       = 1000
	defaultRequestTimeoutMS     = 800
	defaultMaxReadingAgeSeconds = 5

	defaultActuatorDevice   = "/dev/ttyUSB0"
	defaultBaudRate         = 9600
	defaultDataBits         = 8
	defaultStopBits         = 1
	defaultParity           = "none"
	defaultOpenCommand      = "A0 01 01 A2"
	defaultCloseCommand     = "A0 01 00 A1"
	defaultRetryIntervalMS  = 2000
	defaultNotifyTimeout    = 10
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
	defaultLogRetentionDays = 60

	// APITokenEnv overrides paths.api_token when the file leaves it empty.
	APITokenEnv = "GATEWARDEN_API_TOKEN"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
			APIBind:  defaultAPIBind,
		},
		Gate: Gate{
			StabilityThreshold:      defaultStabilityThreshold,
			AutoCloseDelaySeconds:   defaultAutoCloseDelaySeconds,
			CredentialWindowSeconds: defaultCredentialWindowSeconds,
		},
		Pending: Pending{
			TimeoutPolicy:   defaultTimeoutPolicy,
			SweepIntervalMS: defaultSweepIntervalMS,
		},
		Detector: Detector{
			BaseURL:              defaultDetectorBaseURL,
			PollIntervalMS:       defaultPollIntervalMS,
			RequestTimeoutMS:     defaultRequestTimeoutMS,
			MaxReadingAgeSeconds: defaultMaxReadingAgeSeconds,
		},
		Actuator: Actuator{
			Device:          defaultActuatorDevice,
			BaudRate:        defaultBaudRate,
			DataBits:        defaultDataBits,
			StopBits:        defaultStopBits,
			Parity:          defaultParity,
			OpenCommand:     defaultOpenCommand,
			CloseCommand:    defaultCloseCommand,
			WatchHotplug:    true,
			RetryIntervalMS: defaultRetryIntervalMS,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			Pending:        true,
			Barrier:        false,
			Errors:         true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
