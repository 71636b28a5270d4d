package config

const (
	defaultWorkingDir          = "~/.local/share/showseed"
	defaultLibraryDir          = "~/library"
	defaultLogDir              = "~/.local/share/showseed/logs"
	defaultTVDir               = "tv"
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
	defaultSeedRatio           = 1.0
	defaultListenPortMin       = 6881
	defaultListenPortMax       = 6891
	defaultStartTimeout        = 90
	defaultStartPollIntervalMS = 500
	defaultMaxConnections      = 128
	defaultUserAgent           = "showseed/dev"
	defaultPollInterval        = 5
	defaultStatusLogInterval   = 600
	defaultNotifyTimeout       = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkingDir: defaultWorkingDir,
			LibraryDir: defaultLibraryDir,
			LogDir:     defaultLogDir,
		},
		Torrent: Torrent{
			SeedRatio:           defaultSeedRatio,
			ListenPortMin:       defaultListenPortMin,
			ListenPortMax:       defaultListenPortMax,
			StartTimeout:        defaultStartTimeout,
			StartPollIntervalMS: defaultStartPollIntervalMS,
			MaxConnections:      defaultMaxConnections,
			UserAgent:           defaultUserAgent,
		},
		Workflow: Workflow{
			PollInterval:      defaultPollInterval,
			StatusLogInterval: defaultStatusLogInterval,
		},
		Library: Library{
			TVDir: defaultTVDir,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			Started:        true,
			PostProcessed:  true,
			Removed:        true,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
