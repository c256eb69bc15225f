package config

// DefaultConfig returns a Config populated with all default values.
func DefaultConfig() *Config {
	return &Config{
		Tracking: TrackingConfig{
			TickIntervalMs:   1000,
			MinRecordSeconds: 10,
			UntrackedSchemes: DefaultUntrackedSchemes(),
		},
		Retention: RetentionConfig{
			Days:                 60,
			SweepIntervalMinutes: 60,
		},
		Capture: CaptureConfig{
			DenylistDomains: []string{},
			DenylistRegex:   []string{},
		},
		Storage: StorageConfig{
			Path:              "~/.config/dwell",
			SQLiteFile:        "dwell.db",
			SQLiteJournalMode: "wal",
		},
		Daemon: DaemonConfig{
			Host:            "127.0.0.1",
			Port:            8733,
			AuthToken:       "",
			MaxMessageBytes: 65536,
		},
		Logging: LoggingConfig{
			Level:  "info",
			File:   "",
			Format: "text",
		},
	}
}

// DefaultUntrackedSchemes returns URL schemes of browser-internal pages.
// Time on these pages is never accumulated.
func DefaultUntrackedSchemes() []string {
	return []string{
		// Chromium family
		"chrome",
		"chrome-extension",
		"chrome-search",
		"chrome-untrusted",
		"edge",
		"brave",
		"opera",
		"vivaldi",
		"devtools",

		// Firefox
		"about",
		"moz-extension",
		"resource",

		// Safari
		"safari-web-extension",

		// Generic
		"view-source",
		"file",
		"data",
		"blob",
		"javascript",
	}
}
