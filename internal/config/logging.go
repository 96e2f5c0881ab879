package config

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level      string          `yaml:"level"`      // debug, info, warn, error
	Format     string          `yaml:"format"`     // json, text
	Dir        string          `yaml:"dir"`        // per-category log files land here
	DebugMode  bool            `yaml:"debug_mode"` // Master toggle - false = no file logging
	MaxFiles   int             `yaml:"max_files"`  // rotation keeps at most this many files
	Categories map[string]bool `yaml:"categories"` // Per-category toggles
}

// IsJSON reports whether log lines should be written as JSON.
func (c *LoggingConfig) IsJSON() bool {
	return c.Format == "json"
}
