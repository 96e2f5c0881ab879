// Package config loads famtree settings from YAML with environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Engine backends.
const (
	EngineNative = "native"
	EngineMangle = "mangle"
)

// Session loop modes.
const (
	LoopForever = "forever"
	LoopOnce    = "once"
)

// Output styles.
const (
	StyleTerminal = "terminal"
	StyleHTML     = "html"
	StylePlain    = "plain"
)

// DefaultPath is where the CLI looks for a config file.
const DefaultPath = ".famtree/config.yaml"

// Config holds all famtree configuration.
type Config struct {
	// Engine selects the query backend: native or mangle.
	Engine string `yaml:"engine"`

	// FactsFile optionally replaces the built-in parent facts.
	FactsFile string `yaml:"facts_file"`

	Session   SessionConfig   `yaml:"session"`
	Render    RenderConfig    `yaml:"render"`
	Logging   LoggingConfig   `yaml:"logging"`
	Evaluator EvaluatorConfig `yaml:"evaluator"`
	Mangle    MangleConfig    `yaml:"mangle"`
}

// SessionConfig configures the prompt loop.
type SessionConfig struct {
	Loop   string `yaml:"loop"` // forever, once
	Prompt string `yaml:"prompt"`
}

// RenderConfig configures output styling.
type RenderConfig struct {
	Style string `yaml:"style"` // terminal, html, plain
}

// EvaluatorConfig configures the native evaluator.
type EvaluatorConfig struct {
	MaxDepth int `yaml:"max_depth"`
}

// MangleConfig configures the Mangle backend.
type MangleConfig struct {
	FactLimit    int    `yaml:"fact_limit"`
	QueryTimeout string `yaml:"query_timeout"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Engine: EngineNative,
		Session: SessionConfig{
			Loop:   LoopForever,
			Prompt: "> ",
		},
		Render: RenderConfig{
			Style: StyleTerminal,
		},
		Logging: LoggingConfig{
			Level:     "info",
			Format:    "text",
			Dir:       ".famtree/logs",
			DebugMode: false,
			MaxFiles:  10,
		},
		Evaluator: EvaluatorConfig{
			MaxDepth: 64,
		},
		Mangle: MangleConfig{
			FactLimit:    100000,
			QueryTimeout: "30s",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Defaults still take environment overrides.
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("FAMTREE_ENGINE"); v != "" {
		c.Engine = v
	}
	if v := os.Getenv("FAMTREE_STYLE"); v != "" {
		c.Render.Style = v
	}
	if v := os.Getenv("FAMTREE_LOOP"); v != "" {
		c.Session.Loop = v
	}
	if v := os.Getenv("FAMTREE_LOG_DIR"); v != "" {
		c.Logging.Dir = v
	}
	if v := os.Getenv("FAMTREE_DEBUG"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Logging.DebugMode = b
		}
	}
}

// GetQueryTimeout returns the Mangle query timeout as a duration.
func (c *Config) GetQueryTimeout() time.Duration {
	d, err := time.ParseDuration(c.Mangle.QueryTimeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// ValidEngines lists the supported backends.
var ValidEngines = []string{EngineNative, EngineMangle}

// ValidStyles lists the supported output styles.
var ValidStyles = []string{StyleTerminal, StyleHTML, StylePlain}

// ValidLoops lists the supported loop modes.
var ValidLoops = []string{LoopForever, LoopOnce}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if !slices.Contains(ValidEngines, c.Engine) {
		return fmt.Errorf("invalid engine: %s (valid: %v)", c.Engine, ValidEngines)
	}
	if !slices.Contains(ValidStyles, c.Render.Style) {
		return fmt.Errorf("invalid render style: %s (valid: %v)", c.Render.Style, ValidStyles)
	}
	if !slices.Contains(ValidLoops, c.Session.Loop) {
		return fmt.Errorf("invalid session loop: %s (valid: %v)", c.Session.Loop, ValidLoops)
	}
	if c.Evaluator.MaxDepth < 1 {
		return fmt.Errorf("evaluator max_depth must be positive, got %d", c.Evaluator.MaxDepth)
	}
	if c.Mangle.FactLimit < 0 {
		return fmt.Errorf("mangle fact_limit must not be negative, got %d", c.Mangle.FactLimit)
	}
	if c.Logging.MaxFiles < 1 {
		return fmt.Errorf("logging max_files must be positive, got %d", c.Logging.MaxFiles)
	}
	return nil
}
