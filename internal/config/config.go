// Package config loads sink wiring configuration from YAML and validates it
// against a CUE schema before any connection is opened.
package config

import (
	"fmt"
	"log/slog"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/logvault/logvault/internal/conn"
)

// schema constrains a decoded Config. Shared and file modes need a store
// identifier; isolated mode ignores it.
const schema = `
#Config: {
	target:     string & !=""
	mode:       "isolated" | "shared" | "file"
	store:      string
	batch_size: int & >0
	log_level:  "debug" | "info" | "warn" | "error"

	if mode != "isolated" {
		store: !=""
	}
}
`

// Config is the sink wiring configuration.
type Config struct {
	// Target is the sink name used in diagnostics.
	Target string `yaml:"target" json:"target"`
	// Mode is the connection mode: isolated, shared, or file.
	Mode string `yaml:"mode" json:"mode"`
	// Store is the shared store identifier or database file path.
	Store string `yaml:"store" json:"store"`
	// BatchSize is the writer's pending-row high-water mark.
	BatchSize int `yaml:"batch_size" json:"batch_size"`
	// LogLevel is the diagnostic log level.
	LogLevel string `yaml:"log_level" json:"log_level"`
}

// Default returns the configuration used when no file is given: an isolated
// in-memory store with the stock batch size.
func Default() Config {
	return Config{
		Target:    "logvault",
		Mode:      "isolated",
		BatchSize: 64,
		LogLevel:  "info",
	}
}

// Load reads a YAML config file, fills defaults, and validates.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML config bytes, fills defaults, and validates.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration against the CUE schema.
func (c Config) Validate() error {
	ctx := cuecontext.New()

	sv := ctx.CompileString(schema)
	if err := sv.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}

	def := sv.LookupPath(cue.ParsePath("#Config"))
	unified := def.Unify(ctx.Encode(c))
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// ConnMode returns the parsed connection mode.
func (c Config) ConnMode() (conn.Mode, error) {
	return conn.ParseMode(c.Mode)
}

// SlogLevel maps the configured log level onto slog.
func (c Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
