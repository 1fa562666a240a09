// Package config loads the scan runtime configuration.
//
// A configuration file is either CUE (".cue") or YAML (anything else). Both
// are unified with the embedded #Config schema, which supplies defaults and
// rejects unknown fields and out-of-range values, then decoded into Config.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/roach88/scanrt/internal/engine"
)

//go:embed schema.cue
var schemaCUE string

// Config is the runtime configuration.
type Config struct {
	Program         string           `json:"program" yaml:"program"`
	TickIntervalNS  int64            `json:"tick_interval_ns" yaml:"tick_interval_ns"`
	MaxPendingTicks int              `json:"max_pending_ticks" yaml:"max_pending_ticks"`
	TrapSignals     bool             `json:"trap_signals" yaml:"trap_signals"`
	Initial         map[string]int32 `json:"initial,omitempty" yaml:"initial,omitempty"`
	Journal         string           `json:"journal,omitempty" yaml:"journal,omitempty"`
	Listen          string           `json:"listen,omitempty" yaml:"listen,omitempty"`
	Log             LogConfig        `json:"log" yaml:"log"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

// Environment variables that override file settings.
const (
	EnvTickIntervalNS = "SCANRT_TICK_INTERVAL_NS"
	EnvListen         = "SCANRT_LISTEN"
	EnvJournal        = "SCANRT_JOURNAL"
	EnvLogLevel       = "SCANRT_LOG_LEVEL"
)

// Default returns the configuration the schema yields for an empty source.
func Default() *Config {
	cfg, err := decode(cuecontext.New().Encode(map[string]any{}), "defaults")
	if err != nil {
		panic(fmt.Sprintf("config: embedded schema is invalid: %v", err))
	}
	return cfg
}

// Load reads and validates the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(path, data)
}

// Parse validates configuration source. name selects the format by its
// extension and is used in error positions.
func Parse(name string, data []byte) (*Config, error) {
	ctx := cuecontext.New()

	var src cue.Value
	if filepath.Ext(name) == ".cue" {
		src = ctx.CompileBytes(data, cue.Filename(name))
	} else {
		var raw map[string]any
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		if raw == nil {
			raw = map[string]any{}
		}
		src = ctx.Encode(raw)
	}
	if err := src.Err(); err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}

	return decode(src, name)
}

func decode(src cue.Value, name string) (*Config, error) {
	schema := src.Context().CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}

	v := schema.LookupPath(cue.ParsePath("#Config")).Unify(src)
	if err := v.Validate(); err != nil {
		return nil, fmt.Errorf("validate %s: %w", name, err)
	}

	var cfg Config
	if err := v.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	return &cfg, nil
}

// ApplyEnv overrides settings from the environment, using lookup
// (os.LookupEnv in production).
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if s, ok := lookup(EnvTickIntervalNS); ok {
		ns, err := strconv.ParseInt(s, 10, 64)
		if err != nil || ns <= 0 {
			return fmt.Errorf("%s: want a positive integer, got %q", EnvTickIntervalNS, s)
		}
		c.TickIntervalNS = ns
	}
	if s, ok := lookup(EnvListen); ok {
		c.Listen = s
	}
	if s, ok := lookup(EnvJournal); ok {
		c.Journal = s
	}
	if s, ok := lookup(EnvLogLevel); ok {
		switch s {
		case "debug", "info", "warn", "error":
			c.Log.Level = s
		default:
			return fmt.Errorf("%s: unknown level %q", EnvLogLevel, s)
		}
	}
	return nil
}

// Engine returns the engine parameters.
func (c *Config) Engine() engine.Config {
	return engine.Config{
		TickIntervalNS:  c.TickIntervalNS,
		MaxPendingTicks: c.MaxPendingTicks,
		TrapSignals:     c.TrapSignals,
		Initial:         c.Initial,
	}
}

// Marshal renders the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
