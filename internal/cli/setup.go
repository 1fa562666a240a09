package cli

import (
	"os"

	"github.com/roach88/scanrt/internal/config"
	"github.com/roach88/scanrt/internal/engine"
	"github.com/roach88/scanrt/internal/program"
)

// ConfigOptions are the flags shared by commands that build an engine.
type ConfigOptions struct {
	ConfigPath string
	Program    string

	// LookupEnv overrides os.LookupEnv (for testing).
	LookupEnv func(string) (string, bool)
}

// load reads the configuration file, or the defaults when none is given,
// and applies environment and flag overrides.
func (o *ConfigOptions) load() (*config.Config, error) {
	cfg := config.Default()
	if o.ConfigPath != "" {
		var err error
		if cfg, err = config.Load(o.ConfigPath); err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to load config", err)
		}
	}

	lookup := o.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if err := cfg.ApplyEnv(lookup); err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid environment", err)
	}
	if o.Program != "" {
		cfg.Program = o.Program
	}
	return cfg, nil
}

// newEngine instantiates the configured program and wraps it in an engine.
func newEngine(cfg *config.Config, opts ...engine.Option) (*engine.Engine, error) {
	prog, err := program.New(cfg.Program)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load program", err)
	}
	e, err := engine.New(prog, cfg.Engine(), opts...)
	if err != nil {
		return nil, WrapExitError(ExitFailure, "failed to build engine", err)
	}
	return e, nil
}
