package cli

import (
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/scanrt/internal/config"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	ConfigOptions
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <config>",
		Short: "Validate a runtime configuration",
		Long: `Validate a configuration file against the runtime schema and print the
resolved configuration, defaults and environment overrides included.

The named program must be registered and every name under "initial" must be
one of its located variables.

Examples:
  scanrt validate runtime.yaml
  scanrt validate runtime.cue --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ConfigPath = args[0]
			return runValidate(opts, cmd)
		},
	}

	return cmd
}

func runValidate(opts *ValidateOptions, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	cfg, err := opts.load()
	if err != nil {
		_ = out.Error("E001", "invalid configuration", err.Error())
		return err
	}

	e, err := newEngine(cfg)
	if err != nil {
		_ = out.Error("E002", "invalid program", err.Error())
		return err
	}
	var unknown []string
	for name := range cfg.Initial {
		if _, err := e.Lookup(name); err != nil {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		slices.Sort(unknown)
		msg := fmt.Sprintf("initial values name unknown variables of %s", cfg.Program)
		_ = out.Error("E003", msg, unknown)
		return NewExitError(ExitFailure, fmt.Sprintf("%s: %v", msg, unknown))
	}

	return out.Emit(cfg, func(w io.Writer) error {
		return writeResolved(w, cfg)
	})
}

func writeResolved(w io.Writer, cfg *config.Config) error {
	data, err := cfg.Marshal()
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w, "configuration valid"); err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}
