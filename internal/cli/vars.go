package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// VarsOptions holds flags for the vars command.
type VarsOptions struct {
	*RootOptions
	ConfigOptions
}

// VarInfo describes one located variable.
type VarInfo struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
	Type  string `json:"type"`
	Mode  string `json:"mode"`
	Value int32  `json:"value"`
}

// NewVarsCommand creates the vars command.
func NewVarsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &VarsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "vars",
		Short: "List the located variables of a program",
		Long: `List the variable table of the configured control program: stable index,
name, IEC type, slot mode and the value the program holds before its first tick.

Examples:
  scanrt vars
  scanrt vars --program conveyor --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVars(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.ConfigPath, "config", "c", "", "configuration file (.yaml or .cue)")
	cmd.Flags().StringVar(&opts.Program, "program", "", "control program (overrides config)")

	return cmd
}

func runVars(opts *VarsOptions, cmd *cobra.Command) error {
	cfg, err := opts.load()
	if err != nil {
		return err
	}
	e, err := newEngine(cfg)
	if err != nil {
		return err
	}

	vars := make([]VarInfo, 0, e.Len())
	for i, slot := range e.Slots() {
		v, err := e.ReadInt(i)
		if err != nil {
			return WrapExitError(ExitFailure, "failed to read variable", err)
		}
		vars = append(vars, VarInfo{
			Index: i,
			Name:  slot.Name,
			Type:  slot.Type,
			Mode:  slot.Mode().String(),
			Value: v,
		})
	}

	return opts.formatter(cmd).Emit(vars, func(w io.Writer) error {
		return writeVarTable(w, vars)
	})
}

func writeVarTable(w io.Writer, vars []VarInfo) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "INDEX\tNAME\tTYPE\tMODE\tVALUE")
	for _, v := range vars {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\n", v.Index, v.Name, v.Type, v.Mode, v.Value)
	}
	return tw.Flush()
}
