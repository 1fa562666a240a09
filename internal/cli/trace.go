package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/scanrt/internal/engine"
	"github.com/roach88/scanrt/internal/journal"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Journal string
	RunID   string
	Var     string
	Source  string
	Limit   int
	List    bool
}

// TraceRun is a journaled run.
type TraceRun struct {
	ID             string     `json:"id"`
	StartedAt      time.Time  `json:"started_at"`
	StoppedAt      *time.Time `json:"stopped_at,omitempty"`
	TickIntervalNS int64      `json:"tick_interval_ns"`
	Variables      int        `json:"variables"`
	Ticks          uint64     `json:"ticks"`
}

// TraceChange is one journaled change.
type TraceChange struct {
	Seq    int64     `json:"seq"`
	Tick   uint64    `json:"tick"`
	Index  int       `json:"index"`
	Name   string    `json:"name"`
	Value  int32     `json:"value"`
	Forced bool      `json:"forced"`
	Source string    `json:"source"`
	At     time.Time `json:"at"`
}

// TraceResult is the trace command's result for one run.
type TraceResult struct {
	Run     TraceRun      `json:"run"`
	Changes []TraceChange `json:"changes"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show journaled runs and variable changes",
		Long: `Read the change journal written by "scanrt run --journal".

Without --run the most recent run is shown. Changes are listed in the order
they were recorded: program writes with the tick that made them, external
writes and force/release operations with the tick they landed between.

Examples:
  scanrt trace --journal ./scan.db --list
  scanrt trace --journal ./scan.db --var MotorSpeed
  scanrt trace --journal ./scan.db --run 0192... --source external --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Journal, "journal", "", "path to SQLite journal (required)")
	_ = cmd.MarkFlagRequired("journal")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run ID (default: latest run)")
	cmd.Flags().StringVar(&opts.Var, "var", "", "filter to one variable, by index or name")
	cmd.Flags().StringVar(&opts.Source, "source", "", "filter by source (program|external|force)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of changes (0 = all)")
	cmd.Flags().BoolVar(&opts.List, "list", false, "list runs instead of changes")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := opts.formatter(cmd)

	switch engine.Source(opts.Source) {
	case "", engine.SourceProgram, engine.SourceExternal, engine.SourceForce:
	default:
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid source %q", opts.Source))
	}

	st, err := journal.Open(opts.Journal)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer st.Close()

	if opts.List {
		runs, err := st.ListRuns(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list runs", err)
		}
		result := make([]TraceRun, 0, len(runs))
		for _, r := range runs {
			result = append(result, toTraceRun(r))
		}
		return out.Emit(result, func(w io.Writer) error {
			return writeRuns(w, result)
		})
	}

	var (
		run   journal.Run
		found bool
	)
	if opts.RunID != "" {
		run, found, err = st.GetRun(ctx, opts.RunID)
	} else {
		run, found, err = st.LatestRun(ctx)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}
	if !found {
		if opts.RunID != "" {
			return NewExitError(ExitCommandError, fmt.Sprintf("run %q not found", opts.RunID))
		}
		return NewExitError(ExitCommandError, "journal has no runs")
	}

	// Numeric refs filter in SQL; names are matched here, after the query,
	// so the limit must be applied here too.
	filter := journal.ChangeFilter{Source: engine.Source(opts.Source), Limit: opts.Limit}
	byName := false
	if opts.Var != "" {
		if idx, err := strconv.Atoi(opts.Var); err == nil {
			filter.Index = &idx
		} else {
			byName = true
			filter.Limit = 0
		}
	}
	entries, err := st.ReadChanges(ctx, run.ID, filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read changes", err)
	}

	result := TraceResult{Run: toTraceRun(run), Changes: make([]TraceChange, 0, len(entries))}
	for _, e := range entries {
		if byName && !strings.EqualFold(e.Name, opts.Var) {
			continue
		}
		if opts.Limit > 0 && len(result.Changes) == opts.Limit {
			break
		}
		result.Changes = append(result.Changes, TraceChange{
			Seq:    e.Seq,
			Tick:   e.Tick,
			Index:  e.Index,
			Name:   e.Name,
			Value:  e.Value,
			Forced: e.Forced,
			Source: string(e.Source),
			At:     e.At,
		})
	}

	return out.Emit(result, func(w io.Writer) error {
		return writeTrace(w, result)
	})
}

func toTraceRun(r journal.Run) TraceRun {
	return TraceRun{
		ID:             r.ID,
		StartedAt:      r.StartedAt,
		StoppedAt:      r.StoppedAt,
		TickIntervalNS: r.TickIntervalNS,
		Variables:      r.Variables,
		Ticks:          r.Ticks,
	}
}

func writeRuns(w io.Writer, runs []TraceRun) error {
	if len(runs) == 0 {
		_, err := fmt.Fprintln(w, "No runs recorded.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSTARTED\tINTERVAL\tVARS\tTICKS\tSTATE")
	for _, r := range runs {
		state := "running"
		if r.StoppedAt != nil {
			state = "stopped"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\n", r.ID, r.StartedAt.Format(time.RFC3339),
			time.Duration(r.TickIntervalNS), r.Variables, r.Ticks, state)
	}
	return tw.Flush()
}

func writeTrace(w io.Writer, t TraceResult) error {
	fmt.Fprintf(w, "Run %s (%d ticks at %s)\n", t.Run.ID, t.Run.Ticks, time.Duration(t.Run.TickIntervalNS))
	if len(t.Changes) == 0 {
		_, err := fmt.Fprintln(w, "No changes recorded.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SEQ\tTICK\tINDEX\tNAME\tVALUE\tFORCED\tSOURCE")
	for _, c := range t.Changes {
		fmt.Fprintf(tw, "%d\t%d\t%d\t%s\t%d\t%t\t%s\n", c.Seq, c.Tick, c.Index, c.Name, c.Value, c.Forced, c.Source)
	}
	return tw.Flush()
}
