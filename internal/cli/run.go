package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/roach88/scanrt/internal/engine"
	"github.com/roach88/scanrt/internal/journal"
	"github.com/roach88/scanrt/internal/observer"
)

// stopTimeout bounds engine teardown once the run is over.
const stopTimeout = 5 * time.Second

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	ConfigOptions

	Journal  string
	Listen   string
	Duration time.Duration

	// RunIDs overrides the run ID generator (for testing).
	RunIDs engine.RunIDGenerator
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the scan engine",
		Long: `Start the scan engine with the configured control program.

The engine ticks at the configured interval until interrupted (SIGINT or
SIGTERM), until --for elapses, or, without --listen, until the engine is
stopped. With --journal every run and variable change is recorded to a
SQLite journal; with --listen the HTTP observer is served.

Example:
  scanrt run --config runtime.yaml
  scanrt run --journal ./scan.db --listen :8080
  scanrt run --for 2s --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.ConfigPath, "config", "c", "", "configuration file (.yaml or .cue)")
	cmd.Flags().StringVar(&opts.Program, "program", "", "control program (overrides config)")
	cmd.Flags().StringVar(&opts.Journal, "journal", "", "SQLite journal path (overrides config)")
	cmd.Flags().StringVar(&opts.Listen, "listen", "", "observer HTTP address (overrides config)")
	cmd.Flags().DurationVar(&opts.Duration, "for", 0, "stop after this long (0 runs until interrupted)")

	return cmd
}

// RunSummary is the run command's result.
type RunSummary struct {
	RunID    string       `json:"run_id"`
	Program  string       `json:"program"`
	Ticks    uint64       `json:"ticks"`
	Stats    engine.Stats `json:"stats"`
	Journal  string       `json:"journal,omitempty"`
	Dropped  uint64       `json:"journal_dropped,omitempty"`
	Interval string       `json:"interval"`
}

func runScan(opts *RunOptions, cmd *cobra.Command) error {
	cfg, err := opts.load()
	if err != nil {
		return err
	}
	if opts.Journal != "" {
		cfg.Journal = opts.Journal
	}
	if opts.Listen != "" {
		cfg.Listen = opts.Listen
	}
	if opts.Verbose {
		cfg.Log.Level = "debug"
	}
	logger := cfg.Log.NewLogger(cmd.ErrOrStderr())
	out := opts.formatter(cmd)

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	engOpts := []engine.Option{engine.WithLogger(logger)}
	if opts.RunIDs != nil {
		engOpts = append(engOpts, engine.WithRunIDGenerator(opts.RunIDs))
	}

	var rec *journal.Recorder
	if cfg.Journal != "" {
		st, err := journal.Open(cfg.Journal)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open journal", err)
		}
		rec = journal.NewRecorder(st, journal.WithRecorderLogger(logger))
		closeJournal := sync.OnceValue(func() error {
			return errors.Join(rec.Close(), st.Close())
		})
		// atexit covers exits that bypass the deferred close.
		atexit.Register(func() { _ = closeJournal() })
		defer func() {
			if err := closeJournal(); err != nil {
				logger.Error("closing journal", "error", err)
			}
		}()
		engOpts = append(engOpts, engine.WithRecorder(rec))
		logger.Debug("journal open", "path", cfg.Journal)
	}

	e, err := newEngine(cfg, engOpts...)
	if err != nil {
		return err
	}

	var serveErr chan error
	if cfg.Listen != "" {
		l, err := net.Listen("tcp", cfg.Listen)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to listen", err)
		}
		srv := observer.New(e, observer.WithLogger(logger))
		serveErr = make(chan error, 1)
		go func() { serveErr <- srv.Serve(ctx, l) }()
		out.VerboseLog("observer on http://%s", l.Addr())
	}

	if err := e.Start(ctx); err != nil {
		return WrapExitError(ExitFailure, "engine failed to start", err)
	}
	runID := e.State().RunID
	out.VerboseLog("engine started: program=%s run=%s", cfg.Program, runID)

	var deadline <-chan time.Time
	if opts.Duration > 0 {
		t := time.NewTimer(opts.Duration)
		defer t.Stop()
		deadline = t.C
	}
	// Without an observer nothing can restart a stopped engine.
	var engineDone <-chan struct{}
	if serveErr == nil {
		engineDone = e.Done()
	}

	select {
	case <-ctx.Done():
	case <-deadline:
	case <-engineDone:
	case err := <-serveErr:
		if err != nil {
			logger.Error("observer failed", "error", err)
		}
	}

	stopCtx, stopCancel := context.WithTimeout(context.WithoutCancel(ctx), stopTimeout)
	defer stopCancel()
	if err := e.Stop(stopCtx); err != nil {
		return WrapExitError(ExitFailure, "engine failed to stop cleanly", err)
	}
	cancel()
	if serveErr != nil {
		if err := <-serveErr; err != nil {
			logger.Warn("observer shutdown", "error", err)
		}
	}

	summary := RunSummary{
		RunID:    runID,
		Program:  cfg.Program,
		Ticks:    e.Stats().Ticks,
		Stats:    e.Stats(),
		Journal:  cfg.Journal,
		Interval: time.Duration(cfg.TickIntervalNS).String(),
	}
	if rec != nil {
		summary.Dropped = rec.Dropped()
	}
	return out.Emit(summary, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "run %s: program %s, %d ticks at %s\n",
			summary.RunID, summary.Program, summary.Ticks, summary.Interval)
		return err
	})
}
