package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/scanrt/internal/engine"
)

func noEnv(string) (string, bool) { return "", false }

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

// runFor executes the run command in-process with a fixed run ID.
func runFor(t *testing.T, opts *RunOptions) (RunSummary, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd := &cobra.Command{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})

	opts.LookupEnv = noEnv
	err := runScan(opts, cmd)
	if err != nil {
		return RunSummary{}, err
	}

	var resp struct {
		Status string     `json:"status"`
		Data   RunSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	require.Equal(t, "ok", resp.Status)
	return resp.Data, nil
}

const fastConfig = `
program: conveyor
tick_interval_ns: 1000000
trap_signals: false
initial:
  Start: 1
`

func TestRun_BoundedWithJournal(t *testing.T) {
	cfgPath := writeConfig(t, "runtime.yaml", fastConfig)
	dbPath := filepath.Join(t.TempDir(), "scan.db")

	summary, err := runFor(t, &RunOptions{
		RootOptions:   &RootOptions{Format: "json"},
		ConfigOptions: ConfigOptions{ConfigPath: cfgPath},
		Journal:       dbPath,
		Duration:      100 * time.Millisecond,
		RunIDs:        engine.NewFixedGenerator("run-1"),
	})
	require.NoError(t, err)

	assert.Equal(t, "run-1", summary.RunID)
	assert.Equal(t, "conveyor", summary.Program)
	assert.Equal(t, "1ms", summary.Interval)
	assert.Equal(t, dbPath, summary.Journal)
	assert.Greater(t, summary.Ticks, uint64(10))
	assert.Zero(t, summary.Stats.ProgramPanics)
	assert.Greater(t, summary.Stats.NoObserver, uint64(0), "no observer is registered without --listen")

	_, err = os.Stat(dbPath)
	assert.NoError(t, err)
}

func TestRun_WithObserver(t *testing.T) {
	cfgPath := writeConfig(t, "runtime.yaml", fastConfig)

	summary, err := runFor(t, &RunOptions{
		RootOptions:   &RootOptions{Format: "json"},
		ConfigOptions: ConfigOptions{ConfigPath: cfgPath},
		Listen:        "127.0.0.1:0",
		Duration:      50 * time.Millisecond,
		RunIDs:        engine.NewFixedGenerator("run-obs"),
	})
	require.NoError(t, err)
	assert.Equal(t, "run-obs", summary.RunID)
	assert.Zero(t, summary.Stats.NoObserver, "the observer holds the callback")
	assert.Greater(t, summary.Stats.Notifications, uint64(0))
}

func TestRun_InitFailure(t *testing.T) {
	cfgPath := writeConfig(t, "runtime.yaml", `
tick_interval_ns: 1000000
trap_signals: false
initial:
  NoSuchVar: 1
`)
	_, err := runFor(t, &RunOptions{
		RootOptions:   &RootOptions{Format: "json"},
		ConfigOptions: ConfigOptions{ConfigPath: cfgPath},
		Duration:      10 * time.Millisecond,
	})
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "engine failed to start")
	assert.True(t, engine.IsInitializationError(err))
}

func TestRun_CommandErrors(t *testing.T) {
	tests := []struct {
		name string
		opts *RunOptions
	}{
		{"missing config", &RunOptions{ConfigOptions: ConfigOptions{ConfigPath: "/nonexistent/runtime.yaml"}}},
		{"unknown program", &RunOptions{ConfigOptions: ConfigOptions{Program: "mixer"}}},
		{"journal dir missing", &RunOptions{Journal: "/nonexistent/dir/scan.db"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.opts.RootOptions = &RootOptions{Format: "json"}
			_, err := runFor(t, tt.opts)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
		})
	}
}

func TestRun_EnvOverride(t *testing.T) {
	opts := &ConfigOptions{LookupEnv: func(k string) (string, bool) {
		if k == "SCANRT_TICK_INTERVAL_NS" {
			return "2000000", true
		}
		return "", false
	}}
	cfg, err := opts.load()
	require.NoError(t, err)
	assert.Equal(t, int64(2_000_000), cfg.TickIntervalNS)

	opts.LookupEnv = func(k string) (string, bool) {
		return "zero", k == "SCANRT_TICK_INTERVAL_NS"
	}
	_, err = opts.load()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
