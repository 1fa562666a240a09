package journal

import (
	"context"
	"fmt"

	"github.com/roach88/scanrt/internal/engine"
)

// WriteRun inserts a run record. A duplicate run ID is ignored.
func (s *Store) WriteRun(ctx context.Context, run engine.RunInfo) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, started_at, tick_interval_ns, variables)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		run.ID,
		run.StartedAt.UnixNano(),
		run.TickIntervalNS,
		run.Variables,
	)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}
	return nil
}

// EndRun records the stop time and final tick count of a run.
func (s *Store) EndRun(ctx context.Context, runID string, stoppedAt int64, ticks uint64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE runs SET stopped_at = ?, ticks = ? WHERE id = ?
	`, stoppedAt, int64(ticks), runID)
	if err != nil {
		return fmt.Errorf("end run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("end run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("end run: unknown run %q", runID)
	}
	return nil
}

// WriteChange appends a change record. The run must exist.
func (s *Store) WriteChange(ctx context.Context, c engine.Change) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO changes
		(run_id, tick, var_index, var_name, value, forced, source, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		c.RunID,
		int64(c.Tick),
		c.Index,
		c.Name,
		c.Value,
		boolToInt(c.Forced),
		string(c.Source),
		c.At.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("write change: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
