package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/roach88/scanrt/internal/engine"
)

// Run is a run record as stored.
type Run struct {
	ID             string
	StartedAt      time.Time
	StoppedAt      *time.Time
	TickIntervalNS int64
	Variables      int
	Ticks          uint64
}

// Entry is a change record as stored.
type Entry struct {
	Seq int64
	engine.Change
}

// ChangeFilter narrows ReadChanges.
type ChangeFilter struct {
	// Index limits results to one variable when non-nil.
	Index *int
	// Source limits results to one source when non-empty.
	Source engine.Source
	// Limit caps the number of rows; zero means no limit.
	Limit int
}

// ListRuns returns all runs, oldest first.
// Returns an empty slice (not nil) if the journal has no runs.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, stopped_at, tick_interval_ns, variables, ticks
		FROM runs
		ORDER BY started_at ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// GetRun returns one run. Returns (Run{}, false, nil) if it does not exist.
func (s *Store) GetRun(ctx context.Context, runID string) (Run, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, started_at, stopped_at, tick_interval_ns, variables, ticks
		FROM runs
		WHERE id = ?
	`, runID)

	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return Run{}, false, nil
	}
	if err != nil {
		return Run{}, false, err
	}
	return r, true, nil
}

// LatestRun returns the most recently started run.
func (s *Store) LatestRun(ctx context.Context) (Run, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, started_at, stopped_at, tick_interval_ns, variables, ticks
		FROM runs
		ORDER BY started_at DESC, id DESC
		LIMIT 1
	`)

	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return Run{}, false, nil
	}
	if err != nil {
		return Run{}, false, err
	}
	return r, true, nil
}

// ReadChanges returns the changes of a run in seq order.
// Returns an empty slice (not nil) if there are none.
func (s *Store) ReadChanges(ctx context.Context, runID string, f ChangeFilter) ([]Entry, error) {
	query := `
		SELECT seq, run_id, tick, var_index, var_name, value, forced, source, recorded_at
		FROM changes
		WHERE run_id = ?`
	args := []any{runID}

	if f.Index != nil {
		query += " AND var_index = ?"
		args = append(args, *f.Index)
	}
	if f.Source != "" {
		query += " AND source = ?"
		args = append(args, string(f.Source))
	}
	query += " ORDER BY seq ASC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query changes: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var (
			e          Entry
			tick       int64
			forced     int
			source     string
			recordedAt int64
		)
		if err := rows.Scan(&e.Seq, &e.RunID, &tick, &e.Index, &e.Name, &e.Value, &forced, &source, &recordedAt); err != nil {
			return nil, fmt.Errorf("scan change: %w", err)
		}
		e.Tick = uint64(tick)
		e.Forced = forced != 0
		e.Source = engine.Source(source)
		e.At = time.Unix(0, recordedAt)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate changes: %w", err)
	}
	return entries, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var (
		r       Run
		started int64
		stopped sql.NullInt64
		ticks   int64
	)
	if err := row.Scan(&r.ID, &started, &stopped, &r.TickIntervalNS, &r.Variables, &ticks); err != nil {
		if err == sql.ErrNoRows {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	r.StartedAt = time.Unix(0, started)
	if stopped.Valid {
		t := time.Unix(0, stopped.Int64)
		r.StoppedAt = &t
	}
	r.Ticks = uint64(ticks)
	return r, nil
}
