// Package journal provides SQLite-backed recording of scan runtime activity.
//
// The journal is an append-only log with:
//   - Runs: one row per Start..Stop cycle, keyed by run ID
//   - Changes: every variable write the engine reports, program or external
//
// The engine itself keeps no persistent state; the journal is an optional
// observer-side record, attached with engine.WithRecorder.
//
// # Ordering
//
// Changes carry an INTEGER seq assigned by SQLite in insertion order.
// Queries order by seq, so a run's changes read back in the order the
// engine reported them.
//
// # Database Configuration
//
//   - WAL mode: readers (the trace command) do not block the writer
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON: changes must reference a run
package journal
