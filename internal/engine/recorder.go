package engine

import "time"

// Source says who caused a recorded change.
type Source string

const (
	// SourceProgram marks writes made by the control program.
	SourceProgram Source = "program"
	// SourceExternal marks WriteInt calls and configured initial values.
	SourceExternal Source = "external"
	// SourceForce marks Force and Release calls.
	SourceForce Source = "force"
)

// RunInfo describes one Start..Stop cycle.
type RunInfo struct {
	ID             string
	StartedAt      time.Time
	TickIntervalNS int64
	Variables      int
}

// Change is one recorded variable write.
type Change struct {
	RunID  string
	Tick   uint64
	Index  int
	Name   string
	Value  int32
	Forced bool
	Source Source
	At     time.Time
}

// Recorder receives run boundaries and variable changes. The engine calls it
// from the scan goroutine and from access-layer callers; implementations must
// not block, since a slow recorder would stall the tick.
type Recorder interface {
	BeginRun(run RunInfo)
	RecordChange(c Change)
	EndRun(runID string, ticks uint64)
}
