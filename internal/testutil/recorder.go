package testutil

import (
	"sync"

	"github.com/roach88/scanrt/internal/engine"
)

// MemoryRecorder is an engine.Recorder that keeps everything in memory.
type MemoryRecorder struct {
	mu      sync.Mutex
	runs    []engine.RunInfo
	ended   map[string]uint64
	changes []engine.Change
}

// NewMemoryRecorder creates an empty recorder.
func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{ended: make(map[string]uint64)}
}

// BeginRun implements engine.Recorder.
func (r *MemoryRecorder) BeginRun(run engine.RunInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, run)
}

// RecordChange implements engine.Recorder.
func (r *MemoryRecorder) RecordChange(c engine.Change) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, c)
}

// EndRun implements engine.Recorder.
func (r *MemoryRecorder) EndRun(runID string, ticks uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ended[runID] = ticks
}

// Runs returns the runs begun so far.
func (r *MemoryRecorder) Runs() []engine.RunInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]engine.RunInfo(nil), r.runs...)
}

// Changes returns the changes recorded so far.
func (r *MemoryRecorder) Changes() []engine.Change {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]engine.Change(nil), r.changes...)
}

// Ended returns the tick count recorded for runID and whether it ended.
func (r *MemoryRecorder) Ended(runID string) (uint64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticks, ok := r.ended[runID]
	return ticks, ok
}
