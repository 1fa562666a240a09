package testutil

import (
	"fmt"
	"sync/atomic"
)

// SequentialRunIDs generates "<prefix>-1", "<prefix>-2", ... run IDs.
//
// Unlike engine.FixedGenerator it never runs out, which suits tests that
// cycle Start/Stop an unknown number of times.
//
// Thread-safety: safe for concurrent use.
type SequentialRunIDs struct {
	prefix string
	n      atomic.Int64
}

// NewSequentialRunIDs creates a generator. An empty prefix defaults to "run".
func NewSequentialRunIDs(prefix string) *SequentialRunIDs {
	if prefix == "" {
		prefix = "run"
	}
	return &SequentialRunIDs{prefix: prefix}
}

// Generate returns the next run ID.
func (g *SequentialRunIDs) Generate() string {
	return fmt.Sprintf("%s-%d", g.prefix, g.n.Add(1))
}
