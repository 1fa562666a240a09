package journal

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/scanrt/internal/engine"
)

// createTestStore creates a new store in a temp dir for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "journal.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testRun(id string, started time.Time) engine.RunInfo {
	return engine.RunInfo{
		ID:             id,
		StartedAt:      started,
		TickIntervalNS: 10_000_000,
		Variables:      4,
	}
}

func testChange(runID string, tick uint64, index int, value int32, src engine.Source) engine.Change {
	return engine.Change{
		RunID:  runID,
		Tick:   tick,
		Index:  index,
		Name:   "D" + string(rune('0'+index)),
		Value:  value,
		Source: src,
		At:     time.Unix(0, int64(tick)*1000),
	}
}
