package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/scanrt/internal/engine"
)

func TestOpen_AppliesPragmas(t *testing.T) {
	s := createTestStore(t)

	assert.NoError(t, s.verifyPragma("journal_mode", "wal"))
	assert.NoError(t, s.verifyPragma("foreign_keys", "1"))
	assert.NoError(t, s.verifyPragma("user_version", "1"))
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")

	s1, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s1.WriteRun(context.Background(), testRun("run-1", time.Unix(1, 0))))
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	runs, err := s2.ListRuns(context.Background())
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-1", runs[0].ID)
}

func TestRuns_WriteEndAndRead(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.WriteRun(ctx, testRun("run-1", time.Unix(10, 0))))
	require.NoError(t, s.WriteRun(ctx, testRun("run-2", time.Unix(20, 0))))
	require.NoError(t, s.WriteRun(ctx, testRun("run-1", time.Unix(99, 0))), "duplicate run is ignored")

	require.NoError(t, s.EndRun(ctx, "run-1", time.Unix(15, 0).UnixNano(), 42))

	runs, err := s.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-1", runs[0].ID)
	assert.Equal(t, uint64(42), runs[0].Ticks)
	require.NotNil(t, runs[0].StoppedAt)
	assert.True(t, runs[0].StoppedAt.Equal(time.Unix(15, 0)))
	assert.Nil(t, runs[1].StoppedAt)
	assert.Equal(t, int64(10_000_000), runs[1].TickIntervalNS)

	latest, ok, err := s.LatestRun(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "run-2", latest.ID)

	_, ok, err = s.GetRun(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEndRun_UnknownRun(t *testing.T) {
	s := createTestStore(t)
	err := s.EndRun(context.Background(), "ghost", 0, 0)
	assert.Error(t, err)
}

func TestListRuns_EmptyNotNil(t *testing.T) {
	s := createTestStore(t)

	runs, err := s.ListRuns(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, runs)
	assert.Empty(t, runs)

	_, ok, err := s.LatestRun(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestChanges_WriteAndReadInOrder(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.WriteRun(ctx, testRun("run-1", time.Unix(1, 0))))

	require.NoError(t, s.WriteChange(ctx, testChange("run-1", 0, 2, 5, engine.SourceProgram)))
	forced := testChange("run-1", 1, 1, 9, engine.SourceForce)
	forced.Forced = true
	require.NoError(t, s.WriteChange(ctx, forced))
	require.NoError(t, s.WriteChange(ctx, testChange("run-1", 1, 2, 6, engine.SourceExternal)))

	entries, err := s.ReadChanges(ctx, "run-1", ChangeFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Less(t, entries[0].Seq, entries[1].Seq)
	assert.Less(t, entries[1].Seq, entries[2].Seq)

	assert.Equal(t, 2, entries[0].Index)
	assert.Equal(t, int32(5), entries[0].Value)
	assert.Equal(t, engine.SourceProgram, entries[0].Source)
	assert.Equal(t, "D2", entries[0].Name)

	assert.True(t, entries[1].Forced)
	assert.Equal(t, uint64(1), entries[1].Tick)
}

func TestChanges_Filter(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.WriteRun(ctx, testRun("run-1", time.Unix(1, 0))))

	for tick := uint64(0); tick < 5; tick++ {
		require.NoError(t, s.WriteChange(ctx, testChange("run-1", tick, 0, int32(tick), engine.SourceProgram)))
		require.NoError(t, s.WriteChange(ctx, testChange("run-1", tick, 1, int32(tick), engine.SourceExternal)))
	}

	idx := 1
	entries, err := s.ReadChanges(ctx, "run-1", ChangeFilter{Index: &idx})
	require.NoError(t, err)
	assert.Len(t, entries, 5)

	entries, err = s.ReadChanges(ctx, "run-1", ChangeFilter{Source: engine.SourceProgram, Limit: 2})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, 0, entries[0].Index)

	entries, err = s.ReadChanges(ctx, "other", ChangeFilter{})
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
}

func TestWriteChange_RequiresRun(t *testing.T) {
	s := createTestStore(t)
	err := s.WriteChange(context.Background(), testChange("ghost", 0, 0, 1, engine.SourceProgram))
	assert.Error(t, err, "foreign key must reject changes of unknown runs")
}
