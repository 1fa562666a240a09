package journal

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/scanrt/internal/engine"
	"github.com/roach88/scanrt/internal/testutil"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRecorder_WritesRunAndChanges(t *testing.T) {
	s := createTestStore(t)
	r := NewRecorder(s, WithRecorderLogger(quietLogger()))

	r.BeginRun(testRun("run-1", time.Unix(1, 0)))
	r.RecordChange(testChange("run-1", 0, 0, 1, engine.SourceProgram))
	r.RecordChange(testChange("run-1", 1, 0, 2, engine.SourceProgram))
	r.EndRun("run-1", 2)

	require.NoError(t, r.Flush(context.Background()))

	entries, err := s.ReadChanges(context.Background(), "run-1", ChangeFilter{})
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	run, ok, err := s.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(2), run.Ticks)
	assert.NotNil(t, run.StoppedAt)

	require.NoError(t, r.Close())
	assert.Zero(t, r.Failed())
}

func TestRecorder_CountsFailures(t *testing.T) {
	s := createTestStore(t)
	r := NewRecorder(s, WithRecorderLogger(quietLogger()))

	r.RecordChange(testChange("no-such-run", 0, 0, 1, engine.SourceProgram))
	require.NoError(t, r.Close())

	assert.Equal(t, uint64(1), r.Failed())
}

func TestRecorder_CloseIsIdempotentAndStopsRecording(t *testing.T) {
	s := createTestStore(t)
	r := NewRecorder(s, WithRecorderLogger(quietLogger()))

	require.NoError(t, r.Close())
	require.NoError(t, r.Close())

	r.BeginRun(testRun("late", time.Unix(1, 0)))
	r.RecordChange(testChange("late", 0, 0, 1, engine.SourceProgram))
	assert.NoError(t, r.Flush(context.Background()))

	runs, err := s.ListRuns(context.Background())
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestRecorder_WithEngine(t *testing.T) {
	s := createTestStore(t)
	r := NewRecorder(s, WithRecorderLogger(quietLogger()))
	defer r.Close()

	prog := testutil.NewFakeProgram(2, 0)
	prog.RunFunc = func(_ context.Context, w *engine.Writer, tick uint64) {
		w.Set(prog.Direct[0], int32(tick))
	}
	e, err := engine.New(prog, engine.Config{TickIntervalNS: int64(2 * time.Millisecond)},
		engine.WithLogger(quietLogger()),
		engine.WithRecorder(r),
		engine.WithRunIDGenerator(engine.NewFixedGenerator("run-A")),
	)
	require.NoError(t, err)

	require.NoError(t, e.Start(context.Background()))
	require.Eventually(t, func() bool { return prog.TickCount() >= 5 }, 2*time.Second, time.Millisecond)
	require.NoError(t, e.WriteInt(1, 77))
	require.NoError(t, e.Stop(context.Background()))
	require.NoError(t, r.Flush(context.Background()))

	run, ok, err := s.GetRun(context.Background(), "run-A")
	require.NoError(t, err)
	require.True(t, ok)
	assert.GreaterOrEqual(t, run.Ticks, uint64(5))
	assert.Equal(t, 2, run.Variables)

	program, err := s.ReadChanges(context.Background(), "run-A", ChangeFilter{Source: engine.SourceProgram})
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(program), 5)
	for i, entry := range program {
		assert.Equal(t, uint64(i), entry.Tick)
		assert.Equal(t, int32(i), entry.Value)
	}

	external, err := s.ReadChanges(context.Background(), "run-A", ChangeFilter{Source: engine.SourceExternal})
	require.NoError(t, err)
	require.Len(t, external, 1)
	assert.Equal(t, int32(77), external[0].Value)
	assert.Equal(t, "D1", external[0].Name)
}
