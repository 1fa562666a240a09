package engine

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/scanrt/internal/vartable"
)

type idleProgram struct {
	x vartable.Var
}

func (p *idleProgram) Locate() []vartable.Slot {
	return []vartable.Slot{vartable.DirectSlot("X", &p.x)}
}

func (p *idleProgram) Init(context.Context, *Writer) error { return nil }

func (p *idleProgram) Run(context.Context, *Writer, uint64) {}

func TestSignalStop_StaleRunLeavesCurrentRunAlone(t *testing.T) {
	e, err := New(&idleProgram{}, Config{TickIntervalNS: int64(time.Millisecond)},
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithRunIDGenerator(NewFixedGenerator("run-1", "run-2")))
	require.NoError(t, err)
	ctx := context.Background()
	t.Cleanup(func() { _ = e.Stop(ctx) })

	require.NoError(t, e.Start(ctx))
	require.NoError(t, e.Stop(ctx))
	require.NoError(t, e.Start(ctx))

	// A signal taken for run-1 is handled only after run-2 started.
	require.NoError(t, e.signalStop(ctx, "run-1"))
	assert.True(t, e.Running())
	assert.False(t, e.StopRequested())

	before := e.State().Ticks
	require.Eventually(t, func() bool { return e.State().Ticks > before+2 }, 2*time.Second, time.Millisecond)

	require.NoError(t, e.signalStop(ctx, "run-2"))
	assert.False(t, e.Running())
	assert.True(t, e.StopRequested())
}
