package program

import (
	"context"
	"io"
	"log/slog"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/scanrt/internal/engine"
	"github.com/roach88/scanrt/internal/testutil"
)

func TestRegistry(t *testing.T) {
	assert.Contains(t, Names(), "conveyor")

	p, err := New("conveyor")
	require.NoError(t, err)
	assert.IsType(t, &Conveyor{}, p)

	q, err := New("conveyor")
	require.NoError(t, err)
	assert.NotSame(t, p, q, "each call yields fresh storage")

	_, err = New("mixer")
	assert.ErrorContains(t, err, "unknown program")

	assert.Error(t, Register("conveyor", func() engine.Program { return NewConveyor() }))
	assert.Error(t, Register("", nil))

	if !slices.Contains(Names(), "fake") {
		require.NoError(t, Register("fake", func() engine.Program { return testutil.NewFakeProgram(1, 0) }))
	}
	assert.Equal(t, []string{"conveyor", "fake"}, Names())
}

func TestRamp(t *testing.T) {
	assert.Equal(t, int32(10), ramp(0, 100))
	assert.Equal(t, int32(100), ramp(95, 100))
	assert.Equal(t, int32(90), ramp(100, 0))
	assert.Equal(t, int32(0), ramp(4, 0))
	assert.Equal(t, int32(50), ramp(50, 50))
}

func TestConveyor_Locate(t *testing.T) {
	c := NewConveyor()
	slots := c.Locate()
	require.Len(t, slots, 7)

	assert.Equal(t, "Sensor", slots[6].Name)
	assert.Equal(t, "indirect", slots[6].Mode().String())
	assert.Same(t, c.Sensor, slots[6].Resolve())
	assert.Same(t, &c.MotorSpeed, slots[4].Resolve())
}

func startConveyor(t *testing.T) (*Conveyor, *engine.Engine) {
	t.Helper()
	c := NewConveyor()
	e, err := engine.New(c, engine.Config{TickIntervalNS: int64(time.Millisecond)},
		engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)
	require.NoError(t, e.Start(context.Background()))
	t.Cleanup(func() { _ = e.Stop(context.Background()) })
	return c, e
}

func readVar(t *testing.T, e *engine.Engine, name string) int32 {
	t.Helper()
	i, err := e.Lookup(name)
	require.NoError(t, err)
	v, err := e.ReadInt(i)
	require.NoError(t, err)
	return v
}

func writeVar(t *testing.T, e *engine.Engine, name string, value int32) {
	t.Helper()
	i, err := e.Lookup(name)
	require.NoError(t, err)
	require.NoError(t, e.WriteInt(i, value))
}

func TestConveyor_RunsAndCounts(t *testing.T) {
	_, e := startConveyor(t)

	assert.Equal(t, int32(DefaultSetpoint), readVar(t, e, "Setpoint"))

	writeVar(t, e, "Start", 1)
	require.Eventually(t, func() bool {
		return readVar(t, e, "MotorSpeed") == DefaultSetpoint
	}, 2*time.Second, time.Millisecond)
	assert.Equal(t, int32(1), readVar(t, e, "Running"))

	require.Eventually(t, func() bool {
		return readVar(t, e, "ItemCount") >= 2
	}, 2*time.Second, time.Millisecond)

	writeVar(t, e, "Start", 0)
	writeVar(t, e, "Stop", 1)
	require.Eventually(t, func() bool {
		return readVar(t, e, "MotorSpeed") == 0
	}, 2*time.Second, time.Millisecond)
	assert.Equal(t, int32(0), readVar(t, e, "Running"))
}

func TestConveyor_ForcedSpeedNotifies(t *testing.T) {
	_, e := startConveyor(t)
	speed, err := e.Lookup("MotorSpeed")
	require.NoError(t, err)

	var mu sync.Mutex
	seen := 0
	e.RegisterCallback(func(i int) {
		if i == speed {
			mu.Lock()
			seen++
			mu.Unlock()
		}
	})

	require.NoError(t, e.Force(speed, 7))
	writeVar(t, e, "Start", 1)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return seen >= 3
	}, 2*time.Second, time.Millisecond)
	assert.Equal(t, int32(7), readVar(t, e, "MotorSpeed"), "forced value survives program writes")

	require.NoError(t, e.Release(speed))
	require.Eventually(t, func() bool {
		return readVar(t, e, "MotorSpeed") == DefaultSetpoint
	}, 2*time.Second, time.Millisecond)
}

func TestConveyor_InitialValues(t *testing.T) {
	c := NewConveyor()
	e, err := engine.New(c, engine.Config{
		TickIntervalNS: int64(time.Millisecond),
		Initial:        map[string]int32{"setpoint": 40},
	}, engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)
	require.NoError(t, e.Start(context.Background()))
	defer func() { require.NoError(t, e.Stop(context.Background())) }()

	writeVar(t, e, "Start", 1)
	require.Eventually(t, func() bool {
		return readVar(t, e, "MotorSpeed") == 40
	}, 2*time.Second, time.Millisecond)
}
