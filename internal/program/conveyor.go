package program

import (
	"context"

	"github.com/roach88/scanrt/internal/engine"
	"github.com/roach88/scanrt/internal/vartable"
)

// Conveyor tuning.
const (
	DefaultSetpoint = 100
	RampStep        = 10
	// SensorPeriod is the number of running ticks between photo-eye edges.
	SensorPeriod = 5
)

// Conveyor is a belt controller with a start/stop latch, a speed ramp and
// an item counter fed by a simulated photo-eye.
//
// The photo-eye is located through an indirect slot, the way generated code
// exposes variables that live behind a pointer in a function block.
type Conveyor struct {
	Start      vartable.Var
	Stop       vartable.Var
	Running    vartable.Var
	Setpoint   vartable.Var
	MotorSpeed vartable.Var
	ItemCount  vartable.Var

	eye    vartable.Var
	Sensor *vartable.Var

	lastSensor int32
	phase      int
}

// NewConveyor returns a stopped conveyor.
func NewConveyor() *Conveyor {
	c := &Conveyor{}
	c.Sensor = &c.eye
	return c
}

// Locate implements engine.Program.
func (c *Conveyor) Locate() []vartable.Slot {
	return []vartable.Slot{
		vartable.DirectSlot("Start", &c.Start).WithType("BOOL"),
		vartable.DirectSlot("Stop", &c.Stop).WithType("BOOL"),
		vartable.DirectSlot("Running", &c.Running).WithType("BOOL"),
		vartable.DirectSlot("Setpoint", &c.Setpoint),
		vartable.DirectSlot("MotorSpeed", &c.MotorSpeed),
		vartable.DirectSlot("ItemCount", &c.ItemCount),
		vartable.IndirectSlot("Sensor", &c.Sensor).WithType("BOOL"),
	}
}

// Init implements engine.Program.
func (c *Conveyor) Init(_ context.Context, w *engine.Writer) error {
	w.Set(&c.Setpoint, DefaultSetpoint)
	w.Set(&c.Running, 0)
	w.Set(&c.MotorSpeed, 0)
	w.Set(&c.ItemCount, 0)
	w.Set(c.Sensor, 0)
	c.lastSensor = 0
	c.phase = 0
	return nil
}

// Run implements engine.Program. Outputs are written only when they change.
func (c *Conveyor) Run(_ context.Context, w *engine.Writer, _ uint64) {
	running := c.Running.Value
	switch {
	case c.Stop.Value != 0:
		running = 0
	case c.Start.Value != 0:
		running = 1
	}
	set(w, &c.Running, running)

	target := int32(0)
	if c.Running.Value != 0 {
		target = c.Setpoint.Value
	}
	set(w, &c.MotorSpeed, ramp(c.MotorSpeed.Value, target))

	if c.Running.Value != 0 && c.MotorSpeed.Value > 0 {
		c.phase++
		if c.phase >= SensorPeriod {
			c.phase = 0
			set(w, c.Sensor, 1-c.Sensor.Value)
		}
	}

	// Rising edge on the photo-eye counts one item.
	if c.Sensor.Value != 0 && c.lastSensor == 0 {
		set(w, &c.ItemCount, c.ItemCount.Value+1)
	}
	c.lastSensor = c.Sensor.Value
}

func set(w *engine.Writer, v *vartable.Var, value int32) {
	if v.Value != value {
		w.Set(v, value)
	}
}

func ramp(current, target int32) int32 {
	switch {
	case current < target:
		return min(current+RampStep, target)
	case current > target:
		return max(current-RampStep, target)
	}
	return current
}
