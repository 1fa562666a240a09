package engine

import (
	"github.com/roach88/scanrt/internal/vartable"
)

// pendingChange is a program write waiting to be reported to the observer.
type pendingChange struct {
	index  int
	value  int32
	forced bool
}

// Writer is the write path the control program uses for located variables.
// It implements the force-flag contract and queues a change notification for
// every write, forced or not.
//
// Notifications are dispatched by the scan goroutine once the tick body has
// returned and the tick lock is released, in write order.
type Writer struct {
	e       *Engine
	tick    uint64
	pending []pendingChange
}

func newWriter(e *Engine) *Writer {
	return &Writer{e: e, pending: make([]pendingChange, 0, 16)}
}

// Set writes value to v unless v is forced, then queues a notification for
// the slot that designates v. A write to storage no slot designates is an
// UnknownVariable fault: it is logged and counted, and the tick continues.
func (w *Writer) Set(v *vartable.Var, value int32) {
	if v == nil {
		w.e.unknownVariable(w.tick)
		return
	}

	forced := v.Forced()
	if !forced {
		v.Value = value
	}

	idx, ok := w.e.table.IndexOf(v)
	if !ok {
		w.e.unknownVariable(w.tick)
		return
	}
	w.pending = append(w.pending, pendingChange{index: idx, value: v.Value, forced: forced})
}

// Tick returns the index of the tick being executed.
func (w *Writer) Tick() uint64 {
	return w.tick
}

func (w *Writer) begin(tick uint64) {
	w.tick = tick
	w.pending = w.pending[:0]
}
