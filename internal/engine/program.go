package engine

import (
	"context"

	"github.com/roach88/scanrt/internal/vartable"
)

// Program is the control program driven by the engine. Implementations are
// normally generated from IEC 61131-3 sources and are opaque to the engine.
//
// Init and Run are always called with the tick lock held, so they never race
// with external writes. They must only write located variables through the
// Writer they are given, and must not retain it past the call.
type Program interface {
	// Locate returns the located-variable slots. Called once, by New.
	Locate() []vartable.Slot

	// Init is the one-time initialization entry point, run by Start before
	// the first tick.
	Init(ctx context.Context, w *Writer) error

	// Run is the per-cycle entry point. tick is the number of ticks that
	// completed before this one.
	Run(ctx context.Context, w *Writer, tick uint64)
}

// ChangeFunc is the observer callback, invoked with the index of a variable
// the program wrote.
type ChangeFunc func(index int)

// Notification is a program write as delivered to a NotifyFunc: the index,
// the value stored when the write was made (the unchanged value if the
// variable was forced) and the tick that made it.
type Notification struct {
	Index  int
	Value  int32
	Forced bool
	Tick   uint64
}

// NotifyFunc is the detailed form of ChangeFunc. Observers that report
// values use it so a later external write cannot be mistaken for the
// program's.
type NotifyFunc func(Notification)
