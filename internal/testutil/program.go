package testutil

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/roach88/scanrt/internal/engine"
	"github.com/roach88/scanrt/internal/vartable"
)

// FakeProgram is a scriptable engine.Program.
//
// It exposes Direct direct slots named D0..Dn-1 followed by Indirect
// indirect slots named P0..Pn-1. InitFunc and RunFunc, when set, are called
// from the program's entry points; every tick index the engine hands to Run
// is recorded.
type FakeProgram struct {
	// Direct holds the direct value containers, in slot order.
	Direct []*vartable.Var

	// Targets holds the current targets of the indirect slots. Holders[i]
	// is the pointer the slot designates; rebind by assigning Holders[i].
	Targets []*vartable.Var
	Holders []*vartable.Var

	InitFunc func(ctx context.Context, w *engine.Writer) error
	RunFunc  func(ctx context.Context, w *engine.Writer, tick uint64)

	initCalls atomic.Int64
	mu        sync.Mutex
	ticks     []uint64
}

// NewFakeProgram creates a program with the given number of direct and
// indirect slots, all zero valued.
func NewFakeProgram(direct, indirect int) *FakeProgram {
	p := &FakeProgram{
		Direct:  make([]*vartable.Var, direct),
		Targets: make([]*vartable.Var, indirect),
		Holders: make([]*vartable.Var, indirect),
	}
	for i := range p.Direct {
		p.Direct[i] = &vartable.Var{}
	}
	for i := range p.Targets {
		p.Targets[i] = &vartable.Var{}
		p.Holders[i] = p.Targets[i]
	}
	return p
}

// Locate implements engine.Program.
func (p *FakeProgram) Locate() []vartable.Slot {
	slots := make([]vartable.Slot, 0, len(p.Direct)+len(p.Holders))
	for i, v := range p.Direct {
		slots = append(slots, vartable.DirectSlot(fmt.Sprintf("D%d", i), v))
	}
	for i := range p.Holders {
		slots = append(slots, vartable.IndirectSlot(fmt.Sprintf("P%d", i), &p.Holders[i]))
	}
	return slots
}

// Init implements engine.Program.
func (p *FakeProgram) Init(ctx context.Context, w *engine.Writer) error {
	p.initCalls.Add(1)
	if p.InitFunc != nil {
		return p.InitFunc(ctx, w)
	}
	return nil
}

// Run implements engine.Program.
func (p *FakeProgram) Run(ctx context.Context, w *engine.Writer, tick uint64) {
	p.mu.Lock()
	p.ticks = append(p.ticks, tick)
	p.mu.Unlock()

	if p.RunFunc != nil {
		p.RunFunc(ctx, w, tick)
	}
}

// Ticks returns the tick indices Run has received so far.
func (p *FakeProgram) Ticks() []uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]uint64, len(p.ticks))
	copy(out, p.ticks)
	return out
}

// TickCount returns how many times Run was called.
func (p *FakeProgram) TickCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.ticks)
}

// InitCalls returns how many times Init was called.
func (p *FakeProgram) InitCalls() int {
	return int(p.initCalls.Load())
}
