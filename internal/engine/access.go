package engine

import (
	"fmt"

	"github.com/roach88/scanrt/internal/vartable"
)

// Len returns the fixed number of located variables.
func (e *Engine) Len() int {
	return e.table.Len()
}

// Slots returns the table's slots in index order.
func (e *Engine) Slots() []vartable.Slot {
	return e.table.Slots()
}

// Lookup returns the index of the named variable.
func (e *Engine) Lookup(name string) (int, error) {
	idx, err := e.table.Lookup(name)
	if err != nil {
		return 0, fmt.Errorf("lookup: %w", err)
	}
	return idx, nil
}

// ReadRef returns the value container of the variable at index, with
// indirect slots already dereferenced. The pointer is live storage shared
// with the scan goroutine; use ReadInt for a synchronized read.
func (e *Engine) ReadRef(index int) (*vartable.Var, error) {
	v, err := e.table.Ref(index)
	if err != nil {
		return nil, newIndexError(index, e.table.Len())
	}
	return v, nil
}

// ReadInt returns the value of the variable at index, read between ticks.
func (e *Engine) ReadInt(index int) (int32, error) {
	v, err := e.ReadRef(index)
	if err != nil {
		return 0, err
	}

	e.lockAccess()
	defer e.unlockAccess()
	return v.Value, nil
}

// WriteInt overwrites the value of the variable at index. It waits for the
// current tick body, if any, to finish, and yields to a tick that is
// waiting for the lock. The force flag is neither consulted
// nor changed, and no change notification is raised.
func (e *Engine) WriteInt(index int, value int32) error {
	v, err := e.ReadRef(index)
	if err != nil {
		return err
	}

	e.lockAccess()
	defer e.unlockAccess()
	v.Value = value
	e.record(e.currentRunID(), e.ticks.Current(), index, v, SourceExternal)
	return nil
}

// Force sets the force flag of the variable at index and stores value.
// Program writes to it are suppressed until Release.
func (e *Engine) Force(index int, value int32) error {
	v, err := e.ReadRef(index)
	if err != nil {
		return err
	}

	e.lockAccess()
	defer e.unlockAccess()
	v.Force(value)
	e.record(e.currentRunID(), e.ticks.Current(), index, v, SourceForce)
	return nil
}

// Release clears the force flag of the variable at index.
func (e *Engine) Release(index int) error {
	v, err := e.ReadRef(index)
	if err != nil {
		return err
	}

	e.lockAccess()
	defer e.unlockAccess()
	v.Release()
	e.record(e.currentRunID(), e.ticks.Current(), index, v, SourceForce)
	return nil
}

// Forced reports whether the variable at index is forced.
func (e *Engine) Forced(index int) (bool, error) {
	v, err := e.ReadRef(index)
	if err != nil {
		return false, err
	}

	e.lockAccess()
	defer e.unlockAccess()
	return v.Forced(), nil
}
