package vartable

import (
	"errors"
	"fmt"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// ErrIndexOutOfRange is returned for indices outside [0, Len()).
var ErrIndexOutOfRange = errors.New("index out of range")

// ErrUnknownName is returned by Lookup when no slot carries the name.
var ErrUnknownName = errors.New("unknown variable name")

// Table is the fixed, ordered set of located variables.
//
// Thread-safety: the table itself is immutable after New. The Var values it
// designates are not; callers synchronize access to them.
type Table struct {
	slots []Slot

	// byAddr indexes direct slots. Indirect slots can be rebound by the
	// program, so IndexOf resolves them on every call.
	byAddr   map[*Var]int
	indirect []int
	byName   map[string]int
}

// New builds a table from slots. The slice is copied. Every slot must carry a
// non-nil address; names, when present, must be unique under IEC identifier
// rules (case-insensitive).
func New(slots []Slot) (*Table, error) {
	t := &Table{
		slots:  make([]Slot, len(slots)),
		byAddr: make(map[*Var]int, len(slots)),
		byName: make(map[string]int, len(slots)),
	}
	copy(t.slots, slots)

	for i, s := range t.slots {
		if err := s.validate(); err != nil {
			return nil, fmt.Errorf("slot %d: %w", i, err)
		}

		switch s.mode {
		case Direct:
			if prev, ok := t.byAddr[s.direct]; ok {
				return nil, fmt.Errorf("slot %d: address already used by slot %d", i, prev)
			}
			t.byAddr[s.direct] = i
		case Indirect:
			t.indirect = append(t.indirect, i)
		}

		if s.Name == "" {
			continue
		}
		key := foldName(s.Name)
		if prev, ok := t.byName[key]; ok {
			return nil, fmt.Errorf("slot %d: name %q already used by slot %d", i, s.Name, prev)
		}
		t.byName[key] = i
	}

	return t, nil
}

// Len returns the number of slots.
func (t *Table) Len() int {
	return len(t.slots)
}

// Slot returns the slot at index.
func (t *Table) Slot(index int) (Slot, error) {
	if index < 0 || index >= len(t.slots) {
		return Slot{}, fmt.Errorf("slot %d of %d: %w", index, len(t.slots), ErrIndexOutOfRange)
	}
	return t.slots[index], nil
}

// Ref returns the resolved value container at index.
func (t *Table) Ref(index int) (*Var, error) {
	s, err := t.Slot(index)
	if err != nil {
		return nil, err
	}
	return s.Resolve(), nil
}

// IndexOf returns the index of the slot that currently resolves to v.
func (t *Table) IndexOf(v *Var) (int, bool) {
	if v == nil {
		return 0, false
	}
	if i, ok := t.byAddr[v]; ok {
		return i, true
	}
	for _, i := range t.indirect {
		if t.slots[i].Resolve() == v {
			return i, true
		}
	}
	return 0, false
}

// Lookup returns the index of the named variable. Names compare after NFC
// normalization and case folding, as IEC 61131-3 identifiers are not case
// sensitive.
func (t *Table) Lookup(name string) (int, error) {
	i, ok := t.byName[foldName(name)]
	if !ok {
		return 0, fmt.Errorf("%q: %w", name, ErrUnknownName)
	}
	return i, nil
}

// Slots returns a copy of the slot list in index order.
func (t *Table) Slots() []Slot {
	out := make([]Slot, len(t.slots))
	copy(out, t.slots)
	return out
}

func foldName(name string) string {
	return cases.Fold().String(norm.NFC.String(name))
}
