package vartable

import "fmt"

// Mode is the addressing mode of a slot.
type Mode int

const (
	// Direct slots point at the value container.
	Direct Mode = iota + 1
	// Indirect slots point at a pointer to the value container. Generated
	// code uses this for array and reference typed variables.
	Indirect
)

// String returns the mode name used in listings.
func (m Mode) String() string {
	switch m {
	case Direct:
		return "direct"
	case Indirect:
		return "indirect"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Slot is one located variable. Exactly one of direct and indirect is set,
// matching mode; the zero Slot is invalid.
type Slot struct {
	Name string
	Type string

	mode     Mode
	direct   *Var
	indirect **Var
}

// DirectSlot returns a slot whose address is the value container itself.
func DirectSlot(name string, v *Var) Slot {
	return Slot{Name: name, Type: "INT", mode: Direct, direct: v}
}

// IndirectSlot returns a slot whose address holds a pointer to the value
// container.
func IndirectSlot(name string, p **Var) Slot {
	return Slot{Name: name, Type: "INT", mode: Indirect, indirect: p}
}

// WithType returns a copy of s carrying the declared IEC type name.
func (s Slot) WithType(typ string) Slot {
	s.Type = typ
	return s
}

// Mode returns the slot's addressing mode.
func (s Slot) Mode() Mode {
	return s.mode
}

// Resolve returns the value container the slot designates. Indirect slots
// are dereferenced once, so a rebound pointer is observed immediately.
func (s Slot) Resolve() *Var {
	switch s.mode {
	case Direct:
		return s.direct
	case Indirect:
		if s.indirect == nil {
			return nil
		}
		return *s.indirect
	default:
		return nil
	}
}

func (s Slot) validate() error {
	switch s.mode {
	case Direct:
		if s.direct == nil {
			return fmt.Errorf("slot %q: nil address", s.Name)
		}
	case Indirect:
		if s.indirect == nil {
			return fmt.Errorf("slot %q: nil address", s.Name)
		}
		if *s.indirect == nil {
			return fmt.Errorf("slot %q: indirect address points at nil", s.Name)
		}
	default:
		return fmt.Errorf("slot %q: unknown mode %v", s.Name, s.mode)
	}
	return nil
}
