package vartable

// Flags is the per-variable flag byte carried next to the value.
type Flags uint8

const (
	// FlagForced marks a variable as externally forced. Program writes to a
	// forced variable are suppressed; external writes are not.
	FlagForced Flags = 1 << iota
)

// Var is the value container of a located variable. It is owned by the
// control program; the runtime only references it.
type Var struct {
	Flags Flags
	Value int32
}

// Forced reports whether the force flag is set.
func (v *Var) Forced() bool {
	return v.Flags&FlagForced != 0
}

// Force sets the force flag and stores value.
func (v *Var) Force(value int32) {
	v.Flags |= FlagForced
	v.Value = value
}

// Release clears the force flag. The value is left as forced.
func (v *Var) Release() {
	v.Flags &^= FlagForced
}
