// Package vartable holds the located-variable table of a scan runtime.
//
// A control program exposes each located variable through a Slot. The slot
// either points straight at the variable's value container (Direct) or at a
// pointer that in turn points at it (Indirect). Callers never dereference
// slots themselves; Slot.Resolve always yields the *Var holding the value.
//
// The table is built once from the program's slot list and never resized.
// A slot's index is its public identity for the lifetime of the process.
package vartable
