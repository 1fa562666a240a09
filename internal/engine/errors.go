package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/scanrt/internal/vartable"
)

// RuntimeError represents an error raised by the scan runtime.
//
// Setup and teardown failures are returned synchronously from Start and Stop.
// Per-tick faults (NoObserver, UnknownVariable) never abort a tick; they are
// logged and counted, and surface here only so the log carries a typed value.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Op names the step that failed ("arm timer", "join scan loop", ...).
	Op string

	// Message is a human-readable description.
	Message string

	// Index is the variable index involved, or -1.
	Index int

	// Err is the underlying cause, if any.
	Err error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeInitialization indicates Start could not bring the engine up.
	ErrCodeInitialization RuntimeErrorCode = "INITIALIZATION"

	// ErrCodeShutdown indicates a teardown step failed during Stop.
	ErrCodeShutdown RuntimeErrorCode = "SHUTDOWN"

	// ErrCodeIndexOutOfRange indicates a caller passed an index outside the table.
	ErrCodeIndexOutOfRange RuntimeErrorCode = "INDEX_OUT_OF_RANGE"

	// ErrCodeNoObserver indicates a variable changed with no callback registered.
	ErrCodeNoObserver RuntimeErrorCode = "NO_OBSERVER"

	// ErrCodeUnknownVariable indicates a program write to storage that no
	// slot designates. This is a build fault, not a runtime condition.
	ErrCodeUnknownVariable RuntimeErrorCode = "UNKNOWN_VARIABLE"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	msg := e.Message
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Index >= 0 {
		msg = fmt.Sprintf("%s (index=%d)", msg, e.Index)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

// Unwrap returns the underlying cause.
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

func hasCode(err error, code RuntimeErrorCode) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// IsInitializationError reports whether err is a Start failure.
func IsInitializationError(err error) bool { return hasCode(err, ErrCodeInitialization) }

// IsShutdownError reports whether err is a Stop failure.
func IsShutdownError(err error) bool { return hasCode(err, ErrCodeShutdown) }

// IsIndexOutOfRange reports whether err is an access-layer index error.
// Matches both RuntimeError and the bare vartable sentinel.
func IsIndexOutOfRange(err error) bool {
	return hasCode(err, ErrCodeIndexOutOfRange) || errors.Is(err, vartable.ErrIndexOutOfRange)
}

// IsNoObserverError reports whether err is a missing-callback report.
func IsNoObserverError(err error) bool { return hasCode(err, ErrCodeNoObserver) }

// IsUnknownVariableError reports whether err is an address lookup fault.
func IsUnknownVariableError(err error) bool { return hasCode(err, ErrCodeUnknownVariable) }

func newInitError(op string, err error) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeInitialization,
		Op:      op,
		Message: "engine failed to start",
		Index:   -1,
		Err:     err,
	}
}

func newShutdownError(op string, err error) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeShutdown,
		Op:      op,
		Message: "teardown step failed",
		Index:   -1,
		Err:     err,
	}
}

func newIndexError(index, length int) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeIndexOutOfRange,
		Message: fmt.Sprintf("table has %d variables", length),
		Index:   index,
		Err:     vartable.ErrIndexOutOfRange,
	}
}

func newNoObserverError(index int) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeNoObserver,
		Message: "variable changed but no callback is registered",
		Index:   index,
	}
}

func newUnknownVariableError() *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeUnknownVariable,
		Message: "write to storage not designated by any slot",
		Index:   -1,
	}
}
