package core

import (
	"errors"
	"fmt"
)

var (
	// ErrContractViolation marks a static wiring bug: unwired slots, duplicate
	// registrations, re-finalized graphs and the like.
	ErrContractViolation = errors.New("contract violation")
	// ErrTrackerConsistency marks a resource used without ever being registered
	// in the global state table.
	ErrTrackerConsistency = errors.New("resource state tracker inconsistency")
	ErrUnknown            = errors.New("unknown")
)

// FatalError is the panic value raised by Assert and Fatal. It is never meant
// to be recovered from except at the very top of the frame loop, where it is
// turned into an error so the process can report it and stop.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string { return e.Err.Error() }

func (e *FatalError) Unwrap() error { return e.Err }

// Fatal logs and panics with a *FatalError wrapping kind. The log line
// reports the caller of Fatal, or of Assert.
func Fatal(kind error, format string, args ...interface{}) {
	getLogger().Helper()
	err := fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))
	LogError("%s", err)
	panic(&FatalError{Err: err})
}

// Assert calls Fatal with ErrContractViolation when cond does not hold.
func Assert(cond bool, format string, args ...interface{}) {
	if !cond {
		getLogger().Helper()
		Fatal(ErrContractViolation, format, args...)
	}
}

// RecoverFatal converts a *FatalError panic into *err. Any other panic is
// propagated untouched. Use it as `defer core.RecoverFatal(&err)`.
func RecoverFatal(err *error) {
	r := recover()
	if r == nil {
		return
	}
	if fe, ok := r.(*FatalError); ok {
		*err = fe
		return
	}
	panic(r)
}
