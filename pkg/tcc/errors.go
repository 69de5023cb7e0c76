package tcc

import (
	"errors"
	"fmt"
)

var (
	// ErrDispatcherShutdown is returned when work is submitted after a dispatcher shutdown has been triggered.
	// you can check for this error with errors.Is
	ErrDispatcherShutdown = errors.New("dispatcher is already shutdown")

	// ErrDispatchAborted is returned when a blocking closure panicked on its worker.
	ErrDispatchAborted = errors.New("blocking operation aborted")

	// ErrDispatchAbandoned is returned when the awaiting caller was cancelled while the worker was still running.
	ErrDispatchAbandoned = errors.New("blocking operation abandoned by caller")

	// ErrHandleBusy is returned when a second operation is attempted against a borrowed ConnectionHost.
	ErrHandleBusy = errors.New("connection handle already has an operation in flight")

	// ErrHandlePoisoned is returned when an operation is attempted against a poisoned ConnectionHost.
	ErrHandlePoisoned = errors.New("connection handle is poisoned")

	// ErrConnectionPoolClosed is returned when a connection pool shutdown has been triggered.
	ErrConnectionPoolClosed = errors.New("connection pool closed")
)

// ErrorClass is the fixed taxonomy the pool consumes to decide retry vs eviction.
type ErrorClass int

const (
	// ClassFatal means the connection must be discarded.
	ClassFatal ErrorClass = iota

	// ClassTransient means the caller may retry with the same or a new connection.
	ClassTransient

	// ClassValidationFailed means the connection is suspect and should be evicted before reuse.
	ClassValidationFailed
)

func (ec ErrorClass) String() string {
	switch ec {
	case ClassFatal:
		return "fatal"
	case ClassTransient:
		return "transient"
	case ClassValidationFailed:
		return "validation-failed"
	default:
		return "unknown"
	}
}

// Operation identifies which manager operation produced a raw driver error.
type Operation string

const (
	// OpConnect covers driver open calls.
	OpConnect Operation = "connect"

	// OpValidate covers health probe calls.
	OpValidate Operation = "validate"

	// OpClose covers best-effort driver close calls.
	OpClose Operation = "close"
)

// ClassifiedError wraps a raw driver or dispatcher error with the class the pool acts on.
type ClassifiedError struct {
	Class ErrorClass
	Op    Operation
	Inner error
}

func (ce *ClassifiedError) Error() string {
	return fmt.Sprintf("%s error during %s: %v", ce.Class, ce.Op, ce.Inner)
}

func (ce *ClassifiedError) Unwrap() error {
	return ce.Inner
}

// AsClassifiedError checks if an error carries a classification.
func AsClassifiedError(err error) (*ClassifiedError, bool) {
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// ErrorClassifier maps raw driver errors to the ErrorClass taxonomy.
// Implementations must be deterministic and total: every raw error maps
// to exactly one class and unrecognized errors default to ClassFatal.
type ErrorClassifier interface {
	Classify(op Operation, err error) ErrorClass
}
