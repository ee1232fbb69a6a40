package attempt

import (
	"errors"
	"fmt"
)

// Admission denials. They are recoverable and shown to the student.
var (
	ErrOutOfWindow              = errors.New("test is not open at this time")
	ErrAttemptAlreadyInProgress = errors.New("an attempt is already in progress")
	ErrAttemptLimitExceeded     = errors.New("attempt limit reached")
)

var (
	// ErrPersistenceFailure marks transient storage errors; the caller may retry.
	ErrPersistenceFailure = errors.New("persistence failure")
	// ErrClockAlreadyStopped is returned by Clock.Stop on a stopped or expired clock. Callers ignore it.
	ErrClockAlreadyStopped = errors.New("clock already stopped")

	ErrScheduledTestNotFound = errors.New("scheduled test not found")
	ErrAttemptNotFound       = errors.New("attempt not found")
	ErrAttemptNotOpen        = errors.New("attempt is not open")
	ErrSessionNotFound       = errors.New("session not found")
	ErrSessionClosed         = errors.New("session closed")
	ErrUnknownQuestion       = errors.New("question does not belong to this test")
	ErrNotInProgress         = errors.New("attempt is no longer accepting answers")
	ErrFinalizePending       = errors.New("submission is pending; retry submit")
)

// DenialReason is the machine-readable code of a Gate denial.
type DenialReason string

const (
	ReasonOutOfWindow              DenialReason = "out_of_window"
	ReasonAttemptAlreadyInProgress DenialReason = "attempt_already_in_progress"
	ReasonAttemptLimitExceeded     DenialReason = "attempt_limit_exceeded"
)

// DenialError is returned when the Gate refuses admission.
type DenialError struct {
	Reason DenialReason
	err    error
}

func (e *DenialError) Error() string { return e.err.Error() }
func (e *DenialError) Unwrap() error { return e.err }

func deny(reason DenialReason) *DenialError {
	var err error
	switch reason {
	case ReasonOutOfWindow:
		err = ErrOutOfWindow
	case ReasonAttemptAlreadyInProgress:
		err = ErrAttemptAlreadyInProgress
	default:
		err = ErrAttemptLimitExceeded
	}
	return &DenialError{Reason: reason, err: err}
}

// PersistenceError wraps a storage failure with the operation that failed.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() []error { return []error{ErrPersistenceFailure, e.Err} }

func persistErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}
