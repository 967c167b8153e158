package engine

import (
	"errors"
	"fmt"
)

// ExecError represents a failure detected while executing a queued entry.
//
// Execution failures are captured and reported like failed assertions:
// the entry is marked Failed, the error is recorded on the session, and
// draining continues so cleanup-style helpers still run.
type ExecError struct {
	// Code identifies the error category.
	Code ExecErrorCode

	// Helper is the helper name (or "andThen" for barriers).
	Helper string

	// EntryID identifies the failed entry.
	EntryID string

	// Seq is the entry's enqueue sequence number.
	Seq int64

	// Err is the underlying handler error, if any.
	Err error
}

// ExecErrorCode categorizes execution errors.
type ExecErrorCode string

const (
	// ErrCodeHelperFailed indicates a helper's completion signalled failure.
	ErrCodeHelperFailed ExecErrorCode = "HELPER_FAILED"

	// ErrCodeBarrierFailed indicates a barrier callback returned an error.
	ErrCodeBarrierFailed ExecErrorCode = "BARRIER_FAILED"

	// ErrCodeHandlerPanic indicates a handler or callback panicked.
	ErrCodeHandlerPanic ExecErrorCode = "HANDLER_PANIC"
)

// Error implements the error interface.
func (e *ExecError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (entry=%s, seq=%d): %v", e.Code, e.Helper, e.EntryID, e.Seq, e.Err)
	}
	return fmt.Sprintf("%s: %s (entry=%s, seq=%d)", e.Code, e.Helper, e.EntryID, e.Seq)
}

// Unwrap returns the underlying handler error.
func (e *ExecError) Unwrap() error {
	return e.Err
}

// IsHelperFailure returns true if the error is a failed helper completion.
// Uses errors.As to handle wrapped errors.
func IsHelperFailure(err error) bool {
	var ee *ExecError
	if errors.As(err, &ee) {
		return ee.Code == ErrCodeHelperFailed
	}
	return false
}

// IsBarrierFailure returns true if the error is a failed barrier callback.
func IsBarrierFailure(err error) bool {
	var ee *ExecError
	if errors.As(err, &ee) {
		return ee.Code == ErrCodeBarrierFailed
	}
	return false
}

// NewHelperFailure creates an ExecError for a failed helper entry.
func NewHelperFailure(e *Entry, err error) *ExecError {
	return &ExecError{
		Code:    ErrCodeHelperFailed,
		Helper:  e.Name(),
		EntryID: e.ID(),
		Seq:     e.Seq(),
		Err:     err,
	}
}

// NewBarrierFailure creates an ExecError for a failed barrier callback.
func NewBarrierFailure(e *Entry, err error) *ExecError {
	return &ExecError{
		Code:    ErrCodeBarrierFailed,
		Helper:  e.Name(),
		EntryID: e.ID(),
		Seq:     e.Seq(),
		Err:     err,
	}
}

// NewPanicFailure creates an ExecError for a panicking handler.
func NewPanicFailure(e *Entry, recovered any) *ExecError {
	return &ExecError{
		Code:    ErrCodeHandlerPanic,
		Helper:  e.Name(),
		EntryID: e.ID(),
		Seq:     e.Seq(),
		Err:     fmt.Errorf("panic: %v", recovered),
	}
}
