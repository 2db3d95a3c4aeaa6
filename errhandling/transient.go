package errhandling

import (
	"errors"
	"fmt"
)

type transientError struct {
	desc string
	err  error
}

func (e *transientError) Error() string {
	return e.desc + ": " + e.err.Error()
}

func (e *transientError) Unwrap() error {
	return e.err
}

// NewTransientError marks err as worth retrying. For a function invocation a
// failed status is itself the retry: the runtime redelivers the batch and the
// set mutations are idempotent.
func NewTransientError(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{
		desc: "transient error",
		err:  err,
	}
}

func NewTransientErrorf(format string, a ...any) error {
	return NewTransientError(fmt.Errorf(format, a...))
}

// IsTransient returns true if the error was wrapped to indicate its transient.
func IsTransient(err error) bool {
	var target *transientError
	return errors.As(err, &target)
}
