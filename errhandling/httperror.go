package errhandling

import (
	"errors"
	"net/http"
)

// HTTPError error type with info about http.StatusCode
type HTTPError interface {
	Error() string
	StatusCode() int
}

type ErrorWithStatus struct {
	err        error
	statusCode int
}

func NewErrorStatus(err error, statusCode int) *ErrorWithStatus {
	return &ErrorWithStatus{
		err:        err,
		statusCode: statusCode,
	}
}

func (e *ErrorWithStatus) StatusCode() int {
	return e.statusCode
}

func (e *ErrorWithStatus) Error() string {
	return e.err.Error()
}

func (e *ErrorWithStatus) Unwrap() error {
	return e.err
}

// HTTPStatus picks the response status for err. An explicit HTTPError in the
// chain wins, transient errors are 503 so callers retry, anything else is 500.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var herr HTTPError
	if errors.As(err, &herr) {
		return herr.StatusCode()
	}
	if IsTransient(err) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
