package readiness

type UnrecoverableError struct {
	desc string
	err  error
}

func (e *UnrecoverableError) Error() string {
	return e.desc + ": " + e.err.Error()
}

func (e *UnrecoverableError) Unwrap() error {
	return e.err
}

// NewUnrecoverableError marks err as one that retrying cannot fix, such as a
// missing setting.
func NewUnrecoverableError(err error) error {
	if err == nil {
		return nil
	}
	return &UnrecoverableError{
		desc: "unrecoverable",
		err:  err,
	}
}
