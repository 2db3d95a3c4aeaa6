package notification

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/datatrails/go-wallpaper-mirror/errhandling"
)

const (
	fieldEvents     = "events"
	fieldEventName  = "eventName"
	fieldBucketName = "oss.bucket.name"
	fieldObjectKey  = "oss.object.key"
)

var (
	ErrMalformed = errors.New("malformed notification")
)

// malformedError wraps ErrMalformed and carries a 400 so the runtime does not
// redeliver a payload that can never succeed.
func malformedError(format string, a ...any) error {
	return errhandling.NewErrorStatus(
		fmt.Errorf("%w: "+format, append([]any{ErrMalformed}, a...)...),
		http.StatusBadRequest,
	)
}

func MissingFieldError(record int, field string) error {
	return malformedError("record %d: missing %s", record, field)
}

func DecodeError(err error) error {
	return malformedError("%w", err)
}
