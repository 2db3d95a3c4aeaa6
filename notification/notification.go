// Package notification models the storage change events delivered to the
// mirror and decodes them from the function runtime's JSON payload.
package notification

import (
	"strings"
)

// Kind is the mutation a notification maps to.
type Kind int

const (
	Ignored Kind = iota
	Created
	Removed
)

const (
	createdPrefix = "ObjectCreated:"
	removedPrefix = "ObjectRemoved:"
)

func (k Kind) String() string {
	switch k {
	case Created:
		return "created"
	case Removed:
		return "removed"
	case Ignored:
		return "ignored"
	}
	return "unknown"
}

// Notification describes one storage object change.
type Notification struct {
	EventName  string
	BucketName string
	ObjectKey  string
}

// Kind classifies the notification by its event name prefix. Any name that is
// neither a create nor a remove is Ignored.
func (n Notification) Kind() Kind {
	switch {
	case strings.HasPrefix(n.EventName, createdPrefix):
		return Created
	case strings.HasPrefix(n.EventName, removedPrefix):
		return Removed
	}
	return Ignored
}

// Batch is the ordered set of notifications delivered in one invocation.
type Batch []Notification

// Validate checks every record of the batch. The first malformed record is
// reported and the batch as a whole must be rejected.
func (b Batch) Validate() error {
	for i, n := range b {
		if n.EventName == "" {
			return MissingFieldError(i, fieldEventName)
		}
		if n.BucketName == "" {
			return MissingFieldError(i, fieldBucketName)
		}
		if n.ObjectKey == "" {
			return MissingFieldError(i, fieldObjectKey)
		}
	}
	return nil
}
