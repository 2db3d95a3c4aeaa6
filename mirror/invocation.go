package mirror

import (
	"context"

	"github.com/google/uuid"
)

type invocationKey struct{}

// WithInvocationID tags ctx with the runtime's request id so the batch's log
// lines can be correlated with the invocation.
func WithInvocationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, invocationKey{}, id)
}

// InvocationID returns the id set by WithInvocationID, or a fresh one.
func InvocationID(ctx context.Context) string {
	if id, ok := ctx.Value(invocationKey{}).(string); ok && id != "" {
		return id
	}
	return uuid.NewString()
}
