package callerctx

import (
	"context"
)

type ctxKey string

const callerKey ctxKey = "caller"

// New creates a context carrying the authenticated caller name
func New(ctx context.Context, caller string) context.Context {
	return context.WithValue(ctx, callerKey, caller)
}

// FromContext extracts the caller name from the context
func FromContext(ctx context.Context) (string, bool) {
	caller, ok := ctx.Value(callerKey).(string)
	return caller, ok
}
