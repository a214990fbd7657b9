package users

import "context"

type requestIDKey struct{}

// WithRequestID returns a copy of ctx carrying the request ID. Events emitted
// by Service operations called with this context are tagged with it.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFrom returns the request ID stored in ctx, or "".
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
