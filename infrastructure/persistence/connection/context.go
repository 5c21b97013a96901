package connection

import "context"

type contextKey struct{}

// WithConnection returns a context carrying a verified connection.
func WithConnection(ctx context.Context, conn Connection) context.Context {
	return context.WithValue(ctx, contextKey{}, conn)
}

// FromContext returns the connection placed on the context by the request
// gate.
func FromContext(ctx context.Context) (Connection, bool) {
	conn, ok := ctx.Value(contextKey{}).(Connection)
	return conn, ok && conn != nil
}
