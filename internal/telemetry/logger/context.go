package logger

import "context"

type ctxKey int

const (
	loggerKey ctxKey = iota
	requestIDKey
	connIDKey
)

// Context values that L adds to the logger, in output order.
var taggedKeys = []struct {
	key  ctxKey
	attr string
}{
	{requestIDKey, "request_id"},
	{connIDKey, "conn_id"},
}

// WithLogger stores l in ctx.
func WithLogger(ctx context.Context, l Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// FromContext returns the logger in ctx, or Default.
func FromContext(ctx context.Context) Logger {
	if l, ok := ctx.Value(loggerKey).(Logger); ok {
		return l
	}
	return Default()
}

// WithRequestID stores an HTTP request ID in ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext returns the request ID in ctx, or "".
func RequestIDFromContext(ctx context.Context) string {
	return stringValue(ctx, requestIDKey)
}

// WithConnID stores a gateway connection ID in ctx.
func WithConnID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, connIDKey, id)
}

// ConnIDFromContext returns the connection ID in ctx, or "".
func ConnIDFromContext(ctx context.Context) string {
	return stringValue(ctx, connIDKey)
}

// L returns the logger in ctx tagged with the request and connection
// IDs that ctx carries.
func L(ctx context.Context) Logger {
	return tag(ctx, FromContext(ctx))
}

// Or is L for components that own a logger: fallback is used when ctx
// carries none.
func Or(ctx context.Context, fallback Logger) Logger {
	l, ok := ctx.Value(loggerKey).(Logger)
	if !ok {
		l = fallback
	}
	if l == nil {
		l = Default()
	}
	return tag(ctx, l)
}

func tag(ctx context.Context, l Logger) Logger {
	for _, k := range taggedKeys {
		if v := stringValue(ctx, k.key); v != "" {
			l = l.With(k.attr, v)
		}
	}
	return l
}

func stringValue(ctx context.Context, key ctxKey) string {
	v, _ := ctx.Value(key).(string)
	return v
}
