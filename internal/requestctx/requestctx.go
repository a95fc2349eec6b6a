package requestctx

import "context"

type ctxKey string

const requestIDKey ctxKey = "request_id"

// WithRequestID attaches the inbound request id so stores and jobs can log
// it without importing the HTTP layer.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

func GetRequestID(ctx context.Context) string {
	if value, ok := ctx.Value(requestIDKey).(string); ok {
		return value
	}
	return ""
}
