package middleware

import "context"

type contextKey string

const (
	RequestIDKey contextKey = "request_id"

	// HeaderRequestID carries the request id in both directions.
	HeaderRequestID = "X-Request-ID"

	// HeaderResponseTime reports how long the handler took to answer.
	HeaderResponseTime = "X-Response-Time"
)

// GetRequestID returns the id stored by RequestID, or "".
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}
