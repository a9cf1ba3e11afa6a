package errors

import (
	"net/http"
	"runtime/debug"

	"go.uber.org/zap"
)

// ErrorHandler wraps an http.Handler and converts panics into the
// standard 500 envelope. A nil logger falls back to DefaultLogger.
func ErrorHandler(logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = DefaultLogger
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					stack := debug.Stack()
					requestID := w.Header().Get("X-Request-ID")
					logger.Error("panic recovered",
						zap.Any("error", err),
						zap.ByteString("stacktrace", stack),
						zap.String("request_id", requestID),
					)

					proxyErr := NewInternalError(requestID, nil)
					w.Header().Set("Access-Control-Allow-Origin", "*")
					WriteError(w, proxyErr)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// LogError logs an error with its context. Client errors are logged at
// warn level, everything else at error level. A nil logger falls back to
// DefaultLogger.
func LogError(logger *zap.Logger, err error, requestID string) {
	if logger == nil {
		logger = DefaultLogger
	}
	var proxyErr *ProxyError
	if As(err, &proxyErr) {
		fields := []zap.Field{
			zap.String("error_type", string(proxyErr.Type)),
			zap.String("message", proxyErr.Message),
			zap.Int("code", proxyErr.Code),
			zap.String("request_id", requestID),
		}
		if proxyErr.Details != "" {
			fields = append(fields, zap.String("details", proxyErr.Details))
		}
		if proxyErr.err != nil {
			fields = append(fields, zap.NamedError("cause", proxyErr.err))
		}

		switch proxyErr.Type {
		case ValidationError, MethodError:
			logger.Warn("request rejected", fields...)
		default:
			logger.Error("request error", fields...)
		}
		return
	}

	logger.Error("unexpected error",
		zap.Error(err),
		zap.String("request_id", requestID),
	)
}
