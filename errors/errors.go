// Package errors provides the error handling system for the gproxy server.
// It includes typed proxy errors, the JSON error envelope returned to
// callers, and integrated logging with Uber's zap logger.
//
// Every failure the proxy can produce is converted into a ProxyError and
// serialized as:
//
//	{"error": "<summary>", "details": "<optional diagnostic text>"}
//
// Basic usage:
//
//	errors.ErrorWithType(w, "Method Not Allowed", errors.MethodError, http.StatusMethodNotAllowed)
//
// The constructors in types.go cover the proxy's error taxonomy:
//
//	err := errors.NewUpstreamError(requestID, http.StatusTooManyRequests, body, cause)
package errors

import (
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

// DefaultLogger is the default zap logger instance used throughout the package.
// It is initialized to a production configuration but can be overridden using SetLogger.
var DefaultLogger *zap.Logger

func init() {
	var err error
	DefaultLogger, err = zap.NewProduction()
	if err != nil {
		DefaultLogger = zap.NewNop()
	}
}

// SetLogger allows setting a custom zap logger instance.
// If nil is provided, the function will do nothing to prevent
// accidentally disabling logging.
func SetLogger(logger *zap.Logger) {
	if logger != nil {
		DefaultLogger = logger
	}
}

// ErrorType represents the categories of failure the proxy distinguishes.
// The type decides the status code and whether details reach the caller.
type ErrorType string

const (
	// ConfigError means the server is missing required configuration,
	// such as the API credential. Not fixable by the caller.
	ConfigError ErrorType = "config_error"

	// ValidationError represents a missing or invalid request body or field
	ValidationError ErrorType = "validation_error"

	// MethodError represents a request with an unsupported HTTP method
	MethodError ErrorType = "method_error"

	// UpstreamError represents a failed call to the generative API
	UpstreamError ErrorType = "upstream_error"

	// InternalError represents unexpected internal server errors
	InternalError ErrorType = "internal_error"
)

// ProxyError is the error type returned by every failure path of the
// proxy. Only Message and Details are serialized; the rest is kept for
// logging and status selection.
type ProxyError struct {
	// Type categorizes the error
	Type ErrorType `json:"-"`

	// Message is the human-readable summary sent as "error"
	Message string `json:"error"`

	// Details carries optional diagnostic text, such as the upstream payload
	Details string `json:"details,omitempty"`

	// Code is the HTTP status code
	Code int `json:"-"`

	// RequestID links the error to a specific request
	RequestID string `json:"-"`

	// err is the underlying error (not exposed in JSON)
	err error
}

// Error implements the error interface. It returns a string that
// combines the error type, message, and underlying error (if any).
func (e *ProxyError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error, implementing the unwrap
// interface for error chains.
func (e *ProxyError) Unwrap() error {
	return e.err
}

// Is implements error matching for errors.Is, allowing type-based
// error matching while ignoring other fields.
func (e *ProxyError) Is(target error) bool {
	t, ok := target.(*ProxyError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// Body returns the JSON envelope for the error.
func (e *ProxyError) Body() []byte {
	body, err := json.Marshal(e)
	if err != nil {
		// A struct of two strings cannot fail to marshal.
		return []byte(`{"error":"Internal server error during processing."}`)
	}
	return body
}

// WriteError formats and writes a ProxyError to an http.ResponseWriter.
// It sets the appropriate content type and status code, then writes
// the error as a JSON response.
func WriteError(w http.ResponseWriter, err *ProxyError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.Code)
	w.Write(err.Body())
}

// ErrorWithType is a drop-in replacement for http.Error that writes the
// JSON envelope. The request ID is taken from the response headers when
// the RequestID middleware has set it.
func ErrorWithType(w http.ResponseWriter, message string, errType ErrorType, code int) {
	WriteError(w, &ProxyError{
		Type:      errType,
		Message:   message,
		Code:      code,
		RequestID: w.Header().Get("X-Request-ID"),
	})
}
