package errors

import (
	"net/http"
)

// Messages returned to callers. They are part of the response contract.
const (
	MsgConfigMissing    = "Server configuration error: API Key missing."
	MsgMethodNotAllowed = "Method Not Allowed"
	MsgMissingBody      = "Missing request body"
	MsgMissingQuery     = "Missing required query field"
	MsgNotFound         = "Not Found"
	MsgFieldTooLarge    = "Request field too large"
	MsgUpstreamFailure  = "External API error."
	MsgInternal         = "Internal server error during processing."
)

// NewError creates a new ProxyError with the given parameters.
// The typed constructors below cover every response the proxy sends.
//
// Example:
//
//	err := NewError(InternalError, "encode failed", 500, "req_123", "", encErr)
func NewError(errType ErrorType, message string, code int, requestID string, details string, err error) *ProxyError {
	return &ProxyError{
		Type:      errType,
		Message:   message,
		Code:      code,
		RequestID: requestID,
		Details:   details,
		err:       err,
	}
}

// NewConfigError reports that the API credential is absent. Every request
// fails this way until an operator provides the key.
func NewConfigError(requestID string) *ProxyError {
	return NewError(ConfigError, MsgConfigMissing, http.StatusInternalServerError, requestID, "", nil)
}

// NewMethodError rejects any method other than POST (and the OPTIONS preflight).
func NewMethodError(requestID string) *ProxyError {
	return NewError(MethodError, MsgMethodNotAllowed, http.StatusMethodNotAllowed, requestID, "", nil)
}

// NewValidationError creates a caller-fixable request error, such as:
//   - a missing body
//   - a missing or empty query field
//   - an oversized field
//
// Example:
//
//	err := NewValidationError("req_123", MsgMissingQuery, validationErr)
func NewValidationError(requestID, message string, err error) *ProxyError {
	return NewError(ValidationError, message, http.StatusBadRequest, requestID, "", err)
}

// NewUpstreamError reports a failed call to the generative API. status is
// the upstream HTTP status; zero (transport failure) or anything outside
// the error range becomes 500. details is passed to the caller verbatim.
//
// Example:
//
//	err := NewUpstreamError("req_123", 429, `{"error":{"message":"rate limited"}}`, cause)
func NewUpstreamError(requestID string, status int, details string, err error) *ProxyError {
	if status < 400 || status > 599 {
		status = http.StatusInternalServerError
	}
	return NewError(UpstreamError, MsgUpstreamFailure, status, requestID, details, err)
}

// NewInternalError creates an internal server error with appropriate defaults.
// The cause is kept for logging only and never serialized.
//
// Example:
//
//	err := NewInternalError("req_123", parseErr)
func NewInternalError(requestID string, err error) *ProxyError {
	return NewError(InternalError, MsgInternal, http.StatusInternalServerError, requestID, "", err)
}
