// Package errors provides error response utilities.
package errors

import (
	"errors"
)

// ErrorResponse is the decoded form of the envelope written by WriteError.
// Clients and tests use it to read error bodies.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// As is a wrapper around errors.As for better error type assertion
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
