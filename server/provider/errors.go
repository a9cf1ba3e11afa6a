package provider

import "errors"

var (
	// ErrMalformedResponse indicates a successful status with a body that
	// cannot be interpreted as a generateContent response.
	ErrMalformedResponse = errors.New("malformed upstream response")

	// ErrNoCredential is returned by the generator built without an API key.
	ErrNoCredential = errors.New("gemini API key is not configured")
)
