// Package provider binds the proxy to the Gemini generative-text API.
//
// A Generator performs exactly one generateContent call per invocation and
// never retries. Two transports implement it: a plain HTTPS client (rest)
// and the google genai client (sdk). Both report upstream failures as *Error
// so the handler can map them onto the caller's response.
package provider

import (
	"context"
	"fmt"
)

// GenerationParams holds optional generation settings. A nil Temperature
// or a zero MaxOutputTokens leaves the upstream default in place.
type GenerationParams struct {
	Temperature     *float32
	MaxOutputTokens int32
}

// Request is the upstream request built once per invocation.
type Request struct {
	Model             string
	Query             string
	SystemInstruction string
	Params            *GenerationParams
}

// Generator is the GenerativeTextService seen by the handler.
//
// Generate returns the text found at candidates[0].content.parts[0].text,
// or nil when the upstream answered successfully without any text.
type Generator interface {
	Generate(ctx context.Context, req Request) (*string, error)

	// Name identifies the transport in logs and metrics.
	Name() string
}

// Error is an upstream failure. StatusCode is zero when no HTTP response
// was received (transport failure).
type Error struct {
	StatusCode int
	Message    string

	// Details is the diagnostic text passed back to the caller, usually
	// the raw upstream error payload.
	Details string

	Err error
}

func (e *Error) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("gemini request failed: %s", e.Message)
	}
	return fmt.Sprintf("gemini returned %d: %s", e.StatusCode, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}
