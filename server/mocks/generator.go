package mocks

import (
	"context"
	"sync"

	"github.com/teilomillet/gproxy/server/provider"
)

// MockGenerator implements provider.Generator for tests. It records every
// request it receives so tests can assert on call counts and payloads.
//
// Example usage:
//
//	gen := mocks.NewMockGenerator(func(ctx context.Context, req provider.Request) (*string, error) {
//	    text := "Hello"
//	    return &text, nil
//	})
type MockGenerator struct {
	GenerateFunc func(context.Context, provider.Request) (*string, error)
	Transport    string

	mu       sync.Mutex
	requests []provider.Request
}

// NewMockGenerator creates a MockGenerator. A nil generateFunc answers every
// call with no text and no error.
func NewMockGenerator(generateFunc func(context.Context, provider.Request) (*string, error)) *MockGenerator {
	return &MockGenerator{
		GenerateFunc: generateFunc,
		Transport:    "mock",
	}
}

// NewTextGenerator returns a generator that always answers with text.
func NewTextGenerator(text string) *MockGenerator {
	return NewMockGenerator(func(context.Context, provider.Request) (*string, error) {
		out := text
		return &out, nil
	})
}

// NewFailingGenerator returns a generator that always fails with err.
func NewFailingGenerator(err error) *MockGenerator {
	return NewMockGenerator(func(context.Context, provider.Request) (*string, error) {
		return nil, err
	})
}

// Name implements provider.Generator.
func (m *MockGenerator) Name() string {
	return m.Transport
}

// Generate implements provider.Generator.
func (m *MockGenerator) Generate(ctx context.Context, req provider.Request) (*string, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, req)
	}
	return nil, nil
}

// Calls returns the number of Generate calls so far.
func (m *MockGenerator) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Requests returns a copy of the requests received so far.
func (m *MockGenerator) Requests() []provider.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]provider.Request(nil), m.requests...)
}

// LastRequest returns the most recent request, or false if none was made.
func (m *MockGenerator) LastRequest() (provider.Request, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.requests) == 0 {
		return provider.Request{}, false
	}
	return m.requests[len(m.requests)-1], true
}

var _ provider.Generator = (*MockGenerator)(nil)
