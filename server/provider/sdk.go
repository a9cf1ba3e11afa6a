package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/teilomillet/gproxy/config"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

// SDKClient calls generateContent through the google genai client.
type SDKClient struct {
	client *genai.Client
	logger *zap.Logger
}

// NewSDKClient creates a genai-backed transport. The client is bound to the
// Gemini API backend, never Vertex AI.
func NewSDKClient(ctx context.Context, cfg config.GeminiConfig, credential config.Credential, logger *zap.Logger) (*SDKClient, error) {
	httpClient := &http.Client{
		Timeout:   cfg.RequestTimeout,
		Transport: statusTransport{next: http.DefaultTransport},
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     credential.Value(),
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
		HTTPOptions: genai.HTTPOptions{
			BaseURL:    cfg.BaseURL,
			APIVersion: cfg.APIVersion,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return &SDKClient{client: client, logger: logger}, nil
}

// Name implements Generator.
func (c *SDKClient) Name() string {
	return config.TransportSDK
}

// Generate implements Generator.
func (c *SDKClient) Generate(ctx context.Context, r Request) (*string, error) {
	contents := []*genai.Content{genai.NewContentFromText(r.Query, genai.RoleUser)}

	status := &upstreamStatus{}
	ctx = context.WithValue(ctx, upstreamStatusKey{}, status)

	resp, err := c.client.Models.GenerateContent(ctx, r.Model, contents, generateConfig(r))
	if err != nil {
		c.logger.Error("Gemini API call failed",
			zap.String("model", r.Model),
			zap.Int("status", status.get()),
			zap.Error(err),
		)
		return nil, sdkError(err, status.get())
	}

	return candidateText(resp), nil
}

func generateConfig(r Request) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}
	if r.SystemInstruction != "" {
		cfg.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{genai.NewPartFromText(r.SystemInstruction)},
		}
	}
	if r.Params != nil {
		cfg.Temperature = r.Params.Temperature
		cfg.MaxOutputTokens = r.Params.MaxOutputTokens
	}
	return cfg
}

// candidateText reads candidates[0].content.parts[0].text. The response's
// Text helper concatenates every part, which is not what callers get from
// the REST transport.
func candidateText(resp *genai.GenerateContentResponse) *string {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil
	}
	cand := resp.Candidates[0]
	if cand == nil || cand.Content == nil || len(cand.Content.Parts) == 0 {
		return nil
	}
	part := cand.Content.Parts[0]
	// Part.Text cannot tell an empty text field from a missing one.
	if part == nil || part.Text == "" {
		return nil
	}
	text := part.Text
	return &text
}

// sdkError maps genai failures onto *Error. genai fills APIError.Code from
// the body's error.code, so a non-2xx status seen on the wire wins over it;
// APIError.Code is used only when no status was recorded.
func sdkError(err error, httpStatus int) *Error {
	apiErr := asAPIError(err)
	if apiErr == nil {
		return &Error{StatusCode: errorStatus(httpStatus), Message: err.Error(), Details: err.Error(), Err: err}
	}

	code := apiErr.Code
	if s := errorStatus(httpStatus); s != 0 {
		code = s
	}
	details := apiErr.Message
	if details == "" {
		details = apiErr.Error()
	}
	return &Error{
		StatusCode: code,
		Message:    apiErr.Message,
		Details:    details,
		Err:        err,
	}
}

// asAPIError finds a genai.APIError in err, by value or by pointer.
func asAPIError(err error) *genai.APIError {
	var val genai.APIError
	if errors.As(err, &val) {
		return &val
	}
	var ptr *genai.APIError
	if errors.As(err, &ptr) && ptr != nil {
		return ptr
	}
	return nil
}

// errorStatus returns status when it is a non-2xx HTTP status, else 0.
func errorStatus(status int) int {
	if status == 0 || (status >= 200 && status < 300) {
		return 0
	}
	return status
}

type upstreamStatusKey struct{}

// upstreamStatus holds the last HTTP status of one Generate call.
type upstreamStatus struct {
	mu   sync.Mutex
	code int
}

func (s *upstreamStatus) set(code int) {
	s.mu.Lock()
	s.code = code
	s.mu.Unlock()
}

func (s *upstreamStatus) get() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.code
}

// statusTransport records response status codes into the upstreamStatus
// carried by the request context.
type statusTransport struct {
	next http.RoundTripper
}

func (t statusTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.next.RoundTrip(req)
	if resp != nil {
		if s, ok := req.Context().Value(upstreamStatusKey{}).(*upstreamStatus); ok {
			s.set(resp.StatusCode)
		}
	}
	return resp, err
}
