package handlers

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teilomillet/gproxy/config"
	"github.com/teilomillet/gproxy/errors"
	"github.com/teilomillet/gproxy/server/mocks"
	"github.com/teilomillet/gproxy/server/processing"
	"github.com/teilomillet/gproxy/server/provider"
	"go.uber.org/zap/zaptest"
)

func newTestHandler(t *testing.T, credential config.Credential, gen provider.Generator) *ProxyHandler {
	t.Helper()
	processor, err := processing.NewProcessor(config.DefaultConfig().Gemini)
	require.NoError(t, err)
	return NewProxyHandler(credential, processor, gen, zaptest.NewLogger(t))
}

func body(s string) *string {
	return &s
}

// TestProxyHandler_Handle walks the request checks in the order the
// handler applies them.
func TestProxyHandler_Handle(t *testing.T) {
	validKey := config.NewCredential("test-key")

	tests := []struct {
		name         string
		credential   config.Credential
		request      Request
		generator    *mocks.MockGenerator
		expectedCode int
		expectedBody string
		expectCalls  int
	}{
		{
			name:         "preflight without credential",
			credential:   config.Credential{},
			request:      Request{Method: http.MethodOptions},
			generator:    mocks.NewTextGenerator("unused"),
			expectedCode: http.StatusNoContent,
			expectedBody: "",
		},
		{
			name:         "missing credential on POST",
			credential:   config.Credential{},
			request:      Request{Method: http.MethodPost, Body: body(`{"userPrompt":"Say hi"}`)},
			generator:    mocks.NewTextGenerator("unused"),
			expectedCode: http.StatusInternalServerError,
			expectedBody: `{"error":"Server configuration error: API Key missing."}`,
		},
		{
			name:         "missing credential wins over method check",
			credential:   config.Credential{},
			request:      Request{Method: http.MethodGet},
			generator:    mocks.NewTextGenerator("unused"),
			expectedCode: http.StatusInternalServerError,
			expectedBody: `{"error":"Server configuration error: API Key missing."}`,
		},
		{
			name:         "GET not allowed",
			credential:   validKey,
			request:      Request{Method: http.MethodGet},
			generator:    mocks.NewTextGenerator("unused"),
			expectedCode: http.StatusMethodNotAllowed,
			expectedBody: `{"error":"Method Not Allowed"}`,
		},
		{
			name:         "PUT with valid body not allowed",
			credential:   validKey,
			request:      Request{Method: http.MethodPut, Body: body(`{"userPrompt":"Say hi"}`)},
			generator:    mocks.NewTextGenerator("unused"),
			expectedCode: http.StatusMethodNotAllowed,
			expectedBody: `{"error":"Method Not Allowed"}`,
		},
		{
			name:         "nil body",
			credential:   validKey,
			request:      Request{Method: http.MethodPost},
			generator:    mocks.NewTextGenerator("unused"),
			expectedCode: http.StatusBadRequest,
			expectedBody: `{"error":"Missing request body"}`,
		},
		{
			name:         "empty body",
			credential:   validKey,
			request:      Request{Method: http.MethodPost, Body: body("")},
			generator:    mocks.NewTextGenerator("unused"),
			expectedCode: http.StatusBadRequest,
			expectedBody: `{"error":"Missing request body"}`,
		},
		{
			name:         "malformed JSON",
			credential:   validKey,
			request:      Request{Method: http.MethodPost, Body: body(`{"userPrompt":`)},
			generator:    mocks.NewTextGenerator("unused"),
			expectedCode: http.StatusInternalServerError,
			expectedBody: `{"error":"Internal server error during processing."}`,
		},
		{
			name:         "missing userPrompt",
			credential:   validKey,
			request:      Request{Method: http.MethodPost, Body: body(`{"systemPrompt":"x"}`)},
			generator:    mocks.NewTextGenerator("unused"),
			expectedCode: http.StatusBadRequest,
			expectedBody: `{"error":"Missing required query field"}`,
		},
		{
			name:         "empty userPrompt",
			credential:   validKey,
			request:      Request{Method: http.MethodPost, Body: body(`{"userPrompt":""}`)},
			generator:    mocks.NewTextGenerator("unused"),
			expectedCode: http.StatusBadRequest,
			expectedBody: `{"error":"Missing required query field"}`,
		},
		{
			name:         "userQuery is not accepted",
			credential:   validKey,
			request:      Request{Method: http.MethodPost, Body: body(`{"userQuery":"Say hi"}`)},
			generator:    mocks.NewTextGenerator("unused"),
			expectedCode: http.StatusBadRequest,
			expectedBody: `{"error":"Missing required query field"}`,
		},
		{
			name:         "success",
			credential:   validKey,
			request:      Request{Method: http.MethodPost, Body: body(`{"userPrompt":"Say hi"}`)},
			generator:    mocks.NewTextGenerator("Hello"),
			expectedCode: http.StatusOK,
			expectedBody: `{"text":"Hello"}`,
			expectCalls:  1,
		},
		{
			name:         "no text in upstream answer",
			credential:   validKey,
			request:      Request{Method: http.MethodPost, Body: body(`{"userPrompt":"Say hi"}`)},
			generator:    mocks.NewMockGenerator(nil),
			expectedCode: http.StatusOK,
			expectedBody: `{"text":null}`,
			expectCalls:  1,
		},
		{
			name:       "upstream rate limit",
			credential: validKey,
			request:    Request{Method: http.MethodPost, Body: body(`{"userPrompt":"Say hi"}`)},
			generator: mocks.NewFailingGenerator(&provider.Error{
				StatusCode: http.StatusTooManyRequests,
				Message:    "quota",
				Details:    `{"error":{"message":"quota"}}`,
			}),
			expectedCode: http.StatusTooManyRequests,
			expectedBody: `{"error":"External API error.","details":"{\"error\":{\"message\":\"quota\"}}"}`,
			expectCalls:  1,
		},
		{
			name:         "upstream failure without status",
			credential:   validKey,
			request:      Request{Method: http.MethodPost, Body: body(`{"userPrompt":"Say hi"}`)},
			generator:    mocks.NewFailingGenerator(&provider.Error{Message: "connection refused"}),
			expectedCode: http.StatusInternalServerError,
			expectedBody: `{"error":"External API error.","details":"connection refused"}`,
			expectCalls:  1,
		},
		{
			name:         "untyped generator error",
			credential:   validKey,
			request:      Request{Method: http.MethodPost, Body: body(`{"userPrompt":"Say hi"}`)},
			generator:    mocks.NewFailingGenerator(stderrors.New("boom")),
			expectedCode: http.StatusInternalServerError,
			expectedBody: `{"error":"External API error.","details":"boom"}`,
			expectCalls:  1,
		},
		{
			name:         "malformed upstream answer",
			credential:   validKey,
			request:      Request{Method: http.MethodPost, Body: body(`{"userPrompt":"Say hi"}`)},
			generator:    mocks.NewFailingGenerator(provider.ErrMalformedResponse),
			expectedCode: http.StatusInternalServerError,
			expectedBody: `{"error":"Internal server error during processing."}`,
			expectCalls:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(t, tt.credential, tt.generator)

			resp := h.Handle(context.Background(), tt.request)

			assert.Equal(t, tt.expectedCode, resp.StatusCode)
			assert.Equal(t, tt.expectedBody, resp.Body)
			assert.Equal(t, "*", resp.Headers["Access-Control-Allow-Origin"])
			assert.Equal(t, tt.expectCalls, tt.generator.Calls())

			if resp.StatusCode != http.StatusNoContent {
				assert.Equal(t, "application/json", resp.Headers["Content-Type"])
				assert.True(t, json.Valid([]byte(resp.Body)))
			}
		})
	}
}

func TestProxyHandler_Preflight(t *testing.T) {
	h := newTestHandler(t, config.NewCredential("k"), mocks.NewTextGenerator("unused"))

	resp := h.Handle(context.Background(), Request{Method: http.MethodOptions, Body: body("not json")})

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Empty(t, resp.Body)
	assert.Equal(t, map[string]string{
		"Access-Control-Allow-Origin":  "*",
		"Access-Control-Allow-Methods": "POST, OPTIONS",
		"Access-Control-Allow-Headers": "Content-Type",
	}, resp.Headers)
}

func TestProxyHandler_UpstreamRequest(t *testing.T) {
	gen := mocks.NewTextGenerator("ok")
	h := newTestHandler(t, config.NewCredential("k"), gen)

	h.Handle(context.Background(), Request{Method: http.MethodPost, Body: body(`{"userPrompt":"Say hi"}`)})
	h.Handle(context.Background(), Request{Method: http.MethodPost, Body: body(`{"userPrompt":"Bonjour","systemPrompt":"Answer in French."}`)})

	reqs := gen.Requests()
	require.Len(t, reqs, 2)

	assert.Equal(t, config.DefaultModel, reqs[0].Model)
	assert.Equal(t, "Say hi", reqs[0].Query)
	assert.Equal(t, config.DefaultSystemPrompt, reqs[0].SystemInstruction)

	last, ok := gen.LastRequest()
	require.True(t, ok)
	assert.Equal(t, "Bonjour", last.Query)
	assert.Equal(t, "Answer in French.", last.SystemInstruction)
	assert.Equal(t, reqs[1], last)
}

func TestProxyHandler_Deterministic(t *testing.T) {
	h := newTestHandler(t, config.NewCredential("k"), mocks.NewTextGenerator("Hello <b>&</b>"))
	req := Request{Method: http.MethodPost, Body: body(`{"userPrompt":"Say hi"}`)}

	first := h.Handle(context.Background(), req)
	second := h.Handle(context.Background(), req)

	assert.Equal(t, first, second)

	var decoded struct {
		Text string `json:"text"`
	}
	require.NoError(t, json.Unmarshal([]byte(first.Body), &decoded))
	assert.Equal(t, "Hello <b>&</b>", decoded.Text)
}

func TestProxyHandler_ErrorEnvelope(t *testing.T) {
	h := newTestHandler(t, config.NewCredential("k"), mocks.NewFailingGenerator(&provider.Error{
		StatusCode: http.StatusBadRequest,
		Details:    "API key not valid",
	}))

	resp := h.Handle(context.Background(), Request{Method: http.MethodPost, Body: body(`{"userPrompt":"x"}`)})

	var envelope errors.ErrorResponse
	require.NoError(t, json.Unmarshal([]byte(resp.Body), &envelope))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, errors.MsgUpstreamFailure, envelope.Error)
	assert.Equal(t, "API key not valid", envelope.Details)
}

func TestProxyHandler_ServeHTTP(t *testing.T) {
	gen := mocks.NewTextGenerator("Hello")
	h := newTestHandler(t, config.NewCredential("k"), gen)

	t.Run("success", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/gemini-proxy", strings.NewReader(`{"userPrompt":"Say hi"}`))
		rec := httptest.NewRecorder()

		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, `{"text":"Hello"}`, rec.Body.String())
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("no body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/gemini-proxy", nil)
		rec := httptest.NewRecorder()

		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, `{"error":"Missing request body"}`, rec.Body.String())
	})

	t.Run("preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/gemini-proxy", nil)
		rec := httptest.NewRecorder()

		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Empty(t, rec.Body.String())
		assert.Equal(t, "POST, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
	})

	t.Run("body too large", func(t *testing.T) {
		calls := gen.Calls()
		big := `{"userPrompt":"` + strings.Repeat("a", MaxBodyBytes) + `"}`
		req := httptest.NewRequest(http.MethodPost, "/gemini-proxy", strings.NewReader(big))
		rec := httptest.NewRecorder()

		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, `{"error":"Request field too large"}`, rec.Body.String())
		assert.Equal(t, calls, gen.Calls())
	})
}

func TestProxyHandler_ServeHTTPWithoutCredential(t *testing.T) {
	gen := mocks.NewTextGenerator("unused")
	h := newTestHandler(t, config.Credential{}, gen)

	req := httptest.NewRequest(http.MethodPost, "/gemini-proxy", strings.NewReader(`{"userPrompt":"Say hi"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, `{"error":"Server configuration error: API Key missing."}`, rec.Body.String())
	assert.Zero(t, gen.Calls())
}
