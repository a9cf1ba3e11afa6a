// Package handlers provides the HTTP handlers for the gproxy server.
//
// ProxyHandler forwards a single prompt to the Gemini API and answers with
// the generated text. Its core, Handle, works on plain values so it can be
// driven by any host; ServeHTTP adapts it to net/http.
//
// The handler checks, in order:
//  1. OPTIONS preflight, answered with 204 and nothing else
//  2. the API credential, without which nothing is forwarded
//  3. the method (POST only)
//  4. the body and its userPrompt field
//
// Every response, success or error, carries Access-Control-Allow-Origin: *.
package handlers

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"

	"github.com/teilomillet/gproxy/config"
	"github.com/teilomillet/gproxy/errors"
	"github.com/teilomillet/gproxy/server/middleware"
	"github.com/teilomillet/gproxy/server/processing"
	"github.com/teilomillet/gproxy/server/provider"
	"github.com/teilomillet/gproxy/server/validation"
	"go.uber.org/zap"
)

// MaxBodyBytes caps how much of a request body ServeHTTP reads. It leaves
// room for the largest prompt and system prompt in multi-byte UTF-8.
const MaxBodyBytes = 4 << 20

// Response header values.
const (
	headerAllowOrigin  = "Access-Control-Allow-Origin"
	headerAllowMethods = "Access-Control-Allow-Methods"
	headerAllowHeaders = "Access-Control-Allow-Headers"
	headerContentType  = "Content-Type"

	allowOrigin  = "*"
	allowMethods = "POST, OPTIONS"
	allowHeaders = "Content-Type"
	contentJSON  = "application/json"
)

// Request is a host-independent view of an inbound invocation. A nil Body
// means the request carried none.
type Request struct {
	Method string
	Body   *string
}

// Response is the outcome of one invocation. Body is JSON for every status
// except the empty 204 preflight answer.
type Response struct {
	StatusCode int
	Headers    map[string]string
	Body       string
}

// textResponse is the success envelope. A nil Text encodes as null.
type textResponse struct {
	Text *string `json:"text"`
}

// ProxyHandler forwards prompts to a provider.Generator. It holds no
// mutable state and is safe for concurrent use.
type ProxyHandler struct {
	credential config.Credential
	processor  *processing.Processor
	generator  provider.Generator
	logger     *zap.Logger
}

// NewProxyHandler creates a handler. The credential is captured once; the
// handler never re-reads the environment.
func NewProxyHandler(credential config.Credential, processor *processing.Processor, generator provider.Generator, logger *zap.Logger) *ProxyHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProxyHandler{
		credential: credential,
		processor:  processor,
		generator:  generator,
		logger:     logger,
	}
}

// Handle runs one invocation. It never returns an error: every failure is
// encoded in the Response. The generator is called at most once.
func (h *ProxyHandler) Handle(ctx context.Context, req Request) Response {
	requestID := middleware.GetRequestID(ctx)
	logger := h.logger.With(
		zap.String("request_id", requestID),
		zap.String("method", req.Method),
	)

	if req.Method == http.MethodOptions {
		return preflight()
	}

	if !h.credential.IsSet() {
		return h.fail(logger, errors.NewConfigError(requestID))
	}

	if req.Method != http.MethodPost {
		return h.fail(logger, errors.NewMethodError(requestID))
	}

	if req.Body == nil || *req.Body == "" {
		return h.fail(logger, errors.NewValidationError(requestID, errors.MsgMissingBody, nil))
	}

	body, err := validation.DecodeProxyRequest([]byte(*req.Body))
	if err != nil {
		return h.fail(logger, decodeError(requestID, err))
	}

	upstreamReq := h.processor.BuildRequest(body)
	logger.Debug("Calling Gemini",
		zap.String("transport", h.generator.Name()),
		zap.String("model", upstreamReq.Model),
		zap.Bool("custom_system_prompt", body.SystemPrompt != ""),
		zap.Int("prompt_length", len(upstreamReq.Query)),
	)

	text, err := h.generator.Generate(ctx, upstreamReq)
	if err != nil {
		return h.fail(logger, upstreamError(requestID, err))
	}

	if text == nil {
		logger.Info("Gemini returned no text")
	} else {
		logger.Debug("Gemini response received", zap.Int("text_length", len(*text)))
	}

	out, err := json.Marshal(textResponse{Text: text})
	if err != nil {
		return h.fail(logger, errors.NewInternalError(requestID, fmt.Errorf("encode response: %w", err)))
	}
	return jsonResponse(http.StatusOK, string(out))
}

// ServeHTTP implements http.Handler on top of Handle. The body is only read
// when Handle would look at it.
func (h *ProxyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	req := Request{Method: r.Method}

	if r.Method == http.MethodPost && h.credential.IsSet() && r.Body != nil && r.Body != http.NoBody {
		raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
		if err != nil {
			requestID := middleware.GetRequestID(r.Context())
			var proxyErr *errors.ProxyError
			var tooLarge *http.MaxBytesError
			if stderrors.As(err, &tooLarge) {
				proxyErr = errors.NewValidationError(requestID, errors.MsgFieldTooLarge, err)
			} else {
				proxyErr = errors.NewInternalError(requestID, fmt.Errorf("read body: %w", err))
			}
			writeResponse(w, h.fail(h.logger, proxyErr))
			return
		}
		body := string(raw)
		req.Body = &body
	}

	writeResponse(w, h.Handle(r.Context(), req))
}

func (h *ProxyHandler) fail(logger *zap.Logger, err *errors.ProxyError) Response {
	errors.LogError(logger, err, err.RequestID)
	return jsonResponse(err.Code, string(err.Body()))
}

// decodeError maps body decoding failures. A body that is not a JSON
// object is a processing failure (500); a missing or oversized field is
// the caller's to fix (400).
func decodeError(requestID string, err error) *errors.ProxyError {
	var fieldErr *validation.FieldError
	if stderrors.As(err, &fieldErr) {
		msg := errors.MsgFieldTooLarge
		if fieldErr.Missing() {
			msg = errors.MsgMissingQuery
		}
		return errors.NewValidationError(requestID, msg, err)
	}
	return errors.NewInternalError(requestID, err)
}

// upstreamError maps generator failures. A 2xx answer that could not be
// read is reported as an internal error without details.
func upstreamError(requestID string, err error) *errors.ProxyError {
	if stderrors.Is(err, provider.ErrMalformedResponse) {
		return errors.NewInternalError(requestID, err)
	}

	var upErr *provider.Error
	if stderrors.As(err, &upErr) {
		details := upErr.Details
		if details == "" {
			details = upErr.Message
		}
		return errors.NewUpstreamError(requestID, upErr.StatusCode, details, err)
	}
	return errors.NewUpstreamError(requestID, 0, err.Error(), err)
}

func preflight() Response {
	return Response{
		StatusCode: http.StatusNoContent,
		Headers: map[string]string{
			headerAllowOrigin:  allowOrigin,
			headerAllowMethods: allowMethods,
			headerAllowHeaders: allowHeaders,
		},
	}
}

func jsonResponse(status int, body string) Response {
	return Response{
		StatusCode: status,
		Headers: map[string]string{
			headerContentType: contentJSON,
			headerAllowOrigin: allowOrigin,
		},
		Body: body,
	}
}

func writeResponse(w http.ResponseWriter, resp Response) {
	for k, v := range resp.Headers {
		w.Header().Set(k, v)
	}
	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		io.WriteString(w, resp.Body)
	}
}
