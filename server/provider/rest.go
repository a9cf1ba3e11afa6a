package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/teilomillet/gproxy/config"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

// textPath locates the generated text in a generateContent response.
const textPath = "candidates.0.content.parts.0.text"

type restPart struct {
	Text string `json:"text"`
}

type restContent struct {
	Parts []restPart `json:"parts"`
}

// RESTClient calls models/{model}:generateContent over HTTPS with the key
// passed as a query parameter.
type RESTClient struct {
	client     *fasthttp.Client
	baseURL    string
	apiVersion string
	credential config.Credential
	timeout    time.Duration
	logger     *zap.Logger
}

// NewRESTClient creates a REST transport for the given configuration.
func NewRESTClient(cfg config.GeminiConfig, credential config.Credential, logger *zap.Logger) *RESTClient {
	client := &fasthttp.Client{
		Name:                "gproxy",
		ReadTimeout:         cfg.RequestTimeout,
		WriteTimeout:        cfg.RequestTimeout,
		MaxIdleConnDuration: 90 * time.Second,
	}

	return &RESTClient{
		client:     client,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiVersion: strings.Trim(cfg.APIVersion, "/"),
		credential: credential,
		timeout:    cfg.RequestTimeout,
		logger:     logger,
	}
}

// Name implements Generator.
func (c *RESTClient) Name() string {
	return config.TransportREST
}

// Generate implements Generator.
func (c *RESTClient) Generate(ctx context.Context, r Request) (*string, error) {
	if err := ctx.Err(); err != nil {
		return nil, &Error{Message: err.Error(), Details: err.Error(), Err: err}
	}

	payload, err := BuildPayload(r)
	if err != nil {
		return nil, fmt.Errorf("build payload: %w", err)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.endpoint(r.Model))
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.SetBody(payload)

	if err := c.do(ctx, req, resp); err != nil {
		c.logger.Error("Gemini API call failed",
			zap.String("model", r.Model),
			zap.Error(err),
		)
		return nil, &Error{Message: err.Error(), Details: err.Error(), Err: err}
	}

	// The body buffer is released with the response.
	body := append([]byte(nil), resp.Body()...)
	status := resp.StatusCode()

	if status < 200 || status > 299 {
		c.logger.Error("Gemini API call failed",
			zap.String("model", r.Model),
			zap.Int("status", status),
			zap.ByteString("body", body),
		)
		return nil, &Error{
			StatusCode: status,
			Message:    errorMessage(status, body),
			Details:    string(body),
		}
	}

	return ExtractText(body)
}

// endpoint builds {base}/{version}/models/{model}:generateContent?key=...
func (c *RESTClient) endpoint(model string) string {
	return fmt.Sprintf("%s/%s/models/%s:generateContent?key=%s",
		c.baseURL,
		c.apiVersion,
		url.PathEscape(model),
		url.QueryEscape(c.credential.Value()),
	)
}

// do honours the context deadline when there is one; fasthttp has no
// native context support.
func (c *RESTClient) do(ctx context.Context, req *fasthttp.Request, resp *fasthttp.Response) error {
	if deadline, ok := ctx.Deadline(); ok {
		return c.client.DoDeadline(req, resp, deadline)
	}
	if c.timeout > 0 {
		return c.client.DoTimeout(req, resp, c.timeout)
	}
	return c.client.Do(req, resp)
}

// BuildPayload renders the generateContent request body:
//
//	{"contents":[{"parts":[{"text":...}]}],
//	 "systemInstruction":{"parts":[{"text":...}]},
//	 "generationConfig":{...}}
//
// systemInstruction is omitted when empty; generationConfig when no
// parameter is set.
func BuildPayload(r Request) ([]byte, error) {
	out, err := sjson.SetBytes([]byte(`{}`), "contents", []restContent{
		{Parts: []restPart{{Text: r.Query}}},
	})
	if err != nil {
		return nil, err
	}

	if r.SystemInstruction != "" {
		out, err = sjson.SetBytes(out, "systemInstruction", restContent{
			Parts: []restPart{{Text: r.SystemInstruction}},
		})
		if err != nil {
			return nil, err
		}
	}

	if r.Params != nil {
		if r.Params.Temperature != nil {
			out, err = sjson.SetBytes(out, "generationConfig.temperature", *r.Params.Temperature)
			if err != nil {
				return nil, err
			}
		}
		if r.Params.MaxOutputTokens > 0 {
			out, err = sjson.SetBytes(out, "generationConfig.maxOutputTokens", r.Params.MaxOutputTokens)
			if err != nil {
				return nil, err
			}
		}
	}

	return out, nil
}

// ExtractText pulls the generated text out of a generateContent response
// body. A missing or null text is not an error.
func ExtractText(body []byte) (*string, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: invalid JSON", ErrMalformedResponse)
	}
	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return nil, fmt.Errorf("%w: expected an object", ErrMalformedResponse)
	}

	text := root.Get(textPath)
	if !text.Exists() || text.Type == gjson.Null {
		return nil, nil
	}
	s := text.String()
	return &s, nil
}

// errorMessage prefers the API's error.message over the status text.
func errorMessage(status int, body []byte) string {
	if msg := gjson.GetBytes(body, "error.message"); msg.Exists() && msg.String() != "" {
		return msg.String()
	}
	if text := http.StatusText(status); text != "" {
		return text
	}
	return fmt.Sprintf("status %d", status)
}
