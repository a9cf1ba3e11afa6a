// Package processing translates validated proxy requests into upstream
// generateContent requests.
package processing

import (
	"fmt"
	"strings"

	"github.com/teilomillet/gproxy/config"
	"github.com/teilomillet/gproxy/server/provider"
	"github.com/teilomillet/gproxy/server/validation"
)

// Processor holds the defaults applied to every request:
//   - the model every call is sent to
//   - the system instruction used when the caller sends none
//   - optional generation parameters
//
// A Processor is immutable after construction and safe for concurrent use.
type Processor struct {
	model         string
	defaultPrompt string
	params        *provider.GenerationParams
}

// NewProcessor creates a processor from the Gemini configuration.
//
// Returns an error if the model or the default system prompt is empty,
// so that a misconfigured server fails at startup rather than per request.
func NewProcessor(cfg config.GeminiConfig) (*Processor, error) {
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, fmt.Errorf("model is required")
	}
	if strings.TrimSpace(cfg.DefaultSystemPrompt) == "" {
		return nil, fmt.Errorf("default system prompt is required")
	}

	p := &Processor{
		model:         cfg.Model,
		defaultPrompt: cfg.DefaultSystemPrompt,
	}
	if gen := cfg.Generation; gen != nil && (gen.Temperature != nil || gen.MaxOutputTokens > 0) {
		params := &provider.GenerationParams{MaxOutputTokens: gen.MaxOutputTokens}
		if gen.Temperature != nil {
			t := *gen.Temperature
			params.Temperature = &t
		}
		p.params = params
	}
	return p, nil
}

// Model returns the configured model identifier.
func (p *Processor) Model() string {
	return p.model
}

// BuildRequest creates the upstream request for a validated body. The
// caller's systemPrompt wins when non-empty; otherwise the default
// instruction is used. The query is forwarded unchanged.
func (p *Processor) BuildRequest(req *validation.ProxyRequest) provider.Request {
	system := req.SystemPrompt
	if system == "" {
		system = p.defaultPrompt
	}

	out := provider.Request{
		Model:             p.model,
		Query:             req.UserPrompt,
		SystemInstruction: system,
	}
	if p.params != nil {
		params := *p.params
		out.Params = &params
	}
	return out
}
