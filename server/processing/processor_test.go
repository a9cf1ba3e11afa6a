package processing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teilomillet/gproxy/config"
	"github.com/teilomillet/gproxy/server/validation"
)

// TestNewProcessor verifies that a processor refuses to start without a
// model or a default system instruction.
func TestNewProcessor(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.GeminiConfig)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*config.GeminiConfig) {}},
		{name: "empty model", mutate: func(c *config.GeminiConfig) { c.Model = "" }, wantErr: true},
		{name: "blank system prompt", mutate: func(c *config.GeminiConfig) { c.DefaultSystemPrompt = "  " }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig().Gemini
			tt.mutate(&cfg)

			p, err := NewProcessor(cfg)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, p)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, config.DefaultModel, p.Model())
		})
	}
}

// TestBuildRequest covers the system instruction fallback and the fixed
// model.
func TestBuildRequest(t *testing.T) {
	p, err := NewProcessor(config.DefaultConfig().Gemini)
	require.NoError(t, err)

	t.Run("default system instruction", func(t *testing.T) {
		req := p.BuildRequest(&validation.ProxyRequest{UserPrompt: "Say hi"})
		assert.Equal(t, config.DefaultModel, req.Model)
		assert.Equal(t, "Say hi", req.Query)
		assert.Equal(t, config.DefaultSystemPrompt, req.SystemInstruction)
		assert.Nil(t, req.Params)
	})

	t.Run("caller system instruction", func(t *testing.T) {
		req := p.BuildRequest(&validation.ProxyRequest{UserPrompt: "Say hi", SystemPrompt: "Answer in French."})
		assert.Equal(t, "Answer in French.", req.SystemInstruction)
	})

	t.Run("query forwarded verbatim", func(t *testing.T) {
		query := "  spaced\n\"quoted\"  "
		req := p.BuildRequest(&validation.ProxyRequest{UserPrompt: query})
		assert.Equal(t, query, req.Query)
	})
}

func TestBuildRequest_GenerationParams(t *testing.T) {
	temp := float32(0.3)
	cfg := config.DefaultConfig().Gemini
	cfg.Generation = &config.GenerationConfig{Temperature: &temp, MaxOutputTokens: 512}

	p, err := NewProcessor(cfg)
	require.NoError(t, err)

	first := p.BuildRequest(&validation.ProxyRequest{UserPrompt: "a"})
	require.NotNil(t, first.Params)
	require.NotNil(t, first.Params.Temperature)
	assert.Equal(t, float32(0.3), *first.Params.Temperature)
	assert.Equal(t, int32(512), first.Params.MaxOutputTokens)

	// Requests do not share parameter structs.
	first.Params.MaxOutputTokens = 1
	second := p.BuildRequest(&validation.ProxyRequest{UserPrompt: "b"})
	assert.Equal(t, int32(512), second.Params.MaxOutputTokens)

	// Changing the config after construction has no effect.
	temp = 1.5
	third := p.BuildRequest(&validation.ProxyRequest{UserPrompt: "c"})
	assert.Equal(t, float32(0.3), *third.Params.Temperature)
}

func TestBuildRequest_EmptyGenerationConfig(t *testing.T) {
	cfg := config.DefaultConfig().Gemini
	cfg.Generation = &config.GenerationConfig{}

	p, err := NewProcessor(cfg)
	require.NoError(t, err)
	assert.Nil(t, p.BuildRequest(&validation.ProxyRequest{UserPrompt: "a"}).Params)
}
