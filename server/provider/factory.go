package provider

import (
	"context"
	"fmt"

	"github.com/teilomillet/gproxy/config"
	"github.com/teilomillet/gproxy/server/metrics"
	"go.uber.org/zap"
)

// NewGenerator builds the Generator selected by cfg.Transport. Without a
// credential it returns a generator that refuses every call; the handler
// rejects those requests before reaching it.
func NewGenerator(ctx context.Context, cfg config.GeminiConfig, credential config.Credential, logger *zap.Logger, m *metrics.Metrics) (Generator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if !credential.IsSet() {
		logger.Warn("Gemini API key not set; every proxy request will fail",
			zap.String("env", cfg.APIKeyEnv),
		)
		return unconfigured{transport: cfg.Transport}, nil
	}

	var g Generator
	switch cfg.Transport {
	case config.TransportREST, "":
		g = NewRESTClient(cfg, credential, logger)
	case config.TransportSDK:
		sdk, err := NewSDKClient(ctx, cfg, credential, logger)
		if err != nil {
			return nil, err
		}
		g = sdk
	default:
		return nil, fmt.Errorf("unknown transport %q", cfg.Transport)
	}

	logger.Info("Gemini generator ready",
		zap.String("transport", g.Name()),
		zap.String("model", cfg.Model),
		zap.Stringer("api_key", credential),
	)
	return Instrument(g, m), nil
}

type unconfigured struct {
	transport string
}

func (u unconfigured) Name() string {
	return u.transport
}

func (u unconfigured) Generate(context.Context, Request) (*string, error) {
	return nil, ErrNoCredential
}
