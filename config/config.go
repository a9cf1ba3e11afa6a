// Package config provides configuration management for the gproxy server.
// It covers the HTTP host, the Gemini upstream binding, logging and metrics,
// and resolves the API credential once at startup.
package config

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultModel is the Gemini model used when none is configured.
	DefaultModel = "gemini-2.5-flash-preview-05-20"

	// DefaultSystemPrompt is sent as the system instruction when the
	// caller does not provide one.
	DefaultSystemPrompt = "You are a helpful and professional business assistant."

	// DefaultAPIKeyEnv names the environment variable holding the credential.
	DefaultAPIKeyEnv = "GEMINI_API_KEY"

	// DefaultBaseURL is the public Gemini API host.
	DefaultBaseURL = "https://generativelanguage.googleapis.com"

	// TransportREST calls generateContent over plain HTTPS.
	TransportREST = "rest"

	// TransportSDK calls generateContent through the google genai client.
	TransportSDK = "sdk"
)

var validate = validator.New()

// Config represents the complete server configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Gemini  GeminiConfig  `yaml:"gemini"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// ServerConfig holds server-specific configuration for the HTTP server.
// It defines timeouts, limits, and operational parameters.
type ServerConfig struct {
	// Port specifies the HTTP server port (default: 8080)
	Port int `yaml:"port"`

	// ProxyPath is the route the proxy handler is mounted on (default: /gemini-proxy)
	ProxyPath string `yaml:"proxy_path"`

	// ReadTimeout is the maximum duration for reading the entire request,
	// including the body (default: 30s)
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of the response.
	// It must leave room for the upstream call (default: 90s)
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// MaxHeaderBytes controls the maximum number of bytes the server will
	// read parsing the request header's keys and values (default: 1MB)
	MaxHeaderBytes int `yaml:"max_header_bytes"`

	// ShutdownTimeout specifies how long to wait for the server to shutdown
	// gracefully before forcing termination (default: 30s)
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// GeminiConfig holds the upstream binding configuration.
type GeminiConfig struct {
	// Transport selects the client used to reach the API: "rest" or "sdk"
	Transport string `yaml:"transport" validate:"required,oneof=rest sdk"`

	// Model is the fixed model identifier every request is sent to
	Model string `yaml:"model" validate:"required"`

	// BaseURL is the API host. Only the scheme and host are used.
	BaseURL string `yaml:"base_url" validate:"required,url"`

	// APIVersion is the path segment preceding /models (default: v1beta)
	APIVersion string `yaml:"api_version" validate:"required"`

	// APIKeyEnv names the environment variable the credential is read from.
	// The key itself never lives in the config file.
	APIKeyEnv string `yaml:"api_key_env" validate:"required"`

	// DefaultSystemPrompt is used when the caller omits systemPrompt
	DefaultSystemPrompt string `yaml:"default_system_prompt" validate:"required"`

	// RequestTimeout bounds a single upstream call. Zero leaves the
	// client's own default in place.
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// Generation holds optional generation parameters
	Generation *GenerationConfig `yaml:"generation,omitempty" validate:"omitempty"`
}

// GenerationConfig holds optional generation parameters forwarded upstream.
type GenerationConfig struct {
	Temperature     *float32 `yaml:"temperature,omitempty" validate:"omitempty,gte=0,lte=2"`
	MaxOutputTokens int32    `yaml:"max_output_tokens,omitempty" validate:"gte=0"`
}

// LoggingConfig holds logging-specific configuration.
type LoggingConfig struct {
	// Level sets logging verbosity: debug, info, warn, error
	Level string `yaml:"level"`

	// Format specifies log output format: json or text
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// DefaultConfig returns the configuration used when no file is given, and
// the base every config file is decoded on top of.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ProxyPath:       "/gemini-proxy",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    90 * time.Second,
			MaxHeaderBytes:  1 << 20,
			ShutdownTimeout: 30 * time.Second,
		},
		Gemini: GeminiConfig{
			Transport:           TransportREST,
			Model:               DefaultModel,
			BaseURL:             DefaultBaseURL,
			APIVersion:          "v1beta",
			APIKeyEnv:           DefaultAPIKeyEnv,
			DefaultSystemPrompt: DefaultSystemPrompt,
			RequestTimeout:      60 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// LoadFile loads configuration from a YAML file
func LoadFile(filename string) (*Config, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("open config file: %w", err)
	}
	defer f.Close()

	return Load(f)
}

// expandEnvVars resolves ${VAR} and ${VAR:-default} references in a single
// pass. A bare "$" is kept as is, and values taken from the environment are
// not expanded again.
//
// Example Transformations:
//   - "${PORT:-8080}" → "8080" (if PORT is unset)
//   - "https://${HOST}/v1" → "https://api.example.com/v1"
//   - "costs $5" → "costs $5"
func expandEnvVars(s string) (string, error) {
	var b strings.Builder
	b.Grow(len(s))

	for {
		i := strings.Index(s, "${")
		if i < 0 {
			b.WriteString(s)
			return b.String(), nil
		}
		end := strings.IndexByte(s[i+2:], '}')
		if end < 0 {
			return "", fmt.Errorf("invalid syntax: unterminated variable reference")
		}

		b.WriteString(s[:i])
		b.WriteString(lookupEnv(s[i+2 : i+2+end]))
		s = s[i+2+end+1:]
	}
}

func lookupEnv(key string) string {
	if i := strings.Index(key, ":-"); i >= 0 {
		if val := os.Getenv(key[:i]); val != "" {
			return val
		}
		return key[i+2:]
	}
	return os.Getenv(key)
}

// Load loads configuration from an io.Reader
func Load(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expandedData, err := expandEnvVars(string(data))
	if err != nil {
		return nil, fmt.Errorf("expand environment variables: %w", err)
	}

	// Start with defaults
	config := DefaultConfig()

	dec := yaml.NewDecoder(strings.NewReader(expandedData))
	if err := dec.Decode(config); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return config, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Server validation
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if !strings.HasPrefix(c.Server.ProxyPath, "/") {
		return fmt.Errorf("proxy path must start with '/': %q", c.Server.ProxyPath)
	}
	if c.Server.ReadTimeout < 0 {
		return fmt.Errorf("negative read timeout: %v", c.Server.ReadTimeout)
	}
	if c.Server.WriteTimeout < 0 {
		return fmt.Errorf("negative write timeout: %v", c.Server.WriteTimeout)
	}
	if c.Server.MaxHeaderBytes < 0 {
		return fmt.Errorf("negative max header bytes: %d", c.Server.MaxHeaderBytes)
	}
	if c.Server.ShutdownTimeout < 0 {
		return fmt.Errorf("negative shutdown timeout: %v", c.Server.ShutdownTimeout)
	}

	// Gemini validation
	if err := validate.Struct(c.Gemini); err != nil {
		return fmt.Errorf("invalid gemini config: %w", err)
	}
	if c.Gemini.RequestTimeout < 0 {
		return fmt.Errorf("negative request timeout: %v", c.Gemini.RequestTimeout)
	}

	// Logging validation
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		// Valid levels
	default:
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	switch c.Logging.Format {
	case "json", "text":
		// Valid formats
	default:
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics path must start with '/': %q", c.Metrics.Path)
	}
	if c.Metrics.Enabled && c.Metrics.Path == c.Server.ProxyPath {
		return fmt.Errorf("metrics path collides with proxy path: %s", c.Metrics.Path)
	}

	return nil
}
