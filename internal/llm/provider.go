// Package llm holds the report-generation providers and the cascade that
// tries them in order.
package llm

import (
	"context"
	"time"

	"github.com/ppiankov/verity/internal/model"
)

// Provider defines the interface for generation providers
type Provider interface {
	// Name returns the provider name
	Name() string

	// Dialect describes how prompts must be shaped for this provider
	Dialect() Dialect

	// Generate renders a completion for the prompt. Rate-limit conditions are
	// reported as *RateLimitError so callers can tell them from other failures.
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)

	// IsAvailable checks if the provider is properly configured and accessible
	IsAvailable(ctx context.Context) bool
}

// GenerateRequest contains the input for one generation call
type GenerateRequest struct {
	// Prompt is the fully rendered user prompt
	Prompt string

	// System is an optional system instruction
	System string

	// MaxTokens limits the response length (0 = provider config)
	MaxTokens int

	// Temperature overrides the provider default when set
	Temperature *float32

	// JSON asks providers that support it for a JSON object response
	JSON bool
}

// GenerateResponse contains the provider output
type GenerateResponse struct {
	Text       string
	Model      string
	TokensUsed int
}

// Dialect captures per-provider formatting quirks the prompt compensates for
type Dialect struct {
	// NoTables forbids markdown tables (providers that garble them)
	NoTables bool

	// MinWords demands a minimum report length from terse providers (0 = no demand)
	MinWords int

	// ExcerptChars overrides the evidence excerpt length (0 = cascade default)
	ExcerptChars int
}

// Config holds provider configuration
type Config struct {
	// Provider name: "openai", "anthropic", "ollama", "gemini"
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey for hosted providers
	APIKey string

	// BaseURL for custom endpoints
	BaseURL string

	// Timeout for one API request
	Timeout int // seconds

	// MaxTokens for response generation
	MaxTokens int

	// Temperature default
	Temperature float32

	// Proxy settings
	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Timeout:     60,
		MaxTokens:   2000,
		Temperature: 0.2,
	}
}

// ConfigFromModel converts a model.LLMConfig into a provider Config
func ConfigFromModel(name string, m model.LLMConfig, proxy model.HTTPConfig) Config {
	return Config{
		Provider:    name,
		Model:       m.Model,
		APIKey:      m.APIKey,
		BaseURL:     m.BaseURL,
		Timeout:     m.Timeout,
		MaxTokens:   m.MaxTokens,
		Temperature: m.Temperature,
		HTTPProxy:   proxy.HTTPProxy,
		HTTPSProxy:  proxy.HTTPSProxy,
		NoProxy:     proxy.NoProxy,
	}
}

func (c Config) timeout(def time.Duration) time.Duration {
	if c.Timeout <= 0 {
		return def
	}
	return time.Duration(c.Timeout) * time.Second
}

func (c Config) maxTokens(req GenerateRequest) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	if c.MaxTokens > 0 {
		return c.MaxTokens
	}
	return 2000
}

func (c Config) temperature(req GenerateRequest) float32 {
	if req.Temperature != nil {
		return *req.Temperature
	}
	return c.Temperature
}
