package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ppiankov/verity/internal/model"
)

// NewProvider creates a new generation provider based on configuration
func NewProvider(ctx context.Context, config Config) (Provider, error) {
	switch strings.ToLower(config.Provider) {
	case "openai":
		return NewOpenAIProvider(config)

	case "anthropic", "claude":
		return NewAnthropicProvider(config)

	case "ollama":
		return NewOllamaProvider(config)

	case "gemini", "google":
		return NewGeminiProvider(ctx, config)

	case "":
		return nil, fmt.Errorf("no provider configured")

	default:
		return nil, fmt.Errorf("unknown LLM provider: %s (supported: openai, anthropic, ollama, gemini)", config.Provider)
	}
}

// ProviderConfig returns the provider Config for name out of the generation section
func ProviderConfig(name string, gen model.GenerationConfig, proxy model.HTTPConfig) (Config, error) {
	var m model.LLMConfig
	switch strings.ToLower(name) {
	case "openai":
		m = gen.OpenAI
	case "anthropic", "claude":
		m = gen.Anthropic
	case "ollama":
		m = gen.Ollama
	case "gemini", "google":
		m = gen.Gemini
	default:
		return Config{}, fmt.Errorf("unknown LLM provider: %s", name)
	}
	return ConfigFromModel(strings.ToLower(name), m, proxy), nil
}

// BuildCascade constructs the configured stages. A stage whose provider cannot
// be built (usually a missing API key) is skipped with a warning.
func BuildCascade(ctx context.Context, gen model.GenerationConfig, proxy model.HTTPConfig, logger *slog.Logger, opts ...CascadeOption) (*Cascade, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var stages []Stage
	for i, sc := range gen.Stages {
		cfg, err := ProviderConfig(sc.Provider, gen, proxy)
		if err != nil {
			return nil, fmt.Errorf("stage %d: %w", i+1, err)
		}
		p, err := NewProvider(ctx, cfg)
		if err != nil {
			logger.Warn("skipping generation stage", "stage", i+1, "provider", sc.Provider, "error", err)
			continue
		}
		stages = append(stages, Stage{Provider: p, Attempts: sc.Attempts})
	}
	if len(stages) == 0 {
		return nil, fmt.Errorf("no generation provider could be configured")
	}

	base := []CascadeOption{
		WithBackoff(Backoff{Base: gen.Backoff.Base, Multiplier: gen.Backoff.Multiplier, Max: gen.Backoff.Max}),
		WithExcerptChars(gen.ExcerptChars),
		WithLogger(logger),
	}
	return NewCascade(stages, append(base, opts...)...), nil
}
