// Package geo labels a claim as being about domestic or international
// affairs. The label picks which ordered tier list retrieval walks.
package geo

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ppiankov/verity/internal/cache"
	"github.com/ppiankov/verity/internal/llm"
	"github.com/ppiankov/verity/internal/model"
)

// Classifier produces a geography label for a claim
type Classifier interface {
	Classify(ctx context.Context, claim model.Claim) (model.GeographyLabel, error)
}

// StaticClassifier always returns the same label
type StaticClassifier struct {
	Label model.GeographyLabel
}

// Classify returns the fixed label
func (s StaticClassifier) Classify(ctx context.Context, claim model.Claim) (model.GeographyLabel, error) {
	return s.Label, nil
}

// validate normalizes a collaborator answer; unknown types are errors
func validate(rawType string, confidence float64, reasoning string) (model.GeographyLabel, error) {
	g, ok := model.ParseGeography(rawType)
	if !ok {
		return model.GeographyLabel{}, fmt.Errorf("unknown geography type %q", rawType)
	}
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}
	return model.GeographyLabel{
		Type:       g,
		Confidence: confidence,
		Reasoning:  strings.TrimSpace(reasoning),
	}, nil
}

// New builds the classifier for cfg.Mode, wrapped so it never fails.
// Mode "off" labels every claim domestic without external calls.
func New(ctx context.Context, cfg model.GeographyConfig, gen model.GenerationConfig, proxy model.HTTPConfig, c cache.Cache, logger *slog.Logger, fallbacks FallbackObserver) (*Resilient, error) {
	var inner Classifier

	switch strings.ToLower(cfg.Mode) {
	case "http":
		if cfg.Endpoint == "" {
			return nil, fmt.Errorf("geography endpoint is required in http mode")
		}
		inner = NewHTTPClassifier(cfg.Endpoint, cfg.Timeout, proxy)

	case "llm", "":
		pcfg, err := llm.ProviderConfig(cfg.Provider, gen, proxy)
		if err != nil {
			return nil, fmt.Errorf("geography provider: %w", err)
		}
		p, err := llm.NewProvider(ctx, pcfg)
		if err != nil {
			return nil, fmt.Errorf("geography provider: %w", err)
		}
		inner = NewLLMClassifier(p)

	case "off":
		inner = StaticClassifier{Label: model.GeographyLabel{
			Type:       model.GeographyDomestic,
			Confidence: 1,
			Reasoning:  "classification disabled",
		}}

	default:
		return nil, fmt.Errorf("unknown geography mode: %s (supported: http, llm, off)", cfg.Mode)
	}

	return NewResilient(inner,
		WithTimeout(cfg.Timeout),
		WithCache(c, cfg.CacheTTL),
		WithLogger(logger),
		WithFallbackObserver(fallbacks),
	), nil
}
