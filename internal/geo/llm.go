package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ppiankov/verity/internal/llm"
	"github.com/ppiankov/verity/internal/model"
)

const classifyPrompt = `Decide whether the following claim is mainly about domestic affairs of South Korea or about international / foreign affairs.

Claim: %s

Answer with a single JSON object and nothing else:
{"type": "domestic" | "international", "confidence": <number between 0 and 1>, "reasoning": "<one short sentence>"}`

// LLMClassifier asks a generation provider to label the claim
type LLMClassifier struct {
	provider llm.Provider
}

// NewLLMClassifier creates a classifier backed by provider
func NewLLMClassifier(provider llm.Provider) *LLMClassifier {
	return &LLMClassifier{provider: provider}
}

// Classify prompts for a JSON label and validates it
func (c *LLMClassifier) Classify(ctx context.Context, claim model.Claim) (model.GeographyLabel, error) {
	var temp float32
	resp, err := c.provider.Generate(ctx, llm.GenerateRequest{
		Prompt:      fmt.Sprintf(classifyPrompt, claim),
		MaxTokens:   200,
		Temperature: &temp,
		JSON:        true,
	})
	if err != nil {
		return model.GeographyLabel{}, fmt.Errorf("%s: %w", c.provider.Name(), err)
	}

	raw := extractJSONObject(resp.Text)
	if raw == "" {
		return model.GeographyLabel{}, fmt.Errorf("no JSON object in classifier output")
	}

	var parsed classifyResponse
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return model.GeographyLabel{}, fmt.Errorf("unmarshal classifier output: %w", err)
	}

	return validate(parsed.Type, parsed.Confidence, parsed.Reasoning)
}

// extractJSONObject returns the first top-level {...} in s, tolerating code
// fences and prose around it
func extractJSONObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
