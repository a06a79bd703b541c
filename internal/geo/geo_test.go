package geo

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ppiankov/verity/internal/cache"
	"github.com/ppiankov/verity/internal/llm"
	"github.com/ppiankov/verity/internal/model"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHTTPClassifier_Classify(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		_, _ = w.Write([]byte(`{"type": "International", "confidence": 1.7, "reasoning": " about the US "}`))
	}))
	defer server.Close()

	c := NewHTTPClassifier(server.URL, time.Second, model.HTTPConfig{})
	label, err := c.Classify(context.Background(), "US tariffs doubled")
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}

	if label.Type != model.GeographyInternational {
		t.Errorf("Expected international, got %s", label.Type)
	}
	if label.Confidence != 1 {
		t.Errorf("Expected confidence clamped to 1, got %v", label.Confidence)
	}
	if label.Reasoning != "about the US" {
		t.Errorf("Unexpected reasoning %q", label.Reasoning)
	}
}

func TestHTTPClassifier_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, `oops`},
		{"unknown type", http.StatusOK, `{"type": "martian", "confidence": 0.9}`},
		{"malformed", http.StatusOK, `{`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			c := NewHTTPClassifier(server.URL, time.Second, model.HTTPConfig{})
			if _, err := c.Classify(context.Background(), "claim"); err == nil {
				t.Error("Expected error")
			}
		})
	}
}

type fakeProvider struct {
	text string
	err  error
	req  llm.GenerateRequest
}

func (p *fakeProvider) Name() string                         { return "fake" }
func (p *fakeProvider) Dialect() llm.Dialect                 { return llm.Dialect{} }
func (p *fakeProvider) IsAvailable(ctx context.Context) bool { return true }
func (p *fakeProvider) Generate(ctx context.Context, req llm.GenerateRequest) (*llm.GenerateResponse, error) {
	p.req = req
	if p.err != nil {
		return nil, p.err
	}
	return &llm.GenerateResponse{Text: p.text}, nil
}

func TestLLMClassifier_Classify(t *testing.T) {
	p := &fakeProvider{text: "Sure!\n```json\n{\"type\": \"domestic\", \"confidence\": 0.8, \"reasoning\": \"Seoul {city} policy\"}\n```"}
	c := NewLLMClassifier(p)

	label, err := c.Classify(context.Background(), "서울시 버스 요금 인상")
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if label.Type != model.GeographyDomestic || label.Confidence != 0.8 {
		t.Errorf("Unexpected label %+v", label)
	}
	if label.Reasoning != "Seoul {city} policy" {
		t.Errorf("Unexpected reasoning %q", label.Reasoning)
	}
	if !p.req.JSON {
		t.Error("Expected JSON mode request")
	}
}

func TestLLMClassifier_BadOutput(t *testing.T) {
	for _, text := range []string{"no json here", `{"type": "elsewhere"}`, `{"type": `} {
		c := NewLLMClassifier(&fakeProvider{text: text})
		if _, err := c.Classify(context.Background(), "claim"); err == nil {
			t.Errorf("Expected error for %q", text)
		}
	}
}

type countingClassifier struct {
	calls int
	label model.GeographyLabel
	err   error
	delay time.Duration
}

func (c *countingClassifier) Classify(ctx context.Context, claim model.Claim) (model.GeographyLabel, error) {
	c.calls++
	if c.delay > 0 {
		select {
		case <-time.After(c.delay):
		case <-ctx.Done():
			return model.GeographyLabel{}, ctx.Err()
		}
	}
	return c.label, c.err
}

type fallbackCounter struct{ n int }

func (f *fallbackCounter) GeographyFallback() { f.n++ }

func TestResilient_FallbackOnError(t *testing.T) {
	counter := &fallbackCounter{}
	r := NewResilient(&countingClassifier{err: errors.New("down")}, WithLogger(quietLogger()), WithFallbackObserver(counter))

	label := r.Label(context.Background(), "claim")
	if label != model.FallbackGeography() {
		t.Errorf("Expected fallback label, got %+v", label)
	}
	if label.Type != model.GeographyDomestic || label.Confidence != 0.5 || label.Reasoning != "fallback" {
		t.Errorf("Fallback must be {domestic, 0.5, fallback}, got %+v", label)
	}
	if counter.n != 1 {
		t.Errorf("Expected 1 fallback, got %d", counter.n)
	}
}

func TestResilient_FallbackOnTimeout(t *testing.T) {
	inner := &countingClassifier{delay: time.Second, label: model.GeographyLabel{Type: model.GeographyInternational, Confidence: 1}}
	r := NewResilient(inner, WithTimeout(10*time.Millisecond), WithLogger(quietLogger()))

	if label := r.Label(context.Background(), "claim"); label != model.FallbackGeography() {
		t.Errorf("Expected fallback after timeout, got %+v", label)
	}
}

func TestResilient_CachesSuccess(t *testing.T) {
	want := model.GeographyLabel{Type: model.GeographyInternational, Confidence: 0.9, Reasoning: "foreign"}
	inner := &countingClassifier{label: want}
	r := NewResilient(inner, WithCache(cache.NewMemoryCache(time.Minute, time.Minute), time.Minute), WithLogger(quietLogger()))

	for i := 0; i < 3; i++ {
		if got := r.Label(context.Background(), "  same claim "); got != want {
			t.Errorf("Unexpected label %+v", got)
		}
	}
	if inner.calls != 1 {
		t.Errorf("Expected 1 upstream call, got %d", inner.calls)
	}
}

func TestResilient_DoesNotCacheFallback(t *testing.T) {
	inner := &countingClassifier{err: errors.New("down")}
	r := NewResilient(inner, WithCache(cache.NewMemoryCache(time.Minute, time.Minute), time.Minute), WithLogger(quietLogger()))

	r.Label(context.Background(), "claim")
	r.Label(context.Background(), "claim")
	if inner.calls != 2 {
		t.Errorf("Expected fallbacks to bypass cache, got %d calls", inner.calls)
	}
}

func TestNew_Modes(t *testing.T) {
	ctx := context.Background()
	gen := model.DefaultConfig().Generation

	off, err := New(ctx, model.GeographyConfig{Mode: "off"}, gen, model.HTTPConfig{}, nil, quietLogger(), nil)
	if err != nil {
		t.Fatalf("New(off) failed: %v", err)
	}
	if label := off.Label(ctx, "claim"); label.Type != model.GeographyDomestic || label.Confidence != 1 {
		t.Errorf("Unexpected static label %+v", label)
	}

	if _, err := New(ctx, model.GeographyConfig{Mode: "http"}, gen, model.HTTPConfig{}, nil, quietLogger(), nil); err == nil {
		t.Error("Expected error for http mode without endpoint")
	}
	if _, err := New(ctx, model.GeographyConfig{Mode: "telepathy"}, gen, model.HTTPConfig{}, nil, quietLogger(), nil); err == nil {
		t.Error("Expected error for unknown mode")
	}

	gen.OpenAI.APIKey = ""
	if _, err := New(ctx, model.GeographyConfig{Mode: "llm", Provider: "openai"}, gen, model.HTTPConfig{}, nil, quietLogger(), nil); err == nil {
		t.Error("Expected error for llm mode without provider key")
	}
}

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`{"a":1}`, `{"a":1}`},
		{"prefix {\"a\":{\"b\":2}} suffix", `{"a":{"b":2}}`},
		{`{"s":"brace } in string"}`, `{"s":"brace } in string"}`},
		{`{"s":"escaped \" quote }"}`, `{"s":"escaped \" quote }"}`},
		{`no object`, ``},
		{`{"unterminated": 1`, ``},
	}
	for _, tt := range tests {
		if got := extractJSONObject(tt.in); got != tt.want {
			t.Errorf("extractJSONObject(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
