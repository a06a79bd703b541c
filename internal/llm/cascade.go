package llm

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"
)

// FailureText is returned by the cascade when no stage produced a report
const FailureText = "REPORT_GENERATION_FAILED"

// IsFailure reports whether text is the cascade failure sentinel
func IsFailure(text string) bool {
	return strings.TrimSpace(text) == FailureText
}

// Attempt outcomes reported to observers
const (
	OutcomeSuccess     = "success"
	OutcomeRateLimited = "rate_limited"
	OutcomeError       = "error"
	OutcomeEmpty       = "empty"
)

// Observer receives one event per provider attempt
type Observer interface {
	ObserveGeneration(stage int, provider, outcome string, elapsed time.Duration)
}

// Stage is one provider in the cascade with its attempt budget
type Stage struct {
	Provider Provider
	Attempts int
}

// Result describes how a cascade run ended
type Result struct {
	Text     string
	Provider string
	Stage    int // 1-based; 0 when every stage failed
	Attempts int // total provider calls made
}

// Failed reports whether the result carries the failure sentinel
func (r Result) Failed() bool {
	return IsFailure(r.Text)
}

// Cascade tries stages in order and returns the first non-empty report.
// Only rate-limit signals are retried inside a stage; any other error moves
// on to the next stage.
type Cascade struct {
	stages       []Stage
	backoff      Backoff
	excerptChars int
	maxTokens    int
	system       string
	sleep        SleepFunc
	logger       *slog.Logger
	observer     Observer
}

// CascadeOption configures a Cascade
type CascadeOption func(*Cascade)

// WithBackoff sets the rate-limit retry schedule
func WithBackoff(b Backoff) CascadeOption {
	return func(c *Cascade) { c.backoff = b }
}

// WithExcerptChars sets the default evidence excerpt length
func WithExcerptChars(n int) CascadeOption {
	return func(c *Cascade) { c.excerptChars = n }
}

// WithMaxTokens caps report length for every stage
func WithMaxTokens(n int) CascadeOption {
	return func(c *Cascade) { c.maxTokens = n }
}

// WithSleep replaces the backoff sleep (tests)
func WithSleep(fn SleepFunc) CascadeOption {
	return func(c *Cascade) { c.sleep = fn }
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) CascadeOption {
	return func(c *Cascade) { c.logger = l }
}

// WithObserver registers an attempt observer
func WithObserver(o Observer) CascadeOption {
	return func(c *Cascade) { c.observer = o }
}

// NewCascade creates a cascade over stages. Stages with no provider are dropped.
func NewCascade(stages []Stage, opts ...CascadeOption) *Cascade {
	c := &Cascade{
		backoff:      DefaultBackoff(),
		excerptChars: DefaultExcerptChars,
		system:       SystemPrompt,
		sleep:        sleepContext,
		logger:       slog.Default(),
	}
	for _, st := range stages {
		if st.Provider == nil {
			continue
		}
		if st.Attempts < 1 {
			st.Attempts = 1
		}
		c.stages = append(c.stages, st)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Stages returns the configured stages in order
func (c *Cascade) Stages() []Stage {
	out := make([]Stage, len(c.stages))
	copy(out, c.stages)
	return out
}

// Generate runs the cascade. It never returns empty text: when every stage
// fails the result text is FailureText.
func (c *Cascade) Generate(ctx context.Context, in PromptInput) Result {
	res := Result{Text: FailureText}

	for i, st := range c.stages {
		stageNum := i + 1
		name := st.Provider.Name()
		req := GenerateRequest{
			Prompt:    BuildPrompt(in, st.Provider.Dialect(), c.excerptChars),
			System:    c.system,
			MaxTokens: c.maxTokens,
		}

		for attempt := 0; attempt < st.Attempts; attempt++ {
			res.Attempts++
			start := time.Now()
			resp, err := st.Provider.Generate(ctx, req)
			elapsed := time.Since(start)

			if err == nil && strings.TrimSpace(resp.Text) != "" {
				c.observe(stageNum, name, OutcomeSuccess, elapsed)
				if bad := OutOfRangeCitations(resp.Text, len(in.Evidence)); len(bad) > 0 {
					c.logger.Warn("report cites unknown evidence", "provider", name, "citations", bad)
				}
				return Result{Text: resp.Text, Provider: name, Stage: stageNum, Attempts: res.Attempts}
			}

			var rl *RateLimitError
			switch {
			case err == nil || errors.Is(err, ErrEmptyResponse):
				c.observe(stageNum, name, OutcomeEmpty, elapsed)
				c.logger.Warn("generation returned empty text", "stage", stageNum, "provider", name)
			case errors.As(err, &rl):
				c.observe(stageNum, name, OutcomeRateLimited, elapsed)
				if attempt+1 < st.Attempts {
					delay := c.backoff.Delay(attempt, rl.RetryAfter)
					c.logger.Warn("generation rate limited, backing off",
						"stage", stageNum, "provider", name, "attempt", attempt+1, "delay", delay)
					if serr := c.sleep(ctx, delay); serr != nil {
						c.logger.Warn("generation cancelled during backoff", "error", serr)
						return res
					}
					continue
				}
				c.logger.Warn("generation rate limited, attempts exhausted", "stage", stageNum, "provider", name)
			default:
				c.observe(stageNum, name, OutcomeError, elapsed)
				c.logger.Warn("generation failed", "stage", stageNum, "provider", name, "error", err)
			}
			break
		}
	}

	c.logger.Error("all generation stages failed", "stages", len(c.stages), "attempts", res.Attempts)
	return res
}

func (c *Cascade) observe(stage int, provider, outcome string, elapsed time.Duration) {
	if c.observer != nil {
		c.observer.ObserveGeneration(stage, provider, outcome, elapsed)
	}
}

// Close releases providers that hold connections
func (c *Cascade) Close() error {
	var errs []error
	for _, st := range c.stages {
		if cl, ok := st.Provider.(io.Closer); ok {
			if err := cl.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
