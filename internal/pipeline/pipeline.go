// Package pipeline coordinates a claim check: key and quota enforcement,
// geography classification, evidence retrieval, report generation and
// verdict extraction.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/ppiankov/verity/internal/auth"
	"github.com/ppiankov/verity/internal/llm"
	"github.com/ppiankov/verity/internal/model"
	"github.com/ppiankov/verity/internal/observability"
	"github.com/ppiankov/verity/internal/verdict"
)

// MaxClaimRunes bounds the accepted claim length
const MaxClaimRunes = 1000

// Authorizer validates a raw key and consumes quota
type Authorizer interface {
	Authorize(ctx context.Context, raw string) (auth.Quota, error)
}

// Labeler labels a claim's geography and never fails
type Labeler interface {
	Label(ctx context.Context, claim model.Claim) model.GeographyLabel
}

// Retriever collects the evidence set for a claim
type Retriever interface {
	Retrieve(ctx context.Context, claim model.Claim, geo model.Geography, maxResults, minResults int) *model.EvidenceSet
}

// Generator produces a report, or the failure sentinel
type Generator interface {
	Generate(ctx context.Context, in llm.PromptInput) llm.Result
}

// Result is a completed check
type Result struct {
	Response *model.Response
	Quota    auth.Quota
}

// Coordinator runs checks. It holds no per-request state.
type Coordinator struct {
	auth      Authorizer
	geo       Labeler
	retriever Retriever
	generator Generator
	cfg       model.RetrievalConfig

	metrics *observability.Metrics
	logger  *slog.Logger
	now     func() time.Time
	newID   func() string
}

// Option configures a Coordinator
type Option func(*Coordinator)

// WithAuthorizer enforces keys and quotas. Without one every check is local
// and unlimited.
func WithAuthorizer(a Authorizer) Option {
	return func(c *Coordinator) { c.auth = a }
}

func WithMetrics(m *observability.Metrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithClock replaces the time source used for generatedAt and latency
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// NewCoordinator wires the pipeline stages together
func NewCoordinator(geo Labeler, retriever Retriever, generator Generator, cfg model.RetrievalConfig, opts ...Option) *Coordinator {
	c := &Coordinator{
		geo:       geo,
		retriever: retriever,
		generator: generator,
		cfg:       cfg,
		logger:    slog.Default(),
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Check runs the whole pipeline for one claim. Input, key and quota problems
// return *Error; everything after that always yields a response.
func (c *Coordinator) Check(ctx context.Context, claim model.Claim, apiKey string) (*Result, error) {
	start := c.now()

	claim = claim.Normalize()
	if err := validateClaim(claim); err != nil {
		return nil, inputError(err)
	}

	ctx, span := observability.StartSpan(ctx, "pipeline.check",
		attribute.Int("claim.length", utf8.RuneCountInString(claim.String())),
	)
	defer span.End()

	quota := auth.Quota{Allowed: true, Unlimited: true}
	if c.auth != nil {
		q, err := c.auth.Authorize(ctx, apiKey)
		if err != nil {
			if errors.Is(err, auth.ErrQuotaExceeded) {
				c.metrics.QuotaRejected()
			} else {
				c.metrics.AuthFailed(authFailureReason(err))
			}
			perr := authError(err, q)
			span.SetAttributes(attribute.String("error.kind", string(perr.Kind)))
			return nil, perr
		}
		quota = q
	}

	resp := c.run(ctx, claim)

	c.metrics.ObserveCheck(string(resp.Status), c.now().Sub(start))
	c.metrics.ObserveVerdict(string(resp.Verdict))
	span.SetAttributes(
		attribute.String("check.status", string(resp.Status)),
		attribute.String("check.verdict", string(resp.Verdict)),
	)

	return &Result{Response: resp, Quota: quota}, nil
}

func (c *Coordinator) run(ctx context.Context, claim model.Claim) *model.Response {
	label := c.classify(ctx, claim)
	evidence := c.retrieve(ctx, claim, label)

	resp := &model.Response{
		RequestID: c.newID(),
		Claim:     claim.String(),
		Sources:   c.sources(evidence),
		SourceInfo: model.SourceInfo{
			HasDomesticSources: evidence.HasDomesticSources,
			HasForeignSources:  evidence.HasForeignSources,
			TotalSources:       evidence.Len(),
			Geography:          label,
			TierBreakdown:      evidence.TierBreakdown,
		},
		SocialMedia: socialSources(evidence.SocialMedia),
	}

	if evidence.Len() == 0 {
		c.logger.Info("no evidence found", "geography", label.Type)
		resp.Status = model.StatusNoResults
		resp.Report = noResultsReport(claim)
		resp.Verdict = model.VerdictUnverified
		resp.GeneratedAt = c.now().UTC()
		return resp
	}

	resp.Status = model.StatusSuccess
	if evidence.Shortfall {
		resp.Status = model.StatusPartial
	}

	result := c.generate(ctx, claim, label, evidence)
	if result.Failed() {
		c.logger.Error("all generation stages failed", "attempts", result.Attempts)
		resp.Report = generationFailedReport(claim, evidence.Len())
		resp.Verdict = model.VerdictUnverified
	} else {
		resp.Report = result.Text
		resp.Provider = result.Provider
		resp.Verdict = c.extract(ctx, result.Text)
		if bad := llm.OutOfRangeCitations(result.Text, evidence.Len()); len(bad) > 0 {
			c.logger.Warn("report cites missing evidence", "provider", result.Provider, "citations", bad)
		}
	}

	resp.GeneratedAt = c.now().UTC()
	return resp
}

func (c *Coordinator) classify(ctx context.Context, claim model.Claim) model.GeographyLabel {
	ctx, span := observability.StartSpan(ctx, "pipeline.geography")
	defer span.End()

	label := c.geo.Label(ctx, claim)
	span.SetAttributes(
		attribute.String("geography.type", string(label.Type)),
		attribute.Float64("geography.confidence", label.Confidence),
	)
	return label
}

func (c *Coordinator) retrieve(ctx context.Context, claim model.Claim, label model.GeographyLabel) *model.EvidenceSet {
	ctx, span := observability.StartSpan(ctx, "pipeline.retrieve")
	defer span.End()

	set := c.retriever.Retrieve(ctx, claim, label.Type, c.cfg.MaxResults, c.cfg.MinResults)
	if set == nil {
		set = &model.EvidenceSet{}
	}
	if set.Shortfall && set.Len() > 0 {
		c.logger.Warn("evidence below minimum", "collected", set.Len(), "min", c.cfg.MinResults)
	}
	span.SetAttributes(
		attribute.Int("evidence.count", set.Len()),
		attribute.Int("evidence.social", len(set.SocialMedia)),
		attribute.Float64("evidence.threshold", set.Threshold),
	)
	return set
}

func (c *Coordinator) generate(ctx context.Context, claim model.Claim, label model.GeographyLabel, evidence *model.EvidenceSet) llm.Result {
	ctx, span := observability.StartSpan(ctx, "pipeline.generate")
	var spanErr error
	defer func() { observability.EndSpan(span, spanErr) }()

	result := c.generator.Generate(ctx, llm.PromptInput{
		Claim:            claim,
		Geography:        label.Type,
		Evidence:         evidence.Documents,
		SocialMedia:      evidence.SocialMedia,
		DomesticLanguage: c.cfg.DomesticLanguage,
		ForeignLanguage:  c.cfg.ForeignLanguage,
	})
	span.SetAttributes(
		attribute.String("generation.provider", result.Provider),
		attribute.Int("generation.stage", result.Stage),
		attribute.Int("generation.attempts", result.Attempts),
	)
	if result.Failed() {
		spanErr = errGenerationFailed
	}
	return result
}

func (c *Coordinator) extract(ctx context.Context, text string) model.Verdict {
	_, span := observability.StartSpan(ctx, "pipeline.verdict")
	defer span.End()

	v := verdict.Extract(text)
	span.SetAttributes(attribute.String("verdict", string(v)))
	return v
}

func (c *Coordinator) sources(evidence *model.EvidenceSet) []model.Source {
	out := make([]model.Source, 0, evidence.Len())
	for i, d := range evidence.Documents {
		out = append(out, model.Source{
			ID:       i + 1,
			Title:    d.Title,
			URL:      d.URL,
			Snippet:  llm.Excerpt(d.Body, snippetChars),
			Language: d.Language(c.cfg.DomesticLanguage, c.cfg.ForeignLanguage),
			Tier:     string(d.TierCategory),
			Score:    d.RelevanceScore,
		})
	}
	return out
}

func socialSources(docs []model.CandidateDocument) []model.SocialSource {
	if len(docs) == 0 {
		return nil
	}
	out := make([]model.SocialSource, len(docs))
	for i, d := range docs {
		out[i] = model.SocialSource{ID: i + 1, Title: d.Title, URL: d.URL}
	}
	return out
}

func validateClaim(claim model.Claim) error {
	if claim.IsEmpty() {
		return ErrEmptyClaim
	}
	if utf8.RuneCountInString(claim.String()) > MaxClaimRunes {
		return ErrClaimTooLong
	}
	return nil
}
