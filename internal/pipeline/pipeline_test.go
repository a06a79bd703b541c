package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ppiankov/verity/internal/auth"
	"github.com/ppiankov/verity/internal/llm"
	"github.com/ppiankov/verity/internal/model"
)

type stubLabeler struct {
	label model.GeographyLabel
	calls atomic.Int32
}

func (s *stubLabeler) Label(ctx context.Context, claim model.Claim) model.GeographyLabel {
	s.calls.Add(1)
	return s.label
}

type stubRetriever struct {
	set   *model.EvidenceSet
	calls atomic.Int32
	geo   model.Geography
}

func (s *stubRetriever) Retrieve(ctx context.Context, claim model.Claim, geo model.Geography, maxResults, minResults int) *model.EvidenceSet {
	s.calls.Add(1)
	s.geo = geo
	return s.set
}

type stubGenerator struct {
	result llm.Result
	calls  atomic.Int32
	input  llm.PromptInput
}

func (s *stubGenerator) Generate(ctx context.Context, in llm.PromptInput) llm.Result {
	s.calls.Add(1)
	s.input = in
	return s.result
}

type stubAuthorizer struct {
	quota auth.Quota
	err   error
}

func (s *stubAuthorizer) Authorize(ctx context.Context, raw string) (auth.Quota, error) {
	return s.quota, s.err
}

func evidence(n int) *model.EvidenceSet {
	set := &model.EvidenceSet{TierBreakdown: map[string]int{}}
	for i := 0; i < n; i++ {
		set.Documents = append(set.Documents, model.ScoredDocument{
			CandidateDocument: model.CandidateDocument{
				URL:              "https://yna.co.kr/" + string(rune('a'+i)),
				Title:            "Report",
				Body:             "Body text about the claim.",
				TierCategory:     model.CategoryDomesticNews,
				DomesticLanguage: true,
			},
			RelevanceScore: 0.8,
		})
		set.TierBreakdown[string(model.CategoryDomesticNews)]++
	}
	set.HasDomesticSources = n > 0
	set.SocialMedia = []model.CandidateDocument{{URL: "https://x.com/p/1", Title: "post", IsSocialMedia: true}}
	return set
}

type fixture struct {
	labeler   *stubLabeler
	retriever *stubRetriever
	generator *stubGenerator
}

func newFixture(set *model.EvidenceSet, result llm.Result) *fixture {
	return &fixture{
		labeler:   &stubLabeler{label: model.GeographyLabel{Type: model.GeographyInternational, Confidence: 0.9}},
		retriever: &stubRetriever{set: set},
		generator: &stubGenerator{result: result},
	}
}

func (f *fixture) coordinator(opts ...Option) *Coordinator {
	opts = append([]Option{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)
	return NewCoordinator(f.labeler, f.retriever, f.generator, model.RetrievalConfig{
		MaxResults: 10, MinResults: 3, DomesticLanguage: "ko", ForeignLanguage: "en",
	}, opts...)
}

func TestCheck_EmptyClaimMakesNoCalls(t *testing.T) {
	f := newFixture(evidence(3), llm.Result{Text: "Verdict: True"})
	c := f.coordinator()

	for _, claim := range []model.Claim{"", "   \n\t"} {
		_, err := c.Check(context.Background(), claim, "")
		var perr *Error
		if !errors.As(err, &perr) || perr.Kind != model.ErrorInvalidInput {
			t.Fatalf("Expected invalid_input error, got %v", err)
		}
		if !errors.Is(err, ErrEmptyClaim) {
			t.Errorf("Expected ErrEmptyClaim, got %v", err)
		}
	}

	if f.labeler.calls.Load()+f.retriever.calls.Load()+f.generator.calls.Load() != 0 {
		t.Error("Expected no collaborator calls for empty claim")
	}
}

func TestCheck_TooLongClaim(t *testing.T) {
	f := newFixture(evidence(3), llm.Result{Text: "Verdict: True"})
	_, err := f.coordinator().Check(context.Background(), model.Claim(strings.Repeat("가", MaxClaimRunes+1)), "")
	if !errors.Is(err, ErrClaimTooLong) {
		t.Errorf("Expected ErrClaimTooLong, got %v", err)
	}
}

func TestCheck_Success(t *testing.T) {
	f := newFixture(evidence(3), llm.Result{Text: "The claim holds [1][2].\nVerdict: True", Provider: "openai", Stage: 1, Attempts: 1})
	fixed := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	c := f.coordinator(WithClock(func() time.Time { return fixed }))

	res, err := c.Check(context.Background(), "  Seoul raised the minimum wage  ", "")
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	resp := res.Response

	if resp.Status != model.StatusSuccess || resp.Verdict != model.VerdictTrue {
		t.Errorf("Unexpected status/verdict %s/%s", resp.Status, resp.Verdict)
	}
	if resp.Claim != "Seoul raised the minimum wage" {
		t.Errorf("Expected trimmed claim, got %q", resp.Claim)
	}
	if resp.RequestID == "" || resp.Provider != "openai" || !resp.GeneratedAt.Equal(fixed) {
		t.Errorf("Unexpected metadata %+v", resp)
	}
	if len(resp.Sources) != 3 || resp.Sources[0].ID != 1 || resp.Sources[0].Language != "ko" {
		t.Errorf("Unexpected sources %+v", resp.Sources)
	}
	if len(resp.SocialMedia) != 1 {
		t.Errorf("Expected social-media disclosure, got %+v", resp.SocialMedia)
	}
	if resp.SourceInfo.Geography.Type != model.GeographyInternational || resp.SourceInfo.TotalSources != 3 {
		t.Errorf("Unexpected source info %+v", resp.SourceInfo)
	}
	if f.retriever.geo != model.GeographyInternational {
		t.Errorf("Expected retrieval for the classified geography, got %s", f.retriever.geo)
	}
	if len(f.generator.input.SocialMedia) != 1 || len(f.generator.input.Evidence) != 3 {
		t.Error("Expected generator to receive evidence and social media separately")
	}
	if !res.Quota.Unlimited {
		t.Error("Expected unlimited quota without an authorizer")
	}
}

func TestCheck_PartialOnShortfall(t *testing.T) {
	set := evidence(2)
	set.Shortfall = true
	f := newFixture(set, llm.Result{Text: "Verdict: False", Provider: "openai", Stage: 1})

	res, err := f.coordinator().Check(context.Background(), "claim", "")
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if res.Response.Status != model.StatusPartial || res.Response.Verdict != model.VerdictFalse {
		t.Errorf("Unexpected response %s/%s", res.Response.Status, res.Response.Verdict)
	}
}

func TestCheck_NoResultsSkipsGeneration(t *testing.T) {
	f := newFixture(&model.EvidenceSet{}, llm.Result{Text: "Verdict: True"})

	res, err := f.coordinator().Check(context.Background(), "An obscure claim", "")
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	resp := res.Response
	if resp.Status != model.StatusNoResults || resp.Verdict != model.VerdictUnverified {
		t.Errorf("Unexpected response %s/%s", resp.Status, resp.Verdict)
	}
	if !strings.Contains(resp.Report, "An obscure claim") {
		t.Error("Expected templated report to restate the claim")
	}
	if f.generator.calls.Load() != 0 {
		t.Error("Generators must not be called without evidence")
	}
}

func TestCheck_GenerationFailureUsesTemplate(t *testing.T) {
	claim := "The bridge is true and false at once"
	f := newFixture(evidence(3), llm.Result{Text: llm.FailureText, Attempts: 5})

	res, err := f.coordinator().Check(context.Background(), model.Claim(claim), "")
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	resp := res.Response
	if resp.Verdict != model.VerdictUnverified {
		t.Errorf("Expected unverified verdict, got %s", resp.Verdict)
	}
	if !strings.Contains(resp.Report, claim) || strings.Contains(resp.Report, llm.FailureText) {
		t.Errorf("Unexpected fallback report %q", resp.Report)
	}
	if resp.Report == "" || resp.Provider != "" {
		t.Errorf("Unexpected response %+v", resp)
	}
}

func TestCheck_AuthErrors(t *testing.T) {
	reset := time.Date(2025, 5, 1, 13, 0, 0, 0, time.UTC)
	tests := []struct {
		name    string
		err     error
		quota   auth.Quota
		want    model.ErrorKind
		message string
	}{
		{"missing", auth.ErrMissingKey, auth.Quota{}, model.ErrorUnauthorized, "required"},
		{"not found", auth.ErrKeyNotFound, auth.Quota{}, model.ErrorUnauthorized, "not found"},
		{"revoked", auth.ErrKeyRevoked, auth.Quota{}, model.ErrorUnauthorized, "revoked"},
		{"not assigned", auth.ErrKeyNotAssigned, auth.Quota{}, model.ErrorUnauthorized, "not been assigned"},
		{"quota", auth.ErrQuotaExceeded, auth.Quota{Limit: 100, ResetAt: reset}, model.ErrorRateLimited, "quota"},
		{"store failure", errors.New("db down"), auth.Quota{}, model.ErrorInternal, "failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(evidence(3), llm.Result{Text: "Verdict: True"})
			c := f.coordinator(WithAuthorizer(&stubAuthorizer{quota: tt.quota, err: tt.err}))

			_, err := c.Check(context.Background(), "claim", "vk_key")
			var perr *Error
			if !errors.As(err, &perr) {
				t.Fatalf("Expected *Error, got %v", err)
			}
			if perr.Kind != tt.want {
				t.Errorf("Expected kind %s, got %s", tt.want, perr.Kind)
			}
			if !strings.Contains(perr.Message, tt.message) {
				t.Errorf("Expected message to contain %q, got %q", tt.message, perr.Message)
			}
			if tt.want == model.ErrorRateLimited {
				if perr.ResetAt == nil || !perr.ResetAt.Equal(reset) || perr.Remaining == nil || *perr.Remaining != 0 {
					t.Errorf("Expected reset and remaining on quota error, got %+v", perr)
				}
			}
			if f.labeler.calls.Load() != 0 {
				t.Error("Expected no pipeline work after auth failure")
			}
		})
	}
}

func TestCheck_QuotaPassedThrough(t *testing.T) {
	f := newFixture(evidence(3), llm.Result{Text: "Verdict: True", Provider: "openai"})
	q := auth.Quota{Allowed: true, Limit: 100, Remaining: 42, ResetAt: time.Now().Add(time.Hour)}
	c := f.coordinator(WithAuthorizer(&stubAuthorizer{quota: q}))

	res, err := c.Check(context.Background(), "claim", "vk_key")
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if res.Quota.Remaining != 42 {
		t.Errorf("Expected quota passthrough, got %+v", res.Quota)
	}
}
