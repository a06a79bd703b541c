// Package retrieve collects evidence for a claim from the ranked source
// tiers, falling back to unrestricted search passes when the tiers run dry.
package retrieve

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/verity/internal/model"
	"github.com/ppiankov/verity/internal/score"
	"github.com/ppiankov/verity/internal/search"
	"github.com/ppiankov/verity/internal/sources"
)

// Search pass labels reported to the observer
const (
	PassTier      = "tier"
	PassGeneral   = "general"
	PassShortfall = "shortfall"
)

// maxSearchResults is the most a single provider call will return
const maxSearchResults = 20

// SearchObserver is told about every search call the engine makes
type SearchObserver interface {
	ObserveSearch(pass string, err error)
}

// Engine runs the tiered retrieval passes
type Engine struct {
	searcher   search.Searcher
	classifier *sources.Classifier
	scorer     *score.Scorer
	cfg        model.RetrievalConfig

	depth        string
	batchTimeout time.Duration
	logger       *slog.Logger
	observer     SearchObserver
}

// Option configures an Engine
type Option func(*Engine)

// WithDepth sets the search depth hint for tier and general passes
func WithDepth(depth string) Option {
	return func(e *Engine) {
		if depth != "" {
			e.depth = depth
		}
	}
}

// WithBatchTimeout bounds each tier batch search
func WithBatchTimeout(d time.Duration) Option {
	return func(e *Engine) { e.batchTimeout = d }
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

func WithObserver(o SearchObserver) Option {
	return func(e *Engine) { e.observer = o }
}

// NewEngine creates a retrieval engine. Zero-valued limits in cfg take the
// built-in defaults.
func NewEngine(searcher search.Searcher, classifier *sources.Classifier, scorer *score.Scorer, cfg model.RetrievalConfig, opts ...Option) *Engine {
	defaults := model.DefaultConfig().Retrieval
	if cfg.PerTierCap <= 0 {
		cfg.PerTierCap = defaults.PerTierCap
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaults.BatchSize
	}
	if cfg.SocialMediaCap <= 0 {
		cfg.SocialMediaCap = defaults.SocialMediaCap
	}
	if cfg.RelevanceThreshold <= 0 {
		cfg.RelevanceThreshold = defaults.RelevanceThreshold
	}
	if cfg.RelaxedThreshold <= 0 {
		cfg.RelaxedThreshold = defaults.RelaxedThreshold
	}
	if scorer == nil {
		scorer = score.NewScorer()
	}

	e := &Engine{
		searcher:   searcher,
		classifier: classifier,
		scorer:     scorer,
		cfg:        cfg,
		depth:      search.DepthBasic,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// run holds the request-scoped state of one retrieval
type run struct {
	geo    model.Geography
	docs   []model.CandidateDocument
	social []model.CandidateDocument
	seen   map[string]bool
}

// Retrieve collects, orders, bounds and relevance-filters evidence for claim.
// Search failures are logged and skipped; an empty set means no evidence was found.
func (e *Engine) Retrieve(ctx context.Context, claim model.Claim, geo model.Geography, maxResults, minResults int) *model.EvidenceSet {
	if maxResults <= 0 {
		maxResults = model.DefaultConfig().Retrieval.MaxResults
	}
	if minResults < 0 {
		minResults = 0
	}
	if minResults > maxResults {
		minResults = maxResults
	}

	query := claim.Normalize().String()
	r := &run{geo: geo, seen: make(map[string]bool)}

	for _, tier := range e.classifier.Tiers(geo) {
		remaining := maxResults - len(r.docs)
		if remaining <= 0 || ctx.Err() != nil {
			break
		}
		limit := min(remaining, e.cfg.PerTierCap)
		hits := e.searchTier(ctx, query, tier, limit)
		added := e.collect(r, hits, tier, limit)
		e.logger.Debug("tier searched", "tier", tier.Name, "rank", tier.Rank, "hits", len(hits), "added", added)
	}

	if remaining := maxResults - len(r.docs); remaining > 0 && ctx.Err() == nil {
		hits := e.search(ctx, PassGeneral, search.Query{
			Text:       query,
			MaxResults: min(remaining, maxSearchResults),
			Depth:      e.depth,
		})
		e.collect(r, hits, model.GeneralTier(), remaining)
	}

	if shortfall := minResults - len(r.docs); shortfall > 0 && ctx.Err() == nil {
		// Earlier passes already returned the top hits; ask for enough to
		// get past them.
		hits := e.search(ctx, PassShortfall, search.Query{
			Text:       query,
			MaxResults: min(shortfall+len(r.docs), maxSearchResults),
			Depth:      search.DepthAdvanced,
		})
		e.collect(r, hits, model.GeneralTier(), shortfall)
		if len(r.docs) < minResults {
			e.logger.Warn("evidence below minimum", "collected", len(r.docs), "min", minResults)
		}
	}

	sort.SliceStable(r.docs, func(i, j int) bool {
		if r.docs[i].TierRank != r.docs[j].TierRank {
			return r.docs[i].TierRank < r.docs[j].TierRank
		}
		return r.docs[i].ProviderScore > r.docs[j].ProviderScore
	})
	if len(r.docs) >= minResults && len(r.docs) > maxResults {
		r.docs = r.docs[:maxResults]
	}

	scored, threshold := e.filter(query, r.docs, minResults)
	return buildSet(scored, r.social, threshold, minResults)
}

// searchTier queries the tier's domains in concurrent batches. Each batch has
// its own timeout and failures only drop that batch.
func (e *Engine) searchTier(ctx context.Context, query string, tier model.SourceTier, limit int) []model.CandidateDocument {
	if len(tier.Domains) == 0 {
		return nil
	}

	batches := chunk(tier.Domains, e.cfg.BatchSize)
	results := make([][]model.CandidateDocument, len(batches))

	var g errgroup.Group
	for i, domains := range batches {
		g.Go(func() error {
			results[i] = e.search(ctx, PassTier, search.Query{
				Text:           query,
				IncludeDomains: domains,
				MaxResults:     limit,
				Depth:          e.depth,
			})
			return nil
		})
	}
	_ = g.Wait()

	var merged []model.CandidateDocument
	for _, r := range results {
		merged = append(merged, r...)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].ProviderScore > merged[j].ProviderScore
	})
	return merged
}

func (e *Engine) search(ctx context.Context, pass string, q search.Query) []model.CandidateDocument {
	callCtx := ctx
	if e.batchTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, e.batchTimeout)
		defer cancel()
	}

	docs, err := e.searcher.Search(callCtx, q)
	if e.observer != nil {
		e.observer.ObserveSearch(pass, err)
	}
	if err != nil {
		e.logger.Warn("search failed, skipping", "pass", pass, "domains", len(q.IncludeDomains), "error", err)
		return nil
	}
	return docs
}

// collect appends unseen hits: social-media hits go to the disclosure list,
// the rest are tagged and appended up to limit. It returns how many
// verification documents were added.
func (e *Engine) collect(r *run, hits []model.CandidateDocument, tier model.SourceTier, limit int) int {
	added := 0
	for _, doc := range hits {
		if doc.URL == "" || r.seen[doc.URL] {
			continue
		}

		c := e.classifier.Classify(doc.URL)
		if c.Host == "" {
			continue
		}
		doc.Domain = c.Domain

		if c.IsSocialMedia {
			if len(r.social) < e.cfg.SocialMediaCap {
				r.seen[doc.URL] = true
				doc.IsSocialMedia = true
				doc.TierRank = model.GeneralRank
				doc.TierCategory = model.CategoryGeneral
				r.social = append(r.social, doc)
			}
			continue
		}

		if added >= limit {
			continue
		}
		r.seen[doc.URL] = true
		e.tag(&doc, c.Host, tier, r.geo)
		r.docs = append(r.docs, doc)
		added++
	}
	return added
}

// tag assigns the tier a document belongs to. Hits whose domain is not in
// the searched tier are re-tagged with their own tier, or general.
func (e *Engine) tag(doc *model.CandidateDocument, host string, searched model.SourceTier, geo model.Geography) {
	tier := model.GeneralTier()
	switch {
	case searched.Rank != model.GeneralRank && inTier(host, searched):
		tier = searched
	default:
		if t, ok := e.classifier.TierOf(host, geo); ok {
			tier = t
		}
	}

	doc.TierRank = tier.Rank
	doc.TierCategory = tier.Category
	doc.IsSocialMedia = false
	switch {
	case tier.Category.IsDomestic():
		doc.DomesticLanguage = true
	case tier.Category.IsForeign():
		doc.DomesticLanguage = false
	default:
		doc.DomesticLanguage = e.classifier.IsDomesticHost(host)
	}
}

// filter scores docs and keeps those at or above the relevance threshold,
// relaxing it once when too few survive
func (e *Engine) filter(query string, docs []model.CandidateDocument, minResults int) ([]model.ScoredDocument, float64) {
	scored := make([]model.ScoredDocument, len(docs))
	for i, d := range docs {
		scored[i] = model.ScoredDocument{CandidateDocument: d, RelevanceScore: e.scorer.Score(query, d)}
	}

	threshold := e.cfg.RelevanceThreshold
	kept := keepAbove(scored, threshold)
	if len(kept) < minResults && e.cfg.RelaxedThreshold < threshold {
		threshold = e.cfg.RelaxedThreshold
		kept = keepAbove(scored, threshold)
		e.logger.Debug("relevance threshold relaxed", "threshold", threshold, "kept", len(kept))
	}
	return kept, threshold
}

func keepAbove(docs []model.ScoredDocument, threshold float64) []model.ScoredDocument {
	out := make([]model.ScoredDocument, 0, len(docs))
	for _, d := range docs {
		if d.RelevanceScore >= threshold {
			out = append(out, d)
		}
	}
	return out
}

func buildSet(docs []model.ScoredDocument, social []model.CandidateDocument, threshold float64, minResults int) *model.EvidenceSet {
	set := &model.EvidenceSet{
		Documents:     docs,
		SocialMedia:   social,
		TierBreakdown: make(map[string]int),
		Shortfall:     len(docs) < minResults,
		Threshold:     threshold,
	}
	for _, d := range docs {
		set.TierBreakdown[string(d.TierCategory)]++
		if d.DomesticLanguage {
			set.HasDomesticSources = true
		} else {
			set.HasForeignSources = true
		}
	}
	return set
}

func inTier(host string, tier model.SourceTier) bool {
	for _, d := range tier.Domains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

func chunk(items []string, size int) [][]string {
	if size <= 0 {
		size = len(items)
	}
	var out [][]string
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		out = append(out, items[start:end])
	}
	return out
}
