package search

import (
	"context"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ppiankov/verity/internal/cache"
	"github.com/ppiankov/verity/internal/model"
)

// CachedSearcher memoizes identical queries for ttl
type CachedSearcher struct {
	inner  Searcher
	cache  cache.Cache
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedSearcher wraps inner. A nil cache returns inner unchanged.
func NewCachedSearcher(inner Searcher, c cache.Cache, ttl time.Duration, logger *slog.Logger) Searcher {
	if c == nil {
		return inner
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedSearcher{inner: inner, cache: c, ttl: ttl, logger: logger}
}

// Search serves from cache when possible. Failed searches are not cached.
func (s *CachedSearcher) Search(ctx context.Context, q Query) ([]model.CandidateDocument, error) {
	key := queryKey(q)

	var docs []model.CandidateDocument
	if cache.GetJSON(s.cache, key, &docs) {
		s.logger.Debug("search cache hit", "query", q.Text, "domains", len(q.IncludeDomains))
		return docs, nil
	}

	docs, err := s.inner.Search(ctx, q)
	if err != nil {
		return nil, err
	}

	if err := cache.SetJSON(s.cache, key, docs, s.ttl); err != nil {
		s.logger.Warn("search cache write failed", "error", err)
	}
	return docs, nil
}

func queryKey(q Query) string {
	domains := append([]string(nil), q.IncludeDomains...)
	sort.Strings(domains)
	return cache.Key("search",
		strings.TrimSpace(q.Text),
		strings.Join(domains, ","),
		strconv.Itoa(q.MaxResults),
		q.Depth,
	)
}
