package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ppiankov/verity/internal/auth"
	"github.com/ppiankov/verity/internal/cache"
	"github.com/ppiankov/verity/internal/geo"
	"github.com/ppiankov/verity/internal/llm"
	"github.com/ppiankov/verity/internal/model"
	"github.com/ppiankov/verity/internal/observability"
	"github.com/ppiankov/verity/internal/retrieve"
	"github.com/ppiankov/verity/internal/score"
	"github.com/ppiankov/verity/internal/search"
	"github.com/ppiankov/verity/internal/sources"
)

// Components is a fully wired pipeline and the resources it owns
type Components struct {
	Coordinator *Coordinator
	Auth        *auth.Manager // nil for local checks
	Cascade     *llm.Cascade

	closers []func()
}

// Close releases provider clients and database pools
func (c *Components) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
}

// Build wires every stage from configuration. With withAuth the key store is
// opened and seeded and checks require a key when cfg.Auth.Enabled.
func Build(ctx context.Context, cfg *model.Config, logger *slog.Logger, metrics *observability.Metrics, withAuth bool) (*Components, error) {
	if logger == nil {
		logger = slog.Default()
	}
	comps := &Components{}

	byteCache := cache.New(cfg.Cache)

	tavily, err := search.NewTavilyClient(cfg.Search, cfg.HTTP)
	if err != nil {
		return nil, fmt.Errorf("search client: %w", err)
	}
	searcher := search.NewCachedSearcher(tavily, byteCache, cfg.Cache.MemoryTTL, logger)

	labeler, err := geo.New(ctx, cfg.Geography, cfg.Generation, cfg.HTTP, byteCache, logger, metrics)
	if err != nil {
		logger.Warn("geography classifier unavailable, every claim gets the fallback label", "error", err)
		labeler = geo.NewResilient(geo.StaticClassifier{Label: model.FallbackGeography()}, geo.WithLogger(logger))
	}

	engine := retrieve.NewEngine(searcher,
		sources.NewClassifier(cfg.Tiers, cfg.Retrieval.DomesticTLD),
		score.NewScorer(),
		cfg.Retrieval,
		retrieve.WithDepth(cfg.Search.Depth),
		retrieve.WithBatchTimeout(cfg.Search.Timeout),
		retrieve.WithLogger(logger),
		retrieve.WithObserver(metrics),
	)

	cascade, err := llm.BuildCascade(ctx, cfg.Generation, cfg.HTTP, logger, llm.WithObserver(metrics))
	if err != nil {
		return nil, fmt.Errorf("generation cascade: %w", err)
	}
	comps.Cascade = cascade
	comps.closers = append(comps.closers, func() { _ = cascade.Close() })

	opts := []Option{WithLogger(logger), WithMetrics(metrics)}

	if withAuth {
		manager, err := NewAuthManager(ctx, cfg.Auth, logger)
		if err != nil {
			comps.Close()
			return nil, err
		}
		comps.Auth = manager
		if closer, ok := manager.Store().(interface{ Close() }); ok {
			comps.closers = append(comps.closers, closer.Close)
		}
		opts = append(opts, WithAuthorizer(manager))
	}

	comps.Coordinator = NewCoordinator(labeler, engine, cascade, cfg.Retrieval, opts...)
	return comps, nil
}

// NewAuthManager opens the configured key store and seeds the pool
func NewAuthManager(ctx context.Context, cfg model.AuthConfig, logger *slog.Logger) (*auth.Manager, error) {
	store, err := auth.NewStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("key store: %w", err)
	}
	manager := auth.NewManager(store, auth.NewQuotaTracker(cfg.QuotaLimit, cfg.QuotaWindow), cfg.Enabled, logger)
	if err := manager.Init(ctx, cfg.PoolSize); err != nil {
		if closer, ok := store.(interface{ Close() }); ok {
			closer.Close()
		}
		return nil, err
	}
	return manager, nil
}
