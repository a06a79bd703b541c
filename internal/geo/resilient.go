package geo

import (
	"context"
	"log/slog"
	"time"

	"github.com/ppiankov/verity/internal/cache"
	"github.com/ppiankov/verity/internal/model"
)

// FallbackObserver is told whenever the fallback label replaces a classification
type FallbackObserver interface {
	GeographyFallback()
}

// Resilient wraps a Classifier so labelling never fails: errors, timeouts
// and invalid answers yield model.FallbackGeography(). Successful labels are
// cached per claim.
type Resilient struct {
	inner     Classifier
	timeout   time.Duration
	cache     cache.Cache
	ttl       time.Duration
	logger    *slog.Logger
	fallbacks FallbackObserver
}

// Option configures a Resilient classifier
type Option func(*Resilient)

// WithTimeout bounds each classification call
func WithTimeout(d time.Duration) Option {
	return func(r *Resilient) { r.timeout = d }
}

// WithCache memoizes successful labels for ttl
func WithCache(c cache.Cache, ttl time.Duration) Option {
	return func(r *Resilient) {
		r.cache = c
		r.ttl = ttl
	}
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(r *Resilient) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithFallbackObserver registers a fallback counter
func WithFallbackObserver(o FallbackObserver) Option {
	return func(r *Resilient) { r.fallbacks = o }
}

// NewResilient wraps inner
func NewResilient(inner Classifier, opts ...Option) *Resilient {
	r := &Resilient{
		inner:  inner,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Label classifies claim, substituting the fallback label on any failure
func (r *Resilient) Label(ctx context.Context, claim model.Claim) model.GeographyLabel {
	key := cache.Key("geo", claim.Normalize().String())
	if r.cache != nil {
		var cached model.GeographyLabel
		if cache.GetJSON(r.cache, key, &cached) {
			return cached
		}
	}

	callCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	label, err := r.inner.Classify(callCtx, claim)
	if err != nil {
		r.logger.Warn("geography classification failed, using fallback", "error", err)
		if r.fallbacks != nil {
			r.fallbacks.GeographyFallback()
		}
		return model.FallbackGeography()
	}

	if r.cache != nil {
		if err := cache.SetJSON(r.cache, key, label, r.ttl); err != nil {
			r.logger.Warn("geography cache write failed", "error", err)
		}
	}
	return label
}

// Classify implements Classifier; it never returns an error
func (r *Resilient) Classify(ctx context.Context, claim model.Claim) (model.GeographyLabel, error) {
	return r.Label(ctx, claim), nil
}
