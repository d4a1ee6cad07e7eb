package identity

import (
	"context"
	"time"

	"truetrack/internal/cache"
)

// searchCacheTTL mirrors the short-lived nature of a recording search: the
// same raw query resolved twice in quick succession (retry after a
// transient failure, a duplicate idempotent request) shouldn't re-run
// yt-dlp.
const searchCacheTTL = 10 * time.Minute

// CachingProvider wraps a Provider with a TTL cache keyed on the raw query
// string, avoiding a repeat subprocess invocation for an identical query.
type CachingProvider struct {
	inner Provider
	cache *cache.MemoryCache
}

// NewCachingProvider builds a CachingProvider around inner.
func NewCachingProvider(inner Provider) *CachingProvider {
	return &CachingProvider{
		inner: inner,
		cache: cache.NewMemoryCache(searchCacheTTL),
	}
}

// Resolve returns a cached result for query if present and unexpired,
// otherwise delegates to the wrapped Provider and caches the outcome.
func (p *CachingProvider) Resolve(ctx context.Context, query string) ([]Candidate, error) {
	if cached, ok := p.cache.Get(query); ok {
		return cached.([]Candidate), nil
	}

	candidates, err := p.inner.Resolve(ctx, query)
	if err != nil {
		return nil, err
	}
	p.cache.Set(query, candidates)
	return candidates, nil
}

var _ Provider = (*CachingProvider)(nil)
