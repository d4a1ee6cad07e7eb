package metadata

import (
	"context"
	"time"

	"truetrack/internal/cache"
)

// searchCacheTTL is longer than identity's: canonical metadata for a given
// title/artist pair changes far less often than a recording search result.
const searchCacheTTL = 30 * time.Minute

// CachingClient wraps a Client with a TTL cache keyed on title+artist.
type CachingClient struct {
	inner Client
	cache *cache.MemoryCache
}

// NewCachingClient builds a CachingClient around inner.
func NewCachingClient(inner Client) *CachingClient {
	return &CachingClient{
		inner: inner,
		cache: cache.NewMemoryCache(searchCacheTTL),
	}
}

// Search returns a cached result for the title/artist pair if present and
// unexpired, otherwise delegates to the wrapped Client and caches the
// outcome.
func (c *CachingClient) Search(ctx context.Context, title, artist string) ([]Candidate, error) {
	key := title + "\x00" + artist
	if cached, ok := c.cache.Get(key); ok {
		return cached.([]Candidate), nil
	}

	candidates, err := c.inner.Search(ctx, title, artist)
	if err != nil {
		return nil, err
	}
	c.cache.Set(key, candidates)
	return candidates, nil
}

var _ Client = (*CachingClient)(nil)
