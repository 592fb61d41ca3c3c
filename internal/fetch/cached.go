package fetch

import (
	"context"
	"time"

	"sjsage522/parkscraper/logger"
	"sjsage522/parkscraper/services/cache"
)

// Cached serves navigations from a page cache.
// After a cache hit the wrapped fetcher is still on the previous page,
// so the next interaction first navigates it for real.
type Cached struct {
	Fetcher
	cache   cache.CacheService
	ttl     time.Duration
	pending string
	log     *logger.Logger
}

// NewCached wraps f with the page cache c
func NewCached(f Fetcher, c cache.CacheService, ttl time.Duration) *Cached {
	return &Cached{
		Fetcher: f,
		cache:   c,
		ttl:     ttl,
		log:     logger.ForCache(),
	}
}

// Fetch returns a cached page for navigations, and fetches everything else
func (c *Cached) Fetch(ctx context.Context, a Action) (string, error) {
	if a.Kind == KindNavigate {
		if data, err := c.cache.Get(a.URL); err == nil {
			c.pending = a.URL
			c.log.Debug().Str("url", a.URL).Msg("Page cache hit")
			return string(data), nil
		}

		html, err := c.Fetcher.Fetch(ctx, a)
		if err != nil {
			return "", err
		}
		c.pending = ""
		if err := c.cache.Set(a.URL, []byte(html), c.ttl); err != nil {
			c.log.Warn().Err(err).Str("url", a.URL).Msg("Failed to cache page")
		}
		return html, nil
	}

	if err := c.sync(ctx); err != nil {
		return "", err
	}
	return c.Fetcher.Fetch(ctx, a)
}

// Location returns the URL of the last page served
func (c *Cached) Location(ctx context.Context) (string, error) {
	if c.pending != "" {
		return c.pending, nil
	}
	return c.Fetcher.Location(ctx)
}

func (c *Cached) sync(ctx context.Context) error {
	if c.pending == "" {
		return nil
	}
	url := c.pending
	c.pending = ""
	_, err := c.Fetcher.Fetch(ctx, Navigate(url))
	return err
}

// CachedOpener wraps every fetcher an Opener hands out with a shared page cache
type CachedOpener struct {
	Opener
	cache cache.CacheService
	ttl   time.Duration
}

// NewCachedOpener wraps o with the page cache c
func NewCachedOpener(o Opener, c cache.CacheService, ttl time.Duration) *CachedOpener {
	return &CachedOpener{Opener: o, cache: c, ttl: ttl}
}

// Open opens a fetcher from the wrapped Opener and wraps it with the cache
func (o *CachedOpener) Open(ctx context.Context) (Fetcher, error) {
	f, err := o.Opener.Open(ctx)
	if err != nil {
		return nil, err
	}
	return NewCached(f, o.cache, o.ttl), nil
}
