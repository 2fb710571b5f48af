package pricefeed

import (
	"context"
	"sync"
	"time"

	"github.com/Cleverse/go-utilities/utils"
	"github.com/cockroachdb/errors"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultCacheTTL = time.Minute

	// DefaultFailureTTL is how long a failed lookup is served from cache before the upstream is asked again.
	DefaultFailureTTL = 10 * time.Second

	// DefaultLookupTimeout bounds a shared upstream call, which runs detached from the callers' contexts.
	DefaultLookupTimeout = 30 * time.Second
)

var _ Feed = (*CachedFeed)(nil)

// CachedFeed caches quotes per mint. Concurrent lookups of a mint share one upstream call,
// so the upstream is called at most once per mint within the TTL. Failures are cached for a shorter TTL.
type CachedFeed struct {
	feed          Feed
	ttl           time.Duration
	failureTTL    time.Duration
	lookupTimeout time.Duration
	now           func() time.Time
	group         singleflight.Group

	mu     sync.RWMutex
	quotes map[string]cachedQuote
}

type cachedQuote struct {
	quote     Quote
	err       error
	expiresAt time.Time
}

func NewCachedFeed(feed Feed, ttl time.Duration) *CachedFeed {
	ttl = utils.Default(ttl, DefaultCacheTTL)
	return &CachedFeed{
		feed:          feed,
		ttl:           ttl,
		failureTTL:    min(ttl, DefaultFailureTTL),
		lookupTimeout: DefaultLookupTimeout,
		now:           time.Now,
		quotes:        make(map[string]cachedQuote),
	}
}

// GetMarketCap returns the cached quote of mint or waits for the shared upstream call.
// A canceled ctx only stops this caller from waiting, the shared call keeps running for the others.
func (c *CachedFeed) GetMarketCap(ctx context.Context, mint string) (Quote, error) {
	if entry, ok := c.cached(mint); ok {
		return entry.quote, entry.err
	}
	ch := c.group.DoChan(mint, func() (interface{}, error) {
		if entry, ok := c.cached(mint); ok {
			return entry.quote, entry.err
		}
		lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.lookupTimeout)
		defer cancel()
		quote, err := c.feed.GetMarketCap(lookupCtx, mint)
		entry := cachedQuote{quote: quote, expiresAt: c.now().Add(c.ttl)}
		if err != nil {
			entry = cachedQuote{err: errors.WithStack(err), expiresAt: c.now().Add(c.failureTTL)}
		}
		c.mu.Lock()
		c.quotes[mint] = entry
		c.mu.Unlock()
		return entry.quote, entry.err
	})
	select {
	case result := <-ch:
		if result.Err != nil {
			return Quote{}, result.Err
		}
		return result.Val.(Quote), nil
	case <-ctx.Done():
		return Quote{}, errors.WithStack(ctx.Err())
	}
}

func (c *CachedFeed) cached(mint string) (cachedQuote, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.quotes[mint]
	if !ok || !c.now().Before(entry.expiresAt) {
		return cachedQuote{}, false
	}
	return entry, true
}
