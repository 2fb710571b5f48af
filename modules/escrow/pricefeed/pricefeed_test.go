package pricefeed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/mutual-network/escrow-indexer/common/errs"
	"github.com/mutual-network/escrow-indexer/modules/escrow/config"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingFeed struct {
	calls atomic.Int32
	err   error
	delay time.Duration
}

func (f *countingFeed) GetMarketCap(ctx context.Context, _ string) (Quote, error) {
	f.calls.Add(1)
	select {
	case <-time.After(f.delay):
	case <-ctx.Done():
		return Quote{}, ctx.Err()
	}
	if f.err != nil {
		return Quote{}, f.err
	}
	return Quote{MarketCapUSD: decimal.NewFromInt(1_000_000)}, nil
}

func TestCachedFeed(t *testing.T) {
	ctx := context.Background()

	t.Run("concurrent_lookups_share_one_call", func(t *testing.T) {
		upstream := &countingFeed{delay: 50 * time.Millisecond}
		feed := NewCachedFeed(upstream, time.Minute)

		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				quote, err := feed.GetMarketCap(ctx, "mint")
				assert.NoError(t, err)
				assert.True(t, quote.MarketCapUSD.Equal(decimal.NewFromInt(1_000_000)))
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), upstream.calls.Load())
	})

	t.Run("expires_after_ttl", func(t *testing.T) {
		upstream := &countingFeed{}
		feed := NewCachedFeed(upstream, time.Minute)
		now := time.Now()
		feed.now = func() time.Time { return now }

		_, err := feed.GetMarketCap(ctx, "mint")
		require.NoError(t, err)
		_, err = feed.GetMarketCap(ctx, "mint")
		require.NoError(t, err)
		assert.Equal(t, int32(1), upstream.calls.Load())

		now = now.Add(time.Minute)
		_, err = feed.GetMarketCap(ctx, "mint")
		require.NoError(t, err)
		assert.Equal(t, int32(2), upstream.calls.Load())
	})

	t.Run("mints_are_cached_separately", func(t *testing.T) {
		upstream := &countingFeed{}
		feed := NewCachedFeed(upstream, time.Minute)
		_, _ = feed.GetMarketCap(ctx, "a")
		_, _ = feed.GetMarketCap(ctx, "b")
		assert.Equal(t, int32(2), upstream.calls.Load())
	})

	t.Run("failures_are_cached_briefly", func(t *testing.T) {
		upstream := &countingFeed{err: errors.Wrap(errs.Unavailable, "down")}
		feed := NewCachedFeed(upstream, time.Minute)
		now := time.Now()
		feed.now = func() time.Time { return now }

		_, err := feed.GetMarketCap(ctx, "mint")
		assert.ErrorIs(t, err, errs.Unavailable)
		_, err = feed.GetMarketCap(ctx, "mint")
		assert.ErrorIs(t, err, errs.Unavailable)
		assert.Equal(t, int32(1), upstream.calls.Load())

		now = now.Add(DefaultFailureTTL)
		upstream.err = nil
		quote, err := feed.GetMarketCap(ctx, "mint")
		require.NoError(t, err)
		assert.True(t, quote.MarketCapUSD.Equal(decimal.NewFromInt(1_000_000)))
		assert.Equal(t, int32(2), upstream.calls.Load())
	})

	t.Run("canceled_caller_does_not_fail_waiters", func(t *testing.T) {
		upstream := &countingFeed{delay: 100 * time.Millisecond}
		feed := NewCachedFeed(upstream, time.Minute)

		firstCtx, cancel := context.WithCancel(ctx)
		first := make(chan error, 1)
		go func() {
			_, err := feed.GetMarketCap(firstCtx, "mint")
			first <- err
		}()
		require.Eventually(t, func() bool { return upstream.calls.Load() == 1 }, 5*time.Second, time.Millisecond)

		second := make(chan error, 1)
		go func() {
			_, err := feed.GetMarketCap(ctx, "mint")
			second <- err
		}()
		cancel()

		assert.ErrorIs(t, <-first, context.Canceled)
		assert.NoError(t, <-second)
		assert.Equal(t, int32(1), upstream.calls.Load())
	})
}

func TestDexscreenerClient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/latest/dex/tokens/listed":
			_, _ = w.Write([]byte(`{"pairs":[
				{"pairAddress":"deep","marketCap":1500000.5,"liquidity":{"usd":250000}},
				{"pairAddress":"thin","marketCap":9500000,"liquidity":{"usd":120}},
				{"pairAddress":"unpriced","liquidity":{"usd":900000}},
				{"pairAddress":"no_liquidity","marketCap":7000000}
			]}`))
		case "/latest/dex/tokens/illiquid":
			_, _ = w.Write([]byte(`{"pairs":[{"pairAddress":"a","marketCap":7000000,"liquidity":{"usd":0}}]}`))
		case "/latest/dex/tokens/unlisted":
			_, _ = w.Write([]byte(`{"pairs":null}`))
		default:
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	defer server.Close()

	client, err := NewDexscreenerClient(config.PriceFeedConfig{URL: server.URL, Timeout: 5 * time.Second})
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("most_liquid_pair_market_cap", func(t *testing.T) {
		quote, err := client.GetMarketCap(ctx, "listed")
		require.NoError(t, err)
		assert.True(t, quote.MarketCapUSD.Equal(decimal.RequireFromString("1500000.5")), quote.MarketCapUSD.String())
		assert.False(t, quote.AsOf.IsZero())
	})

	t.Run("illiquid_pairs_are_ignored", func(t *testing.T) {
		_, err := client.GetMarketCap(ctx, "illiquid")
		assert.ErrorIs(t, err, errs.NotFound)
	})

	t.Run("no_pairs", func(t *testing.T) {
		_, err := client.GetMarketCap(ctx, "unlisted")
		assert.ErrorIs(t, err, errs.NotFound)
	})

	t.Run("upstream_unavailable", func(t *testing.T) {
		_, err := client.GetMarketCap(ctx, "broken")
		assert.ErrorIs(t, err, errs.Unavailable)
		assert.True(t, errs.IsRetryable(err))
	})
}
