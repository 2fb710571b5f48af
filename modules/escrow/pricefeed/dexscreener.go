package pricefeed

import (
	"context"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/mutual-network/escrow-indexer/common/errs"
	"github.com/mutual-network/escrow-indexer/modules/escrow/config"
	"github.com/mutual-network/escrow-indexer/pkg/httpclient"
	"github.com/shopspring/decimal"
	"github.com/valyala/fasthttp"
)

var _ Feed = (*DexscreenerClient)(nil)

// DexscreenerClient reads market caps from the Dexscreener token pairs API.
type DexscreenerClient struct {
	http *httpclient.Client
	now  func() time.Time
}

func NewDexscreenerClient(conf config.PriceFeedConfig) (*DexscreenerClient, error) {
	client, err := httpclient.New(conf.URL, httpclient.Config{
		Timeout:   conf.Timeout,
		RateLimit: conf.RateLimit,
		Burst:     conf.Burst,
	})
	if err != nil {
		return nil, errors.Wrap(err, "can't create price feed http client")
	}
	return &DexscreenerClient{http: client, now: time.Now}, nil
}

type dexscreenerTokensResponse struct {
	Pairs []struct {
		ChainID     string           `json:"chainId"`
		PairAddress string           `json:"pairAddress"`
		MarketCap   *decimal.Decimal `json:"marketCap"`
		FDV         *decimal.Decimal `json:"fdv"`
		Liquidity   *struct {
			USD *decimal.Decimal `json:"usd"`
		} `json:"liquidity"`
	} `json:"pairs"`
}

// GetMarketCap returns the market cap reported by the most liquid pair of the token.
// Pairs without liquidity are ignored, a thin pair must not decide eligibility.
func (c *DexscreenerClient) GetMarketCap(ctx context.Context, mint string) (Quote, error) {
	resp, err := c.http.Get(ctx, fmt.Sprintf("/latest/dex/tokens/%s", mint), httpclient.RequestOptions{})
	if err != nil {
		return Quote{}, errors.Wrap(err, "can't get token pairs")
	}
	switch status := resp.StatusCode(); {
	case status == fasthttp.StatusTooManyRequests || status >= fasthttp.StatusInternalServerError:
		return Quote{}, errors.Wrapf(errs.Unavailable, "price feed status %d", status)
	case status != fasthttp.StatusOK:
		return Quote{}, errors.Wrapf(errs.InternalError, "price feed status %d", status)
	}

	var body dexscreenerTokensResponse
	if err := resp.UnmarshalBody(&body); err != nil {
		return Quote{}, errors.WithStack(err)
	}

	var (
		marketCap decimal.Decimal
		liquidity decimal.Decimal
		found     bool
	)
	for _, pair := range body.Pairs {
		if pair.MarketCap == nil || pair.Liquidity == nil || pair.Liquidity.USD == nil || !pair.Liquidity.USD.IsPositive() {
			continue
		}
		if !found || pair.Liquidity.USD.GreaterThan(liquidity) {
			marketCap, liquidity, found = *pair.MarketCap, *pair.Liquidity.USD, true
		}
	}
	if !found {
		return Quote{}, errors.Wrapf(errs.NotFound, "no liquid pair with a market cap for mint %s", mint)
	}
	return Quote{MarketCapUSD: marketCap, AsOf: c.now()}, nil
}
