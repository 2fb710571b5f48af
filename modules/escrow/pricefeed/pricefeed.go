// Package pricefeed provides token market capitalization from an external price collaborator.
package pricefeed

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Quote is the market capitalization of a token at a point in time.
type Quote struct {
	MarketCapUSD decimal.Decimal `json:"marketCapUsd"`
	AsOf         time.Time       `json:"asOf"`
}

// Feed returns the market cap of a mint. Failures must be treated as "not yet eligible".
type Feed interface {
	GetMarketCap(ctx context.Context, mint string) (Quote, error)
}
