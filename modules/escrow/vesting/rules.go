// Package vesting computes the claimable amount and eligibility of a deal from external signals.
package vesting

import (
	"slices"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/mutual-network/escrow-indexer/common/errs"
	"github.com/mutual-network/escrow-indexer/modules/escrow/config"
	"github.com/mutual-network/escrow-indexer/modules/escrow/internal/entity"
	"github.com/mutual-network/escrow-indexer/pkg/decimals"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// BpsDenominator is 100% in basis points.
const BpsDenominator = 10_000

// Rules are the configured vesting terms.
type Rules struct {
	// FirstUnlockBps is the share released on proof-of-task verification for TIME and MARKETCAP vesting.
	FirstUnlockBps       uint32
	MarketCapThresholds  []decimal.Decimal
	AllowCustomMarketCap bool
	DurationOptions      []time.Duration
	AllowCustomDuration  bool
}

func NewRules(conf config.VestingConfig) (Rules, error) {
	if conf.FirstUnlockBps > BpsDenominator {
		return Rules{}, errors.Wrapf(errs.InvalidArgument, "first unlock bps %d exceeds %d", conf.FirstUnlockBps, BpsDenominator)
	}
	thresholds := make([]decimal.Decimal, 0, len(conf.MarketCapThresholds))
	for _, s := range conf.MarketCapThresholds {
		threshold, err := decimal.NewFromString(s)
		if err != nil {
			return Rules{}, errors.Wrapf(errs.InvalidArgument, "invalid market cap threshold %q", s)
		}
		if !threshold.IsPositive() {
			return Rules{}, errors.Wrapf(errs.InvalidArgument, "market cap threshold %q must be positive", s)
		}
		thresholds = append(thresholds, threshold)
	}
	return Rules{
		FirstUnlockBps:       conf.FirstUnlockBps,
		MarketCapThresholds:  thresholds,
		AllowCustomMarketCap: conf.AllowCustomMarketCap,
		DurationOptions:      slices.Clone(conf.DurationOptions),
		AllowCustomDuration:  conf.AllowCustomDuration,
	}, nil
}

// Validate checks the condition shape and that its value is one of the allowed options.
func (r Rules) Validate(vestingType entity.VestingType, condition entity.VestingCondition) error {
	switch vestingType {
	case entity.VestingTypeNone:
		if condition != (entity.VestingCondition{}) {
			return errors.Wrap(errs.InvalidVestingCondition, "NONE vesting takes no condition")
		}
	case entity.VestingTypeTime:
		if condition.DurationSeconds == 0 || condition.MarketCapThresholdUSD != 0 {
			return errors.Wrap(errs.InvalidVestingCondition, "TIME vesting requires a duration only")
		}
		if !r.AllowCustomDuration && !slices.Contains(r.DurationOptions, condition.Duration()) {
			return errors.Wrapf(errs.InvalidVestingCondition, "duration %s is not an allowed option", condition.Duration())
		}
	case entity.VestingTypeMarketCap:
		if condition.MarketCapThresholdUSD == 0 || condition.DurationSeconds != 0 {
			return errors.Wrap(errs.InvalidVestingCondition, "MARKETCAP vesting requires a threshold only")
		}
		threshold := decimals.ToDecimal(condition.MarketCapThresholdUSD, 0)
		allowed := lo.ContainsBy(r.MarketCapThresholds, func(d decimal.Decimal) bool { return d.Equal(threshold) })
		if !r.AllowCustomMarketCap && !allowed {
			return errors.Wrapf(errs.InvalidVestingCondition, "market cap threshold %s is not an allowed option", threshold)
		}
	default:
		return errors.Wrapf(errs.InvalidVestingCondition, "unknown vesting type %q", vestingType)
	}
	return nil
}
