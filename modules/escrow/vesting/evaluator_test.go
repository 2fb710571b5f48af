package vesting

import (
	"testing"
	"time"

	"github.com/mutual-network/escrow-indexer/common/errs"
	"github.com/mutual-network/escrow-indexer/modules/escrow/config"
	"github.com/mutual-network/escrow-indexer/modules/escrow/internal/entity"
	"github.com/mutual-network/escrow-indexer/modules/escrow/pricefeed"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var acceptTime = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

func defaultRules(t *testing.T) Rules {
	rules, err := NewRules(config.Default().Vesting)
	require.NoError(t, err)
	return rules
}

func timeDeal(amount uint64, duration time.Duration) entity.Deal {
	return entity.Deal{
		Amount:           amount,
		VestingType:      entity.VestingTypeTime,
		VestingCondition: entity.VestingCondition{DurationSeconds: uint64(duration / time.Second)},
		Status:           entity.DealStatusAccepted,
		AcceptTime:       acceptTime,
	}
}

func TestEvaluateTime(t *testing.T) {
	rules := defaultRules(t)
	duration := 30 * 24 * time.Hour
	deal := timeDeal(1_000_000_000, duration)

	testCases := []struct {
		name        string
		now         time.Time
		claimable   uint64
		fullyVested bool
		eligibility entity.DealStatus
	}{
		{name: "at_accept_first_unlock", now: acceptTime, claimable: 200_000_000, eligibility: entity.DealStatusPartiallyEligible},
		{name: "before_first_unlock_is_reached", now: acceptTime.Add(duration / 10), claimable: 200_000_000, eligibility: entity.DealStatusPartiallyEligible},
		{name: "half_duration", now: acceptTime.Add(duration / 2), claimable: 500_000_000, eligibility: entity.DealStatusPartiallyEligible},
		{name: "full_duration", now: acceptTime.Add(duration), claimable: 1_000_000_000, fullyVested: true, eligibility: entity.DealStatusFullyEligible},
		{name: "after_duration", now: acceptTime.Add(2 * duration), claimable: 1_000_000_000, fullyVested: true, eligibility: entity.DealStatusFullyEligible},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := rules.Evaluate(deal, Signals{Now: tc.now, TaskVerified: true})
			require.NoError(t, err)
			assert.Equal(t, tc.claimable, result.ClaimableNow)
			assert.Equal(t, tc.fullyVested, result.IsFullyVested)
			assert.Equal(t, tc.eligibility, result.Eligibility)
		})
	}

	t.Run("floors_fractions", func(t *testing.T) {
		d := timeDeal(7, 30*24*time.Hour)
		result, err := rules.Evaluate(d, Signals{Now: acceptTime.Add(15 * 24 * time.Hour), TaskVerified: true})
		require.NoError(t, err)
		assert.Equal(t, uint64(3), result.ClaimableNow)
	})

	t.Run("not_verified", func(t *testing.T) {
		result, err := rules.Evaluate(deal, Signals{Now: acceptTime.Add(duration)})
		require.NoError(t, err)
		assert.Zero(t, result.ClaimableNow)
		assert.Equal(t, entity.DealStatusAccepted, result.Eligibility)
	})

	t.Run("verified_status_counts_as_verified", func(t *testing.T) {
		d := deal
		d.Status = entity.DealStatusPartialCompleted
		d.ReleasedAmount = 200_000_000
		result, err := rules.Evaluate(d, Signals{Now: acceptTime.Add(duration / 2)})
		require.NoError(t, err)
		assert.Equal(t, uint64(500_000_000), result.ClaimableNow)
		assert.Equal(t, entity.DealStatusPartialCompleted, result.Eligibility)
		assert.Equal(t, uint64(300_000_000), ReleaseDelta(d.ReleasedAmount, result))
	})

	t.Run("large_amounts_do_not_overflow", func(t *testing.T) {
		d := timeDeal(18_000_000_000_000_000_000, duration)
		result, err := rules.Evaluate(d, Signals{Now: acceptTime.Add(duration / 2), TaskVerified: true})
		require.NoError(t, err)
		assert.Equal(t, uint64(9_000_000_000_000_000_000), result.ClaimableNow)
	})
}

func TestEvaluateMarketCap(t *testing.T) {
	rules := defaultRules(t)
	deal := entity.Deal{
		Amount:           1_000,
		VestingType:      entity.VestingTypeMarketCap,
		VestingCondition: entity.VestingCondition{MarketCapThresholdUSD: 1_000_000},
		Status:           entity.DealStatusAccepted,
		AcceptTime:       acceptTime,
	}
	quote := func(v int64) *pricefeed.Quote {
		return &pricefeed.Quote{MarketCapUSD: decimal.NewFromInt(v)}
	}

	testCases := []struct {
		name      string
		marketCap *pricefeed.Quote
		claimable uint64
	}{
		{name: "no_quote", marketCap: nil, claimable: 200},
		{name: "below_threshold", marketCap: quote(999_999), claimable: 200},
		{name: "at_threshold", marketCap: quote(1_000_000), claimable: 1_000},
		{name: "above_threshold", marketCap: quote(50_000_000), claimable: 1_000},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := rules.Evaluate(deal, Signals{Now: acceptTime.Add(time.Hour), TaskVerified: true, MarketCap: tc.marketCap})
			require.NoError(t, err)
			assert.Equal(t, tc.claimable, result.ClaimableNow)
			assert.Equal(t, tc.claimable == deal.Amount, result.IsFullyVested)
		})
	}
}

func TestEvaluateNone(t *testing.T) {
	rules := defaultRules(t)
	deal := entity.Deal{Amount: 1_000_000_000, VestingType: entity.VestingTypeNone, Status: entity.DealStatusAccepted}

	result, err := rules.Evaluate(deal, Signals{Now: acceptTime, TaskVerified: true})
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000_000_000), result.ClaimableNow)
	assert.True(t, result.IsFullyVested)
	assert.Equal(t, entity.DealStatusFullyEligible, result.Eligibility)
	assert.Equal(t, uint64(1_000_000_000), ReleaseDelta(0, result))
}

func TestEvaluateInvalidCondition(t *testing.T) {
	rules := defaultRules(t)
	testCases := []struct {
		name        string
		vestingType entity.VestingType
		condition   entity.VestingCondition
	}{
		{name: "time_without_duration", vestingType: entity.VestingTypeTime},
		{name: "time_duration_not_allowed", vestingType: entity.VestingTypeTime, condition: entity.VestingCondition{DurationSeconds: 3600}},
		{name: "marketcap_threshold_not_allowed", vestingType: entity.VestingTypeMarketCap, condition: entity.VestingCondition{MarketCapThresholdUSD: 123}},
		{name: "marketcap_with_duration", vestingType: entity.VestingTypeMarketCap, condition: entity.VestingCondition{MarketCapThresholdUSD: 1_000_000, DurationSeconds: 1}},
		{name: "none_with_condition", vestingType: entity.VestingTypeNone, condition: entity.VestingCondition{DurationSeconds: 1}},
		{name: "unknown_type", vestingType: entity.VestingType("LINEAR")},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			deal := entity.Deal{Amount: 1000, VestingType: tc.vestingType, VestingCondition: tc.condition, Status: entity.DealStatusAccepted}
			_, err := rules.Evaluate(deal, Signals{Now: acceptTime, TaskVerified: true})
			assert.ErrorIs(t, err, errs.InvalidVestingCondition)
		})
	}

	t.Run("custom_values_when_allowed", func(t *testing.T) {
		custom := rules
		custom.AllowCustomDuration = true
		custom.AllowCustomMarketCap = true
		assert.NoError(t, custom.Validate(entity.VestingTypeTime, entity.VestingCondition{DurationSeconds: 3600}))
		assert.NoError(t, custom.Validate(entity.VestingTypeMarketCap, entity.VestingCondition{MarketCapThresholdUSD: 123}))
	})
}

func TestCheckRelease(t *testing.T) {
	deal := entity.Deal{Amount: 1000, ReleasedAmount: 200}
	result := Result{ClaimableNow: 500}
	assert.NoError(t, CheckRelease(deal, result, 300))
	assert.ErrorIs(t, CheckRelease(deal, result, 301), errs.ExceedsVestedAmount)
	assert.ErrorIs(t, CheckRelease(deal, result, 0), errs.InvalidParameters)
}

func TestNewRules(t *testing.T) {
	t.Run("rejects_invalid_threshold", func(t *testing.T) {
		conf := config.Default().Vesting
		conf.MarketCapThresholds = []string{"abc"}
		_, err := NewRules(conf)
		assert.ErrorIs(t, err, errs.InvalidArgument)
	})
	t.Run("rejects_split_above_100_percent", func(t *testing.T) {
		conf := config.Default().Vesting
		conf.FirstUnlockBps = 10_001
		_, err := NewRules(conf)
		assert.ErrorIs(t, err, errs.InvalidArgument)
	})
}
