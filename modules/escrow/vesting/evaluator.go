package vesting

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gaze-network/uint128"
	"github.com/mutual-network/escrow-indexer/common/errs"
	"github.com/mutual-network/escrow-indexer/modules/escrow/internal/entity"
	"github.com/mutual-network/escrow-indexer/modules/escrow/pricefeed"
	"github.com/mutual-network/escrow-indexer/pkg/decimals"
)

// Signals are the external inputs of an evaluation.
type Signals struct {
	Now time.Time
	// TaskVerified is set once the promotional post was verified. A deal already eligible on the
	// ledger is considered verified.
	TaskVerified bool
	// MarketCap is the latest quote of the deal mint, nil when unavailable.
	MarketCap *pricefeed.Quote
}

type Result struct {
	// ClaimableNow is the total amount vested so far, including what was already released.
	ClaimableNow  uint64            `json:"claimableNow"`
	IsFullyVested bool              `json:"isFullyVested"`
	Eligibility   entity.DealStatus `json:"eligibility"`
}

// Evaluate computes the vested amount of the deal. All amounts are floored.
// Eligibility never goes back from the current deal status.
func (r Rules) Evaluate(deal entity.Deal, signals Signals) (Result, error) {
	switch deal.Status {
	case entity.DealStatusCreated, entity.DealStatusRejected:
		return Result{Eligibility: deal.Status}, nil
	case entity.DealStatusCompleted:
		return Result{ClaimableNow: deal.Amount, IsFullyVested: true, Eligibility: deal.Status}, nil
	case entity.DealStatusDisputed, entity.DealStatusResolved:
		// frozen until the admin decision, the final split comes from the resolution
		return Result{ClaimableNow: deal.ReleasedAmount, IsFullyVested: deal.ReleasedAmount == deal.Amount, Eligibility: deal.Status}, nil
	}

	if err := r.Validate(deal.VestingType, deal.VestingCondition); err != nil {
		return Result{}, err
	}

	if deal.Status == entity.DealStatusFullyEligible {
		return Result{ClaimableNow: deal.Amount, IsFullyVested: true, Eligibility: deal.Status}, nil
	}
	if !signals.TaskVerified && !deal.Status.IsVerified() {
		return Result{Eligibility: deal.Status}, nil
	}

	var claimable uint64
	switch deal.VestingType {
	case entity.VestingTypeNone:
		claimable = deal.Amount
	case entity.VestingTypeTime:
		claimable = max(r.firstUnlock(deal.Amount), linear(deal, signals.Now))
	case entity.VestingTypeMarketCap:
		claimable = r.firstUnlock(deal.Amount)
		if signals.MarketCap != nil {
			threshold := decimals.ToDecimal(deal.VestingCondition.MarketCapThresholdUSD, 0)
			if signals.MarketCap.MarketCapUSD.GreaterThanOrEqual(threshold) {
				claimable = deal.Amount
			}
		}
	}
	claimable = min(max(claimable, deal.ReleasedAmount), deal.Amount)

	result := Result{
		ClaimableNow:  claimable,
		IsFullyVested: claimable == deal.Amount,
		Eligibility:   entity.DealStatusPartiallyEligible,
	}
	if result.IsFullyVested {
		result.Eligibility = entity.DealStatusFullyEligible
	}
	if deal.Status.Rank() > result.Eligibility.Rank() {
		result.Eligibility = deal.Status
	}
	return result, nil
}

func (r Rules) firstUnlock(amount uint64) uint64 {
	return uint128.From64(amount).Mul64(uint64(r.FirstUnlockBps)).Div64(BpsDenominator).Uint64()
}

// linear returns floor(amount * elapsed / duration), capped at amount.
func linear(deal entity.Deal, now time.Time) uint64 {
	start := deal.AcceptTime
	if start.IsZero() {
		start = deal.StartTime
	}
	if !now.After(start) {
		return 0
	}
	elapsed := uint64(now.Sub(start) / time.Second)
	duration := deal.VestingCondition.DurationSeconds
	if elapsed >= duration {
		return deal.Amount
	}
	return uint128.From64(deal.Amount).Mul64(elapsed).Div64(duration).Uint64()
}

// ReleaseDelta returns the amount to request from the ledger, zero when nothing new is claimable.
func ReleaseDelta(releasedAmount uint64, result Result) uint64 {
	if result.ClaimableNow <= releasedAmount {
		return 0
	}
	return result.ClaimableNow - releasedAmount
}

// CheckRelease validates a release request against the evaluation.
func CheckRelease(deal entity.Deal, result Result, amount uint64) error {
	if amount == 0 {
		return errors.Wrap(errs.InvalidParameters, "release amount must be greater than zero")
	}
	if deal.ReleasedAmount+amount > result.ClaimableNow || deal.ReleasedAmount+amount > deal.Amount {
		return errors.Wrapf(errs.ExceedsVestedAmount, "release %d with %d released exceeds claimable %d", amount, deal.ReleasedAmount, result.ClaimableNow)
	}
	return nil
}
