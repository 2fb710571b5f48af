// Package settlement turns a vesting evaluation into ledger instructions.
package settlement

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/mutual-network/escrow-indexer/common"
	"github.com/mutual-network/escrow-indexer/common/errs"
	"github.com/mutual-network/escrow-indexer/modules/escrow/datagateway"
	"github.com/mutual-network/escrow-indexer/modules/escrow/internal/entity"
	"github.com/mutual-network/escrow-indexer/modules/escrow/internal/metrics"
	"github.com/mutual-network/escrow-indexer/modules/escrow/ledger"
	"github.com/mutual-network/escrow-indexer/modules/escrow/locker"
	"github.com/mutual-network/escrow-indexer/modules/escrow/pricefeed"
	"github.com/mutual-network/escrow-indexer/modules/escrow/vesting"
	"github.com/mutual-network/escrow-indexer/pkg/logger"
	"github.com/mutual-network/escrow-indexer/pkg/logger/slogx"
	"github.com/samber/lo"
)

// Outcome reports what was submitted to the ledger.
type Outcome struct {
	Evaluation  vesting.Result     `json:"evaluation"`
	Eligibility *ledger.Submission `json:"eligibility,omitempty"`
	Release     *ledger.Submission `json:"release,omitempty"`
	Released    uint64             `json:"released"`
}

type Settler struct {
	escrowDg datagateway.EscrowReaderDataGateway
	client   ledger.Client
	feed     pricefeed.Feed
	rules    vesting.Rules
	locker   locker.Locker
	chainID  common.ChainID
	admin    string
	now      func() time.Time
}

func New(escrowDg datagateway.EscrowReaderDataGateway, client ledger.Client, feed pricefeed.Feed, rules vesting.Rules, dealLocker locker.Locker, chainID common.ChainID, admin string) *Settler {
	return &Settler{
		escrowDg: escrowDg,
		client:   client,
		feed:     feed,
		rules:    rules,
		locker:   dealLocker,
		chainID:  chainID,
		admin:    admin,
		now:      time.Now,
	}
}

// WithClock overrides the clock used for time based vesting.
func (s *Settler) WithClock(now func() time.Time) *Settler {
	s.now = now
	return s
}

// Preview evaluates the deal without touching the ledger.
func (s *Settler) Preview(ctx context.Context, deal entity.Deal) (vesting.Result, error) {
	return s.rules.Evaluate(deal, s.signals(ctx, deal, false))
}

// Settle evaluates the deal and, under the deal lock, flips the ledger eligibility flag when a new
// milestone is reached and releases the newly vested amount. Ledger balances are read right before
// submitting, so the projection lagging behind never causes a double release.
func (s *Settler) Settle(ctx context.Context, orderID entity.OrderID, taskVerified bool) (Outcome, error) {
	ctx = logger.WithContext(ctx, slogx.OrderID(orderID))

	unlock, err := s.locker.Lock(ctx, locker.DealKey(s.chainID, orderID))
	if err != nil {
		return Outcome{}, errors.Wrap(err, "failed to lock deal")
	}
	defer unlock()

	deal, err := s.escrowDg.GetDeal(ctx, s.chainID, orderID)
	if err != nil {
		return Outcome{}, errors.Wrap(err, "failed to get deal")
	}
	account, err := s.client.GetDeal(ctx, deal.DealAddress)
	if err != nil {
		return Outcome{}, errors.Wrap(err, "failed to read ledger account")
	}
	// the ledger is authoritative, the projection may not have caught up yet
	if account.Status.Rank() > deal.Status.Rank() {
		deal.Status = account.Status
	}
	deal.ReleasedAmount = max(deal.ReleasedAmount, account.ReleasedAmount)
	if !deal.Status.IsVesting() {
		return Outcome{}, errors.Wrapf(errs.InvalidState, "deal is %s", deal.Status)
	}

	result, err := s.rules.Evaluate(deal, s.signals(ctx, deal, taskVerified))
	if err != nil {
		return Outcome{}, errors.Wrap(err, "failed to evaluate vesting")
	}
	outcome := Outcome{Evaluation: result}

	status := account.Status
	if needsEligibility(status, result.Eligibility) {
		sub, err := s.client.SetEligibility(ctx, deal.DealAddress, s.admin, result.Eligibility)
		if err != nil {
			metrics.LedgerSubmissionErrors.WithLabelValues("set_eligibility").Inc()
			return outcome, errors.Wrapf(err, "failed to set eligibility %s", result.Eligibility)
		}
		outcome.Eligibility = &sub
		status = result.Eligibility
		logger.InfoContext(ctx, "Deal eligibility updated",
			slogx.String("status", result.Eligibility.String()),
			slogx.Signature(sub.Signature),
		)
	}

	delta := vesting.ReleaseDelta(account.ReleasedAmount, result)
	if delta == 0 || !lo.Contains(releasable, status) {
		return outcome, nil
	}
	sub, err := s.client.ReleasePayment(ctx, deal.DealAddress, delta)
	if err != nil {
		metrics.LedgerSubmissionErrors.WithLabelValues("release_payment").Inc()
		return outcome, errors.Wrapf(err, "failed to release %d", delta)
	}
	metrics.PaymentsReleased.Inc()
	outcome.Release = &sub
	outcome.Released = delta
	logger.InfoContext(ctx, "Payment released",
		slogx.Uint64("amount", delta),
		slogx.Uint64("claimable", result.ClaimableNow),
		slogx.Signature(sub.Signature),
	)
	return outcome, nil
}

var releasable = []entity.DealStatus{
	entity.DealStatusPartiallyEligible,
	entity.DealStatusPartialCompleted,
	entity.DealStatusFullyEligible,
}

// needsEligibility reports whether the ledger accepts moving from current to target.
func needsEligibility(current, target entity.DealStatus) bool {
	switch target {
	case entity.DealStatusPartiallyEligible:
		return current == entity.DealStatusAccepted
	case entity.DealStatusFullyEligible:
		return lo.Contains([]entity.DealStatus{
			entity.DealStatusAccepted,
			entity.DealStatusPartiallyEligible,
			entity.DealStatusPartialCompleted,
		}, current)
	}
	return false
}

func (s *Settler) signals(ctx context.Context, deal entity.Deal, taskVerified bool) vesting.Signals {
	signals := vesting.Signals{Now: s.now(), TaskVerified: taskVerified}
	if deal.VestingType != entity.VestingTypeMarketCap || s.feed == nil {
		return signals
	}
	quote, err := s.feed.GetMarketCap(ctx, deal.Mint)
	if err != nil {
		logger.DebugContext(ctx, "Market cap unavailable, threshold not reached yet", slogx.Error(err), slogx.String("mint", deal.Mint))
		return signals
	}
	signals.MarketCap = &quote
	return signals
}
