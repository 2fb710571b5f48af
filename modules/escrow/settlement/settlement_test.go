package settlement_test

import (
	"context"
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/mutual-network/escrow-indexer/common"
	"github.com/mutual-network/escrow-indexer/common/errs"
	"github.com/mutual-network/escrow-indexer/modules/escrow"
	"github.com/mutual-network/escrow-indexer/modules/escrow/config"
	"github.com/mutual-network/escrow-indexer/modules/escrow/internal/entity"
	"github.com/mutual-network/escrow-indexer/modules/escrow/ledger"
	"github.com/mutual-network/escrow-indexer/modules/escrow/ledger/ledgertest"
	"github.com/mutual-network/escrow-indexer/modules/escrow/locker"
	"github.com/mutual-network/escrow-indexer/modules/escrow/pricefeed"
	"github.com/mutual-network/escrow-indexer/modules/escrow/repository/memory"
	"github.com/mutual-network/escrow-indexer/modules/escrow/settlement"
	"github.com/mutual-network/escrow-indexer/modules/escrow/vesting"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	owner = ledgertest.Key(1)
	kol   = ledgertest.Key(2)
	mint  = ledgertest.Key(3)
	admin = ledgertest.Key(9)
)

type stubFeed struct {
	mu    sync.Mutex
	quote decimal.Decimal
	err   error
}

func (f *stubFeed) set(marketCap int64, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.quote = decimal.NewFromInt(marketCap)
	f.err = err
}

func (f *stubFeed) GetMarketCap(context.Context, string) (pricefeed.Quote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return pricefeed.Quote{}, f.err
	}
	return pricefeed.Quote{MarketCapUSD: f.quote}, nil
}

type suite struct {
	fake      *ledgertest.Fake
	repo      *memory.Repository
	processor *escrow.Processor
	feed      *stubFeed
	settler   *settlement.Settler
}

func newSuite(t *testing.T) *suite {
	t.Helper()
	rules, err := vesting.NewRules(config.Default().Vesting)
	require.NoError(t, err)

	fake := ledgertest.New("program")
	fake.SetBalance(owner, mint, 1_000_000)
	repo := memory.NewRepository()
	dealLocker := locker.NewMemory()
	feed := &stubFeed{}
	return &suite{
		fake:      fake,
		repo:      repo,
		processor: escrow.NewProcessor(repo, dealLocker, common.ChainLocalnet, "program"),
		feed:      feed,
		settler:   settlement.New(repo, fake, feed, rules, dealLocker, common.ChainLocalnet, admin),
	}
}

// acceptedDeal creates and accepts a deal on the fake ledger, then ingests it.
func (s *suite) acceptedDeal(t *testing.T, orderID string, vestingType entity.VestingType, condition entity.VestingCondition) entity.OrderID {
	t.Helper()
	ctx := context.Background()
	result, err := s.fake.CreateDeal(ctx, ledger.CreateDealParams{
		OrderID:          orderID,
		ProjectOwner:     owner,
		KOL:              kol,
		Mint:             mint,
		Amount:           1_000,
		VestingType:      vestingType,
		VestingCondition: condition,
	})
	require.NoError(t, err)
	_, err = s.fake.AcceptDeal(ctx, result.DealAddress, kol)
	require.NoError(t, err)
	s.sync(t)

	id, err := entity.NewOrderID(orderID)
	require.NoError(t, err)
	return id
}

func (s *suite) sync(t *testing.T) {
	t.Helper()
	require.NoError(t, s.processor.Process(context.Background(), s.fake.Batch(0)))
}

func (s *suite) ledgerAccount(t *testing.T, orderID entity.OrderID) ledger.AccountState {
	t.Helper()
	account, err := s.fake.GetDeal(context.Background(), ledgertest.DealAddress("program", orderID))
	require.NoError(t, err)
	return account
}

func TestSettleNoneVesting(t *testing.T) {
	ctx := context.Background()

	t.Run("not_verified_does_nothing", func(t *testing.T) {
		s := newSuite(t)
		id := s.acceptedDeal(t, "order-1", entity.VestingTypeNone, entity.VestingCondition{})

		outcome, err := s.settler.Settle(ctx, id, false)
		require.NoError(t, err)
		assert.Nil(t, outcome.Eligibility)
		assert.Nil(t, outcome.Release)
		assert.Zero(t, s.fake.Calls("ReleasePayment"))
	})

	t.Run("verified_releases_everything", func(t *testing.T) {
		s := newSuite(t)
		id := s.acceptedDeal(t, "order-1", entity.VestingTypeNone, entity.VestingCondition{})

		outcome, err := s.settler.Settle(ctx, id, true)
		require.NoError(t, err)
		require.NotNil(t, outcome.Eligibility)
		require.NotNil(t, outcome.Release)
		assert.Equal(t, uint64(1_000), outcome.Released)

		s.sync(t)
		deal, err := s.repo.GetDeal(ctx, common.ChainLocalnet, id)
		require.NoError(t, err)
		assert.Equal(t, entity.DealStatusCompleted, deal.Status)
		assert.Equal(t, uint64(1_000), deal.ReleasedAmount)

		_, err = s.settler.Settle(ctx, id, true)
		assert.ErrorIs(t, err, errs.InvalidState)
	})
}

func TestSettleMarketCap(t *testing.T) {
	ctx := context.Background()
	s := newSuite(t)
	id := s.acceptedDeal(t, "order-1", entity.VestingTypeMarketCap, entity.VestingCondition{MarketCapThresholdUSD: 1_000_000})

	s.feed.set(500_000, nil)
	outcome, err := s.settler.Settle(ctx, id, true)
	require.NoError(t, err)
	assert.Equal(t, uint64(200), outcome.Released)
	assert.Equal(t, entity.DealStatusPartialCompleted, s.ledgerAccount(t, id).Status)

	t.Run("stale_projection_does_not_release_twice", func(t *testing.T) {
		outcome, err := s.settler.Settle(ctx, id, true)
		require.NoError(t, err)
		assert.Nil(t, outcome.Release)
		assert.Equal(t, 1, s.fake.Calls("ReleasePayment"))
	})

	t.Run("price_feed_failure_is_not_eligible", func(t *testing.T) {
		s.feed.set(0, errors.Wrap(errs.Unavailable, "price feed down"))
		s.sync(t)
		outcome, err := s.settler.Settle(ctx, id, false)
		require.NoError(t, err)
		assert.Nil(t, outcome.Release)
		assert.Equal(t, uint64(200), outcome.Evaluation.ClaimableNow)
	})

	t.Run("threshold_reached_releases_remainder", func(t *testing.T) {
		s.feed.set(2_000_000, nil)
		outcome, err := s.settler.Settle(ctx, id, false)
		require.NoError(t, err)
		require.NotNil(t, outcome.Eligibility)
		assert.Equal(t, uint64(800), outcome.Released)

		account := s.ledgerAccount(t, id)
		assert.Equal(t, entity.DealStatusCompleted, account.Status)
		assert.Equal(t, uint64(1_000), account.ReleasedAmount)
	})
}

func TestSettleRejections(t *testing.T) {
	ctx := context.Background()

	t.Run("disputed_deal", func(t *testing.T) {
		s := newSuite(t)
		id := s.acceptedDeal(t, "order-1", entity.VestingTypeNone, entity.VestingCondition{})
		_, err := s.fake.DisputeDeal(ctx, ledger.DisputeParams{
			DealAddress: ledgertest.DealAddress("program", id),
			Disputer:    owner,
			Reason:      entity.DisputeReasonUnresolved,
		})
		require.NoError(t, err)

		_, err = s.settler.Settle(ctx, id, true)
		assert.ErrorIs(t, err, errs.InvalidState)
	})

	t.Run("unknown_deal", func(t *testing.T) {
		s := newSuite(t)
		id, err := entity.NewOrderID("missing")
		require.NoError(t, err)
		_, err = s.settler.Settle(ctx, id, true)
		assert.ErrorIs(t, err, errs.NotFound)
	})

	t.Run("ledger_refusal_is_reported", func(t *testing.T) {
		s := newSuite(t)
		id := s.acceptedDeal(t, "order-1", entity.VestingTypeNone, entity.VestingCondition{})
		s.fake.Fail("ReleasePayment", errors.Wrap(errs.ExceedsVestedAmount, "refused"))

		outcome, err := s.settler.Settle(ctx, id, true)
		assert.ErrorIs(t, err, errs.ExceedsVestedAmount)
		assert.NotNil(t, outcome.Eligibility)
	})
}
