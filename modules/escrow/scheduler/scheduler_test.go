package scheduler_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mutual-network/escrow-indexer/common"
	"github.com/mutual-network/escrow-indexer/modules/escrow"
	"github.com/mutual-network/escrow-indexer/modules/escrow/config"
	"github.com/mutual-network/escrow-indexer/modules/escrow/internal/entity"
	"github.com/mutual-network/escrow-indexer/modules/escrow/ledger"
	"github.com/mutual-network/escrow-indexer/modules/escrow/ledger/ledgertest"
	"github.com/mutual-network/escrow-indexer/modules/escrow/locker"
	"github.com/mutual-network/escrow-indexer/modules/escrow/repository/memory"
	"github.com/mutual-network/escrow-indexer/modules/escrow/scheduler"
	"github.com/mutual-network/escrow-indexer/modules/escrow/settlement"
	"github.com/mutual-network/escrow-indexer/modules/escrow/vesting"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	owner = ledgertest.Key(1)
	kol   = ledgertest.Key(2)
	mint  = ledgertest.Key(3)
	admin = ledgertest.Key(9)

	baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
)

// gateLocker blocks the first Lock call after it is armed until release is closed.
type gateLocker struct {
	locker.Locker
	armed   atomic.Bool
	entered chan struct{}
	release chan struct{}
}

func (l *gateLocker) Lock(ctx context.Context, key string) (func(), error) {
	if l.armed.CompareAndSwap(true, false) {
		close(l.entered)
		<-l.release
	}
	return l.Locker.Lock(ctx, key)
}

type suite struct {
	fake      *ledgertest.Fake
	repo      *memory.Repository
	processor *escrow.Processor
	scheduler *scheduler.Scheduler
}

func newSuite(t *testing.T, dealLocker locker.Locker, conf config.SchedulerConfig) *suite {
	t.Helper()
	rules, err := vesting.NewRules(config.Default().Vesting)
	require.NoError(t, err)

	fake := ledgertest.New("program")
	fake.SetNow(func() time.Time { return baseTime })
	fake.SetBalance(owner, mint, 1_000_000)
	repo := memory.NewRepository()
	settler := settlement.New(repo, fake, nil, rules, dealLocker, common.ChainLocalnet, admin)
	return &suite{
		fake:      fake,
		repo:      repo,
		processor: escrow.NewProcessor(repo, dealLocker, common.ChainLocalnet, "program"),
		scheduler: scheduler.New(repo, fake, settler, dealLocker, common.ChainLocalnet, admin, conf).
			WithClock(func() time.Time { return baseTime.Add(25 * time.Hour) }),
	}
}

func (s *suite) sync(t *testing.T) {
	t.Helper()
	require.NoError(t, s.processor.Process(context.Background(), s.fake.Batch(0)))
}

// syncInBackground keeps projecting the fake ledger until the test ends.
func (s *suite) syncInBackground(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				_ = s.processor.Process(ctx, s.fake.Batch(0))
			}
		}
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func (s *suite) createDeal(t *testing.T, orderID string) string {
	t.Helper()
	result, err := s.fake.CreateDeal(context.Background(), ledger.CreateDealParams{
		OrderID:      orderID,
		ProjectOwner: owner,
		KOL:          kol,
		Mint:         mint,
		Amount:       1_000,
		VestingType:  entity.VestingTypeNone,
	})
	require.NoError(t, err)
	return result.DealAddress
}

func (s *suite) deal(t *testing.T, orderID string) entity.Deal {
	t.Helper()
	id, err := entity.NewOrderID(orderID)
	require.NoError(t, err)
	deal, err := s.repo.GetDeal(context.Background(), common.ChainLocalnet, id)
	require.NoError(t, err)
	return deal
}

func TestSweep(t *testing.T) {
	ctx := context.Background()
	s := newSuite(t, locker.NewMemory(), config.SchedulerConfig{RejectWaitTimeout: 5 * time.Second})

	s.createDeal(t, "expired")

	accepted := s.createDeal(t, "accepted")
	_, err := s.fake.AcceptDeal(ctx, accepted, kol)
	require.NoError(t, err)

	disputed := s.createDeal(t, "disputed")
	_, err = s.fake.AcceptDeal(ctx, disputed, kol)
	require.NoError(t, err)
	_, err = s.fake.DisputeDeal(ctx, ledger.DisputeParams{DealAddress: disputed, Disputer: owner, Reason: entity.DisputeReasonUnresolved})
	require.NoError(t, err)

	eligible := s.createDeal(t, "eligible")
	_, err = s.fake.AcceptDeal(ctx, eligible, kol)
	require.NoError(t, err)
	_, err = s.fake.SetEligibility(ctx, eligible, admin, entity.DealStatusFullyEligible)
	require.NoError(t, err)

	s.sync(t)
	s.syncInBackground(t)

	report, err := s.scheduler.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, scheduler.Report{Expired: 1, OpenDisputes: 1, Settled: 1, Released: 1}, report)

	assert.Equal(t, entity.DealStatusRejected, s.deal(t, "expired").Status)
	assert.Equal(t, entity.DealStatusAccepted, s.deal(t, "accepted").Status)
	assert.Equal(t, entity.DealStatusDisputed, s.deal(t, "disputed").Status)

	require.Eventually(t, func() bool {
		return s.deal(t, "eligible").Status == entity.DealStatusCompleted
	}, 5*time.Second, 10*time.Millisecond)

	t.Run("second_sweep_is_a_noop", func(t *testing.T) {
		report, err := s.scheduler.Sweep(ctx)
		require.NoError(t, err)
		assert.Equal(t, scheduler.Report{OpenDisputes: 1}, report)
		assert.Equal(t, 1, s.fake.Calls("RejectDeal"))
		assert.Equal(t, 1, s.fake.Calls("ReleasePayment"))
	})
}

func TestSweepExpiry(t *testing.T) {
	ctx := context.Background()

	t.Run("fresh_offer_is_kept", func(t *testing.T) {
		s := newSuite(t, locker.NewMemory(), config.SchedulerConfig{})
		s.scheduler.WithClock(func() time.Time { return baseTime.Add(23 * time.Hour) })
		s.createDeal(t, "fresh")
		s.sync(t)

		report, err := s.scheduler.Sweep(ctx)
		require.NoError(t, err)
		assert.Zero(t, report.Expired)
		assert.Zero(t, s.fake.Calls("RejectDeal"))
	})

	t.Run("accepted_on_ledger_is_not_rejected", func(t *testing.T) {
		s := newSuite(t, locker.NewMemory(), config.SchedulerConfig{})
		address := s.createDeal(t, "late")
		s.sync(t)
		// accepted after the last sync, the projection still says CREATED
		_, err := s.fake.AcceptDeal(ctx, address, kol)
		require.NoError(t, err)

		report, err := s.scheduler.Sweep(ctx)
		require.NoError(t, err)
		assert.Zero(t, report.Expired)
		assert.Zero(t, s.fake.Calls("RejectDeal"))
	})

	t.Run("projection_lag_does_not_fail_the_sweep", func(t *testing.T) {
		s := newSuite(t, locker.NewMemory(), config.SchedulerConfig{RejectWaitTimeout: 50 * time.Millisecond})
		address := s.createDeal(t, "slow")
		s.sync(t)

		report, err := s.scheduler.Sweep(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, report.Expired)

		account, err := s.fake.GetDeal(ctx, address)
		require.NoError(t, err)
		assert.Equal(t, entity.DealStatusRejected, account.Status)
		assert.Equal(t, entity.DealStatusCreated, s.deal(t, "slow").Status)
	})
}

func TestSweepInFlight(t *testing.T) {
	ctx := context.Background()
	gate := &gateLocker{
		Locker:  locker.NewMemory(),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	s := newSuite(t, gate, config.SchedulerConfig{})

	address := s.createDeal(t, "eligible")
	_, err := s.fake.AcceptDeal(ctx, address, kol)
	require.NoError(t, err)
	_, err = s.fake.SetEligibility(ctx, address, admin, entity.DealStatusFullyEligible)
	require.NoError(t, err)
	s.sync(t)
	gate.armed.Store(true)

	first := make(chan scheduler.Report, 1)
	go func() {
		report, err := s.scheduler.Sweep(ctx)
		assert.NoError(t, err)
		first <- report
	}()
	<-gate.entered

	report, err := s.scheduler.Sweep(ctx)
	require.NoError(t, err)
	assert.True(t, report.Skipped)

	close(gate.release)
	assert.Equal(t, 1, (<-first).Released)
}
