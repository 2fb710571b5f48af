package escrow

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/mutual-network/escrow-indexer/common"
	"github.com/mutual-network/escrow-indexer/common/errs"
	"github.com/mutual-network/escrow-indexer/modules/escrow/datagateway"
	"github.com/mutual-network/escrow-indexer/modules/escrow/internal/entity"
	"github.com/mutual-network/escrow-indexer/modules/escrow/ledger"
	"github.com/mutual-network/escrow-indexer/modules/escrow/ledger/ledgertest"
	"github.com/mutual-network/escrow-indexer/modules/escrow/locker"
	"github.com/mutual-network/escrow-indexer/modules/escrow/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testProgramID = "program"

var (
	testOwner = ledgertest.Key(1)
	testKOL   = ledgertest.Key(2)
	testMint  = ledgertest.Key(3)
)

type processorSuite struct {
	fake      *ledgertest.Fake
	repo      *memory.Repository
	processor *Processor
}

func newProcessorSuite(t *testing.T) *processorSuite {
	t.Helper()
	fake := ledgertest.New(testProgramID)
	fake.SetBalance(testOwner, testMint, 1_000_000_000)
	repo := memory.NewRepository()
	processor := NewProcessor(repo, locker.NewMemory(), common.ChainLocalnet, testProgramID)
	processor.retries = 0
	return &processorSuite{fake: fake, repo: repo, processor: processor}
}

func (s *processorSuite) createDeal(t *testing.T, orderID string, amount uint64) string {
	t.Helper()
	result, err := s.fake.CreateDeal(context.Background(), ledger.CreateDealParams{
		OrderID:      orderID,
		ProjectOwner: testOwner,
		KOL:          testKOL,
		Mint:         testMint,
		Amount:       amount,
		VestingType:  entity.VestingTypeNone,
	})
	require.NoError(t, err)
	return result.DealAddress
}

// sync ingests everything the fake ledger emitted since the stored cursor.
func (s *processorSuite) sync(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	from, err := s.processor.CurrentSlot(ctx)
	if errors.Is(err, errs.NotFound) {
		from = 0
	} else {
		require.NoError(t, err)
	}
	require.NoError(t, s.processor.Process(ctx, s.fake.Batch(from)))
}

func (s *processorSuite) deal(t *testing.T, orderID string) entity.Deal {
	t.Helper()
	id, err := entity.NewOrderID(orderID)
	require.NoError(t, err)
	deal, err := s.repo.GetDeal(context.Background(), common.ChainLocalnet, id)
	require.NoError(t, err)
	return deal
}

func TestProcessorProjectsDeals(t *testing.T) {
	ctx := context.Background()
	s := newProcessorSuite(t)

	address := s.createDeal(t, "order-1", 1_000)
	s.sync(t)
	assert.Equal(t, entity.DealStatusCreated, s.deal(t, "order-1").Status)

	_, err := s.fake.AcceptDeal(ctx, address, testKOL)
	require.NoError(t, err)
	_, err = s.fake.SetEligibility(ctx, address, testOwner, entity.DealStatusFullyEligible)
	require.NoError(t, err)
	_, err = s.fake.ReleasePayment(ctx, address, 1_000)
	require.NoError(t, err)
	s.sync(t)

	deal := s.deal(t, "order-1")
	assert.Equal(t, entity.DealStatusCompleted, deal.Status)
	assert.Equal(t, uint64(1_000), deal.ReleasedAmount)
	assert.Equal(t, address, deal.DealAddress)
	assert.Equal(t, uint64(4), deal.LastSlot)

	slot, err := s.processor.CurrentSlot(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), slot)

	transitions, err := s.repo.GetTransitions(ctx, common.ChainLocalnet, deal.OrderID)
	require.NoError(t, err)
	statuses := make([]entity.DealStatus, 0, len(transitions))
	for _, tr := range transitions {
		statuses = append(statuses, tr.Status)
	}
	assert.Equal(t, []entity.DealStatus{
		entity.DealStatusCreated,
		entity.DealStatusAccepted,
		entity.DealStatusFullyEligible,
		entity.DealStatusCompleted,
	}, statuses)
}

func TestProcessorIdempotence(t *testing.T) {
	ctx := context.Background()
	s := newProcessorSuite(t)
	address := s.createDeal(t, "order-1", 1_000)
	_, err := s.fake.AcceptDeal(ctx, address, testKOL)
	require.NoError(t, err)

	t.Run("replayed_batch_changes_nothing", func(t *testing.T) {
		require.NoError(t, s.processor.Process(ctx, s.fake.Batch(0)))
		before := s.deal(t, "order-1")
		require.NoError(t, s.processor.Process(ctx, s.fake.Batch(0)))
		after := s.deal(t, "order-1")

		before.UpdatedAt, after.UpdatedAt = time.Time{}, time.Time{}
		assert.Equal(t, before, after)

		events, err := s.repo.GetEventsByOrderID(ctx, common.ChainLocalnet, after.OrderID)
		require.NoError(t, err)
		assert.Len(t, events, 2)
	})

	t.Run("overlapping_windows", func(t *testing.T) {
		_, err := s.fake.SetEligibility(ctx, address, testOwner, entity.DealStatusPartiallyEligible)
		require.NoError(t, err)
		require.NoError(t, s.processor.Process(ctx, s.fake.Batch(2)))
		assert.Equal(t, entity.DealStatusPartiallyEligible, s.deal(t, "order-1").Status)
	})
}

func TestProcessorEdgeCases(t *testing.T) {
	ctx := context.Background()

	t.Run("undecodable_events_are_skipped", func(t *testing.T) {
		s := newProcessorSuite(t)
		s.fake.AppendRaw([]byte{1, 2, 3})
		s.createDeal(t, "order-1", 1_000)
		s.sync(t)

		assert.Equal(t, entity.DealStatusCreated, s.deal(t, "order-1").Status)
		slot, err := s.processor.CurrentSlot(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(2), slot)
	})

	t.Run("blank_order_id_does_not_stall_ingestion", func(t *testing.T) {
		s := newProcessorSuite(t)
		data, err := ledger.EncodeEvent(ledger.DealRejected{EventHeader: ledger.EventHeader{
			DealAddress:  ledgertest.Key(7),
			ProjectOwner: testOwner,
			KOL:          testKOL,
		}})
		require.NoError(t, err)
		s.fake.AppendRaw(data)
		s.createDeal(t, "order-1", 1_000)
		s.sync(t)

		assert.Equal(t, entity.DealStatusCreated, s.deal(t, "order-1").Status)
		slot, err := s.processor.CurrentSlot(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(2), slot)
	})

	t.Run("events_before_creation_wait_for_it", func(t *testing.T) {
		s := newProcessorSuite(t)
		address := s.createDeal(t, "order-1", 1_000)
		_, err := s.fake.AcceptDeal(ctx, address, testKOL)
		require.NoError(t, err)

		// ingest the acceptance alone, as if the creation event was not delivered yet
		accepted := s.fake.Batch(2)
		require.NoError(t, s.processor.Process(ctx, accepted))
		id, err := entity.NewOrderID("order-1")
		require.NoError(t, err)
		_, err = s.repo.GetDeal(ctx, common.ChainLocalnet, id)
		assert.ErrorIs(t, err, errs.NotFound)

		require.NoError(t, s.processor.Process(ctx, s.fake.Batch(0)))
		assert.Equal(t, entity.DealStatusAccepted, s.deal(t, "order-1").Status)
	})

	t.Run("cursor_is_not_advanced_on_failure", func(t *testing.T) {
		s := newProcessorSuite(t)
		s.createDeal(t, "order-1", 1_000)
		failing := &failingCursorRepo{Repository: s.repo}
		s.processor.escrowDg = failing

		err := s.processor.Process(ctx, s.fake.Batch(0))
		require.Error(t, err)
		_, err = s.repo.GetIndexerState(ctx, common.ChainLocalnet)
		assert.ErrorIs(t, err, errs.NotFound)

		s.processor.escrowDg = s.repo
		s.sync(t)
		assert.Equal(t, entity.DealStatusCreated, s.deal(t, "order-1").Status)
	})

	t.Run("failed_batch_is_stored_atomically", func(t *testing.T) {
		s := newProcessorSuite(t)
		s.createDeal(t, "order-1", 1_000)
		s.processor.escrowDg = &failingCommitRepo{Repository: s.repo}

		err := s.processor.Process(ctx, s.fake.Batch(0))
		require.ErrorIs(t, err, errs.Unavailable)
		id, err := entity.NewOrderID("order-1")
		require.NoError(t, err)
		events, err := s.repo.GetEventsByOrderID(ctx, common.ChainLocalnet, id)
		require.NoError(t, err)
		assert.Empty(t, events)

		s.processor.escrowDg = s.repo
		s.sync(t)
		assert.Equal(t, entity.DealStatusCreated, s.deal(t, "order-1").Status)
	})

	t.Run("program_mismatch", func(t *testing.T) {
		s := newProcessorSuite(t)
		require.NoError(t, s.repo.SetIndexerState(ctx, entity.IndexerState{ChainID: common.ChainLocalnet, ProgramID: "other", Slot: 10}))
		assert.ErrorIs(t, s.processor.VerifyStates(ctx), errs.ConflictSetting)
	})
}

type failingCommitRepo struct {
	*memory.Repository
}

func (r *failingCommitRepo) BeginEscrowTx(ctx context.Context) (datagateway.EscrowDataGatewayWithTx, error) {
	tx, err := r.Repository.BeginEscrowTx(ctx)
	if err != nil {
		return nil, err
	}
	return failingCommitTx{EscrowDataGatewayWithTx: tx}, nil
}

type failingCommitTx struct {
	datagateway.EscrowDataGatewayWithTx
}

func (failingCommitTx) Commit(context.Context) error {
	return errors.Wrap(errs.Unavailable, "connection reset")
}

type failingCursorRepo struct {
	*memory.Repository
}

func (r *failingCursorRepo) SetIndexerState(context.Context, entity.IndexerState) error {
	return errors.Wrap(errs.Unavailable, "database is down")
}
