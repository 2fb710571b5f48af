package escrow

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/cockroachdb/errors"
	"github.com/mutual-network/escrow-indexer/common"
	"github.com/mutual-network/escrow-indexer/common/errs"
	"github.com/mutual-network/escrow-indexer/core/indexer"
	"github.com/mutual-network/escrow-indexer/modules/escrow/datagateway"
	"github.com/mutual-network/escrow-indexer/modules/escrow/internal/entity"
	"github.com/mutual-network/escrow-indexer/modules/escrow/internal/metrics"
	"github.com/mutual-network/escrow-indexer/modules/escrow/ledger"
	"github.com/mutual-network/escrow-indexer/modules/escrow/locker"
	"github.com/mutual-network/escrow-indexer/modules/escrow/projector"
	"github.com/mutual-network/escrow-indexer/pkg/logger"
	"github.com/mutual-network/escrow-indexer/pkg/logger/slogx"
	"github.com/samber/lo"
)

const defaultPersistRetries = 5

var _ indexer.Processor[ledger.RawEvent] = (*Processor)(nil)

// Processor persists ledger events and keeps the deal projections up to date.
//
// A batch is applied in three steps: events are stored (duplicates ignored), every deal
// with events in the batch is re-projected under its lock, then the cursor is advanced.
// A failed step leaves the cursor untouched, so the next round replays the same window.
type Processor struct {
	escrowDg  datagateway.EscrowDataGateway
	locker    locker.Locker
	chainID   common.ChainID
	programID string
	retries   uint64
	now       func() time.Time
}

func NewProcessor(escrowDg datagateway.EscrowDataGateway, dealLocker locker.Locker, chainID common.ChainID, programID string) *Processor {
	return &Processor{
		escrowDg:  escrowDg,
		locker:    dealLocker,
		chainID:   chainID,
		programID: programID,
		retries:   defaultPersistRetries,
		now:       time.Now,
	}
}

func (p *Processor) Name() string {
	return "Escrow"
}

// VerifyStates makes sure the stored cursor belongs to the configured program.
func (p *Processor) VerifyStates(ctx context.Context) error {
	state, err := p.escrowDg.GetIndexerState(ctx, p.chainID)
	if err != nil {
		if errors.Is(err, errs.NotFound) {
			return nil
		}
		return errors.Wrap(err, "failed to get indexer state")
	}
	if state.ProgramID != p.programID {
		return errors.Wrapf(errs.ConflictSetting, "program mismatch: %s was indexed with program %s, configured program is %s. Please reset the database to index another program", p.chainID, state.ProgramID, p.programID)
	}
	return nil
}

func (p *Processor) CurrentSlot(ctx context.Context) (uint64, error) {
	state, err := p.escrowDg.GetIndexerState(ctx, p.chainID)
	if err != nil {
		return 0, errors.WithStack(err)
	}
	return state.Slot, nil
}

func (p *Processor) Process(ctx context.Context, batch indexer.Batch[ledger.RawEvent]) error {
	start := time.Now()
	events := p.decode(ctx, batch.Inputs)

	var inserted []entity.EscrowEvent
	if err := p.retry(ctx, "persist events", func() error {
		var err error
		inserted, err = p.createEvents(ctx, events)
		return errors.WithStack(err)
	}); err != nil {
		return errors.Wrap(err, "failed to persist events")
	}
	for _, event := range inserted {
		metrics.EventsIngested.WithLabelValues(string(event.EventName)).Inc()
	}
	metrics.EventsDuplicated.Add(float64(len(events) - len(inserted)))

	fresh := lo.SliceToMap(inserted, func(e entity.EscrowEvent) (entity.EventKey, struct{}) { return e.Key(), struct{}{} })
	orderIDs := lo.Uniq(lo.Map(events, func(e entity.EscrowEvent, _ int) entity.OrderID { return e.CampaignOrderID }))
	for _, orderID := range orderIDs {
		if err := p.reproject(ctx, orderID, fresh); err != nil {
			return errors.Wrapf(err, "failed to project deal %s", orderID)
		}
	}

	if err := p.retry(ctx, "advance cursor", func() error {
		return errors.WithStack(p.escrowDg.SetIndexerState(ctx, entity.IndexerState{
			ChainID:   p.chainID,
			ProgramID: p.programID,
			Slot:      batch.ToSlot,
			UpdatedAt: p.now(),
		}))
	}); err != nil {
		return errors.Wrap(err, "failed to advance cursor")
	}

	metrics.CurrentSlot.Set(float64(batch.ToSlot))
	metrics.BatchProcessingDuration.Observe(time.Since(start).Seconds())
	if len(inserted) > 0 {
		logger.DebugContext(ctx, "Stored escrow events",
			slogx.Int("inserted", len(inserted)),
			slogx.Int("duplicates", len(events)-len(inserted)),
			slogx.Int("deals", len(orderIDs)),
		)
	}
	return nil
}

// createEvents stores the batch atomically, so a retried batch reports every event it inserts as new.
func (p *Processor) createEvents(ctx context.Context, events []entity.EscrowEvent) ([]entity.EscrowEvent, error) {
	tx, err := p.escrowDg.BeginEscrowTx(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to begin transaction")
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil {
			logger.WarnContext(ctx, "Failed to rollback transaction", slogx.Error(err))
		}
	}()

	inserted, err := tx.CreateEvents(ctx, events)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "failed to commit events")
	}
	return inserted, nil
}

func (p *Processor) decode(ctx context.Context, inputs []ledger.RawEvent) []entity.EscrowEvent {
	events := make([]entity.EscrowEvent, 0, len(inputs))
	for _, raw := range inputs {
		if raw.ProgramID != "" && raw.ProgramID != p.programID {
			continue
		}
		event, err := ledger.DecodeEvent(raw.Data)
		if err != nil {
			metrics.EventsUndecodable.Inc()
			logger.WarnContext(ctx, "Skipped undecodable ledger event",
				slogx.Error(err),
				slogx.Event("undecodable_event"),
				slogx.Signature(raw.Signature),
				slogx.Slot(raw.Slot),
			)
			continue
		}
		events = append(events, entity.EscrowEvent{
			ChainID:         p.chainID,
			ProgramID:       p.programID,
			CampaignOrderID: event.Header().OrderID,
			EventName:       event.Name(),
			Signature:       raw.Signature,
			EventIndex:      raw.Index,
			Slot:            raw.Slot,
			Payload:         event.Payload(),
			CreatedAt:       time.Unix(raw.BlockTime, 0).UTC(),
		})
	}
	return events
}

// reproject folds the full history of the deal and stores the result. fresh holds the keys of
// events stored by the current batch, warnings about older events were already reported.
func (p *Processor) reproject(ctx context.Context, orderID entity.OrderID, fresh map[entity.EventKey]struct{}) error {
	ctx = logger.WithContext(ctx, slogx.OrderID(orderID))

	unlock, err := p.locker.Lock(ctx, locker.DealKey(p.chainID, orderID))
	if err != nil {
		return errors.Wrap(err, "failed to lock deal")
	}
	defer unlock()

	tx, err := p.escrowDg.BeginEscrowTx(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil {
			logger.WarnContext(ctx, "Failed to rollback transaction", slogx.Error(err))
		}
	}()

	events, err := tx.GetEventsByOrderID(ctx, p.chainID, orderID)
	if err != nil {
		return errors.Wrap(err, "failed to get deal events")
	}
	projection, err := projector.Project(events)
	if err != nil {
		if errors.Is(err, errs.NotFound) {
			logger.WarnContext(ctx, "Deal creation event is not ingested yet, skipping projection", slogx.Int("events", len(events)))
			return nil
		}
		return errors.Wrap(err, "failed to project deal")
	}
	for _, warning := range projection.Warnings {
		if _, ok := fresh[warning.Event]; !ok {
			continue
		}
		metrics.ConsistencyWarnings.WithLabelValues("projection").Inc()
		logger.WarnContext(ctx, "Event disagrees with projected deal, skipped",
			slogx.Error(warning.Err),
			slogx.Event("projection_consistency_warning"),
			slogx.Signature(warning.Event.Signature),
			slogx.String("event_name", string(warning.Event.EventName)),
			slogx.Slot(warning.Slot),
		)
	}

	projection.Deal.UpdatedAt = p.now()
	if err := tx.UpsertDeal(ctx, projection.Deal); err != nil {
		return errors.Wrap(err, "failed to store deal")
	}
	if err := tx.UpsertTransitions(ctx, projection.Transitions); err != nil {
		return errors.Wrap(err, "failed to store transitions")
	}
	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "failed to commit deal projection")
	}
	return nil
}

func (p *Processor) retry(ctx context.Context, op string, fn func() error) error {
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), p.retries), ctx)
	return backoff.RetryNotify(fn, policy, func(err error, wait time.Duration) {
		logger.WarnContext(ctx, "Storage write failed, retrying",
			slogx.Error(err),
			slogx.String("operation", op),
			slogx.Duration("retry_in", wait),
		)
	})
}

// Shutdown has nothing to flush, every batch is durable once Process returns.
func (p *Processor) Shutdown(ctx context.Context) error {
	return nil
}
