package postgres

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/mutual-network/escrow-indexer/common"
	"github.com/mutual-network/escrow-indexer/common/errs"
	"github.com/mutual-network/escrow-indexer/modules/escrow/internal/entity"
	"github.com/mutual-network/escrow-indexer/modules/escrow/repository/postgres/gen"
	"github.com/samber/lo"
)

func (r *Repository) GetIndexerState(ctx context.Context, chainID common.ChainID) (entity.IndexerState, error) {
	state, err := r.queries.GetIndexerState(ctx, chainID.String())
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return entity.IndexerState{}, errors.WithStack(errs.NotFound)
		}
		return entity.IndexerState{}, errors.Wrap(err, "error during query")
	}
	return mapIndexerStateModelToType(state), nil
}

func (r *Repository) GetEventsByOrderID(ctx context.Context, chainID common.ChainID, orderID entity.OrderID) ([]entity.EscrowEvent, error) {
	models, err := r.queries.GetEventsByOrderID(ctx, gen.GetEventsByOrderIDParams{
		ChainID:         chainID.String(),
		CampaignOrderID: orderID.Bytes(),
	})
	if err != nil {
		return nil, errors.Wrap(err, "error during query")
	}
	return mapEvents(models)
}

func (r *Repository) ListEventsForExport(ctx context.Context, chainID common.ChainID, fromSlot uint64, limit, offset int32) ([]entity.EscrowEvent, error) {
	models, err := r.queries.ListEventsFromSlot(ctx, gen.ListEventsFromSlotParams{
		ChainID: chainID.String(),
		Slot:    int64(fromSlot),
		Limit:   limit,
		Offset:  offset,
	})
	if err != nil {
		return nil, errors.Wrap(err, "error during query")
	}
	return mapEvents(models)
}

func mapEvents(models []gen.EscrowEvent) ([]entity.EscrowEvent, error) {
	events := make([]entity.EscrowEvent, 0, len(models))
	for _, model := range models {
		event, err := mapEventModelToType(model)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse event %s", model.Signature)
		}
		events = append(events, event)
	}
	return events, nil
}

func (r *Repository) GetDeal(ctx context.Context, chainID common.ChainID, orderID entity.OrderID) (entity.Deal, error) {
	model, err := r.queries.GetDeal(ctx, gen.GetDealParams{
		ChainID: chainID.String(),
		OrderID: orderID.Bytes(),
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return entity.Deal{}, errors.WithStack(errs.NotFound)
		}
		return entity.Deal{}, errors.Wrap(err, "error during query")
	}
	deal, err := mapDealModelToType(model)
	if err != nil {
		return entity.Deal{}, errors.Wrap(err, "failed to parse deal model")
	}
	return deal, nil
}

func (r *Repository) ListDeals(ctx context.Context, filter entity.DealFilter) ([]entity.Deal, error) {
	models, err := r.queries.ListDeals(ctx, gen.ListDealsParams{
		ChainID:       filter.ChainID.String(),
		Statuses:      lo.Map(filter.Statuses, func(s entity.DealStatus, _ int) string { return string(s) }),
		Kol:           filter.KOL,
		ProjectOwner:  filter.ProjectOwner,
		CreatedBefore: timestamptz(filter.CreatedBefore),
		Limit:         pgtype.Int4{Int32: filter.Limit, Valid: filter.Limit > 0},
		Offset:        filter.Offset,
	})
	if err != nil {
		return nil, errors.Wrap(err, "error during query")
	}
	deals := make([]entity.Deal, 0, len(models))
	for _, model := range models {
		deal, err := mapDealModelToType(model)
		if err != nil {
			return nil, errors.Wrap(err, "failed to parse deal model")
		}
		deals = append(deals, deal)
	}
	return deals, nil
}

func (r *Repository) GetTransitions(ctx context.Context, chainID common.ChainID, orderID entity.OrderID) ([]entity.Transition, error) {
	models, err := r.queries.GetTransitions(ctx, gen.GetTransitionsParams{
		ChainID: chainID.String(),
		OrderID: orderID.Bytes(),
	})
	if err != nil {
		return nil, errors.Wrap(err, "error during query")
	}
	transitions := make([]entity.Transition, 0, len(models))
	for _, model := range models {
		transition, err := mapTransitionModelToType(model)
		if err != nil {
			return nil, errors.Wrap(err, "failed to parse transition model")
		}
		transitions = append(transitions, transition)
	}
	return transitions, nil
}

func (r *Repository) CreateEvents(ctx context.Context, events []entity.EscrowEvent) ([]entity.EscrowEvent, error) {
	inserted := make([]entity.EscrowEvent, 0, len(events))
	for _, event := range events {
		params, err := mapEventTypeToParams(event)
		if err != nil {
			return nil, errors.Wrap(err, "failed to map event to params")
		}
		if _, err := r.queries.CreateEvent(ctx, params); err != nil {
			// ON CONFLICT DO NOTHING returns no row for an already stored event
			if errors.Is(err, pgx.ErrNoRows) {
				continue
			}
			return nil, errors.Wrap(err, "error during exec")
		}
		inserted = append(inserted, event)
	}
	return inserted, nil
}

func (r *Repository) SetIndexerState(ctx context.Context, state entity.IndexerState) error {
	err := r.queries.SetIndexerState(ctx, gen.SetIndexerStateParams{
		ChainID:   state.ChainID.String(),
		ProgramID: state.ProgramID,
		Slot:      int64(state.Slot),
		UpdatedAt: timestamptz(state.UpdatedAt),
	})
	if err != nil {
		return errors.Wrap(err, "error during exec")
	}
	return nil
}

func (r *Repository) UpsertDeal(ctx context.Context, deal entity.Deal) error {
	params, err := mapDealTypeToParams(deal)
	if err != nil {
		return errors.Wrap(err, "failed to map deal to params")
	}
	if err := r.queries.UpsertDeal(ctx, params); err != nil {
		return errors.Wrap(err, "error during exec")
	}
	return nil
}

func (r *Repository) UpsertTransitions(ctx context.Context, transitions []entity.Transition) error {
	for _, transition := range transitions {
		if err := r.queries.UpsertTransition(ctx, mapTransitionTypeToParams(transition)); err != nil {
			return errors.Wrapf(err, "error during exec, status %s", transition.Status)
		}
	}
	return nil
}
