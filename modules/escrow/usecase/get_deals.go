package usecase

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/mutual-network/escrow-indexer/modules/escrow/internal/entity"
	"github.com/mutual-network/escrow-indexer/modules/escrow/projector"
	"github.com/mutual-network/escrow-indexer/modules/escrow/vesting"
	"github.com/mutual-network/escrow-indexer/pkg/logger"
	"github.com/mutual-network/escrow-indexer/pkg/logger/slogx"
)

// DealDetail is a projected deal with its vesting preview and status history.
type DealDetail struct {
	Deal        entity.Deal
	Evaluation  *vesting.Result
	Transitions []entity.Transition
}

// OpenDispute is a disputed deal waiting for an admin decision.
type OpenDispute struct {
	Deal    entity.Deal
	OpenFor time.Duration
}

// Use limit = 0 as no limit.
func (u *Usecase) ListDeals(ctx context.Context, filter entity.DealFilter) ([]entity.Deal, error) {
	filter.ChainID = u.chainID
	deals, err := u.escrowDg.ListDeals(ctx, filter)
	if err != nil {
		return nil, errors.Wrap(err, "error during ListDeals")
	}
	return deals, nil
}

func (u *Usecase) GetDeal(ctx context.Context, orderID entity.OrderID) (DealDetail, error) {
	deal, err := u.escrowDg.GetDeal(ctx, u.chainID, orderID)
	if err != nil {
		return DealDetail{}, errors.Wrap(err, "failed to get deal")
	}
	transitions, err := u.escrowDg.GetTransitions(ctx, u.chainID, orderID)
	if err != nil {
		return DealDetail{}, errors.Wrap(err, "failed to get transitions")
	}
	detail := DealDetail{Deal: deal, Transitions: transitions}

	// a malformed vesting condition must not hide the deal itself
	result, err := u.settler.Preview(ctx, deal)
	if err != nil {
		logger.WarnContext(ctx, "Failed to evaluate vesting preview", slogx.Error(err), slogx.OrderID(orderID))
	} else {
		detail.Evaluation = &result
	}
	return detail, nil
}

func (u *Usecase) GetEvents(ctx context.Context, orderID entity.OrderID) ([]entity.EscrowEvent, error) {
	events, err := u.escrowDg.GetEventsByOrderID(ctx, u.chainID, orderID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get events")
	}
	return events, nil
}

func (u *Usecase) GetActivity(ctx context.Context, orderID entity.OrderID) ([]projector.ActivityEntry, error) {
	deal, err := u.escrowDg.GetDeal(ctx, u.chainID, orderID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get deal")
	}
	events, err := u.escrowDg.GetEventsByOrderID(ctx, u.chainID, orderID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get events")
	}
	return projector.Activity(deal, events), nil
}

func (u *Usecase) ListOpenDisputes(ctx context.Context) ([]OpenDispute, error) {
	deals, err := u.escrowDg.ListDeals(ctx, entity.DealFilter{
		ChainID:  u.chainID,
		Statuses: []entity.DealStatus{entity.DealStatusDisputed},
	})
	if err != nil {
		return nil, errors.Wrap(err, "error during ListDeals")
	}
	now := u.now()
	disputes := make([]OpenDispute, 0, len(deals))
	for _, deal := range deals {
		disputes = append(disputes, OpenDispute{Deal: deal, OpenFor: now.Sub(deal.DisputedAt)})
	}
	return disputes, nil
}
