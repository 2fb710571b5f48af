package usecase

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/mutual-network/escrow-indexer/common/errs"
	"github.com/mutual-network/escrow-indexer/modules/escrow/internal/entity"
	"github.com/mutual-network/escrow-indexer/modules/escrow/internal/metrics"
	"github.com/mutual-network/escrow-indexer/modules/escrow/ledger"
	"github.com/mutual-network/escrow-indexer/modules/escrow/locker"
	"github.com/mutual-network/escrow-indexer/modules/escrow/settlement"
	"github.com/mutual-network/escrow-indexer/pkg/logger"
	"github.com/mutual-network/escrow-indexer/pkg/logger/slogx"
)

// VerifyTask records the proof of task of the deal and releases what became claimable.
func (u *Usecase) VerifyTask(ctx context.Context, orderID entity.OrderID) (settlement.Outcome, error) {
	outcome, err := u.settler.Settle(ctx, orderID, true)
	if err != nil {
		return outcome, errors.Wrap(err, "failed to settle verified deal")
	}
	return outcome, nil
}

// Claim releases whatever vested since the last release.
func (u *Usecase) Claim(ctx context.Context, orderID entity.OrderID) (settlement.Outcome, error) {
	outcome, err := u.settler.Settle(ctx, orderID, false)
	if err != nil {
		return outcome, errors.Wrap(err, "failed to settle deal")
	}
	return outcome, nil
}

// ResolveDispute submits the admin decision of a disputed deal. The ledger account is
// checked under the deal lock so a dispute is never resolved twice.
func (u *Usecase) ResolveDispute(ctx context.Context, orderID entity.OrderID, resolution entity.Resolution) (ledger.Submission, error) {
	ctx = logger.WithContext(ctx, slogx.OrderID(orderID))

	unlock, err := u.locker.Lock(ctx, locker.DealKey(u.chainID, orderID))
	if err != nil {
		return ledger.Submission{}, errors.Wrap(err, "failed to lock deal")
	}
	defer unlock()

	deal, err := u.escrowDg.GetDeal(ctx, u.chainID, orderID)
	if err != nil {
		return ledger.Submission{}, errors.Wrap(err, "failed to get deal")
	}
	account, err := u.client.GetDeal(ctx, deal.DealAddress)
	if err != nil {
		return ledger.Submission{}, errors.Wrap(err, "failed to read ledger account")
	}
	if account.Status != entity.DealStatusDisputed {
		return ledger.Submission{}, errors.Wrapf(errs.InvalidState, "deal is %s", account.Status)
	}
	kolAmount, err := resolution.KOLAmount(account.Amount, account.ReleasedAmount)
	if err != nil {
		return ledger.Submission{}, errors.WithStack(err)
	}

	sub, err := u.client.ResolveDispute(ctx, deal.DealAddress, u.admin, resolution)
	if err != nil {
		metrics.LedgerSubmissionErrors.WithLabelValues("resolve_dispute").Inc()
		return ledger.Submission{}, errors.Wrap(err, "failed to submit dispute resolution")
	}
	logger.InfoContext(ctx, "Dispute resolved",
		slogx.String("resolution", string(resolution.Kind)),
		slogx.Uint64("kol_amount", kolAmount),
		slogx.Signature(sub.Signature),
	)
	return sub, nil
}
