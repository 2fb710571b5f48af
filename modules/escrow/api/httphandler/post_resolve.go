package httphandler

import (
	"github.com/cockroachdb/errors"
	"github.com/gofiber/fiber/v2"
	"github.com/mutual-network/escrow-indexer/common"
	"github.com/mutual-network/escrow-indexer/common/errs"
	"github.com/mutual-network/escrow-indexer/modules/escrow/internal/entity"
)

type resolveDisputeRequest struct {
	Resolution string `json:"resolution"` // favor_kol | favor_owner | custom
	Amount     uint64 `json:"amount"`     // KOL share for custom, on top of the released amount
}

func (r resolveDisputeRequest) Validate() (entity.Resolution, error) {
	kind := entity.ResolutionKind(r.Resolution)
	switch kind {
	case entity.ResolutionFavorKOL, entity.ResolutionFavorOwner:
		if r.Amount != 0 {
			return entity.Resolution{}, errs.NewPublicErrorf(errs.InvalidParameters, "'amount' is only allowed for custom resolution")
		}
	case entity.ResolutionCustom:
	default:
		return entity.Resolution{}, errs.NewPublicErrorf(errs.InvalidParameters, "resolution '%s' is not valid", r.Resolution)
	}
	return entity.Resolution{Kind: kind, Amount: r.Amount}, nil
}

type resolveDisputeResult struct {
	Signature string `json:"signature"`
	Slot      uint64 `json:"slot"`
}

type resolveDisputeResponse = common.HttpResponse[resolveDisputeResult]

func (h *HttpHandler) ResolveDispute(ctx *fiber.Ctx) (err error) {
	var params orderIDRequest
	if err := ctx.ParamsParser(&params); err != nil {
		return errors.WithStack(err)
	}
	orderID, err := params.parse()
	if err != nil {
		return errors.WithStack(err)
	}
	var req resolveDisputeRequest
	if err := ctx.BodyParser(&req); err != nil {
		return errs.NewPublicErrorf(errs.InvalidParameters, "invalid request body")
	}
	resolution, err := req.Validate()
	if err != nil {
		return errors.WithStack(err)
	}

	sub, err := h.usecase.ResolveDispute(ctx.UserContext(), orderID, resolution)
	if err != nil {
		if errors.Is(err, errs.NotFound) {
			return errs.NewPublicErrorf(errs.NotFound, "deal %s not found", orderID)
		}
		return errors.Wrap(err, "error during ResolveDispute")
	}

	resp := resolveDisputeResponse{
		Result: &resolveDisputeResult{Signature: sub.Signature, Slot: sub.Slot},
	}
	return errors.WithStack(ctx.JSON(resp))
}
