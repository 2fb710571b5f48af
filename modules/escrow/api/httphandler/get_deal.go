package httphandler

import (
	"github.com/cockroachdb/errors"
	"github.com/gofiber/fiber/v2"
	"github.com/mutual-network/escrow-indexer/common"
	"github.com/mutual-network/escrow-indexer/common/errs"
	"github.com/mutual-network/escrow-indexer/modules/escrow/internal/entity"
	"github.com/mutual-network/escrow-indexer/modules/escrow/vesting"
	"github.com/samber/lo"
)

type transitionResult struct {
	Status    entity.DealStatus `json:"status"`
	Slot      uint64            `json:"slot"`
	Signature string            `json:"signature"`
	At        int64             `json:"at"` // unix timestamp
}

type getDealResult struct {
	dealResult
	Evaluation  *vesting.Result    `json:"evaluation"`
	Transitions []transitionResult `json:"transitions"`
}

type getDealResponse = common.HttpResponse[getDealResult]

func (h *HttpHandler) GetDeal(ctx *fiber.Ctx) (err error) {
	var req orderIDRequest
	if err := ctx.ParamsParser(&req); err != nil {
		return errors.WithStack(err)
	}
	orderID, err := req.parse()
	if err != nil {
		return errors.WithStack(err)
	}

	detail, err := h.usecase.GetDeal(ctx.UserContext(), orderID)
	if err != nil {
		if errors.Is(err, errs.NotFound) {
			return errs.NewPublicErrorf(errs.NotFound, "deal %s not found", orderID)
		}
		return errors.Wrap(err, "error during GetDeal")
	}

	resp := getDealResponse{
		Result: &getDealResult{
			dealResult: mapDeal(detail.Deal),
			Evaluation: detail.Evaluation,
			Transitions: lo.Map(detail.Transitions, func(t entity.Transition, _ int) transitionResult {
				return transitionResult{
					Status:    t.Status,
					Slot:      t.Slot,
					Signature: t.Signature,
					At:        t.TransitionedAt.Unix(),
				}
			}),
		},
	}
	return errors.WithStack(ctx.JSON(resp))
}
