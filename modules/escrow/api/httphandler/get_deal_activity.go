package httphandler

import (
	"github.com/cockroachdb/errors"
	"github.com/gofiber/fiber/v2"
	"github.com/mutual-network/escrow-indexer/common"
	"github.com/mutual-network/escrow-indexer/common/errs"
	"github.com/mutual-network/escrow-indexer/modules/escrow/projector"
)

type getDealActivityResult struct {
	List []projector.ActivityEntry `json:"list"`
}

type getDealActivityResponse = common.HttpResponse[getDealActivityResult]

func (h *HttpHandler) GetDealActivity(ctx *fiber.Ctx) (err error) {
	var req orderIDRequest
	if err := ctx.ParamsParser(&req); err != nil {
		return errors.WithStack(err)
	}
	orderID, err := req.parse()
	if err != nil {
		return errors.WithStack(err)
	}

	activity, err := h.usecase.GetActivity(ctx.UserContext(), orderID)
	if err != nil {
		if errors.Is(err, errs.NotFound) {
			return errs.NewPublicErrorf(errs.NotFound, "deal %s not found", orderID)
		}
		return errors.Wrap(err, "error during GetActivity")
	}

	resp := getDealActivityResponse{
		Result: &getDealActivityResult{List: activity},
	}
	return errors.WithStack(ctx.JSON(resp))
}
