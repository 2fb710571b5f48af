package httphandler

import (
	"github.com/cockroachdb/errors"
	"github.com/gofiber/fiber/v2"
	"github.com/mutual-network/escrow-indexer/common"
	"github.com/mutual-network/escrow-indexer/modules/escrow/usecase"
	"github.com/samber/lo"
)

type disputeResult struct {
	dealResult
	DisputedAt     *int64 `json:"disputedAt"` // unix timestamp
	OpenForSeconds int64  `json:"openForSeconds"`
}

type getDisputesResult struct {
	List []disputeResult `json:"list"`
}

type getDisputesResponse = common.HttpResponse[getDisputesResult]

func (h *HttpHandler) GetDisputes(ctx *fiber.Ctx) (err error) {
	disputes, err := h.usecase.ListOpenDisputes(ctx.UserContext())
	if err != nil {
		return errors.Wrap(err, "error during ListOpenDisputes")
	}

	resp := getDisputesResponse{
		Result: &getDisputesResult{
			List: lo.Map(disputes, func(d usecase.OpenDispute, _ int) disputeResult {
				return disputeResult{
					dealResult:     mapDeal(d.Deal),
					DisputedAt:     unixOrNil(d.Deal.DisputedAt),
					OpenForSeconds: int64(d.OpenFor.Seconds()),
				}
			}),
		},
	}
	return errors.WithStack(ctx.JSON(resp))
}
