package httphandler

import (
	"github.com/cockroachdb/errors"
	"github.com/gofiber/fiber/v2"
	"github.com/mutual-network/escrow-indexer/common"
	"github.com/mutual-network/escrow-indexer/modules/escrow/internal/entity"
	"github.com/samber/lo"
)

type eventResult struct {
	EventName  entity.EventName    `json:"eventName"`
	Signature  string              `json:"signature"`
	EventIndex uint32              `json:"eventIndex"`
	Slot       uint64              `json:"slot"`
	CreatedAt  int64               `json:"createdAt"` // unix timestamp
	Data       entity.EventPayload `json:"data"`
}

type getDealEventsResult struct {
	List []eventResult `json:"list"`
}

type getDealEventsResponse = common.HttpResponse[getDealEventsResult]

// GetDealEvents returns the raw events of the deal in replay order. An unknown order id
// yields an empty list.
func (h *HttpHandler) GetDealEvents(ctx *fiber.Ctx) (err error) {
	var req orderIDRequest
	if err := ctx.ParamsParser(&req); err != nil {
		return errors.WithStack(err)
	}
	orderID, err := req.parse()
	if err != nil {
		return errors.WithStack(err)
	}

	events, err := h.usecase.GetEvents(ctx.UserContext(), orderID)
	if err != nil {
		return errors.Wrap(err, "error during GetEvents")
	}

	resp := getDealEventsResponse{
		Result: &getDealEventsResult{
			List: lo.Map(events, func(e entity.EscrowEvent, _ int) eventResult {
				return eventResult{
					EventName:  e.EventName,
					Signature:  e.Signature,
					EventIndex: e.EventIndex,
					Slot:       e.Slot,
					CreatedAt:  e.CreatedAt.Unix(),
					Data:       e.Payload,
				}
			}),
		},
	}
	return errors.WithStack(ctx.JSON(resp))
}
