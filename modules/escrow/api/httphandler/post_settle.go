package httphandler

import (
	"github.com/cockroachdb/errors"
	"github.com/gofiber/fiber/v2"
	"github.com/mutual-network/escrow-indexer/common"
	"github.com/mutual-network/escrow-indexer/common/errs"
	"github.com/mutual-network/escrow-indexer/modules/escrow/settlement"
	"github.com/mutual-network/escrow-indexer/modules/escrow/vesting"
	"github.com/samber/lo"
)

type settleResult struct {
	Evaluation           vesting.Result `json:"evaluation"`
	EligibilitySignature *string        `json:"eligibilitySignature,omitempty"`
	ReleaseSignature     *string        `json:"releaseSignature,omitempty"`
	Released             uint64         `json:"released"`
}

type settleResponse = common.HttpResponse[settleResult]

func mapOutcome(outcome settlement.Outcome) settleResult {
	result := settleResult{
		Evaluation: outcome.Evaluation,
		Released:   outcome.Released,
	}
	if outcome.Eligibility != nil {
		result.EligibilitySignature = &outcome.Eligibility.Signature
	}
	if outcome.Release != nil {
		result.ReleaseSignature = &outcome.Release.Signature
	}
	return result
}

// VerifyTask is called by the proof of task verifier once the promotion was checked.
func (h *HttpHandler) VerifyTask(ctx *fiber.Ctx) (err error) {
	return h.settle(ctx, true)
}

func (h *HttpHandler) Claim(ctx *fiber.Ctx) (err error) {
	return h.settle(ctx, false)
}

func (h *HttpHandler) settle(ctx *fiber.Ctx, verified bool) error {
	var req orderIDRequest
	if err := ctx.ParamsParser(&req); err != nil {
		return errors.WithStack(err)
	}
	orderID, err := req.parse()
	if err != nil {
		return errors.WithStack(err)
	}

	var outcome settlement.Outcome
	if verified {
		outcome, err = h.usecase.VerifyTask(ctx.UserContext(), orderID)
	} else {
		outcome, err = h.usecase.Claim(ctx.UserContext(), orderID)
	}
	if err != nil {
		if errors.Is(err, errs.NotFound) {
			return errs.NewPublicErrorf(errs.NotFound, "deal %s not found", orderID)
		}
		return errors.Wrap(err, "error during settle")
	}

	resp := settleResponse{Result: lo.ToPtr(mapOutcome(outcome))}
	return errors.WithStack(ctx.JSON(resp))
}
