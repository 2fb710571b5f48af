package httphandler

import (
	"github.com/mutual-network/escrow-indexer/common"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/gofiber/fiber/v2"
	"github.com/mutual-network/escrow-indexer/common/errs"
	"github.com/mutual-network/escrow-indexer/modules/escrow/internal/entity"
	"github.com/samber/lo"
)

const (
	getDealsMaxLimit     = 1000
	getDealsDefaultLimit = 100
)

type getDealsRequest struct {
	Status string `query:"status"` // comma separated
	KOL    string `query:"kol"`
	Owner  string `query:"owner"`
	Limit  int32  `query:"limit"`
	Offset int32  `query:"offset"`

	statuses []entity.DealStatus
}

func (r *getDealsRequest) Validate() error {
	var errList []error
	for _, s := range strings.Split(r.Status, ",") {
		if strings.TrimSpace(s) == "" {
			continue
		}
		status, err := entity.ParseDealStatus(s)
		if err != nil {
			errList = append(errList, errors.Errorf("status '%s' is not a valid deal status", s))
			continue
		}
		r.statuses = append(r.statuses, status)
	}
	r.statuses = lo.Uniq(r.statuses)
	if r.Limit < 0 {
		errList = append(errList, errors.New("'limit' must be non-negative"))
	}
	if r.Limit > getDealsMaxLimit {
		errList = append(errList, errors.Errorf("'limit' cannot exceed %d", getDealsMaxLimit))
	}
	if r.Offset < 0 {
		errList = append(errList, errors.New("'offset' must be non-negative"))
	}
	return errs.WithPublicMessageCode(errors.Join(errList...), "validation error", errs.KindCode(errs.InvalidParameters))
}

type getDealsResult struct {
	List []dealResult `json:"list"`
}

type getDealsResponse = common.HttpResponse[getDealsResult]

func (h *HttpHandler) GetDeals(ctx *fiber.Ctx) (err error) {
	var req getDealsRequest
	if err := ctx.QueryParser(&req); err != nil {
		return errors.WithStack(err)
	}
	if err := req.Validate(); err != nil {
		return errors.WithStack(err)
	}
	if req.Limit == 0 {
		req.Limit = getDealsDefaultLimit
	}

	deals, err := h.usecase.ListDeals(ctx.UserContext(), entity.DealFilter{
		Statuses:     req.statuses,
		KOL:          req.KOL,
		ProjectOwner: req.Owner,
		Limit:        req.Limit,
		Offset:       req.Offset,
	})
	if err != nil {
		return errors.Wrap(err, "error during ListDeals")
	}

	resp := getDealsResponse{
		Result: &getDealsResult{
			List: lo.Map(deals, func(deal entity.Deal, _ int) dealResult { return mapDeal(deal) }),
		},
	}
	return errors.WithStack(ctx.JSON(resp))
}
