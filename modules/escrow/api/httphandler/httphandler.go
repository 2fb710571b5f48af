package httphandler

import (
	"net/url"
	"time"

	"github.com/mutual-network/escrow-indexer/common/errs"
	"github.com/mutual-network/escrow-indexer/modules/escrow/internal/entity"
	"github.com/mutual-network/escrow-indexer/modules/escrow/usecase"
	"github.com/mutual-network/escrow-indexer/pkg/decimals"
	"github.com/shopspring/decimal"
)

type HttpHandler struct {
	usecase *usecase.Usecase
}

func New(usecase *usecase.Usecase) *HttpHandler {
	return &HttpHandler{
		usecase: usecase,
	}
}

type orderIDRequest struct {
	OrderID string `params:"orderId"`
}

func (r orderIDRequest) parse() (entity.OrderID, error) {
	raw, err := url.PathUnescape(r.OrderID)
	if err != nil {
		return entity.OrderID{}, errs.NewPublicErrorf(errs.InvalidParameters, "order id %q is not a valid path segment", r.OrderID)
	}
	orderID, err := entity.NewOrderID(raw)
	if err != nil {
		return entity.OrderID{}, errs.WithPublicMessageCode(err, "validation error", errs.KindCode(errs.InvalidParameters))
	}
	return orderID, nil
}

type vestingConditionResult struct {
	DurationSeconds       *uint64 `json:"durationSeconds,omitempty"`
	MarketCapThresholdUSD *uint64 `json:"marketCapThresholdUsd,omitempty"`
}

type dealResult struct {
	OrderID          string                 `json:"orderId"`
	ChainID          string                 `json:"chainId"`
	DealAddress      string                 `json:"dealAddress"`
	ProjectOwner     string                 `json:"projectOwner"`
	KOL              string                 `json:"kol"`
	Mint             string                 `json:"mint"`
	Amount           uint64                 `json:"amount"`
	AmountDecimal    decimal.Decimal        `json:"amountDecimal"`
	Decimals         uint8                  `json:"decimals"`
	ReleasedAmount   uint64                 `json:"releasedAmount"`
	VestingType      entity.VestingType     `json:"vestingType"`
	VestingCondition vestingConditionResult `json:"vestingCondition"`
	Channel          entity.Channel         `json:"channel"`
	Status           entity.DealStatus      `json:"status"`
	StartTime        *int64                 `json:"startTime"`  // unix timestamp
	AcceptTime       *int64                 `json:"acceptTime"` // unix timestamp
	CreatedAt        int64                  `json:"createdAt"`  // unix timestamp
	DisputeReason    entity.DisputeReason   `json:"disputeReason,omitempty"`
	DisputeDetail    string                 `json:"disputeDetail,omitempty"`
	LastSlot         uint64                 `json:"lastSlot"`
}

func mapDeal(deal entity.Deal) dealResult {
	result := dealResult{
		OrderID:        deal.OrderID.String(),
		ChainID:        string(deal.ChainID),
		DealAddress:    deal.DealAddress,
		ProjectOwner:   deal.ProjectOwner,
		KOL:            deal.KOL,
		Mint:           deal.Mint,
		Amount:         deal.Amount,
		AmountDecimal:  decimals.ToDecimal(deal.Amount, deal.Decimals),
		Decimals:       deal.Decimals,
		ReleasedAmount: deal.ReleasedAmount,
		VestingType:    deal.VestingType,
		Channel:        deal.Channel,
		Status:         deal.Status,
		StartTime:      unixOrNil(deal.StartTime),
		AcceptTime:     unixOrNil(deal.AcceptTime),
		CreatedAt:      deal.CreatedAt.Unix(),
		DisputeReason:  deal.DisputeReason,
		DisputeDetail:  deal.DisputeDetail,
		LastSlot:       deal.LastSlot,
	}
	switch deal.VestingType {
	case entity.VestingTypeTime:
		result.VestingCondition.DurationSeconds = &deal.VestingCondition.DurationSeconds
	case entity.VestingTypeMarketCap:
		result.VestingCondition.MarketCapThresholdUSD = &deal.VestingCondition.MarketCapThresholdUSD
	}
	return result
}

func unixOrNil(t time.Time) *int64 {
	if t.IsZero() {
		return nil
	}
	unix := t.Unix()
	return &unix
}
