package postgres

import (
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gaze-network/uint128"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/mutual-network/escrow-indexer/common"
	"github.com/mutual-network/escrow-indexer/common/errs"
	"github.com/mutual-network/escrow-indexer/modules/escrow/internal/entity"
	"github.com/mutual-network/escrow-indexer/modules/escrow/repository/postgres/gen"
)

func uint64FromNumeric(src pgtype.Numeric) (uint64, error) {
	if !src.Valid {
		return 0, nil
	}
	bytes, err := src.MarshalJSON()
	if err != nil {
		return 0, errors.WithStack(err)
	}
	result, err := uint128.FromString(string(bytes))
	if err != nil {
		return 0, errors.WithStack(err)
	}
	if !result.IsUint64() {
		return 0, errors.Wrapf(errs.OverflowUint64, "numeric %s", result)
	}
	return result.Uint64(), nil
}

func numericFromUint64(src uint64) (pgtype.Numeric, error) {
	var result pgtype.Numeric
	if err := result.UnmarshalJSON([]byte(uint128.From64(src).String())); err != nil {
		return pgtype.Numeric{}, errors.WithStack(err)
	}
	return result, nil
}

func timestamptz(t time.Time) pgtype.Timestamptz {
	return pgtype.Timestamptz{Time: t.UTC(), Valid: !t.IsZero()}
}

func timeFromTimestamptz(src pgtype.Timestamptz) time.Time {
	if !src.Valid {
		return time.Time{}
	}
	return src.Time.UTC()
}

func mapEventModelToType(src gen.EscrowEvent) (entity.EscrowEvent, error) {
	orderID, err := entity.OrderIDFromBytes(src.CampaignOrderID)
	if err != nil {
		return entity.EscrowEvent{}, errors.Wrap(err, "failed to parse campaign order id")
	}
	var payload entity.EventPayload
	if err := json.Unmarshal(src.Data, &payload); err != nil {
		return entity.EscrowEvent{}, errors.Wrap(err, "failed to unmarshal event data")
	}
	// JSON text is lossy for ids truncated inside a multi-byte character, the bytea column is not.
	payload.OrderID = orderID
	return entity.EscrowEvent{
		ChainID:         common.ChainID(src.ChainID),
		ProgramID:       src.ProgramID,
		CampaignOrderID: orderID,
		EventName:       entity.EventName(src.EventName),
		Signature:       src.Signature,
		EventIndex:      uint32(src.EventIndex),
		Slot:            uint64(src.Slot),
		Payload:         payload,
		CreatedAt:       timeFromTimestamptz(src.CreatedAt),
	}, nil
}

func mapEventTypeToParams(src entity.EscrowEvent) (gen.CreateEventParams, error) {
	data, err := json.Marshal(src.Payload)
	if err != nil {
		return gen.CreateEventParams{}, errors.Wrap(err, "failed to marshal event data")
	}
	return gen.CreateEventParams{
		ChainID:         src.ChainID.String(),
		ProgramID:       src.ProgramID,
		CampaignOrderID: src.CampaignOrderID.Bytes(),
		EventName:       string(src.EventName),
		Signature:       src.Signature,
		EventIndex:      int32(src.EventIndex),
		Slot:            int64(src.Slot),
		Data:            data,
		CreatedAt:       timestamptz(src.CreatedAt),
	}, nil
}

func mapDealModelToType(src gen.EscrowDeal) (entity.Deal, error) {
	orderID, err := entity.OrderIDFromBytes(src.OrderID)
	if err != nil {
		return entity.Deal{}, errors.Wrap(err, "failed to parse order id")
	}
	amount, err := uint64FromNumeric(src.Amount)
	if err != nil {
		return entity.Deal{}, errors.Wrap(err, "failed to parse amount")
	}
	releasedAmount, err := uint64FromNumeric(src.ReleasedAmount)
	if err != nil {
		return entity.Deal{}, errors.Wrap(err, "failed to parse released amount")
	}
	duration, err := uint64FromNumeric(src.VestingDurationSeconds)
	if err != nil {
		return entity.Deal{}, errors.Wrap(err, "failed to parse vesting duration")
	}
	threshold, err := uint64FromNumeric(src.VestingMarketcapThreshold)
	if err != nil {
		return entity.Deal{}, errors.Wrap(err, "failed to parse vesting market cap threshold")
	}
	return entity.Deal{
		OrderID:        orderID,
		ChainID:        common.ChainID(src.ChainID),
		DealAddress:    src.DealAddress,
		ProjectOwner:   src.ProjectOwner,
		KOL:            src.Kol,
		Mint:           src.Mint,
		Amount:         amount,
		Decimals:       uint8(src.Decimals),
		ReleasedAmount: releasedAmount,
		VestingType:    entity.VestingType(src.VestingType),
		VestingCondition: entity.VestingCondition{
			DurationSeconds:       duration,
			MarketCapThresholdUSD: threshold,
		},
		Channel:       entity.Channel(src.Channel),
		Status:        entity.DealStatus(src.Status),
		StartTime:     timeFromTimestamptz(src.StartTime),
		AcceptTime:    timeFromTimestamptz(src.AcceptTime),
		CreatedAt:     timeFromTimestamptz(src.CreatedAt),
		DisputeReason: entity.DisputeReason(src.DisputeReason),
		DisputeDetail: src.DisputeDetail,
		DisputedAt:    timeFromTimestamptz(src.DisputedAt),
		LastSlot:      uint64(src.LastSlot),
		LastSignature: src.LastSignature,
		UpdatedAt:     timeFromTimestamptz(src.UpdatedAt),
	}, nil
}

func mapDealTypeToParams(src entity.Deal) (gen.UpsertDealParams, error) {
	amount, err := numericFromUint64(src.Amount)
	if err != nil {
		return gen.UpsertDealParams{}, errors.Wrap(err, "failed to convert amount")
	}
	releasedAmount, err := numericFromUint64(src.ReleasedAmount)
	if err != nil {
		return gen.UpsertDealParams{}, errors.Wrap(err, "failed to convert released amount")
	}
	duration, err := numericFromUint64(src.VestingCondition.DurationSeconds)
	if err != nil {
		return gen.UpsertDealParams{}, errors.Wrap(err, "failed to convert vesting duration")
	}
	threshold, err := numericFromUint64(src.VestingCondition.MarketCapThresholdUSD)
	if err != nil {
		return gen.UpsertDealParams{}, errors.Wrap(err, "failed to convert vesting market cap threshold")
	}
	return gen.UpsertDealParams{
		ChainID:                   src.ChainID.String(),
		OrderID:                   src.OrderID.Bytes(),
		DealAddress:               src.DealAddress,
		ProjectOwner:              src.ProjectOwner,
		Kol:                       src.KOL,
		Mint:                      src.Mint,
		Amount:                    amount,
		Decimals:                  int16(src.Decimals),
		ReleasedAmount:            releasedAmount,
		VestingType:               string(src.VestingType),
		VestingDurationSeconds:    duration,
		VestingMarketcapThreshold: threshold,
		Channel:                   string(src.Channel),
		Status:                    string(src.Status),
		StartTime:                 timestamptz(src.StartTime),
		AcceptTime:                timestamptz(src.AcceptTime),
		CreatedAt:                 timestamptz(src.CreatedAt),
		DisputeReason:             string(src.DisputeReason),
		DisputeDetail:             src.DisputeDetail,
		DisputedAt:                timestamptz(src.DisputedAt),
		LastSlot:                  int64(src.LastSlot),
		LastSignature:             src.LastSignature,
		UpdatedAt:                 timestamptz(src.UpdatedAt),
	}, nil
}

func mapTransitionModelToType(src gen.EscrowDealTransition) (entity.Transition, error) {
	orderID, err := entity.OrderIDFromBytes(src.OrderID)
	if err != nil {
		return entity.Transition{}, errors.Wrap(err, "failed to parse order id")
	}
	return entity.Transition{
		OrderID:        orderID,
		ChainID:        common.ChainID(src.ChainID),
		Status:         entity.DealStatus(src.Status),
		Slot:           uint64(src.Slot),
		Signature:      src.Signature,
		TransitionedAt: timeFromTimestamptz(src.TransitionedAt),
	}, nil
}

func mapTransitionTypeToParams(src entity.Transition) gen.UpsertTransitionParams {
	return gen.UpsertTransitionParams{
		ChainID:        src.ChainID.String(),
		OrderID:        src.OrderID.Bytes(),
		Status:         string(src.Status),
		Slot:           int64(src.Slot),
		Signature:      src.Signature,
		TransitionedAt: timestamptz(src.TransitionedAt),
	}
}

func mapIndexerStateModelToType(src gen.EscrowIndexerState) entity.IndexerState {
	return entity.IndexerState{
		ChainID:   common.ChainID(src.ChainID),
		ProgramID: src.ProgramID,
		Slot:      uint64(src.Slot),
		UpdatedAt: timeFromTimestamptz(src.UpdatedAt),
	}
}
