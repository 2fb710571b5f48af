package postgres

import (
	"math"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/mutual-network/escrow-indexer/common"
	"github.com/mutual-network/escrow-indexer/common/errs"
	"github.com/mutual-network/escrow-indexer/modules/escrow/internal/entity"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUint64FromNumeric(t *testing.T) {
	t.Run("normal", func(t *testing.T) {
		numeric := pgtype.Numeric{}
		require.NoError(t, numeric.ScanInt64(pgtype.Int8{Int64: 1000, Valid: true}))

		result, err := uint64FromNumeric(numeric)
		assert.NoError(t, err)
		assert.Equal(t, uint64(1000), result)
	})
	t.Run("null_is_zero", func(t *testing.T) {
		result, err := uint64FromNumeric(pgtype.Numeric{})
		assert.NoError(t, err)
		assert.Zero(t, result)
	})
	t.Run("max_uint64", func(t *testing.T) {
		numeric, err := numericFromUint64(math.MaxUint64)
		require.NoError(t, err)
		result, err := uint64FromNumeric(numeric)
		assert.NoError(t, err)
		assert.Equal(t, uint64(math.MaxUint64), result)
	})
	t.Run("overflow", func(t *testing.T) {
		var numeric pgtype.Numeric
		require.NoError(t, numeric.UnmarshalJSON([]byte("18446744073709551616")))
		_, err := uint64FromNumeric(numeric)
		assert.ErrorIs(t, err, errs.OverflowUint64)
	})
}

func TestMapDeal(t *testing.T) {
	orderID, err := entity.NewOrderID("promo-campaign-01")
	require.NoError(t, err)
	createdAt := time.Unix(1_700_000_000, 0).UTC()
	deal := entity.Deal{
		OrderID:          orderID,
		ChainID:          common.ChainSolanaDevnet,
		DealAddress:      "deal",
		ProjectOwner:     "owner",
		KOL:              "kol",
		Mint:             "mint",
		Amount:           5_000_000,
		Decimals:         6,
		ReleasedAmount:   1_000_000,
		VestingType:      entity.VestingTypeMarketCap,
		VestingCondition: entity.VestingCondition{MarketCapThresholdUSD: 1_000_000},
		Channel:          entity.ChannelTwitter,
		Status:           entity.DealStatusPartialCompleted,
		StartTime:        createdAt,
		AcceptTime:       createdAt.Add(time.Hour),
		CreatedAt:        createdAt,
		LastSlot:         42,
		LastSignature:    "sig-42",
		UpdatedAt:        createdAt.Add(2 * time.Hour),
	}

	params, err := mapDealTypeToParams(deal)
	require.NoError(t, err)
	assert.False(t, params.DisputedAt.Valid)

	model := mapUpsertParamsToModel(params)
	got, err := mapDealModelToType(model)
	require.NoError(t, err)
	assert.Equal(t, deal, got)
	assert.Equal(t, "promo-campaign-0", got.OrderID.String())
}

func TestMapEvent(t *testing.T) {
	orderID, err := entity.NewOrderID("order-1")
	require.NoError(t, err)
	event := entity.EscrowEvent{
		ChainID:         common.ChainLocalnet,
		ProgramID:       "program",
		CampaignOrderID: orderID,
		EventName:       entity.EventPaymentReleased,
		Signature:       "sig",
		EventIndex:      2,
		Slot:            9,
		Payload: entity.EventPayload{
			EventName:      entity.EventPaymentReleased,
			OrderID:        orderID,
			DealAddress:    "deal",
			ClaimAmount:    lo.ToPtr(uint64(10)),
			ReleasedAmount: lo.ToPtr(uint64(30)),
		},
		CreatedAt: time.Unix(1_700_000_000, 0).UTC(),
	}

	params, err := mapEventTypeToParams(event)
	require.NoError(t, err)
	assert.JSONEq(t, `{"eventName":"PaymentReleased","orderId":"order-1","dealAddress":"deal","claimAmount":10,"releasedAmount":30}`, string(params.Data))

	got, err := mapEventModelToType(mapCreateParamsToModel(params))
	require.NoError(t, err)
	assert.Equal(t, event, got)
}

func TestMapEventOrderIDRoundTrip(t *testing.T) {
	testCases := []struct {
		name    string
		orderID string
	}{
		{name: "plain", orderID: "order-1"},
		{name: "full_length", orderID: "0123456789abcdef"},
		{name: "truncated_inside_multibyte_character", orderID: "promo-campaign-été"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			orderID, err := entity.NewOrderID(tc.orderID)
			require.NoError(t, err)
			event := entity.EscrowEvent{
				ChainID:         common.ChainLocalnet,
				ProgramID:       "program",
				CampaignOrderID: orderID,
				EventName:       entity.EventDealRejected,
				Signature:       "sig",
				Slot:            3,
				Payload: entity.EventPayload{
					EventName:   entity.EventDealRejected,
					OrderID:     orderID,
					DealAddress: "deal",
				},
				CreatedAt: time.Unix(1_700_000_000, 0).UTC(),
			}

			params, err := mapEventTypeToParams(event)
			require.NoError(t, err)
			assert.NotContains(t, string(params.Data), `\u0000`)

			got, err := mapEventModelToType(mapCreateParamsToModel(params))
			require.NoError(t, err)
			assert.Equal(t, event, got)
		})
	}
}
