package ledger

import (
	"bytes"
	"testing"
	"time"

	"github.com/mutual-network/escrow-indexer/common/errs"
	"github.com/mutual-network/escrow-indexer/modules/escrow/internal/entity"
	"github.com/mutual-network/escrow-indexer/modules/escrow/ledger/codec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(b byte) string {
	return codec.PublicKeyValue(bytes.Repeat([]byte{b}, codec.PublicKeySize)).PublicKeyString()
}

func testHeader(t *testing.T) EventHeader {
	orderID, err := entity.NewOrderID("order-1")
	require.NoError(t, err)
	return EventHeader{
		OrderID:      orderID,
		DealAddress:  testKey(1),
		ProjectOwner: testKey(2),
		KOL:          testKey(3),
	}
}

func TestEventRoundTrip(t *testing.T) {
	h := testHeader(t)
	at := time.Unix(1_700_000_000, 0).UTC()

	testCases := []Event{
		DealCreated{
			EventHeader:      h,
			Mint:             testKey(4),
			Amount:           1_000_000,
			Decimals:         6,
			VestingType:      entity.VestingTypeTime,
			VestingCondition: entity.VestingCondition{DurationSeconds: 86400},
			Channel:          entity.ChannelTelegram,
			StartTime:        at,
		},
		DealAccepted{EventHeader: h, AcceptTime: at},
		DealRejected{EventHeader: h},
		EligibilityUpdated{EventHeader: h, NewEligibilityStatus: entity.DealStatusFullyEligible},
		PaymentReleased{EventHeader: h, ClaimAmount: 200, ReleasedAmount: 500},
		DealDisputed{EventHeader: h, Disputer: testKey(2), Reason: entity.DisputeReasonUnresolved, Detail: "no post"},
		DisputeResolved{EventHeader: h, Resolution: entity.ResolutionCustom, KOLAmount: 100, ReleasedAmount: 600, RefundAmount: 400},
	}
	for _, tc := range testCases {
		t.Run(string(tc.Name()), func(t *testing.T) {
			data, err := EncodeEvent(tc)
			require.NoError(t, err)
			d := Discriminator(tc.Name())
			assert.Equal(t, d[:], data[:DiscriminatorSize])

			decoded, err := DecodeEvent(data)
			require.NoError(t, err)
			assert.Equal(t, tc, decoded)
		})
	}
}

func TestEventPayload(t *testing.T) {
	h := testHeader(t)
	event := DealCreated{
		EventHeader:      h,
		Mint:             testKey(4),
		Amount:           5_000,
		Decimals:         9,
		VestingType:      entity.VestingTypeMarketCap,
		VestingCondition: entity.VestingCondition{MarketCapThresholdUSD: 1_000_000},
		Channel:          entity.ChannelTwitter,
		StartTime:        time.Unix(100, 0).UTC(),
	}
	p := event.Payload()
	assert.Equal(t, entity.EventDealCreated, p.EventName)
	assert.Equal(t, "order-1", p.OrderID.String())
	assert.Equal(t, h.KOL, p.KOL)
	require.NotNil(t, p.Amount)
	assert.Equal(t, uint64(5_000), *p.Amount)
	require.NotNil(t, p.VestingCondition)
	assert.Equal(t, uint64(1_000_000), p.VestingCondition.MarketCapThresholdUSD)
	require.NotNil(t, p.StartTime)
	assert.Equal(t, int64(100), *p.StartTime)
	assert.Nil(t, p.ClaimAmount)
}

func TestDecodeEventDisputeDetail(t *testing.T) {
	data, err := EncodeEvent(DealDisputed{
		EventHeader: testHeader(t),
		Disputer:    testKey(2),
		Reason:      entity.DisputeReasonOther,
		Detail:      "post\x00removed\xff",
	})
	require.NoError(t, err)

	decoded, err := DecodeEvent(data)
	require.NoError(t, err)
	assert.Equal(t, "postremoved", decoded.(DealDisputed).Detail)
}

func TestDecodeEventErrors(t *testing.T) {
	t.Run("short_data", func(t *testing.T) {
		_, err := DecodeEvent([]byte{1, 2, 3})
		assert.ErrorIs(t, err, codec.ErrShortBuffer)
	})
	t.Run("unknown_discriminator", func(t *testing.T) {
		_, err := DecodeEvent(make([]byte, 64))
		assert.ErrorIs(t, err, ErrUnknownEvent)
	})
	t.Run("truncated_body", func(t *testing.T) {
		data, err := EncodeEvent(DealRejected{EventHeader: testHeader(t)})
		require.NoError(t, err)
		_, err = DecodeEvent(data[:len(data)-1])
		assert.ErrorIs(t, err, codec.ErrShortBuffer)
	})
	t.Run("blank_order_id", func(t *testing.T) {
		h := testHeader(t)
		h.OrderID = entity.OrderID{}
		data, err := EncodeEvent(DealRejected{EventHeader: h})
		require.NoError(t, err)
		_, err = DecodeEvent(data)
		assert.ErrorIs(t, err, errs.InvalidParameters)
	})
	t.Run("nul_inside_order_id", func(t *testing.T) {
		h := testHeader(t)
		h.OrderID = entity.OrderID{}
		copy(h.OrderID[:], "ab\x00cd")
		data, err := EncodeEvent(DealRejected{EventHeader: h})
		require.NoError(t, err)
		_, err = DecodeEvent(data)
		assert.ErrorIs(t, err, errs.InvalidParameters)
	})
	t.Run("invalid_public_key_on_encode", func(t *testing.T) {
		h := testHeader(t)
		h.KOL = "invalid"
		_, err := EncodeEvent(DealRejected{EventHeader: h})
		assert.ErrorIs(t, err, errs.InvalidParameters)
	})
}
