package entity

import (
	"testing"
	"time"

	"github.com/mutual-network/escrow-indexer/common/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolutionKOLAmount(t *testing.T) {
	testCases := []struct {
		name       string
		resolution Resolution
		released   uint64
		expected   uint64
		err        error
	}{
		{name: "favor_kol_pays_remaining", resolution: Resolution{Kind: ResolutionFavorKOL}, released: 200, expected: 800},
		{name: "favor_owner_pays_nothing", resolution: Resolution{Kind: ResolutionFavorOwner}, released: 200, expected: 0},
		{name: "custom_is_additive", resolution: Resolution{Kind: ResolutionCustom, Amount: 250}, released: 200, expected: 250},
		{name: "custom_up_to_remaining", resolution: Resolution{Kind: ResolutionCustom, Amount: 800}, released: 200, expected: 800},
		{name: "custom_exceeds_remaining", resolution: Resolution{Kind: ResolutionCustom, Amount: 801}, released: 200, err: errs.ExceedsVestedAmount},
		{name: "unknown_kind", resolution: Resolution{Kind: "split"}, released: 0, err: errs.InvalidParameters},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			amount, err := tc.resolution.KOLAmount(1000, tc.released)
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, amount)
		})
	}
}

func TestDealStatus(t *testing.T) {
	t.Run("canonical_path_is_increasing", func(t *testing.T) {
		path := []DealStatus{
			DealStatusCreated,
			DealStatusAccepted,
			DealStatusPartiallyEligible,
			DealStatusPartialCompleted,
			DealStatusFullyEligible,
			DealStatusCompleted,
		}
		for i := 1; i < len(path); i++ {
			assert.Greater(t, path[i].Rank(), path[i-1].Rank(), "%s should rank after %s", path[i], path[i-1])
		}
		assert.Equal(t, -1, DealStatus("UNKNOWN").Rank())
	})

	t.Run("ranks_are_distinct", func(t *testing.T) {
		seen := make(map[int]DealStatus, len(statusRank))
		for status, rank := range statusRank {
			other, ok := seen[rank]
			assert.False(t, ok, "%s shares rank %d with %s", status, rank, other)
			seen[rank] = status
		}
		assert.Less(t, DealStatusRejected.Rank(), DealStatusAccepted.Rank())
		assert.Greater(t, DealStatusRejected.Rank(), DealStatusCreated.Rank())
	})

	t.Run("verified_statuses", func(t *testing.T) {
		assert.False(t, DealStatusAccepted.IsVerified())
		assert.True(t, DealStatusPartiallyEligible.IsVerified())
		assert.True(t, DealStatusFullyEligible.IsVerified())
		assert.False(t, DealStatusDisputed.IsVerified())
	})

	t.Run("parse", func(t *testing.T) {
		status, err := ParseDealStatus("partial_completed")
		require.NoError(t, err)
		assert.Equal(t, DealStatusPartialCompleted, status)

		_, err = ParseDealStatus("EXPIRED")
		assert.ErrorIs(t, err, errs.InvalidArgument)
	})
}

func TestCompareReplayOrder(t *testing.T) {
	base := time.Unix(1_700_000_000, 0)
	a := EscrowEvent{CreatedAt: base, Slot: 10, EventIndex: 1}
	b := EscrowEvent{CreatedAt: base, Slot: 10, EventIndex: 2}
	c := EscrowEvent{CreatedAt: base, Slot: 11}
	d := EscrowEvent{CreatedAt: base.Add(time.Second), Slot: 9}

	assert.Negative(t, CompareReplayOrder(a, b))
	assert.Negative(t, CompareReplayOrder(b, c))
	assert.Negative(t, CompareReplayOrder(c, d))
	assert.Zero(t, CompareReplayOrder(a, a))
}
