package entity

import (
	"encoding/json"
	"testing"

	"github.com/mutual-network/escrow-indexer/common/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOrderID(t *testing.T) {
	t.Run("truncates_to_16_bytes", func(t *testing.T) {
		id, err := NewOrderID("promo-campaign-01")
		require.NoError(t, err)
		assert.Equal(t, "promo-campaign-0", id.String())

		decoded, err := OrderIDFromBytes(id.Bytes())
		require.NoError(t, err)
		assert.Equal(t, "promo-campaign-0", decoded.String())
	})

	t.Run("pads_short_ids", func(t *testing.T) {
		id, err := NewOrderID("abc")
		require.NoError(t, err)
		assert.Equal(t, []byte{'a', 'b', 'c', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}, id.Bytes())
		assert.Equal(t, "abc", id.String())
	})

	t.Run("exactly_16_bytes", func(t *testing.T) {
		id, err := NewOrderID("0123456789abcdef")
		require.NoError(t, err)
		assert.Equal(t, "0123456789abcdef", id.String())
	})

	t.Run("empty_is_invalid", func(t *testing.T) {
		_, err := NewOrderID("")
		assert.ErrorIs(t, err, errs.InvalidParameters)
	})

	t.Run("nul_is_invalid", func(t *testing.T) {
		_, err := NewOrderID("a\x00b")
		assert.ErrorIs(t, err, errs.InvalidParameters)
	})

	t.Run("wrong_buffer_length", func(t *testing.T) {
		_, err := OrderIDFromBytes([]byte("short"))
		assert.ErrorIs(t, err, errs.InvalidParameters)
	})

	t.Run("blank_buffer_is_invalid", func(t *testing.T) {
		_, err := OrderIDFromBytes(make([]byte, OrderIDLength))
		assert.ErrorIs(t, err, errs.InvalidParameters)
	})

	t.Run("nul_inside_buffer_is_invalid", func(t *testing.T) {
		buf := make([]byte, OrderIDLength)
		copy(buf, "ab\x00cd")
		_, err := OrderIDFromBytes(buf)
		assert.ErrorIs(t, err, errs.InvalidParameters)
	})

	t.Run("json_uses_decoded_string", func(t *testing.T) {
		id, err := NewOrderID("campaign-7")
		require.NoError(t, err)
		data, err := json.Marshal(id)
		require.NoError(t, err)
		assert.JSONEq(t, `"campaign-7"`, string(data))

		var out OrderID
		require.NoError(t, json.Unmarshal(data, &out))
		assert.Equal(t, id, out)
	})
}
