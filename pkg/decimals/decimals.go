package decimals

import (
	"math/big"

	"github.com/Cleverse/go-utilities/utils"
	"github.com/cockroachdb/errors"
	"github.com/gaze-network/uint128"
	"github.com/mutual-network/escrow-indexer/common/errs"
	"github.com/shopspring/decimal"
)

const (
	DefaultDivPrecision = 36

	// MaxDecimals is the largest number of token decimals accepted by the ledger.
	MaxDecimals = 18
)

func init() {
	decimal.DivisionPrecision = DefaultDivPrecision
}

// MustFromString convert string to decimal.Decimal. Panic if error
// string must be a valid number, not NaN, Inf or empty string.
func MustFromString(s string) decimal.Decimal {
	return utils.Must(decimal.NewFromString(s))
}

// PowerOfTen returns 10^n.
func PowerOfTen(n int32) decimal.Decimal {
	return decimal.New(1, n)
}

// ToDecimal converts an integer amount in the smallest unit of a token to its human readable value.
// e.g. ToDecimal(1_500_000_000, 9) = 1.5
func ToDecimal[T uint64 | uint128.Uint128 | *big.Int](amount T, decimals uint8) decimal.Decimal {
	var value *big.Int
	switch v := any(amount).(type) {
	case uint64:
		value = new(big.Int).SetUint64(v)
	case uint128.Uint128:
		value = v.Big()
	case *big.Int:
		value = v
	}
	if value == nil {
		value = new(big.Int)
	}
	return decimal.NewFromBigInt(value, -int32(decimals))
}

// ToSmallestUnit converts a human readable amount to the integer amount in the smallest unit of a token.
// Fractions below the smallest unit are rejected instead of rounded.
func ToSmallestUnit(amount decimal.Decimal, decimals uint8) (uint64, error) {
	if decimals > MaxDecimals {
		return 0, errors.Wrapf(errs.InvalidArgument, "decimals %d exceeds %d", decimals, MaxDecimals)
	}
	if amount.IsNegative() {
		return 0, errors.Wrap(errs.InvalidArgument, "amount must not be negative")
	}
	scaled := amount.Shift(int32(decimals))
	if !scaled.Equal(scaled.Truncate(0)) {
		return 0, errors.Wrapf(errs.InvalidArgument, "amount %s has more than %d decimals", amount, decimals)
	}
	value := scaled.BigInt()
	if !value.IsUint64() {
		return 0, errors.Wrapf(errs.OverflowUint64, "amount %s", amount)
	}
	return value.Uint64(), nil
}
