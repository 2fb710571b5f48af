package ledger

import (
	"github.com/cockroachdb/errors"
	"github.com/mutual-network/escrow-indexer/common/errs"
	"github.com/mutual-network/escrow-indexer/modules/escrow/internal/entity"
	"github.com/mutual-network/escrow-indexer/modules/escrow/ledger/codec"
)

// ValidateCreateDeal checks the instruction arguments before anything is sent to the ledger.
func ValidateCreateDeal(params CreateDealParams) error {
	if _, err := entity.NewOrderID(params.OrderID); err != nil {
		return errors.WithStack(err)
	}
	if params.Amount == 0 {
		return errors.Wrap(errs.InvalidParameters, "amount must be greater than zero")
	}
	for name, key := range map[string]string{
		"projectOwner": params.ProjectOwner,
		"kol":          params.KOL,
		"mint":         params.Mint,
	} {
		if err := validatePublicKey(name, key); err != nil {
			return err
		}
	}
	if params.ProjectOwner == params.KOL {
		return errors.Wrap(errs.InvalidParameters, "project owner and kol must differ")
	}
	return errors.WithStack(validateVestingShape(params.VestingType, params.VestingCondition))
}

// validateVestingShape checks that only the condition field matching the vesting type is set.
// Whether the value is in the allowed set is decided by the vesting rules.
func validateVestingShape(vestingType entity.VestingType, condition entity.VestingCondition) error {
	switch vestingType {
	case entity.VestingTypeNone:
		if condition != (entity.VestingCondition{}) {
			return errors.Wrap(errs.InvalidParameters, "vesting condition must be empty for NONE vesting")
		}
	case entity.VestingTypeTime:
		if condition.DurationSeconds == 0 || condition.MarketCapThresholdUSD != 0 {
			return errors.Wrap(errs.InvalidParameters, "TIME vesting requires a duration only")
		}
	case entity.VestingTypeMarketCap:
		if condition.MarketCapThresholdUSD == 0 || condition.DurationSeconds != 0 {
			return errors.Wrap(errs.InvalidParameters, "MARKETCAP vesting requires a market cap threshold only")
		}
	default:
		return errors.Wrapf(errs.InvalidParameters, "unknown vesting type %q", vestingType)
	}
	return nil
}

func validatePublicKey(name, key string) error {
	if _, err := codec.ParsePublicKey(key); err != nil {
		return errors.Wrapf(err, "field %s", name)
	}
	return nil
}
