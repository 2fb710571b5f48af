package entity

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/mutual-network/escrow-indexer/common"
	"github.com/mutual-network/escrow-indexer/common/errs"
)

type VestingType string

const (
	VestingTypeNone      VestingType = "NONE"
	VestingTypeTime      VestingType = "TIME"
	VestingTypeMarketCap VestingType = "MARKETCAP"
)

func ParseVestingType(s string) (VestingType, error) {
	switch v := VestingType(strings.ToUpper(strings.TrimSpace(s))); v {
	case VestingTypeNone, VestingTypeTime, VestingTypeMarketCap:
		return v, nil
	}
	return "", errors.Wrapf(errs.InvalidVestingCondition, "unknown vesting type %q", s)
}

// VestingCondition holds the vesting parameter. Only the field matching the vesting type is meaningful.
type VestingCondition struct {
	DurationSeconds       uint64 `json:"durationSeconds,omitempty"`
	MarketCapThresholdUSD uint64 `json:"marketCapThresholdUsd,omitempty"`
}

func (c VestingCondition) Duration() time.Duration {
	return time.Duration(c.DurationSeconds) * time.Second
}

type Channel string

const (
	ChannelTwitter  Channel = "twitter"
	ChannelTelegram Channel = "telegram"
)

type DisputeReason string

const (
	DisputeReasonNone       DisputeReason = "NONE"
	DisputeReasonUnresolved DisputeReason = "UNRESOLVED"
	DisputeReasonOther      DisputeReason = "OTHER"
)

func ParseDisputeReason(s string) (DisputeReason, error) {
	switch v := DisputeReason(strings.ToUpper(strings.TrimSpace(s))); v {
	case DisputeReasonNone, DisputeReasonUnresolved, DisputeReasonOther:
		return v, nil
	}
	return "", errors.Wrapf(errs.InvalidParameters, "unknown dispute reason %q", s)
}

type ResolutionKind string

const (
	ResolutionFavorKOL   ResolutionKind = "favor_kol"
	ResolutionFavorOwner ResolutionKind = "favor_owner"
	ResolutionCustom     ResolutionKind = "custom"
)

// Resolution is the admin decision of a dispute.
// For ResolutionCustom, Amount is paid to the KOL on top of what was already released.
type Resolution struct {
	Kind   ResolutionKind `json:"kind"`
	Amount uint64         `json:"amount,omitempty"`
}

// KOLAmount returns the amount paid to the KOL for the given deal balances.
func (r Resolution) KOLAmount(amount, releasedAmount uint64) (uint64, error) {
	if releasedAmount > amount {
		return 0, errors.Wrapf(errs.ExceedsVestedAmount, "released amount %d exceeds deal amount %d", releasedAmount, amount)
	}
	remaining := amount - releasedAmount
	switch r.Kind {
	case ResolutionFavorKOL:
		return remaining, nil
	case ResolutionFavorOwner:
		return 0, nil
	case ResolutionCustom:
		if r.Amount > remaining {
			return 0, errors.Wrapf(errs.ExceedsVestedAmount, "custom amount %d exceeds remaining balance %d", r.Amount, remaining)
		}
		return r.Amount, nil
	}
	return 0, errors.Wrapf(errs.InvalidParameters, "unknown resolution %q", r.Kind)
}

// Deal is the projected escrow agreement between a project owner and a KOL.
type Deal struct {
	OrderID          OrderID
	ChainID          common.ChainID
	DealAddress      string
	ProjectOwner     string
	KOL              string
	Mint             string
	Amount           uint64
	Decimals         uint8
	ReleasedAmount   uint64
	VestingType      VestingType
	VestingCondition VestingCondition
	Channel          Channel
	Status           DealStatus
	StartTime        time.Time
	AcceptTime       time.Time
	CreatedAt        time.Time
	DisputeReason    DisputeReason
	DisputeDetail    string
	DisputedAt       time.Time

	// projection bookkeeping
	LastSlot      uint64
	LastSignature string
	UpdatedAt     time.Time
}

// RemainingAmount returns the amount still held in escrow.
func (d Deal) RemainingAmount() uint64 {
	if d.ReleasedAmount >= d.Amount {
		return 0
	}
	return d.Amount - d.ReleasedAmount
}

type DealFilter struct {
	ChainID      common.ChainID
	Statuses     []DealStatus
	KOL          string
	ProjectOwner string
	// CreatedBefore filters deals created at or before the given time. Zero value is ignored.
	CreatedBefore time.Time
	Limit         int32
	Offset        int32
}

// Transition is the audit entry of a deal reaching a status.
type Transition struct {
	OrderID        OrderID
	ChainID        common.ChainID
	Status         DealStatus
	Slot           uint64
	Signature      string
	TransitionedAt time.Time
}

// IndexerState is the ingestion cursor of a chain.
type IndexerState struct {
	ChainID   common.ChainID
	ProgramID string
	Slot      uint64
	UpdatedAt time.Time
}
