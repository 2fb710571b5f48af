package entity

import (
	"cmp"
	"time"

	"github.com/mutual-network/escrow-indexer/common"
)

type EventName string

const (
	EventDealCreated        EventName = "DealCreated"
	EventDealAccepted       EventName = "DealAccepted"
	EventDealRejected       EventName = "DealRejected"
	EventEligibilityUpdated EventName = "EligibilityUpdated"
	EventPaymentReleased    EventName = "PaymentReleased"
	EventDealDisputed       EventName = "DealDisputed"
	EventDisputeResolved    EventName = "DisputeResolved"
)

// EventPayload is the decoded ledger event. Optional fields are only set by the events carrying them.
type EventPayload struct {
	EventName    EventName `json:"eventName"`
	OrderID      OrderID   `json:"orderId"`
	DealAddress  string    `json:"dealAddress"`
	ProjectOwner string    `json:"projectOwner,omitempty"`
	KOL          string    `json:"kol,omitempty"`

	// DealCreated
	Mint             string            `json:"mint,omitempty"`
	Amount           *uint64           `json:"amount,omitempty"`
	Decimals         *uint8            `json:"decimals,omitempty"`
	VestingType      VestingType       `json:"vestingType,omitempty"`
	VestingCondition *VestingCondition `json:"vestingCondition,omitempty"`
	Channel          Channel           `json:"channel,omitempty"`
	StartTime        *int64            `json:"startTime,omitempty"`

	// DealAccepted
	AcceptTime *int64 `json:"acceptTime,omitempty"`

	// EligibilityUpdated
	Status               *DealStatus `json:"status,omitempty"`
	NewEligibilityStatus *DealStatus `json:"newEligibilityStatus,omitempty"`

	// PaymentReleased, DisputeResolved
	ClaimAmount    *uint64 `json:"claimAmount,omitempty"`
	ReleasedAmount *uint64 `json:"releasedAmount,omitempty"`

	// DealDisputed
	Disputer      string        `json:"disputer,omitempty"`
	DisputeReason DisputeReason `json:"disputeReason,omitempty"`
	DisputeDetail string        `json:"disputeDetail,omitempty"`

	// DisputeResolved
	Resolution   ResolutionKind `json:"resolution,omitempty"`
	KOLAmount    *uint64        `json:"kolAmount,omitempty"`
	RefundAmount *uint64        `json:"refundAmount,omitempty"`
}

// EscrowEvent is an immutable ledger event record. Identity is (ChainID, ProgramID, Signature, EventName).
type EscrowEvent struct {
	ChainID         common.ChainID
	ProgramID       string
	CampaignOrderID OrderID
	EventName       EventName
	Signature       string
	EventIndex      uint32
	Slot            uint64
	Payload         EventPayload
	CreatedAt       time.Time
}

// EventKey is the deduplication key of an escrow event.
type EventKey struct {
	ChainID   common.ChainID
	ProgramID string
	Signature string
	EventName EventName
}

func (e EscrowEvent) Key() EventKey {
	return EventKey{
		ChainID:   e.ChainID,
		ProgramID: e.ProgramID,
		Signature: e.Signature,
		EventName: e.EventName,
	}
}

// CompareReplayOrder orders events by (CreatedAt, Slot, EventIndex).
func CompareReplayOrder(a, b EscrowEvent) int {
	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Slot, b.Slot); c != 0 {
		return c
	}
	return cmp.Compare(a.EventIndex, b.EventIndex)
}
