// Package ledger is the gateway to the external escrow ledger program.
// It submits instructions, reads account state and fetches the emitted event log.
package ledger

import (
	"context"

	"github.com/mutual-network/escrow-indexer/modules/escrow/internal/entity"
)

// Client is the escrow ledger gateway. It owns no durable state.
//
// Mutating calls are sent exactly once. A failure with an unknown outcome is reported as
// errs.AmbiguousSubmission and the caller must re-read the account state before retrying.
type Client interface {
	CreateDeal(ctx context.Context, params CreateDealParams) (CreateDealResult, error)
	AcceptDeal(ctx context.Context, dealAddress, kol string) (Submission, error)
	RejectDeal(ctx context.Context, dealAddress, admin string) (Submission, error)
	ReleasePayment(ctx context.Context, dealAddress string, amount uint64) (Submission, error)
	DisputeDeal(ctx context.Context, params DisputeParams) (Submission, error)
	ResolveDispute(ctx context.Context, dealAddress, admin string, resolution entity.Resolution) (Submission, error)
	SetEligibility(ctx context.Context, dealAddress, admin string, status entity.DealStatus) (Submission, error)

	// GetDeal returns the ledger account of the deal, errs.NotFound if the account does not exist.
	GetDeal(ctx context.Context, dealAddress string) (AccountState, error)
	GetTokenBalance(ctx context.Context, owner, mint string) (uint64, error)
	LatestSlot(ctx context.Context) (uint64, error)
	// FetchHistoricalEvents returns the program events emitted in [FromSlot, ToSlot], in ledger order.
	FetchHistoricalEvents(ctx context.Context, query EventQuery) ([]RawEvent, error)
}

type CreateDealParams struct {
	OrderID          string                  `json:"orderId"`
	ProjectOwner     string                  `json:"projectOwner"`
	KOL              string                  `json:"kol"`
	Mint             string                  `json:"mint"`
	Amount           uint64                  `json:"amount"`
	VestingType      entity.VestingType      `json:"vestingType"`
	VestingCondition entity.VestingCondition `json:"vestingCondition"`
	Channel          entity.Channel          `json:"channel,omitempty"`
}

type CreateDealResult struct {
	DealAddress string `json:"dealAddress"`
	Submission
}

type DisputeParams struct {
	DealAddress string               `json:"dealAddress"`
	Disputer    string               `json:"disputer"`
	Reason      entity.DisputeReason `json:"reason"`
	Detail      string               `json:"detail,omitempty"`
}

// Submission identifies a transaction accepted by the ledger.
type Submission struct {
	Signature string `json:"signature"`
	Slot      uint64 `json:"slot"`
}

// AccountState is the ledger native state of a deal account.
type AccountState struct {
	DealAddress    string            `json:"dealAddress"`
	OrderID        entity.OrderID    `json:"orderId"`
	ProjectOwner   string            `json:"projectOwner"`
	KOL            string            `json:"kol"`
	Mint           string            `json:"mint"`
	Amount         uint64            `json:"amount"`
	ReleasedAmount uint64            `json:"releasedAmount"`
	Status         entity.DealStatus `json:"status"`
}

type EventQuery struct {
	FromSlot uint64 `json:"fromSlot"`
	ToSlot   uint64 `json:"toSlot"`
	Limit    int    `json:"limit"`
	Offset   int    `json:"offset"`
}

// RawEvent is an undecoded program event as returned by the ledger.
type RawEvent struct {
	Signature string `json:"signature"`
	Slot      uint64 `json:"slot"`
	BlockTime int64  `json:"blockTime"`
	ProgramID string `json:"programId"`
	Index     uint32 `json:"index"` // position of the event within the transaction logs
	Data      []byte `json:"data"`  // discriminator || borsh body, base64 on the wire
}
