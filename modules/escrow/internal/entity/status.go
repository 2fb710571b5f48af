package entity

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/mutual-network/escrow-indexer/common/errs"
)

type DealStatus string

const (
	DealStatusCreated           DealStatus = "CREATED"
	DealStatusAccepted          DealStatus = "ACCEPTED"
	DealStatusRejected          DealStatus = "REJECTED"
	DealStatusPartiallyEligible DealStatus = "PARTIALLY_ELIGIBLE"
	DealStatusPartialCompleted  DealStatus = "PARTIAL_COMPLETED"
	DealStatusFullyEligible     DealStatus = "FULLY_ELIGIBLE"
	DealStatusCompleted         DealStatus = "COMPLETED"
	DealStatusDisputed          DealStatus = "DISPUTED"
	DealStatusResolved          DealStatus = "RESOLVED"
)

// statusRank is the position of each status along the canonical path. Every status has its own rank.
// REJECTED branches off CREATED, so it ranks right after it and before every accepted status.
var statusRank = map[DealStatus]int{
	DealStatusCreated:           0,
	DealStatusRejected:          1,
	DealStatusAccepted:          2,
	DealStatusPartiallyEligible: 3,
	DealStatusPartialCompleted:  4,
	DealStatusFullyEligible:     5,
	DealStatusCompleted:         6,
	DealStatusDisputed:          7,
	DealStatusResolved:          8,
}

func ParseDealStatus(s string) (DealStatus, error) {
	status := DealStatus(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := statusRank[status]; !ok {
		return "", errors.Wrapf(errs.InvalidArgument, "unknown deal status %q", s)
	}
	return status, nil
}

// Rank returns the position of the status along the canonical path, or -1 for unknown statuses.
func (s DealStatus) Rank() int {
	if rank, ok := statusRank[s]; ok {
		return rank
	}
	return -1
}

func (s DealStatus) IsTerminal() bool {
	switch s {
	case DealStatusRejected, DealStatusCompleted, DealStatusResolved:
		return true
	}
	return false
}

// IsVerified reports whether the proof of task of the deal was already verified on the ledger.
func (s DealStatus) IsVerified() bool {
	switch s {
	case DealStatusPartiallyEligible, DealStatusPartialCompleted, DealStatusFullyEligible, DealStatusCompleted:
		return true
	}
	return false
}

// IsVesting reports whether payments may still be released for the deal.
func (s DealStatus) IsVesting() bool {
	switch s {
	case DealStatusAccepted, DealStatusPartiallyEligible, DealStatusPartialCompleted, DealStatusFullyEligible:
		return true
	}
	return false
}

func (s DealStatus) String() string {
	return string(s)
}
