package errs

import (
	"context"

	"github.com/cockroachdb/errors"
)

// ledgerKinds are the error kinds reported by the escrow ledger for a rejected instruction.
// Retrying would repeat the same rejection.
var ledgerKinds = []error{
	InvalidParameters,
	InvalidVestingCondition,
	Unauthorized,
	InvalidState,
	InsufficientFunds,
	ExceedsVestedAmount,
}

// IsRetryable reports whether err is a transient failure (network, timeout, unavailable collaborator).
// Ambiguous submissions are never retryable without re-reading state first.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, AmbiguousSubmission) || errors.Is(err, context.Canceled) {
		return false
	}
	if IsLedgerRejection(err) {
		return false
	}
	return errors.IsAny(err, Unavailable, Timeout, context.DeadlineExceeded)
}

// IsLedgerRejection reports whether err is a precondition rejection of the escrow ledger.
func IsLedgerRejection(err error) bool {
	return errors.IsAny(err, ledgerKinds...)
}

// Kind returns the first known error kind found in the error chain.
func Kind(err error) (ErrorKind, bool) {
	var kind ErrorKind
	if errors.As(err, &kind) {
		return kind, true
	}
	return "", false
}
