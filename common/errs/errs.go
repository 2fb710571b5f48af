package errs

// ErrorKind identifies a kind of internal error.
// fully support for errors.Is and errors.As.
type ErrorKind string

const (
	// SomethingWentWrong is returned when the error is not expected and can't be handled.
	SomethingWentWrong = ErrorKind("Something went wrong")

	// NotFound is returned when a requested item is not found.
	NotFound = ErrorKind("Not Found")

	// InternalError is returned when internal logic got error.
	InternalError = ErrorKind("Internal Error")

	// InvalidArgument is returned when the argument is not in the expected form.
	InvalidArgument = ErrorKind("Invalid Argument")

	// ArgumentRequired is returned when a required argument is missing.
	ArgumentRequired = ErrorKind("Argument Required")

	// Unsupported is returned when the requested feature is not supported.
	Unsupported = ErrorKind("Unsupported")

	// ConflictSetting is returned when the configuration contradicts itself.
	ConflictSetting = ErrorKind("Conflict Setting")

	// Timeout is returned when the operation exceeds its deadline.
	Timeout = ErrorKind("Timeout")

	// Closed is returned when the resource is already closed.
	Closed = ErrorKind("Closed")

	// Unavailable is returned when an external collaborator can't be reached. Transient, safe to retry.
	Unavailable = ErrorKind("Unavailable")

	OverflowUint64  = ErrorKind("overflow uint64")
	OverflowUint128 = ErrorKind("overflow uint128")
)

// Escrow ledger error kinds.
const (
	// InvalidParameters is returned when the request is rejected before any external call (malformed order id, amount, public key).
	InvalidParameters = ErrorKind("Invalid Parameters")

	// InvalidVestingCondition is returned when a vesting condition is malformed or not in the allowed set.
	InvalidVestingCondition = ErrorKind("Invalid Vesting Condition")

	// Unauthorized is returned when the caller is not allowed to perform the ledger instruction.
	Unauthorized = ErrorKind("Unauthorized")

	// InvalidState is returned when the deal is not in a state that accepts the instruction.
	InvalidState = ErrorKind("Invalid State")

	// InsufficientFunds is returned when the payer balance is lower than the deal amount.
	InsufficientFunds = ErrorKind("Insufficient Funds")

	// ExceedsVestedAmount is returned when a release would exceed the deal amount or the vested amount.
	ExceedsVestedAmount = ErrorKind("Exceeds Vested Amount")

	// AmbiguousSubmission is returned when a mutating ledger call failed in transport and may or may not have been applied.
	// Callers must re-read ledger state before retrying.
	AmbiguousSubmission = ErrorKind("Ambiguous Submission")
)

// Error satisfies the error interface and prints human-readable errors.
func (e ErrorKind) Error() string {
	return string(e)
}
