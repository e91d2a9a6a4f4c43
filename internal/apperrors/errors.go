package apperrors

import "errors"

// Error categories shared by the approval workflow and the payout
// orchestrator. Callers wrap these with fmt.Errorf("...: %w", Err...) and
// handlers map them to HTTP statuses with errors.Is.
var (
	// ErrInvalidArgument marks malformed or missing caller input.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotFound marks an unknown request or entity id.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized marks an organization acting outside its required set.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidState marks an operation not valid in the current lifecycle
	// state, e.g. approving a request that is no longer pending.
	ErrInvalidState = errors.New("invalid state")

	// ErrLedgerFailure marks a failed ledger read or write. May be transient;
	// the caller decides whether a retry makes sense.
	ErrLedgerFailure = errors.New("ledger failure")
)
