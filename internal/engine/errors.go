package engine

import "errors"

// Local validation failures. These are rejected before any ledger call.
var (
	// ErrEmptyInput is returned when a task description is blank.
	ErrEmptyInput = errors.New("empty input")
	// ErrOperationInProgress is returned when the track already has an operation in flight.
	ErrOperationInProgress = errors.New("operation in progress")
	// ErrNoOp is returned when completing a task that is already completed.
	ErrNoOp = errors.New("task already completed")
	// ErrNotConnected is returned when an action needs a connection and there is none.
	ErrNotConnected = errors.New("not connected")
)

// Remote failures.
var (
	// ErrNoWalletAvailable is returned when no connection could be acquired.
	ErrNoWalletAvailable = errors.New("no wallet available")
	// ErrTransactionFailed is returned when a ledger write was rejected or never confirmed.
	ErrTransactionFailed = errors.New("transaction failed")
	// ErrFetch is returned when the task set could not be read.
	ErrFetch = errors.New("fetch failed")
)

// IsLocal reports whether err is a local validation failure.
func IsLocal(err error) bool {
	return errors.Is(err, ErrEmptyInput) ||
		errors.Is(err, ErrOperationInProgress) ||
		errors.Is(err, ErrNoOp) ||
		errors.Is(err, ErrNotConnected)
}
