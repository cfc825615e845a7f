// Package exitcode defines exit codes for the CLI.
package exitcode

const (
	// Success indicates successful completion.
	Success = 0

	// UserError indicates a user error (bad args, empty description,
	// task already completed, operation in progress).
	UserError = 1

	// AuthError indicates a wallet, credentials or config error.
	AuthError = 2

	// BackendError indicates a ledger error (rejected or unconfirmed
	// transaction, failed read, network).
	BackendError = 3
)
