package commands

import (
	"context"
	"errors"
	"fmt"
	"io"

	"chaintodo/internal/engine"
	"chaintodo/internal/exitcode"
)

// report prints err and returns the exit code for its kind.
func report(errOut io.Writer, err error) int {
	switch {
	case errors.Is(err, engine.ErrNoWalletAvailable):
		fmt.Fprintf(errOut, "error: wallet error: %v\n", err)
		return exitcode.AuthError
	case engine.IsLocal(err):
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.UserError
	default:
		fmt.Fprintf(errOut, "error: ledger error: %v\n", err)
		return exitcode.BackendError
	}
}

// connect acquires the ledger connection. The returned code is only
// meaningful when ok is false.
func connect(ctx context.Context, deps *Deps, errOut io.Writer) (code int, ok bool) {
	if deps == nil || deps.Engine == nil {
		fmt.Fprintln(errOut, "error: ledger is not configured")
		return exitcode.AuthError, false
	}
	if _, err := deps.Engine.Connect(ctx); err != nil {
		return report(errOut, err), false
	}
	return exitcode.Success, true
}
