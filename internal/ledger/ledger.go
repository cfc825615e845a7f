package ledger

import (
	"context"
	"errors"
)

// ErrNoWallet is returned by a Wallet that has no signing identity to offer.
var ErrNoWallet = errors.New("no signing key configured")

// Handle defines the ledger operations.
// All contract calls go through this interface.
// The engine never imports a chain SDK directly.
type Handle interface {
	// GetTasks returns the tasks in ledger order. Read only.
	GetTasks(ctx context.Context) ([]Task, error)

	// AddTask submits a create write. It returns once the write is
	// accepted for broadcast; confirmation is awaited through the Tx.
	AddTask(ctx context.Context, description string) (Tx, error)

	// CompleteTask submits a completion write for id.
	// Same confirmation contract as AddTask.
	CompleteTask(ctx context.Context, id TaskID) (Tx, error)
}

// Tx is a submitted, not yet confirmed, ledger write.
type Tx interface {
	// Hash identifies the write on the ledger.
	Hash() string

	// Wait blocks until the write is confirmed or has failed.
	Wait(ctx context.Context) error
}

// Wallet acquires a Connection. It may prompt for authorization.
type Wallet interface {
	RequestAccess(ctx context.Context) (Connection, error)
}
