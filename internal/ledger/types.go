// Package ledger defines the backend-agnostic contract for the remote task ledger.
package ledger

// TaskID is the ledger-assigned task identifier.
// IDs are unique and monotonic but not necessarily contiguous.
type TaskID uint64

// Task is a task as reported by the ledger.
type Task struct {
	ID          TaskID `json:"id"`
	Description string `json:"description"`
	Completed   bool   `json:"completed"`
}

// Connection is an authenticated capability to read and write the ledger.
type Connection struct {
	// Address is the identity the writes are signed with.
	Address string

	// Handle performs the ledger calls on behalf of Address.
	Handle Handle
}

// Valid reports whether the connection carries a usable handle.
func (c Connection) Valid() bool {
	return c.Handle != nil
}
