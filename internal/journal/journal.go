// Package journal records the lifecycle of ledger mutations issued by this client.
package journal

import (
	"context"
	"time"
)

// Entry is the journaled state of one pending operation.
type Entry struct {
	ID          string
	Kind        string
	Target      *uint64
	Description string
	State       string
	TxHash      string
	Error       string
	StartedAt   time.Time
	UpdatedAt   time.Time
}

// Recorder stores entries. Recording an entry with a known ID replaces the
// previous state of that operation.
type Recorder interface {
	Record(ctx context.Context, e Entry) error
	List(ctx context.Context, limit int) ([]Entry, error)
}

// Noop is a Recorder that keeps nothing.
var Noop Recorder = noop{}

type noop struct{}

func (noop) Record(context.Context, Entry) error        { return nil }
func (noop) List(context.Context, int) ([]Entry, error) { return nil, nil }
