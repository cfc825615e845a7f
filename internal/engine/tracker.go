package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"chaintodo/internal/ledger"
	"chaintodo/internal/log"
)

// OpKind is the class of mutation an operation performs.
type OpKind string

const (
	OpCreate   OpKind = "create"
	OpComplete OpKind = "complete"
)

// OpState is the lifecycle state of a pending operation.
type OpState string

const (
	StateSubmitting           OpState = "submitting"
	StateAwaitingConfirmation OpState = "awaiting_confirmation"
	StateConfirmed            OpState = "confirmed"
	StateFailed               OpState = "failed"
)

// PendingOperation is an in-flight ledger mutation.
type PendingOperation struct {
	ID          string
	Kind        OpKind
	Target      *ledger.TaskID
	Description string
	State       OpState
	TxHash      string
	Err         error
	StartedAt   time.Time
	UpdatedAt   time.Time
}

func (op PendingOperation) clone() PendingOperation {
	if op.Target != nil {
		id := *op.Target
		op.Target = &id
	}
	return op
}

// TrackerHooks are notified of tracker changes. Both are optional and are
// called without the tracker lock held.
type TrackerHooks struct {
	// OnTransition receives a copy of an operation after each state change.
	OnTransition func(op PendingOperation)
	// OnIdle is called when a track returns to idle.
	OnIdle func(kind OpKind)
}

// ReconcileFunc refreshes the mirror through conn.
type ReconcileFunc func(ctx context.Context, conn ledger.Connection) error

// Tracker gates ledger mutations: at most one create and at most one
// complete are in flight at any time. A busy track rejects, it never queues.
type Tracker struct {
	mirror    *Mirror
	reconcile ReconcileFunc
	hooks     TrackerHooks
	logger    log.Logger
	now       func() time.Time

	mu       sync.Mutex
	create   *PendingOperation
	complete *PendingOperation
	draft    string
}

// NewTracker returns an idle tracker. reconcile is run after every confirmed
// mutation and before the track goes back to idle.
func NewTracker(mirror *Mirror, reconcile ReconcileFunc, hooks TrackerHooks, logger log.Logger) *Tracker {
	if logger == nil {
		logger = log.Noop
	}
	return &Tracker{
		mirror:    mirror,
		reconcile: reconcile,
		hooks:     hooks,
		logger:    logger,
		now:       time.Now,
	}
}

// SubmitCreate adds a task with description and waits for it to be confirmed
// and reconciled.
func (t *Tracker) SubmitCreate(ctx context.Context, conn ledger.Connection, description string) error {
	if strings.TrimSpace(description) == "" {
		return ErrEmptyInput
	}

	t.mu.Lock()
	if t.create != nil {
		t.mu.Unlock()
		return ErrOperationInProgress
	}
	op := t.newOperation(OpCreate, nil)
	op.Description = description
	t.create = op
	t.mu.Unlock()

	return t.drive(ctx, conn, op, func(ctx context.Context) (ledger.Tx, error) {
		return conn.Handle.AddTask(ctx, description)
	})
}

// SubmitComplete completes task id and waits for it to be confirmed and
// reconciled. Only one completion may be in flight, whatever its target.
func (t *Tracker) SubmitComplete(ctx context.Context, conn ledger.Connection, id ledger.TaskID) error {
	if task, ok := t.mirror.Lookup(id); ok && task.Completed {
		return ErrNoOp
	}

	t.mu.Lock()
	if t.complete != nil {
		t.mu.Unlock()
		return ErrOperationInProgress
	}
	op := t.newOperation(OpComplete, &id)
	t.complete = op
	t.mu.Unlock()

	return t.drive(ctx, conn, op, func(ctx context.Context) (ledger.Tx, error) {
		return conn.Handle.CompleteTask(ctx, id)
	})
}

func (t *Tracker) newOperation(kind OpKind, target *ledger.TaskID) *PendingOperation {
	now := t.now()
	return &PendingOperation{
		ID:        ulid.Make().String(),
		Kind:      kind,
		Target:    target,
		State:     StateSubmitting,
		StartedAt: now,
		UpdatedAt: now,
	}
}

// drive runs the operation on its own goroutine so the track stays busy until
// the ledger resolves it. A cancelled ctx only stops the caller from waiting.
func (t *Tracker) drive(ctx context.Context, conn ledger.Connection, op *PendingOperation, submit func(context.Context) (ledger.Tx, error)) error {
	result := make(chan error, 1)
	go func() {
		result <- t.settle(context.WithoutCancel(ctx), conn, op, submit)
	}()

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		t.logger.WithValues(log.Kv{"op": op.ID, "kind": op.Kind}).Debugf("Caller stopped waiting, operation stays in flight")
		return ctx.Err()
	}
}

func (t *Tracker) settle(ctx context.Context, conn ledger.Connection, op *PendingOperation, submit func(context.Context) (ledger.Tx, error)) error {
	logger := t.logger.WithValues(log.Kv{"op": op.ID, "kind": op.Kind})
	t.transition(op, func(*PendingOperation) {})

	tx, err := submit(ctx)
	if err != nil {
		return t.fail(logger, op, err)
	}
	t.transition(op, func(op *PendingOperation) {
		op.State = StateAwaitingConfirmation
		op.TxHash = tx.Hash()
	})
	logger.Debugf("Submitted %s, awaiting confirmation", tx.Hash())

	if err := tx.Wait(ctx); err != nil {
		return t.fail(logger, op, err)
	}
	t.transition(op, func(op *PendingOperation) {
		op.State = StateConfirmed
		if op.Kind == OpCreate {
			t.draft = ""
		}
	})
	logger.Infof("Confirmed %s", op.TxHash)

	if t.reconcile != nil {
		if err := t.reconcile(ctx, conn); err != nil {
			logger.Warningf("Reconciliation after %s failed: %s", op.TxHash, err)
		}
	}

	t.release(op)
	return nil
}

func (t *Tracker) fail(logger log.Logger, op *PendingOperation, cause error) error {
	err := fmt.Errorf("%w: %w", ErrTransactionFailed, cause)
	t.transition(op, func(op *PendingOperation) {
		op.State = StateFailed
		op.Err = err
	})
	logger.Errorf("Operation failed: %s", cause)
	t.release(op)
	return err
}

// transition applies change under the lock and reports the result.
func (t *Tracker) transition(op *PendingOperation, change func(op *PendingOperation)) {
	t.mu.Lock()
	change(op)
	op.UpdatedAt = t.now()
	snapshot := op.clone()
	t.mu.Unlock()

	if t.hooks.OnTransition != nil {
		t.hooks.OnTransition(snapshot)
	}
}

func (t *Tracker) release(op *PendingOperation) {
	t.mu.Lock()
	switch op.Kind {
	case OpCreate:
		t.create = nil
	case OpComplete:
		t.complete = nil
	}
	t.mu.Unlock()

	if t.hooks.OnIdle != nil {
		t.hooks.OnIdle(op.Kind)
	}
}

// Creating reports whether a create is in flight.
func (t *Tracker) Creating() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.create != nil
}

// Completing returns the target of the in-flight completion, or nil.
func (t *Tracker) Completing() *ledger.TaskID {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.complete == nil || t.complete.Target == nil {
		return nil
	}
	id := *t.complete.Target
	return &id
}

// Pending returns copies of the in-flight operations.
func (t *Tracker) Pending() []PendingOperation {
	t.mu.Lock()
	defer t.mu.Unlock()

	var ops []PendingOperation
	if t.create != nil {
		ops = append(ops, t.create.clone())
	}
	if t.complete != nil {
		ops = append(ops, t.complete.clone())
	}
	return ops
}

// Draft returns the create input buffer.
func (t *Tracker) Draft() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.draft
}

// SetDraft replaces the create input buffer.
func (t *Tracker) SetDraft(s string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.draft = s
}
