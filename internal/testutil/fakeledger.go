// Package testutil provides testing utilities.
package testutil

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"chaintodo/internal/ledger"
)

// DefaultAddress is the account FakeWallet connects as.
const DefaultAddress = "0x1111111111111111111111111111111111111111"

// ErrReverted is returned by a fake confirmation the ledger rejects.
var ErrReverted = errors.New("execution reverted")

// FakeLedger is an in-memory implementation of ledger.Handle for testing.
// Writes change the task set only when they are confirmed.
type FakeLedger struct {
	mu     sync.Mutex
	tasks  []ledger.Task
	nextID ledger.TaskID
	txSeq  int

	held      chan struct{}
	readsHeld chan struct{}

	// Error injection for testing
	GetTasksErr     error
	AddTaskErr      error
	CompleteTaskErr error
	WaitErr         error

	// Calls
	GetTasksCalls     int
	AddTaskCalls      int
	CompleteTaskCalls int

	// Awaiting receives the hash of every tx that starts waiting for
	// confirmation. ReadStarted receives a value on every GetTasks.
	Awaiting    chan string
	ReadStarted chan struct{}
}

// NewFakeLedger creates an empty FakeLedger. IDs start at 1.
func NewFakeLedger() *FakeLedger {
	return &FakeLedger{
		nextID:      1,
		Awaiting:    make(chan string, 64),
		ReadStarted: make(chan struct{}, 64),
	}
}

// Seed appends a task directly to the ledger state, as if written by
// another client.
func (f *FakeLedger) Seed(id ledger.TaskID, description string, completed bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks = append(f.tasks, ledger.Task{ID: id, Description: description, Completed: completed})
	if id >= f.nextID {
		f.nextID = id + 1
	}
}

// State returns a copy of the ledger state in ledger order.
func (f *FakeLedger) State() []ledger.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]ledger.Task, len(f.tasks))
	copy(cp, f.tasks)
	return cp
}

// SetErr sets an injected error under the ledger lock.
func (f *FakeLedger) SetErr(target *error, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	*target = err
}

// Calls returns the call counters.
func (f *FakeLedger) Calls() (get, add, complete int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.GetTasksCalls, f.AddTaskCalls, f.CompleteTaskCalls
}

// HoldConfirmations makes every Wait block until ReleaseConfirmations.
func (f *FakeLedger) HoldConfirmations() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.held = make(chan struct{})
}

// ReleaseConfirmations unblocks held Waits.
func (f *FakeLedger) ReleaseConfirmations() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.held != nil {
		close(f.held)
		f.held = nil
	}
}

// HoldReads makes every GetTasks block until ReleaseReads.
func (f *FakeLedger) HoldReads() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readsHeld = make(chan struct{})
}

// ReleaseReads unblocks held reads.
func (f *FakeLedger) ReleaseReads() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readsHeld != nil {
		close(f.readsHeld)
		f.readsHeld = nil
	}
}

// GetTasks implements ledger.Handle.
func (f *FakeLedger) GetTasks(ctx context.Context) ([]ledger.Task, error) {
	f.mu.Lock()
	f.GetTasksCalls++
	held := f.readsHeld
	f.mu.Unlock()

	select {
	case f.ReadStarted <- struct{}{}:
	default:
	}
	if held != nil {
		select {
		case <-held:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.GetTasksErr != nil {
		return nil, f.GetTasksErr
	}
	cp := make([]ledger.Task, len(f.tasks))
	copy(cp, f.tasks)
	return cp, nil
}

// AddTask implements ledger.Handle.
func (f *FakeLedger) AddTask(ctx context.Context, description string) (ledger.Tx, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.AddTaskCalls++
	if f.AddTaskErr != nil {
		return nil, f.AddTaskErr
	}
	return f.newTx(func() error {
		f.tasks = append(f.tasks, ledger.Task{ID: f.nextID, Description: description})
		f.nextID++
		return nil
	}), nil
}

// CompleteTask implements ledger.Handle.
func (f *FakeLedger) CompleteTask(ctx context.Context, id ledger.TaskID) (ledger.Tx, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CompleteTaskCalls++
	if f.CompleteTaskErr != nil {
		return nil, f.CompleteTaskErr
	}
	return f.newTx(func() error {
		for i, t := range f.tasks {
			if t.ID == id {
				if t.Completed {
					return ErrReverted
				}
				f.tasks[i].Completed = true
				return nil
			}
		}
		return ErrReverted
	}), nil
}

// newTx must be called with f.mu held.
func (f *FakeLedger) newTx(apply func() error) *fakeTx {
	f.txSeq++
	return &fakeTx{hash: fmt.Sprintf("0x%064x", f.txSeq), ledger: f, apply: apply}
}

type fakeTx struct {
	hash   string
	ledger *FakeLedger
	apply  func() error
}

func (t *fakeTx) Hash() string { return t.hash }

func (t *fakeTx) Wait(ctx context.Context) error {
	f := t.ledger
	f.mu.Lock()
	held := f.held
	f.mu.Unlock()

	select {
	case f.Awaiting <- t.hash:
	default:
	}
	if held != nil {
		select {
		case <-held:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.WaitErr != nil {
		return f.WaitErr
	}
	return t.apply()
}

// FakeWallet is a ledger.Wallet handing out connections to a FakeLedger.
// A nil Ledger behaves like a missing wallet.
type FakeWallet struct {
	mu      sync.Mutex
	Address string
	Ledger  *FakeLedger
	Err     error
	calls   int
}

// NewFakeWallet returns a wallet connected to l as DefaultAddress.
func NewFakeWallet(l *FakeLedger) *FakeWallet {
	return &FakeWallet{Address: DefaultAddress, Ledger: l}
}

// RequestAccess implements ledger.Wallet.
func (w *FakeWallet) RequestAccess(ctx context.Context) (ledger.Connection, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls++
	if w.Err != nil {
		return ledger.Connection{}, w.Err
	}
	if w.Ledger == nil {
		return ledger.Connection{}, ledger.ErrNoWallet
	}
	return ledger.Connection{Address: w.Address, Handle: w.Ledger}, nil
}

// Calls returns how many times access was requested.
func (w *FakeWallet) Calls() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.calls
}
