// Package engine keeps a client-side mirror of the ledger task list consistent
// while mutations are in flight.
//
// The Engine owns one Gate (the connection), one Mirror (the ordered task
// set), one Tracker (the create and complete tracks) and one Reconciler. The
// mirror is only written by the reconciler and always holds what the ledger
// last reported; nothing is patched optimistically. Every confirmed mutation
// is followed by a reconciliation that starts after confirmation, so it
// observes that mutation.
package engine

import (
	"context"
	"fmt"
	"math"
	"sync"

	"chaintodo/internal/journal"
	"chaintodo/internal/ledger"
	"chaintodo/internal/log"
)

// Config is the engine configuration.
type Config struct {
	Wallet  ledger.Wallet
	Journal journal.Recorder
	Logger  log.Logger
}

func (c *Config) defaults() error {
	if c.Wallet == nil {
		return fmt.Errorf("wallet is required")
	}
	if c.Journal == nil {
		c.Journal = journal.Noop
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "engine.Engine"})
	return nil
}

// Stats are the counters shown above the task list.
type Stats struct {
	Total       int `json:"total"`
	Completed   int `json:"completed"`
	PercentDone int `json:"percent_done"`
}

// Snapshot is the observable engine state.
type Snapshot struct {
	Account    string         `json:"account"`
	Connected  bool           `json:"connected"`
	Tasks      []ledger.Task  `json:"tasks"`
	Stats      Stats          `json:"stats"`
	Loading    bool           `json:"loading"`
	Creating   bool           `json:"creating"`
	Completing *ledger.TaskID `json:"completing"`
	Draft      string         `json:"draft"`
	// Stale is set while the mirror lags the ledger because the last
	// reconciliation failed.
	Stale      bool           `json:"stale"`
}

// Engine is the task reconciliation and pending-operation engine.
type Engine struct {
	gate       *Gate
	mirror     *Mirror
	tracker    *Tracker
	reconciler *Reconciler
	journal    journal.Recorder
	logger     log.Logger

	obsMu     sync.Mutex
	observers map[int]func(Snapshot)
	nextObs   int

	// pubMu orders deliveries: each snapshot is built and delivered under it,
	// so the last one an observer receives is never older than the state.
	pubMu sync.Mutex
}

// New returns a disconnected engine.
func New(cfg Config) (*Engine, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	e := &Engine{
		gate:      NewGate(cfg.Wallet, cfg.Logger),
		mirror:    &Mirror{},
		journal:   cfg.Journal,
		logger:    cfg.Logger,
		observers: map[int]func(Snapshot){},
	}
	e.reconciler = NewReconciler(e.mirror, e.publish, cfg.Logger)
	e.reconciler.accept = e.holds
	e.tracker = NewTracker(e.mirror, e.reconciler.Reconcile, TrackerHooks{
		OnTransition: e.onTransition,
		OnIdle:       func(OpKind) { e.publish() },
	}, cfg.Logger)

	return e, nil
}

// Connect acquires the ledger connection. The first successful connect is
// followed by a reconciliation; later calls return the held connection.
// A failed reconciliation does not fail the connect.
func (e *Engine) Connect(ctx context.Context) (ledger.Connection, error) {
	conn, fresh, err := e.gate.Connect(ctx)
	if err != nil {
		e.logger.Warningf("Could not connect: %s", err)
		return ledger.Connection{}, err
	}
	if fresh {
		e.publish()
		_ = e.reconciler.Reconcile(ctx, conn)
	}
	return conn, nil
}

// Disconnect drops the connection and the mirror. Reconciliations still
// running through the old connection are discarded. Operations already
// submitted stay in flight until the ledger resolves them.
func (e *Engine) Disconnect() {
	e.gate.Disconnect()
	e.reconciler.Reset()
	e.logger.Infof("Disconnected")
	e.publish()
}

func (e *Engine) holds(conn ledger.Connection) bool {
	cur, ok := e.gate.Current()
	return ok && cur.Address == conn.Address
}

// Refresh runs a user requested reconciliation.
func (e *Engine) Refresh(ctx context.Context) error {
	conn, ok := e.gate.Current()
	if !ok {
		return ErrNotConnected
	}
	return e.reconciler.Reconcile(ctx, conn)
}

// AddTask creates a task and returns once it is confirmed and reconciled.
func (e *Engine) AddTask(ctx context.Context, description string) error {
	conn, ok := e.gate.Current()
	if !ok {
		return ErrNotConnected
	}
	err := e.tracker.SubmitCreate(ctx, conn, description)
	e.logRejection(err)
	return err
}

// CompleteTask completes task id and returns once it is confirmed and reconciled.
func (e *Engine) CompleteTask(ctx context.Context, id ledger.TaskID) error {
	conn, ok := e.gate.Current()
	if !ok {
		return ErrNotConnected
	}
	err := e.tracker.SubmitComplete(ctx, conn, id)
	e.logRejection(err)
	return err
}

// SetDraft stores the create input buffer. It is cleared when a create confirms.
func (e *Engine) SetDraft(s string) {
	e.tracker.SetDraft(s)
	e.publish()
}

// Snapshot returns the current observable state.
func (e *Engine) Snapshot() Snapshot {
	conn, connected := e.gate.Current()
	tasks := e.mirror.Tasks()
	return Snapshot{
		Account:    conn.Address,
		Connected:  connected,
		Tasks:      tasks,
		Stats:      statsOf(tasks),
		Loading:    e.reconciler.Running(),
		Creating:   e.tracker.Creating(),
		Completing: e.tracker.Completing(),
		Draft:      e.tracker.Draft(),
		Stale:      e.reconciler.LastError() != nil,
	}
}

// LastFetchError returns the error of the most recent reconciliation, nil
// if it succeeded.
func (e *Engine) LastFetchError() error {
	return e.reconciler.LastError()
}

// Pending returns the operations currently in flight.
func (e *Engine) Pending() []PendingOperation {
	return e.tracker.Pending()
}

// Subscribe registers fn to receive a snapshot on every state change.
// fn runs on the goroutine that caused the change and must not block or call
// back into the engine. Deliveries are serialized.
func (e *Engine) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	e.obsMu.Lock()
	id := e.nextObs
	e.nextObs++
	e.observers[id] = fn
	e.obsMu.Unlock()

	return func() {
		e.obsMu.Lock()
		delete(e.observers, id)
		e.obsMu.Unlock()
	}
}

func (e *Engine) publish() {
	e.pubMu.Lock()
	defer e.pubMu.Unlock()

	e.obsMu.Lock()
	fns := make([]func(Snapshot), 0, len(e.observers))
	for _, fn := range e.observers {
		fns = append(fns, fn)
	}
	e.obsMu.Unlock()
	if len(fns) == 0 {
		return
	}

	snap := e.Snapshot()
	for _, fn := range fns {
		fn(snap)
	}
}

func (e *Engine) onTransition(op PendingOperation) {
	if err := e.journal.Record(context.Background(), entryOf(op)); err != nil {
		e.logger.Warningf("Could not journal operation %s: %s", op.ID, err)
	}
	e.publish()
}

func (e *Engine) logRejection(err error) {
	if err != nil && IsLocal(err) {
		e.logger.Debugf("Rejected: %s", err)
	}
}

func statsOf(tasks []ledger.Task) Stats {
	s := Stats{Total: len(tasks)}
	for _, t := range tasks {
		if t.Completed {
			s.Completed++
		}
	}
	if s.Total > 0 {
		s.PercentDone = int(math.Round(float64(s.Completed) / float64(s.Total) * 100))
	}
	return s
}

func entryOf(op PendingOperation) journal.Entry {
	e := journal.Entry{
		ID:          op.ID,
		Kind:        string(op.Kind),
		Description: op.Description,
		State:       string(op.State),
		TxHash:      op.TxHash,
		StartedAt:   op.StartedAt,
		UpdatedAt:   op.UpdatedAt,
	}
	if op.Target != nil {
		id := uint64(*op.Target)
		e.Target = &id
	}
	if op.Err != nil {
		e.Error = op.Err.Error()
	}
	return e
}
