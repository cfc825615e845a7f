package engine

import (
	"context"
	"sync"

	"chaintodo/internal/ledger"
	"chaintodo/internal/log"
)

// Reconciler refreshes the mirror from the ledger. Passes never overlap:
// requests made while a pass runs are coalesced into one trailing pass that
// starts after the running one ends.
type Reconciler struct {
	mirror   *Mirror
	logger   log.Logger
	onChange func()
	// accept, if set, reports whether conn is still the held connection.
	// Passes through a dropped connection are discarded.
	accept func(conn ledger.Connection) bool

	mu       sync.Mutex
	running  bool
	trailing *pass
	lastErr  error
}

type pass struct {
	conn ledger.Connection
	done chan struct{}
	err  error
}

// NewReconciler returns a reconciler writing into mirror. onChange, if set,
// is called when a pass starts and when it ends.
func NewReconciler(mirror *Mirror, onChange func(), logger log.Logger) *Reconciler {
	if logger == nil {
		logger = log.Noop
	}
	return &Reconciler{mirror: mirror, logger: logger, onChange: onChange}
}

// Reconcile fetches the task set through conn and replaces the mirror with
// it. On failure the mirror keeps its last good value and an error wrapping
// ErrFetch is returned. If a pass is already running the call waits for the
// trailing pass instead of starting a concurrent one.
func (r *Reconciler) Reconcile(ctx context.Context, conn ledger.Connection) error {
	r.mu.Lock()
	if r.running {
		if r.trailing == nil {
			r.trailing = &pass{done: make(chan struct{})}
		}
		p := r.trailing
		p.conn = conn
		r.mu.Unlock()

		r.logger.Debugf("Reconciliation running, coalescing request")
		select {
		case <-p.done:
			return p.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	r.running = true
	r.mu.Unlock()

	err := r.run(ctx, conn)
	r.finish(ctx)
	return err
}

// finish hands the reconciler over to a trailing pass, if one was requested,
// or marks it idle.
func (r *Reconciler) finish(ctx context.Context) {
	r.mu.Lock()
	if r.trailing == nil {
		r.running = false
		r.mu.Unlock()
		r.changed()
		return
	}
	r.mu.Unlock()

	// The trailing pass outlives the caller that ran the previous one.
	go r.drain(context.WithoutCancel(ctx))
}

func (r *Reconciler) drain(ctx context.Context) {
	for {
		r.mu.Lock()
		p := r.trailing
		if p == nil {
			r.running = false
			r.mu.Unlock()
			r.changed()
			return
		}
		r.trailing = nil
		r.mu.Unlock()

		p.err = r.run(ctx, p.conn)
		close(p.done)
	}
}

func (r *Reconciler) run(ctx context.Context, conn ledger.Connection) error {
	r.changed()

	tasks, err := r.mirror.Refresh(ctx, conn)

	// The check and the write happen under mu so Reset cannot slip between.
	r.mu.Lock()
	if r.accept != nil && !r.accept(conn) {
		r.mu.Unlock()
		r.logger.Debugf("Connection dropped during refresh, discarding result")
		return ErrNotConnected
	}
	r.lastErr = err
	if err == nil {
		r.mirror.Replace(tasks)
	}
	r.mu.Unlock()

	if err != nil {
		r.logger.Warningf("Could not refresh tasks, keeping last known state: %s", err)
		return err
	}
	r.logger.Debugf("Mirror replaced with %d tasks", len(tasks))
	return nil
}

// Running reports whether a pass is in progress.
func (r *Reconciler) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Reset empties the mirror and forgets the last pass result.
func (r *Reconciler) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastErr = nil
	r.mirror.Replace(nil)
}

// LastError returns the error of the most recent pass, nil if it succeeded.
func (r *Reconciler) LastError() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastErr
}

func (r *Reconciler) changed() {
	if r.onChange != nil {
		r.onChange()
	}
}
