package engine

import (
	"context"
	"fmt"
	"sync"

	"chaintodo/internal/ledger"
)

// Order returns tasks with every incomplete task before every completed one.
// Within each group the fetch order is kept; ids are not compared.
func Order(tasks []ledger.Task) []ledger.Task {
	ordered := make([]ledger.Task, 0, len(tasks))
	for _, t := range tasks {
		if !t.Completed {
			ordered = append(ordered, t)
		}
	}
	for _, t := range tasks {
		if t.Completed {
			ordered = append(ordered, t)
		}
	}
	return ordered
}

// Mirror is the client's copy of the ledger task set.
// It is only ever replaced wholesale.
type Mirror struct {
	mu    sync.RWMutex
	tasks []ledger.Task
}

// Refresh reads the task set through conn and returns it ordered.
// It does not modify the mirror.
func (m *Mirror) Refresh(ctx context.Context, conn ledger.Connection) ([]ledger.Task, error) {
	tasks, err := conn.Handle.GetTasks(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	return Order(tasks), nil
}

// Replace installs tasks as the new mirror.
func (m *Mirror) Replace(tasks []ledger.Task) {
	cp := make([]ledger.Task, len(tasks))
	copy(cp, tasks)

	m.mu.Lock()
	m.tasks = cp
	m.mu.Unlock()
}

// Tasks returns a copy of the mirrored tasks in display order.
func (m *Mirror) Tasks() []ledger.Task {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cp := make([]ledger.Task, len(m.tasks))
	copy(cp, m.tasks)
	return cp
}

// Lookup finds a mirrored task by id.
func (m *Mirror) Lookup(id ledger.TaskID) (ledger.Task, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, t := range m.tasks {
		if t.ID == id {
			return t, true
		}
	}
	return ledger.Task{}, false
}
