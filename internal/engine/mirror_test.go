package engine_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chaintodo/internal/engine"
	"chaintodo/internal/ledger"
	"chaintodo/internal/testutil"
)

func ids(tasks []ledger.Task) []ledger.TaskID {
	out := make([]ledger.TaskID, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.ID)
	}
	return out
}

func TestOrder(t *testing.T) {
	tests := map[string]struct {
		tasks  []ledger.Task
		expIDs []ledger.TaskID
	}{
		"Empty set stays empty": {
			tasks:  nil,
			expIDs: []ledger.TaskID{},
		},
		"Incomplete tasks come before completed ones": {
			tasks: []ledger.Task{
				{ID: 1, Description: "a"},
				{ID: 2, Description: "b", Completed: true},
				{ID: 3, Description: "c"},
			},
			expIDs: []ledger.TaskID{1, 3, 2},
		},
		"Fetch order is kept inside each group, ids are not sorted": {
			tasks: []ledger.Task{
				{ID: 9, Completed: true},
				{ID: 5},
				{ID: 7, Completed: true},
				{ID: 2},
				{ID: 4, Completed: true},
				{ID: 8},
			},
			expIDs: []ledger.TaskID{5, 2, 8, 9, 7, 4},
		},
		"All completed keeps fetch order": {
			tasks: []ledger.Task{
				{ID: 3, Completed: true},
				{ID: 1, Completed: true},
			},
			expIDs: []ledger.TaskID{3, 1},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			got := engine.Order(tt.tasks)
			assert.Equal(t, tt.expIDs, ids(got))
		})
	}
}

func TestOrderDoesNotModifyInput(t *testing.T) {
	in := []ledger.Task{{ID: 1, Completed: true}, {ID: 2}}
	_ = engine.Order(in)
	assert.Equal(t, []ledger.TaskID{1, 2}, ids(in))
}

func TestMirrorRefreshIsIdempotent(t *testing.T) {
	l := testutil.NewFakeLedger()
	l.Seed(1, "a", false)
	l.Seed(2, "b", true)
	l.Seed(3, "c", false)
	conn := ledger.Connection{Address: testutil.DefaultAddress, Handle: l}

	m := &engine.Mirror{}
	first, err := m.Refresh(context.Background(), conn)
	require.NoError(t, err)
	second, err := m.Refresh(context.Background(), conn)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Empty(t, m.Tasks(), "refresh must not write the mirror")
}

func TestMirrorRefreshError(t *testing.T) {
	l := testutil.NewFakeLedger()
	l.GetTasksErr = errors.New("connection reset")
	conn := ledger.Connection{Handle: l}

	m := &engine.Mirror{}
	_, err := m.Refresh(context.Background(), conn)
	require.Error(t, err)
	assert.ErrorIs(t, err, engine.ErrFetch)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestMirrorReplaceAndLookup(t *testing.T) {
	m := &engine.Mirror{}
	src := []ledger.Task{{ID: 4, Description: "x"}}
	m.Replace(src)
	src[0].Description = "changed"

	task, ok := m.Lookup(4)
	require.True(t, ok)
	assert.Equal(t, "x", task.Description)

	_, ok = m.Lookup(5)
	assert.False(t, ok)

	m.Replace(nil)
	assert.Empty(t, m.Tasks())
}
