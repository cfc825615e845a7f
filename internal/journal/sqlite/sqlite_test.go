package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chaintodo/internal/journal"
	"chaintodo/internal/journal/sqlite"
	"chaintodo/internal/log"
)

func newRepo(t *testing.T) *sqlite.Repository {
	t.Helper()
	repo, err := sqlite.NewRepository(context.Background(), sqlite.RepositoryConfig{
		DBPath: filepath.Join(t.TempDir(), "nested", "journal.db"),
		Logger: log.Noop,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func entryFixture(id string, at time.Time) journal.Entry {
	return journal.Entry{
		ID:          id,
		Kind:        "create",
		Description: "buy milk",
		State:       "submitting",
		StartedAt:   at,
		UpdatedAt:   at,
	}
}

func TestNewRepositoryRequiresPath(t *testing.T) {
	_, err := sqlite.NewRepository(context.Background(), sqlite.RepositoryConfig{})
	assert.Error(t, err)
}

func TestRecordUpsertsByID(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	e := entryFixture("01HZX0000000000000000000A1", start)
	require.NoError(t, repo.Record(ctx, e))

	e.State = "awaiting_confirmation"
	e.TxHash = "0xabc"
	e.UpdatedAt = start.Add(time.Second)
	require.NoError(t, repo.Record(ctx, e))

	e.State = "confirmed"
	e.UpdatedAt = start.Add(3 * time.Second)
	require.NoError(t, repo.Record(ctx, e))

	got, err := repo.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "confirmed", got[0].State)
	assert.Equal(t, "0xabc", got[0].TxHash)
	assert.Equal(t, "buy milk", got[0].Description)
	assert.Nil(t, got[0].Target)
	assert.Equal(t, start, got[0].StartedAt)
	assert.Equal(t, start.Add(3*time.Second), got[0].UpdatedAt)
}

func TestRecordRequiresID(t *testing.T) {
	repo := newRepo(t)
	err := repo.Record(context.Background(), journal.Entry{State: "submitting"})
	assert.Error(t, err)
}

func TestList(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	target := uint64(7)

	tests := map[string]struct {
		limit  int
		expIDs []string
	}{
		"Most recently updated first": {
			limit:  10,
			expIDs: []string{"op-3", "op-1", "op-2"},
		},
		"Limit is honored": {
			limit:  2,
			expIDs: []string{"op-3", "op-1"},
		},
		"Non positive limit uses the default": {
			limit:  0,
			expIDs: []string{"op-3", "op-1", "op-2"},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			repo := newRepo(t)

			op1 := entryFixture("op-1", base)
			op1.UpdatedAt = base.Add(5 * time.Second)
			op2 := entryFixture("op-2", base.Add(time.Second))
			op3 := entryFixture("op-3", base.Add(2*time.Second))
			op3.Kind = "complete"
			op3.Target = &target
			op3.State = "failed"
			op3.Error = "transaction failed: execution reverted"
			op3.UpdatedAt = base.Add(10 * time.Second)
			for _, e := range []journal.Entry{op1, op2, op3} {
				require.NoError(t, repo.Record(ctx, e))
			}

			got, err := repo.List(ctx, tt.limit)
			require.NoError(t, err)

			ids := []string{}
			for _, e := range got {
				ids = append(ids, e.ID)
			}
			assert.Equal(t, tt.expIDs, ids)

			require.NotNil(t, got[0].Target)
			assert.Equal(t, uint64(7), *got[0].Target)
			assert.Equal(t, "transaction failed: execution reverted", got[0].Error)
		})
	}
}

func TestListEmpty(t *testing.T) {
	repo := newRepo(t)
	got, err := repo.List(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestReopenKeepsEntries(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "journal.db")

	repo, err := sqlite.NewRepository(ctx, sqlite.RepositoryConfig{DBPath: path})
	require.NoError(t, err)
	require.NoError(t, repo.Record(ctx, entryFixture("op-1", time.Now())))
	require.NoError(t, repo.Close())

	repo, err = sqlite.NewRepository(ctx, sqlite.RepositoryConfig{DBPath: path})
	require.NoError(t, err)
	defer repo.Close()

	got, err := repo.List(ctx, 5)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
