// Package sqlite stores the operation journal in a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"chaintodo/internal/journal"
	"chaintodo/internal/journal/sqlite/migrations"
	"chaintodo/internal/log"
)

// DefaultListLimit is used when List is called with a non positive limit.
const DefaultListLimit = 20

// RepositoryConfig is the configuration for the SQLite journal.
type RepositoryConfig struct {
	DBPath string
	Logger log.Logger
}

func (c *RepositoryConfig) defaults() error {
	if c.DBPath == "" {
		return fmt.Errorf("db path is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "journal.SQLite"})
	return nil
}

// Repository is a SQLite implementation of journal.Recorder.
type Repository struct {
	db     *sql.DB
	logger log.Logger
}

var _ journal.Recorder = (*Repository)(nil)

// NewRepository opens (creating if needed) the journal database and applies
// its migrations.
func NewRepository(ctx context.Context, cfg RepositoryConfig) (*Repository, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0700); err != nil {
		return nil, fmt.Errorf("could not create db directory: %w", err)
	}

	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", cfg.DBPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}

	migrator, err := migrations.NewMigrator(db, cfg.Logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("could not create migrator: %w", err)
	}
	if err := migrator.Up(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not run migrations: %w", err)
	}

	cfg.Logger.Debugf("Journal opened at %s", cfg.DBPath)

	return &Repository{db: db, logger: cfg.Logger}, nil
}

// Close closes the database connection.
func (r *Repository) Close() error { return r.db.Close() }

// Record inserts e or replaces the stored state of the operation with the same ID.
func (r *Repository) Record(ctx context.Context, e journal.Entry) error {
	if e.ID == "" {
		return fmt.Errorf("entry id is required")
	}

	var target *int64
	if e.Target != nil {
		t := int64(*e.Target)
		target = &t
	}

	query := `
		INSERT INTO operations (
			id, kind, target, description,
			state, tx_hash, error,
			started_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			state = excluded.state,
			tx_hash = excluded.tx_hash,
			error = excluded.error,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		e.ID,
		e.Kind,
		target,
		e.Description,
		e.State,
		e.TxHash,
		e.Error,
		e.StartedAt.UnixMilli(),
		e.UpdatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("could not record operation: %w", err)
	}

	r.logger.Debugf("Recorded operation %s as %s", e.ID, e.State)
	return nil
}

// List returns up to limit entries, most recently updated first.
func (r *Repository) List(ctx context.Context, limit int) ([]journal.Entry, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	query := `
		SELECT
			id, kind, target, description,
			state, tx_hash, error,
			started_at, updated_at
		FROM operations
		ORDER BY updated_at DESC, id DESC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("could not query operations: %w", err)
	}
	defer rows.Close()

	var entries []journal.Entry
	for rows.Next() {
		var (
			e                    journal.Entry
			target               sql.NullInt64
			startedAt, updatedAt int64
		)
		if err := rows.Scan(
			&e.ID,
			&e.Kind,
			&target,
			&e.Description,
			&e.State,
			&e.TxHash,
			&e.Error,
			&startedAt,
			&updatedAt,
		); err != nil {
			return nil, fmt.Errorf("could not scan operation: %w", err)
		}
		if target.Valid {
			t := uint64(target.Int64)
			e.Target = &t
		}
		e.StartedAt = time.UnixMilli(startedAt).UTC()
		e.UpdatedAt = time.UnixMilli(updatedAt).UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("could not iterate operations: %w", err)
	}

	return entries, nil
}
