package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration.

	"kpwatch/internal/model"
	"kpwatch/migrations"
)

const timeLayout = "2006-01-02T15:04:05Z"

// SQLite implements Store backed by a SQLite database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if err := migrations.Run(db, migrations.DialectSQLite); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Load reads the committed state in a single transaction.
func (s *SQLite) Load(ctx context.Context) (model.State, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.State{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	st := model.State{Snapshots: map[string][]string{}}
	if err := tx.QueryRowContext(ctx, `SELECT version FROM registry_state WHERE id = 1`).Scan(&st.Version); err != nil {
		return model.State{}, fmt.Errorf("read version: %w", err)
	}

	seen, err := tx.QueryContext(ctx, `SELECT identity FROM seen_listings ORDER BY position`)
	if err != nil {
		return model.State{}, fmt.Errorf("query seen listings: %w", err)
	}
	for seen.Next() {
		var id string
		if err := seen.Scan(&id); err != nil {
			_ = seen.Close()
			return model.State{}, fmt.Errorf("scan seen listing: %w", err)
		}
		st.Seen = append(st.Seen, id)
	}
	if err := seen.Err(); err != nil {
		_ = seen.Close()
		return model.State{}, fmt.Errorf("iterate seen listings: %w", err)
	}
	_ = seen.Close()

	snaps, err := tx.QueryContext(ctx, `SELECT search_id, link FROM search_snapshots ORDER BY search_id, position`)
	if err != nil {
		return model.State{}, fmt.Errorf("query snapshots: %w", err)
	}
	defer func() { _ = snaps.Close() }()
	for snaps.Next() {
		var id, link string
		if err := snaps.Scan(&id, &link); err != nil {
			return model.State{}, fmt.Errorf("scan snapshot: %w", err)
		}
		st.Snapshots[id] = append(st.Snapshots[id], link)
	}
	if err := snaps.Err(); err != nil {
		return model.State{}, fmt.Errorf("iterate snapshots: %w", err)
	}
	return st, nil
}

// Save replaces the stored state if its version still equals st.Version.
func (s *SQLite) Save(ctx context.Context, st model.State) (model.State, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.State{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC().Format(timeLayout)
	res, err := tx.ExecContext(ctx,
		`UPDATE registry_state SET version = version + 1, updated_at = ? WHERE id = 1 AND version = ?`,
		now, st.Version,
	)
	if err != nil {
		return model.State{}, fmt.Errorf("bump version: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return model.State{}, fmt.Errorf("rows affected: %w", err)
	}
	if n != 1 {
		return model.State{}, fmt.Errorf("save at version %d: %w", st.Version, ErrConflict)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM seen_listings`); err != nil {
		return model.State{}, fmt.Errorf("clear seen listings: %w", err)
	}
	for i, id := range st.Seen {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO seen_listings (position, identity) VALUES (?, ?)`, i, id,
		); err != nil {
			return model.State{}, fmt.Errorf("insert seen listing: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM search_snapshots`); err != nil {
		return model.State{}, fmt.Errorf("clear snapshots: %w", err)
	}
	for _, r := range snapshotRows(st.Snapshots) {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO search_snapshots (search_id, position, link) VALUES (?, ?, ?)`,
			r.searchID, r.position, r.link,
		); err != nil {
			return model.State{}, fmt.Errorf("insert snapshot: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return model.State{}, fmt.Errorf("commit: %w", err)
	}

	committed := st.Clone()
	committed.Version = st.Version + 1
	return committed, nil
}
