package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"kpwatch/internal/model"
	"kpwatch/migrations"
)

// Postgres implements Store on a shared PostgreSQL database, so that runs
// from several hosts can coordinate through the version column.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects to dsn and runs pending migrations.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	cfg.MaxConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	db := stdlib.OpenDBFromPool(pool)
	err = migrations.Run(db, migrations.DialectPostgres)
	_ = db.Close()
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Postgres{pool: pool}, nil
}

// Close releases the connection pool.
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

// Load reads the committed state in a repeatable-read transaction.
func (p *Postgres) Load(ctx context.Context) (model.State, error) {
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return model.State{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	st := model.State{Snapshots: map[string][]string{}}
	if err := tx.QueryRow(ctx, `SELECT version FROM registry_state WHERE id = 1`).Scan(&st.Version); err != nil {
		return model.State{}, fmt.Errorf("read version: %w", err)
	}

	rows, err := tx.Query(ctx, `SELECT identity FROM seen_listings ORDER BY position`)
	if err != nil {
		return model.State{}, fmt.Errorf("query seen listings: %w", err)
	}
	seen, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return model.State{}, fmt.Errorf("collect seen listings: %w", err)
	}
	st.Seen = seen

	rows, err = tx.Query(ctx, `SELECT search_id, link FROM search_snapshots ORDER BY search_id, position`)
	if err != nil {
		return model.State{}, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id, link string
		if err := rows.Scan(&id, &link); err != nil {
			return model.State{}, fmt.Errorf("scan snapshot: %w", err)
		}
		st.Snapshots[id] = append(st.Snapshots[id], link)
	}
	if err := rows.Err(); err != nil {
		return model.State{}, fmt.Errorf("iterate snapshots: %w", err)
	}
	return st, nil
}

// Save replaces the stored state if its version still equals st.Version.
func (p *Postgres) Save(ctx context.Context, st model.State) (model.State, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return model.State{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx,
		`UPDATE registry_state SET version = version + 1, updated_at = now() WHERE id = 1 AND version = $1`,
		st.Version,
	)
	if err != nil {
		return model.State{}, fmt.Errorf("bump version: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return model.State{}, fmt.Errorf("save at version %d: %w", st.Version, ErrConflict)
	}

	b := &pgx.Batch{}
	b.Queue(`DELETE FROM seen_listings`)
	for i, id := range st.Seen {
		b.Queue(`INSERT INTO seen_listings (position, identity) VALUES ($1, $2)`, i, id)
	}
	b.Queue(`DELETE FROM search_snapshots`)
	for _, r := range snapshotRows(st.Snapshots) {
		b.Queue(`INSERT INTO search_snapshots (search_id, position, link) VALUES ($1, $2, $3)`,
			r.searchID, r.position, r.link)
	}

	br := tx.SendBatch(ctx, b)
	for i := 0; i < b.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return model.State{}, fmt.Errorf("batch statement %d: %w", i, err)
		}
	}
	if err := br.Close(); err != nil {
		return model.State{}, fmt.Errorf("close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return model.State{}, fmt.Errorf("commit: %w", err)
	}

	committed := st.Clone()
	committed.Version = st.Version + 1
	return committed, nil
}
