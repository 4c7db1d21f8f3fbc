package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/rackstat/rackstat/internal/store"
)

// DB implements store.Store for PostgreSQL via the pgx stdlib driver.
// Row locks (SELECT ... FOR UPDATE) serialize toggles, so no process-level
// mutex is needed and multiple rackstat instances can share one database.

type DB struct {
	db *sql.DB
}

func New(dsn string) (*DB, error) {
	d, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	return &DB{db: d}, nil
}

func (p *DB) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS computers(
			id TEXT PRIMARY KEY,
			status TEXT NOT NULL DEFAULT 'pending',
			notes TEXT NOT NULL DEFAULT '',
			updated_at TIMESTAMPTZ NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_computers_status ON computers(status);`,
	}
	for _, q := range stmts {
		if _, err := p.db.ExecContext(ctx, q); err != nil {
			return &store.StorageError{Op: "ensure schema", Err: err}
		}
	}
	return nil
}

func (p *DB) Close() error { return p.db.Close() }

func (p *DB) Seed(ctx context.Context, ids []string) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return &store.StorageError{Op: "seed", Err: err}
	}
	now := time.Now().UTC()
	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO computers(id, status, notes, updated_at)
			VALUES($1, $2, '', $3)
			ON CONFLICT(id) DO NOTHING;`,
			id, store.StatusPending, now); err != nil {
			_ = tx.Rollback()
			return &store.StorageError{Op: "seed", Err: err}
		}
	}
	if err := tx.Commit(); err != nil {
		return &store.StorageError{Op: "seed", Err: err}
	}
	return nil
}

func (p *DB) Get(ctx context.Context, id string) (store.Record, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT id, status, notes, updated_at FROM computers WHERE id=$1;`, id)
	return scanRecord(row)
}

func (p *DB) List(ctx context.Context) ([]store.Record, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, status, notes, updated_at
		FROM computers
		ORDER BY id ASC;`)
	if err != nil {
		return nil, &store.StorageError{Op: "list", Err: err}
	}
	defer func() { _ = rows.Close() }()
	out := make([]store.Record, 0)
	for rows.Next() {
		var r store.Record
		if err := rows.Scan(&r.ID, &r.Status, &r.Notes, &r.UpdatedAt); err != nil {
			return nil, &store.StorageError{Op: "list", Err: err}
		}
		r.UpdatedAt = r.UpdatedAt.UTC()
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, &store.StorageError{Op: "list", Err: err}
	}
	return out, nil
}

func (p *DB) Toggle(ctx context.Context, id string) (store.Record, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return store.Record{}, &store.StorageError{Op: "toggle", Err: err}
	}
	cur, err := scanRecord(tx.QueryRowContext(ctx, `
		SELECT id, status, notes, updated_at FROM computers WHERE id=$1 FOR UPDATE;`, id))
	if err != nil {
		_ = tx.Rollback()
		return store.Record{}, err
	}
	cur.Status = cur.Status.Toggled()
	cur.UpdatedAt = store.NextTimestamp(cur.UpdatedAt)
	if _, err := tx.ExecContext(ctx, `
		UPDATE computers SET status=$1, updated_at=$2 WHERE id=$3;`,
		cur.Status, cur.UpdatedAt, id); err != nil {
		_ = tx.Rollback()
		return store.Record{}, &store.StorageError{Op: "toggle", Err: err}
	}
	if err := tx.Commit(); err != nil {
		return store.Record{}, &store.StorageError{Op: "toggle", Err: err}
	}
	return cur, nil
}

func (p *DB) BulkSet(ctx context.Context, status store.Status) (int, error) {
	if !status.Valid() {
		return 0, store.ErrInvalidStatus
	}
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, &store.StorageError{Op: "bulk set", Err: err}
	}
	var last sql.NullTime
	if err := tx.QueryRowContext(ctx, `SELECT MAX(updated_at) FROM computers;`).Scan(&last); err != nil {
		_ = tx.Rollback()
		return 0, &store.StorageError{Op: "bulk set", Err: err}
	}
	now := store.NextTimestamp(last.Time)
	res, err := tx.ExecContext(ctx, `UPDATE computers SET status=$1, updated_at=$2;`, status, now)
	if err != nil {
		_ = tx.Rollback()
		return 0, &store.StorageError{Op: "bulk set", Err: err}
	}
	n, _ := res.RowsAffected()
	if err := tx.Commit(); err != nil {
		return 0, &store.StorageError{Op: "bulk set", Err: err}
	}
	return int(n), nil
}

func (p *DB) SetNotes(ctx context.Context, id string, notes string) (store.Record, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return store.Record{}, &store.StorageError{Op: "set notes", Err: err}
	}
	cur, err := scanRecord(tx.QueryRowContext(ctx, `
		SELECT id, status, notes, updated_at FROM computers WHERE id=$1 FOR UPDATE;`, id))
	if err != nil {
		_ = tx.Rollback()
		return store.Record{}, err
	}
	cur.Notes = notes
	cur.UpdatedAt = store.NextTimestamp(cur.UpdatedAt)
	if _, err := tx.ExecContext(ctx, `
		UPDATE computers SET notes=$1, updated_at=$2 WHERE id=$3;`,
		notes, cur.UpdatedAt, id); err != nil {
		_ = tx.Rollback()
		return store.Record{}, &store.StorageError{Op: "set notes", Err: err}
	}
	if err := tx.Commit(); err != nil {
		return store.Record{}, &store.StorageError{Op: "set notes", Err: err}
	}
	return cur, nil
}

func (p *DB) Stats(ctx context.Context) (store.Stats, error) {
	recs, err := p.List(ctx)
	if err != nil {
		return store.Stats{}, err
	}
	return store.StatsOf(recs), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (store.Record, error) {
	var r store.Record
	if err := row.Scan(&r.ID, &r.Status, &r.Notes, &r.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Record{}, store.ErrNotFound
		}
		return store.Record{}, &store.StorageError{Op: "get", Err: err}
	}
	r.UpdatedAt = r.UpdatedAt.UTC()
	return r, nil
}
