package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/rackstat/rackstat/internal/store"
)

// DB implements store.Store for SQLite (modernc.org/sqlite driver, CGO-free).
// Path is a filesystem path to the database file. Use ":memory:" for in-memory.
//
// The pool is pinned to a single connection and mutations additionally hold
// mu around their read-modify-write transactions. With at most a few hundred
// rows a single global critical section is sufficient, and one connection
// keeps ":memory:" databases coherent.

type DB struct {
	db *sql.DB
	mu sync.Mutex
}

// New opens a SQLite database at path.
func New(path string) (*DB, error) {
	p := strings.TrimSpace(path)
	if p == "" {
		return nil, errors.New("empty sqlite path")
	}
	d, err := sql.Open("sqlite", p)
	if err != nil {
		return nil, err
	}
	d.SetMaxOpenConns(1)
	// WAL lets pollers read while a mutation commits; busy timeout covers
	// the brief write locks that remain.
	_, _ = d.Exec("PRAGMA journal_mode=WAL;")
	_, _ = d.Exec("PRAGMA busy_timeout=3000;")
	return &DB{db: d}, nil
}

func (s *DB) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS computers(
			id TEXT PRIMARY KEY,
			status TEXT NOT NULL DEFAULT 'pending',
			notes TEXT NOT NULL DEFAULT '',
			updated_at TIMESTAMP NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_computers_status ON computers(status);`,
	}
	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return &store.StorageError{Op: "ensure schema", Err: err}
		}
	}
	return nil
}

func (s *DB) Close() error { return s.db.Close() }

func (s *DB) Seed(ctx context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &store.StorageError{Op: "seed", Err: err}
	}
	now := time.Now().UTC()
	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO computers(id, status, notes, updated_at)
			VALUES(?, ?, '', ?)
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

func (s *DB) Get(ctx context.Context, id string) (store.Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, status, notes, updated_at FROM computers WHERE id=?;`, id)
	return scanRecord(row)
}

func (s *DB) List(ctx context.Context) ([]store.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, status, notes, updated_at
		FROM computers
		ORDER BY id ASC;`)
	if err != nil {
		return nil, &store.StorageError{Op: "list", Err: err}
	}
	defer func() { _ = rows.Close() }()
	return scanRecords(rows)
}

func (s *DB) Toggle(ctx context.Context, id string) (store.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return store.Record{}, &store.StorageError{Op: "toggle", Err: err}
	}
	cur, err := scanRecord(tx.QueryRowContext(ctx, `
		SELECT id, status, notes, updated_at FROM computers WHERE id=?;`, id))
	if err != nil {
		_ = tx.Rollback()
		return store.Record{}, err
	}
	cur.Status = cur.Status.Toggled()
	cur.UpdatedAt = store.NextTimestamp(cur.UpdatedAt)
	if _, err := tx.ExecContext(ctx, `
		UPDATE computers SET status=?, updated_at=? WHERE id=?;`,
		cur.Status, cur.UpdatedAt, id); err != nil {
		_ = tx.Rollback()
		return store.Record{}, &store.StorageError{Op: "toggle", Err: err}
	}
	if err := tx.Commit(); err != nil {
		return store.Record{}, &store.StorageError{Op: "toggle", Err: err}
	}
	return cur, nil
}

func (s *DB) BulkSet(ctx context.Context, status store.Status) (int, error) {
	if !status.Valid() {
		return 0, store.ErrInvalidStatus
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, &store.StorageError{Op: "bulk set", Err: err}
	}
	// Plain column select so the driver keeps the TIMESTAMP decltype;
	// MAX(updated_at) would come back as text.
	var last time.Time
	err = tx.QueryRowContext(ctx, `
		SELECT updated_at FROM computers ORDER BY updated_at DESC LIMIT 1;`).Scan(&last)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		_ = tx.Rollback()
		return 0, &store.StorageError{Op: "bulk set", Err: err}
	}
	now := store.NextTimestamp(last)
	res, err := tx.ExecContext(ctx, `UPDATE computers SET status=?, updated_at=?;`, status, now)
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

func (s *DB) SetNotes(ctx context.Context, id string, notes string) (store.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return store.Record{}, &store.StorageError{Op: "set notes", Err: err}
	}
	cur, err := scanRecord(tx.QueryRowContext(ctx, `
		SELECT id, status, notes, updated_at FROM computers WHERE id=?;`, id))
	if err != nil {
		_ = tx.Rollback()
		return store.Record{}, err
	}
	cur.Notes = notes
	cur.UpdatedAt = store.NextTimestamp(cur.UpdatedAt)
	if _, err := tx.ExecContext(ctx, `
		UPDATE computers SET notes=?, updated_at=? WHERE id=?;`,
		notes, cur.UpdatedAt, id); err != nil {
		_ = tx.Rollback()
		return store.Record{}, &store.StorageError{Op: "set notes", Err: err}
	}
	if err := tx.Commit(); err != nil {
		return store.Record{}, &store.StorageError{Op: "set notes", Err: err}
	}
	return cur, nil
}

func (s *DB) Stats(ctx context.Context) (store.Stats, error) {
	recs, err := s.List(ctx)
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

func scanRecords(rows *sql.Rows) ([]store.Record, error) {
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
