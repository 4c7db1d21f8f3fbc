package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rackstat/rackstat/internal/store"
)

// DB implements store.Store on a single JSON document mapping id -> record.
// A process-wide RWMutex is the write lock; every mutation rewrites the file
// through a temp file + rename so a crash mid-write never leaves a truncated
// document behind.
//
// This backend is for single-process deployments only. Records live in the
// file, not in memory: every operation reloads the document, so edits made
// while the process is stopped survive.

type DB struct {
	path string
	mu   sync.RWMutex
}

func New(path string) (*DB, error) {
	p := strings.TrimSpace(path)
	if p == "" {
		return nil, errors.New("empty file store path")
	}
	return &DB{path: p}, nil
}

func (f *DB) EnsureSchema(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(f.path), 0o750); err != nil {
		return &store.StorageError{Op: "ensure schema", Err: err}
	}
	if _, err := os.Stat(f.path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return &store.StorageError{Op: "ensure schema", Err: err}
	}
	return f.writeLocked(map[string]store.Record{})
}

func (f *DB) Close() error { return nil }

func (f *DB) Seed(ctx context.Context, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	recs, err := f.loadLocked(true)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	changed := false
	for _, id := range ids {
		if _, ok := recs[id]; ok {
			continue
		}
		recs[id] = store.Record{ID: id, Status: store.StatusPending, UpdatedAt: now}
		changed = true
	}
	if !changed {
		return nil
	}
	return f.writeLocked(recs)
}

func (f *DB) Get(ctx context.Context, id string) (store.Record, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	recs, err := f.loadLocked(false)
	if err != nil {
		return store.Record{}, err
	}
	r, ok := recs[id]
	if !ok {
		return store.Record{}, store.ErrNotFound
	}
	return r, nil
}

func (f *DB) List(ctx context.Context) ([]store.Record, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	recs, err := f.loadLocked(false)
	if err != nil {
		return nil, err
	}
	return sorted(recs), nil
}

func (f *DB) Toggle(ctx context.Context, id string) (store.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	recs, err := f.loadLocked(false)
	if err != nil {
		return store.Record{}, err
	}
	r, ok := recs[id]
	if !ok {
		return store.Record{}, store.ErrNotFound
	}
	r.Status = r.Status.Toggled()
	r.UpdatedAt = store.NextTimestamp(r.UpdatedAt)
	recs[id] = r
	if err := f.writeLocked(recs); err != nil {
		return store.Record{}, err
	}
	return r, nil
}

func (f *DB) BulkSet(ctx context.Context, status store.Status) (int, error) {
	if !status.Valid() {
		return 0, store.ErrInvalidStatus
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	recs, err := f.loadLocked(false)
	if err != nil {
		return 0, err
	}
	var last time.Time
	for _, r := range recs {
		if r.UpdatedAt.After(last) {
			last = r.UpdatedAt
		}
	}
	now := store.NextTimestamp(last)
	for id, r := range recs {
		r.Status = status
		r.UpdatedAt = now
		recs[id] = r
	}
	if err := f.writeLocked(recs); err != nil {
		return 0, err
	}
	return len(recs), nil
}

func (f *DB) SetNotes(ctx context.Context, id string, notes string) (store.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	recs, err := f.loadLocked(false)
	if err != nil {
		return store.Record{}, err
	}
	r, ok := recs[id]
	if !ok {
		return store.Record{}, store.ErrNotFound
	}
	r.Notes = notes
	r.UpdatedAt = store.NextTimestamp(r.UpdatedAt)
	recs[id] = r
	if err := f.writeLocked(recs); err != nil {
		return store.Record{}, err
	}
	return r, nil
}

func (f *DB) Stats(ctx context.Context) (store.Stats, error) {
	recs, err := f.List(ctx)
	if err != nil {
		return store.Stats{}, err
	}
	return store.StatsOf(recs), nil
}

// loadLocked reads the document. Callers hold at least the read lock.
// When salvage is true a corrupt document is preserved under a
// .corrupt-<timestamp> suffix and an empty set is returned so seeding can
// rebuild; otherwise corruption is a storage failure.
func (f *DB) loadLocked(salvage bool) (map[string]store.Record, error) {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return map[string]store.Record{}, nil
	}
	if err != nil {
		return nil, &store.StorageError{Op: "load", Err: err}
	}
	recs := map[string]store.Record{}
	if len(data) == 0 {
		return recs, nil
	}
	if err := json.Unmarshal(data, &recs); err != nil {
		if !salvage {
			return nil, &store.StorageError{Op: "load", Err: err}
		}
		// Keep the unreadable bytes on disk for the operator and start over.
		aside := fmt.Sprintf("%s.corrupt-%s", f.path, time.Now().UTC().Format("20060102_150405"))
		if mvErr := os.Rename(f.path, aside); mvErr != nil {
			return nil, &store.StorageError{Op: "load", Err: err}
		}
		slog.Warn("status file unreadable, reseeding", "path", f.path, "saved_as", aside, "error", err)
		return map[string]store.Record{}, nil
	}
	return recs, nil
}

// writeLocked persists the document atomically. Callers hold the write lock.
func (f *DB) writeLocked(recs map[string]store.Record) error {
	data, err := json.MarshalIndent(recs, "", "  ")
	if err != nil {
		return &store.StorageError{Op: "save", Err: err}
	}
	tmp, err := os.CreateTemp(filepath.Dir(f.path), filepath.Base(f.path)+".tmp-*")
	if err != nil {
		return &store.StorageError{Op: "save", Err: err}
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return &store.StorageError{Op: "save", Err: err}
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return &store.StorageError{Op: "save", Err: err}
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		_ = os.Remove(tmp.Name())
		return &store.StorageError{Op: "save", Err: err}
	}
	return nil
}

func sorted(recs map[string]store.Record) []store.Record {
	out := make([]store.Record, 0, len(recs))
	for _, r := range recs {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
