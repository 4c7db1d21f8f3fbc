package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rackstat/rackstat/internal/store"
)

func newTestDB(t *testing.T, ids ...string) *DB {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "computers.db"))
	if err != nil {
		t.Fatalf("sqlite open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	ctx := context.Background()
	if err := db.EnsureSchema(ctx); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	if len(ids) > 0 {
		if err := db.Seed(ctx, ids); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	return db
}

func TestSeedIdempotent(t *testing.T) {
	db := newTestDB(t, "A1", "B2")
	ctx := context.Background()

	for _, id := range []string{"A1", "B2"} {
		rec, err := db.Get(ctx, id)
		if err != nil {
			t.Fatalf("get %s after seed: %v", id, err)
		}
		if rec.Status != store.StatusPending || rec.Notes != "" {
			t.Fatalf("fresh record should be pending with empty notes: %+v", rec)
		}
	}

	// A mutation must survive re-seeding.
	if _, err := db.Toggle(ctx, "A1"); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if _, err := db.SetNotes(ctx, "A1", "racked"); err != nil {
		t.Fatalf("set notes: %v", err)
	}
	if err := db.Seed(ctx, []string{"A1", "B2"}); err != nil {
		t.Fatalf("re-seed: %v", err)
	}
	rec, err := db.Get(ctx, "A1")
	if err != nil {
		t.Fatalf("get after re-seed: %v", err)
	}
	if rec.Status != store.StatusReady || rec.Notes != "racked" {
		t.Fatalf("re-seed overwrote existing record: %+v", rec)
	}

	recs, err := db.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("re-seed duplicated records: %d", len(recs))
	}
}

func TestGetUnknownID(t *testing.T) {
	db := newTestDB(t, "A1")
	if _, err := db.Get(context.Background(), "nope"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := db.Toggle(context.Background(), "nope"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("toggle: expected ErrNotFound, got %v", err)
	}
	if _, err := db.SetNotes(context.Background(), "nope", "x"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("set notes: expected ErrNotFound, got %v", err)
	}
}

func TestToggleInvolution(t *testing.T) {
	db := newTestDB(t, "A1")
	ctx := context.Background()

	orig, err := db.Get(ctx, "A1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	first, err := db.Toggle(ctx, "A1")
	if err != nil {
		t.Fatalf("first toggle: %v", err)
	}
	if first.Status != store.StatusReady {
		t.Fatalf("pending should toggle to ready, got %q", first.Status)
	}
	if !first.UpdatedAt.After(orig.UpdatedAt) {
		t.Fatalf("updated_at did not increase: %v -> %v", orig.UpdatedAt, first.UpdatedAt)
	}

	second, err := db.Toggle(ctx, "A1")
	if err != nil {
		t.Fatalf("second toggle: %v", err)
	}
	if second.Status != orig.Status {
		t.Fatalf("double toggle should restore %q, got %q", orig.Status, second.Status)
	}
	if !second.UpdatedAt.After(first.UpdatedAt) {
		t.Fatalf("updated_at did not increase on second toggle: %v -> %v", first.UpdatedAt, second.UpdatedAt)
	}
}

func TestBulkSetAndStats(t *testing.T) {
	db := newTestDB(t, "A1", "B2", "C3")
	ctx := context.Background()

	n, err := db.BulkSet(ctx, store.StatusReady)
	if err != nil {
		t.Fatalf("bulk set: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 rows updated, got %d", n)
	}
	st, err := db.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.Total != 3 || st.Ready != 3 || st.Pending != 0 {
		t.Fatalf("unexpected stats after bulk ready: %+v", st)
	}
	if st.LastUpdated.IsZero() {
		t.Fatalf("last updated missing after mutations")
	}
}

func TestBulkSetInvalidStatus(t *testing.T) {
	db := newTestDB(t, "A1", "B2")
	ctx := context.Background()

	before, err := db.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if _, err := db.BulkSet(ctx, store.Status("unknown")); !errors.Is(err, store.ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
	after, err := db.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for i := range before {
		if before[i] != after[i] {
			t.Fatalf("rejected bulk set changed record %q: %+v -> %+v", before[i].ID, before[i], after[i])
		}
	}
}

func TestSetNotes(t *testing.T) {
	db := newTestDB(t, "B2")
	ctx := context.Background()

	rec, err := db.SetNotes(ctx, "B2", "needs RAM")
	if err != nil {
		t.Fatalf("set notes: %v", err)
	}
	if rec.Notes != "needs RAM" {
		t.Fatalf("notes not applied: %+v", rec)
	}
	// Empty string clears.
	cleared, err := db.SetNotes(ctx, "B2", "")
	if err != nil {
		t.Fatalf("clear notes: %v", err)
	}
	if cleared.Notes != "" {
		t.Fatalf("notes not cleared: %+v", cleared)
	}
	if !cleared.UpdatedAt.After(rec.UpdatedAt) {
		t.Fatalf("clearing notes must refresh updated_at")
	}
}

func TestListOrdered(t *testing.T) {
	db := newTestDB(t, "C3", "A1", "B2")
	recs, err := db.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []string{"A1", "B2", "C3"}
	if len(recs) != len(want) {
		t.Fatalf("expected %d records, got %d", len(want), len(recs))
	}
	for i, id := range want {
		if recs[i].ID != id {
			t.Fatalf("list order wrong at %d: got %q want %q", i, recs[i].ID, id)
		}
	}
}

func TestConcurrentTogglesNoLostUpdates(t *testing.T) {
	db := newTestDB(t, "A1")
	ctx := context.Background()

	const n = 25 // odd: pending -> ready
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := db.Toggle(ctx, "A1"); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent toggle failed: %v", err)
	}

	rec, err := db.Get(ctx, "A1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.Status != store.StatusReady {
		t.Fatalf("%d toggles from pending should end ready, got %q", n, rec.Status)
	}
}
