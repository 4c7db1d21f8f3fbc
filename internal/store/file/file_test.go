package file

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/rackstat/rackstat/internal/store"
)

func newTestDB(t *testing.T, ids ...string) (*DB, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "computers.json")
	db, err := New(path)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ctx := context.Background()
	if err := db.EnsureSchema(ctx); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	if len(ids) > 0 {
		if err := db.Seed(ctx, ids); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	return db, path
}

func TestSeedAndGet(t *testing.T) {
	db, _ := newTestDB(t, "A1", "B2")
	ctx := context.Background()

	rec, err := db.Get(ctx, "A1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.Status != store.StatusPending || rec.Notes != "" {
		t.Fatalf("fresh record wrong: %+v", rec)
	}
	if _, err := db.Get(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	// Re-seed keeps mutations.
	if _, err := db.Toggle(ctx, "A1"); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if err := db.Seed(ctx, []string{"A1", "B2"}); err != nil {
		t.Fatalf("re-seed: %v", err)
	}
	rec, err = db.Get(ctx, "A1")
	if err != nil {
		t.Fatalf("get after re-seed: %v", err)
	}
	if rec.Status != store.StatusReady {
		t.Fatalf("re-seed reset a record: %+v", rec)
	}
}

func TestPersistsAcrossReopen(t *testing.T) {
	db, path := newTestDB(t, "A1", "B2")
	ctx := context.Background()
	if _, err := db.SetNotes(ctx, "B2", "needs RAM"); err != nil {
		t.Fatalf("set notes: %v", err)
	}

	again, err := New(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	rec, err := again.Get(ctx, "B2")
	if err != nil {
		t.Fatalf("get after reopen: %v", err)
	}
	if rec.Notes != "needs RAM" {
		t.Fatalf("notes lost across reopen: %+v", rec)
	}
}

func TestListOrderedAndStats(t *testing.T) {
	db, _ := newTestDB(t, "C3", "A1", "B2")
	ctx := context.Background()

	recs, err := db.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for i, want := range []string{"A1", "B2", "C3"} {
		if recs[i].ID != want {
			t.Fatalf("order wrong at %d: %q", i, recs[i].ID)
		}
	}

	if _, err := db.BulkSet(ctx, store.StatusReady); err != nil {
		t.Fatalf("bulk set: %v", err)
	}
	st, err := db.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.Total != 3 || st.Ready != 3 || st.Pending != 0 {
		t.Fatalf("unexpected stats: %+v", st)
	}
}

func TestBulkSetInvalidLeavesFileUntouched(t *testing.T) {
	db, path := newTestDB(t, "A1")
	before, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	if _, err := db.BulkSet(context.Background(), store.Status("broken")); !errors.Is(err, store.ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	if string(before) != string(after) {
		t.Fatalf("rejected bulk set rewrote the file")
	}
}

func TestNoTempFilesLeftBehind(t *testing.T) {
	db, path := newTestDB(t, "A1")
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if _, err := db.Toggle(ctx, "A1"); err != nil {
			t.Fatalf("toggle: %v", err)
		}
	}
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	for _, e := range entries {
		if strings.Contains(e.Name(), ".tmp-") {
			t.Fatalf("temp file left behind: %s", e.Name())
		}
	}
}

func TestCorruptFileReseedsAndPreservesBytes(t *testing.T) {
	db, path := newTestDB(t, "A1")
	ctx := context.Background()
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("corrupt file: %v", err)
	}

	// Reads surface the corruption as a storage failure.
	var serr *store.StorageError
	if _, err := db.Get(ctx, "A1"); !errors.As(err, &serr) {
		t.Fatalf("expected StorageError on corrupt read, got %v", err)
	}

	// Seeding recovers, preserving the corrupt bytes beside the new file.
	if err := db.Seed(ctx, []string{"A1"}); err != nil {
		t.Fatalf("seed after corruption: %v", err)
	}
	rec, err := db.Get(ctx, "A1")
	if err != nil {
		t.Fatalf("get after recovery: %v", err)
	}
	if rec.Status != store.StatusPending {
		t.Fatalf("recovered record wrong: %+v", rec)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	found := false
	for _, e := range entries {
		if strings.Contains(e.Name(), ".corrupt-") {
			found = true
		}
	}
	if !found {
		t.Fatalf("corrupt bytes were discarded")
	}
}

func TestConcurrentTogglesNoLostUpdates(t *testing.T) {
	db, _ := newTestDB(t, "A1")
	ctx := context.Background()

	const n = 24 // even: pending -> pending
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
	if rec.Status != store.StatusPending {
		t.Fatalf("%d toggles from pending should end pending, got %q", n, rec.Status)
	}
}
