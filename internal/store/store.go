package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Status is the provisioning state of a computer. The domain is closed:
// anything other than pending/ready is rejected, never coerced.
type Status string

const (
	StatusPending Status = "pending"
	StatusReady   Status = "ready"
)

// Valid reports whether s is inside the two-value domain.
func (s Status) Valid() bool {
	return s == StatusPending || s == StatusReady
}

// Toggled returns the other status.
func (s Status) Toggled() Status {
	if s == StatusReady {
		return StatusPending
	}
	return StatusReady
}

// ParseStatus validates a raw status string from config or an API payload.
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.Valid() {
		return "", fmt.Errorf("%w: status %q", ErrInvalidStatus, raw)
	}
	return s, nil
}

// Record is the persisted state for one computer.
// ID is unique and immutable; it always matches a registry entry.
// UpdatedAt is in UTC and is set by the store on every successful mutation,
// strictly increasing per record.
type Record struct {
	ID        string    `json:"computer_id"`
	Status    Status    `json:"status"`
	Notes     string    `json:"notes"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Stats is derived from the full record set. Ready+Pending == Total.
// LastUpdated is the zero time when the store holds no records.
type Stats struct {
	Total       int       `json:"total"`
	Ready       int       `json:"ready"`
	Pending     int       `json:"pending"`
	LastUpdated time.Time `json:"last_update,omitzero"`
}

var (
	// ErrNotFound marks an ID with no record. Caller error, no retry.
	ErrNotFound = errors.New("computer not found")
	// ErrInvalidStatus marks a status outside the pending/ready domain.
	ErrInvalidStatus = errors.New("invalid status")
)

// StorageError wraps a backend failure (lock timeout, disk error, corrupt
// file). Writes that return it guarantee no partial effect occurred.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return "storage " + e.Op + ": " + e.Err.Error() }
func (e *StorageError) Unwrap() error { return e.Err }

func storageErr(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}

// Store is the single point of truth for computer records. Mutating
// operations serialize their read-modify-write sequences; reads observe only
// committed state.
type Store interface {
	EnsureSchema(ctx context.Context) error
	// Seed creates a pending record with empty notes for every id that has
	// none. Existing records are never overwritten. Safe on every start.
	Seed(ctx context.Context, ids []string) error
	Get(ctx context.Context, id string) (Record, error)
	// List returns all records ordered by ID ascending, from one consistent
	// point-in-time view.
	List(ctx context.Context) ([]Record, error)
	// Toggle flips pending<->ready and returns the new record. Concurrent
	// toggles on the same id apply in some total order with no lost updates.
	Toggle(ctx context.Context, id string) (Record, error)
	// BulkSet sets every record to status atomically and returns the number
	// of records written.
	BulkSet(ctx context.Context, status Status) (int, error)
	// SetNotes replaces notes for id. Empty text clears them.
	SetNotes(ctx context.Context, id string, notes string) (Record, error)
	Stats(ctx context.Context) (Stats, error)
	Close() error
}

// NextTimestamp returns the mutation timestamp for a record whose previous
// timestamp is prev. It keeps UpdatedAt strictly increasing even when two
// mutations land within clock resolution.
func NextTimestamp(prev time.Time) time.Time {
	now := time.Now().UTC()
	if !now.After(prev) {
		now = prev.Add(time.Microsecond)
	}
	return now
}

// StatsOf derives Stats from a record snapshot.
func StatsOf(recs []Record) Stats {
	st := Stats{Total: len(recs)}
	for _, r := range recs {
		if r.Status == StatusReady {
			st.Ready++
		} else {
			st.Pending++
		}
		if r.UpdatedAt.After(st.LastUpdated) {
			st.LastUpdated = r.UpdatedAt
		}
	}
	return st
}
