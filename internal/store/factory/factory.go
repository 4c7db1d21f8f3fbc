package factory

import (
	"errors"
	"strings"

	"github.com/rackstat/rackstat/internal/store"
	fl "github.com/rackstat/rackstat/internal/store/file"
	pg "github.com/rackstat/rackstat/internal/store/postgres"
	sq "github.com/rackstat/rackstat/internal/store/sqlite"
)

// NewFromDSN selects a store implementation based on DSN.
// Supported:
//   - sqlite:   "sqlite://<path>" or bare filepath (treated as sqlite)
//   - postgres: DSN starting with "postgres://" or "postgresql://"
//   - file:     "file://<path>" (JSON document)
func NewFromDSN(dsn string) (store.Store, error) {
	d := strings.TrimSpace(dsn)
	ld := strings.ToLower(d)
	if ld == "" {
		return nil, errors.New("empty DSN")
	}
	if strings.HasPrefix(ld, "postgres://") || strings.HasPrefix(ld, "postgresql://") {
		return pg.New(d)
	}
	if strings.HasPrefix(ld, "file://") {
		return fl.New(strings.TrimPrefix(d, "file://"))
	}
	if strings.HasPrefix(ld, "sqlite://") {
		return sq.New(strings.TrimPrefix(d, "sqlite://"))
	}
	// default to sqlite path
	return sq.New(d)
}
