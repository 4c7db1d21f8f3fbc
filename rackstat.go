// Package rackstat tracks the provisioning status of a fixed inventory of
// machines. This file is the public embedding surface: type aliases into the
// internal packages plus constructors for the store, registry and HTTP API.
package rackstat

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	cfg "github.com/rackstat/rackstat/internal/config"
	"github.com/rackstat/rackstat/internal/export"
	"github.com/rackstat/rackstat/internal/metrics"
	"github.com/rackstat/rackstat/internal/registry"
	iapi "github.com/rackstat/rackstat/internal/server"
	"github.com/rackstat/rackstat/internal/store"
	"github.com/rackstat/rackstat/internal/store/factory"
)

// Re-export core types for external consumers.
// These are aliases so conversions are zero-cost.

type Record = store.Record

type Stats = store.Stats

type Status = store.Status

type Store = store.Store

type Registry = registry.Registry

type Config = cfg.Config

const (
	StatusPending = store.StatusPending
	StatusReady   = store.StatusReady
)

var (
	ErrNotFound      = store.ErrNotFound
	ErrInvalidStatus = store.ErrInvalidStatus
)

// OpenStore opens a status store for the DSN: "postgres://...",
// "sqlite://path", "file://path", or a bare path (sqlite).
func OpenStore(dsn string) (Store, error) { return factory.NewFromDSN(dsn) }

// DefaultRegistry returns the compiled-in inventory.
func DefaultRegistry() *Registry { return registry.Default() }

// NewRegistry builds a registry from an explicit inventory.
func NewRegistry(ids []string) (*Registry, error) { return registry.New(ids) }

// LoadConfig reads a TOML config file; an empty path yields defaults.
func LoadConfig(path string) (*Config, error) { return cfg.Load(path) }

// NewRouter returns an http.Handler exposing the status API, mountable in any
// server or mux.
func NewRouter(st Store, reg *Registry, basePath string) http.Handler {
	return iapi.NewRouter(st, reg, basePath).Handler()
}

// NewHTTPServer starts an HTTP server exposing the status API.
func NewHTTPServer(addr, basePath string, st Store, reg *Registry) (*http.Server, error) {
	return iapi.NewServer(addr, basePath, st, reg)
}

// Projection helpers (public facade). All are pure functions of a snapshot.

var (
	WriteCSV  = export.WriteCSV
	WriteJSON = export.WriteJSON
	WritePage = export.WritePage
)

// Metrics helpers (public facade)

func RegisterMetrics(r prometheus.Registerer) error { return metrics.Register(r) }
func RegisterMetricsDefault() error                 { return metrics.Register(prometheus.DefaultRegisterer) }

// ServeMetrics starts an HTTP server on addr exposing /metrics using the
// default registry. It runs in the caller goroutine.
func ServeMetrics(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv.ListenAndServe()
}
