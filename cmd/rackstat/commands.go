package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rackstat/rackstat/internal/config"
	"github.com/rackstat/rackstat/internal/logger"
	"github.com/rackstat/rackstat/internal/metrics"
	"github.com/rackstat/rackstat/internal/server"
	"github.com/rackstat/rackstat/internal/store"
	"github.com/rackstat/rackstat/internal/store/factory"
	"github.com/rackstat/rackstat/pkg/client"
)

const (
	defaultAPIURL     = "http://localhost:8080/api"
	defaultAPITimeout = 10 * time.Second
)

// command implements the CLI subcommands.
type command struct{}

// Serve loads config, opens and seeds the store, and runs the HTTP server
// until SIGINT/SIGTERM.
func (command) Serve(flags ServeFlags, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if flags.Listen != "" {
		cfg.Listen = flags.Listen
	}
	if flags.BasePath != "" {
		cfg.BasePath = flags.BasePath
	}
	if flags.DSN != "" {
		cfg.Store.DSN = flags.DSN
	}

	log, err := logger.Setup(cfg.Log)
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}

	reg, err := cfg.BuildRegistry()
	if err != nil {
		return fmt.Errorf("build registry: %w", err)
	}
	dsn, err := cfg.StoreDSN()
	if err != nil {
		return err
	}
	st, err := factory.NewFromDSN(dsn)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() { _ = st.Close() }()

	ctx := context.Background()
	if err := st.EnsureSchema(ctx); err != nil {
		return err
	}
	if err := st.Seed(ctx, reg.IDs()); err != nil {
		return err
	}
	log.Info("store ready", "computers", reg.Len(), "dsn", dsn)

	if cfg.Metrics.Enabled {
		if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
			return fmt.Errorf("register metrics: %w", err)
		}
		if flags.MetricsAddr != "" {
			go func() {
				if err := serveMetrics(flags.MetricsAddr); err != nil {
					log.Error("metrics server stopped", "error", err)
				}
			}()
		}
	}

	srv, err := server.NewServer(cfg.Listen, cfg.BasePath, st, reg)
	if err != nil {
		return fmt.Errorf("start server: %w", err)
	}
	log.Info("serving", "listen", cfg.Listen, "base_path", cfg.BasePath)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (command) Status(flags StatusFlags) error {
	api := newClient(flags.API)
	ctx, cancel := apiContext(flags.API)
	defer cancel()

	if flags.ID != "" {
		rec, err := api.Computer(ctx, flags.ID)
		if err != nil {
			return err
		}
		printRecords(rec)
		return nil
	}
	recs, err := api.Computers(ctx)
	if err != nil {
		return err
	}
	printRecords(recs...)
	stats, err := api.Stats(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("\n%d total, %d ready, %d pending\n", stats.Total, stats.Ready, stats.Pending)
	return nil
}

func (command) Toggle(flags ToggleFlags) error {
	api := newClient(flags.API)
	ctx, cancel := apiContext(flags.API)
	defer cancel()
	rec, err := api.Toggle(ctx, flags.ID)
	if err != nil {
		return err
	}
	fmt.Printf("%s is now %s\n", rec.ID, rec.Status)
	return nil
}

func (command) Bulk(flags BulkFlags) error {
	status, err := store.ParseStatus(flags.Status)
	if err != nil {
		return err
	}
	api := newClient(flags.API)
	ctx, cancel := apiContext(flags.API)
	defer cancel()
	n, err := api.BulkSet(ctx, status)
	if err != nil {
		return err
	}
	fmt.Printf("%d computers set to %s\n", n, status)
	return nil
}

func (command) Notes(flags NotesFlags) error {
	api := newClient(flags.API)
	ctx, cancel := apiContext(flags.API)
	defer cancel()
	rec, err := api.UpdateNotes(ctx, flags.ID, flags.Notes)
	if err != nil {
		return err
	}
	if rec.Notes == "" {
		fmt.Printf("notes cleared for %s\n", rec.ID)
	} else {
		fmt.Printf("notes updated for %s\n", rec.ID)
	}
	return nil
}

func (command) Export(flags ExportFlags) error {
	switch flags.Format {
	case "csv", "json", "page":
	default:
		return fmt.Errorf("unknown export format %q (want csv, json or page)", flags.Format)
	}
	api := newClient(flags.API)
	ctx, cancel := apiContext(flags.API)
	defer cancel()
	body, name, err := api.Export(ctx, flags.Format)
	if err != nil {
		return err
	}
	out := flags.Output
	if out == "-" {
		_, err = os.Stdout.Write(body)
		return err
	}
	if out == "" {
		if name == "" {
			name = "computers." + flags.Format
		}
		out = name
	}
	if err := os.WriteFile(out, body, 0o644); err != nil { // #nosec 306
		return err
	}
	fmt.Printf("wrote %s (%d bytes)\n", out, len(body))
	return nil
}

func newClient(f APIFlags) *client.Client {
	return client.New(client.Config{
		BaseURL: f.URL,
		Timeout: f.Timeout,
		Logger:  slog.Default(),
	})
}

func apiContext(f APIFlags) (context.Context, context.CancelFunc) {
	timeout := f.Timeout
	if timeout <= 0 {
		timeout = defaultAPITimeout
	}
	return context.WithTimeout(context.Background(), timeout)
}

func printRecords(recs ...store.Record) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "COMPUTER\tSTATUS\tNOTES\tUPDATED")
	for _, r := range recs {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			r.ID, r.Status, r.Notes, r.UpdatedAt.UTC().Format("2006-01-02 15:04:05"))
	}
	_ = w.Flush()
}

func serveMetrics(addr string) error {
	mux := newMetricsMux()
	srv := newTimeoutServer(addr, mux)
	return srv.ListenAndServe()
}
