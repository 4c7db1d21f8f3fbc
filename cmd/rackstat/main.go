package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := buildRoot()
	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// buildRoot creates the root command and wires all subcommands.
func buildRoot() *cobra.Command {
	globalFlags := &GlobalFlags{}
	c := command{}

	root := &cobra.Command{
		Use:           "rackstat",
		Short:         "Track provisioning status for an inventory of machines",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&globalFlags.ConfigPath, "config", "", "path to TOML config file")

	root.AddCommand(
		createServeCommand(c, globalFlags),
		createStatusCommand(c),
		createToggleCommand(c),
		createBulkCommand(c),
		createNotesCommand(c),
		createExportCommand(c),
	)
	return root
}

func createServeCommand(c command, globalFlags *GlobalFlags) *cobra.Command {
	flags := &ServeFlags{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the status server",
		Long: `Start the HTTP status server: seeds the store from the inventory
registry, then serves the dashboard, the JSON API and the export downloads.

Examples:
  rackstat serve
  rackstat serve --config rackstat.toml
  rackstat serve --listen :9090 --dsn file://computers.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Serve(*flags, globalFlags.ConfigPath)
		},
	}
	cmd.Flags().StringVar(&flags.Listen, "listen", "", "listen address (overrides config)")
	cmd.Flags().StringVar(&flags.BasePath, "base-path", "", "API base path (overrides config)")
	cmd.Flags().StringVar(&flags.DSN, "dsn", "", "store DSN: sqlite://path, postgres://..., file://path (overrides config)")
	cmd.Flags().StringVar(&flags.MetricsAddr, "metrics-listen", "", "serve /metrics on a separate address")
	return cmd
}

func createStatusCommand(c command) *cobra.Command {
	flags := &StatusFlags{}
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show computer status from a running server",
		Long: `Show the status table, or one record with --id.

Examples:
  rackstat status
  rackstat status --id WXDKDSA10044W`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Status(*flags)
		},
	}
	cmd.Flags().StringVar(&flags.ID, "id", "", "show a single computer")
	addAPIFlags(cmd, &flags.API)
	return cmd
}

func createToggleCommand(c command) *cobra.Command {
	flags := &ToggleFlags{}
	cmd := &cobra.Command{
		Use:   "toggle",
		Short: "Toggle a computer between pending and ready",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Toggle(*flags)
		},
	}
	cmd.Flags().StringVar(&flags.ID, "id", "", "computer id (required)")
	_ = cmd.MarkFlagRequired("id")
	addAPIFlags(cmd, &flags.API)
	return cmd
}

func createBulkCommand(c command) *cobra.Command {
	flags := &BulkFlags{}
	cmd := &cobra.Command{
		Use:   "bulk",
		Short: "Set every computer to the given status",
		Long: `Set every computer to the given status in one atomic update.

Examples:
  rackstat bulk --status ready
  rackstat bulk --status pending`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Bulk(*flags)
		},
	}
	cmd.Flags().StringVar(&flags.Status, "status", "", "target status: ready or pending (required)")
	_ = cmd.MarkFlagRequired("status")
	addAPIFlags(cmd, &flags.API)
	return cmd
}

func createNotesCommand(c command) *cobra.Command {
	flags := &NotesFlags{}
	cmd := &cobra.Command{
		Use:   "notes",
		Short: "Replace the notes for a computer",
		Long: `Replace the notes for a computer. An empty --text clears them.

Examples:
  rackstat notes --id WXDKDSA10044W --text "needs RAM"
  rackstat notes --id WXDKDSA10044W --text ""`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Notes(*flags)
		},
	}
	cmd.Flags().StringVar(&flags.ID, "id", "", "computer id (required)")
	cmd.Flags().StringVar(&flags.Notes, "text", "", "note text; empty clears")
	_ = cmd.MarkFlagRequired("id")
	addAPIFlags(cmd, &flags.API)
	return cmd
}

func createExportCommand(c command) *cobra.Command {
	flags := &ExportFlags{}
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Download an export of the current state",
		Long: `Download an export of the current state from a running server.

Examples:
  rackstat export --format csv
  rackstat export --format json --output state.json
  rackstat export --format page --output snapshot.html`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Export(*flags)
		},
	}
	cmd.Flags().StringVar(&flags.Format, "format", "csv", "export format: csv, json or page")
	cmd.Flags().StringVar(&flags.Output, "output", "", "output file (default: server-suggested name; \"-\" for stdout)")
	addAPIFlags(cmd, &flags.API)
	return cmd
}

func addAPIFlags(cmd *cobra.Command, f *APIFlags) {
	cmd.Flags().StringVar(&f.URL, "api-url", defaultAPIURL, "base URL of the running server API")
	cmd.Flags().DurationVar(&f.Timeout, "api-timeout", defaultAPITimeout, "API request timeout")
}
