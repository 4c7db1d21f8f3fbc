package main

import "time"

// GlobalFlags holds persistent flags shared by all commands.
type GlobalFlags struct {
	ConfigPath string
}

// ServeFlags holds flags for the serve command.
type ServeFlags struct {
	Listen      string
	BasePath    string
	DSN         string
	MetricsAddr string
}

// APIFlags holds the connection flags for commands that talk to a running
// server.
type APIFlags struct {
	URL     string
	Timeout time.Duration
}

// ToggleFlags holds flags for the toggle command.
type ToggleFlags struct {
	ID  string
	API APIFlags
}

// BulkFlags holds flags for the bulk command.
type BulkFlags struct {
	Status string
	API    APIFlags
}

// NotesFlags holds flags for the notes command.
type NotesFlags struct {
	ID    string
	Notes string
	API   APIFlags
}

// StatusFlags holds flags for the status command.
type StatusFlags struct {
	ID  string
	API APIFlags
}

// ExportFlags holds flags for the export command.
type ExportFlags struct {
	Format string
	Output string
	API    APIFlags
}
