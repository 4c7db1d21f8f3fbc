// Package export renders read-only projections of a store snapshot. Every
// function here is a pure function of the records it is given; nothing in
// this package can mutate the store.
package export

import (
	"embed"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/rackstat/rackstat/internal/store"
)

//go:embed page.html.tmpl
var pageFS embed.FS

var pageTmpl = template.Must(template.ParseFS(pageFS, "page.html.tmpl"))

const timeLayout = "2006-01-02 15:04:05"

// Snapshot is the structured (JSON) export envelope.
type Snapshot struct {
	ExportedAt time.Time      `json:"export_timestamp"`
	Total      int            `json:"total_computers"`
	Computers  []store.Record `json:"computers"`
}

// WriteCSV writes records as CSV with a header row, preserving the ID order
// of the snapshot. encoding/csv quotes embedded delimiters and newlines.
func WriteCSV(w io.Writer, recs []store.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Computer ID", "Status", "Notes", "Last Updated"}); err != nil {
		return err
	}
	for _, r := range recs {
		row := []string{r.ID, string(r.Status), r.Notes, r.UpdatedAt.UTC().Format(timeLayout)}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteJSON writes the structured export: timestamp, count, then records
// field-for-field in snapshot order.
func WriteJSON(w io.Writer, recs []store.Record) error {
	snap := Snapshot{
		ExportedAt: time.Now().UTC(),
		Total:      len(recs),
		Computers:  recs,
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(snap)
}

type pageData struct {
	GeneratedAt string
	Stats       store.Stats
	Computers   []pageRecord
	StateJSON   template.JS
}

type pageRecord struct {
	ID        string
	Status    store.Status
	Ready     bool
	Notes     string
	UpdatedAt string
}

// WritePage renders a self-contained HTML page: a human-viewable card per
// computer plus the full snapshot embedded as inline JSON, loadable with no
// external calls.
func WritePage(w io.Writer, recs []store.Record, stats store.Stats) error {
	state, err := json.Marshal(Snapshot{
		ExportedAt: time.Now().UTC(),
		Total:      len(recs),
		Computers:  recs,
	})
	if err != nil {
		return err
	}
	data := pageData{
		GeneratedAt: time.Now().UTC().Format(timeLayout) + " UTC",
		Stats:       stats,
		Computers:   make([]pageRecord, 0, len(recs)),
		// Inside <script type="application/json">; marshaled JSON cannot
		// contain a raw "</script" because encoding/json escapes '<'.
		StateJSON: template.JS(state), // #nosec G203
	}
	for _, r := range recs {
		data.Computers = append(data.Computers, pageRecord{
			ID:        r.ID,
			Status:    r.Status,
			Ready:     r.Status == store.StatusReady,
			Notes:     r.Notes,
			UpdatedAt: r.UpdatedAt.UTC().Format(timeLayout),
		})
	}
	return pageTmpl.Execute(w, data)
}

// Filename returns the timestamped download name for an export, e.g.
// computers_20060102_150405.csv.
func Filename(ext string) string {
	return fmt.Sprintf("computers_%s.%s", time.Now().UTC().Format("20060102_150405"), ext)
}
