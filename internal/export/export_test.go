package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/rackstat/rackstat/internal/store"
)

func sampleRecords() []store.Record {
	base := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	return []store.Record{
		{ID: "SRV-01", Status: store.StatusReady, Notes: "imaged, on rack B", UpdatedAt: base},
		{ID: "SRV-02", Status: store.StatusPending, Notes: "needs \"new\" PSU\nETA friday", UpdatedAt: base.Add(time.Minute)},
		{ID: "SRV-03", Status: store.StatusPending, Notes: "", UpdatedAt: base.Add(2 * time.Minute)},
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, sampleRecords()); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("re-parse csv: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("expected header + 3 rows, got %d", len(rows))
	}
	header := rows[0]
	want := []string{"Computer ID", "Status", "Notes", "Last Updated"}
	for i := range want {
		if header[i] != want[i] {
			t.Fatalf("unexpected header: %v", header)
		}
	}
	if rows[1][0] != "SRV-01" || rows[1][1] != "ready" || rows[1][3] != "2026-03-14 09:26:53" {
		t.Fatalf("unexpected first row: %v", rows[1])
	}
	// Commas, quotes and newlines must survive the quoting round trip.
	if rows[2][2] != "needs \"new\" PSU\nETA friday" {
		t.Fatalf("notes mangled: %q", rows[2][2])
	}
}

func TestWriteJSONEnvelope(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, sampleRecords()); err != nil {
		t.Fatalf("write json: %v", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(buf.Bytes(), &snap); err != nil {
		t.Fatalf("re-parse json: %v", err)
	}
	if snap.Total != 3 || len(snap.Computers) != 3 {
		t.Fatalf("unexpected envelope: total=%d computers=%d", snap.Total, len(snap.Computers))
	}
	if snap.ExportedAt.IsZero() {
		t.Fatal("export_timestamp not set")
	}
	if snap.Computers[0].ID != "SRV-01" || snap.Computers[0].Status != store.StatusReady {
		t.Fatalf("unexpected first record: %+v", snap.Computers[0])
	}

	// Envelope field names are part of the export format.
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(buf.Bytes(), &raw); err != nil {
		t.Fatalf("re-parse raw: %v", err)
	}
	for _, key := range []string{"export_timestamp", "total_computers", "computers"} {
		if _, ok := raw[key]; !ok {
			t.Fatalf("missing envelope key %q", key)
		}
	}
}

func TestWriteJSONEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, nil); err != nil {
		t.Fatalf("write json: %v", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(buf.Bytes(), &snap); err != nil {
		t.Fatalf("re-parse json: %v", err)
	}
	if snap.Total != 0 {
		t.Fatalf("expected empty snapshot, got %+v", snap)
	}
}

func TestWritePage(t *testing.T) {
	recs := sampleRecords()
	var buf bytes.Buffer
	if err := WritePage(&buf, recs, store.StatsOf(recs)); err != nil {
		t.Fatalf("write page: %v", err)
	}
	page := buf.String()
	if !strings.Contains(page, "<!DOCTYPE html>") {
		t.Fatal("missing doctype")
	}
	for _, rec := range recs {
		if !strings.Contains(page, rec.ID) {
			t.Fatalf("page missing computer %s", rec.ID)
		}
	}
	start := strings.Index(page, `type="application/json"`)
	if start < 0 {
		t.Fatal("page missing embedded snapshot")
	}
	blob := page[start:]
	blob = blob[strings.Index(blob, ">")+1:]
	blob = blob[:strings.Index(blob, "</script>")]
	var snap Snapshot
	if err := json.Unmarshal([]byte(blob), &snap); err != nil {
		t.Fatalf("embedded snapshot not valid JSON: %v", err)
	}
	if snap.Total != len(recs) {
		t.Fatalf("embedded snapshot total=%d, want %d", snap.Total, len(recs))
	}
	// No external fetches: self-contained page.
	for _, fragment := range []string{`src="http`, `href="http`} {
		if strings.Contains(page, fragment) {
			t.Fatalf("page references external resource: %s", fragment)
		}
	}
}

func TestFilename(t *testing.T) {
	name := Filename("csv")
	if !strings.HasPrefix(name, "computers_") || !strings.HasSuffix(name, ".csv") {
		t.Fatalf("unexpected filename: %s", name)
	}
	if len(name) != len("computers_20060102_150405.csv") {
		t.Fatalf("unexpected filename shape: %s", name)
	}
}
