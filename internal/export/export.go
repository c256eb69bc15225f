// Package export writes documents and their sessions as JSON or CSV.
package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/runnerr0/dwell/internal/storage"
)

// Format is an export encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// ParseFormat accepts "json" (the default for "") or "csv".
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatCSV:
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("unknown export format %q (use json or csv)", s)
	}
}

// ContentType returns the MIME type for f.
func (f Format) ContentType() string {
	if f == FormatCSV {
		return "text/csv; charset=utf-8"
	}
	return "application/json"
}

// Source reads everything an export needs as one consistent read.
type Source interface {
	ReadAll(ctx context.Context) ([]storage.Document, []storage.Session, error)
}

// Snapshot is the full exported data set.
type Snapshot struct {
	ExportedAt time.Time          `json:"exportedAt"`
	Documents  []storage.Document `json:"documents"`
	Sessions   []storage.Session  `json:"sessions"`
}

// Collect reads all documents and sessions from src. Documents are ordered
// by key and sessions by id.
func Collect(ctx context.Context, src Source) (*Snapshot, error) {
	docs, sessions, err := src.ReadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("read store: %w", err)
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].DocKey < docs[j].DocKey })
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].ID < sessions[j].ID })

	return &Snapshot{
		ExportedAt: time.Now().UTC(),
		Documents:  docs,
		Sessions:   sessions,
	}, nil
}

// CSVHeader is the first row of a CSV export.
var CSVHeader = []string{"session_id", "date", "doc_key", "title", "url", "duration_ms", "timestamp"}

// Write encodes snap to w.
func Write(w io.Writer, snap *Snapshot, f Format) error {
	switch f {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	case FormatCSV:
		return writeCSV(w, snap)
	default:
		return fmt.Errorf("unknown export format %q", f)
	}
}

// writeCSV emits one row per session, joined with its document's title
// and URL.
func writeCSV(w io.Writer, snap *Snapshot) error {
	byKey := make(map[string]storage.Document, len(snap.Documents))
	for _, d := range snap.Documents {
		byKey[d.DocKey] = d
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	for _, s := range snap.Sessions {
		doc := byKey[s.DocKey]
		row := []string{
			strconv.FormatInt(s.ID, 10),
			s.Date,
			s.DocKey,
			doc.Title,
			doc.URL,
			strconv.FormatInt(s.DurationMs, 10),
			s.Timestamp.UTC().Format(storage.TimestampLayout),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
