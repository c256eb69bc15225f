package stats

import (
	"fmt"
	"sort"
	"strings"

	"github.com/runnerr0/dwell/internal/storage"
)

// SortBy orders documents for presentation.
type SortBy string

const (
	SortRecent SortBy = "recent" // last seen, newest first
	SortTotal  SortBy = "total"  // total time, largest first
	SortTitle  SortBy = "title"  // title, A to Z
)

// ParseSort accepts "recent", "total" or "title". Empty means recent.
func ParseSort(s string) (SortBy, error) {
	switch by := SortBy(strings.ToLower(strings.TrimSpace(s))); by {
	case "":
		return SortRecent, nil
	case SortRecent, SortTotal, SortTitle:
		return by, nil
	default:
		return "", fmt.Errorf("invalid sort %q (use recent, total, or title)", s)
	}
}

// SortDocuments sorts docs in place and returns it. Ties fall back to the
// document key so output is stable.
func SortDocuments(docs []storage.Document, by SortBy) []storage.Document {
	less := func(a, b storage.Document) bool { return a.DocKey < b.DocKey }

	sort.SliceStable(docs, func(i, j int) bool {
		a, b := docs[i], docs[j]
		switch by {
		case SortTotal:
			if a.TotalTimeMs != b.TotalTimeMs {
				return a.TotalTimeMs > b.TotalTimeMs
			}
		case SortTitle:
			at, bt := strings.ToLower(a.Title), strings.ToLower(b.Title)
			if at != bt {
				return at < bt
			}
		default:
			if !a.LastSeen.Equal(b.LastSeen) {
				return a.LastSeen.After(b.LastSeen)
			}
		}
		return less(a, b)
	})
	return docs
}

// FilterDocuments returns the documents whose title, URL or key contains
// query, case-insensitively. An empty query returns docs unchanged.
func FilterDocuments(docs []storage.Document, query string) []storage.Document {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return docs
	}

	out := []storage.Document{}
	for _, d := range docs {
		if strings.Contains(strings.ToLower(d.Title), q) ||
			strings.Contains(strings.ToLower(d.URL), q) ||
			strings.Contains(strings.ToLower(d.DocKey), q) {
			out = append(out, d)
		}
	}
	return out
}
