// Package stats holds read-side helpers over the session ledger: time
// breakdowns by day, week or month, and sorting/filtering of documents for
// presentation. Nothing here writes to the store.
package stats

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/runnerr0/dwell/internal/storage"
)

// Granularity selects the bucket size of a breakdown.
type Granularity string

const (
	Day   Granularity = "day"
	Week  Granularity = "week"
	Month Granularity = "month"
)

// ParseGranularity accepts "day", "week" or "month" (case-insensitive).
func ParseGranularity(s string) (Granularity, error) {
	switch g := Granularity(strings.ToLower(strings.TrimSpace(s))); g {
	case Day, Week, Month:
		return g, nil
	default:
		return "", fmt.Errorf("invalid granularity %q (use day, week, or month)", s)
	}
}

// WeekStart returns the Sunday that begins date's week, as YYYY-MM-DD.
func WeekStart(date string) (string, error) {
	t, err := time.Parse(storage.DateLayout, date)
	if err != nil {
		return "", err
	}
	return t.AddDate(0, 0, -int(t.Weekday())).Format(storage.DateLayout), nil
}

// bucketKey maps a session date to its bucket under g.
func bucketKey(date string, g Granularity) (string, error) {
	if g == Week {
		return WeekStart(date)
	}
	t, err := time.Parse(storage.DateLayout, date)
	if err != nil {
		return "", err
	}
	switch g {
	case Month:
		return t.Format("2006-01"), nil
	default:
		return date, nil
	}
}

// Breakdown sums session durations per bucket. Sessions whose date does not
// parse are skipped.
func Breakdown(sessions []storage.Session, g Granularity) map[string]int64 {
	out := make(map[string]int64)
	for _, s := range sessions {
		key, err := bucketKey(s.Date, g)
		if err != nil {
			continue
		}
		out[key] += s.DurationMs
	}
	return out
}

// Bucket is one entry of a breakdown.
type Bucket struct {
	Key        string `json:"key"`
	DurationMs int64  `json:"durationMs"`
}

// SortedBuckets returns the breakdown in chronological order.
func SortedBuckets(breakdown map[string]int64) []Bucket {
	out := make([]Bucket, 0, len(breakdown))
	for k, v := range breakdown {
		out = append(out, Bucket{Key: k, DurationMs: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// SessionReader is the part of the store the aggregator reads from.
type SessionReader interface {
	GetSessionsByDocKey(ctx context.Context, docKey string) ([]storage.Session, error)
}

// Aggregator answers breakdown queries against a store.
type Aggregator struct {
	store SessionReader
}

// NewAggregator creates an Aggregator reading from store.
func NewAggregator(store SessionReader) *Aggregator {
	return &Aggregator{store: store}
}

// TimeBreakdown buckets all of docKey's sessions under g. An unknown key
// yields an empty map.
func (a *Aggregator) TimeBreakdown(ctx context.Context, docKey string, g Granularity) (map[string]int64, error) {
	sessions, err := a.store.GetSessionsByDocKey(ctx, docKey)
	if err != nil {
		return nil, fmt.Errorf("breakdown %s: %w", docKey, err)
	}
	return Breakdown(sessions, g), nil
}
