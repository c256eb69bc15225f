package cli

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/runnerr0/dwell/internal/config"
	"github.com/runnerr0/dwell/internal/dockey"
	"github.com/runnerr0/dwell/internal/storage"
	"github.com/runnerr0/dwell/internal/tracker"
)

// Execute implements the go-flags Commander interface for RecordCommand.
func (c *RecordCommand) Execute(args []string) error {
	if c.URL == "" {
		return fmt.Errorf("--url is required for record command")
	}
	if c.Duration == "" {
		return fmt.Errorf("--duration is required for record command")
	}
	return c.withStore(c.executeWithStore)
}

// executeWithStore runs the record logic against a provided store (used by tests).
func (c *RecordCommand) executeWithStore(store *storage.SQLiteStore, cfg *config.Config) error {
	parsed, err := url.ParseRequestURI(c.URL)
	if err != nil || parsed.Host == "" {
		return fmt.Errorf("invalid URL: %s", c.URL)
	}

	d, err := time.ParseDuration(c.Duration)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", c.Duration, err)
	}
	if d.Milliseconds() <= 0 {
		return fmt.Errorf("duration must be positive, got %s", c.Duration)
	}

	if c.Date != "" && !storage.ValidDate(c.Date) {
		return fmt.Errorf("invalid date %q: use YYYY-MM-DD", c.Date)
	}

	ctx := context.Background()
	if err := applyDenylist(ctx, store, cfg.Capture); err != nil {
		return err
	}

	// The store records whatever it is given, so the daemon's tracking
	// rules are checked here for an explicit error.
	filter := tracker.NewFilter(cfg.Tracking.UntrackedSchemes, store)
	if !filter.Trackable(c.URL) {
		return fmt.Errorf("URL %q is not trackable (browser-internal or excluded domain)", c.URL)
	}

	key := dockey.Resolve(c.URL)
	sess, err := store.RecordSession(ctx, storage.NewSession{
		DocKey:     key,
		Title:      c.Title,
		URL:        c.URL,
		Date:       c.Date,
		DurationMs: d.Milliseconds(),
	})
	if err != nil {
		return fmt.Errorf("recording session: %w", err)
	}

	if c.jsonOutput() {
		return printJSON(map[string]interface{}{
			"id":          sess.ID,
			"doc_key":     sess.DocKey,
			"date":        sess.Date,
			"duration_ms": sess.DurationMs,
			"ts":          sess.Timestamp.UTC().Format(time.RFC3339),
		})
	}

	fmt.Printf("Recorded %s for %s (%s)\n", formatMs(sess.DurationMs), sess.DocKey, sess.Date)
	return nil
}
