package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/runnerr0/dwell/internal/config"
	"github.com/runnerr0/dwell/internal/dockey"
	"github.com/runnerr0/dwell/internal/stats"
	"github.com/runnerr0/dwell/internal/storage"
)

// showJSON is the JSON output structure for the show command.
type showJSON struct {
	Document    storage.Document  `json:"document"`
	Provider    string            `json:"provider"`
	ID          string            `json:"id"`
	Granularity string            `json:"granularity"`
	Breakdown   []stats.Bucket    `json:"breakdown"`
	Sessions    []storage.Session `json:"sessions,omitempty"`
}

// Execute implements the go-flags Commander interface for ShowCommand.
func (c *ShowCommand) Execute(args []string) error {
	if c.Key == "" {
		return fmt.Errorf("--key is required for show command")
	}
	g, err := stats.ParseGranularity(c.By)
	if err != nil {
		return err
	}
	return c.withStore(func(store *storage.SQLiteStore, _ *config.Config) error {
		return c.executeWithStore(store, g)
	})
}

func (c *ShowCommand) executeWithStore(store *storage.SQLiteStore, g stats.Granularity) error {
	ctx := context.Background()

	doc, err := store.GetDocument(ctx, c.Key)
	if err != nil {
		return fmt.Errorf("get document: %w", err)
	}
	if doc == nil {
		return fmt.Errorf("document not found: %s", c.Key)
	}

	sessions, err := store.GetSessionsByDocKey(ctx, c.Key)
	if err != nil {
		return fmt.Errorf("get sessions: %w", err)
	}
	buckets := stats.SortedBuckets(stats.Breakdown(sessions, g))
	provider, id := dockey.Describe(doc.DocKey)

	if c.jsonOutput() {
		out := showJSON{
			Document:    *doc,
			Provider:    provider.Name,
			ID:          id,
			Granularity: string(g),
			Breakdown:   buckets,
		}
		if c.Sessions {
			out.Sessions = sessions
		}
		return printJSON(out)
	}

	title := doc.Title
	if title == "" {
		title = "(untitled)"
	}
	fmt.Printf("%s\n", title)
	fmt.Printf("  Key:         %s\n", doc.DocKey)
	fmt.Printf("  Provider:    %s\n", provider.Name)
	if doc.URL != "" {
		fmt.Printf("  URL:         %s\n", doc.URL)
	}
	fmt.Printf("  Total:       %s\n", formatMs(doc.TotalTimeMs))
	fmt.Printf("  First seen:  %s\n", doc.FirstSeen.Local().Format(time.RFC3339))
	fmt.Printf("  Last seen:   %s\n", doc.LastSeen.Local().Format(time.RFC3339))

	fmt.Println()
	fmt.Printf("By %s:\n", g)
	if len(buckets) == 0 {
		fmt.Println("  (no sessions within retention)")
	}
	for _, b := range buckets {
		fmt.Printf("  %-12s %s\n", b.Key, formatMs(b.DurationMs))
	}

	if c.Sessions && len(sessions) > 0 {
		fmt.Println()
		fmt.Println("Sessions:")
		for _, s := range sessions {
			fmt.Printf("  #%-6d %s  %8s  %s\n", s.ID, s.Date, formatMs(s.DurationMs), s.Timestamp.Local().Format("15:04:05"))
		}
	}

	return nil
}
