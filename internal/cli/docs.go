package cli

import (
	"context"
	"fmt"

	"github.com/runnerr0/dwell/internal/config"
	"github.com/runnerr0/dwell/internal/stats"
	"github.com/runnerr0/dwell/internal/storage"
)

// Execute implements the go-flags Commander interface for DocsCommand.
func (c *DocsCommand) Execute(args []string) error {
	by, err := stats.ParseSort(c.Sort)
	if err != nil {
		return err
	}
	if c.Limit < 0 {
		return fmt.Errorf("--limit must be >= 0")
	}
	return c.withStore(func(store *storage.SQLiteStore, _ *config.Config) error {
		return c.executeWithStore(store, by)
	})
}

func (c *DocsCommand) executeWithStore(store *storage.SQLiteStore, by stats.SortBy) error {
	docs, err := store.GetAllDocuments(context.Background())
	if err != nil {
		return fmt.Errorf("list documents: %w", err)
	}

	docs = stats.SortDocuments(stats.FilterDocuments(docs, c.Query), by)
	if c.Limit > 0 && len(docs) > c.Limit {
		docs = docs[:c.Limit]
	}

	if c.jsonOutput() {
		return printJSON(docs)
	}

	if len(docs) == 0 {
		if c.Query != "" {
			fmt.Printf("No documents matching %q.\n", c.Query)
		} else {
			fmt.Println("No documents tracked yet.")
		}
		return nil
	}

	fmt.Printf("%-32s %10s  %-16s %s\n", "KEY", "TIME", "LAST SEEN", "TITLE")
	for _, d := range docs {
		fmt.Printf("%-32s %10s  %-16s %s\n",
			truncate(d.DocKey, 32),
			formatMs(d.TotalTimeMs),
			d.LastSeen.Local().Format("2006-01-02 15:04"),
			truncate(d.Title, 60),
		)
	}
	return nil
}
