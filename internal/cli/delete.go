package cli

import (
	"context"
	"fmt"

	"github.com/runnerr0/dwell/internal/config"
	"github.com/runnerr0/dwell/internal/storage"
)

// Execute implements the go-flags Commander interface for DeleteCommand.
func (c *DeleteCommand) Execute(args []string) error {
	if c.Key == "" {
		return fmt.Errorf("--key is required for delete command")
	}
	return c.withStore(func(store *storage.SQLiteStore, _ *config.Config) error {
		return c.executeWithStore(store)
	})
}

func (c *DeleteCommand) executeWithStore(store *storage.SQLiteStore) error {
	ctx := context.Background()

	doc, err := store.GetDocument(ctx, c.Key)
	if err != nil {
		return fmt.Errorf("get document: %w", err)
	}
	if doc == nil {
		return fmt.Errorf("document not found: %s", c.Key)
	}

	if !c.Force {
		label := doc.Title
		if label == "" {
			label = doc.DocKey
		}
		prompt := fmt.Sprintf("Delete %q (%s tracked) and all its sessions? [y/N]: ", label, formatMs(doc.TotalTimeMs))
		if !c.confirm(prompt, "y", "yes") {
			fmt.Println("Aborted.")
			return nil
		}
	}

	existed, err := store.DeleteDocument(ctx, c.Key)
	if err != nil {
		return fmt.Errorf("delete failed: %w", err)
	}
	if !existed {
		return fmt.Errorf("document not found: %s", c.Key)
	}

	if c.jsonOutput() {
		return printJSON(map[string]interface{}{
			"deleted": true,
			"doc_key": c.Key,
		})
	}
	fmt.Printf("Deleted %s.\n", c.Key)
	return nil
}
