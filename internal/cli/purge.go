package cli

import (
	"context"
	"fmt"

	"github.com/runnerr0/dwell/internal/config"
	"github.com/runnerr0/dwell/internal/storage"
)

// Execute implements the go-flags Commander interface for PurgeCommand.
func (c *PurgeCommand) Execute(args []string) error {
	if !c.All {
		return fmt.Errorf("purge requires --all flag for safety")
	}

	// Confirmation prompt unless --force
	if !c.Force {
		fmt.Println("⚠ WARNING: This will permanently delete ALL dwell data.")
		fmt.Println("  - All tracked documents and their lifetime totals")
		fmt.Println("  - All recorded sessions")
		fmt.Println()
		fmt.Println("This action cannot be undone.")
		fmt.Println()
		if !c.confirm(`Type "PURGE" to confirm: `, "PURGE") {
			return fmt.Errorf("aborted: confirmation text did not match")
		}
	}

	return c.withStore(func(store *storage.SQLiteStore, _ *config.Config) error {
		return c.executeWithStore(store)
	})
}

func (c *PurgeCommand) executeWithStore(store *storage.SQLiteStore) error {
	if err := store.PurgeAll(context.Background()); err != nil {
		return fmt.Errorf("purge failed: %w", err)
	}

	if c.jsonOutput() {
		return printJSON(map[string]interface{}{
			"purged":  true,
			"message": "all data deleted",
		})
	}

	fmt.Println("Purged all data. dwell is empty.")
	return nil
}
