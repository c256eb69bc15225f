package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/runnerr0/dwell/internal/config"
	"github.com/runnerr0/dwell/internal/storage"
	"github.com/runnerr0/dwell/internal/tracker"
)

// Execute implements the go-flags Commander interface for PruneCommand.
func (c *PruneCommand) Execute(args []string) error {
	return c.withStore(c.executeWithStore)
}

// retentionDays returns --older-than in whole days, or the configured
// retention when the flag is unset.
func (c *PruneCommand) retentionDays(cfg *config.Config) (int, error) {
	if c.OlderThan == "" {
		return cfg.Retention.Days, nil
	}
	d, err := parseDuration(c.OlderThan)
	if err != nil {
		return 0, err
	}
	days := int(d / (24 * time.Hour))
	if days < 1 {
		return 0, fmt.Errorf("invalid duration: %q (sessions are dated by day; use at least 1d)", c.OlderThan)
	}
	return days, nil
}

func (c *PruneCommand) executeWithStore(store *storage.SQLiteStore, cfg *config.Config) error {
	days, err := c.retentionDays(cfg)
	if err != nil {
		return err
	}

	ctx := context.Background()
	cutoff := tracker.Cutoff(time.Now(), days)
	olderThan := formatDays(days)

	count, err := store.CountOldSessions(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("count sessions: %w", err)
	}

	result := map[string]interface{}{
		"pruned":     count,
		"dry_run":    c.DryRun,
		"older_than": olderThan,
		"cutoff":     cutoff,
	}

	if count == 0 {
		if c.jsonOutput() {
			return printJSON(result)
		}
		fmt.Printf("No sessions to prune (none dated on or before %s).\n", cutoff)
		return nil
	}

	if c.DryRun {
		if c.jsonOutput() {
			return printJSON(result)
		}
		fmt.Printf("[DRY RUN] Would prune %s sessions dated on or before %s (older than %s).\n",
			formatNumber(count), cutoff, olderThan)
		return nil
	}

	if !c.Force {
		prompt := fmt.Sprintf("Prune %s sessions dated on or before %s? Document totals are kept. Proceed? [y/N]: ",
			formatNumber(count), cutoff)
		if !c.confirm(prompt, "y", "yes") {
			fmt.Println("Aborted.")
			return nil
		}
	}

	n, err := store.DeleteOldSessions(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("prune failed: %w", err)
	}

	if c.jsonOutput() {
		result["pruned"] = n
		return printJSON(result)
	}
	fmt.Printf("Pruned %s sessions (older than %s).\n", formatNumber(n), olderThan)
	return nil
}
