package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/runnerr0/dwell/internal/config"
	"github.com/runnerr0/dwell/internal/export"
	"github.com/runnerr0/dwell/internal/storage"
)

// Execute implements the go-flags Commander interface for ExportCommand.
func (c *ExportCommand) Execute(args []string) error {
	f, err := export.ParseFormat(c.Format)
	if err != nil {
		return err
	}
	return c.withStore(func(store *storage.SQLiteStore, _ *config.Config) error {
		return c.executeWithStore(store, f)
	})
}

func (c *ExportCommand) executeWithStore(store *storage.SQLiteStore, f export.Format) error {
	snap, err := export.Collect(context.Background(), store)
	if err != nil {
		return err
	}

	var w io.Writer = os.Stdout
	if c.Out != "" {
		file, err := os.Create(c.Out)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer file.Close()
		w = file
	}

	if err := export.Write(w, snap, f); err != nil {
		return fmt.Errorf("write export: %w", err)
	}

	if c.Out != "" {
		fmt.Fprintf(os.Stderr, "Exported %d documents and %d sessions to %s\n",
			len(snap.Documents), len(snap.Sessions), c.Out)
	}
	return nil
}
