package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/runnerr0/dwell/internal/config"
	"github.com/runnerr0/dwell/internal/storage"
)

// statusJSON is the JSON output structure for the status command.
type statusJSON struct {
	Version           string            `json:"version"`
	DatabasePath      string            `json:"database_path"`
	DatabaseSizeBytes int64             `json:"database_size_bytes"`
	TotalDocuments    int64             `json:"total_documents"`
	TotalSessions     int64             `json:"total_sessions"`
	TotalTimeMs       int64             `json:"total_time_ms"`
	OldestSession     string            `json:"oldest_session,omitempty"`
	NewestSession     string            `json:"newest_session,omitempty"`
	RetentionDays     int               `json:"retention_days"`
	ExclusionRules    int               `json:"exclusion_rules"`
	TopDocuments      []topDocumentJSON `json:"top_documents"`
	DaemonAddr        string            `json:"daemon_addr"`
	DaemonRunning     bool              `json:"daemon_running"`
}

type topDocumentJSON struct {
	DocKey      string `json:"doc_key"`
	Title       string `json:"title"`
	TotalTimeMs int64  `json:"total_time_ms"`
}

// Execute implements the go-flags Commander interface for StatusCommand.
func (c *StatusCommand) Execute(args []string) error {
	return c.withStore(c.executeWithStore)
}

// executeWithStore runs status against a provided store (for testing).
func (c *StatusCommand) executeWithStore(store *storage.SQLiteStore, cfg *config.Config) error {
	ctx := context.Background()

	stats, err := store.GetStats(ctx)
	if err != nil {
		return fmt.Errorf("get stats: %w", err)
	}

	dbPath, err := c.dbPath(cfg)
	if err != nil {
		return err
	}
	dbSize := getDatabaseSize(ctx, store, dbPath)

	rules, err := store.ListExclusions(ctx)
	if err != nil {
		return fmt.Errorf("list exclusions: %w", err)
	}

	addr := cfg.Daemon.Addr()
	daemonRunning := checkDaemon(addr)

	if c.jsonOutput() {
		return c.printStatusJSON(stats, cfg, dbPath, dbSize, len(rules), addr, daemonRunning)
	}
	return c.printStatusHuman(stats, cfg, dbPath, dbSize, len(rules), addr, daemonRunning)
}

func (c *StatusCommand) printStatusHuman(stats *storage.Stats, cfg *config.Config, dbPath string, dbSize int64, rules int, addr string, daemonRunning bool) error {
	fmt.Println("dwell status")
	fmt.Println("============")
	fmt.Printf("Version:       %s\n", c.version)
	fmt.Printf("Database:      %s (%s)\n", dbPath, formatBytes(dbSize))
	fmt.Printf("Documents:     %s\n", formatNumber(stats.TotalDocuments))
	fmt.Printf("Sessions:      %s\n", formatNumber(stats.TotalSessions))
	fmt.Printf("Active time:   %s\n", formatMs(stats.TotalTimeMs))

	if stats.TotalSessions > 0 {
		fmt.Printf("Oldest:        %s\n", stats.OldestDate)
		fmt.Printf("Newest:        %s\n", stats.NewestDate)
	}

	fmt.Printf("Retention:     %s\n", formatDays(cfg.Retention.Days))
	fmt.Printf("Exclusions:    %d rules\n", rules)

	if len(stats.TopDocuments) > 0 {
		fmt.Println()
		fmt.Println("Top Documents:")
		for _, d := range stats.TopDocuments {
			label := d.Title
			if label == "" {
				label = d.DocKey
			}
			fmt.Printf("  %-40s %s\n", truncate(label, 40), formatMs(d.TotalTimeMs))
		}
	}

	fmt.Println()
	if daemonRunning {
		fmt.Printf("Daemon:        running (%s)\n", addr)
	} else {
		fmt.Println("Daemon:        not running")
	}

	return nil
}

func (c *StatusCommand) printStatusJSON(stats *storage.Stats, cfg *config.Config, dbPath string, dbSize int64, rules int, addr string, daemonRunning bool) error {
	out := statusJSON{
		Version:           c.version,
		DatabasePath:      dbPath,
		DatabaseSizeBytes: dbSize,
		TotalDocuments:    stats.TotalDocuments,
		TotalSessions:     stats.TotalSessions,
		TotalTimeMs:       stats.TotalTimeMs,
		OldestSession:     stats.OldestDate,
		NewestSession:     stats.NewestDate,
		RetentionDays:     cfg.Retention.Days,
		ExclusionRules:    rules,
		TopDocuments:      make([]topDocumentJSON, len(stats.TopDocuments)),
		DaemonAddr:        addr,
		DaemonRunning:     daemonRunning,
	}

	for i, d := range stats.TopDocuments {
		out.TopDocuments[i] = topDocumentJSON{DocKey: d.DocKey, Title: d.Title, TotalTimeMs: d.TotalTimeMs}
	}

	return printJSON(out)
}

// getDatabaseSize returns the database file size in bytes.
// For on-disk databases, it uses os.Stat. For in-memory databases,
// it asks SQLite for page_count * page_size.
func getDatabaseSize(ctx context.Context, store *storage.SQLiteStore, dbPath string) int64 {
	if info, err := os.Stat(dbPath); err == nil {
		return info.Size()
	}
	size, err := store.SizeBytes(ctx)
	if err != nil {
		return 0
	}
	return size
}

// checkDaemon attempts an HTTP GET to the daemon's health endpoint.
// Returns true if the daemon responds within 1 second.
func checkDaemon(addr string) bool {
	client := &http.Client{Timeout: 1 * time.Second}
	resp, err := client.Get("http://" + addr + "/health")
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
