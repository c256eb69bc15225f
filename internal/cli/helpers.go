package cli

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/runnerr0/dwell/internal/config"
	"github.com/runnerr0/dwell/internal/storage"
)

// config returns the injected config, or loads it from --config or the
// default path (writing defaults on first run).
func (b *cmdBase) config() (*config.Config, error) {
	if b.cfg != nil {
		return b.cfg, nil
	}
	var (
		cfg *config.Config
		err error
	)
	if b.globals != nil && b.globals.Config != "" {
		cfg, err = config.Load(b.globals.Config)
	} else {
		cfg, err = config.LoadOrCreate()
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	b.cfg = cfg
	return cfg, nil
}

// dbPath returns --db-path if given, else the configured database file.
func (b *cmdBase) dbPath(cfg *config.Config) (string, error) {
	if b.globals != nil && b.globals.DBPath != "" {
		return b.globals.DBPath, nil
	}
	return cfg.DBPath()
}

// withStore runs fn against the injected store, or opens the configured
// database for the duration of the call.
func (b *cmdBase) withStore(fn func(store *storage.SQLiteStore, cfg *config.Config) error) error {
	cfg, err := b.config()
	if err != nil {
		return err
	}
	if b.store != nil {
		return fn(b.store, cfg)
	}

	path, err := b.dbPath(cfg)
	if err != nil {
		return err
	}
	store, db, err := openStore(path, cfg.Storage.SQLiteJournalMode)
	if err != nil {
		return err
	}
	defer db.Close()
	defer store.Close()

	return fn(store, cfg)
}

// openStore opens the database at dbPath, runs migrations, and returns a
// ready-to-use store and the underlying *sql.DB.
func openStore(dbPath, journalMode string) (*storage.SQLiteStore, *sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}

	runner := storage.NewMigrationRunner(db).WithJournalMode(journalMode)
	if err := runner.Run(); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("run migrations: %w", err)
	}

	store, err := storage.NewSQLiteStore(db)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("create store: %w", err)
	}

	return store, db, nil
}

// applyDenylist adds the configured capture denylist to the store's
// exclusion rules.
func applyDenylist(ctx context.Context, store *storage.SQLiteStore, capture config.CaptureConfig) error {
	for _, d := range capture.DenylistDomains {
		if err := store.AddExclusion(ctx, "domain", strings.ToLower(strings.TrimSpace(d)), "config denylist"); err != nil {
			return fmt.Errorf("denylist domain %q: %w", d, err)
		}
	}
	for _, re := range capture.DenylistRegex {
		if err := store.AddExclusion(ctx, "regex", re, "config denylist"); err != nil {
			return fmt.Errorf("denylist regex %q: %w", re, err)
		}
	}
	return nil
}

func (b *cmdBase) jsonOutput() bool {
	return b.globals != nil && b.globals.JSON
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// confirm prints prompt and reports whether the reply equals want
// (case-insensitive). Any read failure counts as no.
func (b *cmdBase) confirm(prompt string, want ...string) bool {
	in := b.stdin
	if in == nil {
		in = os.Stdin
	}
	fmt.Print(prompt)

	scanner := bufio.NewScanner(in)
	if !scanner.Scan() {
		fmt.Println()
		return false
	}
	reply := strings.TrimSpace(scanner.Text())
	for _, w := range want {
		if strings.EqualFold(reply, w) {
			return true
		}
	}
	return false
}

// parseDuration parses a human-friendly duration string like "30d", "7d", "24h", "2w".
func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, fmt.Errorf("invalid duration: empty string")
	}

	if len(s) < 2 {
		return 0, fmt.Errorf("invalid duration: %q", s)
	}

	suffix := s[len(s)-1]
	numStr := s[:len(s)-1]

	n, err := strconv.Atoi(numStr)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid duration: %q", s)
	}

	switch suffix {
	case 'd':
		return time.Duration(n) * 24 * time.Hour, nil
	case 'h':
		return time.Duration(n) * time.Hour, nil
	case 'w':
		return time.Duration(n) * 7 * 24 * time.Hour, nil
	case 'm':
		return time.Duration(n) * time.Minute, nil
	default:
		return 0, fmt.Errorf("invalid duration: %q (use d, h, w, or m suffix)", s)
	}
}

// formatDays formats a day count like "60 days".
func formatDays(days int) string {
	if days == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", days)
}

// formatMs formats milliseconds of active time like "1h2m3s".
func formatMs(ms int64) string {
	return (time.Duration(ms) * time.Millisecond).Round(time.Second).String()
}

// formatBytes formats a byte count into a human-readable string.
func formatBytes(b int64) string {
	switch {
	case b >= 1<<30:
		return fmt.Sprintf("%.1f GB", float64(b)/float64(1<<30))
	case b >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(b)/float64(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(b)/float64(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}

// formatNumber formats an int64 with comma separators.
func formatNumber(n int64) string {
	s := strconv.FormatInt(n, 10)
	if len(s) <= 3 {
		return s
	}

	var result strings.Builder
	remainder := len(s) % 3
	if remainder > 0 {
		result.WriteString(s[:remainder])
	}
	for i := remainder; i < len(s); i += 3 {
		if i > 0 {
			result.WriteString(",")
		}
		result.WriteString(s[i : i+3])
	}
	return result.String()
}

// truncate shortens s to max runes, marking the cut with "...".
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}
