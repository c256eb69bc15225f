package cli

import (
	"bytes"
	"context"
	"database/sql"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/dwell/internal/config"
	"github.com/runnerr0/dwell/internal/storage"
)

// captureOutput captures stdout during fn execution and returns it as a string.
func captureOutput(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	fn()

	w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	_, _ = io.Copy(&buf, r)
	return buf.String()
}

// setupStore creates a migrated in-memory store.
func setupStore(t *testing.T) *storage.SQLiteStore {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:?_foreign_keys=on")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	runner := storage.NewMigrationRunner(db)
	require.NoError(t, runner.Run())

	store, err := storage.NewSQLiteStore(db)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return store
}

// testBase wires a command to store and a default config whose daemon
// address is never listening.
func testBase(t *testing.T, store *storage.SQLiteStore) cmdBase {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Daemon.Port = 1
	return cmdBase{
		globals: &GlobalFlags{DBPath: filepath.Join(t.TempDir(), "dwell.db")},
		version: "test",
		cfg:     cfg,
		store:   store,
	}
}

// daysAgo returns the local calendar date n days before today.
func daysAgo(n int) string {
	return time.Now().AddDate(0, 0, -n).Format(storage.DateLayout)
}

func recordSession(t *testing.T, store *storage.SQLiteStore, key, title, date string, ms int64) {
	t.Helper()
	_, err := store.RecordSession(context.Background(), storage.NewSession{
		DocKey:     key,
		Title:      title,
		URL:        "https://example.com/" + key,
		Date:       date,
		DurationMs: ms,
	})
	require.NoError(t, err)
}
