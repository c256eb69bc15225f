package storage

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestMigrationRunner_FreshDB(t *testing.T) {
	db := openTestDB(t)
	runner := NewMigrationRunner(db)

	err := runner.Run()
	require.NoError(t, err)

	expectedTables := []string{
		"documents",
		"sessions",
		"exclusions",
		"audit_log",
		"schema_migrations",
	}
	for _, table := range expectedTables {
		var name string
		err := db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		require.NoError(t, err, "table %s should exist", table)
		assert.Equal(t, table, name)
	}
}

func TestMigrationRunner_IndexesCreated(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, NewMigrationRunner(db).Run())

	expectedIndexes := []string{
		"idx_sessions_doc_key",
		"idx_sessions_date",
		"idx_documents_last_seen",
		"idx_exclusions_rule",
		"idx_audit_log_ts",
		"idx_audit_log_action",
	}
	for _, idx := range expectedIndexes {
		var name string
		err := db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='index' AND name=?", idx,
		).Scan(&name)
		require.NoError(t, err, "index %s should exist", idx)
		assert.Equal(t, idx, name)
	}
}

func TestMigrationRunner_DefaultExclusions(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, NewMigrationRunner(db).Run())

	var count int
	err := db.QueryRow("SELECT COUNT(*) FROM exclusions WHERE is_default = 1").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	var domainCount, regexCount int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM exclusions WHERE rule_type = 'domain'").Scan(&domainCount))
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM exclusions WHERE rule_type = 'regex'").Scan(&regexCount))
	assert.Equal(t, 3, domainCount)
	assert.Equal(t, 0, regexCount)
}

func TestMigrationRunner_Idempotent(t *testing.T) {
	db := openTestDB(t)
	runner := NewMigrationRunner(db)

	require.NoError(t, runner.Run())
	require.NoError(t, runner.Run())

	var count int
	err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count, "should have exactly 1 migration recorded after double-run")

	err = db.QueryRow("SELECT COUNT(*) FROM exclusions WHERE is_default = 1").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 3, count, "exclusions should not be duplicated on re-run")

	v, err := runner.Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestMigrationRunner_WALMode(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, NewMigrationRunner(db).Run())

	var journalMode string
	err := db.QueryRow("PRAGMA journal_mode").Scan(&journalMode)
	require.NoError(t, err)
	// In-memory databases report "memory" even after WAL is requested.
	assert.Contains(t, []string{"wal", "memory"}, journalMode)
}

func TestMigrationRunner_EmptyJournalModeSkipsPragma(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, NewMigrationRunner(db).WithJournalMode("").Run())

	var journalMode string
	require.NoError(t, db.QueryRow("PRAGMA journal_mode").Scan(&journalMode))
	assert.Equal(t, "memory", journalMode)
}

func TestMigrationRunner_SessionDurationCheck(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, NewMigrationRunner(db).Run())

	_, err := db.Exec(
		"INSERT INTO sessions (doc_key, date, duration_ms, ts) VALUES ('k', '2024-01-01', 0, '2024-01-01T00:00:00.000Z')",
	)
	assert.Error(t, err, "zero-duration sessions must be rejected by the schema")

	_, err = db.Exec(
		"INSERT INTO sessions (doc_key, date, duration_ms, ts) VALUES ('k', '2024-01-01', 1000, '2024-01-01T00:00:00.000Z')",
	)
	assert.NoError(t, err)
}

func TestMigrationRunner_RejectsUnknownJournalMode(t *testing.T) {
	for _, mode := range []string{"wall", "wal; DROP TABLE schema_migrations"} {
		db := openTestDB(t)
		err := NewMigrationRunner(db).WithJournalMode(mode).Run()
		require.Error(t, err, mode)
		assert.Contains(t, err.Error(), "unsupported mode")

		var n int
		require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE name = 'schema_migrations'").Scan(&n))
		assert.Zero(t, n, "nothing runs after a rejected mode")
	}
}
