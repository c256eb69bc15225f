package storage

import (
	"context"
	"database/sql"
)

// migrateV001 creates the documents aggregate, the session ledger, the
// exclusion rules and the audit log.
func migrateV001(ctx context.Context, tx *sql.Tx) error {
	stmts := []string{
		// ── Tables ──────────────────────────────────────────────

		`CREATE TABLE IF NOT EXISTS documents (
			doc_key       TEXT PRIMARY KEY,
			title         TEXT NOT NULL DEFAULT '',
			url           TEXT NOT NULL DEFAULT '',
			first_seen    DATETIME NOT NULL,
			last_seen     DATETIME NOT NULL,
			total_time_ms INTEGER NOT NULL DEFAULT 0 CHECK (total_time_ms >= 0)
		)`,

		// doc_key is a logical reference only; retention deletes sessions
		// without touching documents.
		`CREATE TABLE IF NOT EXISTS sessions (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			doc_key     TEXT NOT NULL,
			date        TEXT NOT NULL,
			duration_ms INTEGER NOT NULL CHECK (duration_ms > 0),
			ts          DATETIME NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS exclusions (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			rule_type  TEXT NOT NULL CHECK (rule_type IN ('domain', 'regex')),
			rule_value TEXT NOT NULL,
			reason     TEXT NOT NULL DEFAULT '',
			is_default BOOLEAN NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(rule_type, rule_value)
		)`,

		`CREATE TABLE IF NOT EXISTS audit_log (
			id      INTEGER PRIMARY KEY AUTOINCREMENT,
			action  TEXT NOT NULL,
			detail  TEXT NOT NULL DEFAULT '',
			doc_key TEXT,
			ts      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		// ── Indexes ────────────────────────────────────────────

		`CREATE INDEX IF NOT EXISTS idx_sessions_doc_key      ON sessions(doc_key)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_date         ON sessions(date)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_last_seen   ON documents(last_seen)`,
		`CREATE INDEX IF NOT EXISTS idx_exclusions_rule       ON exclusions(rule_type, rule_value)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_log_ts          ON audit_log(ts)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_log_action      ON audit_log(action)`,
	}

	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}

	return seedDefaultExclusions(ctx, tx)
}

// seedDefaultExclusions inserts browser-owned hosts that serve store and
// new-tab pages over https. Other hosts are opted out through the capture
// denylist. Uses INSERT OR IGNORE so re-running is safe.
func seedDefaultExclusions(ctx context.Context, tx *sql.Tx) error {
	type rule struct {
		RuleType  string
		RuleValue string
		Reason    string
	}

	defaults := []rule{
		{"domain", "newtab", "Browser page"},
		{"domain", "chromewebstore.google.com", "Browser page"},
		{"domain", "addons.mozilla.org", "Browser page"},
	}

	const insertSQL = `INSERT OR IGNORE INTO exclusions (rule_type, rule_value, reason, is_default) VALUES (?, ?, ?, 1)`

	for _, r := range defaults {
		if _, err := tx.ExecContext(ctx, insertSQL, r.RuleType, r.RuleValue, r.Reason); err != nil {
			return err
		}
	}

	return nil
}
