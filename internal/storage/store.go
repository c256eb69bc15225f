package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"
)

// Store defines the session ledger and document aggregate operations.
type Store interface {
	RecordSession(ctx context.Context, in NewSession) (*Session, error)
	GetDocument(ctx context.Context, docKey string) (*Document, error)
	GetAllDocuments(ctx context.Context) ([]Document, error)
	GetSessionsByDocKey(ctx context.Context, docKey string) ([]Session, error)
	GetSessionsByDateRange(ctx context.Context, start, end string) ([]Session, error)
	GetAllSessions(ctx context.Context) ([]Session, error)
	ReadAll(ctx context.Context) ([]Document, []Session, error)
	CountOldSessions(ctx context.Context, cutoff string) (int64, error)
	DeleteOldSessions(ctx context.Context, cutoff string) (int64, error)
	DeleteDocument(ctx context.Context, docKey string) (bool, error)
	PurgeAll(ctx context.Context) error
	GetStats(ctx context.Context) (*Stats, error)
	IsExcluded(host string) bool
	Close() error
}

// TimestampLayout keeps stored instants fixed-width so they sort as text.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// ErrInvalidDate is returned when a date is not in YYYY-MM-DD form.
var ErrInvalidDate = errors.New("date must be YYYY-MM-DD")

// SQLiteStore implements Store backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB

	// Prepared statements
	getDocument      *sql.Stmt
	sessionsByDocKey *sql.Stmt
	sessionsByRange  *sql.Stmt
	countOld         *sql.Stmt

	// Cached exclusion rules, reloaded after AddExclusion.
	exMu             sync.RWMutex
	domainExclusions []string
	regexExclusions  []*regexp.Regexp

	// afterDocumentsRead runs inside ReadAll between its two queries.
	afterDocumentsRead func()
}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

const (
	allDocumentsSQL = `SELECT doc_key, title, url, first_seen, last_seen, total_time_ms FROM documents`
	allSessionsSQL  = `SELECT id, doc_key, date, duration_ms, ts FROM sessions ORDER BY id`
)

// NewSQLiteStore creates a new SQLiteStore from an already-opened and
// migrated database. The pool is capped at one connection: SQLite has a
// single writer, and :memory: databases exist per connection.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}

	if err := s.prepareStatements(); err != nil {
		return nil, storageErr("prepare statements", err)
	}

	if err := s.loadExclusions(context.Background()); err != nil {
		return nil, storageErr("load exclusions", err)
	}

	return s, nil
}

func (s *SQLiteStore) prepareStatements() error {
	var err error

	s.getDocument, err = s.db.Prepare(`
		SELECT doc_key, title, url, first_seen, last_seen, total_time_ms
		FROM documents WHERE doc_key = ?
	`)
	if err != nil {
		return err
	}

	s.sessionsByDocKey, err = s.db.Prepare(`
		SELECT id, doc_key, date, duration_ms, ts
		FROM sessions WHERE doc_key = ? ORDER BY id
	`)
	if err != nil {
		return err
	}

	s.sessionsByRange, err = s.db.Prepare(`
		SELECT id, doc_key, date, duration_ms, ts
		FROM sessions WHERE date >= ? AND date <= ? ORDER BY date, id
	`)
	if err != nil {
		return err
	}

	s.countOld, err = s.db.Prepare(`SELECT COUNT(*) FROM sessions WHERE date <= ?`)
	if err != nil {
		return err
	}

	return nil
}

// parseTimestamp tries several common SQLite timestamp formats.
func parseTimestamp(s string) (time.Time, error) {
	formats := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05.999999999-07:00",
	}
	for _, f := range formats {
		if t, err := time.Parse(f, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse timestamp: %s", s)
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ValidDate reports whether s is a calendar date in YYYY-MM-DD form.
func ValidDate(s string) bool {
	_, err := time.Parse(DateLayout, s)
	return err == nil
}

// RecordSession upserts the document aggregate and appends one session in a
// single transaction. A new document starts at zero and gains DurationMs; an
// existing one has its title, URL and last-seen instant refreshed.
func (s *SQLiteStore) RecordSession(ctx context.Context, in NewSession) (*Session, error) {
	const op = "record session"

	if in.DurationMs <= 0 {
		return nil, storageErr(op, fmt.Errorf("%w: got %d ms", ErrInvalidDuration, in.DurationMs))
	}
	if in.DocKey == "" {
		return nil, storageErr(op, errors.New("empty document key"))
	}

	ts := in.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	date := in.Date
	if date == "" {
		date = ts.Local().Format(DateLayout)
	}
	if !ValidDate(date) {
		return nil, storageErr(op, fmt.Errorf("%w: %q", ErrInvalidDate, date))
	}
	tsFormatted := formatTimestamp(ts)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storageErr(op, fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx, `
		INSERT INTO documents (doc_key, title, url, first_seen, last_seen, total_time_ms)
		VALUES (?, ?, ?, ?, ?, 0)
		ON CONFLICT(doc_key) DO NOTHING`,
		in.DocKey, in.Title, in.URL, tsFormatted, tsFormatted,
	)
	if err != nil {
		return nil, storageErr(op, fmt.Errorf("insert document: %w", err))
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE documents SET
			title = CASE WHEN ? != '' THEN ? ELSE title END,
			url = CASE WHEN ? != '' THEN ? ELSE url END,
			last_seen = ?,
			total_time_ms = total_time_ms + ?
		WHERE doc_key = ?`,
		in.Title, in.Title, in.URL, in.URL, tsFormatted, in.DurationMs, in.DocKey,
	)
	if err != nil {
		return nil, storageErr(op, fmt.Errorf("update document: %w", err))
	}

	res, err := tx.ExecContext(ctx,
		"INSERT INTO sessions (doc_key, date, duration_ms, ts) VALUES (?, ?, ?, ?)",
		in.DocKey, date, in.DurationMs, tsFormatted,
	)
	if err != nil {
		return nil, storageErr(op, fmt.Errorf("insert session: %w", err))
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, storageErr(op, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, storageErr(op, fmt.Errorf("commit: %w", err))
	}

	return &Session{
		ID:         id,
		DocKey:     in.DocKey,
		Date:       date,
		DurationMs: in.DurationMs,
		Timestamp:  ts,
	}, nil
}

// GetDocument returns the document for docKey, or nil if there is none.
func (s *SQLiteStore) GetDocument(ctx context.Context, docKey string) (*Document, error) {
	var d Document
	var firstSeen, lastSeen string

	err := s.getDocument.QueryRowContext(ctx, docKey).Scan(
		&d.DocKey, &d.Title, &d.URL, &firstSeen, &lastSeen, &d.TotalTimeMs,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, storageErr("get document", err)
	}

	d.FirstSeen, _ = parseTimestamp(firstSeen)
	d.LastSeen, _ = parseTimestamp(lastSeen)
	return &d, nil
}

// GetAllDocuments returns every document. Order is unspecified.
func (s *SQLiteStore) GetAllDocuments(ctx context.Context) ([]Document, error) {
	docs, err := scanDocuments(ctx, s.db, allDocumentsSQL)
	return docs, storageErr("get all documents", err)
}

// scanDocuments executes a query on q and scans results into Document slices.
func scanDocuments(ctx context.Context, q queryer, query string, args ...interface{}) ([]Document, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	docs := []Document{}
	for rows.Next() {
		var d Document
		var firstSeen, lastSeen string
		if err := rows.Scan(&d.DocKey, &d.Title, &d.URL, &firstSeen, &lastSeen, &d.TotalTimeMs); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		d.FirstSeen, _ = parseTimestamp(firstSeen)
		d.LastSeen, _ = parseTimestamp(lastSeen)
		docs = append(docs, d)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return docs, nil
}

// GetSessionsByDocKey returns all sessions recorded for docKey.
func (s *SQLiteStore) GetSessionsByDocKey(ctx context.Context, docKey string) ([]Session, error) {
	rows, err := s.sessionsByDocKey.QueryContext(ctx, docKey)
	if err != nil {
		return nil, storageErr("get sessions by key", err)
	}
	sessions, err := scanSessions(rows)
	return sessions, storageErr("get sessions by key", err)
}

// GetSessionsByDateRange returns sessions with start <= date <= end.
func (s *SQLiteStore) GetSessionsByDateRange(ctx context.Context, start, end string) ([]Session, error) {
	const op = "get sessions by date range"

	if !ValidDate(start) || !ValidDate(end) {
		return nil, storageErr(op, fmt.Errorf("%w: %q..%q", ErrInvalidDate, start, end))
	}

	rows, err := s.sessionsByRange.QueryContext(ctx, start, end)
	if err != nil {
		return nil, storageErr(op, err)
	}
	sessions, err := scanSessions(rows)
	return sessions, storageErr(op, err)
}

// GetAllSessions returns the whole ledger ordered by id.
func (s *SQLiteStore) GetAllSessions(ctx context.Context) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx, allSessionsSQL)
	if err != nil {
		return nil, storageErr("get all sessions", err)
	}
	sessions, err := scanSessions(rows)
	return sessions, storageErr("get all sessions", err)
}

// ReadAll returns every document and every session from one read
// transaction. A concurrent RecordSession is seen whole or not at all, so
// each session's document is present and totals match the ledger.
func (s *SQLiteStore) ReadAll(ctx context.Context) ([]Document, []Session, error) {
	const op = "read all"

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, storageErr(op, fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback() //nolint:errcheck

	docs, err := scanDocuments(ctx, tx, allDocumentsSQL)
	if err != nil {
		return nil, nil, storageErr(op, err)
	}
	if s.afterDocumentsRead != nil {
		s.afterDocumentsRead()
	}

	rows, err := tx.QueryContext(ctx, allSessionsSQL)
	if err != nil {
		return nil, nil, storageErr(op, fmt.Errorf("query sessions: %w", err))
	}
	sessions, err := scanSessions(rows)
	if err != nil {
		return nil, nil, storageErr(op, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, storageErr(op, fmt.Errorf("commit: %w", err))
	}
	return docs, sessions, nil
}

// scanSessions drains rows into a Session slice and closes them.
func scanSessions(rows *sql.Rows) ([]Session, error) {
	defer rows.Close()

	sessions := []Session{}
	for rows.Next() {
		var sess Session
		var ts string
		if err := rows.Scan(&sess.ID, &sess.DocKey, &sess.Date, &sess.DurationMs, &ts); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sess.Timestamp, _ = parseTimestamp(ts)
		sessions = append(sessions, sess)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sessions, nil
}

// CountOldSessions counts the sessions DeleteOldSessions would remove.
func (s *SQLiteStore) CountOldSessions(ctx context.Context, cutoff string) (int64, error) {
	if !ValidDate(cutoff) {
		return 0, storageErr("count old sessions", fmt.Errorf("%w: %q", ErrInvalidDate, cutoff))
	}
	var n int64
	if err := s.countOld.QueryRowContext(ctx, cutoff).Scan(&n); err != nil {
		return 0, storageErr("count old sessions", err)
	}
	return n, nil
}

// DeleteOldSessions deletes every session dated on or before cutoff.
// Documents, and their lifetime totals, are left as they are.
func (s *SQLiteStore) DeleteOldSessions(ctx context.Context, cutoff string) (int64, error) {
	const op = "delete old sessions"

	if !ValidDate(cutoff) {
		return 0, storageErr(op, fmt.Errorf("%w: %q", ErrInvalidDate, cutoff))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, storageErr(op, fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx, "DELETE FROM sessions WHERE date <= ?", cutoff)
	if err != nil {
		return 0, storageErr(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, storageErr(op, err)
	}

	if n > 0 {
		if err := audit(ctx, tx, "prune", fmt.Sprintf("cutoff=%s sessions=%d", cutoff, n), ""); err != nil {
			return 0, storageErr(op, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, storageErr(op, fmt.Errorf("commit: %w", err))
	}
	return n, nil
}

// DeleteDocument removes a document and all of its sessions in one
// transaction. It reports whether any row was deleted, so sessions left
// without a document row still count.
func (s *SQLiteStore) DeleteDocument(ctx context.Context, docKey string) (bool, error) {
	const op = "delete document"

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, storageErr(op, fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback() //nolint:errcheck

	sessRes, err := tx.ExecContext(ctx, "DELETE FROM sessions WHERE doc_key = ?", docKey)
	if err != nil {
		return false, storageErr(op, fmt.Errorf("delete sessions: %w", err))
	}
	docRes, err := tx.ExecContext(ctx, "DELETE FROM documents WHERE doc_key = ?", docKey)
	if err != nil {
		return false, storageErr(op, fmt.Errorf("delete document: %w", err))
	}

	sessN, err := sessRes.RowsAffected()
	if err != nil {
		return false, storageErr(op, err)
	}
	docN, err := docRes.RowsAffected()
	if err != nil {
		return false, storageErr(op, err)
	}

	if docN == 0 && sessN == 0 {
		return false, nil
	}

	if err := audit(ctx, tx, "delete_document", fmt.Sprintf("sessions=%d", sessN), docKey); err != nil {
		return false, storageErr(op, err)
	}

	if err := tx.Commit(); err != nil {
		return false, storageErr(op, fmt.Errorf("commit: %w", err))
	}
	return true, nil
}

// PurgeAll deletes all documents and sessions.
func (s *SQLiteStore) PurgeAll(ctx context.Context) error {
	const op = "purge"

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr(op, fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback() //nolint:errcheck

	stmts := []string{
		"DELETE FROM sessions",
		"DELETE FROM documents",
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return storageErr(op, fmt.Errorf("%s: %w", stmt, err))
		}
	}

	if err := audit(ctx, tx, "purge", "all documents and sessions", ""); err != nil {
		return storageErr(op, err)
	}

	return storageErr(op, tx.Commit())
}

// audit appends an entry to audit_log inside tx.
func audit(ctx context.Context, tx *sql.Tx, action, detail, docKey string) error {
	var key interface{}
	if docKey != "" {
		key = docKey
	}
	_, err := tx.ExecContext(ctx,
		"INSERT INTO audit_log (action, detail, doc_key, ts) VALUES (?, ?, ?, ?)",
		action, detail, key, formatTimestamp(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("audit %s: %w", action, err)
	}
	return nil
}

// GetStats returns aggregate statistics about the database.
func (s *SQLiteStore) GetStats(ctx context.Context) (*Stats, error) {
	const op = "get stats"
	stats := &Stats{}

	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(SUM(total_time_ms), 0) FROM documents",
	).Scan(&stats.TotalDocuments, &stats.TotalTimeMs)
	if err != nil {
		return nil, storageErr(op, fmt.Errorf("count documents: %w", err))
	}

	err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sessions").Scan(&stats.TotalSessions)
	if err != nil {
		return nil, storageErr(op, fmt.Errorf("count sessions: %w", err))
	}

	// Oldest and newest (handle empty ledger)
	if stats.TotalSessions > 0 {
		err = s.db.QueryRowContext(ctx, "SELECT MIN(date), MAX(date) FROM sessions").
			Scan(&stats.OldestDate, &stats.NewestDate)
		if err != nil {
			return nil, storageErr(op, fmt.Errorf("session date range: %w", err))
		}
	}

	stats.TopDocuments, err = scanDocuments(ctx, s.db, `
		SELECT doc_key, title, url, first_seen, last_seen, total_time_ms
		FROM documents ORDER BY total_time_ms DESC, doc_key LIMIT 10
	`)
	if err != nil {
		return nil, storageErr(op, fmt.Errorf("top documents: %w", err))
	}

	return stats, nil
}

// SizeBytes reports the database size as page_count * page_size.
func (s *SQLiteStore) SizeBytes(ctx context.Context) (int64, error) {
	var pageCount, pageSize int64
	if err := s.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err != nil {
		return 0, storageErr("size", err)
	}
	if err := s.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize); err != nil {
		return 0, storageErr("size", err)
	}
	return pageCount * pageSize, nil
}

// loadExclusions loads domain and regex exclusion rules from the database.
func (s *SQLiteStore) loadExclusions(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, "SELECT rule_type, rule_value FROM exclusions")
	if err != nil {
		return err
	}
	defer rows.Close()

	var domains []string
	var regexes []*regexp.Regexp
	for rows.Next() {
		var ruleType, ruleValue string
		if err := rows.Scan(&ruleType, &ruleValue); err != nil {
			return err
		}
		switch ruleType {
		case "domain":
			domains = append(domains, strings.ToLower(ruleValue))
		case "regex":
			re, err := regexp.Compile(ruleValue)
			if err != nil {
				continue // skip invalid regex
			}
			regexes = append(regexes, re)
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	s.exMu.Lock()
	s.domainExclusions = domains
	s.regexExclusions = regexes
	s.exMu.Unlock()
	return nil
}

// IsExcluded reports whether host, or a parent domain of it, is blocked by
// an exclusion rule.
func (s *SQLiteStore) IsExcluded(host string) bool {
	host = strings.ToLower(host)

	s.exMu.RLock()
	defer s.exMu.RUnlock()

	for _, d := range s.domainExclusions {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	for _, re := range s.regexExclusions {
		if re.MatchString(host) {
			return true
		}
	}
	return false
}

// AddExclusion stores a rule and refreshes the cache. Adding an existing
// rule is a no-op.
func (s *SQLiteStore) AddExclusion(ctx context.Context, ruleType, ruleValue, reason string) error {
	const op = "add exclusion"

	switch ruleType {
	case "domain":
		if ruleValue == "" {
			return storageErr(op, fmt.Errorf("%w: empty domain", ErrInvalidRule))
		}
	case "regex":
		if _, err := regexp.Compile(ruleValue); err != nil {
			return storageErr(op, fmt.Errorf("%w: %v", ErrInvalidRule, err))
		}
	default:
		return storageErr(op, fmt.Errorf("%w: type %q", ErrInvalidRule, ruleType))
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO exclusions (rule_type, rule_value, reason) VALUES (?, ?, ?)",
		ruleType, ruleValue, reason,
	)
	if err != nil {
		return storageErr(op, err)
	}
	return storageErr(op, s.loadExclusions(ctx))
}

// ListExclusions returns all exclusion rules, defaults first.
func (s *SQLiteStore) ListExclusions(ctx context.Context) ([]Exclusion, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT rule_type, rule_value, reason, is_default FROM exclusions ORDER BY is_default DESC, id",
	)
	if err != nil {
		return nil, storageErr("list exclusions", err)
	}
	defer rows.Close()

	var out []Exclusion
	for rows.Next() {
		var e Exclusion
		if err := rows.Scan(&e.RuleType, &e.RuleValue, &e.Reason, &e.IsDefault); err != nil {
			return nil, storageErr("list exclusions", err)
		}
		out = append(out, e)
	}
	return out, storageErr("list exclusions", rows.Err())
}

// Close releases all prepared statements. The underlying *sql.DB is NOT
// closed; that is the caller's responsibility.
func (s *SQLiteStore) Close() error {
	stmts := []*sql.Stmt{
		s.getDocument, s.sessionsByDocKey, s.sessionsByRange, s.countOld,
	}
	for _, stmt := range stmts {
		if stmt != nil {
			stmt.Close()
		}
	}
	return nil
}
