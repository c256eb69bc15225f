package storage

import "time"

// DateLayout is the calendar-date format of Session.Date.
const DateLayout = "2006-01-02"

// Document is the per-document aggregate. TotalTimeMs is a lifetime
// counter: retention removes sessions but never lowers it.
type Document struct {
	DocKey      string    `json:"docKey"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	FirstSeen   time.Time `json:"firstSeen"`
	LastSeen    time.Time `json:"lastSeen"`
	TotalTimeMs int64     `json:"totalTimeMs"`
}

// Session is one recorded interval of active time.
type Session struct {
	ID         int64     `json:"id"`
	DocKey     string    `json:"docKey"`
	Date       string    `json:"date"` // local calendar date, YYYY-MM-DD
	DurationMs int64     `json:"durationMs"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewSession is the input to RecordSession.
type NewSession struct {
	DocKey     string
	Title      string
	URL        string
	Date       string // defaults to today's local date when empty
	DurationMs int64
	Timestamp  time.Time // defaults to time.Now() when zero
}

// Stats holds aggregate statistics about the database.
type Stats struct {
	TotalDocuments int64      `json:"totalDocuments"`
	TotalSessions  int64      `json:"totalSessions"`
	TotalTimeMs    int64      `json:"totalTimeMs"`
	OldestDate     string     `json:"oldestDate,omitempty"`
	NewestDate     string     `json:"newestDate,omitempty"`
	TopDocuments   []Document `json:"topDocuments"`
}

// Exclusion is a rule that keeps a host from being tracked.
type Exclusion struct {
	RuleType  string // "domain" or "regex"
	RuleValue string
	Reason    string
	IsDefault bool
}
