package cli

import (
	"io"

	"github.com/runnerr0/dwell/internal/config"
	"github.com/runnerr0/dwell/internal/storage"
)

// GlobalFlags holds flags available to all subcommands.
type GlobalFlags struct {
	Config  string `long:"config" description:"Path to config file" default:""`
	DBPath  string `long:"db-path" description:"Override the SQLite database path"`
	JSON    bool   `long:"json" description:"Output in JSON format"`
	Verbose bool   `long:"verbose" description:"Enable verbose output"`
	Version bool   `long:"version" description:"Show version and exit"`
}

// cmdBase carries what every subcommand shares. cfg, store and stdin are
// injectable for testing; nil means load, open, or use os.Stdin.
type cmdBase struct {
	globals *GlobalFlags
	version string

	cfg   *config.Config
	store *storage.SQLiteStore
	stdin io.Reader
}

// ServeCommand runs the tracking daemon.
type ServeCommand struct {
	Host string `long:"host" description:"Override daemon bind host"`
	Port int    `long:"port" description:"Override daemon port"`

	cmdBase
	ready func(addr string) // called once listening; tests only
}

// StatusCommand shows database statistics and a config summary.
type StatusCommand struct {
	cmdBase
}

// DocsCommand lists tracked documents.
type DocsCommand struct {
	Sort  string `long:"sort" description:"Order: recent | total | title" default:"recent"`
	Query string `long:"query" short:"q" description:"Only documents whose title, URL or key contains this text"`
	Limit int    `long:"limit" description:"Maximum results (0 for all)" default:"20"`

	cmdBase
}

// ShowCommand prints one document with its time breakdown.
type ShowCommand struct {
	Key      string `long:"key" description:"Document key (required)"`
	By       string `long:"by" description:"Breakdown granularity: day | week | month" default:"day"`
	Sessions bool   `long:"sessions" description:"Also list individual sessions"`

	cmdBase
}

// RecordCommand adds a session by hand.
type RecordCommand struct {
	URL      string `long:"url" description:"Document URL (required)"`
	Title    string `long:"title" description:"Document title"`
	Duration string `long:"duration" description:"Active time, e.g. 30s, 5m, 1h30m (required)"`
	Date     string `long:"date" description:"Session date YYYY-MM-DD (default today)"`

	cmdBase
}

// ResolveCommand prints the document key for each URL.
type ResolveCommand struct {
	Args struct {
		URLs []string `positional-arg-name:"URL" required:"1"`
	} `positional-args:"yes"`

	cmdBase
}

// PruneCommand removes sessions past the retention horizon now.
type PruneCommand struct {
	OlderThan string `long:"older-than" description:"Override retention period (e.g., 60d, 8w)"`
	DryRun    bool   `long:"dry-run" description:"Show what would be pruned without deleting"`
	Force     bool   `long:"force" description:"Skip confirmation prompt"`

	cmdBase
}

// DeleteCommand removes one document and all its sessions.
type DeleteCommand struct {
	Key   string `long:"key" description:"Document key (required)"`
	Force bool   `long:"force" description:"Skip confirmation prompt"`

	cmdBase
}

// PurgeCommand deletes ALL dwell data with safety confirmation.
type PurgeCommand struct {
	All   bool `long:"all" description:"Required flag to confirm purge intent"`
	Force bool `long:"force" description:"Skip safety confirmation prompt"`

	cmdBase
}

// ExportCommand writes all documents and sessions.
type ExportCommand struct {
	Format string `long:"format" description:"Output format: json | csv" default:"json"`
	Out    string `long:"out" short:"o" description:"Write to file instead of stdout"`

	cmdBase
}
