package cli

import (
	"fmt"
	"os"

	goflags "github.com/jessevdk/go-flags"
)

// commands holds references to all subcommand structs for inspection/testing.
type commands struct {
	Serve   *ServeCommand
	Status  *StatusCommand
	Docs    *DocsCommand
	Show    *ShowCommand
	Record  *RecordCommand
	Resolve *ResolveCommand
	Prune   *PruneCommand
	Delete  *DeleteCommand
	Purge   *PurgeCommand
	Export  *ExportCommand
}

// buildParser constructs the go-flags parser with all subcommands registered.
func buildParser(version string) (*goflags.Parser, *GlobalFlags, *commands) {
	var globals GlobalFlags

	parser := goflags.NewParser(&globals, goflags.Default)
	parser.Name = "dwell"
	parser.LongDescription = "Local time tracking for the documents and chats you work in."

	base := func() cmdBase { return cmdBase{globals: &globals, version: version} }
	cmds := &commands{
		Serve:   &ServeCommand{cmdBase: base()},
		Status:  &StatusCommand{cmdBase: base()},
		Docs:    &DocsCommand{cmdBase: base()},
		Show:    &ShowCommand{cmdBase: base()},
		Record:  &RecordCommand{cmdBase: base()},
		Resolve: &ResolveCommand{cmdBase: base()},
		Prune:   &PruneCommand{cmdBase: base()},
		Delete:  &DeleteCommand{cmdBase: base()},
		Purge:   &PurgeCommand{cmdBase: base()},
		Export:  &ExportCommand{cmdBase: base()},
	}

	parser.AddCommand("serve", "Run the tracking daemon", "Run the tab poller, retention sweeper and browser bridge until interrupted.", cmds.Serve)
	parser.AddCommand("status", "Show database statistics", "Show totals, date range, retention and the most-used documents.", cmds.Status)
	parser.AddCommand("docs", "List tracked documents", "List tracked documents, sorted and optionally filtered.", cmds.Docs)
	parser.AddCommand("show", "Show one document", "Show one document with its time broken down by day, week or month.", cmds.Show)
	parser.AddCommand("record", "Record a session by hand", "Record active time on a URL without the browser extension.", cmds.Record)
	parser.AddCommand("resolve", "Print document keys for URLs", "Print the document key each URL resolves to.", cmds.Resolve)
	parser.AddCommand("prune", "Apply retention now", "Delete sessions older than the retention period. Document totals are kept.", cmds.Prune)
	parser.AddCommand("delete", "Delete one document", "Delete one document and all of its sessions.", cmds.Delete)
	parser.AddCommand("purge", "Delete ALL dwell data", "Delete ALL dwell data. Destructive operation with safety prompt.", cmds.Purge)
	parser.AddCommand("export", "Export documents and sessions", "Export all documents and sessions as JSON or CSV.", cmds.Export)

	return parser, &globals, cmds
}

// Run is the main entry point for the dwell CLI using os.Args.
func Run(version string) error {
	return RunWithArgs(version, nil)
}

// RunWithArgs parses the given args (or os.Args if nil) and executes the matched subcommand.
func RunWithArgs(version string, args []string) error {
	// Handle --version before parser (go-flags requires a subcommand, but
	// --version is valid without one).
	checkArgs := args
	if checkArgs == nil {
		checkArgs = os.Args[1:]
	}
	for _, arg := range checkArgs {
		if arg == "--version" {
			fmt.Printf("dwell %s\n", version)
			return nil
		}
		if arg == "--" {
			break
		}
	}

	parser, _, _ := buildParser(version)

	var err error
	if args != nil {
		_, err = parser.ParseArgs(args)
	} else {
		_, err = parser.Parse()
	}

	if err != nil {
		if flagsErr, ok := err.(*goflags.Error); ok {
			if flagsErr.Type == goflags.ErrHelp {
				return nil
			}
		}
		return err
	}

	return nil
}
