package cli

import (
	"fmt"

	"github.com/runnerr0/dwell/internal/dockey"
)

type resolveJSON struct {
	URL      string `json:"url"`
	DocKey   string `json:"doc_key"`
	Provider string `json:"provider"`
}

// Execute implements the go-flags Commander interface for ResolveCommand.
// It needs no database.
func (c *ResolveCommand) Execute(args []string) error {
	urls := append(append([]string(nil), c.Args.URLs...), args...)
	if len(urls) == 0 {
		return fmt.Errorf("at least one URL is required")
	}

	out := make([]resolveJSON, 0, len(urls))
	for _, u := range urls {
		key := dockey.Resolve(u)
		p, _ := dockey.Describe(key)
		out = append(out, resolveJSON{URL: u, DocKey: key, Provider: p.Name})
	}

	if c.jsonOutput() {
		return printJSON(out)
	}
	for _, r := range out {
		if len(out) == 1 {
			fmt.Println(r.DocKey)
			continue
		}
		fmt.Printf("%s\t%s\n", r.DocKey, r.URL)
	}
	return nil
}
