package cli

import (
	"strings"
	"testing"

	goflags "github.com/jessevdk/go-flags"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionFlag(t *testing.T) {
	var err error
	output := captureOutput(t, func() {
		err = RunWithArgs("0.1.0-test", []string{"--version"})
	})

	assert.NoError(t, err)
	assert.Contains(t, output, "dwell 0.1.0-test")
}

func TestVersionOutputFormat(t *testing.T) {
	output := captureOutput(t, func() {
		_ = RunWithArgs("1.2.3", []string{"--version"})
	})

	assert.Equal(t, "dwell 1.2.3", strings.TrimSpace(output))
}

// parseOnly builds a parser whose commands are parsed but not executed.
func parseOnly(t *testing.T, args ...string) *commands {
	t.Helper()
	p, _, c := buildParser("test")
	p.CommandHandler = func(cmd goflags.Commander, args []string) error { return nil }
	_, err := p.ParseArgs(args)
	require.NoError(t, err)
	return c
}

func TestSubcommandsRecognized(t *testing.T) {
	cases := [][]string{
		{"status"},
		{"docs"},
		{"show", "--key", "gdoc_abc"},
		{"record", "--url", "https://example.com", "--duration", "30s"},
		{"resolve", "https://example.com"},
		{"prune"},
		{"delete", "--key", "gdoc_abc"},
		{"purge", "--all"},
		{"export"},
		{"serve"},
	}
	for _, args := range cases {
		t.Run(args[0], func(t *testing.T) {
			parseOnly(t, args...)
		})
	}
}

func TestGlobalFlagsParsed(t *testing.T) {
	parser, globals, _ := buildParser("test")

	output := captureOutput(t, func() {
		_, err := parser.ParseArgs([]string{"--json", "--db-path", "/tmp/x.db", "--verbose", "resolve", "https://claude.ai/chat/abc"})
		require.NoError(t, err)
	})

	assert.True(t, globals.JSON)
	assert.True(t, globals.Verbose)
	assert.Equal(t, "/tmp/x.db", globals.DBPath)
	assert.Contains(t, output, `"doc_key": "claude_abc"`)
}

func TestDocsFlagsParsed(t *testing.T) {
	c := parseOnly(t, "docs", "--sort", "title", "--query", "plan", "--limit", "3")
	assert.Equal(t, "title", c.Docs.Sort)
	assert.Equal(t, "plan", c.Docs.Query)
	assert.Equal(t, 3, c.Docs.Limit)
}

func TestDocsDefaults(t *testing.T) {
	c := parseOnly(t, "docs")
	assert.Equal(t, "recent", c.Docs.Sort)
	assert.Equal(t, 20, c.Docs.Limit)
}

func TestShowFlagsParsed(t *testing.T) {
	c := parseOnly(t, "show", "--key", "gdoc_abc", "--by", "week", "--sessions")
	assert.Equal(t, "gdoc_abc", c.Show.Key)
	assert.Equal(t, "week", c.Show.By)
	assert.True(t, c.Show.Sessions)
}

func TestServeFlagsParsed(t *testing.T) {
	c := parseOnly(t, "serve", "--host", "0.0.0.0", "--port", "9000")
	assert.Equal(t, "0.0.0.0", c.Serve.Host)
	assert.Equal(t, 9000, c.Serve.Port)
}

func TestExportFlagsParsed(t *testing.T) {
	c := parseOnly(t, "export", "--format", "csv", "-o", "out.csv")
	assert.Equal(t, "csv", c.Export.Format)
	assert.Equal(t, "out.csv", c.Export.Out)
}

func TestResolvePositionalArgs(t *testing.T) {
	c := parseOnly(t, "resolve", "https://a.example", "https://b.example")
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, c.Resolve.Args.URLs)
}

func TestShowRequiresKey(t *testing.T) {
	err := RunWithArgs("test", []string{"show"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--key is required")
}

func TestRecordRequiresURL(t *testing.T) {
	err := RunWithArgs("test", []string{"record", "--duration", "30s"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--url is required")
}

func TestRecordRequiresDuration(t *testing.T) {
	err := RunWithArgs("test", []string{"record", "--url", "https://example.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--duration is required")
}

func TestDeleteRequiresKey(t *testing.T) {
	err := RunWithArgs("test", []string{"delete"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--key is required")
}

func TestResolveRequiresURL(t *testing.T) {
	err := RunWithArgs("test", []string{"resolve"})
	assert.Error(t, err)
}

func TestUnknownSubcommand(t *testing.T) {
	err := RunWithArgs("test", []string{"frobnicate"})
	assert.Error(t, err)
}
