package cli

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/dwell/internal/export"
)

func TestExportJSONToStdout(t *testing.T) {
	store := setupStore(t)
	recordSession(t, store, "gdoc_abc", "Plan", "2024-01-01", 5_000)
	recordSession(t, store, "claude_xyz", "Chat", "2024-01-02", 7_000)

	cmd := &ExportCommand{cmdBase: testBase(t, store)}
	output := captureOutput(t, func() {
		require.NoError(t, cmd.executeWithStore(store, export.FormatJSON))
	})

	var snap export.Snapshot
	require.NoError(t, json.Unmarshal([]byte(output), &snap))
	require.Len(t, snap.Documents, 2)
	assert.Equal(t, "claude_xyz", snap.Documents[0].DocKey)
	assert.Len(t, snap.Sessions, 2)
}

func TestExportCSVToFile(t *testing.T) {
	store := setupStore(t)
	recordSession(t, store, "gdoc_abc", "Plan, final", "2024-01-01", 5_000)

	out := filepath.Join(t.TempDir(), "dwell.csv")
	cmd := &ExportCommand{Out: out, cmdBase: testBase(t, store)}
	stdout := captureOutput(t, func() {
		require.NoError(t, cmd.executeWithStore(store, export.FormatCSV))
	})
	assert.Empty(t, stdout)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	records, err := csv.NewReader(strings.NewReader(string(data))).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, export.CSVHeader, records[0])
	assert.Equal(t, "gdoc_abc", records[1][2])
	assert.Equal(t, "Plan, final", records[1][3])
	assert.Equal(t, "5000", records[1][5])
}

func TestExportRejectsUnknownFormat(t *testing.T) {
	cmd := &ExportCommand{Format: "xml", cmdBase: testBase(t, setupStore(t))}
	assert.Error(t, cmd.Execute(nil))
}
