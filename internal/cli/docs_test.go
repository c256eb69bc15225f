package cli

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/dwell/internal/stats"
	"github.com/runnerr0/dwell/internal/storage"
)

func TestDocsEmpty(t *testing.T) {
	store := setupStore(t)
	cmd := &DocsCommand{Limit: 20, cmdBase: testBase(t, store)}

	output := captureOutput(t, func() {
		require.NoError(t, cmd.executeWithStore(store, stats.SortRecent))
	})
	assert.Contains(t, output, "No documents tracked yet.")
}

func TestDocsSortedByTotal(t *testing.T) {
	store := setupStore(t)
	recordSession(t, store, "gdoc_small", "Small", daysAgo(0), 1_000)
	recordSession(t, store, "gdoc_big", "Big", daysAgo(1), 60_000)

	cmd := &DocsCommand{Limit: 20, cmdBase: testBase(t, store)}
	output := captureOutput(t, func() {
		require.NoError(t, cmd.executeWithStore(store, stats.SortTotal))
	})

	assert.Contains(t, output, "KEY")
	assert.Contains(t, output, "1m0s")
	assert.Less(t, strings.Index(output, "gdoc_big"), strings.Index(output, "gdoc_small"))
}

func TestDocsQueryAndLimit(t *testing.T) {
	store := setupStore(t)
	recordSession(t, store, "gdoc_a", "Budget 2024", daysAgo(0), 1_000)
	recordSession(t, store, "gdoc_b", "Budget 2023", daysAgo(0), 2_000)
	recordSession(t, store, "gdoc_c", "Roadmap", daysAgo(0), 3_000)

	cmd := &DocsCommand{Query: "budget", Limit: 1, cmdBase: testBase(t, store)}
	cmd.globals.JSON = true

	output := captureOutput(t, func() {
		require.NoError(t, cmd.executeWithStore(store, stats.SortTitle))
	})

	var docs []storage.Document
	require.NoError(t, json.Unmarshal([]byte(output), &docs))
	require.Len(t, docs, 1)
	assert.Equal(t, "Budget 2023", docs[0].Title)
}

func TestDocsNoMatch(t *testing.T) {
	store := setupStore(t)
	recordSession(t, store, "gdoc_a", "Budget", daysAgo(0), 1_000)

	cmd := &DocsCommand{Query: "zebra", Limit: 20, cmdBase: testBase(t, store)}
	output := captureOutput(t, func() {
		require.NoError(t, cmd.executeWithStore(store, stats.SortRecent))
	})
	assert.Contains(t, output, `No documents matching "zebra".`)
}

func TestDocsRejectsBadFlags(t *testing.T) {
	cmd := &DocsCommand{Sort: "size", cmdBase: testBase(t, setupStore(t))}
	assert.Error(t, cmd.Execute(nil))

	cmd = &DocsCommand{Limit: -1, cmdBase: testBase(t, setupStore(t))}
	assert.Error(t, cmd.Execute(nil))
}
