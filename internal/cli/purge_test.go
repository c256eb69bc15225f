package cli

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPurgeRequiresAll(t *testing.T) {
	cmd := &PurgeCommand{cmdBase: testBase(t, setupStore(t))}
	err := cmd.Execute(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--all")
}

func TestPurgeForce(t *testing.T) {
	store := setupStore(t)
	recordSession(t, store, "gdoc_abc", "Plan", daysAgo(1), 20_000)
	recordSession(t, store, "claude_xyz", "Chat", daysAgo(0), 15_000)

	cmd := &PurgeCommand{All: true, Force: true, cmdBase: testBase(t, store)}
	output := captureOutput(t, func() {
		require.NoError(t, cmd.Execute(nil))
	})

	assert.Contains(t, output, "Purged all data.")
	st, err := store.GetStats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, st.TotalDocuments)
	assert.Zero(t, st.TotalSessions)
}

func TestPurgeConfirmed(t *testing.T) {
	store := setupStore(t)
	recordSession(t, store, "gdoc_abc", "Plan", daysAgo(1), 20_000)

	cmd := &PurgeCommand{All: true, cmdBase: testBase(t, store)}
	cmd.stdin = strings.NewReader("PURGE\n")
	output := captureOutput(t, func() {
		require.NoError(t, cmd.Execute(nil))
	})

	assert.Contains(t, output, "WARNING")
	assert.Contains(t, output, "Purged all data.")
}

func TestPurgeWrongConfirmation(t *testing.T) {
	store := setupStore(t)
	recordSession(t, store, "gdoc_abc", "Plan", daysAgo(1), 20_000)

	cmd := &PurgeCommand{All: true, cmdBase: testBase(t, store)}
	cmd.stdin = strings.NewReader("yes\n")
	var err error
	captureOutput(t, func() {
		err = cmd.Execute(nil)
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "aborted")

	st, err := store.GetStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), st.TotalSessions)
}

func TestPurgeJSON(t *testing.T) {
	store := setupStore(t)
	cmd := &PurgeCommand{All: true, Force: true, cmdBase: testBase(t, store)}
	cmd.globals.JSON = true

	output := captureOutput(t, func() {
		require.NoError(t, cmd.Execute(nil))
	})

	var result map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(output), &result))
	assert.Equal(t, true, result["purged"])
}
