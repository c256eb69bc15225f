package cli

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeleteForce(t *testing.T) {
	store := setupStore(t)
	recordSession(t, store, "gdoc_abc", "Plan", daysAgo(0), 5_000)
	recordSession(t, store, "gdoc_keep", "Keep", daysAgo(0), 5_000)

	cmd := &DeleteCommand{Key: "gdoc_abc", Force: true, cmdBase: testBase(t, store)}
	output := captureOutput(t, func() {
		require.NoError(t, cmd.executeWithStore(store))
	})
	assert.Contains(t, output, "Deleted gdoc_abc.")

	ctx := context.Background()
	doc, err := store.GetDocument(ctx, "gdoc_abc")
	require.NoError(t, err)
	assert.Nil(t, doc)
	sessions, err := store.GetSessionsByDocKey(ctx, "gdoc_abc")
	require.NoError(t, err)
	assert.Empty(t, sessions)

	kept, err := store.GetDocument(ctx, "gdoc_keep")
	require.NoError(t, err)
	assert.NotNil(t, kept)
}

func TestDeleteConfirmation(t *testing.T) {
	store := setupStore(t)
	recordSession(t, store, "gdoc_abc", "Plan", daysAgo(0), 5_000)

	cmd := &DeleteCommand{Key: "gdoc_abc", cmdBase: testBase(t, store)}
	cmd.stdin = strings.NewReader("n\n")
	output := captureOutput(t, func() {
		require.NoError(t, cmd.executeWithStore(store))
	})
	assert.Contains(t, output, `Delete "Plan" (5s tracked)`)
	assert.Contains(t, output, "Aborted.")

	doc, err := store.GetDocument(context.Background(), "gdoc_abc")
	require.NoError(t, err)
	assert.NotNil(t, doc)

	cmd.stdin = strings.NewReader("yes\n")
	captureOutput(t, func() {
		require.NoError(t, cmd.executeWithStore(store))
	})
	doc, err = store.GetDocument(context.Background(), "gdoc_abc")
	require.NoError(t, err)
	assert.Nil(t, doc)
}

func TestDeleteNotFound(t *testing.T) {
	store := setupStore(t)
	cmd := &DeleteCommand{Key: "gdoc_missing", Force: true, cmdBase: testBase(t, store)}

	err := cmd.executeWithStore(store)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "document not found")
}

func TestDeleteJSON(t *testing.T) {
	store := setupStore(t)
	recordSession(t, store, "gdoc_abc", "Plan", daysAgo(0), 5_000)

	cmd := &DeleteCommand{Key: "gdoc_abc", Force: true, cmdBase: testBase(t, store)}
	cmd.globals.JSON = true
	output := captureOutput(t, func() {
		require.NoError(t, cmd.executeWithStore(store))
	})

	var result map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(output), &result))
	assert.Equal(t, true, result["deleted"])
	assert.Equal(t, "gdoc_abc", result["doc_key"])
}
