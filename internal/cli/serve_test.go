package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/dwell/internal/storage"
)

// startServe runs the serve command on an ephemeral port with fast ticks
// and returns its address.
func startServe(t *testing.T, store *storage.SQLiteStore) string {
	t.Helper()
	cmd := &ServeCommand{cmdBase: testBase(t, store)}
	cmd.cfg.Daemon.Port = 0
	cmd.cfg.Tracking.TickIntervalMs = 10
	cmd.cfg.Tracking.MinRecordSeconds = 1
	cmd.globals.JSON = true

	addrCh := make(chan string, 1)
	cmd.ready = func(addr string) { addrCh <- addr }

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- cmd.run(ctx) }()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-errCh:
			assert.NoError(t, err)
		case <-time.After(10 * time.Second):
			t.Error("serve did not stop")
		}
	})

	select {
	case addr := <-addrCh:
		return addr
	case err := <-errCh:
		t.Fatalf("serve exited early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not become ready")
	}
	return ""
}

func TestServeHealth(t *testing.T) {
	addr := startServe(t, setupStore(t))

	resp, err := http.Get("http://" + addr + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServeRecordsActiveTab(t *testing.T) {
	store := setupStore(t)
	addr := startServe(t, store)

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+addr+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	var hello map[string]interface{}
	require.NoError(t, conn.ReadJSON(&hello))
	assert.Equal(t, "hello", hello["type"])

	msg := `{"type":"tab.state","tab":{"id":7,"url":"https://docs.google.com/document/d/live1/edit","title":"Live doc"}}`
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(msg)))

	require.Eventually(t, func() bool {
		doc, err := store.GetDocument(context.Background(), "gdoc_live1")
		return err == nil && doc != nil && doc.TotalTimeMs >= 1000
	}, 5*time.Second, 50*time.Millisecond)

	resp, err := http.Get(fmt.Sprintf("http://%s/api/status", addr))
	require.NoError(t, err)
	defer resp.Body.Close()

	var status struct {
		Clients   int `json:"clients"`
		ActiveTab *struct {
			ID int `json:"id"`
		} `json:"activeTab"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	assert.Equal(t, 1, status.Clients)
	require.NotNil(t, status.ActiveTab)
	assert.Equal(t, 7, status.ActiveTab.ID)
}
