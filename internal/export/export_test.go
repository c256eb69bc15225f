package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/dwell/internal/storage"
)

type fakeSource struct {
	docs     []storage.Document
	sessions []storage.Session
	err      error
}

func (f *fakeSource) ReadAll(ctx context.Context) ([]storage.Document, []storage.Session, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	return f.docs, f.sessions, nil
}

func sampleSource() *fakeSource {
	ts := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	return &fakeSource{
		docs: []storage.Document{
			{DocKey: "gdoc_abc", Title: "Plan, v2", URL: "https://docs.google.com/document/d/abc", TotalTimeMs: 3000},
			{DocKey: "claude_xyz", Title: "Chat", URL: "https://claude.ai/chat/xyz", TotalTimeMs: 1000},
		},
		sessions: []storage.Session{
			{ID: 2, DocKey: "gdoc_abc", Date: "2024-01-01", DurationMs: 2000, Timestamp: ts},
			{ID: 1, DocKey: "gdoc_abc", Date: "2024-01-01", DurationMs: 1000, Timestamp: ts},
			{ID: 3, DocKey: "claude_xyz", Date: "2024-01-02", DurationMs: 1000, Timestamp: ts},
		},
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)

	f, err = ParseFormat("CSV")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)
	assert.Contains(t, f.ContentType(), "text/csv")

	_, err = ParseFormat("xml")
	assert.Error(t, err)
}

func TestCollect_Orders(t *testing.T) {
	snap, err := Collect(context.Background(), sampleSource())
	require.NoError(t, err)

	assert.Equal(t, "claude_xyz", snap.Documents[0].DocKey)
	assert.Equal(t, []int64{1, 2, 3}, []int64{snap.Sessions[0].ID, snap.Sessions[1].ID, snap.Sessions[2].ID})
	assert.False(t, snap.ExportedAt.IsZero())
}

func TestCollect_Error(t *testing.T) {
	_, err := Collect(context.Background(), &fakeSource{err: errors.New("boom")})
	assert.ErrorContains(t, err, "read store")
}

func TestWrite_JSON(t *testing.T) {
	snap, err := Collect(context.Background(), sampleSource())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, snap, FormatJSON))

	var decoded struct {
		Documents []map[string]interface{} `json:"documents"`
		Sessions  []map[string]interface{} `json:"sessions"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Len(t, decoded.Documents, 2)
	assert.Len(t, decoded.Sessions, 3)
	assert.Equal(t, float64(3000), decoded.Documents[1]["totalTimeMs"])
}

func TestWrite_CSV(t *testing.T) {
	snap, err := Collect(context.Background(), sampleSource())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, snap, FormatCSV))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, CSVHeader, rows[0])
	assert.Equal(t, []string{"1", "2024-01-01", "gdoc_abc", "Plan, v2", "https://docs.google.com/document/d/abc", "1000", "2024-01-01T10:00:00.000Z"}, rows[1])
	assert.Equal(t, "Chat", rows[3][3])
}

func TestWrite_CSVKeepsMilliseconds(t *testing.T) {
	ts := time.Date(2024, 1, 1, 10, 0, 0, 250*int(time.Millisecond), time.UTC)
	snap := &Snapshot{
		Documents: []storage.Document{{DocKey: "gdoc_abc"}},
		Sessions:  []storage.Session{{ID: 1, DocKey: "gdoc_abc", Date: "2024-01-01", DurationMs: 1000, Timestamp: ts}},
	}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, snap, FormatCSV))
	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "2024-01-01T10:00:00.250Z", rows[1][6])

	parsed, err := time.Parse(time.RFC3339Nano, rows[1][6])
	require.NoError(t, err)
	assert.True(t, parsed.Equal(ts))
}

func TestWrite_CSVEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, &Snapshot{}, FormatCSV))
	assert.Equal(t, "session_id,date,doc_key,title,url,duration_ms,timestamp\n", buf.String())
}
