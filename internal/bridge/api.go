package bridge

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/runnerr0/dwell/internal/dockey"
	"github.com/runnerr0/dwell/internal/export"
	"github.com/runnerr0/dwell/internal/stats"
	"github.com/runnerr0/dwell/internal/storage"
	"github.com/runnerr0/dwell/internal/tracker"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	var body apiError
	body.Error.Code = code
	body.Error.Message = message
	writeJSON(w, status, body)
}

// extractBearerToken reads "Authorization: Bearer <token>", falling back
// to the token query parameter for WebSocket clients that cannot set
// headers.
func extractBearerToken(r *http.Request) string {
	const bearerPrefix = "Bearer "
	auth := r.Header.Get("Authorization")
	if len(auth) > len(bearerPrefix) {
		prefix := auth[:len(bearerPrefix)]
		if prefix == bearerPrefix || prefix == "bearer " {
			return auth[len(bearerPrefix):]
		}
	}
	return r.URL.Query().Get("token")
}

// requireToken rejects requests without the configured token. With no
// token configured every request passes.
func (s *Server) requireToken(next http.Handler) http.Handler {
	want := s.opts.AuthToken
	if want == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := extractBearerToken(r)
		if got == "" {
			writeError(w, http.StatusUnauthorized, CodeAuthRequired, "missing token")
			return
		}
		if subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
			s.log.Warn("rejected request with invalid token", "path", r.URL.Path)
			writeError(w, http.StatusUnauthorized, CodeAuthInvalid, "invalid token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	by, err := stats.ParseSort(q.Get("sort"))
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, err.Error())
		return
	}

	limit := 0
	if raw := q.Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, CodeInvalidRequest, "limit must be a non-negative integer")
			return
		}
	}

	docs, err := s.store.GetAllDocuments(r.Context())
	if err != nil {
		s.log.Error("list documents failed", "error", err)
		writeError(w, http.StatusInternalServerError, CodeQueryFailed, err.Error())
		return
	}

	docs = stats.SortDocuments(stats.FilterDocuments(docs, q.Get("q")), by)
	if limit > 0 && len(docs) > limit {
		docs = docs[:limit]
	}
	writeJSON(w, http.StatusOK, docs)
}

// documentView adds the resolved provider to a document.
type documentView struct {
	storage.Document
	Provider string `json:"provider"`
	ID       string `json:"id"`
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*storage.Document, bool) {
	key := r.PathValue("key")
	doc, err := s.store.GetDocument(r.Context(), key)
	if err != nil {
		s.log.Error("get document failed", "doc_key", key, "error", err)
		writeError(w, http.StatusInternalServerError, CodeQueryFailed, err.Error())
		return nil, false
	}
	if doc == nil {
		writeError(w, http.StatusNotFound, CodeNotFound, "document not found: "+key)
		return nil, false
	}
	return doc, true
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.lookup(w, r)
	if !ok {
		return
	}
	p, id := dockey.Describe(doc.DocKey)
	writeJSON(w, http.StatusOK, documentView{Document: *doc, Provider: p.Name, ID: id})
}

func (s *Server) handleBreakdown(w http.ResponseWriter, r *http.Request) {
	by := r.URL.Query().Get("by")
	if by == "" {
		by = string(stats.Day)
	}
	g, err := stats.ParseGranularity(by)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, err.Error())
		return
	}

	doc, ok := s.lookup(w, r)
	if !ok {
		return
	}

	breakdown, err := s.agg.TimeBreakdown(r.Context(), doc.DocKey, g)
	if err != nil {
		s.log.Error("breakdown failed", "doc_key", doc.DocKey, "error", err)
		writeError(w, http.StatusInternalServerError, CodeQueryFailed, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, struct {
		DocKey      string         `json:"docKey"`
		Granularity string         `json:"granularity"`
		Buckets     []stats.Bucket `json:"buckets"`
	}{doc.DocKey, string(g), stats.SortedBuckets(breakdown)})
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.lookup(w, r)
	if !ok {
		return
	}
	sessions, err := s.store.GetSessionsByDocKey(r.Context(), doc.DocKey)
	if err != nil {
		s.log.Error("list sessions failed", "doc_key", doc.DocKey, "error", err)
		writeError(w, http.StatusInternalServerError, CodeQueryFailed, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

// handleSessionsInRange serves GET /api/sessions?start=YYYY-MM-DD&end=YYYY-MM-DD.
// A missing end means the same day as start.
func (s *Server) handleSessionsInRange(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, end := q.Get("start"), q.Get("end")
	if end == "" {
		end = start
	}
	if !storage.ValidDate(start) || !storage.ValidDate(end) {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "start and end must be YYYY-MM-DD dates")
		return
	}

	sessions, err := s.store.GetSessionsByDateRange(r.Context(), start, end)
	if err != nil {
		s.log.Error("list sessions in range failed", "start", start, "end", end, "error", err)
		writeError(w, http.StatusInternalServerError, CodeQueryFailed, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	existed, err := s.store.DeleteDocument(r.Context(), key)
	if err != nil {
		s.log.Error("delete document failed", "doc_key", key, "error", err)
		writeError(w, http.StatusInternalServerError, CodeQueryFailed, err.Error())
		return
	}
	if !existed {
		writeError(w, http.StatusNotFound, CodeNotFound, "document not found: "+key)
		return
	}
	s.log.Info("deleted document", "doc_key", key)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	f, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, err.Error())
		return
	}

	snap, err := export.Collect(r.Context(), s.store)
	if err != nil {
		s.log.Error("export failed", "error", err)
		writeError(w, http.StatusInternalServerError, CodeQueryFailed, err.Error())
		return
	}

	w.Header().Set("Content-Type", f.ContentType())
	w.Header().Set("Content-Disposition", `attachment; filename="dwell-export.`+string(f)+`"`)
	if err := export.Write(w, snap, f); err != nil {
		s.log.Error("write export failed", "error", err)
	}
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.store.GetStats(r.Context())
	if err != nil {
		s.log.Error("stats failed", "error", err)
		writeError(w, http.StatusInternalServerError, CodeQueryFailed, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, st)
}

type statusResponse struct {
	Clients   int                  `json:"clients"`
	UptimeSec int64                `json:"uptimeSec"`
	ActiveTab *tracker.Tab         `json:"activeTab,omitempty"`
	Poller    *tracker.PollerStats `json:"poller,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Clients:   s.ClientCount(),
		UptimeSec: int64(time.Since(s.started) / time.Second),
	}
	if tab, ok, _ := s.tabs.ActiveTab(r.Context()); ok {
		resp.ActiveTab = &tab
	}
	if s.opts.PollerStats != nil {
		ps := s.opts.PollerStats()
		resp.Poller = &ps
	}
	writeJSON(w, http.StatusOK, resp)
}
