// Package bridge is the daemon's network surface: a WebSocket feed that
// receives tab state from the browser extension, and a small HTTP API the
// popup and dashboard read from.
package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/runnerr0/dwell/internal/logging"
	"github.com/runnerr0/dwell/internal/stats"
	"github.com/runnerr0/dwell/internal/storage"
	"github.com/runnerr0/dwell/internal/tracker"
)

// Connection defaults.
const (
	DefaultMaxMessageBytes = 64 * 1024

	sendBufferSize = 16
	pingInterval   = 30 * time.Second
	readTimeout    = 60 * time.Second
	writeTimeout   = 10 * time.Second

	// Per-connection inbound message budget.
	messagesPerSecond = 50
	messageBurst      = 20
)

// TabEvents receives discrete tab events, normally the Poller.
type TabEvents interface {
	TabActivated(tabID int)
	TabRemoved(tabID int)
}

// Options configures a Server.
type Options struct {
	// Addr is the listen address, e.g. 127.0.0.1:8733.
	Addr string

	// AuthToken, when set, must be presented as a bearer token on /api
	// and /ws.
	AuthToken string

	// MaxMessageBytes caps one inbound WebSocket message.
	MaxMessageBytes int64

	Store storage.Store
	Tabs  *tracker.TabState

	// Events may be nil.
	Events TabEvents

	// PollerStats, when set, is reported by /api/status.
	PollerStats func() tracker.PollerStats

	Logger *slog.Logger
}

// Server serves the tab feed and the HTTP API.
type Server struct {
	opts     Options
	store    storage.Store
	tabs     *tracker.TabState
	agg      *stats.Aggregator
	log      *slog.Logger
	upgrader websocket.Upgrader
	started  time.Time

	mu         sync.RWMutex
	clients    map[*Client]struct{}
	httpServer *http.Server
	listener   net.Listener
}

// NewServer creates a Server. Call StartAsync to begin listening, or use
// Handler directly.
func NewServer(opts Options) *Server {
	if opts.MaxMessageBytes <= 0 {
		opts.MaxMessageBytes = DefaultMaxMessageBytes
	}
	if opts.Tabs == nil {
		opts.Tabs = tracker.NewTabState()
	}
	return &Server{
		opts:    opts,
		store:   opts.Store,
		tabs:    opts.Tabs,
		agg:     stats.NewAggregator(opts.Store),
		log:     logging.OrDiscard(opts.Logger).With("component", "bridge"),
		started: time.Now(),
		clients: make(map[*Client]struct{}),
		upgrader: websocket.Upgrader{
			// Browser extensions connect from chrome-extension:// and
			// moz-extension:// origins; access is gated by the bind
			// address and the optional token instead.
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// Handler returns the HTTP handler with every route registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok")) //nolint:errcheck
	})

	mux.Handle("GET /ws", s.requireToken(http.HandlerFunc(s.handleWebSocket)))

	api := http.NewServeMux()
	api.HandleFunc("GET /api/documents", s.handleListDocuments)
	api.HandleFunc("GET /api/documents/{key}", s.handleGetDocument)
	api.HandleFunc("DELETE /api/documents/{key}", s.handleDeleteDocument)
	api.HandleFunc("GET /api/documents/{key}/breakdown", s.handleBreakdown)
	api.HandleFunc("GET /api/documents/{key}/sessions", s.handleSessions)
	api.HandleFunc("GET /api/sessions", s.handleSessionsInRange)
	api.HandleFunc("GET /api/export", s.handleExport)
	api.HandleFunc("GET /api/stats", s.handleStats)
	api.HandleFunc("GET /api/status", s.handleStatus)
	mux.Handle("/api/", s.requireToken(api))

	return mux
}

// StartAsync listens on the configured address and serves in a goroutine.
// The channel receives nil once listening, or the listen error.
func (s *Server) StartAsync() <-chan error {
	errCh := make(chan error, 1)

	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		errCh <- fmt.Errorf("failed to listen on %s: %w", s.opts.Addr, err)
		close(errCh)
		return errCh
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.mu.Lock()
	s.httpServer = srv
	s.listener = ln
	s.mu.Unlock()

	go func() {
		s.log.Info("listening", "addr", ln.Addr().String())
		errCh <- nil
		close(errCh)

		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.log.Error("http server failed", "error", err)
		}
	}()

	return errCh
}

// Addr returns the bound address once started, else the configured one.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.opts.Addr
}

// Shutdown closes all WebSocket clients and stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpServer
	for c := range s.clients {
		c.closeSend()
	}
	s.mu.Unlock()

	s.tabs.Clear()

	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// ClientCount returns the number of connected extension clients.
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

func (s *Server) register(c *Client) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[c] = struct{}{}
	return len(s.clients)
}

// unregister drops c. When the last client leaves, tab state is cleared so
// time stops accumulating.
func (s *Server) unregister(c *Client) int {
	s.mu.Lock()
	delete(s.clients, c)
	n := len(s.clients)
	s.mu.Unlock()

	if n == 0 {
		s.tabs.Clear()
	}
	return n
}
