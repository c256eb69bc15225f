package bridge

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/runnerr0/dwell/internal/tracker"
)

// Client is one connected browser extension.
type Client struct {
	id      string
	conn    *websocket.Conn
	send    chan Outbound
	done    chan struct{}
	once    sync.Once
	server  *Server
	limiter *rate.Limiter
	log     *slog.Logger
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "error", err)
		return
	}

	id := uuid.New().String()
	c := &Client{
		id:      id,
		conn:    conn,
		send:    make(chan Outbound, sendBufferSize),
		done:    make(chan struct{}),
		server:  s,
		limiter: rate.NewLimiter(rate.Limit(messagesPerSecond), messageBurst),
		log:     s.log.With("client_id", id),
	}

	n := s.register(c)
	c.log.Info("extension connected", "clients", n)

	c.send <- Outbound{Type: TypeHello, ClientID: id}

	go c.writePump()
	c.readPump()
}

// closeSend signals writePump to shut down. Safe to call more than once.
func (c *Client) closeSend() {
	c.once.Do(func() {
		close(c.done)
	})
}

func (c *Client) sendMessage(msg Outbound) {
	select {
	case <-c.done:
	case c.send <- msg:
	default:
		c.log.Warn("send buffer full, dropping message", "type", msg.Type)
	}
}

func (c *Client) sendError(code, message string) {
	c.sendMessage(newErrorMessage(code, message))
}

// writePump drains the send channel and pings every pingInterval.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			c.conn.WriteMessage(websocket.CloseMessage, //nolint:errcheck
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case msg := <-c.send:
			data, err := json.Marshal(msg)
			if err != nil {
				c.log.Error("marshal message failed", "error", err)
				continue
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.log.Debug("write failed", "error", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump reads extension messages until the connection drops.
func (c *Client) readPump() {
	defer func() {
		n := c.server.unregister(c)
		c.closeSend()
		c.log.Info("extension disconnected", "clients", n)
	}()

	c.conn.SetReadLimit(c.server.opts.MaxMessageBytes)
	c.conn.SetReadDeadline(time.Now().Add(readTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseNormalClosure,
				websocket.CloseAbnormalClosure) {
				c.log.Warn("read failed", "error", err)
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(readTimeout))

		if !c.limiter.Allow() {
			c.log.Debug("message rate limited")
			c.sendError(CodeRateLimited, "rate limit exceeded")
			continue
		}

		c.handle(data)
	}
}

// handle applies one extension message to the tab state.
func (c *Client) handle(data []byte) {
	var msg Inbound
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendError(CodeInvalidMessage, "malformed JSON")
		return
	}

	tabs := c.server.tabs
	events := c.server.opts.Events

	switch msg.Type {
	case TypeTabState:
		if msg.Tab == nil {
			c.sendError(CodeInvalidMessage, "tab.state requires tab")
			return
		}
		tabs.Update(*msg.Tab, boolOr(msg.Focused, true), boolOr(msg.Visible, true))

	case TypeTabActivated:
		if msg.TabID == nil {
			c.sendError(CodeInvalidMessage, "tab.activated requires tabId")
			return
		}
		if msg.Tab != nil {
			tabs.Update(*msg.Tab, boolOr(msg.Focused, true), boolOr(msg.Visible, true))
		}
		if events != nil {
			events.TabActivated(*msg.TabID)
		}

	case TypeTabRemoved:
		if msg.TabID == nil {
			c.sendError(CodeInvalidMessage, "tab.removed requires tabId")
			return
		}
		tabs.Remove(*msg.TabID)
		if events != nil {
			events.TabRemoved(*msg.TabID)
		}

	case TypeWindowFocus:
		if msg.Focused == nil {
			c.sendError(CodeInvalidMessage, "window.focus requires focused")
			return
		}
		tabs.SetFocused(*msg.Focused)

	default:
		c.sendError(CodeInvalidMessage, "unknown message type: "+msg.Type)
	}
}

func boolOr(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}

// compile-time check
var _ TabEvents = (*tracker.Poller)(nil)
