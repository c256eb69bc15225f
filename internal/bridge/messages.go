package bridge

import "github.com/runnerr0/dwell/internal/tracker"

// Message types sent by the browser extension.
const (
	TypeTabState     = "tab.state"
	TypeTabActivated = "tab.activated"
	TypeTabRemoved   = "tab.removed"
	TypeWindowFocus  = "window.focus"
)

// Message types sent by the daemon.
const (
	TypeHello = "hello"
	TypeError = "error"
)

// Error codes, shared by WebSocket error replies and HTTP error bodies.
// Codes follow {domain}.{error} and are stable for clients.
const (
	CodeRateLimited    = "input.rate_limited"
	CodeInvalidMessage = "server.invalid_message"
	CodeInvalidRequest = "server.invalid_request"
	CodeNotFound       = "storage.not_found"
	CodeQueryFailed    = "storage.query_failed"
	CodeAuthRequired   = "auth.required"
	CodeAuthInvalid    = "auth.invalid"
)

// Inbound is a message from the extension. Which fields are set depends
// on Type.
type Inbound struct {
	Type    string       `json:"type"`
	Tab     *tracker.Tab `json:"tab,omitempty"`
	TabID   *int         `json:"tabId,omitempty"`
	Focused *bool        `json:"focused,omitempty"`
	Visible *bool        `json:"visible,omitempty"`
}

// Outbound is a message to the extension.
type Outbound struct {
	Type     string `json:"type"`
	ClientID string `json:"clientId,omitempty"`
	Code     string `json:"code,omitempty"`
	Message  string `json:"message,omitempty"`
}

func newErrorMessage(code, message string) Outbound {
	return Outbound{Type: TypeError, Code: code, Message: message}
}

// apiError is the body of a failed HTTP API call.
type apiError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}
