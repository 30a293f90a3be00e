package ws

import "github.com/xiaot623/helia/internal/domain"

// Message types from view to server
const (
	TypeAsk           = "ask"
	TypeNewSession    = "new_session"
	TypeSelectSession = "select_session"
	TypeDeleteSession = "delete_session"
	TypeListSessions  = "list_sessions"
)

// Error codes
const (
	ErrorCodeInvalidMessage  = "invalid_message"
	ErrorCodeEmptyMessage    = "empty_message"
	ErrorCodeNotFound        = "not_found"
	ErrorCodeNoActiveSession = "no_active_session"
	ErrorCodeInternal        = "internal_error"
)

// Command is any message a view sends. Only the fields its type needs are set.
type Command struct {
	Type      string `json:"type"`
	Text      string `json:"text,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

// SessionsMessage carries the session list and the active session's history.
type SessionsMessage struct {
	Type     string                  `json:"type"`
	Ts       int64                   `json:"ts"`
	ActiveID string                  `json:"active_id"`
	Sessions []domain.SessionSummary `json:"sessions"`
	History  []domain.Message        `json:"history"`
}

// ErrorMessage reports a rejected command to the view that sent it.
type ErrorMessage struct {
	Type    string `json:"type"`
	Ts      int64  `json:"ts"`
	Code    string `json:"code"`
	Message string `json:"message"`
}
