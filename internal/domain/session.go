package domain

import "time"

// Message is one entry of a conversation transcript. Messages are never
// mutated after creation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// UserMessage returns a message authored by the user.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// AssistantMessage returns a message authored by the backend.
func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// Session is one independent conversation thread.
type Session struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	History   []Message `json:"history"`
}

// Clone returns a deep copy of the session.
func (s Session) Clone() Session {
	out := s
	out.History = make([]Message, len(s.History))
	copy(out.History, s.History)
	return out
}

// Snapshot is the bulk state exchanged with the persistence collaborator.
type Snapshot struct {
	Sessions []Session `json:"sessions"`
	ActiveID string    `json:"active_id"`
}

// SessionSummary is the listing view of a session.
type SessionSummary struct {
	SessionID    string `json:"session_id"`
	Name         string `json:"name"`
	MessageCount int    `json:"message_count"`
}

// Summary returns the listing view of s.
func (s Session) Summary() SessionSummary {
	return SessionSummary{SessionID: s.ID, Name: s.Name, MessageCount: len(s.History)}
}
