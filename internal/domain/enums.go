// Package domain defines the core domain models for helia.
package domain

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// EventKind represents the kind of a stream event.
type EventKind string

const (
	EventToken    EventKind = "token"
	EventComplete EventKind = "complete"
	EventFailed   EventKind = "failed"
)

// RequestState tracks a single submitted user message through its stream.
type RequestState string

const (
	RequestStateIdle               RequestState = "IDLE"
	RequestStateAwaitingFirstToken RequestState = "AWAITING_FIRST_TOKEN"
	RequestStateStreaming          RequestState = "STREAMING"
	RequestStateFinalized          RequestState = "FINALIZED"
)
