package domain

// StreamEvent is produced by the streaming client and consumed once by the
// orchestrator. Text holds the token for EventToken, the trailing text for
// EventComplete and the diagnostic for EventFailed.
type StreamEvent struct {
	Kind EventKind
	Text string
}

// Token returns a token event.
func Token(text string) StreamEvent {
	return StreamEvent{Kind: EventToken, Text: text}
}

// Complete returns a completion event.
func Complete(finalText string) StreamEvent {
	return StreamEvent{Kind: EventComplete, Text: finalText}
}

// Failed returns a failure event.
func Failed(reason string) StreamEvent {
	return StreamEvent{Kind: EventFailed, Text: reason}
}

// Terminal reports whether the event ends a stream.
func (e StreamEvent) Terminal() bool {
	return e.Kind == EventComplete || e.Kind == EventFailed
}

// Notification is what the observer receives while a reply streams.
type Notification struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
	Streaming bool   `json:"streaming"`
}
