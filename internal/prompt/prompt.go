// Package prompt renders a session history into the text sent to the backend.
package prompt

import (
	"strings"

	"github.com/xiaot623/helia/internal/domain"
)

const (
	// UserLabel prefixes messages written by the user.
	UserLabel = "User"
	// AssistantLabel is the backend persona and the turn cue.
	AssistantLabel = "Helia"
)

// Build renders history as "<Label>: <content>" lines followed by a cue line
// handing the turn to the assistant. It is pure and deterministic.
func Build(history []domain.Message) string {
	var b strings.Builder
	for i, msg := range history {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(label(msg.Role))
		b.WriteString(": ")
		b.WriteString(msg.Content)
	}
	b.WriteString("\n")
	b.WriteString(AssistantLabel)
	b.WriteString(":")
	return b.String()
}

func label(r domain.Role) string {
	if r == domain.RoleUser {
		return UserLabel
	}
	return AssistantLabel
}
