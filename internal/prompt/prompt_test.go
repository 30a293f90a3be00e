package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xiaot623/helia/internal/domain"
)

func TestBuild(t *testing.T) {
	history := []domain.Message{
		domain.UserMessage("hi"),
		domain.AssistantMessage("hello there"),
		domain.UserMessage("how are you?"),
	}
	want := "User: hi\nHelia: hello there\nUser: how are you?\nHelia:"
	assert.Equal(t, want, Build(history))
}

func TestBuildEmptyHistory(t *testing.T) {
	assert.Equal(t, "\nHelia:", Build(nil))
}

func TestBuildDeterministic(t *testing.T) {
	history := []domain.Message{domain.UserMessage("a"), domain.AssistantMessage("b")}
	assert.Equal(t, Build(history), Build(history))
}

func TestBuildAppendChangesOnlySuffix(t *testing.T) {
	history := []domain.Message{domain.UserMessage("first")}
	before := Build(history)
	after := Build(append(history, domain.AssistantMessage("second")))

	cue := "\n" + AssistantLabel + ":"
	body := strings.TrimSuffix(before, cue)
	assert.True(t, strings.HasPrefix(after, body), "prefix %q not kept in %q", body, after)
	assert.True(t, strings.HasSuffix(after, cue))
	assert.NotEqual(t, before, after)
}
