package ollama

import (
	"context"
	"fmt"
	"strings"

	"github.com/xiaot623/helia/internal/domain"
)

// MockClient is an offline Generator that echoes the last user line back in
// small tokens.
type MockClient struct{}

// NewMockClient creates a new mock client.
func NewMockClient() *MockClient {
	return &MockClient{}
}

// Ensure MockClient implements Generator interface.
var _ Generator = (*MockClient)(nil)

// Generate streams a canned reply.
func (m *MockClient) Generate(ctx context.Context, model, prompt string, sink Sink) {
	reply := m.generateMockResponse(prompt)
	for _, chunk := range splitIntoChunks(reply, 10) {
		select {
		case <-ctx.Done():
			sink(domain.Failed("Error: " + ctx.Err().Error()))
			return
		default:
		}
		sink(domain.Token(chunk))
	}
	sink(domain.Complete(""))
}

// ListModels returns a fixed list of mock models.
func (m *MockClient) ListModels(ctx context.Context) []string {
	return []string{"mock-llama", "mock-codellama"}
}

// generateMockResponse quotes the last "User:" line of the prompt.
func (m *MockClient) generateMockResponse(prompt string) string {
	var lastUserMessage string
	for _, line := range strings.Split(prompt, "\n") {
		if rest, ok := strings.CutPrefix(line, "User: "); ok {
			lastUserMessage = rest
		}
	}
	if lastUserMessage == "" {
		return " [MOCK] This is a mock response."
	}
	return fmt.Sprintf(" [MOCK] Received your message: %q. This is a mock response.", truncate(lastUserMessage, 100))
}

// splitIntoChunks splits a string into chunks of approximately the given size.
func splitIntoChunks(s string, chunkSize int) []string {
	var chunks []string
	for i := 0; i < len(s); i += chunkSize {
		end := i + chunkSize
		if end > len(s) {
			end = len(s)
		}
		chunks = append(chunks, s[i:end])
	}
	return chunks
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
