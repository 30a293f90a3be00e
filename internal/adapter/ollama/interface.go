package ollama

import (
	"context"

	"github.com/xiaot623/helia/internal/domain"
)

// Sink receives the events of one generation request in order.
type Sink func(domain.StreamEvent)

// Generator defines the backend operations the orchestrator needs.
type Generator interface {
	// Generate streams a reply for prompt. The sink sees zero or more Token
	// events followed by exactly one Complete or Failed event; a non-empty
	// Complete text has already been delivered as the preceding Token.
	Generate(ctx context.Context, model, prompt string, sink Sink)

	// ListModels returns the available model identifiers, or an empty list
	// on any failure.
	ListModels(ctx context.Context) []string
}

// Ensure Client implements Generator interface.
var _ Generator = (*Client)(nil)
