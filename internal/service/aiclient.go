package service

import (
	"context"
)

// TextGenerator is the capability consumed for free-text interpretation,
// candidate generation and recommendation rendering. The core never knows
// how a model call is implemented - only that a prompt yields text or fails.
type TextGenerator interface {
	// Generate performs a single completion and returns the full text
	Generate(ctx context.Context, req GenerateRequest) (string, error)

	// GenerateStream performs a completion with streaming support.
	// The callback receives each chunk; the accumulated text is returned.
	GenerateStream(ctx context.Context, req GenerateRequest, callback func(chunk *StreamChunk) error) (string, error)

	// CreateEmbeddings generates embeddings for texts (catalog maintenance)
	CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)

	// IsEnabled returns whether the backend is configured and ready
	IsEnabled() bool
}

// Retriever is the information-retrieval capability used for candidate
// enrichment. Failures are soft: a failed query contributes nothing to the
// aggregate and never aborts sibling queries.
type Retriever interface {
	Query(ctx context.Context, prompt string) (string, error)
	IsEnabled() bool
}

// GenerateRequest describes one completion request
type GenerateRequest struct {
	System      string
	User        string
	Temperature float64
	JSONOutput  bool // request a json_object response format
}

// StreamChunk represents a generic streaming response chunk
type StreamChunk struct {
	// Regular content (always present in streaming)
	Content string

	// Thinking/reasoning content (provider-specific, e.g. DeepSeek)
	ThinkingContent string

	// Role (assistant, user, system)
	Role string

	// Whether this is the final chunk
	Done bool
}

// Ensure the HTTP clients satisfy the capability interfaces
var (
	_ TextGenerator = (*OpenAIClient)(nil)
	_ Retriever     = (*RetrievalClient)(nil)
)
