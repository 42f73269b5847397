// Package llm provides the narrow interface the simulation core uses to
// talk to a remote language-model backend, plus an HTTP client for
// chat-completion and feature-extraction endpoints. Remote calls are
// slow (seconds) and occasionally fail; every caller is expected to
// degrade gracefully on error rather than abort the run.
package llm

import "context"

// Role values for chat messages.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of a chat exchange.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Chat is an ordered message list sent to the generation endpoint.
type Chat []Message

// TextGenerator produces a completion for an ordered chat. It raises an
// error only after its internal retry budget is exhausted.
type TextGenerator interface {
	Generate(ctx context.Context, chat Chat) (string, error)
}

// EmbeddingProvider extracts vector embeddings for a batch of texts.
// One call handles the whole batch; callers must never loop a per-text
// call over a batch.
type EmbeddingProvider interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}
