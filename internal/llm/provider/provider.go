package provider

import (
	"context"

	"memory_bot/internal/model"
)

// Provider is one concrete oracle backend. The llm.Client facade owns
// prompt construction and proposal parsing; providers only move requests
// over the wire.
type Provider interface {
	// Name identifies the backend ("gemini", "anthropic").
	Name() string

	// ProposeMutations asks the model for a hook mutation. The returned
	// string is the raw JSON of the structured answer: function-call
	// arguments for backends with native tool support, or the model's
	// text for backends that answer with JSON in prose. "" means the
	// model proposed nothing.
	ProposeMutations(ctx context.Context, systemPrompt, message string, maxTokens int64) (string, error)

	// GenerateReply produces plain response text for the message given
	// the history. disableTools suppresses function calling for backends
	// that attach tools to the reply model.
	GenerateReply(ctx context.Context, systemPrompt string, history []model.ConversationTurn, message string, maxTokens int64, disableTools bool) (string, error)
}
