package providers

import "context"

// Provider is the text-in/text-out boundary with an LLM endpoint. The
// summarizer is the only consumer; it needs a single completion call.
type Provider interface {
	// Complete sends a (system, user) prompt pair and returns the
	// assistant's text.
	Complete(ctx context.Context, systemPrompt, userPrompt string, maxTokens int) (string, error)

	// DefaultModel returns the model this provider sends requests to.
	DefaultModel() string
}
