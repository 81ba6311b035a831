// Package ports defines interfaces for external service communication.
package ports

import "context"

// LLMClient defines the interface for the language-model collaborator. The
// engine treats it as a black-box text-completion service; all failures must
// be returned as entities.ExternalServiceError so callers can route them to
// the fallback path while logging the kind distinctly.
type LLMClient interface {
	// Generate produces a completion for the given prompt. The context
	// carries the caller's timeout; implementations must honor
	// cancellation.
	Generate(ctx context.Context, prompt string) (string, error)
}

// Summarizer condenses long narrative history so it fits a token budget.
// Same error contract as LLMClient.
type Summarizer interface {
	// Summarize shortens text to approximately targetLength characters.
	Summarize(ctx context.Context, text string, targetLength int) (string, error)
}
