// Package llm abstracts the chat-completion call every extraction,
// deduplication-arbitration, and summarization stage makes, grounded on
// the teacher's internal/llm.Provider / internal/llm/providers.Build
// split (one small interface, one concrete client per provider, one
// factory). Unlike the teacher's Provider, this one drops tool calling,
// streaming, and multimodal image parts — spec.md's components are all
// single-shot text-in/text-out completions.
package llm

import "context"

// Request is one completion call. Temperature is passed explicitly
// rather than baked into the client because spec.md asks for both a
// near-zero "deterministic" mode (dedup arbitration, retrieval answers)
// and a near-one "creative" mode (extraction, summarization) from the
// same provider.
type Request struct {
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int
}

// Provider is the swappable chat-completion backend.
type Provider interface {
	Complete(ctx context.Context, req Request) (string, error)
}
