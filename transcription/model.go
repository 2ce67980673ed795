package transcription

import "context"

// Format asks the model for output matching the JSON schema reflected from Sample.
type Format struct {
	Name        string
	Description string
	Sample      any
}

// Request is one call to the remote generative model.
type Request struct {
	// Instructions are the system-level rules for the call.
	Instructions string

	// Prompt is the user content.
	Prompt string

	// Media, when set, is transcribed by the provider and handed to the model alongside Prompt.
	Media *Payload

	// Search enables live web search grounding.
	Search bool

	// History is replayed as prior conversation turns before Prompt.
	History []ChatMessage

	// Format constrains the response to a structured schema.
	Format *Format

	// MaxOutputTokens overrides the provider default when > 0.
	MaxOutputTokens int64
}

// Model is the remote generative capability: instructions and content in, text out.
// Output may or may not honour Format and may arrive wrapped in a code fence.
type Model interface {
	Generate(ctx context.Context, req Request) (string, error)
}
