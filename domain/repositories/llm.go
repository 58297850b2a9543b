package repositories

import "context"

// LargeLanguageModel abstracts any chat/LLM provider
type LargeLanguageModel interface {
	// Generate sends a system instruction and a single user prompt and returns
	// the text of the first choice. Failures are returned as *domain.LlmError.
	Generate(ctx context.Context, systemPrompt, prompt string) (string, error)
}
