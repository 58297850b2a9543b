package llm

import (
	"context"
	"fmt"

	"github.com/satriahrh/suara/domain/repositories"
)

// MockLLM is a placeholder implementation for local development
type MockLLM struct{}

// NewMockLLM creates a new mock LLM
func NewMockLLM() repositories.LargeLanguageModel {
	return &MockLLM{}
}

// Generate implements repositories.LargeLanguageModel
func (m *MockLLM) Generate(ctx context.Context, systemPrompt, prompt string) (string, error) {
	if prompt == "" {
		return "Hello! I am your voice assistant. What would you like to talk about?", nil
	}
	return fmt.Sprintf("You said: %q. Tell me more!", prompt), nil
}
