package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/satriahrh/suara/domain"
	"github.com/satriahrh/suara/domain/repositories"
)

const (
	defaultGeminiModel = "gemini-2.0-flash"
	defaultMaxRetries  = 2
)

// GeminiConfig holds configuration for the Gemini adapter
type GeminiConfig struct {
	APIKey     string // Required
	Model      string // Optional: default gemini-2.0-flash
	MaxRetries int    // Optional: retries on transport faults, default 2
}

// contentGenerator is the part of *genai.Models the adapter uses
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiLLM implements the LargeLanguageModel interface using Google's Gemini API
type GeminiLLM struct {
	models     contentGenerator
	model      string
	maxRetries int
	backoff    time.Duration
	logger     *zap.Logger
}

// Ensure GeminiLLM implements the LargeLanguageModel interface
var _ repositories.LargeLanguageModel = (*GeminiLLM)(nil)

// NewGeminiLLM creates a new Gemini LLM instance
func NewGeminiLLM(ctx context.Context, config GeminiConfig, logger *zap.Logger) (*GeminiLLM, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return newGeminiLLM(client.Models, config, logger), nil
}

func newGeminiLLM(models contentGenerator, config GeminiConfig, logger *zap.Logger) *GeminiLLM {
	model := config.Model
	if model == "" {
		model = defaultGeminiModel
		logger.Info("Using default model", zap.String("model", model))
	}

	maxRetries := config.MaxRetries
	if maxRetries < 0 {
		maxRetries = defaultMaxRetries
	}

	return &GeminiLLM{
		models:     models,
		model:      model,
		maxRetries: maxRetries,
		backoff:    time.Second,
		logger:     logger,
	}
}

// Generate implements repositories.LargeLanguageModel
func (g *GeminiLLM) Generate(ctx context.Context, systemPrompt, prompt string) (string, error) {
	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}
	config := &genai.GenerateContentConfig{}
	if systemPrompt != "" {
		config.SystemInstruction = genai.NewContentFromText(systemPrompt, genai.RoleUser)
	}

	var response *genai.GenerateContentResponse
	var llmErr *domain.LlmError
	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		resp, err := g.models.GenerateContent(ctx, g.model, contents, config)
		if err == nil {
			response, llmErr = resp, nil
			break
		}

		llmErr = classifyGeminiError(ctx, err)
		if llmErr.Kind != domain.LlmUnreachable || attempt == g.maxRetries {
			break
		}

		g.logger.Warn("Failed to generate content, retrying",
			zap.Int("attempt", attempt+1),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return "", &domain.LlmError{Kind: domain.LlmTimeout, Err: ctx.Err()}
		case <-time.After(time.Duration(attempt+1) * g.backoff):
		}
	}

	if llmErr != nil {
		g.logger.Error("Gemini generation failed",
			zap.String("kind", string(llmErr.Kind)),
			zap.Int("statusCode", llmErr.Code),
			zap.Error(llmErr))
		return "", llmErr
	}

	text := firstCandidateText(response)
	if text == "" {
		g.logger.Warn("No content generated")
		return "", &domain.LlmError{Kind: domain.LlmEmpty}
	}

	g.logger.Info("Gemini reply generated",
		zap.String("model", g.model),
		zap.Int("replyLength", len(text)))
	return text, nil
}

func firstCandidateText(response *genai.GenerateContentResponse) string {
	if response == nil || len(response.Candidates) == 0 || response.Candidates[0].Content == nil {
		return ""
	}

	var sb strings.Builder
	for _, part := range response.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" {
			sb.WriteString(part.Text)
		}
	}
	return strings.TrimSpace(sb.String())
}

func classifyGeminiError(ctx context.Context, err error) *domain.LlmError {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &domain.LlmError{Kind: domain.LlmRejected, Code: apiErr.Code, Message: apiErr.Message, Err: err}
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return &domain.LlmError{Kind: domain.LlmRejected, Code: apiErrPtr.Code, Message: apiErrPtr.Message, Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
		return &domain.LlmError{Kind: domain.LlmTimeout, Err: err}
	}
	return &domain.LlmError{Kind: domain.LlmUnreachable, Err: err}
}
