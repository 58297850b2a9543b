package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"go.uber.org/zap"

	"github.com/satriahrh/suara/domain"
	"github.com/satriahrh/suara/domain/repositories"
)

const defaultOpenAIModel = "qwen-turbo"

// OpenAIConfig holds configuration for any OpenAI-compatible chat completions
// endpoint. With BaseURL set to DashScope's compatible-mode endpoint this
// talks to qwen models.
type OpenAIConfig struct {
	APIKey         string        // Required
	BaseURL        string        // Optional: default api.openai.com
	Model          string        // Optional: default qwen-turbo
	MaxRetries     int           // Optional: SDK retries on transport faults and 5xx
	RequestTimeout time.Duration // Optional: per attempt
}

// OpenAILLM implements the LargeLanguageModel interface using chat completions
type OpenAILLM struct {
	client openai.Client
	model  string
	logger *zap.Logger
}

// Ensure OpenAILLM implements the LargeLanguageModel interface
var _ repositories.LargeLanguageModel = (*OpenAILLM)(nil)

// NewOpenAILLM creates a new OpenAI-compatible LLM instance
func NewOpenAILLM(config OpenAIConfig, logger *zap.Logger) (*OpenAILLM, error) {
	apiKey := strings.TrimSpace(config.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(max(config.MaxRetries, 0)),
	}
	if baseURL := strings.TrimSpace(config.BaseURL); baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if config.RequestTimeout > 0 {
		opts = append(opts, option.WithRequestTimeout(config.RequestTimeout))
	}

	model := config.Model
	if model == "" {
		model = defaultOpenAIModel
		logger.Info("Using default model", zap.String("model", model))
	}

	return &OpenAILLM{
		client: openai.NewClient(opts...),
		model:  model,
		logger: logger,
	}, nil
}

// Generate implements repositories.LargeLanguageModel
func (o *OpenAILLM) Generate(ctx context.Context, systemPrompt, prompt string) (string, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if systemPrompt != "" {
		messages = append(messages, openai.SystemMessage(systemPrompt))
	}
	messages = append(messages, openai.UserMessage(prompt))

	completion, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(o.model),
		Messages: messages,
	})
	if err != nil {
		llmErr := classifyOpenAIError(ctx, err)
		o.logger.Error("Chat completion failed",
			zap.String("kind", string(llmErr.Kind)),
			zap.Int("statusCode", llmErr.Code),
			zap.Error(err))
		return "", llmErr
	}

	if completion == nil || len(completion.Choices) == 0 {
		o.logger.Warn("Chat completion returned no choices")
		return "", &domain.LlmError{Kind: domain.LlmEmpty}
	}

	text := strings.TrimSpace(completion.Choices[0].Message.Content)
	if text == "" {
		o.logger.Warn("Chat completion returned empty text")
		return "", &domain.LlmError{Kind: domain.LlmEmpty}
	}

	o.logger.Info("Chat completion reply generated",
		zap.String("model", o.model),
		zap.Int("replyLength", len(text)))
	return text, nil
}

func classifyOpenAIError(ctx context.Context, err error) *domain.LlmError {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return &domain.LlmError{Kind: domain.LlmRejected, Code: apiErr.StatusCode, Message: apiErr.Message, Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
		return &domain.LlmError{Kind: domain.LlmTimeout, Err: err}
	}
	return &domain.LlmError{Kind: domain.LlmUnreachable, Err: err}
}
