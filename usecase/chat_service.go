package usecase

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/suara/domain"
	"github.com/satriahrh/suara/domain/repositories"
	"github.com/satriahrh/suara/internal/worker"
)

// Replies sent in place of generated text when generation fails
const (
	FallbackRejected    = "Sorry, something went wrong while I was thinking."
	FallbackUnreachable = "Sorry, I seem to have lost my connection."
)

// ChatService produces one reply per prompt. There is no history, every
// prompt is answered on its own.
type ChatService struct {
	llm          repositories.LargeLanguageModel
	pool         *worker.Pool
	systemPrompt string
	timeout      time.Duration
	logger       *zap.Logger
}

// NewChatService creates a new chat service
func NewChatService(
	llm repositories.LargeLanguageModel,
	pool *worker.Pool,
	systemPrompt string,
	timeout time.Duration,
	logger *zap.Logger,
) *ChatService {
	return &ChatService{
		llm:          llm,
		pool:         pool,
		systemPrompt: systemPrompt,
		timeout:      timeout,
		logger:       logger,
	}
}

// Reply always returns text to show the user. Generation failures become one
// of the fallback replies.
func (s *ChatService) Reply(ctx context.Context, prompt string) string {
	start := time.Now()

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	var reply string
	err := s.pool.Do(ctx, func(ctx context.Context) error {
		var err error
		reply, err = s.llm.Generate(ctx, s.systemPrompt, prompt)
		return err
	})
	if err != nil {
		fallback := Fallback(err)
		s.logger.Warn("Generation failed, sending fallback reply",
			zap.String("fallback", fallback),
			zap.Error(err))
		return fallback
	}

	s.logger.Info("Reply generated",
		zap.Int("promptLength", len(prompt)),
		zap.Int("replyLength", len(reply)),
		zap.Int64("durationMs", time.Since(start).Milliseconds()))
	return reply
}

// Fallback maps a generation failure to the reply shown instead
func Fallback(err error) string {
	var llmErr *domain.LlmError
	if errors.As(err, &llmErr) {
		switch llmErr.Kind {
		case domain.LlmUnreachable, domain.LlmTimeout:
			return FallbackUnreachable
		default:
			return FallbackRejected
		}
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return FallbackUnreachable
	}
	return FallbackRejected
}
