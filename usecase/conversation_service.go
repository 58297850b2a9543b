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

// ConversationService turns one raw audio payload into a transcript
type ConversationService struct {
	normalizer   repositories.AudioNormalizer
	speechToText repositories.SpeechToText
	pool         *worker.Pool
	timeout      time.Duration
	logger       *zap.Logger
}

// NewConversationService creates a new conversation service. A zero timeout
// leaves each stage bounded only by the caller's context.
func NewConversationService(
	normalizer repositories.AudioNormalizer,
	stt repositories.SpeechToText,
	pool *worker.Pool,
	timeout time.Duration,
	logger *zap.Logger,
) *ConversationService {
	return &ConversationService{
		normalizer:   normalizer,
		speechToText: stt,
		pool:         pool,
		timeout:      timeout,
		logger:       logger,
	}
}

// Transcribe normalizes raw audio and runs recognition on it. Failures are
// always a *domain.ConversionError or a *domain.AsrError. An empty transcript
// with a nil error means the backend heard no speech.
func (s *ConversationService) Transcribe(ctx context.Context, raw []byte) (string, error) {
	start := time.Now()

	audio, err := s.normalize(ctx, raw)
	if err != nil {
		return "", err
	}
	s.logger.Debug("Audio normalized",
		zap.Int("size", len(raw)),
		zap.Int("pcmSize", len(audio.PCM)),
		zap.Duration("duration", audio.Duration()))

	transcript, err := s.recognize(ctx, audio)
	if err != nil {
		return "", err
	}

	s.logger.Info("Transcription completed",
		zap.String("transcript", transcript),
		zap.Int64("durationMs", time.Since(start).Milliseconds()))
	return transcript, nil
}

func (s *ConversationService) normalize(ctx context.Context, raw []byte) (domain.NormalizedAudio, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	var audio domain.NormalizedAudio
	err := s.pool.Do(ctx, func(ctx context.Context) error {
		var err error
		audio, err = s.normalizer.Normalize(ctx, raw)
		return err
	})
	if err == nil {
		return audio, nil
	}

	var ce *domain.ConversionError
	if errors.As(err, &ce) {
		return domain.NormalizedAudio{}, ce
	}
	return domain.NormalizedAudio{}, domain.NewConversionError(domain.ConversionDecodeFailed, err)
}

func (s *ConversationService) recognize(ctx context.Context, audio domain.NormalizedAudio) (string, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	var transcript string
	err := s.pool.Do(ctx, func(ctx context.Context) error {
		var err error
		transcript, err = s.speechToText.TranscribeAudio(ctx, audio)
		return err
	})
	if err == nil {
		return transcript, nil
	}

	var asrErr *domain.AsrError
	if errors.As(err, &asrErr) {
		return "", asrErr
	}
	return "", &domain.AsrError{
		Timeout: errors.Is(err, context.DeadlineExceeded),
		Err:     err,
	}
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
