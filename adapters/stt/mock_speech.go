package stt

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/suara/domain"
	"github.com/satriahrh/suara/domain/repositories"
)

// MockSpeechToText is a placeholder implementation for speech recognition
type MockSpeechToText struct {
	logger *zap.Logger
}

// NewMockSpeechToText creates a new mock speech-to-text service
func NewMockSpeechToText(logger *zap.Logger) repositories.SpeechToText {
	return &MockSpeechToText{
		logger: logger,
	}
}

// TranscribeAudio implements repositories.SpeechToText
func (s *MockSpeechToText) TranscribeAudio(ctx context.Context, audio domain.NormalizedAudio) (string, error) {
	duration := audio.Duration()
	s.logger.Info("Processing mock speech-to-text",
		zap.Int("audioSize", len(audio.PCM)),
		zap.Duration("duration", duration))

	// Mock transcription based on audio length
	switch {
	case duration >= 3*time.Second:
		return "hello, can you tell me something interesting about today?", nil
	case duration >= time.Second:
		return "what time is it?", nil
	case duration >= 200*time.Millisecond:
		return "hello", nil
	default:
		return "", nil
	}
}
