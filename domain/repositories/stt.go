package repositories

import (
	"context"

	"github.com/satriahrh/suara/domain"
)

// SpeechToText abstracts speech recognition services
type SpeechToText interface {
	// TranscribeAudio converts normalized audio to text. An empty transcript
	// with a nil error means no speech was detected. Failures are returned as
	// *domain.AsrError.
	TranscribeAudio(ctx context.Context, audio domain.NormalizedAudio) (string, error)
}

// AudioNormalizer converts arbitrary audio containers to normalized PCM
type AudioNormalizer interface {
	// Normalize returns *domain.ConversionError on any decode or encode failure
	Normalize(ctx context.Context, raw []byte) (domain.NormalizedAudio, error)
}
