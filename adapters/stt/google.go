package stt

import (
	"context"
	"errors"
	"fmt"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	gax "github.com/googleapis/gax-go/v2"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/satriahrh/suara/domain"
	"github.com/satriahrh/suara/domain/repositories"
)

const defaultLanguage = "en-US"

// GoogleConfig holds configuration for the Google Cloud Speech adapter
type GoogleConfig struct {
	APIKey   string // Optional: falls back to application default credentials
	Language string // Optional: BCP-47 language code, default en-US
}

// recognizer is the part of *speech.Client the adapter uses
type recognizer interface {
	Recognize(ctx context.Context, req *speechpb.RecognizeRequest, opts ...gax.CallOption) (*speechpb.RecognizeResponse, error)
}

// GoogleSpeechToText implements SpeechToText for Google Cloud
type GoogleSpeechToText struct {
	client   recognizer
	closer   func() error
	language string
	logger   *zap.Logger
}

// Ensure GoogleSpeechToText implements the SpeechToText interface
var _ repositories.SpeechToText = (*GoogleSpeechToText)(nil)

// NewGoogleSpeechToText creates a Google Cloud Speech client
func NewGoogleSpeechToText(ctx context.Context, config GoogleConfig, logger *zap.Logger) (*GoogleSpeechToText, error) {
	var opts []option.ClientOption
	if config.APIKey != "" {
		opts = append(opts, option.WithAPIKey(config.APIKey))
	}

	client, err := speech.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create speech client: %w", err)
	}

	g := newGoogleSpeechToText(client, config, logger)
	g.closer = client.Close
	return g, nil
}

func newGoogleSpeechToText(client recognizer, config GoogleConfig, logger *zap.Logger) *GoogleSpeechToText {
	language := config.Language
	if language == "" {
		language = defaultLanguage
		logger.Info("Using default recognition language", zap.String("language", language))
	}

	return &GoogleSpeechToText{
		client:   client,
		language: language,
		logger:   logger,
	}
}

// TranscribeAudio converts normalized audio to text using synchronous recognition
func (g *GoogleSpeechToText) TranscribeAudio(ctx context.Context, audio domain.NormalizedAudio) (string, error) {
	g.logger.Info("Starting recognition",
		zap.Int("audioSize", len(audio.PCM)),
		zap.Duration("duration", audio.Duration()),
		zap.String("language", g.language))

	resp, err := g.client.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:          speechpb.RecognitionConfig_LINEAR16,
			SampleRateHertz:   int32(audio.SampleRate),
			AudioChannelCount: int32(audio.Channels),
			LanguageCode:      g.language,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: audio.PCM},
		},
	})
	if err != nil {
		asrErr := toAsrError(ctx, err)
		g.logger.Error("Recognition failed",
			zap.Int("statusCode", asrErr.Code),
			zap.String("message", asrErr.Message),
			zap.Error(err))
		return "", asrErr
	}

	transcript := joinSegments(resp.GetResults())
	if transcript == "" {
		g.logger.Warn("Recognition succeeded but returned no text")
		return "", nil
	}

	g.logger.Info("Recognition completed", zap.String("transcript", transcript))
	return transcript, nil
}

// Close releases the underlying gRPC connection
func (g *GoogleSpeechToText) Close() error {
	if g.closer == nil {
		return nil
	}
	return g.closer()
}

// joinSegments takes the best alternative of every result, in order
func joinSegments(results []*speechpb.SpeechRecognitionResult) string {
	segments := make([]string, 0, len(results))
	for _, result := range results {
		alternatives := result.GetAlternatives()
		if len(alternatives) == 0 {
			continue
		}
		if text := strings.TrimSpace(alternatives[0].GetTranscript()); text != "" {
			segments = append(segments, text)
		}
	}
	return strings.TrimSpace(strings.Join(segments, " "))
}

func toAsrError(ctx context.Context, err error) *domain.AsrError {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &domain.AsrError{Timeout: true, Err: err}
	}

	st, ok := status.FromError(err)
	if !ok {
		return &domain.AsrError{Message: err.Error(), Err: err}
	}
	if st.Code() == codes.DeadlineExceeded {
		return &domain.AsrError{Timeout: true, Code: int(st.Code()), Message: st.Message(), Err: err}
	}
	return &domain.AsrError{Code: int(st.Code()), Message: st.Message(), Err: err}
}
