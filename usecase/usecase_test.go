package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/suara/domain"
	"github.com/satriahrh/suara/internal/worker"
)

type fakeNormalizer struct {
	audio domain.NormalizedAudio
	err   error
	panic bool
}

func (f *fakeNormalizer) Normalize(ctx context.Context, raw []byte) (domain.NormalizedAudio, error) {
	if f.panic {
		panic("decoder bug")
	}
	return f.audio, f.err
}

type fakeSTT struct {
	transcript string
	err        error
	delay      time.Duration
	got        domain.NormalizedAudio
}

func (f *fakeSTT) TranscribeAudio(ctx context.Context, audio domain.NormalizedAudio) (string, error) {
	f.got = audio
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.transcript, f.err
}

type fakeLLM struct {
	reply        string
	err          error
	delay        time.Duration
	systemPrompt string
	prompt       string
}

func (f *fakeLLM) Generate(ctx context.Context, systemPrompt, prompt string) (string, error) {
	f.systemPrompt = systemPrompt
	f.prompt = prompt
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", &domain.LlmError{Kind: domain.LlmTimeout, Err: ctx.Err()}
		}
	}
	return f.reply, f.err
}

func newConversation(t *testing.T, n *fakeNormalizer, stt *fakeSTT, timeout time.Duration) *ConversationService {
	logger := zaptest.NewLogger(t)
	return NewConversationService(n, stt, worker.NewPool(2, logger), timeout, logger)
}

func TestConversationService_Transcribe(t *testing.T) {
	audio := domain.NewNormalizedAudio(make([]byte, 640))
	stt := &fakeSTT{transcript: "hello world"}
	s := newConversation(t, &fakeNormalizer{audio: audio}, stt, time.Second)

	text, err := s.Transcribe(context.Background(), []byte("raw"))
	require.NoError(t, err)
	assert.Equal(t, "hello world", text)
	assert.Equal(t, audio, stt.got)
}

func TestConversationService_EmptyTranscript(t *testing.T) {
	s := newConversation(t, &fakeNormalizer{audio: domain.NewNormalizedAudio(nil)}, &fakeSTT{}, 0)

	text, err := s.Transcribe(context.Background(), []byte("raw"))
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestConversationService_Errors(t *testing.T) {
	tests := []struct {
		name        string
		normalizer  *fakeNormalizer
		stt         *fakeSTT
		timeout     time.Duration
		wantConvert bool
		wantTimeout bool
	}{
		{
			name:        "conversion error passes through",
			normalizer:  &fakeNormalizer{err: domain.NewConversionError(domain.ConversionUnsupportedFormat, nil)},
			stt:         &fakeSTT{},
			wantConvert: true,
		},
		{
			name:        "untyped normalizer error becomes conversion error",
			normalizer:  &fakeNormalizer{err: errors.New("weird")},
			stt:         &fakeSTT{},
			wantConvert: true,
		},
		{
			name:        "normalizer panic becomes conversion error",
			normalizer:  &fakeNormalizer{panic: true},
			stt:         &fakeSTT{},
			wantConvert: true,
		},
		{
			name:       "asr error passes through",
			normalizer: &fakeNormalizer{},
			stt:        &fakeSTT{err: &domain.AsrError{Code: 3, Message: "bad"}},
		},
		{
			name:       "untyped asr error is wrapped",
			normalizer: &fakeNormalizer{},
			stt:        &fakeSTT{err: errors.New("connection reset")},
		},
		{
			name:        "slow recognition times out",
			normalizer:  &fakeNormalizer{},
			stt:         &fakeSTT{transcript: "late", delay: time.Second},
			timeout:     20 * time.Millisecond,
			wantTimeout: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newConversation(t, tt.normalizer, tt.stt, tt.timeout)

			_, err := s.Transcribe(context.Background(), []byte("raw"))
			require.Error(t, err)
			if tt.wantConvert {
				assert.True(t, domain.IsConversionError(err), "got %v", err)
				return
			}
			var asrErr *domain.AsrError
			require.True(t, errors.As(err, &asrErr), "got %v", err)
			assert.Equal(t, tt.wantTimeout, asrErr.Timeout)
		})
	}
}

func newChat(t *testing.T, llm *fakeLLM, timeout time.Duration) *ChatService {
	logger := zaptest.NewLogger(t)
	return NewChatService(llm, worker.NewPool(2, logger), "be kind", timeout, logger)
}

func TestChatService_Reply(t *testing.T) {
	llm := &fakeLLM{reply: "Hi! How can I help?"}
	s := newChat(t, llm, time.Second)

	assert.Equal(t, "Hi! How can I help?", s.Reply(context.Background(), "hello"))
	assert.Equal(t, "be kind", llm.systemPrompt)
	assert.Equal(t, "hello", llm.prompt)
}

func TestChatService_EmptyPromptIsForwarded(t *testing.T) {
	llm := &fakeLLM{reply: "Did you say something?"}
	s := newChat(t, llm, 0)

	assert.Equal(t, "Did you say something?", s.Reply(context.Background(), ""))
	assert.Equal(t, "", llm.prompt)
}

func TestChatService_Fallbacks(t *testing.T) {
	tests := []struct {
		name    string
		llm     *fakeLLM
		timeout time.Duration
		want    string
	}{
		{
			name: "rejected",
			llm:  &fakeLLM{err: &domain.LlmError{Kind: domain.LlmRejected, Code: 401, Message: "bad key"}},
			want: FallbackRejected,
		},
		{
			name: "empty",
			llm:  &fakeLLM{err: &domain.LlmError{Kind: domain.LlmEmpty}},
			want: FallbackRejected,
		},
		{
			name: "unreachable",
			llm:  &fakeLLM{err: &domain.LlmError{Kind: domain.LlmUnreachable, Err: errors.New("dial tcp")}},
			want: FallbackUnreachable,
		},
		{
			name:    "timeout",
			llm:     &fakeLLM{reply: "too late", delay: time.Second},
			timeout: 20 * time.Millisecond,
			want:    FallbackUnreachable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newChat(t, tt.llm, tt.timeout)
			assert.Equal(t, tt.want, s.Reply(context.Background(), "hello"))
		})
	}
}

func TestFallback(t *testing.T) {
	assert.Equal(t, FallbackUnreachable, Fallback(context.DeadlineExceeded))
	assert.Equal(t, FallbackUnreachable, Fallback(context.Canceled))
	assert.Equal(t, FallbackRejected, Fallback(&worker.PanicError{Value: "boom"}))
	assert.Equal(t, FallbackRejected, Fallback(errors.New("other")))
}
