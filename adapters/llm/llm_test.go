package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"google.golang.org/genai"

	"github.com/satriahrh/suara/domain"
)

type fakeGenerator struct {
	responses []*genai.GenerateContentResponse
	errs      []error
	calls     int
	config    *genai.GenerateContentConfig
	model     string
}

func (f *fakeGenerator) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	i := f.calls
	f.calls++
	f.model = model
	f.config = config
	var resp *genai.GenerateContentResponse
	var err error
	if i < len(f.responses) {
		resp = f.responses[i]
	}
	if i < len(f.errs) {
		err = f.errs[i]
	}
	return resp, err
}

func textResponse(parts ...string) *genai.GenerateContentResponse {
	content := &genai.Content{Role: genai.RoleModel}
	for _, p := range parts {
		content.Parts = append(content.Parts, &genai.Part{Text: p})
	}
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{Content: content}}}
}

func requireLlmKind(t *testing.T, err error, kind domain.LlmErrorKind) *domain.LlmError {
	t.Helper()
	var llmErr *domain.LlmError
	require.True(t, errors.As(err, &llmErr), "expected LlmError, got %v", err)
	assert.Equal(t, kind, llmErr.Kind)
	return llmErr
}

func TestGeminiLLM_Generate(t *testing.T) {
	fake := &fakeGenerator{responses: []*genai.GenerateContentResponse{textResponse("Hi ", "there! ")}}
	g := newGeminiLLM(fake, GeminiConfig{}, zaptest.NewLogger(t))

	text, err := g.Generate(context.Background(), "be brief", "hello")
	require.NoError(t, err)
	assert.Equal(t, "Hi there!", text)
	assert.Equal(t, defaultGeminiModel, fake.model)
	require.NotNil(t, fake.config.SystemInstruction)
	assert.Equal(t, "be brief", fake.config.SystemInstruction.Parts[0].Text)
}

func TestGeminiLLM_EmptyCandidates(t *testing.T) {
	fake := &fakeGenerator{responses: []*genai.GenerateContentResponse{{}}}
	g := newGeminiLLM(fake, GeminiConfig{Model: "gemini-test"}, zaptest.NewLogger(t))

	_, err := g.Generate(context.Background(), "", "hello")
	requireLlmKind(t, err, domain.LlmEmpty)
	assert.Nil(t, fake.config.SystemInstruction)
}

func TestGeminiLLM_RejectedIsNotRetried(t *testing.T) {
	fake := &fakeGenerator{errs: []error{genai.APIError{Code: 429, Message: "quota exceeded"}}}
	g := newGeminiLLM(fake, GeminiConfig{MaxRetries: 3}, zaptest.NewLogger(t))

	_, err := g.Generate(context.Background(), "", "hello")
	llmErr := requireLlmKind(t, err, domain.LlmRejected)
	assert.Equal(t, 429, llmErr.Code)
	assert.Equal(t, "quota exceeded", llmErr.Message)
	assert.Equal(t, 1, fake.calls)
}

func TestGeminiLLM_RetriesTransportFaults(t *testing.T) {
	fake := &fakeGenerator{
		errs:      []error{errors.New("connection reset"), nil},
		responses: []*genai.GenerateContentResponse{nil, textResponse("recovered")},
	}
	g := newGeminiLLM(fake, GeminiConfig{MaxRetries: 1}, zaptest.NewLogger(t))
	g.backoff = time.Millisecond

	text, err := g.Generate(context.Background(), "", "hello")
	require.NoError(t, err)
	assert.Equal(t, "recovered", text)
	assert.Equal(t, 2, fake.calls)
}

func TestGeminiLLM_UnreachableAfterRetries(t *testing.T) {
	fault := errors.New("no route to host")
	fake := &fakeGenerator{errs: []error{fault, fault, fault}}
	g := newGeminiLLM(fake, GeminiConfig{MaxRetries: 2}, zaptest.NewLogger(t))
	g.backoff = time.Millisecond

	_, err := g.Generate(context.Background(), "", "hello")
	requireLlmKind(t, err, domain.LlmUnreachable)
	assert.Equal(t, 3, fake.calls)
}

func TestGeminiLLM_DeadlineIsTimeout(t *testing.T) {
	fake := &fakeGenerator{errs: []error{context.DeadlineExceeded}}
	g := newGeminiLLM(fake, GeminiConfig{}, zaptest.NewLogger(t))

	_, err := g.Generate(context.Background(), "", "hello")
	requireLlmKind(t, err, domain.LlmTimeout)
	assert.Equal(t, 1, fake.calls)
}

func TestNewGeminiLLM_RequiresAPIKey(t *testing.T) {
	_, err := NewGeminiLLM(context.Background(), GeminiConfig{}, zaptest.NewLogger(t))
	assert.Error(t, err)
}

func newCompletionServer(t *testing.T, status int, body any) (*httptest.Server, *map[string]any) {
	t.Helper()
	received := map[string]any{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		_ = json.NewDecoder(r.Body).Decode(&received)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(server.Close)
	return server, &received
}

func newTestOpenAI(t *testing.T, baseURL string) *OpenAILLM {
	t.Helper()
	o, err := NewOpenAILLM(OpenAIConfig{
		APIKey:     "test-key",
		BaseURL:    baseURL + "/",
		MaxRetries: 0,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	return o
}

func TestOpenAILLM_Generate(t *testing.T) {
	server, received := newCompletionServer(t, http.StatusOK, map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1,
		"model":   defaultOpenAIModel,
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": "  Hello from qwen. "},
		}},
	})
	o := newTestOpenAI(t, server.URL)

	text, err := o.Generate(context.Background(), "be brief", "hi")
	require.NoError(t, err)
	assert.Equal(t, "Hello from qwen.", text)

	assert.Equal(t, defaultOpenAIModel, (*received)["model"])
	messages, ok := (*received)["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].(map[string]any)["role"])
	assert.Equal(t, "user", messages[1].(map[string]any)["role"])
}

func TestOpenAILLM_NoChoicesIsEmpty(t *testing.T) {
	server, _ := newCompletionServer(t, http.StatusOK, map[string]any{
		"id":      "chatcmpl-2",
		"object":  "chat.completion",
		"created": 1,
		"model":   defaultOpenAIModel,
		"choices": []any{},
	})
	o := newTestOpenAI(t, server.URL)

	_, err := o.Generate(context.Background(), "", "hi")
	requireLlmKind(t, err, domain.LlmEmpty)
}

func TestOpenAILLM_ErrorStatusIsRejected(t *testing.T) {
	server, _ := newCompletionServer(t, http.StatusBadRequest, map[string]any{
		"error": map[string]any{"message": "bad request", "type": "invalid_request_error"},
	})
	o := newTestOpenAI(t, server.URL)

	_, err := o.Generate(context.Background(), "", "hi")
	llmErr := requireLlmKind(t, err, domain.LlmRejected)
	assert.Equal(t, http.StatusBadRequest, llmErr.Code)
}

func TestOpenAILLM_ClosedServerIsUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()
	o := newTestOpenAI(t, url)

	_, err := o.Generate(context.Background(), "", "hi")
	requireLlmKind(t, err, domain.LlmUnreachable)
}

func TestNewOpenAILLM_RequiresAPIKey(t *testing.T) {
	_, err := NewOpenAILLM(OpenAIConfig{APIKey: "  "}, zaptest.NewLogger(t))
	assert.Error(t, err)
}

func TestMockLLM(t *testing.T) {
	m := NewMockLLM()

	text, err := m.Generate(context.Background(), "", "hello")
	require.NoError(t, err)
	assert.Contains(t, text, "hello")

	text, err = m.Generate(context.Background(), "", "")
	require.NoError(t, err)
	assert.NotEmpty(t, text)
}
