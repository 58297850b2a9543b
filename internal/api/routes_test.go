package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gorilla "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/satriahrh/suara/internal/websocket"
)

type staticTranscriber struct{}

func (staticTranscriber) Transcribe(ctx context.Context, raw []byte) (string, error) {
	return "hello", nil
}

type staticResponder struct{}

func (staticResponder) Reply(ctx context.Context, prompt string) string {
	return "Hi there!"
}

func setupRouter(t *testing.T, wsPath string) (*echo.Echo, *websocket.Registry) {
	t.Helper()
	logger := zap.NewNop()
	registry := websocket.NewRegistry(logger)
	handler := websocket.NewHandler(registry, staticTranscriber{}, staticResponder{}, websocket.DefaultOptions(), logger)

	e := echo.New()
	InitRoutes(e, wsPath, handler, registry)
	return e, registry
}

func TestHealth(t *testing.T) {
	e, _ := setupRouter(t, "/ws/chat")

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestStatusReportsActiveConnections(t *testing.T) {
	e, registry := setupRouter(t, "/voice")
	server := httptest.NewServer(e)
	defer server.Close()

	status := func() StatusResponse {
		resp, err := http.Get(server.URL + "/api/v1/status")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var body StatusResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		return body
	}
	assert.Equal(t, StatusResponse{Status: "ok", ActiveConnections: 0}, status())

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/voice"
	conn, _, err := gorilla.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return registry.Count() == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, status().ActiveConnections)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "text", "data": "hi"}))
	var reply map[string]string
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, map[string]string{"type": "llm_response", "text": "Hi there!"}, reply)
}

func TestWebSocketPathRejectsPlainHTTP(t *testing.T) {
	e, _ := setupRouter(t, "/ws/chat")

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws/chat", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
