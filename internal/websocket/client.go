package websocket

import (
	"context"
	"errors"
	"net/http"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/suara/domain"
)

// Messages sent to the client when a stage fails
const (
	msgConversionFailed  = "Audio processing failed"
	msgRecognitionFailed = "Recognition failed or no valid speech detected"
	msgServerError       = "Server error while processing message"
	msgAudioServerError  = "Server error while processing audio"
)

var errConnectionClosed = errors.New("connection closed")

// Transcriber converts a raw audio payload into a transcript
type Transcriber interface {
	Transcribe(ctx context.Context, raw []byte) (string, error)
}

// Responder produces the reply text for a prompt. It never fails; backend
// faults are already folded into fallback text.
type Responder interface {
	Reply(ctx context.Context, prompt string) string
}

// Options tune the transport of every session
type Options struct {
	// Maximum message size allowed from peer
	ReadLimit int64
	// Time allowed to write a message to the peer
	WriteWait time.Duration
	// Time allowed to read the next pong message from the peer
	PongWait time.Duration
	// Outbound messages buffered per connection
	SendBuffer int
}

// DefaultOptions returns the transport settings used when none are configured
func DefaultOptions() Options {
	return Options{
		ReadLimit:  16 << 20,
		WriteWait:  10 * time.Second,
		PongWait:   60 * time.Second,
		SendBuffer: 16,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.ReadLimit <= 0 {
		o.ReadLimit = d.ReadLimit
	}
	if o.WriteWait <= 0 {
		o.WriteWait = d.WriteWait
	}
	if o.PongWait <= 0 {
		o.PongWait = d.PongWait
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = d.SendBuffer
	}
	return o
}

// Send pings to peer with this period. Must be less than pongWait.
func (o Options) pingPeriod() time.Duration {
	return (o.PongWait * 9) / 10
}

// Handler accepts websocket sessions and runs one Client per connection
type Handler struct {
	registry    *Registry
	transcriber Transcriber
	responder   Responder
	options     Options
	upgrader    websocket.Upgrader
	logger      *zap.Logger
}

// NewHandler creates a session handler
func NewHandler(registry *Registry, transcriber Transcriber, responder Responder, options Options, logger *zap.Logger) *Handler {
	return &Handler{
		registry:    registry,
		transcriber: transcriber,
		responder:   responder,
		options:     options.withDefaults(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
		logger: logger,
	}
}

// ServeWS upgrades the request and serves the session until the peer leaves
func (h *Handler) ServeWS(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}

	client := h.newClient(conn)
	h.registry.Add(client)

	go client.writePump()
	client.readPump()
	return nil
}

// Client owns one websocket connection. Inbound messages are handled one at
// a time on the reader goroutine; a single writer goroutine drains send.
type Client struct {
	id      string
	handler *Handler
	conn    *websocket.Conn

	// Buffered channel of outbound messages.
	send chan []byte

	// closed is closed once the writer has stopped
	closed    chan struct{}
	closeOnce sync.Once

	ctx    context.Context
	cancel context.CancelFunc

	logger *zap.Logger
}

func (h *Handler) newClient(conn *websocket.Conn) *Client {
	id := uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		id:      id,
		handler: h,
		conn:    conn,
		send:    make(chan []byte, h.options.SendBuffer),
		closed:  make(chan struct{}),
		ctx:     ctx,
		cancel:  cancel,
		logger:  h.logger.With(zap.String("connectionID", id)),
	}
}

// ID returns the connection ID
func (c *Client) ID() string {
	return c.id
}

// readPump reads frames from the connection and processes each one to
// completion before reading the next.
func (c *Client) readPump() {
	defer func() {
		c.handler.registry.Remove(c)
		c.cancel()
		close(c.send)
		c.conn.Close()
	}()

	opts := c.handler.options
	c.conn.SetReadLimit(opts.ReadLimit)
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(opts.PongWait))
		return nil
	})

	for {
		// processing may outlast pongWait, so the deadline restarts per read
		c.conn.SetReadDeadline(time.Now().Add(opts.PongWait))

		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				c.logger.Warn("WebSocket read error", zap.Error(err))
			} else {
				c.logger.Info("Client disconnected", zap.Error(err))
			}
			return
		}

		switch messageType {
		case websocket.TextMessage:
			c.processMessage(message)
		case websocket.BinaryMessage:
			c.logger.Debug("Ignoring binary frame", zap.Int("size", len(message)))
		}
	}
}

// writePump pumps messages from the send channel to the websocket connection.
func (c *Client) writePump() {
	opts := c.handler.options
	ticker := time.NewTicker(opts.pingPeriod())
	defer func() {
		ticker.Stop()
		c.closeOnce.Do(func() { close(c.closed) })
		c.cancel()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(opts.WriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Error("Failed to write message", zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(opts.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// emit queues msg behind everything sent before it. It blocks while the
// buffer is full and gives up once the writer has stopped.
func (c *Client) emit(msg domain.OutboundMessage) error {
	payload, err := encodeOutbound(msg)
	if err != nil {
		c.logger.Error("Failed to encode message", zap.Error(err))
		return err
	}

	select {
	case c.send <- payload:
		c.logger.Debug("Message queued", zap.String("type", string(msg.Type)))
		return nil
	case <-c.closed:
		return errConnectionClosed
	}
}

// processMessage runs the full pipeline for one text frame
func (c *Client) processMessage(frame []byte) {
	failure := msgServerError
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Recovered panic while processing message",
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
			c.emit(domain.NewErrorMessage(failure))
		}
	}()

	msg, err := ParseInbound(frame)
	switch {
	case err == nil:
	case errors.Is(err, ErrEmptyAudio):
		c.logger.Debug("Skipping audio message without data")
		return
	case errors.Is(err, ErrUnknownMessageType):
		c.logger.Debug("Ignoring message", zap.Error(err))
		return
	case domain.IsConversionError(err):
		c.logger.Warn("Audio payload could not be decoded", zap.Error(err))
		c.emit(domain.NewErrorMessage(msgConversionFailed))
		return
	default:
		c.logger.Warn("Failed to parse message", zap.Error(err), zap.Int("size", len(frame)))
		return
	}

	start := time.Now()
	switch msg.Kind {
	case domain.InboundAudio:
		failure = msgAudioServerError
		c.handleAudio(msg.Audio)
	case domain.InboundText:
		c.handleText(msg.Text)
	}
	c.logger.Info("Message processed",
		zap.String("type", string(msg.Kind)),
		zap.Int64("durationMs", time.Since(start).Milliseconds()))
}

func (c *Client) handleAudio(raw []byte) {
	c.logger.Info("Received audio message", zap.Int("size", len(raw)))

	transcript, err := c.handler.transcriber.Transcribe(c.ctx, raw)
	if err != nil {
		switch {
		case domain.IsConversionError(err):
			c.logger.Warn("Audio normalization failed", zap.Error(err))
			c.emit(domain.NewErrorMessage(msgConversionFailed))
			return
		case domain.IsAsrError(err):
			c.logger.Warn("Speech recognition failed", zap.Error(err))
		default:
			c.logger.Error("Unexpected transcription error", zap.Error(err))
		}
		c.emit(domain.NewErrorMessage(msgRecognitionFailed))
		return
	}

	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		c.logger.Info("No speech detected")
		c.emit(domain.NewErrorMessage(msgRecognitionFailed))
		return
	}

	if err := c.emit(domain.NewASRResult(transcript)); err != nil {
		return
	}

	reply := c.handler.responder.Reply(c.ctx, transcript)
	c.emit(domain.NewLLMResponse(reply))
}

func (c *Client) handleText(text string) {
	c.logger.Info("Received text message", zap.Int("size", len(text)))

	reply := c.handler.responder.Reply(c.ctx, text)
	c.emit(domain.NewLLMResponse(reply))
}
