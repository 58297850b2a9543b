package main

import (
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/satriahrh/suara/adapters/audio"
	"github.com/satriahrh/suara/domain"
)

var (
	serverURL   string
	textPrompt  string
	audioPath   string
	toneSeconds float64
	waitTimeout time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "chatclient",
	Short: "Send one message to the voice chat gateway and print the replies",
	Long: "Connects to the voice chat websocket, sends a single text or audio message " +
		"and prints every envelope received until the reply (or an error) arrives.",
	RunE: func(cmd *cobra.Command, args []string) error {
		envelope, expected, err := buildEnvelope()
		if err != nil {
			return err
		}
		return chat(envelope, expected)
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.Flags().StringVarP(&serverURL, "url", "u", "ws://localhost:8080/ws/chat", "websocket endpoint")
	rootCmd.Flags().StringVarP(&textPrompt, "text", "t", "", "text prompt to send")
	rootCmd.Flags().StringVarP(&audioPath, "audio", "a", "", "audio file to send")
	rootCmd.Flags().Float64Var(&toneSeconds, "tone", 0, "send a synthesized 440 Hz tone of this many seconds")
	rootCmd.Flags().DurationVar(&waitTimeout, "timeout", 90*time.Second, "how long to wait for the reply")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// buildEnvelope returns the message to send and how many terminal
// envelopes to expect back
func buildEnvelope() (domain.InboundEnvelope, int, error) {
	switch {
	case audioPath != "":
		raw, err := os.ReadFile(audioPath)
		if err != nil {
			return domain.InboundEnvelope{}, 0, fmt.Errorf("read audio file: %w", err)
		}
		log.Printf("Loaded %s (%d bytes)", audioPath, len(raw))
		return audioEnvelope(raw), 1, nil

	case toneSeconds > 0:
		samples := audio.SineWave(440, domain.NormalizedSampleRate, toneSeconds, 0.5)
		raw, err := audio.EncodeWAV(samples, domain.NormalizedSampleRate, domain.NormalizedChannels)
		if err != nil {
			return domain.InboundEnvelope{}, 0, err
		}
		return audioEnvelope(raw), 1, nil

	case textPrompt != "":
		text := textPrompt
		return domain.InboundEnvelope{Type: string(domain.InboundText), Data: &text}, 1, nil
	}
	return domain.InboundEnvelope{}, 0, errors.New("one of --text, --audio or --tone is required")
}

func audioEnvelope(raw []byte) domain.InboundEnvelope {
	data := base64.StdEncoding.EncodeToString(raw)
	return domain.InboundEnvelope{Type: string(domain.InboundAudio), Data: &data}
}

func chat(envelope domain.InboundEnvelope, expected int) error {
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	log.Printf("connecting to %s", serverURL)
	c, _, err := websocket.DefaultDialer.Dial(serverURL, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer c.Close()

	if err := c.WriteJSON(envelope); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	log.Printf("sent %s message", envelope.Type)

	done := make(chan error, 1)
	go func() {
		done <- readReplies(c, expected)
	}()

	select {
	case err := <-done:
		closeGracefully(c, true)
		return err
	case <-time.After(waitTimeout):
		closeGracefully(c, false)
		return fmt.Errorf("no reply within %s", waitTimeout)
	case <-interrupt:
		log.Println("interrupt")
		closeGracefully(c, false)
		return nil
	}
}

func readReplies(c *websocket.Conn, expected int) error {
	for received := 0; received < expected; {
		var msg domain.OutboundMessage
		if err := c.ReadJSON(&msg); err != nil {
			return fmt.Errorf("read: %w", err)
		}

		switch msg.Type {
		case domain.OutboundASRResult:
			fmt.Printf("you said:  %s\n", msg.Text)
		case domain.OutboundLLMResponse:
			fmt.Printf("assistant: %s\n", msg.Text)
			received++
		case domain.OutboundError:
			fmt.Printf("error:     %s\n", msg.Message)
			received++
		default:
			fmt.Printf("unexpected message: %s\n", strings.TrimSpace(fmt.Sprintf("%+v", msg)))
		}
	}
	return nil
}

// closeGracefully sends a close frame. With drain set, and no reader still
// running, it also waits briefly for the server's close reply.
func closeGracefully(c *websocket.Conn, drain bool) {
	err := c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err != nil {
		log.Println("write close:", err)
		return
	}
	if !drain {
		return
	}
	c.SetReadDeadline(time.Now().Add(time.Second))
	for {
		if _, _, err := c.ReadMessage(); err != nil {
			return
		}
	}
}
