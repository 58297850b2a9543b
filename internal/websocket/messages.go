package websocket

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/satriahrh/suara/domain"
)

var (
	// ErrMalformedMessage is returned for frames that are not a JSON envelope
	// with a string type and an optional string data field
	ErrMalformedMessage = errors.New("malformed message")

	// ErrUnknownMessageType is returned for well-formed envelopes of a type
	// the gateway does not handle
	ErrUnknownMessageType = errors.New("unknown message type")

	// ErrEmptyAudio is returned for an audio envelope without a payload
	ErrEmptyAudio = errors.New("audio message without data")
)

// ParseInbound classifies a text frame. Audio payloads are base64 decoded,
// optionally behind a data URL prefix. An audio payload that is not valid
// base64, or decodes to nothing, yields a *domain.ConversionError.
func ParseInbound(frame []byte) (domain.InboundMessage, error) {
	var envelope domain.InboundEnvelope
	if err := json.Unmarshal(frame, &envelope); err != nil {
		return domain.InboundMessage{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if envelope.Type == "" {
		return domain.InboundMessage{}, fmt.Errorf("%w: missing type", ErrMalformedMessage)
	}

	var data string
	if envelope.Data != nil {
		data = *envelope.Data
	}

	switch domain.InboundKind(envelope.Type) {
	case domain.InboundText:
		return domain.InboundMessage{Kind: domain.InboundText, Text: data}, nil

	case domain.InboundAudio:
		if data == "" {
			return domain.InboundMessage{}, ErrEmptyAudio
		}
		audio, err := decodeAudioPayload(data)
		if err != nil {
			return domain.InboundMessage{}, err
		}
		return domain.InboundMessage{Kind: domain.InboundAudio, Audio: audio}, nil

	default:
		return domain.InboundMessage{}, fmt.Errorf("%w: %q", ErrUnknownMessageType, envelope.Type)
	}
}

func decodeAudioPayload(data string) ([]byte, error) {
	if strings.HasPrefix(data, "data:") {
		if i := strings.IndexByte(data, ','); i >= 0 {
			data = data[i+1:]
		}
	}

	audio, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		// unpadded payloads from some browser encoders
		var rawErr error
		audio, rawErr = base64.RawStdEncoding.DecodeString(strings.TrimRight(data, "="))
		if rawErr != nil {
			return nil, domain.NewConversionError(domain.ConversionInvalidEncoding, err)
		}
	}
	if len(audio) == 0 {
		return nil, domain.NewConversionError(domain.ConversionEmptyInput, nil)
	}
	return audio, nil
}

// encodeOutbound serializes an envelope for the wire
func encodeOutbound(msg domain.OutboundMessage) ([]byte, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s message: %w", msg.Type, err)
	}
	return payload, nil
}
