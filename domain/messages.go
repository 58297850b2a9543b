package domain

// InboundKind is the discriminator of an envelope received from a client
type InboundKind string

const (
	InboundAudio InboundKind = "audio"
	InboundText  InboundKind = "text"
)

// InboundEnvelope is the wire shape of a client message.
// Data is a pointer so an absent field can be told apart from an empty string.
type InboundEnvelope struct {
	Type string  `json:"type"`
	Data *string `json:"data,omitempty"`
}

// InboundMessage is a decoded client message. Exactly one of Audio or Text is
// meaningful, selected by Kind.
type InboundMessage struct {
	Kind  InboundKind
	Audio []byte
	Text  string
}

// OutboundType is the discriminator of an envelope sent to a client
type OutboundType string

const (
	OutboundASRResult   OutboundType = "asr_result"
	OutboundLLMResponse OutboundType = "llm_response"
	OutboundError       OutboundType = "error"
)

// OutboundMessage represents a message emitted to the client.
// asr_result and llm_response carry Text, error carries Message.
type OutboundMessage struct {
	Type    OutboundType `json:"type"`
	Text    string       `json:"text,omitempty"`
	Message string       `json:"message,omitempty"`
}

// NewASRResult creates the envelope carrying a transcript
func NewASRResult(text string) OutboundMessage {
	return OutboundMessage{Type: OutboundASRResult, Text: text}
}

// NewLLMResponse creates the envelope carrying a generated reply
func NewLLMResponse(text string) OutboundMessage {
	return OutboundMessage{Type: OutboundLLMResponse, Text: text}
}

// NewErrorMessage creates a stage failure envelope
func NewErrorMessage(message string) OutboundMessage {
	return OutboundMessage{Type: OutboundError, Message: message}
}
