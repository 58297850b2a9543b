package domain

import (
	"errors"
	"fmt"
)

// ConversionReason classifies why audio could not be normalized
type ConversionReason string

const (
	ConversionEmptyInput        ConversionReason = "empty_input"
	ConversionInvalidEncoding   ConversionReason = "invalid_encoding"
	ConversionUnsupportedFormat ConversionReason = "unsupported_format"
	ConversionDecodeFailed      ConversionReason = "decode_failed"
	ConversionEncodeFailed      ConversionReason = "encode_failed"
)

// ConversionError reports that inbound audio could not be normalized
type ConversionError struct {
	Reason ConversionReason
	Err    error
}

func (e *ConversionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("audio conversion failed: %s", e.Reason)
	}
	return fmt.Sprintf("audio conversion failed: %s: %v", e.Reason, e.Err)
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}

// NewConversionError wraps err with a conversion reason
func NewConversionError(reason ConversionReason, err error) *ConversionError {
	return &ConversionError{Reason: reason, Err: err}
}

// AsrError reports a recognition backend failure. Code and Message carry the
// backend status when the backend produced one.
type AsrError struct {
	Code    int
	Message string
	Timeout bool
	Err     error
}

func (e *AsrError) Error() string {
	switch {
	case e.Timeout:
		return "speech recognition timed out"
	case e.Code != 0:
		return fmt.Sprintf("speech recognition failed: %d - %s", e.Code, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("speech recognition failed: %v", e.Err)
	default:
		return "speech recognition failed"
	}
}

func (e *AsrError) Unwrap() error {
	return e.Err
}

// LlmErrorKind distinguishes a backend that answered with a failure from one
// that could not be reached
type LlmErrorKind string

const (
	LlmRejected    LlmErrorKind = "rejected"
	LlmUnreachable LlmErrorKind = "unreachable"
	LlmTimeout     LlmErrorKind = "timeout"
	LlmEmpty       LlmErrorKind = "empty"
)

// LlmError reports a generation backend failure
type LlmError struct {
	Kind    LlmErrorKind
	Code    int
	Message string
	Err     error
}

func (e *LlmError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("generation %s: %d - %s", e.Kind, e.Code, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("generation %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("generation %s", e.Kind)
}

func (e *LlmError) Unwrap() error {
	return e.Err
}

// StartupError is a fatal configuration problem detected before serving
type StartupError struct {
	Key    string
	Reason string
}

func (e *StartupError) Error() string {
	return fmt.Sprintf("invalid configuration %q: %s", e.Key, e.Reason)
}

// IsConversionError reports whether err carries a ConversionError
func IsConversionError(err error) bool {
	var ce *ConversionError
	return errors.As(err, &ce)
}

// IsAsrError reports whether err carries an AsrError
func IsAsrError(err error) bool {
	var ae *AsrError
	return errors.As(err, &ae)
}
