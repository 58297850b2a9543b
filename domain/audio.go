package domain

import "time"

// Format of every buffer handed to the recognition backend
const (
	NormalizedSampleRate = 16000
	NormalizedChannels   = 1
	NormalizedBitDepth   = 16
)

// NormalizedAudio is little-endian signed 16-bit PCM, mono, 16 kHz.
// It is created fresh per message and never shared between messages.
type NormalizedAudio struct {
	PCM        []byte
	SampleRate int
	Channels   int
	BitDepth   int
}

// NewNormalizedAudio wraps raw s16le mono 16 kHz PCM
func NewNormalizedAudio(pcm []byte) NormalizedAudio {
	return NormalizedAudio{
		PCM:        pcm,
		SampleRate: NormalizedSampleRate,
		Channels:   NormalizedChannels,
		BitDepth:   NormalizedBitDepth,
	}
}

// Samples returns the number of samples per channel
func (a NormalizedAudio) Samples() int {
	frame := a.Channels * a.BitDepth / 8
	if frame == 0 {
		return 0
	}
	return len(a.PCM) / frame
}

// Duration returns the playback length of the buffer
func (a NormalizedAudio) Duration() time.Duration {
	if a.SampleRate == 0 {
		return 0
	}
	return time.Duration(a.Samples()) * time.Second / time.Duration(a.SampleRate)
}

// Valid reports whether the buffer satisfies the normalized format
func (a NormalizedAudio) Valid() bool {
	return a.SampleRate == NormalizedSampleRate &&
		a.Channels == NormalizedChannels &&
		a.BitDepth == NormalizedBitDepth &&
		len(a.PCM)%2 == 0
}
