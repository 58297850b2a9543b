package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"

	"github.com/satriahrh/suara/domain"
)

// Bounds on decoded input. Resampling allocates in proportion to
// duration, so rate and length are checked before any of it happens.
const (
	minSampleRate      = 8000
	maxSampleRate      = 192000
	maxDurationSeconds = 600
)

// checkSampleRate rejects rates no real recorder produces
func checkSampleRate(rate int) error {
	if rate < minSampleRate || rate > maxSampleRate {
		return domain.NewConversionError(domain.ConversionUnsupportedFormat,
			fmt.Errorf("sample rate %d Hz outside %d-%d Hz", rate, minSampleRate, maxSampleRate))
	}
	return nil
}

// checkDuration rejects inputs whose normalized form would exceed the limit
func checkDuration(frames, rate int) error {
	if int64(frames) > int64(maxDurationSeconds)*int64(rate) {
		return domain.NewConversionError(domain.ConversionUnsupportedFormat,
			fmt.Errorf("audio longer than %d seconds", maxDurationSeconds))
	}
	return nil
}

type containerFormat string

const (
	formatWAV     containerFormat = "wav"
	formatMP3     containerFormat = "mp3"
	formatUnknown containerFormat = "unknown"
)

// sniffFormat looks at magic bytes only; the decoders validate the rest
func sniffFormat(raw []byte) containerFormat {
	if len(raw) >= 12 && bytes.Equal(raw[0:4], []byte("RIFF")) && bytes.Equal(raw[8:12], []byte("WAVE")) {
		return formatWAV
	}
	if len(raw) >= 3 && bytes.Equal(raw[0:3], []byte("ID3")) {
		return formatMP3
	}
	// MPEG audio frame sync. Layer bits 00 are reserved, which also rules out ADTS AAC.
	if len(raw) >= 2 && raw[0] == 0xFF && raw[1]&0xE0 == 0xE0 && (raw[1]>>1)&0x03 != 0 {
		return formatMP3
	}
	return formatUnknown
}

func decodeWAV(raw []byte) (*pcmBuffer, error) {
	dec := wav.NewDecoder(bytes.NewReader(raw))
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to decode wav: %w", err)
	}
	if buf == nil || buf.Data == nil || buf.Format == nil {
		return nil, errors.New("invalid or empty wav data")
	}

	channels := buf.Format.NumChannels
	sampleRate := buf.Format.SampleRate
	if channels <= 0 {
		channels = int(dec.NumChans)
	}
	if sampleRate <= 0 {
		sampleRate = int(dec.SampleRate)
	}
	if channels <= 0 {
		return nil, errors.New("invalid channel count")
	}
	if err := checkSampleRate(sampleRate); err != nil {
		return nil, err
	}
	if err := checkDuration(len(buf.Data)/channels, sampleRate); err != nil {
		return nil, err
	}

	bitDepth := buf.SourceBitDepth
	if bitDepth == 0 {
		bitDepth = int(dec.BitDepth)
	}

	samples := make([]float64, len(buf.Data))
	switch bitDepth {
	case 8:
		// 8-bit WAV is unsigned
		for i, v := range buf.Data {
			samples[i] = float64(v-128) / 128
		}
	case 16, 24, 32:
		scale := float64(int64(1) << (bitDepth - 1))
		for i, v := range buf.Data {
			samples[i] = float64(v) / scale
		}
	default:
		return nil, fmt.Errorf("unsupported wav bit depth: %d", bitDepth)
	}

	return &pcmBuffer{samples: samples, channels: channels, sampleRate: sampleRate}, nil
}

// decodeMP3 decodes to float samples. go-mp3 always yields 16-bit stereo.
func decodeMP3(raw []byte) (*pcmBuffer, error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to decode mp3: %w", err)
	}

	if err := checkSampleRate(dec.SampleRate()); err != nil {
		return nil, err
	}

	// 4 bytes per stereo frame
	limit := int64(maxDurationSeconds) * int64(dec.SampleRate()) * 4
	data, err := io.ReadAll(io.LimitReader(dec, limit+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read mp3 frames: %w", err)
	}
	if err := checkDuration(len(data)/4, dec.SampleRate()); err != nil {
		return nil, err
	}

	samples := make([]float64, len(data)/2)
	for i := range samples {
		samples[i] = float64(int16(binary.LittleEndian.Uint16(data[i*2:]))) / 32768
	}

	return &pcmBuffer{samples: samples, channels: 2, sampleRate: dec.SampleRate()}, nil
}
