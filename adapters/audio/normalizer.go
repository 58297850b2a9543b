package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os/exec"

	"go.uber.org/zap"

	"github.com/satriahrh/suara/domain"
	"github.com/satriahrh/suara/domain/repositories"
)

// Config holds configuration for the Normalizer
type Config struct {
	// FFmpegPath is the ffmpeg binary used for containers that have no native
	// decoder (webm, ogg, m4a, ...). Empty disables the bridge.
	FFmpegPath string
}

// Normalizer converts arbitrary audio bytes to 16 kHz mono 16-bit PCM.
// WAV and MP3 are decoded in process; anything else goes through ffmpeg.
type Normalizer struct {
	ffmpeg *ffmpegTranscoder
	logger *zap.Logger
}

// Ensure Normalizer implements the AudioNormalizer interface
var _ repositories.AudioNormalizer = (*Normalizer)(nil)

// NewNormalizer creates a new audio normalizer
func NewNormalizer(config Config, logger *zap.Logger) *Normalizer {
	n := &Normalizer{logger: logger}

	if config.FFmpegPath == "" {
		logger.Info("ffmpeg bridge disabled, only WAV and MP3 input is supported")
		return n
	}

	path, err := exec.LookPath(config.FFmpegPath)
	if err != nil {
		logger.Warn("ffmpeg not found, only WAV and MP3 input is supported",
			zap.String("ffmpegPath", config.FFmpegPath),
			zap.Error(err))
		return n
	}

	n.ffmpeg = &ffmpegTranscoder{path: path}
	logger.Info("ffmpeg bridge enabled", zap.String("ffmpegPath", path))
	return n
}

// Normalize implements repositories.AudioNormalizer
func (n *Normalizer) Normalize(ctx context.Context, raw []byte) (normalized domain.NormalizedAudio, err error) {
	if len(raw) == 0 {
		return domain.NormalizedAudio{}, domain.NewConversionError(domain.ConversionEmptyInput, nil)
	}
	if err := ctx.Err(); err != nil {
		return domain.NormalizedAudio{}, domain.NewConversionError(domain.ConversionDecodeFailed, err)
	}

	// Codec libraries panic on some malformed frames.
	defer func() {
		if r := recover(); r != nil {
			n.logger.Error("Audio decoder panicked", zap.Any("panic", r))
			normalized = domain.NormalizedAudio{}
			err = domain.NewConversionError(domain.ConversionDecodeFailed, fmt.Errorf("decoder panic: %v", r))
		}
	}()

	format := sniffFormat(raw)
	n.logger.Debug("Normalizing audio",
		zap.String("format", string(format)),
		zap.Int("size", len(raw)))

	var pcm *pcmBuffer
	switch format {
	case formatWAV:
		pcm, err = decodeWAV(raw)
	case formatMP3:
		pcm, err = decodeMP3(raw)
	default:
		if n.ffmpeg == nil {
			return domain.NormalizedAudio{}, domain.NewConversionError(domain.ConversionUnsupportedFormat,
				fmt.Errorf("no decoder available for this container"))
		}
		var out []byte
		out, err = n.ffmpeg.Transcode(ctx, raw)
		if err != nil {
			return domain.NormalizedAudio{}, domain.NewConversionError(domain.ConversionDecodeFailed, err)
		}
		if len(out) == 0 {
			return domain.NormalizedAudio{}, domain.NewConversionError(domain.ConversionDecodeFailed,
				fmt.Errorf("ffmpeg produced no audio"))
		}
		normalized = domain.NewNormalizedAudio(out)
		n.logNormalized(normalized, len(raw))
		return normalized, nil
	}
	if err != nil {
		var ce *domain.ConversionError
		if errors.As(err, &ce) {
			return domain.NormalizedAudio{}, ce
		}
		return domain.NormalizedAudio{}, domain.NewConversionError(domain.ConversionDecodeFailed, err)
	}
	if pcm.frames() == 0 {
		return domain.NormalizedAudio{}, domain.NewConversionError(domain.ConversionDecodeFailed,
			fmt.Errorf("no audio samples decoded"))
	}

	mono := resample(mixdown(pcm.samples, pcm.channels), pcm.sampleRate, domain.NormalizedSampleRate)
	normalized = domain.NewNormalizedAudio(quantize(mono))
	n.logNormalized(normalized, len(raw))
	return normalized, nil
}

func (n *Normalizer) logNormalized(a domain.NormalizedAudio, inputSize int) {
	n.logger.Info("Audio normalized",
		zap.Int("inputSize", inputSize),
		zap.Int("pcmSize", len(a.PCM)),
		zap.Duration("duration", a.Duration()))
}

// pcmBuffer holds interleaved samples in [-1, 1]
type pcmBuffer struct {
	samples    []float64
	channels   int
	sampleRate int
}

func (p *pcmBuffer) frames() int {
	if p == nil || p.channels == 0 {
		return 0
	}
	return len(p.samples) / p.channels
}

// mixdown averages interleaved channels into a single channel
func mixdown(samples []float64, channels int) []float64 {
	if channels <= 1 {
		return samples
	}
	mono := make([]float64, len(samples)/channels)
	for i := range mono {
		var sum float64
		for c := 0; c < channels; c++ {
			sum += samples[i*channels+c]
		}
		mono[i] = sum / float64(channels)
	}
	return mono
}

// resample uses linear interpolation, which is adequate for speech
func resample(mono []float64, inRate, outRate int) []float64 {
	if inRate == outRate || len(mono) == 0 {
		return mono
	}
	ratio := float64(outRate) / float64(inRate)
	outLen := int(math.Ceil(float64(len(mono)) * ratio))
	out := make([]float64, outLen)
	for i := range out {
		srcPos := float64(i) / ratio
		j := int(math.Floor(srcPos))
		t := srcPos - float64(j)
		switch {
		case j+1 < len(mono):
			out[i] = (1-t)*mono[j] + t*mono[j+1]
		case j < len(mono):
			out[i] = mono[j]
		default:
			out[i] = mono[len(mono)-1]
		}
	}
	return out
}

// quantize clamps samples and packs them as little-endian int16
func quantize(mono []float64) []byte {
	out := make([]byte, len(mono)*2)
	for i, v := range mono {
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(math.Round(v*math.MaxInt16))))
	}
	return out
}
