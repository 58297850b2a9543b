package audio

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/satriahrh/suara/domain"
)

// ffmpegTranscoder bridges containers without a native Go decoder.
// Input goes through a temp file because some containers (mp4/m4a with a
// trailing moov atom) cannot be demuxed from a pipe.
type ffmpegTranscoder struct {
	path string
}

// Transcode returns raw s16le mono 16 kHz PCM
func (f *ffmpegTranscoder) Transcode(ctx context.Context, raw []byte) ([]byte, error) {
	input, cleanup, err := writeTempInput(raw)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, f.path, ffmpegArgs(input)...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("ffmpeg cancelled: %w", ctx.Err())
		}
		return nil, fmt.Errorf("ffmpeg failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	// Drop a trailing odd byte so the buffer holds whole samples
	out := stdout.Bytes()
	return out[:len(out)-len(out)%2], nil
}

func ffmpegArgs(input string) []string {
	return []string{
		"-hide_banner", "-loglevel", "error",
		"-nostdin",
		"-i", input,
		"-vn",
		"-t", strconv.Itoa(maxDurationSeconds),
		"-ac", strconv.Itoa(domain.NormalizedChannels),
		"-ar", strconv.Itoa(domain.NormalizedSampleRate),
		"-acodec", "pcm_s16le",
		"-f", "s16le",
		"pipe:1",
	}
}

// writeTempInput stores raw in a uniquely named temp file. The returned
// cleanup removes it and must be called on every path.
func writeTempInput(raw []byte) (string, func(), error) {
	file, err := os.CreateTemp("", "asr_audio_*")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	name := file.Name()
	cleanup := func() {
		_ = os.Remove(name)
	}

	if _, err := file.Write(raw); err != nil {
		file.Close()
		cleanup()
		return "", nil, fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := file.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("failed to close temp file: %w", err)
	}

	return name, cleanup, nil
}
