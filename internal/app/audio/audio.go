package audio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"os/exec"
	"strconv"
	"strings"
)

// ProbeDuration returns the duration of the audio stream in seconds using
// ffprobe.
func ProbeDuration(ctx context.Context, r io.Reader) (float64, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		"-i", "pipe:0")
	cmd.Stdin = r

	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe failed: %w", err)
	}
	duration, err := strconv.ParseFloat(strings.TrimSpace(string(output)), 64)
	if err != nil {
		return 0, fmt.Errorf("unexpected ffprobe output: %w", err)
	}
	if math.IsNaN(duration) || duration < 0 {
		return 0, nil
	}
	return duration, nil
}

// TranscodeToWAV converts any ffmpeg-readable audio stream into 16kHz mono
// 16-bit PCM WAV.
func TranscodeToWAV(ctx context.Context, r io.Reader) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-i", "pipe:0",
		"-f", "wav",
		"-ar", "16000",
		"-ac", "1",
		"-acodec", "pcm_s16le",
		"pipe:1")
	cmd.Stdin = r

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg error: %w, stderr: %s", err, stderr.String())
	}
	return stdout.Bytes(), nil
}
