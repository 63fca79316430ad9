package provider

import (
	"io"
	"path/filepath"
	"strings"
	"time"
)

// AudioFormat defines supported audio containers
type AudioFormat string

const (
	FormatWAV  AudioFormat = "wav"
	FormatMP3  AudioFormat = "mp3"
	FormatM4A  AudioFormat = "m4a"
	FormatFLAC AudioFormat = "flac"
	FormatOGG  AudioFormat = "ogg"
	FormatWEBM AudioFormat = "webm"
)

// Request carries one audio stream to transcribe.
type Request struct {
	// Audio is the raw audio bytes. Filename gives providers the extension
	// hint most APIs require.
	Audio    io.Reader
	Filename string
	Format   AudioFormat

	Language string
	Prompt   string
}

// Result is a provider-neutral transcription outcome.
type Result struct {
	Text     string
	Language string
	Duration time.Duration
	Segments []Segment
}

// Segment is a timestamped span of recognized speech.
type Segment struct {
	Text       string
	Start      float64
	End        float64
	Confidence float64
	Words      []Word
}

// Word carries word-level timing.
type Word struct {
	Word        string
	Start       float64
	End         float64
	Probability float64
}

// IsValidAudioFormat checks if the given format is supported
func IsValidAudioFormat(format string) bool {
	switch AudioFormat(strings.ToLower(format)) {
	case FormatWAV, FormatMP3, FormatM4A, FormatFLAC, FormatOGG, FormatWEBM:
		return true
	default:
		return false
	}
}

// FormatFromFilename extracts the audio format from a filename extension,
// returning "" when the extension is not a supported format.
func FormatFromFilename(filename string) AudioFormat {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	if !IsValidAudioFormat(ext) {
		return ""
	}
	return AudioFormat(ext)
}
