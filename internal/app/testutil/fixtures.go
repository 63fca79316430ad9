package testutil

import (
	"bytes"
	"encoding/binary"
	"math"
	"time"

	"github.com/google/uuid"

	"voicepipe/internal/app/model"
)

// NewRecording builds a recording fixture in the given status.
func NewRecording(userID string, status model.Status) *model.VoiceRecording {
	now := time.Now().UTC()
	return &model.VoiceRecording{
		ID:            uuid.New().String(),
		UserID:        userID,
		Filename:      "sample.wav",
		Format:        "wav",
		FileSize:      1024,
		Duration:      2.5,
		AudioLocation: "recordings/" + userID + "/sample.wav",
		Status:        status,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// WAVSpec describes one span of a synthetic WAV fixture.
type WAVSpec struct {
	// Freq is the sine frequency in Hz; 0 produces silence.
	Freq float64
	// Amplitude in [0,1].
	Amplitude float64
	// Duration of the span.
	Duration time.Duration
}

// SynthesizeWAV renders a 16-bit mono PCM WAV from the given spans. Used to
// produce deterministic audio for quality analysis tests: speech-like spans
// are sines, pauses are silence.
func SynthesizeWAV(sampleRate int, spans ...WAVSpec) []byte {
	var samples []int16
	for _, span := range spans {
		n := int(float64(sampleRate) * span.Duration.Seconds())
		for i := 0; i < n; i++ {
			var v float64
			if span.Freq > 0 {
				v = span.Amplitude * math.Sin(2*math.Pi*span.Freq*float64(i)/float64(sampleRate))
			}
			samples = append(samples, int16(v*math.MaxInt16))
		}
	}

	dataSize := len(samples) * 2
	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // mono
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate*2))
	binary.Write(&buf, binary.LittleEndian, uint16(2))
	binary.Write(&buf, binary.LittleEndian, uint16(16))

	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(dataSize))
	for _, s := range samples {
		binary.Write(&buf, binary.LittleEndian, s)
	}
	return buf.Bytes()
}
