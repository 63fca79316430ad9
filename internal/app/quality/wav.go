package quality

import (
	"encoding/binary"
	"fmt"
	"math"
)

// pcmAudio is a decoded mono PCM stream normalized to [-1, 1].
type pcmAudio struct {
	samples    []float64
	sampleRate int
}

func (a *pcmAudio) duration() float64 {
	if a.sampleRate == 0 {
		return 0
	}
	return float64(len(a.samples)) / float64(a.sampleRate)
}

// decodeWAV parses a RIFF/WAVE container with 16-bit PCM data. Multi-channel
// input is mixed down to mono.
func decodeWAV(data []byte) (*pcmAudio, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, fmt.Errorf("not a RIFF/WAVE stream")
	}

	var (
		channels      int
		sampleRate    int
		bitsPerSample int
		pcm           []byte
	)

	// Walk the chunk list; fmt must precede data.
	offset := 12
	for offset+8 <= len(data) {
		chunkID := string(data[offset : offset+4])
		chunkSize := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		body := offset + 8
		if body+chunkSize > len(data) {
			chunkSize = len(data) - body
		}

		switch chunkID {
		case "fmt ":
			if chunkSize < 16 {
				return nil, fmt.Errorf("fmt chunk too short")
			}
			audioFormat := binary.LittleEndian.Uint16(data[body : body+2])
			if audioFormat != 1 {
				return nil, fmt.Errorf("unsupported WAV encoding %d, want PCM", audioFormat)
			}
			channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			sampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			bitsPerSample = int(binary.LittleEndian.Uint16(data[body+14 : body+16]))
		case "data":
			pcm = data[body : body+chunkSize]
		}

		// Chunks are word-aligned.
		offset = body + chunkSize
		if chunkSize%2 == 1 {
			offset++
		}
	}

	if sampleRate == 0 || channels == 0 {
		return nil, fmt.Errorf("missing fmt chunk")
	}
	if bitsPerSample != 16 {
		return nil, fmt.Errorf("unsupported bit depth %d, want 16", bitsPerSample)
	}
	if pcm == nil {
		return nil, fmt.Errorf("missing data chunk")
	}

	frameSize := 2 * channels
	frames := len(pcm) / frameSize
	samples := make([]float64, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for ch := 0; ch < channels; ch++ {
			raw := int16(binary.LittleEndian.Uint16(pcm[i*frameSize+ch*2 : i*frameSize+ch*2+2]))
			sum += float64(raw) / math.MaxInt16
		}
		samples[i] = sum / float64(channels)
	}

	return &pcmAudio{samples: samples, sampleRate: sampleRate}, nil
}
