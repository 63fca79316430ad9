package quality

import (
	"bytes"
	"context"
	"io"
	"math"
	"sort"
	"time"

	"voicepipe/internal/app/api/provider"
	"voicepipe/internal/app/audio"
	apperrors "voicepipe/internal/app/errors"
	"voicepipe/internal/app/model"
)

// Analyzer computes acoustic quality metrics from raw audio, independent of
// any transcription.
type Analyzer interface {
	Analyze(ctx context.Context, r io.Reader, format provider.AudioFormat) (*model.QualityMetrics, error)
}

const (
	windowMs    = 20
	minPauseMs  = 300
	minOnsetGap = 5 // windows (100ms) between counted energy onsets
)

// AcousticAnalyzer is the default Analyzer. WAV input is decoded in place;
// any other format is transcoded through ffmpeg first.
type AcousticAnalyzer struct{}

// NewAcousticAnalyzer creates the default analyzer
func NewAcousticAnalyzer() *AcousticAnalyzer {
	return &AcousticAnalyzer{}
}

func (a *AcousticAnalyzer) Analyze(ctx context.Context, r io.Reader, format provider.AudioFormat) (*model.QualityMetrics, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrAnalysisFailed, err.Error())
	}

	if format != provider.FormatWAV {
		data, err = audio.TranscodeToWAV(ctx, bytes.NewReader(data))
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrAnalysisFailed, err.Error())
		}
	}

	pcm, err := decodeWAV(data)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrAnalysisFailed, err.Error())
	}

	m := analyzePCM(pcm)
	m.AnalyzedAt = time.Now().UTC()
	return m, nil
}

func analyzePCM(pcm *pcmAudio) *model.QualityMetrics {
	windows := windowRMS(pcm)
	if len(windows) == 0 || peakLevel(pcm.samples) == 0 {
		// Silent or empty audio is a valid recording with nothing to rate.
		return &model.QualityMetrics{
			Recommendations: []string{"Recording contains no detectable audio signal"},
		}
	}

	noiseFloor := percentile(windows, 0.10)
	speechLevel := percentile(windows, 0.90)

	snr := signalToNoise(speechLevel, noiseFloor)
	volume := normalizedVolume(rms(pcm.samples))
	noise := normalizedVolume(noiseFloor)

	threshold := speechThreshold(noiseFloor)
	speech := classifySpeech(windows, threshold)
	pauses := countPauses(speech)
	clarity := speechClarity(windows, speech)
	rate := estimateSpeechRate(windows, speech, pcm.duration())

	m := &model.QualityMetrics{
		SNR:             round2(snr),
		Volume:          round2(volume),
		Clarity:         round2(clarity),
		BackgroundNoise: round2(noise),
		SpeechRate:      round2(rate),
		PauseCount:      pauses,
	}
	m.OverallQuality = round2(overallQuality(m))
	m.Recommendations = recommendations(m, peakLevel(pcm.samples))
	return m
}

// windowRMS splits the stream into fixed windows and computes the RMS level
// of each.
func windowRMS(pcm *pcmAudio) []float64 {
	windowLen := pcm.sampleRate * windowMs / 1000
	if windowLen == 0 {
		return nil
	}
	count := len(pcm.samples) / windowLen
	out := make([]float64, 0, count)
	for i := 0; i < count; i++ {
		out = append(out, rms(pcm.samples[i*windowLen:(i+1)*windowLen]))
	}
	return out
}

func rms(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += s * s
	}
	return math.Sqrt(sum / float64(len(samples)))
}

func peakLevel(samples []float64) float64 {
	var peak float64
	for _, s := range samples {
		if abs := math.Abs(s); abs > peak {
			peak = abs
		}
	}
	return peak
}

func percentile(values []float64, p float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	idx := int(p * float64(len(sorted)-1))
	return sorted[idx]
}

func signalToNoise(speechLevel, noiseFloor float64) float64 {
	const floor = 1e-6
	if noiseFloor < floor {
		noiseFloor = floor
	}
	if speechLevel < floor {
		return 0
	}
	snr := 20 * math.Log10(speechLevel/noiseFloor)
	if snr < 0 {
		return 0
	}
	return snr
}

// normalizedVolume maps an RMS level onto 0..1 over a -60dBFS..0dBFS range.
func normalizedVolume(level float64) float64 {
	if level <= 0 {
		return 0
	}
	db := 20 * math.Log10(level)
	v := (db + 60) / 60
	return clamp01(v)
}

func speechThreshold(noiseFloor float64) float64 {
	threshold := noiseFloor * 3
	if threshold < 0.01 {
		threshold = 0.01
	}
	return threshold
}

func classifySpeech(windows []float64, threshold float64) []bool {
	speech := make([]bool, len(windows))
	for i, w := range windows {
		speech[i] = w >= threshold
	}
	return speech
}

// countPauses counts silent runs of at least minPauseMs that sit between
// speech, ignoring leading and trailing silence.
func countPauses(speech []bool) int {
	minRun := minPauseMs / windowMs
	first, last := -1, -1
	for i, s := range speech {
		if s {
			if first == -1 {
				first = i
			}
			last = i
		}
	}
	if first == -1 {
		return 0
	}

	pauses := 0
	run := 0
	for i := first; i <= last; i++ {
		if speech[i] {
			if run >= minRun {
				pauses++
			}
			run = 0
		} else {
			run++
		}
	}
	return pauses
}

// speechClarity rates the level consistency of speech windows: steady levels
// read clearly, wildly varying levels do not.
func speechClarity(windows []float64, speech []bool) float64 {
	var levels []float64
	for i, w := range windows {
		if speech[i] {
			levels = append(levels, w)
		}
	}
	if len(levels) < 2 {
		return 0
	}

	var mean float64
	for _, l := range levels {
		mean += l
	}
	mean /= float64(len(levels))
	if mean == 0 {
		return 0
	}

	var variance float64
	for _, l := range levels {
		variance += (l - mean) * (l - mean)
	}
	variance /= float64(len(levels))
	cv := math.Sqrt(variance) / mean

	return clamp01(1 - cv/2)
}

// estimateSpeechRate counts energy onsets as a syllable proxy and converts
// them into an approximate words-per-minute figure.
func estimateSpeechRate(windows []float64, speech []bool, durationSec float64) float64 {
	if durationSec <= 0 {
		return 0
	}

	onsets := 0
	lastOnset := -minOnsetGap
	for i := 1; i < len(windows); i++ {
		if speech[i] && !speech[i-1] && i-lastOnset >= minOnsetGap {
			onsets++
			lastOnset = i
		}
		// A clear local energy peak inside a speech run also marks a syllable.
		if i+1 < len(windows) && speech[i] &&
			windows[i] > windows[i-1]*1.5 && windows[i] > windows[i+1]*1.5 &&
			i-lastOnset >= minOnsetGap {
			onsets++
			lastOnset = i
		}
	}

	const syllablesPerWord = 1.5
	return float64(onsets) / syllablesPerWord * 60 / durationSec
}

// overallQuality blends the individual metrics into a 0..100 score.
func overallQuality(m *model.QualityMetrics) float64 {
	snrScore := clamp01(m.SNR / 30)
	volumeScore := bandScore(m.Volume, 0.3, 0.8)
	noiseScore := clamp01(1 - m.BackgroundNoise)

	score := 40*snrScore + 25*m.Clarity + 20*volumeScore + 15*noiseScore
	return clamp(score, 0, 100)
}

// bandScore is 1 inside [lo, hi] and falls off linearly outside.
func bandScore(v, lo, hi float64) float64 {
	switch {
	case v >= lo && v <= hi:
		return 1
	case v < lo:
		return clamp01(v / lo)
	default:
		return clamp01((1 - v) / (1 - hi))
	}
}

func recommendations(m *model.QualityMetrics, peak float64) []string {
	var recs []string
	if m.SNR < 15 {
		recs = append(recs, "Record in a quieter environment to improve the signal-to-noise ratio")
	}
	if m.Volume < 0.3 {
		recs = append(recs, "Move closer to the microphone or increase the input gain")
	}
	if peak > 0.99 {
		recs = append(recs, "Reduce the input gain to avoid clipping")
	}
	if m.BackgroundNoise > 0.5 {
		recs = append(recs, "High background noise detected; consider a directional microphone")
	}
	if m.SpeechRate > 200 {
		recs = append(recs, "Speech is very fast; slowing down improves transcription accuracy")
	}
	if m.Clarity < 0.4 {
		recs = append(recs, "Keep a consistent distance from the microphone for steadier levels")
	}
	if recs == nil {
		recs = []string{"Recording quality is good"}
	}
	return recs
}

func clamp01(v float64) float64 {
	return clamp(v, 0, 1)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
