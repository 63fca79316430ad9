package model

import (
	"time"
)

// Status represents the lifecycle state of a voice recording.
type Status string

const (
	StatusUploading  Status = "uploading"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// IsValidStatus checks if the given value is a known lifecycle status
func IsValidStatus(s string) bool {
	switch Status(s) {
	case StatusUploading, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	default:
		return false
	}
}

// CanTransition reports whether moving from one status to another is legal.
// The graph is: uploading -> processing -> completed|failed, uploading -> failed,
// and failed -> processing on explicit retry. completed is terminal.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusUploading:
		return to == StatusProcessing || to == StatusFailed
	case StatusProcessing:
		return to == StatusCompleted || to == StatusFailed
	case StatusFailed:
		return to == StatusProcessing
	case StatusCompleted:
		return false
	default:
		return false
	}
}

// VoiceRecording is the metadata record for one uploaded audio file.
type VoiceRecording struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	Filename      string    `json:"filename"`
	Format        string    `json:"format"`
	FileSize      int64     `json:"file_size"`
	Duration      float64   `json:"duration"`
	AudioLocation string    `json:"audio_location"`
	Status        Status    `json:"status"`
	Transcription *string   `json:"transcription,omitempty"`
	QualityScore  *float64  `json:"quality_score,omitempty"`
	ErrorMessage  string    `json:"error_message,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TranscriptionSegment is a timestamped span of recognized speech.
// Segments for a recording are ordered by StartTime and non-overlapping.
type TranscriptionSegment struct {
	ID          int64    `json:"id"`
	RecordingID string   `json:"recording_id"`
	Text        string   `json:"text"`
	StartTime   float64  `json:"start_time"`
	EndTime     float64  `json:"end_time"`
	Confidence  float64  `json:"confidence"`
	SpeakerID   string   `json:"speaker_id,omitempty"`
	Words       []Word   `json:"words,omitempty"`
}

// Word carries word-level timing inside a segment.
type Word struct {
	Word        string  `json:"word"`
	StartTime   float64 `json:"start_time"`
	EndTime     float64 `json:"end_time"`
	Probability float64 `json:"probability,omitempty"`
}

// QualityMetrics holds the acoustic quality analysis for one recording.
// At most one row per recording; re-analysis replaces the row wholesale.
type QualityMetrics struct {
	RecordingID     string    `json:"recording_id"`
	SNR             float64   `json:"snr"`
	Volume          float64   `json:"volume"`
	Clarity         float64   `json:"clarity"`
	BackgroundNoise float64   `json:"background_noise"`
	SpeechRate      float64   `json:"speech_rate"`
	PauseCount      int       `json:"pause_count"`
	OverallQuality  float64   `json:"overall_quality"`
	Recommendations []string  `json:"recommendations"`
	AnalyzedAt      time.Time `json:"analyzed_at"`
}
