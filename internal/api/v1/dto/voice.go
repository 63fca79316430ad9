package dto

import (
	"time"

	"github.com/samber/lo"

	"voicepipe/internal/app/model"
)

// RecordingResponse is the API representation of a voice recording.
type RecordingResponse struct {
	ID            string   `json:"id"`
	UserID        string   `json:"user_id"`
	Filename      string   `json:"filename"`
	Format        string   `json:"format"`
	FileSize      int64    `json:"file_size"`
	Duration      float64  `json:"duration"`
	Status        string   `json:"status"`
	Transcription *string  `json:"transcription,omitempty"`
	QualityScore  *float64 `json:"quality_score,omitempty"`
	ErrorMessage  string   `json:"error_message,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ToRecordingResponse converts a domain recording into its API shape.
// The audio location never leaves the service; signed URLs are issued per
// request instead.
func ToRecordingResponse(rec *model.VoiceRecording) RecordingResponse {
	return RecordingResponse{
		ID:            rec.ID,
		UserID:        rec.UserID,
		Filename:      rec.Filename,
		Format:        rec.Format,
		FileSize:      rec.FileSize,
		Duration:      rec.Duration,
		Status:        string(rec.Status),
		Transcription: rec.Transcription,
		QualityScore:  rec.QualityScore,
		ErrorMessage:  rec.ErrorMessage,
		CreatedAt:     rec.CreatedAt,
		UpdatedAt:     rec.UpdatedAt,
	}
}

// ToRecordingResponses converts a slice of domain recordings.
func ToRecordingResponses(recs []model.VoiceRecording) []RecordingResponse {
	return lo.Map(recs, func(rec model.VoiceRecording, _ int) RecordingResponse {
		return ToRecordingResponse(&rec)
	})
}

// TranscribeRequest starts transcription for one recording.
type TranscribeRequest struct {
	RecordingID string `json:"recordingId" binding:"required"`
	Provider    string `json:"provider,omitempty"`
	Language    string `json:"language,omitempty"`
}

// TranscribeResponse acknowledges an accepted transcription job.
type TranscribeResponse struct {
	RecordingID string `json:"recordingId"`
	Status      string `json:"status"`
}

// BatchTranscribeRequest fans transcription out over several recordings.
type BatchTranscribeRequest struct {
	RecordingIDs []string `json:"recordingIds" binding:"required,min=1"`
	Concurrency  int      `json:"concurrency,omitempty" binding:"omitempty,min=1,max=32"`
}

// BatchItemResponse reports the per-recording outcome of a batch request.
type BatchItemResponse struct {
	RecordingID string `json:"recordingId"`
	Accepted    bool   `json:"accepted"`
	Error       string `json:"error,omitempty"`
}

// AnalyzeQualityRequest starts quality analysis for one recording.
type AnalyzeQualityRequest struct {
	RecordingID string `json:"recordingId" binding:"required"`
}

// QualityResponse is the API representation of quality metrics.
type QualityResponse struct {
	RecordingID     string   `json:"recording_id"`
	SNR             float64  `json:"snr"`
	Volume          float64  `json:"volume"`
	Clarity         float64  `json:"clarity"`
	BackgroundNoise float64  `json:"background_noise"`
	SpeechRate      float64  `json:"speech_rate"`
	PauseCount      int      `json:"pause_count"`
	OverallQuality  float64  `json:"overall_quality"`
	Recommendations []string `json:"recommendations"`
	AnalyzedAt      time.Time `json:"analyzed_at"`
}

// ToQualityResponse converts domain quality metrics into their API shape.
func ToQualityResponse(m *model.QualityMetrics) QualityResponse {
	return QualityResponse{
		RecordingID:     m.RecordingID,
		SNR:             m.SNR,
		Volume:          m.Volume,
		Clarity:         m.Clarity,
		BackgroundNoise: m.BackgroundNoise,
		SpeechRate:      m.SpeechRate,
		PauseCount:      m.PauseCount,
		OverallQuality:  m.OverallQuality,
		Recommendations: m.Recommendations,
		AnalyzedAt:      m.AnalyzedAt,
	}
}

// SegmentResponse is the API representation of a transcription segment.
type SegmentResponse struct {
	Text       string  `json:"text"`
	StartTime  float64 `json:"start_time"`
	EndTime    float64 `json:"end_time"`
	Confidence float64 `json:"confidence"`
	SpeakerID  string  `json:"speaker_id,omitempty"`
}

// ToSegmentResponses converts domain segments into their API shape.
func ToSegmentResponses(segments []model.TranscriptionSegment) []SegmentResponse {
	return lo.Map(segments, func(seg model.TranscriptionSegment, _ int) SegmentResponse {
		return SegmentResponse{
			Text:       seg.Text,
			StartTime:  seg.StartTime,
			EndTime:    seg.EndTime,
			Confidence: seg.Confidence,
			SpeakerID:  seg.SpeakerID,
		}
	})
}

// UpdateStatusRequest changes a recording's lifecycle status.
type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// SignedURLResponse carries a short-lived audio download URL.
type SignedURLResponse struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}
