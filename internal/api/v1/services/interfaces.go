package services

import (
	"context"
	"mime/multipart"
	"time"

	"voicepipe/internal/app/model"
)

// BatchResult is the per-recording outcome of a batch transcription.
type BatchResult struct {
	RecordingID string
	Accepted    bool
	Err         error
}

// VoiceService manages the full lifecycle of voice recordings: upload,
// transcription, quality analysis and status transitions.
type VoiceService interface {
	// CreateRecording validates and stores an uploaded audio file, then
	// persists its metadata. The returned recording is in "uploading" state.
	CreateRecording(ctx context.Context, userID string, file multipart.File, header *multipart.FileHeader) (*model.VoiceRecording, error)

	// GetRecording fetches a recording, enforcing that requesterID owns it.
	GetRecording(ctx context.Context, id, requesterID string) (*model.VoiceRecording, error)

	// GetRecordingsByUser lists a user's recordings, newest first.
	GetRecordingsByUser(ctx context.Context, userID string) ([]model.VoiceRecording, error)

	// GetSegments fetches the transcription segments of an owned recording.
	GetSegments(ctx context.Context, id, requesterID string) ([]model.TranscriptionSegment, error)

	// ProcessTranscription claims the recording for processing and runs
	// transcription in the background. Returns a conflict error when the
	// recording is already processing or completed.
	ProcessTranscription(ctx context.Context, id, providerName, language string) error

	// BatchProcessTranscriptions claims and processes several recordings with
	// bounded concurrency. Failure of one recording never aborts the rest.
	BatchProcessTranscriptions(ctx context.Context, ids []string, concurrency int) []BatchResult

	// StartQualityAnalysis runs acoustic analysis in the background.
	StartQualityAnalysis(ctx context.Context, id string) error

	// QualityInFlight reports whether analysis for id is currently running.
	QualityInFlight(id string) bool

	// GetQualityMetrics returns persisted quality metrics for a recording.
	GetQualityMetrics(ctx context.Context, id string) (*model.QualityMetrics, error)

	// UpdateStatus applies a lifecycle transition to the recording.
	UpdateStatus(ctx context.Context, id, status string) error

	// SignedAudioURL issues a short-lived download URL for the raw audio.
	SignedAudioURL(ctx context.Context, id, requesterID string) (string, time.Time, error)
}

// ExportService renders a user's recordings into downloadable documents.
type ExportService interface {
	// ExportUserRecordings writes the user's recordings as an xlsx workbook.
	ExportUserRecordings(ctx context.Context, userID string) ([]byte, error)
}
