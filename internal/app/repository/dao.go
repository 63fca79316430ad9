package repository

import (
	"context"

	"voicepipe/internal/app/model"
)

// RecordingDAO is the metadata store contract for voice recordings.
// Implementations must enforce uniqueness on the recording ID and a foreign
// key from user_id to the users table, and provide a restart-safe processing
// lock via ClaimForProcessing.
type RecordingDAO interface {
	Close() error

	// EnsureUser creates the user row if it does not exist yet. Identity is
	// resolved upstream; this only satisfies the foreign key.
	EnsureUser(ctx context.Context, userID string) error

	// Insert persists a new recording. Fails with ErrUnknownUser when the
	// owning user does not exist.
	Insert(ctx context.Context, rec *model.VoiceRecording) error

	GetByID(ctx context.Context, id string) (*model.VoiceRecording, error)
	GetByUser(ctx context.Context, userID string) ([]model.VoiceRecording, error)

	// ClaimForProcessing atomically transitions the recording to processing.
	// Only uploading and failed recordings can be claimed; a recording already
	// processing yields ErrAlreadyProcessing and a completed one
	// ErrAlreadyCompleted. The claim is a conditional UPDATE so exactly one of
	// any number of concurrent callers wins, across process restarts.
	ClaimForProcessing(ctx context.Context, id string) error

	// CompleteTranscription stores the transcription text and segments and
	// moves the recording to completed, all in one transaction.
	CompleteTranscription(ctx context.Context, id string, text string, segments []model.TranscriptionSegment) error

	// MarkFailed moves the recording to failed and records the error message.
	MarkFailed(ctx context.Context, id string, errMsg string) error

	// UpdateStatus persists a status change and bumps updated_at.
	UpdateStatus(ctx context.Context, id string, status model.Status) error

	GetSegments(ctx context.Context, recordingID string) ([]model.TranscriptionSegment, error)

	// SaveQualityMetrics replaces the metrics row for the recording wholesale
	// and mirrors the overall score onto the recording.
	SaveQualityMetrics(ctx context.Context, m *model.QualityMetrics) error
	GetQualityMetrics(ctx context.Context, recordingID string) (*model.QualityMetrics, error)
}
