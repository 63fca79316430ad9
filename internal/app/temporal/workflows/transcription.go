package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// TranscriptionWorkflowRequest starts the durable transcription path for a
// stored recording.
type TranscriptionWorkflowRequest struct {
	RecordingID string `json:"recording_id"`
	Provider    string `json:"provider"`
	Language    string `json:"language"`
}

// TranscriptionWorkflowResult reports the workflow outcome.
type TranscriptionWorkflowResult struct {
	RecordingID    string        `json:"recording_id"`
	Provider       string        `json:"provider"`
	TextLength     int           `json:"text_length"`
	ProcessingTime time.Duration `json:"processing_time"`
	Error          string        `json:"error,omitempty"`
}

// RecordingTranscriptionWorkflow claims a recording, transcribes its audio
// and persists the result. Activity retries cover transient provider
// failures; a non-retryable failure marks the recording failed.
func RecordingTranscriptionWorkflow(ctx workflow.Context, req TranscriptionWorkflowRequest) (TranscriptionWorkflowResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting recording transcription workflow", "recordingId", req.RecordingID)

	startTime := workflow.Now(ctx)

	activityOptions := workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Minute,
		HeartbeatTimeout:    30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    100 * time.Second,
			MaximumAttempts:    3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, activityOptions)

	// Claim first: a recording already processing or completed fails the
	// workflow before any provider call.
	if err := workflow.ExecuteActivity(ctx, "ClaimRecording", req.RecordingID).Get(ctx, nil); err != nil {
		logger.Error("Failed to claim recording", "error", err)
		return TranscriptionWorkflowResult{RecordingID: req.RecordingID, Error: err.Error()}, err
	}

	var outcome TranscribeOutcome
	err := workflow.ExecuteActivity(ctx, "TranscribeRecording", TranscribeInput{
		RecordingID: req.RecordingID,
		Provider:    req.Provider,
		Language:    req.Language,
	}).Get(ctx, &outcome)
	if err != nil {
		logger.Error("Transcription activity failed", "error", err)
		// Best effort: record the failure on the recording so the lifecycle
		// does not wedge in processing.
		_ = workflow.ExecuteActivity(ctx, "MarkRecordingFailed", MarkFailedInput{
			RecordingID: req.RecordingID,
			Reason:      err.Error(),
		}).Get(ctx, nil)
		return TranscriptionWorkflowResult{RecordingID: req.RecordingID, Error: err.Error()}, err
	}

	processingTime := workflow.Now(ctx).Sub(startTime)

	result := TranscriptionWorkflowResult{
		RecordingID:    req.RecordingID,
		Provider:       outcome.Provider,
		TextLength:     outcome.TextLength,
		ProcessingTime: processingTime,
	}

	logger.Info("Recording transcription completed",
		"recordingId", req.RecordingID,
		"provider", result.Provider,
		"duration", result.ProcessingTime)

	return result, nil
}

// TranscribeInput is the activity input for TranscribeRecording.
type TranscribeInput struct {
	RecordingID string `json:"recording_id"`
	Provider    string `json:"provider"`
	Language    string `json:"language"`
}

// TranscribeOutcome is the activity output of TranscribeRecording.
type TranscribeOutcome struct {
	RecordingID string `json:"recording_id"`
	Provider    string `json:"provider"`
	TextLength  int    `json:"text_length"`
	Segments    int    `json:"segments"`
}

// MarkFailedInput is the activity input for MarkRecordingFailed.
type MarkFailedInput struct {
	RecordingID string `json:"recording_id"`
	Reason      string `json:"reason"`
}
