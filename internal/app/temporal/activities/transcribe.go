package activities

import (
	"context"
	"fmt"
	"time"

	"go.temporal.io/sdk/activity"

	"voicepipe/internal/app/api/provider"
	"voicepipe/internal/app/model"
	"voicepipe/internal/app/repository"
	"voicepipe/internal/app/storage"
	"voicepipe/internal/app/temporal/workflows"
)

// TranscribeActivities bridges the durable workflow path onto the same
// metadata store, blob store and providers the HTTP path uses.
type TranscribeActivities struct {
	dao      repository.RecordingDAO
	blobs    storage.BlobStore
	registry provider.Registry
}

// NewTranscribeActivities creates a new instance of transcription activities
func NewTranscribeActivities(dao repository.RecordingDAO, blobs storage.BlobStore, registry provider.Registry) *TranscribeActivities {
	return &TranscribeActivities{
		dao:      dao,
		blobs:    blobs,
		registry: registry,
	}
}

// ClaimRecording atomically moves the recording into processing. A recording
// already claimed or completed fails the claim.
func (a *TranscribeActivities) ClaimRecording(ctx context.Context, recordingID string) error {
	logger := activity.GetLogger(ctx)
	logger.Info("Claiming recording", "recordingId", recordingID)
	return a.dao.ClaimForProcessing(ctx, recordingID)
}

// MarkRecordingFailed records the failure reason and moves the recording to
// failed.
func (a *TranscribeActivities) MarkRecordingFailed(ctx context.Context, input workflows.MarkFailedInput) error {
	return a.dao.MarkFailed(ctx, input.RecordingID, input.Reason)
}

// TranscribeRecording fetches the audio from the blob store, runs the
// provider and persists text plus segments.
func (a *TranscribeActivities) TranscribeRecording(ctx context.Context, input workflows.TranscribeInput) (workflows.TranscribeOutcome, error) {
	logger := activity.GetLogger(ctx)
	logger.Info("Starting transcription", "recordingId", input.RecordingID, "provider", input.Provider)

	activity.RecordHeartbeat(ctx, fmt.Sprintf("Processing recording: %s", input.RecordingID))

	rec, err := a.dao.GetByID(ctx, input.RecordingID)
	if err != nil {
		return workflows.TranscribeOutcome{RecordingID: input.RecordingID}, err
	}

	var transcriber provider.TranscriptionProvider
	if input.Provider != "" {
		transcriber, err = a.registry.Get(input.Provider)
	} else {
		transcriber, err = a.registry.GetDefault()
	}
	if err != nil {
		logger.Error("Failed to get provider", "error", err)
		return workflows.TranscribeOutcome{RecordingID: input.RecordingID}, err
	}

	body, size, err := a.blobs.Fetch(ctx, rec.AudioLocation)
	if err != nil {
		return workflows.TranscribeOutcome{RecordingID: input.RecordingID}, err
	}
	defer body.Close()

	if size == 0 {
		if err := a.dao.CompleteTranscription(ctx, rec.ID, "", nil); err != nil {
			return workflows.TranscribeOutcome{RecordingID: rec.ID}, err
		}
		return workflows.TranscribeOutcome{RecordingID: rec.ID, Provider: transcriber.Name()}, nil
	}

	// Heartbeat while the provider call runs so long transcriptions survive
	// the heartbeat timeout.
	heartbeatTicker := time.NewTicker(10 * time.Second)
	defer heartbeatTicker.Stop()

	done := make(chan struct{})
	var result *provider.Result
	var transcribeErr error

	go func() {
		result, transcribeErr = transcriber.Transcribe(ctx, &provider.Request{
			Audio:    body,
			Filename: rec.Filename,
			Format:   provider.AudioFormat(rec.Format),
			Language: input.Language,
		})
		close(done)
	}()

	for {
		select {
		case <-done:
			if transcribeErr != nil {
				logger.Error("Transcription failed", "error", transcribeErr)
				return workflows.TranscribeOutcome{RecordingID: rec.ID}, transcribeErr
			}

			segments := make([]model.TranscriptionSegment, 0, len(result.Segments))
			for _, seg := range result.Segments {
				segments = append(segments, model.TranscriptionSegment{
					RecordingID: rec.ID,
					Text:        seg.Text,
					StartTime:   seg.Start,
					EndTime:     seg.End,
					Confidence:  seg.Confidence,
				})
			}
			if err := a.dao.CompleteTranscription(ctx, rec.ID, result.Text, segments); err != nil {
				return workflows.TranscribeOutcome{RecordingID: rec.ID}, err
			}

			logger.Info("Transcription completed",
				"recordingId", rec.ID,
				"provider", transcriber.Name(),
				"segments", len(segments))

			return workflows.TranscribeOutcome{
				RecordingID: rec.ID,
				Provider:    transcriber.Name(),
				TextLength:  len(result.Text),
				Segments:    len(segments),
			}, nil

		case <-heartbeatTicker.C:
			activity.RecordHeartbeat(ctx, fmt.Sprintf("Still processing recording: %s", rec.ID))

		case <-ctx.Done():
			return workflows.TranscribeOutcome{RecordingID: rec.ID}, ctx.Err()
		}
	}
}
