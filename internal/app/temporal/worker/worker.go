package worker

import (
	"context"

	"go.temporal.io/sdk/client"
	sdkworker "go.temporal.io/sdk/worker"

	"voicepipe/internal/app/api/provider"
	"voicepipe/internal/app/repository"
	"voicepipe/internal/app/storage"
	"voicepipe/internal/app/temporal/activities"
	"voicepipe/internal/app/temporal/common"
	"voicepipe/internal/app/temporal/workflows"
)

// Run builds a worker on the task queue and blocks until interrupted. The
// worker shares the DAO, blob store and provider registry with the HTTP
// path so both produce identical recording state.
func Run(config common.TemporalConfig, dao repository.RecordingDAO, blobs storage.BlobStore, registry provider.Registry) error {
	c, err := common.NewTemporalClient(config)
	if err != nil {
		return err
	}
	defer c.Close()

	w := sdkworker.New(c, config.TaskQueue, sdkworker.Options{})

	w.RegisterWorkflow(workflows.RecordingTranscriptionWorkflow)

	acts := activities.NewTranscribeActivities(dao, blobs, registry)
	w.RegisterActivity(acts.ClaimRecording)
	w.RegisterActivity(acts.TranscribeRecording)
	w.RegisterActivity(acts.MarkRecordingFailed)

	return w.Run(sdkworker.InterruptCh())
}

// StartWorkflow launches the durable transcription workflow for a recording
// and returns the workflow run ID.
func StartWorkflow(ctx context.Context, c client.Client, taskQueue string, req workflows.TranscriptionWorkflowRequest) (string, error) {
	options := client.StartWorkflowOptions{
		ID:        "transcribe-" + req.RecordingID,
		TaskQueue: taskQueue,
	}
	run, err := c.ExecuteWorkflow(ctx, options, workflows.RecordingTranscriptionWorkflow, req)
	if err != nil {
		return "", err
	}
	return run.GetRunID(), nil
}
