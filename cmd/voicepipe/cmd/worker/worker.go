package worker

import (
	"github.com/spf13/cobra"

	"voicepipe/internal/app"
	"voicepipe/internal/app/temporal/common"
	"voicepipe/internal/app/temporal/worker"
)

// Cmd represents the worker command
var Cmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the durable transcription worker",
	Long: `Run the Temporal worker for durable transcription workflows.

Requires a reachable Temporal server (TEMPORAL_HOST, default localhost:7233).
The worker shares the metadata store, blob store and providers with the
HTTP API, so recordings transcribed either way end up in the same state.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc := app.InitializeVoiceService()
		return worker.Run(common.DefaultTemporalConfig(), svc.DAO(), svc.Blobs(), svc.Providers())
	},
}
