package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"voicepipe/cmd/voicepipe/cmd/batch"
	"voicepipe/cmd/voicepipe/cmd/export"
	"voicepipe/cmd/voicepipe/cmd/serve"
	"voicepipe/cmd/voicepipe/cmd/version"
	"voicepipe/cmd/voicepipe/cmd/worker"
)

var Verbose bool

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "voicepipe",
	Short: "Voice recording lifecycle manager: upload, transcription and quality analysis",
	Long: `Manage voice recordings end to end.
- Serve the HTTP API for uploads, transcription and quality analysis
- Batch-transcribe stored recordings from the command line
- Export a user's recordings to excel
- Run the durable transcription worker`,
	TraverseChildren: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(serve.Cmd)
	rootCmd.AddCommand(batch.Cmd)
	rootCmd.AddCommand(export.Cmd)
	rootCmd.AddCommand(worker.Cmd)
	rootCmd.AddCommand(version.Cmd)

	rootCmd.PersistentFlags().BoolVarP(&Verbose, "verbose", "V", false, "verbose output")
}
