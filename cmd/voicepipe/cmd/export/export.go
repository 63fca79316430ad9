package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"voicepipe/internal/app"
)

var userID string
var outputFilePath string

func init() {
	Cmd.Flags().StringVarP(&userID, "user", "u", "", "user whose recordings to export")
	Cmd.Flags().StringVarP(&outputFilePath, "output", "o", "", "output xlsx path")

	Cmd.MarkFlagRequired("user")
	Cmd.MarkFlagRequired("output")
}

// Cmd represents the export command
var Cmd = &cobra.Command{
	Use:   "export",
	Short: "Export a user's recordings to excel",
	Long: `Export a user's recordings to excel.

Writes one row per recording with transcription text and quality score.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc := app.InitializeExportService()

		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		data, err := svc.ExportUserRecordings(ctx, userID)
		if err != nil {
			return fmt.Errorf("exporting recordings: %w", err)
		}

		if dir := filepath.Dir(outputFilePath); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("creating output directory: %w", err)
			}
		}
		if err := os.WriteFile(outputFilePath, data, 0644); err != nil {
			return fmt.Errorf("writing %s: %w", outputFilePath, err)
		}

		fmt.Printf("Exported recordings of %s to %s\n", userID, outputFilePath)
		return nil
	},
}
