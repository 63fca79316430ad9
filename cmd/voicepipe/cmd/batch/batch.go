package batch

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"voicepipe/internal/app"
	"voicepipe/internal/config"
)

var (
	recordingIDs []string
	userID       string
	concurrency  int
	timeout      time.Duration
)

func init() {
	Cmd.Flags().StringSliceVarP(&recordingIDs, "recording", "r", nil, "recording ID to transcribe (repeatable)")
	Cmd.Flags().StringVarP(&userID, "user", "u", "", "transcribe all pending recordings of this user")
	Cmd.Flags().IntVarP(&concurrency, "concurrency", "c", 0, "max concurrent transcriptions (default from BATCH_CONCURRENCY)")
	Cmd.Flags().DurationVarP(&timeout, "timeout", "t", 30*time.Minute, "overall batch timeout")
}

// Cmd represents the batch command
var Cmd = &cobra.Command{
	Use:   "batch",
	Short: "Transcribe stored recordings in bulk",
	Long: `Transcribe stored recordings in bulk.

Recordings are claimed one by one; a recording already processing or
completed is skipped and reported, never retried blindly.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc := app.InitializeVoiceService()

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		ids := recordingIDs
		if userID != "" {
			recs, err := svc.GetRecordingsByUser(ctx, userID)
			if err != nil {
				return fmt.Errorf("listing recordings for %s: %w", userID, err)
			}
			for _, rec := range recs {
				if rec.Status == "uploading" || rec.Status == "failed" {
					ids = append(ids, rec.ID)
				}
			}
		}
		if len(ids) == 0 {
			fmt.Println("Nothing to transcribe")
			return nil
		}
		if concurrency <= 0 {
			concurrency = config.DefaultLimits().BatchConcurrency
		}

		progress := mpb.New(
			mpb.WithOutput(os.Stderr),
			mpb.WithRefreshRate(120*time.Millisecond),
			mpb.WithWaitGroup(&sync.WaitGroup{}),
		)
		bar := progress.AddBar(int64(len(ids)),
			mpb.PrependDecorators(
				decor.Name("transcribing ", decor.WC{W: 13, C: decor.DindentRight}),
				decor.CountersNoUnit("(%d/%d)", decor.WCSyncWidth),
			),
			mpb.AppendDecorators(
				decor.NewPercentage("%.1f", decor.WCSyncSpace),
			),
		)

		type claim struct {
			id  string
			err error
		}
		results := make([]claim, 0, len(ids))
		for _, batchResult := range svc.BatchProcessTranscriptions(ctx, ids, concurrency) {
			results = append(results, claim{id: batchResult.RecordingID, err: batchResult.Err})
			bar.Increment()
		}
		progress.Wait()

		failed := 0
		for _, r := range results {
			if r.err != nil {
				failed++
				fmt.Fprintf(os.Stderr, "✗ %s: %v\n", r.id, r.err)
			}
		}
		fmt.Printf("Claimed %d/%d recordings for transcription\n", len(results)-failed, len(results))
		if failed > 0 {
			return fmt.Errorf("%d recordings could not be claimed", failed)
		}
		return nil
	},
}
