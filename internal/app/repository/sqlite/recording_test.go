package sqlite

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "voicepipe/internal/app/errors"
	"voicepipe/internal/app/model"
	"voicepipe/internal/app/repository"
)

func TestRecordingDB_Interface(t *testing.T) {
	var _ repository.RecordingDAO = (*RecordingDB)(nil)
}

func newTestDB(t *testing.T) *RecordingDB {
	t.Helper()
	conn, err := sql.Open("sqlite3", "file::memory:?_foreign_keys=on")
	require.NoError(t, err)
	// Every pooled connection would get its own in-memory database.
	conn.SetMaxOpenConns(1)
	t.Cleanup(func() { conn.Close() })

	dao, err := NewRecordingDBWithConn(conn)
	require.NoError(t, err)
	return dao
}

func seedRecording(t *testing.T, dao *RecordingDB, userID string, status model.Status) *model.VoiceRecording {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, dao.EnsureUser(ctx, userID))

	now := time.Now().UTC()
	rec := &model.VoiceRecording{
		ID:            "rec-" + userID + "-" + string(status) + "-" + now.Format("150405.000000000"),
		UserID:        userID,
		Filename:      "memo.wav",
		Format:        "wav",
		FileSize:      2048,
		Duration:      3.2,
		AudioLocation: "recordings/" + userID + "/memo.wav",
		Status:        status,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	require.NoError(t, dao.Insert(ctx, rec))
	return rec
}

func TestInsertAndGetByID(t *testing.T) {
	dao := newTestDB(t)
	ctx := context.Background()

	rec := seedRecording(t, dao, "alice", model.StatusUploading)

	got, err := dao.GetByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, "alice", got.UserID)
	assert.Equal(t, model.StatusUploading, got.Status)
	assert.Nil(t, got.Transcription)
	assert.Nil(t, got.QualityScore)

	_, err = dao.GetByID(ctx, "nope")
	assert.ErrorIs(t, err, apperrors.ErrRecordingNotFound)
}

func TestInsertRejectsUnknownUser(t *testing.T) {
	dao := newTestDB(t)
	ctx := context.Background()

	now := time.Now().UTC()
	rec := &model.VoiceRecording{
		ID: "orphan", UserID: "ghost", Filename: "x.wav", Format: "wav",
		FileSize: 1, AudioLocation: "x", Status: model.StatusUploading,
		CreatedAt: now, UpdatedAt: now,
	}
	err := dao.Insert(ctx, rec)
	assert.ErrorIs(t, err, apperrors.ErrUnknownUser)
}

func TestClaimForProcessing(t *testing.T) {
	tests := []struct {
		name    string
		status  model.Status
		wantErr error
	}{
		{"uploading is claimable", model.StatusUploading, nil},
		{"failed is claimable for retry", model.StatusFailed, nil},
		{"processing rejects second claim", model.StatusProcessing, apperrors.ErrAlreadyProcessing},
		{"completed is terminal", model.StatusCompleted, apperrors.ErrAlreadyCompleted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dao := newTestDB(t)
			ctx := context.Background()
			rec := seedRecording(t, dao, "alice", tt.status)

			err := dao.ClaimForProcessing(ctx, rec.ID)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)

			got, err := dao.GetByID(ctx, rec.ID)
			require.NoError(t, err)
			assert.Equal(t, model.StatusProcessing, got.Status)

			// The winner holds the claim; a second caller loses.
			err = dao.ClaimForProcessing(ctx, rec.ID)
			assert.ErrorIs(t, err, apperrors.ErrAlreadyProcessing)
		})
	}
}

func TestClaimForProcessing_ConcurrentClaimsSingleWinner(t *testing.T) {
	dao := newTestDB(t)
	ctx := context.Background()
	rec := seedRecording(t, dao, "alice", model.StatusUploading)

	const claimers = 8
	errs := make([]error, claimers)
	var start, done sync.WaitGroup
	start.Add(1)
	done.Add(claimers)
	for i := 0; i < claimers; i++ {
		go func(i int) {
			defer done.Done()
			start.Wait()
			errs[i] = dao.ClaimForProcessing(ctx, rec.ID)
		}(i)
	}
	start.Done()
	done.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		assert.ErrorIs(t, err, apperrors.ErrAlreadyProcessing)
	}
	assert.Equal(t, 1, wins, "exactly one claimer may win")

	got, err := dao.GetByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusProcessing, got.Status)
}

func TestCompleteTranscriptionStoresSegments(t *testing.T) {
	dao := newTestDB(t)
	ctx := context.Background()
	rec := seedRecording(t, dao, "alice", model.StatusUploading)
	require.NoError(t, dao.ClaimForProcessing(ctx, rec.ID))

	segments := []model.TranscriptionSegment{
		{RecordingID: rec.ID, Text: "hello", StartTime: 0, EndTime: 0.8, Confidence: 0.97},
		{RecordingID: rec.ID, Text: "there", StartTime: 0.8, EndTime: 1.4, Confidence: 0.93,
			Words: []model.Word{{Word: "there", StartTime: 0.8, EndTime: 1.4}}},
	}
	require.NoError(t, dao.CompleteTranscription(ctx, rec.ID, "hello there", segments))

	got, err := dao.GetByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, got.Status)
	require.NotNil(t, got.Transcription)
	assert.Equal(t, "hello there", *got.Transcription)
	assert.Empty(t, got.ErrorMessage)

	stored, err := dao.GetSegments(ctx, rec.ID)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, "hello", stored[0].Text)
	assert.Len(t, stored[1].Words, 1)

	// Re-running replaces segments instead of appending.
	require.NoError(t, dao.CompleteTranscription(ctx, rec.ID, "hello there", segments[:1]))
	stored, err = dao.GetSegments(ctx, rec.ID)
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestMarkFailedAndRetry(t *testing.T) {
	dao := newTestDB(t)
	ctx := context.Background()
	rec := seedRecording(t, dao, "alice", model.StatusUploading)

	require.NoError(t, dao.ClaimForProcessing(ctx, rec.ID))
	require.NoError(t, dao.MarkFailed(ctx, rec.ID, "provider unreachable"))

	got, err := dao.GetByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, got.Status)
	assert.Equal(t, "provider unreachable", got.ErrorMessage)

	// Retry clears the error message on claim.
	require.NoError(t, dao.ClaimForProcessing(ctx, rec.ID))
	got, err = dao.GetByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusProcessing, got.Status)
	assert.Empty(t, got.ErrorMessage)
}

func TestGetByUserOrdering(t *testing.T) {
	dao := newTestDB(t)
	ctx := context.Background()
	require.NoError(t, dao.EnsureUser(ctx, "alice"))
	require.NoError(t, dao.EnsureUser(ctx, "bob"))

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		rec := &model.VoiceRecording{
			ID: string(rune('a'+i)) + "-rec", UserID: "alice", Filename: "f.wav",
			Format: "wav", FileSize: 1, AudioLocation: "loc", Status: model.StatusUploading,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
			UpdatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, dao.Insert(ctx, rec))
	}
	other := seedRecording(t, dao, "bob", model.StatusUploading)

	recs, err := dao.GetByUser(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, "c-rec", recs[0].ID, "newest first")
	for _, rec := range recs {
		assert.NotEqual(t, other.ID, rec.ID)
	}
}

func TestQualityMetricsRoundTrip(t *testing.T) {
	dao := newTestDB(t)
	ctx := context.Background()
	rec := seedRecording(t, dao, "alice", model.StatusCompleted)

	_, err := dao.GetQualityMetrics(ctx, rec.ID)
	assert.ErrorIs(t, err, apperrors.ErrMetricsNotFound)

	metrics := &model.QualityMetrics{
		RecordingID:     rec.ID,
		SNR:             24.5,
		Volume:          0.7,
		Clarity:         0.82,
		BackgroundNoise: 0.1,
		SpeechRate:      145,
		PauseCount:      3,
		OverallQuality:  78.5,
		Recommendations: []string{"Recording quality is good"},
		AnalyzedAt:      time.Now().UTC(),
	}
	require.NoError(t, dao.SaveQualityMetrics(ctx, metrics))

	got, err := dao.GetQualityMetrics(ctx, rec.ID)
	require.NoError(t, err)
	assert.InDelta(t, 24.5, got.SNR, 0.001)
	assert.Equal(t, 3, got.PauseCount)
	assert.Equal(t, []string{"Recording quality is good"}, got.Recommendations)

	// Overall score mirrors onto the recording row.
	stored, err := dao.GetByID(ctx, rec.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.QualityScore)
	assert.InDelta(t, 78.5, *stored.QualityScore, 0.001)

	// A second analysis replaces the row wholesale.
	metrics.OverallQuality = 50
	metrics.Recommendations = []string{"Reduce background noise"}
	require.NoError(t, dao.SaveQualityMetrics(ctx, metrics))
	got, err = dao.GetQualityMetrics(ctx, rec.ID)
	require.NoError(t, err)
	assert.InDelta(t, 50.0, got.OverallQuality, 0.001)
	assert.Equal(t, []string{"Reduce background noise"}, got.Recommendations)
}
