package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voicepipe/internal/app/api/provider"
	apperrors "voicepipe/internal/app/errors"
	"voicepipe/internal/app/model"
	"voicepipe/internal/app/quality"
	"voicepipe/internal/app/testutil"
	"voicepipe/internal/config"
)

func testLimits() config.Limits {
	return config.Limits{
		MaxUploadBytes:    1 << 20,
		TranscribeTimeout: 5 * time.Second,
		BlobTimeout:       2 * time.Second,
		AnalysisTimeout:   5 * time.Second,
		SignedURLTTL:      15 * time.Minute,
		BatchConcurrency:  4,
	}
}

func newTestService(t *testing.T, p provider.TranscriptionProvider) (*VoiceServiceImpl, *testutil.FakeRecordingDAO, *testutil.FakeBlobStore) {
	t.Helper()
	dao := testutil.NewFakeRecordingDAO()
	blobs := testutil.NewFakeBlobStore()
	registry := provider.NewRegistry()
	if p != nil {
		require.NoError(t, registry.Register(p.Name(), p))
	}
	svc := NewVoiceService(dao, blobs, registry, quality.NewAcousticAnalyzer(), testLimits(),
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	return svc, dao, blobs
}

// multipartUpload builds a multipart file + header the way gin hands them to
// the service.
func multipartUpload(t *testing.T, filename string, content []byte) (multipart.File, *multipart.FileHeader) {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("audio", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest("POST", "/api/voice/upload", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	file, header, err := req.FormFile("audio")
	require.NoError(t, err)
	return file, header
}

func waitForStatus(t *testing.T, dao *testutil.FakeRecordingDAO, id string, want model.Status) *model.VoiceRecording {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		rec, err := dao.GetByID(context.Background(), id)
		require.NoError(t, err)
		if rec.Status == want {
			return rec
		}
		time.Sleep(10 * time.Millisecond)
	}
	rec, _ := dao.GetByID(context.Background(), id)
	t.Fatalf("recording %s never reached %s, stuck at %s", id, want, rec.Status)
	return nil
}

func TestCreateRecording(t *testing.T) {
	wav := testutil.SynthesizeWAV(16000, testutil.WAVSpec{Freq: 440, Amplitude: 0.5, Duration: 200 * time.Millisecond})

	tests := []struct {
		name     string
		filename string
		content  []byte
		wantErr  error
	}{
		{"wav upload succeeds", "memo.wav", wav, nil},
		{"mp3 extension accepted", "memo.mp3", []byte("fake mp3 bytes"), nil},
		{"text file rejected", "notes.txt", []byte("not audio"), apperrors.ErrInvalidFormat},
		{"extensionless file rejected", "mystery", []byte("???"), apperrors.ErrInvalidFormat},
		{"oversized upload rejected", "big.wav", bytes.Repeat([]byte{0}, 2<<20), apperrors.ErrFileTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, dao, blobs := newTestService(t, nil)
			file, header := multipartUpload(t, tt.filename, tt.content)

			rec, err := svc.CreateRecording(context.Background(), "alice", file, header)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				// Validation failures must not leave anything behind.
				assert.Empty(t, blobs.Uploaded)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, model.StatusUploading, rec.Status)
			assert.Equal(t, "alice", rec.UserID)
			assert.Equal(t, tt.filename, rec.Filename)
			assert.Equal(t, int64(len(tt.content)), rec.FileSize)
			assert.NotEmpty(t, rec.AudioLocation)
			assert.True(t, blobs.Has(rec.AudioLocation))

			stored, err := dao.GetByID(context.Background(), rec.ID)
			require.NoError(t, err)
			assert.Equal(t, rec.AudioLocation, stored.AudioLocation)
		})
	}
}

func TestCreateRecording_MissingFile(t *testing.T) {
	svc, _, _ := newTestService(t, nil)
	_, err := svc.CreateRecording(context.Background(), "alice", nil, nil)
	assert.ErrorIs(t, err, apperrors.ErrMissingFile)
}

func TestCreateRecording_BlobCleanupOnInsertFailure(t *testing.T) {
	svc, dao, blobs := newTestService(t, nil)
	dao.ErrorMap["Insert"] = errors.New("disk full")

	file, header := multipartUpload(t, "memo.wav", []byte("audio bytes"))
	_, err := svc.CreateRecording(context.Background(), "alice", file, header)
	require.Error(t, err)

	// The uploaded blob must be rolled back when metadata persistence fails.
	require.Len(t, blobs.Uploaded, 1)
	assert.Equal(t, blobs.Uploaded, blobs.Removed)
	assert.False(t, blobs.Has(blobs.Uploaded[0]))
}

func TestProcessTranscription_Success(t *testing.T) {
	stub := testutil.NewStubProvider("stub", &provider.Result{
		Text: "hello world",
		Segments: []provider.Segment{
			{Text: "hello", Start: 0, End: 0.5, Confidence: 0.98},
			{Text: "world", Start: 0.5, End: 1.0, Confidence: 0.95},
		},
	})
	svc, dao, blobs := newTestService(t, stub)

	rec := testutil.NewRecording("alice", model.StatusUploading)
	dao.Seed(rec)
	blobs.Put(rec.AudioLocation, []byte("audio bytes"))

	require.NoError(t, svc.ProcessTranscription(context.Background(), rec.ID, "", ""))

	final := waitForStatus(t, dao, rec.ID, model.StatusCompleted)
	require.NotNil(t, final.Transcription)
	assert.Equal(t, "hello world", *final.Transcription)
	assert.Empty(t, final.ErrorMessage)

	segments, err := dao.GetSegments(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Len(t, segments, 2)
	assert.Equal(t, "hello", segments[0].Text)
}

func TestProcessTranscription_ProviderFailureMarksFailed(t *testing.T) {
	stub := testutil.NewStubProvider("stub", nil)
	stub.Errs = []error{apperrors.Permanent("speech service rejected audio", nil)}
	svc, dao, blobs := newTestService(t, stub)

	rec := testutil.NewRecording("alice", model.StatusUploading)
	dao.Seed(rec)
	blobs.Put(rec.AudioLocation, []byte("audio bytes"))

	require.NoError(t, svc.ProcessTranscription(context.Background(), rec.ID, "", ""))

	final := waitForStatus(t, dao, rec.ID, model.StatusFailed)
	assert.Contains(t, final.ErrorMessage, "speech service rejected audio")
}

func TestProcessTranscription_EmptyAudioCompletesEmpty(t *testing.T) {
	stub := testutil.NewStubProvider("stub", &provider.Result{Text: "should never be called"})
	svc, dao, blobs := newTestService(t, stub)

	rec := testutil.NewRecording("alice", model.StatusUploading)
	dao.Seed(rec)
	blobs.Put(rec.AudioLocation, []byte{})

	require.NoError(t, svc.ProcessTranscription(context.Background(), rec.ID, "", ""))

	final := waitForStatus(t, dao, rec.ID, model.StatusCompleted)
	require.NotNil(t, final.Transcription)
	assert.Empty(t, *final.Transcription)
	assert.Equal(t, 0, stub.Calls())
}

func TestProcessTranscription_Conflicts(t *testing.T) {
	tests := []struct {
		name    string
		status  model.Status
		wantErr error
	}{
		{"already processing", model.StatusProcessing, apperrors.ErrAlreadyProcessing},
		{"already completed", model.StatusCompleted, apperrors.ErrAlreadyCompleted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := testutil.NewStubProvider("stub", &provider.Result{})
			svc, dao, _ := newTestService(t, stub)

			rec := testutil.NewRecording("alice", tt.status)
			dao.Seed(rec)

			err := svc.ProcessTranscription(context.Background(), rec.ID, "", "")
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, 0, stub.Calls())
		})
	}
}

func TestProcessTranscription_FailedRecordingCanRetry(t *testing.T) {
	stub := testutil.NewStubProvider("stub", &provider.Result{Text: "second attempt"})
	svc, dao, blobs := newTestService(t, stub)

	rec := testutil.NewRecording("alice", model.StatusFailed)
	rec.ErrorMessage = "previous transient failure"
	dao.Seed(rec)
	blobs.Put(rec.AudioLocation, []byte("audio bytes"))

	require.NoError(t, svc.ProcessTranscription(context.Background(), rec.ID, "", ""))

	final := waitForStatus(t, dao, rec.ID, model.StatusCompleted)
	require.NotNil(t, final.Transcription)
	assert.Equal(t, "second attempt", *final.Transcription)
	assert.Empty(t, final.ErrorMessage)
}

func TestProcessTranscription_UnknownRecording(t *testing.T) {
	svc, _, _ := newTestService(t, testutil.NewStubProvider("stub", &provider.Result{}))
	err := svc.ProcessTranscription(context.Background(), "no-such-id", "", "")
	assert.ErrorIs(t, err, apperrors.ErrRecordingNotFound)
}

func TestProcessTranscription_TransientRetryThenSuccess(t *testing.T) {
	inner := testutil.NewStubProvider("flaky", &provider.Result{Text: "finally"})
	inner.Errs = []error{
		apperrors.Transient("rate limited", nil),
		apperrors.Transient("rate limited", nil),
	}
	retrying := provider.WithRetry(inner, provider.RetryConfig{
		MaxAttempts:        3,
		InitialBackoff:     time.Millisecond,
		BackoffCoefficient: 2.0,
		MaxBackoff:         10 * time.Millisecond,
	})
	svc, dao, blobs := newTestService(t, retrying)

	rec := testutil.NewRecording("alice", model.StatusUploading)
	dao.Seed(rec)
	blobs.Put(rec.AudioLocation, []byte("audio bytes"))

	require.NoError(t, svc.ProcessTranscription(context.Background(), rec.ID, "", ""))

	final := waitForStatus(t, dao, rec.ID, model.StatusCompleted)
	require.NotNil(t, final.Transcription)
	assert.Equal(t, "finally", *final.Transcription)
	assert.Equal(t, 3, inner.Calls())
}

func TestGetRecording_Ownership(t *testing.T) {
	svc, dao, _ := newTestService(t, nil)
	rec := testutil.NewRecording("alice", model.StatusUploading)
	dao.Seed(rec)

	got, err := svc.GetRecording(context.Background(), rec.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)

	_, err = svc.GetRecording(context.Background(), rec.ID, "mallory")
	assert.ErrorIs(t, err, apperrors.ErrAccessDenied)
}

func TestBatchProcessTranscriptions(t *testing.T) {
	stub := testutil.NewStubProvider("stub", &provider.Result{Text: "ok"})
	svc, dao, blobs := newTestService(t, stub)

	var ids []string
	for i := 0; i < 5; i++ {
		rec := testutil.NewRecording("alice", model.StatusUploading)
		dao.Seed(rec)
		blobs.Put(rec.AudioLocation, []byte("audio"))
		ids = append(ids, rec.ID)
	}
	// One unknown ID mixed in must not abort the rest.
	ids = append(ids, "no-such-id")

	results := svc.BatchProcessTranscriptions(context.Background(), ids, 2)
	require.Len(t, results, 6)

	accepted := 0
	for _, r := range results {
		if r.Accepted {
			accepted++
		} else {
			assert.Equal(t, "no-such-id", r.RecordingID)
			assert.ErrorIs(t, r.Err, apperrors.ErrRecordingNotFound)
		}
	}
	assert.Equal(t, 5, accepted)

	for _, id := range ids[:5] {
		waitForStatus(t, dao, id, model.StatusCompleted)
	}
}

func TestQualityAnalysisRoundTrip(t *testing.T) {
	svc, dao, blobs := newTestService(t, nil)

	rec := testutil.NewRecording("alice", model.StatusCompleted)
	dao.Seed(rec)
	wav := testutil.SynthesizeWAV(16000,
		testutil.WAVSpec{Freq: 220, Amplitude: 0.6, Duration: 600 * time.Millisecond},
		testutil.WAVSpec{Duration: 400 * time.Millisecond},
		testutil.WAVSpec{Freq: 330, Amplitude: 0.6, Duration: 600 * time.Millisecond},
	)
	blobs.Put(rec.AudioLocation, wav)

	require.NoError(t, svc.StartQualityAnalysis(context.Background(), rec.ID))

	var metrics *model.QualityMetrics
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		m, err := svc.GetQualityMetrics(context.Background(), rec.ID)
		if err == nil {
			metrics = m
			break
		}
		require.ErrorIs(t, err, apperrors.ErrMetricsNotFound)
		time.Sleep(10 * time.Millisecond)
	}
	require.NotNil(t, metrics, "analysis never persisted metrics")

	assert.Equal(t, rec.ID, metrics.RecordingID)
	assert.Greater(t, metrics.OverallQuality, 0.0)
	assert.LessOrEqual(t, metrics.OverallQuality, 100.0)
	assert.NotEmpty(t, metrics.Recommendations)

	// The overall score is mirrored onto the recording.
	stored, err := dao.GetByID(context.Background(), rec.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.QualityScore)
	assert.InDelta(t, metrics.OverallQuality, *stored.QualityScore, 0.001)
}

func TestQualityAnalysis_FailureIsReported(t *testing.T) {
	svc, dao, blobs := newTestService(t, nil)

	rec := testutil.NewRecording("alice", model.StatusCompleted)
	dao.Seed(rec)
	blobs.Put(rec.AudioLocation, []byte("this is not audio"))

	require.NoError(t, svc.StartQualityAnalysis(context.Background(), rec.ID))

	// The failed run must not leave pollers with a bare not-found.
	var lastErr error
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		_, err := svc.GetQualityMetrics(context.Background(), rec.ID)
		if err != nil && !errors.Is(err, apperrors.ErrMetricsNotFound) {
			lastErr = err
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	require.Error(t, lastErr, "analysis failure was never surfaced")
	assert.ErrorIs(t, lastErr, apperrors.ErrAnalysisFailed)

	// A later successful run replaces the recorded failure.
	blobs.Put(rec.AudioLocation, testutil.SynthesizeWAV(16000,
		testutil.WAVSpec{Freq: 220, Amplitude: 0.6, Duration: 600 * time.Millisecond},
		testutil.WAVSpec{Duration: 400 * time.Millisecond},
	))
	require.NoError(t, svc.StartQualityAnalysis(context.Background(), rec.ID))

	var metrics *model.QualityMetrics
	deadline = time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		m, err := svc.GetQualityMetrics(context.Background(), rec.ID)
		if err == nil {
			metrics = m
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	require.NotNil(t, metrics, "re-analysis never persisted metrics")
	assert.Equal(t, rec.ID, metrics.RecordingID)
}

func TestStartQualityAnalysis_UnknownRecording(t *testing.T) {
	svc, _, _ := newTestService(t, nil)
	err := svc.StartQualityAnalysis(context.Background(), "no-such-id")
	assert.ErrorIs(t, err, apperrors.ErrRecordingNotFound)
}

func TestUpdateStatus(t *testing.T) {
	tests := []struct {
		name    string
		from    model.Status
		to      string
		wantErr bool
	}{
		{"failed retries to processing", model.StatusFailed, "processing", false},
		{"processing completes", model.StatusProcessing, "completed", false},
		{"completed is terminal", model.StatusCompleted, "processing", true},
		{"unknown status rejected", model.StatusUploading, "archived", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, dao, _ := newTestService(t, nil)
			rec := testutil.NewRecording("alice", tt.from)
			dao.Seed(rec)

			err := svc.UpdateStatus(context.Background(), rec.ID, tt.to)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, apperrors.ErrInvalidStatus)
				return
			}
			require.NoError(t, err)
			stored, err := dao.GetByID(context.Background(), rec.ID)
			require.NoError(t, err)
			assert.Equal(t, model.Status(tt.to), stored.Status)
		})
	}
}

func TestSignedAudioURL(t *testing.T) {
	svc, dao, blobs := newTestService(t, nil)
	rec := testutil.NewRecording("alice", model.StatusCompleted)
	dao.Seed(rec)
	blobs.Put(rec.AudioLocation, []byte("audio"))

	url, expiresAt, err := svc.SignedAudioURL(context.Background(), rec.ID, "alice")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "https://"), "got %q", url)
	assert.True(t, expiresAt.After(time.Now()))

	_, _, err = svc.SignedAudioURL(context.Background(), rec.ID, "mallory")
	assert.ErrorIs(t, err, apperrors.ErrAccessDenied)
}
