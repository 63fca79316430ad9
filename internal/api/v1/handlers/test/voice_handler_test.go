package test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voicepipe/internal/api/middleware"
	"voicepipe/internal/api/v1/routes"
	"voicepipe/internal/api/v1/services"
	"voicepipe/internal/app/api/provider"
	"voicepipe/internal/app/model"
	"voicepipe/internal/app/quality"
	"voicepipe/internal/app/testutil"
	"voicepipe/internal/config"
)

type fixture struct {
	router *gin.Engine
	dao    *testutil.FakeRecordingDAO
	blobs  *testutil.FakeBlobStore
}

func newFixture(t *testing.T, p provider.TranscriptionProvider) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dao := testutil.NewFakeRecordingDAO()
	blobs := testutil.NewFakeBlobStore()
	registry := provider.NewRegistry()
	if p != nil {
		require.NoError(t, registry.Register(p.Name(), p))
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	limits := config.Limits{
		MaxUploadBytes:    1 << 20,
		TranscribeTimeout: 5 * time.Second,
		BlobTimeout:       2 * time.Second,
		AnalysisTimeout:   5 * time.Second,
		SignedURLTTL:      15 * time.Minute,
		BatchConcurrency:  4,
	}
	svc := services.NewVoiceService(dao, blobs, registry, quality.NewAcousticAnalyzer(), limits, logger)

	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.ErrorHandler(logger))
	api := router.Group("/api")
	api.Use(middleware.Identity())
	routes.RegisterRoutes(api, &routes.ServiceContainer{
		VoiceService:  svc,
		ExportService: services.NewExportService(dao),
	})

	return &fixture{router: router, dao: dao, blobs: blobs}
}

func (f *fixture) do(req *http.Request, userID string) *httptest.ResponseRecorder {
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func uploadRequest(t *testing.T, filename string, content []byte) *http.Request {
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
	return req
}

func TestUploadEndpoint(t *testing.T) {
	tests := []struct {
		name       string
		filename   string
		content    []byte
		wantStatus int
	}{
		{"valid wav", "memo.wav", []byte("audio bytes"), http.StatusCreated},
		{"unsupported extension", "notes.txt", []byte("text"), http.StatusBadRequest},
		{"oversized payload", "big.wav", bytes.Repeat([]byte{0}, 2<<20), http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			w := f.do(uploadRequest(t, tt.filename, tt.content), "alice")

			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			if tt.wantStatus == http.StatusCreated {
				var resp map[string]any
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
				assert.Equal(t, "uploading", resp["status"])
				assert.Equal(t, "alice", resp["user_id"])
				assert.NotEmpty(t, resp["id"])
			} else {
				var resp map[string]any
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
				assert.NotEmpty(t, resp["error"], "error body must carry an error message")
			}
		})
	}
}

func TestUploadEndpoint_MissingFile(t *testing.T) {
	f := newFixture(t, nil)
	req := httptest.NewRequest("POST", "/api/voice/upload", nil)
	w := f.do(req, "alice")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUploadEndpoint_RequiresIdentity(t *testing.T) {
	f := newFixture(t, nil)
	w := f.do(uploadRequest(t, "memo.wav", []byte("audio")), "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestTranscribeEndpoint(t *testing.T) {
	stub := testutil.NewStubProvider("stub", &provider.Result{Text: "hi"})

	tests := []struct {
		name       string
		seedStatus model.Status
		body       string
		useSeedID  bool
		wantStatus int
	}{
		{"accepts uploading recording", model.StatusUploading, "", true, http.StatusAccepted},
		{"accepts failed recording for retry", model.StatusFailed, "", true, http.StatusAccepted},
		{"conflict when processing", model.StatusProcessing, "", true, http.StatusConflict},
		{"conflict when completed", model.StatusCompleted, "", true, http.StatusConflict},
		{"unknown recording", model.StatusUploading, `{"recordingId":"missing"}`, false, http.StatusNotFound},
		{"missing recordingId", model.StatusUploading, `{}`, false, http.StatusBadRequest},
		{"malformed JSON body", model.StatusUploading, `{not json`, false, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, stub)
			rec := testutil.NewRecording("alice", tt.seedStatus)
			f.dao.Seed(rec)
			f.blobs.Put(rec.AudioLocation, []byte("audio"))

			body := tt.body
			if tt.useSeedID {
				body = `{"recordingId":"` + rec.ID + `"}`
			}
			req := httptest.NewRequest("POST", "/api/voice/transcribe", bytes.NewBufferString(body))
			req.Header.Set("Content-Type", "application/json")
			w := f.do(req, "alice")

			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
		})
	}
}

func TestGetRecordingEndpoint(t *testing.T) {
	f := newFixture(t, nil)
	rec := testutil.NewRecording("alice", model.StatusCompleted)
	text := "hello"
	rec.Transcription = &text
	f.dao.Seed(rec)

	w := f.do(httptest.NewRequest("GET", "/api/voice/"+rec.ID, nil), "alice")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, rec.ID, resp["id"])
	assert.Equal(t, "hello", resp["transcription"])
	// The raw blob location never appears in API responses.
	assert.NotContains(t, resp, "audio_location")

	w = f.do(httptest.NewRequest("GET", "/api/voice/"+rec.ID, nil), "mallory")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(httptest.NewRequest("GET", "/api/voice/"+uuid.NewString(), nil), "alice")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(httptest.NewRequest("GET", "/api/voice/does-not-exist", nil), "alice")
	assert.Equal(t, http.StatusBadRequest, w.Code, "IDs that cannot be a recording ID are rejected up front")
}

func TestListRecordingsEndpoint(t *testing.T) {
	f := newFixture(t, nil)
	f.dao.Seed(testutil.NewRecording("alice", model.StatusUploading))
	f.dao.Seed(testutil.NewRecording("alice", model.StatusCompleted))
	f.dao.Seed(testutil.NewRecording("bob", model.StatusUploading))

	w := f.do(httptest.NewRequest("GET", "/api/voice", nil), "alice")
	require.Equal(t, http.StatusOK, w.Code)

	var resp []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp, 2)
}

func TestQualityEndpoints(t *testing.T) {
	f := newFixture(t, nil)
	rec := testutil.NewRecording("alice", model.StatusCompleted)
	f.dao.Seed(rec)
	wav := testutil.SynthesizeWAV(16000,
		testutil.WAVSpec{Freq: 440, Amplitude: 0.5, Duration: 500 * time.Millisecond})
	f.blobs.Put(rec.AudioLocation, wav)

	// No metrics yet.
	w := f.do(httptest.NewRequest("GET", "/api/voice/quality/"+rec.ID, nil), "alice")
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Trigger analysis.
	body := bytes.NewBufferString(`{"recordingId":"` + rec.ID + `"}`)
	req := httptest.NewRequest("POST", "/api/voice/quality", body)
	req.Header.Set("Content-Type", "application/json")
	w = f.do(req, "alice")
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	// Poll until metrics land.
	deadline := time.Now().Add(3 * time.Second)
	for {
		w = f.do(httptest.NewRequest("GET", "/api/voice/quality/"+rec.ID, nil), "alice")
		if w.Code == http.StatusOK {
			break
		}
		require.Contains(t, []int{http.StatusAccepted, http.StatusNotFound}, w.Code)
		require.True(t, time.Now().Before(deadline), "metrics never became available")
		time.Sleep(10 * time.Millisecond)
	}

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, rec.ID, resp["recording_id"])
	assert.NotNil(t, resp["overall_quality"])
	assert.NotNil(t, resp["snr"])
}

func TestUpdateStatusEndpoint(t *testing.T) {
	f := newFixture(t, nil)
	rec := testutil.NewRecording("alice", model.StatusFailed)
	f.dao.Seed(rec)

	body := bytes.NewBufferString(`{"status":"processing"}`)
	req := httptest.NewRequest("PATCH", "/api/voice/"+rec.ID+"/status", body)
	req.Header.Set("Content-Type", "application/json")
	w := f.do(req, "alice")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// completed is terminal.
	rec2 := testutil.NewRecording("alice", model.StatusCompleted)
	f.dao.Seed(rec2)
	body = bytes.NewBufferString(`{"status":"processing"}`)
	req = httptest.NewRequest("PATCH", "/api/voice/"+rec2.ID+"/status", body)
	req.Header.Set("Content-Type", "application/json")
	w = f.do(req, "alice")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSignedURLEndpoint(t *testing.T) {
	f := newFixture(t, nil)
	rec := testutil.NewRecording("alice", model.StatusCompleted)
	f.dao.Seed(rec)
	f.blobs.Put(rec.AudioLocation, []byte("audio"))

	w := f.do(httptest.NewRequest("GET", "/api/voice/"+rec.ID+"/url", nil), "alice")
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp["url"])
	assert.NotEmpty(t, resp["expires_at"])
}

func TestExportEndpoint(t *testing.T) {
	f := newFixture(t, nil)
	f.dao.Seed(testutil.NewRecording("alice", model.StatusCompleted))

	w := f.do(httptest.NewRequest("GET", "/api/voice/export", nil), "alice")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "spreadsheetml")
	assert.NotZero(t, w.Body.Len())
}
