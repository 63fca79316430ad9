package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"voicepipe/internal/app/api/provider"
	"voicepipe/internal/app/audio"
	apperrors "voicepipe/internal/app/errors"
	"voicepipe/internal/app/model"
	"voicepipe/internal/app/quality"
	"voicepipe/internal/app/repository"
	"voicepipe/internal/app/storage"
	"voicepipe/internal/config"
)

// VoiceServiceImpl orchestrates the recording lifecycle across the blob
// store, metadata store, transcription providers and quality analyzer.
type VoiceServiceImpl struct {
	dao       repository.RecordingDAO
	blobs     storage.BlobStore
	providers provider.Registry
	analyzer  quality.Analyzer
	limits    config.Limits
	logger    *slog.Logger

	mu           sync.Mutex
	inFlight     map[string]struct{} // recording IDs with analysis running
	analysisErrs map[string]error    // last failure per recording, cleared on success
}

// NewVoiceService creates the lifecycle manager with its dependencies.
func NewVoiceService(
	dao repository.RecordingDAO,
	blobs storage.BlobStore,
	providers provider.Registry,
	analyzer quality.Analyzer,
	limits config.Limits,
	logger *slog.Logger,
) *VoiceServiceImpl {
	if logger == nil {
		logger = slog.Default()
	}
	return &VoiceServiceImpl{
		dao:          dao,
		blobs:        blobs,
		providers:    providers,
		analyzer:     analyzer,
		limits:       limits,
		logger:       logger,
		inFlight:     make(map[string]struct{}),
		analysisErrs: make(map[string]error),
	}
}

// CreateRecording validates the upload before any I/O, stores the audio in
// the blob store, then persists metadata. If the metadata insert fails the
// uploaded blob is removed so no orphaned audio survives.
func (s *VoiceServiceImpl) CreateRecording(ctx context.Context, userID string, file multipart.File, header *multipart.FileHeader) (*model.VoiceRecording, error) {
	if header == nil || file == nil {
		return nil, apperrors.ErrMissingFile
	}
	if header.Size > s.limits.MaxUploadBytes {
		return nil, apperrors.Wrapf(apperrors.ErrFileTooLarge,
			"file size %d exceeds limit %d", header.Size, s.limits.MaxUploadBytes)
	}
	format := provider.FormatFromFilename(header.Filename)
	if format == "" {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidFormat,
			"unsupported extension %q", filepath.Ext(header.Filename))
	}

	if err := s.dao.EnsureUser(ctx, userID); err != nil {
		return nil, err
	}

	// Duration is a best-effort probe; audio that ffprobe cannot parse still
	// uploads with duration 0 and gets rejected later by the provider if it
	// is genuinely broken.
	duration, err := audio.ProbeDuration(ctx, file)
	if err != nil {
		s.logger.Warn("duration probe failed", "filename", header.Filename, "error", err)
		duration = 0
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return nil, apperrors.Wrap(err, "rewinding upload")
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = mime.TypeByExtension(filepath.Ext(header.Filename))
	}

	blobCtx, cancel := context.WithTimeout(ctx, s.limits.BlobTimeout)
	defer cancel()
	location, err := s.blobs.Upload(blobCtx, userID, header.Filename, contentType, file, header.Size)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	rec := &model.VoiceRecording{
		ID:            uuid.New().String(),
		UserID:        userID,
		Filename:      header.Filename,
		Format:        string(format),
		FileSize:      header.Size,
		Duration:      duration,
		AudioLocation: location,
		Status:        model.StatusUploading,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.dao.Insert(ctx, rec); err != nil {
		// Roll the blob back on a detached context so client cancellation
		// cannot leave orphaned audio behind.
		cleanupCtx, cleanupCancel := context.WithTimeout(context.Background(), s.limits.BlobTimeout)
		defer cleanupCancel()
		if rmErr := s.blobs.Remove(cleanupCtx, location); rmErr != nil {
			s.logger.Error("blob rollback failed", "location", location, "error", rmErr)
		}
		return nil, err
	}

	s.logger.Info("recording created",
		"recording_id", rec.ID, "user_id", userID,
		"filename", header.Filename, "size", header.Size)
	return rec, nil
}

// DAO exposes the metadata store for components that share it, like the
// workflow worker.
func (s *VoiceServiceImpl) DAO() repository.RecordingDAO { return s.dao }

// Blobs exposes the blob store for components that share it.
func (s *VoiceServiceImpl) Blobs() storage.BlobStore { return s.blobs }

// Providers exposes the provider registry for components that share it.
func (s *VoiceServiceImpl) Providers() provider.Registry { return s.providers }

func (s *VoiceServiceImpl) GetRecording(ctx context.Context, id, requesterID string) (*model.VoiceRecording, error) {
	rec, err := s.dao.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if requesterID != "" && rec.UserID != requesterID {
		return nil, apperrors.ErrAccessDenied
	}
	return rec, nil
}

func (s *VoiceServiceImpl) GetRecordingsByUser(ctx context.Context, userID string) ([]model.VoiceRecording, error) {
	return s.dao.GetByUser(ctx, userID)
}

func (s *VoiceServiceImpl) GetSegments(ctx context.Context, id, requesterID string) ([]model.TranscriptionSegment, error) {
	if _, err := s.GetRecording(ctx, id, requesterID); err != nil {
		return nil, err
	}
	return s.dao.GetSegments(ctx, id)
}

// ProcessTranscription claims the recording and hands the actual work to a
// background goroutine. The claim is a conditional status UPDATE, so two
// concurrent calls for the same recording cannot both win.
func (s *VoiceServiceImpl) ProcessTranscription(ctx context.Context, id, providerName, language string) error {
	rec, err := s.dao.GetByID(ctx, id)
	if err != nil {
		return err
	}

	var p provider.TranscriptionProvider
	if providerName != "" {
		p, err = s.providers.Get(providerName)
	} else {
		p, err = s.providers.GetDefault()
	}
	if err != nil {
		return err
	}

	if err := s.dao.ClaimForProcessing(ctx, id); err != nil {
		return err
	}

	go s.runTranscription(context.Background(), rec, p, language)
	return nil
}

func (s *VoiceServiceImpl) runTranscription(ctx context.Context, rec *model.VoiceRecording, p provider.TranscriptionProvider, language string) {
	ctx, cancel := context.WithTimeout(ctx, s.limits.TranscribeTimeout)
	defer cancel()

	log := s.logger.With("recording_id", rec.ID, "provider", p.Name())

	body, size, err := s.blobs.Fetch(ctx, rec.AudioLocation)
	if err != nil {
		s.failTranscription(rec.ID, err, log)
		return
	}
	defer body.Close()

	// A zero-byte object completes with an empty transcription instead of
	// failing; the provider contract promises the same for empty streams.
	if size == 0 {
		if err := s.dao.CompleteTranscription(ctx, rec.ID, "", nil); err != nil {
			log.Error("completing empty transcription", "error", err)
		}
		return
	}

	result, err := p.Transcribe(ctx, &provider.Request{
		Audio:    body,
		Filename: rec.Filename,
		Format:   provider.AudioFormat(rec.Format),
		Language: language,
	})
	if err != nil {
		s.failTranscription(rec.ID, err, log)
		return
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

	// Persistence runs on a fresh context so a transcription that finished
	// just inside the deadline still gets stored.
	saveCtx, saveCancel := context.WithTimeout(context.Background(), s.limits.BlobTimeout)
	defer saveCancel()
	if err := s.dao.CompleteTranscription(saveCtx, rec.ID, result.Text, segments); err != nil {
		log.Error("persisting transcription", "error", err)
		return
	}
	log.Info("transcription completed", "text_length", len(result.Text), "segments", len(segments))
}

func (s *VoiceServiceImpl) failTranscription(id string, cause error, log *slog.Logger) {
	log.Error("transcription failed", "error", cause)
	ctx, cancel := context.WithTimeout(context.Background(), s.limits.BlobTimeout)
	defer cancel()
	if err := s.dao.MarkFailed(ctx, id, cause.Error()); err != nil {
		log.Error("marking recording failed", "error", err)
	}
}

// BatchProcessTranscriptions fans claims out over a bounded worker pool.
// Each recording gets an independent outcome; one bad ID never aborts the
// batch.
func (s *VoiceServiceImpl) BatchProcessTranscriptions(ctx context.Context, ids []string, concurrency int) []BatchResult {
	if concurrency <= 0 {
		concurrency = s.limits.BatchConcurrency
	}
	results := make([]BatchResult, len(ids))
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			err := s.ProcessTranscription(ctx, id, "", "")
			results[i] = BatchResult{RecordingID: id, Accepted: err == nil, Err: err}
		}(i, id)
	}
	wg.Wait()
	return results
}

// StartQualityAnalysis launches acoustic analysis in the background. A second
// call while analysis for the same recording is running is rejected; callers
// poll GetQualityMetrics for the result.
func (s *VoiceServiceImpl) StartQualityAnalysis(ctx context.Context, id string) error {
	rec, err := s.dao.GetByID(ctx, id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if _, running := s.inFlight[id]; running {
		s.mu.Unlock()
		return apperrors.Wrap(apperrors.ErrAlreadyProcessing, "quality analysis already running")
	}
	s.inFlight[id] = struct{}{}
	delete(s.analysisErrs, id)
	s.mu.Unlock()

	go s.runQualityAnalysis(context.Background(), rec)
	return nil
}

func (s *VoiceServiceImpl) runQualityAnalysis(ctx context.Context, rec *model.VoiceRecording) {
	defer func() {
		s.mu.Lock()
		delete(s.inFlight, rec.ID)
		s.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(ctx, s.limits.AnalysisTimeout)
	defer cancel()

	log := s.logger.With("recording_id", rec.ID)

	body, _, err := s.blobs.Fetch(ctx, rec.AudioLocation)
	if err != nil {
		log.Error("fetching audio for analysis", "error", err)
		s.recordAnalysisFailure(rec.ID, apperrors.Wrap(err, "fetching audio for analysis"))
		return
	}
	defer body.Close()

	metrics, err := s.analyzer.Analyze(ctx, body, provider.AudioFormat(rec.Format))
	if err != nil {
		log.Error("quality analysis failed", "error", err)
		s.recordAnalysisFailure(rec.ID, err)
		return
	}
	metrics.RecordingID = rec.ID

	if err := s.dao.SaveQualityMetrics(ctx, metrics); err != nil {
		log.Error("persisting quality metrics", "error", err)
		s.recordAnalysisFailure(rec.ID, apperrors.Wrap(err, "persisting quality metrics"))
		return
	}
	log.Info("quality analysis completed", "overall_quality", fmt.Sprintf("%.1f", metrics.OverallQuality))
}

// recordAnalysisFailure keeps the failure visible to pollers, so a finished
// run that never produced metrics is distinguishable from one never started.
func (s *VoiceServiceImpl) recordAnalysisFailure(id string, err error) {
	s.mu.Lock()
	s.analysisErrs[id] = err
	s.mu.Unlock()
}

func (s *VoiceServiceImpl) QualityInFlight(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, running := s.inFlight[id]
	return running
}

// GetQualityMetrics returns the persisted metrics. When none exist but the
// last analysis run failed, that failure is returned instead of a not-found.
func (s *VoiceServiceImpl) GetQualityMetrics(ctx context.Context, id string) (*model.QualityMetrics, error) {
	metrics, err := s.dao.GetQualityMetrics(ctx, id)
	if err != nil && errors.Is(err, apperrors.ErrMetricsNotFound) {
		s.mu.Lock()
		lastErr := s.analysisErrs[id]
		s.mu.Unlock()
		if lastErr != nil {
			return nil, lastErr
		}
	}
	return metrics, err
}

// UpdateStatus validates the requested transition against the lifecycle state
// machine before persisting it.
func (s *VoiceServiceImpl) UpdateStatus(ctx context.Context, id, status string) error {
	if !model.IsValidStatus(status) {
		return apperrors.Wrapf(apperrors.ErrInvalidStatus, "unknown status %q", status)
	}
	rec, err := s.dao.GetByID(ctx, id)
	if err != nil {
		return err
	}
	next := model.Status(status)
	if !model.CanTransition(rec.Status, next) {
		return apperrors.Wrapf(apperrors.ErrInvalidStatus,
			"cannot transition from %s to %s", rec.Status, next)
	}
	return s.dao.UpdateStatus(ctx, id, next)
}

func (s *VoiceServiceImpl) SignedAudioURL(ctx context.Context, id, requesterID string) (string, time.Time, error) {
	rec, err := s.GetRecording(ctx, id, requesterID)
	if err != nil {
		return "", time.Time{}, err
	}
	url, err := s.blobs.SignedURL(ctx, rec.AudioLocation, s.limits.SignedURLTTL)
	if err != nil {
		return "", time.Time{}, err
	}
	return url, time.Now().Add(s.limits.SignedURLTTL), nil
}
