package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	apperrors "voicepipe/internal/app/errors"
	"voicepipe/internal/app/model"
)

// FakeRecordingDAO is an in-memory implementation of repository.RecordingDAO.
// ErrorMap injects an error for a single method name, which lets tests force
// failures at any point of the lifecycle.
type FakeRecordingDAO struct {
	mu sync.RWMutex

	users      map[string]struct{}
	recordings map[string]*model.VoiceRecording
	segments   map[string][]model.TranscriptionSegment
	metrics    map[string]*model.QualityMetrics

	ErrorMap map[string]error
}

func NewFakeRecordingDAO() *FakeRecordingDAO {
	return &FakeRecordingDAO{
		users:      make(map[string]struct{}),
		recordings: make(map[string]*model.VoiceRecording),
		segments:   make(map[string][]model.TranscriptionSegment),
		metrics:    make(map[string]*model.QualityMetrics),
		ErrorMap:   make(map[string]error),
	}
}

func (f *FakeRecordingDAO) fail(method string) error {
	if err, ok := f.ErrorMap[method]; ok {
		return err
	}
	return nil
}

func (f *FakeRecordingDAO) Close() error { return nil }

func (f *FakeRecordingDAO) EnsureUser(ctx context.Context, userID string) error {
	if err := f.fail("EnsureUser"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[userID] = struct{}{}
	return nil
}

func (f *FakeRecordingDAO) Insert(ctx context.Context, rec *model.VoiceRecording) error {
	if err := f.fail("Insert"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[rec.UserID]; !ok {
		return apperrors.ErrUnknownUser
	}
	cp := *rec
	f.recordings[rec.ID] = &cp
	return nil
}

func (f *FakeRecordingDAO) GetByID(ctx context.Context, id string) (*model.VoiceRecording, error) {
	if err := f.fail("GetByID"); err != nil {
		return nil, err
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	rec, ok := f.recordings[id]
	if !ok {
		return nil, apperrors.ErrRecordingNotFound
	}
	cp := *rec
	return &cp, nil
}

func (f *FakeRecordingDAO) GetByUser(ctx context.Context, userID string) ([]model.VoiceRecording, error) {
	if err := f.fail("GetByUser"); err != nil {
		return nil, err
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	var out []model.VoiceRecording
	for _, rec := range f.recordings {
		if rec.UserID == userID {
			out = append(out, *rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *FakeRecordingDAO) ClaimForProcessing(ctx context.Context, id string) error {
	if err := f.fail("ClaimForProcessing"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.recordings[id]
	if !ok {
		return apperrors.ErrRecordingNotFound
	}
	switch rec.Status {
	case model.StatusUploading, model.StatusFailed:
		rec.Status = model.StatusProcessing
		rec.UpdatedAt = time.Now().UTC()
		return nil
	case model.StatusProcessing:
		return apperrors.ErrAlreadyProcessing
	default:
		return apperrors.ErrAlreadyCompleted
	}
}

func (f *FakeRecordingDAO) CompleteTranscription(ctx context.Context, id string, text string, segments []model.TranscriptionSegment) error {
	if err := f.fail("CompleteTranscription"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.recordings[id]
	if !ok {
		return apperrors.ErrRecordingNotFound
	}
	rec.Status = model.StatusCompleted
	rec.Transcription = &text
	rec.ErrorMessage = ""
	rec.UpdatedAt = time.Now().UTC()
	f.segments[id] = append([]model.TranscriptionSegment(nil), segments...)
	return nil
}

func (f *FakeRecordingDAO) MarkFailed(ctx context.Context, id string, errMsg string) error {
	if err := f.fail("MarkFailed"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.recordings[id]
	if !ok {
		return apperrors.ErrRecordingNotFound
	}
	rec.Status = model.StatusFailed
	rec.ErrorMessage = errMsg
	rec.UpdatedAt = time.Now().UTC()
	return nil
}

func (f *FakeRecordingDAO) UpdateStatus(ctx context.Context, id string, status model.Status) error {
	if err := f.fail("UpdateStatus"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.recordings[id]
	if !ok {
		return apperrors.ErrRecordingNotFound
	}
	rec.Status = status
	rec.UpdatedAt = time.Now().UTC()
	return nil
}

func (f *FakeRecordingDAO) GetSegments(ctx context.Context, recordingID string) ([]model.TranscriptionSegment, error) {
	if err := f.fail("GetSegments"); err != nil {
		return nil, err
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]model.TranscriptionSegment(nil), f.segments[recordingID]...), nil
}

func (f *FakeRecordingDAO) SaveQualityMetrics(ctx context.Context, m *model.QualityMetrics) error {
	if err := f.fail("SaveQualityMetrics"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *m
	f.metrics[m.RecordingID] = &cp
	if rec, ok := f.recordings[m.RecordingID]; ok {
		score := m.OverallQuality
		rec.QualityScore = &score
	}
	return nil
}

func (f *FakeRecordingDAO) GetQualityMetrics(ctx context.Context, recordingID string) (*model.QualityMetrics, error) {
	if err := f.fail("GetQualityMetrics"); err != nil {
		return nil, err
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	m, ok := f.metrics[recordingID]
	if !ok {
		return nil, apperrors.ErrMetricsNotFound
	}
	cp := *m
	return &cp, nil
}

// Seed inserts a recording directly, bypassing validation, for test setup.
func (f *FakeRecordingDAO) Seed(rec *model.VoiceRecording) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[rec.UserID] = struct{}{}
	cp := *rec
	f.recordings[rec.ID] = &cp
}
