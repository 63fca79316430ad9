package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/lib/pq"

	apperrors "voicepipe/internal/app/errors"
	"voicepipe/internal/app/model"
)

const (
	pqForeignKeyViolation = "23503"
	pqUniqueViolation     = "23505"
)

// RecordingDB implements repository.RecordingDAO on postgres.
type RecordingDB struct {
	db *sql.DB
}

// NewRecordingDB ensures the schema exists and returns the DAO.
func NewRecordingDB(db *sql.DB) (*RecordingDB, error) {
	if err := InitSchema(db); err != nil {
		return nil, err
	}
	return &RecordingDB{db: db}, nil
}

// NewRecordingDBWithConn wraps an existing connection without touching the
// schema, used by sqlmock tests.
func NewRecordingDBWithConn(db *sql.DB) *RecordingDB {
	return &RecordingDB{db: db}
}

func (r *RecordingDB) Close() error {
	return r.db.Close()
}

func (r *RecordingDB) EnsureUser(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id) VALUES ($1) ON CONFLICT (id) DO NOTHING`, userID)
	if err != nil {
		return apperrors.Wrap(err, "failed to ensure user")
	}
	return nil
}

func (r *RecordingDB) Insert(ctx context.Context, rec *model.VoiceRecording) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO recordings
			(id, user_id, filename, format, file_size, duration, audio_location,
			 status, error_message, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		rec.ID, rec.UserID, rec.Filename, rec.Format, rec.FileSize, rec.Duration,
		rec.AudioLocation, string(rec.Status), rec.ErrorMessage, rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == pqForeignKeyViolation {
			return apperrors.ErrUnknownUser
		}
		return apperrors.Wrap(err, "failed to insert recording")
	}
	return nil
}

const recordingColumns = `id, user_id, filename, format, file_size, duration,
	audio_location, status, transcription, quality_score, error_message,
	created_at, updated_at`

func (r *RecordingDB) GetByID(ctx context.Context, id string) (*model.VoiceRecording, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+recordingColumns+` FROM recordings WHERE id = $1`, id)
	rec, err := scanRecording(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.ErrRecordingNotFound
		}
		return nil, apperrors.Wrap(err, "failed to load recording")
	}
	return rec, nil
}

func (r *RecordingDB) GetByUser(ctx context.Context, userID string) ([]model.VoiceRecording, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+recordingColumns+` FROM recordings WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list recordings")
	}
	defer rows.Close()

	recordings := make([]model.VoiceRecording, 0)
	for rows.Next() {
		rec, err := scanRecording(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan recording")
		}
		recordings = append(recordings, *rec)
	}
	return recordings, rows.Err()
}

func (r *RecordingDB) ClaimForProcessing(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE recordings SET status = $1, error_message = '', updated_at = $2
		WHERE id = $3 AND status IN ($4, $5)`,
		string(model.StatusProcessing), time.Now().UTC(), id,
		string(model.StatusUploading), string(model.StatusFailed))
	if err != nil {
		return apperrors.Wrap(err, "failed to claim recording")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to read claim result")
	}
	if affected == 1 {
		return nil
	}

	rec, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	switch rec.Status {
	case model.StatusProcessing:
		return apperrors.ErrAlreadyProcessing
	case model.StatusCompleted:
		return apperrors.ErrAlreadyCompleted
	default:
		return apperrors.ErrAlreadyProcessing
	}
}

func (r *RecordingDB) CompleteTranscription(ctx context.Context, id string, text string, segments []model.TranscriptionSegment) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		UPDATE recordings SET status = $1, transcription = $2, error_message = '', updated_at = $3
		WHERE id = $4`,
		string(model.StatusCompleted), text, time.Now().UTC(), id)
	if err != nil {
		return apperrors.Wrap(err, "failed to store transcription")
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM transcription_segments WHERE recording_id = $1`, id); err != nil {
		return apperrors.Wrap(err, "failed to clear segments")
	}

	for _, seg := range segments {
		words, err := json.Marshal(seg.Words)
		if err != nil {
			return apperrors.Wrap(err, "failed to encode words")
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO transcription_segments
				(recording_id, text, start_time, end_time, confidence, speaker_id, words)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			id, seg.Text, seg.StartTime, seg.EndTime, seg.Confidence, seg.SpeakerID, string(words))
		if err != nil {
			return apperrors.Wrap(err, "failed to insert segment")
		}
	}

	if err := tx.Commit(); err != nil {
		return apperrors.Wrap(err, "failed to commit transcription")
	}
	return nil
}

func (r *RecordingDB) MarkFailed(ctx context.Context, id string, errMsg string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE recordings SET status = $1, error_message = $2, updated_at = $3
		WHERE id = $4`,
		string(model.StatusFailed), errMsg, time.Now().UTC(), id)
	if err != nil {
		return apperrors.Wrap(err, "failed to mark recording failed")
	}
	return nil
}

func (r *RecordingDB) UpdateStatus(ctx context.Context, id string, status model.Status) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE recordings SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), id)
	if err != nil {
		return apperrors.Wrap(err, "failed to update status")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to read update result")
	}
	if affected == 0 {
		return apperrors.ErrRecordingNotFound
	}
	return nil
}

func (r *RecordingDB) GetSegments(ctx context.Context, recordingID string) ([]model.TranscriptionSegment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, recording_id, text, start_time, end_time, confidence, speaker_id, words
		FROM transcription_segments
		WHERE recording_id = $1
		ORDER BY start_time ASC`, recordingID)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to load segments")
	}
	defer rows.Close()

	segments := make([]model.TranscriptionSegment, 0)
	for rows.Next() {
		var seg model.TranscriptionSegment
		var words []byte
		if err := rows.Scan(&seg.ID, &seg.RecordingID, &seg.Text, &seg.StartTime,
			&seg.EndTime, &seg.Confidence, &seg.SpeakerID, &words); err != nil {
			return nil, apperrors.Wrap(err, "failed to scan segment")
		}
		if err := json.Unmarshal(words, &seg.Words); err != nil {
			return nil, apperrors.Wrap(err, "failed to decode words")
		}
		segments = append(segments, seg)
	}
	return segments, rows.Err()
}

func (r *RecordingDB) SaveQualityMetrics(ctx context.Context, m *model.QualityMetrics) error {
	recommendations, err := json.Marshal(m.Recommendations)
	if err != nil {
		return apperrors.Wrap(err, "failed to encode recommendations")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO quality_metrics
			(recording_id, snr, volume, clarity, background_noise, speech_rate,
			 pause_count, overall_quality, recommendations, analyzed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (recording_id) DO UPDATE SET
			snr = EXCLUDED.snr,
			volume = EXCLUDED.volume,
			clarity = EXCLUDED.clarity,
			background_noise = EXCLUDED.background_noise,
			speech_rate = EXCLUDED.speech_rate,
			pause_count = EXCLUDED.pause_count,
			overall_quality = EXCLUDED.overall_quality,
			recommendations = EXCLUDED.recommendations,
			analyzed_at = EXCLUDED.analyzed_at`,
		m.RecordingID, m.SNR, m.Volume, m.Clarity, m.BackgroundNoise, m.SpeechRate,
		m.PauseCount, m.OverallQuality, string(recommendations), m.AnalyzedAt)
	if err != nil {
		return apperrors.Wrap(err, "failed to store quality metrics")
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE recordings SET quality_score = $1, updated_at = $2 WHERE id = $3`,
		m.OverallQuality, time.Now().UTC(), m.RecordingID)
	if err != nil {
		return apperrors.Wrap(err, "failed to update quality score")
	}

	if err := tx.Commit(); err != nil {
		return apperrors.Wrap(err, "failed to commit quality metrics")
	}
	return nil
}

func (r *RecordingDB) GetQualityMetrics(ctx context.Context, recordingID string) (*model.QualityMetrics, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT recording_id, snr, volume, clarity, background_noise, speech_rate,
		       pause_count, overall_quality, recommendations, analyzed_at
		FROM quality_metrics WHERE recording_id = $1`, recordingID)

	var m model.QualityMetrics
	var recommendations []byte
	err := row.Scan(&m.RecordingID, &m.SNR, &m.Volume, &m.Clarity, &m.BackgroundNoise,
		&m.SpeechRate, &m.PauseCount, &m.OverallQuality, &recommendations, &m.AnalyzedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.ErrMetricsNotFound
		}
		return nil, apperrors.Wrap(err, "failed to load quality metrics")
	}
	if err := json.Unmarshal(recommendations, &m.Recommendations); err != nil {
		return nil, apperrors.Wrap(err, "failed to decode recommendations")
	}
	return &m, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecording(s scanner) (*model.VoiceRecording, error) {
	var rec model.VoiceRecording
	var status string
	err := s.Scan(&rec.ID, &rec.UserID, &rec.Filename, &rec.Format, &rec.FileSize,
		&rec.Duration, &rec.AudioLocation, &status, &rec.Transcription,
		&rec.QualityScore, &rec.ErrorMessage, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	rec.Status = model.Status(status)
	return &rec, nil
}
