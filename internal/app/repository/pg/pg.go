package pg

import (
	"database/sql"
	"fmt"
	"os"

	_ "github.com/lib/pq"
)

// GetConnection opens a postgres connection from POSTGRES_DSN.
func GetConnection() (*sql.DB, error) {
	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		dsn = "user=postgres password=postgres dbname=voicepipe sslmode=disable"
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS recordings (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL REFERENCES users(id),
	filename TEXT NOT NULL,
	format TEXT NOT NULL,
	file_size BIGINT NOT NULL,
	duration DOUBLE PRECISION NOT NULL DEFAULT 0,
	audio_location TEXT NOT NULL,
	status TEXT NOT NULL,
	transcription TEXT,
	quality_score DOUBLE PRECISION,
	error_message TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_recordings_user ON recordings(user_id);

CREATE TABLE IF NOT EXISTS transcription_segments (
	id BIGSERIAL PRIMARY KEY,
	recording_id TEXT NOT NULL REFERENCES recordings(id),
	text TEXT NOT NULL,
	start_time DOUBLE PRECISION NOT NULL,
	end_time DOUBLE PRECISION NOT NULL,
	confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
	speaker_id TEXT NOT NULL DEFAULT '',
	words JSONB NOT NULL DEFAULT '[]'
);

CREATE INDEX IF NOT EXISTS idx_segments_recording ON transcription_segments(recording_id);

CREATE TABLE IF NOT EXISTS quality_metrics (
	recording_id TEXT PRIMARY KEY REFERENCES recordings(id),
	snr DOUBLE PRECISION NOT NULL,
	volume DOUBLE PRECISION NOT NULL,
	clarity DOUBLE PRECISION NOT NULL,
	background_noise DOUBLE PRECISION NOT NULL,
	speech_rate DOUBLE PRECISION NOT NULL,
	pause_count INTEGER NOT NULL,
	overall_quality DOUBLE PRECISION NOT NULL,
	recommendations JSONB NOT NULL DEFAULT '[]',
	analyzed_at TIMESTAMPTZ NOT NULL
);
`

// InitSchema creates the tables when they do not exist yet
func InitSchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}
