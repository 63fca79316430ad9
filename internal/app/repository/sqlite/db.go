package sqlite

import (
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

var (
	connection *sql.DB
	once       sync.Once
	openErr    error
)

// GetConnection opens the shared sqlite connection exactly once per process.
func GetConnection(dbPath string) (*sql.DB, error) {
	once.Do(func() {
		connection, openErr = sql.Open("sqlite3",
			fmt.Sprintf("file:%s?cache=shared&mode=rwc&_foreign_keys=on", dbPath))
	})
	if openErr != nil {
		return nil, fmt.Errorf("failed to open database: %w", openErr)
	}
	return connection, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS recordings (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL REFERENCES users(id),
	filename TEXT NOT NULL,
	format TEXT NOT NULL,
	file_size INTEGER NOT NULL,
	duration REAL NOT NULL DEFAULT 0,
	audio_location TEXT NOT NULL,
	status TEXT NOT NULL,
	transcription TEXT,
	quality_score REAL,
	error_message TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_recordings_user ON recordings(user_id);

CREATE TABLE IF NOT EXISTS transcription_segments (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	recording_id TEXT NOT NULL REFERENCES recordings(id),
	text TEXT NOT NULL,
	start_time REAL NOT NULL,
	end_time REAL NOT NULL,
	confidence REAL NOT NULL DEFAULT 0,
	speaker_id TEXT NOT NULL DEFAULT '',
	words TEXT NOT NULL DEFAULT '[]'
);

CREATE INDEX IF NOT EXISTS idx_segments_recording ON transcription_segments(recording_id);

CREATE TABLE IF NOT EXISTS quality_metrics (
	recording_id TEXT PRIMARY KEY REFERENCES recordings(id),
	snr REAL NOT NULL,
	volume REAL NOT NULL,
	clarity REAL NOT NULL,
	background_noise REAL NOT NULL,
	speech_rate REAL NOT NULL,
	pause_count INTEGER NOT NULL,
	overall_quality REAL NOT NULL,
	recommendations TEXT NOT NULL DEFAULT '[]',
	analyzed_at TIMESTAMP NOT NULL
);
`

// InitSchema creates the tables when they do not exist yet
func InitSchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}
