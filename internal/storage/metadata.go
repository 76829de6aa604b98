package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/codebuildervaibhav/meeting-diarizer/internal/types"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("storage: not found")

// Recording is the metadata of one finished batch job.
type Recording struct {
	JobID        string    `json:"job_id"`
	MeetingID    string    `json:"meeting_id"`
	SourceType   string    `json:"source_type"`
	Duration     float64   `json:"duration"`
	SegmentCount int       `json:"segment_count"`
	SpeakerCount int       `json:"speaker_count"`
	WordCount    int       `json:"word_count"`
	LocalPath    string    `json:"local_path"`
	GDriveURL    string    `json:"gdrive_url"`
	CreatedAt    time.Time `json:"created_at"`
}

// MetadataDB is the sqlite store for transcript segments and recording
// metadata.
type MetadataDB struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS transcripts (
	id TEXT PRIMARY KEY,
	meeting_id TEXT NOT NULL,
	transcript TEXT NOT NULL,
	timestamp DATETIME NOT NULL,
	speaker TEXT,
	audio_start_time REAL,
	audio_end_time REAL
);

CREATE INDEX IF NOT EXISTS idx_transcripts_meeting ON transcripts(meeting_id, audio_start_time);

CREATE TABLE IF NOT EXISTS recordings (
	job_id TEXT PRIMARY KEY,
	meeting_id TEXT NOT NULL,
	source_type TEXT NOT NULL,
	duration REAL,
	segment_count INTEGER,
	speaker_count INTEGER,
	word_count INTEGER,
	local_path TEXT,
	gdrive_url TEXT,
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_recordings_created_at ON recordings(created_at);
`

// NewMetadataDB opens (creating if needed) the database at dbPath.
func NewMetadataDB(dbPath string) (*MetadataDB, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// sqlite allows a single writer.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return &MetadataDB{db: db}, nil
}

// Append commits one transcript event. Events without an ID get a fresh
// UUID; a zero Timestamp is replaced with the current time.
func (mdb *MetadataDB) Append(ctx context.Context, ev types.Event) error {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	_, err := mdb.db.ExecContext(ctx, `
	INSERT INTO transcripts (id, meeting_id, transcript, timestamp, speaker, audio_start_time, audio_end_time)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`, ev.ID, ev.MeetingID, ev.Text, ev.Timestamp.UTC(), ev.Speaker, ev.Start, ev.End)
	if err != nil {
		return fmt.Errorf("failed to save transcript: %w", err)
	}
	return nil
}

// ListTranscripts returns the stored segments of a meeting ordered by audio
// start time.
func (mdb *MetadataDB) ListTranscripts(ctx context.Context, meetingID string) ([]types.Event, error) {
	rows, err := mdb.db.QueryContext(ctx, `
	SELECT id, meeting_id, transcript, timestamp, speaker, audio_start_time, audio_end_time
	FROM transcripts WHERE meeting_id = ?
	ORDER BY audio_start_time ASC, timestamp ASC
	`, meetingID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transcripts: %w", err)
	}
	defer rows.Close()

	var out []types.Event
	for rows.Next() {
		var (
			ev      types.Event
			speaker sql.NullString
		)
		if err := rows.Scan(&ev.ID, &ev.MeetingID, &ev.Text, &ev.Timestamp, &speaker, &ev.Start, &ev.End); err != nil {
			return nil, fmt.Errorf("failed to scan transcript: %w", err)
		}
		ev.Type = types.EventTranscript
		ev.Speaker = speaker.String
		ev.IsFinal = true
		out = append(out, ev)
	}
	return out, rows.Err()
}

// SaveRecording stores the metadata of a finished batch job.
func (mdb *MetadataDB) SaveRecording(ctx context.Context, r Recording) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	_, err := mdb.db.ExecContext(ctx, `
	INSERT INTO recordings (job_id, meeting_id, source_type, duration, segment_count, speaker_count, word_count, local_path, gdrive_url, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.JobID, r.MeetingID, r.SourceType, r.Duration, r.SegmentCount, r.SpeakerCount, r.WordCount,
		r.LocalPath, r.GDriveURL, r.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to save recording metadata: %w", err)
	}
	return nil
}

// GetRecording retrieves recording metadata by job ID.
func (mdb *MetadataDB) GetRecording(ctx context.Context, jobID string) (*Recording, error) {
	row := mdb.db.QueryRowContext(ctx, `
	SELECT `+recordingColumns+`
	FROM recordings WHERE job_id = ?
	`, jobID)

	r, err := scanRecording(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get recording: %w", err)
	}
	return r, nil
}

// ListRecordings returns the most recent recordings first.
func (mdb *MetadataDB) ListRecordings(ctx context.Context, limit int) ([]Recording, error) {
	rows, err := mdb.db.QueryContext(ctx, `
	SELECT `+recordingColumns+`
	FROM recordings ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recordings: %w", err)
	}
	defer rows.Close()

	var out []Recording
	for rows.Next() {
		r, err := scanRecording(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan recording: %w", err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// Close closes the database connection
func (mdb *MetadataDB) Close() error {
	return mdb.db.Close()
}

const recordingColumns = `job_id, meeting_id, source_type, duration, segment_count, speaker_count, word_count, local_path, gdrive_url, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanRecording(s scanner) (*Recording, error) {
	var (
		r            Recording
		local, drive sql.NullString
	)
	if err := s.Scan(&r.JobID, &r.MeetingID, &r.SourceType, &r.Duration, &r.SegmentCount,
		&r.SpeakerCount, &r.WordCount, &local, &drive, &r.CreatedAt); err != nil {
		return nil, err
	}
	r.LocalPath = local.String
	r.GDriveURL = drive.String
	return &r, nil
}
