package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/codebuildervaibhav/meeting-diarizer/internal/types"
)

// LocalStorage handles saving transcripts to the local filesystem
type LocalStorage struct {
	outputDir string
	now       func() time.Time
}

// NewLocalStorage creates a new local storage handler
func NewLocalStorage(outputDir string) *LocalStorage {
	return &LocalStorage{
		outputDir: outputDir,
		now:       time.Now,
	}
}

// transcriptMeta is the sidecar JSON written next to every transcript.
type transcriptMeta struct {
	JobID        string          `json:"job_id"`
	MeetingID    string          `json:"meeting_id"`
	SourceType   string          `json:"source_type"`
	Duration     float64         `json:"duration_seconds"`
	WordCount    int             `json:"word_count"`
	SpeakerCount int             `json:"speaker_count"`
	CreatedAt    time.Time       `json:"created_at"`
	Segments     []types.Segment `json:"segments"`
	LocalPath    string          `json:"local_path,omitempty"`
	GDriveURL    string          `json:"gdrive_url,omitempty"`
}

func newTranscriptMeta(result *types.TranscriptionResult) transcriptMeta {
	return transcriptMeta{
		JobID:        result.JobID,
		MeetingID:    result.MeetingID,
		SourceType:   result.SourceType,
		Duration:     result.Duration,
		WordCount:    result.WordCount,
		SpeakerCount: result.SpeakerCount,
		CreatedAt:    result.ProcessedAt,
		Segments:     result.Segments,
		LocalPath:    result.LocalPath,
		GDriveURL:    result.GDriveURL,
	}
}

// SaveTranscript writes the formatted transcript and its metadata under a
// dated directory (outputs/2026/01/23/) and returns the transcript path.
func (ls *LocalStorage) SaveTranscript(name string, result *types.TranscriptionResult) (string, error) {
	now := ls.now()
	dateDir := filepath.Join(ls.outputDir,
		fmt.Sprintf("%d", now.Year()),
		fmt.Sprintf("%02d", now.Month()),
		fmt.Sprintf("%02d", now.Day()))

	if err := os.MkdirAll(dateDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create date directory: %w", err)
	}

	// 20260123_143022_weekly-sync.txt
	baseFilename := fmt.Sprintf("%s_%s", now.Format("20060102_150405"), sanitizeFilename(name))
	txtPath := filepath.Join(dateDir, baseFilename+".txt")
	metaPath := filepath.Join(dateDir, baseFilename+"_meta.json")

	if err := os.WriteFile(txtPath, []byte(FormatTranscript(result)), 0644); err != nil {
		return "", fmt.Errorf("failed to save transcript: %w", err)
	}

	meta := newTranscriptMeta(result)
	meta.LocalPath = txtPath
	metaJSON, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := os.WriteFile(metaPath, metaJSON, 0644); err != nil {
		return "", fmt.Errorf("failed to save metadata: %w", err)
	}

	return txtPath, nil
}
