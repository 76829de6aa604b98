package queue

import (
	"time"

	"github.com/google/uuid"

	"github.com/codebuildervaibhav/meeting-diarizer/internal/types"
)

// Job is one batch diarization run over a complete recording. Exactly one
// of PCM (live recordings) or FilePath (uploads, normalised by the worker)
// is set.
type Job struct {
	ID         string
	MeetingID  string
	SourceType string
	PCM        []byte
	FilePath   string
	Status     string
	Error      error
	Result     *types.TranscriptionResult
	CreatedAt  time.Time
}

// NewStreamJob creates a job for the raw PCM16 recording of a live session.
func NewStreamJob(meetingID string, pcm []byte) *Job {
	return newJob(meetingID, types.SourceStream, pcm, "")
}

// NewFileJob creates a job for an uploaded or downloaded audio file. The
// worker removes filePath once the job is done.
func NewFileJob(meetingID, sourceType, filePath string) *Job {
	return newJob(meetingID, sourceType, nil, filePath)
}

func newJob(meetingID, sourceType string, pcm []byte, filePath string) *Job {
	return &Job{
		ID:         uuid.New().String(),
		MeetingID:  meetingID,
		SourceType: sourceType,
		PCM:        pcm,
		FilePath:   filePath,
		Status:     types.StatusQueued,
		CreatedAt:  time.Now(),
	}
}
