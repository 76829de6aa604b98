package types

import "time"

// Job status constants
const (
	StatusQueued     = "QUEUED"
	StatusProcessing = "PROCESSING"
	StatusCompleted  = "COMPLETED"
	StatusFailed     = "FAILED"
)

// Source type constants
const (
	SourceUpload = "upload"
	SourceGDrive = "gdrive"
	SourceStream = "stream"
)

// EventType names the kind of message fanned out to meeting subscribers.
type EventType string

const (
	EventStatus         EventType = "status"
	EventPreview        EventType = "preview"
	EventLiveTranscript EventType = "live_transcript"
	EventTranscript     EventType = "transcript"
	EventConnected      EventType = "connected"
	EventPong           EventType = "pong"
)

// Session status values carried by EventStatus.
const (
	SessionProcessing = "processing"
	SessionStopped    = "stopped"
)

// Event is a transcript or status message for one meeting. Live phrase
// events and batch segment events share this shape; Start and End are
// offsets into the meeting audio in seconds.
type Event struct {
	ID        string    `json:"id,omitempty"`
	Type      EventType `json:"type"`
	MeetingID string    `json:"meeting_id"`
	Status    string    `json:"status,omitempty"`
	Speaker   string    `json:"speaker,omitempty"`
	Text      string    `json:"transcript,omitempty"`
	Start     float64   `json:"start_time"`
	End       float64   `json:"end_time"`
	IsFinal   bool      `json:"is_final"`
	Timestamp time.Time `json:"timestamp"`
}

// StatusEvent builds a status message.
func StatusEvent(meetingID, status string) Event {
	return Event{
		Type:      EventStatus,
		MeetingID: meetingID,
		Status:    status,
		Timestamp: time.Now(),
	}
}

// Recognition is what the ASR engine returns for one piece of audio.
type Recognition struct {
	Text     string
	Language string
	Segments []Segment
}

// Segment represents a timestamped segment of transcription
type Segment struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Speaker string  `json:"speaker,omitempty"`
	Text    string  `json:"text"`
}

// TranscriptionResult is the output of one batch diarization job
type TranscriptionResult struct {
	JobID        string
	MeetingID    string
	SourceType   string
	Text         string
	Duration     float64
	Segments     []Segment
	SpeakerCount int
	WordCount    int
	ProcessedAt  time.Time
	LocalPath    string
	GDriveURL    string
}
