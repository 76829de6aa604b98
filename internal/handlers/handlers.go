// Package handlers exposes the HTTP and WebSocket routes of the server.
package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/codebuildervaibhav/meeting-diarizer/internal/broadcast"
	"github.com/codebuildervaibhav/meeting-diarizer/internal/queue"
	"github.com/codebuildervaibhav/meeting-diarizer/internal/storage"
	"github.com/codebuildervaibhav/meeting-diarizer/internal/types"
)

// JobSubmitter queues batch jobs.
type JobSubmitter interface {
	Submit(job *queue.Job) error
}

// TranscriptReader serves stored transcripts and batch runs.
type TranscriptReader interface {
	ListTranscripts(ctx context.Context, meetingID string) ([]types.Event, error)
	ListRecordings(ctx context.Context, limit int) ([]storage.Recording, error)
}

func errorJSON(c *fiber.Ctx, status int, msg, code string) error {
	return c.Status(status).JSON(fiber.Map{
		"error": msg,
		"code":  code,
	})
}

// queued answers a successfully submitted job.
func queued(c *fiber.Ctx, job *queue.Job, message string) error {
	return c.JSON(fiber.Map{
		"job_id":     job.ID,
		"meeting_id": job.MeetingID,
		"status":     "queued",
		"message":    message,
	})
}

// submit announces processing and queues job. The worker publishes
// "stopped" when the job ends, so "processing" has to go out first; a
// rejected job is closed with "stopped" here.
func submit(jobs JobSubmitter, pub broadcast.Publisher, job *queue.Job) error {
	pub.Publish(job.MeetingID, types.StatusEvent(job.MeetingID, types.SessionProcessing))
	if err := jobs.Submit(job); err != nil {
		pub.Publish(job.MeetingID, types.StatusEvent(job.MeetingID, types.SessionStopped))
		return err
	}
	return nil
}

// submitError maps a queue error onto a response.
func submitError(c *fiber.Ctx, err error) error {
	return errorJSON(c, fiber.StatusServiceUnavailable, err.Error(), "ERR_QUEUE_UNAVAILABLE")
}
