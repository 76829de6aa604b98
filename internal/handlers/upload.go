package handlers

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/codebuildervaibhav/meeting-diarizer/internal/broadcast"
	"github.com/codebuildervaibhav/meeting-diarizer/internal/queue"
	"github.com/codebuildervaibhav/meeting-diarizer/internal/transcription"
	"github.com/codebuildervaibhav/meeting-diarizer/internal/types"
)

// UploadHandler handles file uploads
type UploadHandler struct {
	jobs      JobSubmitter
	pub       broadcast.Publisher
	tempDir   string
	maxSizeMB int
}

// NewUploadHandler creates a new upload handler
func NewUploadHandler(jobs JobSubmitter, pub broadcast.Publisher, tempDir string, maxSizeMB int) *UploadHandler {
	return &UploadHandler{
		jobs:      jobs,
		pub:       pub,
		tempDir:   tempDir,
		maxSizeMB: maxSizeMB,
	}
}

// Handle stores the uploaded recording and queues a batch job for the
// meeting in the route.
func (h *UploadHandler) Handle(c *fiber.Ctx) error {
	meetingID := c.Params("meeting_id")

	file, err := c.FormFile("file")
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "No file uploaded", "ERR_NO_FILE")
	}

	maxSize := int64(h.maxSizeMB) * 1024 * 1024
	if file.Size > maxSize {
		return errorJSON(c, fiber.StatusBadRequest, fmt.Sprintf("File too large (max %dMB)", h.maxSizeMB), "ERR_FILE_TOO_LARGE")
	}
	if !transcription.ValidateAudioFormat(file.Filename) {
		return errorJSON(c, fiber.StatusBadRequest, "Unsupported audio format", "ERR_INVALID_FORMAT")
	}

	tempPath := filepath.Join(h.tempDir, uuid.New().String()+filepath.Ext(file.Filename))
	if err := c.SaveFile(file, tempPath); err != nil {
		slog.Error("failed to save uploaded file", "meeting_id", meetingID, "err", err)
		return errorJSON(c, fiber.StatusInternalServerError, "Failed to save file", "ERR_SAVE_FAILED")
	}

	job := queue.NewFileJob(meetingID, types.SourceUpload, tempPath)
	if err := submit(h.jobs, h.pub, job); err != nil {
		removeTemp(tempPath)
		return submitError(c, err)
	}

	slog.Info("upload queued", "meeting_id", meetingID, "job_id", job.ID, "file", file.Filename, "bytes", file.Size)
	return queued(c, job, "File uploaded successfully, processing started")
}
