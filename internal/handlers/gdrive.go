package handlers

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"regexp"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/codebuildervaibhav/meeting-diarizer/internal/broadcast"
	"github.com/codebuildervaibhav/meeting-diarizer/internal/queue"
	"github.com/codebuildervaibhav/meeting-diarizer/internal/types"
)

const driveDownloadURL = "https://drive.google.com/uc?export=download&id=%s"

var errDownloadTooLarge = errors.New("download exceeds size limit")

var (
	driveFilePath = regexp.MustCompile(`/file/d/([a-zA-Z0-9_-]+)`)
	driveIDParam  = regexp.MustCompile(`[?&]id=([a-zA-Z0-9_-]+)`)
	driveBareID   = regexp.MustCompile(`^([a-zA-Z0-9_-]{25,40})$`)
)

// GDriveHandler downloads a publicly shared Drive file and queues it.
type GDriveHandler struct {
	jobs        JobSubmitter
	pub         broadcast.Publisher
	tempDir     string
	maxSizeMB   int
	httpClient  *http.Client
	downloadURL string
}

// NewGDriveHandler creates a new Google Drive handler
func NewGDriveHandler(jobs JobSubmitter, pub broadcast.Publisher, tempDir string, maxSizeMB int) *GDriveHandler {
	return &GDriveHandler{
		jobs:        jobs,
		pub:         pub,
		tempDir:     tempDir,
		maxSizeMB:   maxSizeMB,
		httpClient:  http.DefaultClient,
		downloadURL: driveDownloadURL,
	}
}

// GDriveRequest represents the request body
type GDriveRequest struct {
	URL string `json:"url"`
}

// Handle processes Google Drive link requests
func (h *GDriveHandler) Handle(c *fiber.Ctx) error {
	meetingID := c.Params("meeting_id")

	var req GDriveRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "Invalid request body", "ERR_INVALID_BODY")
	}
	if req.URL == "" {
		return errorJSON(c, fiber.StatusBadRequest, "URL is required", "ERR_NO_URL")
	}
	fileID := extractGDriveFileID(req.URL)
	if fileID == "" {
		return errorJSON(c, fiber.StatusBadRequest, "Invalid Google Drive URL", "ERR_INVALID_URL")
	}

	slog.Info("downloading from google drive", "meeting_id", meetingID, "file_id", fileID)
	tempPath, status, err := h.download(c, fileID)
	if err != nil {
		slog.Warn("google drive download failed", "meeting_id", meetingID, "file_id", fileID, "err", err)
		if errors.Is(err, errDownloadTooLarge) {
			return errorJSON(c, fiber.StatusBadRequest, fmt.Sprintf("File too large (max %dMB)", h.maxSizeMB), "ERR_FILE_TOO_LARGE")
		}
		if status == http.StatusBadRequest {
			return errorJSON(c, status, "File not accessible (may be private or doesn't exist)", "ERR_FILE_NOT_ACCESSIBLE")
		}
		return errorJSON(c, fiber.StatusInternalServerError, "Failed to download file from Google Drive", "ERR_DOWNLOAD_FAILED")
	}

	job := queue.NewFileJob(meetingID, types.SourceGDrive, tempPath)
	if err := submit(h.jobs, h.pub, job); err != nil {
		removeTemp(tempPath)
		return submitError(c, err)
	}
	return queued(c, job, "Google Drive file downloaded, processing started")
}

// download fetches fileID into the temp directory, stopping once the body
// passes the upload size limit. The returned status is 400 when Drive
// refused the file.
func (h *GDriveHandler) download(c *fiber.Ctx, fileID string) (path string, status int, err error) {
	req, err := http.NewRequestWithContext(c.UserContext(), http.MethodGet, fmt.Sprintf(h.downloadURL, fileID), nil)
	if err != nil {
		return "", 0, err
	}
	resp, err := h.httpClient.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", http.StatusBadRequest, fmt.Errorf("drive returned %s", resp.Status)
	}

	path = filepath.Join(h.tempDir, uuid.New().String()+".audio")
	out, err := os.Create(path)
	if err != nil {
		return "", 0, err
	}
	limit := int64(h.maxSizeMB) * 1024 * 1024
	n, err := io.Copy(out, io.LimitReader(resp.Body, limit+1))
	if err == nil && n > limit {
		err = errDownloadTooLarge
	}
	if err != nil {
		out.Close()
		removeTemp(path)
		return "", 0, err
	}
	if err := out.Close(); err != nil {
		removeTemp(path)
		return "", 0, err
	}
	return path, http.StatusOK, nil
}

// extractGDriveFileID extracts the file ID from various Google Drive URL formats
func extractGDriveFileID(url string) string {
	for _, re := range []*regexp.Regexp{driveFilePath, driveIDParam, driveBareID} {
		if m := re.FindStringSubmatch(url); len(m) > 1 {
			return m[1]
		}
	}
	return ""
}

func removeTemp(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to remove temp file", "path", path, "err", err)
	}
}
