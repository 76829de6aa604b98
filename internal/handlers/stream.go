package handlers

import (
	"errors"
	"log/slog"

	"github.com/gofiber/websocket/v2"

	"github.com/codebuildervaibhav/meeting-diarizer/internal/stream"
)

// StreamHandler accepts live meeting audio over a WebSocket.
type StreamHandler struct {
	sessions *stream.Manager
}

// NewStreamHandler creates a new stream handler
func NewStreamHandler(sessions *stream.Manager) *StreamHandler {
	return &StreamHandler{sessions: sessions}
}

// Handle reads binary PCM16 frames into the meeting's live session until
// the client sends a stop message or disconnects. Either way the recording
// is flushed to the batch pipeline.
func (h *StreamHandler) Handle(c *websocket.Conn) {
	defer c.Close()
	meetingID := c.Params("meeting_id")

	ctrl, err := h.sessions.Open(meetingID)
	if err != nil {
		slog.Warn("rejecting audio stream", "meeting_id", meetingID, "err", err)
		code := "ERR_SESSION"
		if errors.Is(err, stream.ErrSessionActive) {
			code = "ERR_SESSION_ACTIVE"
		}
		_ = c.WriteJSON(map[string]string{"error": err.Error(), "code": code})
		return
	}
	defer ctrl.Stop()

	slog.Info("audio stream connected", "meeting_id", meetingID)
	var frames int
	for {
		messageType, message, err := c.ReadMessage()
		if err != nil {
			slog.Info("audio stream closed", "meeting_id", meetingID, "frames", frames, "err", err)
			return
		}
		switch messageType {
		case websocket.BinaryMessage:
			frames++
			ctrl.Feed(message)
		case websocket.TextMessage:
			if ctrl.HandleControl(message) {
				slog.Info("stop requested", "meeting_id", meetingID, "frames", frames)
				return
			}
		}
	}
}
