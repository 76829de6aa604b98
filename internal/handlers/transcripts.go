package handlers

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/codebuildervaibhav/meeting-diarizer/internal/broadcast"
	"github.com/codebuildervaibhav/meeting-diarizer/internal/types"
)

const defaultRecordingLimit = 50

// wsSubscriber serialises writes to one subscriber connection; the hub and
// the pong replies write from different goroutines.
type wsSubscriber struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *wsSubscriber) Send(ev types.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(ev)
}

// TranscriptHandler serves transcript subscriptions and history.
type TranscriptHandler struct {
	hub   *broadcast.Hub
	store TranscriptReader
}

// NewTranscriptHandler creates a new transcript handler
func NewTranscriptHandler(hub *broadcast.Hub, store TranscriptReader) *TranscriptHandler {
	return &TranscriptHandler{hub: hub, store: store}
}

// Subscribe streams every event of the meeting to the client. Any text the
// client sends is answered with a pong.
func (h *TranscriptHandler) Subscribe(c *websocket.Conn) {
	defer c.Close()
	meetingID := c.Params("meeting_id")

	sub := &wsSubscriber{conn: c}
	unsubscribe := h.hub.Subscribe(meetingID, sub)
	defer unsubscribe()

	if err := sub.Send(types.Event{Type: types.EventConnected, MeetingID: meetingID, Timestamp: time.Now()}); err != nil {
		return
	}
	slog.Info("transcript subscriber connected", "meeting_id", meetingID, "subscribers", h.hub.Count(meetingID))

	for {
		messageType, _, err := c.ReadMessage()
		if err != nil {
			slog.Info("transcript subscriber left", "meeting_id", meetingID)
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		if err := sub.Send(types.Event{Type: types.EventPong, MeetingID: meetingID, Timestamp: time.Now()}); err != nil {
			return
		}
	}
}

// List returns the stored final transcript of a meeting, ordered by start.
func (h *TranscriptHandler) List(c *fiber.Ctx) error {
	meetingID := c.Params("meeting_id")
	events, err := h.store.ListTranscripts(c.UserContext(), meetingID)
	if err != nil {
		slog.Error("list transcripts failed", "meeting_id", meetingID, "err", err)
		return errorJSON(c, fiber.StatusInternalServerError, "Failed to load transcripts", "ERR_DB")
	}
	if events == nil {
		events = []types.Event{}
	}
	return c.JSON(fiber.Map{
		"meeting_id":  meetingID,
		"transcripts": events,
	})
}

// Recordings lists recent batch runs, newest first.
func (h *TranscriptHandler) Recordings(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", defaultRecordingLimit)
	if limit <= 0 {
		limit = defaultRecordingLimit
	}
	recs, err := h.store.ListRecordings(c.UserContext(), limit)
	if err != nil {
		slog.Error("list recordings failed", "err", err)
		return errorJSON(c, fiber.StatusInternalServerError, "Failed to load recordings", "ERR_DB")
	}
	return c.JSON(recs)
}

// Broadcast publishes an arbitrary event to the meeting's subscribers.
// It exists for testing client integrations.
func (h *TranscriptHandler) Broadcast(c *fiber.Ctx) error {
	meetingID := c.Params("meeting_id")

	var ev types.Event
	if err := c.BodyParser(&ev); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "Invalid request body", "ERR_INVALID_BODY")
	}
	if ev.Type == "" {
		return errorJSON(c, fiber.StatusBadRequest, "type is required", "ERR_NO_TYPE")
	}
	ev.MeetingID = meetingID
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	h.hub.Publish(meetingID, ev)
	return c.JSON(fiber.Map{
		"status":      "broadcasted",
		"meeting_id":  meetingID,
		"subscribers": h.hub.Count(meetingID),
	})
}
