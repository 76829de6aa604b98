package stream

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"

	"github.com/codebuildervaibhav/meeting-diarizer/internal/broadcast"
	"github.com/codebuildervaibhav/meeting-diarizer/internal/observe"
	"github.com/codebuildervaibhav/meeting-diarizer/internal/types"
	"github.com/codebuildervaibhav/meeting-diarizer/internal/vad"
)

// BatchSubmitter queues a finished recording for the batch pipeline. The
// job it creates owns publishing the final "stopped" status.
type BatchSubmitter interface {
	SubmitStream(meetingID string, pcm []byte) error
}

// ControlMessage is a text frame sent by the audio client.
type ControlMessage struct {
	Type string `json:"type"`
}

// legacyStop is the plain-text stop frame sent by older clients.
const legacyStop = "END"

// Controller binds a Session to the transport: it feeds binary frames,
// interprets control frames and performs the end-of-session flush exactly
// once, whether the client stopped or disconnected.
type Controller struct {
	session *Session
	pub     broadcast.Publisher
	batch   BatchSubmitter
	metrics *observe.Metrics

	// mu serialises Feed with a Stop issued by Manager.Shutdown.
	mu      sync.Mutex
	once    sync.Once
	onClose func()
}

// Session returns the underlying session.
func (c *Controller) Session() *Session { return c.session }

// Feed passes one binary audio frame to the session.
func (c *Controller) Feed(chunk []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if r := c.session.Feed(chunk); r != vad.None {
		c.metrics.RecordTrigger(context.Background(), r.String())
	}
}

// HandleControl interprets a text frame and reports whether it asked to
// stop. Unknown messages are ignored.
func (c *Controller) HandleControl(msg []byte) (stop bool) {
	if strings.TrimSpace(string(msg)) == legacyStop {
		return true
	}
	var cm ControlMessage
	if err := json.Unmarshal(msg, &cm); err != nil {
		slog.Debug("stream: ignoring malformed control frame", "meeting_id", c.session.ID(), "err", err)
		return false
	}
	return cm.Type == "stop"
}

// Stop ends the session and hands the recording to the batch pipeline. An
// empty recording publishes "stopped" immediately. Only the first call has
// any effect.
func (c *Controller) Stop() {
	c.once.Do(func() {
		id := c.session.ID()
		c.mu.Lock()
		if c.session.PhraseDuration() > 0 {
			c.metrics.RecordTrigger(context.Background(), "stop")
		}
		final := c.session.Stop()
		c.mu.Unlock()

		switch {
		case len(final) == 0:
			c.pub.Publish(id, types.StatusEvent(id, types.SessionStopped))
		default:
			c.pub.Publish(id, types.StatusEvent(id, types.SessionProcessing))
			if err := c.batch.SubmitStream(id, final); err != nil {
				slog.Error("stream: failed to queue final recording", "meeting_id", id, "bytes", len(final), "err", err)
				c.pub.Publish(id, types.StatusEvent(id, types.SessionStopped))
			}
		}

		if c.onClose != nil {
			c.onClose()
		}
	})
}
