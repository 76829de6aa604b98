// Package broadcast fans meeting events out to the sockets subscribed to
// that meeting.
package broadcast

import (
	"log/slog"
	"sync"

	"github.com/codebuildervaibhav/meeting-diarizer/internal/types"
)

// Publisher is the narrow interface the pipelines publish through. Publish
// is best effort and never reports delivery failures to the caller.
type Publisher interface {
	Publish(meetingID string, event types.Event)
}

// Subscriber receives events for one meeting. A Send error marks the
// subscriber dead and removes it from the hub.
type Subscriber interface {
	Send(event types.Event) error
}

// Hub maps meeting ids to their subscribers. The zero value is not usable;
// call NewHub.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[*entry]struct{}
}

type entry struct {
	sub Subscriber
}

var _ Publisher = (*Hub)(nil)

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[*entry]struct{})}
}

// Subscribe registers sub for meetingID and returns a function that removes
// it again. The function is idempotent.
func (h *Hub) Subscribe(meetingID string, sub Subscriber) (unsubscribe func()) {
	e := &entry{sub: sub}

	h.mu.Lock()
	set, ok := h.subs[meetingID]
	if !ok {
		set = make(map[*entry]struct{})
		h.subs[meetingID] = set
	}
	set[e] = struct{}{}
	h.mu.Unlock()

	slog.Debug("broadcast: subscribed", "meeting_id", meetingID)

	var once sync.Once
	return func() {
		once.Do(func() { h.remove(meetingID, e) })
	}
}

// Publish delivers event to every subscriber of meetingID. Subscribers whose
// Send fails are dropped.
func (h *Hub) Publish(meetingID string, event types.Event) {
	h.mu.RLock()
	targets := make([]*entry, 0, len(h.subs[meetingID]))
	for e := range h.subs[meetingID] {
		targets = append(targets, e)
	}
	h.mu.RUnlock()

	for _, e := range targets {
		if err := e.sub.Send(event); err != nil {
			slog.Debug("broadcast: dropping subscriber", "meeting_id", meetingID, "err", err)
			h.remove(meetingID, e)
		}
	}
}

// Count returns the number of subscribers of meetingID.
func (h *Hub) Count(meetingID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[meetingID])
}

func (h *Hub) remove(meetingID string, e *entry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[meetingID]
	if !ok {
		return
	}
	delete(set, e)
	if len(set) == 0 {
		delete(h.subs, meetingID)
	}
}
