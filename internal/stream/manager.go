package stream

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/codebuildervaibhav/meeting-diarizer/internal/audio"
	"github.com/codebuildervaibhav/meeting-diarizer/internal/broadcast"
	"github.com/codebuildervaibhav/meeting-diarizer/internal/observe"
	"github.com/codebuildervaibhav/meeting-diarizer/internal/speaker"
	"github.com/codebuildervaibhav/meeting-diarizer/internal/transcription"
	"github.com/codebuildervaibhav/meeting-diarizer/internal/vad"
)

// ErrSessionActive is returned by Open when the meeting already streams.
var ErrSessionActive = errors.New("stream: meeting already has a live session")

// Deps are the collaborators shared by every live session.
type Deps struct {
	VAD     vad.Config
	Speaker speaker.Config

	ASR transcription.Transcriber

	// Embedder may be nil; live phrases are then published as
	// UnknownSpeaker.
	Embedder transcription.Embedder
	Filter   *transcription.FillerFilter

	Publisher broadcast.Publisher
	Batch     BatchSubmitter

	// Metrics defaults to observe.DefaultMetrics.
	Metrics *observe.Metrics

	// Now is the session clock origin. Defaults to time.Now.
	Now func() time.Time
}

// Manager owns the live sessions of the process, one per meeting.
type Manager struct {
	deps Deps
	ctx  context.Context

	mu       sync.Mutex
	sessions map[string]*Controller
	closing  sync.WaitGroup
}

// NewManager creates a manager. ctx bounds background phrase processing and
// should live as long as the server.
func NewManager(ctx context.Context, deps Deps) *Manager {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Metrics == nil {
		deps.Metrics = observe.DefaultMetrics()
	}
	if deps.Filter == nil {
		deps.Filter = transcription.NewFillerFilter(transcription.DefaultFillers)
	}
	return &Manager{
		deps:     deps,
		ctx:      ctx,
		sessions: make(map[string]*Controller),
	}
}

// Open starts a live session for meetingID. The session gets its own speaker
// registry.
func (m *Manager) Open(meetingID string) (*Controller, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[meetingID]; ok {
		return nil, ErrSessionActive
	}

	var identifier *speaker.Identifier
	if m.deps.Embedder != nil {
		identifier = speaker.NewIdentifier(m.deps.Embedder, speaker.NewRegistry(m.deps.Speaker), audio.SampleRate)
	}
	proc := NewPhraseProcessor(m.deps.ASR, identifier, m.deps.Filter, m.deps.Publisher, m.deps.Metrics)
	sess := NewSession(m.ctx, meetingID, m.deps.VAD, proc, m.deps.Now())

	c := &Controller{
		session: sess,
		pub:     m.deps.Publisher,
		batch:   m.deps.Batch,
		metrics: m.deps.Metrics,
	}
	m.closing.Add(1)
	c.onClose = func() {
		m.mu.Lock()
		delete(m.sessions, meetingID)
		m.mu.Unlock()
		m.deps.Metrics.ActiveSessions.Add(context.Background(), -1)
		go func() {
			defer m.closing.Done()
			sess.Wait()
		}()
	}
	m.sessions[meetingID] = c
	m.deps.Metrics.ActiveSessions.Add(context.Background(), 1)
	return c, nil
}

// Active returns the number of live sessions.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Shutdown stops every live session and waits for their phrase processing
// to finish or ctx to expire.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	open := make([]*Controller, 0, len(m.sessions))
	for _, c := range m.sessions {
		open = append(open, c)
	}
	m.mu.Unlock()

	for _, c := range open {
		c.Stop()
	}

	done := make(chan struct{})
	go func() {
		m.closing.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
