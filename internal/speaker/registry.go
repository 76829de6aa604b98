// Package speaker maps voice embeddings to small integer speaker identities.
//
// Two clustering schemes live here and are intentionally kept apart:
//
//   - Registry is the live, per-session scheme: nearest centroid with a
//     temporal continuity bonus and an exponential moving average update.
//     It favours precision; a new speaker is opened whenever the best match
//     is not convincing.
//   - LocalRegistry is the batch scheme used inside one diarization run:
//     nearest centroid against a lower threshold with a cumulative mean
//     update. It favours recall over a closed, small population.
//
// Neither registry is shared across sessions or runs.
package speaker

import (
	"sync"
	"time"
)

// Config holds the live clustering tunables.
type Config struct {
	// Threshold is the post-bias cosine score a match must exceed.
	Threshold float64 `yaml:"threshold"`

	// TemporalBonus is added to the previous speaker's score while the
	// previous identification is younger than BiasWindow.
	TemporalBonus float64 `yaml:"temporal_bonus"`

	BiasWindow time.Duration `yaml:"bias_window"`

	// Alpha is the EMA weight kept by a centroid on each accepted match.
	Alpha float64 `yaml:"alpha"`

	// MinDuration is the shortest audio the Identifier will embed.
	MinDuration time.Duration `yaml:"min_duration"`
}

// DefaultConfig returns the live clustering defaults.
func DefaultConfig() Config {
	return Config{
		Threshold:     0.45,
		TemporalBonus: 0.1,
		BiasWindow:    3 * time.Second,
		Alpha:         0.95,
		MinDuration:   500 * time.Millisecond,
	}
}

// Match is the outcome of one identification.
type Match struct {
	// ID is the speaker id within the registry scope.
	ID int

	// Score is the best post-bias score seen. It is -1 for the first speaker
	// of an empty registry.
	Score float64

	// New is true when the call opened a new speaker.
	New bool
}

// Label renders the matched identity, e.g. SPEAKER_00.
func (m Match) Label() string { return Label(m.ID) }

// Registry is an online nearest-centroid clusterer. It is safe for
// concurrent use, although a live session only ever has one caller at a time.
type Registry struct {
	cfg Config

	mu      sync.Mutex
	entries []*Entry
	nextID  int
	lastID  int
	lastAt  time.Time
	hasLast bool
}

// NewRegistry creates an empty registry.
func NewRegistry(cfg Config) *Registry {
	return &Registry{cfg: cfg, lastID: -1}
}

// Identify assigns embedding to a speaker, creating one if nothing matches,
// and records the result as the continuity reference for the next call.
// Ties go to the earliest registered speaker.
func (r *Registry) Identify(embedding []float32, observedAt time.Time) Match {
	emb := Normalize(embedding)

	r.mu.Lock()
	defer r.mu.Unlock()

	bestScore := -1.0
	var best *Entry
	for _, e := range r.entries {
		score := Dot(emb, e.Centroid)
		if r.hasLast && e.ID == r.lastID && observedAt.Sub(r.lastAt) < r.cfg.BiasWindow {
			score += r.cfg.TemporalBonus
		}
		if best == nil || score > bestScore {
			bestScore = score
			best = e
		}
	}

	var m Match
	if best != nil && bestScore > r.cfg.Threshold {
		best.blend(emb, r.cfg.Alpha, observedAt)
		m = Match{ID: best.ID, Score: bestScore}
	} else {
		e := newEntry(r.nextID, emb, observedAt)
		r.entries = append(r.entries, e)
		r.nextID++
		m = Match{ID: e.ID, Score: bestScore, New: true}
	}

	r.lastID = m.ID
	r.lastAt = observedAt
	r.hasLast = true
	return m
}

// Entries returns a snapshot of the registry in discovery order.
func (r *Registry) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.clone()
	}
	return out
}

// Len returns the number of speakers discovered so far.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
