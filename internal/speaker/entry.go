package speaker

import (
	"fmt"
	"time"
)

// Entry is one discovered speaker in a live registry. Centroid is always unit
// length, or all zeros when it was seeded from a zero embedding.
type Entry struct {
	ID       int
	Centroid []float32
	Count    int
	LastSeen time.Time
}

// Label renders the entry's identity for transcript events.
func (e Entry) Label() string { return Label(e.ID) }

// Label renders a live speaker id, e.g. SPEAKER_03.
func Label(id int) string { return fmt.Sprintf("SPEAKER_%02d", id) }

func newEntry(id int, embedding []float32, at time.Time) *Entry {
	return &Entry{
		ID:       id,
		Centroid: Normalize(embedding),
		Count:    1,
		LastSeen: at,
	}
}

// blend folds a unit embedding into the centroid with an exponential moving
// average and renormalises.
func (e *Entry) blend(embedding []float32, alpha float64, at time.Time) {
	mixed := make([]float32, len(e.Centroid))
	for i := range mixed {
		var x float64
		if i < len(embedding) {
			x = float64(embedding[i])
		}
		mixed[i] = float32(alpha*float64(e.Centroid[i]) + (1-alpha)*x)
	}
	e.Centroid = Normalize(mixed)
	e.Count++
	e.LastSeen = at
}

func (e *Entry) clone() Entry {
	c := *e
	c.Centroid = append([]float32(nil), e.Centroid...)
	return c
}
