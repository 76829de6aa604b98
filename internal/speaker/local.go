package speaker

// LocalRegistry is the disposable clusterer used by one batch diarization
// run. Centroids are the normalised running sum of every assigned embedding.
// It is not safe for concurrent use.
type LocalRegistry struct {
	threshold float64
	speakers  []localSpeaker
}

type localSpeaker struct {
	centroid []float32
	sum      []float64
	count    int
}

// NewLocalRegistry creates an empty local registry.
func NewLocalRegistry(threshold float64) *LocalRegistry {
	return &LocalRegistry{threshold: threshold}
}

// Assign returns the 0-based local speaker index for embedding.
func (r *LocalRegistry) Assign(embedding []float32) int {
	emb := Normalize(embedding)

	best := -1
	bestSim := -1.0
	for i := range r.speakers {
		sim := Dot(emb, r.speakers[i].centroid)
		if best < 0 || sim > bestSim {
			bestSim = sim
			best = i
		}
	}

	if best >= 0 && bestSim > r.threshold {
		s := &r.speakers[best]
		for i := range s.sum {
			if i < len(emb) {
				s.sum[i] += float64(emb[i])
			}
		}
		s.count++
		s.centroid = normalize64(s.sum)
		return best
	}

	sum := make([]float64, len(emb))
	for i, x := range emb {
		sum[i] = float64(x)
	}
	r.speakers = append(r.speakers, localSpeaker{centroid: emb, sum: sum, count: 1})
	return len(r.speakers) - 1
}

// Len returns the number of local speakers.
func (r *LocalRegistry) Len() int { return len(r.speakers) }

// Centroid returns a copy of speaker i's centroid.
func (r *LocalRegistry) Centroid(i int) []float32 {
	return append([]float32(nil), r.speakers[i].centroid...)
}

func normalize64(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return Normalize(out)
}
