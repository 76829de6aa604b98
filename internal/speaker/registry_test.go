package speaker

import (
	"math"
	"math/rand"
	"testing"
	"time"
)

var t0 = time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)

// at40 has raw cosine similarity 0.40 with [1, 0].
var at40 = []float32{0.4, float32(math.Sqrt(1 - 0.16))}

func TestRegistry_TemporalBias(t *testing.T) {
	r := NewRegistry(DefaultConfig())

	a := r.Identify([]float32{1, 0}, t0)
	if !a.New || a.ID != 0 {
		t.Fatalf("first identification = %+v, want new speaker 0", a)
	}

	near := r.Identify(at40, t0.Add(500*time.Millisecond))
	if near.New || near.ID != a.ID {
		t.Fatalf("within bias window got %+v, want speaker %d", near, a.ID)
	}
	if math.Abs(near.Score-0.50) > 1e-3 {
		t.Errorf("biased score = %.4f, want 0.50", near.Score)
	}

	far := r.Identify(at40, t0.Add(5*time.Second))
	if !far.New || far.ID == a.ID {
		t.Fatalf("after bias window got %+v, want a new speaker", far)
	}
}

func TestRegistry_NoBiasForFreshRegistryAfterWindow(t *testing.T) {
	r := NewRegistry(DefaultConfig())
	r.Identify([]float32{1, 0}, t0)
	m := r.Identify(at40, t0.Add(5*time.Second))
	if !m.New || m.ID != 1 {
		t.Fatalf("got %+v, want new speaker 1", m)
	}
}

func TestRegistry_BiasOnlyForPreviousSpeaker(t *testing.T) {
	r := NewRegistry(DefaultConfig())
	r.Identify([]float32{1, 0}, t0)
	r.Identify([]float32{0, 1}, t0.Add(time.Second))

	// at40 scores 0.40 against speaker 0 and ~0.92 against speaker 1.
	m := r.Identify(at40, t0.Add(1500*time.Millisecond))
	if m.ID != 1 {
		t.Fatalf("got %+v, want speaker 1", m)
	}
}

func TestRegistry_SequentialIDs(t *testing.T) {
	r := NewRegistry(DefaultConfig())
	basis := [][]float32{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
	for i, v := range basis {
		m := r.Identify(v, t0.Add(time.Duration(i)*10*time.Second))
		if m.ID != i || !m.New {
			t.Fatalf("identify %d = %+v", i, m)
		}
	}
	if r.Len() != 3 {
		t.Errorf("Len = %d, want 3", r.Len())
	}
	m := r.Identify([]float32{0, 2, 0}, t0.Add(time.Minute))
	if m.ID != 1 || m.New {
		t.Errorf("repeat of speaker 1 = %+v", m)
	}
}

func TestRegistry_TieGoesToEarliest(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TemporalBonus = 0
	r := NewRegistry(cfg)
	r.Identify([]float32{1, 0}, t0)
	r.Identify([]float32{0, 1}, t0.Add(10*time.Second))

	diag := []float32{1, 1}
	m := r.Identify(diag, t0.Add(20*time.Second))
	if m.ID != 0 {
		t.Fatalf("tie resolved to %d, want 0", m.ID)
	}
}

func TestRegistry_CentroidsStayUnitNorm(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	r := NewRegistry(DefaultConfig())
	at := t0
	for i := 0; i < 200; i++ {
		v := make([]float32, 16)
		for j := range v {
			v[j] = float32(rng.NormFloat64())
		}
		// Bias towards a handful of directions so entries get updated.
		v[i%4] += 4
		at = at.Add(time.Duration(rng.Intn(4000)) * time.Millisecond)
		r.Identify(v, at)

		for _, e := range r.Entries() {
			if n := Norm(e.Centroid); math.Abs(n-1) > 1e-6 {
				t.Fatalf("step %d: speaker %d norm = %v", i, e.ID, n)
			}
		}
	}
}

func TestRegistry_ZeroEmbedding(t *testing.T) {
	r := NewRegistry(DefaultConfig())
	m := r.Identify(make([]float32, 8), t0)
	if !m.New {
		t.Fatalf("zero embedding on empty registry = %+v", m)
	}
	e := r.Entries()[0]
	if n := Norm(e.Centroid); n != 0 {
		t.Errorf("zero centroid norm = %v, want 0", n)
	}
	for _, x := range e.Centroid {
		if math.IsNaN(float64(x)) {
			t.Fatal("centroid contains NaN")
		}
	}

	// A zero vector never clears the threshold, so it opens another speaker
	// rather than corrupting speaker 0.
	m = r.Identify(make([]float32, 8), t0.Add(time.Second))
	if !m.New {
		t.Errorf("second zero embedding = %+v, want new speaker", m)
	}
}

func TestRegistry_EntriesIsSnapshot(t *testing.T) {
	r := NewRegistry(DefaultConfig())
	r.Identify([]float32{1, 0}, t0)
	snap := r.Entries()
	snap[0].Centroid[0] = 42
	if r.Entries()[0].Centroid[0] == 42 {
		t.Fatal("Entries exposed internal state")
	}
	if snap[0].Label() != "SPEAKER_00" {
		t.Errorf("Label = %q", snap[0].Label())
	}
}

func TestLocalRegistry_Assign(t *testing.T) {
	r := NewLocalRegistry(0.30)
	if got := r.Assign([]float32{1, 0}); got != 0 {
		t.Fatalf("first = %d", got)
	}
	// cos = 0.5 > 0.30
	if got := r.Assign([]float32{0.5, float32(math.Sqrt(0.75))}); got != 0 {
		t.Fatalf("similar = %d, want 0", got)
	}
	// cumulative mean: centroid is now the normalised sum of both
	c := r.Centroid(0)
	if math.Abs(Norm(c)-1) > 1e-6 {
		t.Errorf("centroid norm = %v", Norm(c))
	}
	if c[1] <= 0 {
		t.Errorf("centroid did not move toward the second embedding: %v", c)
	}
	if got := r.Assign([]float32{-1, 0}); got != 1 {
		t.Fatalf("opposite = %d, want 1", got)
	}
	if r.Len() != 2 {
		t.Errorf("Len = %d", r.Len())
	}
}

func TestNormalize(t *testing.T) {
	v := []float32{3, 4}
	n := Normalize(v)
	if math.Abs(float64(n[0])-0.6) > 1e-6 || math.Abs(float64(n[1])-0.8) > 1e-6 {
		t.Errorf("Normalize = %v", n)
	}
	if v[0] != 3 {
		t.Error("Normalize modified its input")
	}
	if got := Dot([]float32{1, 2, 3}, []float32{1, 1}); got != 3 {
		t.Errorf("Dot over shared prefix = %v, want 3", got)
	}
}
