package audio

import "math"

// butterworthOrder is the order of each half (high-pass and low-pass) of the
// band-pass cascade. It must be even.
const butterworthOrder = 4

// biquad is one second-order section in transposed direct form II.
type biquad struct {
	b0, b1, b2, a1, a2 float64
	z1, z2             float64
}

func (q *biquad) process(x float64) float64 {
	y := q.b0*x + q.z1
	q.z1 = q.b1*x - q.a1*y + q.z2
	q.z2 = q.b2*x - q.a2*y
	return y
}

func newSection(highPass bool, cutoff float64, sampleRate int, qFactor float64) *biquad {
	w0 := 2 * math.Pi * cutoff / float64(sampleRate)
	cosW := math.Cos(w0)
	alpha := math.Sin(w0) / (2 * qFactor)
	a0 := 1 + alpha

	var b0, b1, b2 float64
	if highPass {
		b0 = (1 + cosW) / 2
		b1 = -(1 + cosW)
		b2 = (1 + cosW) / 2
	} else {
		b0 = (1 - cosW) / 2
		b1 = 1 - cosW
		b2 = (1 - cosW) / 2
	}
	return &biquad{
		b0: b0 / a0,
		b1: b1 / a0,
		b2: b2 / a0,
		a1: -2 * cosW / a0,
		a2: (1 - alpha) / a0,
	}
}

// butterworthQ returns the pole-pair quality factors of an order-n Butterworth
// filter.
func butterworthQ(n int) []float64 {
	qs := make([]float64, n/2)
	for k := range qs {
		qs[k] = 1 / (2 * math.Cos(math.Pi*float64(2*k+1)/float64(2*n)))
	}
	return qs
}

// BandPass returns samples filtered through a Butterworth high-pass at low Hz
// followed by a Butterworth low-pass at high Hz. Cutoffs that are not inside
// (0, Nyquist) are skipped, so an unsuitable configuration degrades to a
// pass-through instead of an unstable filter.
func BandPass(samples []float32, sampleRate int, low, high float64) []float32 {
	nyquist := float64(sampleRate) / 2
	var sections []*biquad
	for _, q := range butterworthQ(butterworthOrder) {
		if low > 0 && low < nyquist {
			sections = append(sections, newSection(true, low, sampleRate, q))
		}
		if high > 0 && high < nyquist {
			sections = append(sections, newSection(false, high, sampleRate, q))
		}
	}

	out := make([]float32, len(samples))
	for i, s := range samples {
		v := float64(s)
		for _, sec := range sections {
			v = sec.process(v)
		}
		out[i] = float32(v)
	}
	return out
}

// PeakNormalize scales samples in place so the largest magnitude equals level.
// Silent input is left untouched.
func PeakNormalize(samples []float32, level float64) {
	var peak float64
	for _, s := range samples {
		if a := math.Abs(float64(s)); a > peak {
			peak = a
		}
	}
	if peak == 0 {
		return
	}
	scale := level / peak
	for i := range samples {
		samples[i] = float32(float64(samples[i]) * scale)
	}
}
