package audio

import (
	"math"
	"time"
)

// Tone generates a sine wave as PCM. amplitude is a fraction of full scale.
func Tone(freq, amplitude float64, d time.Duration, sampleRate int) []byte {
	n := int(int64(d) * int64(sampleRate) / int64(time.Second))
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = float32(amplitude * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate)))
	}
	return ToPCM(samples)
}

// Silence returns d worth of zeroed PCM.
func Silence(d time.Duration, sampleRate int) []byte {
	return make([]byte, ByteOffset(d, sampleRate))
}
