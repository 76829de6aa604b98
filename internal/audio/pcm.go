// Package audio holds the PCM helpers shared by the live and batch paths.
//
// All audio handled by this service is 16-bit signed little-endian mono PCM.
// Conversion from other formats happens at the ingestion boundary (see
// transcription.NormalizeAudio).
package audio

import (
	"encoding/binary"
	"math"
	"time"
)

const (
	// SampleRate is the rate every ingestion path normalises to.
	SampleRate = 16000

	// BytesPerSample is fixed by the 16-bit PCM contract.
	BytesPerSample = 2

	bitsPerSample = 16
)

// BytesPerSecond returns the PCM byte rate for mono audio at sampleRate.
func BytesPerSecond(sampleRate int) int {
	return sampleRate * BytesPerSample
}

// Duration returns the playback duration of n bytes of PCM.
func Duration(n, sampleRate int) time.Duration {
	bps := BytesPerSecond(sampleRate)
	if bps <= 0 || n <= 0 {
		return 0
	}
	return time.Duration(int64(n) * int64(time.Second) / int64(bps))
}

// ByteOffset converts d into a sample-aligned byte count.
func ByteOffset(d time.Duration, sampleRate int) int {
	if d <= 0 {
		return 0
	}
	samples := int64(d) * int64(sampleRate) / int64(time.Second)
	return int(samples) * BytesPerSample
}

// RMS returns the root-mean-square amplitude of a PCM buffer on the 16-bit
// scale. A trailing odd byte is ignored; an empty buffer yields 0.
func RMS(pcm []byte) float64 {
	n := len(pcm) / BytesPerSample
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		v := float64(int16(binary.LittleEndian.Uint16(pcm[i*2:])))
		sum += v * v
	}
	mean := sum / float64(n)
	if mean <= 0 {
		return 0
	}
	return math.Sqrt(mean)
}

// ToFloat decodes PCM into samples scaled to [-1, 1).
func ToFloat(pcm []byte) []float32 {
	n := len(pcm) / BytesPerSample
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(int16(binary.LittleEndian.Uint16(pcm[i*2:]))) / 32768
	}
	return out
}

// ToPCM encodes samples in [-1, 1] as PCM, clipping anything outside.
func ToPCM(samples []float32) []byte {
	out := make([]byte, len(samples)*BytesPerSample)
	for i, s := range samples {
		v := float64(s) * 32768
		switch {
		case v > math.MaxInt16:
			v = math.MaxInt16
		case v < math.MinInt16:
			v = math.MinInt16
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(v)))
	}
	return out
}

// MeanSquare returns the mean of the squared samples, 0 for no samples.
func MeanSquare(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return sum / float64(len(samples))
}

// EncodeWAV wraps raw PCM in a RIFF/WAV container so it can be posted to the
// inference servers as a regular audio file.
func EncodeWAV(pcm []byte, sampleRate, channels int) []byte {
	byteRate := sampleRate * channels * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8
	dataSize := len(pcm)

	buf := make([]byte, 44+dataSize)

	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize))
	copy(buf[8:12], "WAVE")

	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(buf[34:36], bitsPerSample)

	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))
	copy(buf[44:], pcm)

	return buf
}
