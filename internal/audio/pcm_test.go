package audio

import (
	"encoding/binary"
	"math"
	"testing"
	"time"
)

func TestRMS(t *testing.T) {
	tests := []struct {
		name string
		pcm  []byte
		want float64
	}{
		{"empty", nil, 0},
		{"single odd byte", []byte{0x7f}, 0},
		{"silence", make([]byte, 320), 0},
		{"constant", pcmOf(1000, 1000, -1000, -1000), 1000},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := RMS(tc.pcm); math.Abs(got-tc.want) > 1e-9 {
				t.Errorf("RMS = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestRMS_ToneAboveSilenceThreshold(t *testing.T) {
	pcm := Tone(440, 0.5, 100*time.Millisecond, SampleRate)
	// A 0.5 full-scale sine has RMS 0.5*32768/sqrt(2) ≈ 11585.
	if got := RMS(pcm); got < 11000 || got > 12000 {
		t.Errorf("RMS = %v, want ≈11585", got)
	}
}

func TestDurationAndByteOffset(t *testing.T) {
	if got := Duration(32000, SampleRate); got != time.Second {
		t.Errorf("Duration(32000) = %v, want 1s", got)
	}
	if got := ByteOffset(time.Second, SampleRate); got != 32000 {
		t.Errorf("ByteOffset(1s) = %d, want 32000", got)
	}
	if got := ByteOffset(-time.Second, SampleRate); got != 0 {
		t.Errorf("ByteOffset(-1s) = %d, want 0", got)
	}
	if got := ByteOffset(1500*time.Microsecond, SampleRate); got%BytesPerSample != 0 {
		t.Errorf("ByteOffset not sample aligned: %d", got)
	}
}

func TestToFloatToPCM(t *testing.T) {
	pcm := pcmOf(0, 16384, -16384, 32767, -32768)
	samples := ToFloat(pcm)
	if len(samples) != 5 {
		t.Fatalf("len = %d, want 5", len(samples))
	}
	if samples[1] != 0.5 || samples[2] != -0.5 || samples[4] != -1 {
		t.Errorf("unexpected samples %v", samples)
	}
	back := ToPCM(samples)
	for i := range pcm {
		if back[i] != pcm[i] {
			t.Fatalf("byte %d = %x, want %x", i, back[i], pcm[i])
		}
	}
}

func TestToPCM_Clips(t *testing.T) {
	pcm := ToPCM([]float32{2, -2})
	if v := int16(binary.LittleEndian.Uint16(pcm)); v != math.MaxInt16 {
		t.Errorf("positive clip = %d", v)
	}
	if v := int16(binary.LittleEndian.Uint16(pcm[2:])); v != math.MinInt16 {
		t.Errorf("negative clip = %d", v)
	}
}

func TestEncodeWAV_Header(t *testing.T) {
	pcm := make([]byte, 100)
	wav := EncodeWAV(pcm, SampleRate, 1)
	if len(wav) != 144 {
		t.Fatalf("len = %d, want 144", len(wav))
	}
	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" || string(wav[36:40]) != "data" {
		t.Errorf("bad chunk ids")
	}
	if sr := binary.LittleEndian.Uint32(wav[24:28]); sr != SampleRate {
		t.Errorf("sample rate = %d", sr)
	}
	if n := binary.LittleEndian.Uint32(wav[40:44]); n != 100 {
		t.Errorf("data size = %d", n)
	}
}

func pcmOf(values ...int16) []byte {
	out := make([]byte, len(values)*2)
	for i, v := range values {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
	}
	return out
}
