package transcription

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/codebuildervaibhav/meeting-diarizer/internal/audio"
)

func TestWhisperClient_Transcribe(t *testing.T) {
	var gotFields = map[string]string{}
	var gotWAV []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/inference" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
			return
		}
		for k, v := range r.MultipartForm.Value {
			gotFields[k] = v[0]
		}
		f, _, err := r.FormFile("file")
		if err != nil {
			t.Errorf("form file: %v", err)
			return
		}
		defer f.Close()
		buf := make([]byte, 64)
		n, _ := f.Read(buf)
		gotWAV = buf[:n]

		_ = json.NewEncoder(w).Encode(WhisperOutput{
			Text:     "  xin chào  ",
			Language: "vi",
			Segments: []WhisperSegment{
				{Start: 0, End: 1.2, Text: " xin chào "},
				{Start: 1.2, End: 1.5, Text: "  "},
			},
		})
	}))
	defer srv.Close()

	wc, err := NewWhisperClient(srv.URL, WithLanguage("vi"))
	if err != nil {
		t.Fatalf("NewWhisperClient: %v", err)
	}
	rec, err := wc.Transcribe(context.Background(), audio.Tone(440, 0.3, time.Second, audio.SampleRate), audio.SampleRate)
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}

	if rec.Text != "xin chào" {
		t.Errorf("Text = %q, want trimmed text", rec.Text)
	}
	if rec.Language != "vi" {
		t.Errorf("Language = %q", rec.Language)
	}
	if len(rec.Segments) != 1 || rec.Segments[0].Text != "xin chào" || rec.Segments[0].End != 1.2 {
		t.Errorf("Segments = %+v, want the one non-blank segment", rec.Segments)
	}
	for k, want := range map[string]string{
		"temperature":     "0.0",
		"temperature_inc": "0.2",
		"response_format": "json",
		"diarize":         "false",
		"language":        "vi",
	} {
		if gotFields[k] != want {
			t.Errorf("field %s = %q, want %q", k, gotFields[k], want)
		}
	}
	if !strings.HasPrefix(string(gotWAV), "RIFF") {
		t.Errorf("uploaded file is not a WAV container")
	}
}

func TestWhisperClient_EmptyAudioSkipsServer(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	wc, _ := NewWhisperClient(srv.URL)
	rec, err := wc.Transcribe(context.Background(), nil, audio.SampleRate)
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if rec.Text != "" || len(rec.Segments) != 0 {
		t.Errorf("expected empty recognition, got %+v", rec)
	}
	if hits.Load() != 0 {
		t.Errorf("server called %d times for empty audio", hits.Load())
	}
}

func TestWhisperClient_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	wc, _ := NewWhisperClient(srv.URL)
	_, err := wc.Transcribe(context.Background(), audio.Silence(100*time.Millisecond, audio.SampleRate), audio.SampleRate)
	if err == nil || !strings.Contains(err.Error(), "503") {
		t.Fatalf("err = %v, want HTTP 503 error", err)
	}
}

func TestNewWhisperClient_EmptyURL(t *testing.T) {
	if _, err := NewWhisperClient(""); err == nil {
		t.Fatal("expected error for empty URL")
	}
}

func TestWithMaxConcurrent_Serialises(t *testing.T) {
	var inFlight, peak atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		inFlight.Add(-1)
		_, _ = w.Write([]byte(`{"text":"ok"}`))
	}))
	defer srv.Close()

	wc, _ := NewWhisperClient(srv.URL, WithMaxConcurrent(1))
	pcm := audio.Tone(440, 0.3, 100*time.Millisecond, audio.SampleRate)

	done := make(chan error, 4)
	for i := 0; i < 4; i++ {
		go func() {
			_, err := wc.Transcribe(context.Background(), pcm, audio.SampleRate)
			done <- err
		}()
	}
	for i := 0; i < 4; i++ {
		if err := <-done; err != nil {
			t.Fatalf("Transcribe: %v", err)
		}
	}
	if peak.Load() != 1 {
		t.Errorf("peak concurrency = %d, want 1", peak.Load())
	}
}

func TestWithMaxConcurrent_ContextCancelled(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		_, _ = w.Write([]byte(`{"text":"ok"}`))
	}))
	defer srv.Close()
	defer close(release)

	wc, _ := NewWhisperClient(srv.URL, WithMaxConcurrent(1))
	pcm := audio.Tone(440, 0.3, 100*time.Millisecond, audio.SampleRate)

	go func() { _, _ = wc.Transcribe(context.Background(), pcm, audio.SampleRate) }()
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := wc.Transcribe(ctx, pcm, audio.SampleRate); err == nil {
		t.Fatal("expected context error while waiting for the semaphore")
	}
}
