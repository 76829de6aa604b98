package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/codebuildervaibhav/meeting-diarizer/internal/broadcast"
	"github.com/codebuildervaibhav/meeting-diarizer/internal/queue"
	"github.com/codebuildervaibhav/meeting-diarizer/internal/storage"
	"github.com/codebuildervaibhav/meeting-diarizer/internal/types"
)

type jobLog struct {
	mu   sync.Mutex
	jobs []*queue.Job
	err  error

	// events, when set, is sampled on each Submit into statusAtSubmit.
	events         *eventLog
	statusAtSubmit []string
}

func (l *jobLog) Submit(job *queue.Job) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.events != nil {
		l.statusAtSubmit = l.events.statuses()
	}
	if l.err != nil {
		return l.err
	}
	l.jobs = append(l.jobs, job)
	return nil
}

type eventLog struct {
	mu     sync.Mutex
	events []types.Event
}

func (l *eventLog) Publish(_ string, ev types.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) statuses() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []string
	for _, ev := range l.events {
		out = append(out, ev.Status)
	}
	return out
}

func (l *eventLog) Send(ev types.Event) error {
	l.Publish(ev.MeetingID, ev)
	return nil
}

type fakeStore struct {
	transcripts []types.Event
	recordings  []storage.Recording
	limit       int
	err         error
}

func (s *fakeStore) ListTranscripts(_ context.Context, _ string) ([]types.Event, error) {
	return s.transcripts, s.err
}

func (s *fakeStore) ListRecordings(_ context.Context, limit int) ([]storage.Recording, error) {
	s.limit = limit
	return s.recordings, s.err
}

func multipartFile(t *testing.T, name string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	fw, err := w.CreateFormFile("file", name)
	if err != nil {
		t.Fatal(err)
	}
	fw.Write(content)
	w.Close()
	return &body, w.FormDataContentType()
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func TestUpload(t *testing.T) {
	tests := []struct {
		name       string
		file       string
		submitErr  error
		wantStatus int
		wantJobs   int
		wantEvents []string
	}{
		{"queued", "standup.mp3", nil, 200, 1, []string{types.SessionProcessing}},
		{"bad format", "notes.txt", nil, 400, 0, nil},
		{"queue full", "standup.wav", queue.ErrQueueFull, 503, 0, []string{types.SessionProcessing, types.SessionStopped}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			pub := &eventLog{}
			jobs := &jobLog{err: tc.submitErr, events: pub}
			dir := t.TempDir()
			app := fiber.New()
			app.Post("/upload/:meeting_id", NewUploadHandler(jobs, pub, dir, 10).Handle)

			body, ctype := multipartFile(t, tc.file, []byte("audio"))
			req := httptest.NewRequest(http.MethodPost, "/upload/m-7", body)
			req.Header.Set("Content-Type", ctype)
			resp, err := app.Test(req)
			if err != nil {
				t.Fatalf("app.Test: %v", err)
			}
			if resp.StatusCode != tc.wantStatus {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tc.wantStatus)
			}
			if len(jobs.jobs) != tc.wantJobs {
				t.Fatalf("jobs = %d, want %d", len(jobs.jobs), tc.wantJobs)
			}
			if got := pub.statuses(); !slices.Equal(got, tc.wantEvents) {
				t.Errorf("events = %v, want %v", got, tc.wantEvents)
			}
			if tc.wantEvents != nil && !slices.Equal(jobs.statusAtSubmit, []string{types.SessionProcessing}) {
				t.Errorf("events at submit = %v, want processing already published", jobs.statusAtSubmit)
			}
			if tc.wantJobs == 0 {
				entries, _ := os.ReadDir(dir)
				if len(entries) != 0 {
					t.Errorf("temp dir holds %d files after rejection", len(entries))
				}
				return
			}

			job := jobs.jobs[0]
			if job.MeetingID != "m-7" || job.SourceType != types.SourceUpload {
				t.Errorf("job = %+v", job)
			}
			if data, err := os.ReadFile(job.FilePath); err != nil || string(data) != "audio" {
				t.Errorf("saved file = %q, %v", data, err)
			}
		})
	}
}

func TestUpload_NoFile(t *testing.T) {
	app := fiber.New()
	app.Post("/upload/:meeting_id", NewUploadHandler(&jobLog{}, &eventLog{}, t.TempDir(), 10).Handle)
	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/upload/m", nil))
	if err != nil {
		t.Fatal(err)
	}
	if got := decodeBody(t, resp)["code"]; got != "ERR_NO_FILE" {
		t.Errorf("code = %v", got)
	}
}

func TestGDrive(t *testing.T) {
	drive := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/private") {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		if strings.HasSuffix(r.URL.Path, "/huge") {
			w.Write(bytes.Repeat([]byte{0}, 1024*1024+1))
			return
		}
		io.WriteString(w, "mp3 bytes")
	}))
	defer drive.Close()

	tests := []struct {
		name       string
		url        string
		wantStatus int
		wantCode   string
	}{
		{"file link", "https://drive.google.com/file/d/abc_123/view", 200, ""},
		{"private", "https://drive.google.com/open?id=private", 400, "ERR_FILE_NOT_ACCESSIBLE"},
		{"over size limit", "https://drive.google.com/open?id=huge", 400, "ERR_FILE_TOO_LARGE"},
		{"not drive", "https://example.com/a.mp3", 400, "ERR_INVALID_URL"},
		{"missing", "", 400, "ERR_NO_URL"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			jobs := &jobLog{}
			dir := t.TempDir()
			h := NewGDriveHandler(jobs, &eventLog{}, dir, 1)
			h.downloadURL = drive.URL + "/%s"
			app := fiber.New()
			app.Post("/gdrive/:meeting_id", h.Handle)

			req := httptest.NewRequest(http.MethodPost, "/gdrive/m-1", strings.NewReader(`{"url":"`+tc.url+`"}`))
			req.Header.Set("Content-Type", "application/json")
			resp, err := app.Test(req)
			if err != nil {
				t.Fatal(err)
			}
			if resp.StatusCode != tc.wantStatus {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tc.wantStatus)
			}
			body := decodeBody(t, resp)
			if tc.wantCode != "" {
				if body["code"] != tc.wantCode {
					t.Errorf("code = %v, want %s", body["code"], tc.wantCode)
				}
				if entries, _ := os.ReadDir(dir); len(entries) != 0 {
					t.Errorf("temp dir holds %d files after rejection", len(entries))
				}
				return
			}
			if len(jobs.jobs) != 1 || jobs.jobs[0].SourceType != types.SourceGDrive {
				t.Fatalf("jobs = %+v", jobs.jobs)
			}
			if data, _ := os.ReadFile(jobs.jobs[0].FilePath); string(data) != "mp3 bytes" {
				t.Errorf("downloaded %q", data)
			}
		})
	}
}

func TestExtractGDriveFileID(t *testing.T) {
	tests := []struct{ in, want string }{
		{"https://drive.google.com/file/d/1AbC-_x/view?usp=sharing", "1AbC-_x"},
		{"https://drive.google.com/open?id=XYZ", "XYZ"},
		{"1234567890abcdefghijklmnopqrstu", "1234567890abcdefghijklmnopqrstu"},
		{"short", ""},
	}
	for _, tc := range tests {
		if got := extractGDriveFileID(tc.in); got != tc.want {
			t.Errorf("extractGDriveFileID(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestTranscripts_List(t *testing.T) {
	store := &fakeStore{transcripts: []types.Event{{ID: "a", Text: "hello", Start: 1}}}
	app := fiber.New()
	h := NewTranscriptHandler(broadcast.NewHub(), store)
	app.Get("/transcripts/:meeting_id", h.List)
	app.Get("/recordings", h.Recordings)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/transcripts/m-1", nil))
	if err != nil {
		t.Fatal(err)
	}
	body := decodeBody(t, resp)
	if rows, _ := body["transcripts"].([]any); len(rows) != 1 {
		t.Errorf("transcripts = %v", body["transcripts"])
	}

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/recordings?limit=5", nil))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if store.limit != 5 {
		t.Errorf("limit = %d, want 5", store.limit)
	}

	store.err = errors.New("locked")
	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/transcripts/m-1", nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 500 {
		t.Errorf("status = %d, want 500", resp.StatusCode)
	}
}

func TestTranscripts_Broadcast(t *testing.T) {
	hub := broadcast.NewHub()
	sub := &eventLog{}
	hub.Subscribe("m-1", sub)

	app := fiber.New()
	app.Post("/broadcast/:meeting_id", NewTranscriptHandler(hub, &fakeStore{}).Broadcast)

	req := httptest.NewRequest(http.MethodPost, "/broadcast/m-1", strings.NewReader(`{"type":"preview","transcript":"hi"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if len(sub.events) != 1 || sub.events[0].MeetingID != "m-1" || sub.events[0].Text != "hi" {
		t.Errorf("subscriber got %+v", sub.events)
	}

	req = httptest.NewRequest(http.MethodPost, "/broadcast/m-1", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	resp, _ = app.Test(req)
	if resp.StatusCode != 400 {
		t.Errorf("missing type: status = %d, want 400", resp.StatusCode)
	}
}
