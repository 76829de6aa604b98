package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/codebuildervaibhav/meeting-diarizer/internal/audio"
	"github.com/codebuildervaibhav/meeting-diarizer/internal/broadcast"
	"github.com/codebuildervaibhav/meeting-diarizer/internal/observe"
	"github.com/codebuildervaibhav/meeting-diarizer/internal/storage"
	"github.com/codebuildervaibhav/meeting-diarizer/internal/transcription"
	"github.com/codebuildervaibhav/meeting-diarizer/internal/types"
)

var (
	// ErrQueueFull is returned by Submit when the backlog is at capacity.
	ErrQueueFull = errors.New("queue: job queue is full")

	// ErrStopped is returned by Submit after Stop.
	ErrStopped = errors.New("queue: worker pool stopped")
)

// Diarizer produces the ordered segment list of a complete recording.
type Diarizer interface {
	Run(ctx context.Context, pcm []byte) ([]types.Segment, error)
}

// TranscriptStore commits one final transcript segment.
type TranscriptStore interface {
	Append(ctx context.Context, ev types.Event) error
}

// RecordingStore stores the metadata of a finished job.
type RecordingStore interface {
	SaveRecording(ctx context.Context, r storage.Recording) error
}

// Exporter uploads a finished transcript and returns its URL.
type Exporter interface {
	Upload(ctx context.Context, name string, result *types.TranscriptionResult) (string, error)
}

// Options configures a WorkerPool. Pipeline, Transcripts and Publisher are
// required; the rest may be left zero.
type Options struct {
	Workers   int
	QueueSize int

	// TempDir receives normalised audio of file jobs.
	TempDir string

	Pipeline    Diarizer
	Transcripts TranscriptStore
	Recordings  RecordingStore
	Local       *storage.LocalStorage
	Drive       Exporter
	Publisher   broadcast.Publisher
	Metrics     *observe.Metrics

	// DriveAttempts bounds Drive upload retries. Defaults to 3.
	DriveAttempts int

	// Backoff returns the pause after a failed Drive attempt. Defaults to
	// attempt² seconds.
	Backoff func(attempt int) time.Duration

	// Normalize converts an input file into raw PCM16. Defaults to
	// transcription.NormalizeAudio.
	Normalize func(ctx context.Context, inputPath, tempDir string) (string, error)
}

// WorkerPool runs batch jobs on a fixed number of goroutines.
type WorkerPool struct {
	opts     Options
	jobQueue chan *Job

	mu      sync.RWMutex
	stopped bool
	wg      sync.WaitGroup
}

// NewWorkerPool creates a worker pool. Call Start to run it.
func NewWorkerPool(opts Options) *WorkerPool {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 100
	}
	if opts.TempDir == "" {
		opts.TempDir = os.TempDir()
	}
	if opts.DriveAttempts <= 0 {
		opts.DriveAttempts = 3
	}
	if opts.Backoff == nil {
		opts.Backoff = func(attempt int) time.Duration { return time.Duration(attempt*attempt) * time.Second }
	}
	if opts.Normalize == nil {
		opts.Normalize = transcription.NormalizeAudio
	}
	if opts.Metrics == nil {
		opts.Metrics = observe.DefaultMetrics()
	}
	return &WorkerPool{
		opts:     opts,
		jobQueue: make(chan *Job, opts.QueueSize),
	}
}

// Start launches the workers. Jobs run with ctx.
func (wp *WorkerPool) Start(ctx context.Context) {
	slog.Info("starting worker pool", "workers", wp.opts.Workers)
	for i := 0; i < wp.opts.Workers; i++ {
		wp.wg.Add(1)
		go wp.worker(ctx, i)
	}
}

// Submit queues job without blocking.
func (wp *WorkerPool) Submit(job *Job) error {
	wp.mu.RLock()
	defer wp.mu.RUnlock()
	if wp.stopped {
		return ErrStopped
	}

	job.Status = types.StatusQueued
	select {
	case wp.jobQueue <- job:
		slog.Info("job enqueued", "job_id", job.ID, "meeting_id", job.MeetingID, "source", job.SourceType)
		return nil
	default:
		return ErrQueueFull
	}
}

// SubmitStream queues the recording of a finished live session.
func (wp *WorkerPool) SubmitStream(meetingID string, pcm []byte) error {
	return wp.Submit(NewStreamJob(meetingID, pcm))
}

// Stop stops accepting jobs, drains the queue and waits for the workers.
func (wp *WorkerPool) Stop() {
	wp.mu.Lock()
	if wp.stopped {
		wp.mu.Unlock()
		return
	}
	wp.stopped = true
	close(wp.jobQueue)
	wp.mu.Unlock()

	wp.wg.Wait()
}

// worker processes jobs from the queue
func (wp *WorkerPool) worker(ctx context.Context, id int) {
	defer wp.wg.Done()
	for job := range wp.jobQueue {
		wp.run(ctx, id, job)
	}
}

// run processes one job. Whatever happens, subscribers of the meeting get a
// final "stopped" status.
func (wp *WorkerPool) run(ctx context.Context, workerID int, job *Job) {
	defer wp.opts.Publisher.Publish(job.MeetingID, types.StatusEvent(job.MeetingID, types.SessionStopped))
	defer wp.cleanupTempFile(job.FilePath)
	defer func() {
		if r := recover(); r != nil {
			slog.Error("worker panic",
				"worker", workerID,
				"job_id", job.ID,
				"panic", r,
				"stack", string(debug.Stack()),
			)
			job.Status = types.StatusFailed
			job.Error = fmt.Errorf("worker panic: %v", r)
		}
	}()

	if err := wp.processJob(ctx, workerID, job); err != nil {
		slog.Error("job failed", "worker", workerID, "job_id", job.ID, "meeting_id", job.MeetingID, "err", err)
		job.Status = types.StatusFailed
		job.Error = err
		return
	}
	job.Status = types.StatusCompleted
}

// processJob handles the complete batch pipeline
func (wp *WorkerPool) processJob(ctx context.Context, workerID int, job *Job) error {
	slog.Info("processing job", "worker", workerID, "job_id", job.ID, "meeting_id", job.MeetingID)
	job.Status = types.StatusProcessing
	started := time.Now()

	// Step 1: Load audio
	pcm := job.PCM
	if job.FilePath != "" {
		normalizedPath, err := wp.opts.Normalize(ctx, job.FilePath, wp.opts.TempDir)
		if err != nil {
			return fmt.Errorf("audio normalization failed: %w", err)
		}
		defer wp.cleanupTempFile(normalizedPath)

		if pcm, err = transcription.LoadPCM(normalizedPath); err != nil {
			return err
		}
	}

	// Step 2: Diarize and transcribe
	segments, err := wp.opts.Pipeline.Run(ctx, pcm)
	if err != nil {
		return fmt.Errorf("diarization failed: %w", err)
	}

	// Step 3: Commit then publish each segment, in start order
	for _, seg := range segments {
		ev := types.Event{
			ID:        uuid.New().String(),
			Type:      types.EventTranscript,
			MeetingID: job.MeetingID,
			Speaker:   seg.Speaker,
			Text:      seg.Text,
			Start:     seg.Start,
			End:       seg.End,
			IsFinal:   true,
			Timestamp: time.Now(),
		}
		if err := wp.opts.Transcripts.Append(ctx, ev); err != nil {
			return fmt.Errorf("save segment: %w", err)
		}
		wp.opts.Publisher.Publish(job.MeetingID, ev)
	}

	result := buildResult(job, pcm, segments)
	job.Result = result
	wp.opts.Metrics.RecordBatch(ctx, job.SourceType, time.Since(started), len(segments))

	// Step 4: Export
	if len(segments) > 0 {
		wp.export(ctx, workerID, job, result)
	}

	// Step 5: Save metadata to database
	if wp.opts.Recordings != nil {
		err := wp.opts.Recordings.SaveRecording(ctx, storage.Recording{
			JobID:        job.ID,
			MeetingID:    job.MeetingID,
			SourceType:   job.SourceType,
			Duration:     result.Duration,
			SegmentCount: len(segments),
			SpeakerCount: result.SpeakerCount,
			WordCount:    result.WordCount,
			LocalPath:    result.LocalPath,
			GDriveURL:    result.GDriveURL,
			CreatedAt:    result.ProcessedAt,
		})
		if err != nil {
			slog.Warn("recording metadata save failed", "worker", workerID, "job_id", job.ID, "err", err)
		}
	}

	slog.Info("job completed",
		"worker", workerID,
		"job_id", job.ID,
		"segments", len(segments),
		"speakers", result.SpeakerCount,
		"elapsed", time.Since(started),
	)
	return nil
}

// export writes the transcript locally and to Drive. Failures are logged;
// the segments are already committed.
func (wp *WorkerPool) export(ctx context.Context, workerID int, job *Job, result *types.TranscriptionResult) {
	if wp.opts.Local != nil {
		localPath, err := wp.opts.Local.SaveTranscript(job.MeetingID, result)
		if err != nil {
			slog.Warn("local save failed", "worker", workerID, "job_id", job.ID, "err", err)
		} else {
			result.LocalPath = localPath
		}
	}

	if wp.opts.Drive == nil {
		return
	}
	attempts := wp.opts.DriveAttempts
	for attempt := 1; attempt <= attempts; attempt++ {
		url, err := wp.opts.Drive.Upload(ctx, job.MeetingID, result)
		if err == nil {
			result.GDriveURL = url
			return
		}
		slog.Warn("google drive upload failed", "worker", workerID, "job_id", job.ID,
			"attempt", attempt, "max_attempts", attempts, "err", err)
		if attempt < attempts {
			select {
			case <-time.After(wp.opts.Backoff(attempt)):
			case <-ctx.Done():
				return
			}
		}
	}
	slog.Warn("google drive upload abandoned, keeping local copy only", "worker", workerID, "job_id", job.ID)
}

func buildResult(job *Job, pcm []byte, segments []types.Segment) *types.TranscriptionResult {
	texts := make([]string, 0, len(segments))
	speakers := make(map[string]struct{})
	for _, seg := range segments {
		texts = append(texts, seg.Text)
		if seg.Speaker != "" {
			speakers[seg.Speaker] = struct{}{}
		}
	}
	text := strings.Join(texts, " ")
	return &types.TranscriptionResult{
		JobID:        job.ID,
		MeetingID:    job.MeetingID,
		SourceType:   job.SourceType,
		Text:         text,
		Duration:     audio.Duration(len(pcm), audio.SampleRate).Seconds(),
		Segments:     segments,
		SpeakerCount: len(speakers),
		WordCount:    len(strings.Fields(text)),
		ProcessedAt:  time.Now(),
	}
}

// cleanupTempFile removes a temporary file
func (wp *WorkerPool) cleanupTempFile(filePath string) {
	if filePath == "" {
		return
	}
	if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to cleanup temp file", "path", filePath, "err", err)
	}
}
