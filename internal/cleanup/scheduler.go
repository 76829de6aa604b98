// Package cleanup removes abandoned upload and normalisation files.
package cleanup

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Scheduler periodically deletes files older than a maximum age from a
// directory tree.
type Scheduler struct {
	dir      string
	interval time.Duration
	maxAge   time.Duration
	now      func() time.Time

	stopOnce sync.Once
	stopChan chan struct{}
	done     chan struct{}
}

// NewScheduler creates a scheduler for dir. Call Start to run it.
func NewScheduler(dir string, interval, maxAge time.Duration) *Scheduler {
	return &Scheduler{
		dir:      dir,
		interval: interval,
		maxAge:   maxAge,
		now:      time.Now,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start sweeps once and then every interval until Stop.
func (s *Scheduler) Start() {
	s.Sweep()

	ticker := time.NewTicker(s.interval)
	go func() {
		defer close(s.done)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.Sweep()
			case <-s.stopChan:
				return
			}
		}
	}()

	slog.Info("cleanup scheduler started", "dir", s.dir, "interval", s.interval, "max_age", s.maxAge)
}

// Stop ends the periodic sweep and waits for it to exit. Stop must only be
// called after Start.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
	<-s.done
	slog.Info("cleanup scheduler stopped")
}

// Sweep removes every regular file older than the maximum age and returns
// how many were deleted.
func (s *Scheduler) Sweep() int {
	now := s.now()
	var deleted int
	var freed int64

	err := filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		age := now.Sub(info.ModTime())
		if age <= s.maxAge {
			return nil
		}
		if err := os.Remove(path); err != nil {
			slog.Warn("cleanup: delete failed", "path", path, "err", err)
			return nil
		}
		deleted++
		freed += info.Size()
		slog.Debug("cleanup: deleted temp file", "file", filepath.Base(path), "age", age.Round(time.Minute))
		return nil
	})
	if err != nil {
		slog.Warn("cleanup: walk failed", "dir", s.dir, "err", err)
	}

	if deleted > 0 {
		slog.Info("cleanup complete", "deleted", deleted, "freed_bytes", freed)
	}
	return deleted
}

// EnsureDir creates dir if it doesn't exist.
func EnsureDir(dir string) error {
	return os.MkdirAll(dir, 0o755)
}
