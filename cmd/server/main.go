package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/codebuildervaibhav/meeting-diarizer/internal/audio"
	"github.com/codebuildervaibhav/meeting-diarizer/internal/broadcast"
	"github.com/codebuildervaibhav/meeting-diarizer/internal/cleanup"
	"github.com/codebuildervaibhav/meeting-diarizer/internal/config"
	"github.com/codebuildervaibhav/meeting-diarizer/internal/diarize"
	"github.com/codebuildervaibhav/meeting-diarizer/internal/handlers"
	"github.com/codebuildervaibhav/meeting-diarizer/internal/observe"
	"github.com/codebuildervaibhav/meeting-diarizer/internal/queue"
	"github.com/codebuildervaibhav/meeting-diarizer/internal/storage"
	"github.com/codebuildervaibhav/meeting-diarizer/internal/stream"
	"github.com/codebuildervaibhav/meeting-diarizer/internal/transcription"
)

const version = "1.0.0"

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML configuration file")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "warning: failed to load .env file: %v\n", err)
	}

	path := *configPath
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		path = ""
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	logBuffer := NewLogBuffer(1000)
	slog.SetDefault(newLogger(cfg.Server.LogLevel, cfg.Server.LogFormat, logBuffer))
	if path == "" {
		slog.Warn("config file not found, using defaults", "path", *configPath)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownMetrics, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: version})
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}
	defer func() {
		if err := shutdownMetrics(context.Background()); err != nil {
			slog.Warn("metrics shutdown failed", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	for _, dir := range []string{cfg.Storage.TempDir, cfg.Storage.OutputDir} {
		if err := cleanup.EnsureDir(dir); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}

	// Adapters
	adapterOpts := []transcription.Option{
		transcription.WithTimeout(cfg.Adapters.Timeout),
		transcription.WithMaxConcurrent(cfg.Adapters.MaxConcurrent),
		transcription.WithLanguage(cfg.Adapters.Language),
	}
	asr, err := transcription.NewWhisperClient(cfg.Adapters.WhisperURL, adapterOpts...)
	if err != nil {
		return err
	}
	var embedder transcription.Embedder
	if cfg.Adapters.EmbeddingURL != "" {
		ec, err := transcription.NewEmbeddingClient(cfg.Adapters.EmbeddingURL, adapterOpts...)
		if err != nil {
			return err
		}
		embedder = ec
	} else {
		slog.Warn("no embedding server configured, speaker labels disabled")
	}

	// Storage
	db, err := storage.NewMetadataDB(cfg.Storage.Database)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	var drive queue.Exporter
	if _, err := os.Stat(cfg.GoogleDrive.CredentialsFile); err == nil {
		dc, err := storage.NewDriveClient(ctx, cfg.GoogleDrive.CredentialsFile, cfg.GoogleDrive.TokenFile, cfg.GoogleDrive.FolderName)
		if err != nil {
			slog.Warn("google drive not available, transcripts will only be saved locally", "err", err)
		} else {
			drive = dc
			slog.Info("google drive integration enabled", "folder", cfg.GoogleDrive.FolderName)
		}
	} else {
		slog.Info("google drive credentials not found, saving locally only")
	}

	hub := broadcast.NewHub()

	// Background work outlives the signal context so queued recordings can
	// drain during shutdown.
	workCtx, cancelWork := context.WithCancel(context.Background())
	defer cancelWork()

	workers := queue.NewWorkerPool(queue.Options{
		Workers:     cfg.Workers.Count,
		QueueSize:   cfg.Workers.QueueSize,
		TempDir:     cfg.Storage.TempDir,
		Pipeline:    diarize.NewPipeline(cfg.Diarize, asr, embedder, audio.SampleRate),
		Transcripts: db,
		Recordings:  db,
		Local:       storage.NewLocalStorage(cfg.Storage.OutputDir),
		Drive:       drive,
		Publisher:   hub,
		Metrics:     metrics,
	})
	workers.Start(workCtx)

	sessions := stream.NewManager(workCtx, stream.Deps{
		VAD:       cfg.VAD,
		Speaker:   cfg.Speaker,
		ASR:       asr,
		Embedder:  embedder,
		Filter:    transcription.NewFillerFilter(cfg.FillerWords),
		Publisher: hub,
		Batch:     workers,
		Metrics:   metrics,
	})

	scheduler := cleanup.NewScheduler(cfg.Storage.TempDir, cfg.Cleanup.Interval, cfg.Cleanup.MaxAge)
	scheduler.Start()
	defer scheduler.Stop()

	app := newApp(cfg, appDeps{
		metrics:  metrics,
		logs:     logBuffer,
		hub:      hub,
		db:       db,
		workers:  workers,
		sessions: sessions,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("server starting", "addr", addr, "version", version)
		return app.Listen(addr)
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down gracefully")

		if err := app.ShutdownWithTimeout(cfg.Server.ShutdownTimeout); err != nil {
			slog.Warn("http shutdown", "err", err)
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := sessions.Shutdown(shutdownCtx); err != nil {
			slog.Warn("live sessions did not finish", "err", err)
		}

		drained := make(chan struct{})
		go func() {
			workers.Stop()
			close(drained)
		}()
		select {
		case <-drained:
		case <-shutdownCtx.Done():
			slog.Warn("batch queue did not drain, cancelling jobs")
			cancelWork()
			<-drained
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

type appDeps struct {
	metrics  *observe.Metrics
	logs     *LogBuffer
	hub      *broadcast.Hub
	db       *storage.MetadataDB
	workers  *queue.WorkerPool
	sessions *stream.Manager
}

func newApp(cfg *config.Config, d appDeps) *fiber.App {
	app := fiber.New(fiber.Config{
		BodyLimit:             cfg.Server.MaxUploadMB * 1024 * 1024,
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept",
	}))
	app.Use(observe.Middleware(d.metrics))

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	uploadHandler := handlers.NewUploadHandler(d.workers, d.hub, cfg.Storage.TempDir, cfg.Server.MaxUploadMB)
	gdriveHandler := handlers.NewGDriveHandler(d.workers, d.hub, cfg.Storage.TempDir, cfg.Server.MaxUploadMB)
	streamHandler := handlers.NewStreamHandler(d.sessions)
	transcriptHandler := handlers.NewTranscriptHandler(d.hub, d.db)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":        "healthy",
			"version":       version,
			"live_sessions": d.sessions.Active(),
		})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	app.Get("/logs", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"logs": d.logs.Lines()})
	})

	app.Get("/ws/audio/:meeting_id", websocket.New(streamHandler.Handle))
	app.Get("/ws/transcripts/:meeting_id", websocket.New(transcriptHandler.Subscribe))

	app.Post("/upload/:meeting_id", uploadHandler.Handle)
	app.Post("/gdrive/:meeting_id", gdriveHandler.Handle)
	app.Post("/broadcast/:meeting_id", transcriptHandler.Broadcast)
	app.Get("/transcripts/:meeting_id", transcriptHandler.List)
	app.Get("/recordings", transcriptHandler.Recordings)

	return app
}

func newLogger(level config.LogLevel, format string, buf io.Writer) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	w := io.MultiWriter(os.Stderr, buf)
	opts := &slog.HandlerOptions{Level: lvl}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
