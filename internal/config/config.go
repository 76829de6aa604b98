// Package config defines the server configuration and its defaults.
package config

import (
	"time"

	"github.com/codebuildervaibhav/meeting-diarizer/internal/diarize"
	"github.com/codebuildervaibhav/meeting-diarizer/internal/speaker"
	"github.com/codebuildervaibhav/meeting-diarizer/internal/transcription"
	"github.com/codebuildervaibhav/meeting-diarizer/internal/vad"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration.
type Config struct {
	Server      ServerConfig   `yaml:"server"`
	Adapters    AdaptersConfig `yaml:"adapters"`
	Workers     WorkersConfig  `yaml:"workers"`
	Storage     StorageConfig  `yaml:"storage"`
	Cleanup     CleanupConfig  `yaml:"cleanup"`
	GoogleDrive DriveConfig    `yaml:"google_drive"`

	VAD     vad.Config     `yaml:"vad"`
	Speaker speaker.Config `yaml:"speaker"`
	Diarize diarize.Config `yaml:"diarize"`

	// FillerWords replaces the built-in list of phrases dropped from the
	// live transcript.
	FillerWords []string `yaml:"filler_words"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	LogLevel LogLevel `yaml:"log_level"`

	// LogFormat is "text" or "json".
	LogFormat string `yaml:"log_format"`

	MaxUploadMB int `yaml:"max_upload_mb"`

	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// AdaptersConfig points at the inference servers.
type AdaptersConfig struct {
	WhisperURL string `yaml:"whisper_url"`

	// EmbeddingURL is optional. Without it live phrases are unlabelled and
	// batch jobs produce a single unlabelled segment.
	EmbeddingURL string `yaml:"embedding_url"`

	Language string        `yaml:"language"`
	Timeout  time.Duration `yaml:"timeout"`

	// MaxConcurrent bounds in-flight requests per adapter. Zero means
	// unbounded.
	MaxConcurrent int `yaml:"max_concurrent"`
}

// WorkersConfig sizes the batch worker pool.
type WorkersConfig struct {
	Count     int `yaml:"count"`
	QueueSize int `yaml:"queue_size"`
}

type StorageConfig struct {
	TempDir   string `yaml:"temp_dir"`
	OutputDir string `yaml:"output_dir"`
	Database  string `yaml:"database"`
}

type CleanupConfig struct {
	Interval time.Duration `yaml:"interval"`
	MaxAge   time.Duration `yaml:"max_age"`
}

// DriveConfig enables Drive export when CredentialsFile exists.
type DriveConfig struct {
	CredentialsFile string `yaml:"credentials_file"`
	TokenFile       string `yaml:"token_file"`
	FolderName      string `yaml:"folder_name"`
}

// Default returns a configuration usable against local inference servers.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8000,
			LogLevel:        LogInfo,
			LogFormat:       "text",
			MaxUploadMB:     500,
			ShutdownTimeout: 30 * time.Second,
		},
		Adapters: AdaptersConfig{
			WhisperURL:    "http://localhost:8080",
			Timeout:       2 * time.Minute,
			MaxConcurrent: 2,
		},
		Workers: WorkersConfig{
			Count:     2,
			QueueSize: 100,
		},
		Storage: StorageConfig{
			TempDir:   "temp",
			OutputDir: "transcripts",
			Database:  "data/meetings.db",
		},
		Cleanup: CleanupConfig{
			Interval: 30 * time.Minute,
			MaxAge:   24 * time.Hour,
		},
		GoogleDrive: DriveConfig{
			CredentialsFile: "credentials.json",
			TokenFile:       "token.json",
			FolderName:      "Meeting Transcripts",
		},
		VAD:         vad.DefaultConfig(),
		Speaker:     speaker.DefaultConfig(),
		Diarize:     diarize.DefaultConfig(),
		FillerWords: append([]string(nil), transcription.DefaultFillers...),
	}
}
