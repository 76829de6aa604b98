package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML file at path over the defaults, applies DIARIZER_*
// environment overrides and validates the result. An empty path skips the
// file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("config: open %q: %w", path, err)
		}
		defer f.Close()
		if err := decode(f, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %q: %w", path, err)
		}
	}
	if err := ApplyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r over the defaults and
// validates it. Environment overrides are not applied.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	if err := decode(r, cfg); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("config: decode yaml: %w", err)
	}
	return nil
}

// ApplyEnv overrides deployment settings from the environment. lookup is
// usually os.LookupEnv.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"DIARIZER_HOST":               &cfg.Server.Host,
		"DIARIZER_LOG_FORMAT":         &cfg.Server.LogFormat,
		"DIARIZER_WHISPER_URL":        &cfg.Adapters.WhisperURL,
		"DIARIZER_EMBEDDING_URL":      &cfg.Adapters.EmbeddingURL,
		"DIARIZER_LANGUAGE":           &cfg.Adapters.Language,
		"DIARIZER_TEMP_DIR":           &cfg.Storage.TempDir,
		"DIARIZER_OUTPUT_DIR":         &cfg.Storage.OutputDir,
		"DIARIZER_DATABASE":           &cfg.Storage.Database,
		"DIARIZER_GDRIVE_CREDENTIALS": &cfg.GoogleDrive.CredentialsFile,
		"DIARIZER_GDRIVE_TOKEN":       &cfg.GoogleDrive.TokenFile,
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}
	if v, ok := lookup("DIARIZER_LOG_LEVEL"); ok {
		cfg.Server.LogLevel = LogLevel(v)
	}

	var errs []error
	ints := map[string]*int{
		"DIARIZER_PORT":    &cfg.Server.Port,
		"DIARIZER_WORKERS": &cfg.Workers.Count,
	}
	for key, dst := range ints {
		v, ok := lookup(key)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("config: %s=%q is not an integer", key, v))
			continue
		}
		*dst = n
	}
	return errors.Join(errs...)
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.LogFormat != "text" && cfg.Server.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("server.log_format %q must be text or json", cfg.Server.LogFormat))
	}
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d is out of range", cfg.Server.Port))
	}
	if cfg.Server.MaxUploadMB <= 0 {
		errs = append(errs, fmt.Errorf("server.max_upload_mb must be positive"))
	}
	if cfg.Adapters.WhisperURL == "" {
		errs = append(errs, errors.New("adapters.whisper_url is required"))
	}
	if cfg.Adapters.MaxConcurrent < 0 {
		errs = append(errs, errors.New("adapters.max_concurrent must not be negative"))
	}
	if cfg.Workers.Count <= 0 {
		errs = append(errs, fmt.Errorf("workers.count must be positive, got %d", cfg.Workers.Count))
	}
	if cfg.Storage.Database == "" {
		errs = append(errs, errors.New("storage.database is required"))
	}
	if cfg.Cleanup.Interval <= 0 {
		errs = append(errs, errors.New("cleanup.interval must be positive"))
	}

	if err := cfg.VAD.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("vad: %w", err))
	}
	if s := cfg.Speaker; s.Threshold <= 0 || s.Threshold >= 1 || s.Alpha < 0 || s.Alpha >= 1 {
		errs = append(errs, fmt.Errorf("speaker: threshold and alpha must be in (0, 1) and [0, 1), got %v and %v", s.Threshold, s.Alpha))
	}
	if err := cfg.Diarize.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("diarize: %w", err))
	}

	return errors.Join(errs...)
}
