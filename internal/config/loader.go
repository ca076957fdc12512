package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/wavscribe/internal/transcribe"
	"github.com/MrWong99/wavscribe/pkg/lang"
)

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r over [Default] and validates
// the result. An empty document yields the defaults.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.MaxConcurrentRuns < 1 {
		errs = append(errs, fmt.Errorf("server.max_concurrent_runs must be >= 1, got %d", cfg.Server.MaxConcurrentRuns))
	}
	if cfg.Server.ShutdownTimeout < 0 {
		errs = append(errs, fmt.Errorf("server.shutdown_timeout must not be negative, got %s", cfg.Server.ShutdownTimeout))
	}

	// Transcribe
	if err := cfg.Transcribe.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("transcribe: %w", err))
	}
	// The run checks the language against the engine; here it only warns so
	// a config can name a language a custom engine knows.
	if err := transcribe.CheckLanguage(cfg.Transcribe.Language, lang.ID); err != nil {
		slog.Warn("transcribe.language is not a known whisper language; runs will fail unless overridden",
			"language", cfg.Transcribe.Language,
		)
	}
	if cfg.Transcribe.Model == "" {
		slog.Warn("transcribe.model is empty; every run must provide a model path")
	}

	// Jobs
	if cfg.Jobs.HistoryLimit < 0 {
		errs = append(errs, fmt.Errorf("jobs.history_limit must not be negative, got %d", cfg.Jobs.HistoryLimit))
	}

	return errors.Join(errs...)
}
