// Package config provides the configuration schema and loader for wavscribe.
package config

import (
	"time"

	"github.com/MrWong99/wavscribe/internal/transcribe"
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

// Config is the root configuration structure.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server ServerConfig `yaml:"server"`

	// Transcribe holds the default parameters of every run. CLI flags and
	// API requests override them per run.
	Transcribe transcribe.Params `yaml:"transcribe"`

	Telemetry TelemetryConfig `yaml:"telemetry"`
	Jobs      JobsConfig      `yaml:"jobs"`
}

// ServerConfig holds network, logging and concurrency settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the HTTP API listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// MaxConcurrentRuns bounds how many transcription runs execute at once.
	// Each run loads its own model, so this is effectively a memory limit.
	MaxConcurrentRuns int `yaml:"max_concurrent_runs"`

	// ShutdownTimeout is how long in-flight requests and runs get to finish
	// after a termination signal.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// InputDir is the directory HTTP requests name input files in. When
	// empty, inputs resolve against the working directory. Requests can
	// never use absolute paths or "..".
	InputDir string `yaml:"input_dir"`

	// ModelDir lets HTTP requests select other model files from this
	// directory. When empty, requests can only use transcribe.model.
	ModelDir string `yaml:"model_dir"`
}

// TelemetryConfig configures OpenTelemetry.
type TelemetryConfig struct {
	// ServiceName is reported as the service.name resource attribute.
	ServiceName string `yaml:"service_name"`

	// MetricsEnabled exposes metrics on /metrics.
	MetricsEnabled bool `yaml:"metrics_enabled"`
}

// JobsConfig configures the asynchronous job store.
type JobsConfig struct {
	// PostgresDSN selects the PostgreSQL store. When empty, jobs are kept in
	// memory and lost on restart.
	PostgresDSN string `yaml:"postgres_dsn"`

	// HistoryLimit caps the number of jobs returned by listings.
	HistoryLimit int `yaml:"history_limit"`
}

// Default returns a Config populated with default values. YAML files are
// decoded on top of it, so omitted keys keep these values.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr:        ":8080",
			LogLevel:          LogInfo,
			MaxConcurrentRuns: 1,
			ShutdownTimeout:   15 * time.Second,
		},
		Transcribe: transcribe.DefaultParams(),
		Telemetry: TelemetryConfig{
			ServiceName:    "wavscribe",
			MetricsEnabled: true,
		},
		Jobs: JobsConfig{
			HistoryLimit: 100,
		},
	}
}
